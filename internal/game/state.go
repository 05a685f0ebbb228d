package game

import (
	"strings"
	"time"

	"github.com/qninhdt/ai-adventure/internal/character"
	"github.com/qninhdt/ai-adventure/internal/scene"
)

// Status is the lifecycle state of an adventure
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// LogKind is the type of a turn log entry
type LogKind string

const (
	KindWorld  LogKind = "world"
	KindAction LogKind = "action"
	KindResult LogKind = "result"
	KindRoll   LogKind = "roll"
	KindEvent  LogKind = "event"
)

// Adventure is one playthrough of one character
type Adventure struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Title            string          `json:"title"`
	Class            string          `json:"characterClass"`
	PortraitURL      string          `json:"portraitUrl,omitempty"`
	BaseStats        character.Stats `json:"characterStats"`
	CurrentStats     character.Stats `json:"currentStats"`
	WorldDescription string          `json:"worldDescription"`
	Status           Status          `json:"status"`
	TurnCount        int             `json:"turnCount"`
	Level            int             `json:"level"`
	CurrentXP        int             `json:"currentXp"`
	LastEventTurn    int             `json:"lastEventTurn"`
	PendingEventID   string          `json:"pendingEventId,omitempty"`
	CurrentSceneHash string          `json:"currentSceneHash,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	LastPlayedAt     time.Time       `json:"lastPlayedAt"`
	DeletedAt        *time.Time      `json:"-"`
}

// NextLevelXP returns the experience total needed for the next level
func (a *Adventure) NextLevelXP() int {
	return character.XPThreshold(a.Level + 1)
}

// LogEntry is one immutable line of an adventure's history
type LogEntry struct {
	ID           string    `json:"id"`
	AdventureID  string    `json:"adventureId"`
	Kind         LogKind   `json:"type"`
	Content      string    `json:"content"`
	TurnNumber   int       `json:"turnNumber"`
	EventOptions []string  `json:"eventOptions,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HistoryLabel maps the entry kind to the label used in narrator history
func (e *LogEntry) HistoryLabel() string {
	switch e.Kind {
	case KindWorld:
		return "SETTING"
	case KindAction:
		return "PLAYER"
	default:
		return "OUTCOME"
	}
}

// InventoryItem is a stack of a named item
type InventoryItem struct {
	ID          string    `json:"id"`
	AdventureID string    `json:"adventureId"`
	Name        string    `json:"itemName"`
	Quantity    int       `json:"quantity"`
	Description string    `json:"description,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GlossaryTerm is a world term with its first definition
type GlossaryTerm struct {
	ID          string    `json:"id"`
	AdventureID string    `json:"adventureId"`
	Term        string    `json:"term"`
	Definition  string    `json:"definition"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NameKey is the case-insensitive identity of an item or term
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AdventureView is the full state of an adventure as returned to the owner
type AdventureView struct {
	Adventure   *Adventure        `json:"adventure"`
	Log         []*LogEntry       `json:"log"`
	Inventory   []*InventoryItem  `json:"inventory"`
	Glossary    []*GlossaryTerm   `json:"glossary"`
	ActiveEvent *LogEntry         `json:"activeEvent"`
	Background  *scene.Background `json:"background"`
	Progress    *LevelProgress    `json:"progress"`
}

// LevelProgress summarizes experience toward the next level
type LevelProgress struct {
	Level       int `json:"level"`
	CurrentXP   int `json:"currentXp"`
	NextLevelXP int `json:"nextLevelXp"`
}
