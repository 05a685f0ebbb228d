package game

import (
	"context"
	"time"

	"github.com/qninhdt/ai-adventure/internal/character"
	"github.com/qninhdt/ai-adventure/internal/scene"
)

// StatsUpdate is the post-turn character sheet
type StatsUpdate struct {
	Base    character.Stats
	Current character.Stats
	Level   int
	XP      int
}

// Store persists adventures and everything hanging off them.
// Getters return found=false for missing or soft-deleted adventures.
type Store interface {
	scene.Store

	CreateAdventure(ctx context.Context, a *Adventure, world *LogEntry) error
	GetAdventure(ctx context.Context, id string) (*Adventure, bool, error)
	ListAdventures(ctx context.Context, userID string, status Status) ([]*Adventure, error)
	UpdateAdventureStatus(ctx context.Context, id string, status Status, at time.Time) error
	UpdateAdventureStats(ctx context.Context, id string, u StatsUpdate) error
	SoftDeleteAdventure(ctx context.Context, id string, at time.Time) error

	// AppendLog stores an entry and assigns its turn number. An action entry
	// increments the turn count, an event entry becomes the pending event and
	// any other entry resolves a pending event.
	AppendLog(ctx context.Context, e *LogEntry) (*LogEntry, error)
	ListLog(ctx context.Context, adventureID string) ([]*LogEntry, error)
	RecentLog(ctx context.Context, adventureID string, n int) ([]*LogEntry, error)
	LatestLog(ctx context.Context, adventureID string, kind LogKind) (*LogEntry, bool, error)
	GetLogEntry(ctx context.Context, id string) (*LogEntry, bool, error)

	ListInventory(ctx context.Context, adventureID string) ([]*InventoryItem, error)
	SaveInventory(ctx context.Context, adventureID string, upserts []*InventoryItem, deletes []string) error

	ListGlossary(ctx context.Context, adventureID string) ([]*GlossaryTerm, error)
	// AddGlossaryTerms inserts terms whose key is not yet present and returns how many were new
	AddGlossaryTerms(ctx context.Context, adventureID string, terms []*GlossaryTerm) (int, error)
}
