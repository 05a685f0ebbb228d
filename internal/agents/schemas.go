package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qninhdt/ai-adventure/internal/character"
)

// GlossaryEntry is a world term the narrator introduced
type GlossaryEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// InventoryChange is a signed quantity change for a named item
type InventoryChange struct {
	Name           string `json:"name"`
	QuantityChange int    `json:"quantityChange"`
	Description    string `json:"description,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// DMResponse is the structured outcome of one turn.
// Every field except Outcome is optional.
type DMResponse struct {
	Outcome          string            `json:"outcome"`
	GlossaryTerms    []GlossaryEntry   `json:"glossaryTerms,omitempty"`
	InventoryChanges []InventoryChange `json:"inventoryChanges,omitempty"`
	StatAdjustment   bool              `json:"statAdjustment,omitempty"`
	StatToAdjust     string            `json:"statToAdjust,omitempty"`
	AdjustmentAmount int               `json:"adjustmentAmount,omitempty"`
	ProactiveEvent   string            `json:"proactiveEvent,omitempty"`
	EventOptions     []string          `json:"eventOptions,omitempty"`
	ExperienceGained int               `json:"experienceGained,omitempty"`
	SceneDescription string            `json:"sceneDescription,omitempty"`
}

// RollCheck is the rules assistant's decision on whether an action needs a d20 roll
type RollCheck struct {
	RequiresRoll bool   `json:"requiresRoll"`
	StatToRoll   string `json:"statToRoll,omitempty"`
	RollDC       int    `json:"rollDC,omitempty"`
}

// WorldSetup is the opening of a new adventure
type WorldSetup struct {
	Title            string `json:"title"`
	WorldDescription string `json:"worldDescription"`
}

// InventoryLine is an inventory item as shown to the narrator
type InventoryLine struct {
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
}

// HistoryLine is one labelled line of recent history (SETTING, PLAYER or OUTCOME)
type HistoryLine struct {
	Label string
	Text  string
}

// TurnPrompt carries everything the narrator sees for one turn
type TurnPrompt struct {
	Class            string
	Level            int
	Stats            character.Stats
	Inventory        []InventoryLine
	WorldDescription string
	History          []HistoryLine
	Action           string
	RollContext      string
	EventsEnabled    bool
}

// RollPrompt carries the inputs of the roll check
type RollPrompt struct {
	MostRecentResult string `json:"mostRecentResult"`
	PlayerAction     string `json:"playerAction"`
}

const (
	// MaxExperiencePerTurn caps experienceGained from a single response
	MaxExperiencePerTurn = 250
	maxEventOptions      = 4
)

// ParseDMResponse decodes and normalizes a narrator answer
func ParseDMResponse(content string) (*DMResponse, error) {
	var resp DMResponse
	if err := json.Unmarshal([]byte(extractJSONPayload(content)), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := resp.Normalize(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Normalize trims fields, drops malformed entries and rejects a missing outcome
func (r *DMResponse) Normalize() error {
	r.Outcome = strings.TrimSpace(r.Outcome)
	if r.Outcome == "" {
		return fmt.Errorf("%w: missing outcome", ErrInvalidResponse)
	}

	terms := r.GlossaryTerms[:0]
	for _, g := range r.GlossaryTerms {
		g.Term = strings.TrimSpace(g.Term)
		g.Definition = strings.TrimSpace(g.Definition)
		if g.Term != "" && g.Definition != "" {
			terms = append(terms, g)
		}
	}
	r.GlossaryTerms = terms

	changes := r.InventoryChanges[:0]
	for _, c := range r.InventoryChanges {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name != "" && c.QuantityChange != 0 {
			changes = append(changes, c)
		}
	}
	r.InventoryChanges = changes

	if stat, ok := character.NormalizeStat(r.StatToAdjust); ok {
		r.StatToAdjust = stat
	} else {
		r.StatToAdjust = ""
	}

	r.ProactiveEvent = strings.TrimSpace(r.ProactiveEvent)
	options := make([]string, 0, len(r.EventOptions))
	for _, o := range r.EventOptions {
		if o = strings.TrimSpace(o); o != "" && len(options) < maxEventOptions {
			options = append(options, o)
		}
	}
	r.EventOptions = options

	if r.ExperienceGained < 0 {
		r.ExperienceGained = 0
	}
	if r.ExperienceGained > MaxExperiencePerTurn {
		r.ExperienceGained = MaxExperiencePerTurn
	}
	r.SceneDescription = strings.TrimSpace(r.SceneDescription)
	return nil
}

// StripEvent clears the event fields when the event policy did not fire
func (r *DMResponse) StripEvent() {
	r.ProactiveEvent = ""
	r.EventOptions = nil
}

// ParseRollCheck decodes the roll decision; requiresRoll must be present
func ParseRollCheck(content string) (*RollCheck, error) {
	var raw struct {
		RequiresRoll *bool  `json:"requiresRoll"`
		StatToRoll   string `json:"statToRoll"`
		RollDC       int    `json:"rollDC"`
	}
	if err := json.Unmarshal([]byte(extractJSONPayload(content)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if raw.RequiresRoll == nil {
		return nil, fmt.Errorf("%w: missing requiresRoll", ErrInvalidResponse)
	}
	return &RollCheck{
		RequiresRoll: *raw.RequiresRoll,
		StatToRoll:   strings.ToLower(strings.TrimSpace(raw.StatToRoll)),
		RollDC:       raw.RollDC,
	}, nil
}

// ParseWorldSetup decodes a world setup, applying fallbacks for blank fields
func ParseWorldSetup(content string) (*WorldSetup, error) {
	var w WorldSetup
	if err := json.Unmarshal([]byte(extractJSONPayload(content)), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	w.Title = strings.TrimSpace(w.Title)
	w.WorldDescription = strings.TrimSpace(w.WorldDescription)
	if w.Title == "" {
		w.Title = "Untitled Adventure"
	}
	if w.WorldDescription == "" {
		w.WorldDescription = "A mysterious land awaits."
	}
	return &w, nil
}

func stringEnum(values []string) map[string]interface{} {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return map[string]interface{}{"type": "string", "enum": enum}
}

// DMSchema returns the JSON schema for DMResponse.
// Event fields are only advertised when events are enabled for the turn.
func DMSchema(eventsEnabled bool) map[string]interface{} {
	props := map[string]interface{}{
		"outcome": map[string]interface{}{"type": "string"},
		"glossaryTerms": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"term":       map[string]interface{}{"type": "string"},
					"definition": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"term", "definition"},
			},
		},
		"inventoryChanges": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name":           map[string]interface{}{"type": "string"},
					"quantityChange": map[string]interface{}{"type": "integer"},
					"description":    map[string]interface{}{"type": "string"},
					"reason":         map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"name", "quantityChange"},
			},
		},
		"statAdjustment":   map[string]interface{}{"type": "boolean"},
		"statToAdjust":     stringEnum(character.StatNames),
		"adjustmentAmount": map[string]interface{}{"type": "integer"},
		"experienceGained": map[string]interface{}{"type": "integer"},
		"sceneDescription": map[string]interface{}{"type": "string"},
	}
	if eventsEnabled {
		props["proactiveEvent"] = map[string]interface{}{"type": "string"}
		props["eventOptions"] = map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []interface{}{"outcome"},
	}
}

// RollSchema returns the JSON schema for RollCheck
func RollSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"requiresRoll": map[string]interface{}{"type": "boolean"},
			"statToRoll":   stringEnum(character.AbilityNames),
			"rollDC":       map[string]interface{}{"type": "integer"},
		},
		"required": []interface{}{"requiresRoll"},
	}
}

// WorldSchema returns the JSON schema for WorldSetup
func WorldSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"worldDescription": map[string]interface{}{"type": "string"},
			"title":            map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"worldDescription", "title"},
	}
}
