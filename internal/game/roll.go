package game

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/qninhdt/ai-adventure/internal/agents"
	"github.com/qninhdt/ai-adventure/internal/character"
)

// DefaultDC is used when the roll check gives no usable difficulty
const DefaultDC = 15

// Randomizer is the source of dice rolls and event draws.
// *rand.Rand from math/rand/v2 satisfies it.
type Randomizer interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// RollOutcome is a resolved d20 ability check
type RollOutcome struct {
	Stat      string `json:"stat"`
	StatValue int    `json:"statValue"`
	Modifier  int    `json:"modifier"`
	Die       int    `json:"die"`
	Total     int    `json:"total"`
	DC        int    `json:"dc"`
	Success   bool   `json:"success"`
}

// ResolveRoll rolls a d20 when the check requires it.
// It returns nil when no roll is needed or the stat is not a rollable ability.
func ResolveRoll(rng Randomizer, stats character.Stats, check *agents.RollCheck) *RollOutcome {
	if check == nil || !check.RequiresRoll || !character.IsAbility(check.StatToRoll) {
		return nil
	}

	dc := check.RollDC
	if dc <= 0 {
		dc = DefaultDC
	}

	value, _ := stats.Get(check.StatToRoll)
	value = clamp(value, 1, 30)
	mod := character.Modifier(value)
	die := rng.IntN(20) + 1
	total := die + mod

	return &RollOutcome{
		Stat:      strings.ToLower(check.StatToRoll),
		StatValue: value,
		Modifier:  mod,
		Die:       die,
		Total:     total,
		DC:        dc,
		Success:   total >= dc,
	}
}

// LogText is the roll line appended to the adventure log
func (r *RollOutcome) LogText() string {
	verdict := "Failed!"
	if r.Success {
		verdict = "Success!"
	}
	return fmt.Sprintf("🎲 Rolling %s... %d + %d = %d vs DC %d (%s)",
		strings.ToUpper(r.Stat), r.Die, r.Modifier, r.Total, r.DC, verdict)
}

// PromptContext is the roll line folded into the narrator prompt
func (r *RollOutcome) PromptContext() string {
	verdict := "FAILURE"
	if r.Success {
		verdict = "SUCCESS"
	}
	return fmt.Sprintf("ROLL RESULT: %s check - rolled %d + %d = %d vs DC %d (%s)",
		strings.ToUpper(r.Stat), r.Die, r.Modifier, r.Total, r.DC, verdict)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
