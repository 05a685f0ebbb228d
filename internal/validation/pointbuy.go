package validation

import (
	"math"
	"strings"

	"github.com/qninhdt/ai-adventure/internal/character"
)

// StatAllocation is a submitted character sheet.
// Scores are float64 so non-integer JSON numbers can be rejected instead of truncated.
type StatAllocation struct {
	HP  float64 `json:"hp"`
	MP  float64 `json:"mp"`
	Str float64 `json:"str"`
	Dex float64 `json:"dex"`
	Con float64 `json:"con"`
	Int float64 `json:"int"`
	Wis float64 `json:"wis"`
	Cha float64 `json:"cha"`
}

type score struct {
	name  string
	value float64
}

func (a StatAllocation) abilities() []score {
	return []score{
		{"str", a.Str}, {"dex", a.Dex}, {"con", a.Con},
		{"int", a.Int}, {"wis", a.Wis}, {"cha", a.Cha},
	}
}

// Stats converts an allocation that already passed validation
func (a StatAllocation) Stats() character.Stats {
	return character.Stats{
		HP:  int(a.HP),
		MP:  int(a.MP),
		Str: int(a.Str),
		Dex: int(a.Dex),
		Con: int(a.Con),
		Int: int(a.Int),
		Wis: int(a.Wis),
		Cha: int(a.Cha),
	}
}

func isInteger(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v == math.Trunc(v)
}

// PointCost returns the total cost of the six ability scores under the rules
func PointCost(rules character.PointBuyRules, a StatAllocation) (int, error) {
	total := 0
	for _, ab := range a.abilities() {
		name := strings.ToUpper(ab.name)
		if !isInteger(ab.value) {
			return 0, invalid(ErrInvalidStats, "%s must be an integer", name)
		}
		if ab.value < float64(rules.Min) || ab.value > float64(rules.Max) {
			return 0, invalid(ErrInvalidStats, "%s must be between %d and %d (got %v)", name, rules.Min, rules.Max, ab.value)
		}
		v := int(ab.value)
		cost, ok := rules.Cost(v)
		if !ok {
			return 0, invalid(ErrInvalidStats, "%s has invalid value %d", name, v)
		}
		total += cost
	}
	return total, nil
}

// ValidatePointBuy checks the six ability scores spend exactly the budget
func ValidatePointBuy(rules character.PointBuyRules, a StatAllocation) error {
	spent, err := PointCost(rules, a)
	if err != nil {
		return err
	}
	if spent != rules.Budget {
		return invalid(ErrInvalidStats, "Stats must cost exactly %d points (got %d points)", rules.Budget, spent)
	}
	return nil
}

// ValidateDerivedStats checks submitted hp and mp match the class formulas
func ValidateDerivedStats(class *character.Class, a StatAllocation) error {
	if !isInteger(a.HP) || !isInteger(a.MP) {
		return invalid(ErrInvalidStats, "HP and MP must be integers")
	}
	abilities := a.Stats()
	expectedHP, err := class.DerivedHP(abilities)
	if err != nil {
		return invalid(ErrInvalidStats, "cannot derive HP for %s: %v", class.ID, err)
	}
	expectedMP, err := class.DerivedMP(abilities)
	if err != nil {
		return invalid(ErrInvalidStats, "cannot derive MP for %s: %v", class.ID, err)
	}
	if abilities.HP != expectedHP {
		return invalid(ErrInvalidStats, "HP mismatch for %s: expected %d, got %d", class.ID, expectedHP, abilities.HP)
	}
	if abilities.MP != expectedMP {
		return invalid(ErrInvalidStats, "MP mismatch for %s: expected %d, got %d", class.ID, expectedMP, abilities.MP)
	}
	return nil
}

// ValidateCharacter runs the full point-buy check for a class and returns the accepted stats
func ValidateCharacter(catalog *character.Catalog, classID string, a StatAllocation) (*character.Class, character.Stats, error) {
	class, ok := catalog.Class(classID)
	if !ok {
		return nil, character.Stats{}, invalid(ErrInvalidInput, "unknown character class %q", classID)
	}
	if err := ValidatePointBuy(catalog.PointBuy, a); err != nil {
		return nil, character.Stats{}, err
	}
	if err := ValidateDerivedStats(class, a); err != nil {
		return nil, character.Stats{}, err
	}
	return class, a.Stats(), nil
}
