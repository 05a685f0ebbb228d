package character

import (
	"math/rand/v2"
	"testing"
)

// TestModifier tests floor division for ability modifiers
func TestModifier(t *testing.T) {
	cases := map[int]int{1: -5, 7: -2, 8: -1, 9: -1, 10: 0, 11: 0, 12: 1, 15: 2, 16: 3, 30: 10}
	for score, want := range cases {
		if got := Modifier(score); got != want {
			t.Errorf("Modifier(%d) = %d, expected %d", score, got, want)
		}
	}
}

// TestDefaultCatalog tests that the embedded catalog loads all classes
func TestDefaultCatalog(t *testing.T) {
	c := Default()
	ids := c.ClassIDs()
	if len(ids) != 3 || ids[0] != "mage" || ids[1] != "rogue" || ids[2] != "warrior" {
		t.Fatalf("Expected mage, rogue, warrior, got %v", ids)
	}
	if c.PointBuy.Budget != 27 {
		t.Errorf("Expected budget 27, got %d", c.PointBuy.Budget)
	}
	if cost, ok := c.PointBuy.Cost(14); !ok || cost != 7 {
		t.Errorf("Expected cost 7 for 14, got %d (%v)", cost, ok)
	}
	if _, ok := c.PointBuy.Cost(16); ok {
		t.Error("Expected 16 to be outside the cost table")
	}
	if _, ok := c.Class("WARRIOR"); !ok {
		t.Error("Expected case-insensitive class lookup")
	}
}

// TestDerivedStats tests the class hp and mp formulas
func TestDerivedStats(t *testing.T) {
	c := Default()
	tests := []struct {
		class  string
		scores Stats
		hp, mp int
	}{
		{"warrior", Stats{Str: 15, Dex: 13, Con: 14, Int: 8, Wis: 10, Cha: 10}, 12, 2},
		{"mage", Stats{Str: 8, Dex: 14, Con: 12, Int: 16, Wis: 10, Cha: 8}, 7, 14},
		{"mage", Stats{Str: 8, Dex: 14, Con: 8, Int: 8, Wis: 10, Cha: 8}, 5, 8},
		{"rogue", Stats{Str: 10, Dex: 15, Con: 12, Int: 10, Wis: 10, Cha: 12}, 9, 6},
		{"rogue", Stats{Str: 10, Dex: 8, Con: 10, Int: 10, Wis: 10, Cha: 12}, 8, 4},
	}
	for _, tt := range tests {
		class, _ := c.Class(tt.class)
		hp, err := class.DerivedHP(tt.scores)
		if err != nil {
			t.Fatalf("Failed to compute hp: %v", err)
		}
		mp, err := class.DerivedMP(tt.scores)
		if err != nil {
			t.Fatalf("Failed to compute mp: %v", err)
		}
		if hp != tt.hp || mp != tt.mp {
			t.Errorf("%s: expected hp=%d mp=%d, got hp=%d mp=%d", tt.class, tt.hp, tt.mp, hp, mp)
		}
	}
}

// TestLoadCatalogRejectsBadFormula tests formula compilation errors
func TestLoadCatalogRejectsBadFormula(t *testing.T) {
	doc := []byte(`
point_buy: {budget: 27, min: 8, max: 15, costs: {8: 0}}
classes:
  - id: bard
    hp: "10 + lute"
    mp: "2"
`)
	if _, err := LoadCatalog(doc); err == nil {
		t.Error("Expected error for unknown formula variable")
	}
}

// TestStatsAccessors tests get and set by name
func TestStatsAccessors(t *testing.T) {
	var s Stats
	if err := s.Set("STR", 14); err != nil {
		t.Fatalf("Failed to set stat: %v", err)
	}
	v, err := s.Get("str")
	if err != nil || v != 14 {
		t.Errorf("Expected str=14, got %d (%v)", v, err)
	}
	if err := s.Set("luck", 1); err == nil {
		t.Error("Expected error for unknown stat")
	}
	sum := s.Add(Stats{HP: 3, Str: 1})
	if sum.HP != 3 || sum.Str != 15 {
		t.Errorf("Unexpected sum %+v", sum)
	}
}

// TestGrantXP tests the level threshold and single-step level ups
func TestGrantXP(t *testing.T) {
	if XPThreshold(1) != 100 || XPThreshold(2) != 150 || XPThreshold(3) != 225 {
		t.Fatalf("Unexpected thresholds %d %d %d", XPThreshold(1), XPThreshold(2), XPThreshold(3))
	}

	warrior, _ := Default().Class("warrior")
	res := warrior.GrantXP(1, 100, 40)
	if res.LeveledUp || res.XP != 140 {
		t.Errorf("Expected no level up at 140 xp, got %+v", res)
	}

	res = warrior.GrantXP(1, 140, 10)
	if !res.LeveledUp || res.Level != 2 || res.Gains.HP != 10 || res.Gains.Str != 2 {
		t.Errorf("Expected level 2 with warrior gains, got %+v", res)
	}

	res = warrior.GrantXP(1, 0, 1000)
	if res.Level != 2 {
		t.Errorf("Expected a single level step, got level %d", res.Level)
	}
}

// TestRandomPortrait tests portrait selection stays inside the pool
func TestRandomPortrait(t *testing.T) {
	rogue, _ := Default().Class("rogue")
	rng := rand.New(rand.NewPCG(1, 2))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[rogue.RandomPortrait(rng)] = true
	}
	if len(seen) != len(rogue.Portraits) {
		t.Errorf("Expected all %d portraits to be picked, got %d", len(rogue.Portraits), len(seen))
	}

	empty := &Class{}
	if empty.RandomPortrait(rng) != "" {
		t.Error("Expected empty portrait for class without pool")
	}
}
