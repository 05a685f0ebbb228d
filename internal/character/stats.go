package character

import (
	"fmt"
	"strings"
)

// Stat names accepted by stat adjustments (hp and mp included)
var StatNames = []string{"hp", "mp", "str", "dex", "con", "int", "wis", "cha"}

// Ability names that can be rolled against
var AbilityNames = []string{"str", "dex", "con", "int", "wis", "cha"}

// Stats is the full stat block of an adventurer
type Stats struct {
	HP  int `json:"hp" yaml:"hp"`
	MP  int `json:"mp" yaml:"mp"`
	Str int `json:"str" yaml:"str"`
	Dex int `json:"dex" yaml:"dex"`
	Con int `json:"con" yaml:"con"`
	Int int `json:"int" yaml:"int"`
	Wis int `json:"wis" yaml:"wis"`
	Cha int `json:"cha" yaml:"cha"`
}

// NormalizeStat lower-cases a stat name and reports whether it is known
func NormalizeStat(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range StatNames {
		if s == n {
			return n, true
		}
	}
	return n, false
}

// IsAbility reports whether name is one of the six rollable abilities
func IsAbility(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range AbilityNames {
		if s == n {
			return true
		}
	}
	return false
}

// Get returns the value of a stat by name
func (s Stats) Get(name string) (int, error) {
	p, err := s.field(name)
	if err != nil {
		return 0, err
	}
	return *p, nil
}

// Set overwrites a stat by name
func (s *Stats) Set(name string, value int) error {
	p, err := s.field(name)
	if err != nil {
		return err
	}
	*p = value
	return nil
}

// Add returns the element-wise sum of two stat blocks
func (s Stats) Add(o Stats) Stats {
	return Stats{
		HP:  s.HP + o.HP,
		MP:  s.MP + o.MP,
		Str: s.Str + o.Str,
		Dex: s.Dex + o.Dex,
		Con: s.Con + o.Con,
		Int: s.Int + o.Int,
		Wis: s.Wis + o.Wis,
		Cha: s.Cha + o.Cha,
	}
}

// Map returns the stats keyed by name, used for prompts
func (s Stats) Map() map[string]int {
	return map[string]int{
		"hp": s.HP, "mp": s.MP,
		"str": s.Str, "dex": s.Dex, "con": s.Con,
		"int": s.Int, "wis": s.Wis, "cha": s.Cha,
	}
}

// String renders the stat block as "HP 12, MP 2, STR 15, ..."
func (s Stats) String() string {
	parts := make([]string, 0, len(StatNames))
	m := s.Map()
	for _, name := range StatNames {
		parts = append(parts, fmt.Sprintf("%s %d", strings.ToUpper(name), m[name]))
	}
	return strings.Join(parts, ", ")
}

func (s *Stats) field(name string) (*int, error) {
	n, ok := NormalizeStat(name)
	if !ok {
		return nil, fmt.Errorf("unknown stat %q", name)
	}
	switch n {
	case "hp":
		return &s.HP, nil
	case "mp":
		return &s.MP, nil
	case "str":
		return &s.Str, nil
	case "dex":
		return &s.Dex, nil
	case "con":
		return &s.Con, nil
	case "int":
		return &s.Int, nil
	case "wis":
		return &s.Wis, nil
	default:
		return &s.Cha, nil
	}
}

// Modifier returns the ability modifier floor((score-10)/2)
func Modifier(score int) int {
	d := score - 10
	if d < 0 {
		return (d - 1) / 2
	}
	return d / 2
}
