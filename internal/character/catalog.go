package character

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

//go:embed classes.yaml
var classesYAML []byte

// PointBuyRules describes the point-buy budget and cost table
type PointBuyRules struct {
	Budget int         `yaml:"budget" json:"budget"`
	Min    int         `yaml:"min" json:"min"`
	Max    int         `yaml:"max" json:"max"`
	Costs  map[int]int `yaml:"costs" json:"costs"`
}

// Class is a playable character class
type Class struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	HPFormula   string   `yaml:"hp" json:"hpFormula"`
	MPFormula   string   `yaml:"mp" json:"mpFormula"`
	LevelUp     Stats    `yaml:"level_up" json:"levelUp"`
	Portraits   []string `yaml:"portraits" json:"-"`

	hpProgram *vm.Program
	mpProgram *vm.Program
}

// Catalog holds the point-buy rules and every playable class
type Catalog struct {
	PointBuy PointBuyRules `yaml:"point_buy" json:"pointBuy"`
	Classes  []*Class      `yaml:"classes" json:"classes"`

	byID map[string]*Class
}

// LoadCatalog parses a catalog document and compiles the class formulas
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse class catalog: %w", err)
	}
	if c.PointBuy.Budget <= 0 || len(c.PointBuy.Costs) == 0 {
		return nil, fmt.Errorf("class catalog has no point-buy rules")
	}

	c.byID = make(map[string]*Class, len(c.Classes))
	for _, class := range c.Classes {
		id := strings.ToLower(class.ID)
		if id == "" {
			return nil, fmt.Errorf("class without id")
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("duplicate class %q", id)
		}
		class.ID = id

		var err error
		if class.hpProgram, err = compileFormula(class.HPFormula); err != nil {
			return nil, fmt.Errorf("class %s hp formula: %w", id, err)
		}
		if class.mpProgram, err = compileFormula(class.MPFormula); err != nil {
			return nil, fmt.Errorf("class %s mp formula: %w", id, err)
		}
		c.byID[id] = class
	}
	return &c, nil
}

var defaultCatalog *Catalog

func init() {
	c, err := LoadCatalog(classesYAML)
	if err != nil {
		panic(err)
	}
	defaultCatalog = c
}

// Default returns the embedded class catalog
func Default() *Catalog {
	return defaultCatalog
}

// Class looks up a class by id, case-insensitively
func (c *Catalog) Class(id string) (*Class, bool) {
	class, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	return class, ok
}

// ClassIDs returns the known class ids in sorted order
func (c *Catalog) ClassIDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cost returns the point cost of a single score and whether the score is purchasable
func (r PointBuyRules) Cost(score int) (int, bool) {
	cost, ok := r.Costs[score]
	return cost, ok
}

func formulaEnv(abilities Stats) map[string]interface{} {
	return map[string]interface{}{
		"strMod": Modifier(abilities.Str),
		"dexMod": Modifier(abilities.Dex),
		"conMod": Modifier(abilities.Con),
		"intMod": Modifier(abilities.Int),
		"wisMod": Modifier(abilities.Wis),
		"chaMod": Modifier(abilities.Cha),
	}
}

func compileFormula(src string) (*vm.Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty formula")
	}
	return expr.Compile(src, expr.Env(formulaEnv(Stats{})), expr.AsInt())
}

func runFormula(program *vm.Program, abilities Stats) (int, error) {
	out, err := vm.Run(program, formulaEnv(abilities))
	if err != nil {
		return 0, fmt.Errorf("formula evaluation error: %w", err)
	}
	n, ok := out.(int)
	if !ok {
		return 0, fmt.Errorf("formula did not evaluate to an integer")
	}
	return n, nil
}

// DerivedHP computes the starting hit points for the given abilities
func (c *Class) DerivedHP(abilities Stats) (int, error) {
	return runFormula(c.hpProgram, abilities)
}

// DerivedMP computes the starting mana for the given abilities
func (c *Class) DerivedMP(abilities Stats) (int, error) {
	return runFormula(c.mpProgram, abilities)
}

// RandomPortrait picks a portrait key uniformly at random, or "" when the class has none
func (c *Class) RandomPortrait(rng *rand.Rand) string {
	if len(c.Portraits) == 0 {
		return ""
	}
	if rng == nil {
		return c.Portraits[rand.IntN(len(c.Portraits))]
	}
	return c.Portraits[rng.IntN(len(c.Portraits))]
}
