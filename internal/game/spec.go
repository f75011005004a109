package game

import (
	"fmt"
	"sort"
)

// ActorCategory decides which player collection an actor lives in and how it dies.
type ActorCategory int

const (
	CategoryUnit ActorCategory = iota
	CategoryTileBuilding
	CategoryCity
)

var categoryNames = map[ActorCategory]string{
	CategoryUnit:         "unit",
	CategoryTileBuilding: "tile_building",
	CategoryCity:         "city",
}

func (c ActorCategory) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory converts a category name back to its value.
func ParseCategory(s string) (ActorCategory, error) {
	for c, name := range categoryNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown actor category %q", ErrInvalidArgument, s)
}

// ActorSpec is the prototype every actor of one kind is created from.
type ActorSpec struct {
	Kind     string
	Category ActorCategory

	MaxAP        float64
	MaxHP        float64
	AttackPower  float64
	DefencePower float64

	// MaxHealPerTurn is restored at every PreTurn. Zero means the game default unless NoHeal is set.
	MaxHealPerTurn float64
	NoHeal         bool

	BattleClassLevel int

	// MoveCost is the AP needed for one step. Zero means 1.
	MoveCost float64
	// Ranged actors do not take retaliation damage from their holding attacks.
	Ranged bool

	Actions  ActionSet
	Specials []SpecialAction
}

// Validate rejects prototypes whose stats cannot satisfy the actor invariants.
func (s *ActorSpec) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: spec is nil", ErrInvalidArgument)
	}
	if s.Kind == "" {
		return fmt.Errorf("%w: spec kind is empty", ErrInvalidArgument)
	}
	if s.MaxAP < 0 || s.MaxHP < 0 || s.MaxHealPerTurn < 0 || s.MoveCost < 0 {
		return fmt.Errorf("%w: spec %s has negative stats", ErrOutOfRange, s.Kind)
	}
	if s.Category != CategoryUnit && s.Actions.Has(ActionMove) {
		return fmt.Errorf("%w: tile building %s cannot move", ErrInvalidArgument, s.Kind)
	}
	return nil
}

func (s *ActorSpec) moveCost() float64 {
	if s.MoveCost == 0 {
		return 1
	}
	return s.MoveCost
}

// Catalog maps actor kinds to their prototypes.
type Catalog map[string]*ActorSpec

// Add validates and registers a prototype.
func (c Catalog) Add(spec *ActorSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if _, exists := c[spec.Kind]; exists {
		return fmt.Errorf("%w: duplicate actor kind %q", ErrInvalidArgument, spec.Kind)
	}
	c[spec.Kind] = spec
	return nil
}

// Lookup returns the prototype for kind.
func (c Catalog) Lookup(kind string) (*ActorSpec, error) {
	spec, ok := c[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown actor kind %q", ErrInvalidArgument, kind)
	}
	return spec, nil
}

// Kinds returns the registered kinds in sorted order.
func (c Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c))
	for k := range c {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
