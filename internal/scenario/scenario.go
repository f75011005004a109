// Package scenario reads YAML scenario files describing actor prototypes, players and their
// starting positions, and builds a ready-to-run game from them.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/civmodel/civkernel/internal/game"
	"gopkg.in/yaml.v3"
)

// Skill names accepted in prototype specials.
const (
	SkillMindControl = "mind_control"
	SkillStrike      = "strike"
)

// Quest types accepted in player quests.
const QuestConquest = "conquest"

type Scenario struct {
	Name  string `yaml:"name"`
	Board Board  `yaml:"board"`
	// Endings are offered to every player.
	Endings    []Ending    `yaml:"endings"`
	Prototypes []Prototype `yaml:"prototypes"`
	Players    []Player    `yaml:"players"`
	Placements []Placement `yaml:"placements"`
}

// Board overrides the configured board size when both sides are set.
type Board struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Ending struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Prototype is the YAML form of game.ActorSpec.
type Prototype struct {
	Kind        string   `yaml:"kind"`
	Category    string   `yaml:"category"`
	MaxAP       float64  `yaml:"max_ap"`
	MaxHP       float64  `yaml:"max_hp"`
	Attack      float64  `yaml:"attack"`
	Defence     float64  `yaml:"defence"`
	HealPerTurn float64  `yaml:"heal_per_turn"`
	NoHeal      bool     `yaml:"no_heal"`
	BattleClass int      `yaml:"battle_class"`
	MoveCost    float64  `yaml:"move_cost"`
	Ranged      bool     `yaml:"ranged"`
	Actions     []string `yaml:"actions"`
	Specials    []Skill  `yaml:"specials"`
}

type Skill struct {
	Name     string  `yaml:"name"`
	AP       float64 `yaml:"ap"`
	Cooldown int     `yaml:"cooldown"`
	// Power and Range apply to strike; Duration to mind control.
	Power    float64 `yaml:"power"`
	Range    int     `yaml:"range"`
	Duration int     `yaml:"duration"`
}

type Player struct {
	Name      string   `yaml:"name"`
	Team      int      `yaml:"team"`
	Territory []Point  `yaml:"territory"`
	Effects   []Effect `yaml:"effects"`
	Quests    []Quest  `yaml:"quests"`
}

type Placement struct {
	Kind    string   `yaml:"kind"`
	Owner   string   `yaml:"owner"`
	At      Point    `yaml:"at"`
	Effects []Effect `yaml:"effects"`
}

// Effect attaches a registered effect kind on load. Duration -1 is indefinite.
type Effect struct {
	Kind     string             `yaml:"kind"`
	Duration int                `yaml:"duration"`
	Params   map[string]float64 `yaml:"params"`
}

// Quest names must be unique within a scenario; snapshots resolve quests by name.
type Quest struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Requester   string `yaml:"requester"`
	PostingTurn int    `yaml:"posting_turn"`
	LimitTurn   int    `yaml:"limit_turn"`
	Victories   int    `yaml:"victories"`
	Deploy      bool   `yaml:"deploy"`
}

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (p Point) point() game.Point { return game.Point{X: p.X, Y: p.Y} }

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(b)
}

// Parse decodes a scenario and checks its cross references. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: decode scenario: %w", game.ErrInvalidArgument, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks names and references that the YAML schema cannot express.
func (s *Scenario) Validate() error {
	var errs []error
	if len(s.Players) == 0 {
		errs = append(errs, errors.New("no players"))
	}
	if (s.Board.Width == 0) != (s.Board.Height == 0) || s.Board.Width < 0 || s.Board.Height < 0 {
		errs = append(errs, fmt.Errorf("board %dx%d must set both sides", s.Board.Width, s.Board.Height))
	}

	kinds := make(map[string]bool, len(s.Prototypes))
	for _, p := range s.Prototypes {
		if kinds[p.Kind] {
			errs = append(errs, fmt.Errorf("duplicate prototype %q", p.Kind))
		}
		kinds[p.Kind] = true
	}
	players := make(map[string]bool, len(s.Players))
	quests := make(map[string]bool)
	for _, p := range s.Players {
		if p.Name == "" || players[p.Name] {
			errs = append(errs, fmt.Errorf("player name %q is empty or duplicated", p.Name))
		}
		players[p.Name] = true
		for _, q := range p.Quests {
			if quests[q.Name] {
				errs = append(errs, fmt.Errorf("duplicate quest %q", q.Name))
			}
			quests[q.Name] = true
		}
	}
	for _, p := range s.Players {
		for _, q := range p.Quests {
			if q.Requester != "" && !players[q.Requester] {
				errs = append(errs, fmt.Errorf("quest %s: unknown requester %q", q.Name, q.Requester))
			}
		}
	}
	for i, pl := range s.Placements {
		if !kinds[pl.Kind] {
			errs = append(errs, fmt.Errorf("placement %d: unknown prototype %q", i, pl.Kind))
		}
		if !players[pl.Owner] {
			errs = append(errs, fmt.Errorf("placement %d: unknown owner %q", i, pl.Owner))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: scenario %s: %w", game.ErrInvalidArgument, s.Name, errors.Join(errs...))
	}
	return nil
}
