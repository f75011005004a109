package scenario

import (
	"fmt"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/effects"
	"github.com/civmodel/civkernel/internal/game/watchers"
	"go.uber.org/zap"
)

// Registry builds the prototype catalog, effect factories, quest factories and endings the
// scenario needs. The same registry restores snapshots of games built from the scenario.
func (s *Scenario) Registry() (game.Registry, error) {
	reg := game.Registry{
		Actors: game.Catalog{},
		Quests: make(map[string]game.QuestFactory),
	}
	effects.Register(&reg)

	for _, p := range s.Prototypes {
		spec, err := p.spec()
		if err != nil {
			return game.Registry{}, err
		}
		if err := reg.Actors.Add(spec); err != nil {
			return game.Registry{}, err
		}
	}
	for _, p := range s.Players {
		for _, q := range p.Quests {
			f, err := q.factory()
			if err != nil {
				return game.Registry{}, err
			}
			reg.Quests[q.Name] = f
		}
	}
	for _, e := range s.Endings {
		ending, err := e.ending()
		if err != nil {
			return game.Registry{}, err
		}
		reg.Endings = append(reg.Endings, ending)
	}
	return reg, nil
}

// Restore rebuilds a stored game of this scenario.
func (s *Scenario) Restore(snap *game.Snapshot, opts ...game.Option) (*game.Game, error) {
	reg, err := s.Registry()
	if err != nil {
		return nil, err
	}
	return game.Restore(snap, reg, s.options(opts)...)
}

func (s *Scenario) options(opts []game.Option) []game.Option {
	out := append([]game.Option(nil), opts...)
	if s.Board.Width > 0 {
		out = append(out, game.WithTerrain(game.NewHexGrid(s.Board.Width, s.Board.Height)))
	}
	return out
}

// Build creates a game from the scenario. opts are applied before the scenario's own board,
// so a scenario board wins over a configured one.
func (s *Scenario) Build(opts ...game.Option) (*game.Game, game.Registry, error) {
	reg, err := s.Registry()
	if err != nil {
		return nil, game.Registry{}, err
	}
	g, err := game.New(s.options(opts)...)
	if err != nil {
		return nil, game.Registry{}, err
	}
	logger := g.Logger().Named("scenario")

	byName := make(map[string]*game.Player, len(s.Players))
	for _, p := range s.Players {
		player, err := g.AddPlayer(p.Name, p.Team)
		if err != nil {
			return nil, game.Registry{}, err
		}
		byName[p.Name] = player
		for _, ending := range reg.Endings {
			if err := player.AddAvailableEnding(ending); err != nil {
				return nil, game.Registry{}, err
			}
		}
		for _, pt := range p.Territory {
			if err := player.AddTerritory(pt.point()); err != nil {
				return nil, game.Registry{}, fmt.Errorf("player %s: %w", p.Name, err)
			}
		}
	}

	for i, pl := range s.Placements {
		spec, err := reg.Actors.Lookup(pl.Kind)
		if err != nil {
			return nil, game.Registry{}, err
		}
		a, err := g.ProduceActor(byName[pl.Owner], spec, pl.At.point())
		if err != nil {
			return nil, game.Registry{}, fmt.Errorf("placement %d: %w", i, err)
		}
		for _, e := range pl.Effects {
			b, err := e.behavior(reg)
			if err != nil {
				return nil, game.Registry{}, fmt.Errorf("placement %d: %w", i, err)
			}
			if _, err := effects.Attach(a, e.Duration, b); err != nil {
				return nil, game.Registry{}, fmt.Errorf("placement %d: %w", i, err)
			}
		}
	}

	// Player effects and quests come after placements so effects such as rally see the
	// starting units.
	for _, p := range s.Players {
		player := byName[p.Name]
		for _, e := range p.Effects {
			b, err := e.behavior(reg)
			if err != nil {
				return nil, game.Registry{}, fmt.Errorf("player %s: %w", p.Name, err)
			}
			if _, err := effects.AttachToPlayer(player, e.Duration, b); err != nil {
				return nil, game.Registry{}, fmt.Errorf("player %s: %w", p.Name, err)
			}
		}
		for _, q := range p.Quests {
			behavior, err := reg.Quests[q.Name](q.questSpec())
			if err != nil {
				return nil, game.Registry{}, err
			}
			quest, err := g.NewQuest(player, byName[q.Requester], q.questSpec(), behavior)
			if err != nil {
				return nil, game.Registry{}, err
			}
			if q.Deploy {
				if err := quest.Deploy(); err != nil {
					return nil, game.Registry{}, err
				}
			}
		}
	}

	logger.Info("scenario built",
		zap.String("scenario", s.Name),
		zap.String("game", g.ID()),
		zap.Int("players", len(s.Players)),
		zap.Int("actors", len(s.Placements)),
	)
	return g, reg, nil
}

func (p Prototype) spec() (*game.ActorSpec, error) {
	category := game.CategoryUnit
	if p.Category != "" {
		c, err := game.ParseCategory(p.Category)
		if err != nil {
			return nil, fmt.Errorf("prototype %s: %w", p.Kind, err)
		}
		category = c
	}
	var actions game.ActionSet
	for _, name := range p.Actions {
		k, err := game.ParseActionKind(name)
		if err != nil {
			return nil, fmt.Errorf("prototype %s: %w", p.Kind, err)
		}
		if k.IsSpecial() {
			return nil, fmt.Errorf("%w: prototype %s: specials are declared under specials", game.ErrInvalidArgument, p.Kind)
		}
		actions = actions.With(k)
	}
	specials := make([]game.SpecialAction, 0, len(p.Specials))
	for _, sk := range p.Specials {
		sa, err := sk.action()
		if err != nil {
			return nil, fmt.Errorf("prototype %s: %w", p.Kind, err)
		}
		specials = append(specials, sa)
	}
	return &game.ActorSpec{
		Kind:             p.Kind,
		Category:         category,
		MaxAP:            p.MaxAP,
		MaxHP:            p.MaxHP,
		AttackPower:      p.Attack,
		DefencePower:     p.Defence,
		MaxHealPerTurn:   p.HealPerTurn,
		NoHeal:           p.NoHeal,
		BattleClassLevel: p.BattleClass,
		MoveCost:         p.MoveCost,
		Ranged:           p.Ranged,
		Actions:          actions,
		Specials:         specials,
	}, nil
}

func (s Skill) action() (game.SpecialAction, error) {
	if s.AP < 0 || s.Cooldown < 0 {
		return nil, fmt.Errorf("%w: skill %s has negative cost", game.ErrOutOfRange, s.Name)
	}
	switch s.Name {
	case SkillMindControl:
		if s.Duration <= 0 {
			return nil, fmt.Errorf("%w: mind control needs a positive duration", game.ErrOutOfRange)
		}
		return &effects.MindControl{AP: s.AP, CooldownTurns: s.Cooldown, Duration: s.Duration}, nil
	case SkillStrike:
		if s.Range <= 0 {
			return nil, fmt.Errorf("%w: strike needs a positive range", game.ErrOutOfRange)
		}
		return &effects.Strike{AP: s.AP, CooldownTurns: s.Cooldown, Power: s.Power, Range: s.Range}, nil
	default:
		return nil, fmt.Errorf("%w: unknown skill %q", game.ErrInvalidArgument, s.Name)
	}
}

func (e Ending) ending() (*game.Ending, error) {
	var t game.EndingType
	switch e.Type {
	case "victory":
		t = game.EndingVictory
	case "defeat":
		t = game.EndingDefeat
	case "draw":
		t = game.EndingDraw
	default:
		return nil, fmt.Errorf("%w: ending %s has unknown type %q", game.ErrInvalidArgument, e.Name, e.Type)
	}
	return &game.Ending{Name: e.Name, Type: t}, nil
}

func (e Effect) behavior(reg game.Registry) (effects.Behavior, error) {
	f, ok := reg.Effects[e.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown effect kind %q", game.ErrInvalidArgument, e.Kind)
	}
	b, err := f(e.Params)
	if err != nil {
		return nil, fmt.Errorf("effect %s: %w", e.Kind, err)
	}
	eb, ok := b.(effects.Behavior)
	if !ok {
		return nil, fmt.Errorf("%w: effect %s does not name its tag", game.ErrInvalidArgument, e.Kind)
	}
	return eb, nil
}

func (q Quest) questSpec() game.QuestSpec {
	return game.QuestSpec{Name: q.Name, PostingTurn: q.PostingTurn, LimitTurn: q.LimitTurn}
}

func (q Quest) factory() (game.QuestFactory, error) {
	switch q.Type {
	case QuestConquest:
		if _, err := watchers.NewConquest(q.Victories); err != nil {
			return nil, fmt.Errorf("quest %s: %w", q.Name, err)
		}
		return watchers.ConquestFactory(q.Victories), nil
	default:
		return nil, fmt.Errorf("%w: quest %s has unknown type %q", game.ErrInvalidArgument, q.Name, q.Type)
	}
}
