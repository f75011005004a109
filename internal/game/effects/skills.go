package effects

import (
	"fmt"

	"github.com/civmodel/civkernel/internal/game"
)

// MindControl is a special action that takes control of an adjacent enemy unit for Duration
// full turns through an Ownership effect. Units standing on a tile building cannot be taken.
type MindControl struct {
	AP            float64
	CooldownTurns int
	Duration      int
}

func (s *MindControl) Name() string        { return "mind_control" }
func (s *MindControl) RequiredAP() float64 { return s.AP }
func (s *MindControl) Cooldown() int       { return s.CooldownTurns }
func (s *MindControl) Reach() int          { return 1 }

func (s *MindControl) Act(actor *game.Actor, pt game.Point) error {
	target, err := enemyInRange(actor, pt, 1, false)
	if err != nil {
		return err
	}
	if actor.Game().TileBuildingAt(pt) != nil {
		return fmt.Errorf("%w: a unit on a tile building cannot change hands", game.ErrInvalidOperation)
	}
	own, err := NewOwnership(actor.Owner())
	if err != nil {
		return err
	}
	_, err = Attach(target, s.Duration, own)
	return err
}

// Strike is a ranged special action: a skill attack of Power against an enemy actor within
// Range tiles. The target does not retaliate.
type Strike struct {
	AP            float64
	CooldownTurns int
	Power         float64
	Range         int
}

func (s *Strike) Name() string        { return "strike" }
func (s *Strike) RequiredAP() float64 { return s.AP }
func (s *Strike) Cooldown() int       { return s.CooldownTurns }
func (s *Strike) Reach() int          { return s.Range }

func (s *Strike) Act(actor *game.Actor, pt game.Point) error {
	target, err := enemyInRange(actor, pt, s.Range, true)
	if err != nil {
		return err
	}
	_, err = actor.Game().ResolveBattle(actor, target, game.BattleParams{
		AttackPower:   s.Power,
		DefencePower:  target.DefencePower(),
		IsSkillAttack: true,
	})
	return err
}

// enemyInRange returns the enemy unit at pt, or an enemy tile building if buildings is set.
func enemyInRange(actor *game.Actor, pt game.Point, reach int, buildings bool) (*game.Actor, error) {
	pos, placed := actor.Position()
	if !placed {
		return nil, fmt.Errorf("%w: actor %s is not placed", game.ErrInvalidOperation, actor.ID())
	}
	g := actor.Game()
	if !g.Terrain().Contains(pt) {
		return nil, fmt.Errorf("%w: %s is outside the board", game.ErrOutOfRange, pt)
	}
	if d := g.Terrain().Distance(pos, pt); d < 1 || d > reach {
		return nil, fmt.Errorf("%w: %s is not within %d tiles", game.ErrOutOfRange, pt, reach)
	}
	target := g.UnitAt(pt)
	if target == nil && buildings {
		target = g.TileBuildingAt(pt)
	}
	if target == nil || target.Owner().IsAlliedWith(actor.Owner()) {
		return nil, fmt.Errorf("%w: no enemy at %s", game.ErrInvalidArgument, pt)
	}
	return target, nil
}
