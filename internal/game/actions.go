package game

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ActionKind names one capability an actor may have. Special actions are indexed into
// the actor's prototype specials.
type ActionKind uint16

const (
	ActionMove ActionKind = iota
	ActionHoldingAttack
	ActionMovingAttack
	ActionPillage

	specialBase ActionKind = 0x100
)

// Special returns the kind of the n-th special action.
func Special(n uint8) ActionKind {
	return specialBase + ActionKind(n)
}

// IsSpecial reports whether k names a special action.
func (k ActionKind) IsSpecial() bool {
	return k >= specialBase
}

// SpecialIndex returns the index into ActorSpec.Specials.
func (k ActionKind) SpecialIndex() int {
	return int(k - specialBase)
}

func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionHoldingAttack:
		return "holding_attack"
	case ActionMovingAttack:
		return "moving_attack"
	case ActionPillage:
		return "pillage"
	}
	if k.IsSpecial() {
		return fmt.Sprintf("special_%d", k.SpecialIndex())
	}
	return fmt.Sprintf("action(%d)", uint16(k))
}

// ParseActionKind converts a name produced by String back to its kind.
func ParseActionKind(s string) (ActionKind, error) {
	switch s {
	case "move":
		return ActionMove, nil
	case "holding_attack":
		return ActionHoldingAttack, nil
	case "moving_attack":
		return ActionMovingAttack, nil
	case "pillage":
		return ActionPillage, nil
	}
	var n uint8
	if _, err := fmt.Sscanf(s, "special_%d", &n); err == nil && strings.HasPrefix(s, "special_") {
		return Special(n), nil
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, s)
}

// ActionSet is the set of non-special actions a prototype grants.
type ActionSet uint8

// NewActionSet builds a set from kinds. Special kinds are ignored; they come from ActorSpec.Specials.
func NewActionSet(kinds ...ActionKind) ActionSet {
	var s ActionSet
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

// With returns the set plus k.
func (s ActionSet) With(k ActionKind) ActionSet {
	if k.IsSpecial() || k > ActionPillage {
		return s
	}
	return s | 1<<k
}

// Has reports whether k is in the set.
func (s ActionSet) Has(k ActionKind) bool {
	if k.IsSpecial() || k > ActionPillage {
		return false
	}
	return s&(1<<k) != 0
}

// SpecialAction is a prototype-supplied skill.
type SpecialAction interface {
	Name() string
	// RequiredAP is the AP cost of one use.
	RequiredAP() float64
	// Cooldown is the number of full turns before the skill can be used again.
	Cooldown() int
	// Act performs the skill. Untargeted skills ignore target.
	Act(actor *Actor, target Point) error
}

// Supports reports whether the actor can perform kind at all.
func (a *Actor) Supports(kind ActionKind) bool {
	if kind.IsSpecial() {
		return kind.SpecialIndex() < len(a.spec.Specials)
	}
	return a.spec.Actions.Has(kind)
}

// Actions lists every action kind the actor supports.
func (a *Actor) Actions() []ActionKind {
	var out []ActionKind
	for k := ActionMove; k <= ActionPillage; k++ {
		if a.spec.Actions.Has(k) {
			out = append(out, k)
		}
	}
	for i := range a.spec.Specials {
		out = append(out, Special(uint8(i)))
	}
	return out
}

// RequiredAP returns the AP needed to perform kind toward pt, or an error if the action is illegal.
func (a *Actor) RequiredAP(kind ActionKind, pt Point) (float64, error) {
	if a.destroyed {
		return 0, fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	if !a.Supports(kind) {
		return 0, fmt.Errorf("%w: actor %s does not support %s", ErrInvalidOperation, a.spec.Kind, kind)
	}
	if kind.IsSpecial() {
		idx := kind.SpecialIndex()
		if a.cooldowns[idx] > 0 {
			return 0, fmt.Errorf("%w: %s is cooling down for %d turns",
				ErrInvalidOperation, a.spec.Specials[idx].Name(), a.cooldowns[idx])
		}
		return a.spec.Specials[idx].RequiredAP(), nil
	}
	if !a.placed {
		return 0, fmt.Errorf("%w: actor %s is not placed", ErrInvalidOperation, a.id)
	}
	g := a.game
	if !g.terrain.Contains(pt) {
		return 0, fmt.Errorf("%w: %s is outside the board", ErrOutOfRange, pt)
	}
	if g.terrain.Distance(a.position, pt) != 1 {
		return 0, fmt.Errorf("%w: %s is not adjacent to %s", ErrInvalidArgument, pt, a.position)
	}

	switch kind {
	case ActionMove:
		if g.UnitAt(pt) != nil {
			return 0, fmt.Errorf("%w: %s is occupied", ErrInvalidArgument, pt)
		}
	case ActionHoldingAttack, ActionMovingAttack:
		if a.attackTarget(pt) == nil {
			return 0, fmt.Errorf("%w: no enemy at %s", ErrInvalidArgument, pt)
		}
	case ActionPillage:
		b := g.TileBuildingAt(pt)
		if b == nil || b.IsCity() || !a.isEnemy(b) {
			return 0, fmt.Errorf("%w: no enemy tile building to pillage at %s", ErrInvalidArgument, pt)
		}
	}
	return a.spec.moveCost(), nil
}

// Act performs kind toward pt.
func (a *Actor) Act(kind ActionKind, pt Point) error {
	required, err := a.RequiredAP(kind, pt)
	if err != nil {
		return err
	}
	if !a.CanConsumeAP(required) {
		return fmt.Errorf("%w: %s needs %.2f AP, %.2f left", ErrOutOfRange, kind, required, a.remainAP)
	}

	a.game.logger.Debug("actor action",
		zapActor(a),
		zap.Stringer("action", kind),
		zapPoint(pt),
	)

	if kind.IsSpecial() {
		idx := kind.SpecialIndex()
		skill := a.spec.Specials[idx]
		if err := a.ConsumeAP(required); err != nil {
			return err
		}
		if err := skill.Act(a, pt); err != nil {
			return err
		}
		if !a.destroyed {
			a.cooldowns[idx] = skill.Cooldown()
		}
		return nil
	}

	switch kind {
	case ActionMove:
		if err := a.ConsumeAP(required); err != nil {
			return err
		}
		a.game.moveActor(a, pt)
		return nil
	case ActionHoldingAttack, ActionMovingAttack:
		return a.attack(pt, required, kind == ActionMovingAttack)
	case ActionPillage:
		if err := a.ConsumeAP(required); err != nil {
			return err
		}
		target := a.game.TileBuildingAt(pt)
		_, err := a.game.ResolveBattle(a, target, BattleParams{
			AttackPower:  a.AttackPower(),
			DefencePower: target.DefencePower(),
		})
		if err != nil {
			return err
		}
		if a.destroyed {
			return nil
		}
		return a.ConsumeAllAP()
	}
	return fmt.Errorf("%w: unhandled action %s", ErrInvalidOperation, kind)
}

func (a *Actor) attack(pt Point, required float64, moving bool) error {
	target := a.attackTarget(pt)
	if err := a.ConsumeAP(required); err != nil {
		return err
	}
	result, err := a.game.ResolveBattle(a, target, BattleParams{
		AttackPower:  a.AttackPower(),
		DefencePower: target.DefencePower(),
		IsMelee:      moving || !a.spec.Ranged,
	})
	if err != nil {
		return err
	}
	if a.destroyed {
		return nil
	}
	if err := a.ConsumeAllAP(); err != nil {
		return err
	}
	if moving && result == BattleVictory && a.IsUnit() && a.game.UnitAt(pt) == nil {
		a.game.moveActor(a, pt)
	}
	return nil
}

// attackTarget returns the tile building on pt while it still has HP, otherwise the unit.
func (a *Actor) attackTarget(pt Point) *Actor {
	g := a.game
	if b := g.TileBuildingAt(pt); b != nil && b.remainHP > 0 && a.isEnemy(b) {
		return b
	}
	if u := g.UnitAt(pt); u != nil && a.isEnemy(u) {
		return u
	}
	return nil
}

func (a *Actor) isEnemy(other *Actor) bool {
	if other == nil || other.owner == nil || a.owner == nil {
		return false
	}
	return other.owner != a.owner && !a.owner.IsAlliedWith(other.owner)
}
