package game

import (
	"fmt"
	"iter"
	"math"

	"github.com/civmodel/civkernel/internal/game/arena"
	"github.com/civmodel/civkernel/internal/game/rules"
	"go.uber.org/zap"
)

// Flags is the actor's boolean state.
type Flags uint8

const (
	FlagControllable Flags = 1 << iota
	FlagSkip
	FlagSleep
	FlagCloaked
)

// Has reports whether every bit of f2 is set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Actor is a combatant or ownable entity on the board: a unit, a tile building or a city.
//
// An actor is owned by exactly one player until it is destroyed. A destroyed actor keeps its
// ID and prototype for reporting, but every mutator fails with ErrInvalidOperation.
type Actor struct {
	id     string
	handle arena.Handle
	game   *Game
	spec   *ActorSpec
	owner  *Player

	placed   bool
	position Point

	remainAP float64
	remainHP float64
	flags    Flags

	effects     *rules.SafeList[*Effect]
	effectByTag map[EffectTag]*Effect
	modifiers   []Modifier

	path      []Point
	cooldowns []int

	// deaths counts death transitions, including captures, so battles can tell who died.
	deaths    int
	destroyed bool
}

// ID returns the actor's GUID.
func (a *Actor) ID() string { return a.id }

// Handle returns the actor's arena handle. It becomes stale once the actor is destroyed.
func (a *Actor) Handle() arena.Handle { return a.handle }

// Game returns the game the actor belongs to.
func (a *Actor) Game() *Game { return a.game }

// Spec returns the actor's prototype.
func (a *Actor) Spec() *ActorSpec { return a.spec }

// Kind returns the prototype kind.
func (a *Actor) Kind() string { return a.spec.Kind }

// Owner returns the owning player, or nil once destroyed.
func (a *Actor) Owner() *Player { return a.owner }

// IsDestroyed reports whether the actor has been destroyed.
func (a *Actor) IsDestroyed() bool { return a.destroyed }

// Detached implements rules.Detachable.
func (a *Actor) Detached() bool { return a.destroyed }

func (a *Actor) IsUnit() bool { return a.spec.Category == CategoryUnit }

func (a *Actor) IsCity() bool { return a.spec.Category == CategoryCity }

// Position returns the tile the actor stands on and whether it is placed.
func (a *Actor) Position() (Point, bool) { return a.position, a.placed }

func (a *Actor) MaxAP() float64 { return a.spec.MaxAP }

func (a *Actor) MaxHP() float64 { return a.spec.MaxHP }

func (a *Actor) RemainAP() float64 { return a.remainAP }

func (a *Actor) RemainHP() float64 { return a.remainHP }

// AttackPower returns the prototype's attack power before battle modifiers.
func (a *Actor) AttackPower() float64 { return a.spec.AttackPower }

// DefencePower returns the prototype's defence power before battle modifiers.
func (a *Actor) DefencePower() float64 { return a.spec.DefencePower }

func (a *Actor) BattleClassLevel() int { return a.spec.BattleClassLevel }

// MaxHealPerTurn returns the HP restored at every PreTurn.
func (a *Actor) MaxHealPerTurn() float64 {
	if a.spec.NoHeal {
		return 0
	}
	if a.spec.MaxHealPerTurn == 0 {
		return a.game.defaultHeal
	}
	return a.spec.MaxHealPerTurn
}

// Flags returns the current flag set.
func (a *Actor) Flags() Flags { return a.flags }

// HasFlag reports whether f is set.
func (a *Actor) HasFlag(f Flags) bool { return a.flags.Has(f) }

// SetFlag sets or clears f.
func (a *Actor) SetFlag(f Flags, on bool) error {
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	if on {
		a.flags |= f
	} else {
		a.flags &^= f
	}
	return nil
}

// Cooldown returns the turns left before the n-th special action is usable again.
func (a *Actor) Cooldown(n int) int {
	if n < 0 || n >= len(a.cooldowns) {
		return 0
	}
	return a.cooldowns[n]
}

// SetCooldown overrides a special action's cooldown, e.g. when restoring a saved game.
func (a *Actor) SetCooldown(n, turns int) error {
	if n < 0 || n >= len(a.cooldowns) {
		return fmt.Errorf("%w: special action %d does not exist", ErrOutOfRange, n)
	}
	if turns < 0 {
		return fmt.Errorf("%w: cooldown %d is negative", ErrOutOfRange, turns)
	}
	a.cooldowns[n] = turns
	return nil
}

// SetRemainAP sets the remaining AP. Values within epsilon of a bound snap to it.
func (a *Actor) SetRemainAP(v float64) error {
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	v = rules.Snap(v, 0, a.spec.MaxAP, a.game.epsilon)
	if v < 0 || v > a.spec.MaxAP || math.IsNaN(v) {
		return fmt.Errorf("%w: RemainAP %v is not in [0, %v]", ErrOutOfRange, v, a.spec.MaxAP)
	}
	a.remainAP = v
	return nil
}

// SetRemainHP sets the remaining HP. Reaching 0 with a nonzero MaxHP starts the death transition.
func (a *Actor) SetRemainHP(v float64) error {
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	v = rules.Snap(v, 0, a.spec.MaxHP, a.game.epsilon)
	if v < 0 || v > a.spec.MaxHP || math.IsNaN(v) {
		return fmt.Errorf("%w: RemainHP %v is not in [0, %v]", ErrOutOfRange, v, a.spec.MaxHP)
	}
	a.remainHP = v
	if v == 0 && a.spec.MaxHP != 0 {
		a.Die(nil)
	}
	return nil
}

// CanConsumeAP reports whether amount AP is available.
func (a *Actor) CanConsumeAP(amount float64) bool {
	if a.destroyed || amount < 0 {
		return false
	}
	return amount <= a.remainAP || rules.ApproxEqual(amount, a.remainAP, a.game.epsilon)
}

// ConsumeAP spends amount AP.
func (a *Actor) ConsumeAP(amount float64) error {
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	if amount < 0 {
		return fmt.Errorf("%w: AP amount %v is negative", ErrInvalidArgument, amount)
	}
	if !a.CanConsumeAP(amount) {
		return fmt.Errorf("%w: AP amount %v exceeds RemainAP %v", ErrOutOfRange, amount, a.remainAP)
	}
	a.remainAP = rules.Clamp(rules.Snap(a.remainAP-amount, 0, a.spec.MaxAP, a.game.epsilon), 0, a.spec.MaxAP)
	return nil
}

// ConsumeAllAP spends every remaining AP.
func (a *Actor) ConsumeAllAP() error {
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	a.remainAP = 0
	return nil
}

// Heal restores up to amount HP.
func (a *Actor) Heal(amount float64) error {
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	if amount < 0 {
		return fmt.Errorf("%w: heal amount %v is negative", ErrInvalidArgument, amount)
	}
	return a.SetRemainHP(math.Min(a.spec.MaxHP, a.remainHP+amount))
}

// GetDamage applies amount damage, clamping HP to [0, MaxHP]. A negative amount heals.
// opposite is credited with the kill if the actor dies.
func (a *Actor) GetDamage(amount float64, opposite *Player) error {
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	if math.IsNaN(amount) {
		return fmt.Errorf("%w: damage is NaN", ErrInvalidArgument)
	}
	hp := rules.Snap(a.remainHP-amount, 0, a.spec.MaxHP, a.game.epsilon)
	a.remainHP = rules.Clamp(hp, 0, a.spec.MaxHP)
	if a.remainHP == 0 && a.spec.MaxHP != 0 {
		a.Die(opposite)
	}
	return nil
}

// Die runs the death transition. opposite is the player that caused the death, or nil.
//
// Death handlers among the modifiers run first and may prevent the death. Otherwise a city
// killed by another player is captured, and anything else is destroyed.
func (a *Actor) Die(opposite *Player) {
	if a.destroyed {
		return
	}
	for _, m := range a.modifierSnapshot() {
		if h, ok := m.(DeathHandler); ok && h.PreventDeath(a, opposite) {
			a.game.logger.Debug("death prevented",
				zapActor(a),
				zap.String("modifier", m.ModifierName()),
			)
			return
		}
	}

	a.deaths++
	a.game.logger.Debug("actor died",
		zapActor(a),
		zapPlayer(opposite),
	)

	if a.IsCity() && opposite != nil && opposite != a.owner {
		a.capture(opposite)
		return
	}
	if err := a.Destroy(); err != nil {
		a.game.logger.Warn("destroy on death failed", zapActor(a), zap.Error(err))
	}
}

func (a *Actor) capture(by *Player) {
	if a.placed {
		if u := a.game.UnitAt(a.position); u != nil && u.owner != by {
			u.Die(by)
		}
	}
	if err := a.ChangeOwner(by); err != nil {
		a.game.logger.Warn("capture failed", zapActor(a), zap.Error(err))
		return
	}
	a.remainHP = rules.Clamp(a.spec.MaxHP*a.game.captureRatio, 0, a.spec.MaxHP)
	a.game.logger.Info("city captured",
		zapActor(a),
		zapPlayer(by),
		zap.Float64("hp", a.remainHP),
	)
}

// ChangeOwner transfers the actor to newOwner.
func (a *Actor) ChangeOwner(newOwner *Player) error {
	if newOwner == nil {
		return fmt.Errorf("%w: new owner is nil", ErrInvalidArgument)
	}
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	if newOwner.game != a.game {
		return fmt.Errorf("%w: new owner belongs to another game", ErrInvalidArgument)
	}
	prev := a.owner
	if newOwner == prev {
		return nil
	}

	prev.removeActor(a)
	newOwner.addActor(a)
	a.owner = newOwner
	a.path = nil

	if !a.IsUnit() && a.placed {
		newOwner.TryAddTerritory(a.position)
	}

	evt := a.game.newEvent(EventOwnerChanged, a.id, "", newOwner)
	evt.Payload = OwnerChange{Actor: a, From: prev, To: newOwner}
	a.game.bus.Publish(evt)
	return nil
}

// OwnerChange is the payload of OWNER_CHANGED.
type OwnerChange struct {
	Actor *Actor
	From  *Player
	To    *Player
}

// Destroy removes the actor from the game. Attached effects are notified first and detached.
func (a *Actor) Destroy() error {
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is already destroyed", ErrInvalidOperation, a.id)
	}
	g := a.game
	prevOwner := a.owner

	for e := range a.effects.All() {
		e.targetDestroyed()
	}

	prevOwner.removeActor(a)
	g.unplace(a)
	g.actors.Remove(a.handle)
	delete(g.actorByID, a.id)

	a.owner = nil
	a.destroyed = true
	a.path = nil
	a.modifiers = nil

	g.logger.Debug("actor destroyed",
		zapActor(a),
		zapPlayer(prevOwner),
	)
	evt := g.newEvent(EventActorDestroyed, a.id, "", prevOwner)
	evt.Payload = a
	g.bus.Publish(evt)
	return nil
}

// Effects returns the effects currently attached to the actor.
func (a *Actor) Effects() []*Effect {
	return a.effects.Items()
}

// EffectByTag returns the enabled effect holding tag, or nil.
func (a *Actor) EffectByTag(tag EffectTag) *Effect {
	return a.effectByTag[tag]
}

func (a *Actor) attachEffect(e *Effect) {
	a.effectByTag[e.tag] = e
	a.effects.Add(e)
}

func (a *Actor) detachEffect(e *Effect) {
	if a.effectByTag[e.tag] == e {
		delete(a.effectByTag, e.tag)
	}
	a.effects.Remove(e)
}

// AddModifier appends m to the actor's battle modifier list. Modifiers run in insertion order.
// m must be comparable so RemoveModifier can find it; pointer types are.
func (a *Actor) AddModifier(m Modifier) error {
	if m == nil {
		return fmt.Errorf("%w: modifier is nil", ErrInvalidArgument)
	}
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	a.modifiers = append(a.modifiers, m)
	return nil
}

// RemoveModifier removes m and reports whether it was present.
func (a *Actor) RemoveModifier(m Modifier) bool {
	for i, existing := range a.modifiers {
		if existing == m {
			a.modifiers = append(a.modifiers[:i:i], a.modifiers[i+1:]...)
			return true
		}
	}
	return false
}

// Modifiers returns a copy of the modifier list.
func (a *Actor) Modifiers() []Modifier {
	return a.modifierSnapshot()
}

func (a *Actor) modifierSnapshot() []Modifier {
	out := make([]Modifier, len(a.modifiers))
	copy(out, a.modifiers)
	return out
}

// Path returns the queued auto-walk path.
func (a *Actor) Path() []Point {
	out := make([]Point, len(a.path))
	copy(out, a.path)
	return out
}

// SetPath queues tiles to walk through at the end of the owner's subturns.
func (a *Actor) SetPath(path []Point) error {
	if a.destroyed {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	if len(path) > 0 && !a.Supports(ActionMove) {
		return fmt.Errorf("%w: actor %s cannot move", ErrInvalidOperation, a.spec.Kind)
	}
	a.path = append([]Point(nil), path...)
	return nil
}

// ReceivePhase implements rules.Node.
func (a *Actor) ReceivePhase(ctx rules.PhaseContext) {
	switch ctx.Phase {
	case rules.PhasePreTurn:
		a.remainAP = a.spec.MaxAP
		a.flags &^= FlagSkip
		if heal := a.MaxHealPerTurn(); heal > 0 {
			a.remainHP = math.Min(a.spec.MaxHP, a.remainHP+heal)
		}
		for i := range a.cooldowns {
			if a.cooldowns[i] > 0 {
				a.cooldowns[i]--
			}
		}
	case rules.PhasePostSubTurn:
		if a.owner != nil && ctx.PlayerInTurn == a.owner.index {
			a.autoWalk()
		}
	}
}

// PhaseChildren implements rules.Node: the attached effects.
func (a *Actor) PhaseChildren(dir rules.Direction) iter.Seq[rules.Node] {
	return asNodes(a.effects.Snapshot().Walk(dir))
}

func (a *Actor) autoWalk() {
	for len(a.path) > 0 && !a.destroyed {
		next := a.path[0]
		required, err := a.RequiredAP(ActionMove, next)
		if err != nil {
			a.game.logger.Debug("auto-walk stopped",
				zapActor(a),
				zapPoint(next),
				zap.Error(err),
			)
			if a.game.terrain.Distance(a.position, next) != 1 {
				a.path = nil
			}
			return
		}
		if !a.CanConsumeAP(required) {
			return
		}
		if err := a.ConsumeAP(required); err != nil {
			return
		}
		a.game.moveActor(a, next)
		a.path = a.path[1:]
	}
}

func asNodes[T rules.Node](seq iter.Seq[T]) iter.Seq[rules.Node] {
	return func(yield func(rules.Node) bool) {
		for v := range seq {
			if !yield(v) {
				return
			}
		}
	}
}
