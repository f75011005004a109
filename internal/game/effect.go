package game

import (
	"fmt"
	"iter"

	"github.com/civmodel/civkernel/internal/game/arena"
	"github.com/civmodel/civkernel/internal/game/rules"
	"go.uber.org/zap"
)

// EffectTag groups mutually exclusive effects: a target holds at most one enabled effect per tag.
type EffectTag string

const (
	TagOwnership EffectTag = "ownership"
	TagStatBoost EffectTag = "stat_boost"
	TagShield    EffectTag = "shield"
	TagSleep     EffectTag = "sleep"
	TagCloak     EffectTag = "cloak"
)

// DurationIndefinite marks an effect that never expires on its own.
const DurationIndefinite = -1

// EffectBehavior is the part of an effect that changes the target.
type EffectBehavior interface {
	// OnEffectOn applies the effect. It runs after the effect is attached.
	OnEffectOn(e *Effect)
	// OnEffectOff undoes exactly what OnEffectOn did.
	OnEffectOff(e *Effect)
	// OnTargetDestroy cleans up when the target is destroyed while the effect is enabled.
	// The target can still be read but must not be mutated.
	OnTargetDestroy(e *Effect)
}

// EffectPhaseHook is implemented by behaviors that act on turn phases while enabled.
type EffectPhaseHook interface {
	OnEffectPhase(e *Effect, ctx rules.PhaseContext)
}

// EffectStateEncoder is implemented by behaviors with parameters that must survive a snapshot.
type EffectStateEncoder interface {
	EncodeState() map[string]float64
}

// Effect is a timed, taggable modifier attached to an actor or a player.
//
// Effects are created disabled. The target is held by arena handle, so destroying the target
// invalidates the reference rather than leaving a dangling pointer. An enabled effect holds a
// slot in the game's effect arena; turning it off frees the slot.
type Effect struct {
	id     string
	kind   string
	handle arena.Handle
	game   *Game

	actorTarget  arena.Handle
	playerTarget *Player

	tag      EffectTag
	duration int
	leftTurn int
	enabled  bool
	behavior EffectBehavior
}

// effectHost is an actor or a player that effects attach to.
type effectHost interface {
	EffectByTag(tag EffectTag) *Effect
	attachEffect(e *Effect)
	detachEffect(e *Effect)
}

// NewActorEffect creates a disabled effect targeting an actor.
func (g *Game) NewActorEffect(target *Actor, kind string, tag EffectTag, duration int, behavior EffectBehavior) (*Effect, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: effect target is nil", ErrInvalidArgument)
	}
	if target.destroyed {
		return nil, fmt.Errorf("%w: effect target %s is destroyed", ErrInvalidOperation, target.id)
	}
	e, err := g.newEffect(kind, tag, duration, behavior)
	if err != nil {
		return nil, err
	}
	e.actorTarget = target.handle
	return e, nil
}

// NewPlayerEffect creates a disabled effect targeting a player.
func (g *Game) NewPlayerEffect(target *Player, kind string, tag EffectTag, duration int, behavior EffectBehavior) (*Effect, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: effect target is nil", ErrInvalidArgument)
	}
	e, err := g.newEffect(kind, tag, duration, behavior)
	if err != nil {
		return nil, err
	}
	e.playerTarget = target
	return e, nil
}

func (g *Game) newEffect(kind string, tag EffectTag, duration int, behavior EffectBehavior) (*Effect, error) {
	if behavior == nil {
		return nil, fmt.Errorf("%w: effect behavior is nil", ErrInvalidArgument)
	}
	if duration < DurationIndefinite {
		return nil, fmt.Errorf("%w: duration %d is negative and not indefinite", ErrOutOfRange, duration)
	}
	e := &Effect{
		id:       g.newID(),
		kind:     kind,
		game:     g,
		tag:      tag,
		duration: duration,
		leftTurn: -1,
		behavior: behavior,
	}
	return e, nil
}

// Effect resolves the handle of an enabled effect.
func (g *Game) Effect(h arena.Handle) (*Effect, bool) {
	return g.effects.Get(h)
}

// EffectCount returns the number of enabled effects in the game.
func (g *Game) EffectCount() int {
	return g.effects.Len()
}

func (e *Effect) ID() string { return e.id }

// Kind names the behavior, used to rebuild the effect from a snapshot.
func (e *Effect) Kind() string { return e.kind }

func (e *Effect) Tag() EffectTag { return e.tag }

// Duration is the total duration in full turns, or DurationIndefinite.
func (e *Effect) Duration() int { return e.duration }

// LeftTurn is the remaining countdown, or -1 when disabled or indefinite.
func (e *Effect) LeftTurn() int { return e.leftTurn }

func (e *Effect) Enabled() bool { return e.enabled }

// Handle returns the effect's arena handle, or arena.Nil while it is off.
func (e *Effect) Handle() arena.Handle { return e.handle }

func (e *Effect) Behavior() EffectBehavior { return e.behavior }

func (e *Effect) Game() *Game { return e.game }

// Detached implements rules.Detachable.
func (e *Effect) Detached() bool { return !e.enabled }

// Target returns the target actor. It reports false for player effects and once the actor is destroyed.
func (e *Effect) Target() (*Actor, bool) {
	if e.playerTarget != nil {
		return nil, false
	}
	return e.game.actors.Get(e.actorTarget)
}

// TargetPlayer returns the target player of a player effect.
func (e *Effect) TargetPlayer() *Player {
	return e.playerTarget
}

func (e *Effect) host() (effectHost, bool) {
	if e.playerTarget != nil {
		return e.playerTarget, true
	}
	a, ok := e.game.actors.Get(e.actorTarget)
	if !ok {
		return nil, false
	}
	return a, true
}

func (e *Effect) targetID() string {
	if e.playerTarget != nil {
		return e.playerTarget.id
	}
	if a, ok := e.Target(); ok {
		return a.id
	}
	return ""
}

func (e *Effect) targetOwner() *Player {
	if e.playerTarget != nil {
		return e.playerTarget
	}
	if a, ok := e.Target(); ok {
		return a.owner
	}
	return nil
}

// SetEnabled turns the effect on or off. Setting the current state is a no-op.
func (e *Effect) SetEnabled(on bool) error {
	switch {
	case on && !e.enabled:
		return e.EffectOn()
	case !on && e.enabled:
		return e.EffectOff()
	}
	return nil
}

// EffectOn attaches the effect and starts its countdown. An enabled effect with the same tag
// on the target is turned off first.
func (e *Effect) EffectOn() error {
	if e.enabled {
		return fmt.Errorf("%w: effect %s is already turned on", ErrInvalidOperation, e.id)
	}
	host, ok := e.host()
	if !ok {
		return fmt.Errorf("%w: effect %s has no live target", ErrInvalidOperation, e.id)
	}
	if prev := host.EffectByTag(e.tag); prev != nil {
		if err := prev.EffectOff(); err != nil {
			return fmt.Errorf("turn off previous %s effect: %w", e.tag, err)
		}
	}

	host.attachEffect(e)
	e.handle = e.game.effects.Insert(e)
	e.leftTurn = e.duration
	e.enabled = true
	e.behavior.OnEffectOn(e)

	e.game.logger.Debug("effect on",
		zapEffect(e),
		zap.String("target", e.targetID()),
		zap.Int("duration", e.duration),
	)
	e.game.bus.Publish(e.game.newEvent(EventEffectOn, e.id, e.targetID(), e.targetOwner()))
	return nil
}

// EffectOff detaches the effect and undoes it.
func (e *Effect) EffectOff() error {
	if !e.enabled {
		return fmt.Errorf("%w: effect %s is not turned on", ErrInvalidOperation, e.id)
	}
	host, ok := e.host()
	if !ok {
		return fmt.Errorf("%w: effect %s has no live target", ErrInvalidOperation, e.id)
	}

	host.detachEffect(e)
	e.release()
	e.behavior.OnEffectOff(e)

	e.game.logger.Debug("effect off", zapEffect(e))
	e.game.bus.Publish(e.game.newEvent(EventEffectOff, e.id, e.targetID(), e.targetOwner()))
	return nil
}

// setLeftTurn restores a saved countdown on an enabled effect.
func (e *Effect) setLeftTurn(n int) error {
	if !e.enabled {
		return fmt.Errorf("%w: effect %s is not turned on", ErrInvalidOperation, e.id)
	}
	if n < -1 || (e.duration >= 0 && n > e.duration) {
		return fmt.Errorf("%w: left turn %d is not in [-1, %d]", ErrOutOfRange, n, e.duration)
	}
	e.leftTurn = n
	return nil
}

// release marks the effect off and frees its arena slot.
func (e *Effect) release() {
	e.game.effects.Remove(e.handle)
	e.handle = arena.Nil
	e.leftTurn = -1
	e.enabled = false
}

// targetDestroyed notifies the behavior while still attached, then force-detaches the effect
// from a target that is being destroyed.
func (e *Effect) targetDestroyed() {
	if e.enabled {
		e.behavior.OnTargetDestroy(e)
	}
	if a, ok := e.Target(); ok {
		a.detachEffect(e)
	}
	e.actorTarget = arena.Nil
	e.release()
}

// ReceivePhase implements rules.Node. The countdown runs on PostTurn; reaching zero turns the
// effect off from inside the dispatch.
func (e *Effect) ReceivePhase(ctx rules.PhaseContext) {
	if !e.enabled {
		return
	}
	if hook, ok := e.behavior.(EffectPhaseHook); ok {
		hook.OnEffectPhase(e, ctx)
		if !e.enabled {
			return
		}
	}
	if ctx.Phase != rules.PhasePostTurn || e.leftTurn < 0 {
		return
	}
	e.leftTurn--
	if e.leftTurn > 0 {
		return
	}
	if err := e.EffectOff(); err != nil {
		e.game.logger.Warn("effect expiry failed", zapEffect(e), zap.Error(err))
		return
	}
	evt := e.game.newEvent(EventEffectExpired, e.id, e.targetID(), e.targetOwner())
	evt.Payload = e
	e.game.bus.Publish(evt)
}

// PhaseChildren implements rules.Node. Effects are leaves.
func (e *Effect) PhaseChildren(rules.Direction) iter.Seq[rules.Node] {
	return func(func(rules.Node) bool) {}
}
