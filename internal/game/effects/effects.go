// Package effects provides the concrete effect behaviors built on the kernel's EffectBehavior:
// stat boosts, damage shields, evasion, sleep, cloak, rally and ownership hijacking, plus the
// special actions that apply them.
package effects

import (
	"fmt"
	"math"

	"github.com/civmodel/civkernel/internal/game"
	"go.uber.org/zap"
)

// Effect kinds, as recorded in snapshots.
const (
	KindStatBoost    = "stat_boost"
	KindRally        = "rally"
	KindDamageShield = "damage_shield"
	KindEvasion      = "evasion"
	KindSleep        = "sleep"
	KindCloak        = "cloak"
	KindOwnership    = "ownership"
)

// Tags for behaviors the kernel has no tag for.
const (
	TagEvasion game.EffectTag = "evasion"
	TagRally   game.EffectTag = "rally"
)

// Behavior is an effect behavior that knows its own kind and tag.
type Behavior interface {
	game.EffectBehavior
	Kind() string
	Tag() game.EffectTag
}

// Attach creates an effect with behavior b on target and turns it on.
func Attach(target *game.Actor, duration int, b Behavior) (*game.Effect, error) {
	if target == nil || b == nil {
		return nil, fmt.Errorf("%w: target and behavior are required", game.ErrInvalidArgument)
	}
	e, err := target.Game().NewActorEffect(target, b.Kind(), b.Tag(), duration, b)
	if err != nil {
		return nil, err
	}
	if err := e.EffectOn(); err != nil {
		return nil, err
	}
	return e, nil
}

// AttachToPlayer creates a player-level effect with behavior b and turns it on.
func AttachToPlayer(target *game.Player, duration int, b Behavior) (*game.Effect, error) {
	if target == nil || b == nil {
		return nil, fmt.Errorf("%w: target and behavior are required", game.ErrInvalidArgument)
	}
	e, err := target.Game().NewPlayerEffect(target, b.Kind(), b.Tag(), duration, b)
	if err != nil {
		return nil, err
	}
	if err := e.EffectOn(); err != nil {
		return nil, err
	}
	return e, nil
}

// Factories returns a snapshot factory for every behavior in this package, keyed by kind.
func Factories() map[string]game.EffectFactory {
	return map[string]game.EffectFactory{
		KindStatBoost: factory(func(p map[string]float64) (*StatBoost, error) {
			return NewStatBoost(p["attack"], p["defence"])
		}),
		KindRally: factory(func(p map[string]float64) (*Rally, error) {
			return NewRally(p["heal"])
		}),
		KindDamageShield: factory(func(p map[string]float64) (*DamageShield, error) {
			s, err := NewDamageShield(p["reflect"])
			if err != nil {
				return nil, err
			}
			if v, ok := p["bypass_class"]; ok {
				s.BypassClass = int(v)
			}
			return s, nil
		}),
		KindEvasion: factory(func(p map[string]float64) (*Evasion, error) {
			return NewEvasion(p["chance"])
		}),
		KindSleep: factory(func(p map[string]float64) (*Sleep, error) {
			return NewSleep(p["heal"])
		}),
		KindCloak: factory(func(p map[string]float64) (*Cloak, error) {
			return NewCloak(param(p, "ambush", 1))
		}),
		KindOwnership: factory(func(p map[string]float64) (*Ownership, error) {
			return restoreOwnership(p)
		}),
	}
}

// Register adds Factories to reg, keeping any factory reg already has for a kind.
func Register(reg *game.Registry) {
	if reg.Effects == nil {
		reg.Effects = make(map[string]game.EffectFactory)
	}
	for kind, f := range Factories() {
		if _, ok := reg.Effects[kind]; !ok {
			reg.Effects[kind] = f
		}
	}
}

func factory[T game.EffectBehavior](build func(map[string]float64) (T, error)) game.EffectFactory {
	return func(p map[string]float64) (game.EffectBehavior, error) {
		b, err := build(p)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func param(p map[string]float64, key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite", game.ErrInvalidArgument, name)
	}
	return nil
}

// actorModifier registers a behavior in its target actor's battle modifier list while the
// effect is on.
type actorModifier struct {
	target *game.Actor
}

func (m *actorModifier) attach(e *game.Effect, mod game.Modifier) *game.Actor {
	a, ok := e.Target()
	if !ok {
		logger(e).Warn("effect needs an actor target", effectField(e))
		return nil
	}
	if err := a.AddModifier(mod); err != nil {
		logger(e).Warn("failed to add modifier", effectField(e), zap.Error(err))
		return nil
	}
	m.target = a
	return a
}

func (m *actorModifier) detach(mod game.Modifier) {
	if m.target != nil {
		m.target.RemoveModifier(mod)
		m.target = nil
	}
}

// forget drops the target without touching it; a dying actor must not be mutated.
func (m *actorModifier) forget() {
	m.target = nil
}

func logger(e *game.Effect) *zap.Logger {
	return e.Game().Logger().Named("effects")
}

func effectField(e *game.Effect) zap.Field {
	return zap.String("effect", e.Kind()+"#"+e.ID())
}
