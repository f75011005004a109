package effects

import (
	"fmt"
	"math"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/rules"
	"go.uber.org/zap"
)

// StatBoost adds flat attack and defence power to its target while on.
// Effective power never drops below zero.
type StatBoost struct {
	actorModifier
	Attack  float64
	Defence float64
}

// NewStatBoost creates a stat boost. Negative values weaken the target.
func NewStatBoost(attack, defence float64) (*StatBoost, error) {
	if err := checkFinite("attack", attack); err != nil {
		return nil, err
	}
	if err := checkFinite("defence", defence); err != nil {
		return nil, err
	}
	return &StatBoost{Attack: attack, Defence: defence}, nil
}

func (b *StatBoost) Kind() string                 { return KindStatBoost }
func (b *StatBoost) Tag() game.EffectTag          { return game.TagStatBoost }
func (b *StatBoost) ModifierName() string         { return KindStatBoost }
func (b *StatBoost) OnEffectOn(e *game.Effect)    { b.attach(e, b) }
func (b *StatBoost) OnEffectOff(*game.Effect)     { b.detach(b) }
func (b *StatBoost) OnTargetDestroy(*game.Effect) { b.forget() }

func (b *StatBoost) ModifyAttackPower(_ *game.BattleContext, power float64) float64 {
	return math.Max(0, power+b.Attack)
}

func (b *StatBoost) ModifyDefencePower(_ *game.BattleContext, power float64) float64 {
	return math.Max(0, power+b.Defence)
}

func (b *StatBoost) EncodeState() map[string]float64 {
	return map[string]float64{"attack": b.Attack, "defence": b.Defence}
}

// Rally is a player-level effect that heals every unit of the player at the start of each turn,
// on top of the units' own healing.
type Rally struct {
	Heal float64
}

// NewRally creates a rally healing heal HP per turn.
func NewRally(heal float64) (*Rally, error) {
	if err := checkFinite("heal", heal); err != nil {
		return nil, err
	}
	if heal < 0 {
		return nil, fmt.Errorf("%w: heal %v is negative", game.ErrOutOfRange, heal)
	}
	return &Rally{Heal: heal}, nil
}

func (r *Rally) Kind() string        { return KindRally }
func (r *Rally) Tag() game.EffectTag { return TagRally }

func (r *Rally) OnEffectOn(e *game.Effect) {
	if e.TargetPlayer() == nil {
		logger(e).Warn("rally needs a player target", effectField(e))
	}
}

func (r *Rally) OnEffectOff(*game.Effect)     {}
func (r *Rally) OnTargetDestroy(*game.Effect) {}

// OnEffectPhase runs after the player's units refilled on PreTurn.
func (r *Rally) OnEffectPhase(e *game.Effect, ctx rules.PhaseContext) {
	p := e.TargetPlayer()
	if ctx.Phase != rules.PhasePreTurn || p == nil || r.Heal == 0 {
		return
	}
	for _, u := range p.Units() {
		if u.IsDestroyed() {
			continue
		}
		if err := u.Heal(r.Heal); err != nil {
			logger(e).Warn("rally heal failed", effectField(e), zap.String("actor", u.ID()), zap.Error(err))
		}
	}
}

func (r *Rally) EncodeState() map[string]float64 {
	return map[string]float64{"heal": r.Heal}
}
