package effects

import (
	"fmt"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/rules"
	"go.uber.org/zap"
)

// Sleep puts its target to sleep: the sleep flag is set, the actor spends its AP resting every
// turn and heals Heal extra HP. Being attacked wakes it up.
type Sleep struct {
	actorModifier
	Heal float64

	effect *game.Effect
}

// NewSleep creates a sleep effect with heal extra HP per turn.
func NewSleep(heal float64) (*Sleep, error) {
	if err := checkFinite("heal", heal); err != nil {
		return nil, err
	}
	if heal < 0 {
		return nil, fmt.Errorf("%w: heal %v is negative", game.ErrOutOfRange, heal)
	}
	return &Sleep{Heal: heal}, nil
}

func (s *Sleep) Kind() string         { return KindSleep }
func (s *Sleep) Tag() game.EffectTag  { return game.TagSleep }
func (s *Sleep) ModifierName() string { return KindSleep }

func (s *Sleep) OnEffectOn(e *game.Effect) {
	a := s.attach(e, s)
	if a == nil {
		return
	}
	s.effect = e
	if err := a.SetFlag(game.FlagSleep, true); err != nil {
		logger(e).Warn("failed to set sleep flag", effectField(e), zap.Error(err))
	}
}

func (s *Sleep) OnEffectOff(e *game.Effect) {
	if s.target != nil {
		if err := s.target.SetFlag(game.FlagSleep, false); err != nil {
			logger(e).Warn("failed to clear sleep flag", effectField(e), zap.Error(err))
		}
	}
	s.detach(s)
	s.effect = nil
}

func (s *Sleep) OnTargetDestroy(*game.Effect) {
	s.forget()
	s.effect = nil
}

func (s *Sleep) OnEffectPhase(e *game.Effect, ctx rules.PhaseContext) {
	if ctx.Phase != rules.PhasePreTurn || s.target == nil {
		return
	}
	if err := s.target.ConsumeAllAP(); err != nil {
		logger(e).Warn("sleep failed to drain AP", effectField(e), zap.Error(err))
		return
	}
	if s.Heal > 0 {
		if err := s.target.Heal(s.Heal); err != nil {
			logger(e).Warn("sleep heal failed", effectField(e), zap.Error(err))
		}
	}
}

// AfterDamage wakes the target when it was the defender of a battle it survived.
func (s *Sleep) AfterDamage(ctx *game.BattleContext, self *game.Actor) {
	if ctx.IsAttacker(self) || self.IsDestroyed() || s.effect == nil || !s.effect.Enabled() {
		return
	}
	e := s.effect
	if err := e.EffectOff(); err != nil {
		logger(e).Warn("failed to wake up", effectField(e), zap.Error(err))
		return
	}
	logger(e).Debug("woken up by an attack", zap.String("actor", self.ID()))
}

func (s *Sleep) EncodeState() map[string]float64 {
	return map[string]float64{"heal": s.Heal}
}

// Cloak hides its target. A cloaked actor attacks from ambush with its attack power scaled by
// Ambush, and attacking reveals it.
type Cloak struct {
	actorModifier
	Ambush float64

	effect *game.Effect
}

// NewCloak creates a cloak with the given ambush multiplier.
func NewCloak(ambush float64) (*Cloak, error) {
	if err := checkFinite("ambush", ambush); err != nil {
		return nil, err
	}
	if ambush < 0 {
		return nil, fmt.Errorf("%w: ambush %v is negative", game.ErrOutOfRange, ambush)
	}
	return &Cloak{Ambush: ambush}, nil
}

func (c *Cloak) Kind() string         { return KindCloak }
func (c *Cloak) Tag() game.EffectTag  { return game.TagCloak }
func (c *Cloak) ModifierName() string { return KindCloak }

func (c *Cloak) OnEffectOn(e *game.Effect) {
	a := c.attach(e, c)
	if a == nil {
		return
	}
	c.effect = e
	if err := a.SetFlag(game.FlagCloaked, true); err != nil {
		logger(e).Warn("failed to set cloak flag", effectField(e), zap.Error(err))
	}
}

func (c *Cloak) OnEffectOff(e *game.Effect) {
	if c.target != nil {
		if err := c.target.SetFlag(game.FlagCloaked, false); err != nil {
			logger(e).Warn("failed to clear cloak flag", effectField(e), zap.Error(err))
		}
	}
	c.detach(c)
	c.effect = nil
}

func (c *Cloak) OnTargetDestroy(*game.Effect) {
	c.forget()
	c.effect = nil
}

func (c *Cloak) ModifyAttackPower(_ *game.BattleContext, power float64) float64 {
	return power * c.Ambush
}

// AfterDamage reveals the attacker.
func (c *Cloak) AfterDamage(ctx *game.BattleContext, self *game.Actor) {
	if !ctx.IsAttacker(self) || self.IsDestroyed() || c.effect == nil || !c.effect.Enabled() {
		return
	}
	e := c.effect
	if err := e.EffectOff(); err != nil {
		logger(e).Warn("failed to reveal", effectField(e), zap.Error(err))
	}
}

func (c *Cloak) EncodeState() map[string]float64 {
	return map[string]float64{"ambush": c.Ambush}
}
