package effects

import (
	"fmt"

	"github.com/civmodel/civkernel/internal/game"
	"go.uber.org/zap"
)

// DefaultShieldBypassClass is the battle class from which skill attacks ignore damage shields.
const DefaultShieldBypassClass = 4

// DamageShield absorbs all damage landing on its target while it defends, then reflects a share
// of the absorbed damage onto the attacker once damage has been applied.
//
// Skill attacks from an attacker whose battle class is at least BypassClass go through.
type DamageShield struct {
	actorModifier
	Reflect     float64
	BypassClass int

	absorbed float64
}

// NewDamageShield creates a shield reflecting reflect times the absorbed damage.
func NewDamageShield(reflect float64) (*DamageShield, error) {
	if err := checkFinite("reflect", reflect); err != nil {
		return nil, err
	}
	if reflect < 0 {
		return nil, fmt.Errorf("%w: reflect %v is negative", game.ErrOutOfRange, reflect)
	}
	return &DamageShield{Reflect: reflect, BypassClass: DefaultShieldBypassClass}, nil
}

func (s *DamageShield) Kind() string         { return KindDamageShield }
func (s *DamageShield) Tag() game.EffectTag  { return game.TagShield }
func (s *DamageShield) ModifierName() string { return KindDamageShield }

func (s *DamageShield) OnEffectOn(e *game.Effect)    { s.attach(e, s) }
func (s *DamageShield) OnEffectOff(*game.Effect)     { s.detach(s) }
func (s *DamageShield) OnTargetDestroy(*game.Effect) { s.forget() }

// Bypassed reports whether the battle's attack ignores the shield.
func (s *DamageShield) Bypassed(ctx *game.BattleContext) bool {
	return ctx.IsSkillAttack && ctx.Attacker.BattleClassLevel() >= s.BypassClass
}

func (s *DamageShield) ModifyDamage(ctx *game.BattleContext, self *game.Actor) {
	s.absorbed = 0
	if ctx.IsAttacker(self) || s.Bypassed(ctx) {
		return
	}
	s.absorbed = ctx.DefenderDamage
	ctx.DefenderDamage = 0
}

func (s *DamageShield) AfterDamage(ctx *game.BattleContext, self *game.Actor) {
	if ctx.IsAttacker(self) {
		return
	}
	absorbed := s.absorbed
	s.absorbed = 0
	reflected := absorbed * s.Reflect
	if reflected <= 0 || ctx.Attacker.IsDestroyed() {
		return
	}
	self.Game().Logger().Named("effects").Debug("shield reflected damage",
		zap.String("shield", self.ID()),
		zap.String("attacker", ctx.Attacker.ID()),
		zap.Float64("damage", reflected),
	)
	if err := ctx.Attacker.GetDamage(reflected, ctx.DefenderOwner); err != nil {
		self.Game().Logger().Warn("shield reflection failed", zap.Error(err))
	}
}

func (s *DamageShield) EncodeState() map[string]float64 {
	return map[string]float64{"reflect": s.Reflect, "bypass_class": float64(s.BypassClass)}
}

// Evasion lets its target dodge an incoming attack with probability Chance, drawn from the
// battle's random source.
type Evasion struct {
	actorModifier
	Chance float64
}

// NewEvasion creates an evasion effect. chance must be in [0, 1].
func NewEvasion(chance float64) (*Evasion, error) {
	if err := checkFinite("chance", chance); err != nil {
		return nil, err
	}
	if chance < 0 || chance > 1 {
		return nil, fmt.Errorf("%w: chance %v is not in [0, 1]", game.ErrOutOfRange, chance)
	}
	return &Evasion{Chance: chance}, nil
}

func (v *Evasion) Kind() string         { return KindEvasion }
func (v *Evasion) Tag() game.EffectTag  { return TagEvasion }
func (v *Evasion) ModifierName() string { return KindEvasion }

func (v *Evasion) OnEffectOn(e *game.Effect)    { v.attach(e, v) }
func (v *Evasion) OnEffectOff(*game.Effect)     { v.detach(v) }
func (v *Evasion) OnTargetDestroy(*game.Effect) { v.forget() }

func (v *Evasion) ModifyDamage(ctx *game.BattleContext, self *game.Actor) {
	if ctx.IsAttacker(self) || ctx.Rand == nil {
		return
	}
	if ctx.Rand.Float64() < v.Chance {
		ctx.DefenderDamage = 0
	}
}

func (v *Evasion) EncodeState() map[string]float64 {
	return map[string]float64{"chance": v.Chance}
}
