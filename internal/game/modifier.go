package game

import "math/rand/v2"

// Modifier is an entry in an actor's battle modifier list. A modifier takes part in a battle
// step by also implementing that step's capability interface below; the list is applied
// left to right.
type Modifier interface {
	ModifierName() string
}

// AttackPowerModifier adjusts the attacker's effective attack power. It is only consulted on
// the attacker and must not depend on the defender.
type AttackPowerModifier interface {
	Modifier
	ModifyAttackPower(ctx *BattleContext, power float64) float64
}

// DefencePowerModifier adjusts the defender's effective defence power.
type DefencePowerModifier interface {
	Modifier
	ModifyDefencePower(ctx *BattleContext, power float64) float64
}

// DamageModifier runs on both participants after the default damage is computed.
// It should only change the damage landing on self.
type DamageModifier interface {
	Modifier
	ModifyDamage(ctx *BattleContext, self *Actor)
}

// BeforeDamageHook runs on both participants before any damage lands.
// It may inspect or destroy actors but must not start another battle.
type BeforeDamageHook interface {
	Modifier
	BeforeDamage(ctx *BattleContext, self *Actor)
}

// AfterDamageHook runs on both participants after damage, even if self died or was destroyed.
type AfterDamageHook interface {
	Modifier
	AfterDamage(ctx *BattleContext, self *Actor)
}

// DeathHandler may prevent an actor's death. Returning true leaves the actor alive; the handler
// is then responsible for restoring a valid HP.
type DeathHandler interface {
	Modifier
	PreventDeath(a *Actor, opposite *Player) bool
}

// BattleContext is the state threaded through one battle resolution.
type BattleContext struct {
	Attacker *Actor
	Defender *Actor

	// Owners captured before any damage, so reports survive destruction and capture.
	AttackerOwner *Player
	DefenderOwner *Player

	AttackPower   float64
	DefencePower  float64
	IsMelee       bool
	IsSkillAttack bool

	// AttackerDamage lands on the attacker (melee only); DefenderDamage lands on the defender.
	AttackerDamage float64
	DefenderDamage float64

	Rand *rand.Rand
}

// IsAttacker reports whether self is the attacking side.
func (c *BattleContext) IsAttacker(self *Actor) bool {
	return c.Attacker == self
}

// Opponent returns the other participant.
func (c *BattleContext) Opponent(self *Actor) *Actor {
	if c.Attacker == self {
		return c.Defender
	}
	return c.Attacker
}

// OpponentOwner returns the other participant's owner as of the start of the battle.
func (c *BattleContext) OpponentOwner(self *Actor) *Player {
	if c.Attacker == self {
		return c.DefenderOwner
	}
	return c.AttackerOwner
}

// IncomingDamage returns a pointer to the damage landing on self.
func (c *BattleContext) IncomingDamage(self *Actor) *float64 {
	if c.Attacker == self {
		return &c.AttackerDamage
	}
	return &c.DefenderDamage
}
