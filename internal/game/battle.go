package game

import (
	"fmt"

	"go.uber.org/zap"
)

// BattleResult is the terminal outcome of one battle resolution, from the attacker's side.
type BattleResult int

const (
	// BattleDrawAlive means no one died.
	BattleDrawAlive BattleResult = iota
	// BattleDrawDead means both sides died.
	BattleDrawDead
	// BattleVictory means only the defender died.
	BattleVictory
	// BattleDefeated means only the attacker died.
	BattleDefeated
	// BattleCancelled means a hook invalidated a participant before damage was applied.
	BattleCancelled
)

var battleResultNames = map[BattleResult]string{
	BattleDrawAlive: "draw_alive",
	BattleDrawDead:  "draw_dead",
	BattleVictory:   "victory",
	BattleDefeated:  "defeated",
	BattleCancelled: "cancelled",
}

func (r BattleResult) String() string {
	if name, ok := battleResultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("battle_result(%d)", int(r))
}

// BattleParams are the caller-supplied inputs of a battle.
type BattleParams struct {
	AttackPower   float64
	DefencePower  float64
	IsMelee       bool
	IsSkillAttack bool
}

// BattleReport is the payload of BEFORE_BATTLE and AFTER_BATTLE.
// Result and the applied damages are only meaningful in AFTER_BATTLE.
type BattleReport struct {
	Attacker       *Actor
	Defender       *Actor
	AttackerOwner  *Player
	DefenderOwner  *Player
	AttackerDamage float64
	DefenderDamage float64
	IsMelee        bool
	IsSkillAttack  bool
	AttackerDied   bool
	DefenderDied   bool
	Result         BattleResult
}

// AttackTo runs a battle against defender with the actors' own attack and defence powers.
func (a *Actor) AttackTo(defender *Actor, isMelee, isSkillAttack bool) (BattleResult, error) {
	if defender == nil {
		return BattleCancelled, fmt.Errorf("%w: defender is nil", ErrInvalidArgument)
	}
	return a.game.ResolveBattle(a, defender, BattleParams{
		AttackPower:   a.AttackPower(),
		DefencePower:  defender.DefencePower(),
		IsMelee:       isMelee,
		IsSkillAttack: isSkillAttack,
	})
}

// ResolveBattle resolves one attacker-vs-defender exchange.
//
// Modifier lists are snapshotted when the battle starts, so every hook that was registered at
// that moment runs even if its actor is destroyed partway through. If a before-damage hook
// destroys either participant the battle ends as BattleCancelled without applying damage.
func (g *Game) ResolveBattle(attacker, defender *Actor, p BattleParams) (BattleResult, error) {
	if attacker == nil || defender == nil {
		return BattleCancelled, fmt.Errorf("%w: battle participant is nil", ErrInvalidArgument)
	}
	if attacker == defender {
		return BattleCancelled, fmt.Errorf("%w: actor %s cannot battle itself", ErrInvalidArgument, attacker.id)
	}
	if attacker.game != g || defender.game != g {
		return BattleCancelled, fmt.Errorf("%w: battle participant belongs to another game", ErrInvalidArgument)
	}
	if attacker.destroyed || defender.destroyed {
		return BattleCancelled, fmt.Errorf("%w: battle participant is destroyed", ErrInvalidOperation)
	}

	ctx := &BattleContext{
		Attacker:      attacker,
		Defender:      defender,
		AttackerOwner: attacker.owner,
		DefenderOwner: defender.owner,
		IsMelee:       p.IsMelee,
		IsSkillAttack: p.IsSkillAttack,
		Rand:          g.rng,
	}
	attackerMods := attacker.modifierSnapshot()
	defenderMods := defender.modifierSnapshot()

	g.publishBattle(EventBeforeBattle, ctx, &BattleReport{})

	ctx.AttackPower = p.AttackPower
	for _, m := range attackerMods {
		if am, ok := m.(AttackPowerModifier); ok {
			ctx.AttackPower = am.ModifyAttackPower(ctx, ctx.AttackPower)
		}
	}
	ctx.DefencePower = p.DefencePower
	for _, m := range defenderMods {
		if dm, ok := m.(DefencePowerModifier); ok {
			ctx.DefencePower = dm.ModifyDefencePower(ctx, ctx.DefencePower)
		}
	}

	ctx.DefenderDamage = ctx.AttackPower
	if ctx.IsMelee {
		ctx.AttackerDamage = ctx.DefencePower
	}
	forEachModifier[DamageModifier](attackerMods, func(m DamageModifier) { m.ModifyDamage(ctx, attacker) })
	forEachModifier[DamageModifier](defenderMods, func(m DamageModifier) { m.ModifyDamage(ctx, defender) })

	forEachModifier[BeforeDamageHook](attackerMods, func(m BeforeDamageHook) { m.BeforeDamage(ctx, attacker) })
	forEachModifier[BeforeDamageHook](defenderMods, func(m BeforeDamageHook) { m.BeforeDamage(ctx, defender) })

	if attacker.destroyed || defender.destroyed {
		g.logger.Warn("battle cancelled by a hook",
			zap.String("attacker", attacker.id),
			zap.String("defender", defender.id),
			zap.Bool("attacker_destroyed", attacker.destroyed),
			zap.Bool("defender_destroyed", defender.destroyed),
		)
		g.publishBattle(EventAfterBattle, ctx, &BattleReport{Result: BattleCancelled})
		return BattleCancelled, nil
	}

	attackerDeaths := attacker.deaths
	defenderDeaths := defender.deaths

	if err := defender.GetDamage(ctx.DefenderDamage, ctx.AttackerOwner); err != nil {
		return BattleCancelled, fmt.Errorf("apply defender damage: %w", err)
	}
	if ctx.IsMelee && !attacker.destroyed {
		if err := attacker.GetDamage(ctx.AttackerDamage, ctx.DefenderOwner); err != nil {
			return BattleCancelled, fmt.Errorf("apply attacker damage: %w", err)
		}
	}

	forEachModifier[AfterDamageHook](attackerMods, func(m AfterDamageHook) { m.AfterDamage(ctx, attacker) })
	forEachModifier[AfterDamageHook](defenderMods, func(m AfterDamageHook) { m.AfterDamage(ctx, defender) })

	report := &BattleReport{
		AttackerDied: attacker.deaths > attackerDeaths,
		DefenderDied: defender.deaths > defenderDeaths,
	}
	switch {
	case report.AttackerDied && report.DefenderDied:
		report.Result = BattleDrawDead
	case report.DefenderDied:
		report.Result = BattleVictory
	case report.AttackerDied:
		report.Result = BattleDefeated
	default:
		report.Result = BattleDrawAlive
	}

	g.logger.Debug("battle resolved",
		zap.String("attacker", attacker.id),
		zap.String("defender", defender.id),
		zap.Float64("attacker_damage", ctx.AttackerDamage),
		zap.Float64("defender_damage", ctx.DefenderDamage),
		zap.Stringer("result", report.Result),
	)
	g.publishBattle(EventAfterBattle, ctx, report)
	return report.Result, nil
}

// forEachModifier calls fn for every modifier in mods implementing T.
func forEachModifier[T Modifier](mods []Modifier, fn func(T)) {
	for _, m := range mods {
		if t, ok := m.(T); ok {
			fn(t)
		}
	}
}

func (g *Game) publishBattle(eventType EventType, ctx *BattleContext, report *BattleReport) {
	report.Attacker = ctx.Attacker
	report.Defender = ctx.Defender
	report.AttackerOwner = ctx.AttackerOwner
	report.DefenderOwner = ctx.DefenderOwner
	report.IsMelee = ctx.IsMelee
	report.IsSkillAttack = ctx.IsSkillAttack
	if eventType == EventAfterBattle {
		report.AttackerDamage = ctx.AttackerDamage
		report.DefenderDamage = ctx.DefenderDamage
	}

	evt := g.newEvent(eventType, ctx.Attacker.id, ctx.Defender.id, ctx.AttackerOwner)
	if eventType == EventAfterBattle {
		evt.Amount = ctx.DefenderDamage
	}
	evt.Payload = *report
	g.bus.Publish(evt)
}
