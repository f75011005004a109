package game

import (
	"fmt"
	"testing"

	"github.com/civmodel/civkernel/internal/game/rules"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// harness is a two-player game on a small hex board.
type harness struct {
	t      *testing.T
	game   *Game
	red    *Player
	blue   *Player
	events []rules.Event
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithTerrain(NewHexGrid(8, 8)),
		WithSeed(7),
	}, opts...)
	g, err := New(opts...)
	require.NoError(t, err)

	h := &harness{t: t, game: g}
	h.red, err = g.AddPlayer("red", 0)
	require.NoError(t, err)
	h.blue, err = g.AddPlayer("blue", 1)
	require.NoError(t, err)

	g.Bus().Subscribe(func(evt rules.Event) {
		h.events = append(h.events, evt)
	}, rules.PriorityPresentation)
	return h
}

func (h *harness) actor(owner *Player, spec *ActorSpec) *Actor {
	h.t.Helper()
	a, err := h.game.NewActor(owner, spec)
	require.NoError(h.t, err)
	return a
}

func (h *harness) placed(owner *Player, spec *ActorSpec, pt Point) *Actor {
	h.t.Helper()
	a, err := h.game.ProduceActor(owner, spec, pt)
	require.NoError(h.t, err)
	return a
}

func (h *harness) eventsOf(typ EventType) []rules.Event {
	var out []rules.Event
	for _, evt := range h.events {
		if evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}

// fullTurn runs one subturn per player.
func (h *harness) fullTurn() {
	h.t.Helper()
	for range h.game.Players() {
		require.NoError(h.t, h.game.StartTurn())
		require.NoError(h.t, h.game.EndTurn())
	}
}

func unitSpec(kind string, hp, atk, def float64) *ActorSpec {
	return &ActorSpec{
		Kind:         kind,
		Category:     CategoryUnit,
		MaxAP:        2,
		MaxHP:        hp,
		AttackPower:  atk,
		DefencePower: def,
		NoHeal:       true,
		Actions:      NewActionSet(ActionMove, ActionHoldingAttack, ActionMovingAttack, ActionPillage),
	}
}

func citySpec(hp, def float64) *ActorSpec {
	return &ActorSpec{
		Kind:         "city",
		Category:     CategoryCity,
		MaxHP:        hp,
		DefencePower: def,
		NoHeal:       true,
	}
}

// spy is an effect behavior that logs its hooks.
type spy struct {
	name      string
	log       *[]string
	on        int
	off       int
	destroyed int
	phases    []rules.Phase
}

func newSpy(name string, log *[]string) *spy {
	return &spy{name: name, log: log}
}

func (p *spy) OnEffectOn(*Effect) {
	p.on++
	p.write("on")
}

func (p *spy) OnEffectOff(*Effect) {
	p.off++
	p.write("off")
}

func (p *spy) OnTargetDestroy(e *Effect) {
	p.destroyed++
	p.write("destroy")
}

func (p *spy) OnEffectPhase(_ *Effect, ctx rules.PhaseContext) {
	p.phases = append(p.phases, ctx.Phase)
}

func (p *spy) EncodeState() map[string]float64 {
	return map[string]float64{"on": float64(p.on)}
}

func (p *spy) write(hook string) {
	if p.log != nil {
		*p.log = append(*p.log, fmt.Sprintf("%s.%s", p.name, hook))
	}
}

func (p *spy) count(phase rules.Phase) int {
	n := 0
	for _, ph := range p.phases {
		if ph == phase {
			n++
		}
	}
	return n
}

// hookModifier runs fn as a before-damage hook.
type hookModifier struct {
	name string
	fn   func(ctx *BattleContext, self *Actor)
}

func (m *hookModifier) ModifierName() string { return m.name }

func (m *hookModifier) BeforeDamage(ctx *BattleContext, self *Actor) { m.fn(ctx, self) }

// scaleModifier multiplies attack power and adds a flat damage reduction.
type scaleModifier struct {
	attackScale float64
	reduction   float64
	afterCalls  int
}

func (m *scaleModifier) ModifierName() string { return "scale" }

func (m *scaleModifier) ModifyAttackPower(_ *BattleContext, power float64) float64 {
	return power * m.attackScale
}

func (m *scaleModifier) ModifyDamage(ctx *BattleContext, self *Actor) {
	dmg := ctx.IncomingDamage(self)
	*dmg = max(*dmg-m.reduction, 0)
}

func (m *scaleModifier) AfterDamage(*BattleContext, *Actor) { m.afterCalls++ }

// lastStand keeps the actor alive at 1 HP once.
type lastStand struct{ used bool }

func (m *lastStand) ModifierName() string { return "last_stand" }

func (m *lastStand) PreventDeath(a *Actor, _ *Player) bool {
	if m.used {
		return false
	}
	m.used = true
	a.remainHP = 1
	return true
}
