package game

import (
	"testing"

	"github.com/civmodel/civkernel/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectTagIsExclusive(t *testing.T) {
	h := newHarness(t)
	u := h.actor(h.red, unitSpec("u", 10, 1, 1))

	var log []string
	first, err := h.game.NewActorEffect(u, "spy", TagStatBoost, 3, newSpy("first", &log))
	require.NoError(t, err)
	second, err := h.game.NewActorEffect(u, "spy", TagStatBoost, 3, newSpy("second", &log))
	require.NoError(t, err)

	require.NoError(t, first.EffectOn())
	require.NoError(t, second.EffectOn())

	assert.Equal(t, []string{"first.on", "first.off", "second.on"}, log)
	assert.False(t, first.Enabled())
	assert.True(t, second.Enabled())
	assert.Same(t, second, u.EffectByTag(TagStatBoost))
	assert.Equal(t, []*Effect{second}, u.Effects())
}

func TestEffectDoubleEnableFails(t *testing.T) {
	h := newHarness(t)
	u := h.actor(h.red, unitSpec("u", 10, 1, 1))
	e, err := h.game.NewActorEffect(u, "spy", TagShield, 2, newSpy("p", nil))
	require.NoError(t, err)

	require.NoError(t, e.EffectOn())
	assert.ErrorIs(t, e.EffectOn(), ErrInvalidOperation)
	require.NoError(t, e.EffectOff())
	assert.ErrorIs(t, e.EffectOff(), ErrInvalidOperation)
	require.NoError(t, e.SetEnabled(false))
}

func TestDestroyNotifiesEffectsOnce(t *testing.T) {
	h := newHarness(t)
	u := h.actor(h.red, unitSpec("u", 10, 1, 1))

	p1 := newSpy("a", nil)
	p2 := newSpy("b", nil)
	e1, err := h.game.NewActorEffect(u, "spy", TagShield, DurationIndefinite, p1)
	require.NoError(t, err)
	e2, err := h.game.NewActorEffect(u, "spy", TagSleep, 4, p2)
	require.NoError(t, err)
	require.NoError(t, e1.EffectOn())
	require.NoError(t, e2.EffectOn())

	require.NoError(t, u.Destroy())

	for _, p := range []*spy{p1, p2} {
		assert.Equal(t, 1, p.destroyed)
		assert.Equal(t, 0, p.off)
	}
	for _, e := range []*Effect{e1, e2} {
		_, ok := e.Target()
		assert.False(t, ok)
		assert.False(t, e.Enabled())
		assert.ErrorIs(t, e.EffectOn(), ErrInvalidOperation)
	}
	assert.Empty(t, u.Effects())
	assert.ErrorIs(t, u.Destroy(), ErrInvalidOperation)
}

func TestEffectOnDestroyedActorFails(t *testing.T) {
	h := newHarness(t)
	u := h.actor(h.red, unitSpec("u", 10, 1, 1))
	require.NoError(t, u.Destroy())

	_, err := h.game.NewActorEffect(u, "spy", TagShield, 1, newSpy("p", nil))
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestEffectExpiresAfterDuration(t *testing.T) {
	h := newHarness(t)
	u := h.actor(h.red, unitSpec("u", 10, 1, 1))
	p := newSpy("p", nil)
	e, err := h.game.NewActorEffect(u, "spy", TagCloak, 2, p)
	require.NoError(t, err)
	require.NoError(t, e.EffectOn())
	assert.Equal(t, 2, e.LeftTurn())

	h.fullTurn()
	assert.True(t, e.Enabled())
	assert.Equal(t, 1, e.LeftTurn())

	h.fullTurn()
	assert.False(t, e.Enabled())
	assert.Equal(t, 1, p.off)
	assert.Nil(t, u.EffectByTag(TagCloak))

	expired := h.eventsOf(EventEffectExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, e.ID(), expired[0].SourceID)
	assert.Equal(t, u.ID(), expired[0].TargetID)
}

func TestIndefiniteEffectNeverExpires(t *testing.T) {
	h := newHarness(t)
	e, err := h.game.NewPlayerEffect(h.blue, "spy", TagOwnership, DurationIndefinite, newSpy("p", nil))
	require.NoError(t, err)
	require.NoError(t, e.EffectOn())

	for range 5 {
		h.fullTurn()
	}
	assert.True(t, e.Enabled())
	assert.Equal(t, -1, e.LeftTurn())
	assert.Same(t, e, h.blue.EffectByTag(TagOwnership))
}

func TestExpiringEffectDoesNotDisturbSiblings(t *testing.T) {
	h := newHarness(t)
	u := h.actor(h.red, unitSpec("u", 10, 1, 1))

	spies := []*spy{newSpy("a", nil), newSpy("b", nil), newSpy("c", nil)}
	tags := []EffectTag{TagShield, TagSleep, TagCloak}
	durations := []int{5, 1, 5}
	effects := make([]*Effect, len(spies))
	for i, p := range spies {
		e, err := h.game.NewActorEffect(u, "spy", tags[i], durations[i], p)
		require.NoError(t, err)
		require.NoError(t, e.EffectOn())
		effects[i] = e
	}

	h.fullTurn()

	for i, p := range spies {
		assert.Equal(t, 1, p.count(rules.PhasePostTurn), "effect %d", i)
	}
	assert.Equal(t, 4, effects[0].LeftTurn())
	assert.False(t, effects[1].Enabled())
	assert.Equal(t, 4, effects[2].LeftTurn())
}

func TestEffectTurnedOnMidPhaseWaitsForNextPhase(t *testing.T) {
	h := newHarness(t)
	u := h.actor(h.red, unitSpec("u", 10, 1, 1))
	late := newSpy("late", nil)
	lateEffect, err := h.game.NewActorEffect(u, "spy", TagCloak, 3, late)
	require.NoError(t, err)

	spawner, err := h.game.NewActorEffect(u, "spawner", TagShield, 3, &spawnOnPhase{
		phase: rules.PhasePreTurn,
		spawn: func() { require.NoError(t, lateEffect.EffectOn()) },
	})
	require.NoError(t, err)
	require.NoError(t, spawner.EffectOn())

	require.NoError(t, h.game.StartTurn())
	assert.Equal(t, 0, late.count(rules.PhasePreTurn))
	assert.Equal(t, 1, late.count(rules.PhaseAfterPreTurn))
}

type spawnOnPhase struct {
	phase rules.Phase
	spawn func()
	done  bool
}

func (s *spawnOnPhase) OnEffectOn(*Effect)      {}
func (s *spawnOnPhase) OnEffectOff(*Effect)     {}
func (s *spawnOnPhase) OnTargetDestroy(*Effect) {}

func (s *spawnOnPhase) OnEffectPhase(_ *Effect, ctx rules.PhaseContext) {
	if ctx.Phase == s.phase && !s.done {
		s.done = true
		s.spawn()
	}
}

func TestPlayerEffectFollowsPlayerDispatch(t *testing.T) {
	h := newHarness(t)
	p := newSpy("player", nil)
	e, err := h.game.NewPlayerEffect(h.red, "spy", TagStatBoost, 1, p)
	require.NoError(t, err)
	require.NoError(t, e.EffectOn())

	h.fullTurn()
	assert.False(t, e.Enabled())
	assert.Equal(t, 1, p.count(rules.PhasePreTurn))
	assert.Equal(t, 2, p.count(rules.PhasePreSubTurn))
}

func TestEffectHandleLivesWhileEnabled(t *testing.T) {
	h := newHarness(t)
	u := h.actor(h.red, unitSpec("u", 10, 1, 1))
	base := h.game.EffectCount()

	e, err := h.game.NewActorEffect(u, "spy", TagShield, 2, newSpy("p", nil))
	require.NoError(t, err)
	assert.True(t, e.Handle().IsNil())

	require.NoError(t, e.EffectOn())
	got, ok := h.game.Effect(e.Handle())
	require.True(t, ok)
	assert.Same(t, e, got)
	stale := e.Handle()

	require.NoError(t, e.EffectOff())
	assert.True(t, e.Handle().IsNil())
	_, ok = h.game.Effect(stale)
	assert.False(t, ok)

	for range 100 {
		e, err := h.game.NewActorEffect(u, "spy", TagSleep, 1, newSpy("q", nil))
		require.NoError(t, err)
		require.NoError(t, e.EffectOn())
		require.NoError(t, e.EffectOff())
	}
	assert.Equal(t, base, h.game.EffectCount())
	_, ok = h.game.Effect(stale)
	assert.False(t, ok, "a reused slot does not revive an old handle")
}

func TestExpiredAndDestroyedEffectsFreeTheirSlots(t *testing.T) {
	h := newHarness(t)
	u := h.actor(h.red, unitSpec("u", 10, 1, 1))
	base := h.game.EffectCount()

	short, err := h.game.NewActorEffect(u, "spy", TagShield, 1, newSpy("short", nil))
	require.NoError(t, err)
	long, err := h.game.NewActorEffect(u, "spy", TagSleep, DurationIndefinite, newSpy("long", nil))
	require.NoError(t, err)
	require.NoError(t, short.EffectOn())
	require.NoError(t, long.EffectOn())
	assert.Equal(t, base+2, h.game.EffectCount())

	h.fullTurn()
	assert.False(t, short.Enabled())
	assert.Equal(t, base+1, h.game.EffectCount())

	require.NoError(t, u.Destroy())
	assert.Equal(t, base, h.game.EffectCount())
}

// attachedOnDestroy records whether its target still listed it when notified.
type attachedOnDestroy struct {
	spy
	attached bool
}

func (a *attachedOnDestroy) OnTargetDestroy(e *Effect) {
	a.spy.OnTargetDestroy(e)
	if target, ok := e.Target(); ok {
		a.attached = target.EffectByTag(e.Tag()) == e
	}
}

func TestDestroyNotifiesBeforeDetaching(t *testing.T) {
	h := newHarness(t)
	u := h.actor(h.red, unitSpec("u", 10, 1, 1))

	b := &attachedOnDestroy{spy: spy{name: "watch"}}
	e, err := h.game.NewActorEffect(u, "spy", TagCloak, 2, b)
	require.NoError(t, err)
	require.NoError(t, e.EffectOn())

	require.NoError(t, u.Destroy())
	assert.Equal(t, 1, b.destroyed)
	assert.True(t, b.attached)
	assert.Empty(t, u.Effects())
}
