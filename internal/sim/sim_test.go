package sim

import (
	"context"
	"testing"
	"time"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/effects"
	"github.com/civmodel/civkernel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	t    *testing.T
	g    *game.Game
	red  *game.Player
	blue *game.Player
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g, err := game.New(
		game.WithLogger(zaptest.NewLogger(t)),
		game.WithTerrain(game.NewHexGrid(8, 8)),
		game.WithSeed(5),
	)
	require.NoError(t, err)
	f := &fixture{t: t, g: g}
	f.red, err = g.AddPlayer("red", 0)
	require.NoError(t, err)
	f.blue, err = g.AddPlayer("blue", 1)
	require.NoError(t, err)
	return f
}

func soldier(kind string, hp, atk float64) *game.ActorSpec {
	return &game.ActorSpec{
		Kind:         kind,
		MaxAP:        2,
		MaxHP:        hp,
		AttackPower:  atk,
		DefencePower: 1,
		NoHeal:       true,
		Actions:      game.NewActionSet(game.ActionMove, game.ActionHoldingAttack),
	}
}

func (f *fixture) place(owner *game.Player, spec *game.ActorSpec, x, y int) *game.Actor {
	f.t.Helper()
	a, err := f.g.ProduceActor(owner, spec, game.Point{X: x, Y: y})
	require.NoError(f.t, err)
	return a
}

func TestAutoplayerAttacksAdjacentEnemy(t *testing.T) {
	f := newFixture(t)
	f.place(f.red, soldier("warrior", 10, 10), 1, 1)
	victim := f.place(f.blue, soldier("warrior", 5, 1), 2, 1)

	require.NoError(t, f.g.StartTurn())
	n := NewAutoplayer(zaptest.NewLogger(t)).PlaySubTurn(f.g)
	assert.Equal(t, 1, n)
	assert.True(t, victim.IsDestroyed())
}

func TestAutoplayerStepsTowardEnemy(t *testing.T) {
	f := newFixture(t)
	scout := soldier("scout", 10, 1)
	scout.MaxAP = 1
	mover := f.place(f.red, scout, 0, 0)
	enemy := f.place(f.blue, soldier("warrior", 10, 1), 5, 0)

	require.NoError(t, f.g.StartTurn())
	n := NewAutoplayer(nil).PlaySubTurn(f.g)
	assert.Equal(t, 1, n)

	from, _ := enemy.Position()
	at, placed := mover.Position()
	require.True(t, placed)
	assert.Equal(t, 4, f.g.Terrain().Distance(at, from))
	assert.Equal(t, 0.0, mover.RemainAP())
}

func TestAutoplayerUsesSkillsInReach(t *testing.T) {
	f := newFixture(t)
	archer := soldier("archer", 10, 1)
	archer.Actions = game.NewActionSet()
	archer.Specials = []game.SpecialAction{&effects.Strike{AP: 1, CooldownTurns: 2, Power: 4, Range: 2}}
	shooter := f.place(f.red, archer, 1, 3)
	target := f.place(f.blue, soldier("warrior", 10, 1), 3, 3)

	require.NoError(t, f.g.StartTurn())
	n := NewAutoplayer(nil).PlaySubTurn(f.g)
	assert.Equal(t, 1, n, "the skill cools down after one use")
	assert.Less(t, target.RemainHP(), 10.0)
	assert.Equal(t, 2, shooter.Cooldown(0))
}

func TestAutoplayerIgnoresOtherPlayers(t *testing.T) {
	f := newFixture(t)
	blue := f.place(f.blue, soldier("warrior", 10, 10), 1, 1)
	f.place(f.blue, soldier("warrior", 5, 1), 2, 1)

	require.NoError(t, f.g.StartTurn())
	assert.Zero(t, NewAutoplayer(nil).PlaySubTurn(f.g), "red has nothing to move")
	assert.Equal(t, 2.0, blue.RemainAP())
}

func TestRunnerRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	win := &game.Ending{Name: "conquest", Type: game.EndingVictory}
	loss := &game.Ending{Name: "routed", Type: game.EndingDefeat}
	for _, p := range f.g.Players() {
		require.NoError(t, p.AddAvailableEnding(win))
		require.NoError(t, p.AddAvailableEnding(loss))
	}
	f.place(f.red, soldier("warrior", 10, 10), 1, 1)
	f.place(f.blue, soldier("warrior", 5, 1), 2, 1)

	st := store.NewMemory()
	var reports []TurnReport
	r := NewRunner(f.g,
		WithStore(st),
		WithAutoplayer(NewAutoplayer(nil)),
		WithLogger(zaptest.NewLogger(t)),
		WithTurnHook(func(tr TurnReport) { reports = append(reports, tr) }),
	)
	res, err := r.Run(context.Background(), 5)
	require.NoError(t, err)

	assert.True(t, res.Finished)
	assert.Equal(t, 1, res.Turns)
	assert.Equal(t, 1, res.Actions)
	require.Len(t, res.Snapshots, 1)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Standing)

	assert.Same(t, win, f.red.AchievedEnding())
	assert.Same(t, loss, f.blue.AchievedEnding())

	infos, err := st.List(context.Background(), f.g.ID())
	require.NoError(t, err)
	assert.Equal(t, res.Snapshots, infos)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.place(f.red, soldier("warrior", 10, 1), 0, 0)
	f.place(f.blue, soldier("warrior", 10, 1), 7, 7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewRunner(f.g).Run(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Turns)
}

func TestRunnerNeedsPlayers(t *testing.T) {
	g, err := game.New()
	require.NoError(t, err)
	_, err = NewRunner(g).Run(context.Background(), 1)
	assert.ErrorIs(t, err, game.ErrInvalidOperation)
}

func TestRunnerResumesRestoredGame(t *testing.T) {
	f := newFixture(t)
	spec := soldier("warrior", 10, 1)
	f.place(f.red, spec, 0, 0)
	f.place(f.blue, spec, 7, 7)

	st := store.NewMemory()
	_, err := NewRunner(f.g, WithStore(st)).Run(context.Background(), 2)
	require.NoError(t, err)

	snap, err := store.Latest(context.Background(), st, f.g.ID())
	require.NoError(t, err)
	reg := game.Registry{Actors: game.Catalog{}}
	require.NoError(t, reg.Actors.Add(spec))
	restored, err := game.Restore(snap, reg)
	require.NoError(t, err)
	require.Equal(t, 2, restored.TurnNumber())

	res, err := NewRunner(restored).Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Turns)
	assert.Equal(t, 3, restored.TurnNumber())
}

func TestManagerSessions(t *testing.T) {
	f := newFixture(t)
	f.place(f.red, soldier("warrior", 10, 1), 0, 0)
	f.place(f.blue, soldier("warrior", 10, 1), 7, 7)

	m := NewManager(zaptest.NewLogger(t))
	hooked := 0
	s, err := m.CreateSession("skirmish", f.g,
		WithAutoplayer(NewAutoplayer(nil)),
		WithTurnHook(func(TurnReport) { hooked++ }),
	)
	require.NoError(t, err)
	_, err = m.CreateSession("again", f.g)
	assert.ErrorIs(t, err, game.ErrInvalidArgument)

	got, ok := m.GetSession(f.g.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, SessionStateWaiting, s.Snapshot().State)
	assert.Equal(t, 1, m.GetActiveSessionCount())

	require.NoError(t, s.Start(context.Background(), 3))
	assert.ErrorIs(t, s.Start(context.Background(), 3), game.ErrInvalidOperation)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	snap := s.Snapshot()
	assert.Equal(t, SessionStateFinished, snap.State)
	assert.Equal(t, "FINISHED", snap.State.String())
	assert.Equal(t, 3, snap.Turn)
	assert.Equal(t, 3, snap.Turns)
	assert.NotNil(t, snap.StartTime)
	assert.NotNil(t, snap.EndTime)
	assert.Empty(t, snap.Err)
	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, 3, res.Turns)
	assert.Equal(t, 3, hooked)

	assert.Zero(t, m.GetActiveSessionCount())
	assert.Len(t, m.GetAllSessions(), 1)
	m.RemoveSession(s.ID)
	assert.Empty(t, m.GetAllSessions())
}

func TestSessionFailure(t *testing.T) {
	g, err := game.New()
	require.NoError(t, err)
	s, err := NewManager(nil).CreateSession("empty", g)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background(), 1))
	<-s.Done()
	snap := s.Snapshot()
	assert.Equal(t, SessionStateFailed, snap.State)
	assert.NotEmpty(t, snap.Err)
}
