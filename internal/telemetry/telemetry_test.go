package telemetry

import (
	"context"
	"testing"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/effects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"
)

type recordingCounter struct {
	noop.Int64Counter
	total int64
	attrs []attribute.Set
}

func (c *recordingCounter) Add(_ context.Context, n int64, opts ...metric.AddOption) {
	c.total += n
	c.attrs = append(c.attrs, metric.NewAddConfig(opts).Attributes())
}

type recordingMeter struct {
	noop.Meter
	counters map[string]*recordingCounter
}

func (m *recordingMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	c := &recordingCounter{}
	m.counters[name] = c
	return c, nil
}

func attr(t *testing.T, s attribute.Set, key string) string {
	t.Helper()
	v, ok := s.Value(attribute.Key(key))
	require.True(t, ok, "missing attribute %s", key)
	return v.Emit()
}

func TestMetricsCountKernelActivity(t *testing.T) {
	m := &recordingMeter{counters: make(map[string]*recordingCounter)}
	tm, err := New(m, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, m.counters, 4)

	g, err := game.New(game.WithTerrain(game.NewHexGrid(6, 6)))
	require.NoError(t, err)
	red, err := g.AddPlayer("red", 0)
	require.NoError(t, err)
	blue, err := g.AddPlayer("blue", 1)
	require.NoError(t, err)
	spec := &game.ActorSpec{Kind: "warrior", MaxAP: 2, MaxHP: 10, AttackPower: 20, DefencePower: 1, NoHeal: true}
	attacker, err := g.ProduceActor(red, spec, game.Point{X: 1, Y: 1})
	require.NoError(t, err)
	defender, err := g.ProduceActor(blue, spec, game.Point{X: 2, Y: 1})
	require.NoError(t, err)
	boost, err := effects.NewStatBoost(1, 0)
	require.NoError(t, err)
	_, err = effects.Attach(attacker, 1, boost)
	require.NoError(t, err)

	detach := tm.Attach(g)

	result, err := attacker.AttackTo(defender, true, false)
	require.NoError(t, err)
	require.Equal(t, game.BattleVictory, result)

	battles := m.counters["civkernel.battles"]
	assert.Equal(t, int64(1), battles.total)
	assert.Equal(t, "victory", attr(t, battles.attrs[0], "result"))
	assert.Equal(t, g.ID(), attr(t, battles.attrs[0], "game"))

	destroyed := m.counters["civkernel.actors.destroyed"]
	assert.Equal(t, int64(1), destroyed.total)
	assert.Equal(t, "warrior", attr(t, destroyed.attrs[0], "kind"))

	for range g.Players() {
		require.NoError(t, g.StartTurn())
		require.NoError(t, g.EndTurn())
	}
	assert.Equal(t, int64(1), m.counters["civkernel.turns"].total)
	expired := m.counters["civkernel.effects.expired"]
	assert.Equal(t, int64(1), expired.total)
	assert.Equal(t, effects.KindStatBoost, attr(t, expired.attrs[0], "kind"))

	detach()
	for range g.Players() {
		require.NoError(t, g.StartTurn())
		require.NoError(t, g.EndTurn())
	}
	assert.Equal(t, int64(1), m.counters["civkernel.turns"].total)
}

func TestNewUsesGlobalMeter(t *testing.T) {
	tm, err := New(nil, nil)
	require.NoError(t, err)

	g, err := game.New()
	require.NoError(t, err)
	listeners := g.Bus().Len()
	detach := tm.Attach(g)
	assert.Equal(t, listeners+4, g.Bus().Len())
	detach()
	assert.Equal(t, listeners, g.Bus().Len())
}
