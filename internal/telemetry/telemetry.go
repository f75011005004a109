// Package telemetry exports kernel activity as OpenTelemetry counters. It listens on a game's
// event bus at model priority and never mutates the game.
package telemetry

import (
	"context"
	"fmt"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/rules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/civmodel/civkernel/internal/telemetry"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics holds the kernel's instruments.
type Metrics struct {
	battles   metric.Int64Counter
	turns     metric.Int64Counter
	expired   metric.Int64Counter
	destroyed metric.Int64Counter
	logger    *zap.Logger
}

// New creates the instruments on m. A nil meter uses the global OTel provider, which is a
// no-op unless one has been installed.
func New(m metric.Meter, logger *zap.Logger) (*Metrics, error) {
	if m == nil {
		m = meter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Metrics{logger: logger}

	var err error
	t.battles, err = m.Int64Counter(
		"civkernel.battles",
		metric.WithDescription("Battles resolved, by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating battles counter: %w", err)
	}
	t.turns, err = m.Int64Counter(
		"civkernel.turns",
		metric.WithDescription("Full turns completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating turns counter: %w", err)
	}
	t.expired, err = m.Int64Counter(
		"civkernel.effects.expired",
		metric.WithDescription("Effects that ran out their duration"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating effects counter: %w", err)
	}
	t.destroyed, err = m.Int64Counter(
		"civkernel.actors.destroyed",
		metric.WithDescription("Actors destroyed, by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating destroyed counter: %w", err)
	}
	return t, nil
}

// Attach subscribes the instruments to g's bus. The returned function unsubscribes them.
func (t *Metrics) Attach(g *game.Game) (detach func()) {
	bus := g.Bus()
	gameAttr := attribute.String("game", g.ID())
	handles := []int{
		bus.SubscribeTyped(game.EventAfterBattle, func(e rules.Event) { t.onBattle(e, gameAttr) }, rules.PriorityModel),
		bus.SubscribeTyped(rules.EventAfterPostTurn, func(rules.Event) {
			t.turns.Add(context.Background(), 1, metric.WithAttributes(gameAttr))
		}, rules.PriorityModel),
		bus.SubscribeTyped(game.EventEffectExpired, func(e rules.Event) { t.onExpired(e, gameAttr) }, rules.PriorityModel),
		bus.SubscribeTyped(game.EventActorDestroyed, func(e rules.Event) { t.onDestroyed(e, gameAttr) }, rules.PriorityModel),
	}
	t.logger.Debug("telemetry attached", zap.String("game", g.ID()))
	return func() {
		for _, h := range handles {
			bus.Unsubscribe(h)
		}
	}
}

func (t *Metrics) onBattle(e rules.Event, gameAttr attribute.KeyValue) {
	report, ok := e.Payload.(game.BattleReport)
	if !ok {
		return
	}
	t.battles.Add(context.Background(), 1, metric.WithAttributes(
		gameAttr,
		attribute.String("result", report.Result.String()),
		attribute.Bool("skill", report.IsSkillAttack),
	))
}

func (t *Metrics) onExpired(e rules.Event, gameAttr attribute.KeyValue) {
	attrs := []attribute.KeyValue{gameAttr}
	if eff, ok := e.Payload.(*game.Effect); ok {
		attrs = append(attrs, attribute.String("kind", eff.Kind()))
	}
	t.expired.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func (t *Metrics) onDestroyed(e rules.Event, gameAttr attribute.KeyValue) {
	attrs := []attribute.KeyValue{gameAttr}
	if a, ok := e.Payload.(*game.Actor); ok {
		attrs = append(attrs, attribute.String("kind", a.Kind()))
	}
	t.destroyed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
