package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	beforeCount := 0
	afterCount := 0

	handle1 := bus.SubscribeTyped(EventBeforeBattle, func(e Event) {
		beforeCount++
	}, PriorityDefault)
	handle2 := bus.SubscribeTyped(EventAfterBattle, func(e Event) {
		afterCount++
	}, PriorityDefault)

	bus.Publish(NewEvent(EventBeforeBattle, "a1", "a2", "p1"))
	assert.Equal(t, 1, beforeCount)
	assert.Equal(t, 0, afterCount)

	bus.Publish(NewEvent(EventAfterBattle, "a1", "a2", "p1"))
	assert.Equal(t, 1, afterCount)

	assert.True(t, bus.Unsubscribe(handle1))
	assert.False(t, bus.Unsubscribe(handle1))
	bus.Publish(NewEvent(EventBeforeBattle, "a1", "a2", "p1"))
	assert.Equal(t, 1, beforeCount)

	assert.True(t, bus.Unsubscribe(handle2))
	assert.Equal(t, 0, bus.Len())
}

func TestEventBusPriorityOrder(t *testing.T) {
	bus := NewEventBus()
	var order []string

	bus.Subscribe(func(Event) { order = append(order, "ui-1") }, PriorityPresentation)
	bus.Subscribe(func(Event) { order = append(order, "default-1") }, PriorityDefault)
	bus.Subscribe(func(Event) { order = append(order, "model-1") }, PriorityModel)
	bus.Subscribe(func(Event) { order = append(order, "ui-2") }, PriorityPresentation)
	bus.Subscribe(func(Event) { order = append(order, "model-2") }, PriorityModel)

	bus.Publish(NewEvent(EventActorCreated, "", "", ""))
	assert.Equal(t, []string{"model-1", "model-2", "default-1", "ui-1", "ui-2"}, order)
}

func TestEventBusUnsubscribeSelfDuringPublish(t *testing.T) {
	bus := NewEventBus()
	var order []string

	var selfHandle int
	selfHandle = bus.Subscribe(func(Event) {
		order = append(order, "once")
		bus.Unsubscribe(selfHandle)
	}, PriorityModel)
	bus.Subscribe(func(Event) { order = append(order, "a") }, PriorityDefault)
	bus.Subscribe(func(Event) { order = append(order, "b") }, PriorityDefault)

	bus.Publish(NewEvent(EventAfterBattle, "", "", ""))
	bus.Publish(NewEvent(EventAfterBattle, "", "", ""))

	assert.Equal(t, []string{"once", "a", "b", "a", "b"}, order)
}

func TestEventBusListenerRemovesLaterListener(t *testing.T) {
	bus := NewEventBus()
	called := false
	var victim int
	bus.Subscribe(func(Event) { bus.Unsubscribe(victim) }, PriorityModel)
	victim = bus.Subscribe(func(Event) { called = true }, PriorityDefault)

	bus.Publish(NewEvent(EventPreTurn, "", "", ""))
	assert.False(t, called)
}

func TestEventBusListenerAddedDuringPublishWaits(t *testing.T) {
	bus := NewEventBus()
	lateCalls := 0
	added := false
	bus.Subscribe(func(Event) {
		if !added {
			added = true
			bus.Subscribe(func(Event) { lateCalls++ }, PriorityPresentation)
		}
	}, PriorityModel)

	bus.Publish(NewEvent(EventPreTurn, "", "", ""))
	assert.Equal(t, 0, lateCalls)
	bus.Publish(NewEvent(EventPreTurn, "", "", ""))
	assert.Equal(t, 1, lateCalls)
}

func TestEventBusNestedPublishDepthLimit(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	bus.Subscribe(func(e Event) {
		calls++
		bus.Publish(e)
	}, PriorityDefault)

	bus.Publish(NewEvent(EventPreTurn, "", "", ""))
	assert.Equal(t, 64, calls)
	assert.Equal(t, 1, bus.DroppedByDepth())
}

func TestEventBusRejectsNilListener(t *testing.T) {
	bus := NewEventBus()
	assert.Equal(t, -1, bus.Subscribe(nil, PriorityDefault))
	assert.Equal(t, -1, bus.SubscribeTyped("", func(Event) {}, PriorityDefault))
	require.Equal(t, 0, bus.Len())
}

func TestNewEventPopulatesIDs(t *testing.T) {
	e1 := NewEvent(EventActorPlaced, "actor", "", "player")
	e2 := NewEvent(EventActorPlaced, "actor", "", "player")
	assert.NotEmpty(t, e1.ID)
	assert.NotEqual(t, e1.ID, e2.ID)
	assert.Equal(t, "player", e1.PlayerID)
	assert.False(t, e1.Timestamp.IsZero())
}
