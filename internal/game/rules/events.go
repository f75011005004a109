package rules

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType indicates the category of a kernel event.
type EventType string

const (
	// Battle events
	EventBeforeBattle EventType = "BEFORE_BATTLE"
	EventAfterBattle  EventType = "AFTER_BATTLE"

	// Turn events (observable tier of the phase dispatch; see Phase.EventType)
	EventPreTurn          EventType = "PRE_TURN"
	EventAfterPreTurn     EventType = "AFTER_PRE_TURN"
	EventPreSubTurn       EventType = "PRE_SUB_TURN"
	EventAfterPreSubTurn  EventType = "AFTER_PRE_SUB_TURN"
	EventPostSubTurn      EventType = "POST_SUB_TURN"
	EventAfterPostSubTurn EventType = "AFTER_POST_SUB_TURN"
	EventPostTurn         EventType = "POST_TURN"
	EventAfterPostTurn    EventType = "AFTER_POST_TURN"

	// Actor events
	EventActorCreated   EventType = "ACTOR_CREATED"
	EventActorPlaced    EventType = "ACTOR_PLACED"
	EventActorProduced  EventType = "ACTOR_PRODUCED"
	EventActorDestroyed EventType = "ACTOR_DESTROYED"
	EventOwnerChanged   EventType = "OWNER_CHANGED"

	// Effect events
	EventEffectOn      EventType = "EFFECT_ON"
	EventEffectOff     EventType = "EFFECT_OFF"
	EventEffectExpired EventType = "EFFECT_EXPIRED"

	// Player events
	EventEndingAchieved   EventType = "ENDING_ACHIEVED"
	EventQuestStatus      EventType = "QUEST_STATUS_CHANGED"
	EventTerritoryChanged EventType = "TERRITORY_CHANGED"
)

// Priority orders listeners on the bus. Lower values run first.
type Priority int

const (
	// PriorityModel is for cross-cutting model listeners (quests, watchers, achievements).
	PriorityModel Priority = 0
	// PriorityDefault is for ordinary listeners.
	PriorityDefault Priority = 100
	// PriorityPresentation is for UI refresh and other view-side listeners.
	PriorityPresentation Priority = 200
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type          EventType
	ID            string    // Unique event ID
	TurnNumber    int       // Full turn the event occurred in
	SubTurnNumber int       // Global subturn counter
	PlayerID      string    // Player concerned (player in turn, owner, achiever)
	SourceID      string    // Originating actor/effect ID
	TargetID      string    // Affected actor/effect ID
	Amount        float64   // Numeric value (damage, HP, turns)
	Payload       any       // Typed detail, e.g. a battle report
	Timestamp     time.Time // When the event occurred
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, sourceID, targetID, playerID string) Event {
	return Event{
		Type:      eventType,
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		TargetID:  targetID,
		PlayerID:  playerID,
		Timestamp: time.Now(),
	}
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

type subscription struct {
	handle    int
	priority  Priority
	eventType EventType // empty means every event
	callback  Listener
}

// EventBus is a synchronous, priority-ordered publish/subscribe channel.
//
// Listeners run strictly by priority, then by registration order within a priority.
// A listener may subscribe or unsubscribe (itself or others) from inside its callback:
// each Publish walks the listener set as it was when publishing started, skipping
// listeners removed in the meantime and not calling listeners added in the meantime.
type EventBus struct {
	mu          sync.RWMutex
	subs        []*subscription // sorted by (priority, handle)
	active      map[int]*subscription
	nextHandle  int
	publishing  int
	maxDepth    int
	depthErrors int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		active:   make(map[int]*subscription),
		maxDepth: 64,
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener, priority Priority) int {
	return bus.add("", listener, priority)
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, listener Listener, priority Priority) int {
	if eventType == "" {
		return -1
	}
	return bus.add(eventType, listener, priority)
}

func (bus *EventBus) add(eventType EventType, listener Listener, priority Priority) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()

	handle := bus.nextHandle
	bus.nextHandle++
	sub := &subscription{
		handle:    handle,
		priority:  priority,
		eventType: eventType,
		callback:  listener,
	}
	bus.active[handle] = sub

	subs := make([]*subscription, len(bus.subs), len(bus.subs)+1)
	copy(subs, bus.subs)
	idx := sort.Search(len(subs), func(i int) bool {
		if subs[i].priority != priority {
			return subs[i].priority > priority
		}
		return subs[i].handle > handle
	})
	subs = append(subs, nil)
	copy(subs[idx+1:], subs[idx:])
	subs[idx] = sub
	bus.subs = subs
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
// It reports whether the handle was subscribed.
func (bus *EventBus) Unsubscribe(handle int) bool {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	if _, ok := bus.active[handle]; !ok {
		return false
	}
	delete(bus.active, handle)

	subs := make([]*subscription, 0, len(bus.subs))
	for _, sub := range bus.subs {
		if sub.handle != handle {
			subs = append(subs, sub)
		}
	}
	bus.subs = subs
	return true
}

// Len returns the number of registered listeners.
func (bus *EventBus) Len() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.active)
}

// Publish delivers the event to all matching listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.Lock()
	if bus.publishing >= bus.maxDepth {
		bus.depthErrors++
		bus.mu.Unlock()
		return
	}
	bus.publishing++
	// subs is replaced, never mutated in place, so the slice header is a stable snapshot.
	snapshot := bus.subs
	bus.mu.Unlock()

	defer func() {
		bus.mu.Lock()
		bus.publishing--
		bus.mu.Unlock()
	}()

	for _, sub := range snapshot {
		if sub.eventType != "" && sub.eventType != event.Type {
			continue
		}
		if !bus.isActive(sub.handle) {
			continue
		}
		sub.callback(event)
	}
}

// DroppedByDepth returns how many publishes were refused because listeners
// re-published beyond the nesting limit.
func (bus *EventBus) DroppedByDepth() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return bus.depthErrors
}

func (bus *EventBus) isActive(handle int) bool {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	_, ok := bus.active[handle]
	return ok
}
