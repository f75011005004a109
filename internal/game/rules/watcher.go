package rules

import (
	"sort"
	"sync"
)

// WatcherScope defines the scope of a watcher's tracking.
type WatcherScope int

const (
	// WatcherScopeGame tracks events for the entire game.
	WatcherScopeGame WatcherScope = iota
	// WatcherScopePlayer tracks events for a specific player.
	WatcherScopePlayer
	// WatcherScopeActor tracks events for a specific actor.
	WatcherScopeActor
)

// String returns the string representation of the watcher scope.
func (ws WatcherScope) String() string {
	switch ws {
	case WatcherScopeGame:
		return "GAME"
	case WatcherScopePlayer:
		return "PLAYER"
	case WatcherScopeActor:
		return "ACTOR"
	default:
		return "UNKNOWN"
	}
}

// Watcher observes bus events and accumulates per-turn state.
// Quests and achievements query watchers instead of subscribing to the bus themselves.
type Watcher interface {
	// Watch is called for every event published while the watcher is registered.
	Watch(event Event)

	// Reset clears accumulated state. The registry calls it at AFTER_POST_TURN.
	Reset()

	// ConditionMet returns true if the condition this watcher tracks has been met.
	ConditionMet() bool

	GetScope() WatcherScope

	// GetKey returns a unique key: the watcher name, prefixed with the
	// player or actor ID for narrower scopes.
	GetKey() string
}

// BaseWatcher provides the bookkeeping shared by concrete watchers.
type BaseWatcher struct {
	scope     WatcherScope
	ownerID   string
	name      string
	condition bool
}

// NewBaseWatcher creates a base watcher. ownerID is the player or actor ID for narrower
// scopes and is ignored for WatcherScopeGame.
func NewBaseWatcher(scope WatcherScope, name, ownerID string) *BaseWatcher {
	if scope == WatcherScopeGame {
		ownerID = ""
	}
	return &BaseWatcher{scope: scope, name: name, ownerID: ownerID}
}

// GetScope returns the watcher's scope.
func (bw *BaseWatcher) GetScope() WatcherScope {
	return bw.scope
}

// GetOwnerID returns the tracked player or actor ID.
func (bw *BaseWatcher) GetOwnerID() string {
	return bw.ownerID
}

// ConditionMet returns whether the condition has been met.
func (bw *BaseWatcher) ConditionMet() bool {
	return bw.condition
}

// SetCondition sets the condition flag.
func (bw *BaseWatcher) SetCondition(condition bool) {
	bw.condition = condition
}

// Reset clears the condition.
func (bw *BaseWatcher) Reset() {
	bw.condition = false
}

// GetKey returns the unique key for this watcher.
func (bw *BaseWatcher) GetKey() string {
	if bw.ownerID == "" {
		return bw.name
	}
	return bw.ownerID + "_" + bw.name
}

// WatcherRegistry fans bus events out to watchers and resets them at the end of every full turn.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
	order    []string
	bus      *EventBus
	handle   int
}

// NewWatcherRegistry creates a registry. If bus is non-nil the registry subscribes to it
// at model priority.
func NewWatcherRegistry(bus *EventBus) *WatcherRegistry {
	wr := &WatcherRegistry{
		watchers: make(map[string]Watcher),
		bus:      bus,
		handle:   -1,
	}
	if bus != nil {
		wr.handle = bus.Subscribe(wr.onEvent, PriorityModel)
	}
	return wr
}

// Close unsubscribes the registry from its bus.
func (wr *WatcherRegistry) Close() {
	if wr.bus != nil && wr.handle >= 0 {
		wr.bus.Unsubscribe(wr.handle)
		wr.handle = -1
	}
}

// AddWatcher adds a watcher to the registry, replacing any watcher with the same key.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) {
	if watcher == nil {
		return
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	key := watcher.GetKey()
	if _, exists := wr.watchers[key]; !exists {
		wr.order = append(wr.order, key)
	}
	wr.watchers[key] = watcher
}

// RemoveWatcher removes a watcher from the registry.
func (wr *WatcherRegistry) RemoveWatcher(key string) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if _, ok := wr.watchers[key]; !ok {
		return
	}
	delete(wr.watchers, key)
	for i, k := range wr.order {
		if k == key {
			wr.order = append(wr.order[:i:i], wr.order[i+1:]...)
			break
		}
	}
}

// GetWatcher retrieves a watcher by key.
func (wr *WatcherRegistry) GetWatcher(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.watchers[key]
}

// GetWatchersByScope returns all watchers for a given scope, sorted by key.
func (wr *WatcherRegistry) GetWatchersByScope(scope WatcherScope) []Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	var result []Watcher
	for _, w := range wr.watchers {
		if w.GetScope() == scope {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GetKey() < result[j].GetKey() })
	return result
}

// ResetWatchers resets all watchers.
func (wr *WatcherRegistry) ResetWatchers() {
	for _, w := range wr.snapshot() {
		w.Reset()
	}
}

// NotifyWatchers delivers the event to every watcher in registration order.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	for _, w := range wr.snapshot() {
		w.Watch(event)
	}
}

func (wr *WatcherRegistry) onEvent(event Event) {
	if event.Type == EventAfterPostTurn {
		wr.ResetWatchers()
		return
	}
	wr.NotifyWatchers(event)
}

// snapshot lets watchers add or remove watchers while being notified.
func (wr *WatcherRegistry) snapshot() []Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	out := make([]Watcher, 0, len(wr.order))
	for _, k := range wr.order {
		out = append(out, wr.watchers[k])
	}
	return out
}
