package rules

import (
	"testing"
)

// battleCounter is a simple test watcher.
type battleCounter struct {
	*BaseWatcher
	battles int
}

func (w *battleCounter) Watch(event Event) {
	if event.Type == EventAfterBattle {
		w.battles++
		w.SetCondition(true)
	}
}

func (w *battleCounter) Reset() {
	w.BaseWatcher.Reset()
	w.battles = 0
}

func TestWatcherRegistry(t *testing.T) {
	registry := NewWatcherRegistry(nil)

	w := &battleCounter{BaseWatcher: NewBaseWatcher(WatcherScopeGame, "BattleCounter", "ignored")}
	registry.AddWatcher(w)

	if got := registry.GetWatcher("BattleCounter"); got == nil {
		t.Fatal("should retrieve BattleCounter")
	}
	if n := len(registry.GetWatchersByScope(WatcherScopeGame)); n != 1 {
		t.Fatalf("expected 1 game watcher, got %d", n)
	}

	registry.NotifyWatchers(NewEvent(EventAfterBattle, "a", "b", "p1"))
	if !w.ConditionMet() || w.battles != 1 {
		t.Fatalf("expected condition met after one battle, got %v/%d", w.ConditionMet(), w.battles)
	}

	registry.ResetWatchers()
	if w.ConditionMet() || w.battles != 0 {
		t.Fatal("watcher should be cleared after reset")
	}

	registry.RemoveWatcher("BattleCounter")
	if registry.GetWatcher("BattleCounter") != nil {
		t.Fatal("watcher should be removed")
	}
}

func TestWatcherRegistryPlayerScopeKey(t *testing.T) {
	w := &battleCounter{BaseWatcher: NewBaseWatcher(WatcherScopePlayer, "BattleCounter", "p1")}
	if w.GetKey() != "p1_BattleCounter" {
		t.Fatalf("unexpected key %q", w.GetKey())
	}
	if w.GetScope().String() != "PLAYER" {
		t.Fatalf("unexpected scope %s", w.GetScope())
	}
}

func TestWatcherRegistryBusResetsAtTurnEnd(t *testing.T) {
	bus := NewEventBus()
	registry := NewWatcherRegistry(bus)
	w := &battleCounter{BaseWatcher: NewBaseWatcher(WatcherScopeGame, "BattleCounter", "")}
	registry.AddWatcher(w)

	bus.Publish(NewEvent(EventAfterBattle, "", "", ""))
	bus.Publish(NewEvent(EventAfterBattle, "", "", ""))
	if w.battles != 2 {
		t.Fatalf("expected 2 battles, got %d", w.battles)
	}

	bus.Publish(NewEvent(EventAfterPostTurn, "", "", ""))
	if w.battles != 0 {
		t.Fatalf("expected reset at turn end, got %d", w.battles)
	}

	registry.Close()
	bus.Publish(NewEvent(EventAfterBattle, "", "", ""))
	if w.battles != 0 {
		t.Fatal("closed registry must not receive events")
	}
}
