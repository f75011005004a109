package watchers

import (
	"maps"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/rules"
)

// Watcher keys.
const (
	BattleStatsKey     = "BattleStatsWatcher"
	DestroyedActorsKey = "DestroyedActorsWatcher"
	CityCapturesKey    = "CityCapturesWatcher"
)

// BattleStatsWatcher tracks battles fought, won and lost by each player during the current turn.
type BattleStatsWatcher struct {
	*rules.BaseWatcher
	battles   map[string]int // playerID -> battles fought
	victories map[string]int
	defeats   map[string]int
}

// NewBattleStatsWatcher creates a new battle stats watcher.
func NewBattleStatsWatcher() *BattleStatsWatcher {
	return &BattleStatsWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame, BattleStatsKey, ""),
		battles:     make(map[string]int),
		victories:   make(map[string]int),
		defeats:     make(map[string]int),
	}
}

// Watch implements the Watcher interface. Cancelled battles are not counted.
func (w *BattleStatsWatcher) Watch(event rules.Event) {
	if event.Type != game.EventAfterBattle {
		return
	}
	report, ok := event.Payload.(game.BattleReport)
	if !ok || report.Result == game.BattleCancelled {
		return
	}
	attacker := playerID(report.AttackerOwner)
	defender := playerID(report.DefenderOwner)
	w.battles[attacker]++
	w.battles[defender]++

	switch report.Result {
	case game.BattleVictory:
		w.victories[attacker]++
		w.defeats[defender]++
	case game.BattleDefeated:
		w.victories[defender]++
		w.defeats[attacker]++
	case game.BattleDrawDead:
		w.defeats[attacker]++
		w.defeats[defender]++
	}
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *BattleStatsWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.battles = make(map[string]int)
	w.victories = make(map[string]int)
	w.defeats = make(map[string]int)
}

// Battles returns the number of battles a player took part in.
func (w *BattleStatsWatcher) Battles(playerID string) int {
	return w.battles[playerID]
}

// Victories returns the number of battles a player won.
func (w *BattleStatsWatcher) Victories(playerID string) int {
	return w.victories[playerID]
}

// Defeats returns the number of battles in which a player's actor died.
func (w *BattleStatsWatcher) Defeats(playerID string) int {
	return w.defeats[playerID]
}

// Copy creates a copy of this watcher.
func (w *BattleStatsWatcher) Copy() *BattleStatsWatcher {
	c := NewBattleStatsWatcher()
	c.SetCondition(w.ConditionMet())
	c.battles = maps.Clone(w.battles)
	c.victories = maps.Clone(w.victories)
	c.defeats = maps.Clone(w.defeats)
	return c
}

// DestroyedActorsWatcher tracks actors destroyed during the current turn, by previous owner.
type DestroyedActorsWatcher struct {
	*rules.BaseWatcher
	destroyed map[string][]string       // ownerID -> actor IDs
	byKind    map[string]map[string]int // ownerID -> kind -> count
}

// NewDestroyedActorsWatcher creates a new destroyed actors watcher.
func NewDestroyedActorsWatcher() *DestroyedActorsWatcher {
	return &DestroyedActorsWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame, DestroyedActorsKey, ""),
		destroyed:   make(map[string][]string),
		byKind:      make(map[string]map[string]int),
	}
}

// Watch implements the Watcher interface.
func (w *DestroyedActorsWatcher) Watch(event rules.Event) {
	if event.Type != game.EventActorDestroyed || event.SourceID == "" {
		return
	}
	owner := event.PlayerID
	w.destroyed[owner] = append(w.destroyed[owner], event.SourceID)
	if a, ok := event.Payload.(*game.Actor); ok {
		if w.byKind[owner] == nil {
			w.byKind[owner] = make(map[string]int)
		}
		w.byKind[owner][a.Kind()]++
	}
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *DestroyedActorsWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.destroyed = make(map[string][]string)
	w.byKind = make(map[string]map[string]int)
}

// Destroyed returns the IDs of the owner's actors destroyed this turn.
func (w *DestroyedActorsWatcher) Destroyed(ownerID string) []string {
	return w.destroyed[ownerID]
}

// Count returns the number of the owner's actors destroyed this turn.
func (w *DestroyedActorsWatcher) Count(ownerID string) int {
	return len(w.destroyed[ownerID])
}

// CountKind returns the number of the owner's actors of kind destroyed this turn.
func (w *DestroyedActorsWatcher) CountKind(ownerID, kind string) int {
	return w.byKind[ownerID][kind]
}

// Total returns the number of actors destroyed this turn.
func (w *DestroyedActorsWatcher) Total() int {
	total := 0
	for _, ids := range w.destroyed {
		total += len(ids)
	}
	return total
}

// CityCapturesWatcher tracks cities changing hands during the current turn. Only cities count;
// a unit taken over by an ownership effect is not a capture.
type CityCapturesWatcher struct {
	*rules.BaseWatcher
	captured map[string]int // new ownerID -> count
	lost     map[string]int // previous ownerID -> count
}

// NewCityCapturesWatcher creates a new city captures watcher.
func NewCityCapturesWatcher() *CityCapturesWatcher {
	return &CityCapturesWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame, CityCapturesKey, ""),
		captured:    make(map[string]int),
		lost:        make(map[string]int),
	}
}

// Watch implements the Watcher interface.
func (w *CityCapturesWatcher) Watch(event rules.Event) {
	if event.Type != game.EventOwnerChanged {
		return
	}
	change, ok := event.Payload.(game.OwnerChange)
	if !ok || change.Actor == nil || !change.Actor.IsCity() {
		return
	}
	w.captured[playerID(change.To)]++
	w.lost[playerID(change.From)]++
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CityCapturesWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.captured = make(map[string]int)
	w.lost = make(map[string]int)
}

// Captured returns the number of cities a player took this turn.
func (w *CityCapturesWatcher) Captured(playerID string) int {
	return w.captured[playerID]
}

// Lost returns the number of cities a player lost this turn.
func (w *CityCapturesWatcher) Lost(playerID string) int {
	return w.lost[playerID]
}

// Install registers the standard watchers on g and returns them.
func Install(g *game.Game) (*BattleStatsWatcher, *DestroyedActorsWatcher, *CityCapturesWatcher) {
	battles := NewBattleStatsWatcher()
	destroyed := NewDestroyedActorsWatcher()
	captures := NewCityCapturesWatcher()
	g.Watchers().AddWatcher(battles)
	g.Watchers().AddWatcher(destroyed)
	g.Watchers().AddWatcher(captures)
	return battles, destroyed, captures
}

func playerID(p *game.Player) string {
	if p == nil {
		return ""
	}
	return p.ID()
}
