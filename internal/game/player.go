package game

import (
	"fmt"
	"iter"
	"slices"

	"github.com/civmodel/civkernel/internal/game/rules"
	"go.uber.org/zap"
)

// RemoveTerritoryResult is the outcome of TryRemoveTerritory.
type RemoveTerritoryResult int

const (
	RemoveTerritorySuccess RemoveTerritoryResult = iota
	RemoveTerritoryNotOwner
	RemoveTerritoryCannotRemove
)

// EndingType classifies an ending.
type EndingType int

const (
	EndingVictory EndingType = iota
	EndingDefeat
	EndingDraw
)

func (t EndingType) String() string {
	switch t {
	case EndingVictory:
		return "victory"
	case EndingDefeat:
		return "defeat"
	case EndingDraw:
		return "draw"
	default:
		return fmt.Sprintf("ending_type(%d)", int(t))
	}
}

// Ending is a way the game can end for a player. Endings are compared by identity.
type Ending struct {
	Name string
	Type EndingType
}

// Player owns actors, quests, territory and player-level effects, and is the dispatch parent
// of all of them.
type Player struct {
	id    string
	index int
	name  string
	team  int
	game  *Game

	cities    *rules.SafeList[*Actor]
	buildings *rules.SafeList[*Actor]
	units     *rules.SafeList[*Actor]
	quests    *rules.SafeList[*Quest]
	effects   *rules.SafeList[*Effect]

	effectByTag map[EffectTag]*Effect

	territory []Point

	availableEndings []*Ending
	achievedEnding   *Ending

	hadCity bool
}

func newPlayer(g *Game, index int, name string, team int) *Player {
	return &Player{
		id:          g.newID(),
		index:       index,
		name:        name,
		team:        team,
		game:        g,
		cities:      rules.NewSafeList[*Actor](),
		buildings:   rules.NewSafeList[*Actor](),
		units:       rules.NewSafeList[*Actor](),
		quests:      rules.NewSafeList[*Quest](),
		effects:     rules.NewSafeList[*Effect](),
		effectByTag: make(map[EffectTag]*Effect),
	}
}

func (p *Player) ID() string { return p.id }

// Index is the player's position in turn order.
func (p *Player) Index() int { return p.index }

func (p *Player) Name() string { return p.name }

func (p *Player) Team() int { return p.team }

func (p *Player) Game() *Game { return p.game }

// SetTeam moves the player to another team.
func (p *Player) SetTeam(team int) error {
	if team < 0 {
		return fmt.Errorf("%w: team %d is negative", ErrOutOfRange, team)
	}
	p.team = team
	return nil
}

// IsAlliedWith reports whether other is on the same team. A nil player is never an ally.
func (p *Player) IsAlliedWith(other *Player) bool {
	return other != nil && other.team == p.team
}

func (p *Player) Units() []*Actor { return p.units.Items() }

func (p *Player) Cities() []*Actor { return p.cities.Items() }

// TileBuildings returns cities followed by other tile buildings.
func (p *Player) TileBuildings() []*Actor {
	return append(p.cities.Items(), p.buildings.Items()...)
}

// Actors returns every actor the player owns, in dispatch order.
func (p *Player) Actors() []*Actor {
	return append(p.TileBuildings(), p.units.Items()...)
}

func (p *Player) Quests() []*Quest { return p.quests.Items() }

// Effects returns the enabled player-level effects.
func (p *Player) Effects() []*Effect { return p.effects.Items() }

// EffectByTag returns the enabled player-level effect holding tag, or nil.
func (p *Player) EffectByTag(tag EffectTag) *Effect {
	return p.effectByTag[tag]
}

func (p *Player) attachEffect(e *Effect) {
	p.effectByTag[e.tag] = e
	p.effects.Add(e)
}

func (p *Player) detachEffect(e *Effect) {
	if p.effectByTag[e.tag] == e {
		delete(p.effectByTag, e.tag)
	}
	p.effects.Remove(e)
}

func (p *Player) addActor(a *Actor) {
	switch a.spec.Category {
	case CategoryCity:
		p.cities.Add(a)
		p.hadCity = true
	case CategoryTileBuilding:
		p.buildings.Add(a)
	default:
		p.units.Add(a)
	}
}

func (p *Player) removeActor(a *Actor) {
	switch a.spec.Category {
	case CategoryCity:
		p.cities.Remove(a)
	case CategoryTileBuilding:
		p.buildings.Remove(a)
	default:
		p.units.Remove(a)
	}
}

func (p *Player) addQuest(q *Quest) {
	p.quests.Add(q)
}

// IsEliminated reports whether the player has lost every city it held, or, before founding
// its first city, every unit.
func (p *Player) IsEliminated() bool {
	if p.hadCity {
		return p.cities.Len() == 0
	}
	return p.cities.Len() == 0 && p.units.Len() == 0
}

// Territory returns the tiles the player owns in acquisition order.
func (p *Player) Territory() []Point {
	return slices.Clone(p.territory)
}

// TryAddTerritory claims pt, taking it from its current owner when that owner allows it.
func (p *Player) TryAddTerritory(pt Point) bool {
	if !p.game.terrain.Contains(pt) {
		return false
	}
	t := p.game.tileAt(pt)
	if t.owner == p {
		return true
	}
	if other := t.owner; other != nil {
		if other.TryRemoveTerritory(pt) == RemoveTerritoryCannotRemove {
			return false
		}
	}
	t.owner = p
	p.territory = append(p.territory, pt)

	evt := p.game.newEvent(EventTerritoryChanged, "", "", p)
	evt.Payload = pt
	p.game.bus.Publish(evt)
	return true
}

// AddTerritory is TryAddTerritory failing with ErrInvalidOperation.
func (p *Player) AddTerritory(pt Point) error {
	if !p.TryAddTerritory(pt) {
		return fmt.Errorf("%w: tile %s cannot be taken from its owner", ErrInvalidOperation, pt)
	}
	return nil
}

// TryRemoveTerritory releases pt. A tile under one of the player's own tile buildings cannot be released.
func (p *Player) TryRemoveTerritory(pt Point) RemoveTerritoryResult {
	t, ok := p.game.tiles[pt]
	if !ok || t.owner != p {
		return RemoveTerritoryNotOwner
	}
	if t.building != nil && t.building.owner == p {
		return RemoveTerritoryCannotRemove
	}
	if i := slices.Index(p.territory, pt); i >= 0 {
		p.territory = slices.Delete(p.territory, i, i+1)
	}
	t.owner = nil
	return RemoveTerritorySuccess
}

// RemoveTerritory is TryRemoveTerritory with errors.
func (p *Player) RemoveTerritory(pt Point) error {
	switch p.TryRemoveTerritory(pt) {
	case RemoveTerritoryNotOwner:
		return fmt.Errorf("%w: %s is not in the territory of %s", ErrInvalidArgument, pt, p.name)
	case RemoveTerritoryCannotRemove:
		return fmt.Errorf("%w: the tile under a tile building cannot be removed from the territory", ErrInvalidOperation)
	}
	return nil
}

// AvailableEndings returns the endings the player can still achieve.
func (p *Player) AvailableEndings() []*Ending {
	return slices.Clone(p.availableEndings)
}

// AchievedEnding returns the achieved ending, or nil.
func (p *Player) AchievedEnding() *Ending { return p.achievedEnding }

func (p *Player) HasEnding() bool { return p.achievedEnding != nil }

// AddAvailableEnding makes ending achievable.
func (p *Player) AddAvailableEnding(ending *Ending) error {
	if ending == nil {
		return fmt.Errorf("%w: ending is nil", ErrInvalidArgument)
	}
	if p.HasEnding() {
		return fmt.Errorf("%w: player %s already has an ending", ErrInvalidOperation, p.name)
	}
	if slices.Contains(p.availableEndings, ending) {
		return fmt.Errorf("%w: ending %s is already available", ErrInvalidArgument, ending.Name)
	}
	p.availableEndings = append(p.availableEndings, ending)
	return nil
}

// RemoveAvailableEnding withdraws ending.
func (p *Player) RemoveAvailableEnding(ending *Ending) error {
	if ending == nil {
		return fmt.Errorf("%w: ending is nil", ErrInvalidArgument)
	}
	if p.HasEnding() {
		return fmt.Errorf("%w: player %s already has an ending", ErrInvalidOperation, p.name)
	}
	i := slices.Index(p.availableEndings, ending)
	if i < 0 {
		return fmt.Errorf("%w: ending %s is not available", ErrInvalidArgument, ending.Name)
	}
	p.availableEndings = slices.Delete(p.availableEndings, i, i+1)
	return nil
}

// AchieveEnding ends the game for the player and publishes ENDING_ACHIEVED.
func (p *Player) AchieveEnding(ending *Ending) error {
	if ending == nil {
		return fmt.Errorf("%w: ending is nil", ErrInvalidArgument)
	}
	if p.HasEnding() {
		return fmt.Errorf("%w: player %s already has an ending", ErrInvalidOperation, p.name)
	}
	if !slices.Contains(p.availableEndings, ending) {
		return fmt.Errorf("%w: ending %s is not available to %s", ErrInvalidArgument, ending.Name, p.name)
	}
	p.achievedEnding = ending

	p.game.logger.Info("ending achieved",
		zapPlayer(p),
		zap.String("ending", ending.Name),
		zap.Stringer("type", ending.Type),
	)
	evt := p.game.newEvent(EventEndingAchieved, "", "", p)
	evt.Payload = ending
	p.game.bus.Publish(evt)
	return nil
}

// ReceivePhase implements rules.Node.
func (p *Player) ReceivePhase(ctx rules.PhaseContext) {
	if ctx.Phase == rules.PhasePreSubTurn && ctx.PlayerInTurn == p.index {
		p.game.logger.Debug("subturn started", zapPlayer(p), zap.Int("turn", ctx.TurnNumber))
	}
}

// PhaseChildren implements rules.Node. Forward order is cities, other tile buildings, units,
// quests, then player-level effects; backward order is the exact reverse.
func (p *Player) PhaseChildren(dir rules.Direction) iter.Seq[rules.Node] {
	groups := []iter.Seq[rules.Node]{
		asNodes(p.cities.Snapshot().Walk(dir)),
		asNodes(p.buildings.Snapshot().Walk(dir)),
		asNodes(p.units.Snapshot().Walk(dir)),
		asNodes(p.quests.Snapshot().Walk(dir)),
		asNodes(p.effects.Snapshot().Walk(dir)),
	}
	if dir == rules.Backward {
		slices.Reverse(groups)
	}
	return func(yield func(rules.Node) bool) {
		for _, g := range groups {
			for n := range g {
				if !yield(n) {
					return
				}
			}
		}
	}
}
