package game

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"

	"github.com/civmodel/civkernel/internal/game/arena"
	"github.com/civmodel/civkernel/internal/game/rules"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types re-exported from rules for kernel callers.
type EventType = rules.EventType

const (
	EventBeforeBattle     = rules.EventBeforeBattle
	EventAfterBattle      = rules.EventAfterBattle
	EventActorCreated     = rules.EventActorCreated
	EventActorPlaced      = rules.EventActorPlaced
	EventActorProduced    = rules.EventActorProduced
	EventActorDestroyed   = rules.EventActorDestroyed
	EventOwnerChanged     = rules.EventOwnerChanged
	EventEffectOn         = rules.EventEffectOn
	EventEffectOff        = rules.EventEffectOff
	EventEffectExpired    = rules.EventEffectExpired
	EventEndingAchieved   = rules.EventEndingAchieved
	EventQuestStatus      = rules.EventQuestStatus
	EventTerritoryChanged = rules.EventTerritoryChanged
)

const (
	// DefaultCaptureRatio is the share of MaxHP a captured city keeps.
	DefaultCaptureRatio = 1.0 / 3.0
	// DefaultMaxHealPerTurn is the HP restored each turn by prototypes that do not set one.
	DefaultMaxHealPerTurn = 5.0
	// DefaultBoardSize is the side of the hex board used when no terrain is supplied.
	DefaultBoardSize = 32
)

// Option configures a Game.
type Option func(*Game)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Game) {
		if logger == nil {
			logger = zap.NewNop()
		}
		g.logger = logger
	}
}

// WithEpsilon sets the relative tolerance for AP/HP bound snapping.
func WithEpsilon(eps float64) Option {
	return func(g *Game) { g.epsilon = eps }
}

// WithRand sets the random source threaded into battles and behaviors.
func WithRand(rng *rand.Rand) Option {
	return func(g *Game) { g.rng = rng }
}

// WithSeed seeds a PCG random source.
func WithSeed(seed uint64) Option {
	return func(g *Game) { g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithTerrain sets the board.
func WithTerrain(t Terrain) Option {
	return func(g *Game) { g.terrain = t }
}

// WithCaptureRatio sets the share of MaxHP a captured city keeps.
func WithCaptureRatio(ratio float64) Option {
	return func(g *Game) { g.captureRatio = ratio }
}

// WithDefaultHeal sets the per-turn heal of prototypes that do not set one.
func WithDefaultHeal(hp float64) Option {
	return func(g *Game) { g.defaultHeal = hp }
}

// WithID sets the game ID instead of generating one.
func WithID(id string) Option {
	return func(g *Game) { g.id = id }
}

// WithEventBus shares an existing bus, e.g. one a presentation layer already listens on.
func WithEventBus(bus *rules.EventBus) Option {
	return func(g *Game) { g.bus = bus }
}

// Game is the root of the phase dispatch tree and the owner of every player, actor and effect.
//
// A Game is not safe for concurrent use: every mutation happens on the caller's goroutine,
// one phase callback or battle at a time.
type Game struct {
	id     string
	logger *zap.Logger

	bus      *rules.EventBus
	turns    *rules.TurnManager
	watchers *rules.WatcherRegistry

	players   []*Player
	actors    *arena.Arena[*Actor]
	actorByID map[string]*Actor
	effects   *arena.Arena[*Effect]
	tiles     map[Point]*tile

	terrain      Terrain
	rng          *rand.Rand
	epsilon      float64
	captureRatio float64
	defaultHeal  float64
}

// New creates an empty game.
func New(opts ...Option) (*Game, error) {
	g := &Game{
		logger:       zap.NewNop(),
		actors:       arena.New[*Actor](),
		actorByID:    make(map[string]*Actor),
		effects:      arena.New[*Effect](),
		tiles:        make(map[Point]*tile),
		epsilon:      rules.DefaultRelativeEpsilon,
		captureRatio: DefaultCaptureRatio,
		defaultHeal:  DefaultMaxHealPerTurn,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.epsilon <= 0 || g.epsilon >= 1 {
		return nil, fmt.Errorf("%w: epsilon %v is not in (0, 1)", ErrOutOfRange, g.epsilon)
	}
	if g.captureRatio <= 0 || g.captureRatio > 1 {
		return nil, fmt.Errorf("%w: capture ratio %v is not in (0, 1]", ErrOutOfRange, g.captureRatio)
	}
	if g.defaultHeal < 0 {
		return nil, fmt.Errorf("%w: default heal %v is negative", ErrOutOfRange, g.defaultHeal)
	}
	if g.id == "" {
		g.id = uuid.NewString()
	}
	if g.bus == nil {
		g.bus = rules.NewEventBus()
	}
	if g.terrain == nil {
		g.terrain = NewHexGrid(DefaultBoardSize, DefaultBoardSize)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(0, 0))
	}
	g.turns = rules.NewTurnManager(g, func() int { return len(g.players) }, g.bus, g.logger)
	g.watchers = rules.NewWatcherRegistry(g.bus)
	return g, nil
}

func (g *Game) ID() string { return g.id }

func (g *Game) Logger() *zap.Logger { return g.logger }

// Bus returns the observable event bus.
func (g *Game) Bus() *rules.EventBus { return g.bus }

// Watchers returns the registry that resets watchers at the end of every full turn.
func (g *Game) Watchers() *rules.WatcherRegistry { return g.watchers }

// Turns exposes the turn manager, e.g. to install a dispatch trace.
func (g *Game) Turns() *rules.TurnManager { return g.turns }

func (g *Game) Terrain() Terrain { return g.terrain }

// Rand returns the game's deterministic random source.
func (g *Game) Rand() *rand.Rand { return g.rng }

func (g *Game) Epsilon() float64 { return g.epsilon }

func (g *Game) CaptureRatio() float64 { return g.captureRatio }

// AddPlayer appends a player to the turn order. Players cannot join once the first turn started.
func (g *Game) AddPlayer(name string, team int) (*Player, error) {
	if g.turns.SubTurnNumber() > 0 || g.turns.IsInsideTurn() {
		return nil, fmt.Errorf("%w: players cannot join a running game", ErrInvalidOperation)
	}
	if team < 0 {
		return nil, fmt.Errorf("%w: team %d is negative", ErrOutOfRange, team)
	}
	p := newPlayer(g, len(g.players), name, team)
	g.players = append(g.players, p)
	g.logger.Debug("player added", zapPlayer(p), zap.Int("team", team))
	return p, nil
}

// Players returns the players in turn order.
func (g *Game) Players() []*Player {
	return slices.Clone(g.players)
}

// Player returns the player at index, or nil.
func (g *Game) Player(index int) *Player {
	if index < 0 || index >= len(g.players) {
		return nil
	}
	return g.players[index]
}

// PlayerInTurn returns the player whose subturn is current.
func (g *Game) PlayerInTurn() *Player {
	return g.Player(g.turns.PlayerInTurn())
}

func (g *Game) TurnNumber() int { return g.turns.TurnNumber() }

func (g *Game) SubTurnNumber() int { return g.turns.SubTurnNumber() }

func (g *Game) IsInsideTurn() bool { return g.turns.IsInsideTurn() }

// StartTurn begins the current subturn. It fails if the game is already inside a turn.
func (g *Game) StartTurn() error {
	return g.turns.StartTurn()
}

// EndTurn ends the current subturn. It fails if StartTurn has not been called.
func (g *Game) EndTurn() error {
	return g.turns.EndTurn()
}

// NewActor creates an unplaced actor with full AP and HP owned by owner.
func (g *Game) NewActor(owner *Player, spec *ActorSpec) (*Actor, error) {
	if owner == nil {
		return nil, fmt.Errorf("%w: owner is nil", ErrInvalidArgument)
	}
	if owner.game != g {
		return nil, fmt.Errorf("%w: owner belongs to another game", ErrInvalidArgument)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	a := &Actor{
		id:          g.newID(),
		game:        g,
		spec:        spec,
		owner:       owner,
		remainAP:    spec.MaxAP,
		remainHP:    spec.MaxHP,
		effects:     rules.NewSafeList[*Effect](),
		effectByTag: make(map[EffectTag]*Effect),
		cooldowns:   make([]int, len(spec.Specials)),
	}
	if a.IsUnit() {
		a.flags = FlagControllable
	}
	a.handle = g.actors.Insert(a)
	g.actorByID[a.id] = a
	owner.addActor(a)

	g.logger.Debug("actor created", zapActor(a), zapPlayer(owner))
	g.bus.Publish(g.newEvent(EventActorCreated, a.id, "", owner))
	return a, nil
}

// ProduceActor creates and places an actor on behalf of the production system.
func (g *Game) ProduceActor(owner *Player, spec *ActorSpec, pt Point) (*Actor, error) {
	a, err := g.NewActor(owner, spec)
	if err != nil {
		return nil, err
	}
	if err := g.PlaceActor(a, pt); err != nil {
		if derr := a.Destroy(); derr != nil {
			g.logger.Warn("rollback of unplaced actor failed", zapActor(a), zap.Error(derr))
		}
		return nil, err
	}
	g.bus.Publish(g.newEvent(EventActorProduced, a.id, "", owner))
	return a, nil
}

// Actor resolves a handle. It reports false for destroyed actors.
func (g *Game) Actor(h arena.Handle) (*Actor, bool) {
	return g.actors.Get(h)
}

// ActorByID looks up a live actor by GUID.
func (g *Game) ActorByID(id string) (*Actor, bool) {
	a, ok := g.actorByID[id]
	return a, ok
}

// Actors yields every live actor in creation-slot order.
func (g *Game) Actors() iter.Seq[*Actor] {
	return func(yield func(*Actor) bool) {
		for _, a := range g.actors.All() {
			if !yield(a) {
				return
			}
		}
	}
}

// ReceivePhase implements rules.Node. The game root has no per-phase state of its own.
func (g *Game) ReceivePhase(rules.PhaseContext) {}

// PhaseChildren implements rules.Node: the players in turn order.
func (g *Game) PhaseChildren(dir rules.Direction) iter.Seq[rules.Node] {
	players := slices.Clone(g.players)
	if dir == rules.Backward {
		slices.Reverse(players)
	}
	return func(yield func(rules.Node) bool) {
		for _, p := range players {
			if !yield(p) {
				return
			}
		}
	}
}

func (g *Game) newID() string {
	return uuid.NewString()
}

func (g *Game) publish(eventType EventType, sourceID, targetID string, player *Player) {
	g.bus.Publish(g.newEvent(eventType, sourceID, targetID, player))
}

func (g *Game) newEvent(eventType EventType, sourceID, targetID string, player *Player) rules.Event {
	evt := rules.NewEvent(eventType, sourceID, targetID, "")
	if player != nil {
		evt.PlayerID = player.id
	}
	evt.TurnNumber = g.turns.TurnNumber()
	evt.SubTurnNumber = g.turns.SubTurnNumber()
	return evt
}
