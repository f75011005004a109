package game

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SnapshotVersion is bumped whenever the snapshot layout changes incompatibly.
const SnapshotVersion = 1

// Snapshot is a plain-data copy of a game sufficient to rebuild it with Restore.
// Modifiers are not captured; effects re-install theirs when they are turned back on.
type Snapshot struct {
	Version   int
	GameID    string
	Timestamp time.Time

	SubTurn    int
	InsideTurn bool

	Players []PlayerState
	Actors  []ActorState
	Effects []EffectState
	Quests  []QuestState
}

// PlayerState is the saved state of one player, in turn order.
type PlayerState struct {
	ID        string
	Name      string
	Team      int
	Territory []Point
	HadCity   bool
	// AchievedEnding names the achieved ending, or is empty.
	AchievedEnding string
}

// ActorState is the saved state of one actor. Actors are listed per owner in dispatch order.
type ActorState struct {
	ID        string
	Kind      string
	Owner     int
	Placed    bool
	Position  Point
	RemainAP  float64
	RemainHP  float64
	Flags     Flags
	Path      []Point
	Cooldowns []int
}

// EffectState is the saved state of one enabled effect.
type EffectState struct {
	ID   string
	Kind string
	Tag  EffectTag
	// TargetActor is the target actor's ID; empty for player effects.
	TargetActor string
	// TargetPlayer is the target player's index; -1 for actor effects.
	TargetPlayer int
	Duration     int
	LeftTurn     int
	Params       map[string]float64
}

// QuestState is the saved state of one quest.
type QuestState struct {
	ID        string
	Spec      QuestSpec
	Requestee int
	// Requester is -1 when the quest has no requester.
	Requester int
	Status    QuestStatus
	LeftTurn  int
}

// EffectFactory rebuilds an effect behavior from the parameters it encoded.
type EffectFactory func(params map[string]float64) (EffectBehavior, error)

// QuestFactory rebuilds a quest behavior.
type QuestFactory func(spec QuestSpec) (QuestBehavior, error)

// Registry resolves the names stored in a snapshot back to prototypes and behaviors.
type Registry struct {
	Actors  Catalog
	Effects map[string]EffectFactory
	// Quests is keyed by quest name.
	Quests map[string]QuestFactory
	// Endings are made available to every restored player.
	Endings []*Ending
}

// Snapshot captures the game. It may be taken from inside a phase callback or listener; a
// snapshot taken while a subturn is ending records the next subturn as not yet started.
func (g *Game) Snapshot() *Snapshot {
	sub, inside := g.turns.Position()
	s := &Snapshot{
		Version:    SnapshotVersion,
		GameID:     g.id,
		Timestamp:  time.Now(),
		SubTurn:    sub,
		InsideTurn: inside,
	}

	for _, p := range g.players {
		ps := PlayerState{
			ID:        p.id,
			Name:      p.name,
			Team:      p.team,
			Territory: p.Territory(),
			HadCity:   p.hadCity,
		}
		if p.achievedEnding != nil {
			ps.AchievedEnding = p.achievedEnding.Name
		}
		s.Players = append(s.Players, ps)

		for _, a := range p.Actors() {
			s.Actors = append(s.Actors, ActorState{
				ID:        a.id,
				Kind:      a.spec.Kind,
				Owner:     p.index,
				Placed:    a.placed,
				Position:  a.position,
				RemainAP:  a.remainAP,
				RemainHP:  a.remainHP,
				Flags:     a.flags,
				Path:      a.Path(),
				Cooldowns: append([]int(nil), a.cooldowns...),
			})
			for _, e := range a.Effects() {
				s.Effects = append(s.Effects, effectState(e, a.id, -1))
			}
		}
		for _, e := range p.Effects() {
			s.Effects = append(s.Effects, effectState(e, "", p.index))
		}
		for _, q := range p.Quests() {
			qs := QuestState{
				ID:        q.id,
				Spec:      q.spec,
				Requestee: p.index,
				Requester: -1,
				Status:    q.status,
				LeftTurn:  q.leftTurn,
			}
			if q.requester != nil {
				qs.Requester = q.requester.index
			}
			s.Quests = append(s.Quests, qs)
		}
	}
	return s
}

func effectState(e *Effect, actorID string, playerIndex int) EffectState {
	es := EffectState{
		ID:           e.id,
		Kind:         e.kind,
		Tag:          e.tag,
		TargetActor:  actorID,
		TargetPlayer: playerIndex,
		Duration:     e.duration,
		LeftTurn:     e.leftTurn,
	}
	if enc, ok := e.behavior.(EffectStateEncoder); ok {
		es.Params = enc.EncodeState()
	}
	return es
}

// Restore rebuilds a game from s. opts configure the new game as in New; the game ID is
// taken from the snapshot. The first StartTurn of a game saved inside a subturn resumes that
// subturn without dispatching Pre* phases.
func Restore(s *Snapshot, reg Registry, opts ...Option) (*Game, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: snapshot is nil", ErrInvalidArgument)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", ErrInvalidArgument, s.Version)
	}

	g, err := New(append(opts, WithID(s.GameID))...)
	if err != nil {
		return nil, err
	}

	endings := make(map[string]*Ending, len(reg.Endings))
	for _, e := range reg.Endings {
		endings[e.Name] = e
	}

	for i, ps := range s.Players {
		p, err := g.AddPlayer(ps.Name, ps.Team)
		if err != nil {
			return nil, fmt.Errorf("restore player %d: %w", i, err)
		}
		p.id = ps.ID
		for _, e := range reg.Endings {
			if err := p.AddAvailableEnding(e); err != nil {
				return nil, fmt.Errorf("restore player %s endings: %w", ps.Name, err)
			}
		}
		for _, pt := range ps.Territory {
			if err := p.AddTerritory(pt); err != nil {
				return nil, fmt.Errorf("restore player %s territory: %w", ps.Name, err)
			}
		}
		if ps.AchievedEnding != "" {
			ending, ok := endings[ps.AchievedEnding]
			if !ok {
				return nil, fmt.Errorf("%w: unknown ending %q", ErrInvalidArgument, ps.AchievedEnding)
			}
			p.achievedEnding = ending
		}
	}

	for _, as := range s.Actors {
		if err := g.restoreActor(as, reg.Actors); err != nil {
			return nil, fmt.Errorf("restore actor %s: %w", as.ID, err)
		}
	}
	// hadCity is only known after cities are re-added.
	for i, ps := range s.Players {
		g.players[i].hadCity = ps.HadCity
	}

	for _, es := range s.Effects {
		if err := g.restoreEffect(es, reg.Effects); err != nil {
			return nil, fmt.Errorf("restore effect %s: %w", es.ID, err)
		}
	}

	for _, qs := range s.Quests {
		if err := g.restoreQuest(qs, reg.Quests); err != nil {
			return nil, fmt.Errorf("restore quest %s: %w", qs.ID, err)
		}
	}

	if err := g.turns.Restore(s.SubTurn, s.InsideTurn); err != nil {
		return nil, err
	}

	// Two saved effects sharing a tag on one target evict each other on restore.
	if n := g.EffectCount(); n != len(s.Effects) {
		return nil, fmt.Errorf("%w: %d of %d saved effects stayed enabled", ErrInvalidArgument, n, len(s.Effects))
	}

	g.logger.Info("game restored",
		zap.String("game_id", g.id),
		zap.Int("sub_turn", s.SubTurn),
		zap.Bool("inside_turn", s.InsideTurn),
		zap.Int("actors", len(s.Actors)),
		zap.Int("effects", g.EffectCount()),
	)
	return g, nil
}

func (g *Game) restoreActor(as ActorState, catalog Catalog) error {
	owner := g.Player(as.Owner)
	if owner == nil {
		return fmt.Errorf("%w: owner index %d", ErrOutOfRange, as.Owner)
	}
	spec, err := catalog.Lookup(as.Kind)
	if err != nil {
		return err
	}
	a, err := g.NewActor(owner, spec)
	if err != nil {
		return err
	}
	delete(g.actorByID, a.id)
	a.id = as.ID
	g.actorByID[a.id] = a

	if as.Placed {
		if err := g.PlaceActor(a, as.Position); err != nil {
			return err
		}
	}
	if err := a.SetRemainAP(as.RemainAP); err != nil {
		return err
	}
	if err := a.SetRemainHP(as.RemainHP); err != nil {
		return err
	}
	if err := a.SetFlag(^Flags(0), false); err != nil {
		return err
	}
	if err := a.SetFlag(as.Flags, true); err != nil {
		return err
	}
	for i, cd := range as.Cooldowns {
		if err := a.SetCooldown(i, cd); err != nil {
			return err
		}
	}
	return a.SetPath(as.Path)
}

func (g *Game) restoreEffect(es EffectState, factories map[string]EffectFactory) error {
	factory, ok := factories[es.Kind]
	if !ok {
		return fmt.Errorf("%w: no factory for effect kind %q", ErrInvalidArgument, es.Kind)
	}
	behavior, err := factory(es.Params)
	if err != nil {
		return err
	}

	var e *Effect
	if es.TargetActor != "" {
		target, ok := g.ActorByID(es.TargetActor)
		if !ok {
			return fmt.Errorf("%w: unknown target actor %s", ErrInvalidArgument, es.TargetActor)
		}
		e, err = g.NewActorEffect(target, es.Kind, es.Tag, es.Duration, behavior)
	} else {
		target := g.Player(es.TargetPlayer)
		if target == nil {
			return fmt.Errorf("%w: target player index %d", ErrOutOfRange, es.TargetPlayer)
		}
		e, err = g.NewPlayerEffect(target, es.Kind, es.Tag, es.Duration, behavior)
	}
	if err != nil {
		return err
	}
	e.id = es.ID
	if err := e.EffectOn(); err != nil {
		return err
	}
	return e.setLeftTurn(es.LeftTurn)
}

func (g *Game) restoreQuest(qs QuestState, factories map[string]QuestFactory) error {
	factory, ok := factories[qs.Spec.Name]
	if !ok {
		return fmt.Errorf("%w: no factory for quest %q", ErrInvalidArgument, qs.Spec.Name)
	}
	behavior, err := factory(qs.Spec)
	if err != nil {
		return err
	}
	requestee := g.Player(qs.Requestee)
	if requestee == nil {
		return fmt.Errorf("%w: requestee index %d", ErrOutOfRange, qs.Requestee)
	}
	var requester *Player
	if qs.Requester >= 0 {
		if requester = g.Player(qs.Requester); requester == nil {
			return fmt.Errorf("%w: requester index %d", ErrOutOfRange, qs.Requester)
		}
	}
	q, err := g.NewQuest(requestee, requester, qs.Spec, behavior)
	if err != nil {
		return err
	}
	q.id = qs.ID
	q.restore(qs.Status, qs.LeftTurn)
	if r, ok := behavior.(QuestResumer); ok {
		r.OnResume(q)
	}
	return nil
}
