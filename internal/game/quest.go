package game

import (
	"fmt"
	"iter"

	"github.com/civmodel/civkernel/internal/game/rules"
	"go.uber.org/zap"
)

// QuestStatus is the state of a quest.
type QuestStatus int

const (
	QuestDisabled QuestStatus = iota
	QuestDeployed
	QuestAccepted
	QuestCompleted
)

func (s QuestStatus) String() string {
	switch s {
	case QuestDisabled:
		return "disabled"
	case QuestDeployed:
		return "deployed"
	case QuestAccepted:
		return "accepted"
	case QuestCompleted:
		return "completed"
	default:
		return fmt.Sprintf("quest_status(%d)", int(s))
	}
}

// QuestBehavior is the scripted part of a quest.
type QuestBehavior interface {
	OnAccept(q *Quest)
	OnGiveup(q *Quest)
	OnComplete(q *Quest)
}

// QuestResumer is implemented by behaviors that hold live state, such as bus subscriptions,
// while a quest is accepted. OnResume runs after a restored quest regains its saved status.
type QuestResumer interface {
	OnResume(q *Quest)
}

// QuestSpec describes a quest's fixed attributes.
type QuestSpec struct {
	Name string
	// PostingTurn is how long a deployed quest stays on offer.
	PostingTurn int
	// LimitTurn is how long an accepted quest may take.
	LimitTurn int
}

// Quest is an offer from one player (or nobody) to another.
type Quest struct {
	id        string
	spec      QuestSpec
	requester *Player
	requestee *Player
	status    QuestStatus
	leftTurn  int
	behavior  QuestBehavior
}

// NewQuest creates a disabled quest for requestee. requester may be nil.
func (g *Game) NewQuest(requestee, requester *Player, spec QuestSpec, behavior QuestBehavior) (*Quest, error) {
	if requestee == nil {
		return nil, fmt.Errorf("%w: requestee is nil", ErrInvalidArgument)
	}
	if requestee.game != g || (requester != nil && requester.game != g) {
		return nil, fmt.Errorf("%w: quest players belong to another game", ErrInvalidArgument)
	}
	if behavior == nil {
		return nil, fmt.Errorf("%w: quest behavior is nil", ErrInvalidArgument)
	}
	if spec.PostingTurn < 0 || spec.LimitTurn < 0 {
		return nil, fmt.Errorf("%w: quest %s has negative turn limits", ErrOutOfRange, spec.Name)
	}
	q := &Quest{
		id:        g.newID(),
		spec:      spec,
		requester: requester,
		requestee: requestee,
		leftTurn:  -1,
		behavior:  behavior,
	}
	requestee.addQuest(q)
	return q, nil
}

func (q *Quest) ID() string          { return q.id }
func (q *Quest) Name() string        { return q.spec.Name }
func (q *Quest) Spec() QuestSpec     { return q.spec }
func (q *Quest) Requester() *Player  { return q.requester }
func (q *Quest) Requestee() *Player  { return q.requestee }
func (q *Quest) Status() QuestStatus { return q.status }
func (q *Quest) Game() *Game         { return q.requestee.game }

// LeftTurn is the countdown for the current status, or -1.
func (q *Quest) LeftTurn() int { return q.leftTurn }

// Behavior returns the quest's scripted part.
func (q *Quest) Behavior() QuestBehavior { return q.behavior }

// SetStatus moves the quest to status through the matching transition.
func (q *Quest) SetStatus(status QuestStatus) error {
	switch status {
	case QuestDisabled:
		return q.Disable()
	case QuestDeployed:
		return q.Deploy()
	case QuestAccepted:
		return q.Accept()
	case QuestCompleted:
		return q.Complete()
	}
	return fmt.Errorf("%w: unknown quest status %d", ErrInvalidArgument, int(status))
}

// Disable withdraws the quest. An accepted quest is given up.
func (q *Quest) Disable() error {
	prev := q.status
	if prev == QuestDisabled {
		return nil
	}
	if prev == QuestCompleted {
		return fmt.Errorf("%w: cannot mark completed quest as disabled", ErrInvalidOperation)
	}
	q.transition(QuestDisabled, -1)
	if prev == QuestAccepted {
		q.behavior.OnGiveup(q)
	}
	return nil
}

// Deploy offers the quest for PostingTurn turns. An accepted quest is given up.
func (q *Quest) Deploy() error {
	prev := q.status
	if prev == QuestDeployed {
		return nil
	}
	if prev == QuestCompleted {
		return fmt.Errorf("%w: cannot mark completed quest as deployed", ErrInvalidOperation)
	}
	q.transition(QuestDeployed, q.spec.PostingTurn)
	if prev == QuestAccepted {
		q.behavior.OnGiveup(q)
	}
	return nil
}

// Accept takes a deployed quest for LimitTurn turns.
func (q *Quest) Accept() error {
	prev := q.status
	if prev == QuestAccepted {
		return nil
	}
	if prev != QuestDeployed {
		return fmt.Errorf("%w: cannot mark %s quest as accepted", ErrInvalidOperation, prev)
	}
	q.transition(QuestAccepted, q.spec.LimitTurn)
	q.behavior.OnAccept(q)
	return nil
}

// Complete finishes an accepted quest.
func (q *Quest) Complete() error {
	prev := q.status
	if prev == QuestCompleted {
		return nil
	}
	if prev != QuestAccepted {
		return fmt.Errorf("%w: cannot mark %s quest as completed", ErrInvalidOperation, prev)
	}
	q.transition(QuestCompleted, -1)
	q.behavior.OnComplete(q)
	return nil
}

func (q *Quest) transition(status QuestStatus, leftTurn int) {
	prev := q.status
	q.status = status
	q.leftTurn = leftTurn

	g := q.requestee.game
	g.logger.Debug("quest status changed",
		zap.String("quest", q.spec.Name),
		zapPlayer(q.requestee),
		zap.Stringer("from", prev),
		zap.Stringer("to", status),
	)
	evt := g.newEvent(EventQuestStatus, q.id, "", q.requestee)
	evt.Payload = q
	g.bus.Publish(evt)
}

// restore sets saved state without running behavior hooks.
func (q *Quest) restore(status QuestStatus, leftTurn int) {
	q.status = status
	q.leftTurn = leftTurn
}

// ReceivePhase implements rules.Node: the countdown runs on PostTurn.
func (q *Quest) ReceivePhase(ctx rules.PhaseContext) {
	if ctx.Phase != rules.PhasePostTurn {
		return
	}
	switch {
	case q.leftTurn == 0:
		var err error
		switch q.status {
		case QuestAccepted:
			err = q.Deploy()
		case QuestDeployed:
			err = q.Disable()
		}
		if err != nil {
			q.Game().logger.Warn("quest expiry failed", zap.String("quest", q.spec.Name), zap.Error(err))
		}
	case q.leftTurn > 0:
		q.leftTurn--
	}
}

// PhaseChildren implements rules.Node. Quests are leaves.
func (q *Quest) PhaseChildren(rules.Direction) iter.Seq[rules.Node] {
	return func(func(rules.Node) bool) {}
}
