package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type questLog struct {
	accepted  int
	gaveUp    int
	completed int
}

func (l *questLog) OnAccept(*Quest)   { l.accepted++ }
func (l *questLog) OnGiveup(*Quest)   { l.gaveUp++ }
func (l *questLog) OnComplete(*Quest) { l.completed++ }

func TestQuestTransitions(t *testing.T) {
	h := newHarness(t)
	log := &questLog{}
	q, err := h.game.NewQuest(h.red, h.blue, QuestSpec{Name: "escort", PostingTurn: 3, LimitTurn: 5}, log)
	require.NoError(t, err)

	assert.Equal(t, QuestDisabled, q.Status())
	assert.Equal(t, -1, q.LeftTurn())
	assert.ErrorIs(t, q.Accept(), ErrInvalidOperation)
	assert.ErrorIs(t, q.Complete(), ErrInvalidOperation)

	require.NoError(t, q.Deploy())
	assert.Equal(t, 3, q.LeftTurn())
	require.NoError(t, q.Accept())
	assert.Equal(t, 5, q.LeftTurn())
	assert.Equal(t, 1, log.accepted)

	require.NoError(t, q.Complete())
	assert.Equal(t, QuestCompleted, q.Status())
	assert.Equal(t, 1, log.completed)
	assert.ErrorIs(t, q.Deploy(), ErrInvalidOperation)
	assert.ErrorIs(t, q.Disable(), ErrInvalidOperation)

	assert.Len(t, h.eventsOf(EventQuestStatus), 3)
	assert.Equal(t, []*Quest{q}, h.red.Quests())
}

func TestQuestGiveupOnWithdraw(t *testing.T) {
	h := newHarness(t)
	log := &questLog{}
	q, err := h.game.NewQuest(h.red, nil, QuestSpec{Name: "scout", PostingTurn: 2, LimitTurn: 2}, log)
	require.NoError(t, err)

	require.NoError(t, q.SetStatus(QuestDeployed))
	require.NoError(t, q.SetStatus(QuestAccepted))
	require.NoError(t, q.SetStatus(QuestDisabled))
	assert.Equal(t, 1, log.gaveUp)
	assert.Nil(t, q.Requester())
	assert.ErrorIs(t, q.SetStatus(QuestStatus(42)), ErrInvalidArgument)
}

func TestQuestCountdown(t *testing.T) {
	h := newHarness(t)
	log := &questLog{}
	q, err := h.game.NewQuest(h.red, nil, QuestSpec{Name: "hunt", PostingTurn: 1, LimitTurn: 0}, log)
	require.NoError(t, err)
	require.NoError(t, q.Deploy())
	require.NoError(t, q.Accept())

	h.fullTurn()
	assert.Equal(t, QuestDeployed, q.Status(), "accepted quest past its limit is given up")
	assert.Equal(t, 1, log.gaveUp)
	assert.Equal(t, 1, q.LeftTurn())

	h.fullTurn()
	assert.Equal(t, QuestDeployed, q.Status())
	assert.Equal(t, 0, q.LeftTurn())

	h.fullTurn()
	assert.Equal(t, QuestDisabled, q.Status())
}

func TestNewQuestValidates(t *testing.T) {
	h := newHarness(t)
	_, err := h.game.NewQuest(nil, nil, QuestSpec{Name: "x"}, &questLog{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = h.game.NewQuest(h.red, nil, QuestSpec{Name: "x"}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = h.game.NewQuest(h.red, nil, QuestSpec{Name: "x", LimitTurn: -1}, &questLog{})
	assert.ErrorIs(t, err, ErrOutOfRange)
}
