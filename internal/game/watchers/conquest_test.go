package watchers

import (
	"testing"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) conquest(victories int) (*game.Quest, *Conquest) {
	f.t.Helper()
	c, err := NewConquest(victories)
	require.NoError(f.t, err)
	q, err := f.g.NewQuest(f.red, nil, game.QuestSpec{Name: ConquestQuestName, PostingTurn: 2, LimitTurn: 3}, c)
	require.NoError(f.t, err)
	require.NoError(f.t, q.Deploy())
	return q, c
}

func TestConquestCompletesOnVictories(t *testing.T) {
	f := newFixture(t)
	q, c := f.conquest(2)
	attacker := f.place(f.red, warrior(10, 10), 1, 1)

	listeners := f.g.Bus().Len()
	require.NoError(t, q.Accept())
	assert.Equal(t, listeners+1, f.g.Bus().Len())

	first := f.place(f.blue, warrior(5, 1), 2, 1)
	_, err := attacker.AttackTo(first, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Won())
	assert.Equal(t, game.QuestAccepted, q.Status())

	second := f.place(f.blue, warrior(5, 1), 2, 1)
	_, err = attacker.AttackTo(second, false, false)
	require.NoError(t, err)
	assert.Equal(t, game.QuestCompleted, q.Status())
	assert.Equal(t, listeners, f.g.Bus().Len())
}

func TestConquestCountsDefensiveVictories(t *testing.T) {
	f := newFixture(t)
	q, c := f.conquest(1)
	require.NoError(t, q.Accept())

	defender := f.place(f.red, warrior(10, 1), 1, 1)
	raider := f.place(f.blue, warrior(1, 1), 2, 1)

	result, err := raider.AttackTo(defender, true, false)
	require.NoError(t, err)
	require.Equal(t, game.BattleDefeated, result)
	assert.Equal(t, 1, c.Won())
	assert.Equal(t, game.QuestCompleted, q.Status())
}

func TestConquestGiveUpStopsCounting(t *testing.T) {
	f := newFixture(t)
	q, c := f.conquest(1)
	listeners := f.g.Bus().Len()
	require.NoError(t, q.Accept())
	require.NoError(t, q.Deploy())
	assert.Equal(t, listeners, f.g.Bus().Len())

	attacker := f.place(f.red, warrior(10, 10), 1, 1)
	_, err := attacker.AttackTo(f.place(f.blue, warrior(5, 1), 2, 1), false, false)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Won())
	assert.Equal(t, game.QuestDeployed, q.Status())
}

func TestConquestResumesAfterRestore(t *testing.T) {
	f := newFixture(t)
	q, _ := f.conquest(1)
	require.NoError(t, q.Accept())
	spec := warrior(10, 10)
	f.place(f.red, spec, 1, 1)
	f.place(f.blue, spec, 2, 1)

	reg := game.Registry{
		Actors: game.Catalog{},
		Quests: map[string]game.QuestFactory{ConquestQuestName: ConquestFactory(1)},
	}
	require.NoError(t, reg.Actors.Add(spec))
	restored, err := game.Restore(f.g.Snapshot(), reg)
	require.NoError(t, err)

	rq := restored.Player(0).Quests()[0]
	require.Equal(t, game.QuestAccepted, rq.Status())
	attacker := restored.Player(0).Units()[0]
	_, err = attacker.AttackTo(restored.Player(1).Units()[0], false, false)
	require.NoError(t, err)
	assert.Equal(t, game.QuestCompleted, rq.Status())
}

func TestNewConquestValidation(t *testing.T) {
	_, err := NewConquest(0)
	assert.ErrorIs(t, err, game.ErrOutOfRange)
	_, err = ConquestFactory(-1)(game.QuestSpec{})
	assert.ErrorIs(t, err, game.ErrOutOfRange)
}
