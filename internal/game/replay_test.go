package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// recordTurns records n boundaries of a two-player game, one per full turn.
func recordTurns(t *testing.T, replay *Replay, n int) {
	t.Helper()
	players := []PlayerState{{Name: "red"}, {Name: "blue", Team: 1}}
	for i := range n {
		require.NoError(t, replay.Record(&Snapshot{
			Version: SnapshotVersion,
			GameID:  replay.GameID,
			SubTurn: 2 * i,
			Players: players,
		}))
	}
}

func TestReplayFrames(t *testing.T) {
	replay := NewReplay("game-123")
	assert.Zero(t, replay.Len())
	assert.Nil(t, replay.Frame(0))

	recordTurns(t, replay, 5)
	assert.Equal(t, 5, replay.Len())
	assert.Equal(t, 0, replay.Frame(0).TurnNumber())
	assert.Equal(t, 4, replay.Frame(4).TurnNumber())
	assert.Nil(t, replay.Frame(-1))
	assert.Nil(t, replay.Frame(5))
}

func TestReplayAtTurn(t *testing.T) {
	replay := NewReplay("game-123")
	recordTurns(t, replay, 3)

	assert.Equal(t, 2, replay.AtTurn(1).SubTurn)
	assert.Equal(t, 4, replay.AtTurn(9).SubTurn, "later turns resolve to the last frame")
	assert.Nil(t, replay.AtTurn(-1))
}

func TestReplaySeek(t *testing.T) {
	replay := NewReplay("game-123")
	assert.Nil(t, replay.Seek(1))

	recordTurns(t, replay, 10)
	assert.Equal(t, 0, replay.Rewind().SubTurn)

	assert.Equal(t, 6, replay.Seek(3).SubTurn)
	assert.Equal(t, 3, replay.Cursor())
	assert.Equal(t, 4, replay.Seek(-1).SubTurn)

	assert.Equal(t, 18, replay.Seek(100).SubTurn)
	assert.Equal(t, 9, replay.Cursor())
	assert.Equal(t, 0, replay.Seek(-100).SubTurn)
	assert.Equal(t, 0, replay.Cursor())
}

func TestReplayVerifyDetectsTampering(t *testing.T) {
	replay := NewReplay("game-123")
	recordTurns(t, replay, 2)
	require.NoError(t, replay.Verify())

	replay.Frame(1).SubTurn = 99
	assert.ErrorIs(t, replay.Verify(), ErrInvalidArgument)
}

func TestReplayWriteAndRead(t *testing.T) {
	h := newHarness(t)
	h.placed(h.red, citySpec(20, 1), Point{X: 2, Y: 2})

	replay := NewReplay(h.game.ID())
	require.NoError(t, replay.Record(h.game.Snapshot()))
	h.fullTurn()
	require.NoError(t, replay.Record(h.game.Snapshot()))

	dir := filepath.Join(t.TempDir(), "nested", "replays")
	require.NoError(t, replay.WriteFile(dir))
	_, err := os.Stat(filepath.Join(dir, h.game.ID()+".replay"))
	require.NoError(t, err)

	loaded, err := ReadReplay(dir, h.game.ID())
	require.NoError(t, err)
	assert.Equal(t, replay.GameID, loaded.GameID)
	require.Equal(t, replay.Len(), loaded.Len())

	for i := range replay.Len() {
		want, err := replay.Frame(i).Checksum()
		require.NoError(t, err)
		ok, err := loaded.Frame(i).VerifyChecksum(want)
		require.NoError(t, err)
		assert.True(t, ok, "frame %d", i)
	}
	assert.Equal(t, 1, loaded.Frame(1).TurnNumber())
}

func TestReadReplayErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadReplay(dir, "missing")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.replay"), []byte("not a replay"), 0o644))
	_, err = ReadReplay(dir, "junk")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReplayRecorderRecordsFullTurns(t *testing.T) {
	h := newHarness(t)
	recorder := NewReplayRecorder(zaptest.NewLogger(t), t.TempDir())

	recorder.Attach(h.game)
	assert.True(t, recorder.IsRecording(h.game.ID()))

	h.fullTurn()
	h.fullTurn()
	require.NoError(t, h.game.StartTurn())
	require.NoError(t, h.game.EndTurn())

	replay, ok := recorder.GetReplay(h.game.ID())
	require.True(t, ok)
	require.Equal(t, 3, replay.Len())
	assert.Equal(t, 0, replay.Frame(0).SubTurn)
	assert.Equal(t, 2, replay.Frame(1).SubTurn)
	assert.Equal(t, 4, replay.Frame(2).SubTurn)
	assert.False(t, replay.Frame(1).InsideTurn)

	recorder.Detach(h.game.ID())
	assert.False(t, recorder.IsRecording(h.game.ID()))
	require.NoError(t, h.game.StartTurn())
	require.NoError(t, h.game.EndTurn())
	assert.Equal(t, 3, replay.Len())

	require.NoError(t, recorder.SaveReplay(h.game.ID()))
	_, ok = recorder.GetReplay(h.game.ID())
	assert.False(t, ok)

	loaded, err := recorder.LoadReplay(h.game.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
}

func TestReplayRecorderClear(t *testing.T) {
	h := newHarness(t)
	recorder := NewReplayRecorder(zap.NewNop(), t.TempDir())
	recorder.Attach(h.game)

	recorder.ClearReplay(h.game.ID())
	_, ok := recorder.GetReplay(h.game.ID())
	assert.False(t, ok)
	assert.False(t, recorder.IsRecording(h.game.ID()))

	h.fullTurn()
	_, ok = recorder.GetReplay(h.game.ID())
	assert.False(t, ok)
	assert.Error(t, recorder.SaveReplay(h.game.ID()))
}
