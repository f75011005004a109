package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/civmodel/civkernel/internal/game/rules"
	"go.uber.org/zap"
)

// Replay is a recorded game: one snapshot per full turn boundary, each stored with the
// checksum it had when recorded.
type Replay struct {
	GameID string

	mu     sync.RWMutex
	frames []replayFrame
	cursor int
}

type replayFrame struct {
	state *Snapshot
	hash  string
}

func NewReplay(gameID string) *Replay {
	return &Replay{GameID: gameID}
}

// TurnNumber is the full turn the snapshot was taken in.
func (s *Snapshot) TurnNumber() int {
	if len(s.Players) == 0 {
		return 0
	}
	return s.SubTurn / len(s.Players)
}

// Record appends s.
func (r *Replay) Record(s *Snapshot) error {
	sum, err := s.Checksum()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, replayFrame{state: s, hash: sum.Hash})
	return nil
}

func (r *Replay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.frames)
}

// Frame returns the i-th recorded snapshot, or nil.
func (r *Replay) Frame(i int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.frames) {
		return nil
	}
	return r.frames[i].state
}

// AtTurn returns the last snapshot taken no later than the start of turn, or nil when the
// replay begins after it.
func (r *Replay) AtTurn(turn int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *Snapshot
	for _, f := range r.frames {
		if f.state.TurnNumber() > turn {
			break
		}
		found = f.state
	}
	return found
}

// Rewind moves the playback cursor to the first frame and returns it.
func (r *Replay) Rewind() *Snapshot {
	r.mu.Lock()
	r.cursor = 0
	r.mu.Unlock()
	return r.Frame(0)
}

// Seek moves the playback cursor by delta frames, clamped to the recording, and returns the
// frame under it. An empty replay returns nil.
func (r *Replay) Seek(delta int) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	r.cursor = max(0, min(r.cursor+delta, len(r.frames)-1))
	return r.frames[r.cursor].state
}

// Cursor returns the playback position.
func (r *Replay) Cursor() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cursor
}

// Verify recomputes every frame checksum.
func (r *Replay) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, f := range r.frames {
		sum, err := f.state.Checksum()
		if err != nil {
			return err
		}
		if sum.Hash != f.hash {
			return fmt.Errorf("%w: replay %s frame %d does not match its checksum", ErrInvalidArgument, r.GameID, i)
		}
	}
	return nil
}

func replayPath(dir, gameID string) string {
	return filepath.Join(dir, gameID+".replay")
}

// replayHeader leads a replay file; the frames follow as gob-encoded snapshots.
type replayHeader struct {
	GameID  string
	Version int
	Written time.Time
	Hashes  []string
}

// WriteFile saves the replay as <dir>/<GameID>.replay, gzip-compressed gob. dir is created
// when missing.
func (r *Replay) WriteFile(dir string) (err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating replay directory: %w", err)
	}
	f, err := os.Create(replayPath(dir, r.GameID))
	if err != nil {
		return fmt.Errorf("creating replay file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw := gzip.NewWriter(f)
	enc := gob.NewEncoder(zw)
	hdr := replayHeader{GameID: r.GameID, Version: SnapshotVersion, Written: time.Now().UTC()}
	for _, fr := range r.frames {
		hdr.Hashes = append(hdr.Hashes, fr.hash)
	}
	if err := enc.Encode(&hdr); err != nil {
		return fmt.Errorf("encoding replay header: %w", err)
	}
	for i, fr := range r.frames {
		if err := enc.Encode(fr.state); err != nil {
			return fmt.Errorf("encoding replay frame %d: %w", i, err)
		}
	}
	return zw.Close()
}

// ReadReplay loads <dir>/<gameID>.replay and checks every frame against its recorded checksum.
func ReadReplay(dir, gameID string) (*Replay, error) {
	f, err := os.Open(replayPath(dir, gameID))
	if err != nil {
		return nil, fmt.Errorf("opening replay: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: replay %s is not gzip: %w", ErrInvalidArgument, gameID, err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var hdr replayHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("%w: decoding replay header: %w", ErrInvalidArgument, err)
	}
	if hdr.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: replay version %d, want %d", ErrInvalidArgument, hdr.Version, SnapshotVersion)
	}

	replay := NewReplay(hdr.GameID)
	for i, hash := range hdr.Hashes {
		state := new(Snapshot)
		if err := dec.Decode(state); err != nil {
			return nil, fmt.Errorf("%w: decoding replay frame %d: %w", ErrInvalidArgument, i, err)
		}
		replay.frames = append(replay.frames, replayFrame{state: state, hash: hash})
	}
	if err := replay.Verify(); err != nil {
		return nil, err
	}
	return replay, nil
}

// ReplayRecorder records a snapshot of each attached game at every full turn boundary.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	handles map[string]recording
	saveDir string
}

type recording struct {
	bus    *rules.EventBus
	handle int
}

// NewReplayRecorder creates a recorder that saves replays under saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		handles: make(map[string]recording),
		saveDir: saveDir,
	}
}

// Attach starts recording g. The current state is recorded immediately, then one snapshot
// per AFTER_POST_TURN. Attaching a game twice restarts its replay.
func (rr *ReplayRecorder) Attach(g *Game) {
	rr.Detach(g.ID())

	replay := NewReplay(g.ID())
	rr.record(replay, g)

	handle := g.Bus().SubscribeTyped(rules.EventAfterPostTurn, func(rules.Event) {
		rr.record(replay, g)
	}, rules.PriorityDefault)

	rr.mu.Lock()
	rr.replays[g.ID()] = replay
	rr.handles[g.ID()] = recording{bus: g.Bus(), handle: handle}
	rr.mu.Unlock()

	rr.logger.Info("started replay recording", zap.String("game_id", g.ID()))
}

func (rr *ReplayRecorder) record(replay *Replay, g *Game) {
	if err := replay.Record(g.Snapshot()); err != nil {
		rr.logger.Error("failed to record replay frame", zap.String("game_id", g.ID()), zap.Error(err))
		return
	}
	rr.logger.Debug("recorded replay frame",
		zap.String("game_id", g.ID()),
		zap.Int("frames", replay.Len()),
	)
}

// Detach stops recording gameID. The replay stays available.
func (rr *ReplayRecorder) Detach(gameID string) {
	rr.mu.Lock()
	rec, ok := rr.handles[gameID]
	delete(rr.handles, gameID)
	rr.mu.Unlock()

	if !ok {
		return
	}
	rec.bus.Unsubscribe(rec.handle)
	rr.logger.Info("stopped replay recording", zap.String("game_id", gameID))
}

// IsRecording reports whether gameID is attached.
func (rr *ReplayRecorder) IsRecording(gameID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	_, ok := rr.handles[gameID]
	return ok
}

// GetReplay returns the replay of gameID.
func (rr *ReplayRecorder) GetReplay(gameID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	replay, exists := rr.replays[gameID]
	return replay, exists
}

// SaveReplay detaches gameID, writes its replay to disk and drops it from memory.
func (rr *ReplayRecorder) SaveReplay(gameID string) error {
	rr.Detach(gameID)

	rr.mu.Lock()
	replay, exists := rr.replays[gameID]
	if !exists {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for game %s", gameID)
	}
	delete(rr.replays, gameID)
	rr.mu.Unlock()

	if err := replay.WriteFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}

	rr.logger.Info("saved replay to disk",
		zap.String("game_id", gameID),
		zap.Int("frames", replay.Len()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// LoadReplay reads a saved replay from the recorder's directory.
func (rr *ReplayRecorder) LoadReplay(gameID string) (*Replay, error) {
	replay, err := ReadReplay(rr.saveDir, gameID)
	if err != nil {
		return nil, err
	}

	rr.logger.Info("loaded replay from disk",
		zap.String("game_id", gameID),
		zap.Int("frames", replay.Len()),
	)
	return replay, nil
}

// ClearReplay detaches gameID and drops its replay without saving.
func (rr *ReplayRecorder) ClearReplay(gameID string) {
	rr.Detach(gameID)

	rr.mu.Lock()
	delete(rr.replays, gameID)
	rr.mu.Unlock()

	rr.logger.Debug("cleared replay from memory", zap.String("game_id", gameID))
}
