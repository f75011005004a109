package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/civmodel/civkernel/internal/game"
	"go.uber.org/zap"
)

// SessionState represents the state of a simulation session
type SessionState int

const (
	SessionStateWaiting SessionState = iota
	SessionStateRunning
	SessionStateFinished
	SessionStateFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionStateWaiting:
		return "WAITING"
	case SessionStateRunning:
		return "RUNNING"
	case SessionStateFinished:
		return "FINISHED"
	case SessionStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// SessionSnapshot is a consistent copy of a session's progress, safe to read from any goroutine.
type SessionSnapshot struct {
	ID         string
	Name       string
	State      SessionState
	Turn       int
	Turns      int
	Actions    int
	Finished   bool
	Err        string
	CreateTime time.Time
	StartTime  *time.Time
	EndTime    *time.Time
}

// Session is one game run by a Runner on its own goroutine. Once started, the game must not be
// touched from other goroutines; observe it through Snapshot or bus listeners instead.
type Session struct {
	ID   string
	Name string
	Game *game.Game

	runner *Runner
	done   chan struct{}

	mu         sync.RWMutex
	state      SessionState
	turn       int
	turns      int
	actions    int
	result     Result
	err        error
	createTime time.Time
	startTime  *time.Time
	endTime    *time.Time
}

// Start runs turns full turns in the background. A session starts at most once.
func (s *Session) Start(ctx context.Context, turns int) error {
	s.mu.Lock()
	if s.state != SessionStateWaiting {
		s.mu.Unlock()
		return fmt.Errorf("%w: session %s is %s", game.ErrInvalidOperation, s.ID, s.state)
	}
	now := time.Now()
	s.state = SessionStateRunning
	s.startTime = &now
	s.turns = turns
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		res, err := s.runner.Run(ctx, turns)

		s.mu.Lock()
		defer s.mu.Unlock()
		end := time.Now()
		s.endTime = &end
		s.result = res
		s.err = err
		if err != nil {
			s.state = SessionStateFailed
		} else {
			s.state = SessionStateFinished
		}
	}()
	return nil
}

// Done is closed when a started session stops.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the run result and error once Done is closed.
func (s *Session) Result() (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.err
}

func (s *Session) onTurn(r TurnReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turn = r.Turn + 1
	s.actions += r.Actions
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SessionSnapshot{
		ID:         s.ID,
		Name:       s.Name,
		State:      s.state,
		Turn:       s.turn,
		Turns:      s.turns,
		Actions:    s.actions,
		Finished:   s.result.Finished,
		CreateTime: s.createTime,
		StartTime:  cloneTime(s.startTime),
		EndTime:    cloneTime(s.endTime),
	}
	if s.err != nil {
		snap.Err = s.err.Error()
	}
	return snap
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}

// Manager manages simulation sessions
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// CreateSession registers a waiting session for g, keyed by the game ID. opts configure its
// runner; the session's progress tracking runs before any turn hook in opts.
func (m *Manager) CreateSession(name string, g *game.Game, opts ...Option) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[g.ID()]; exists {
		return nil, fmt.Errorf("%w: a session for game %s already exists", game.ErrInvalidArgument, g.ID())
	}
	s := &Session{
		ID:         g.ID(),
		Name:       name,
		Game:       g,
		done:       make(chan struct{}),
		state:      SessionStateWaiting,
		createTime: time.Now(),
	}
	runnerOpts := []Option{WithLogger(m.logger.Named("runner")), WithTurnHook(s.onTurn)}
	s.runner = NewRunner(g, append(runnerOpts, opts...)...)
	m.sessions[s.ID] = s

	m.logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("name", name),
		zap.Int("players", len(g.Players())),
	)
	return s, nil
}

func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	return s, ok
}

// RemoveSession forgets a session. A running session keeps running until its context ends.
func (m *Manager) RemoveSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)

	m.logger.Info("session removed", zap.String("session_id", id))
}

// GetAllSessions returns a snapshot of every session.
func (m *Manager) GetAllSessions() []SessionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SessionSnapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// GetActiveSessionCount returns the number of sessions that have not stopped.
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, s := range m.sessions {
		switch s.Snapshot().State {
		case SessionStateWaiting, SessionStateRunning:
			count++
		}
	}
	return count
}
