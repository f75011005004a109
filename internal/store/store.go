// Package store persists game snapshots. Backends keep the gob encoding produced by
// game.Snapshot.Encode together with its checksum and verify it on load.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civmodel/civkernel/internal/config"
	"github.com/civmodel/civkernel/internal/game"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for an unknown snapshot ID.
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt is returned when stored data no longer matches its checksum.
	ErrCorrupt = errors.New("snapshot checksum mismatch")
)

// Info describes one stored snapshot.
type Info struct {
	ID        string
	GameID    string
	SubTurn   int
	Checksum  string
	CreatedAt time.Time
}

// Store is implemented by every snapshot backend.
type Store interface {
	// Save stores s under a new ID.
	Save(ctx context.Context, s *game.Snapshot) (Info, error)
	Load(ctx context.Context, id string) (*game.Snapshot, error)
	// List returns the snapshots of gameID, oldest subturn first.
	List(ctx context.Context, gameID string) ([]Info, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open creates the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverSQLite:
		return NewSQLite(cfg.DSN, logger)
	case config.DriverPostgres:
		return NewPostgres(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", game.ErrInvalidArgument, cfg.Driver)
	}
}

// Latest returns the most recent snapshot of gameID.
func Latest(ctx context.Context, st Store, gameID string) (*game.Snapshot, error) {
	infos, err := st.List(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: game %s has no snapshots", ErrNotFound, gameID)
	}
	return st.Load(ctx, infos[len(infos)-1].ID)
}

func encode(s *game.Snapshot) (Info, []byte, error) {
	if s == nil {
		return Info{}, nil, fmt.Errorf("%w: snapshot is nil", game.ErrInvalidArgument)
	}
	sum, err := s.Checksum()
	if err != nil {
		return Info{}, nil, err
	}
	data, err := s.Encode()
	if err != nil {
		return Info{}, nil, err
	}
	info := Info{
		ID:        uuid.NewString(),
		GameID:    s.GameID,
		SubTurn:   s.SubTurn,
		Checksum:  sum.Hash,
		CreatedAt: time.Now().UTC(),
	}
	return info, data, nil
}

func decode(id, checksum string, data []byte) (*game.Snapshot, error) {
	s, err := game.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %w", ErrCorrupt, id, err)
	}
	ok, err := s.VerifyChecksum(&game.SnapshotChecksum{Hash: checksum})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: snapshot %s", ErrCorrupt, id)
	}
	return s, nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
