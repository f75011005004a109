package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS civkernel_snapshots (
	id         TEXT PRIMARY KEY,
	game_id    TEXT NOT NULL,
	sub_turn   INTEGER NOT NULL,
	checksum   TEXT NOT NULL,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS civkernel_snapshots_game ON civkernel_snapshots (game_id, sub_turn);
`

// Postgres stores snapshots in PostgreSQL through a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres connects to dsn, checks the connection and creates the table if needed.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create snapshots table: %w", err)
	}
	logger.Info("postgres snapshot store ready")
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Save(ctx context.Context, s *game.Snapshot) (Info, error) {
	info, data, err := encode(s)
	if err != nil {
		return Info{}, err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO civkernel_snapshots (id, game_id, sub_turn, checksum, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		info.ID, info.GameID, info.SubTurn, info.Checksum, data, info.CreatedAt)
	if err != nil {
		return Info{}, fmt.Errorf("failed to save snapshot: %w", err)
	}
	p.logger.Debug("snapshot saved", zap.String("id", info.ID), zap.Int("bytes", len(data)))
	return info, nil
}

func (p *Postgres) Load(ctx context.Context, id string) (*game.Snapshot, error) {
	var checksum string
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT checksum, data FROM civkernel_snapshots WHERE id = $1`, id).Scan(&checksum, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", id, err)
	}
	return decode(id, checksum, data)
}

func (p *Postgres) List(ctx context.Context, gameID string) ([]Info, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, game_id, sub_turn, checksum, created_at FROM civkernel_snapshots
		 WHERE game_id = $1 ORDER BY sub_turn, created_at`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ID, &info.GameID, &info.SubTurn, &info.Checksum, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM civkernel_snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
