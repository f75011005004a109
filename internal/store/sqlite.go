package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// snapshotRow is the gorm model of a stored snapshot.
type snapshotRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	GameID    string `gorm:"index:idx_snapshots_game;size:36;not null"`
	SubTurn   int    `gorm:"index:idx_snapshots_game;not null"`
	Checksum  string `gorm:"size:64;not null"`
	Data      []byte `gorm:"not null"`
	CreatedAt time.Time
}

func (snapshotRow) TableName() string { return "snapshots" }

func (r snapshotRow) info() Info {
	return Info{ID: r.ID, GameID: r.GameID, SubTurn: r.SubTurn, Checksum: r.Checksum, CreatedAt: r.CreatedAt}
}

// SQLite stores snapshots through gorm on the pure-Go SQLite driver.
type SQLite struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLite opens dsn and migrates the schema. "file::memory:" gives a private in-memory
// database; the pool is limited to one connection so every query sees it.
func NewSQLite(dsn string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate snapshots table: %w", err)
	}
	logger.Debug("sqlite snapshot store ready", zap.String("dsn", dsn))
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Save(ctx context.Context, snap *game.Snapshot) (Info, error) {
	info, data, err := encode(snap)
	if err != nil {
		return Info{}, err
	}
	row := snapshotRow{
		ID:        info.ID,
		GameID:    info.GameID,
		SubTurn:   info.SubTurn,
		Checksum:  info.Checksum,
		Data:      data,
		CreatedAt: info.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Info{}, fmt.Errorf("failed to save snapshot: %w", err)
	}
	s.logger.Debug("snapshot saved", zap.String("id", info.ID), zap.Int("bytes", len(data)))
	return info, nil
}

func (s *SQLite) Load(ctx context.Context, id string) (*game.Snapshot, error) {
	var row snapshotRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", id, err)
	}
	return decode(id, row.Checksum, row.Data)
}

func (s *SQLite) List(ctx context.Context, gameID string) ([]Info, error) {
	var rows []snapshotRow
	err := s.db.WithContext(ctx).
		Select("id", "game_id", "sub_turn", "checksum", "created_at").
		Where("game_id = ?", gameID).
		Order("sub_turn, created_at, rowid").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	out := make([]Info, len(rows))
	for i, r := range rows {
		out[i] = r.info()
	}
	return out, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&snapshotRow{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
