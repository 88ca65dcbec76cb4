package indexer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nftstake/core/events"
	"nftstake/crypto"
)

// DefaultHistoryLimit caps ByUser when the caller passes no limit.
const DefaultHistoryLimit = 100

// Store persists staking events into a relational history index.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	mu      sync.Mutex
	lastErr error
}

// Open connects to the index database using driver ("sqlite" or "postgres")
// and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unknown driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("indexer: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Store{db: db, logger: slog.Default()}, nil
}

func (s *Store) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	s.logger = l
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. Failures are logged and retained for
// LastError.
func (s *Store) Emit(evt events.Event) {
	var err error
	switch e := evt.(type) {
	case *events.StakeUnstaked:
		err = s.RecordUnstake(*e)
	case events.StakeUnstaked:
		err = s.RecordUnstake(e)
	case *events.CustodyLockFlagUpdated:
		err = s.recordLock(e.EventType(), e.Asset, e.Collection, e.Authority, e.Frozen)
	case *events.CustodyLockCapabilityRemoved:
		err = s.recordLock(e.EventType(), e.Asset, e.Collection, e.Authority, false)
	default:
		return
	}
	if err != nil {
		s.logger.Error("index event", "type", evt.EventType(), "error", err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
	}
}

// LastError returns the most recent indexing failure, if any.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// RecordUnstake stores one unstake row. Replaying the same receipt is a no-op.
func (s *Store) RecordUnstake(e events.StakeUnstaked) error {
	row := UnstakeRecord{
		ID:           uuid.New(),
		ReceiptID:    hex.EncodeToString(e.ReceiptID[:]),
		UserAddress:  e.User.String(),
		Asset:        e.Asset.String(),
		Collection:   e.Collection.String(),
		StakedAt:     e.StakedAt,
		UnstakedAt:   e.UnstakedAt,
		DaysElapsed:  int64(e.DaysElapsed),
		PointsEarned: int64(e.PointsEarned),
		PointsTotal:  int64(e.PointsTotal),
		AmountStaked: int64(e.AmountStaked),
		RentRefunded: clampInt64(e.RentRefunded),
	}
	var existing int64
	if err := s.db.Model(&UnstakeRecord{}).Where("receipt_id = ?", row.ReceiptID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	return s.db.Create(&row).Error
}

// clampInt64 narrows v into the signed column range.
func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func (s *Store) recordLock(kind string, asset, collection, authority crypto.Address, frozen bool) error {
	return s.db.Create(&LockEvent{
		ID:         uuid.New(),
		Type:       kind,
		Asset:      asset.String(),
		Collection: collection.String(),
		Authority:  authority.String(),
		Frozen:     frozen,
	}).Error
}

// ByUser returns the user's most recent unstakes, newest first.
func (s *Store) ByUser(user crypto.Address, limit int) ([]UnstakeRecord, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	var rows []UnstakeRecord
	err := s.db.Where("user_address = ?", user.String()).
		Order("unstaked_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ByAsset returns every unstake of asset, oldest first.
func (s *Store) ByAsset(asset crypto.Address) ([]UnstakeRecord, error) {
	var rows []UnstakeRecord
	err := s.db.Where("asset = ?", asset.String()).Order("unstaked_at ASC").Find(&rows).Error
	return rows, err
}

// TotalPoints sums the points the index has seen credited to user.
func (s *Store) TotalPoints(user crypto.Address) (uint64, error) {
	var total int64
	err := s.db.Model(&UnstakeRecord{}).
		Select("COALESCE(SUM(points_earned), 0)").
		Where("user_address = ?", user.String()).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return uint64(total), nil
}

// LockEvents returns the custody transitions recorded for asset.
func (s *Store) LockEvents(asset crypto.Address) ([]LockEvent, error) {
	var rows []LockEvent
	err := s.db.Where("asset = ?", asset.String()).Order("created_at ASC").Find(&rows).Error
	return rows, err
}
