package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnstakeRecord is one committed unstake.
type UnstakeRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReceiptID    string    `gorm:"size:64;uniqueIndex"`
	UserAddress  string    `gorm:"size:96;index"`
	Asset        string    `gorm:"size:96;index"`
	Collection   string    `gorm:"size:96;index"`
	StakedAt     int64
	UnstakedAt   int64 `gorm:"index"`
	DaysElapsed  int64
	PointsEarned int64
	PointsTotal  int64
	AmountStaked int64
	RentRefunded int64
	CreatedAt    time.Time
}

// LockEvent records custody lock transitions observed alongside unstakes.
type LockEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type       string    `gorm:"size:64;index"`
	Asset      string    `gorm:"size:96;index"`
	Collection string    `gorm:"size:96"`
	Authority  string    `gorm:"size:96"`
	Frozen     bool
	CreatedAt  time.Time
}

// AutoMigrate performs all schema migrations for the index.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UnstakeRecord{},
		&LockEvent{},
	)
}
