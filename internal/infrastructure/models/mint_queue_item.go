package models

import (
	"time"

	"github.com/google/uuid"
)

type MintQueueItem struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Payer         string    `gorm:"type:varchar(255);not null;index"`
	MintReference string    `gorm:"type:varchar(66);not null;uniqueIndex"`
	TargetAddress string    `gorm:"type:varchar(255);not null;index"`
	PaymentTxHash *string   `gorm:"type:varchar(255);index"`
	Mode          string    `gorm:"type:varchar(20);not null"`
	Status        string    `gorm:"type:varchar(50);not null;index"`
	RetryCount    int       `gorm:"default:0"`
	MintTxHash    *string   `gorm:"type:varchar(255)"`
	ErrorMessage  *string   `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

func (MintQueueItem) TableName() string {
	return "mint_queue"
}

// MintHistoryRecord rows are append-only; completed queue items are copied
// here and never modified afterwards.
type MintHistoryRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	QueueItemID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Payer         string    `gorm:"type:varchar(255);not null;index"`
	MintReference string    `gorm:"type:varchar(66);not null;uniqueIndex"`
	TargetAddress string    `gorm:"type:varchar(255);not null"`
	PaymentTxHash *string   `gorm:"type:varchar(255);index"`
	MintTxHash    string    `gorm:"type:varchar(255);not null"`
	Mode          string    `gorm:"type:varchar(20);not null"`
	CompletedAt   time.Time `gorm:"not null"`
}

func (MintHistoryRecord) TableName() string {
	return "mint_history"
}
