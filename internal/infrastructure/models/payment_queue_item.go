package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentQueueItem struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	PaymentType      string    `gorm:"type:varchar(20);not null"`
	Payer            string    `gorm:"type:varchar(255);not null;index"`
	Amount           string    `gorm:"type:varchar(100);not null"` // BigInt
	AssetAddress     string    `gorm:"type:varchar(255);not null"`
	TargetAddress    *string   `gorm:"type:varchar(255)"`
	Authorization    string    `gorm:"type:jsonb;not null"`
	AuthNonce        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_payment_payer_auth_nonce,priority:2"`
	AuthPayer        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_payment_payer_auth_nonce,priority:1"`
	Status           string    `gorm:"type:varchar(50);not null;index"`
	SettlementTxHash *string   `gorm:"type:varchar(255);index"`
	ErrorMessage     *string   `gorm:"type:text"`
	Metadata         string    `gorm:"type:jsonb;default:'{}'"`
	Result           *string   `gorm:"type:jsonb"`
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
}

func (PaymentQueueItem) TableName() string {
	return "payment_queue"
}
