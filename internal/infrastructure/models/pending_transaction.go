package models

import "time"

type PendingTransaction struct {
	Account   string `gorm:"type:varchar(255);not null;primaryKey"`
	Nonce     uint64 `gorm:"not null;primaryKey;autoIncrement:false"`
	TxHash    string `gorm:"type:varchar(255);not null"`
	Status    string `gorm:"type:varchar(50);not null"`
	CreatedAt time.Time
}

func (PendingTransaction) TableName() string {
	return "pending_transactions"
}
