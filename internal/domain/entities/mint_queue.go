package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// PaymentMode records how the payment backing a mint was delivered.
type PaymentMode string

const (
	PaymentModeX402    PaymentMode = "x402"
	PaymentModeDirect  PaymentMode = "direct"
	PaymentModeRelayed PaymentMode = "relayed"
)

// MintQueueItem represents one queued token mint. MintReference is the
// canonical 32-byte idempotency key (0x-prefixed hex), globally unique and
// checked against on-chain minted state before (re)submission.
type MintQueueItem struct {
	ID            uuid.UUID   `json:"id"`
	Payer         string      `json:"payer"`
	MintReference string      `json:"mintReference"`
	TargetAddress string      `json:"targetAddress"`
	PaymentTxHash null.String `json:"paymentTxHash,omitempty"`
	Mode          PaymentMode `json:"mode"`
	Status        QueueStatus `json:"status"`
	RetryCount    int         `json:"retryCount"`
	MintTxHash    null.String `json:"mintTxHash,omitempty"`
	ErrorMessage  null.String `json:"errorMessage,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// MintHistoryRecord is the append-only record a completed mint item is
// migrated into.
type MintHistoryRecord struct {
	ID            uuid.UUID   `json:"id"`
	QueueItemID   uuid.UUID   `json:"queueItemId"`
	Payer         string      `json:"payer"`
	MintReference string      `json:"mintReference"`
	TargetAddress string      `json:"targetAddress"`
	PaymentTxHash null.String `json:"paymentTxHash,omitempty"`
	MintTxHash    string      `json:"mintTxHash"`
	Mode          PaymentMode `json:"mode"`
	CompletedAt   time.Time   `json:"completedAt"`
}

// EnqueueMintInput is the payload accepted by MintQueueProcessor.AddToQueue.
type EnqueueMintInput struct {
	Payer         string      `json:"payer" binding:"required"`
	MintReference string      `json:"mintReference" binding:"required"`
	TargetAddress string      `json:"targetAddress" binding:"required"`
	PaymentTxHash *string     `json:"paymentTxHash,omitempty"`
	Mode          PaymentMode `json:"mode" binding:"required"`
}

// MintQueueStatus is the status report for one mint item. Position is the
// item's rank among still-pending items (1-based, 0 once it left pending)
// and is used by callers to estimate wait time.
type MintQueueStatus struct {
	Item     *MintQueueItem `json:"item"`
	Position int            `json:"position"`
}

// MintQueueStats aggregates mint queue counts by status.
type MintQueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	History    int64 `json:"history"`
}
