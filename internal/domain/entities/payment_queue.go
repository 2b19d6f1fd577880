package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// PaymentType distinguishes what a settled payment pays for.
type PaymentType string

const (
	PaymentTypeMint   PaymentType = "mint"
	PaymentTypeDeploy PaymentType = "deploy"
)

// QueueStatus represents the lifecycle of a queued item.
// Items only ever advance pending -> processing -> {completed, failed}.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// TransferAuthorization is a gasless EIP-3009 transferWithAuthorization
// payload signed off-chain by the payer. Value is the token amount in the
// asset's smallest unit as a decimal string. Nonce is a 32-byte hex value
// unique per authorization; it must never be submitted on-chain twice.
type TransferAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

// PaymentMetadata carries free-form enqueue metadata. Quantity drives how
// many mint items the settlement bridge derives from a mint-type payment;
// Mode records the delivery channel and is stamped onto derived mint items.
type PaymentMetadata struct {
	Quantity int         `json:"quantity,omitempty"`
	Mode     PaymentMode `json:"mode,omitempty"`
	Note     string      `json:"note,omitempty"`
}

// PaymentQueueItem represents one queued payment settlement.
type PaymentQueueItem struct {
	ID               uuid.UUID             `json:"id"`
	PaymentType      PaymentType           `json:"paymentType"`
	Payer            string                `json:"payer"`
	Amount           string                `json:"amount"`
	AssetAddress     string                `json:"assetAddress"`
	TargetAddress    null.String           `json:"targetAddress,omitempty"`
	Authorization    TransferAuthorization `json:"authorization"`
	Status           QueueStatus           `json:"status"`
	SettlementTxHash null.String           `json:"settlementTxHash,omitempty"`
	ErrorMessage     null.String           `json:"errorMessage,omitempty"`
	Metadata         PaymentMetadata       `json:"metadata"`
	Result           null.String           `json:"result,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// EnqueuePaymentInput is the payload accepted by PaymentQueueProcessor.AddToQueue.
type EnqueuePaymentInput struct {
	PaymentType   PaymentType           `json:"paymentType" binding:"required"`
	Payer         string                `json:"payer" binding:"required"`
	Amount        string                `json:"amount" binding:"required"`
	AssetAddress  string                `json:"assetAddress" binding:"required"`
	TargetAddress *string               `json:"targetAddress,omitempty"`
	Authorization TransferAuthorization `json:"authorization" binding:"required"`
	Metadata      PaymentMetadata       `json:"metadata"`
}

// PaymentQueueStats aggregates payment queue counts by status.
type PaymentQueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
