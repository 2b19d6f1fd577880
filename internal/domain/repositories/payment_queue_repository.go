package repositories

import (
	"context"

	"github.com/google/uuid"
	"mint-gate.backend/internal/domain/entities"
)

// PaymentQueueRepository defines payment queue data operations
type PaymentQueueRepository interface {
	Create(ctx context.Context, item *entities.PaymentQueueItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.PaymentQueueItem, error)
	// ListPending returns pending items oldest first, up to limit.
	ListPending(ctx context.Context, limit int) ([]*entities.PaymentQueueItem, error)
	MarkProcessing(ctx context.Context, ids []uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, txHash, result string) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	// Requeue moves a processing item back to pending for a later batch cycle,
	// used when submission hit a retryable condition (busy lock, RPC outage).
	Requeue(ctx context.Context, id uuid.UUID) error
	// ResetProcessing moves every processing item back to pending. Called once
	// at startup; it is the crash-recovery mechanism for the payment queue.
	ResetProcessing(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (*entities.PaymentQueueStats, error)
	// ExistsAuthorizationNonce reports whether an authorization nonce has
	// already been enqueued for the given payer.
	ExistsAuthorizationNonce(ctx context.Context, payer, nonce string) (bool, error)
}
