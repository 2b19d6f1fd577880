package repositories

import (
	"context"

	"github.com/google/uuid"
	"mint-gate.backend/internal/domain/entities"
)

// MintQueueRepository defines mint queue data operations
type MintQueueRepository interface {
	// Create inserts a new item. Inserting a duplicate mint reference returns
	// domain ErrAlreadyExists.
	Create(ctx context.Context, item *entities.MintQueueItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.MintQueueItem, error)
	GetByReference(ctx context.Context, reference string) (*entities.MintQueueItem, error)
	ListPending(ctx context.Context, limit int) ([]*entities.MintQueueItem, error)
	ListByPaymentTxHash(ctx context.Context, txHash string) ([]*entities.MintQueueItem, error)
	MarkProcessing(ctx context.Context, ids []uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, txHash string) error
	// RecordFailure increments the retry counter and either re-queues the item
	// or permanently fails it once maxRetries is exceeded.
	RecordFailure(ctx context.Context, id uuid.UUID, message string, maxRetries int) error
	ResetProcessing(ctx context.Context) (int64, error)
	// PendingPosition returns the 1-based rank of a pending item among all
	// pending items, oldest first. Returns 0 for items no longer pending.
	PendingPosition(ctx context.Context, id uuid.UUID) (int, error)
	CountByStatus(ctx context.Context) (*entities.MintQueueStats, error)
}

// MintHistoryRepository defines the append-only mint history operations
type MintHistoryRepository interface {
	Create(ctx context.Context, record *entities.MintHistoryRecord) error
	ListByPaymentTxHash(ctx context.Context, txHash string) ([]*entities.MintHistoryRecord, error)
	Count(ctx context.Context) (int64, error)
}
