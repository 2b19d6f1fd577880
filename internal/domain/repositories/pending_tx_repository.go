package repositories

import (
	"context"

	"mint-gate.backend/internal/domain/entities"
)

// PendingTransactionRepository tracks in-flight transactions keyed by
// (account, nonce). The NonceManager cross-checks this table so a crashed
// process never re-issues a nonce that may still land on-chain.
type PendingTransactionRepository interface {
	Create(ctx context.Context, tx *entities.PendingTransaction) error
	// UpdateHash replaces the tracked hash after a gas-price acceleration
	// resubmitted the same nonce.
	UpdateHash(ctx context.Context, account string, nonce uint64, txHash string) error
	Delete(ctx context.Context, account string, nonce uint64) error
	Exists(ctx context.Context, account string, nonce uint64) (bool, error)
	ListByAccount(ctx context.Context, account string) ([]*entities.PendingTransaction, error)
}
