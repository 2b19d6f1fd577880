package repositories

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/infrastructure/models"
)

// PendingTransactionRepositoryImpl implements pending transaction bookkeeping
type PendingTransactionRepositoryImpl struct {
	db *gorm.DB
}

// NewPendingTransactionRepository creates a new pending transaction repository
func NewPendingTransactionRepository(db *gorm.DB) *PendingTransactionRepositoryImpl {
	return &PendingTransactionRepositoryImpl{db: db}
}

// Create records an in-flight transaction for (account, nonce)
func (r *PendingTransactionRepositoryImpl) Create(ctx context.Context, tx *entities.PendingTransaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	m := &models.PendingTransaction{
		Account:   strings.ToLower(tx.Account),
		Nonce:     tx.Nonce,
		TxHash:    tx.TxHash,
		Status:    tx.Status,
		CreatedAt: tx.CreatedAt,
	}
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrNonceConflict
		}
		return err
	}
	return nil
}

// UpdateHash replaces the tracked hash after an acceleration resubmission
func (r *PendingTransactionRepositoryImpl) UpdateHash(ctx context.Context, account string, nonce uint64, txHash string) error {
	db := GetDB(ctx, r.db)
	res := db.WithContext(ctx).Model(&models.PendingTransaction{}).
		Where("account = ? AND nonce = ?", strings.ToLower(account), nonce).
		Update("tx_hash", txHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Delete releases the (account, nonce) slot once the transaction is terminal
func (r *PendingTransactionRepositoryImpl) Delete(ctx context.Context, account string, nonce uint64) error {
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).
		Where("account = ? AND nonce = ?", strings.ToLower(account), nonce).
		Delete(&models.PendingTransaction{}).Error
}

// Exists reports whether (account, nonce) is still in flight
func (r *PendingTransactionRepositoryImpl) Exists(ctx context.Context, account string, nonce uint64) (bool, error) {
	var total int64
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).Model(&models.PendingTransaction{}).
		Where("account = ? AND nonce = ?", strings.ToLower(account), nonce).
		Count(&total).Error
	return total > 0, err
}

// ListByAccount returns all in-flight transactions for an account
func (r *PendingTransactionRepositoryImpl) ListByAccount(ctx context.Context, account string) ([]*entities.PendingTransaction, error) {
	var ms []models.PendingTransaction
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).
		Where("account = ?", strings.ToLower(account)).
		Order("nonce ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}

	txs := make([]*entities.PendingTransaction, 0, len(ms))
	for i := range ms {
		m := &ms[i]
		txs = append(txs, &entities.PendingTransaction{
			Account:   m.Account,
			Nonce:     m.Nonce,
			TxHash:    m.TxHash,
			Status:    m.Status,
			CreatedAt: m.CreatedAt,
		})
	}
	return txs, nil
}
