package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/infrastructure/models"
)

// MintHistoryRepositoryImpl implements the append-only mint history
type MintHistoryRepositoryImpl struct {
	db *gorm.DB
}

// NewMintHistoryRepository creates a new mint history repository
func NewMintHistoryRepository(db *gorm.DB) *MintHistoryRepositoryImpl {
	return &MintHistoryRepositoryImpl{db: db}
}

// Create appends a history record
func (r *MintHistoryRepositoryImpl) Create(ctx context.Context, record *entities.MintHistoryRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now()
	}

	m := &models.MintHistoryRecord{
		ID:            record.ID,
		QueueItemID:   record.QueueItemID,
		Payer:         record.Payer,
		MintReference: record.MintReference,
		TargetAddress: record.TargetAddress,
		PaymentTxHash: record.PaymentTxHash.Ptr(),
		MintTxHash:    record.MintTxHash,
		Mode:          string(record.Mode),
		CompletedAt:   record.CompletedAt,
	}

	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// ListByPaymentTxHash returns history records linked to a settlement hash
func (r *MintHistoryRepositoryImpl) ListByPaymentTxHash(ctx context.Context, txHash string) ([]*entities.MintHistoryRecord, error) {
	var ms []models.MintHistoryRecord
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).
		Where("payment_tx_hash = ?", txHash).
		Order("completed_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}

	records := make([]*entities.MintHistoryRecord, 0, len(ms))
	for i := range ms {
		m := &ms[i]
		records = append(records, &entities.MintHistoryRecord{
			ID:            m.ID,
			QueueItemID:   m.QueueItemID,
			Payer:         m.Payer,
			MintReference: m.MintReference,
			TargetAddress: m.TargetAddress,
			PaymentTxHash: null.StringFromPtr(m.PaymentTxHash),
			MintTxHash:    m.MintTxHash,
			Mode:          entities.PaymentMode(m.Mode),
			CompletedAt:   m.CompletedAt,
		})
	}
	return records, nil
}

// Count returns the total number of history records
func (r *MintHistoryRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var total int64
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).Model(&models.MintHistoryRecord{}).Count(&total).Error
	return total, err
}
