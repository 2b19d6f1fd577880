package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/infrastructure/models"
)

// MintQueueRepositoryImpl implements mint queue data operations
type MintQueueRepositoryImpl struct {
	db *gorm.DB
}

// NewMintQueueRepository creates a new mint queue repository
func NewMintQueueRepository(db *gorm.DB) *MintQueueRepositoryImpl {
	return &MintQueueRepositoryImpl{db: db}
}

// Create inserts a new item; a duplicate mint reference returns ErrAlreadyExists
func (r *MintQueueRepositoryImpl) Create(ctx context.Context, item *entities.MintQueueItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	m := &models.MintQueueItem{
		ID:            item.ID,
		Payer:         item.Payer,
		MintReference: strings.ToLower(item.MintReference),
		TargetAddress: item.TargetAddress,
		PaymentTxHash: item.PaymentTxHash.Ptr(),
		Mode:          string(item.Mode),
		Status:        string(item.Status),
		RetryCount:    item.RetryCount,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}

	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	item.ID = m.ID
	return nil
}

// GetByID gets a mint queue item by ID
func (r *MintQueueRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.MintQueueItem, error) {
	var m models.MintQueueItem
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toMintEntity(&m), nil
}

// GetByReference gets a mint queue item by its mint reference
func (r *MintQueueRepositoryImpl) GetByReference(ctx context.Context, reference string) (*entities.MintQueueItem, error) {
	var m models.MintQueueItem
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("mint_reference = ?", strings.ToLower(reference)).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toMintEntity(&m), nil
}

// ListPending returns pending items oldest first, up to limit
func (r *MintQueueRepositoryImpl) ListPending(ctx context.Context, limit int) ([]*entities.MintQueueItem, error) {
	var ms []models.MintQueueItem
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).
		Where("status = ?", string(entities.QueueStatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}

	items := make([]*entities.MintQueueItem, 0, len(ms))
	for i := range ms {
		items = append(items, toMintEntity(&ms[i]))
	}
	return items, nil
}

// ListByPaymentTxHash returns all mint items linked to a settlement hash
func (r *MintQueueRepositoryImpl) ListByPaymentTxHash(ctx context.Context, txHash string) ([]*entities.MintQueueItem, error) {
	var ms []models.MintQueueItem
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).
		Where("payment_tx_hash = ?", txHash).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}

	items := make([]*entities.MintQueueItem, 0, len(ms))
	for i := range ms {
		items = append(items, toMintEntity(&ms[i]))
	}
	return items, nil
}

// MarkProcessing advances the given pending items to processing
func (r *MintQueueRepositoryImpl) MarkProcessing(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Model(&models.MintQueueItem{}).
		Where("id IN ? AND status = ?", ids, string(entities.QueueStatusPending)).
		Updates(map[string]interface{}{
			"status":     string(entities.QueueStatusProcessing),
			"updated_at": time.Now(),
		}).Error
}

// MarkCompleted records the mint transaction hash and completes the item
func (r *MintQueueRepositoryImpl) MarkCompleted(ctx context.Context, id uuid.UUID, txHash string) error {
	db := GetDB(ctx, r.db)
	res := db.WithContext(ctx).Model(&models.MintQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       string(entities.QueueStatusCompleted),
			"mint_tx_hash": txHash,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// RecordFailure increments the retry counter; past maxRetries the item is
// permanently failed, otherwise it returns to pending for the next batch.
func (r *MintQueueRepositoryImpl) RecordFailure(ctx context.Context, id uuid.UUID, message string, maxRetries int) error {
	db := GetDB(ctx, r.db)

	var m models.MintQueueItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrNotFound
		}
		return err
	}

	retries := m.RetryCount + 1
	status := string(entities.QueueStatusPending)
	if retries > maxRetries {
		status = string(entities.QueueStatusFailed)
	}

	return db.WithContext(ctx).Model(&models.MintQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count":   retries,
			"status":        status,
			"error_message": message,
			"updated_at":    time.Now(),
		}).Error
}

// ResetProcessing moves every processing item back to pending
func (r *MintQueueRepositoryImpl) ResetProcessing(ctx context.Context) (int64, error) {
	db := GetDB(ctx, r.db)
	res := db.WithContext(ctx).Model(&models.MintQueueItem{}).
		Where("status = ?", string(entities.QueueStatusProcessing)).
		Updates(map[string]interface{}{
			"status":     string(entities.QueueStatusPending),
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

// PendingPosition returns the 1-based rank of a pending item, oldest first
func (r *MintQueueRepositoryImpl) PendingPosition(ctx context.Context, id uuid.UUID) (int, error) {
	db := GetDB(ctx, r.db)

	var m models.MintQueueItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domainerrors.ErrNotFound
		}
		return 0, err
	}
	if m.Status != string(entities.QueueStatusPending) {
		return 0, nil
	}

	var ahead int64
	if err := db.WithContext(ctx).Model(&models.MintQueueItem{}).
		Where("status = ? AND created_at < ?", string(entities.QueueStatusPending), m.CreatedAt).
		Count(&ahead).Error; err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

// CountByStatus aggregates queue counts by status
func (r *MintQueueRepositoryImpl) CountByStatus(ctx context.Context) (*entities.MintQueueStats, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Model(&models.MintQueueItem{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &entities.MintQueueStats{}
	for _, rw := range rows {
		switch entities.QueueStatus(rw.Status) {
		case entities.QueueStatusPending:
			stats.Pending = rw.Total
		case entities.QueueStatusProcessing:
			stats.Processing = rw.Total
		case entities.QueueStatusCompleted:
			stats.Completed = rw.Total
		case entities.QueueStatusFailed:
			stats.Failed = rw.Total
		}
	}

	var history int64
	if err := db.WithContext(ctx).Model(&models.MintHistoryRecord{}).Count(&history).Error; err != nil {
		return nil, err
	}
	stats.History = history
	return stats, nil
}

func toMintEntity(m *models.MintQueueItem) *entities.MintQueueItem {
	return &entities.MintQueueItem{
		ID:            m.ID,
		Payer:         m.Payer,
		MintReference: m.MintReference,
		TargetAddress: m.TargetAddress,
		PaymentTxHash: null.StringFromPtr(m.PaymentTxHash),
		Mode:          entities.PaymentMode(m.Mode),
		Status:        entities.QueueStatus(m.Status),
		RetryCount:    m.RetryCount,
		MintTxHash:    null.StringFromPtr(m.MintTxHash),
		ErrorMessage:  null.StringFromPtr(m.ErrorMessage),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
