package repositories

import (
	"context"
	"encoding/json"
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

// PaymentQueueRepositoryImpl implements payment queue data operations
type PaymentQueueRepositoryImpl struct {
	db *gorm.DB
}

// NewPaymentQueueRepository creates a new payment queue repository
func NewPaymentQueueRepository(db *gorm.DB) *PaymentQueueRepositoryImpl {
	return &PaymentQueueRepositoryImpl{db: db}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

// Create persists a new pending payment item
func (r *PaymentQueueRepositoryImpl) Create(ctx context.Context, item *entities.PaymentQueueItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	auth, err := json.Marshal(item.Authorization)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(item.Metadata)
	if err != nil {
		return err
	}

	m := &models.PaymentQueueItem{
		ID:            item.ID,
		PaymentType:   string(item.PaymentType),
		Payer:         item.Payer,
		Amount:        item.Amount,
		AssetAddress:  item.AssetAddress,
		TargetAddress: item.TargetAddress.Ptr(),
		Authorization: string(auth),
		AuthNonce:     strings.ToLower(item.Authorization.Nonce),
		AuthPayer:     strings.ToLower(item.Payer),
		Status:        string(item.Status),
		Metadata:      string(meta),
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

// GetByID gets a payment queue item by ID
func (r *PaymentQueueRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.PaymentQueueItem, error) {
	var m models.PaymentQueueItem
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m)
}

// ListPending returns pending items oldest first, up to limit
func (r *PaymentQueueRepositoryImpl) ListPending(ctx context.Context, limit int) ([]*entities.PaymentQueueItem, error) {
	var ms []models.PaymentQueueItem
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).
		Where("status = ?", string(entities.QueueStatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}

	items := make([]*entities.PaymentQueueItem, 0, len(ms))
	for i := range ms {
		item, err := r.toEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// MarkProcessing advances the given pending items to processing
func (r *PaymentQueueRepositoryImpl) MarkProcessing(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Model(&models.PaymentQueueItem{}).
		Where("id IN ? AND status = ?", ids, string(entities.QueueStatusPending)).
		Updates(map[string]interface{}{
			"status":     string(entities.QueueStatusProcessing),
			"updated_at": time.Now(),
		}).Error
}

// MarkCompleted records the settlement hash and result payload and marks the
// item completed.
func (r *PaymentQueueRepositoryImpl) MarkCompleted(ctx context.Context, id uuid.UUID, txHash, result string) error {
	db := GetDB(ctx, r.db)
	updates := map[string]interface{}{
		"status":             string(entities.QueueStatusCompleted),
		"settlement_tx_hash": txHash,
		"updated_at":         time.Now(),
	}
	if result != "" {
		updates["result"] = result
	}
	res := db.WithContext(ctx).Model(&models.PaymentQueueItem{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// MarkFailed terminally fails the item with an error message
func (r *PaymentQueueRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	db := GetDB(ctx, r.db)
	res := db.WithContext(ctx).Model(&models.PaymentQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        string(entities.QueueStatusFailed),
			"error_message": message,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Requeue moves a processing item back to pending for a later cycle
func (r *PaymentQueueRepositoryImpl) Requeue(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Model(&models.PaymentQueueItem{}).
		Where("id = ? AND status = ?", id, string(entities.QueueStatusProcessing)).
		Updates(map[string]interface{}{
			"status":     string(entities.QueueStatusPending),
			"updated_at": time.Now(),
		}).Error
}

// ResetProcessing moves every processing item back to pending
func (r *PaymentQueueRepositoryImpl) ResetProcessing(ctx context.Context) (int64, error) {
	db := GetDB(ctx, r.db)
	res := db.WithContext(ctx).Model(&models.PaymentQueueItem{}).
		Where("status = ?", string(entities.QueueStatusProcessing)).
		Updates(map[string]interface{}{
			"status":     string(entities.QueueStatusPending),
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

// CountByStatus aggregates queue counts by status
func (r *PaymentQueueRepositoryImpl) CountByStatus(ctx context.Context) (*entities.PaymentQueueStats, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Model(&models.PaymentQueueItem{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &entities.PaymentQueueStats{}
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
	return stats, nil
}

// ExistsAuthorizationNonce reports whether an authorization nonce was already
// enqueued for the payer
func (r *PaymentQueueRepositoryImpl) ExistsAuthorizationNonce(ctx context.Context, payer, nonce string) (bool, error) {
	var total int64
	db := GetDB(ctx, r.db)
	err := db.WithContext(ctx).Model(&models.PaymentQueueItem{}).
		Where("auth_payer = ? AND auth_nonce = ?", strings.ToLower(payer), strings.ToLower(nonce)).
		Count(&total).Error
	return total > 0, err
}

func (r *PaymentQueueRepositoryImpl) toEntity(m *models.PaymentQueueItem) (*entities.PaymentQueueItem, error) {
	item := &entities.PaymentQueueItem{
		ID:               m.ID,
		PaymentType:      entities.PaymentType(m.PaymentType),
		Payer:            m.Payer,
		Amount:           m.Amount,
		AssetAddress:     m.AssetAddress,
		TargetAddress:    null.StringFromPtr(m.TargetAddress),
		Status:           entities.QueueStatus(m.Status),
		SettlementTxHash: null.StringFromPtr(m.SettlementTxHash),
		ErrorMessage:     null.StringFromPtr(m.ErrorMessage),
		Result:           null.StringFromPtr(m.Result),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(m.Authorization), &item.Authorization); err != nil {
		return nil, err
	}
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &item.Metadata); err != nil {
			return nil, err
		}
	}
	return item, nil
}
