package repositories

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/infrastructure/models"
)

// SettingsRepositoryImpl implements system settings access
type SettingsRepositoryImpl struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *gorm.DB) *SettingsRepositoryImpl {
	return &SettingsRepositoryImpl{db: db}
}

// Get returns a setting by key
func (r *SettingsRepositoryImpl) Get(ctx context.Context, key string) (*entities.SystemSetting, error) {
	var m models.SystemSetting
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Where("key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.SystemSetting{
		Key:         m.Key,
		Value:       m.Value,
		Description: m.Description,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

// GetInt returns the setting parsed as int, or fallback when missing or malformed
func (r *SettingsRepositoryImpl) GetInt(ctx context.Context, key string, fallback int) int {
	setting, err := r.Get(ctx, key)
	if err != nil {
		return fallback
	}
	v, err := strconv.Atoi(setting.Value)
	if err != nil {
		return fallback
	}
	return v
}

// Upsert creates or updates a setting
func (r *SettingsRepositoryImpl) Upsert(ctx context.Context, setting *entities.SystemSetting) error {
	m := &models.SystemSetting{
		Key:         setting.Key,
		Value:       setting.Value,
		Description: setting.Description,
		UpdatedAt:   time.Now(),
	}
	db := GetDB(ctx, r.db)
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(m).Error
}

// List returns all settings ordered by key
func (r *SettingsRepositoryImpl) List(ctx context.Context) ([]*entities.SystemSetting, error) {
	var ms []models.SystemSetting
	db := GetDB(ctx, r.db)
	if err := db.WithContext(ctx).Order("key ASC").Find(&ms).Error; err != nil {
		return nil, err
	}

	settings := make([]*entities.SystemSetting, 0, len(ms))
	for i := range ms {
		m := &ms[i]
		settings = append(settings, &entities.SystemSetting{
			Key:         m.Key,
			Value:       m.Value,
			Description: m.Description,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return settings, nil
}
