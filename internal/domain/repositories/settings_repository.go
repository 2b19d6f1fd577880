package repositories

import (
	"context"

	"mint-gate.backend/internal/domain/entities"
)

// SettingsRepository reads and writes system_settings rows. Processors read
// their batch interval and batch size once at construction; updates take
// effect on the next process start.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (*entities.SystemSetting, error)
	// GetInt returns the setting parsed as int, or fallback when the row is
	// missing or malformed.
	GetInt(ctx context.Context, key string, fallback int) int
	Upsert(ctx context.Context, setting *entities.SystemSetting) error
	List(ctx context.Context) ([]*entities.SystemSetting, error)
}
