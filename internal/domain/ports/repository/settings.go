package repository

import (
	"context"

	"telegram-field-extractor/internal/domain/model"
)

// SettingsRepository stores per-user extraction settings.
// GetSettings returns domain.ErrNotFound when nothing is stored.
type SettingsRepository interface {
	GetSettings(ctx context.Context, tgID int64) (*model.Settings, error)
	SaveSettings(ctx context.Context, tgID int64, s *model.Settings) error
	ClearSettings(ctx context.Context, tgID int64) error
}
