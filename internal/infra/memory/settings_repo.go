package memory

import (
	"context"
	"sync"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/domain/ports/repository"
)

var _ repository.SettingsRepository = (*SettingsRepo)(nil)

// SettingsRepo keeps settings in process memory; they are lost on restart.
type SettingsRepo struct {
	mu   sync.RWMutex
	byID map[int64]model.Settings
}

func NewSettingsRepo() *SettingsRepo {
	return &SettingsRepo{byID: map[int64]model.Settings{}}
}

func (r *SettingsRepo) GetSettings(ctx context.Context, tgID int64) (*model.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r *SettingsRepo) SaveSettings(ctx context.Context, tgID int64, s *model.Settings) error {
	if s == nil {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	r.byID[tgID] = *s
	r.mu.Unlock()
	return nil
}

func (r *SettingsRepo) ClearSettings(ctx context.Context, tgID int64) error {
	r.mu.Lock()
	delete(r.byID, tgID)
	r.mu.Unlock()
	return nil
}
