package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/domain/ports/repository"
)

var _ repository.SettingsRepository = (*SettingsRepo)(nil)

// SettingsRepo keeps per-user extraction settings in Redis.
type SettingsRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewSettingsRepo(client RedisClient, ttl time.Duration) *SettingsRepo {
	return &SettingsRepo{client: client, ttl: ttl}
}

func (s *SettingsRepo) settingsKey(tgID int64) string {
	return fmt.Sprintf("settings:%d", tgID)
}

func (s *SettingsRepo) SaveSettings(ctx context.Context, tgID int64, st *model.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.settingsKey(tgID), data, s.ttl)
}

func (s *SettingsRepo) GetSettings(ctx context.Context, tgID int64) (*model.Settings, error) {
	data, err := s.client.Get(ctx, s.settingsKey(tgID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var st model.Settings
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SettingsRepo) ClearSettings(ctx context.Context, tgID int64) error {
	return s.client.Del(ctx, s.settingsKey(tgID))
}
