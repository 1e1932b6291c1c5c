package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/domain/ports/repository"
	"telegram-field-extractor/internal/infra/logging"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// StatsUseCase reads the request log for the admin API.
type StatsUseCase interface {
	Recent(ctx context.Context, limit int) ([]*model.Request, error)
	Totals(ctx context.Context) (*repository.RequestStats, error)
}

type statsUC struct {
	requests repository.RequestLogRepository
	log      *zerolog.Logger
}

func NewStatsUseCase(requests repository.RequestLogRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{requests: requests, log: logger}
}

// Recent returns the newest requests. limit is clamped to [1, 500] and
// defaults to 50.
func (s *statsUC) Recent(ctx context.Context, limit int) ([]*model.Request, error) {
	defer logging.TraceDuration(s.log, "StatsUC.Recent")()
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}
	return s.requests.ListRecent(ctx, limit)
}

func (s *statsUC) Totals(ctx context.Context) (*repository.RequestStats, error) {
	defer logging.TraceDuration(s.log, "StatsUC.Totals")()
	st, err := s.requests.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if st.ByStatus == nil {
		st.ByStatus = map[string]int64{}
	}
	return st, nil
}
