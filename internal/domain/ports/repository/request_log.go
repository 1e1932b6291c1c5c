package repository

import (
	"context"
	"time"

	"telegram-field-extractor/internal/domain/model"
)

// RequestStats aggregates finished requests by status.
type RequestStats struct {
	Total     int64            `json:"total"`
	ByStatus  map[string]int64 `json:"by_status"`
	Extracted int64            `json:"extracted_lines"`
}

// RequestLogRepository keeps an audit trail of finished requests.
type RequestLogRepository interface {
	Save(ctx context.Context, req *model.Request) error
	ListRecent(ctx context.Context, limit int) ([]*model.Request, error)
	Stats(ctx context.Context) (*RequestStats, error)
}

// RequestLogPurger drops audit rows older than a cutoff.
type RequestLogPurger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}
