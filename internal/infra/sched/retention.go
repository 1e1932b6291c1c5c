package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/domain/ports/repository"
)

// RequestLogRetention deletes request log rows older than the retention
// window.
type RequestLogRetention struct {
	interval  time.Duration
	retention time.Duration
	purger    repository.RequestLogPurger
	now       func() time.Time
	log       *zerolog.Logger
}

func NewRequestLogRetention(interval, retention time.Duration, purger repository.RequestLogPurger, logger *zerolog.Logger) *RequestLogRetention {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	compLog := logger.With().Str("component", "RequestLogRetention").Logger()
	return &RequestLogRetention{
		interval:  interval,
		retention: retention,
		purger:    purger,
		now:       time.Now,
		log:       &compLog,
	}
}

func (w *RequestLogRetention) Run(ctx context.Context) error {
	return runEvery(ctx, w.interval, w.log, "request log retention", w.purge)
}

func (w *RequestLogRetention) purge(ctx context.Context) {
	cutoff := w.now().Add(-w.retention)
	n, err := w.purger.Purge(ctx, cutoff)
	if err != nil {
		w.log.Error().Err(err).Time("before", cutoff).Msg("request log purge failed")
		return
	}
	if n > 0 {
		w.log.Info().Int64("deleted", n).Time("before", cutoff).Msg("request log purged")
	}
}
