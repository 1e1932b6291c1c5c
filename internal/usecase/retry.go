package usecase

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/infra/metrics"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	// Exponential backoff with jitter.
	base := time.Duration(attempt*attempt) * p.Backoff
	return base + time.Duration(rand.Int63n(int64(base/2)+1))
}

// withRetry runs fn until it succeeds, fails with a non-transient error, or
// the attempts are used up. onAttempt is called before every attempt.
func withRetry(ctx context.Context, p RetryPolicy, stage string, log *zerolog.Logger, onAttempt func(), fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := p.delay(attempt - 1)
			metrics.IncProcessingRetry(stage)
			log.Warn().Err(err).Str("stage", stage).Int("attempt", attempt).Dur("backoff", wait).Msg("retrying after transient failure")
			select {
			case <-ctx.Done():
				return domain.Transient(stage, ctx.Err())
			case <-time.After(wait):
			}
		}
		if onAttempt != nil {
			onAttempt()
		}
		err = fn(ctx)
		if err == nil || !domain.IsRetryable(err) {
			return err
		}
	}
	return err
}
