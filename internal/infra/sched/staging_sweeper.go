package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper removes orphaned artifacts. *staging.Store satisfies it.
type Sweeper interface {
	Sweep() (int, error)
}

// StagingSweeper periodically clears staging files left behind by requests
// that never released them.
type StagingSweeper struct {
	interval time.Duration
	store    Sweeper
	log      *zerolog.Logger
}

func NewStagingSweeper(interval time.Duration, store Sweeper, logger *zerolog.Logger) *StagingSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	compLog := logger.With().Str("component", "StagingSweeper").Logger()
	return &StagingSweeper{interval: interval, store: store, log: &compLog}
}

func (w *StagingSweeper) Run(ctx context.Context) error {
	return runEvery(ctx, w.interval, w.log, "staging sweeper", w.sweep)
}

func (w *StagingSweeper) sweep(context.Context) {
	n, err := w.store.Sweep()
	if err != nil {
		w.log.Error().Err(err).Int("removed", n).Msg("staging sweep failed")
		return
	}
	if n > 0 {
		w.log.Debug().Int("removed", n).Msg("staging sweep finished")
	}
}
