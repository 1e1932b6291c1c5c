package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// runEvery calls fn once on startup and then on every tick until ctx is done.
func runEvery(ctx context.Context, interval time.Duration, log *zerolog.Logger, name string, fn func(context.Context)) error {
	log.Info().Dur("interval", interval).Msg("Starting " + name)
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping " + name)
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}
