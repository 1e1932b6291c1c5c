package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/infra/metrics"
)

// PoolStater is the part of *pgxpool.Pool the reporter reads.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

// DBStatsReporter exports connection pool gauges.
type DBStatsReporter struct {
	interval time.Duration
	pool     PoolStater
	log      *zerolog.Logger
}

func NewDBStatsReporter(interval time.Duration, pool PoolStater, logger *zerolog.Logger) *DBStatsReporter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	compLog := logger.With().Str("component", "DBStatsReporter").Logger()
	return &DBStatsReporter{interval: interval, pool: pool, log: &compLog}
}

func (w *DBStatsReporter) Run(ctx context.Context) error {
	return runEvery(ctx, w.interval, w.log, "db stats reporter", w.report)
}

func (w *DBStatsReporter) report(context.Context) {
	st := w.pool.Stat()
	if st == nil {
		return
	}
	metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
}
