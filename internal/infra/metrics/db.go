package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, requestLogWritesTotal) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	requestLogWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_log_writes_total",
			Help: "Audit log writes for finished requests, labeled by result.",
		},
		[]string{"result"}, // 'ok', 'error'
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func IncRequestLogWrite(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	requestLogWritesTotal.WithLabelValues(result).Inc()
}
