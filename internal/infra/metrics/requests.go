package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		requestsProcessedTotal,
		requestDurationSeconds,
		processingRetriesTotal,
		extractedLinesTotal,
	)
}

var (
	requestsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_processed_total",
			Help: "Finished requests by event kind, final status and error kind.",
		},
		[]string{"kind", "status", "error_kind"},
	)

	requestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Time from receiving an event to finishing its request.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	processingRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processing_retries_total",
			Help: "Retries after transient failures, labeled by pipeline stage.",
		},
		[]string{"stage"}, // 'fetch', 'extract'
	)

	extractedLinesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extracted_lines_total",
			Help: "Total number of field values written to output files.",
		},
	)
)

func ObserveRequest(kind, status, errorKind string, d time.Duration) {
	requestsProcessedTotal.WithLabelValues(norm(kind), norm(status), norm(errorKind)).Inc()
	requestDurationSeconds.WithLabelValues(norm(kind)).Observe(d.Seconds())
}

func IncProcessingRetry(stage string) {
	processingRetriesTotal.WithLabelValues(norm(stage)).Inc()
}

func AddExtractedLines(n int) {
	if n > 0 {
		extractedLinesTotal.Add(float64(n))
	}
}
