package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(artifactsTotal, artifactsActive) }

var (
	artifactsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staging_artifacts_total",
			Help: "Staged artifact lifecycle events.",
		},
		[]string{"event"}, // 'acquired', 'released', 'swept'
	)

	artifactsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "staging_artifacts_active",
			Help: "Artifacts currently held in the staging directory.",
		},
	)
)

func IncArtifact(event string) {
	artifactsTotal.WithLabelValues(norm(event)).Inc()
}

func AddArtifactsSwept(n int) {
	artifactsTotal.WithLabelValues("swept").Add(float64(n))
}

func SetArtifactsActive(n int) {
	artifactsActive.Set(float64(n))
}
