package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(settingsLookupsTotal) }

var settingsLookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "settings_lookups_total",
		Help: "Per-user settings lookups, split into stored values and defaults.",
	},
	[]string{"store", "result"}, // e.g., store="redis", result="hit"
)

func IncSettingsLookup(store, result string) {
	settingsLookupsTotal.WithLabelValues(norm(store), norm(result)).Inc()
}
