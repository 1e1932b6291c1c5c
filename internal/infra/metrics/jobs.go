package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(workerTasksTotal, workerQueueDepth) }

var (
	workerTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_tasks_total",
			Help: "Tasks run by the worker pool, labeled by outcome.",
		},
		[]string{"result"}, // 'ok', 'error', 'panic'
	)

	workerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Tasks waiting in the worker pool queue.",
		},
	)
)

func IncWorkerTask(result string) {
	workerTasksTotal.WithLabelValues(norm(result)).Inc()
}

func SetWorkerQueueDepth(n int) {
	workerQueueDepth.Set(float64(n))
}
