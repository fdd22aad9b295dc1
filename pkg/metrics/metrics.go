package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Task execution metrics
	TasksRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skein_worker_tasks_running",
			Help: "Number of tasks currently executing on this worker",
		},
	)

	TaskResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skein_worker_task_results_total",
			Help: "Total number of finished tasks by terminal status",
		},
		[]string{"status"},
	)

	TaskDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skein_worker_task_duration_seconds",
			Help:    "Wall-clock task duration from start to end time",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)

	// Delay queue metrics
	DelayQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skein_worker_delay_queue_depth",
			Help: "Number of task runners waiting in the delay queue",
		},
	)

	// Master messaging metrics
	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skein_worker_messages_sent_total",
			Help: "Total lifecycle messages sent to masters by kind",
		},
		[]string{"kind"},
	)

	MessageRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skein_worker_message_retries_total",
			Help: "Total lifecycle message delivery retries",
		},
	)

	MessageFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skein_worker_message_failures_total",
			Help: "Lifecycle messages dropped after exhausting retries",
		},
	)

	// Resource staging metrics
	ResourceDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skein_worker_resource_downloads_total",
			Help: "Resource files staged from the object store by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksRunning,
		TaskResultsTotal,
		TaskDurationSeconds,
		DelayQueueDepth,
		MessagesSentTotal,
		MessageRetriesTotal,
		MessageFailuresTotal,
		ResourceDownloadsTotal,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
