package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "pixelq"

var (
	VendorTasksCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_tasks_created_total",
			Help:      "Total number of vendor tasks created.",
		},
		[]string{"feature"},
	)

	VendorPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_polls_total",
			Help:      "Total number of vendor status queries, labeled by observed state.",
		},
		[]string{"feature", "state"},
	)

	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Total number of feature invocations, labeled by outcome (success or error kind).",
		},
		[]string{"feature", "outcome"},
	)

	TaskLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_latency_seconds",
			Help:      "End-to-end latency of a feature invocation (seconds).",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"feature", "outcome"},
	)

	CreationsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "creations_written_total",
			Help:      "Total number of creation records appended, labeled by result.",
		},
		[]string{"type", "result"},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		},
		[]string{"scope", "operation"},
	)
)

func init() {
	prometheus.MustRegister(
		VendorTasksCreatedTotal,
		VendorPollsTotal,
		OutcomesTotal,
		TaskLatencySeconds,
		CreationsWrittenTotal,
		RateLimitHitsTotal,
	)
}
