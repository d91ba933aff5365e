package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delivery",
			Name:      "jobs_processed_total",
			Help:      "Total delivery jobs processed by outcome.",
		},
		[]string{"channel", "status"}, // status: sent, retried, failed
	)

	sendDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "delivery",
			Name:      "transport_send_duration_seconds",
			Help:      "Duration of transport send calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel", "transport"},
	)

	staleJobsRequeuedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delivery",
			Name:      "stale_jobs_requeued_total",
			Help:      "In-flight jobs past their lease returned to the queue.",
		},
		[]string{"channel"},
	)

	rateLimitWaitHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "delivery",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting on the per-worker rate window.",
			Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"channel"},
	)
)
