package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchRunsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "dispatch_runs_total",
			Help:      "Total campaign dispatch runs by outcome.",
		},
		[]string{"outcome"}, // completed, failed, empty
	)

	contactsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "contacts_processed_total",
			Help:      "Per-channel contact outcomes during dispatch.",
		},
		[]string{"channel", "outcome"}, // queued, invalid, duplicate, suppressed, render_error, enqueue_error, param_mismatch
	)

	segmentFetchDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "campaign",
			Name:      "segment_fetch_duration_seconds",
			Help:      "Duration of segment service fetches.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"}, // ok, error
	)
)
