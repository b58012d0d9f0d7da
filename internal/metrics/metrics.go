package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollmedian_feed_fetches_total",
			Help: "Total poll feed fetches",
		},
		[]string{"source", "status"},
	)

	FeedFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pollmedian_feed_fetch_latency_seconds",
			Help:    "Poll feed fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	PollsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollmedian_polls_ingested_total",
			Help: "Total polls successfully ingested",
		},
		[]string{"source", "race"},
	)

	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollmedian_parse_errors_total",
			Help: "Total poll records that failed to parse",
		},
		[]string{"source"},
	)

	EstimateRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollmedian_estimate_rows_written_total",
			Help: "Total day estimate rows written",
		},
		[]string{"race"},
	)
)
