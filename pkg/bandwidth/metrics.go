package bandwidth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandwidth_samples_ingested_total",
			Help: "Total bandwidth samples accepted into a window",
		},
	)

	samplesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandwidth_samples_dropped_total",
			Help: "Total bandwidth samples dropped at ingestion, by reason",
		},
		[]string{"reason"},
	)

	coldStartQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandwidth_cold_start_queries_total",
			Help: "Estimate queries answered from topology-tier defaults",
		},
	)

	estimateLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bandwidth_estimate_duration_seconds",
			Help:    "Time spent computing a bandwidth estimate",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
	)
)

const (
	dropReasonMalformed     = "malformed"
	dropReasonUndersized    = "undersized"
	dropReasonUnknownWorker = "unknown_worker"
)
