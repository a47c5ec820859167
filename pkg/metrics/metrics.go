package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Engine metrics
	SnapshotsComputedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_snapshots_computed_total",
			Help: "Total number of performance snapshots computed",
		},
		[]string{"trigger", "status"},
	)

	SnapshotComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "folio_snapshot_compute_duration_seconds",
			Help:    "Wall time of one basket's full computation pass",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	SnapshotCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_snapshot_cache_lookups_total",
			Help: "Snapshot cache lookups by outcome",
		},
		[]string{"layer", "outcome"},
	)

	// Provider metrics
	ProviderFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_provider_fetches_total",
			Help: "Price series fetches by status",
		},
		[]string{"status"},
	)

	ProviderFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "folio_provider_fetch_duration_seconds",
			Help:    "Price series fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Scheduler metrics
	SchedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_scheduler_runs_total",
			Help: "Scheduler runs by status",
		},
		[]string{"status"},
	)

	SchedulerBasketFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "folio_scheduler_basket_failures_total",
			Help: "Per-basket failures across scheduler runs",
		},
	)

	SchedulerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_scheduler_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed scheduler run",
		},
	)

	ActiveBasketsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_active_baskets",
			Help: "Number of active baskets seen by the last scheduler run",
		},
	)
)
