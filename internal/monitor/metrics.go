package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SnapshotsCaptured = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ranker_snapshots_captured_total",
			Help: "Total number of address snapshots saved.",
		},
	)
	SnapshotsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranker_snapshots_skipped_total",
			Help: "Total number of addresses skipped during an update cycle.",
		},
		[]string{"reason"},
	)
	SnapshotsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ranker_snapshots_failed_total",
			Help: "Total number of addresses whose update failed.",
		},
	)
	UpdateCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranker_update_cycle_duration_seconds",
			Help:    "Time taken to run one update cycle over all addresses.",
			Buckets: []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
		},
	)
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranker_provider_requests_total",
			Help: "Total number of requests sent to balance and trade providers.",
		},
		[]string{"provider", "status"},
	)
	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranker_provider_request_duration_seconds",
			Help:    "Latency of provider requests.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"provider"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ranker_circuit_breaker_open",
			Help: "1 when the provider circuit breaker is open or half-open, 0 when closed.",
		},
		[]string{"name"},
	)
	RankingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_runs_total",
			Help: "Total number of ranking runs by ranking type and kind.",
		},
		[]string{"ranking_type", "kind", "status"},
	)
	RankingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranking_duration_seconds",
			Help:    "Time taken to compute and store one ranking.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"ranking_type", "kind"},
	)
	BacktestTrades = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backtest_trades_processed_total",
			Help: "Total number of trades replayed by trader backtests.",
		},
	)
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranker_scheduler_job_runs_total",
			Help: "Scheduled job executions by job and status.",
		},
		[]string{"job", "status"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranker_cache_lookups_total",
			Help: "API cache lookups by key type and result.",
		},
		[]string{"key_type", "result"},
	)
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranker_api_requests_total",
			Help: "Total number of API requests by route and status.",
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		// update cycle
		SnapshotsCaptured,
		SnapshotsSkipped,
		SnapshotsFailed,
		UpdateCycleDuration,

		// providers
		ProviderRequests,
		ProviderRequestDuration,
		CircuitBreakerState,

		// rankings and backtests
		RankingRuns,
		RankingDuration,
		BacktestTrades,
		JobRuns,

		// api
		CacheLookups,
		APIRequests,
	)
}
