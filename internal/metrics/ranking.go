package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ranking and retrieval metrics.
var (
	RankRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_requests_total",
			Help:      "Total rank calls by result status and ordering",
		},
		[]string{"status", "order"},
	)

	RankDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rank_duration_seconds",
			Help:      "End-to-end rank latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"},
	)

	ShortlistSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_shortlist_size",
			Help:      "Number of candidates returned by the ANN shortlist",
			Buckets:   []float64{0, 1, 5, 10, 15, 25, 50, 100, 150},
		},
	)

	RetrievalFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Shortlist queries that failed soft",
		},
		[]string{"reason"}, // "timeout" / "error" / "empty"
	)

	WeightsReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weights_reloads_total",
			Help:      "Weight configuration reloads",
		},
		[]string{"result"}, // "ok" / "default" / "error"
	)
)

// Calibration metrics. Only meaningful for long-running calibrations.
var (
	CalibrationTrialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibration_trials_total",
			Help:      "Completed calibration trials by proposal source",
		},
		[]string{"source"}, // "startup" / "tpe"
	)

	CalibrationBestHitAtK = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_best_hit_at_k",
			Help:      "Best mean Hit@K observed in the running calibration",
		},
	)
)

var rankMetricsRegistered bool

// RegisterRankingMetrics registers ranking, retrieval and calibration metrics.
func RegisterRankingMetrics() {
	if rankMetricsRegistered {
		return
	}
	prometheus.MustRegister(RankRequestsTotal)
	prometheus.MustRegister(RankDuration)
	prometheus.MustRegister(ShortlistSize)
	prometheus.MustRegister(RetrievalFailuresTotal)
	prometheus.MustRegister(WeightsReloadsTotal)
	prometheus.MustRegister(CalibrationTrialsTotal)
	prometheus.MustRegister(CalibrationBestHitAtK)
	rankMetricsRegistered = true
}
