package metrics

import "github.com/prometheus/client_golang/prometheus"

// Session and similarity Prometheus metrics.
var (
	// StaleResponsesTotal counts async responses dropped because a newer generation exists.
	StaleResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinesim",
			Name:      "stale_responses_total",
			Help:      "Async responses dropped as stale",
		},
		[]string{"kind"}, // "search" / "similarity"
	)

	RemoteFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinesim",
			Name:      "remote_failures_total",
			Help:      "Remote lookups that failed and kept the previous results",
		},
		[]string{"kind"},
	)

	ResultSetsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinesim",
			Name:      "result_sets_applied_total",
			Help:      "Suggestion result sets applied to sessions",
		},
		[]string{"source"}, // "local" / "remote"
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cinesim",
			Name:      "active_sessions",
			Help:      "Open interactive sessions",
		},
	)

	SimilarityRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinesim",
			Name:      "similarity_requests_total",
			Help:      "Backend similarity computations",
		},
		[]string{"cache"}, // "hit" / "miss"
	)

	SimilarityDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cinesim",
			Name:      "similarity_duration_seconds",
			Help:      "Backend similarity computation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

var sessionMetricsRegistered bool

// RegisterSessionMetrics registers session and similarity metrics. Must be called once from main.
func RegisterSessionMetrics() {
	if sessionMetricsRegistered {
		return
	}
	prometheus.MustRegister(StaleResponsesTotal)
	prometheus.MustRegister(RemoteFailuresTotal)
	prometheus.MustRegister(ResultSetsAppliedTotal)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(SimilarityRequestsTotal)
	prometheus.MustRegister(SimilarityDuration)
	sessionMetricsRegistered = true
}
