package metrics

import "github.com/prometheus/client_golang/prometheus"

// Scoring oracle and analysis pipeline metrics.
var (
	OracleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_total",
			Help:      "Total number of scoring oracle calls",
		},
		[]string{"model", "status"},
	)

	OracleRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_request_duration_seconds",
			Help:      "Scoring oracle call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"model"},
	)

	OracleTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_tokens_total",
			Help:      "Tokens reported by the scoring oracle",
		},
		[]string{"model", "type"},
	)

	OracleParseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_parse_total",
			Help:      "Oracle output parse outcomes",
		},
		[]string{"outcome"}, // "strict" / "repaired" / "unparseable"
	)

	OracleAttemptsPerInvocation = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_attempts_per_invocation",
			Help:      "Oracle attempts spent per invocation",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		},
	)

	LookupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_total",
			Help:      "Record cache lookups by outcome",
		},
		[]string{"result"}, // "hit" / "fallback" / "miss" / "error"
	)

	QuotaRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Requests rejected by a daily quota",
		},
		[]string{"scope"},
	)

	PersistFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Fresh results that could not be stored",
		},
	)
)

var oracleMetricsRegistered bool

// RegisterOracleMetrics registers the oracle and pipeline collectors. Must be called once from main.
func RegisterOracleMetrics() {
	if oracleMetricsRegistered {
		return
	}
	prometheus.MustRegister(OracleRequestsTotal)
	prometheus.MustRegister(OracleRequestDuration)
	prometheus.MustRegister(OracleTokensTotal)
	prometheus.MustRegister(OracleParseTotal)
	prometheus.MustRegister(OracleAttemptsPerInvocation)
	prometheus.MustRegister(LookupTotal)
	prometheus.MustRegister(QuotaRejectionsTotal)
	prometheus.MustRegister(PersistFailuresTotal)
	oracleMetricsRegistered = true
}
