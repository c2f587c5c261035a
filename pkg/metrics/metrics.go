package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailsync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"method", "path", "status"},
	)

	AICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailsync_ai_call_duration_seconds",
			Help:    "Outbound LLM call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"operation", "status"},
	)

	DigestSelection = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailsync_digest_selection_total",
			Help: "Outcome of the important-email selection stage",
		},
		[]string{"result"}, // selected, miss, error, empty
	)

	SummaryCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailsync_summary_cache_total",
			Help: "Summary cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)
)

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordAICall(operation, status string, duration time.Duration) {
	AICallDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

func IncDigestSelection(result string) {
	DigestSelection.WithLabelValues(result).Inc()
}

func IncSummaryCache(result string) {
	SummaryCache.WithLabelValues(result).Inc()
}
