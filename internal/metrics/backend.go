package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backend and embedding Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cortex",
			Name:      "backend_requests_total",
			Help:      "Total number of inference backend requests",
		},
		[]string{"backend", "operation", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cortex",
			Name:      "backend_request_duration_seconds",
			Help:      "Inference backend request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend", "operation"},
	)

	BackendFailoversTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cortex",
			Name:      "backend_failovers_total",
			Help:      "Total number of failovers to the next configured backend",
		},
		[]string{"from"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cortex",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IndexDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cortex",
			Name:      "index_operations_total",
			Help:      "Total number of vector index operations",
		},
		[]string{"operation", "status"},
	)
)

var backendMetricsRegistered bool

// RegisterBackendMetrics registers Prometheus backend metrics. Must be called once from main.
func RegisterBackendMetrics() {
	if backendMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(BackendFailoversTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(IndexDocumentsTotal)
	backendMetricsRegistered = true
}
