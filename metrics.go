package succession

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/succession/internal/metrics"
)

// NewPrometheusMetrics returns a MetricsCollector registering its metrics
// with reg under namespace, "succession" when empty.
//
// Metrics are registered on first use. Create one collector per registry and
// share it between candidates.
//
// Example:
//
//	collector := succession.NewPrometheusMetrics(prometheus.DefaultRegisterer, "")
//	cand, _ := succession.NewCandidate(&cfg, store, succession.WithMetrics(collector))
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}
