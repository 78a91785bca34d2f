package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/succession/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing a
// PrometheusCollector that is never exercised leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions    *prometheus.CounterVec
	leader              *prometheus.GaugeVec
	leadershipChanges   *prometheus.CounterVec
	reelections         *prometheus.CounterVec
	predecessorVanished prometheus.Counter
	storeOps            *prometheus.CounterVec
	storeLatency        *prometheus.HistogramVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace (defaults to "succession" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "succession"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "candidate",
			Name:      "state_transitions_total",
			Help:      "Total candidate state transitions by source and target state.",
		}, []string{"from", "to"})

		p.leader = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "candidate",
			Name:      "leader",
			Help:      "Whether the candidate at path currently leads (1) or not (0).",
		}, []string{"path"})

		p.leadershipChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "candidate",
			Name:      "leadership_changes_total",
			Help:      "Total leadership gains and losses.",
		}, []string{"leader"})

		p.reelections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "evaluations_total",
			Help:      "Total rank evaluations by outcome (leader, watching, ignored, error).",
		}, []string{"outcome"})

		p.predecessorVanished = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "predecessor_vanished_total",
			Help:      "Predecessors removed between listing and watch installation.",
		})

		p.storeOps = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total coordination store calls by operation and result.",
		}, []string{"op", "result"})

		p.storeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of coordination store calls in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms .. ~4s
		}, []string{"op"})

		p.reg.MustRegister(p.stateTransitions)
		p.reg.MustRegister(p.leader)
		p.reg.MustRegister(p.leadershipChanges)
		p.reg.MustRegister(p.reelections)
		p.reg.MustRegister(p.predecessorVanished)
		p.reg.MustRegister(p.storeOps)
		p.reg.MustRegister(p.storeLatency)
	})
}

// RecordStateTransition counts a state transition.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordLeadershipChange updates the leader gauge for path.
func (p *PrometheusCollector) RecordLeadershipChange(path string, leader bool) {
	p.ensureRegistered()
	if leader {
		p.leader.WithLabelValues(path).Set(1)
	} else {
		// Candidate paths are never reused; drop the series to bound cardinality.
		p.leader.DeleteLabelValues(path)
	}
	p.leadershipChanges.WithLabelValues(strconv.FormatBool(leader)).Inc()
}

// RecordReelection counts an evaluation outcome.
func (p *PrometheusCollector) RecordReelection(outcome string) {
	p.ensureRegistered()
	p.reelections.WithLabelValues(outcome).Inc()
}

// RecordPredecessorVanished counts a forced re-list.
func (p *PrometheusCollector) RecordPredecessorVanished() {
	p.ensureRegistered()
	p.predecessorVanished.Inc()
}

// RecordStoreOperation counts a store call and observes its latency.
func (p *PrometheusCollector) RecordStoreOperation(operation string, duration float64, success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.storeOps.WithLabelValues(operation, result).Inc()
	p.storeLatency.WithLabelValues(operation).Observe(duration)
}
