// Package metrics provides MetricsCollector implementations.
package metrics

import "github.com/arloliu/succession/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	cand, _ := succession.NewCandidate(cfg, store, succession.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// CandidateMetrics implementation

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State) {
	// No-op
}

// RecordLeadershipChange discards the leadership change metric.
func (n *NopMetrics) RecordLeadershipChange(_ /* path */ string, _ /* leader */ bool) {
	// No-op
}

// ElectionMetrics implementation

// RecordReelection discards the reelection outcome metric.
func (n *NopMetrics) RecordReelection(_ /* outcome */ string) {
	// No-op
}

// RecordPredecessorVanished discards the vanished predecessor metric.
func (n *NopMetrics) RecordPredecessorVanished() {
	// No-op
}

// StoreMetrics implementation

// RecordStoreOperation discards the store operation metric.
func (n *NopMetrics) RecordStoreOperation(_ /* operation */ string, _ /* duration */ float64, _ /* success */ bool) {
	// No-op
}
