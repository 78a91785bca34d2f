package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Methods are called from store callback goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces.
type MetricsCollector interface {
	CandidateMetrics
	ElectionMetrics
	StoreMetrics
}

// CandidateMetrics defines metrics for candidate lifecycle operations.
type CandidateMetrics interface {
	// RecordStateTransition records a candidate state transition.
	RecordStateTransition(from, to State)

	// RecordLeadershipChange records that the candidate at path gained or lost leadership.
	//
	// Parameters:
	//   - path: Candidate's node path
	//   - leader: true when leadership was gained, false when it was lost
	RecordLeadershipChange(path string, leader bool)
}

// ElectionMetrics defines metrics for rank evaluation.
type ElectionMetrics interface {
	// RecordReelection records the outcome of one evaluation cycle.
	//
	// Parameters:
	//   - outcome: "leader", "watching", "ignored" or "error"
	RecordReelection(outcome string)

	// RecordPredecessorVanished records a predecessor that disappeared between
	// listing and watch installation, forcing a re-list.
	RecordPredecessorVanished()
}

// StoreMetrics defines metrics for coordination store calls.
type StoreMetrics interface {
	// RecordStoreOperation records a store call.
	//
	// Parameters:
	//   - operation: Operation type ("create", "children", "watch", "delete", "close")
	//   - duration: Time taken in seconds
	//   - success: true if the call succeeded
	RecordStoreOperation(operation string, duration float64, success bool)
}
