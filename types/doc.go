// Package types provides core type definitions and interfaces for the succession library.
//
// This package contains shared types used by the root succession package, the
// internal election machinery and the store backends. Keeping them here avoids
// import cycles between the root package and its implementations.
//
// Key types:
//   - Store: Coordination store contract (sequential ephemeral nodes, deletion watches)
//   - StoreError: Structured wrapper for store result codes
//   - State: Candidate lifecycle state
//   - Event: Election notification (leader, watch, error, closed)
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
//   - Hooks: Lifecycle callbacks
package types
