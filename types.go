package succession

import "github.com/arloliu/succession/types"

// Re-export types from the types package.
//
// Internal packages and store backends depend on types without depending on
// the root package, while users get succession.State, succession.Store, etc.
type (
	State           = types.State
	Event           = types.Event
	EventKind       = types.EventKind
	StoreError      = types.StoreError
	ConnectionError = types.ConnectionError
	ErrorCode       = types.ErrorCode
	WatchEvent      = types.WatchEvent
	WatchFunc       = types.WatchFunc
	EventType       = types.EventType
	SessionState    = types.SessionState
)

// Re-export interfaces from the types package for convenience.
type (
	Store            = types.Store
	PathEnsurer      = types.PathEnsurer
	DialFunc         = types.DialFunc
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export State constants from the types package.
const (
	StateUnregistered = types.StateUnregistered
	StateRegistered   = types.StateRegistered
	StateLeader       = types.StateLeader
	StateWatching     = types.StateWatching
	StateClosed       = types.StateClosed
	StateErrored      = types.StateErrored
)

// Re-export EventKind constants from the types package.
const (
	EventLeader = types.EventLeader
	EventWatch  = types.EventWatch
	EventError  = types.EventError
	EventClosed = types.EventClosed
)
