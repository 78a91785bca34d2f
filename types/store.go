package types

import (
	"context"
	"time"
)

// Store is the coordination store contract the election runs on.
//
// Implementations must be safe for concurrent use: a single Store (one session)
// may be shared by many candidates in the same process. Failed calls return a
// *StoreError so callers can inspect the result code.
type Store interface {
	// CreateSequentialEphemeral creates a node at pathPrefix plus a store-assigned,
	// monotonically increasing, zero-padded decimal suffix. The node is bound to
	// the store session and vanishes when the session ends.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - pathPrefix: Full path prefix, e.g. "/election/_"
	//
	// Returns:
	//   - string: Assigned full path, e.g. "/election/_0000000003"
	//   - error: ErrNoNode if the parent is missing, ErrConnectionLoss on session loss
	CreateSequentialEphemeral(ctx context.Context, pathPrefix string) (string, error)

	// Children returns the names (not paths) of the direct children of path.
	//
	// The order of the returned names is unspecified.
	Children(ctx context.Context, path string) ([]string, error)

	// WatchDeletion installs a one-shot deletion watch on path.
	//
	// Existence is checked atomically with installation: when the node is already
	// gone, ErrNoNode is returned and fn is never called. Otherwise fn is called
	// exactly once, on an arbitrary goroutine, with EventDeleted when the node is
	// removed or with EventNotWatching and a non-nil Err when the session ends
	// first.
	//
	// Parameters:
	//   - ctx: Context bounding the installation (not the watch lifetime)
	//   - path: Full node path to watch
	//   - fn: Callback receiving the single watch event
	//
	// Returns:
	//   - error: ErrNoNode if path does not exist, other *StoreError on failure
	WatchDeletion(ctx context.Context, path string, fn WatchFunc) error

	// Delete removes a node regardless of its version.
	Delete(ctx context.Context, path string) error

	// Close ends the session. All ephemeral nodes created through this Store are
	// removed and pending watches receive EventNotWatching.
	Close(ctx context.Context) error
}

// PathEnsurer is implemented by stores able to create persistent parent paths.
type PathEnsurer interface {
	// EnsurePath creates path and every missing ancestor as persistent nodes.
	EnsurePath(ctx context.Context, path string) error
}

// DialFunc establishes a store session.
//
// Parameters:
//   - ctx: Context bounding connection establishment
//   - endpoint: Backend-specific address list (e.g. "zk1:2181,zk2:2181")
//   - timeout: Session timeout; ephemeral nodes outlive a dead client by at most this long
//
// Returns:
//   - Store: Connected store session
//   - error: *ConnectionError when the session cannot be established
type DialFunc func(ctx context.Context, endpoint string, timeout time.Duration) (Store, error)

// WatchFunc receives a single watch notification.
type WatchFunc func(ev WatchEvent)

// WatchEvent describes a watch firing: the event kind, the session state at
// firing time and the watched path.
type WatchEvent struct {
	Type  EventType
	State SessionState
	Path  string
	// Err is set when the watch ended without observing the node, e.g. the
	// session expired or the store was closed.
	Err error
}

// EventType is the kind of change a watch observed.
//
// Values match the ZooKeeper event numbering.
type EventType int32

const (
	EventNodeCreated         EventType = 1
	EventNodeDeleted         EventType = 2
	EventNodeDataChanged     EventType = 3
	EventNodeChildrenChanged EventType = 4
	EventSession             EventType = -1
	EventNotWatching         EventType = -2
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventNodeCreated:
		return "NodeCreated"
	case EventNodeDeleted:
		return "NodeDeleted"
	case EventNodeDataChanged:
		return "NodeDataChanged"
	case EventNodeChildrenChanged:
		return "NodeChildrenChanged"
	case EventSession:
		return "Session"
	case EventNotWatching:
		return "NotWatching"
	default:
		return "Unknown"
	}
}

// SessionState is the store session state reported with a watch event.
type SessionState int32

const (
	SessionDisconnected SessionState = 0
	SessionConnecting   SessionState = 1
	SessionConnected    SessionState = 100
	SessionHasSession   SessionState = 101
	SessionExpired      SessionState = -112
	SessionClosed       SessionState = -113
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case SessionDisconnected:
		return "Disconnected"
	case SessionConnecting:
		return "Connecting"
	case SessionConnected:
		return "Connected"
	case SessionHasSession:
		return "HasSession"
	case SessionExpired:
		return "Expired"
	case SessionClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
