package types

// EventKind identifies an election notification.
type EventKind int

const (
	// EventLeader is emitted when the candidate becomes leader.
	EventLeader EventKind = iota + 1

	// EventWatch is emitted when the candidate starts watching a predecessor.
	EventWatch

	// EventError is emitted on an unrecoverable store failure after Vote returned.
	EventError

	// EventClosed is emitted once when Close completes.
	EventClosed
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventLeader:
		return "leader"
	case EventWatch:
		return "watch"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a notification delivered to candidate subscribers.
//
// Predecessor is set only for EventWatch and holds the predecessor's node name
// (not the full path). Err is set only for EventError.
type Event struct {
	Kind        EventKind
	Predecessor string
	Err         error
}
