package types

// State represents the candidate lifecycle state.
//
// States follow a defined progression during normal operation:
//
//	StateUnregistered → StateRegistered → StateLeader | StateWatching
//
// On every reelection cycle a watching candidate either becomes leader or starts
// watching a new predecessor:
//
//	StateWatching → StateLeader | StateWatching
//
// StateClosed is terminal. StateErrored is entered on unrecoverable store
// failure and only leads to StateClosed.
type State int

const (
	// StateUnregistered is the initial state before Vote is called.
	StateUnregistered State = iota

	// StateRegistered indicates the store assigned the candidate's sequential node.
	StateRegistered

	// StateLeader indicates the candidate holds rank 0.
	StateLeader

	// StateWatching indicates the candidate is watching its immediate predecessor.
	StateWatching

	// StateClosed indicates the candidate left the election.
	StateClosed

	// StateErrored indicates an unrecoverable store failure.
	StateErrored
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "Unregistered"
	case StateRegistered:
		return "Registered"
	case StateLeader:
		return "Leader"
	case StateWatching:
		return "Watching"
	case StateClosed:
		return "Closed"
	case StateErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further election progress is possible from s.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateErrored
}
