package types

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnregistered, "Unregistered"},
		{StateRegistered, "Registered"},
		{StateLeader, "Leader"},
		{StateWatching, "Watching"},
		{StateClosed, "Closed"},
		{StateErrored, "Errored"},
		{State(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateIsTerminal(t *testing.T) {
	for _, s := range []State{StateUnregistered, StateRegistered, StateLeader, StateWatching} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []State{StateClosed, StateErrored} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestEventKindString(t *testing.T) {
	tests := map[EventKind]string{
		EventLeader:    "leader",
		EventWatch:     "watch",
		EventError:     "error",
		EventClosed:    "closed",
		EventKind(0):   "unknown",
		EventKind(100): "unknown",
	}

	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("EventKind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
