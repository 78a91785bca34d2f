package testutil

import (
	"testing"
)

type fakeMember struct {
	path     string
	leader   bool
	watching string
}

func (m fakeMember) IsLeader() bool   { return m.leader }
func (m fakeMember) Path() string     { return m.path }
func (m fakeMember) Watching() string { return m.watching }

func (m fakeMember) Name() string {
	return m.path[len("/election/"):]
}

func TestAssertSingleLeader(t *testing.T) {
	members := []Member{
		fakeMember{path: "/election/_0000000002", watching: "/election/_0000000001"},
		fakeMember{path: "/election/_0000000001", leader: true},
	}

	if idx := AssertSingleLeader(t, members); idx != 1 {
		t.Fatalf("leader index = %d, want 1", idx)
	}
}

func TestAssertWatchChain(t *testing.T) {
	// Out of order on purpose; ranking is by sequence suffix.
	members := []Member{
		fakeMember{path: "/election/_0000000011", watching: "/election/_0000000009"},
		fakeMember{path: "/election/_0000000003", leader: true},
		fakeMember{path: "/election/_0000000009", watching: "/election/_0000000003"},
	}

	AssertWatchChain(t, members)
}
