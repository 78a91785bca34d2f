package testutil

import (
	"testing"

	"github.com/arloliu/succession/internal/ranking"
)

// Member is the view of a candidate the invariant checks need.
type Member interface {
	IsLeader() bool
	Path() string
	Name() string
	Watching() string
}

// AssertSingleLeader fails the test unless exactly one member leads.
//
// Returns the leader's index in members.
func AssertSingleLeader(t *testing.T, members []Member) int {
	t.Helper()

	leader := -1
	for i, m := range members {
		if !m.IsLeader() {
			continue
		}
		if leader >= 0 {
			t.Fatalf("multiple leaders: %s and %s", members[leader].Path(), m.Path())
		}
		leader = i
	}

	if leader < 0 {
		t.Fatalf("no leader among %d members", len(members))
	}

	return leader
}

// AssertWatchChain verifies herd avoidance: members ranked by node name form
// a chain where the first leads and every other member watches exactly the
// member ranked immediately before it.
//
// Parameters:
//   - t: testing handle
//   - members: live members of one election, in any order
func AssertWatchChain(t *testing.T, members []Member) {
	t.Helper()

	names := make([]string, len(members))
	byName := make(map[string]Member, len(members))
	for i, m := range members {
		names[i] = m.Name()
		byName[m.Name()] = m
	}
	ordered := ranking.Sort(names)

	for i, name := range ordered {
		m := byName[name]
		if i == 0 {
			if !m.IsLeader() {
				t.Fatalf("lowest ranked member %s is not leader", m.Path())
			}

			continue
		}

		want := byName[ordered[i-1]].Path()
		if m.IsLeader() {
			t.Fatalf("member %s at rank %d claims leadership", m.Path(), i)
		}
		if got := m.Watching(); got != want {
			t.Fatalf("member %s watches %q, want predecessor %q", m.Path(), got, want)
		}
	}
}
