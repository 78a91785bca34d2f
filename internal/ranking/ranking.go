package ranking

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

// ErrNotMember is returned when the candidate's own node is not among the children.
//
// This happens when the candidate's ephemeral node was removed behind its back,
// typically because the store session expired.
var ErrNotMember = errors.New("candidate node not found among children")

// Result is the outcome of ranking one candidate.
type Result struct {
	// Rank is the 0-based position of the candidate in the sorted children.
	Rank int
	// Leader is true iff Rank is 0.
	Leader bool
	// Predecessor is the name at Rank-1; empty for the leader.
	Predecessor string
	// Children is the sorted snapshot the result was computed from.
	Children []string
}

// Sequence parses the trailing decimal sequence suffix of a node name.
//
// Returns false when the name has no trailing digits or the suffix overflows uint64.
func Sequence(name string) (uint64, bool) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return 0, false
	}

	seq, err := strconv.ParseUint(name[i:], 10, 64)
	if err != nil {
		return 0, false
	}

	return seq, true
}

// Compare orders two node names by sequence suffix, then by full name.
//
// Returns a negative number when a sorts before b, positive when after, and 0
// when they are equal.
func Compare(a, b string) int {
	sa, okA := Sequence(a)
	sb, okB := Sequence(b)

	switch {
	case okA && okB:
		if sa != sb {
			if sa < sb {
				return -1
			}

			return 1
		}
	case okA:
		return -1
	case okB:
		return 1
	}

	return strings.Compare(a, b)
}

// Sort returns a sorted copy of children; the input slice is not modified.
func Sort(children []string) []string {
	sorted := slices.Clone(children)
	slices.SortFunc(sorted, Compare)

	return sorted
}

// Evaluate ranks self among children.
//
// The children slice may be in any order. self may be a bare node name or a
// full path; only the last path element is compared.
//
// Parameters:
//   - self: Candidate's node name or path
//   - children: Current sibling names as returned by the store
//
// Returns:
//   - Result: Rank, leadership and predecessor
//   - error: ErrNotMember if self is not among children
func Evaluate(self string, children []string) (Result, error) {
	name := NodeName(self)
	sorted := Sort(children)

	rank := slices.Index(sorted, name)
	if rank < 0 {
		return Result{Rank: -1, Children: sorted}, ErrNotMember
	}

	res := Result{
		Rank:     rank,
		Leader:   rank == 0,
		Children: sorted,
	}
	if rank > 0 {
		res.Predecessor = sorted[rank-1]
	}

	return res, nil
}

// NodeName returns the last element of a slash-separated path.
func NodeName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}

	return path
}
