// Package election implements the reelection cycle of a sequential-node leader
// election.
//
// Each candidate owns one sequential ephemeral node under a shared root. The
// Reelector lists the root, ranks the candidate among its siblings and, when
// the candidate is not rank 0, installs a one-shot deletion watch on the
// immediate predecessor only. A removal therefore wakes exactly one candidate
// instead of the whole set (herd avoidance).
//
// # Evaluation Cycle
//
//  1. List children of the root (always fresh, never cached)
//  2. Rank the candidate (see internal/ranking)
//  3. Rank 0: leader, no watch
//  4. Otherwise: install a deletion watch on root/predecessor
//
// # Vanishing Predecessors
//
// The predecessor may be removed between step 1 and step 4. Stores check
// existence atomically with watch installation and report ErrNoNode in that
// case; the Reelector then restarts at step 1. Predecessors only ever
// disappear, so the loop ends once a live predecessor is watched or the
// candidate reaches rank 0.
//
// # Concurrency Safety
//
// A Reelector holds no mutable state and is safe for concurrent use. Callers
// serialize evaluations per candidate.
package election
