// Package memory provides an in-process coordination store.
//
// A Server holds a node tree shared by any number of Sessions. Each Session
// implements types.Store with the same contract as the network backends:
// sequential ephemeral nodes bound to the session, unordered child listings,
// and one-shot deletion watches with atomic existence checks. Watch callbacks
// are delivered on their own goroutines.
//
// The Server also offers fault injection (FailNext), a hook that runs just
// before a watch is installed (SetBeforeWatch) and session expiry
// (Session.Expire), which makes it the backend of choice for tests.
//
// Example:
//
//	srv := memory.NewServer()
//	_ = srv.EnsurePath(ctx, "/election")
//
//	cand, _ := succession.NewCandidate(cfg, srv.Connect())
//	_ = cand.Vote(ctx)
package memory
