package types

import "context"

// Hooks defines callbacks for candidate lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines so
// they never block the election. Hooks receive the candidate's lifecycle context,
// which is cancelled by Close.
//
// Hook execution behavior:
//   - Hooks run concurrently and may not complete before Close returns
//   - Hook errors are logged but never affect the election
//
// Example:
//
//	hooks := &succession.Hooks{
//	    OnLeader: func(ctx context.Context) error {
//	        return startLeaderDuties(ctx)
//	    },
//	}
type Hooks struct {
	// OnLeader is called when the candidate becomes leader.
	OnLeader func(ctx context.Context) error

	// OnWatch is called when the candidate starts watching predecessor.
	OnWatch func(ctx context.Context, predecessor string) error

	// OnError is called on an unrecoverable store failure.
	OnError func(ctx context.Context, err error) error

	// OnStateChanged is called on every candidate state transition.
	OnStateChanged func(ctx context.Context, from, to State) error

	// OnClosed is called once when the candidate is closed.
	OnClosed func(ctx context.Context) error
}
