package testutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/succession/types"
)

// StateWaiter is the subset of Candidate methods needed for waiting.
type StateWaiter interface {
	// WaitState waits for the candidate to reach the expected state within the timeout.
	WaitState(expectedState types.State, timeout time.Duration) <-chan error
}

// WaitAllState waits for every waiter to reach the expected state.
//
// The first failure cancels the remaining waits and is returned.
//
// Parameters:
//   - ctx: Context for cancellation
//   - waiters: Candidates to wait on
//   - expectedState: Target state for all waiters
//   - timeout: Maximum time to wait for each individual waiter
//
// Returns:
//   - error: nil if all reached the state, first error encountered otherwise
//
// Example:
//
//	err := testutil.WaitAllState(ctx, []testutil.StateWaiter{c1, c2}, types.StateWatching, 5*time.Second)
//	require.NoError(t, err)
func WaitAllState(ctx context.Context, waiters []StateWaiter, expectedState types.State, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	for i, w := range waiters {
		g.Go(func() error {
			select {
			case err := <-w.WaitState(expectedState, timeout):
				if err != nil {
					return fmt.Errorf("waiter[%d] failed to reach state %s: %w", i, expectedState, err)
				}

				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	return g.Wait()
}

// WaitAnyState waits until any waiter reaches the expected state.
//
// Returns:
//   - int: Index of the first waiter that reached the state (-1 if none did)
//   - error: nil on success, the joined failures otherwise
func WaitAnyState(waiters []StateWaiter, expectedState types.State, timeout time.Duration) (int, error) {
	if len(waiters) == 0 {
		return -1, errors.New("no waiters provided")
	}

	type result struct {
		index int
		err   error
	}

	resultCh := make(chan result, len(waiters))
	for i, w := range waiters {
		go func() {
			resultCh <- result{index: i, err: <-w.WaitState(expectedState, timeout)}
		}()
	}

	errs := make([]error, 0, len(waiters))
	for range waiters {
		r := <-resultCh
		if r.err == nil {
			return r.index, nil
		}
		errs = append(errs, fmt.Errorf("waiter[%d]: %w", r.index, r.err))
	}

	return -1, fmt.Errorf("no waiter reached state %s: %w", expectedState, errors.Join(errs...))
}

// WaitStates waits for a candidate to pass through states in order.
func WaitStates(ctx context.Context, w StateWaiter, states []types.State, timeout time.Duration) error {
	for i, state := range states {
		select {
		case err := <-w.WaitState(state, timeout):
			if err != nil {
				return fmt.Errorf("failed to reach state[%d] %s: %w", i, state, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
