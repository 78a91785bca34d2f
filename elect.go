package succession

import (
	"context"
	"fmt"
)

// Elect connects to the store at cfg.Endpoint and joins the election.
//
// The returned candidate owns the store session: Close ends the session, which
// removes the candidate's node server-side. On failure the session is closed
// before returning.
//
// Parameters:
//   - ctx: Context bounding connection, registration and initial ranking
//   - cfg: Election configuration; Endpoint is required
//   - dial: Backend dialer, e.g. zookeeper.Dial or etcd.Dial
//   - opts: Optional configuration (hooks, metrics, logger)
//
// Returns:
//   - *Candidate: Candidate in StateLeader or StateWatching
//   - error: ErrInvalidConfig, ErrDialerRequired, ErrStoreRequired, *ConnectionError or a wrapped *StoreError
//
// Example:
//
//	cfg := succession.DefaultConfig()
//	cfg.Endpoint = "zk1:2181,zk2:2181"
//	cfg.RootPath = "/services/scheduler/leader"
//
//	cand, err := succession.Elect(ctx, &cfg, zookeeper.Dial)
//	if err != nil {
//	    return err
//	}
//	defer cand.Close(context.Background())
func Elect(ctx context.Context, cfg *Config, dial DialFunc, opts ...Option) (*Candidate, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if dial == nil {
		return nil, ErrDialerRequired
	}

	config := *cfg
	SetDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Endpoint == "" {
		return nil, fmt.Errorf("%w: Endpoint is required", ErrInvalidConfig)
	}

	store, err := dial(ctx, config.Endpoint, config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	opts = append(opts, WithOwnedStore())

	if store == nil {
		return nil, ErrStoreRequired
	}

	cand, err := NewCandidate(&config, store, opts...)
	if err != nil {
		if closeErr := store.Close(context.WithoutCancel(ctx)); closeErr != nil {
			fallbackLogger(&config, opts).Warn("store close failed", "endpoint", config.Endpoint, "error", closeErr)
		}

		return nil, err
	}

	cand.logger.Debug("connected to store", "endpoint", config.Endpoint, "timeout", config.Timeout)

	if err := cand.Vote(ctx); err != nil {
		cand.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	return cand, nil
}
