package election

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/succession/internal/ranking"
	"github.com/arloliu/succession/types"
)

// ErrNotMember is returned when the candidate's node is missing from the root.
var ErrNotMember = ranking.ErrNotMember

// Outcome is the result of one evaluation cycle.
type Outcome struct {
	// Leader is true when the candidate holds rank 0.
	Leader bool
	// Rank is the candidate's position in the final snapshot.
	Rank int
	// Predecessor is the watched predecessor's name; empty for the leader.
	Predecessor string
	// PredecessorPath is the full path of the watched predecessor.
	PredecessorPath string
	// Relists counts snapshots discarded because the predecessor vanished.
	Relists int
}

// Reelector ranks a candidate and installs its predecessor watch.
type Reelector struct {
	store   types.Store
	root    string
	logger  types.Logger
	metrics types.MetricsCollector
}

// NewReelector creates a Reelector for the given election root.
//
// Parameters:
//   - store: Coordination store session
//   - root: Election root path, e.g. "/election"
//   - logger: Logger for diagnostics
//   - metrics: Metrics collector for store timings and vanished predecessors
//
// Returns:
//   - *Reelector: New reelector instance
func NewReelector(store types.Store, root string, logger types.Logger, metrics types.MetricsCollector) *Reelector {
	return &Reelector{
		store:   store,
		root:    root,
		logger:  logger,
		metrics: metrics,
	}
}

// Evaluate runs one evaluation cycle for the candidate node self.
//
// When the candidate is not leader, onDeleted is installed as the one-shot
// deletion watch on its immediate predecessor. The same onDeleted may be
// installed again by a later cycle; it is never installed twice by one call.
//
// Parameters:
//   - ctx: Context bounding the store calls of this cycle
//   - self: Candidate's node name or full path
//   - onDeleted: Watch callback for the predecessor
//
// Returns:
//   - Outcome: Leadership or watched predecessor
//   - error: *types.StoreError on store failure, ErrNotMember if self is gone
func (r *Reelector) Evaluate(ctx context.Context, self string, onDeleted types.WatchFunc) (Outcome, error) {
	name := ranking.NodeName(self)
	relists := 0

	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		children, err := r.children(ctx)
		if err != nil {
			return Outcome{}, err
		}

		res, err := ranking.Evaluate(name, children)
		if err != nil {
			return Outcome{}, fmt.Errorf("%s/%s: %w", r.root, name, err)
		}

		r.logger.Debug("ranked candidate",
			"node", name,
			"rank", res.Rank,
			"children", len(res.Children),
		)

		if res.Leader {
			return Outcome{Leader: true, Rank: 0, Relists: relists}, nil
		}

		predPath := r.root + "/" + res.Predecessor
		err = r.watch(ctx, predPath, onDeleted)
		if err == nil {
			return Outcome{
				Rank:            res.Rank,
				Predecessor:     res.Predecessor,
				PredecessorPath: predPath,
				Relists:         relists,
			}, nil
		}

		if !errors.Is(err, types.ErrNoNode) {
			return Outcome{}, err
		}

		relists++
		r.metrics.RecordPredecessorVanished()
		r.logger.Debug("predecessor vanished before watch, re-listing",
			"node", name,
			"predecessor", res.Predecessor,
			"relists", relists,
		)
	}
}

func (r *Reelector) children(ctx context.Context) ([]string, error) {
	start := time.Now()
	children, err := r.store.Children(ctx, r.root)
	r.metrics.RecordStoreOperation("children", time.Since(start).Seconds(), err == nil)
	if err != nil {
		return nil, asStoreError("children", r.root, err)
	}

	return children, nil
}

func (r *Reelector) watch(ctx context.Context, path string, fn types.WatchFunc) error {
	start := time.Now()
	err := r.store.WatchDeletion(ctx, path, fn)
	r.metrics.RecordStoreOperation("watch", time.Since(start).Seconds(), err == nil)
	if err != nil {
		return asStoreError("watch", path, err)
	}

	return nil
}

// asStoreError guarantees callers receive a *types.StoreError, wrapping raw
// errors from stores that do not produce one themselves.
func asStoreError(op, path string, err error) error {
	if _, ok := types.StoreErrorCode(err); ok {
		return err
	}

	code := types.CodeSystemError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = types.CodeOperationTimeout
	case errors.Is(err, context.Canceled):
		return err
	}

	return types.WrapStoreError(op, path, code, err)
}
