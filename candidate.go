package succession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/succession/internal/election"
	"github.com/arloliu/succession/internal/hooks"
	"github.com/arloliu/succession/internal/metrics"
	"github.com/arloliu/succession/internal/ranking"
	"github.com/arloliu/succession/types"
)

// subscriberBuffer allows Registered, Watching, several reelections and
// Closed to queue up before a slow subscriber starts dropping events.
const subscriberBuffer = 8

// Candidate is one participant in a leader election.
//
// A Candidate registers a sequential ephemeral node under Config.RootPath and
// leads while its node has the lowest sequence number. Otherwise it watches
// only its immediate predecessor and re-evaluates when that node is deleted.
//
// Candidate is safe for concurrent use. Store watch callbacks may arrive on any
// goroutine; evaluations of one candidate are serialized.
type Candidate struct {
	cfg       Config
	store     types.Store
	ownsStore bool
	reelector *election.Reelector
	hooks     *Hooks
	metrics   MetricsCollector
	logger    Logger
	closeLog  func() error

	state    atomic.Int32 // State
	isLeader atomic.Bool

	// evalMu serializes Vote and every reelection cycle.
	evalMu sync.Mutex

	// mu guards the fields below and is held while applying an outcome so a
	// concurrent Close is never overtaken by a stale result.
	mu       sync.RWMutex
	path     string
	watching string
	closed   bool

	subscribers      *xsync.Map[uint64, *subscriber]
	nextSubscriberID atomic.Uint64

	// Lifecycle context, cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCandidate creates a candidate on an already connected store.
//
// The store may be shared by many candidates; Close then deletes only this
// candidate's node. Use WithOwnedStore, or Elect, to let Close end the session.
//
// Returns a concrete *Candidate following the "accept interfaces, return
// structs" principle.
//
// Parameters:
//   - cfg: Election configuration; missing values are filled with defaults
//   - store: Connected coordination store session
//   - opts: Optional configuration (hooks, metrics, logger, store ownership)
//
// Returns:
//   - *Candidate: Unregistered candidate; call Vote to join the election
//   - error: ErrInvalidConfig or ErrStoreRequired
//
// Example:
//
//	srv := memory.NewServer()
//	cfg := succession.TestConfig()
//	cand, err := succession.NewCandidate(&cfg, srv.Connect())
//	if err != nil {
//	    return err
//	}
//	defer cand.Close(context.Background())
func NewCandidate(cfg *Config, store types.Store, opts ...Option) (*Candidate, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	config := *cfg
	SetDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := &candidateOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	closeLog := func() error { return nil }
	loggerInstance := options.logger
	if loggerInstance == nil {
		var err error
		loggerInstance, closeLog, err = newConfiguredLogger(&config)
		if err != nil {
			return nil, err
		}
	}

	config.ValidateWithWarnings(loggerInstance)

	ctx, cancel := context.WithCancel(context.Background())

	c := &Candidate{
		cfg:         config,
		store:       store,
		ownsStore:   options.ownsStore,
		reelector:   election.NewReelector(store, config.RootPath, loggerInstance, metricsCollector),
		hooks:       hooks.Fill(options.hooks),
		metrics:     metricsCollector,
		logger:      loggerInstance,
		closeLog:    closeLog,
		subscribers: xsync.NewMap[uint64, *subscriber](),
		ctx:         ctx,
		cancel:      cancel,
	}
	c.state.Store(int32(StateUnregistered))

	return c, nil
}

// Vote joins the election.
//
// Vote registers a sequential ephemeral node, lists the siblings and ranks the
// candidate. At rank 0 the candidate becomes leader and EventLeader is emitted.
// Otherwise a deletion watch is installed on the immediate predecessor and
// EventWatch is emitted with the predecessor's name. Vote returns once one of
// the two happened.
//
// Store failures are returned wrapped, without retry, and move the candidate
// to StateErrored; no EventError is emitted for them since the caller already
// holds the error.
//
// Parameters:
//   - ctx: Context bounding registration, listing and watch installation
//
// Returns:
//   - error: ErrAlreadyVoted, ErrClosed, or a wrapped *StoreError
func (c *Candidate) Vote(ctx context.Context) error {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if c.State() != StateUnregistered {
		return ErrAlreadyVoted
	}

	if c.cfg.CreateRoot {
		if ensurer, ok := c.store.(types.PathEnsurer); ok {
			if err := ensurer.EnsurePath(ctx, c.cfg.RootPath); err != nil {
				return c.failVote(fmt.Errorf("ensure root %s: %w", c.cfg.RootPath, err))
			}
		}
	}

	prefix := c.cfg.RootPath + "/" + c.cfg.NodePrefix
	c.logger.Debug("registering candidate", "prefix", prefix)

	start := time.Now()
	path, err := c.store.CreateSequentialEphemeral(ctx, prefix)
	c.metrics.RecordStoreOperation("create", time.Since(start).Seconds(), err == nil)
	if err != nil {
		return c.failVote(fmt.Errorf("register: %w", err))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.releaseNode(path)

		return ErrClosed
	}
	c.path = path
	c.transition(StateUnregistered, StateRegistered)
	c.mu.Unlock()

	c.logger.Info("candidate registered", "path", path)

	out, err := c.reelector.Evaluate(ctx, path, c.onWatchEvent)
	if err != nil {
		return c.failVote(fmt.Errorf("evaluate: %w", err))
	}

	if !c.apply(out) {
		return ErrClosed
	}

	return nil
}

// Close leaves the election.
//
// Close is idempotent and best effort: store errors during teardown are logged,
// never returned. After Close starts, pending watch callbacks and in-flight
// reelections cannot change the candidate's state or emit events. When the
// candidate owns its store the session is closed, otherwise only the
// candidate's node is deleted. Either way the sibling watching this candidate
// is notified by the store.
//
// EventClosed is delivered to subscribers and their channels are closed.
//
// Parameters:
//   - ctx: Context bounding store teardown
func (c *Candidate) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	path := c.path
	wasLeader := c.isLeader.Swap(false)
	c.watching = ""
	c.transition(c.State(), StateClosed)
	c.mu.Unlock()

	c.cancel()

	if wasLeader {
		c.metrics.RecordLeadershipChange(path, false)
	}

	start := time.Now()
	switch {
	case c.ownsStore:
		err := c.store.Close(ctx)
		c.metrics.RecordStoreOperation("close", time.Since(start).Seconds(), err == nil)
		if err != nil {
			c.logger.Warn("store close failed", "path", path, "error", err)
		}
	case path != "":
		err := c.store.Delete(ctx, path)
		c.metrics.RecordStoreOperation("delete", time.Since(start).Seconds(), err == nil || errors.Is(err, types.ErrNoNode))
		if err != nil && !errors.Is(err, types.ErrNoNode) {
			c.logger.Warn("candidate node delete failed", "path", path, "error", err)
		}
	}

	c.logger.Info("candidate closed", "path", path, "was_leader", wasLeader)

	c.runHook(context.WithoutCancel(c.ctx), "closed", c.hooks.OnClosed)

	c.subscribers.Range(func(id uint64, sub *subscriber) bool {
		sub.trySend(Event{Kind: EventClosed})
		c.removeSubscriber(id)

		return true
	})

	if err := c.closeLog(); err != nil {
		c.logger.Warn("log output close failed", "error", err)
	}
}

// IsLeader reports the most recently evaluated leadership status.
//
// It may be momentarily stale between a predecessor's removal and the
// candidate's reelection.
func (c *Candidate) IsLeader() bool {
	return c.isLeader.Load()
}

// State returns the current lifecycle state.
func (c *Candidate) State() State {
	return State(c.state.Load())
}

// Path returns the candidate's full node path, empty before registration.
func (c *Candidate) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.path
}

// Name returns the last element of Path.
func (c *Candidate) Name() string {
	return ranking.NodeName(c.Path())
}

// Watching returns the full path of the watched predecessor, empty when the
// candidate leads or holds no watch.
func (c *Candidate) Watching() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.watching
}

// RootPath returns the election namespace.
func (c *Candidate) RootPath() string {
	return c.cfg.RootPath
}

// Subscribe returns a channel receiving election notifications.
//
// The channel is buffered; when a subscriber falls behind, further events are
// dropped for it rather than blocking the election. The channel is closed after
// EventClosed, or when the returned unsubscribe function is called.
//
// Returns:
//   - <-chan Event: Notification channel
//   - func(): Unsubscribe function to release resources
//
// Example:
//
//	events, unsubscribe := cand.Subscribe()
//	defer unsubscribe()
//	for ev := range events {
//	    switch ev.Kind {
//	    case succession.EventLeader:
//	        startLeading()
//	    case succession.EventWatch:
//	        log.Printf("following %s", ev.Predecessor)
//	    }
//	}
func (c *Candidate) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		sub.close()
		return sub.ch, func() {}
	}

	id := c.nextSubscriberID.Add(1)
	c.subscribers.Store(id, sub)

	return sub.ch, func() { c.removeSubscriber(id) }
}

// WaitState waits for the candidate to reach the expected state within the timeout.
//
// The returned channel receives exactly one value, nil once the state is
// reached or context.DeadlineExceeded on timeout, and is then closed.
//
// Parameters:
//   - expectedState: The state to wait for
//   - timeout: Maximum duration to wait
//
// Returns:
//   - <-chan error: Result channel
//
// Example:
//
//	if err := <-cand.WaitState(succession.StateLeader, 5*time.Second); err != nil {
//	    return fmt.Errorf("never became leader: %w", err)
//	}
func (c *Candidate) WaitState(expectedState State, timeout time.Duration) <-chan error {
	ch := make(chan error, 1)

	go func() {
		defer close(ch)

		if c.State() == expectedState {
			ch <- nil
			return
		}

		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if c.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// onWatchEvent is the predecessor watch callback.
//
// It takes evalMu before inspecting state: a watch installed by Vote or a
// previous cycle may fire before that evaluation recorded the predecessor.
func (c *Candidate) onWatchEvent(ev types.WatchEvent) {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	c.mu.RLock()
	closed, path, watching := c.closed, c.path, c.watching
	c.mu.RUnlock()

	if closed {
		c.logger.Debug("watch fired after close, ignoring", "path", ev.Path, "type", ev.Type)
		return
	}

	if ev.Path != watching {
		c.logger.Debug("watch event for stale predecessor, ignoring",
			"path", ev.Path,
			"watching", watching,
			"type", ev.Type,
		)
		c.metrics.RecordReelection("ignored")

		return
	}

	if ev.Err != nil {
		c.fail(fmt.Errorf("watch %s ended: %w", ev.Path, ev.Err))
		return
	}

	if ev.Type != types.EventNodeDeleted {
		c.logger.Debug("watch event is not a deletion, ignoring",
			"path", ev.Path,
			"type", ev.Type,
			"state", ev.State,
		)
		c.metrics.RecordReelection("ignored")

		return
	}

	c.logger.Debug("running reelection", "path", path, "deleted", ev.Path)

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.OperationTimeout)
	defer cancel()

	out, err := c.reelector.Evaluate(ctx, path, c.onWatchEvent)
	if err != nil {
		c.fail(fmt.Errorf("reelection: %w", err))
		return
	}

	c.apply(out)
}

// apply records an evaluation outcome and emits the matching event.
//
// Returns false when the candidate was closed in the meantime.
func (c *Candidate) apply(out election.Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	from := c.State()

	if out.Leader {
		c.watching = ""
		c.isLeader.Store(true)
		c.transition(from, StateLeader)
		c.metrics.RecordLeadershipChange(c.path, true)
		c.metrics.RecordReelection("leader")

		c.logger.Info("elected leader", "path", c.path, "relists", out.Relists)

		c.emit(Event{Kind: EventLeader})
		c.runHook(c.ctx, "leader", c.hooks.OnLeader)

		return true
	}

	c.watching = out.PredecessorPath
	c.transition(from, StateWatching)
	c.metrics.RecordReelection("watching")

	c.logger.Info("waiting for reelection",
		"path", c.path,
		"predecessor", out.PredecessorPath,
		"rank", out.Rank,
	)

	predecessor := out.Predecessor
	c.emit(Event{Kind: EventWatch, Predecessor: predecessor})
	c.runHook(c.ctx, "watch", func(ctx context.Context) error { return c.hooks.OnWatch(ctx, predecessor) })

	return true
}

// failVote moves a voting candidate to StateErrored and releases its node.
func (c *Candidate) failVote(err error) error {
	c.mu.Lock()
	path, closed := c.path, c.closed
	if !closed {
		c.transition(c.State(), StateErrored)
	}
	c.mu.Unlock()

	if closed {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	c.metrics.RecordReelection("error")
	c.logger.Error("vote failed", "path", path, "error", err)
	c.releaseNode(path)

	return err
}

// fail moves a registered candidate to StateErrored, emits EventError and
// releases its node so successors are not blocked behind it.
func (c *Candidate) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	path := c.path
	wasLeader := c.isLeader.Swap(false)
	c.watching = ""
	c.transition(c.State(), StateErrored)
	c.emit(Event{Kind: EventError, Err: err})
	c.runHook(c.ctx, "error", func(ctx context.Context) error { return c.hooks.OnError(ctx, err) })
	c.mu.Unlock()

	if wasLeader {
		c.metrics.RecordLeadershipChange(path, false)
	}
	c.metrics.RecordReelection("error")
	c.logger.Error("election failed", "path", path, "error", err)

	c.releaseNode(path)
}

// releaseNode deletes the candidate's node, best effort.
func (c *Candidate) releaseNode(path string) {
	if path == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.cfg.OperationTimeout)
	defer cancel()

	if err := c.store.Delete(ctx, path); err != nil && !errors.Is(err, types.ErrNoNode) {
		c.logger.Warn("failed to release candidate node", "path", path, "error", err)
	}
}

// transition validates and records a state transition. Caller holds c.mu.
func (c *Candidate) transition(from, to State) {
	if !isValidTransition(from, to) {
		c.logger.Error("invalid state transition attempted",
			"from", from.String(),
			"to", to.String(),
			"path", c.path,
		)

		return
	}

	c.state.Store(int32(to)) //nolint:gosec // State values are controlled enum

	c.logger.Debug("state transition",
		"from", from.String(),
		"to", to.String(),
		"path", c.path,
	)

	c.runHook(c.ctx, "state_changed", func(ctx context.Context) error { return c.hooks.OnStateChanged(ctx, from, to) })
	c.metrics.RecordStateTransition(from, to)
}

// isValidTransition validates that a state transition is allowed.
func isValidTransition(from, to State) bool {
	validTransitions := map[State][]State{
		StateUnregistered: {StateRegistered, StateErrored, StateClosed},
		StateRegistered:   {StateLeader, StateWatching, StateErrored, StateClosed},
		StateLeader:       {StateErrored, StateClosed},
		StateWatching:     {StateLeader, StateWatching, StateErrored, StateClosed},
		StateErrored:      {StateClosed},
		StateClosed:       {}, // Terminal state - no transitions allowed
	}

	allowedStates, exists := validTransitions[from]
	if !exists {
		return false
	}

	for _, allowed := range allowedStates {
		if allowed == to {
			return true
		}
	}

	return false
}

// emit fans an event out to subscribers. Caller holds c.mu.
func (c *Candidate) emit(ev Event) {
	c.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		sub.trySend(ev)
		return true
	})
}

// runHook runs a hook in the background; errors are logged.
func (c *Candidate) runHook(ctx context.Context, name string, fn func(context.Context) error) {
	go func() {
		if err := fn(ctx); err != nil {
			c.logger.Warn("hook error", "hook", name, "error", err)
		}
	}()
}

func (c *Candidate) removeSubscriber(id uint64) {
	if sub, ok := c.subscribers.LoadAndDelete(id); ok {
		sub.close()
	}
}
