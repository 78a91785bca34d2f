package natskv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/succession/internal/heartbeat"
	"github.com/arloliu/succession/internal/kvutil"
	"github.com/arloliu/succession/internal/logger"
	"github.com/arloliu/succession/internal/metrics"
	"github.com/arloliu/succession/internal/natsutil"
	"github.com/arloliu/succession/types"
)

const (
	sessionPrefix = "session"

	// maxCASAttempts bounds optimistic update retries on one tree record.
	maxCASAttempts = 64

	minPollInterval = 50 * time.Millisecond
)

var (
	_ types.Store       = (*Store)(nil)
	_ types.PathEnsurer = (*Store)(nil)
)

// errUnchanged aborts a record mutation without writing.
var errUnchanged = errors.New("record unchanged")

// Store is one coordination session on NATS JetStream KV.
type Store struct {
	nc       *nats.Conn
	ownsConn bool

	tree     jetstream.KeyValue
	sessions jetstream.KeyValue
	hb       *heartbeat.Publisher

	id           string
	ttl          time.Duration
	pollInterval time.Duration
	logger       types.Logger

	// Lifetime of the session; watches run under it.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	ephemerals map[string]struct{}
	watches    map[*watcher]struct{}
}

// Dial connects to the NATS server at endpoint and opens a session with the
// given timeout as session TTL. It implements types.DialFunc.
//
// The returned store owns the NATS connection and closes it on Close.
func Dial(ctx context.Context, endpoint string, timeout time.Duration) (types.Store, error) {
	return Dialer()(ctx, endpoint, timeout)
}

// Dialer returns a types.DialFunc applying opts to every opened store.
//
// Example:
//
//	dial := natskv.Dialer(natskv.WithTreeBucket("scheduler_election"))
//	cand, err := succession.Elect(ctx, &cfg, dial)
func Dialer(opts ...Option) types.DialFunc {
	return func(ctx context.Context, endpoint string, timeout time.Duration) (types.Store, error) {
		nc, err := nats.Connect(endpoint,
			nats.Name("succession"),
			nats.Timeout(timeout),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return nil, &types.ConnectionError{Endpoint: endpoint, Err: err}
		}

		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, &types.ConnectionError{Endpoint: endpoint, Err: err}
		}

		s, err := New(ctx, js, timeout, opts...)
		if err != nil {
			nc.Close()
			return nil, &types.ConnectionError{Endpoint: endpoint, Err: err}
		}
		s.nc = nc
		s.ownsConn = true

		return s, nil
	}
}

// New opens a session on an existing JetStream context.
//
// The tree and session buckets are created when missing. The session key is
// refreshed every third of the session bucket's TTL; once it expires the
// session's nodes count as deleted for every other session.
//
// Parameters:
//   - ctx: Context bounding bucket setup and session registration
//   - js: JetStream context
//   - sessionTTL: TTL for a newly created session bucket
//   - opts: Optional configuration
//
// Returns:
//   - *Store: Open session
//   - error: Bucket or session setup error
func New(ctx context.Context, js jetstream.JetStream, sessionTTL time.Duration, opts ...Option) (*Store, error) {
	options := &storeOptions{
		treeBucket:    DefaultTreeBucket,
		sessionBucket: DefaultSessionBucket,
		storage:       jetstream.FileStorage,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = logger.NewNop()
	}
	if options.metrics == nil {
		options.metrics = metrics.NewNop()
	}
	if sessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be > 0, got %v", sessionTTL)
	}

	tree, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      options.treeBucket,
		Description: "succession election tree",
		History:     1,
		Storage:     options.storage,
	}, 0)
	if err != nil {
		return nil, err
	}

	sessions, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      options.sessionBucket,
		Description: "succession sessions",
		History:     1,
		TTL:         sessionTTL,
		Storage:     options.storage,
	}, 0)
	if err != nil {
		return nil, err
	}

	ttl, err := kvutil.BucketTTL(ctx, sessions)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session bucket %s has no TTL", options.sessionBucket)
	}

	poll := options.pollInterval
	if poll <= 0 {
		poll = max(ttl/2, minPollInterval)
	}

	lifetime, cancel := context.WithCancel(context.Background())
	s := &Store{
		tree:         tree,
		sessions:     sessions,
		id:           uuid.NewString(),
		ttl:          ttl,
		pollInterval: poll,
		logger:       options.logger,
		ctx:          lifetime,
		cancel:       cancel,
		ephemerals:   make(map[string]struct{}),
		watches:      make(map[*watcher]struct{}),
	}

	s.hb = heartbeat.New(sessions, sessionPrefix, max(ttl/3, minPollInterval))
	s.hb.SetSessionID(s.id)
	s.hb.SetLogger(options.logger)
	s.hb.SetMetrics(options.metrics)
	s.hb.OnLost(func(err error) {
		s.logger.Warn("session expired", "session", s.id, "error", err)
		s.end(context.Background(), types.SessionExpired, types.CodeSessionExpired)
	})

	if err := s.hb.Start(ctx); err != nil {
		cancel()
		return nil, natsutil.StoreError("session", "", err)
	}

	if err := s.ensureRecord(ctx, "/"); err != nil {
		_ = s.hb.Stop(context.WithoutCancel(ctx))
		cancel()

		return nil, err
	}

	s.logger.Debug("nats session opened", "session", s.id, "ttl", ttl, "poll", poll)

	return s, nil
}

// ID returns the session identifier.
func (s *Store) ID() string {
	return s.id
}

// CreateSequentialEphemeral creates pathPrefix plus a ten digit sequence
// suffix, owned by this session.
func (s *Store) CreateSequentialEphemeral(ctx context.Context, pathPrefix string) (string, error) {
	const op = "create"
	if err := s.checkOpen(op, pathPrefix); err != nil {
		return "", err
	}
	if err := validatePath(op, pathPrefix); err != nil {
		return "", err
	}

	parent, prefix := split(pathPrefix)

	var name string
	err := s.mutate(ctx, op, parent, func(rec *dirRecord) error {
		name = fmt.Sprintf("%s%010d", prefix, rec.Seq)
		rec.Seq++
		rec.Children[name] = s.id

		return nil
	})
	if err != nil {
		return "", err
	}

	path := join(parent, name)

	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.ephemerals[path] = struct{}{}
	}
	s.mu.Unlock()

	if closed {
		// Close raced the create; do not leave the node behind.
		_ = s.removeChild(context.WithoutCancel(ctx), parent, name, s.id)
		return "", types.NewStoreError(op, pathPrefix, types.CodeClosing, "")
	}

	return path, nil
}

// Children returns the names of path's live children, unordered.
//
// Children owned by expired sessions are omitted and removed from the tree.
func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	const op = "children"
	if err := s.checkOpen(op, path); err != nil {
		return nil, err
	}
	if err := validatePath(op, path); err != nil {
		return nil, err
	}

	rec, _, err := s.load(ctx, op, path)
	if err != nil {
		return nil, err
	}

	liveness := make(map[string]bool)
	names := make([]string, 0, len(rec.Children))
	for name, owner := range rec.Children {
		alive, ok := liveness[owner]
		if !ok {
			alive, err = s.alive(ctx, owner)
			if err != nil {
				return nil, natsutil.StoreError(op, path, err)
			}
			liveness[owner] = alive
		}

		if alive {
			names = append(names, name)
			continue
		}

		if err := s.removeChild(ctx, path, name, owner); err != nil {
			s.logger.Debug("reaping expired node failed", "path", join(path, name), "error", err)
		}
	}

	return names, nil
}

// WatchDeletion installs a one-shot deletion watch on path.
//
// The existence check and the watch are atomic: the watch starts from the tree
// record it checked. The watch fires EventNodeDeleted when the node is removed
// or its owning session expires, or EventNotWatching when this session ends first.
func (s *Store) WatchDeletion(ctx context.Context, path string, fn types.WatchFunc) error {
	const op = "watch"
	if err := s.checkOpen(op, path); err != nil {
		return err
	}
	if err := validatePath(op, path); err != nil {
		return err
	}
	if path == "/" {
		return types.NewStoreError(op, path, types.CodeBadArguments, "cannot watch the root")
	}

	parent, name := split(path)

	wctx, cancel := context.WithCancel(s.ctx)
	kw, err := s.tree.Watch(wctx, treeKey(parent))
	if err != nil {
		cancel()
		return natsutil.StoreError(op, path, err)
	}

	stop := func() {
		cancel()
		_ = kw.Stop()
	}

	initial, err := s.initialEntry(ctx, kw)
	if err != nil {
		stop()
		return natsutil.StoreError(op, path, err)
	}
	if initial == nil || initial.Operation() != jetstream.KeyValuePut {
		stop()
		return types.NewStoreError(op, path, types.CodeNoNode, "")
	}

	rec, err := decodeRecord(initial.Value())
	if err != nil {
		stop()
		return types.WrapStoreError(op, path, types.CodeMarshallingError, err)
	}

	owner, ok := rec.Children[name]
	if !ok {
		stop()
		return types.NewStoreError(op, path, types.CodeNoNode, "")
	}

	if owner != "" {
		alive, err := s.alive(ctx, owner)
		if err != nil {
			stop()
			return natsutil.StoreError(op, path, err)
		}
		if !alive {
			stop()
			_ = s.removeChild(ctx, parent, name, owner)

			return types.NewStoreError(op, path, types.CodeNoNode, "owner session expired")
		}
	}

	w := &watcher{path: path, name: name, owner: owner, fn: fn, stop: stop}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()

		return types.NewStoreError(op, path, types.CodeClosing, "")
	}
	s.watches[w] = struct{}{}
	s.mu.Unlock()

	go s.runWatch(wctx, w, kw)

	return nil
}

// Delete removes path. Persistent nodes with children cannot be deleted.
func (s *Store) Delete(ctx context.Context, path string) error {
	const op = "delete"
	if err := s.checkOpen(op, path); err != nil {
		return err
	}
	if err := validatePath(op, path); err != nil {
		return err
	}
	if path == "/" {
		return types.NewStoreError(op, path, types.CodeBadArguments, "cannot delete the root")
	}

	parent, name := split(path)

	var persistent bool
	err := s.mutate(ctx, op, parent, func(rec *dirRecord) error {
		owner, ok := rec.Children[name]
		if !ok {
			return types.NewStoreError(op, path, types.CodeNoNode, "")
		}

		persistent = owner == ""
		if persistent {
			child, _, err := s.load(ctx, op, path)
			if err != nil && !errors.Is(err, types.ErrNoNode) {
				return err
			}
			if len(child.Children) > 0 {
				return types.NewStoreError(op, path, types.CodeNotEmpty, "")
			}
		}

		delete(rec.Children, name)

		return nil
	})
	if err != nil {
		return err
	}

	if persistent {
		if err := s.tree.Purge(ctx, treeKey(path)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			s.logger.Debug("purging node record failed", "path", path, "error", err)
		}
	}

	s.mu.Lock()
	delete(s.ephemerals, path)
	s.mu.Unlock()

	return nil
}

// EnsurePath creates path and any missing ancestors as persistent nodes.
func (s *Store) EnsurePath(ctx context.Context, path string) error {
	const op = "ensure"
	if err := s.checkOpen(op, path); err != nil {
		return err
	}
	if err := validatePath(op, path); err != nil {
		return err
	}
	if path == "/" {
		return nil
	}

	parent := "/"
	for _, name := range strings.Split(path[1:], "/") {
		current := join(parent, name)

		err := s.mutate(ctx, op, parent, func(rec *dirRecord) error {
			owner, ok := rec.Children[name]
			switch {
			case ok && owner != "":
				return types.NewStoreError(op, current, types.CodeNoChildrenForEphemerals, "")
			case ok:
				return errUnchanged
			}
			rec.Children[name] = ""

			return nil
		})
		if err != nil {
			return err
		}

		if err := s.ensureRecord(ctx, current); err != nil {
			return err
		}
		parent = current
	}

	return nil
}

// Close ends the session.
//
// The session's ephemeral nodes are removed, its key is deleted and its pending
// watches fire with EventNotWatching. A store opened by Dial also closes its
// NATS connection. Closing a closed store is a no-op.
func (s *Store) Close(ctx context.Context) error {
	s.end(ctx, types.SessionClosed, types.CodeClosing)
	return nil
}

func (s *Store) end(ctx context.Context, state types.SessionState, code types.ErrorCode) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	ephemerals := make([]string, 0, len(s.ephemerals))
	for path := range s.ephemerals {
		ephemerals = append(ephemerals, path)
	}
	clear(s.ephemerals)

	watches := make([]*watcher, 0, len(s.watches))
	for w := range s.watches {
		watches = append(watches, w)
	}
	clear(s.watches)
	s.mu.Unlock()

	for _, path := range ephemerals {
		parent, name := split(path)
		if err := s.removeChild(ctx, parent, name, s.id); err != nil {
			s.logger.Debug("removing ephemeral node failed", "path", path, "error", err)
		}
	}

	if state == types.SessionClosed {
		if err := s.hb.Stop(ctx); err != nil && !errors.Is(err, heartbeat.ErrNotStarted) {
			s.logger.Warn("stopping session heartbeat failed", "session", s.id, "error", err)
		}
	}

	for _, w := range watches {
		w.fire(types.WatchEvent{
			Type:  types.EventNotWatching,
			State: state,
			Path:  w.path,
			Err:   types.NewStoreError("watch", w.path, code, ""),
		})
	}

	s.cancel()

	if s.ownsConn && s.nc != nil {
		s.nc.Close()
	}

	s.logger.Debug("nats session ended", "session", s.id, "state", state)
}

func (s *Store) checkOpen(op, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.NewStoreError(op, path, types.CodeClosing, "")
	}

	return nil
}

// alive reports whether the session owning a node is live. Persistent nodes
// have no owner and are always live.
func (s *Store) alive(ctx context.Context, owner string) (bool, error) {
	if owner == "" {
		return true, nil
	}
	if owner == s.id {
		s.mu.Lock()
		defer s.mu.Unlock()

		return !s.closed, nil
	}

	_, err := s.sessions.Get(ctx, sessionPrefix+"."+owner)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, jetstream.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// load reads the record of the persistent node at path.
func (s *Store) load(ctx context.Context, op, path string) (dirRecord, uint64, error) {
	entry, err := s.tree.Get(ctx, treeKey(path))
	if err != nil {
		return dirRecord{}, 0, natsutil.StoreError(op, path, err)
	}

	rec, err := decodeRecord(entry.Value())
	if err != nil {
		return dirRecord{}, 0, types.WrapStoreError(op, path, types.CodeMarshallingError, err)
	}

	return rec, entry.Revision(), nil
}

// mutate applies fn to the record of path with optimistic concurrency,
// retrying when another session updated the record first.
func (s *Store) mutate(ctx context.Context, op, path string, fn func(*dirRecord) error) error {
	for range maxCASAttempts {
		rec, rev, err := s.load(ctx, op, path)
		if err != nil {
			return err
		}

		if err := fn(&rec); err != nil {
			if errors.Is(err, errUnchanged) {
				return nil
			}

			return err
		}

		data, err := rec.encode()
		if err != nil {
			return types.WrapStoreError(op, path, types.CodeMarshallingError, err)
		}

		_, err = s.tree.Update(ctx, treeKey(path), data, rev)
		if err == nil {
			return nil
		}
		if !natsutil.IsRevisionMismatch(err) {
			return natsutil.StoreError(op, path, err)
		}
	}

	return types.NewStoreError(op, path, types.CodeRuntimeInconsistency,
		fmt.Sprintf("record contended for %d attempts", maxCASAttempts))
}

// ensureRecord creates an empty record for the persistent node at path.
func (s *Store) ensureRecord(ctx context.Context, path string) error {
	data, err := dirRecord{Children: map[string]string{}}.encode()
	if err != nil {
		return types.WrapStoreError("ensure", path, types.CodeMarshallingError, err)
	}

	_, err = s.tree.Create(ctx, treeKey(path), data)
	if err != nil && !natsutil.IsRevisionMismatch(err) {
		return natsutil.StoreError("ensure", path, err)
	}

	return nil
}

// removeChild removes name from parent if it is still owned by owner.
func (s *Store) removeChild(ctx context.Context, parent, name, owner string) error {
	err := s.mutate(ctx, "delete", parent, func(rec *dirRecord) error {
		if current, ok := rec.Children[name]; !ok || current != owner {
			return errUnchanged
		}
		delete(rec.Children, name)

		return nil
	})
	if errors.Is(err, types.ErrNoNode) {
		return nil
	}

	return err
}

// initialEntry returns the current value delivered first by a fresh KV watch,
// nil when the key does not exist.
func (s *Store) initialEntry(ctx context.Context, kw jetstream.KeyWatcher) (jetstream.KeyValueEntry, error) {
	var last jetstream.KeyValueEntry
	for {
		select {
		case entry, ok := <-kw.Updates():
			if !ok {
				return nil, nats.ErrConnectionClosed
			}
			if entry == nil {
				return last, nil
			}
			last = entry
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
