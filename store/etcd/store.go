package etcd

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"

	"github.com/arloliu/succession/internal/logger"
	"github.com/arloliu/succession/types"
)

// maxCASAttempts bounds optimistic retries on one parent key.
const maxCASAttempts = 64

var (
	_ types.Store       = (*Store)(nil)
	_ types.PathEnsurer = (*Store)(nil)
)

// Store is one coordination session on etcd.
type Store struct {
	cli        *clientv3.Client
	ownsClient bool
	session    *concurrency.Session

	prefix string
	logger types.Logger

	// Lifetime of the session; watches run under it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	watches map[*watcher]struct{}
}

// Dial connects to the comma separated etcd endpoints and opens a session
// with the given timeout as lease TTL. It implements types.DialFunc.
//
// The returned store owns the client and closes it on Close.
func Dial(ctx context.Context, endpoint string, timeout time.Duration) (types.Store, error) {
	return Dialer()(ctx, endpoint, timeout)
}

// Dialer returns a types.DialFunc applying opts to every opened store.
//
// Example:
//
//	dial := etcd.Dialer(etcd.WithKeyPrefix("/services/scheduler"))
//	cand, err := succession.Elect(ctx, &cfg, dial)
func Dialer(opts ...Option) types.DialFunc {
	return func(ctx context.Context, endpoint string, timeout time.Duration) (types.Store, error) {
		options := &storeOptions{}
		for _, opt := range opts {
			opt(options)
		}
		clientLogger := options.clientLogger
		if clientLogger == nil {
			clientLogger = zap.NewNop()
		}

		cli, err := clientv3.New(clientv3.Config{
			Endpoints:   strings.Split(endpoint, ","),
			DialTimeout: timeout,
			Logger:      clientLogger,
		})
		if err != nil {
			return nil, &types.ConnectionError{Endpoint: endpoint, Err: err}
		}

		setupCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		s, err := New(setupCtx, cli, timeout, opts...)
		if err != nil {
			_ = cli.Close()
			return nil, &types.ConnectionError{Endpoint: endpoint, Err: err}
		}
		s.ownsClient = true

		return s, nil
	}
}

// New opens a session on an existing etcd client.
//
// A lease of the given TTL, rounded up to whole seconds, backs the session's
// ephemeral nodes. The client keeps it alive until Close revokes it.
//
// Parameters:
//   - ctx: Context bounding lease grant and root setup
//   - cli: Connected etcd client
//   - ttl: Session timeout
//   - opts: Optional configuration
//
// Returns:
//   - *Store: Open session
//   - error: Lease or setup error
func New(ctx context.Context, cli *clientv3.Client, ttl time.Duration, opts ...Option) (*Store, error) {
	options := &storeOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = logger.NewNop()
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session TTL must be > 0, got %v", ttl)
	}

	secs := max(1, int(math.Ceil(ttl.Seconds())))

	grant, err := cli.Grant(ctx, int64(secs))
	if err != nil {
		return nil, storeError("session", "", err)
	}

	session, err := concurrency.NewSession(cli,
		concurrency.WithLease(grant.ID),
		concurrency.WithTTL(secs),
	)
	if err != nil {
		_, _ = cli.Revoke(context.WithoutCancel(ctx), grant.ID)
		return nil, storeError("session", "", err)
	}

	lifetime, cancel := context.WithCancel(context.Background())
	s := &Store{
		cli:     cli,
		session: session,
		prefix:  strings.TrimSuffix(options.prefix, "/"),
		logger:  options.logger,
		ctx:     lifetime,
		cancel:  cancel,
		watches: make(map[*watcher]struct{}),
	}

	if err := s.ensure(ctx, "ensure", "/"); err != nil {
		_ = session.Close()
		cancel()

		return nil, err
	}

	go s.monitor()

	s.logger.Debug("etcd session opened", "lease", fmt.Sprintf("%x", int64(session.Lease())), "ttl", secs)

	return s, nil
}

// Lease returns the lease backing the session's ephemeral nodes.
func (s *Store) Lease() clientv3.LeaseID {
	return s.session.Lease()
}

// monitor ends the store once the lease can no longer be kept alive.
func (s *Store) monitor() {
	<-s.session.Done()
	if s.checkOpen("session", "") != nil {
		return
	}

	s.logger.Warn("session lease lost", "lease", fmt.Sprintf("%x", int64(s.session.Lease())))
	s.end(types.SessionExpired, types.CodeSessionExpired)
}

// CreateSequentialEphemeral creates pathPrefix plus a ten digit sequence
// suffix, attached to the session lease.
func (s *Store) CreateSequentialEphemeral(ctx context.Context, pathPrefix string) (string, error) {
	const op = "create"
	if err := s.checkOpen(op, pathPrefix); err != nil {
		return "", err
	}
	if err := validatePath(op, pathPrefix); err != nil {
		return "", err
	}

	parent, prefix := split(pathPrefix)
	parentKey := s.key(parent)

	for range maxCASAttempts {
		resp, err := s.cli.Get(ctx, parentKey)
		if err != nil {
			return "", storeError(op, pathPrefix, err)
		}
		if len(resp.Kvs) == 0 {
			return "", types.NewStoreError(op, pathPrefix, types.CodeNoNode, "")
		}

		kv := resp.Kvs[0]
		if kv.Lease != 0 {
			return "", types.NewStoreError(op, pathPrefix, types.CodeNoChildrenForEphemerals, "")
		}

		seq, err := parseSeq(kv.Value)
		if err != nil {
			return "", types.WrapStoreError(op, parent, types.CodeMarshallingError, err)
		}

		path := join(parent, fmt.Sprintf("%s%010d", prefix, seq))

		txn, err := s.cli.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(parentKey), "=", kv.ModRevision)).
			Then(
				clientv3.OpPut(parentKey, strconv.FormatUint(seq+1, 10)),
				clientv3.OpPut(s.key(path), "", clientv3.WithLease(s.session.Lease())),
			).
			Commit()
		if err != nil {
			return "", storeError(op, pathPrefix, err)
		}
		if txn.Succeeded {
			return path, nil
		}
	}

	return "", types.NewStoreError(op, pathPrefix, types.CodeRuntimeInconsistency,
		fmt.Sprintf("parent contended for %d attempts", maxCASAttempts))
}

// Children returns the names of path's direct children, unordered.
func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	const op = "children"
	if err := s.checkOpen(op, path); err != nil {
		return nil, err
	}
	if err := validatePath(op, path); err != nil {
		return nil, err
	}

	prefix := s.childPrefix(path)

	resp, err := s.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(s.key(path)), ">", 0)).
		Then(clientv3.OpGet(prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())).
		Commit()
	if err != nil {
		return nil, storeError(op, path, err)
	}
	if !resp.Succeeded {
		return nil, types.NewStoreError(op, path, types.CodeNoNode, "")
	}

	rng := resp.Responses[0].GetResponseRange()
	names := make([]string, 0, len(rng.Kvs))
	for _, kv := range rng.Kvs {
		name := strings.TrimPrefix(string(kv.Key), prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}

	return names, nil
}

// WatchDeletion installs a one-shot deletion watch on path.
//
// The watch starts right after the revision at which the existence check
// read the key, so no delete can slip between the two.
func (s *Store) WatchDeletion(ctx context.Context, path string, fn types.WatchFunc) error {
	const op = "watch"
	if err := s.checkOpen(op, path); err != nil {
		return err
	}
	if err := validatePath(op, path); err != nil {
		return err
	}

	resp, err := s.cli.Get(ctx, s.key(path))
	if err != nil {
		return storeError(op, path, err)
	}
	if len(resp.Kvs) == 0 {
		return types.NewStoreError(op, path, types.CodeNoNode, "")
	}

	wctx, cancel := context.WithCancel(clientv3.WithRequireLeader(s.ctx))
	w := &watcher{path: path, fn: fn, stop: cancel}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()

		return types.NewStoreError(op, path, types.CodeClosing, "")
	}
	s.watches[w] = struct{}{}
	s.mu.Unlock()

	go s.runWatch(wctx, w, resp.Header.Revision+1)

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

	children, err := s.cli.Get(ctx, s.childPrefix(path), clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return storeError(op, path, err)
	}
	if children.Count > 0 {
		return types.NewStoreError(op, path, types.CodeNotEmpty, "")
	}

	key := s.key(path)
	resp, err := s.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), ">", 0)).
		Then(clientv3.OpDelete(key)).
		Commit()
	if err != nil {
		return storeError(op, path, err)
	}
	if !resp.Succeeded {
		return types.NewStoreError(op, path, types.CodeNoNode, "")
	}

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

	current := "/"
	for _, name := range strings.Split(path[1:], "/") {
		current = join(current, name)
		if err := s.ensure(ctx, op, current); err != nil {
			return err
		}
	}

	return nil
}

// Close revokes the session lease, deleting the session's ephemeral nodes,
// and fires pending watches with EventNotWatching. A store opened by Dial also
// closes its client. Closing a closed store is a no-op.
func (s *Store) Close(context.Context) error {
	s.end(types.SessionClosed, types.CodeClosing)
	return nil
}

func (s *Store) end(state types.SessionState, code types.ErrorCode) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	watches := make([]*watcher, 0, len(s.watches))
	for w := range s.watches {
		watches = append(watches, w)
	}
	clear(s.watches)
	s.mu.Unlock()

	if state == types.SessionClosed {
		if err := s.session.Close(); err != nil {
			s.logger.Warn("revoking session lease failed", "error", err)
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

	if s.ownsClient {
		_ = s.cli.Close()
	}

	s.logger.Debug("etcd session ended", "state", state)
}

func (s *Store) checkOpen(op, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.NewStoreError(op, path, types.CodeClosing, "")
	}

	return nil
}

// ensure creates the persistent node at path unless it exists.
func (s *Store) ensure(ctx context.Context, op, path string) error {
	key := s.key(path)

	resp, err := s.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, "0")).
		Else(clientv3.OpGet(key)).
		Commit()
	if err != nil {
		return storeError(op, path, err)
	}
	if resp.Succeeded {
		return nil
	}

	kvs := resp.Responses[0].GetResponseRange().Kvs
	if len(kvs) > 0 && kvs[0].Lease != 0 {
		return types.NewStoreError(op, path, types.CodeNoChildrenForEphemerals, "")
	}

	return nil
}

func parseSeq(value []byte) (uint64, error) {
	if len(value) == 0 {
		return 0, nil
	}

	seq, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sequence counter %q: %w", value, err)
	}

	return seq, nil
}
