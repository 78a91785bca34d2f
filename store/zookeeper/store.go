package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/arloliu/succession/internal/logger"
	"github.com/arloliu/succession/types"
)

var (
	_ types.Store       = (*Store)(nil)
	_ types.PathEnsurer = (*Store)(nil)
)

// Store is one ZooKeeper session.
type Store struct {
	conn      *zk.Conn
	ownsConn  bool
	acl       []zk.ACL
	logger    types.Logger
	closeOnce sync.Once
}

// Dial connects to the comma separated ZooKeeper servers and waits until the
// session is established. It implements types.DialFunc.
//
// The returned store owns the connection and closes it on Close.
func Dial(ctx context.Context, endpoint string, timeout time.Duration) (types.Store, error) {
	return Dialer()(ctx, endpoint, timeout)
}

// Dialer returns a types.DialFunc applying opts to every opened store.
//
// Example:
//
//	dial := zookeeper.Dialer(zookeeper.WithLogger(logger))
//	cand, err := succession.Elect(ctx, &cfg, dial)
func Dialer(opts ...Option) types.DialFunc {
	return func(ctx context.Context, endpoint string, timeout time.Duration) (types.Store, error) {
		options := applyOptions(opts)

		conn, events, err := zk.Connect(strings.Split(endpoint, ","), timeout,
			zk.WithLogger(printfLogger{options.logger}),
		)
		if err != nil {
			return nil, &types.ConnectionError{Endpoint: endpoint, Err: err}
		}

		if err := awaitSession(ctx, events); err != nil {
			conn.Close()
			return nil, &types.ConnectionError{Endpoint: endpoint, Err: err}
		}

		s := New(conn, opts...)
		s.ownsConn = true
		go s.drain(events)

		s.logger.Debug("zookeeper session established",
			"session", fmt.Sprintf("%x", conn.SessionID()), "timeout", timeout)

		return s, nil
	}
}

// New wraps an established connection. The caller keeps ownership of conn and
// must consume its event channel.
func New(conn *zk.Conn, opts ...Option) *Store {
	options := applyOptions(opts)

	return &Store{
		conn:   conn,
		acl:    options.acl,
		logger: options.logger,
	}
}

func applyOptions(opts []Option) *storeOptions {
	options := &storeOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.acl == nil {
		options.acl = zk.WorldACL(zk.PermAll)
	}
	if options.logger == nil {
		options.logger = logger.NewNop()
	}

	return options
}

// awaitSession blocks until the connection reports an established session.
func awaitSession(ctx context.Context, events <-chan zk.Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return zk.ErrConnectionClosed
			}
			switch ev.State {
			case zk.StateHasSession:
				return nil
			case zk.StateAuthFailed:
				return zk.ErrAuthFailed
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain logs session state changes until the connection is closed.
func (s *Store) drain(events <-chan zk.Event) {
	for ev := range events {
		if ev.Type != zk.EventSession {
			continue
		}

		switch ev.State {
		case zk.StateExpired:
			s.logger.Warn("zookeeper session expired", "server", ev.Server)
		case zk.StateDisconnected:
			s.logger.Info("zookeeper disconnected", "server", ev.Server)
		case zk.StateHasSession:
			s.logger.Debug("zookeeper session established",
				"session", fmt.Sprintf("%x", s.conn.SessionID()), "server", ev.Server)
		}
	}
}

// CreateSequentialEphemeral creates an ephemeral sequential znode.
func (s *Store) CreateSequentialEphemeral(_ context.Context, pathPrefix string) (string, error) {
	path, err := s.conn.Create(pathPrefix, nil, zk.FlagEphemeral|zk.FlagSequence, s.acl)
	if err != nil {
		return "", storeError("create", pathPrefix, err)
	}

	return path, nil
}

// Children returns the names of path's children.
func (s *Store) Children(_ context.Context, path string) ([]string, error) {
	children, _, err := s.conn.Children(path)
	if err != nil {
		return nil, storeError("children", path, err)
	}

	return children, nil
}

// WatchDeletion installs an exists watch on path.
//
// ZooKeeper watches are one-shot and also fire on data changes; those re-arm
// the watch, so fn only sees the deletion or the end of the session.
func (s *Store) WatchDeletion(_ context.Context, path string, fn types.WatchFunc) error {
	exists, _, ch, err := s.conn.ExistsW(path)
	if err != nil {
		return storeError("watch", path, err)
	}
	if !exists {
		return types.NewStoreError("watch", path, types.CodeNoNode, "")
	}

	go s.follow(path, ch, fn)

	return nil
}

func (s *Store) follow(path string, ch <-chan zk.Event, fn types.WatchFunc) {
	for {
		ev := <-ch

		switch ev.Type {
		case zk.EventNodeDeleted:
			fn(types.WatchEvent{Type: types.EventNodeDeleted, State: types.SessionState(ev.State), Path: path})
			return
		case zk.EventNotWatching:
			fn(types.WatchEvent{
				Type:  types.EventNotWatching,
				State: sessionState(ev),
				Path:  path,
				Err:   storeError("watch", path, ev.Err),
			})

			return
		}

		exists, _, next, err := s.conn.ExistsW(path)
		switch {
		case err != nil:
			fn(types.WatchEvent{
				Type:  types.EventNotWatching,
				State: types.SessionState(s.conn.State()),
				Path:  path,
				Err:   storeError("watch", path, err),
			})

			return
		case !exists:
			fn(types.WatchEvent{Type: types.EventNodeDeleted, State: types.SessionHasSession, Path: path})
			return
		}

		s.logger.Debug("re-arming watch", "path", path, "event", ev.Type.String())
		ch = next
	}
}

// Delete removes path regardless of version.
func (s *Store) Delete(_ context.Context, path string) error {
	return storeError("delete", path, s.conn.Delete(path, -1))
}

// EnsurePath creates path and any missing ancestors as persistent znodes.
func (s *Store) EnsurePath(_ context.Context, path string) error {
	if path == "" || path[0] != '/' {
		return types.NewStoreError("ensure", path, types.CodeBadArguments, "path must start with /")
	}
	if path == "/" {
		return nil
	}

	current := ""
	for _, name := range strings.Split(path[1:], "/") {
		current += "/" + name

		_, err := s.conn.Create(current, nil, 0, s.acl)
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return storeError("ensure", current, err)
		}
	}

	return nil
}

// Close ends the session when the store owns the connection. The server then
// removes the session's ephemeral nodes and pending watches fire with
// EventNotWatching.
func (s *Store) Close(context.Context) error {
	s.closeOnce.Do(func() {
		if s.ownsConn {
			s.conn.Close()
		}
	})

	return nil
}

// sessionState maps the state of a watch-ending event. The client reports
// invalidated watches as disconnected; the error tells closing from expiry.
func sessionState(ev zk.Event) types.SessionState {
	switch {
	case errors.Is(ev.Err, zk.ErrClosing):
		return types.SessionClosed
	case errors.Is(ev.Err, zk.ErrSessionExpired):
		return types.SessionExpired
	default:
		return types.SessionState(ev.State)
	}
}

// printfLogger adapts types.Logger to the client's Printf logger.
type printfLogger struct {
	logger types.Logger
}

func (l printfLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
