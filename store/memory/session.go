package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/succession/types"
)

// Session is one client session on a Server. It implements types.Store.
type Session struct {
	id     string
	server *Server

	// guarded by server.mu
	closed     bool
	ephemerals map[string]struct{}
}

var (
	_ types.Store       = (*Session)(nil)
	_ types.PathEnsurer = (*Session)(nil)
)

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreateSequentialEphemeral creates pathPrefix plus a ten digit sequence suffix.
func (s *Session) CreateSequentialEphemeral(ctx context.Context, pathPrefix string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", types.WrapStoreError(OpCreate, pathPrefix, types.CodeOperationTimeout, err)
	}
	if err := validatePath(pathPrefix); err != nil {
		return "", types.WrapStoreError(OpCreate, pathPrefix, types.CodeBadArguments, err)
	}

	srv := s.server
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if s.closed {
		return "", types.NewStoreError(OpCreate, pathPrefix, types.CodeClosing, "")
	}
	if code, ok := srv.takeFault(OpCreate); ok {
		return "", types.NewStoreError(OpCreate, pathPrefix, code, "injected fault")
	}

	parentPath, prefix := split(pathPrefix)
	parent, ok := srv.nodes[parentPath]
	if !ok {
		return "", types.NewStoreError(OpCreate, pathPrefix, types.CodeNoNode, "parent does not exist")
	}
	if parent.owner != nil {
		return "", types.NewStoreError(OpCreate, pathPrefix, types.CodeNoChildrenForEphemerals, "")
	}

	name := fmt.Sprintf("%s%010d", prefix, parent.nextSeq)
	parent.nextSeq++

	path := join(parentPath, name)
	srv.nodes[path] = &node{owner: s, children: make(map[string]struct{})}
	parent.children[name] = struct{}{}
	s.ephemerals[path] = struct{}{}

	return path, nil
}

// Children returns the child names of path in map iteration order.
func (s *Session) Children(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.WrapStoreError(OpChildren, path, types.CodeOperationTimeout, err)
	}

	srv := s.server
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if s.closed {
		return nil, types.NewStoreError(OpChildren, path, types.CodeClosing, "")
	}
	if code, ok := srv.takeFault(OpChildren); ok {
		return nil, types.NewStoreError(OpChildren, path, code, "injected fault")
	}

	n, ok := srv.nodes[path]
	if !ok {
		return nil, types.NewStoreError(OpChildren, path, types.CodeNoNode, "")
	}

	children := make([]string, 0, len(n.children))
	for name := range n.children {
		children = append(children, name)
	}

	return children, nil
}

// WatchDeletion installs a one-shot deletion watch on path.
func (s *Session) WatchDeletion(ctx context.Context, path string, fn types.WatchFunc) error {
	if err := ctx.Err(); err != nil {
		return types.WrapStoreError(OpWatch, path, types.CodeOperationTimeout, err)
	}

	srv := s.server
	if hook := srv.beforeWatch.Load(); hook != nil {
		(*hook)(path)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if s.closed {
		return types.NewStoreError(OpWatch, path, types.CodeClosing, "")
	}
	if code, ok := srv.takeFault(OpWatch); ok {
		return types.NewStoreError(OpWatch, path, code, "injected fault")
	}
	if _, ok := srv.nodes[path]; !ok {
		return types.NewStoreError(OpWatch, path, types.CodeNoNode, "")
	}

	srv.watches[path] = append(srv.watches[path], &watch{session: s, fn: fn})

	return nil
}

// Delete removes path. Nodes with children cannot be deleted.
func (s *Session) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return types.WrapStoreError(OpDelete, path, types.CodeOperationTimeout, err)
	}

	srv := s.server
	srv.mu.Lock()

	if s.closed {
		srv.mu.Unlock()
		return types.NewStoreError(OpDelete, path, types.CodeClosing, "")
	}
	if code, ok := srv.takeFault(OpDelete); ok {
		srv.mu.Unlock()
		return types.NewStoreError(OpDelete, path, code, "injected fault")
	}

	n, ok := srv.nodes[path]
	if !ok || path == "/" {
		srv.mu.Unlock()
		return types.NewStoreError(OpDelete, path, types.CodeNoNode, "")
	}
	if len(n.children) > 0 {
		srv.mu.Unlock()
		return types.NewStoreError(OpDelete, path, types.CodeNotEmpty, "")
	}

	ws := srv.removeLocked(path)
	srv.mu.Unlock()

	srv.deliver(ws, types.WatchEvent{Type: types.EventNodeDeleted, State: types.SessionHasSession, Path: path})

	return nil
}

// EnsurePath creates path and any missing ancestors as persistent nodes.
func (s *Session) EnsurePath(ctx context.Context, path string) error {
	return s.server.EnsurePath(ctx, path)
}

// Close ends the session, removing its ephemeral nodes and cancelling its watches.
//
// Closing an already closed session is a no-op.
func (s *Session) Close(_ context.Context) error {
	srv := s.server
	srv.mu.Lock()
	if code, ok := srv.takeFault(OpClose); ok {
		srv.mu.Unlock()
		return types.NewStoreError(OpClose, "", code, "injected fault")
	}
	srv.mu.Unlock()

	s.end(types.SessionClosed, types.CodeClosing)

	return nil
}

// Expire simulates server-side session expiry.
//
// Ephemeral nodes are removed and pending watches of this session fire with
// EventNotWatching and a SessionExpired error.
func (s *Session) Expire() {
	s.end(types.SessionExpired, types.CodeSessionExpired)
}

func (s *Session) end(state types.SessionState, code types.ErrorCode) {
	srv := s.server
	srv.mu.Lock()
	if s.closed {
		srv.mu.Unlock()
		return
	}
	s.closed = true

	type deletion struct {
		path string
		ws   []*watch
	}
	var deleted []deletion
	for path := range s.ephemerals {
		deleted = append(deleted, deletion{path: path, ws: srv.removeLocked(path)})
	}

	// Watches owned by this session never observe a deletion now.
	var orphaned []*watch
	for path, ws := range srv.watches {
		kept := ws[:0]
		for _, w := range ws {
			if w.session == s {
				orphaned = append(orphaned, &watch{session: s, fn: bindPath(w.fn, path)})
			} else {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			delete(srv.watches, path)
		} else {
			srv.watches[path] = kept
		}
	}

	// Watches this session held on its own ephemerals are orphaned too.
	for i := range deleted {
		kept := deleted[i].ws[:0]
		for _, w := range deleted[i].ws {
			if w.session == s {
				orphaned = append(orphaned, &watch{session: s, fn: bindPath(w.fn, deleted[i].path)})
			} else {
				kept = append(kept, w)
			}
		}
		deleted[i].ws = kept
	}
	srv.mu.Unlock()

	srv.sessions.Delete(s.id)

	for _, d := range deleted {
		srv.deliver(d.ws, types.WatchEvent{Type: types.EventNodeDeleted, State: types.SessionHasSession, Path: d.path})
	}
	srv.deliver(orphaned, types.WatchEvent{
		Type:  types.EventNotWatching,
		State: state,
		Err:   types.NewStoreError(OpWatch, "", code, ""),
	})
}

// bindPath fills in the watched path and error path for events delivered without one.
func bindPath(fn types.WatchFunc, path string) types.WatchFunc {
	return func(ev types.WatchEvent) {
		ev.Path = path
		var se *types.StoreError
		if errors.As(ev.Err, &se) && se.Path == "" {
			copied := *se
			copied.Path = path
			ev.Err = &copied
		}
		fn(ev)
	}
}
