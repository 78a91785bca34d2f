package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/succession/types"
)

// Operation names accepted by FailNext.
const (
	OpCreate   = "create"
	OpChildren = "children"
	OpWatch    = "watch"
	OpDelete   = "delete"
	OpClose    = "close"
)

type node struct {
	owner    *Session // nil for persistent nodes
	nextSeq  uint64
	children map[string]struct{}
}

type watch struct {
	session *Session
	fn      types.WatchFunc
}

// Server is an in-memory node tree shared by many sessions.
type Server struct {
	mu      sync.Mutex
	nodes   map[string]*node
	watches map[string][]*watch
	faults  map[string][]types.ErrorCode

	beforeWatch atomic.Pointer[func(path string)]

	sessions *xsync.Map[string, *Session]
	fired    atomic.Int64
}

// NewServer creates an empty tree containing only the root "/".
func NewServer() *Server {
	return &Server{
		nodes: map[string]*node{
			"/": {children: make(map[string]struct{})},
		},
		watches:  make(map[string][]*watch),
		faults:   make(map[string][]types.ErrorCode),
		sessions: xsync.NewMap[string, *Session](),
	}
}

// Connect opens a new session on the server.
func (s *Server) Connect() *Session {
	sess := &Session{
		id:         uuid.NewString(),
		server:     s,
		ephemerals: make(map[string]struct{}),
	}
	s.sessions.Store(sess.id, sess)

	return sess
}

// Dialer returns a types.DialFunc connecting to this server.
//
// The endpoint and timeout arguments are ignored.
func (s *Server) Dialer() types.DialFunc {
	return func(ctx context.Context, _ string, _ time.Duration) (types.Store, error) {
		if err := ctx.Err(); err != nil {
			return nil, &types.ConnectionError{Endpoint: "memory", Err: err}
		}

		return s.Connect(), nil
	}
}

// EnsurePath creates path and any missing ancestors as persistent nodes.
func (s *Server) EnsurePath(_ context.Context, path string) error {
	if err := validatePath(path); err != nil {
		return types.WrapStoreError("ensure", path, types.CodeBadArguments, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent := "/"
	for _, part := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		current := join(parent, part)
		if n, ok := s.nodes[current]; ok {
			if n.owner != nil && current != path {
				return types.NewStoreError("ensure", current, types.CodeNoChildrenForEphemerals, "")
			}
		} else {
			s.nodes[current] = &node{children: make(map[string]struct{})}
			s.nodes[parent].children[part] = struct{}{}
		}
		parent = current
	}

	return nil
}

// FailNext makes the next call of op on any session fail with code.
//
// Calls queue up: FailNext(OpCreate, a) followed by FailNext(OpCreate, b)
// fails the next two create calls with a then b.
func (s *Server) FailNext(op string, code types.ErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faults[op] = append(s.faults[op], code)
}

// SetBeforeWatch installs a hook run before each watch installation, outside
// the server lock, with the path about to be watched. Pass nil to remove it.
func (s *Server) SetBeforeWatch(fn func(path string)) {
	if fn == nil {
		s.beforeWatch.Store(nil)
		return
	}
	s.beforeWatch.Store(&fn)
}

// Exists reports whether path is present.
func (s *Server) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.nodes[path]

	return ok
}

// WatchCount returns the number of pending watches on path.
func (s *Server) WatchCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.watches[path])
}

// FiredWatches returns the total number of watch callbacks delivered.
func (s *Server) FiredWatches() int64 {
	return s.fired.Load()
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	return s.sessions.Size()
}

// takeFault pops a queued fault for op. Caller holds s.mu.
func (s *Server) takeFault(op string) (types.ErrorCode, bool) {
	queue := s.faults[op]
	if len(queue) == 0 {
		return types.CodeOK, false
	}
	s.faults[op] = queue[1:]

	return queue[0], true
}

// removeLocked deletes path and collects its watches. Caller holds s.mu.
func (s *Server) removeLocked(path string) []*watch {
	n, ok := s.nodes[path]
	if !ok {
		return nil
	}

	parent, name := split(path)
	if p, ok := s.nodes[parent]; ok {
		delete(p.children, name)
	}
	delete(s.nodes, path)
	if n.owner != nil {
		delete(n.owner.ephemerals, path)
	}

	ws := s.watches[path]
	delete(s.watches, path)

	return ws
}

func (s *Server) deliver(ws []*watch, ev types.WatchEvent) {
	for _, w := range ws {
		s.fired.Add(1)
		go w.fn(ev)
	}
}

func validatePath(path string) error {
	if path == "" || path[0] != '/' {
		return fmt.Errorf("path %q must start with /", path)
	}
	if path != "/" && strings.HasSuffix(path, "/") {
		return fmt.Errorf("path %q must not end with /", path)
	}
	if strings.Contains(path, "//") {
		return fmt.Errorf("path %q contains an empty element", path)
	}

	return nil
}

func split(path string) (parent, name string) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/", path[i+1:]
	}

	return path[:i], path[i+1:]
}

func join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}

	return parent + "/" + name
}
