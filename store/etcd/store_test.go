package etcd

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	successiontest "github.com/arloliu/succession/testing"
	"github.com/arloliu/succession/types"
)

type cluster struct {
	endpoint string
	cli      *clientv3.Client
	opts     []Option
}

func newCluster(t *testing.T) *cluster {
	t.Helper()

	_, endpoint := successiontest.StartEmbeddedEtcd(t)
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{endpoint},
		DialTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	prefix := "/" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())

	return &cluster{
		endpoint: endpoint,
		cli:      cli,
		opts: []Option{
			WithKeyPrefix(prefix),
			WithLogger(successiontest.NewTestLogger(t)),
		},
	}
}

func (c *cluster) open(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.Context(), c.cli, 2*time.Second, c.opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	return s
}

// kill revokes a session lease from outside, as if its process died and the
// lease ran out.
func (c *cluster) kill(t *testing.T, s *Store) {
	t.Helper()

	_, err := c.cli.Revoke(t.Context(), s.Lease())
	require.NoError(t, err)
}

func waitWatch(t *testing.T, ch <-chan types.WatchEvent) types.WatchEvent {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return types.WatchEvent{}
	}
}

func watchInto(ch chan types.WatchEvent) types.WatchFunc {
	return func(ev types.WatchEvent) { ch <- ev }
}

func TestStore_CreateSequentialEphemeral(t *testing.T) {
	ctx := t.Context()
	c := newCluster(t)
	s := c.open(t)
	require.NoError(t, s.EnsurePath(ctx, "/election"))

	t.Run("assigns increasing zero padded suffixes", func(t *testing.T) {
		other := c.open(t)

		p0, err := s.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)
		p1, err := other.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)
		p2, err := s.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)

		require.Equal(t, []string{"/election/_0000000000", "/election/_0000000001", "/election/_0000000002"}, []string{p0, p1, p2})
	})

	t.Run("concurrent creates never share a sequence", func(t *testing.T) {
		stores := []*Store{c.open(t), c.open(t), c.open(t), c.open(t)}
		results := make(chan string, len(stores))
		errs := make(chan error, len(stores))

		for _, st := range stores {
			go func() {
				p, err := st.CreateSequentialEphemeral(ctx, "/election/_")
				errs <- err
				results <- p
			}()
		}

		seen := map[string]bool{}
		for range stores {
			require.NoError(t, <-errs)
			p := <-results
			require.False(t, seen[p], "duplicate path %s", p)
			seen[p] = true
		}
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := s.CreateSequentialEphemeral(ctx, "/missing/_")
		require.ErrorIs(t, err, types.ErrNoNode)
	})

	t.Run("ephemeral parent", func(t *testing.T) {
		p, err := s.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)

		_, err = s.CreateSequentialEphemeral(ctx, p+"/_")
		code, ok := types.StoreErrorCode(err)
		require.True(t, ok)
		require.Equal(t, types.CodeNoChildrenForEphemerals, code)
	})

	t.Run("relative path", func(t *testing.T) {
		_, err := s.CreateSequentialEphemeral(ctx, "election/_")
		code, ok := types.StoreErrorCode(err)
		require.True(t, ok)
		require.Equal(t, types.CodeBadArguments, code)
	})

	t.Run("node carries the session lease", func(t *testing.T) {
		p, err := s.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)

		resp, err := c.cli.Get(ctx, s.key(p))
		require.NoError(t, err)
		require.Len(t, resp.Kvs, 1)
		require.Equal(t, int64(s.Lease()), resp.Kvs[0].Lease)
	})
}

func TestStore_Children(t *testing.T) {
	ctx := t.Context()
	c := newCluster(t)
	a := c.open(t)
	b := c.open(t)
	require.NoError(t, a.EnsurePath(ctx, "/election/nested"))

	_, err := a.CreateSequentialEphemeral(ctx, "/election/_")
	require.NoError(t, err)
	_, err = b.CreateSequentialEphemeral(ctx, "/election/_")
	require.NoError(t, err)
	_, err = b.CreateSequentialEphemeral(ctx, "/election/nested/_")
	require.NoError(t, err)

	t.Run("direct children only", func(t *testing.T) {
		children, err := a.Children(ctx, "/election")
		require.NoError(t, err)
		slices.Sort(children)
		require.Equal(t, []string{"_0000000000", "_0000000001", "nested"}, children)
	})

	t.Run("root", func(t *testing.T) {
		children, err := a.Children(ctx, "/")
		require.NoError(t, err)
		require.Equal(t, []string{"election"}, children)
	})

	t.Run("omits nodes of dead sessions", func(t *testing.T) {
		c.kill(t, b)

		children, err := a.Children(ctx, "/election")
		require.NoError(t, err)
		slices.Sort(children)
		require.Equal(t, []string{"_0000000000", "nested"}, children)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := a.Children(ctx, "/missing")
		require.ErrorIs(t, err, types.ErrNoNode)
	})
}

func TestStore_WatchDeletion(t *testing.T) {
	ctx := t.Context()

	t.Run("fires once on delete", func(t *testing.T) {
		c := newCluster(t)
		owner := c.open(t)
		watcherSess := c.open(t)
		require.NoError(t, owner.EnsurePath(ctx, "/election"))

		p, err := owner.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)
		sibling, err := owner.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)

		ch := make(chan types.WatchEvent, 4)
		require.NoError(t, watcherSess.WatchDeletion(ctx, p, watchInto(ch)))

		require.NoError(t, owner.Delete(ctx, sibling))
		select {
		case ev := <-ch:
			t.Fatalf("unexpected event %+v", ev)
		case <-time.After(200 * time.Millisecond):
		}

		require.NoError(t, owner.Delete(ctx, p))
		ev := waitWatch(t, ch)
		require.Equal(t, types.EventNodeDeleted, ev.Type)
		require.Equal(t, p, ev.Path)
		require.NoError(t, ev.Err)

		select {
		case ev := <-ch:
			t.Fatalf("watch fired twice: %+v", ev)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("missing node", func(t *testing.T) {
		c := newCluster(t)
		s := c.open(t)
		require.NoError(t, s.EnsurePath(ctx, "/election"))

		err := s.WatchDeletion(ctx, "/election/_0000000007", func(types.WatchEvent) {})
		require.ErrorIs(t, err, types.ErrNoNode)
	})

	t.Run("data changes do not fire", func(t *testing.T) {
		c := newCluster(t)
		s := c.open(t)
		require.NoError(t, s.EnsurePath(ctx, "/election"))

		ch := make(chan types.WatchEvent, 1)
		require.NoError(t, s.WatchDeletion(ctx, "/election", watchInto(ch)))

		// Creating a child rewrites the parent's sequence counter.
		_, err := s.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)

		select {
		case ev := <-ch:
			t.Fatalf("unexpected event %+v", ev)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("fires when the owner closes", func(t *testing.T) {
		c := newCluster(t)
		owner := c.open(t)
		watcherSess := c.open(t)
		require.NoError(t, owner.EnsurePath(ctx, "/election"))

		p, err := owner.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)

		ch := make(chan types.WatchEvent, 1)
		require.NoError(t, watcherSess.WatchDeletion(ctx, p, watchInto(ch)))
		require.NoError(t, owner.Close(ctx))

		require.Equal(t, types.EventNodeDeleted, waitWatch(t, ch).Type)
	})

	t.Run("fires when the owner lease is revoked", func(t *testing.T) {
		c := newCluster(t)
		owner := c.open(t)
		watcherSess := c.open(t)
		require.NoError(t, owner.EnsurePath(ctx, "/election"))

		p, err := owner.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)

		ch := make(chan types.WatchEvent, 1)
		require.NoError(t, watcherSess.WatchDeletion(ctx, p, watchInto(ch)))

		c.kill(t, owner)

		ev := waitWatch(t, ch)
		require.Equal(t, types.EventNodeDeleted, ev.Type)
		require.Equal(t, p, ev.Path)
	})

	t.Run("own session close ends the watch", func(t *testing.T) {
		c := newCluster(t)
		owner := c.open(t)
		watcherSess := c.open(t)
		require.NoError(t, owner.EnsurePath(ctx, "/election"))

		p, err := owner.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)

		ch := make(chan types.WatchEvent, 1)
		require.NoError(t, watcherSess.WatchDeletion(ctx, p, watchInto(ch)))
		require.NoError(t, watcherSess.Close(ctx))

		ev := waitWatch(t, ch)
		require.Equal(t, types.EventNotWatching, ev.Type)
		require.Equal(t, types.SessionClosed, ev.State)
		require.ErrorIs(t, ev.Err, types.ErrClosing)

		children, err := owner.Children(ctx, "/election")
		require.NoError(t, err)
		require.Len(t, children, 1)
	})
}

func TestStore_Delete(t *testing.T) {
	ctx := t.Context()
	c := newCluster(t)
	s := c.open(t)
	require.NoError(t, s.EnsurePath(ctx, "/services/election"))

	p, err := s.CreateSequentialEphemeral(ctx, "/services/election/_")
	require.NoError(t, err)

	t.Run("persistent node with children", func(t *testing.T) {
		err := s.Delete(ctx, "/services/election")
		code, _ := types.StoreErrorCode(err)
		require.Equal(t, types.CodeNotEmpty, code)
	})

	t.Run("ephemeral", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, p))
		require.ErrorIs(t, s.Delete(ctx, p), types.ErrNoNode)
	})

	t.Run("empty persistent node", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "/services/election"))
		_, err := s.Children(ctx, "/services/election")
		require.ErrorIs(t, err, types.ErrNoNode)
	})

	t.Run("root", func(t *testing.T) {
		code, _ := types.StoreErrorCode(s.Delete(ctx, "/"))
		require.Equal(t, types.CodeBadArguments, code)
	})
}

func TestStore_EnsurePath(t *testing.T) {
	ctx := t.Context()
	c := newCluster(t)
	s := c.open(t)

	require.NoError(t, s.EnsurePath(ctx, "/a/b/c"))
	require.NoError(t, s.EnsurePath(ctx, "/a/b/c"), "idempotent")

	children, err := s.Children(ctx, "/a")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, children)

	p, err := s.CreateSequentialEphemeral(ctx, "/a/_")
	require.NoError(t, err)

	err = s.EnsurePath(ctx, p)
	code, _ := types.StoreErrorCode(err)
	require.Equal(t, types.CodeNoChildrenForEphemerals, code)

	t.Run("trailing slash", func(t *testing.T) {
		code, _ := types.StoreErrorCode(s.EnsurePath(ctx, "/a/"))
		require.Equal(t, types.CodeBadArguments, code)
	})
}

func TestStore_Close(t *testing.T) {
	ctx := t.Context()
	c := newCluster(t)
	s := c.open(t)
	observer := c.open(t)
	require.NoError(t, s.EnsurePath(ctx, "/election"))

	for range 3 {
		_, err := s.CreateSequentialEphemeral(ctx, "/election/_")
		require.NoError(t, err)
	}

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx), "idempotent")

	children, err := observer.Children(ctx, "/election")
	require.NoError(t, err)
	require.Empty(t, children)

	ttl, err := c.cli.TimeToLive(ctx, s.Lease())
	require.NoError(t, err)
	require.Equal(t, int64(-1), ttl.TTL, "lease revoked")

	_, err = s.CreateSequentialEphemeral(ctx, "/election/_")
	require.ErrorIs(t, err, types.ErrClosing)
}

func TestStore_SessionExpiry(t *testing.T) {
	ctx := t.Context()
	c := newCluster(t)
	s := c.open(t)
	owner := c.open(t)
	require.NoError(t, s.EnsurePath(ctx, "/election"))

	p, err := owner.CreateSequentialEphemeral(ctx, "/election/_")
	require.NoError(t, err)

	ch := make(chan types.WatchEvent, 1)
	require.NoError(t, s.WatchDeletion(ctx, p, watchInto(ch)))

	c.kill(t, s)

	ev := waitWatch(t, ch)
	require.Equal(t, types.EventNotWatching, ev.Type)
	require.Equal(t, types.SessionExpired, ev.State)
	require.ErrorIs(t, ev.Err, types.ErrSessionExpired)

	_, err = s.Children(ctx, "/election")
	require.ErrorIs(t, err, types.ErrClosing)
}

func TestDial(t *testing.T) {
	c := newCluster(t)

	t.Run("connects", func(t *testing.T) {
		store, err := Dialer(c.opts...)(t.Context(), c.endpoint, time.Second)
		require.NoError(t, err)
		defer store.Close(context.Background())

		ensurer, ok := store.(types.PathEnsurer)
		require.True(t, ok)
		require.NoError(t, ensurer.EnsurePath(t.Context(), "/election"))
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		_, err := Dial(t.Context(), "127.0.0.1:1", 200*time.Millisecond)
		require.True(t, types.IsConnectionError(err))
	})
}
