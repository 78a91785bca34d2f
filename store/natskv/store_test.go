package natskv

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	successiontest "github.com/arloliu/succession/testing"
	"github.com/arloliu/succession/types"
)

type cluster struct {
	js       jetstream.JetStream
	opts     []Option
	sessions jetstream.KeyValue
}

func newCluster(t *testing.T) *cluster {
	t.Helper()

	_, nc := successiontest.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	bucket := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	c := &cluster{
		js: js,
		opts: []Option{
			WithTreeBucket("tree_" + bucket),
			WithSessionBucket("sessions_" + bucket),
			WithStorage(jetstream.MemoryStorage),
			WithPollInterval(50 * time.Millisecond),
			WithLogger(successiontest.NewTestLogger(t)),
		},
	}

	return c
}

func (c *cluster) open(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.Context(), c.js, time.Second, c.opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	if c.sessions == nil {
		c.sessions = s.sessions
	}

	return s
}

// kill removes a session key as if its process died and the TTL ran out.
func (c *cluster) kill(t *testing.T, s *Store) {
	t.Helper()

	// Stop refreshing first so the key stays gone.
	require.NoError(t, s.hb.Stop(t.Context()))
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

	t.Run("invalid path element", func(t *testing.T) {
		_, err := s.CreateSequentialEphemeral(ctx, "/election/bad.name")
		code, ok := types.StoreErrorCode(err)
		require.True(t, ok)
		require.Equal(t, types.CodeBadArguments, code)
	})
}

func TestStore_Children(t *testing.T) {
	ctx := t.Context()
	c := newCluster(t)
	a := c.open(t)
	b := c.open(t)
	require.NoError(t, a.EnsurePath(ctx, "/election"))

	pa, err := a.CreateSequentialEphemeral(ctx, "/election/_")
	require.NoError(t, err)
	pb, err := b.CreateSequentialEphemeral(ctx, "/election/_")
	require.NoError(t, err)

	children, err := a.Children(ctx, "/election")
	require.NoError(t, err)
	slices.Sort(children)
	require.Equal(t, []string{"_0000000000", "_0000000001"}, children)

	t.Run("omits nodes of dead sessions", func(t *testing.T) {
		c.kill(t, b)

		children, err := a.Children(ctx, "/election")
		require.NoError(t, err)
		require.Equal(t, []string{"_0000000000"}, children)

		// The dead node was reaped from the record.
		rec, _, err := a.load(ctx, "children", "/election")
		require.NoError(t, err)
		require.NotContains(t, rec.Children, strings.TrimPrefix(pb, "/election/"))
		require.Contains(t, rec.Children, strings.TrimPrefix(pa, "/election/"))
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

		// Unrelated sibling changes do not fire.
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
	})

	t.Run("missing node", func(t *testing.T) {
		c := newCluster(t)
		s := c.open(t)
		require.NoError(t, s.EnsurePath(ctx, "/election"))

		err := s.WatchDeletion(ctx, "/election/_0000000007", func(types.WatchEvent) {})
		require.ErrorIs(t, err, types.ErrNoNode)
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

	t.Run("fires when the owner session expires", func(t *testing.T) {
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

		// The node itself is untouched.
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

	err = s.EnsurePath(ctx, p+"/child")
	code, _ := types.StoreErrorCode(err)
	require.Equal(t, types.CodeNoChildrenForEphemerals, code)
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

	_, err = c.sessions.Get(ctx, sessionPrefix+"."+s.ID())
	require.ErrorIs(t, err, jetstream.ErrKeyNotFound)

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

	// Someone else removing the session key makes the heartbeat notice the loss.
	require.NoError(t, c.sessions.Delete(ctx, sessionPrefix+"."+s.ID()))

	ev := waitWatch(t, ch)
	require.Equal(t, types.EventNotWatching, ev.Type)
	require.Equal(t, types.SessionExpired, ev.State)
	require.ErrorIs(t, ev.Err, types.ErrSessionExpired)

	_, err = s.Children(ctx, "/election")
	require.ErrorIs(t, err, types.ErrClosing)
}

func TestDial(t *testing.T) {
	ns, _ := successiontest.StartEmbeddedNATS(t)

	t.Run("connects", func(t *testing.T) {
		store, err := Dialer(WithStorage(jetstream.MemoryStorage))(t.Context(), ns.ClientURL(), time.Second)
		require.NoError(t, err)
		defer store.Close(context.Background())

		ensurer, ok := store.(types.PathEnsurer)
		require.True(t, ok)
		require.NoError(t, ensurer.EnsurePath(t.Context(), "/election"))
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := Dial(t.Context(), "nats://127.0.0.1:1", 200*time.Millisecond)
		require.True(t, types.IsConnectionError(err))
	})
}
