package natskv

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/succession/types"
)

// watcher is one pending WatchDeletion.
type watcher struct {
	path  string
	name  string
	owner string
	fn    types.WatchFunc
	stop  func()

	once sync.Once
}

// fire stops the KV watch and delivers ev, at most once.
func (w *watcher) fire(ev types.WatchEvent) {
	w.once.Do(func() {
		w.stop()
		go w.fn(ev)
	})
}

// runWatch follows the parent record until the watched child disappears.
//
// Updates of the record cover explicit deletes; the liveness poll covers the
// owner's session expiring without anyone touching the record.
func (s *Store) runWatch(ctx context.Context, w *watcher, kw jetstream.KeyWatcher) {
	var poll <-chan time.Time
	if w.owner != "" && w.owner != s.id {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			// Session end delivers EventNotWatching itself.
			return

		case entry, ok := <-kw.Updates():
			if !ok {
				if ctx.Err() != nil {
					return
				}
				s.finish(w, types.WatchEvent{
					Type:  types.EventNotWatching,
					State: types.SessionDisconnected,
					Path:  w.path,
					Err:   types.NewStoreError("watch", w.path, types.CodeConnectionLoss, "watch stream closed"),
				})

				return
			}
			if entry == nil {
				continue
			}
			if s.childGone(w, entry) {
				s.finish(w, deletedEvent(w.path))
				return
			}

		case <-poll:
			alive, err := s.alive(ctx, w.owner)
			if err != nil {
				s.logger.Debug("liveness check failed", "path", w.path, "owner", w.owner, "error", err)
				continue
			}
			if alive {
				continue
			}

			parent, _ := split(w.path)
			if err := s.removeChild(ctx, parent, w.name, w.owner); err != nil {
				s.logger.Debug("reaping expired node failed", "path", w.path, "error", err)
			}
			s.finish(w, deletedEvent(w.path))

			return
		}
	}
}

// childGone reports whether entry no longer lists the watched child under its owner.
func (s *Store) childGone(w *watcher, entry jetstream.KeyValueEntry) bool {
	if entry.Operation() != jetstream.KeyValuePut {
		return true
	}

	rec, err := decodeRecord(entry.Value())
	if err != nil {
		s.logger.Warn("undecodable tree record", "key", entry.Key(), "error", err)
		return false
	}

	owner, ok := rec.Children[w.name]

	return !ok || owner != w.owner
}

// finish unregisters w and fires ev unless the session already ended.
func (s *Store) finish(w *watcher, ev types.WatchEvent) {
	s.mu.Lock()
	_, pending := s.watches[w]
	delete(s.watches, w)
	s.mu.Unlock()

	if pending {
		w.fire(ev)
	}
}

func deletedEvent(path string) types.WatchEvent {
	return types.WatchEvent{Type: types.EventNodeDeleted, State: types.SessionHasSession, Path: path}
}
