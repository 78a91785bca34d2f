package etcd

import (
	"context"
	"sync"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/arloliu/succession/types"
)

// watcher is one pending WatchDeletion.
type watcher struct {
	path string
	fn   types.WatchFunc
	stop context.CancelFunc

	once sync.Once
}

// fire cancels the etcd watch and delivers ev, at most once.
func (w *watcher) fire(ev types.WatchEvent) {
	w.once.Do(func() {
		w.stop()
		go w.fn(ev)
	})
}

// runWatch follows the watched key from rev until it is deleted.
//
// A compacted start revision is resolved by reading the key again: absent
// means it was deleted in the compacted range.
func (s *Store) runWatch(ctx context.Context, w *watcher, rev int64) {
	key := s.key(w.path)

	for {
		wch := s.cli.Watch(ctx, key, clientv3.WithRev(rev), clientv3.WithFilterPut())

		next, done := s.consume(ctx, w, wch)
		if done {
			return
		}

		resp, err := s.cli.Get(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.finish(w, lostEvent(w.path, storeError("watch", w.path, err)))

			return
		}
		if len(resp.Kvs) == 0 {
			s.finish(w, deletedEvent(w.path))
			return
		}

		rev = max(next, resp.Header.Revision+1)
	}
}

// consume reads wch until the key is deleted or the watch ends. It returns
// done=false with a restart revision when the watch was compacted away.
func (s *Store) consume(ctx context.Context, w *watcher, wch clientv3.WatchChan) (int64, bool) {
	for resp := range wch {
		if resp.CompactRevision != 0 {
			s.logger.Debug("watch revision compacted", "path", w.path, "compact", resp.CompactRevision)
			return resp.CompactRevision, false
		}
		if err := resp.Err(); err != nil {
			if ctx.Err() != nil {
				return 0, true
			}
			s.finish(w, lostEvent(w.path, storeError("watch", w.path, err)))

			return 0, true
		}

		for _, ev := range resp.Events {
			if ev.Type == mvccpb.DELETE {
				s.finish(w, deletedEvent(w.path))
				return 0, true
			}
		}
	}

	if ctx.Err() == nil {
		s.finish(w, lostEvent(w.path,
			types.NewStoreError("watch", w.path, types.CodeConnectionLoss, "watch stream closed")))
	}

	return 0, true
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

func lostEvent(path string, err error) types.WatchEvent {
	return types.WatchEvent{Type: types.EventNotWatching, State: types.SessionDisconnected, Path: path, Err: err}
}
