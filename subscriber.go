package succession

import "sync"

// subscriber is one Subscribe channel.
type subscriber struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// trySend delivers ev without blocking; slow subscribers miss the event.
func (s *subscriber) trySend(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- ev:
	default:
	}
}

// close safely closes the subscriber's channel.
func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
