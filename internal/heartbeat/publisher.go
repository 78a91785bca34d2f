package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/succession/internal/logger"
	"github.com/arloliu/succession/internal/metrics"
	"github.com/arloliu/succession/internal/natsutil"
	"github.com/arloliu/succession/types"
)

// Common errors for heartbeat operations.
var (
	ErrNotStarted     = errors.New("publisher not started")
	ErrAlreadyStarted = errors.New("publisher already started")
	ErrNoSessionID    = errors.New("session ID not set")
	ErrSessionExists  = errors.New("session key already exists")
)

// Publisher keeps a session key alive in a TTL-enabled KV bucket.
//
// The key is created on Start and refreshed every interval with a revision
// checked update. If the key expired in the meantime, or was removed by
// someone else, the update fails and the lost callback runs once; the
// publisher then stops refreshing.
type Publisher struct {
	kv        jetstream.KeyValue
	prefix    string
	sessionID string
	interval  time.Duration
	metrics   types.StoreMetrics
	logger    types.Logger
	onLost    func(error)

	mu       sync.Mutex
	started  bool
	revision uint64
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a new heartbeat publisher.
//
// The bucket TTL should be about 3x the interval so a session survives two
// missed refreshes.
//
// Parameters:
//   - kv: TTL-enabled JetStream KV bucket for session keys
//   - prefix: Key prefix (e.g., "session")
//   - interval: Refresh interval
//
// Returns:
//   - *Publisher: New heartbeat publisher instance
//
// Example:
//
//	kv, _ := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
//	    Bucket: "succession_sessions",
//	    TTL:    3 * time.Second,
//	})
//	publisher := heartbeat.New(kv, "session", time.Second)
func New(kv jetstream.KeyValue, prefix string, interval time.Duration) *Publisher {
	return &Publisher{
		kv:       kv,
		prefix:   prefix,
		interval: interval,
		metrics:  metrics.NewNop(),
		logger:   logger.NewNop(),
		onLost:   func(error) {},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// SetSessionID sets the session whose key is refreshed. Must be called before Start.
func (p *Publisher) SetSessionID(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessionID = sessionID
}

// SetMetrics sets the collector receiving "heartbeat" store operations.
func (p *Publisher) SetMetrics(m types.StoreMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m != nil {
		p.metrics = m
	}
}

// SetLogger sets the logger for refresh failures.
func (p *Publisher) SetLogger(l types.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l != nil {
		p.logger = l
	}
}

// OnLost registers the callback run when the session key is found expired or
// replaced. It runs at most once, on the publisher goroutine.
func (p *Publisher) OnLost(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fn != nil {
		p.onLost = fn
	}
}

// Start creates the session key and begins refreshing it in the background.
//
// Parameters:
//   - ctx: Context bounding the initial create
//
// Returns:
//   - error: ErrAlreadyStarted, ErrNoSessionID, ErrSessionExists or the KV error
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if p.sessionID == "" {
		return ErrNoSessionID
	}

	start := time.Now()
	rev, err := p.kv.Create(ctx, p.Key(), p.value())
	p.metrics.RecordStoreOperation("heartbeat", time.Since(start).Seconds(), err == nil)
	if err != nil {
		if natsutil.IsRevisionMismatch(err) {
			return fmt.Errorf("%w: %s", ErrSessionExists, p.Key())
		}

		return fmt.Errorf("failed to create session key: %w", err)
	}

	p.revision = rev
	p.started = true

	go p.refreshLoop()

	return nil
}

// Stop stops refreshing and deletes the session key.
//
// Blocks until the refresh goroutine exits. Deleting the key makes the session
// dead for everyone immediately instead of after the TTL.
//
// Parameters:
//   - ctx: Context bounding the delete
//
// Returns:
//   - error: ErrNotStarted if not running, or the delete error
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	close(p.stopCh)
	p.started = false
	p.mu.Unlock()

	<-p.doneCh

	if err := p.kv.Delete(ctx, p.Key()); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("stopped but failed to delete session key: %w", err)
	}

	return nil
}

// Key returns the KV key of the session.
func (p *Publisher) Key() string {
	return fmt.Sprintf("%s.%s", p.prefix, p.sessionID)
}

// SessionID returns the current session ID.
func (p *Publisher) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sessionID
}

// IsStarted returns whether the publisher is currently running.
func (p *Publisher) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.started
}

func (p *Publisher) refreshLoop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			err := p.refresh()
			if err == nil {
				continue
			}

			if natsutil.IsRevisionMismatch(err) || errors.Is(err, jetstream.ErrKeyNotFound) {
				p.logger.Warn("session key lost", "key", p.Key(), "error", err)
				p.onLost(err)

				return
			}

			// Transient failure: the key survives until its TTL, keep trying.
			p.logger.Warn("session refresh failed", "key", p.Key(), "error", err)
		}
	}
}

func (p *Publisher) refresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	start := time.Now()
	rev, err := p.kv.Update(ctx, p.Key(), p.value(), p.revision)
	p.metrics.RecordStoreOperation("heartbeat", time.Since(start).Seconds(), err == nil)
	if err != nil {
		return err
	}
	p.revision = rev

	return nil
}

func (p *Publisher) value() []byte {
	return []byte(time.Now().Format(time.RFC3339Nano))
}
