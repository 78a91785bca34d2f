package natskv

import (
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/succession/types"
)

// Default bucket names.
const (
	DefaultTreeBucket    = "succession_tree"
	DefaultSessionBucket = "succession_sessions"
)

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	treeBucket    string
	sessionBucket string
	storage       jetstream.StorageType
	pollInterval  time.Duration
	logger        types.Logger
	metrics       types.StoreMetrics
}

// WithTreeBucket sets the bucket holding the node tree.
//
// All sessions of one election must use the same bucket.
func WithTreeBucket(name string) Option {
	return func(o *storeOptions) {
		o.treeBucket = name
	}
}

// WithSessionBucket sets the TTL bucket holding session keys.
//
// The bucket TTL is fixed when the first session creates it; later sessions
// inherit it regardless of their own timeout.
func WithSessionBucket(name string) Option {
	return func(o *storeOptions) {
		o.sessionBucket = name
	}
}

// WithStorage selects file (default) or memory storage for newly created buckets.
func WithStorage(storage jetstream.StorageType) Option {
	return func(o *storeOptions) {
		o.storage = storage
	}
}

// WithPollInterval sets how often a watch checks that the watched node's
// session is still alive. Defaults to half the session TTL.
func WithPollInterval(d time.Duration) Option {
	return func(o *storeOptions) {
		o.pollInterval = d
	}
}

// WithLogger sets the store logger.
func WithLogger(logger types.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithMetrics sets the collector receiving heartbeat operations.
func WithMetrics(metrics types.StoreMetrics) Option {
	return func(o *storeOptions) {
		o.metrics = metrics
	}
}
