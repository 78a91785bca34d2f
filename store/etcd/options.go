package etcd

import (
	"go.uber.org/zap"

	"github.com/arloliu/succession/types"
)

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	prefix       string
	logger       types.Logger
	clientLogger *zap.Logger
}

// WithKeyPrefix roots the node tree under prefix, e.g. "/services/scheduler".
//
// All sessions of one election must use the same prefix. A trailing slash is
// ignored.
func WithKeyPrefix(prefix string) Option {
	return func(o *storeOptions) {
		o.prefix = prefix
	}
}

// WithLogger sets the store logger.
func WithLogger(logger types.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithClientLogger sets the zap logger handed to the etcd client by Dialer.
// Defaults to a no-op logger.
func WithClientLogger(logger *zap.Logger) Option {
	return func(o *storeOptions) {
		o.clientLogger = logger
	}
}
