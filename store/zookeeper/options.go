package zookeeper

import (
	"github.com/go-zookeeper/zk"

	"github.com/arloliu/succession/types"
)

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	acl    []zk.ACL
	logger types.Logger
}

// WithACL sets the ACL of created nodes. Defaults to world:anyone with all
// permissions.
func WithACL(acl []zk.ACL) Option {
	return func(o *storeOptions) {
		o.acl = acl
	}
}

// WithLogger sets the store logger. Dialer also routes the client's own log
// output to it at debug level.
func WithLogger(logger types.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}
