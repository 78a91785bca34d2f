// Package etcd implements the coordination store on etcd v3.
//
// A session is a concurrency.Session: a lease kept alive by the client. Nodes
// map to keys under an optional prefix. Ephemeral nodes are bound to the
// session lease and vanish when it is revoked or expires. Each persistent
// node's value holds the next sequence number for its children, advanced in
// the same transaction that creates the child, guarded by the parent's
// ModRevision.
//
// A deletion watch starts at the revision of the existence check, so a delete
// committed between the check and the watch is still delivered.
package etcd
