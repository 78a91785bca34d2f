// Package zookeeper implements the coordination store on Apache ZooKeeper.
//
// Nodes and sessions are native: sequential ephemeral znodes carry the
// server-assigned ten digit suffix, and a deletion watch is an exists watch
// re-armed until the node is deleted or the session ends.
//
// The client reconnects transparently while the session is alive. Once the
// server expires the session, every pending watch receives EventNotWatching
// with ErrSessionExpired; the client then establishes a fresh session, but
// the nodes of the old one are gone.
package zookeeper
