// Package succession provides leader election for Go services on top of a
// strongly consistent coordination store (ZooKeeper, etcd or NATS JetStream KV).
//
// Every candidate registers a sequential ephemeral node under a shared root
// path. The candidate owning the lowest sequence number leads. Every other
// candidate watches only its immediate predecessor, so a departure wakes a
// single candidate instead of the whole group.
//
// # Quick Start
//
//	cfg := succession.DefaultConfig()
//	cfg.Endpoint = "zk1:2181,zk2:2181"
//	cfg.RootPath = "/services/scheduler/leader"
//
//	cand, err := succession.Elect(ctx, &cfg, zookeeper.Dial)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cand.Close(context.Background())
//
//	events, unsubscribe := cand.Subscribe()
//	defer unsubscribe()
//	for ev := range events {
//	    if ev.Kind == succession.EventLeader {
//	        runLeaderDuties(ctx)
//	    }
//	}
//
// # Lifecycle
//
// A candidate moves through these states:
//
//	Unregistered → Registered → Leader | Watching
//	Watching → Leader | Watching (new predecessor)
//	any → Closed, any non-terminal → Errored
//
// # Sharing a Store
//
// One store session may host many candidates (NewCandidate with a shared
// store). Each candidate then owns only its own node, and Close deletes that
// node instead of ending the session.
//
// # Backends
//
//   - store/zookeeper: Apache ZooKeeper via github.com/go-zookeeper/zk
//   - store/etcd: etcd v3, nodes bound to a lease
//   - store/natskv: NATS JetStream KV with heartbeat-refreshed sessions
//   - store/memory: in-process store for tests
//
// See the examples/ directory for complete working examples.
package succession
