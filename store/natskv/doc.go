// Package natskv implements the coordination store on NATS JetStream KeyValue.
//
// JetStream KV has no native ephemeral or sequential keys, so the store builds
// them from two buckets:
//
//   - The tree bucket holds one JSON record per persistent node, keyed by the
//     node path ("/election" is "root.election"). A record lists the node's
//     children with the session owning each one and the next sequence number.
//     Records are updated with revision-checked writes, so concurrent creates
//     never reuse a sequence number.
//   - The session bucket has a TTL. Each store refreshes its own session key
//     (see internal/heartbeat). A child whose owning session key is gone is
//     treated as deleted and removed from its parent lazily.
//
// A deletion watch follows the parent record with a KV watch and, for nodes
// owned by another session, polls that session's key, so a crashed owner is
// noticed within the session TTL plus one poll interval.
//
// Path elements are restricted to the characters valid in KV keys:
// letters, digits, '-', '_' and '='.
//
// Example:
//
//	cfg := succession.DefaultConfig()
//	cfg.Endpoint = "nats://127.0.0.1:4222"
//	cfg.CreateRoot = true
//	cand, err := succession.Elect(ctx, &cfg, natskv.Dial)
package natskv
