// Package heartbeat keeps NATS KV store sessions alive.
//
// A session is a key in a TTL-enabled KV bucket. While the owning process
// refreshes the key, the session is live and its ephemeral nodes are valid.
// When the process dies the key expires after the bucket TTL, and other
// sessions treat its nodes as deleted.
//
// # Publisher Lifecycle
//
//  1. Create publisher with New(kv, prefix, interval)
//  2. Set session ID with SetSessionID(id)
//  3. Register OnLost to learn about expiry
//  4. Start publishing with Start(ctx)
//  5. Stop with Stop(ctx), which deletes the key
//
// Example:
//
//	publisher := heartbeat.New(kv, "session", time.Second)
//	publisher.SetSessionID(id)
//	publisher.OnLost(func(err error) { store.expire(err) })
//	if err := publisher.Start(ctx); err != nil {
//	    return err
//	}
//	defer publisher.Stop(context.Background())
//
// # Key Format
//
//	{prefix}.{sessionID}
//
// # Expiry Detection
//
// Each refresh is an Update against the revision written by the previous one.
// Once the key has expired, or was deleted or rewritten elsewhere, the revision
// no longer matches and the publisher reports the session lost instead of
// silently recreating it.
package heartbeat
