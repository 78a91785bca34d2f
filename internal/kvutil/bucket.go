// Package kvutil bootstraps the NATS JetStream KeyValue buckets used by the
// NATS KV store.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultAttempts is used when EnsureBucket receives a non-positive attempt count.
const DefaultAttempts = 3

// EnsureBucket creates the KV bucket described by cfg, or opens it when another
// session created it first.
//
// An existing bucket is opened as is: its TTL, history and storage are not
// changed to match cfg. Transient failures are retried with exponential backoff
// (10ms, 20ms, 40ms...).
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - cfg: KV bucket configuration
//   - attempts: Maximum number of attempts (DefaultAttempts when <= 0)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket handle
//   - error: Last error after all attempts, or the context error
//
// Example:
//
//	sessions, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket:  "succession_sessions",
//	    History: 1,
//	    TTL:     3 * time.Second,
//	}, 0)
func EnsureBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig, attempts int) (jetstream.KeyValue, error) {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := range attempts {
		kv, err := js.CreateKeyValue(ctx, cfg)
		switch {
		case err == nil:
			return kv, nil
		case errors.Is(err, jetstream.ErrBucketExists):
			kv, err = js.KeyValue(ctx, cfg.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("open existing bucket: %w", err)
		default:
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, ctx.Err())
		}

		if attempt == attempts-1 {
			break
		}

		backoff := time.Duration(1<<attempt) * 10 * time.Millisecond //nolint:gosec // attempt is small and bounded
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("ensure bucket %s after %d attempts: %w", cfg.Bucket, attempts, lastErr)
}

// BucketTTL returns the entry TTL configured on an existing bucket.
//
// Zero means entries never expire.
func BucketTTL(ctx context.Context, kv jetstream.KeyValue) (time.Duration, error) {
	status, err := kv.Status(ctx)
	if err != nil {
		return 0, fmt.Errorf("bucket status: %w", err)
	}

	return status.TTL(), nil
}
