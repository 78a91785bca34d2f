package kvutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	successiontest "github.com/arloliu/succession/testing"
)

func TestEnsureBucket(t *testing.T) {
	_, nc := successiontest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Run("creates missing bucket", func(t *testing.T) {
		kv, err := EnsureBucket(t.Context(), js, jetstream.KeyValueConfig{
			Bucket:  "ensure-create",
			History: 1,
			TTL:     5 * time.Second,
		}, 0)
		require.NoError(t, err)
		require.Equal(t, "ensure-create", kv.Bucket())

		ttl, err := BucketTTL(t.Context(), kv)
		require.NoError(t, err)
		require.Equal(t, 5*time.Second, ttl)
	})

	t.Run("opens existing bucket without changing it", func(t *testing.T) {
		_, err := js.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{
			Bucket: "ensure-existing",
			TTL:    2 * time.Second,
		})
		require.NoError(t, err)

		kv, err := EnsureBucket(t.Context(), js, jetstream.KeyValueConfig{
			Bucket: "ensure-existing",
			TTL:    time.Minute,
		}, 1)
		require.NoError(t, err)

		ttl, err := BucketTTL(t.Context(), kv)
		require.NoError(t, err)
		require.Equal(t, 2*time.Second, ttl)
	})

	t.Run("concurrent sessions share one bucket", func(t *testing.T) {
		const sessions = 8

		var wg sync.WaitGroup
		kvs := make([]jetstream.KeyValue, sessions)
		errs := make([]error, sessions)

		for i := range sessions {
			wg.Go(func() {
				kvs[i], errs[i] = EnsureBucket(t.Context(), js, jetstream.KeyValueConfig{
					Bucket:  "ensure-concurrent",
					History: 1,
				}, 5)
			})
		}
		wg.Wait()

		for i := range sessions {
			require.NoError(t, errs[i], "session %d", i)
			require.NotNil(t, kvs[i])
		}
	})

	t.Run("invalid bucket name", func(t *testing.T) {
		_, err := EnsureBucket(t.Context(), js, jetstream.KeyValueConfig{Bucket: "bad.name"}, 2)
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := EnsureBucket(ctx, js, jetstream.KeyValueConfig{Bucket: "ensure-cancelled"}, 3)
		require.ErrorIs(t, err, context.Canceled)
	})
}
