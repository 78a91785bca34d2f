//go:build integration

package integration_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/succession"
	"github.com/arloliu/succession/store/etcd"
	"github.com/arloliu/succession/store/memory"
	"github.com/arloliu/succession/store/natskv"
	"github.com/arloliu/succession/store/zookeeper"
	successiontest "github.com/arloliu/succession/testing"
)

// backend is one coordination store under test.
type backend struct {
	name  string
	setup func(t *testing.T) (endpoint string, dial succession.DialFunc)
}

func backends() []backend {
	return []backend{
		{
			name: "memory",
			setup: func(*testing.T) (string, succession.DialFunc) {
				return "memory", memory.NewServer().Dialer()
			},
		},
		{
			name: "etcd",
			setup: func(t *testing.T) (string, succession.DialFunc) {
				_, endpoint := successiontest.StartEmbeddedEtcd(t)
				return endpoint, etcd.Dialer(
					etcd.WithKeyPrefix("/"+bucketName(t)),
					etcd.WithLogger(successiontest.NewTestLogger(t)),
				)
			},
		},
		{
			name: "natskv",
			setup: func(t *testing.T) (string, succession.DialFunc) {
				ns, _ := successiontest.StartEmbeddedNATS(t)
				name := bucketName(t)

				return ns.ClientURL(), natskv.Dialer(
					natskv.WithTreeBucket("tree_"+name),
					natskv.WithSessionBucket("sessions_"+name),
					natskv.WithStorage(jetstream.MemoryStorage),
					natskv.WithPollInterval(100*time.Millisecond),
					natskv.WithLogger(successiontest.NewTestLogger(t)),
				)
			},
		},
		{
			name: "zookeeper",
			setup: func(t *testing.T) (string, succession.DialFunc) {
				endpoint := os.Getenv("ZK_SERVERS")
				if endpoint == "" {
					t.Skip("ZK_SERVERS not set")
				}

				return endpoint, zookeeper.Dialer(zookeeper.WithLogger(successiontest.NewTestLogger(t)))
			},
		},
	}
}

// forEachBackend runs fn as a subtest per backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, cfg succession.Config, dial succession.DialFunc)) {
	t.Helper()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			if testing.Short() {
				t.Skip("skipping integration test in short mode")
			}

			endpoint, dial := b.setup(t)

			cfg := succession.TestConfig()
			cfg.Endpoint = endpoint
			cfg.Timeout = 2 * time.Second
			cfg.RootPath = "/succession-it/" + bucketName(t)

			fn(t, cfg, dial)
		})
	}
}

func bucketName(t *testing.T) string {
	return strings.NewReplacer("/", "_", " ", "_", ".", "_").Replace(t.Name())
}
