package testing

import (
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"go.etcd.io/etcd/server/v3/embed"
)

// StartEmbeddedEtcd starts a single-member etcd server for testing.
//
// The member listens on free loopback ports and stores its data in a temporary
// directory. Server shutdown is registered with t.Cleanup.
//
// Parameters:
//   - t: Testing context for logging and cleanup
//
// Returns:
//   - *embed.Etcd: The embedded etcd server
//   - string: Client endpoint ("127.0.0.1:port")
//
// Example:
//
//	func TestEtcdBackend(t *testing.T) {
//	    _, endpoint := successiontest.StartEmbeddedEtcd(t)
//	    store, err := etcd.Dial(t.Context(), endpoint, time.Second)
//	}
func StartEmbeddedEtcd(t *testing.T) (*embed.Etcd, string) {
	t.Helper()

	clientURL := url.URL{Scheme: "http", Host: freeAddr(t)}
	peerURL := url.URL{Scheme: "http", Host: freeAddr(t)}

	cfg := embed.NewConfig()
	cfg.Name = "succession-test"
	cfg.Dir = t.TempDir()
	cfg.ListenClientUrls = []url.URL{clientURL}
	cfg.AdvertiseClientUrls = []url.URL{clientURL}
	cfg.ListenPeerUrls = []url.URL{peerURL}
	cfg.AdvertisePeerUrls = []url.URL{peerURL}
	cfg.InitialCluster = cfg.InitialClusterFromName(cfg.Name)
	cfg.LogLevel = "error"

	e, err := embed.StartEtcd(cfg)
	if err != nil {
		t.Fatalf("Failed to start embedded etcd: %v", err)
	}

	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(10 * time.Second):
		e.Server.Stop()
		e.Close()
		t.Fatal("Embedded etcd not ready within timeout")
	}

	t.Cleanup(e.Close)

	return e, clientURL.Host
}

// freeAddr reserves a loopback port and releases it for the caller to bind.
func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve port: %v", err)
	}
	defer l.Close()

	return fmt.Sprintf("127.0.0.1:%d", l.Addr().(*net.TCPAddr).Port) //nolint:forcetypeassert // tcp listener
}
