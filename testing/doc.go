// Package testing provides test utilities for the succession library.
//
// It starts in-process coordination servers for backend and integration tests,
// following Go's convention of shipping test helpers in a dedicated package
// (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: In-memory KV bucket with optional TTL
//   - StartEmbeddedEtcd: Single-member etcd server
//   - NewTestLogger: Logger writing to the test log
//
// Example usage:
//
//	import (
//	    "testing"
//	    successiontest "github.com/arloliu/succession/testing"
//	)
//
//	func TestMyService(t *testing.T) {
//	    ns, _ := successiontest.StartEmbeddedNATS(t)
//	    cfg := succession.TestConfig()
//	    cfg.Endpoint = ns.ClientURL()
//	    cand, err := succession.Elect(t.Context(), &cfg, natskv.Dial)
//	}
package testing
