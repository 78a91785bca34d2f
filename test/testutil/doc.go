// Package testutil provides assertion and wait helpers for election
// integration tests.
//
// Helpers take small interfaces satisfied by *succession.Candidate so they
// also work with test doubles.
//
// Note: For embedded NATS and etcd servers, use the
// github.com/arloliu/succession/testing package.
package testutil
