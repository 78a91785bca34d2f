// Package natsutil classifies NATS and JetStream errors for the NATS KV store.
package natsutil

import (
	"context"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/succession/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
//
// Kept in internal/natsutil to avoid importing NATS dependencies in types/ package.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrConnectionLoss) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionDraining) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// IsRevisionMismatch reports whether a KV Create or Update lost an optimistic
// concurrency race: the key exists, or its last revision is not the expected one.
func IsRevisionMismatch(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}

// Code maps a NATS or JetStream error to a store error code.
func Code(err error) types.ErrorCode {
	switch {
	case err == nil:
		return types.CodeOK
	case errors.Is(err, jetstream.ErrKeyNotFound), errors.Is(err, jetstream.ErrKeyDeleted):
		return types.CodeNoNode
	case IsRevisionMismatch(err):
		return types.CodeBadVersion
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
		return types.CodeOperationTimeout
	case errors.Is(err, nats.ErrConnectionClosed):
		return types.CodeClosing
	case IsConnectivityError(err):
		return types.CodeConnectionLoss
	case errors.Is(err, jetstream.ErrInvalidKey), errors.Is(err, jetstream.ErrInvalidBucketName):
		return types.CodeBadArguments
	default:
		return types.CodeSystemError
	}
}

// StoreError wraps err as a *types.StoreError for op on path.
//
// Errors that already carry a store code, and context cancellation, are
// returned unchanged. A nil err yields nil.
func StoreError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := types.StoreErrorCode(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	return types.WrapStoreError(op, path, Code(err), err)
}
