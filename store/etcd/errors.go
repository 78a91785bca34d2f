package etcd

import (
	"context"
	"errors"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arloliu/succession/types"
)

// code maps an etcd client error to a store error code.
func code(err error) types.ErrorCode {
	switch {
	case err == nil:
		return types.CodeOK
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, rpctypes.ErrTimeout),
		errors.Is(err, rpctypes.ErrGRPCTimeout):
		return types.CodeOperationTimeout
	case errors.Is(err, rpctypes.ErrLeaseNotFound), errors.Is(err, rpctypes.ErrGRPCLeaseNotFound):
		return types.CodeSessionExpired
	case errors.Is(err, clientv3.ErrNoAvailableEndpoints), errors.Is(err, rpctypes.ErrNoLeader),
		errors.Is(err, rpctypes.ErrGRPCNoLeader), errors.Is(err, rpctypes.ErrTimeoutDueToConnectionLost):
		return types.CodeConnectionLoss
	case errors.Is(err, rpctypes.ErrGRPCRequestTooLarge), errors.Is(err, rpctypes.ErrEmptyKey):
		return types.CodeBadArguments
	case errors.Is(err, rpctypes.ErrPermissionDenied), errors.Is(err, rpctypes.ErrGRPCPermissionDenied):
		return types.CodeNoAuth
	}

	switch status.Code(err) {
	case codes.Unavailable:
		return types.CodeConnectionLoss
	case codes.DeadlineExceeded:
		return types.CodeOperationTimeout
	case codes.Canceled:
		return types.CodeClosing
	case codes.Unauthenticated:
		return types.CodeAuthFailed
	case codes.PermissionDenied:
		return types.CodeNoAuth
	}

	return types.CodeSystemError
}

// storeError wraps err as a *types.StoreError. Coded errors and context
// cancellation pass through unchanged.
func storeError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := types.StoreErrorCode(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	return types.WrapStoreError(op, path, code(err), err)
}
