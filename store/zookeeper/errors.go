package zookeeper

import (
	"context"
	"errors"

	"github.com/go-zookeeper/zk"

	"github.com/arloliu/succession/types"
)

var codes = map[error]types.ErrorCode{
	zk.ErrConnectionClosed:        types.CodeConnectionLoss,
	zk.ErrNoServer:                types.CodeConnectionLoss,
	zk.ErrUnknown:                 types.CodeSystemError,
	zk.ErrAPIError:                types.CodeAPIError,
	zk.ErrNoNode:                  types.CodeNoNode,
	zk.ErrNoAuth:                  types.CodeNoAuth,
	zk.ErrBadVersion:              types.CodeBadVersion,
	zk.ErrNoChildrenForEphemerals: types.CodeNoChildrenForEphemerals,
	zk.ErrNodeExists:              types.CodeNodeExists,
	zk.ErrNotEmpty:                types.CodeNotEmpty,
	zk.ErrSessionExpired:          types.CodeSessionExpired,
	zk.ErrInvalidACL:              types.CodeInvalidACL,
	zk.ErrAuthFailed:              types.CodeAuthFailed,
	zk.ErrClosing:                 types.CodeClosing,
	zk.ErrNothing:                 types.CodeNothing,
	zk.ErrSessionMoved:            types.CodeSessionMoved,
	zk.ErrBadArguments:            types.CodeBadArguments,
	zk.ErrInvalidPath:             types.CodeBadArguments,
}

// code maps a ZooKeeper client error to a store error code.
func code(err error) types.ErrorCode {
	if err == nil {
		return types.CodeOK
	}
	for zkErr, c := range codes {
		if errors.Is(err, zkErr) {
			return c
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.CodeOperationTimeout
	}

	return types.CodeSystemError
}

// storeError wraps err as a *types.StoreError.
func storeError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := types.StoreErrorCode(err); ok {
		return err
	}

	return types.WrapStoreError(op, path, code(err), err)
}
