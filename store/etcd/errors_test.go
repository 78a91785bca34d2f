package etcd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arloliu/succession/types"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"nil", nil, types.CodeOK},
		{"deadline", context.DeadlineExceeded, types.CodeOperationTimeout},
		{"server timeout", rpctypes.ErrTimeout, types.CodeOperationTimeout},
		{"lease not found", rpctypes.ErrLeaseNotFound, types.CodeSessionExpired},
		{"wrapped lease not found", fmt.Errorf("put: %w", rpctypes.ErrLeaseNotFound), types.CodeSessionExpired},
		{"no endpoints", clientv3.ErrNoAvailableEndpoints, types.CodeConnectionLoss},
		{"no leader", rpctypes.ErrNoLeader, types.CodeConnectionLoss},
		{"empty key", rpctypes.ErrEmptyKey, types.CodeBadArguments},
		{"permission denied", rpctypes.ErrPermissionDenied, types.CodeNoAuth},
		{"unavailable", status.Error(codes.Unavailable, "down"), types.CodeConnectionLoss},
		{"unauthenticated", status.Error(codes.Unauthenticated, "who"), types.CodeAuthFailed},
		{"other", errors.New("boom"), types.CodeSystemError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, code(tt.err))
		})
	}
}

func TestStoreError(t *testing.T) {
	require.NoError(t, storeError("get", "/a", nil))

	err := storeError("get", "/a", rpctypes.ErrNoLeader)
	require.ErrorIs(t, err, types.ErrConnectionLoss)
	require.ErrorIs(t, err, rpctypes.ErrNoLeader)

	coded := types.NewStoreError("get", "/a", types.CodeNoNode, "")
	require.Same(t, coded, storeError("watch", "/b", coded))

	require.ErrorIs(t, storeError("get", "/a", context.Canceled), context.Canceled)
	_, ok := types.StoreErrorCode(storeError("get", "/a", context.Canceled))
	require.False(t, ok)
}
