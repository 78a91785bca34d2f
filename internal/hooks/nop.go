package hooks

import (
	"context"

	"github.com/arloliu/succession/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// NewNop creates a new no-op hooks implementation.
func NewNop() *types.Hooks {
	h := &NopHooks{}

	return &types.Hooks{
		OnLeader:       h.OnLeader,
		OnWatch:        h.OnWatch,
		OnError:        h.OnError,
		OnStateChanged: h.OnStateChanged,
		OnClosed:       h.OnClosed,
	}
}

// Fill returns a copy of hooks with every nil callback replaced by a no-op.
//
// A nil hooks value yields NewNop().
func Fill(hooks *types.Hooks) *types.Hooks {
	nop := NewNop()
	if hooks == nil {
		return nop
	}

	filled := *hooks
	if filled.OnLeader == nil {
		filled.OnLeader = nop.OnLeader
	}
	if filled.OnWatch == nil {
		filled.OnWatch = nop.OnWatch
	}
	if filled.OnError == nil {
		filled.OnError = nop.OnError
	}
	if filled.OnStateChanged == nil {
		filled.OnStateChanged = nop.OnStateChanged
	}
	if filled.OnClosed == nil {
		filled.OnClosed = nop.OnClosed
	}

	return &filled
}

// OnLeader is a no-op implementation.
func (h *NopHooks) OnLeader(_ context.Context) error {
	return nil
}

// OnWatch is a no-op implementation.
func (h *NopHooks) OnWatch(_ context.Context, _ string) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(_ context.Context, _, _ types.State) error {
	return nil
}

// OnClosed is a no-op implementation.
func (h *NopHooks) OnClosed(_ context.Context) error {
	return nil
}
