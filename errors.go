package succession

import (
	"errors"

	"github.com/arloliu/succession/internal/ranking"
	"github.com/arloliu/succession/types"
)

// Sentinel errors returned by Candidate and Elect.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStoreRequired is returned when NewCandidate receives a nil store.
	ErrStoreRequired = errors.New("coordination store is required")

	// ErrDialerRequired is returned when Elect receives a nil dial function.
	ErrDialerRequired = errors.New("store dialer is required")

	// ErrAlreadyVoted is returned when Vote is called more than once.
	ErrAlreadyVoted = errors.New("candidate already voted")

	// ErrClosed is returned when operating on a closed candidate.
	ErrClosed = errors.New("candidate closed")

	// ErrNotMember is returned when the candidate's own node disappeared from the
	// election root, typically after session expiry.
	ErrNotMember = ranking.ErrNotMember
)

// Store error sentinels, re-exported for errors.Is checks.
var (
	ErrNoNode           = types.ErrNoNode
	ErrNodeExists       = types.ErrNodeExists
	ErrConnectionLoss   = types.ErrConnectionLoss
	ErrSessionExpired   = types.ErrSessionExpired
	ErrClosing          = types.ErrClosing
	ErrOperationTimeout = types.ErrOperationTimeout
)

// IsConnectionError reports whether err denotes session establishment failure
// or session loss.
func IsConnectionError(err error) bool {
	return types.IsConnectionError(err)
}
