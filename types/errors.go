package types

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorCode is a coordination store result code.
//
// Values follow the ZooKeeper numbering so the ZooKeeper backend can pass codes
// through untouched; other backends map their failures onto the same set.
type ErrorCode int32

const (
	CodeOK                      ErrorCode = 0
	CodeSystemError             ErrorCode = -1
	CodeRuntimeInconsistency    ErrorCode = -2
	CodeDataInconsistency       ErrorCode = -3
	CodeConnectionLoss          ErrorCode = -4
	CodeMarshallingError        ErrorCode = -5
	CodeUnimplemented           ErrorCode = -6
	CodeOperationTimeout        ErrorCode = -7
	CodeBadArguments            ErrorCode = -8
	CodeAPIError                ErrorCode = -100
	CodeNoNode                  ErrorCode = -101
	CodeNoAuth                  ErrorCode = -102
	CodeBadVersion              ErrorCode = -103
	CodeNoChildrenForEphemerals ErrorCode = -108
	CodeNodeExists              ErrorCode = -110
	CodeNotEmpty                ErrorCode = -111
	CodeSessionExpired          ErrorCode = -112
	CodeInvalidCallback         ErrorCode = -113
	CodeInvalidACL              ErrorCode = -114
	CodeAuthFailed              ErrorCode = -115
	CodeClosing                 ErrorCode = -116
	CodeNothing                 ErrorCode = -117
	CodeSessionMoved            ErrorCode = -118
)

var codeNames = map[ErrorCode]string{
	CodeOK:                      "OK",
	CodeSystemError:             "SystemError",
	CodeRuntimeInconsistency:    "RuntimeInconsistency",
	CodeDataInconsistency:       "DataInconsistency",
	CodeConnectionLoss:          "ConnectionLoss",
	CodeMarshallingError:        "MarshallingError",
	CodeUnimplemented:           "Unimplemented",
	CodeOperationTimeout:        "OperationTimeout",
	CodeBadArguments:            "BadArguments",
	CodeAPIError:                "APIError",
	CodeNoNode:                  "NoNode",
	CodeNoAuth:                  "NoAuth",
	CodeBadVersion:              "BadVersion",
	CodeNoChildrenForEphemerals: "NoChildrenForEphemerals",
	CodeNodeExists:              "NodeExists",
	CodeNotEmpty:                "NotEmpty",
	CodeSessionExpired:          "SessionExpired",
	CodeInvalidCallback:         "InvalidCallback",
	CodeInvalidACL:              "InvalidACL",
	CodeAuthFailed:              "AuthFailed",
	CodeClosing:                 "Closing",
	CodeNothing:                 "Nothing",
	CodeSessionMoved:            "SessionMoved",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return "ErrorCode(" + strconv.Itoa(int(c)) + ")"
}

// Sentinel errors for the store result codes the election reacts to.
//
// A *StoreError matches the sentinel for its code with errors.Is, regardless of
// which backend produced it.
var (
	// ErrNoNode is returned when the target node does not exist.
	ErrNoNode = errors.New("node does not exist")

	// ErrNodeExists is returned when creating a node that already exists.
	ErrNodeExists = errors.New("node already exists")

	// ErrConnectionLoss indicates the store session lost its connection.
	ErrConnectionLoss = errors.New("connection lost")

	// ErrSessionExpired indicates the store session expired and its ephemeral nodes are gone.
	ErrSessionExpired = errors.New("session expired")

	// ErrClosing indicates the store session is closing or closed.
	ErrClosing = errors.New("store is closing")

	// ErrOperationTimeout indicates a store operation did not finish in time.
	ErrOperationTimeout = errors.New("operation timed out")
)

var codeSentinels = map[ErrorCode]error{
	CodeNoNode:           ErrNoNode,
	CodeNodeExists:       ErrNodeExists,
	CodeConnectionLoss:   ErrConnectionLoss,
	CodeSessionExpired:   ErrSessionExpired,
	CodeClosing:          ErrClosing,
	CodeOperationTimeout: ErrOperationTimeout,
}

// StoreError is the structured error for every failed store operation.
//
// It carries the store-defined result code and message, plus the operation and
// path for context. The underlying driver error, if any, is available through
// errors.Unwrap.
type StoreError struct {
	Op      string
	Path    string
	Code    ErrorCode
	Message string
	Err     error
}

// NewStoreError builds a StoreError from a code and message.
//
// Parameters:
//   - op: Store operation name ("create", "children", "watch", "delete", ...)
//   - path: Node path the operation targeted
//   - code: Store result code
//   - message: Human-readable message; defaults to the code name when empty
//
// Returns:
//   - *StoreError: New error value
func NewStoreError(op, path string, code ErrorCode, message string) *StoreError {
	if message == "" {
		message = code.String()
	}

	return &StoreError{Op: op, Path: path, Code: code, Message: message}
}

// WrapStoreError wraps a driver error into a StoreError with the given code.
//
// The message is taken from err. Returns nil when err is nil.
func WrapStoreError(op, path string, code ErrorCode, err error) error {
	if err == nil {
		return nil
	}

	return &StoreError{Op: op, Path: path, Code: code, Message: err.Error(), Err: err}
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("store %s: %s (code %s)", e.Op, e.Message, e.Code)
	}

	return fmt.Sprintf("store %s %s: %s (code %s)", e.Op, e.Path, e.Message, e.Code)
}

// Unwrap returns the underlying driver error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches the code sentinel (ErrNoNode, ErrClosing, ...) for the error's code.
func (e *StoreError) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]

	return ok && sentinel == target
}

// StoreErrorCode extracts the result code from err.
//
// Returns:
//   - ErrorCode: Code of the first *StoreError in the chain
//   - bool: false when err carries no *StoreError
func StoreErrorCode(err error) (ErrorCode, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code, true
	}

	return CodeOK, false
}

// ConnectionError is returned when a store session cannot be established.
type ConnectionError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err denotes session establishment or loss.
//
// It matches *ConnectionError as well as store errors coded ConnectionLoss or
// SessionExpired.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var ce *ConnectionError
	if errors.As(err, &ce) {
		return true
	}

	return errors.Is(err, ErrConnectionLoss) || errors.Is(err, ErrSessionExpired)
}
