package testing

import (
	"testing"

	"github.com/arloliu/succession/internal/logger"
	"github.com/arloliu/succession/types"
)

// NewTestLogger creates a logger writing to t.Log.
//
// Output after the test finished is dropped, so late watch callbacks cannot
// panic the test binary.
func NewTestLogger(tb testing.TB) types.Logger {
	return logger.NewTest(tb)
}
