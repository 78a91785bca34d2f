package logger

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/arloliu/succession/types"
)

// TestLogger implements types.Logger on top of testing.TB so log lines appear
// next to the test that produced them.
//
// Store callbacks may log after the test returned; those lines are dropped
// instead of panicking inside testing.
type TestLogger struct {
	tb   testing.TB
	done atomic.Bool
}

// Compile-time assertion that TestLogger implements Logger.
var _ types.Logger = (*TestLogger)(nil)

// NewTest creates a new test logger writing through tb.Logf.
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    log := logger.NewTest(t)
//	    log.Info("test started", "id", 123)
//	}
func NewTest(tb testing.TB) *TestLogger {
	l := &TestLogger{tb: tb}
	tb.Cleanup(func() { l.done.Store(true) })

	return l
}

// Debug logs a debug-level message.
func (l *TestLogger) Debug(msg string, keysAndValues ...any) {
	l.logf("DEBUG", msg, keysAndValues)
}

// Info logs an info-level message.
func (l *TestLogger) Info(msg string, keysAndValues ...any) {
	l.logf("INFO", msg, keysAndValues)
}

// Warn logs a warning-level message.
func (l *TestLogger) Warn(msg string, keysAndValues ...any) {
	l.logf("WARN", msg, keysAndValues)
}

// Error logs an error-level message.
func (l *TestLogger) Error(msg string, keysAndValues ...any) {
	l.logf("ERROR", msg, keysAndValues)
}

// Fatal logs a fatal-level message and fails the test.
func (l *TestLogger) Fatal(msg string, keysAndValues ...any) {
	if l.done.Load() {
		return
	}
	l.tb.Fatalf("FATAL: %s %s", msg, formatKeyValues(keysAndValues))
}

func (l *TestLogger) logf(level, msg string, keysAndValues []any) {
	if l.done.Load() {
		return
	}
	l.tb.Helper()
	l.tb.Logf("%s: %s %s", level, msg, formatKeyValues(keysAndValues))
}

// formatKeyValues formats key-value pairs for logging.
func formatKeyValues(keysAndValues []any) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, "%v=%v ", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, "%v=<missing> ", keysAndValues[i])
		}
	}

	return strings.TrimSuffix(b.String(), " ")
}
