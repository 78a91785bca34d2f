// Package logging adapts log/slog to the succession Logger interface and
// builds loggers from configured output targets.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/arloliu/succession/types"
)

// Recognized log output targets besides file paths.
const (
	OutputStderr  = "stderr"
	OutputStdout  = "stdout"
	OutputDiscard = "discard"
)

// SlogLogger implements types.Logger using Go's standard log/slog package.
type SlogLogger struct {
	logger *slog.Logger
}

// Compile-time assertion that SlogLogger implements Logger.
var _ types.Logger = (*SlogLogger)(nil)

// NewSlog wraps an existing slog.Logger.
//
// Example:
//
//	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
//	log := logging.NewSlog(slog.New(handler))
//	log.Info("candidate registered", "path", path)
func NewSlog(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

// New creates a text logger writing to w at the given level.
//
// Parameters:
//   - w: Destination writer
//   - level: "debug", "info", "warn" or "error" (case-insensitive; empty means info)
//
// Returns:
//   - *SlogLogger: Logger tagged with component=succession
//   - error: Unknown level
func New(w io.Writer, level string) (*SlogLogger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})

	return &SlogLogger{logger: slog.New(handler).With("component", "succession")}, nil
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

// OpenOutput resolves a log output target into a writer.
//
// The returned close function releases the file for file targets and is a
// no-op otherwise.
//
// Parameters:
//   - output: "stderr" (default when empty), "stdout", "discard" or a file path
//
// Returns:
//   - io.Writer: Destination
//   - func() error: Release function
//   - error: File open failure
func OpenOutput(output string) (io.Writer, func() error, error) {
	nop := func() error { return nil }

	switch output {
	case "", OutputStderr:
		return os.Stderr, nop, nil
	case OutputStdout:
		return os.Stdout, nop, nil
	case OutputDiscard:
		return io.Discard, nop, nil
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // operator-supplied log path
	if err != nil {
		return nil, nop, fmt.Errorf("open log output: %w", err)
	}

	return f, f.Close, nil
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

// Info logs an info-level message with optional key-value pairs.
func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

// Error logs an error-level message with optional key-value pairs.
func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

// Fatal logs at Error level (slog has no Fatal level) and exits the program.
func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
	os.Exit(1) //nolint:revive // Fatal should exit the program
}
