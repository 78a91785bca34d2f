package succession

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/arloliu/succession/internal/logging"
)

// NewSlogLogger adapts a *slog.Logger to the Logger interface.
func NewSlogLogger(l *slog.Logger) Logger {
	return logging.NewSlog(l)
}

// newConfiguredLogger builds the default logger from cfg.LogSink or cfg.Log.
//
// The returned release function closes a log file opened for cfg.Log.Output.
func newConfiguredLogger(cfg *Config) (Logger, func() error, error) {
	release := func() error { return nil }

	w := cfg.LogSink
	if w == nil {
		out, closeFn, err := logging.OpenOutput(cfg.Log.Output)
		if err != nil {
			return nil, release, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		w, release = out, closeFn
	}

	log, err := logging.New(w, cfg.Log.Level)
	if err != nil {
		_ = release()
		return nil, func() error { return nil }, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return log, release, nil
}

// fallbackLogger returns the logger passed with WithLogger or, when the
// configured logger could not be built, a text logger on cfg.LogSink
// (stderr when unset).
func fallbackLogger(cfg *Config, opts []Option) Logger {
	options := &candidateOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger != nil {
		return options.logger
	}

	w := cfg.LogSink
	if w == nil {
		w = os.Stderr
	}

	return logging.NewSlog(slog.New(slog.NewTextHandler(w, nil)))
}
