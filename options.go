package succession

// Option configures a Candidate with optional dependencies.
type Option func(*candidateOptions)

// candidateOptions holds optional Candidate configuration.
type candidateOptions struct {
	hooks     *Hooks
	metrics   MetricsCollector
	logger    Logger
	ownsStore bool
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions; nil callbacks are skipped
//
// Returns:
//   - Option: Functional option for NewCandidate and Elect
//
// Example:
//
//	hooks := &succession.Hooks{
//	    OnLeader: func(ctx context.Context) error {
//	        return scheduler.Start(ctx)
//	    },
//	}
//	cand, _ := succession.NewCandidate(&cfg, store, succession.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *candidateOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewCandidate and Elect
//
// Example:
//
//	collector := succession.NewPrometheusMetrics(prometheus.DefaultRegisterer, "")
//	cand, _ := succession.NewCandidate(&cfg, store, succession.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *candidateOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger, overriding Config.Log and Config.LogSink.
//
// Parameters:
//   - logger: Logger implementation (examples/basic adapts zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewCandidate and Elect
//
// Example:
//
//	logger := succession.NewSlogLogger(slog.Default())
//	cand, _ := succession.NewCandidate(&cfg, store, succession.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *candidateOptions) {
		o.logger = logger
	}
}

// WithOwnedStore hands ownership of the store to the candidate: Close then
// closes the whole store session instead of deleting only the candidate's node.
//
// Elect applies this option automatically. Do not use it on a store shared by
// several candidates.
func WithOwnedStore() Option {
	return func(o *candidateOptions) {
		o.ownsStore = true
	}
}
