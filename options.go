package molgeo

import "log/slog"

type options struct {
	config           Config
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures an Engine.
type Option func(*options)

// WithConfig replaces the whole configuration. Options applied after it
// override single knobs.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithWorkers sets the size of the worker pool.
// 0 selects runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) {
		o.config.Workers = n
	}
}

// WithReorderPolicy selects the reorder granularity.
func WithReorderPolicy(p ReorderPolicy) Option {
	return func(o *options) {
		o.config.ReorderPolicy = p
	}
}

// WithScratchMemoryLimit bounds the scratch memory of in-flight calls.
// Calls wait for budget when concurrent calls hold it; a single call
// needing more than the limit fails with ErrScratchMemory.
func WithScratchMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.config.ScratchMemoryLimit = bytes
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &molgeo.BasicMetricsCollector{}
//	eng, _ := molgeo.New(molgeo.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
//	fmt.Printf("Matches: %d, Avg latency: %dns\n", stats.MatchCount, stats.MatchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := molgeo.NewJSONLogger(slog.LevelDebug)
//	eng, _ := molgeo.New(molgeo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		config:           DefaultConfig(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
