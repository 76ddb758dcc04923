package kmeans

import "github.com/rs/zerolog"

// DefaultMaxDrawAttempts bounds the number of draws spent on a single
// centroid during Initialize.
const DefaultMaxDrawAttempts = 1000

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDrawAttempts sets the per-centroid draw budget used by Initialize.
func WithMaxDrawAttempts(n int) Option {
	return func(e *Engine) {
		e.maxDrawAttempts = n
	}
}

// WithWorkers enables partitioned passes when n > 1 and the sample source
// implements Partitioner.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}
