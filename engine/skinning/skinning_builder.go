package skinning

import (
	"log/slog"
	"time"
)

// SkinnerBuilderOption is a functional option for configuring a Skinner.
// Use the With* functions to create options.
type SkinnerBuilderOption func(s *skinner)

// WithWorkers sets the number of pool workers used to skin partitions in
// parallel. Defaults to runtime.NumCPU()-1. A value of 1 skins every partition
// on the calling goroutine without a pool.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - SkinnerBuilderOption: option function to apply
func WithWorkers(n int) SkinnerBuilderOption {
	return func(s *skinner) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// WithQueueSize sets the task queue capacity of the worker pool. Defaults to 256.
// Submitting more partitions than the queue holds blocks until workers drain it.
//
// Parameters:
//   - n: the queue capacity (minimum 1)
//
// Returns:
//   - SkinnerBuilderOption: option function to apply
func WithQueueSize(n int) SkinnerBuilderOption {
	return func(s *skinner) {
		if n < 1 {
			n = 1
		}
		s.queueSize = n
	}
}

// WithIdleTimeout sets how long an idle pool worker lingers before exiting. Defaults to 1s.
//
// Parameters:
//   - d: the idle timeout
//
// Returns:
//   - SkinnerBuilderOption: option function to apply
func WithIdleTimeout(d time.Duration) SkinnerBuilderOption {
	return func(s *skinner) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - SkinnerBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) SkinnerBuilderOption {
	return func(s *skinner) {
		if logger != nil {
			s.logger = logger
		}
	}
}
