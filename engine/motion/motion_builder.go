package motion

import (
	"log/slog"
)

// SynchronizerBuilderOption is a functional option for configuring a Synchronizer.
// Use the With* functions to create options.
type SynchronizerBuilderOption func(s *synchronizer)

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - SynchronizerBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) SynchronizerBuilderOption {
	return func(s *synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}
