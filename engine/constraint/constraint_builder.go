package constraint

import (
	"log/slog"
)

// SolverBuilderOption is a functional option for configuring a Solver.
// Use the With* functions to create options.
type SolverBuilderOption func(s *solver)

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - SolverBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) SolverBuilderOption {
	return func(s *solver) {
		if logger != nil {
			s.logger = logger
		}
	}
}
