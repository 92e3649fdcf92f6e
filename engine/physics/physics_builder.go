package physics

import (
	"log/slog"
)

// BridgeBuilderOption is a functional option for configuring a Bridge.
// Use the With* functions to create options.
type BridgeBuilderOption func(b *bridge)

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) BridgeBuilderOption {
	return func(b *bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}
