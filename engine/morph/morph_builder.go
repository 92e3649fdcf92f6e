package morph

import (
	"log/slog"
)

// BlenderBuilderOption is a functional option for configuring a Blender.
// Use the With* functions to create options.
type BlenderBuilderOption func(b *blender)

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - BlenderBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) BlenderBuilderOption {
	return func(b *blender) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMaxDepth sets how deep group and flip morphs may nest. Defaults to DefaultMaxDepth.
//
// Parameters:
//   - depth: the maximum nesting depth (minimum 1)
//
// Returns:
//   - BlenderBuilderOption: option function to apply
func WithMaxDepth(depth int) BlenderBuilderOption {
	return func(b *blender) {
		if depth < 1 {
			depth = 1
		}
		b.maxDepth = depth
	}
}
