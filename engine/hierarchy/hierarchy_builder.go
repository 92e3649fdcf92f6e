package hierarchy

import (
	"log/slog"
)

// HierarchyBuilderOption is a functional option for configuring a Hierarchy.
// Use the With* functions to create options.
type HierarchyBuilderOption func(h *hierarchy)

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - HierarchyBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) HierarchyBuilderOption {
	return func(h *hierarchy) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithOutsideParentResolver sets the lookup used for bones bound to an outside
// parent. Without one, such bones compose against their own parent.
//
// Parameters:
//   - resolver: the resolver
//
// Returns:
//   - HierarchyBuilderOption: option function to apply
func WithOutsideParentResolver(resolver OutsideParentResolver) HierarchyBuilderOption {
	return func(h *hierarchy) {
		h.resolver = resolver
	}
}
