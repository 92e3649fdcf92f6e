package engine

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-rig/engine/config"
	"github.com/Carmen-Shannon/oxy-rig/engine/hierarchy"
	"github.com/Carmen-Shannon/oxy-rig/engine/physics"
)

// DeformerBuilderOption is a functional option for configuring a Deformer.
// Use the With* functions to create options that are applied directly to the deformer instance.
type DeformerBuilderOption func(*deformer)

// WithConfig sets the runtime configuration. Zero fields fall back to defaults.
//
// Parameters:
//   - c: the configuration, typically from config.Load
//
// Returns:
//   - DeformerBuilderOption: option function to apply
func WithConfig(c config.Config) DeformerBuilderOption {
	return func(d *deformer) {
		d.config = c
	}
}

// WithLogger sets the logger shared by every engine. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - DeformerBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) DeformerBuilderOption {
	return func(d *deformer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithPhysicsProxy attaches a rigid body simulation.
//
// Parameters:
//   - proxy: the simulation's transform accessors
//
// Returns:
//   - DeformerBuilderOption: option function to apply
func WithPhysicsProxy(proxy physics.Proxy) DeformerBuilderOption {
	return func(d *deformer) {
		d.proxy = proxy
	}
}

// WithWorkers overrides the configured skinning pool size.
//
// Parameters:
//   - n: the number of workers; 1 skins inline
//
// Returns:
//   - DeformerBuilderOption: option function to apply
func WithWorkers(n int) DeformerBuilderOption {
	return func(d *deformer) {
		d.workers = n
	}
}

// WithOutsideParents sets the lookup for bones bound to a bone of another model.
//
// Parameters:
//   - resolver: typically a hierarchy.ModelSet of the scene's models
//
// Returns:
//   - DeformerBuilderOption: option function to apply
func WithOutsideParents(resolver hierarchy.OutsideParentResolver) DeformerBuilderOption {
	return func(d *deformer) {
		d.resolver = resolver
	}
}

// WithProfiling enables or disables per-stage timing output. It takes
// precedence over the configured profiler interval.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - DeformerBuilderOption: option function to apply
func WithProfiling(enabled bool) DeformerBuilderOption {
	return func(d *deformer) {
		d.profilingEnabled = enabled
		d.profilingSet = true
	}
}
