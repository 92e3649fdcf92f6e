package loader

import "log/slog"

// LoaderBuilderOption is a functional option for configuring a Loader.
type LoaderBuilderOption func(l *loader)

// WithLogger sets the logger used for load diagnostics. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithName overrides the model name. Load defaults to the file's base name.
//
// Parameters:
//   - name: the model name
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithName(name string) LoaderBuilderOption {
	return func(l *loader) {
		l.name = name
	}
}

// WithSkin selects which skin becomes the skeleton. Defaults to 0; a negative
// index loads the meshes unskinned.
//
// Parameters:
//   - index: the skin index
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithSkin(index int) LoaderBuilderOption {
	return func(l *loader) {
		l.skin = index
	}
}
