package upload

// WGPUBuilderOption is a functional option for configuring a WGPU uploader.
type WGPUBuilderOption func(w *WGPU)

// WithLabel sets the debug label prefix of the created vertex buffers.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - WGPUBuilderOption: option function to apply
func WithLabel(label string) WGPUBuilderOption {
	return func(w *WGPU) {
		w.label = label
	}
}
