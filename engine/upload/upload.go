package upload

// Handle identifies the renderer-side copy of one staging upload.
type Handle struct {
	// Slot is the staging slot the data came from (0 or 1).
	Slot int

	// Size is the number of bytes uploaded.
	Size int
}

// Uploader receives skinned vertex data for the renderer. It is called from
// the frame thread after the skinning join, never from a worker.
type Uploader interface {
	// UploadStagingBuffer copies one staging slot to the renderer.
	//
	// Parameters:
	//   - slot: the staging slot index
	//   - data: the packed vertex bytes; only valid for the duration of the call
	//
	// Returns:
	//   - Handle: the renderer-side handle
	//   - error: the renderer's error, passed through unchanged
	UploadStagingBuffer(slot int, data []byte) (Handle, error)
}

// Func adapts an ordinary function to the Uploader interface.
type Func func(slot int, data []byte) (Handle, error)

var _ Uploader = Func(nil)

// UploadStagingBuffer calls f(slot, data).
func (f Func) UploadStagingBuffer(slot int, data []byte) (Handle, error) {
	return f(slot, data)
}
