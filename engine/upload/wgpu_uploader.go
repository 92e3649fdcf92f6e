package upload

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// bufferDevice is the subset of *wgpu.Device used to allocate vertex buffers.
type bufferDevice interface {
	CreateBuffer(descriptor *wgpu.BufferDescriptor) (*wgpu.Buffer, error)
}

// bufferQueue is the subset of *wgpu.Queue used to fill vertex buffers.
type bufferQueue interface {
	WriteBuffer(buffer *wgpu.Buffer, bufferOffset uint64, data []byte) error
}

// WGPU uploads staging slots into two GPU vertex buffers, one per slot, so the
// renderer can draw from one while the next frame fills the other. Buffers are
// created on first use and recreated when the data outgrows them.
type WGPU struct {
	mu     sync.Mutex
	device bufferDevice
	queue  bufferQueue
	label  string

	buffers [2]*wgpu.Buffer
	sizes   [2]uint64
}

var _ Uploader = &WGPU{}

// NewWGPU creates an uploader bound to a device and its queue.
//
// Parameters:
//   - device: the device that owns the vertex buffers
//   - queue: the device queue used for writes
//   - options: a variadic list of WGPUBuilderOption functions
//
// Returns:
//   - *WGPU: the uploader
func NewWGPU(device *wgpu.Device, queue *wgpu.Queue, options ...WGPUBuilderOption) *WGPU {
	return newWGPU(device, queue, options...)
}

func newWGPU(device bufferDevice, queue bufferQueue, options ...WGPUBuilderOption) *WGPU {
	w := &WGPU{
		device: device,
		queue:  queue,
		label:  "Skinned",
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// UploadStagingBuffer writes data into the vertex buffer of the given slot.
func (w *WGPU) UploadStagingBuffer(slot int, data []byte) (Handle, error) {
	if slot < 0 || slot >= len(w.buffers) {
		return Handle{}, fmt.Errorf("upload: invalid staging slot %d", slot)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	// WriteBuffer sizes must be a multiple of 4.
	size := (uint64(len(data)) + 3) &^ 3
	if w.buffers[slot] == nil || w.sizes[slot] < size {
		if w.buffers[slot] != nil {
			w.buffers[slot].Release()
			w.buffers[slot] = nil
		}
		buf, err := w.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            fmt.Sprintf("%s Vertex Buffer %d", w.label, slot),
			Size:             size,
			Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		})
		if err != nil {
			return Handle{}, fmt.Errorf("upload: create slot %d buffer: %w", slot, err)
		}
		w.buffers[slot] = buf
		w.sizes[slot] = size
	}
	if len(data) > 0 {
		if err := w.queue.WriteBuffer(w.buffers[slot], 0, data); err != nil {
			return Handle{}, fmt.Errorf("upload: write slot %d: %w", slot, err)
		}
	}
	return Handle{Slot: slot, Size: len(data)}, nil
}

// Buffer retrieves the GPU buffer of a slot, or nil before its first upload.
//
// Parameters:
//   - slot: the staging slot index
//
// Returns:
//   - *wgpu.Buffer: the vertex buffer
func (w *WGPU) Buffer(slot int) *wgpu.Buffer {
	if slot < 0 || slot >= len(w.buffers) {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buffers[slot]
}

// Release frees both vertex buffers.
func (w *WGPU) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, buf := range w.buffers {
		if buf != nil {
			buf.Release()
			w.buffers[i] = nil
			w.sizes[i] = 0
		}
	}
}
