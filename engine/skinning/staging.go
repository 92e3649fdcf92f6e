package skinning

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-rig/common"
)

// StagingBuffer is a double-buffered CPU staging area for skinned vertices.
// Workers fill the back slot; the frame thread publishes it with Flip, after
// which readers see it as the front slot.
type StagingBuffer struct {
	slots  [2][]SkinnedVertex
	active atomic.Int32
}

// NewStagingBuffer allocates both slots for n vertices.
//
// Parameters:
//   - n: the vertex count
//
// Returns:
//   - *StagingBuffer: the staging buffer, slot 0 active
func NewStagingBuffer(n int) *StagingBuffer {
	s := &StagingBuffer{}
	s.slots[0] = make([]SkinnedVertex, n)
	s.slots[1] = make([]SkinnedVertex, n)
	return s
}

// ActiveSlot returns the index of the front slot.
func (s *StagingBuffer) ActiveSlot() int {
	return int(s.active.Load())
}

// Front returns the last published vertices.
func (s *StagingBuffer) Front() []SkinnedVertex {
	return s.slots[s.active.Load()]
}

// Back returns the slot being written by the current frame.
func (s *StagingBuffer) Back() []SkinnedVertex {
	return s.slots[1-s.active.Load()]
}

// Flip publishes the back slot.
func (s *StagingBuffer) Flip() {
	s.active.Store(1 - s.active.Load())
}

// FrontBytes returns the front slot as raw bytes. The slice aliases the slot.
//
// Returns:
//   - int: the front slot index
//   - []byte: the packed vertex data
func (s *StagingBuffer) FrontBytes() (int, []byte) {
	slot := s.active.Load()
	return int(slot), common.SliceToBytes(s.slots[slot])
}
