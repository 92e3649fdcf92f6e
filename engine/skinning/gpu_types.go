package skinning

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// SkinnedVertexSource is the canonical WGSL definition of the vertex input struct
// for skinned output. Matches SkinnedVertex layout exactly (128 bytes).
//
//go:embed assets/skinned_vertex.wgsl
var SkinnedVertexSource string

// SkinnedVertexSize is the packed size of one SkinnedVertex in bytes.
const SkinnedVertexSize = 128

// SkinnedVertex is the GPU-aligned representation of one deformed vertex.
// Matches the WGSL SkinnedVertex struct layout exactly (see SkinnedVertexSource).
type SkinnedVertex struct {
	Position     [3]float32    // offset   0: skinned position in model space
	EdgeScale    float32       // offset  12: per-vertex outline scale
	Normal       [3]float32    // offset  16: skinned unit normal
	Material     uint32        // offset  28: owning material index
	TexCoord     [4]float32    // offset  32: morphed UV (xy), zw unused
	EdgePosition [4]float32    // offset  48: outline-extruded position (xyz), w = 1
	AdditionalUV [4][4]float32 // offset  64: morphed additional UV sets 1..4
}

// Size returns the size of the SkinnedVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *SkinnedVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the SkinnedVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 128-byte buffer ready for GPU upload.
func (g *SkinnedVertex) Marshal() []byte {
	buf := make([]byte, SkinnedVertexSize)
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
	}
	for i := range 3 {
		put(i*4, g.Position[i])
		put(16+i*4, g.Normal[i])
	}
	put(12, g.EdgeScale)
	binary.LittleEndian.PutUint32(buf[28:32], g.Material)
	for i := range 4 {
		put(32+i*4, g.TexCoord[i])
		put(48+i*4, g.EdgePosition[i])
		for k := range 4 {
			put(64+k*16+i*4, g.AdditionalUV[k][i])
		}
	}
	return buf
}
