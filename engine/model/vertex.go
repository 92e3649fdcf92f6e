package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DeformType identifies the skinning algorithm of a vertex.
type DeformType int

const (
	// DeformBDEF1 binds a vertex rigidly to one bone.
	DeformBDEF1 DeformType = iota
	// DeformBDEF2 blends two bones linearly by weight and 1-weight.
	DeformBDEF2
	// DeformBDEF4 blends up to four bones linearly.
	DeformBDEF4
	// DeformSDEF blends two bones with a spherical correction.
	DeformSDEF
	// DeformQDEF blends up to four bones as dual quaternions.
	DeformQDEF
)

func (t DeformType) String() string {
	switch t {
	case DeformBDEF1:
		return "BDEF1"
	case DeformBDEF2:
		return "BDEF2"
	case DeformBDEF4:
		return "BDEF4"
	case DeformSDEF:
		return "SDEF"
	case DeformQDEF:
		return "QDEF"
	}
	return "unknown"
}

// Deform is the per-vertex skinning descriptor. It is a closed set: the only
// implementations are BDEF1, BDEF2, BDEF4, SDEF and QDEF, each carrying exactly
// the bone references and weights its algorithm reads.
type Deform interface {
	// Type returns the skinning algorithm tag.
	Type() DeformType

	// BoneIndices returns the referenced bones, in slot order.
	BoneIndices() []int32

	isDeform()
}

// BDEF1 transforms a vertex by a single bone.
type BDEF1 struct {
	Bone int32
}

// BDEF2 blends two bones: Weight for Bones[0] and 1-Weight for Bones[1].
type BDEF2 struct {
	Bones  [2]int32
	Weight float32
}

// BDEF4 sums four weighted bone transforms. Weights are used as authored.
type BDEF4 struct {
	Bones   [4]int32
	Weights [4]float32
}

// SDEF is spherical deform: two bones plus the rotation centre C and the
// reference points R0/R1. CR0 and CR1 are the corrected centres derived by
// NewSDEF (and re-derived at model construction).
type SDEF struct {
	Bones  [2]int32
	Weight float32
	C      mgl32.Vec3
	R0, R1 mgl32.Vec3

	CR0, CR1 mgl32.Vec3
}

// QDEF blends up to four bones as dual quaternions.
type QDEF struct {
	Bones   [4]int32
	Weights [4]float32
}

func (BDEF1) Type() DeformType { return DeformBDEF1 }
func (BDEF2) Type() DeformType { return DeformBDEF2 }
func (BDEF4) Type() DeformType { return DeformBDEF4 }
func (SDEF) Type() DeformType  { return DeformSDEF }
func (QDEF) Type() DeformType  { return DeformQDEF }

func (d BDEF1) BoneIndices() []int32 { return []int32{d.Bone} }
func (d BDEF2) BoneIndices() []int32 { return d.Bones[:] }
func (d BDEF4) BoneIndices() []int32 { return d.Bones[:] }
func (d SDEF) BoneIndices() []int32  { return d.Bones[:] }
func (d QDEF) BoneIndices() []int32  { return d.Bones[:] }

func (BDEF1) isDeform() {}
func (BDEF2) isDeform() {}
func (BDEF4) isDeform() {}
func (SDEF) isDeform()  {}
func (QDEF) isDeform()  {}

// NewSDEF builds a spherical-deform descriptor and precomputes its corrected centres.
//
// Parameters:
//   - bone0, bone1: the two influencing bones
//   - weight: the weight of bone0 (bone1 receives 1-weight)
//   - c: the rotation centre
//   - r0, r1: the reference points of each bone
//
// Returns:
//   - SDEF: the prepared descriptor
func NewSDEF(bone0, bone1 int32, weight float32, c, r0, r1 mgl32.Vec3) SDEF {
	return SDEF{Bones: [2]int32{bone0, bone1}, Weight: weight, C: c, R0: r0, R1: r1}.prepare()
}

// prepare moves R0/R1 so their weighted mean sits on C, then stores the
// midpoints between C and the moved references.
func (d SDEF) prepare() SDEF {
	w0 := d.Weight
	w1 := 1 - w0
	rw := d.R0.Mul(w0).Add(d.R1.Mul(w1))
	r0 := d.C.Add(d.R0).Sub(rw)
	r1 := d.C.Add(d.R1).Sub(rw)
	d.CR0 = d.C.Add(r0).Mul(0.5)
	d.CR1 = d.C.Add(r1).Mul(0.5)
	return d
}

// Vertex is a mesh vertex with its rest attributes and skinning descriptor.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2

	// AdditionalUV holds the four extra UV channels, offset by UV morphs 1..4.
	AdditionalUV [4]mgl32.Vec4

	// EdgeScale scales the outline extrusion of this vertex.
	EdgeScale float32

	// Deform selects the skinning algorithm and its bone influences.
	Deform Deform
}

// VertexMorphState holds the per-vertex deltas accumulated by vertex and UV morphs.
// UV[0] offsets the texture coordinate; UV[1..4] offset AdditionalUV[0..3].
type VertexMorphState struct {
	Position []mgl32.Vec3
	UV       [5][]mgl32.Vec4
}

func newVertexMorphState(n int) *VertexMorphState {
	s := &VertexMorphState{Position: make([]mgl32.Vec3, n)}
	for i := range s.UV {
		s.UV[i] = make([]mgl32.Vec4, n)
	}
	return s
}

// Reset zeroes every delta.
func (s *VertexMorphState) Reset() {
	clear(s.Position)
	for i := range s.UV {
		clear(s.UV[i])
	}
}
