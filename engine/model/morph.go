package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// MorphCategory is the UI panel a morph is listed under.
type MorphCategory int

const (
	MorphCategoryOther MorphCategory = iota
	MorphCategoryEyebrow
	MorphCategoryEye
	MorphCategoryLip
)

// MorphKind selects the payload a morph carries.
type MorphKind int

const (
	MorphKindVertex MorphKind = iota
	MorphKindBone
	MorphKindMaterial
	MorphKindUV
	MorphKindFlip
	MorphKindGroup
)

func (k MorphKind) String() string {
	switch k {
	case MorphKindVertex:
		return "vertex"
	case MorphKindBone:
		return "bone"
	case MorphKindMaterial:
		return "material"
	case MorphKindUV:
		return "uv"
	case MorphKindFlip:
		return "flip"
	case MorphKindGroup:
		return "group"
	}
	return "unknown"
}

// MaterialOperation is how a material morph offset combines with the base value.
type MaterialOperation int

const (
	MaterialMultiply MaterialOperation = iota
	MaterialAdd
)

// AllMaterials targets every material from a material morph offset.
const AllMaterials int32 = -1

// VertexOffset moves one vertex position.
type VertexOffset struct {
	VertexIndex int32
	Position    mgl32.Vec3
}

// UVOffset moves one vertex texture coordinate. Channel 0 is the primary
// UV; channels 1..4 address the additional UV sets.
type UVOffset struct {
	VertexIndex int32
	Channel     int
	Offset      mgl32.Vec4
}

// BoneOffset translates and rotates one bone.
type BoneOffset struct {
	BoneIndex   int32
	Translation mgl32.Vec3
	Orientation mgl32.Quat
}

// MaterialOffset modulates one material, or all of them with AllMaterials.
type MaterialOffset struct {
	MaterialIndex int32
	Operation     MaterialOperation
	Params        MaterialParams
}

// MorphChild references another morph from a group or flip morph.
type MorphChild struct {
	MorphIndex int32
	Weight     float32
}

// Morph is a named, weighted deformation of the model.
type Morph struct {
	Name     string
	Category MorphCategory
	Kind     MorphKind

	// Weight is the user/animation weight, usually in [0, 1].
	Weight float32

	// Dirty is set when Weight changes and cleared once the morph is applied.
	Dirty bool

	VertexOffsets   []VertexOffset
	UVOffsets       []UVOffset
	BoneOffsets     []BoneOffset
	MaterialOffsets []MaterialOffset

	// Children lists the morphs driven by a group or flip morph.
	Children []MorphChild
}

// SetWeight updates the weight and marks the morph dirty when it changed.
//
// Parameters:
//   - w: the new weight
func (m *Morph) SetWeight(w float32) {
	if m.Weight != w {
		m.Weight = w
		m.Dirty = true
	}
}

// IsComposite reports whether the morph drives other morphs.
func (m *Morph) IsComposite() bool {
	return m.Kind == MorphKindGroup || m.Kind == MorphKindFlip
}
