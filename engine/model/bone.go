package model

import (
	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/go-gl/mathgl/mgl32"
)

// NoBone marks an absent bone reference (root parent, unbound inherent source).
const NoBone int32 = -1

// InherentBinding derives part of a bone's local transform from another bone.
type InherentBinding struct {
	// SourceIndex is the bone the transform is inherited from, or NoBone.
	SourceIndex int32

	// Coefficient scales the inherited translation and rotation.
	Coefficient float32

	// Translation enables inheriting the source's translation.
	Translation bool

	// Rotation enables inheriting the source's orientation.
	Rotation bool
}

// Enabled reports whether the binding inherits anything.
func (b InherentBinding) Enabled() bool {
	return b.SourceIndex != NoBone && (b.Translation || b.Rotation)
}

// FixedAxis restricts a bone's rotation to twist around a single axis.
type FixedAxis struct {
	Enabled bool
	Axis    mgl32.Vec3
}

// LocalAxes is an authored local coordinate frame used when a bone is manipulated in local space.
type LocalAxes struct {
	Enabled bool
	X, Z    mgl32.Vec3
}

// OutsideParent rebinds a bone under a bone of another model. While set, the
// named bone's world transform replaces the bone's own parent during propagation.
type OutsideParent struct {
	// Model is the name of the model owning the parent bone.
	Model string

	// Bone is the name of the parent bone within that model.
	Bone string
}

// Enabled reports whether the binding names a parent.
func (p OutsideParent) Enabled() bool {
	return p.Model != "" && p.Bone != ""
}

// Bone is a hierarchical transform node stored in the model's bone arena.
// Parent and inherent references are indices into the same arena.
type Bone struct {
	// Name is the bone's identifier, unique within a model.
	Name string

	// ParentIndex is the index of the parent bone (NoBone for root bones).
	ParentIndex int32

	// Origin is the bone's rest position in model space.
	Origin mgl32.Vec3

	// Layer is the deform layer; lower layers are transformed first.
	Layer int32

	// TransformAfterPhysics defers the bone to the post-simulation propagation phase.
	TransformAfterPhysics bool

	// Inherent is the optional parent-weighted binding to another bone.
	Inherent InherentBinding

	// FixedAxis optionally constrains rotation to one axis.
	FixedAxis FixedAxis

	// LocalAxes optionally defines the bone's local manipulation frame.
	LocalAxes LocalAxes

	// OutsideParent optionally parents the bone to a bone of another model.
	OutsideParent OutsideParent

	// LocalTranslation is the animated translation relative to the rest pose.
	LocalTranslation mgl32.Vec3

	// LocalOrientation is the animated rotation relative to the rest pose.
	LocalOrientation mgl32.Quat

	// MorphTranslation is the accumulated bone morph translation.
	MorphTranslation mgl32.Vec3

	// MorphOrientation is the accumulated bone morph rotation.
	MorphOrientation mgl32.Quat

	// ConstraintOrientation replaces the animated rotation while ConstraintActive is set.
	// Written by the IK solver for joint bones.
	ConstraintOrientation mgl32.Quat

	// ConstraintActive reports whether ConstraintOrientation is in effect.
	ConstraintActive bool

	// Dirty is set whenever live state changes and cleared by hierarchy propagation.
	Dirty bool

	// World is the bone's model-space transform. Derived: computed by hierarchy
	// propagation and overwritten on the next pass if written elsewhere.
	World mgl32.Mat4

	// InherentTranslation is the translation other bones inherit from this one. Derived.
	InherentTranslation mgl32.Vec3

	// InherentOrientation is the rotation other bones inherit from this one. Derived.
	InherentOrientation mgl32.Quat
}

// NewBone returns a bone with identity live state and the given name, parent and origin.
//
// Parameters:
//   - name: the bone identifier
//   - parent: the parent index, or NoBone
//   - origin: the rest position in model space
//
// Returns:
//   - Bone: the initialized bone
func NewBone(name string, parent int32, origin mgl32.Vec3) Bone {
	b := Bone{
		Name:        name,
		ParentIndex: parent,
		Origin:      origin,
		Inherent:    InherentBinding{SourceIndex: NoBone},
	}
	b.ResetLocal()
	b.World = mgl32.Translate3D(origin[0], origin[1], origin[2])
	return b
}

// ResetLocal restores every live transform component to identity.
func (b *Bone) ResetLocal() {
	b.LocalTranslation = mgl32.Vec3{}
	b.LocalOrientation = mgl32.QuatIdent()
	b.MorphTranslation = mgl32.Vec3{}
	b.MorphOrientation = mgl32.QuatIdent()
	b.ConstraintOrientation = mgl32.QuatIdent()
	b.ConstraintActive = false
	b.InherentTranslation = mgl32.Vec3{}
	b.InherentOrientation = mgl32.QuatIdent()
	b.Dirty = true
}

// SetLocalTransform sets the animated translation and rotation and marks the bone dirty.
//
// Parameters:
//   - translation: the translation relative to the rest pose
//   - orientation: the rotation relative to the rest pose
func (b *Bone) SetLocalTransform(translation mgl32.Vec3, orientation mgl32.Quat) {
	b.LocalTranslation = translation
	b.LocalOrientation = orientation.Normalize()
	b.Dirty = true
}

// Position returns the bone's current origin in model space.
func (b *Bone) Position() mgl32.Vec3 {
	return common.Translation(b.World)
}

// SkinningTransform maps rest-pose model-space points into the current pose.
func (b *Bone) SkinningTransform() mgl32.Mat4 {
	return b.World.Mul4(mgl32.Translate3D(-b.Origin[0], -b.Origin[1], -b.Origin[2]))
}

// LocalAxesFrame returns the orthonormal local frame (columns X, Y, Z). Bones
// without authored local axes use the model axes.
func (b *Bone) LocalAxesFrame() mgl32.Mat3 {
	if !b.LocalAxes.Enabled {
		return mgl32.Ident3()
	}
	x := b.LocalAxes.X.Normalize()
	z := b.LocalAxes.Z.Normalize()
	y := z.Cross(x).Normalize()
	z = x.Cross(y).Normalize()
	return mgl32.Mat3FromCols(x, y, z)
}
