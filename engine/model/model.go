package model

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ResetType selects which part of a bone's live local transform ResetBone clears.
type ResetType int

const (
	ResetTranslationX ResetType = iota
	ResetTranslationY
	ResetTranslationZ
	ResetOrientation
	ResetOrientationAngleX
	ResetOrientationAngleY
	ResetOrientationAngleZ
)

// model is the implementation of the Model interface.
type model struct {
	name        string
	bones       []Bone
	vertices    []Vertex
	materials   []Material
	morphs      []Morph
	constraints []Constraint
	rigidBodies []RigidBody

	materialStates []MaterialState
	vertexMorphs   *VertexMorphState
	fallbackBone   Bone

	boneNames       map[string]int32
	morphNames      map[string]int32
	constraintNames map[string]int32

	children        [][]int32
	inherentTargets [][]int32
	jointBones      []bool
	effectorBones   []bool

	boundsMin, boundsMax mgl32.Vec3
	boundsDirty          bool
}

// Model defines the interface for a deformable articulated model.
// A Model is an index arena: bones, vertices, materials, morphs, constraints and
// rigid bodies live in flat slices and refer to each other by index. Slices
// returned by the accessors are the live storage and may be mutated in place by
// the deformation engines; their lengths never change after construction.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Bones retrieves the live bone arena.
	//
	// Returns:
	//   - []Bone: the bones, indexed by bone index
	Bones() []Bone

	// Bone retrieves one bone. Out-of-range indices, including NoBone, resolve
	// to the shared fallback bone.
	//
	// Parameters:
	//   - index: the bone index
	//
	// Returns:
	//   - *Bone: the bone or the fallback bone
	Bone(index int32) *Bone

	// FallbackBone retrieves the identity bone used for unresolved references.
	//
	// Returns:
	//   - *Bone: the fallback bone
	FallbackBone() *Bone

	// Vertices retrieves the rest-pose vertices.
	//
	// Returns:
	//   - []Vertex: the vertices
	Vertices() []Vertex

	// Materials retrieves the materials.
	//
	// Returns:
	//   - []Material: the materials
	Materials() []Material

	// MaterialStates retrieves the live material morph accumulators, one per material.
	//
	// Returns:
	//   - []MaterialState: the accumulators
	MaterialStates() []MaterialState

	// Morphs retrieves the morphs.
	//
	// Returns:
	//   - []Morph: the morphs
	Morphs() []Morph

	// Constraints retrieves the IK constraints in solve order.
	//
	// Returns:
	//   - []Constraint: the constraints
	Constraints() []Constraint

	// RigidBodies retrieves the physics body bindings.
	//
	// Returns:
	//   - []RigidBody: the rigid bodies
	RigidBodies() []RigidBody

	// VertexMorphState retrieves the per-vertex morph deltas.
	//
	// Returns:
	//   - *VertexMorphState: the deltas
	VertexMorphState() *VertexMorphState

	// FindBone looks up a bone index by name.
	//
	// Parameters:
	//   - name: the bone name
	//
	// Returns:
	//   - int32: the bone index, or NoBone
	//   - bool: true if found
	FindBone(name string) (int32, bool)

	// FindMorph looks up a morph index by name.
	//
	// Parameters:
	//   - name: the morph name
	//
	// Returns:
	//   - int32: the morph index, or -1
	//   - bool: true if found
	FindMorph(name string) (int32, bool)

	// FindConstraint looks up a constraint index by name.
	//
	// Parameters:
	//   - name: the constraint name
	//
	// Returns:
	//   - int32: the constraint index, or -1
	//   - bool: true if found
	FindConstraint(name string) (int32, bool)

	// ChildBones retrieves the direct children of a bone.
	//
	// Parameters:
	//   - index: the bone index
	//
	// Returns:
	//   - []int32: the child indices, ascending
	ChildBones(index int32) []int32

	// FindInherentBoneSet retrieves the bones that inherit from the given bone.
	//
	// Parameters:
	//   - index: the source bone index
	//
	// Returns:
	//   - []int32: the dependent bone indices, ascending
	FindInherentBoneSet(index int32) []int32

	// IsConstraintJointBone reports whether a bone is a joint of any constraint.
	IsConstraintJointBone(index int32) bool

	// IsConstraintEffectorBone reports whether a bone is the effector of any constraint.
	IsConstraintEffectorBone(index int32) bool

	// BoundingBox retrieves the model-space bounds of the last skinned frame.
	//
	// Returns:
	//   - mgl32.Vec3: the minimum corner
	//   - mgl32.Vec3: the maximum corner
	BoundingBox() (mgl32.Vec3, mgl32.Vec3)

	// SetBoundingBox stores new bounds and clears the dirty flag.
	SetBoundingBox(lo, hi mgl32.Vec3)

	// BoundingBoxDirty reports whether the pose changed since the bounds were last set.
	BoundingBoxDirty() bool

	// MarkBoundingBoxDirty flags the bounds as stale.
	MarkBoundingBoxDirty()

	// BoundingRadius returns the radius of a sphere centred at the origin enclosing the bounds.
	BoundingRadius() float32

	// SaveBindPose captures the live bone and morph state.
	//
	// Returns:
	//   - *BindPose: the snapshot
	SaveBindPose() *BindPose

	// RestoreBindPose writes a snapshot back into the live state.
	//
	// Parameters:
	//   - pose: the snapshot
	//
	// Returns:
	//   - error: ErrBindPoseMismatch if the snapshot belongs to a different model shape
	RestoreBindPose(pose *BindPose) error

	// ResetAllBones restores every bone's live state to identity.
	ResetAllBones()

	// ResetAllMorphs zeroes every morph weight and clears all morph accumulators.
	ResetAllMorphs()

	// ResetBone clears one component of a bone's live local transform.
	//
	// Parameters:
	//   - index: the bone index
	//   - kind: the component to clear
	ResetBone(index int32, kind ResetType)

	// HasAnyDirtyBone reports whether any bone is dirty.
	HasAnyDirtyBone() bool

	// HasAnyDirtyMorph reports whether any morph is dirty.
	HasAnyDirtyMorph() bool

	// RebuildMaterialBoneSets recomputes every material's BoneIndices cache.
	RebuildMaterialBoneSets()

	// SetOutsideParent binds a bone under a bone of another model.
	//
	// Parameters:
	//   - index: the subject bone index
	//   - parent: the model and bone names of the new parent
	//
	// Returns:
	//   - error: ErrInvalidOutsideParent if the subject is out of range, the binding
	//     is empty, or it names this model
	SetOutsideParent(index int32, parent OutsideParent) error

	// RemoveOutsideParent clears a bone's outside parent binding, if any.
	//
	// Parameters:
	//   - index: the subject bone index
	RemoveOutsideParent(index int32)

	// FindOutsideParent retrieves a bone's outside parent binding.
	//
	// Parameters:
	//   - index: the subject bone index
	//
	// Returns:
	//   - OutsideParent: the binding
	//   - bool: true if the bone has one
	FindOutsideParent(index int32) (OutsideParent, bool)

	// AllOutsideParents retrieves every outside parent binding keyed by subject bone.
	//
	// Returns:
	//   - map[int32]OutsideParent: the bindings
	AllOutsideParents() map[int32]OutsideParent
}

var _ Model = &model{}

// NewModel creates a new Model from the provided options and validates it.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: the validated model
//   - error: a *ValidationError when the arena is structurally invalid
func NewModel(options ...ModelBuilderOption) (Model, error) {
	m := &model{}
	for _, opt := range options {
		opt(m)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	if err := m.buildLookups(); err != nil {
		return nil, err
	}

	for i := range m.vertices {
		if s, ok := m.vertices[i].Deform.(SDEF); ok {
			m.vertices[i].Deform = s.prepare()
		}
	}

	m.fallbackBone = NewBone("", NoBone, mgl32.Vec3{})
	m.vertexMorphs = newVertexMorphState(len(m.vertices))
	m.materialStates = make([]MaterialState, len(m.materials))
	for i := range m.materialStates {
		m.materialStates[i] = NewMaterialState()
	}
	m.RebuildMaterialBoneSets()
	m.boundsDirty = true
	return m, nil
}

func (m *model) buildLookups() error {
	m.boneNames = make(map[string]int32, len(m.bones))
	for i, b := range m.bones {
		if _, ok := m.boneNames[b.Name]; ok && b.Name != "" {
			return invalid("bone", i, ErrDuplicateName)
		}
		m.boneNames[b.Name] = int32(i)
	}
	m.morphNames = make(map[string]int32, len(m.morphs))
	for i, mo := range m.morphs {
		if _, ok := m.morphNames[mo.Name]; ok && mo.Name != "" {
			return invalid("morph", i, ErrDuplicateName)
		}
		m.morphNames[mo.Name] = int32(i)
	}
	m.constraintNames = make(map[string]int32, len(m.constraints))
	for i, c := range m.constraints {
		m.constraintNames[c.Name] = int32(i)
	}

	m.children = make([][]int32, len(m.bones))
	m.inherentTargets = make([][]int32, len(m.bones))
	for i, b := range m.bones {
		if b.ParentIndex != NoBone {
			m.children[b.ParentIndex] = append(m.children[b.ParentIndex], int32(i))
		}
		if b.Inherent.SourceIndex != NoBone {
			m.inherentTargets[b.Inherent.SourceIndex] = append(m.inherentTargets[b.Inherent.SourceIndex], int32(i))
		}
	}

	m.jointBones = make([]bool, len(m.bones))
	m.effectorBones = make([]bool, len(m.bones))
	for _, c := range m.constraints {
		m.effectorBones[c.EffectorBone] = true
		for _, j := range c.Joints {
			m.jointBones[j.BoneIndex] = true
		}
	}
	return nil
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Bones() []Bone {
	return m.bones
}

func (m *model) Bone(index int32) *Bone {
	if index < 0 || int(index) >= len(m.bones) {
		return &m.fallbackBone
	}
	return &m.bones[index]
}

func (m *model) FallbackBone() *Bone {
	return &m.fallbackBone
}

func (m *model) Vertices() []Vertex {
	return m.vertices
}

func (m *model) Materials() []Material {
	return m.materials
}

func (m *model) MaterialStates() []MaterialState {
	return m.materialStates
}

func (m *model) Morphs() []Morph {
	return m.morphs
}

func (m *model) Constraints() []Constraint {
	return m.constraints
}

func (m *model) RigidBodies() []RigidBody {
	return m.rigidBodies
}

func (m *model) VertexMorphState() *VertexMorphState {
	return m.vertexMorphs
}

func (m *model) FindBone(name string) (int32, bool) {
	if i, ok := m.boneNames[name]; ok {
		return i, true
	}
	return NoBone, false
}

func (m *model) FindMorph(name string) (int32, bool) {
	if i, ok := m.morphNames[name]; ok {
		return i, true
	}
	return -1, false
}

func (m *model) FindConstraint(name string) (int32, bool) {
	if i, ok := m.constraintNames[name]; ok {
		return i, true
	}
	return -1, false
}

func (m *model) ChildBones(index int32) []int32 {
	if !m.boneInRange(index) {
		return nil
	}
	return m.children[index]
}

func (m *model) FindInherentBoneSet(index int32) []int32 {
	if !m.boneInRange(index) {
		return nil
	}
	return m.inherentTargets[index]
}

func (m *model) IsConstraintJointBone(index int32) bool {
	return m.boneInRange(index) && m.jointBones[index]
}

func (m *model) IsConstraintEffectorBone(index int32) bool {
	return m.boneInRange(index) && m.effectorBones[index]
}

func (m *model) BoundingBox() (mgl32.Vec3, mgl32.Vec3) {
	return m.boundsMin, m.boundsMax
}

func (m *model) SetBoundingBox(lo, hi mgl32.Vec3) {
	m.boundsMin, m.boundsMax = lo, hi
	m.boundsDirty = false
}

func (m *model) BoundingBoxDirty() bool {
	return m.boundsDirty
}

func (m *model) MarkBoundingBoxDirty() {
	m.boundsDirty = true
}

func (m *model) BoundingRadius() float32 {
	return math32.Max(m.boundsMin.Len(), m.boundsMax.Len())
}

func (m *model) ResetAllBones() {
	for i := range m.bones {
		m.bones[i].ResetLocal()
	}
	m.boundsDirty = true
}

func (m *model) ResetAllMorphs() {
	for i := range m.morphs {
		m.morphs[i].Weight = 0
		m.morphs[i].Dirty = false
	}
	m.vertexMorphs.Reset()
	for i := range m.materialStates {
		m.materialStates[i].Reset()
	}
	for i := range m.bones {
		m.bones[i].MorphTranslation = mgl32.Vec3{}
		m.bones[i].MorphOrientation = mgl32.QuatIdent()
		m.bones[i].Dirty = true
	}
}

func (m *model) ResetBone(index int32, kind ResetType) {
	if !m.boneInRange(index) {
		return
	}
	b := &m.bones[index]
	switch kind {
	case ResetTranslationX, ResetTranslationY, ResetTranslationZ:
		b.LocalTranslation[kind-ResetTranslationX] = 0
	case ResetOrientation:
		b.LocalOrientation = mgl32.QuatIdent()
	case ResetOrientationAngleX, ResetOrientationAngleY, ResetOrientationAngleZ:
		e := common.EulerXYZFromQuat(b.LocalOrientation)
		e[kind-ResetOrientationAngleX] = 0
		b.LocalOrientation = common.QuatFromEulerXYZ(e)
	}
	b.Dirty = true
}

func (m *model) HasAnyDirtyBone() bool {
	return slices.ContainsFunc(m.bones, func(b Bone) bool { return b.Dirty })
}

func (m *model) HasAnyDirtyMorph() bool {
	return slices.ContainsFunc(m.morphs, func(mo Morph) bool { return mo.Dirty })
}

func (m *model) RebuildMaterialBoneSets() {
	seen := make([]bool, len(m.bones))
	for i := range m.materials {
		mat := &m.materials[i]
		clear(seen)
		mat.BoneIndices = mat.BoneIndices[:0]
		for _, v := range m.vertices[mat.VertexStart : mat.VertexStart+mat.VertexCount] {
			if v.Deform == nil {
				continue
			}
			for _, b := range v.Deform.BoneIndices() {
				if m.boneInRange(b) && !seen[b] {
					seen[b] = true
					mat.BoneIndices = append(mat.BoneIndices, b)
				}
			}
		}
		slices.Sort(mat.BoneIndices)
	}
}

func (m *model) SetOutsideParent(index int32, parent OutsideParent) error {
	if !m.boneInRange(index) || !parent.Enabled() || parent.Model == m.name {
		return ErrInvalidOutsideParent
	}
	b := &m.bones[index]
	b.OutsideParent = parent
	b.Dirty = true
	return nil
}

func (m *model) RemoveOutsideParent(index int32) {
	if !m.boneInRange(index) {
		return
	}
	b := &m.bones[index]
	if b.OutsideParent.Enabled() {
		b.OutsideParent = OutsideParent{}
		b.Dirty = true
	}
}

func (m *model) FindOutsideParent(index int32) (OutsideParent, bool) {
	if !m.boneInRange(index) || !m.bones[index].OutsideParent.Enabled() {
		return OutsideParent{}, false
	}
	return m.bones[index].OutsideParent, true
}

func (m *model) AllOutsideParents() map[int32]OutsideParent {
	out := make(map[int32]OutsideParent)
	for i := range m.bones {
		if p := m.bones[i].OutsideParent; p.Enabled() {
			out[int32(i)] = p
		}
	}
	return out
}
