package model

import (
	"slices"
)

// validate checks every index reference and acyclicity requirement of the arena.
// The first defect found is returned.
func (m *model) validate() error {
	if err := m.validateBones(); err != nil {
		return err
	}
	if err := m.validateMaterials(); err != nil {
		return err
	}
	if err := m.validateMorphs(); err != nil {
		return err
	}
	if err := m.validateConstraints(); err != nil {
		return err
	}
	for i, rb := range m.rigidBodies {
		if rb.BoneIndex != NoBone && !m.boneInRange(rb.BoneIndex) {
			return invalid("rigid body", i, ErrRigidBodyOutOfRange)
		}
	}
	return nil
}

func (m *model) boneInRange(i int32) bool {
	return i >= 0 && int(i) < len(m.bones)
}

func (m *model) validateBones() error {
	n := len(m.bones)
	for i, b := range m.bones {
		if b.ParentIndex != NoBone && (!m.boneInRange(b.ParentIndex) || int(b.ParentIndex) == i) {
			if int(b.ParentIndex) == i {
				return invalid("bone", i, ErrCyclicParent)
			}
			return invalid("bone", i, ErrParentOutOfRange)
		}
		if b.Inherent.SourceIndex != NoBone && (!m.boneInRange(b.Inherent.SourceIndex) || int(b.Inherent.SourceIndex) == i) {
			if int(b.Inherent.SourceIndex) == i {
				return invalid("bone", i, ErrCyclicInherent)
			}
			return invalid("bone", i, ErrInherentOutOfRange)
		}
		if op := b.OutsideParent; op != (OutsideParent{}) && (!op.Enabled() || op.Model == m.name) {
			return invalid("bone", i, ErrInvalidOutsideParent)
		}
	}

	for i := range m.bones {
		steps := 0
		for p := m.bones[i].ParentIndex; p != NoBone; p = m.bones[p].ParentIndex {
			if steps++; steps > n {
				return invalid("bone", i, ErrCyclicParent)
			}
		}
	}

	// Parent and inherent edges together must form a DAG, otherwise no
	// propagation order exists.
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, n)
	var visit func(i int32) bool
	visit = func(i int32) bool {
		switch state[i] {
		case visiting:
			return false
		case done:
			return true
		}
		state[i] = visiting
		b := &m.bones[i]
		if b.ParentIndex != NoBone && !visit(b.ParentIndex) {
			return false
		}
		if b.Inherent.SourceIndex != NoBone && !visit(b.Inherent.SourceIndex) {
			return false
		}
		state[i] = done
		return true
	}
	for i := range m.bones {
		if !visit(int32(i)) {
			return invalid("bone", i, ErrCyclicInherent)
		}
	}
	return nil
}

func (m *model) validateMaterials() error {
	type span struct{ start, end, index int }
	spans := make([]span, 0, len(m.materials))
	for i, mat := range m.materials {
		if mat.VertexStart < 0 || mat.VertexCount < 0 || mat.VertexStart+mat.VertexCount > len(m.vertices) {
			return invalid("material", i, ErrMaterialRange)
		}
		spans = append(spans, span{mat.VertexStart, mat.VertexStart + mat.VertexCount, i})
	}
	slices.SortFunc(spans, func(a, b span) int { return a.start - b.start })
	for k := 1; k < len(spans); k++ {
		if spans[k].start < spans[k-1].end {
			return invalid("material", spans[k].index, ErrMaterialRange)
		}
	}
	return nil
}

func (m *model) validateMorphs() error {
	for i := range m.morphs {
		mo := &m.morphs[i]
		for _, o := range mo.VertexOffsets {
			if o.VertexIndex < 0 || int(o.VertexIndex) >= len(m.vertices) {
				return invalid("morph", i, ErrMorphOutOfRange)
			}
		}
		for _, o := range mo.UVOffsets {
			if o.VertexIndex < 0 || int(o.VertexIndex) >= len(m.vertices) || o.Channel < 0 || o.Channel > 4 {
				return invalid("morph", i, ErrMorphOutOfRange)
			}
		}
		for _, o := range mo.BoneOffsets {
			if !m.boneInRange(o.BoneIndex) {
				return invalid("morph", i, ErrMorphOutOfRange)
			}
		}
		for _, o := range mo.MaterialOffsets {
			if o.MaterialIndex != AllMaterials && (o.MaterialIndex < 0 || int(o.MaterialIndex) >= len(m.materials)) {
				return invalid("morph", i, ErrMorphOutOfRange)
			}
		}
		for _, c := range mo.Children {
			if c.MorphIndex < 0 || int(c.MorphIndex) >= len(m.morphs) {
				return invalid("morph", i, ErrMorphOutOfRange)
			}
		}
	}

	for i := range m.morphs {
		if !m.morphs[i].IsComposite() {
			continue
		}
		if m.reachesMorph(int32(i), int32(i), make([]bool, len(m.morphs))) {
			return invalid("morph", i, ErrGroupSelfInclusion)
		}
	}
	return nil
}

// reachesMorph reports whether target is a transitive child of from.
func (m *model) reachesMorph(from, target int32, seen []bool) bool {
	for _, c := range m.morphs[from].Children {
		if c.MorphIndex == target {
			return true
		}
		if seen[c.MorphIndex] {
			continue
		}
		seen[c.MorphIndex] = true
		if m.morphs[c.MorphIndex].IsComposite() && m.reachesMorph(c.MorphIndex, target, seen) {
			return true
		}
	}
	return false
}

func (m *model) validateConstraints() error {
	for i := range m.constraints {
		c := &m.constraints[i]
		if !m.boneInRange(c.TargetBone) || !m.boneInRange(c.EffectorBone) {
			return invalid("constraint", i, ErrInvalidConstraintChain)
		}
		prev := c.EffectorBone
		for _, j := range c.Joints {
			if !m.boneInRange(j.BoneIndex) || !m.isAncestor(j.BoneIndex, prev) {
				return invalid("constraint", i, ErrInvalidConstraintChain)
			}
			prev = j.BoneIndex
		}
	}
	return nil
}

// isAncestor reports whether a is a strict ancestor of b through parent links.
func (m *model) isAncestor(a, b int32) bool {
	for p := m.bones[b].ParentIndex; p != NoBone; p = m.bones[p].ParentIndex {
		if p == a {
			return true
		}
	}
	return false
}
