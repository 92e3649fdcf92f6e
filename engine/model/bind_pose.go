package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/jinzhu/copier"
)

// BonePose is the live local state of one bone captured in a BindPose.
type BonePose struct {
	LocalTranslation      mgl32.Vec3
	LocalOrientation      mgl32.Quat
	MorphTranslation      mgl32.Vec3
	MorphOrientation      mgl32.Quat
	ConstraintOrientation mgl32.Quat
	ConstraintActive      bool
}

// MorphPose is the weight of one morph captured in a BindPose.
type MorphPose struct {
	Weight float32
}

// BindPose is a detached snapshot of a model's live bone and morph state.
// It shares no memory with the model it was taken from.
type BindPose struct {
	Bones  []BonePose
	Morphs []MorphPose
}

var deepCopy = copier.Option{DeepCopy: true}

// SaveBindPose captures every bone's live local state and every morph weight.
//
// Returns:
//   - *BindPose: the snapshot, owned by the caller
func (m *model) SaveBindPose() *BindPose {
	pose := &BindPose{
		Bones:  make([]BonePose, len(m.bones)),
		Morphs: make([]MorphPose, len(m.morphs)),
	}
	for i := range m.bones {
		// copier only fails on invalid pointers, which cannot happen here.
		_ = copier.CopyWithOption(&pose.Bones[i], &m.bones[i], deepCopy)
	}
	for i := range m.morphs {
		_ = copier.CopyWithOption(&pose.Morphs[i], &m.morphs[i], deepCopy)
	}
	return pose
}

// RestoreBindPose writes a snapshot back into the live state and marks every
// bone and morph dirty.
//
// Parameters:
//   - pose: a snapshot taken from this model
//
// Returns:
//   - error: ErrBindPoseMismatch if the snapshot's shape differs from the model
func (m *model) RestoreBindPose(pose *BindPose) error {
	if pose == nil || len(pose.Bones) != len(m.bones) || len(pose.Morphs) != len(m.morphs) {
		return ErrBindPoseMismatch
	}
	for i := range m.bones {
		if err := copier.CopyWithOption(&m.bones[i], &pose.Bones[i], deepCopy); err != nil {
			return fmt.Errorf("restore bone %d: %w", i, err)
		}
		m.bones[i].Dirty = true
	}
	for i := range m.morphs {
		if err := copier.CopyWithOption(&m.morphs[i], &pose.Morphs[i], deepCopy); err != nil {
			return fmt.Errorf("restore morph %d: %w", i, err)
		}
		m.morphs[i].Dirty = true
	}
	return nil
}
