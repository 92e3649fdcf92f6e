package motion

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
)

// Transition cross-fades a model from its live pose into a target BindPose
// over a fixed duration. Rotations are slerped, translations and morph
// weights lerped, along an eased 0..1 curve.
type Transition struct {
	model  model.Model
	from   *model.BindPose
	to     *model.BindPose
	tween  *gween.Tween
	done   bool
	amount float32
}

// NewTransition captures the current pose and prepares a blend toward target.
//
// Parameters:
//   - m: the model to animate
//   - target: the pose to arrive at
//   - duration: the blend length in seconds; zero or less jumps on the first Update
//   - easing: the easing curve, or nil for ease.Linear
//
// Returns:
//   - *Transition: the transition
//   - error: model.ErrBindPoseMismatch if target does not fit the model
func NewTransition(m model.Model, target *model.BindPose, duration float32, easing ease.TweenFunc) (*Transition, error) {
	from := m.SaveBindPose()
	if target == nil || len(target.Bones) != len(from.Bones) || len(target.Morphs) != len(from.Morphs) {
		return nil, model.ErrBindPoseMismatch
	}
	if easing == nil {
		easing = ease.Linear
	}
	return &Transition{
		model: m,
		from:  from,
		to:    target,
		tween: gween.New(0, 1, max(duration, 0), easing),
	}, nil
}

// Update advances the transition and writes the blended pose into the model.
//
// Parameters:
//   - dt: elapsed seconds
//
// Returns:
//   - bool: true once the target pose has been reached
func (t *Transition) Update(dt float32) bool {
	if t.done {
		return true
	}
	amount, finished := t.tween.Update(dt)
	t.amount = amount
	if finished {
		t.done = true
		// Land exactly on the target; shapes were checked at construction.
		_ = t.model.RestoreBindPose(t.to)
		return true
	}
	t.blend(amount)
	return false
}

// Amount returns the last eased blend factor in [0, 1].
func (t *Transition) Amount() float32 {
	return t.amount
}

// Done reports whether the transition has finished.
func (t *Transition) Done() bool {
	return t.done
}

func (t *Transition) blend(amount float32) {
	bones := t.model.Bones()
	for i := range bones {
		a, b := &t.from.Bones[i], &t.to.Bones[i]
		bone := &bones[i]
		bone.LocalTranslation = common.LerpVec3(a.LocalTranslation, b.LocalTranslation, amount)
		bone.LocalOrientation = mgl32.QuatSlerp(a.LocalOrientation, b.LocalOrientation, amount)
		bone.MorphTranslation = common.LerpVec3(a.MorphTranslation, b.MorphTranslation, amount)
		bone.MorphOrientation = mgl32.QuatSlerp(a.MorphOrientation, b.MorphOrientation, amount)
		bone.ConstraintOrientation = mgl32.QuatSlerp(a.ConstraintOrientation, b.ConstraintOrientation, amount)
		bone.ConstraintActive = a.ConstraintActive
		bone.Dirty = true
	}
	morphs := t.model.Morphs()
	for i := range morphs {
		a, b := t.from.Morphs[i].Weight, t.to.Morphs[i].Weight
		morphs[i].SetWeight(a + (b-a)*amount)
	}
}
