package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Joint is one rotatable link of an IK chain.
type Joint struct {
	BoneIndex int32

	// HasLimits enables the per-axis Euler XYZ limits, in radians.
	HasLimits bool
	Lower     mgl32.Vec3
	Upper     mgl32.Vec3
}

// HingeAxis returns the only axis whose limits are open, if exactly one is.
//
// Returns:
//   - int: the axis index 0..2
//   - bool: true when the joint is a single-axis hinge
func (j Joint) HingeAxis() (int, bool) {
	if !j.HasLimits {
		return 0, false
	}
	axis, open := 0, 0
	for i := range 3 {
		if j.Lower[i] != 0 || j.Upper[i] != 0 {
			axis = i
			open++
		}
	}
	return axis, open == 1
}

// Constraint is an inverse-kinematics chain pulling EffectorBone toward TargetBone.
type Constraint struct {
	Name         string
	TargetBone   int32
	EffectorBone int32

	// Joints run from the effector's parent toward the chain root.
	Joints []Joint

	Iterations int
	Threshold  float32

	// AngleLimit caps the rotation of a single joint step in radians; 0 means unlimited.
	AngleLimit float32

	Enabled bool
}

// ChainRoot returns the joint closest to the hierarchy root, or the effector
// for a chain without joints.
func (c *Constraint) ChainRoot() int32 {
	if len(c.Joints) == 0 {
		return c.EffectorBone
	}
	return c.Joints[len(c.Joints)-1].BoneIndex
}
