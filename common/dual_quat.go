package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DualQuat is a unit dual quaternion encoding a rigid transform: Real holds the
// rotation and Dual holds half the translation multiplied by the rotation.
type DualQuat struct {
	Real mgl32.Quat
	Dual mgl32.Quat
}

// DualQuatFromTransform converts a rigid column-major transform into a dual quaternion.
//
// Parameters:
//   - m: the rigid transform (no scale or shear)
//
// Returns:
//   - DualQuat: the equivalent unit dual quaternion
func DualQuatFromTransform(m mgl32.Mat4) DualQuat {
	return DualQuatFromRotationTranslation(Orientation(m), Translation(m))
}

// DualQuatFromRotationTranslation builds a dual quaternion that rotates by r then translates by t.
//
// Parameters:
//   - r: the unit rotation
//   - t: the translation applied after the rotation
//
// Returns:
//   - DualQuat: the unit dual quaternion
func DualQuatFromRotationTranslation(r mgl32.Quat, t mgl32.Vec3) DualQuat {
	d := mgl32.Quat{W: 0, V: t}.Mul(r).Scale(0.5)
	return DualQuat{Real: r, Dual: d}
}

// AddScaled accumulates w*o into d, flipping o when it lies in the opposite
// hemisphere of d so the blend takes the shortest path.
func (d DualQuat) AddScaled(o DualQuat, w float32) DualQuat {
	if d.Real.Dot(o.Real) < 0 {
		w = -w
	}
	return DualQuat{
		Real: d.Real.Add(o.Real.Scale(w)),
		Dual: d.Dual.Add(o.Dual.Scale(w)),
	}
}

// Normalize returns the unit dual quaternion closest to d. A zero rotation part
// yields the identity transform.
func (d DualQuat) Normalize() DualQuat {
	n := d.Real.Len()
	if n < Epsilon {
		return DualQuat{Real: mgl32.QuatIdent()}
	}
	inv := 1 / n
	return DualQuat{Real: d.Real.Scale(inv), Dual: d.Dual.Scale(inv)}
}

// TransformPoint applies the rigid transform to a point.
func (d DualQuat) TransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	t := d.Dual.Mul(d.Real.Conjugate()).V.Mul(2)
	return d.Real.Rotate(p).Add(t)
}

// TransformNormal applies only the rotation part to a direction.
func (d DualQuat) TransformNormal(n mgl32.Vec3) mgl32.Vec3 {
	return d.Real.Rotate(n)
}
