package common

import (
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Epsilon is the tolerance used when deciding whether a rotation or a vector is degenerate.
const Epsilon = 1e-6

var (
	// AxisX is the unit X axis.
	AxisX = mgl32.Vec3{1, 0, 0}
	// AxisY is the unit Y axis.
	AxisY = mgl32.Vec3{0, 1, 0}
	// AxisZ is the unit Z axis.
	AxisZ = mgl32.Vec3{0, 0, 1}
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// ComposeTransform builds a rigid 4x4 transform from a translation and an orientation.
// The matrix is column-major and equals T(translation) * R(orientation).
//
// Parameters:
//   - translation: the translation component
//   - orientation: the rotation component (normalized by the caller)
//
// Returns:
//   - mgl32.Mat4: the composed transform
func ComposeTransform(translation mgl32.Vec3, orientation mgl32.Quat) mgl32.Mat4 {
	m := orientation.Mat4()
	m[12], m[13], m[14] = translation[0], translation[1], translation[2]
	return m
}

// Translation returns the translation column of a column-major transform.
//
// Parameters:
//   - m: the transform
//
// Returns:
//   - mgl32.Vec3: the translation component
func Translation(m mgl32.Mat4) mgl32.Vec3 {
	return mgl32.Vec3{m[12], m[13], m[14]}
}

// Orientation extracts the rotation of a rigid transform as a unit quaternion.
//
// Parameters:
//   - m: the transform, assumed free of scale and shear
//
// Returns:
//   - mgl32.Quat: the normalized rotation
func Orientation(m mgl32.Mat4) mgl32.Quat {
	return mgl32.Mat4ToQuat(m).Normalize()
}

// InverseRigid inverts a rotation+translation transform without a general 4x4 inverse.
//
// Parameters:
//   - m: the rigid transform to invert
//
// Returns:
//   - mgl32.Mat4: the inverse transform
func InverseRigid(m mgl32.Mat4) mgl32.Mat4 {
	r := m.Mat3().Transpose()
	t := Translation(m)
	inv := r.Mat4()
	it := r.Mul3x1(t).Mul(-1)
	inv[12], inv[13], inv[14] = it[0], it[1], it[2]
	return inv
}

// ProjectOntoAxis keeps only the twist of q around axis, discarding any swing.
// Used for fixed-axis bones, whose rotation is constrained to a single axis.
//
// Parameters:
//   - q: the rotation to project
//   - axis: the unit axis to keep
//
// Returns:
//   - mgl32.Quat: the twist component of q around axis, or identity when degenerate
func ProjectOntoAxis(q mgl32.Quat, axis mgl32.Vec3) mgl32.Quat {
	p := axis.Mul(q.V.Dot(axis))
	twist := mgl32.Quat{W: q.W, V: p}
	if twist.Len() < Epsilon {
		return mgl32.QuatIdent()
	}
	return twist.Normalize()
}

// QuatFromEulerXYZ builds a rotation whose matrix equals Rx(e.X) * Ry(e.Y) * Rz(e.Z).
//
// Parameters:
//   - e: the angles in radians
//
// Returns:
//   - mgl32.Quat: the rotation
func QuatFromEulerXYZ(e mgl32.Vec3) mgl32.Quat {
	qx := mgl32.QuatRotate(e[0], AxisX)
	qy := mgl32.QuatRotate(e[1], AxisY)
	qz := mgl32.QuatRotate(e[2], AxisZ)
	return qx.Mul(qy).Mul(qz).Normalize()
}

// EulerXYZFromQuat decomposes q into angles matching QuatFromEulerXYZ.
// At the gimbal singularity the Z angle is folded into X.
//
// Parameters:
//   - q: the rotation to decompose
//
// Returns:
//   - mgl32.Vec3: the angles in radians
func EulerXYZFromQuat(q mgl32.Quat) mgl32.Vec3 {
	m := q.Normalize().Mat4()
	sy := mgl32.Clamp(m.At(0, 2), -1, 1)
	y := math32.Asin(sy)
	if math32.Abs(sy) < 1-Epsilon {
		x := math32.Atan2(-m.At(1, 2), m.At(2, 2))
		z := math32.Atan2(-m.At(0, 1), m.At(0, 0))
		return mgl32.Vec3{x, y, z}
	}
	x := math32.Atan2(m.At(2, 1), m.At(1, 1))
	return mgl32.Vec3{x, y, 0}
}

// SlerpFromIdentity scales a rotation by weight along the shortest arc.
//
// Parameters:
//   - q: the full rotation
//   - weight: the fraction of q to apply
//
// Returns:
//   - mgl32.Quat: slerp(identity, q, weight)
func SlerpFromIdentity(q mgl32.Quat, weight float32) mgl32.Quat {
	switch weight {
	case 0:
		return mgl32.QuatIdent()
	case 1:
		return q.Normalize()
	}
	return mgl32.QuatSlerp(mgl32.QuatIdent(), q, weight)
}

// LerpVec3 linearly interpolates between a and b.
func LerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// LerpVec4 linearly interpolates between a and b.
func LerpVec4(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return a.Add(b.Sub(a).Mul(t))
}
