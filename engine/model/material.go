package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// MaterialParams is the set of material parameters that material morphs can modulate.
type MaterialParams struct {
	Diffuse       mgl32.Vec4
	Specular      mgl32.Vec3
	SpecularPower float32
	Ambient       mgl32.Vec3
	EdgeColor     mgl32.Vec4
	EdgeSize      float32

	// TextureBlend, SphereBlend and ToonBlend are RGBA blend factors for the material textures.
	TextureBlend mgl32.Vec4
	SphereBlend  mgl32.Vec4
	ToonBlend    mgl32.Vec4
}

// IdentityMul returns parameters that leave a value unchanged under multiplication.
func IdentityMul() MaterialParams {
	return MaterialParams{
		Diffuse:       mgl32.Vec4{1, 1, 1, 1},
		Specular:      mgl32.Vec3{1, 1, 1},
		SpecularPower: 1,
		Ambient:       mgl32.Vec3{1, 1, 1},
		EdgeColor:     mgl32.Vec4{1, 1, 1, 1},
		EdgeSize:      1,
		TextureBlend:  mgl32.Vec4{1, 1, 1, 1},
		SphereBlend:   mgl32.Vec4{1, 1, 1, 1},
		ToonBlend:     mgl32.Vec4{1, 1, 1, 1},
	}
}

// MulLerp multiplies p component-wise by lerp(1, v, w).
//
// Parameters:
//   - v: the target multiplier
//   - w: the morph weight
//
// Returns:
//   - MaterialParams: the scaled parameters
func (p MaterialParams) MulLerp(v MaterialParams, w float32) MaterialParams {
	l4 := func(a, b mgl32.Vec4) mgl32.Vec4 {
		one := mgl32.Vec4{1, 1, 1, 1}
		f := one.Add(b.Sub(one).Mul(w))
		return mgl32.Vec4{a[0] * f[0], a[1] * f[1], a[2] * f[2], a[3] * f[3]}
	}
	l3 := func(a, b mgl32.Vec3) mgl32.Vec3 {
		one := mgl32.Vec3{1, 1, 1}
		f := one.Add(b.Sub(one).Mul(w))
		return mgl32.Vec3{a[0] * f[0], a[1] * f[1], a[2] * f[2]}
	}
	l1 := func(a, b float32) float32 {
		return a * (1 + (b-1)*w)
	}
	return MaterialParams{
		Diffuse:       l4(p.Diffuse, v.Diffuse),
		Specular:      l3(p.Specular, v.Specular),
		SpecularPower: l1(p.SpecularPower, v.SpecularPower),
		Ambient:       l3(p.Ambient, v.Ambient),
		EdgeColor:     l4(p.EdgeColor, v.EdgeColor),
		EdgeSize:      l1(p.EdgeSize, v.EdgeSize),
		TextureBlend:  l4(p.TextureBlend, v.TextureBlend),
		SphereBlend:   l4(p.SphereBlend, v.SphereBlend),
		ToonBlend:     l4(p.ToonBlend, v.ToonBlend),
	}
}

// AddScaled returns p + v*w component-wise.
//
// Parameters:
//   - v: the offset
//   - w: the morph weight
//
// Returns:
//   - MaterialParams: the offset parameters
func (p MaterialParams) AddScaled(v MaterialParams, w float32) MaterialParams {
	return MaterialParams{
		Diffuse:       p.Diffuse.Add(v.Diffuse.Mul(w)),
		Specular:      p.Specular.Add(v.Specular.Mul(w)),
		SpecularPower: p.SpecularPower + v.SpecularPower*w,
		Ambient:       p.Ambient.Add(v.Ambient.Mul(w)),
		EdgeColor:     p.EdgeColor.Add(v.EdgeColor.Mul(w)),
		EdgeSize:      p.EdgeSize + v.EdgeSize*w,
		TextureBlend:  p.TextureBlend.Add(v.TextureBlend.Mul(w)),
		SphereBlend:   p.SphereBlend.Add(v.SphereBlend.Mul(w)),
		ToonBlend:     p.ToonBlend.Add(v.ToonBlend.Mul(w)),
	}
}

// Material is a contiguous range of vertices sharing render parameters.
type Material struct {
	// Name is the material's identifier.
	Name string

	// VertexStart and VertexCount bound the material's vertex range.
	VertexStart int
	VertexCount int

	// Base holds the authored parameters.
	Base MaterialParams

	// BoneIndices caches the bones referenced by vertices in the range, ascending.
	// Rebuilt by Model.RebuildMaterialBoneSets.
	BoneIndices []int32
}

// MaterialState is the live morph accumulator for one material.
type MaterialState struct {
	Mul MaterialParams
	Add MaterialParams
}

// NewMaterialState returns an accumulator that leaves the base parameters unchanged.
func NewMaterialState() MaterialState {
	return MaterialState{Mul: IdentityMul()}
}

// Reset restores the identity accumulator.
func (s *MaterialState) Reset() {
	*s = NewMaterialState()
}

// Effective returns base*Mul + Add.
//
// Parameters:
//   - base: the authored parameters
//
// Returns:
//   - MaterialParams: the morphed parameters
func (s MaterialState) Effective(base MaterialParams) MaterialParams {
	return base.MulLerp(s.Mul, 1).AddScaled(s.Add, 1)
}
