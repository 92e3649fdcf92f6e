package skinning

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
)

// palette holds one frame's bone transforms. The entry past the last bone is
// the fallback identity every out-of-range reference resolves to.
type palette struct {
	matrices  []mgl32.Mat4
	rotations []mgl32.Quat
	duals     []common.DualQuat
}

func newPalette(bones int, rotations, duals bool) *palette {
	p := &palette{matrices: make([]mgl32.Mat4, bones+1)}
	if rotations {
		p.rotations = make([]mgl32.Quat, bones+1)
	}
	if duals {
		p.duals = make([]common.DualQuat, bones+1)
	}
	return p
}

// fill captures the skinning transform of every bone.
func (p *palette) fill(bones []model.Bone, fallback *model.Bone) {
	n := len(bones)
	for i := range bones {
		p.matrices[i] = bones[i].SkinningTransform()
	}
	p.matrices[n] = fallback.SkinningTransform()
	for i := range p.rotations {
		p.rotations[i] = common.Orientation(p.matrices[i])
	}
	for i := range p.duals {
		p.duals[i] = common.DualQuatFromTransform(p.matrices[i])
	}
}

func (p *palette) index(bone int32) int {
	if bone < 0 || int(bone) >= len(p.matrices)-1 {
		return len(p.matrices) - 1
	}
	return int(bone)
}

// skin deforms one rest-pose position and normal by the vertex's Deform.
// Weights are used exactly as authored.
func (p *palette) skin(d model.Deform, pos, normal mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	switch d := d.(type) {
	case model.BDEF1:
		m := &p.matrices[p.index(d.Bone)]
		return mgl32.TransformCoordinate(pos, *m), mgl32.TransformNormal(normal, *m)

	case model.BDEF2:
		m0 := &p.matrices[p.index(d.Bones[0])]
		m1 := &p.matrices[p.index(d.Bones[1])]
		w := d.Weight
		p0, n0 := mgl32.TransformCoordinate(pos, *m0), mgl32.TransformNormal(normal, *m0)
		p1, n1 := mgl32.TransformCoordinate(pos, *m1), mgl32.TransformNormal(normal, *m1)
		return p0.Mul(w).Add(p1.Mul(1 - w)), normalize(n0.Mul(w).Add(n1.Mul(1 - w)))

	case model.BDEF4:
		var outPos, outNormal mgl32.Vec3
		for k, b := range d.Bones {
			w := d.Weights[k]
			if w == 0 {
				continue
			}
			m := &p.matrices[p.index(b)]
			outPos = outPos.Add(mgl32.TransformCoordinate(pos, *m).Mul(w))
			outNormal = outNormal.Add(mgl32.TransformNormal(normal, *m).Mul(w))
		}
		return outPos, normalize(outNormal)

	case model.SDEF:
		i0, i1 := p.index(d.Bones[0]), p.index(d.Bones[1])
		w := d.Weight
		rot := mgl32.QuatSlerp(p.rotations[i1], p.rotations[i0], w)
		c0 := mgl32.TransformCoordinate(d.CR0, p.matrices[i0]).Mul(w)
		c1 := mgl32.TransformCoordinate(d.CR1, p.matrices[i1]).Mul(1 - w)
		return rot.Rotate(pos.Sub(d.C)).Add(c0).Add(c1), normalize(rot.Rotate(normal))

	case model.QDEF:
		var dq common.DualQuat
		for k, b := range d.Bones {
			if w := d.Weights[k]; w != 0 {
				dq = dq.AddScaled(p.duals[p.index(b)], w)
			}
		}
		dq = dq.Normalize()
		return dq.TransformPoint(pos), normalize(dq.TransformNormal(normal))
	}

	m := &p.matrices[len(p.matrices)-1]
	return mgl32.TransformCoordinate(pos, *m), mgl32.TransformNormal(normal, *m)
}

func normalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() < common.Epsilon {
		return v
	}
	return v.Normalize()
}

// bounds is an axis-aligned box that starts empty.
type bounds struct {
	min, max mgl32.Vec3
	empty    bool
}

func emptyBounds() bounds {
	inf := math32.Inf(1)
	return bounds{
		min:   mgl32.Vec3{inf, inf, inf},
		max:   mgl32.Vec3{-inf, -inf, -inf},
		empty: true,
	}
}

func (b *bounds) add(p mgl32.Vec3) {
	for i := range 3 {
		b.min[i] = math32.Min(b.min[i], p[i])
		b.max[i] = math32.Max(b.max[i], p[i])
	}
	b.empty = false
}

func (b *bounds) merge(o bounds) {
	if o.empty {
		return
	}
	b.add(o.min)
	b.add(o.max)
}
