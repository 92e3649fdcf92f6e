package morph

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
)

func vertexMorph(name string, offset mgl32.Vec3) model.Morph {
	return model.Morph{
		Name:          name,
		Kind:          model.MorphKindVertex,
		VertexOffsets: []model.VertexOffset{{VertexIndex: 0, Position: offset}},
	}
}

func newModel(t *testing.T, morphs ...model.Morph) model.Model {
	t.Helper()
	m, err := model.NewModel(
		model.WithBones(model.NewBone("root", model.NoBone, mgl32.Vec3{})),
		model.WithVertices(model.Vertex{}, model.Vertex{}),
		model.WithMaterials(
			model.Material{Name: "a", VertexStart: 0, VertexCount: 1, Base: model.MaterialParams{Diffuse: mgl32.Vec4{1, 1, 1, 1}}},
			model.Material{Name: "b", VertexStart: 1, VertexCount: 1, Base: model.MaterialParams{Diffuse: mgl32.Vec4{1, 1, 1, 1}}},
		),
		model.WithMorphs(morphs...),
	)
	require.NoError(t, err)
	return m
}

func TestGroupWeightScalesChildOffset(t *testing.T) {
	m := newModel(t,
		vertexMorph("leaf", mgl32.Vec3{2, 0, 0}),
		model.Morph{Name: "group", Kind: model.MorphKindGroup, Children: []model.MorphChild{{MorphIndex: 0, Weight: 1}}},
	)
	b := NewBlender(m)
	b.SetWeight(1, 0.5)

	res := b.ApplyAll(true)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.VertexMorphState().Position[0])
	assert.Equal(t, float32(0.5), b.EffectiveWeight(0))
	assert.False(t, m.HasAnyDirtyMorph())
}

func TestVertexOffsetsApplyIncrementally(t *testing.T) {
	m := newModel(t,
		vertexMorph("leaf", mgl32.Vec3{2, 0, 0}),
		model.Morph{Name: "group", Kind: model.MorphKindGroup, Children: []model.MorphChild{{MorphIndex: 0, Weight: 1}}},
	)
	b := NewBlender(m)
	b.SetWeight(1, 0.5)
	b.ApplyAll(true)

	require.True(t, b.SetWeightByName("leaf", 1))
	b.ApplyAll(true)
	assert.Equal(t, mgl32.Vec3{3, 0, 0}, m.VertexMorphState().Position[0])

	res := b.ApplyAll(true)
	assert.Zero(t, res.Applied)
	assert.Equal(t, mgl32.Vec3{3, 0, 0}, m.VertexMorphState().Position[0])

	b.ApplyAll(false)
	assert.Equal(t, mgl32.Vec3{3, 0, 0}, m.VertexMorphState().Position[0])

	assert.False(t, b.SetWeightByName("missing", 1))
}

func TestRecursionDepthExceededSkipsGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := newModel(t,
		vertexMorph("leaf", mgl32.Vec3{1, 0, 0}),
		model.Morph{Name: "inner", Kind: model.MorphKindGroup, Children: []model.MorphChild{{MorphIndex: 0, Weight: 1}}},
		model.Morph{Name: "outer", Kind: model.MorphKindGroup, Weight: 1, Dirty: true, Children: []model.MorphChild{{MorphIndex: 1, Weight: 1}}},
	)
	b := NewBlender(m, WithLogger(logger), WithMaxDepth(1))

	b.ApplyAll(true)
	assert.Equal(t, mgl32.Vec3{}, m.VertexMorphState().Position[0])
	assert.Contains(t, buf.String(), ErrRecursionDepthExceeded.Error())
	assert.Contains(t, buf.String(), "outer")
	assert.True(t, m.Morphs()[2].Dirty)
}

func TestNestedGroupsMultiplyWeights(t *testing.T) {
	m := newModel(t,
		vertexMorph("leaf", mgl32.Vec3{4, 0, 0}),
		model.Morph{Name: "inner", Kind: model.MorphKindGroup, Children: []model.MorphChild{{MorphIndex: 0, Weight: 0.5}}},
		model.Morph{Name: "outer", Kind: model.MorphKindGroup, Children: []model.MorphChild{{MorphIndex: 1, Weight: 0.5}}},
	)
	b := NewBlender(m)
	b.SetWeight(2, 1)
	b.ApplyAll(true)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.VertexMorphState().Position[0])
}

func TestFlipSelectsOneChild(t *testing.T) {
	m := newModel(t,
		vertexMorph("first", mgl32.Vec3{1, 0, 0}),
		vertexMorph("second", mgl32.Vec3{0, 1, 0}),
		model.Morph{Name: "flip", Kind: model.MorphKindFlip, Children: []model.MorphChild{
			{MorphIndex: 0, Weight: 1},
			{MorphIndex: 1, Weight: 0.5},
		}},
	)
	b := NewBlender(m)
	b.SetWeight(2, 0.9)
	b.ApplyAll(true)
	assert.Equal(t, mgl32.Vec3{0, 0.5, 0}, m.VertexMorphState().Position[0])

	b.SetWeight(2, 0.4)
	b.ApplyAll(true)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.VertexMorphState().Position[0])

	b.SetWeight(2, 0.1)
	b.ApplyAll(true)
	assert.Equal(t, mgl32.Vec3{}, m.VertexMorphState().Position[0])
}

func TestUVMorphTargetsChannel(t *testing.T) {
	m := newModel(t, model.Morph{
		Name: "uv", Kind: model.MorphKindUV,
		UVOffsets: []model.UVOffset{{VertexIndex: 1, Channel: 2, Offset: mgl32.Vec4{1, 2, 3, 4}}},
	})
	b := NewBlender(m)
	b.SetWeight(0, 0.5)
	b.ApplyAll(true)
	assert.Equal(t, mgl32.Vec4{0.5, 1, 1.5, 2}, m.VertexMorphState().UV[2][1])
	assert.Equal(t, mgl32.Vec4{}, m.VertexMorphState().UV[0][1])
}

func TestBoneMorphReportsChangedBones(t *testing.T) {
	m := newModel(t, model.Morph{
		Name: "nod", Kind: model.MorphKindBone,
		BoneOffsets: []model.BoneOffset{{
			BoneIndex:   0,
			Translation: mgl32.Vec3{0, 2, 0},
			Orientation: mgl32.QuatRotate(mgl32.DegToRad(90), common.AxisZ),
		}},
	})
	b := NewBlender(m)
	b.SetWeight(0, 0.5)
	res := b.ApplyAll(true)

	assert.Equal(t, []int32{0}, res.BonesChanged)
	bone := m.Bones()[0]
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, bone.MorphTranslation)
	assert.True(t, mgl32.QuatRotate(mgl32.DegToRad(45), common.AxisZ).ApproxEqualThreshold(bone.MorphOrientation, 1e-5))
	assert.True(t, bone.Dirty)

	res = b.ApplyAll(true)
	assert.Empty(t, res.BonesChanged)
}

func TestMaterialMorphOperations(t *testing.T) {
	m := newModel(t,
		model.Morph{Name: "fade", Kind: model.MorphKindMaterial, MaterialOffsets: []model.MaterialOffset{{
			MaterialIndex: model.AllMaterials,
			Operation:     model.MaterialMultiply,
			Params:        model.MaterialParams{Diffuse: mgl32.Vec4{0, 0, 0, 0}},
		}}},
		model.Morph{Name: "edge", Kind: model.MorphKindMaterial, MaterialOffsets: []model.MaterialOffset{{
			MaterialIndex: 1,
			Operation:     model.MaterialAdd,
			Params:        model.MaterialParams{EdgeSize: 2},
		}}},
	)
	b := NewBlender(m)
	b.SetWeight(0, 0.5)
	b.SetWeight(1, 1)
	b.ApplyAll(true)

	mats := m.Materials()
	states := m.MaterialStates()
	a := states[0].Effective(mats[0].Base)
	c := states[1].Effective(mats[1].Base)
	assert.InDelta(t, 0.5, a.Diffuse[3], 1e-6)
	assert.InDelta(t, 0.5, c.Diffuse[0], 1e-6)
	assert.InDelta(t, 0, a.EdgeSize, 1e-6)
	assert.InDelta(t, 2, c.EdgeSize, 1e-6)
}

func TestResetAll(t *testing.T) {
	m := newModel(t, vertexMorph("leaf", mgl32.Vec3{1, 0, 0}))
	b := NewBlender(m)
	b.SetWeight(0, 1)
	b.ApplyAll(true)
	b.ResetAll()
	assert.Equal(t, mgl32.Vec3{}, m.VertexMorphState().Position[0])
	assert.Zero(t, m.Morphs()[0].Weight)

	b.SetWeight(0, 1)
	b.ApplyAll(true)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.VertexMorphState().Position[0])
}
