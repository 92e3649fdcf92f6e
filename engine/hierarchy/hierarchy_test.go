package hierarchy

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
)

func newModel(t *testing.T, bones ...model.Bone) model.Model {
	t.Helper()
	m, err := model.NewModel(model.WithBones(bones...))
	require.NoError(t, err)
	return m
}

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	near := func(a, b float32) bool { return a-b < 1e-5 && b-a < 1e-5 }
	assert.True(t, want.ApproxFuncEqual(got, near), "want %v, got %v", want, got)
}

func TestWorldIsParentTimesLocal(t *testing.T) {
	m := newModel(t,
		model.NewBone("root", model.NoBone, mgl32.Vec3{}),
		model.NewBone("child", 0, mgl32.Vec3{0, 1, 0}),
	)
	bones := m.Bones()
	bones[0].SetLocalTransform(mgl32.Vec3{}, mgl32.QuatRotate(mgl32.DegToRad(90), common.AxisZ))
	bones[1].SetLocalTransform(mgl32.Vec3{1, 0, 0}, mgl32.QuatRotate(0.3, common.AxisX))

	h := NewHierarchy(m)
	h.PropagateAll()

	local := common.ComposeTransform(mgl32.Vec3{1, 1, 0}, mgl32.QuatRotate(0.3, common.AxisX))
	assert.True(t, bones[0].World.Mul4(local).ApproxEqualThreshold(bones[1].World, 1e-5))
	assertVec3(t, mgl32.Vec3{-1, 1, 0}, bones[1].Position())
	assert.False(t, m.HasAnyDirtyBone())
	assert.True(t, m.BoundingBoxDirty())
}

func TestInherentRotationIsSphericallyScaled(t *testing.T) {
	bones := []model.Bone{
		model.NewBone("root", model.NoBone, mgl32.Vec3{}),
		model.NewBone("source", 0, mgl32.Vec3{}),
		model.NewBone("follower", 0, mgl32.Vec3{}),
	}
	bones[2].Inherent = model.InherentBinding{SourceIndex: 1, Coefficient: 0.5, Rotation: true, Translation: true}
	m := newModel(t, bones...)
	live := m.Bones()
	live[1].SetLocalTransform(mgl32.Vec3{0, 2, 0}, mgl32.QuatRotate(mgl32.DegToRad(90), common.AxisY))

	NewHierarchy(m).PropagateAll()

	want := mgl32.QuatRotate(mgl32.DegToRad(45), common.AxisY)
	assert.True(t, want.ApproxEqualThreshold(live[2].InherentOrientation, 1e-5))
	assertVec3(t, mgl32.Vec3{0, 1, 0}, live[2].InherentTranslation)
}

func TestOrderFollowsDependenciesThenPhaseAndLayer(t *testing.T) {
	bones := []model.Bone{
		model.NewBone("a", model.NoBone, mgl32.Vec3{}),
		model.NewBone("b", model.NoBone, mgl32.Vec3{}),
		model.NewBone("c", 0, mgl32.Vec3{}),
		model.NewBone("d", 1, mgl32.Vec3{}),
	}
	bones[0].Layer = 1
	bones[2].TransformAfterPhysics = true
	bones[3].Inherent = model.InherentBinding{SourceIndex: 0, Coefficient: 1, Rotation: true}

	h := NewHierarchy(newModel(t, bones...))
	assert.Equal(t, []int32{1, 0, 3, 2}, h.Order())
}

func TestPropagateTouchesOnlyReachableBones(t *testing.T) {
	bones := []model.Bone{
		model.NewBone("a", model.NoBone, mgl32.Vec3{}),
		model.NewBone("b", model.NoBone, mgl32.Vec3{}),
		model.NewBone("c", 0, mgl32.Vec3{0, 1, 0}),
		model.NewBone("d", 1, mgl32.Vec3{}),
	}
	bones[3].Inherent = model.InherentBinding{SourceIndex: 0, Coefficient: 1, Rotation: true}
	m := newModel(t, bones...)
	h := NewHierarchy(m)
	h.PropagateAll()

	live := m.Bones()
	live[0].SetLocalTransform(mgl32.Vec3{5, 0, 0}, mgl32.QuatRotate(1, common.AxisZ))
	live[1].World = mgl32.Mat4{}
	h.Propagate([]int32{0})

	assert.Equal(t, mgl32.Mat4{}, live[1].World)
	assertVec3(t, mgl32.Vec3{5, 0, 0}, live[0].Position())
	assert.True(t, mgl32.QuatRotate(1, common.AxisZ).ApproxEqualThreshold(live[3].InherentOrientation, 1e-5))
	assert.NotEqual(t, mgl32.Ident4(), live[2].World)
}

func TestPropagateChainSkipsUnlistedDescendants(t *testing.T) {
	m := newModel(t,
		model.NewBone("a", model.NoBone, mgl32.Vec3{}),
		model.NewBone("b", 0, mgl32.Vec3{0, 1, 0}),
		model.NewBone("c", 1, mgl32.Vec3{0, 2, 0}),
	)
	h := NewHierarchy(m)
	h.PropagateAll()
	live := m.Bones()
	before := live[2].World

	live[1].SetLocalTransform(mgl32.Vec3{}, mgl32.QuatRotate(1, common.AxisX))
	h.PropagateChain([]int32{1})
	assert.Equal(t, before, live[2].World)
	assert.False(t, live[1].Dirty)
}

func TestPropagatePhase(t *testing.T) {
	bones := []model.Bone{
		model.NewBone("a", model.NoBone, mgl32.Vec3{}),
		model.NewBone("b", model.NoBone, mgl32.Vec3{}),
	}
	bones[1].TransformAfterPhysics = true
	m := newModel(t, bones...)
	live := m.Bones()
	live[0].SetLocalTransform(mgl32.Vec3{1, 0, 0}, mgl32.QuatIdent())
	live[1].SetLocalTransform(mgl32.Vec3{2, 0, 0}, mgl32.QuatIdent())

	h := NewHierarchy(m)
	h.PropagatePhase(false)
	assertVec3(t, mgl32.Vec3{1, 0, 0}, live[0].Position())
	assertVec3(t, mgl32.Vec3{}, live[1].Position())

	h.PropagatePhase(true)
	assertVec3(t, mgl32.Vec3{2, 0, 0}, live[1].Position())
}

func TestFixedAxisKeepsTwistOnly(t *testing.T) {
	bones := []model.Bone{model.NewBone("a", model.NoBone, mgl32.Vec3{})}
	bones[0].FixedAxis = model.FixedAxis{Enabled: true, Axis: common.AxisY}
	m := newModel(t, bones...)
	live := m.Bones()
	live[0].SetLocalTransform(mgl32.Vec3{}, mgl32.QuatRotate(0.5, common.AxisX).Mul(mgl32.QuatRotate(0.3, common.AxisY)))

	NewHierarchy(m).PropagateAll()
	assertVec3(t, common.AxisY, mgl32.TransformNormal(common.AxisY, live[0].World))
}

func TestConstraintOrientationOverridesAnimation(t *testing.T) {
	m := newModel(t, model.NewBone("a", model.NoBone, mgl32.Vec3{}))
	live := m.Bones()
	live[0].SetLocalTransform(mgl32.Vec3{}, mgl32.QuatRotate(1, common.AxisX))
	live[0].ConstraintOrientation = mgl32.QuatRotate(0.25, common.AxisZ)
	live[0].ConstraintActive = true

	NewHierarchy(m).PropagateAll()
	assert.True(t, mgl32.QuatRotate(0.25, common.AxisZ).ApproxEqualThreshold(common.Orientation(live[0].World), 1e-5))
}

func TestOutsideParentReplacesParentWorld(t *testing.T) {
	stage, err := model.NewModel(
		model.WithName("stage"),
		model.WithBones(model.NewBone("hand", model.NoBone, mgl32.Vec3{1, 0, 0})),
	)
	require.NoError(t, err)
	stageH := NewHierarchy(stage)
	stage.Bones()[0].SetLocalTransform(mgl32.Vec3{0, 2, 0}, mgl32.QuatIdent())
	stageH.PropagateAll()

	prop, err := model.NewModel(
		model.WithName("prop"),
		model.WithBones(
			model.NewBone("grip", model.NoBone, mgl32.Vec3{1, 0.5, 0}),
			model.NewBone("tip", 0, mgl32.Vec3{1, 1.5, 0}),
		),
	)
	require.NoError(t, err)
	require.NoError(t, prop.SetOutsideParent(0, model.OutsideParent{Model: "stage", Bone: "hand"}))
	h := NewHierarchy(prop, WithOutsideParentResolver(NewModelSet(stage)))
	live := prop.Bones()

	h.PropagateAll()
	assertVec3(t, mgl32.Vec3{1, 2.5, 0}, live[0].Position())
	assertVec3(t, mgl32.Vec3{1, 3.5, 0}, live[1].Position())

	world, origin, ok := h.ParentFrame(0)
	require.True(t, ok)
	assert.Equal(t, stage.Bones()[0].World, world)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, origin)

	// A moved outside parent is picked up without marking the subject.
	stage.Bones()[0].SetLocalTransform(mgl32.Vec3{0, 3, 0}, mgl32.QuatIdent())
	stageH.PropagateAll()
	h.Propagate(nil)
	assertVec3(t, mgl32.Vec3{1, 3.5, 0}, live[0].Position())
	assertVec3(t, mgl32.Vec3{1, 4.5, 0}, live[1].Position())

	prop.RemoveOutsideParent(0)
	h.PropagateAll()
	assertVec3(t, mgl32.Vec3{1, 0.5, 0}, live[0].Position())
	assertVec3(t, mgl32.Vec3{1, 1.5, 0}, live[1].Position())
}

func TestUnresolvedOutsideParentFallsBackToOwnParent(t *testing.T) {
	bones := []model.Bone{
		model.NewBone("root", model.NoBone, mgl32.Vec3{}),
		model.NewBone("child", 0, mgl32.Vec3{0, 1, 0}),
	}
	bones[1].OutsideParent = model.OutsideParent{Model: "missing", Bone: "hand"}
	m := newModel(t, bones...)
	live := m.Bones()
	live[0].SetLocalTransform(mgl32.Vec3{2, 0, 0}, mgl32.QuatIdent())

	h := NewHierarchy(m, WithOutsideParentResolver(NewModelSet()))
	h.PropagateAll()
	assertVec3(t, mgl32.Vec3{2, 1, 0}, live[1].Position())

	_, _, ok := h.ParentFrame(0)
	assert.False(t, ok)
}
