package physics

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/hierarchy"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
)

type fakeProxy struct {
	kinematic map[int]mgl32.Mat4
	dynamic   map[int]mgl32.Mat4
}

func newFakeProxy() *fakeProxy {
	return &fakeProxy{kinematic: map[int]mgl32.Mat4{}, dynamic: map[int]mgl32.Mat4{}}
}

func (p *fakeProxy) SetKinematicTransform(body int, world mgl32.Mat4) {
	p.kinematic[body] = world
}

func (p *fakeProxy) DynamicTransform(body int) (mgl32.Mat4, bool) {
	m, ok := p.dynamic[body]
	return m, ok
}

func near(a, b float32) bool {
	return math32.Abs(a-b) < 1e-4
}

// assertQuat compares rotations with an absolute tolerance, treating q and -q as equal.
func assertQuat(t *testing.T, want, got mgl32.Quat) {
	t.Helper()
	if want.Dot(got) < 0 {
		got = got.Scale(-1)
	}
	assert.True(t, want.ApproxEqualFunc(got, near), "want %v, got %v", want, got)
}

func newRig(t *testing.T, bodies ...model.RigidBody) (model.Model, hierarchy.Hierarchy) {
	t.Helper()
	m, err := model.NewModel(
		model.WithBones(
			model.NewBone("root", model.NoBone, mgl32.Vec3{}),
			model.NewBone("hair", 0, mgl32.Vec3{0, 2, 0}),
			model.NewBone("tip", 1, mgl32.Vec3{0, 1, 0}),
		),
		model.WithRigidBodies(bodies...),
	)
	require.NoError(t, err)
	h := hierarchy.NewHierarchy(m)
	m.Bones()[0].SetLocalTransform(mgl32.Vec3{1, 0, 0}, mgl32.QuatRotate(0.4, common.AxisY))
	h.PropagateAll()
	return m, h
}

func TestPushKinematicHonoursTiming(t *testing.T) {
	offset := mgl32.Translate3D(0, 0.5, 0)
	m, h := newRig(t,
		model.RigidBody{Name: "before", BoneIndex: 1, Mode: model.RigidBodyFollowBone, Follow: model.FollowBeforeSimulation, Offset: offset},
		model.RigidBody{Name: "after", BoneIndex: 2, Mode: model.RigidBodyFollowBone, Follow: model.FollowAfterSimulation},
		model.RigidBody{Name: "sim", BoneIndex: 2, Mode: model.RigidBodyDynamic},
	)
	proxy := newFakeProxy()
	b := NewBridge(m, h, proxy)

	b.PushKinematic(model.FollowBeforeSimulation)
	require.Len(t, proxy.kinematic, 1)
	want := m.Bones()[1].SkinningTransform().Mul4(offset)
	assert.Equal(t, want, proxy.kinematic[0])

	b.PushKinematic(model.FollowAfterSimulation)
	assert.Len(t, proxy.kinematic, 2)
	assert.Equal(t, m.Bones()[2].SkinningTransform(), proxy.kinematic[1])
}

func TestInitializeFeedbackPushesEveryBody(t *testing.T) {
	m, h := newRig(t,
		model.RigidBody{BoneIndex: 1, Mode: model.RigidBodyFollowBone},
		model.RigidBody{BoneIndex: 2, Mode: model.RigidBodyDynamic},
		model.RigidBody{BoneIndex: 2, Mode: model.RigidBodyDynamicWithBonePosition},
	)
	proxy := newFakeProxy()
	NewBridge(m, h, proxy).InitializeFeedback()
	assert.Len(t, proxy.kinematic, 3)
}

func TestPullDynamicRecoversBoneTransform(t *testing.T) {
	offset := common.ComposeTransform(mgl32.Vec3{0, 0.5, 0.1}, mgl32.QuatRotate(0.3, common.AxisX))
	wantOrientation := mgl32.QuatRotate(0.8, common.AxisZ)
	wantTranslation := mgl32.Vec3{0.2, -0.1, 0.05}

	// Pose a reference rig to learn where the simulated body would be.
	ref, refH := newRig(t)
	ref.Bones()[1].SetLocalTransform(wantTranslation, wantOrientation)
	refH.PropagateAll()
	bodyWorld := ref.Bones()[1].SkinningTransform().Mul4(offset)

	m, h := newRig(t, model.RigidBody{BoneIndex: 1, Mode: model.RigidBodyDynamic, Offset: offset})
	proxy := newFakeProxy()
	proxy.dynamic[0] = bodyWorld

	changed := NewBridge(m, h, proxy).PullDynamic()
	assert.Equal(t, []int32{1}, changed)

	bone := m.Bones()[1]
	assertQuat(t, wantOrientation, bone.LocalOrientation)
	assert.True(t, wantTranslation.ApproxFuncEqual(bone.LocalTranslation, near), "got %v", bone.LocalTranslation)
	assert.True(t, ref.Bones()[2].World.ApproxFuncEqual(m.Bones()[2].World, near))
}

func TestPullDynamicDerivesChildFromPulledParent(t *testing.T) {
	hairOrientation := mgl32.QuatRotate(0.6, common.AxisZ)
	tipOrientation := mgl32.QuatRotate(-0.9, common.AxisX)
	tipTranslation := mgl32.Vec3{0.1, 0.2, -0.3}

	ref, refH := newRig(t)
	ref.Bones()[1].SetLocalTransform(mgl32.Vec3{0.3, 0, 0}, hairOrientation)
	ref.Bones()[2].SetLocalTransform(tipTranslation, tipOrientation)
	refH.PropagateAll()

	// The tip body is authored before the hair body.
	m, h := newRig(t,
		model.RigidBody{Name: "tip", BoneIndex: 2, Mode: model.RigidBodyDynamic},
		model.RigidBody{Name: "hair", BoneIndex: 1, Mode: model.RigidBodyDynamic},
	)
	proxy := newFakeProxy()
	proxy.dynamic[0] = ref.Bones()[2].SkinningTransform()
	proxy.dynamic[1] = ref.Bones()[1].SkinningTransform()

	changed := NewBridge(m, h, proxy).PullDynamic()
	assert.Equal(t, []int32{1, 2}, changed)

	live := m.Bones()
	assertQuat(t, tipOrientation, live[2].LocalOrientation)
	assert.True(t, tipTranslation.ApproxFuncEqual(live[2].LocalTranslation, near), "got %v", live[2].LocalTranslation)
	assert.True(t, ref.Bones()[1].World.ApproxFuncEqual(live[1].World, near))
	assert.True(t, ref.Bones()[2].World.ApproxFuncEqual(live[2].World, near), "want %v, got %v", ref.Bones()[2].Position(), live[2].Position())
}

func TestPullDynamicWithBonePositionKeepsTranslation(t *testing.T) {
	m, h := newRig(t, model.RigidBody{BoneIndex: 1, Mode: model.RigidBodyDynamicWithBonePosition})
	proxy := newFakeProxy()
	proxy.dynamic[0] = common.ComposeTransform(mgl32.Vec3{9, 9, 9}, mgl32.QuatRotate(0.5, common.AxisX))

	NewBridge(m, h, proxy).PullDynamic()
	assert.Equal(t, mgl32.Vec3{}, m.Bones()[1].LocalTranslation)
	assert.False(t, m.Bones()[1].LocalOrientation.ApproxEqual(mgl32.QuatIdent()))
}

func TestPullDynamicSkipsMissingBodies(t *testing.T) {
	m, h := newRig(t, model.RigidBody{BoneIndex: 1, Mode: model.RigidBodyDynamic})
	assert.Empty(t, NewBridge(m, h, newFakeProxy()).PullDynamic())
	assert.False(t, m.Bones()[1].Dirty)
}
