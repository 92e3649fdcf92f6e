package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanema/gween/ease"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/config"
	"github.com/Carmen-Shannon/oxy-rig/engine/hierarchy"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
	"github.com/Carmen-Shannon/oxy-rig/engine/motion"
	"github.com/Carmen-Shannon/oxy-rig/engine/skinning"
	"github.com/Carmen-Shannon/oxy-rig/engine/upload"
)

var quiet = slog.New(slog.DiscardHandler)

type countingProxy struct {
	pushes int
}

func (p *countingProxy) SetKinematicTransform(int, mgl32.Mat4) { p.pushes++ }

func (p *countingProxy) DynamicTransform(int) (mgl32.Mat4, bool) { return mgl32.Mat4{}, false }

type singleFrame struct {
	root motion.BoneSample
}

func (s singleFrame) BoneSample(name string, frame uint32) (motion.BoneSample, bool) {
	return s.root, name == "root" && frame == 0
}

func (singleFrame) MorphSample(name string, frame uint32) (float32, bool) {
	return 1, name == "lift" && frame == 0
}

func (singleFrame) ConstraintEnabled(string, uint32) (bool, bool) { return false, false }

func newRig(t *testing.T, bodies ...model.RigidBody) model.Model {
	t.Helper()
	m, err := model.NewModel(
		model.WithName("rig"),
		model.WithBones(
			model.NewBone("root", model.NoBone, mgl32.Vec3{}),
			model.NewBone("arm", 0, mgl32.Vec3{1, 1, 0}),
		),
		model.WithVertices(
			model.Vertex{Position: mgl32.Vec3{0, 1, 0}, Normal: common.AxisY, EdgeScale: 1, Deform: model.BDEF1{Bone: 0}},
			model.Vertex{Position: mgl32.Vec3{1, 1, 0}, Normal: common.AxisY, EdgeScale: 1, Deform: model.BDEF1{Bone: 1}},
		),
		model.WithMaterials(model.Material{
			Name: "skin", VertexStart: 0, VertexCount: 2,
			Base: model.MaterialParams{Diffuse: mgl32.Vec4{1, 1, 1, 1}, EdgeSize: 1},
		}),
		model.WithMorphs(model.Morph{
			Name:          "lift",
			Kind:          model.MorphKindVertex,
			VertexOffsets: []model.VertexOffset{{VertexIndex: 0, Position: mgl32.Vec3{0, 1, 0}}},
		}),
		model.WithRigidBodies(bodies...),
	)
	require.NoError(t, err)
	return m
}

func TestFrameSkinsMorphedPose(t *testing.T) {
	m := newRig(t)
	d := NewDeformer(m, WithWorkers(1), WithLogger(quiet))
	defer d.Close()

	require.True(t, d.SetMorphWeight("lift", 1))
	assert.False(t, d.SetMorphWeight("missing", 1))
	m.Bones()[0].SetLocalTransform(mgl32.Vec3{1, 0, 0}, mgl32.QuatIdent())

	stats := d.Frame(skinning.DrawTypeColor)

	front := d.Staging().Front()
	require.Len(t, front, 2)
	assert.Equal(t, [3]float32{1, 2, 0}, front[0].Position)
	assert.Equal(t, [3]float32{2, 1, 0}, front[1].Position)
	assert.Equal(t, 2, stats.Vertices)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, stats.Min)
	assert.Equal(t, mgl32.Vec3{2, 2, 0}, stats.Max)

	lo, hi := m.BoundingBox()
	assert.Equal(t, stats.Min, lo)
	assert.Equal(t, stats.Max, hi)
	assert.False(t, m.BoundingBoxDirty())
}

func TestStepwiseFrameMatchesFrame(t *testing.T) {
	a := newRig(t)
	b := newRig(t)
	da := NewDeformer(a, WithWorkers(1), WithLogger(quiet))
	db := NewDeformer(b, WithWorkers(1), WithLogger(quiet))
	defer da.Close()
	defer db.Close()

	for _, m := range []model.Model{a, b} {
		m.Bones()[1].SetLocalTransform(mgl32.Vec3{}, mgl32.QuatRotate(0.5, common.AxisZ))
	}

	da.Frame(skinning.DrawTypeEdge)

	db.ApplyMorphs(true)
	db.PropagateBones(nil)
	db.SolveConstraints()
	db.ComputeSkinning(skinning.DrawTypeEdge, config.DefaultEdgeScaleFactor)

	assert.Equal(t, da.Staging().Front(), db.Staging().Front())
}

func TestBindPoseRoundTrip(t *testing.T) {
	m := newRig(t)
	d := NewDeformer(m, WithWorkers(1), WithLogger(quiet))
	defer d.Close()

	m.Bones()[1].SetLocalTransform(mgl32.Vec3{0, 0.25, 0}, mgl32.QuatRotate(0.3, common.AxisX))
	d.SetMorphWeight("lift", 0.4)
	saved := d.SaveBindPose()

	m.Bones()[1].SetLocalTransform(mgl32.Vec3{5, 5, 5}, mgl32.QuatRotate(2, common.AxisY))
	d.SetMorphWeight("lift", 0.9)

	require.NoError(t, d.RestoreBindPose(saved))
	assert.Equal(t, saved, d.SaveBindPose())
	assert.ErrorIs(t, d.RestoreBindPose(&model.BindPose{}), model.ErrBindPoseMismatch)
}

func TestPhysicsStagesFollowConfig(t *testing.T) {
	body := model.RigidBody{Name: "chest", BoneIndex: 0, Mode: model.RigidBodyFollowBone, Follow: model.FollowBeforeSimulation}

	proxy := &countingProxy{}
	d := NewDeformer(newRig(t, body), WithWorkers(1), WithLogger(quiet), WithPhysicsProxy(proxy))
	assert.Equal(t, 1, proxy.pushes, "initial feedback")
	d.Frame(skinning.DrawTypeColor)
	assert.Equal(t, 2, proxy.pushes)
	assert.Empty(t, d.PullDynamic())
	d.Close()

	cfg := config.Default()
	cfg.PhysicsEnabled = false
	proxy = &countingProxy{}
	d = NewDeformer(newRig(t, body), WithConfig(cfg), WithWorkers(1), WithLogger(quiet), WithPhysicsProxy(proxy))
	d.Frame(skinning.DrawTypeColor)
	assert.Equal(t, 1, proxy.pushes)
	d.PushKinematic(model.FollowBeforeSimulation)
	assert.Equal(t, 2, proxy.pushes)
	d.Close()
}

func TestWithoutProxyPhysicsIsNoop(t *testing.T) {
	d := NewDeformer(newRig(t), WithWorkers(1), WithLogger(quiet))
	defer d.Close()

	d.PushKinematic(model.FollowAfterSimulation)
	assert.Nil(t, d.PullDynamic())
}

func TestSynchronizeAndTransition(t *testing.T) {
	m := newRig(t)
	d := NewDeformer(m, WithWorkers(1), WithLogger(quiet))
	defer d.Close()

	rest := d.SaveBindPose()
	n := d.SynchronizeFromMotion(singleFrame{root: motion.BoneSample{Translation: mgl32.Vec3{0, 2, 0}, Orientation: mgl32.QuatIdent()}}, 0, 0, motion.TimingBeforePhysics)
	assert.Equal(t, 1, n)
	assert.Equal(t, mgl32.Vec3{0, 2, 0}, m.Bone(0).LocalTranslation)
	assert.Equal(t, float32(1), m.Morphs()[0].Weight)

	assert.True(t, d.UpdateTransition(0.1), "no transition running")
	require.NoError(t, d.StartTransition(rest, 1, ease.Linear))
	assert.False(t, d.UpdateTransition(0.5))
	assert.True(t, m.Bone(0).LocalTranslation.ApproxEqualThreshold(mgl32.Vec3{0, 1, 0}, 1e-5))
	assert.True(t, d.UpdateTransition(0.5))
	assert.Equal(t, mgl32.Vec3{}, m.Bone(0).LocalTranslation)
	assert.Equal(t, float32(0), m.Morphs()[0].Weight)
}

func TestUploadPassesFrontSlot(t *testing.T) {
	d := NewDeformer(newRig(t), WithWorkers(2), WithLogger(quiet))
	defer d.Close()
	d.Frame(skinning.DrawTypeColor)

	var gotSlot, gotLen int
	h, err := d.Upload(upload.Func(func(slot int, data []byte) (upload.Handle, error) {
		gotSlot, gotLen = slot, len(data)
		return upload.Handle{Slot: slot, Size: len(data)}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, d.Staging().ActiveSlot(), gotSlot)
	assert.Equal(t, 2*skinning.SkinnedVertexSize, gotLen)
	assert.Equal(t, gotLen, h.Size)

	boom := errors.New("device lost")
	_, err = d.Upload(upload.Func(func(int, []byte) (upload.Handle, error) {
		return upload.Handle{}, boom
	}))
	assert.ErrorIs(t, err, boom)
}

func TestProfilerToggle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	cfg := config.Default()
	cfg.ProfilerInterval = config.Duration(time.Nanosecond)

	d := NewDeformer(newRig(t), WithWorkers(1), WithLogger(logger), WithConfig(cfg), WithProfiling(false))
	defer d.Close()
	d.Frame(skinning.DrawTypeColor)
	assert.NotContains(t, buf.String(), "[Profiler]")

	d.EnableProfiler()
	d.Frame(skinning.DrawTypeColor)
	assert.Contains(t, buf.String(), "[Profiler]")
	assert.Contains(t, buf.String(), "skinning:")

	d.DisableProfiler()
	buf.Reset()
	d.Frame(skinning.DrawTypeColor)
	assert.NotContains(t, buf.String(), "[Profiler]")
}

func TestProfilerFollowsConfiguredInterval(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	cfg := config.Default()
	cfg.ProfilerInterval = config.Duration(time.Nanosecond)

	d := NewDeformer(newRig(t), WithWorkers(1), WithLogger(logger), WithConfig(cfg))
	defer d.Close()
	d.Frame(skinning.DrawTypeColor)
	assert.Contains(t, buf.String(), "[Profiler]")
}

func TestOutsideParentFollowsOtherModel(t *testing.T) {
	actor := newRig(t)
	actorD := NewDeformer(actor, WithWorkers(1), WithLogger(quiet))
	defer actorD.Close()

	prop, err := model.NewModel(
		model.WithName("prop"),
		model.WithBones(model.NewBone("grip", model.NoBone, mgl32.Vec3{1, 1, 0})),
	)
	require.NoError(t, err)
	d := NewDeformer(prop, WithWorkers(1), WithLogger(quiet), WithOutsideParents(hierarchy.NewModelSet(actor)))
	defer d.Close()

	actor.Bones()[0].SetLocalTransform(mgl32.Vec3{0, 2, 0}, mgl32.QuatIdent())
	actorD.PropagateBones(nil)

	require.NoError(t, d.SetOutsideParent("grip", model.OutsideParent{Model: "rig", Bone: "arm"}))
	assert.Equal(t, mgl32.Vec3{1, 3, 0}, prop.Bones()[0].Position())
	assert.ErrorIs(t, d.SetOutsideParent("missing", model.OutsideParent{Model: "rig", Bone: "arm"}), model.ErrInvalidOutsideParent)
	assert.ErrorIs(t, d.SetOutsideParent("grip", model.OutsideParent{Model: "prop", Bone: "grip"}), model.ErrInvalidOutsideParent)

	assert.True(t, d.RemoveOutsideParent("grip"))
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, prop.Bones()[0].Position())
	assert.False(t, d.RemoveOutsideParent("grip"))
	assert.False(t, d.RemoveOutsideParent("missing"))
}
