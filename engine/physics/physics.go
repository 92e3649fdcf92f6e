package physics

import (
	"log/slog"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/hierarchy"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
)

// Proxy is the physics engine as seen by the deformation core. Body indices
// match the model's rigid body arena.
type Proxy interface {
	// SetKinematicTransform moves a kinematic body to a model-space transform.
	SetKinematicTransform(body int, world mgl32.Mat4)

	// DynamicTransform retrieves a simulated body's model-space transform.
	// It reports false when the body has no simulated state.
	DynamicTransform(body int) (mgl32.Mat4, bool)
}

// bridge is the implementation of the Bridge interface.
type bridge struct {
	model     model.Model
	hierarchy hierarchy.Hierarchy
	proxy     Proxy
	logger    *slog.Logger

	offsets       []mgl32.Mat4
	offsetInverse []mgl32.Mat4
	pullOrder     []int
	seen          []bool
	chain         [1]int32
}

// Bridge synchronises bone transforms with rigid bodies. Kinematic bodies
// follow their bones; simulated bodies drive them.
type Bridge interface {
	// PushKinematic sends the transform of every bone-following body whose
	// Follow timing matches.
	//
	// Parameters:
	//   - timing: the simulation phase being prepared
	PushKinematic(timing model.FollowBoneType)

	// PullDynamic writes simulated body transforms back into their bones and
	// re-propagates the affected subtrees. Bodies are visited in bone
	// propagation order so a child bone is derived from its parent's pulled pose.
	//
	// Returns:
	//   - []int32: the bones that were updated, ascending
	PullDynamic() []int32

	// InitializeFeedback sends the transform of every body regardless of mode,
	// seeding the simulation from the current pose.
	InitializeFeedback()
}

var _ Bridge = &bridge{}

// NewBridge creates a new Bridge between the model and a physics proxy.
//
// Parameters:
//   - m: the validated model
//   - h: the hierarchy used to re-propagate pulled bones
//   - proxy: the physics engine
//   - options: a variadic list of BridgeBuilderOption functions
//
// Returns:
//   - Bridge: the configured bridge
func NewBridge(m model.Model, h hierarchy.Hierarchy, proxy Proxy, options ...BridgeBuilderOption) Bridge {
	b := &bridge{
		model:     m,
		hierarchy: h,
		proxy:     proxy,
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(b)
	}
	bodies := m.RigidBodies()
	b.offsets = make([]mgl32.Mat4, len(bodies))
	b.offsetInverse = make([]mgl32.Mat4, len(bodies))
	for i := range bodies {
		// An unset offset places the body on the bone.
		b.offsets[i] = bodies[i].Offset
		if b.offsets[i] == (mgl32.Mat4{}) {
			b.offsets[i] = mgl32.Ident4()
		}
		b.offsetInverse[i] = common.InverseRigid(b.offsets[i])
	}
	b.seen = make([]bool, len(m.Bones()))
	b.pullOrder = pullOrder(bodies, h.Order(), len(m.Bones()))
	return b
}

// pullOrder lists the simulated bodies sorted by the propagation rank of their bone.
func pullOrder(bodies []model.RigidBody, order []int32, boneCount int) []int {
	rank := make([]int, boneCount)
	for r, i := range order {
		rank[i] = r
	}
	var out []int
	for i := range bodies {
		if bodies[i].Mode == model.RigidBodyFollowBone || bodies[i].BoneIndex == model.NoBone {
			continue
		}
		out = append(out, i)
	}
	slices.SortStableFunc(out, func(a, c int) int {
		return rank[bodies[a].BoneIndex] - rank[bodies[c].BoneIndex]
	})
	return out
}

func (b *bridge) bodyTransform(i int) mgl32.Mat4 {
	rb := &b.model.RigidBodies()[i]
	return b.model.Bone(rb.BoneIndex).SkinningTransform().Mul4(b.offsets[i])
}

func (b *bridge) PushKinematic(timing model.FollowBoneType) {
	bodies := b.model.RigidBodies()
	for i := range bodies {
		rb := &bodies[i]
		if rb.Mode != model.RigidBodyFollowBone || rb.Follow != timing || rb.BoneIndex == model.NoBone {
			continue
		}
		b.proxy.SetKinematicTransform(i, b.bodyTransform(i))
	}
}

func (b *bridge) InitializeFeedback() {
	bodies := b.model.RigidBodies()
	for i := range bodies {
		b.proxy.SetKinematicTransform(i, b.bodyTransform(i))
	}
	b.logger.Debug("physics feedback initialized", "model", b.model.Name(), "bodies", len(bodies))
}

func (b *bridge) PullDynamic() []int32 {
	bodies := b.model.RigidBodies()
	bones := b.model.Bones()
	clear(b.seen)
	var changed []int32
	for _, i := range b.pullOrder {
		rb := &bodies[i]
		world, ok := b.proxy.DynamicTransform(i)
		if !ok {
			continue
		}
		bone := &bones[rb.BoneIndex]

		// body = boneWorld * T(-origin) * offset, so the bone's world is
		// body * offset^-1 * T(origin).
		boneWorld := world.Mul4(b.offsetInverse[i]).Mul4(mgl32.Translate3D(bone.Origin[0], bone.Origin[1], bone.Origin[2]))
		local := boneWorld
		offset := bone.Origin
		if parentWorld, parentOrigin, ok := b.hierarchy.ParentFrame(rb.BoneIndex); ok {
			local = common.InverseRigid(parentWorld).Mul4(boneWorld)
			offset = offset.Sub(parentOrigin)
		}

		bone.LocalOrientation = common.Orientation(local).Mul(bone.MorphOrientation.Conjugate()).Normalize()
		if rb.Mode == model.RigidBodyDynamic {
			bone.LocalTranslation = common.Translation(local).Sub(offset).Sub(bone.MorphTranslation)
		}
		bone.Dirty = true

		// Refresh the subtree now so bodies further down derive their bones
		// from this pulled pose.
		b.chain[0] = rb.BoneIndex
		b.hierarchy.Propagate(b.chain[:])
		if !b.seen[rb.BoneIndex] {
			b.seen[rb.BoneIndex] = true
			changed = append(changed, rb.BoneIndex)
		}
	}
	slices.Sort(changed)
	return changed
}
