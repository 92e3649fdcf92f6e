package hierarchy

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// hierarchy is the implementation of the Hierarchy interface.
type hierarchy struct {
	model    model.Model
	logger   *slog.Logger
	resolver OutsideParentResolver

	order   []int32
	touched []bool
}

// Hierarchy propagates local bone transforms into model-space world transforms.
// Bones are visited in a flat order computed once at construction in which every
// parent and inherent source precedes its dependents, so a frame never recurses.
type Hierarchy interface {
	// Propagate recomputes the world transform of every bone reachable from the
	// given roots through parent links or inherent bindings.
	//
	// Parameters:
	//   - roots: the bones whose local state changed
	Propagate(roots []int32)

	// PropagateAll recomputes every bone.
	PropagateAll()

	// PropagatePhase recomputes the bones whose TransformAfterPhysics flag
	// equals afterPhysics.
	//
	// Parameters:
	//   - afterPhysics: the phase to run
	PropagatePhase(afterPhysics bool)

	// PropagateChain recomputes only the listed bones, in propagation order.
	// Descendants not in the list keep their previous world transform.
	//
	// Parameters:
	//   - bones: the bones to recompute
	PropagateChain(bones []int32)

	// ParentFrame retrieves the world transform and rest origin a bone is
	// composed against: its outside parent when bound and resolvable, otherwise
	// its own parent.
	//
	// Parameters:
	//   - index: the bone index
	//
	// Returns:
	//   - mgl32.Mat4: the parent world transform
	//   - mgl32.Vec3: the parent rest origin
	//   - bool: false for root bones without an outside parent
	ParentFrame(index int32) (mgl32.Mat4, mgl32.Vec3, bool)

	// Order retrieves the precomputed propagation order.
	//
	// Returns:
	//   - []int32: bone indices, dependencies first
	Order() []int32
}

var _ Hierarchy = &hierarchy{}

// NewHierarchy creates a new Hierarchy for the given model.
//
// Parameters:
//   - m: the validated model whose bones are propagated
//   - options: a variadic list of HierarchyBuilderOption functions
//
// Returns:
//   - Hierarchy: the configured hierarchy
func NewHierarchy(m model.Model, options ...HierarchyBuilderOption) Hierarchy {
	h := &hierarchy{
		model:  m,
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(h)
	}
	h.order = buildOrder(m.Bones())
	h.touched = make([]bool, len(h.order))
	h.logger.Debug("bone propagation order built", "model", m.Name(), "bones", len(h.order))
	return h
}

// buildOrder returns a dependency-first order. Bones are visited by
// (TransformAfterPhysics, Layer, index) and each emits its parent and
// inherent source before itself. The model guarantees the graph is acyclic.
// Outside parents live in other models and add no edge here; the caller
// propagates the parent model first.
func buildOrder(bones []model.Bone) []int32 {
	keys := make([]int32, len(bones))
	for i := range keys {
		keys[i] = int32(i)
	}
	slices.SortStableFunc(keys, func(a, b int32) int {
		ba, bb := &bones[a], &bones[b]
		if ba.TransformAfterPhysics != bb.TransformAfterPhysics {
			if bb.TransformAfterPhysics {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(ba.Layer, bb.Layer); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	emitted := make([]bool, len(bones))
	order := make([]int32, 0, len(bones))
	var emit func(i int32)
	emit = func(i int32) {
		if emitted[i] {
			return
		}
		emitted[i] = true
		if p := bones[i].ParentIndex; p != model.NoBone {
			emit(p)
		}
		if s := bones[i].Inherent.SourceIndex; s != model.NoBone {
			emit(s)
		}
		order = append(order, i)
	}
	for _, i := range keys {
		emit(i)
	}
	return order
}

func (h *hierarchy) Order() []int32 {
	return h.order
}

func (h *hierarchy) Propagate(roots []int32) {
	bones := h.model.Bones()
	clear(h.touched)
	for _, r := range roots {
		if r >= 0 && int(r) < len(bones) {
			h.touched[r] = true
		}
	}
	for _, i := range h.order {
		b := &bones[i]
		if !h.touched[i] {
			if b.OutsideParent.Enabled() {
				h.touched[i] = true
			} else if p := b.ParentIndex; p != model.NoBone && h.touched[p] {
				h.touched[i] = true
			} else if s := b.Inherent.SourceIndex; b.Inherent.Enabled() && h.touched[s] {
				h.touched[i] = true
			} else {
				continue
			}
		}
		h.update(bones, i)
	}
	h.model.MarkBoundingBoxDirty()
}

func (h *hierarchy) PropagateAll() {
	bones := h.model.Bones()
	for _, i := range h.order {
		h.update(bones, i)
	}
	h.model.MarkBoundingBoxDirty()
}

func (h *hierarchy) PropagatePhase(afterPhysics bool) {
	bones := h.model.Bones()
	for _, i := range h.order {
		if bones[i].TransformAfterPhysics == afterPhysics {
			h.update(bones, i)
		}
	}
	h.model.MarkBoundingBoxDirty()
}

func (h *hierarchy) PropagateChain(chain []int32) {
	bones := h.model.Bones()
	clear(h.touched)
	for _, i := range chain {
		if i >= 0 && int(i) < len(bones) {
			h.touched[i] = true
		}
	}
	for _, i := range h.order {
		if h.touched[i] {
			h.update(bones, i)
		}
	}
	h.model.MarkBoundingBoxDirty()
}

// update recomputes one bone's derived state from its live state and its
// already-updated parent and inherent source.
func (h *hierarchy) update(bones []model.Bone, i int32) {
	b := &bones[i]

	translation := b.LocalTranslation.Add(b.MorphTranslation)
	var orientation mgl32.Quat
	if b.ConstraintActive {
		orientation = b.ConstraintOrientation
	} else {
		orientation = b.LocalOrientation.Mul(b.MorphOrientation)
	}

	if b.Inherent.Enabled() {
		src := &bones[b.Inherent.SourceIndex]
		c := b.Inherent.Coefficient
		if b.Inherent.Rotation {
			orientation = common.SlerpFromIdentity(src.InherentOrientation, c).Mul(orientation)
		}
		if b.Inherent.Translation {
			translation = translation.Add(src.InherentTranslation.Mul(c))
		}
	}
	if b.FixedAxis.Enabled {
		orientation = common.ProjectOntoAxis(orientation, b.FixedAxis.Axis)
	}
	orientation = orientation.Normalize()
	b.InherentTranslation = translation
	b.InherentOrientation = orientation

	offset := b.Origin
	if world, origin, ok := h.parentFrame(bones, b); ok {
		offset = offset.Sub(origin)
		b.World = world.Mul4(common.ComposeTransform(offset.Add(translation), orientation))
	} else {
		b.World = common.ComposeTransform(offset.Add(translation), orientation)
	}
	b.Dirty = false
}

func (h *hierarchy) ParentFrame(index int32) (mgl32.Mat4, mgl32.Vec3, bool) {
	bones := h.model.Bones()
	if index < 0 || int(index) >= len(bones) {
		return mgl32.Mat4{}, mgl32.Vec3{}, false
	}
	return h.parentFrame(bones, &bones[index])
}

// parentFrame falls back to the bone's own parent when the outside parent
// cannot be resolved.
func (h *hierarchy) parentFrame(bones []model.Bone, b *model.Bone) (mgl32.Mat4, mgl32.Vec3, bool) {
	if b.OutsideParent.Enabled() && h.resolver != nil {
		if world, origin, ok := h.resolver.ResolveOutsideParent(b.OutsideParent); ok {
			return world, origin, true
		}
	}
	if b.ParentIndex != model.NoBone {
		parent := &bones[b.ParentIndex]
		return parent.World, parent.Origin, true
	}
	return mgl32.Mat4{}, mgl32.Vec3{}, false
}
