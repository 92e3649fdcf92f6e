package morph

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
)

// DefaultMaxDepth is the default nesting limit of group and flip morphs.
const DefaultMaxDepth = 8

// ErrRecursionDepthExceeded is reported when group morphs nest deeper than the
// configured limit. The offending group contributes nothing for that frame.
var ErrRecursionDepthExceeded = errors.New("morph: group recursion depth exceeded")

// Result summarises one ApplyAll call.
type Result struct {
	// BonesChanged lists the bones whose morph transform was rewritten, ascending.
	// They need re-propagation.
	BonesChanged []int32

	// Applied counts the leaf morphs that were (re)applied.
	Applied int
}

type contribution struct {
	morph  int32
	weight float32
}

// blender is the implementation of the Blender interface.
type blender struct {
	model    model.Model
	logger   *slog.Logger
	maxDepth int

	// effective holds this frame's resolved weight of each leaf morph.
	effective []float32
	// previous holds the effective weight last applied.
	previous []float32
	pending  []contribution
	apply    []bool
	touched  []bool
}

// Blender resolves morph weights and writes their offsets into the model's
// vertex, bone and material morph state.
type Blender interface {
	// ApplyAll resolves group and flip weights, then applies leaf morphs.
	//
	// Parameters:
	//   - checkDirty: when true only morphs whose effective weight changed are applied;
	//     when false every morph is rebuilt from scratch
	//
	// Returns:
	//   - Result: the bones to re-propagate and the number of morphs applied
	ApplyAll(checkDirty bool) Result

	// SetWeight sets one morph's weight and marks it dirty when it changed.
	//
	// Parameters:
	//   - index: the morph index
	//   - weight: the new weight
	SetWeight(index int, weight float32)

	// SetWeightByName sets a morph's weight by name.
	//
	// Parameters:
	//   - name: the morph name
	//   - weight: the new weight
	//
	// Returns:
	//   - bool: false if no morph has that name
	SetWeightByName(name string, weight float32) bool

	// EffectiveWeight retrieves the last resolved weight of a leaf morph,
	// including contributions from group and flip morphs.
	//
	// Parameters:
	//   - index: the morph index
	//
	// Returns:
	//   - float32: the effective weight
	EffectiveWeight(index int) float32

	// ResetAll zeroes every weight and clears all morph output.
	ResetAll()
}

var _ Blender = &blender{}

// NewBlender creates a new Blender for the model's morphs.
//
// Parameters:
//   - m: the validated model
//   - options: a variadic list of BlenderBuilderOption functions
//
// Returns:
//   - Blender: the configured blender
func NewBlender(m model.Model, options ...BlenderBuilderOption) Blender {
	b := &blender{
		model:    m,
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range options {
		opt(b)
	}
	n := len(m.Morphs())
	b.effective = make([]float32, n)
	b.previous = make([]float32, n)
	b.apply = make([]bool, n)
	b.touched = make([]bool, len(m.Bones()))
	return b
}

func (b *blender) SetWeight(index int, weight float32) {
	morphs := b.model.Morphs()
	if index >= 0 && index < len(morphs) {
		morphs[index].SetWeight(weight)
	}
}

func (b *blender) SetWeightByName(name string, weight float32) bool {
	i, ok := b.model.FindMorph(name)
	if !ok {
		return false
	}
	b.SetWeight(int(i), weight)
	return true
}

func (b *blender) EffectiveWeight(index int) float32 {
	if index < 0 || index >= len(b.effective) {
		return 0
	}
	return b.effective[index]
}

func (b *blender) ResetAll() {
	b.model.ResetAllMorphs()
	clear(b.effective)
	clear(b.previous)
}

func (b *blender) ApplyAll(checkDirty bool) Result {
	morphs := b.model.Morphs()
	b.resolve(morphs)

	var res Result
	boneDirty, materialDirty := false, false
	for i := range morphs {
		mo := &morphs[i]
		b.apply[i] = false
		if mo.IsComposite() {
			continue
		}
		if checkDirty && !mo.Dirty && b.effective[i] == b.previous[i] {
			continue
		}
		b.apply[i] = true
		res.Applied++
		switch mo.Kind {
		case model.MorphKindBone:
			boneDirty = true
		case model.MorphKindMaterial:
			materialDirty = true
		}
	}

	if !checkDirty {
		b.model.VertexMorphState().Reset()
		clear(b.previous)
	}
	for i := range morphs {
		if !b.apply[i] {
			continue
		}
		switch morphs[i].Kind {
		case model.MorphKindVertex, model.MorphKindUV:
			b.applyVertex(&morphs[i], b.effective[i]-b.previous[i])
		}
	}
	if boneDirty || !checkDirty {
		res.BonesChanged = b.applyBones(morphs)
	}
	if materialDirty || !checkDirty {
		b.applyMaterials(morphs)
	}

	for i := range morphs {
		if b.apply[i] {
			b.previous[i] = b.effective[i]
			morphs[i].Dirty = false
		}
	}
	return res
}

// resolve fills effective with each leaf's own weight plus everything group
// and flip morphs push into it.
func (b *blender) resolve(morphs []model.Morph) {
	for i := range morphs {
		if morphs[i].IsComposite() {
			b.effective[i] = 0
		} else {
			b.effective[i] = morphs[i].Weight
		}
	}
	for i := range morphs {
		mo := &morphs[i]
		if !mo.IsComposite() {
			continue
		}
		b.pending = b.pending[:0]
		if err := b.expand(morphs, int32(i), mo.Weight, 0); err != nil {
			b.logger.Warn("group morph skipped", "morph", mo.Name, "error", err)
			continue
		}
		for _, c := range b.pending {
			b.effective[c.morph] += c.weight
		}
		mo.Dirty = false
	}
}

func (b *blender) expand(morphs []model.Morph, index int32, weight float32, depth int) error {
	if depth >= b.maxDepth {
		return ErrRecursionDepthExceeded
	}
	mo := &morphs[index]
	children := mo.Children
	if mo.Kind == model.MorphKindFlip {
		// A flip morph selects a single child by its weight; the child is
		// applied with its own multiplier.
		selected := int(float32(len(children)+1)*weight) - 1
		if selected < 0 || selected >= len(children) {
			return nil
		}
		children = children[selected : selected+1]
		weight = 1
	}
	for _, c := range children {
		w := weight * c.Weight
		if morphs[c.MorphIndex].IsComposite() {
			if err := b.expand(morphs, c.MorphIndex, w, depth+1); err != nil {
				return err
			}
			continue
		}
		b.pending = append(b.pending, contribution{morph: c.MorphIndex, weight: w})
	}
	return nil
}

func (b *blender) applyVertex(mo *model.Morph, delta float32) {
	if delta == 0 {
		return
	}
	state := b.model.VertexMorphState()
	for _, o := range mo.VertexOffsets {
		state.Position[o.VertexIndex] = state.Position[o.VertexIndex].Add(o.Position.Mul(delta))
	}
	for _, o := range mo.UVOffsets {
		uv := state.UV[o.Channel]
		uv[o.VertexIndex] = uv[o.VertexIndex].Add(o.Offset.Mul(delta))
	}
}

// applyBones rebuilds every bone's morph transform from all bone morphs.
func (b *blender) applyBones(morphs []model.Morph) []int32 {
	bones := b.model.Bones()
	clear(b.touched)
	var changed []int32
	for i := range morphs {
		if morphs[i].Kind != model.MorphKindBone {
			continue
		}
		for _, o := range morphs[i].BoneOffsets {
			if !b.touched[o.BoneIndex] {
				b.touched[o.BoneIndex] = true
				changed = append(changed, o.BoneIndex)
				bones[o.BoneIndex].MorphTranslation = mgl32.Vec3{}
				bones[o.BoneIndex].MorphOrientation = mgl32.QuatIdent()
			}
		}
	}
	for i := range morphs {
		w := b.effective[i]
		if morphs[i].Kind != model.MorphKindBone || w == 0 {
			continue
		}
		for _, o := range morphs[i].BoneOffsets {
			bone := &bones[o.BoneIndex]
			bone.MorphTranslation = bone.MorphTranslation.Add(o.Translation.Mul(w))
			bone.MorphOrientation = bone.MorphOrientation.Mul(common.SlerpFromIdentity(o.Orientation, w)).Normalize()
		}
	}
	for _, i := range changed {
		bones[i].Dirty = true
	}
	slices.Sort(changed)
	return changed
}

// applyMaterials rebuilds every material accumulator from all material morphs.
func (b *blender) applyMaterials(morphs []model.Morph) {
	states := b.model.MaterialStates()
	for i := range states {
		states[i].Reset()
	}
	for i := range morphs {
		w := b.effective[i]
		if morphs[i].Kind != model.MorphKindMaterial || w == 0 {
			continue
		}
		for _, o := range morphs[i].MaterialOffsets {
			if o.MaterialIndex == model.AllMaterials {
				for k := range states {
					combine(&states[k], o, w)
				}
				continue
			}
			combine(&states[o.MaterialIndex], o, w)
		}
	}
}

func combine(s *model.MaterialState, o model.MaterialOffset, w float32) {
	switch o.Operation {
	case model.MaterialMultiply:
		s.Mul = s.Mul.MulLerp(o.Params, w)
	case model.MaterialAdd:
		s.Add = s.Add.AddScaled(o.Params, w)
	}
}
