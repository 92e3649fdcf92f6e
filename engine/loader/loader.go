package loader

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
)

// Asset is a model built from a glTF document together with its triangle
// index buffer, which the deformation core itself does not keep.
type Asset struct {
	Model   model.Model
	Indices []uint32
}

// loader is the implementation of the Loader interface.
type loader struct {
	logger *slog.Logger
	name   string
	skin   int
}

// Loader builds rigged models from glTF 2.0 files. The selected skin's joints
// become bones, JOINTS_0/WEIGHTS_0 become BDEF1/2/4 deforms, each primitive
// becomes a material range and POSITION morph targets become vertex morphs.
type Loader interface {
	// Load reads a .gltf or .glb file.
	//
	// Parameters:
	//   - path: the file path
	//
	// Returns:
	//   - *Asset: the validated model and its indices
	//   - error: an error if the file cannot be parsed or the model is invalid
	Load(path string) (*Asset, error)

	// LoadReader reads a glTF JSON or GLB document from r.
	//
	// Parameters:
	//   - r: the document
	//   - baseDir: the directory external buffer URIs resolve against
	//
	// Returns:
	//   - *Asset: the validated model and its indices
	//   - error: an error if the document cannot be parsed or the model is invalid
	LoadReader(r io.Reader, baseDir string) (*Asset, error)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions
//
// Returns:
//   - Loader: the configured loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *loader) Load(path string) (*Asset, error) {
	p := &gltfParser{}
	if err := p.parseFile(path); err != nil {
		return nil, err
	}
	name := l.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return l.build(p, name)
}

func (l *loader) LoadReader(r io.Reader, baseDir string) (*Asset, error) {
	p := &gltfParser{}
	if err := p.parseReader(r, baseDir); err != nil {
		return nil, err
	}
	return l.build(p, l.name)
}

// builder accumulates model arenas while walking the document.
type builder struct {
	p        *gltfParser
	doc      *gltfDocument
	global   []mgl32.Mat4
	parents  []int
	jointOf  map[int]int32
	bones    []model.Bone
	vertices []model.Vertex
	indices  []uint32
	mats     []model.Material
	morphs   []model.Morph
	morphKey map[[2]int]int
}

func (l *loader) build(p *gltfParser, name string) (*Asset, error) {
	doc := p.document
	b := &builder{
		p:        p,
		doc:      doc,
		jointOf:  make(map[int]int32),
		morphKey: make(map[[2]int]int),
	}
	if err := b.nodeTransforms(); err != nil {
		return nil, err
	}

	skin := -1
	if l.skin >= 0 && l.skin < len(doc.Skins) {
		skin = l.skin
		if err := b.skeleton(skin); err != nil {
			return nil, err
		}
	}

	for ni := range doc.Nodes {
		node := &doc.Nodes[ni]
		if node.Mesh == nil {
			continue
		}
		if *node.Mesh < 0 || *node.Mesh >= len(doc.Meshes) {
			return nil, fmt.Errorf("loader: node %d references missing mesh %d", ni, *node.Mesh)
		}
		skinned := skin >= 0 && node.Skin != nil && *node.Skin == skin
		if err := b.mesh(ni, *node.Mesh, skinned); err != nil {
			return nil, err
		}
	}

	m, err := model.NewModel(
		model.WithName(name),
		model.WithBones(b.bones...),
		model.WithVertices(b.vertices...),
		model.WithMaterials(b.mats...),
		model.WithMorphs(b.morphs...),
	)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	l.logger.Debug("glTF model loaded",
		"model", name, "bones", len(b.bones), "vertices", len(b.vertices),
		"materials", len(b.mats), "morphs", len(b.morphs))
	return &Asset{Model: m, Indices: b.indices}, nil
}

// nodeTransforms computes every node's model-space rest transform.
func (b *builder) nodeTransforms() error {
	nodes := b.doc.Nodes
	b.parents = make([]int, len(nodes))
	for i := range b.parents {
		b.parents[i] = -1
	}
	for i := range nodes {
		for _, c := range nodes[i].Children {
			if c < 0 || c >= len(nodes) || b.parents[c] != -1 {
				return fmt.Errorf("loader: node %d has invalid child %d", i, c)
			}
			b.parents[c] = i
		}
	}

	b.global = make([]mgl32.Mat4, len(nodes))
	done := make([]bool, len(nodes))
	var visit func(i, depth int) error
	visit = func(i, depth int) error {
		if done[i] {
			return nil
		}
		if depth > len(nodes) {
			return fmt.Errorf("loader: node %d is part of a cycle", i)
		}
		local := localTransform(&nodes[i])
		if p := b.parents[i]; p >= 0 {
			if err := visit(p, depth+1); err != nil {
				return err
			}
			local = b.global[p].Mul4(local)
		}
		b.global[i] = local
		done[i] = true
		return nil
	}
	for i := range nodes {
		if err := visit(i, 0); err != nil {
			return err
		}
	}
	return nil
}

func localTransform(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		return mgl32.Mat4(*n.Matrix)
	}
	m := mgl32.Ident4()
	if t := n.Translation; t != nil {
		m = mgl32.Translate3D(t[0], t[1], t[2])
	}
	if r := n.Rotation; r != nil {
		m = m.Mul4(mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}.Normalize().Mat4())
	}
	if s := n.Scale; s != nil {
		m = m.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}
	return m
}

// skeleton turns a skin's joints into bones. A bone's parent is its nearest
// ancestor node that is also a joint; its origin is the bind-pose position.
func (b *builder) skeleton(skinIndex int) error {
	skin := &b.doc.Skins[skinIndex]
	for i, node := range skin.Joints {
		if node < 0 || node >= len(b.doc.Nodes) {
			return fmt.Errorf("loader: skin %d joint %d references missing node %d", skinIndex, i, node)
		}
		b.jointOf[node] = int32(i)
	}

	var inverseBind []mgl32.Mat4
	if skin.InverseBindMatrices != nil {
		ibm, err := b.p.readMat4(*skin.InverseBindMatrices)
		if err != nil {
			return fmt.Errorf("loader: skin %d inverse bind matrices: %w", skinIndex, err)
		}
		inverseBind = ibm
	}

	seen := make(map[string]bool)
	b.bones = make([]model.Bone, len(skin.Joints))
	for i, node := range skin.Joints {
		parent := model.NoBone
		for a := b.parents[node]; a >= 0; a = b.parents[a] {
			if j, ok := b.jointOf[a]; ok {
				parent = j
				break
			}
		}
		origin := common.Translation(b.global[node])
		if i < len(inverseBind) {
			origin = common.Translation(inverseBind[i].Inv())
		}
		b.bones[i] = model.NewBone(uniqueName(seen, b.doc.Nodes[node].Name, "bone", i), parent, origin)
	}
	return nil
}

// mesh appends every triangle primitive of a mesh as one material range.
// Unskinned meshes are baked into model space with their node transform.
func (b *builder) mesh(nodeIndex, meshIndex int, skinned bool) error {
	mesh := &b.doc.Meshes[meshIndex]
	for pi := range mesh.Primitives {
		prim := &mesh.Primitives[pi]
		if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
			continue
		}
		posIndex, ok := prim.Attributes["POSITION"]
		if !ok {
			return fmt.Errorf("loader: mesh %d primitive %d has no POSITION", meshIndex, pi)
		}
		positions, err := b.p.readVec3(posIndex)
		if err != nil {
			return fmt.Errorf("loader: mesh %d primitive %d positions: %w", meshIndex, pi, err)
		}
		n := len(positions)
		start := len(b.vertices)

		normals, err := b.optionalVec3(prim, "NORMAL", n)
		if err != nil {
			return fmt.Errorf("loader: mesh %d primitive %d normals: %w", meshIndex, pi, err)
		}
		uvs := make([]mgl32.Vec2, n)
		if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
			if uvs, err = b.p.readVec2(idx); err != nil || len(uvs) != n {
				return fmt.Errorf("loader: mesh %d primitive %d uvs: %w", meshIndex, pi, attributeError(err))
			}
		}
		deforms, err := b.deforms(prim, n, skinned)
		if err != nil {
			return fmt.Errorf("loader: mesh %d primitive %d: %w", meshIndex, pi, err)
		}

		bake := !skinned
		world := b.global[nodeIndex]
		for i := range n {
			v := model.Vertex{
				Position:  positions[i],
				Normal:    normals[i],
				TexCoord:  uvs[i],
				EdgeScale: 1,
				Deform:    deforms[i],
			}
			if bake {
				v.Position = mgl32.TransformCoordinate(v.Position, world)
				v.Normal = mgl32.TransformNormal(v.Normal, world).Normalize()
			}
			b.vertices = append(b.vertices, v)
		}

		if prim.Indices != nil {
			idx, err := b.p.readUints(*prim.Indices, gltfAccessorTypeScalar)
			if err != nil {
				return fmt.Errorf("loader: mesh %d primitive %d indices: %w", meshIndex, pi, err)
			}
			for _, i := range idx {
				if int(i) >= n {
					return fmt.Errorf("loader: mesh %d primitive %d index %d: %w", meshIndex, pi, i, ErrInvalidAccessor)
				}
				b.indices = append(b.indices, uint32(start)+i)
			}
		} else {
			for i := range n {
				b.indices = append(b.indices, uint32(start+i))
			}
		}

		b.mats = append(b.mats, b.material(prim, mesh.Name, pi, start, n))
		if err := b.targets(mesh, meshIndex, prim, start, n); err != nil {
			return fmt.Errorf("loader: mesh %d primitive %d: %w", meshIndex, pi, err)
		}
	}
	return nil
}

func (b *builder) optionalVec3(prim *gltfPrimitive, semantic string, n int) ([]mgl32.Vec3, error) {
	idx, ok := prim.Attributes[semantic]
	if !ok {
		out := make([]mgl32.Vec3, n)
		for i := range out {
			out[i] = common.AxisY
		}
		return out, nil
	}
	out, err := b.p.readVec3(idx)
	if err != nil || len(out) != n {
		return nil, attributeError(err)
	}
	return out, nil
}

func attributeError(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: attribute count differs from POSITION", ErrInvalidAccessor)
}

// deforms converts up to four joint influences per vertex. Zero weights are
// dropped; two influences become BDEF2 with the first weight normalised
// against the pair, more stay BDEF4 with the weights as authored.
func (b *builder) deforms(prim *gltfPrimitive, n int, skinned bool) ([]model.Deform, error) {
	out := make([]model.Deform, n)
	jIdx, hasJoints := prim.Attributes["JOINTS_0"]
	wIdx, hasWeights := prim.Attributes["WEIGHTS_0"]
	if !skinned || !hasJoints || !hasWeights || len(b.bones) == 0 {
		return out, nil
	}
	joints, err := b.p.readUints(jIdx, gltfAccessorTypeVec4)
	if err != nil {
		return nil, fmt.Errorf("joints: %w", err)
	}
	weights, err := b.p.readVec4(wIdx)
	if err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	if len(joints) != n*4 || len(weights) != n {
		return nil, fmt.Errorf("joints/weights: %w", attributeError(nil))
	}

	boneCount := uint32(len(b.bones))
	for i := range n {
		var bones [4]int32
		var ws [4]float32
		k := 0
		for c := range 4 {
			w := weights[i][c]
			if w <= 0 {
				continue
			}
			j := joints[i*4+c]
			if j >= boneCount {
				return nil, fmt.Errorf("vertex %d joint %d: %w", i, j, ErrInvalidAccessor)
			}
			bones[k], ws[k] = int32(j), w
			k++
		}
		switch k {
		case 0:
			out[i] = model.BDEF1{Bone: int32(min(joints[i*4], boneCount-1))}
			continue
		case 1:
			if ws[0] == 1 {
				out[i] = model.BDEF1{Bone: bones[0]}
				continue
			}
		case 2:
			if ws[0]+ws[1] == 1 {
				out[i] = model.BDEF2{Bones: [2]int32{bones[0], bones[1]}, Weight: ws[0]}
				continue
			}
		}
		// Weights that do not sum to one are kept as authored.
		out[i] = model.BDEF4{Bones: bones, Weights: ws}
	}
	return out, nil
}

func (b *builder) material(prim *gltfPrimitive, meshName string, pi, start, n int) model.Material {
	params := model.MaterialParams{Diffuse: mgl32.Vec4{1, 1, 1, 1}, EdgeColor: mgl32.Vec4{0, 0, 0, 1}}
	name := fmt.Sprintf("%s_%d", meshName, pi)
	if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(b.doc.Materials) {
		gm := &b.doc.Materials[*prim.Material]
		if gm.Name != "" {
			name = gm.Name
		}
		if pbr := gm.PbrMetallicRoughness; pbr != nil && pbr.BaseColorFactor != nil {
			params.Diffuse = mgl32.Vec4(*pbr.BaseColorFactor)
		}
		if e := gm.EmissiveFactor; e != nil {
			params.Ambient = mgl32.Vec3(*e)
		}
	}
	return model.Material{Name: name, VertexStart: start, VertexCount: n, Base: params}
}

// targets folds a primitive's POSITION morph targets into per-mesh vertex
// morphs so a target shared by several primitives stays one morph.
func (b *builder) targets(mesh *gltfMesh, meshIndex int, prim *gltfPrimitive, start, n int) error {
	for t, target := range prim.Targets {
		idx, ok := target["POSITION"]
		if !ok {
			continue
		}
		deltas, err := b.p.readVec3(idx)
		if err != nil || len(deltas) != n {
			return fmt.Errorf("target %d: %w", t, attributeError(err))
		}
		key := [2]int{meshIndex, t}
		mi, ok := b.morphKey[key]
		if !ok {
			name := fmt.Sprintf("%s_morph_%d", mesh.Name, t)
			if t < len(mesh.Extras.TargetNames) && mesh.Extras.TargetNames[t] != "" {
				name = mesh.Extras.TargetNames[t]
			}
			var weight float32
			if t < len(mesh.Weights) {
				weight = mesh.Weights[t]
			}
			mi = len(b.morphs)
			b.morphKey[key] = mi
			b.morphs = append(b.morphs, model.Morph{Name: name, Kind: model.MorphKindVertex, Weight: weight, Dirty: true})
		}
		for i, d := range deltas {
			if d == (mgl32.Vec3{}) {
				continue
			}
			b.morphs[mi].VertexOffsets = append(b.morphs[mi].VertexOffsets,
				model.VertexOffset{VertexIndex: int32(start + i), Position: d})
		}
	}
	return nil
}

// uniqueName returns name, a generated fallback for empty names, or a
// suffixed variant when the name was already taken.
func uniqueName(seen map[string]bool, name, fallback string, index int) string {
	if name == "" {
		name = fmt.Sprintf("%s_%d", fallback, index)
	}
	candidate := name
	for n := 1; seen[candidate]; n++ {
		candidate = fmt.Sprintf("%s.%d", name, n)
	}
	seen[candidate] = true
	return candidate
}
