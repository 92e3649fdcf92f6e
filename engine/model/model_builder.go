package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithBones is an option builder that sets the bone arena of the Model.
// The slice is owned by the Model afterwards.
//
// Parameters:
//   - bones: the bones, parents referenced by index
//
// Returns:
//   - ModelBuilderOption: a function that applies the bones option to a model
func WithBones(bones ...Bone) ModelBuilderOption {
	return func(m *model) {
		m.bones = bones
	}
}

// WithVertices is an option builder that sets the vertices of the Model.
//
// Parameters:
//   - vertices: the rest-pose vertices
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertices option to a model
func WithVertices(vertices ...Vertex) ModelBuilderOption {
	return func(m *model) {
		m.vertices = vertices
	}
}

// WithMaterials is an option builder that sets the materials of the Model.
// Material vertex ranges must lie inside the vertex arena and must not overlap.
//
// Parameters:
//   - materials: the materials
//
// Returns:
//   - ModelBuilderOption: a function that applies the materials option to a model
func WithMaterials(materials ...Material) ModelBuilderOption {
	return func(m *model) {
		m.materials = materials
	}
}

// WithMorphs is an option builder that sets the morphs of the Model.
//
// Parameters:
//   - morphs: the morphs
//
// Returns:
//   - ModelBuilderOption: a function that applies the morphs option to a model
func WithMorphs(morphs ...Morph) ModelBuilderOption {
	return func(m *model) {
		m.morphs = morphs
	}
}

// WithConstraints is an option builder that sets the IK constraints of the Model.
//
// Parameters:
//   - constraints: the constraints, in solve order
//
// Returns:
//   - ModelBuilderOption: a function that applies the constraints option to a model
func WithConstraints(constraints ...Constraint) ModelBuilderOption {
	return func(m *model) {
		m.constraints = constraints
	}
}

// WithRigidBodies is an option builder that sets the physics body bindings of the Model.
//
// Parameters:
//   - bodies: the rigid bodies
//
// Returns:
//   - ModelBuilderOption: a function that applies the rigid bodies option to a model
func WithRigidBodies(bodies ...RigidBody) ModelBuilderOption {
	return func(m *model) {
		m.rigidBodies = bodies
	}
}
