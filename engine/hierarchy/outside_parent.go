package hierarchy

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-rig/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// OutsideParentResolver finds the current world transform of a bone that
// belongs to another model.
type OutsideParentResolver interface {
	// ResolveOutsideParent looks up the bone named by the binding.
	//
	// Parameters:
	//   - parent: the model and bone names
	//
	// Returns:
	//   - mgl32.Mat4: the bone's world transform
	//   - mgl32.Vec3: the bone's rest origin
	//   - bool: false if the model or bone is unknown
	ResolveOutsideParent(parent model.OutsideParent) (mgl32.Mat4, mgl32.Vec3, bool)
}

// ModelSet is an OutsideParentResolver over a set of models keyed by name.
// It is safe for concurrent use.
type ModelSet struct {
	mu     sync.RWMutex
	models map[string]model.Model
}

var _ OutsideParentResolver = &ModelSet{}

// NewModelSet creates a ModelSet holding the given models.
//
// Parameters:
//   - models: the models that may act as outside parents
//
// Returns:
//   - *ModelSet: the set
func NewModelSet(models ...model.Model) *ModelSet {
	s := &ModelSet{models: make(map[string]model.Model, len(models))}
	for _, m := range models {
		s.Add(m)
	}
	return s
}

// Add registers a model under its name, replacing any model of the same name.
func (s *ModelSet) Add(m model.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.Name()] = m
}

// Remove forgets the model with the given name.
func (s *ModelSet) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.models, name)
}

func (s *ModelSet) ResolveOutsideParent(parent model.OutsideParent) (mgl32.Mat4, mgl32.Vec3, bool) {
	s.mu.RLock()
	m, ok := s.models[parent.Model]
	s.mu.RUnlock()
	if !ok {
		return mgl32.Mat4{}, mgl32.Vec3{}, false
	}
	i, ok := m.FindBone(parent.Bone)
	if !ok {
		return mgl32.Mat4{}, mgl32.Vec3{}, false
	}
	b := m.Bone(i)
	return b.World, b.Origin, true
}
