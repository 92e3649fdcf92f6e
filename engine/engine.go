package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tanema/gween/ease"

	"github.com/Carmen-Shannon/oxy-rig/engine/config"
	"github.com/Carmen-Shannon/oxy-rig/engine/constraint"
	"github.com/Carmen-Shannon/oxy-rig/engine/hierarchy"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
	"github.com/Carmen-Shannon/oxy-rig/engine/morph"
	"github.com/Carmen-Shannon/oxy-rig/engine/motion"
	"github.com/Carmen-Shannon/oxy-rig/engine/physics"
	"github.com/Carmen-Shannon/oxy-rig/engine/profiler"
	"github.com/Carmen-Shannon/oxy-rig/engine/skinning"
	"github.com/Carmen-Shannon/oxy-rig/engine/upload"
)

// deformer implements the Deformer interface.
// Owns one model and every engine that mutates it.
type deformer struct {
	mu sync.Mutex

	model      model.Model
	hierarchy  hierarchy.Hierarchy
	solver     constraint.Solver
	blender    morph.Blender
	skinner    skinning.Skinner
	sync       motion.Synchronizer
	bridge     physics.Bridge
	transition *motion.Transition

	config           config.Config
	logger           *slog.Logger
	proxy            physics.Proxy
	resolver         hierarchy.OutsideParentResolver
	profiler         *profiler.Profiler
	profilingEnabled bool
	profilingSet     bool
	workers          int

	frames uint64
}

// Deformer is the main entry point for deforming a model.
// It runs bone propagation, IK, morph blending, physics sync and skinning for
// one model. Every method is serialised by an internal mutex, so edits and
// frame computations never overlap.
type Deformer interface {
	// Model retrieves the deformed model.
	//
	// Returns:
	//   - model.Model: the model
	Model() model.Model

	// PropagateBones recomputes world transforms below the given roots.
	//
	// Parameters:
	//   - roots: the changed bones; nil or empty recomputes every bone
	PropagateBones(roots []int32)

	// SolveConstraints runs every IK constraint in declaration order.
	//
	// Returns:
	//   - []constraint.Result: one result per constraint
	SolveConstraints() []constraint.Result

	// ApplyMorphs blends morph weights into vertex, bone and material state and
	// re-propagates bones moved by bone morphs.
	//
	// Parameters:
	//   - checkDirty: if true, only changed morphs are reapplied
	//
	// Returns:
	//   - morph.Result: the bones moved and morphs applied
	ApplyMorphs(checkDirty bool) morph.Result

	// ComputeSkinning deforms every vertex into the back staging slot and publishes it.
	//
	// Parameters:
	//   - drawType: DrawTypeEdge to also compute outline positions
	//   - edgeScaleFactor: the global outline multiplier
	//
	// Returns:
	//   - skinning.FrameStats: counts, published slot and bounds
	ComputeSkinning(drawType skinning.DrawType, edgeScaleFactor float32) skinning.FrameStats

	// Frame runs a full update: morphs, before-physics propagation, IK, the
	// physics sync stages when enabled, after-physics propagation and skinning.
	// Morphs run first so IK starts from the morphed pose.
	//
	// Parameters:
	//   - drawType: the skinning draw type
	//
	// Returns:
	//   - skinning.FrameStats: the skinning stats
	Frame(drawType skinning.DrawType) skinning.FrameStats

	// SetMorphWeight sets a morph weight by name.
	//
	// Parameters:
	//   - name: the morph name
	//   - weight: the new weight
	//
	// Returns:
	//   - bool: false if no morph has that name
	SetMorphWeight(name string, weight float32) bool

	// SetOutsideParent parents a bone to a bone of another model and
	// re-propagates its subtree. The other model must be known to the resolver
	// given with WithOutsideParents.
	//
	// Parameters:
	//   - bone: the subject bone name
	//   - parent: the model and bone names of the new parent
	//
	// Returns:
	//   - error: model.ErrInvalidOutsideParent if the bone is unknown or the binding is invalid
	SetOutsideParent(bone string, parent model.OutsideParent) error

	// RemoveOutsideParent restores a bone's own parent and re-propagates its subtree.
	//
	// Parameters:
	//   - bone: the subject bone name
	//
	// Returns:
	//   - bool: false if the bone is unknown or had no outside parent
	RemoveOutsideParent(bone string) bool

	// SaveBindPose snapshots the live bone and morph state.
	//
	// Returns:
	//   - *model.BindPose: the snapshot
	SaveBindPose() *model.BindPose

	// RestoreBindPose writes a snapshot back into the model.
	//
	// Parameters:
	//   - pose: a snapshot from this model
	//
	// Returns:
	//   - error: model.ErrBindPoseMismatch if the snapshot does not fit
	RestoreBindPose(pose *model.BindPose) error

	// SynchronizeFromMotion copies sampled motion state into the model.
	//
	// Parameters:
	//   - src: the motion evaluator
	//   - frameIndex: the whole frame
	//   - amount: the fraction toward the next frame
	//   - timing: which bone phase to update
	//
	// Returns:
	//   - int: the number of bones updated
	SynchronizeFromMotion(src motion.Source, frameIndex uint32, amount float32, timing motion.SimulationTiming) int

	// StartTransition begins an eased cross-fade from the live pose into target.
	//
	// Parameters:
	//   - target: the pose to arrive at
	//   - duration: the blend length in seconds
	//   - easing: the easing curve, or nil for linear
	//
	// Returns:
	//   - error: model.ErrBindPoseMismatch if target does not fit
	StartTransition(target *model.BindPose, duration float32, easing ease.TweenFunc) error

	// UpdateTransition advances the active transition.
	//
	// Parameters:
	//   - dt: elapsed seconds
	//
	// Returns:
	//   - bool: true if no transition is running after this update
	UpdateTransition(dt float32) bool

	// PushKinematic sends bone-driven rigid body transforms to the physics proxy.
	// No-op without a proxy.
	//
	// Parameters:
	//   - timing: which follow-bone bodies to push
	PushKinematic(timing model.FollowBoneType)

	// PullDynamic reads simulated rigid bodies back into their bones.
	// No-op without a proxy.
	//
	// Returns:
	//   - []int32: the bones changed
	PullDynamic() []int32

	// Upload hands the front staging slot to the renderer.
	//
	// Parameters:
	//   - u: the renderer's uploader
	//
	// Returns:
	//   - upload.Handle: the renderer-side handle
	//   - error: the uploader's error
	Upload(u upload.Uploader) (upload.Handle, error)

	// Staging retrieves the double-buffered skinning output.
	//
	// Returns:
	//   - *skinning.StagingBuffer: the staging buffer
	Staging() *skinning.StagingBuffer

	// EnableProfiler enables per-stage timing output to the log.
	EnableProfiler()

	// DisableProfiler disables per-stage timing output.
	DisableProfiler()

	// Close stops the skinning worker pool.
	Close()
}

var _ Deformer = &deformer{}

// NewDeformer creates a new Deformer for the model and computes its initial pose.
//
// Parameters:
//   - m: the validated model
//   - options: functional options for deformer configuration
//
// Returns:
//   - Deformer: the newly created deformer
func NewDeformer(m model.Model, options ...DeformerBuilderOption) Deformer {
	d := &deformer{
		model:  m,
		config: config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(d)
	}
	d.config = d.config.Resolve()
	if d.workers > 0 {
		d.config.Workers = d.workers
	}
	if !d.profilingSet {
		d.profilingEnabled = d.config.ProfilerInterval > 0
	}
	interval := time.Duration(d.config.ProfilerInterval)
	if interval <= 0 {
		interval = config.DefaultProfilerInterval
	}
	d.profiler = profiler.NewProfiler(profiler.WithLogger(d.logger), profiler.WithInterval(interval))

	d.hierarchy = hierarchy.NewHierarchy(m, hierarchy.WithLogger(d.logger), hierarchy.WithOutsideParentResolver(d.resolver))
	d.solver = constraint.NewSolver(m, d.hierarchy, constraint.WithLogger(d.logger))
	d.blender = morph.NewBlender(m, morph.WithLogger(d.logger), morph.WithMaxDepth(d.config.MaxMorphDepth))
	d.skinner = skinning.NewSkinner(m,
		skinning.WithWorkers(d.config.Workers),
		skinning.WithQueueSize(d.config.QueueSize),
		skinning.WithIdleTimeout(time.Duration(d.config.IdleTimeout)),
		skinning.WithLogger(d.logger),
	)
	d.sync = motion.NewSynchronizer(m, motion.WithLogger(d.logger))

	d.hierarchy.PropagateAll()
	if d.proxy != nil {
		d.bridge = physics.NewBridge(m, d.hierarchy, d.proxy, physics.WithLogger(d.logger))
		d.bridge.InitializeFeedback()
	}

	d.logger.Info("deformer ready", "model", m.Name(), "bones", len(m.Bones()), "workers", d.config.Workers)
	return d
}

func (d *deformer) Model() model.Model {
	return d.model
}

func (d *deformer) PropagateBones(roots []int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.propagate(roots)
}

func (d *deformer) SolveConstraints() []constraint.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.solveConstraints()
}

func (d *deformer) ApplyMorphs(checkDirty bool) morph.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyMorphs(checkDirty)
}

func (d *deformer) ComputeSkinning(drawType skinning.DrawType, edgeScaleFactor float32) skinning.FrameStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.computeSkinning(drawType, edgeScaleFactor)
}

func (d *deformer) Frame(drawType skinning.DrawType) skinning.FrameStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stop := d.measure(profiler.StageMorphs)
	d.blender.ApplyAll(true)
	stop()

	stop = d.measure(profiler.StagePropagate)
	d.hierarchy.PropagatePhase(false)
	stop()

	d.solveConstraints()

	if d.config.PhysicsEnabled && d.bridge != nil {
		stop = d.measure(profiler.StagePhysics)
		d.bridge.PushKinematic(model.FollowBeforeSimulation)
		d.bridge.PullDynamic()
		stop()
	}

	stop = d.measure(profiler.StagePropagate)
	d.hierarchy.PropagatePhase(true)
	stop()

	if d.config.PhysicsEnabled && d.bridge != nil {
		stop = d.measure(profiler.StagePhysics)
		d.bridge.PushKinematic(model.FollowAfterSimulation)
		stop()
	}

	stats := d.computeSkinning(drawType, d.config.EdgeScaleFactor)
	d.frames++
	if d.profilingEnabled {
		d.profiler.Tick()
	}
	return stats
}

func (d *deformer) SetMorphWeight(name string, weight float32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blender.SetWeightByName(name, weight)
}

func (d *deformer) SetOutsideParent(bone string, parent model.OutsideParent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.model.FindBone(bone)
	if !ok {
		return model.ErrInvalidOutsideParent
	}
	if err := d.model.SetOutsideParent(i, parent); err != nil {
		return err
	}
	d.propagate([]int32{i})
	return nil
}

func (d *deformer) RemoveOutsideParent(bone string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.model.FindBone(bone)
	if !ok {
		return false
	}
	if _, ok := d.model.FindOutsideParent(i); !ok {
		return false
	}
	d.model.RemoveOutsideParent(i)
	d.propagate([]int32{i})
	return true
}

func (d *deformer) SaveBindPose() *model.BindPose {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.model.SaveBindPose()
}

func (d *deformer) RestoreBindPose(pose *model.BindPose) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.model.RestoreBindPose(pose); err != nil {
		return err
	}
	d.transition = nil
	d.hierarchy.PropagateAll()
	return nil
}

func (d *deformer) SynchronizeFromMotion(src motion.Source, frameIndex uint32, amount float32, timing motion.SimulationTiming) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sync.Synchronize(src, frameIndex, amount, timing)
}

func (d *deformer) StartTransition(target *model.BindPose, duration float32, easing ease.TweenFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := motion.NewTransition(d.model, target, duration, easing)
	if err != nil {
		return err
	}
	d.transition = t
	return nil
}

func (d *deformer) UpdateTransition(dt float32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transition == nil {
		return true
	}
	if d.transition.Update(dt) {
		d.transition = nil
		return true
	}
	return false
}

func (d *deformer) PushKinematic(timing model.FollowBoneType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bridge != nil {
		d.bridge.PushKinematic(timing)
	}
}

func (d *deformer) PullDynamic() []int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bridge == nil {
		return nil
	}
	return d.bridge.PullDynamic()
}

func (d *deformer) Upload(u upload.Uploader) (upload.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.measure(profiler.StageUpload)()
	return d.skinner.Upload(u)
}

func (d *deformer) Staging() *skinning.StagingBuffer {
	return d.skinner.Staging()
}

func (d *deformer) EnableProfiler() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profilingEnabled = true
}

func (d *deformer) DisableProfiler() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profilingEnabled = false
}

func (d *deformer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.skinner.Close()
	d.logger.Debug("deformer closed", "model", d.model.Name(), "frames", d.frames)
}

func (d *deformer) propagate(roots []int32) {
	defer d.measure(profiler.StagePropagate)()
	if len(roots) == 0 {
		d.hierarchy.PropagateAll()
		return
	}
	d.hierarchy.Propagate(roots)
}

func (d *deformer) solveConstraints() []constraint.Result {
	defer d.measure(profiler.StageConstraints)()
	return d.solver.SolveAll()
}

func (d *deformer) applyMorphs(checkDirty bool) morph.Result {
	defer d.measure(profiler.StageMorphs)()
	res := d.blender.ApplyAll(checkDirty)
	if len(res.BonesChanged) > 0 {
		d.hierarchy.Propagate(res.BonesChanged)
	}
	return res
}

func (d *deformer) computeSkinning(drawType skinning.DrawType, edgeScaleFactor float32) skinning.FrameStats {
	defer d.measure(profiler.StageSkinning)()
	return d.skinner.ComputeFrame(drawType, edgeScaleFactor)
}

// measure starts a profiler stage timer, or returns a no-op when profiling is off.
func (d *deformer) measure(stage string) func() {
	if !d.profilingEnabled {
		return func() {}
	}
	return d.profiler.Measure(stage)
}
