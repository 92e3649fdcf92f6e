package constraint

import (
	"log/slog"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-rig/common"
	"github.com/Carmen-Shannon/oxy-rig/engine/hierarchy"
	"github.com/Carmen-Shannon/oxy-rig/engine/model"
)

// State is the lifecycle state of one constraint within a solve.
type State int

const (
	// StateIdle means the constraint was not solved (disabled, or never run).
	StateIdle State = iota
	// StateIterating means the solver is running the constraint.
	StateIterating
	// StateConverged means the effector came within Threshold of the target.
	StateConverged
	// StateIterationLimitReached means the iteration budget ran out; the best
	// configuration seen was kept.
	StateIterationLimitReached
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateIterationLimitReached:
		return "iteration limit reached"
	}
	return "unknown"
}

// Result reports the outcome of solving one constraint.
type Result struct {
	State      State
	Iterations int

	// Distance is the final effector-to-target distance.
	Distance float32
}

// solver is the implementation of the Solver interface.
type solver struct {
	model     model.Model
	hierarchy hierarchy.Hierarchy
	logger    *slog.Logger

	// paths[c][k] lists the bones from joint k of constraint c down to the effector.
	paths  [][][]int32
	states []State
	best   []mgl32.Quat
}

// Solver resolves the model's IK constraints with cyclic coordinate descent.
type Solver interface {
	// Solve runs one constraint and re-propagates its chain-root subtree.
	//
	// Parameters:
	//   - index: the constraint index
	//
	// Returns:
	//   - Result: the final state, iteration count and distance
	Solve(index int) Result

	// SolveAll runs every constraint in model order.
	//
	// Returns:
	//   - []Result: one result per constraint
	SolveAll() []Result

	// State retrieves the state left by the last solve of a constraint.
	//
	// Parameters:
	//   - index: the constraint index
	//
	// Returns:
	//   - State: the state
	State(index int) State
}

var _ Solver = &solver{}

// NewSolver creates a new Solver for the model's constraints.
//
// Parameters:
//   - m: the validated model
//   - h: the hierarchy used to re-propagate solved chains
//   - options: a variadic list of SolverBuilderOption functions
//
// Returns:
//   - Solver: the configured solver
func NewSolver(m model.Model, h hierarchy.Hierarchy, options ...SolverBuilderOption) Solver {
	s := &solver{
		model:     m,
		hierarchy: h,
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}

	bones := m.Bones()
	constraints := m.Constraints()
	s.paths = make([][][]int32, len(constraints))
	maxJoints := 0
	for ci := range constraints {
		c := &constraints[ci]
		maxJoints = max(maxJoints, len(c.Joints))
		s.paths[ci] = make([][]int32, len(c.Joints))
		for k, j := range c.Joints {
			var path []int32
			for b := c.EffectorBone; b != model.NoBone; b = bones[b].ParentIndex {
				path = append(path, b)
				if b == j.BoneIndex {
					break
				}
			}
			s.paths[ci][k] = path
		}
	}
	s.states = make([]State, len(constraints))
	s.best = make([]mgl32.Quat, maxJoints)
	return s
}

func (s *solver) State(index int) State {
	if index < 0 || index >= len(s.states) {
		return StateIdle
	}
	return s.states[index]
}

func (s *solver) SolveAll() []Result {
	results := make([]Result, len(s.model.Constraints()))
	for i := range results {
		results[i] = s.Solve(i)
	}
	return results
}

func (s *solver) Solve(index int) Result {
	constraints := s.model.Constraints()
	if index < 0 || index >= len(constraints) {
		return Result{}
	}
	c := &constraints[index]
	bones := s.model.Bones()

	if !c.Enabled {
		for _, j := range c.Joints {
			b := &bones[j.BoneIndex]
			if b.ConstraintActive {
				b.ConstraintActive = false
				b.Dirty = true
			}
		}
		s.hierarchy.Propagate([]int32{c.ChainRoot()})
		s.states[index] = StateIdle
		return Result{State: StateIdle, Distance: s.distance(c)}
	}

	s.states[index] = StateIterating
	for _, j := range c.Joints {
		b := &bones[j.BoneIndex]
		b.ConstraintOrientation = b.LocalOrientation.Mul(b.MorphOrientation).Normalize()
		b.ConstraintActive = true
	}
	s.hierarchy.Propagate([]int32{c.ChainRoot()})

	target := bones[c.TargetBone].Position()
	bestDistance := s.distance(c)
	s.snapshot(c)

	result := Result{State: StateIterationLimitReached}
	if bestDistance < c.Threshold {
		result.State = StateConverged
	}
	for result.State != StateConverged && result.Iterations < c.Iterations {
		result.Iterations++
		for k, j := range c.Joints {
			if !s.step(c, j, target) {
				continue
			}
			s.hierarchy.PropagateChain(s.paths[index][k])
			if d := s.distance(c); d < bestDistance {
				bestDistance = d
				s.snapshot(c)
			}
		}
		if bestDistance < c.Threshold {
			result.State = StateConverged
		}
	}

	for k, j := range c.Joints {
		bones[j.BoneIndex].ConstraintOrientation = s.best[k]
	}
	s.hierarchy.Propagate([]int32{c.ChainRoot()})
	result.Distance = s.distance(c)

	s.states[index] = result.State
	if result.State == StateIterationLimitReached {
		s.logger.Debug("constraint iteration limit reached",
			"constraint", c.Name, "iterations", result.Iterations, "distance", result.Distance)
	}
	return result
}

func (s *solver) distance(c *model.Constraint) float32 {
	bones := s.model.Bones()
	return bones[c.EffectorBone].Position().Sub(bones[c.TargetBone].Position()).Len()
}

func (s *solver) snapshot(c *model.Constraint) {
	bones := s.model.Bones()
	for k, j := range c.Joints {
		s.best[k] = bones[j.BoneIndex].ConstraintOrientation
	}
}

// step rotates one joint so the effector swings toward the target. It reports
// whether the joint's orientation changed.
func (s *solver) step(c *model.Constraint, j model.Joint, target mgl32.Vec3) bool {
	bones := s.model.Bones()
	jb := &bones[j.BoneIndex]
	jointPos := jb.Position()

	toLocal := common.Orientation(jb.World).Conjugate()
	toEffector := toLocal.Rotate(bones[c.EffectorBone].Position().Sub(jointPos))
	toTarget := toLocal.Rotate(target.Sub(jointPos))
	if toEffector.Len() < common.Epsilon || toTarget.Len() < common.Epsilon {
		return false
	}

	q := jb.ConstraintOrientation
	var next mgl32.Quat
	if axisIndex, ok := j.HingeAxis(); ok {
		next = hingeStep(q, j, axisIndex, toEffector, toTarget, c.AngleLimit)
	} else {
		toEffector, toTarget = toEffector.Normalize(), toTarget.Normalize()
		angle := math32.Acos(mgl32.Clamp(toEffector.Dot(toTarget), -1, 1))
		axis := toEffector.Cross(toTarget)
		if angle < common.Epsilon || axis.Len() < common.Epsilon {
			return false
		}
		if c.AngleLimit > 0 {
			angle = math32.Min(angle, c.AngleLimit)
		}
		next = q.Mul(mgl32.QuatRotate(angle, axis.Normalize())).Normalize()
		if j.HasLimits {
			e := common.EulerXYZFromQuat(next)
			for i := range 3 {
				e[i] = mgl32.Clamp(e[i], j.Lower[i], j.Upper[i])
			}
			next = common.QuatFromEulerXYZ(e)
		}
	}
	if next == q {
		return false
	}
	jb.ConstraintOrientation = next
	jb.Dirty = true
	return true
}

// hingeStep rotates around a single local axis. The hinge angle is clamped to
// the joint limits, so a step past a limit lands on it.
func hingeStep(q mgl32.Quat, j model.Joint, axisIndex int, toEffector, toTarget mgl32.Vec3, angleLimit float32) mgl32.Quat {
	var axis mgl32.Vec3
	axis[axisIndex] = 1

	a := toEffector.Sub(axis.Mul(toEffector.Dot(axis)))
	b := toTarget.Sub(axis.Mul(toTarget.Dot(axis)))
	delta := float32(0)
	if a.Len() > common.Epsilon && b.Len() > common.Epsilon {
		delta = math32.Atan2(axis.Dot(a.Cross(b)), a.Dot(b))
	}
	if angleLimit > 0 {
		delta = mgl32.Clamp(delta, -angleLimit, angleLimit)
	}

	twist := common.ProjectOntoAxis(q, axis)
	current := 2 * math32.Atan2(twist.V.Dot(axis), twist.W)
	if current > math32.Pi {
		current -= 2 * math32.Pi
	} else if current < -math32.Pi {
		current += 2 * math32.Pi
	}
	angle := mgl32.Clamp(current+delta, j.Lower[axisIndex], j.Upper[axisIndex])
	return mgl32.QuatRotate(angle, axis)
}
