package skinning

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-rig/engine/model"
	"github.com/Carmen-Shannon/oxy-rig/engine/upload"
)

// DrawType selects which outputs a frame produces.
type DrawType int

const (
	// DrawTypeColor produces skinned positions and normals.
	DrawTypeColor DrawType = iota
	// DrawTypeEdge additionally produces outline-extruded positions.
	DrawTypeEdge
)

// noMaterial marks the partition of vertices not covered by any material.
const noMaterial = -1

// FrameStats summarises one ComputeFrame call.
type FrameStats struct {
	Vertices   int
	Partitions int

	// Slot is the staging slot published by the frame.
	Slot int

	// Min and Max bound every skinned position.
	Min, Max mgl32.Vec3
}

// partition is a contiguous vertex range skinned as one task.
type partition struct {
	start, end int
	material   int
}

// skinner is the implementation of the Skinner interface.
type skinner struct {
	model       model.Model
	logger      *slog.Logger
	workers     int
	queueSize   int
	idleTimeout time.Duration

	pool       worker.DynamicWorkerPool
	partitions []partition
	bounds     []bounds
	palette    *palette
	staging    *StagingBuffer
}

// Skinner deforms the model's vertices by the current bone pose and morph
// state. Vertices are split into per-material partitions that are skinned in
// parallel on a bounded worker pool; the frame returns once every partition
// has finished.
type Skinner interface {
	// ComputeFrame skins every vertex into the back staging slot, publishes it,
	// and updates the model bounding box.
	//
	// Parameters:
	//   - drawType: DrawTypeEdge to also compute outline positions
	//   - edgeScaleFactor: global multiplier of the outline width
	//
	// Returns:
	//   - FrameStats: counts, published slot and bounds
	ComputeFrame(drawType DrawType, edgeScaleFactor float32) FrameStats

	// Staging retrieves the double-buffered output.
	//
	// Returns:
	//   - *StagingBuffer: the staging buffer
	Staging() *StagingBuffer

	// Upload hands the front staging slot to the renderer.
	//
	// Parameters:
	//   - u: the renderer's uploader
	//
	// Returns:
	//   - upload.Handle: the renderer-side handle
	//   - error: the uploader's error, unchanged
	Upload(u upload.Uploader) (upload.Handle, error)

	// Close stops the worker pool.
	Close()
}

var _ Skinner = &skinner{}

// NewSkinner creates a new Skinner for the model.
//
// Parameters:
//   - m: the validated model
//   - options: a variadic list of SkinnerBuilderOption functions
//
// Returns:
//   - Skinner: the configured skinner
func NewSkinner(m model.Model, options ...SkinnerBuilderOption) Skinner {
	s := &skinner{
		model:       m,
		logger:      slog.Default(),
		workers:     max(runtime.NumCPU()-1, 1),
		queueSize:   256,
		idleTimeout: 1 * time.Second,
	}
	for _, opt := range options {
		opt(s)
	}

	// Initialize the pool after options so WithWorkers can override the default.
	if s.workers > 1 {
		s.pool = worker.NewDynamicWorkerPool(s.workers, s.queueSize, s.idleTimeout)
	}

	vertices := m.Vertices()
	s.partitions = buildPartitions(m.Materials(), len(vertices))
	s.bounds = make([]bounds, len(s.partitions))
	s.staging = NewStagingBuffer(len(vertices))

	needRotations, needDuals := false, false
	for i := range vertices {
		switch vertices[i].Deform.(type) {
		case model.SDEF:
			needRotations = true
		case model.QDEF:
			needDuals = true
		}
	}
	s.palette = newPalette(len(m.Bones()), needRotations, needDuals)

	s.logger.Debug("skinner ready",
		"model", m.Name(), "vertices", len(vertices), "partitions", len(s.partitions), "workers", s.workers)
	return s
}

// buildPartitions creates one partition per non-empty material range and one
// per uncovered run of vertices.
func buildPartitions(materials []model.Material, vertexCount int) []partition {
	owner := make([]int, vertexCount)
	for i := range owner {
		owner[i] = noMaterial
	}
	var parts []partition
	for i, mat := range materials {
		if mat.VertexCount == 0 {
			continue
		}
		parts = append(parts, partition{start: mat.VertexStart, end: mat.VertexStart + mat.VertexCount, material: i})
		for v := mat.VertexStart; v < mat.VertexStart+mat.VertexCount; v++ {
			owner[v] = i
		}
	}
	for v := 0; v < vertexCount; {
		if owner[v] != noMaterial {
			v++
			continue
		}
		start := v
		for v < vertexCount && owner[v] == noMaterial {
			v++
		}
		parts = append(parts, partition{start: start, end: v, material: noMaterial})
	}
	return parts
}

func (s *skinner) Staging() *StagingBuffer {
	return s.staging
}

func (s *skinner) ComputeFrame(drawType DrawType, edgeScaleFactor float32) FrameStats {
	s.palette.fill(s.model.Bones(), s.model.FallbackBone())
	out := s.staging.Back()
	edge := drawType == DrawTypeEdge

	if s.pool == nil {
		for i := range s.partitions {
			s.bounds[i] = s.skinPartition(out, s.partitions[i], edge, edgeScaleFactor)
		}
	} else {
		// A WaitGroup is the frame barrier; pool.Wait() only returns once
		// workers idle out.
		var wg sync.WaitGroup
		for i := range s.partitions {
			wg.Add(1)
			id := i
			s.pool.SubmitTask(worker.Task{
				ID: id,
				Do: func() (any, error) {
					defer wg.Done()
					s.bounds[id] = s.skinPartition(out, s.partitions[id], edge, edgeScaleFactor)
					return nil, nil
				},
			})
		}
		wg.Wait()
	}

	s.staging.Flip()

	total := emptyBounds()
	for _, b := range s.bounds {
		total.merge(b)
	}
	if total.empty {
		total.min, total.max = mgl32.Vec3{}, mgl32.Vec3{}
	}
	s.model.SetBoundingBox(total.min, total.max)

	return FrameStats{
		Vertices:   len(out),
		Partitions: len(s.partitions),
		Slot:       s.staging.ActiveSlot(),
		Min:        total.min,
		Max:        total.max,
	}
}

// skinPartition writes out[p.start:p.end]. It reads only shared immutable
// frame state, so partitions may run concurrently.
func (s *skinner) skinPartition(out []SkinnedVertex, p partition, edge bool, edgeScaleFactor float32) bounds {
	vertices := s.model.Vertices()
	morphs := s.model.VertexMorphState()

	edgeSize := float32(0)
	material := uint32(0xFFFFFFFF)
	if p.material != noMaterial {
		material = uint32(p.material)
		edgeSize = s.model.MaterialStates()[p.material].Effective(s.model.Materials()[p.material].Base).EdgeSize
	}

	b := emptyBounds()
	for i := p.start; i < p.end; i++ {
		v := &vertices[i]
		pos, normal := s.palette.skin(v.Deform, v.Position.Add(morphs.Position[i]), v.Normal)

		o := &out[i]
		o.Position = pos
		o.Normal = normal
		o.EdgeScale = v.EdgeScale
		o.Material = material
		uv := morphs.UV[0][i]
		o.TexCoord = [4]float32{v.TexCoord[0] + uv[0], v.TexCoord[1] + uv[1], 0, 0}
		for k := range o.AdditionalUV {
			o.AdditionalUV[k] = v.AdditionalUV[k].Add(morphs.UV[k+1][i])
		}
		if edge {
			e := pos.Add(normal.Mul(edgeSize * v.EdgeScale * edgeScaleFactor))
			o.EdgePosition = [4]float32{e[0], e[1], e[2], 1}
		} else {
			o.EdgePosition = [4]float32{}
		}
		b.add(pos)
	}
	return b
}

func (s *skinner) Upload(u upload.Uploader) (upload.Handle, error) {
	slot, data := s.staging.FrontBytes()
	return u.UploadStagingBuffer(slot, data)
}

func (s *skinner) Close() {
	if s.pool != nil {
		s.pool.Stop()
		s.pool = nil
	}
}
