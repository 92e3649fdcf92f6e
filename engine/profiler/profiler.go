package profiler

import (
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"
)

// Stage names recorded by the deformer for each frame.
const (
	StagePropagate   = "propagate"
	StageConstraints = "constraints"
	StageMorphs      = "morphs"
	StagePhysics     = "physics"
	StageSkinning    = "skinning"
	StageUpload      = "upload"
)

// Report is one interval's worth of statistics.
type Report struct {
	Frames   int
	FPS      float64
	Stages   map[string]time.Duration
	HeapMB   float64
	AllocMBs float64
	GCCount  uint32
	MaxGCUs  uint64
}

// Profiler tracks frame rate, per-stage timings and memory statistics.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu             sync.Mutex
	logger         *slog.Logger
	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	stages         map[string]time.Duration
	order          []string
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Report
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: a variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         slog.Default(),
		now:            time.Now,
		updateInterval: time.Second,
		stages:         make(map[string]time.Duration),
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Measure starts timing a stage. Call the returned function when the stage ends.
//
// Parameters:
//   - stage: the stage name
//
// Returns:
//   - func(): stops the timer and records the elapsed time
func (p *Profiler) Measure(stage string) func() {
	start := p.now()
	return func() {
		p.Record(stage, p.now().Sub(start))
	}
}

// Record adds a duration to a stage's total for the current interval.
//
// Parameters:
//   - stage: the stage name
//   - d: the elapsed time
func (p *Profiler) Record(stage string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stages[stage]; !ok {
		p.order = append(p.order, stage)
	}
	p.stages[stage] += d
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, average time per stage, heap usage, allocation rate and GC pauses.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	r := Report{
		Frames: p.frameCount,
		FPS:    float64(p.frameCount) / elapsed.Seconds(),
		Stages: make(map[string]time.Duration, len(p.stages)),
		HeapMB: float64(p.memStats.Alloc) / 1024 / 1024,
	}
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r.AllocMBs = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	r.GCCount = gcCount
	startIdx := p.lastGCCount
	if gcCount-startIdx > 256 {
		startIdx = gcCount - 256
	}
	for i := startIdx; i < gcCount; i++ {
		r.MaxGCUs = max(r.MaxGCUs, p.memStats.PauseNs[i%256]/1000)
	}

	var sb strings.Builder
	for _, name := range p.order {
		avg := p.stages[name] / time.Duration(p.frameCount)
		r.Stages[name] = avg
		fmt.Fprintf(&sb, " | %s: %d µs", name, avg.Microseconds())
	}

	p.logger.Info(fmt.Sprintf("[Profiler] FPS: %.2f%s | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (max: %d µs)",
		r.FPS, sb.String(), r.HeapMB, r.AllocMBs, r.GCCount, r.MaxGCUs))

	p.last = r
	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	clear(p.stages)
	return true
}

// Last returns the most recently logged report.
func (p *Profiler) Last() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.last
	r.Stages = make(map[string]time.Duration, len(p.last.Stages))
	for k, v := range p.last.Stages {
		r.Stages[k] = v
	}
	return r
}

// StageNames returns the stages recorded so far in first-seen order.
func (p *Profiler) StageNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.order)
}
