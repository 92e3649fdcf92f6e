package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTickLogsAfterInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var buf bytes.Buffer
	p := NewProfiler(
		WithClock(clock.now),
		WithInterval(time.Second),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)

	for range 3 {
		stop := p.Measure(StageSkinning)
		clock.advance(2 * time.Millisecond)
		stop()
		p.Record(StageMorphs, time.Millisecond)
		clock.advance(98 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	assert.Empty(t, buf.String())

	clock.advance(700 * time.Millisecond)
	require.True(t, p.Tick())

	out := buf.String()
	assert.Contains(t, out, "[Profiler] FPS: 4.00")
	assert.Contains(t, out, "skinning: 1500 µs")
	assert.Contains(t, out, "morphs: 750 µs")

	r := p.Last()
	assert.Equal(t, 4, r.Frames)
	assert.Equal(t, 1500*time.Microsecond, r.Stages[StageSkinning])
	assert.Equal(t, []string{StageSkinning, StageMorphs}, p.StageNames())
}

func TestTickResetsInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second), WithLogger(slog.New(slog.DiscardHandler)))

	p.Record(StagePropagate, time.Millisecond)
	clock.advance(time.Second)
	require.True(t, p.Tick())

	clock.advance(500 * time.Millisecond)
	assert.False(t, p.Tick())
	clock.advance(500 * time.Millisecond)
	require.True(t, p.Tick())
	assert.Equal(t, time.Duration(0), p.Last().Stages[StagePropagate])
}
