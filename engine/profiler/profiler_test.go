package profiler

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func TestTickLogsAfterInterval(t *testing.T) {
	var buf bytes.Buffer
	c := &clock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(c.now), WithInterval(time.Second),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	c.t = c.t.Add(500 * time.Millisecond)
	assert.False(t, p.Tick())
	assert.Empty(t, buf.String())

	c.t = c.t.Add(500 * time.Millisecond)
	assert.True(t, p.Tick())
	assert.Contains(t, buf.String(), "fps=2")
	assert.Contains(t, buf.String(), "heap_mb=")
	assert.Contains(t, buf.String(), "frame_max=500ms")
}

func TestPassRecordedAccumulates(t *testing.T) {
	var buf bytes.Buffer
	c := &clock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(c.now), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.PassRecorded("opaque-resolve", time.Duration(i+1)*time.Millisecond)
		}()
	}
	wg.Wait()
	p.PassRecorded("indirect-lighting", time.Millisecond)

	passes := p.Passes()
	require.Len(t, passes, 2)
	assert.Equal(t, "indirect-lighting", passes[0].Name)
	opaque := passes[1]
	assert.Equal(t, 4, opaque.Count)
	assert.Equal(t, 10*time.Millisecond, opaque.Total)
	assert.Equal(t, 4*time.Millisecond, opaque.Max)
	assert.Equal(t, 2500*time.Microsecond, opaque.Mean())

	c.t = c.t.Add(time.Second)
	require.True(t, p.Tick())
	assert.Contains(t, buf.String(), "pass=opaque-resolve")
	assert.Empty(t, p.Passes())
}

func TestMeanOfEmptyStats(t *testing.T) {
	assert.Zero(t, PassStats{}.Mean())
}

func TestSummarise(t *testing.T) {
	frames := make([]time.Duration, 0, 20)
	for i := range 20 {
		frames = append(frames, time.Duration(20-i)*time.Millisecond)
	}
	st := summarise(frames, 210*time.Millisecond)
	assert.Equal(t, 20, st.Frames)
	assert.InDelta(t, 20/0.21, st.FPS, 1e-9)
	assert.Equal(t, 10500*time.Microsecond, st.Mean)
	assert.Equal(t, 19*time.Millisecond, st.P95)
	assert.Equal(t, 20*time.Millisecond, st.Max)

	assert.Equal(t, FrameStats{}, summarise(nil, time.Second))
}
