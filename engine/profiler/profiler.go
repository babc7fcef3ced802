package profiler

import (
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"
)

// PassStats is the recording time of one frame graph pass over a reporting interval.
type PassStats struct {
	Name  string
	Count int
	Total time.Duration
	Max   time.Duration
}

// Mean returns the average recording time.
func (s PassStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Profiler collects frame times and per-pass recording times and logs a summary each
// interval. PassRecorded may be called from several goroutines while a frame records.
// Tick is called from the frame loop.
type Profiler struct {
	mu sync.Mutex

	interval time.Duration
	start    time.Time
	last     time.Time
	frames   []time.Duration
	gcCount  uint32

	passes map[string]*PassStats
	now    func() time.Time
	logger *slog.Logger
}

// ProfilerBuilderOption is a functional option applied by NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often Tick logs. Non-positive values keep the one second default.
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger stats are written to.
func WithLogger(logger *slog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// NewProfiler returns a profiler that logs once per second.
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		interval: time.Second,
		passes:   make(map[string]*PassStats),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(p)
	}
	p.start = p.now()
	p.last = p.start
	return p
}

// PassRecorded accumulates the recording time of a pass. It makes the profiler a frame
// graph pass observer.
func (p *Profiler) PassRecorded(name string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.passes[name]
	if !ok {
		s = &PassStats{Name: name}
		p.passes[name] = s
	}
	s.Count++
	s.Total += elapsed
	s.Max = max(s.Max, elapsed)
}

// Passes returns the pass statistics of the current interval, sorted by name.
func (p *Profiler) Passes() []PassStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passesLocked()
}

func (p *Profiler) passesLocked() []PassStats {
	out := make([]PassStats, 0, len(p.passes))
	for _, s := range p.passes {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b PassStats) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// FrameStats summarises the frame times of one interval.
type FrameStats struct {
	Frames int
	FPS    float64
	Mean   time.Duration
	P95    time.Duration
	Max    time.Duration
}

func summarise(frames []time.Duration, span time.Duration) FrameStats {
	st := FrameStats{Frames: len(frames)}
	if len(frames) == 0 || span <= 0 {
		return st
	}
	sorted := slices.Sorted(slices.Values(frames))
	var total time.Duration
	for _, f := range sorted {
		total += f
	}
	st.FPS = float64(len(frames)) / span.Seconds()
	st.Mean = total / time.Duration(len(frames))
	st.P95 = sorted[(len(sorted)*95+99)/100-1]
	st.Max = sorted[len(sorted)-1]
	return st
}

// Tick records the time since the previous tick as one frame. Once the interval has
// passed it logs the frame statistics, the heap size and the collections since the last
// report, then one line per pass, and starts a new interval.
//
// Returns:
//   - bool: true when a summary was logged
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.frames = append(p.frames, now.Sub(p.last))
	p.last = now
	span := now.Sub(p.start)
	if span < p.interval {
		return false
	}

	st := summarise(p.frames, span)
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	p.logger.Info("profiler",
		"fps", st.FPS,
		"frame_mean", st.Mean,
		"frame_p95", st.P95,
		"frame_max", st.Max,
		"heap_mb", float64(mem.HeapAlloc)/(1<<20),
		"gc", mem.NumGC-p.gcCount)
	for _, s := range p.passesLocked() {
		p.logger.Info("profiler pass", "pass", s.Name, "count", s.Count, "mean", s.Mean(), "max", s.Max)
	}

	p.frames = p.frames[:0]
	p.start = now
	p.gcCount = mem.NumGC
	clear(p.passes)
	return true
}
