package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-castor/engine/profiler"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/framegraph"
	"github.com/Carmen-Shannon/oxy-castor/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// ErrRunning is returned by Run while the engine is already running.
var ErrRunning = errors.New("engine: already running")

// FrameInfo is passed to the frame callback after every rendered frame.
type FrameInfo struct {
	// Index counts frames since Run started, starting at 1.
	Index uint64
	// Delta is the time since the previous frame started.
	Delta time.Duration
	// Scenes is the number of active scenes that were rendered.
	Scenes int
}

// Engine is the explicit context object of the renderer: it owns the component registry,
// the renderer, the profiler and the scenes, and drives the frame loop.
type Engine interface {
	// Registry returns the component registry materials are composed with.
	Registry() *component.Registry

	// Renderer returns the renderer.
	Renderer() renderer.Renderer

	// Profiler returns the profiler fed with per-pass recording times.
	Profiler() *profiler.Profiler

	// Scenes returns the scene stack. Scenes may be added and removed while running.
	Scenes() *SceneStack

	// Settings returns a copy of the loop settings.
	Settings() Settings

	// Configure changes the loop settings. Running loops pick the change up on their
	// next tick or frame.
	//
	// Parameters:
	//   - update: mutates the settings under the engine lock
	Configure(update func(*Settings))

	// OnTick registers the function called at the tick rate with the time since the
	// previous tick. nil removes it.
	OnTick(fn func(dt time.Duration))

	// OnFrame registers the function called after each rendered frame. nil removes it.
	OnFrame(fn func(FrameInfo))

	// RenderFrame renders every active scene once, in ascending key order.
	//
	// Parameters:
	//   - ctx: cancels recording
	//
	// Returns:
	//   - error: renderer.ErrNotSetup before Run, a scene or a render failure
	RenderFrame(ctx context.Context) error

	// Run sets the renderer up and runs the tick and render loops until ctx is done, Quit
	// is called, the frame limit is reached or a frame fails.
	//
	// Parameters:
	//   - ctx: stops the loops when done
	//
	// Returns:
	//   - error: ErrRunning, a setup failure or the first frame failure
	Run(ctx context.Context) error

	// Quit stops the loops. Calling it again has no effect, and a quit engine does not
	// run again.
	Quit()

	// Release releases the renderer.
	Release()
}

type engine struct {
	registry        *component.Registry
	renderer        renderer.Renderer
	rendererOptions []renderer.RendererBuilderOption
	profiler        *profiler.Profiler
	scenes          *SceneStack
	logger          *slog.Logger

	mu       sync.RWMutex
	settings Settings
	onTick   func(time.Duration)
	onFrame  func(FrameInfo)
	start    time.Time

	running  atomic.Bool
	quit     chan struct{}
	quitOnce sync.Once
}

var _ Engine = &engine{}

// NewEngine creates an engine. A component registry with the default plugins, a
// profiler and a WGPU renderer are created unless options provide them; the renderer's
// frame graph then reports pass times to the profiler.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: a registry creation failure
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		scenes: NewSceneStack(),
		logger: slog.Default(),
		quit:   make(chan struct{}),
		start:  time.Now(),
	}
	for _, opt := range options {
		opt(e)
	}

	if e.registry == nil {
		r, err := component.NewRegistry(component.WithRegistryLogger(e.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create engine: %w", err)
		}
		e.registry = r
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}
	if e.renderer == nil {
		opts := append([]renderer.RendererBuilderOption{
			renderer.WithLogger(e.logger),
			renderer.WithGraphOptions(framegraph.WithPassObserver(e.profiler)),
		}, e.rendererOptions...)
		e.renderer = renderer.NewRenderer(renderer.BackendTypeWGPU, e.registry, opts...)
	}
	return e, nil
}

func (e *engine) Registry() *component.Registry { return e.registry }
func (e *engine) Renderer() renderer.Renderer   { return e.renderer }
func (e *engine) Profiler() *profiler.Profiler  { return e.profiler }
func (e *engine) Scenes() *SceneStack           { return e.scenes }

func (e *engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

func (e *engine) Configure(update func(*Settings)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	update(&e.settings)
}

func (e *engine) OnTick(fn func(dt time.Duration)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

func (e *engine) OnFrame(fn func(FrameInfo)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFrame = fn
}

func (e *engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	if err := e.renderer.Setup(ctx); err != nil && !errors.Is(err, renderer.ErrSetup) {
		return err
	}
	e.mu.Lock()
	e.start = time.Now()
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.tickLoop(ctx)
	})
	g.Go(func() error {
		// the tick loop has no end of its own
		defer cancel()
		return e.renderLoop(ctx)
	})
	return g.Wait()
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quit)
	})
}

func (e *engine) Release() {
	e.renderer.Release()
}

func (e *engine) RenderFrame(ctx context.Context) error {
	_, err := e.renderFrame(ctx)
	return err
}

// renderFrame builds and renders the frame of each active scene and returns how many
// were rendered.
func (e *engine) renderFrame(ctx context.Context) (int, error) {
	t := e.renderer.Technique()
	if t == nil {
		return 0, renderer.ErrNotSetup
	}
	w, h := t.Size()

	e.mu.RLock()
	fc := scene.FrameContext{
		Clusters:   t.ClusterGrid(),
		Pipelines:  t.Resolve(),
		RenderSize: mgl32.Vec2{float32(w), float32(h)},
		Elapsed:    time.Since(e.start),
		DebugIndex: e.settings.DebugIndex,
	}
	e.mu.RUnlock()

	active := e.scenes.Active()
	for _, s := range active {
		frame, err := s.Frame(fc)
		if err != nil {
			return 0, fmt.Errorf("failed to build scene %s: %w", s.Name(), err)
		}
		if err := e.renderer.RenderFrame(ctx, frame); err != nil {
			return 0, err
		}
	}
	return len(active), nil
}
