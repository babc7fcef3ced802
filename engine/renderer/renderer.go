package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/framegraph"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/technique"
)

var (
	// ErrNotSetup is returned by RenderFrame before Setup succeeded.
	ErrNotSetup = errors.New("renderer: not set up")
	// ErrSetup is returned by a second call to Setup.
	ErrSetup = errors.New("renderer: already set up")
)

// PassRegistrar declares passes of its own into the frame graph, such as the geometry
// passes filling depth, the g-buffer and the visibility buffer. Registrars run before
// the technique declares its passes, so their writes are ordered before the technique
// reads them.
type PassRegistrar func(g *framegraph.FrameGraph, t *technique.Technique) error

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	label       string
	backendType RendererBackendType
	device      backend.Device
	ownsDevice  bool
	registry    *component.Registry

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	techniqueOptions     []technique.TechniqueBuilderOption
	graphOptions         []framegraph.FrameGraphBuilderOption
	registrars           []PassRegistrar

	technique *technique.Technique
	graph     *framegraph.RunnableGraph
	frames    uint64
	logger    *slog.Logger
}

// Renderer defines the interface for the rendering system.
//
// The Renderer owns the device, the render technique and the compiled frame graph. Setup
// builds the graph once; every RenderFrame uploads the frame's data through the
// technique, then records and submits the graph.
type Renderer interface {
	// Setup opens the device if none was given, creates the technique and compiles the
	// frame graph with the technique's passes and every registrar's passes.
	//
	// Parameters:
	//   - ctx: passed to the pass factories
	//
	// Returns:
	//   - error: a device, technique, registrar or graph compilation failure
	Setup(ctx context.Context) error

	// RenderFrame prepares the technique with frame and records the graph.
	//
	// Parameters:
	//   - ctx: cancels recording of passes not yet started
	//   - frame: the frame's data
	//
	// Returns:
	//   - error: ErrNotSetup, a preparation failure or a recording failure
	RenderFrame(ctx context.Context, frame *technique.FrameData) error

	// Device returns the device, or nil before Setup when none was given.
	Device() backend.Device

	// Registry returns the component registry the technique composes materials with.
	Registry() *component.Registry

	// Technique returns the technique, or nil before Setup.
	Technique() *technique.Technique

	// Graph returns the compiled frame graph, or nil before Setup.
	Graph() *framegraph.RunnableGraph

	// Frames returns the number of frames rendered.
	Frames() uint64

	// Release releases the technique and, when the renderer opened it, the device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer. Nothing is created on the GPU until Setup.
//
// Parameters:
//   - backendType: the type of rendering backend to open when no device is given
//   - registry: the component registry of the materials the renderer draws
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, registry *component.Registry, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		label:       "castor",
		backendType: backendType,
		registry:    registry,
		logger:      slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *renderer) Setup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.graph != nil {
		return ErrSetup
	}

	if r.device == nil {
		d, err := newDevice(r.backendType, r.label, r.forceFallbackAdapter, r.logger)
		if err != nil {
			return err
		}
		r.device = d
		r.ownsDevice = true
	}

	if r.technique == nil {
		opts := append([]technique.TechniqueBuilderOption{
			technique.WithTechniqueLabel(r.label),
			technique.WithTechniqueLogger(r.logger),
		}, r.techniqueOptions...)
		t, err := technique.NewTechnique(r.device, r.registry, opts...)
		if err != nil {
			return fmt.Errorf("failed to create technique: %w", err)
		}
		r.technique = t
	}

	graphOpts := append([]framegraph.FrameGraphBuilderOption{framegraph.WithLogger(r.logger)}, r.graphOptions...)
	g := framegraph.NewFrameGraph(r.label, graphOpts...)
	for _, register := range r.registrars {
		if err := register(g, r.technique); err != nil {
			return fmt.Errorf("failed to register passes: %w", err)
		}
	}
	if err := r.technique.Register(g); err != nil {
		return fmt.Errorf("failed to register technique: %w", err)
	}
	rg, err := g.Compile(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile frame graph: %w", err)
	}
	r.graph = rg

	r.logger.Info("renderer ready",
		"backend", r.backendType.String(),
		"passes", len(rg.Schedule()),
		"levels", len(rg.Levels()),
		"resolve", r.technique.Backend().String())
	return nil
}

func (r *renderer) RenderFrame(ctx context.Context, frame *technique.FrameData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.graph == nil {
		return ErrNotSetup
	}
	if err := r.technique.Prepare(frame); err != nil {
		return err
	}
	if err := r.graph.Record(ctx, r.device); err != nil {
		return fmt.Errorf("failed to render frame %d: %w", r.frames, err)
	}
	r.frames++
	return nil
}

func (r *renderer) Device() backend.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}

func (r *renderer) Registry() *component.Registry {
	return r.registry
}

func (r *renderer) Technique() *technique.Technique {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.technique
}

func (r *renderer) Graph() *framegraph.RunnableGraph {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph
}

func (r *renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.technique != nil {
		r.technique.Release()
		r.technique = nil
	}
	r.graph = nil
	if r.ownsDevice && r.device != nil {
		r.device.Release()
		r.device = nil
	}
}
