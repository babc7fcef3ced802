package engine

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-castor/engine/profiler"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/scene"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithSettings replaces the loop settings as a whole.
func WithSettings(s Settings) EngineBuilderOption {
	return func(e *engine) {
		e.settings = s
	}
}

// WithProfiling logs the profiler summary from the render loop.
//
// Parameters:
//   - enabled: whether the render loop ticks the profiler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.settings.Profiling = enabled
	}
}

// WithProfiler replaces the engine's profiler. It only receives pass times from a
// renderer the engine creates.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithTickRate sets the tick callback rate in Hz; <= 0 means 60.
func WithTickRate(hz float64) EngineBuilderOption {
	return func(e *engine) {
		e.settings.TickRate = hz
	}
}

// WithMaxFPS caps the render loop. 0 leaves it uncapped.
func WithMaxFPS(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.settings.MaxFPS = fps
	}
}

// WithFrameLimit makes Run return after n frames. 0 runs until the context is done.
func WithFrameLimit(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.settings.FrameLimit = n
	}
}

// WithDebugIndex selects the debug output probe written by the shaders.
func WithDebugIndex(index uint32) EngineBuilderOption {
	return func(e *engine) {
		e.settings.DebugIndex = index
	}
}

// WithRegistry sets the component registry instead of creating one with the default
// plugins.
func WithRegistry(r *component.Registry) EngineBuilderOption {
	return func(e *engine) {
		e.registry = r
	}
}

// WithRenderer sets a renderer built by the caller. Renderer options are then ignored.
//
// Parameters:
//   - r: the renderer; it must draw materials of the engine's registry
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithRendererOptions passes options to the renderer the engine creates.
func WithRendererOptions(opts ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, opts...)
	}
}

// WithScene places a scene on the stack at key.
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes.Put(key, s)
	}
}

func WithLogger(logger *slog.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
