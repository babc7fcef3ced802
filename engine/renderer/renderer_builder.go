package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/framegraph"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/technique"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLabel sets the label of the device, the technique and the frame graph.
func WithLabel(label string) RendererBuilderOption {
	return func(r *renderer) {
		r.label = label
	}
}

// WithDevice makes the renderer draw with a device it does not own, such as a
// recording device in tests. The backend type is ignored.
//
// Parameters:
//   - d: the device
//
// Returns:
//   - RendererBuilderOption: a function that applies the device option to a renderer
func WithDevice(d backend.Device) RendererBuilderOption {
	return func(r *renderer) {
		r.device = d
		r.ownsDevice = false
	}
}

// WithTechniqueOptions passes options to the technique created by Setup.
//
// Parameters:
//   - opts: the technique options, applied after the renderer's label and logger
//
// Returns:
//   - RendererBuilderOption: a function that appends the technique options
func WithTechniqueOptions(opts ...technique.TechniqueBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.techniqueOptions = append(r.techniqueOptions, opts...)
	}
}

// WithGraphOptions passes options to the frame graph created by Setup, such as
// validation, worker bounds or a pass observer.
func WithGraphOptions(opts ...framegraph.FrameGraphBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.graphOptions = append(r.graphOptions, opts...)
	}
}

// WithPassRegistrar adds passes declared before the technique's.
//
// Parameters:
//   - register: declares the passes
//
// Returns:
//   - RendererBuilderOption: a function that appends the registrar
func WithPassRegistrar(register PassRegistrar) RendererBuilderOption {
	return func(r *renderer) {
		r.registrars = append(r.registrars, register)
	}
}

// WithLogger sets the logger of the renderer and of what Setup creates.
func WithLogger(logger *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}
