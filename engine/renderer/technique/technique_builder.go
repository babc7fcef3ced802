package technique

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-castor/engine/light"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/visibility"
)

// TechniqueBuilderOption is a functional option used to configure a Technique during construction.
type TechniqueBuilderOption func(*Technique)

// WithTechniqueLabel sets the label prefixed to every created object.
func WithTechniqueLabel(label string) TechniqueBuilderOption {
	return func(t *Technique) {
		t.label = label
	}
}

// WithSize sets the render target size.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - TechniqueBuilderOption: a function that sets the size
func WithSize(width, height uint32) TechniqueBuilderOption {
	return func(t *Technique) {
		t.width = max(width, 1)
		t.height = max(height, 1)
	}
}

// WithResolveBackend selects the visibility resolve back end. The compute back end
// also registers the reorder pass.
func WithResolveBackend(b visibility.Backend) TechniqueBuilderOption {
	return func(t *Technique) {
		t.backend = b
	}
}

// WithTechniqueCompiler sets the compiler every pass cache validates programs with.
// Without it the caches use their default compiler.
func WithTechniqueCompiler(compiler shader.Compiler) TechniqueBuilderOption {
	return func(t *Technique) {
		t.compiler = compiler
	}
}

// WithTechniquePushConstantMode forces the push constant mode. By default it follows
// the device's push constant support.
//
// Parameters:
//   - mode: the push constant mode
//
// Returns:
//   - TechniqueBuilderOption: a function that sets the mode
func WithTechniquePushConstantMode(mode shader.PushConstantMode) TechniqueBuilderOption {
	return func(t *Technique) {
		t.mode = mode
		t.modeSet = true
	}
}

// WithTechniqueLogger sets the logger of the technique, its passes and caches.
func WithTechniqueLogger(logger *slog.Logger) TechniqueBuilderOption {
	return func(t *Technique) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithCapacity sets the shared buffer capacities.
func WithCapacity(c Capacity) TechniqueBuilderOption {
	return func(t *Technique) {
		t.capacity = c
	}
}

// WithClusterGrid sets the grid the light clusters are assigned on. It sizes the
// cluster buffers and provides the uploaded cluster configuration.
func WithClusterGrid(grid *light.ClusterGrid) TechniqueBuilderOption {
	return func(t *Technique) {
		t.clusters = grid
	}
}

// WithLightingModel sets the lighting model of every lit pass.
func WithLightingModel(id flags.LightingModelID) TechniqueBuilderOption {
	return func(t *Technique) {
		t.lightingModel = id
	}
}

// WithBackground sets the background model.
func WithBackground(id flags.BackgroundModelID) TechniqueBuilderOption {
	return func(t *Technique) {
		t.background = id
	}
}

// WithShaderFlags adds shader capabilities to every permutation, such as debug output.
func WithShaderFlags(f flags.ShaderFlags) TechniqueBuilderOption {
	return func(t *Technique) {
		t.shaderFlags = t.shaderFlags.With(f)
	}
}
