package material

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
)

// PassBuilderOption is a function that configures a pass instance during construction.
type PassBuilderOption func(*pass)

// WithPassName is an option builder that sets the name of the pass.
//
// Parameters:
//   - name: the identifier for the pass
//
// Returns:
//   - PassBuilderOption: a function that applies the name option to a pass
func WithPassName(name string) PassBuilderOption {
	return func(p *pass) {
		p.name = name
	}
}

// WithComponents is an option builder that requests components for the pass. One
// component is created per plugin owning a requested flag.
//
// Parameters:
//   - sets: the component flags to OR together
//
// Returns:
//   - PassBuilderOption: a function that applies the components option to a pass
func WithComponents(sets ...flags.ComponentFlags) PassBuilderOption {
	return func(p *pass) {
		p.flags |= flags.CombineComponents(sets...)
	}
}

// WithLightingModel is an option builder that sets the lighting model of the pass.
// Passes default to PBR.
//
// Parameters:
//   - id: the lighting model
//
// Returns:
//   - PassBuilderOption: a function that applies the lighting model option to a pass
func WithLightingModel(id flags.LightingModelID) PassBuilderOption {
	return func(p *pass) {
		p.lightingModel = id
	}
}

// WithTextureUnit is an option builder that appends a texture unit. Units are sampled
// in the order they were added.
//
// Parameters:
//   - unit: the texture unit
//
// Returns:
//   - PassBuilderOption: a function that applies the texture unit option to a pass
func WithTextureUnit(unit TextureUnit) PassBuilderOption {
	return func(p *pass) {
		p.units = append(p.units, unit)
	}
}

// WithPassLogger sets the logger.
func WithPassLogger(logger *slog.Logger) PassBuilderOption {
	return func(p *pass) {
		p.logger = logger
	}
}
