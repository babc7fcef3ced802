package visibility

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
)

// ResolveBuilderOption is a functional option used to configure a ResolveProgram during construction.
type ResolveBuilderOption func(*ResolveProgram)

// WithResolvePushConstantMode selects how the per-pipeline block is declared. The
// default emulates it with a dynamically offset uniform.
//
// Parameters:
//   - mode: the push constant mode
//
// Returns:
//   - ResolveBuilderOption: a function that sets the mode
func WithResolvePushConstantMode(mode shader.PushConstantMode) ResolveBuilderOption {
	return func(p *ResolveProgram) {
		p.mode = mode
	}
}

// WithResolveLogger sets the logger.
func WithResolveLogger(logger *slog.Logger) ResolveBuilderOption {
	return func(p *ResolveProgram) {
		if logger != nil {
			p.logger = logger
		}
	}
}
