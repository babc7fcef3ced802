package modules

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Context is the state shared by every module of one permutation build. It borrows the
// writer; modules never outlive the generation call that created the context.
type Context struct {
	Writer *shader.Writer
	Flags  flags.PipelineFlags

	// Counter hands out the next free binding slot; each module advances it past the
	// slots it claimed.
	Counter *shader.BindingCounter

	// Stages is the visibility given to module bindings.
	Stages wgpu.ShaderStage

	Logger *slog.Logger
}

// NewContext creates a module context.
//
// Parameters:
//   - w: the permutation's writer
//   - f: the permutation's flags
//   - counter: the binding counter, positioned after the technique's fixed bindings
//   - stages: the stages module bindings are visible to
//
// Returns:
//   - *Context: the context
func NewContext(w *shader.Writer, f flags.PipelineFlags, counter *shader.BindingCounter, stages wgpu.ShaderStage) *Context {
	return &Context{
		Writer:  w,
		Flags:   f,
		Counter: counter,
		Stages:  stages,
		Logger:  slog.Default(),
	}
}

// Claim declares a binding at the next free slot.
func (c *Context) Claim(b shader.Binding) string {
	b.Group = c.Counter.Group
	b.Index = c.Counter.Claim()
	if b.Stages == wgpu.ShaderStageNone {
		b.Stages = c.Stages
	}
	return c.Writer.DeclareBinding(b)
}

func (c *Context) texture(name, typ string, provider, role shader.AnnotationArg) string {
	kind := shader.BindingSampledTexture
	if typ == "texture_depth_2d" || typ == "texture_depth_2d_array" || typ == "texture_depth_cube" {
		kind = shader.BindingDepthTexture
	}
	return c.Claim(shader.Binding{Name: name, Kind: kind, Type: typ, Provider: provider, Role: role})
}

func (c *Context) sampler(name string, comparison bool, provider, role shader.AnnotationArg) string {
	b := shader.Binding{Name: name, Kind: shader.BindingSampler, Type: "sampler", Provider: provider, Role: role}
	if comparison {
		b.Kind = shader.BindingComparisonSampler
		b.Type = "sampler_comparison"
	}
	return c.Claim(b)
}
