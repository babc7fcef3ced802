package pipeline

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

// RenderState is the fixed-function state a render pipeline is created from. A cache
// entry builds its first and blend variants from one program with two states; compute
// pipelines ignore it.
type RenderState struct {
	Targets   []wgpu.TextureFormat
	WriteMask wgpu.ColorWriteMask

	BlendEnabled bool
	// Blend applies to every target without an entry in TargetBlends. A nil entry there
	// leaves that target unblended.
	Blend        *wgpu.BlendState
	TargetBlends map[int]*wgpu.BlendState

	// DepthFormat is TextureFormatUndefined for passes without a depth attachment.
	DepthFormat         wgpu.TextureFormat
	DepthTest           bool
	DepthWrite          bool
	DepthCompare        wgpu.CompareFunction
	DepthBias           int32
	DepthBiasSlopeScale float32

	Primitive   wgpu.PrimitiveState
	SampleCount uint32
}

// DefaultRenderState is an opaque, depth-tested triangle list into one RGBA16F target.
// Its blend state is the usual alpha "over", used once blending is enabled.
func DefaultRenderState() RenderState {
	return RenderState{
		Targets:   []wgpu.TextureFormat{wgpu.TextureFormatRGBA16Float},
		WriteMask: wgpu.ColorWriteMaskAll,
		Blend: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
		DepthFormat:  wgpu.TextureFormatDepth32Float,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: wgpu.CompareFunctionLess,
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		SampleCount: 1,
	}
}

// TargetBlend returns the blend state of a colour target, nil while blending is off.
func (s RenderState) TargetBlend(target int) *wgpu.BlendState {
	if !s.BlendEnabled {
		return nil
	}
	if b, ok := s.TargetBlends[target]; ok {
		return b
	}
	return s.Blend
}

func (s RenderState) colourTargets() []wgpu.ColorTargetState {
	out := make([]wgpu.ColorTargetState, len(s.Targets))
	for i, format := range s.Targets {
		out[i] = wgpu.ColorTargetState{Format: format, WriteMask: s.WriteMask, Blend: s.TargetBlend(i)}
	}
	return out
}

func (s RenderState) depthStencil() *wgpu.DepthStencilState {
	if s.DepthFormat == wgpu.TextureFormatUndefined {
		return nil
	}
	compare := s.DepthCompare
	if !s.DepthTest {
		compare = wgpu.CompareFunctionAlways
	}
	always := wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways}
	return &wgpu.DepthStencilState{
		Format:              s.DepthFormat,
		DepthWriteEnabled:   s.DepthWrite,
		DepthCompare:        compare,
		DepthBias:           s.DepthBias,
		DepthBiasSlopeScale: s.DepthBiasSlopeScale,
		StencilFront:        always,
		StencilBack:         always,
	}
}

// Pipeline is one backend pipeline of a cache entry, with the program stages and the
// state it was created from.
type Pipeline interface {
	// Type returns whether this is a render or a compute pipeline.
	Type() PipelineType

	// Label returns the program key followed by the variant.
	Label() string

	// Shader returns the stage of the given type, nil when the program has none.
	//
	// Parameters:
	//   - shaderType: vertex, fragment or compute
	//
	// Returns:
	//   - shader.Shader: the stage, or nil
	Shader(shaderType shader.ShaderType) shader.Shader

	// State returns the fixed-function state of a render pipeline.
	State() RenderState

	// RenderPipeline returns the backend render pipeline, nil for compute pipelines.
	RenderPipeline() backend.RenderPipeline

	// ComputePipeline returns the backend compute pipeline, nil for render pipelines.
	ComputePipeline() backend.ComputePipeline

	// Release releases the backend pipeline.
	Release()
}

type pipeline struct {
	kind    PipelineType
	label   string
	stages  map[shader.ShaderType]shader.Shader
	state   RenderState
	render  backend.RenderPipeline
	compute backend.ComputePipeline
}

var _ Pipeline = &pipeline{}

func newPipeline(label string, kind PipelineType, stages []shader.Shader, opts ...PipelineBuilderOption) *pipeline {
	p := &pipeline{
		kind:   kind,
		label:  label,
		stages: make(map[shader.ShaderType]shader.Shader, len(stages)),
		state:  DefaultRenderState(),
	}
	for _, s := range stages {
		if s != nil {
			p.stages[s.ShaderType()] = s
		}
	}
	for _, opt := range opts {
		opt(&p.state)
	}
	return p
}

func (p *pipeline) Type() PipelineType                       { return p.kind }
func (p *pipeline) Label() string                            { return p.label }
func (p *pipeline) Shader(t shader.ShaderType) shader.Shader { return p.stages[t] }
func (p *pipeline) State() RenderState                       { return p.state }
func (p *pipeline) RenderPipeline() backend.RenderPipeline   { return p.render }
func (p *pipeline) ComputePipeline() backend.ComputePipeline { return p.compute }

// renderDescriptor describes the render pipeline. fs is nil for depth-only pipelines.
func (p *pipeline) renderDescriptor(layout backend.PipelineLayout, vs, fs backend.ShaderModule) backend.RenderPipelineDescriptor {
	desc := backend.RenderPipelineDescriptor{
		Label:        p.label + " Render Pipeline",
		Layout:       layout,
		Vertex:       vs,
		Primitive:    p.state.Primitive,
		DepthStencil: p.state.depthStencil(),
		SampleCount:  p.state.SampleCount,
	}
	if v := p.stages[shader.ShaderTypeVertex]; v != nil {
		desc.VertexEntry = v.EntryPoint()
		desc.VertexBuffers = v.VertexLayouts()
	}
	if f := p.stages[shader.ShaderTypeFragment]; fs != nil && f != nil {
		desc.Fragment = fs
		desc.FragmentEntry = f.EntryPoint()
		desc.Targets = p.state.colourTargets()
	}
	return desc
}

func (p *pipeline) Release() {
	if p.render != nil {
		p.render.Release()
		p.render = nil
	}
	if p.compute != nil {
		p.compute.Release()
		p.compute = nil
	}
}
