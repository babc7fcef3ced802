package pipeline

import "github.com/cogentcore/webgpu/wgpu"

// PipelineBuilderOption adjusts the RenderState of one pipeline variant. Sources return
// them from Options.
type PipelineBuilderOption func(*RenderState)

// WithTargets sets the colour target formats in attachment order.
func WithTargets(formats ...wgpu.TextureFormat) PipelineBuilderOption {
	return func(s *RenderState) {
		s.Targets = formats
	}
}

// WithBlendEnabled turns blending of the colour targets on or off.
//
// Parameters:
//   - enabled: whether TargetBlend returns a blend state
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(s *RenderState) {
		s.BlendEnabled = enabled
	}
}

// WithBlendState sets the blend state shared by all colour targets.
func WithBlendState(blend *wgpu.BlendState) PipelineBuilderOption {
	return func(s *RenderState) {
		s.Blend = blend
	}
}

// WithTargetBlendState overrides the blend state of one colour target. Weighted blended
// accumulation blends its accumulation and revealage targets differently.
//
// Parameters:
//   - target: the colour target index
//   - blend: the blend state of that target, nil to leave it unblended
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithTargetBlendState(target int, blend *wgpu.BlendState) PipelineBuilderOption {
	return func(s *RenderState) {
		if s.TargetBlends == nil {
			s.TargetBlends = make(map[int]*wgpu.BlendState)
		}
		s.TargetBlends[target] = blend
	}
}

// WithDepthFormat sets the depth attachment format. TextureFormatUndefined drops the
// depth-stencil state.
func WithDepthFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(s *RenderState) {
		s.DepthFormat = format
	}
}

func WithDepthTestEnabled(enabled bool) PipelineBuilderOption {
	return func(s *RenderState) {
		s.DepthTest = enabled
	}
}

func WithDepthWriteEnabled(enabled bool) PipelineBuilderOption {
	return func(s *RenderState) {
		s.DepthWrite = enabled
	}
}

// WithDepthCompare sets the comparison used while depth testing is enabled.
func WithDepthCompare(fn wgpu.CompareFunction) PipelineBuilderOption {
	return func(s *RenderState) {
		s.DepthCompare = fn
	}
}

// WithCullMode sets the faces to discard.
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(s *RenderState) {
		s.Primitive.CullMode = mode
	}
}

// WithTopology sets the primitive topology, which comes from the submesh.
func WithTopology(topology wgpu.PrimitiveTopology) PipelineBuilderOption {
	return func(s *RenderState) {
		s.Primitive.Topology = topology
	}
}
