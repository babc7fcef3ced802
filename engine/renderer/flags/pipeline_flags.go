package flags

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// LightingModelID identifies a registered lighting model (BRDF family).
type LightingModelID uint8

const (
	LightingModelNone LightingModelID = iota
	LightingModelPhong
	LightingModelPBR
)

// BackgroundModelID identifies how the background contributes to reflections.
type BackgroundModelID uint8

const (
	BackgroundModelColour BackgroundModelID = iota
	BackgroundModelSkybox
	BackgroundModelIBL
)

// PassTypeID identifies a material pass type registered with the component registry.
type PassTypeID uint16

// RenderPassTypeID identifies the technique pass requesting a permutation.
type RenderPassTypeID uint16

// CombineID is the dense id the component registry assigns to one distinct
// combination of component or texture flags. Zero means "no combination".
type CombineID uint16

// CullSide selects which triangle faces are discarded.
type CullSide uint8

const (
	CullNone CullSide = iota
	CullFront
	CullBack
)

// WGPU maps the cull side onto the wgpu cull mode.
func (c CullSide) WGPU() wgpu.CullMode {
	switch c {
	case CullFront:
		return wgpu.CullModeFront
	case CullBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

// PipelineFlags aggregates every selector that identifies one pipeline permutation.
// It is a plain value: copy it freely, compare it with ==, and hash it with Hash.
type PipelineFlags struct {
	Components      ComponentFlags
	ComponentsID    CombineID
	Textures        TextureFlags
	TexturesID      CombineID
	Scene           SceneFlags
	Submesh         SubmeshFlags
	Program         ProgramFlags
	Shader          ShaderFlags
	LightingModel   LightingModelID
	BackgroundModel BackgroundModelID
	PassType        PassTypeID
	RenderPassType  RenderPassTypeID
	Topology        wgpu.PrimitiveTopology
	Culling         CullSide
	AlphaFunc       wgpu.CompareFunction
	VertexStride    uint32
}

// PipelineFlagsOption is a functional option applied by NewPipelineFlags.
// Bitset options OR into the current value, so options commute.
type PipelineFlagsOption func(*PipelineFlags)

// NewPipelineFlags builds a PipelineFlags value from options. The result does not depend
// on option order because bitset options accumulate with OR and scalar options are
// expected to be given once.
//
// Parameters:
//   - opts: the selectors making up the permutation
//
// Returns:
//   - PipelineFlags: the aggregated flags
func NewPipelineFlags(opts ...PipelineFlagsOption) PipelineFlags {
	f := PipelineFlags{
		Topology:  wgpu.PrimitiveTopologyTriangleList,
		AlphaFunc: wgpu.CompareFunctionAlways,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithComponents ORs component flag sets into the permutation.
func WithComponents(sets ...ComponentFlags) PipelineFlagsOption {
	return func(f *PipelineFlags) {
		f.Components |= CombineComponents(sets...)
	}
}

// WithComponentsID sets the registry combine id matching the component flags.
func WithComponentsID(id CombineID) PipelineFlagsOption {
	return func(f *PipelineFlags) { f.ComponentsID = id }
}

// WithTextures ORs texture flags into the permutation and records their combine id.
func WithTextures(id CombineID, sets ...TextureFlags) PipelineFlagsOption {
	return func(f *PipelineFlags) {
		f.TexturesID = id
		for _, s := range sets {
			f.Textures |= s
		}
	}
}

// WithScene ORs scene feature flags into the permutation.
func WithScene(sets ...SceneFlags) PipelineFlagsOption {
	return func(f *PipelineFlags) {
		for _, s := range sets {
			f.Scene |= s
		}
	}
}

// WithSubmesh ORs submesh attribute flags into the permutation.
func WithSubmesh(sets ...SubmeshFlags) PipelineFlagsOption {
	return func(f *PipelineFlags) {
		for _, s := range sets {
			f.Submesh |= s
		}
	}
}

// WithProgram ORs program flags into the permutation.
func WithProgram(sets ...ProgramFlags) PipelineFlagsOption {
	return func(f *PipelineFlags) {
		for _, s := range sets {
			f.Program |= s
		}
	}
}

// WithShader ORs shader capability flags into the permutation.
func WithShader(sets ...ShaderFlags) PipelineFlagsOption {
	return func(f *PipelineFlags) {
		for _, s := range sets {
			f.Shader |= s
		}
	}
}

// WithLightingModel selects the lighting model.
func WithLightingModel(id LightingModelID) PipelineFlagsOption {
	return func(f *PipelineFlags) { f.LightingModel = id }
}

// WithBackgroundModel selects the background model.
func WithBackgroundModel(id BackgroundModelID) PipelineFlagsOption {
	return func(f *PipelineFlags) { f.BackgroundModel = id }
}

// WithPassType selects the material pass type.
func WithPassType(id PassTypeID) PipelineFlagsOption {
	return func(f *PipelineFlags) { f.PassType = id }
}

// WithRenderPassType selects the requesting technique pass.
func WithRenderPassType(id RenderPassTypeID) PipelineFlagsOption {
	return func(f *PipelineFlags) { f.RenderPassType = id }
}

// WithTopology selects the primitive topology.
func WithTopology(t wgpu.PrimitiveTopology) PipelineFlagsOption {
	return func(f *PipelineFlags) { f.Topology = t }
}

// WithCulling selects the culled side.
func WithCulling(c CullSide) PipelineFlagsOption {
	return func(f *PipelineFlags) { f.Culling = c }
}

// WithAlphaFunc selects the alpha test comparison.
func WithAlphaFunc(fn wgpu.CompareFunction) PipelineFlagsOption {
	return func(f *PipelineFlags) { f.AlphaFunc = fn }
}

// WithVertexStride records the stride of a shared vertex source (billboards, instancing).
func WithVertexStride(stride uint32) PipelineFlagsOption {
	return func(f *PipelineFlags) { f.VertexStride = stride }
}

// HasFog reports whether any fog equation is enabled.
func (f PipelineFlags) HasFog() bool { return f.Scene.HasAny(SceneFogMask) }

// HasGI reports whether any global illumination technique is enabled.
func (f PipelineFlags) HasGI() bool { return f.Scene.HasAny(SceneGIMask) }

// IsBillboard reports whether the permutation draws billboards from a shared vertex buffer.
func (f PipelineFlags) IsBillboard() bool { return f.Program.Has(ProgramBillboards) }

// Extras returns the extra fields packed into the compact hash of f.
func (f PipelineFlags) Extras() ExtraFields {
	if f.VertexStride != 0 {
		return ExtraVertexStride
	}
	return ExtraNone
}

// BaseFields returns the subset of f that the compact hash can round-trip.
func (f PipelineFlags) BaseFields() BaseHashFields {
	return BaseHashFields{
		Submesh:      f.Submesh,
		Program:      f.Program,
		Components:   f.ComponentsID,
		Textures:     f.TexturesID,
		PassType:     f.PassType,
		FrontCulled:  f.Culling == CullFront,
		VertexStride: f.VertexStride,
	}
}
