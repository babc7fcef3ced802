package technique

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/model"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
	"github.com/cogentcore/webgpu/wgpu"
)

// Binding roles of the technique-owned resources.
const (
	RoleScene       shader.AnnotationArg = "scene"
	RoleNodes       shader.AnnotationArg = "nodes"
	RoleIndices     shader.AnnotationArg = "indices"
	RoleStream      shader.AnnotationArg = "stream"
	RoleGBuffer     shader.AnnotationArg = "gbuffer"
	RoleDepth       shader.AnnotationArg = "depth"
	RoleAccumulated shader.AnnotationArg = "accumulated"
)

// FixedBindings are the group 0 bindings a pass declares before the shader modules.
// Modules claim the slots after them, so the first module binding sits at Count.
type FixedBindings struct {
	bindings []shader.Binding
}

// NewFixedBindings lists bindings in slot order.
func NewFixedBindings(bindings ...shader.Binding) FixedBindings {
	return FixedBindings{bindings: bindings}
}

// Count returns the number of slots the bindings occupy.
func (f FixedBindings) Count() uint32 { return uint32(len(f.bindings)) }

// Bindings returns the bindings in slot order, with slots unassigned.
func (f FixedBindings) Bindings() []shader.Binding { return f.bindings }

// Names returns the binding names in slot order.
func (f FixedBindings) Names() []string {
	names := make([]string, len(f.bindings))
	for i, b := range f.bindings {
		names[i] = b.Name
	}
	return names
}

// Declare claims every binding from the context's counter. The counter must start at
// the first slot of group 0.
func (f FixedBindings) Declare(ctx *modules.Context) {
	for _, b := range f.bindings {
		ctx.Claim(b)
	}
}

var (
	sceneBinding = shader.Binding{Name: "c3d_scene", Kind: shader.BindingUniform, Struct: shader.AnnotationArgScene,
		Provider: shader.AnnotationArgTechnique, Role: RoleScene}
	nodesBinding = shader.Binding{Name: "c3d_nodes", Kind: shader.BindingStorage, Struct: shader.AnnotationArgNodeData, Array: true,
		Provider: shader.AnnotationArgTechnique, Role: RoleNodes}
)

func gbufferTexture(name string) shader.Binding {
	return shader.Binding{Name: name, Kind: shader.BindingSampledTexture, Type: "texture_2d<f32>",
		Provider: shader.AnnotationArgTechnique, Role: RoleGBuffer}
}

// G-buffer layout read by the deferred passes:
//
//	c3d_gbufferAlbedo    rgb albedo, a occlusion
//	c3d_gbufferNormal    xyz world normal, w roughness
//	c3d_gbufferMaterial  r metalness, gba emissive
//	c3d_depth            hardware depth
var gbufferBindings = []shader.Binding{
	gbufferTexture("c3d_gbufferAlbedo"),
	gbufferTexture("c3d_gbufferNormal"),
	gbufferTexture("c3d_gbufferMaterial"),
	{Name: "c3d_depth", Kind: shader.BindingDepthTexture, Type: "texture_depth_2d",
		Provider: shader.AnnotationArgTechnique, Role: RoleDepth},
}

// DeferredFixedBindings returns the fixed bindings of the passes lighting the g-buffer.
func DeferredFixedBindings() FixedBindings {
	return NewFixedBindings(append([]shader.Binding{sceneBinding}, gbufferBindings...)...)
}

// forwardStreams are the vertex streams the forward transparent pass pulls.
var forwardStreams = []model.VertexStream{
	model.StreamPositions, model.StreamNormals, model.StreamTexcoords0, model.StreamColours,
}

// ForwardFixedBindings returns the fixed bindings of the forward transparent pass.
// Geometry is pulled from storage by the vertex stage, so those bindings are visible
// to both stages.
func ForwardFixedBindings() FixedBindings {
	both := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	scene, nodes := sceneBinding, nodesBinding
	scene.Stages, nodes.Stages = both, both
	out := []shader.Binding{scene, nodes, {Name: "c3d_indices", Kind: shader.BindingStorage, Type: "array<u32>",
		Stages: wgpu.ShaderStageVertex, Provider: shader.AnnotationArgTechnique, Role: RoleIndices}}
	for _, s := range forwardStreams {
		out = append(out, shader.Binding{Name: s.Name(), Kind: shader.BindingStorage, Type: "array<" + s.WGSLType() + ">",
			Stages: wgpu.ShaderStageVertex, Provider: shader.AnnotationArgTechnique, Role: RoleStream})
	}
	return NewFixedBindings(out...)
}

// CombineFixedBindings returns the fixed bindings of the weighted blended combine.
func CombineFixedBindings() FixedBindings {
	return NewFixedBindings(
		shader.Binding{Name: "c3d_accumulation", Kind: shader.BindingSampledTexture, Type: "texture_2d<f32>",
			Provider: shader.AnnotationArgTechnique, Role: RoleAccumulated},
		shader.Binding{Name: "c3d_revealage", Kind: shader.BindingSampledTexture, Type: "texture_2d<f32>",
			Provider: shader.AnnotationArgTechnique, Role: RoleAccumulated},
	)
}

// Slot returns the slot of a named binding, or false when the bindings lack it.
func (f FixedBindings) Slot(name string) (uint32, bool) {
	for i, b := range f.bindings {
		if b.Name == name {
			return uint32(i), true
		}
	}
	return 0, false
}
