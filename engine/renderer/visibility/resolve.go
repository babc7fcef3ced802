package visibility

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-castor/engine/model"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
	"github.com/cogentcore/webgpu/wgpu"
)

// Backend selects how the resolve obtains its pixel and writes its result.
type Backend int

const (
	// BackendGraphics draws a fullscreen triangle per pipeline id; each fragment
	// shades the pixel under it when the pixel belongs to that pipeline.
	BackendGraphics Backend = iota
	// BackendCompute runs one thread per entry of the pipeline's pixel bucket and
	// stores into storage images.
	BackendCompute
)

func (b Backend) String() string {
	if b == BackendCompute {
		return "compute"
	}
	return "graphics"
}

// Binding roles of the resolve's fixed bindings.
const (
	RoleScene         shader.AnnotationArg = "scene"
	RoleNodes         shader.AnnotationArg = "nodes"
	RoleVisibility    shader.AnnotationArg = "visibility"
	RoleIndices       shader.AnnotationArg = "indices"
	RoleStream        shader.AnnotationArg = "stream"
	RolePixels        shader.AnnotationArg = "pixels"
	RoleBucketCounts  shader.AnnotationArg = "bucket_counts"
	RoleBucketStarts  shader.AnnotationArg = "bucket_starts"
	RoleOutColour     shader.AnnotationArg = "out_colour"
	RoleOutVelocity   shader.AnnotationArg = "out_velocity"
	RoleBucketCursors shader.AnnotationArg = "bucket_cursors"
)

// Fixed binding slots of group 0, shared by both back ends. The vertex streams follow
// BindingStreams in model.VertexStream order.
const (
	BindingScene      = 0
	BindingNodes      = 1
	BindingVisibility = 2
	BindingIndices    = 3
	BindingStreams    = 4
)

// streamCount is the number of raw vertex streams bound by the resolve.
const streamCount = uint32(model.StreamPassMasks) + 1

// Compute-only fixed bindings, after the streams.
const (
	BindingPixels       = BindingStreams + streamCount
	BindingBucketCounts = BindingPixels + 1
	BindingBucketStarts = BindingPixels + 2
	BindingOutColour    = BindingPixels + 3
	BindingOutVelocity  = BindingPixels + 4
)

// ResolveWorkgroupSize is the compute resolve's threads per workgroup.
const ResolveWorkgroupSize = 64

// Output formats of the resolve targets.
const (
	ColourFormat   = wgpu.TextureFormatRGBA16Float
	VelocityFormat = wgpu.TextureFormatRG32Float
)

// PushConstantsType and the members of the resolve's per-draw block.
const (
	PushConstantsType = "ResolveData"
	PushConstantsVar  = "c3d_resolveData"
)

// ResolvePushConstants returns the resolve's push constant block for the given stages.
func ResolvePushConstants(stages wgpu.ShaderStage) shader.PushConstantBlock {
	return shader.PushConstantBlock{
		TypeName: PushConstantsType,
		VarName:  PushConstantsVar,
		Members: []shader.PushConstantMember{
			{Name: "pipelineId", Type: "u32"},
			{Name: "billboardNodeId", Type: "u32"},
		},
		Stages: stages,
	}
}

// FixedBindingCount returns how many group 0 slots a back end reserves before the
// lighting block.
func FixedBindingCount(b Backend) uint32 {
	if b == BackendCompute {
		return BindingOutVelocity + 1
	}
	return BindingPixels
}

// resultType is the struct the shared resolve function returns.
const resultType = "ResolveResult"

// ResolveProgram generates the resolve programs of one back end: one program per
// pipeline permutation, each shading the pixels whose visibility texel carries its
// pipeline id. Both back ends call the same generated resolve function.
type ResolveProgram struct {
	registry *component.Registry
	backend  Backend
	mode     shader.PushConstantMode
	logger   *slog.Logger
}

// NewResolveProgram creates a resolve generator.
//
// Parameters:
//   - registry: the component registry providing the material blend
//   - backend: the back end to generate for
//   - opts: variadic list of ResolveBuilderOption functions
//
// Returns:
//   - *ResolveProgram: the generator
func NewResolveProgram(registry *component.Registry, backend Backend, opts ...ResolveBuilderOption) *ResolveProgram {
	p := &ResolveProgram{
		registry: registry,
		backend:  backend,
		mode:     shader.PushConstantsUniform,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Backend returns the back end the generator targets.
func (p *ResolveProgram) Backend() Backend { return p.backend }

func (p *ResolveProgram) stages() wgpu.ShaderStage {
	if p.backend == BackendCompute {
		return wgpu.ShaderStageCompute
	}
	return wgpu.ShaderStageFragment
}

// Program generates the resolve program of one permutation.
//
// Parameters:
//   - f: the permutation's flags
//
// Returns:
//   - *shader.Program: the program, vertex+fragment or compute
//   - error: a generation failure
func (p *ResolveProgram) Program(f flags.PipelineFlags) (*shader.Program, error) {
	key := fmt.Sprintf("visibility-resolve-%s-%s", p.backend, f.Hash())
	w := shader.NewWriter(
		shader.WithLabel(key),
		shader.WithPushConstantMode(p.mode),
		shader.WithWriterLogger(p.logger),
	)
	stages := p.stages()
	ctx := modules.NewContext(w, f, shader.NewBindingCounter(0, 0), stages)
	ctx.Logger = p.logger

	p.declareFixed(ctx)
	lit := f.Components.HasAny(flags.ComponentLightingMask)
	utils, lighting, lights := modules.NewLightingBlock(ctx, lit)
	set := modules.Build(ctx, utils, lighting)

	matCtx := modules.NewContext(w, f, shader.NewBindingCounter(component.MaterialGroup, 0), stages)
	matCtx.Logger = p.logger
	p.registry.DeclareMaterials(matCtx)

	w.DeclarePushConstants(ResolvePushConstants(stages))
	DeclarePacking(w)

	resolve, err := p.declareResolve(ctx, set, lights)
	if err != nil {
		return nil, err
	}
	switch p.backend {
	case BackendCompute:
		p.computeEntry(w, resolve)
	default:
		p.graphicsEntries(w, resolve)
	}
	return w.Finish(key)
}

// FixedBindings returns the group 0 bindings a back end declares before the lighting
// block, in slot order. Slots are left to the claiming counter.
func FixedBindings(b Backend) []shader.Binding {
	out := []shader.Binding{
		{Name: "c3d_scene", Kind: shader.BindingUniform, Struct: shader.AnnotationArgScene,
			Provider: shader.AnnotationArgTechnique, Role: RoleScene},
		{Name: "c3d_nodes", Kind: shader.BindingStorage, Struct: shader.AnnotationArgNodeData, Array: true,
			Provider: shader.AnnotationArgTechnique, Role: RoleNodes},
		{Name: "c3d_visibility", Kind: shader.BindingSampledTexture, Type: "texture_2d<u32>",
			Provider: shader.AnnotationArgVisibility, Role: RoleVisibility},
		{Name: "c3d_indices", Kind: shader.BindingStorage, Type: "array<u32>",
			Provider: shader.AnnotationArgTechnique, Role: RoleIndices},
	}
	for s := model.StreamPositions; s <= model.StreamPassMasks; s++ {
		out = append(out, shader.Binding{Name: s.Name(), Kind: shader.BindingStorage, Type: "array<" + s.WGSLType() + ">",
			Provider: shader.AnnotationArgTechnique, Role: RoleStream})
	}
	if b != BackendCompute {
		return out
	}
	return append(out,
		shader.Binding{Name: "c3d_pixels", Kind: shader.BindingStorage, Type: "array<u32>",
			Provider: shader.AnnotationArgVisibility, Role: RolePixels},
		shader.Binding{Name: "c3d_bucketCounts", Kind: shader.BindingStorage, Type: "array<u32>",
			Provider: shader.AnnotationArgVisibility, Role: RoleBucketCounts},
		shader.Binding{Name: "c3d_bucketStarts", Kind: shader.BindingStorage, Type: "array<u32>",
			Provider: shader.AnnotationArgVisibility, Role: RoleBucketStarts},
		shader.Binding{Name: "c3d_outColour", Kind: shader.BindingStorageTexture, Type: "texture_storage_2d<rgba16float, write>",
			Provider: shader.AnnotationArgTechnique, Role: RoleOutColour},
		shader.Binding{Name: "c3d_outVelocity", Kind: shader.BindingStorageTexture, Type: "texture_storage_2d<rg32float, write>",
			Provider: shader.AnnotationArgTechnique, Role: RoleOutVelocity},
	)
}

func (p *ResolveProgram) declareFixed(ctx *modules.Context) {
	for _, b := range FixedBindings(p.backend) {
		ctx.Claim(b)
	}
}

// vertexAttribute loads one stream at the three vertex indices.
func vertexAttribute(fb *shader.FunctionBuilder, s model.VertexStream, name, convert string) [3]string {
	var out [3]string
	for i := range 3 {
		expr := fmt.Sprintf("%s[i%d]", s.Name(), i)
		if convert != "" {
			expr = convert + "(" + expr + ")"
		}
		out[i] = fb.Let(fmt.Sprintf("%s%d", name, i), expr)
	}
	return out
}

func (p *ResolveProgram) declareResolve(ctx *modules.Context, set *modules.Set, lights *modules.ClusteredLights) (*shader.Function, error) {
	w := ctx.Writer
	f := ctx.Flags
	compute := p.backend == BackendCompute
	rec := NewReconstruction(w)
	modules.DeclareSurface(w)
	w.DeclareStruct(resultType,
		"colour: vec4<f32>",
		"velocity: vec2<f32>",
		"covered: bool",
	)

	return w.ImplementFunction("c3d_resolvePixel",
		[]shader.Param{{Name: "pixel", Type: "vec2<u32>"}},
		resultType,
		func(fb *shader.FunctionBuilder) {
			fb.Var("result", resultType, "")
			fb.Let("texel", "textureLoad(c3d_visibility, vec2<i32>(pixel), 0)")
			fb.Let("nodeId", "texel.x >> C3D_MAX_PIPELINES_SIZE")
			fb.Let("pipelineId", "texel.x & C3D_PIPELINE_MASK")
			fb.If("nodeId == 0u || pipelineId != "+PushConstantsVar+".pipelineId", func() { fb.Return("result") })
			fb.Assign("result.covered", "true")

			fb.Let("node", "c3d_nodes[nodeId - 1u]")
			if f.IsBillboard() {
				// instances share the geometry of the billboard node
				fb.Let("geometry", "c3d_nodes["+PushConstantsVar+".billboardNodeId - 1u]")
			} else {
				fb.Let("geometry", "node")
			}
			fb.Let("firstIndex", "geometry.baseIndex + texel.y * 3u")
			for i := range 3 {
				fb.Let(fmt.Sprintf("i%d", i), fmt.Sprintf("c3d_indices[firstIndex + %du] + geometry.baseVertex", i))
			}

			local := vertexAttribute(fb, model.StreamPositions, "local", "")
			var world, clip [3]string
			for i := range 3 {
				world[i] = fb.Let(fmt.Sprintf("world%d", i), "node.model * vec4<f32>("+local[i]+".xyz, 1.0)")
				clip[i] = fb.Let(fmt.Sprintf("clip%d", i), "c3d_scene.viewProj * "+world[i])
			}
			fb.Let("ndc", "vec2<f32>((vec2<f32>(pixel) + 0.5) / c3d_scene.renderSize * 2.0 - 1.0) * vec2<f32>(1.0, -1.0)")
			derivs := fb.Let("derivs", rec.ComputeFullDerivatives(clip[0], clip[1], clip[2], "ndc", "c3d_scene.renderSize"))

			fb.Var("surface", modules.SurfaceType, "")
			fb.Let("worldPos", rec.InterpolateValue("vec4<f32>", derivs, world[0], world[1], world[2]))
			fb.Assign("surface.worldPosition", "worldPos.xyz")
			fb.Assign("surface.viewDepth", "-(c3d_scene.view * vec4<f32>(worldPos.xyz, 1.0)).z")
			fb.Assign("surface.viewDir", "normalize(c3d_scene.cameraPosition - worldPos.xyz)")
			fb.Assign("surface.fragCoord", "vec2<f32>(pixel) + 0.5")
			fb.Assign("surface.opacity", "1.0")
			fb.Assign("surface.occlusion", "1.0")
			fb.Assign("surface.roughness", "1.0")
			fb.Assign("surface.albedo", "vec3<f32>(1.0)")

			if f.Submesh.Has(flags.SubmeshNormals) {
				n := vertexAttribute(fb, model.StreamNormals, "normal", "")
				fb.Let("localNormal", rec.InterpolateValue("vec3<f32>", derivs, n[0]+".xyz", n[1]+".xyz", n[2]+".xyz"))
				fb.Assign("surface.normal", "normalize((node.normal * vec4<f32>(localNormal, 0.0)).xyz)")
			} else {
				fb.Assign("surface.normal", "normalize(cross("+world[1]+".xyz - "+world[0]+".xyz, "+world[2]+".xyz - "+world[0]+".xyz))")
			}
			if f.Program.Has(flags.ProgramInvertNormals) {
				fb.Assign("surface.normal", "-surface.normal")
			}

			texDx, texDy := "vec2<f32>(0.0)", "vec2<f32>(0.0)"
			if f.Submesh.Has(flags.SubmeshTexcoords0) {
				uv := vertexAttribute(fb, model.StreamTexcoords0, "uv", "")
				v, dx, dy := rec.Interpolate("vec2<f32>", derivs, uv[0]+".xy", uv[1]+".xy", uv[2]+".xy")
				fb.Assign("surface.texcoord", v)
				texDx = fb.Let("texcoordDx", dx)
				texDy = fb.Let("texcoordDy", dy)
			}

			fb.Let("material", "c3d_materials[node.materialId]")
			in := component.ApplyInputs{Surface: "surface", Material: "material", EnvMapIndex: "node.envMapIndex", Compute: compute, Flags: f}
			p.registry.BlendSurface(fb, in, set.TextureAnimations, texDx, texDy)

			if f.Submesh.Has(flags.SubmeshColours) {
				c := vertexAttribute(fb, model.StreamColours, "colour", "")
				fb.Let("vertexColour", rec.InterpolateValue("vec4<f32>", derivs, c[0], c[1], c[2]))
				fb.Assign("surface.albedo", "surface.albedo * vertexColour.rgb")
				fb.Assign("surface.opacity", "surface.opacity * vertexColour.a")
			}
			passMultipliers := ""
			if f.Submesh.Has(flags.SubmeshPassMasks) {
				m := vertexAttribute(fb, model.StreamPassMasks, "passMask", "vec4<f32>")
				passMultipliers = fb.Let("passMultipliers", rec.InterpolateValue("vec4<f32>", derivs, m[0], m[1], m[2]))
			}

			// motion from the previous frame's transform of the same vertices
			var prevClip [3]string
			for i := range 3 {
				prev := local[i] + ".xyz"
				if f.Submesh.Has(flags.SubmeshVelocity) {
					prev = fmt.Sprintf("%s.xyz - %s[i%d].xyz", local[i], model.StreamVelocity.Name(), i)
				}
				prevClip[i] = fb.Let(fmt.Sprintf("prevClip%d", i), "c3d_scene.prevViewProj * node.prevModel * vec4<f32>("+prev+", 1.0)")
			}
			fb.Let("currentClip", rec.InterpolateValue("vec4<f32>", derivs, clip[0], clip[1], clip[2]))
			fb.Let("previousClip", rec.InterpolateValue("vec4<f32>", derivs, prevClip[0], prevClip[1], prevClip[2]))
			fb.Assign("result.velocity", rec.MotionVector("currentClip", "previousClip"))

			fb.Var("lit", "vec3<f32>", "surface.albedo")
			fb.Var("overflow", "f32", "0.0")
			if lights != nil {
				fb.Let("direct", lights.ComputeCombinedDifSpec("surface"))
				fb.Assign("lit", "direct.diffuse + direct.specular")
				fb.Assign("overflow", "direct.overflow")
			}
			if set.GI.Enabled() {
				fb.Let("indirect", set.GI.ComputeIndirect("surface"))
				fb.Assign("lit", "lit + indirect.diffuse + indirect.specular")
			}
			var refl modules.ReflectionOutputs
			if rr := p.registry.ReflRefr(); rr != nil && set.Reflection.Enabled() {
				if compute && f.Shader.Has(flags.ShaderMippedScene) {
					refl = rr.ComputeReflRefrScene(fb, set.Reflection, in, "surface.worldPosition", "c3d_scene.cameraPosition", "surface.fragCoord")
				} else {
					refl = rr.ComputeReflRefrAt(fb, set.Reflection, in, "surface.worldPosition", "c3d_scene.cameraPosition")
				}
				fb.Assign("lit", "lit + "+refl.ReflectedDiffuse+" + "+refl.ReflectedSpecular+" + "+refl.Refracted)
			}
			fb.Assign("lit", "lit + surface.emissive")
			fb.Var("output", "vec4<f32>", set.Fog.Apply("vec4<f32>(lit, surface.opacity)", "surface.viewDepth"))

			dbg := modules.NewDebugOutput(ctx, fb, "c3d_scene.debugIndex", "output")
			dbg.RegisterVec3("Surface", "Albedo", "surface.albedo")
			dbg.RegisterVec3("Surface", "Normal", "surface.normal * 0.5 + 0.5")
			dbg.RegisterScalar("Surface", "ViewDepth", "surface.viewDepth / c3d_scene.farPlane")
			dbg.Register("Surface", "Texcoord", "vec4<f32>(surface.texcoord, 0.0, 1.0)")
			dbg.RegisterVec3("Visibility", "Barycentrics", derivs+".lambda")
			dbg.Register("Visibility", "Velocity", "vec4<f32>(result.velocity * 10.0 + 0.5, 0.0, 1.0)")
			dbg.RegisterScalar("Lights", "ClusterOverflow", "overflow")
			if passMultipliers != "" {
				dbg.Register("Surface", "PassMultipliers", passMultipliers)
			}
			if refl.ReflectedSpecular != "" {
				dbg.RegisterVec3("Reflection", "Specular", refl.ReflectedSpecular)
			}
			dbg.Close()

			fb.Assign("result.colour", "output")
			fb.Return("result")
		})
}

func (p *ResolveProgram) graphicsEntries(w *shader.Writer, resolve *shader.Function) {
	w.DeclareStruct("ResolveOutput",
		"@location(0) colour: vec4<f32>",
		"@location(1) velocity: vec2<f32>",
	)
	w.ImplementEntryPoint(shader.EntryVertex, "vsMain", "",
		[]shader.Param{{Name: "@builtin(vertex_index) index", Type: "u32"}},
		"@builtin(position) vec4<f32>",
		func(fb *shader.FunctionBuilder) {
			fb.Let("uv", "vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u))")
			fb.Return("vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0)")
		})
	w.ImplementEntryPoint(shader.EntryFragment, "fsMain", "",
		[]shader.Param{{Name: "@builtin(position) fragCoord", Type: "vec4<f32>"}},
		"ResolveOutput",
		func(fb *shader.FunctionBuilder) {
			fb.Let("resolved", w.Call(resolve, "vec2<u32>(fragCoord.xy)"))
			fb.If("!resolved.covered", func() { fb.Line("discard;") })
			fb.Var("result", "ResolveOutput", "")
			fb.Assign("result.colour", "resolved.colour")
			fb.Assign("result.velocity", "resolved.velocity")
			fb.Return("result")
		})
}

func (p *ResolveProgram) computeEntry(w *shader.Writer, resolve *shader.Function) {
	w.ImplementEntryPoint(shader.EntryCompute, "csMain", fmt.Sprintf("@workgroup_size(%d, 1, 1)", ResolveWorkgroupSize),
		[]shader.Param{{Name: "@builtin(global_invocation_id) id", Type: "vec3<u32>"}},
		"",
		func(fb *shader.FunctionBuilder) {
			fb.Let("bucket", PushConstantsVar+".pipelineId")
			fb.If("id.x >= c3d_bucketCounts[bucket]", func() { fb.Return("") })
			fb.Let("packed", "c3d_pixels[c3d_bucketStarts[bucket] + id.x]")
			fb.Let("pixel", "vec2<u32>(packed & C3D_PIXEL_MASK, packed >> 16u)")
			fb.Let("resolved", w.Call(resolve, "pixel"))
			fb.If("!resolved.covered", func() { fb.Return("") })
			fb.Line("textureStore(c3d_outColour, vec2<i32>(pixel), resolved.colour);")
			fb.Line("textureStore(c3d_outVelocity, vec2<i32>(pixel), vec4<f32>(resolved.velocity, 0.0, 0.0));")
		})
}
