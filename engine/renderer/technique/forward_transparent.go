package technique

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/model"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/framegraph"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
	"github.com/cogentcore/webgpu/wgpu"
)

// TransparentItem is one transparent node drawn this frame.
type TransparentItem struct {
	Flags flags.PipelineFlags
	// NodeID is the 1-based index of the node in c3d_nodes.
	NodeID     uint32
	IndexCount uint32
}

type transparentDraw struct {
	entry      *pipeline.Entry
	node       uint32
	indexCount uint32
}

// Push constant block of the forward pass.
const (
	drawDataType = "DrawData"
	drawDataVar  = "c3d_drawData"
)

var (
	// accumulationBlend sums the weighted premultiplied colours.
	accumulationBlend = additiveBlend
	// revealageBlend multiplies the revealage by each layer's 1 - alpha.
	revealageBlend = &wgpu.BlendState{
		Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorZero, DstFactor: wgpu.BlendFactorSrc, Operation: wgpu.BlendOperationAdd},
		Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorZero, DstFactor: wgpu.BlendFactorSrcAlpha, Operation: wgpu.BlendOperationAdd},
	}
	// overBlend composites the resolved transparency over the opaque colour.
	overBlend = &wgpu.BlendState{
		Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
		Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorZero, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
	}
)

// ForwardTransparentPass shades transparent nodes with weighted blended order
// independent transparency. The first draw of a frame uses the entry's first variant,
// which overwrites the accumulation targets; later draws use the blend variant.
//
// A node drawn first whose own triangles overlap keeps only the last fragment of the
// overlap, since the first variant does not blend.
type ForwardTransparentPass struct {
	t     *Technique
	fixed FixedBindings
	cache *pipeline.Cache

	mu    sync.Mutex
	draws []transparentDraw
}

var _ pipeline.ProgramSource = &ForwardTransparentPass{}

func newForwardTransparentPass(t *Technique) *ForwardTransparentPass {
	p := &ForwardTransparentPass{t: t, fixed: ForwardFixedBindings()}
	p.cache = pipeline.NewCache(t.device, p, t.cacheOptions(PassForwardTransparent)...)
	return p
}

// Cache returns the pass's pipeline cache.
func (p *ForwardTransparentPass) Cache() *pipeline.Cache { return p.cache }

// Flags completes a node's flags with the scene and the technique's selectors.
func (p *ForwardTransparentPass) Flags(f flags.PipelineFlags, scene flags.SceneFlags) flags.PipelineFlags {
	f.Components = f.Components.With(flags.ComponentAlphaBlending)
	f.Scene = f.Scene.With(scene)
	f.Shader = f.Shader.With(p.t.shaderFlags)
	f.LightingModel = p.t.lightingModel
	f.BackgroundModel = p.t.background
	f.RenderPassType = RenderPassForwardTransparent
	return f
}

// Variants builds a single pipeline. The accumulation targets are cleared when the pass
// begins, so every draw, the first included, blends into them.
func (p *ForwardTransparentPass) Variants(f flags.PipelineFlags) []pipeline.Variant {
	return firstVariant(f)
}

func (p *ForwardTransparentPass) Options(f flags.PipelineFlags, _ pipeline.Variant) []pipeline.PipelineBuilderOption {
	t := p.t.targets
	return []pipeline.PipelineBuilderOption{
		pipeline.WithTargets(t.Accumulation.Format, t.Revealage.Format),
		pipeline.WithDepthFormat(t.Depth.Format),
		pipeline.WithDepthTestEnabled(true),
		pipeline.WithDepthWriteEnabled(false),
		pipeline.WithDepthCompare(wgpu.CompareFunctionLess),
		pipeline.WithCullMode(f.Culling.WGPU()),
		pipeline.WithTopology(f.Topology),
		pipeline.WithBlendEnabled(true),
		pipeline.WithTargetBlendState(0, accumulationBlend),
		pipeline.WithTargetBlendState(1, revealageBlend),
	}
}

// Program generates the forward program of a permutation. Geometry is pulled from the
// index and stream buffers by vertex index, so every permutation shares one layout.
func (p *ForwardTransparentPass) Program(f flags.PipelineFlags) (*shader.Program, error) {
	key := fmt.Sprintf("%s-%s", PassForwardTransparent, f.Hash())
	w := shader.NewWriter(
		shader.WithLabel(key),
		shader.WithPushConstantMode(p.t.mode),
		shader.WithWriterLogger(p.t.logger),
	)
	ctx := modules.NewContext(w, f, shader.NewBindingCounter(0, 0), wgpu.ShaderStageFragment)
	ctx.Logger = p.t.logger

	p.fixed.Declare(ctx)
	lit := f.Components.HasAny(flags.ComponentLightingMask)
	utils, lighting, lights := modules.NewLightingBlock(ctx, lit)
	set := modules.Build(ctx, utils, lighting)

	matCtx := modules.NewContext(w, f, shader.NewBindingCounter(component.MaterialGroup, 0), wgpu.ShaderStageFragment)
	matCtx.Logger = p.t.logger
	p.t.registry.DeclareMaterials(matCtx)

	w.DeclarePushConstants(shader.PushConstantBlock{
		TypeName: drawDataType,
		VarName:  drawDataVar,
		Members:  []shader.PushConstantMember{{Name: "nodeId", Type: "u32"}},
		Stages:   wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
	})
	modules.DeclareSurface(w)
	w.DeclareStruct("VertexOutput",
		"@builtin(position) position: vec4<f32>",
		"@location(0) worldPosition: vec3<f32>",
		"@location(1) normal: vec3<f32>",
		"@location(2) texcoord: vec2<f32>",
		"@location(3) colour: vec4<f32>",
	)
	w.DeclareStruct("TransparentOutput",
		"@location(0) accumulation: vec4<f32>",
		"@location(1) revealage: f32",
	)

	w.ImplementEntryPoint(shader.EntryVertex, "vsMain", "",
		[]shader.Param{{Name: "@builtin(vertex_index) vertexIndex", Type: "u32"}},
		"VertexOutput",
		func(fb *shader.FunctionBuilder) {
			fb.Let("node", "c3d_nodes["+drawDataVar+".nodeId - 1u]")
			fb.Let("index", "c3d_indices[node.baseIndex + vertexIndex] + node.baseVertex")
			fb.Let("world", "node.model * vec4<f32>("+model.StreamPositions.Name()+"[index].xyz, 1.0)")
			fb.Var("out", "VertexOutput", "")
			fb.Assign("out.position", "c3d_scene.viewProj * world")
			fb.Assign("out.worldPosition", "world.xyz")
			fb.Assign("out.normal", "vec3<f32>(0.0, 0.0, 1.0)")
			fb.Assign("out.texcoord", "vec2<f32>(0.0)")
			fb.Assign("out.colour", "vec4<f32>(1.0)")
			if f.Submesh.Has(flags.SubmeshNormals) {
				fb.Assign("out.normal", "(node.normal * vec4<f32>("+model.StreamNormals.Name()+"[index].xyz, 0.0)).xyz")
			}
			if f.Submesh.Has(flags.SubmeshTexcoords0) {
				fb.Assign("out.texcoord", model.StreamTexcoords0.Name()+"[index].xy")
			}
			if f.Submesh.Has(flags.SubmeshColours) {
				fb.Assign("out.colour", model.StreamColours.Name()+"[index]")
			}
			fb.Return("out")
		})

	w.ImplementEntryPoint(shader.EntryFragment, "fsMain", "",
		[]shader.Param{{Name: "input", Type: "VertexOutput"}},
		"TransparentOutput",
		func(fb *shader.FunctionBuilder) {
			fb.Let("node", "c3d_nodes["+drawDataVar+".nodeId - 1u]")
			fb.Var("surface", modules.SurfaceType, "")
			fb.Assign("surface.worldPosition", "input.worldPosition")
			fb.Assign("surface.viewDepth", "-(c3d_scene.view * vec4<f32>(input.worldPosition, 1.0)).z")
			fb.Assign("surface.viewDir", "normalize(c3d_scene.cameraPosition - input.worldPosition)")
			fb.Assign("surface.fragCoord", "input.position.xy")
			fb.Assign("surface.normal", "normalize(input.normal)")
			if f.Program.Has(flags.ProgramInvertNormals) {
				fb.Assign("surface.normal", "-surface.normal")
			}
			fb.Assign("surface.texcoord", "input.texcoord")
			fb.Assign("surface.albedo", "vec3<f32>(1.0)")
			fb.Assign("surface.opacity", "1.0")
			fb.Assign("surface.occlusion", "1.0")
			fb.Assign("surface.roughness", "1.0")
			texDx := fb.Let("texcoordDx", "dpdx(input.texcoord)")
			texDy := fb.Let("texcoordDy", "dpdy(input.texcoord)")

			fb.Let("material", "c3d_materials[node.materialId]")
			in := component.ApplyInputs{Surface: "surface", Material: "material", EnvMapIndex: "node.envMapIndex", Flags: f}
			p.t.registry.BlendSurface(fb, in, set.TextureAnimations, texDx, texDy)
			fb.Assign("surface.albedo", "surface.albedo * input.colour.rgb")
			fb.Assign("surface.opacity", "surface.opacity * input.colour.a")

			fb.Var("lit", "vec3<f32>", "surface.albedo")
			if lights != nil {
				fb.Let("direct", lights.ComputeCombinedDifSpec("surface"))
				fb.Assign("lit", "direct.diffuse + direct.specular")
			}
			if set.GI.Enabled() {
				fb.Let("indirect", set.GI.ComputeIndirect("surface"))
				fb.Assign("lit", "lit + indirect.diffuse + indirect.specular")
			}
			if rr := p.t.registry.ReflRefr(); rr != nil && set.Reflection.Enabled() {
				refl := rr.ComputeReflRefrAt(fb, set.Reflection, in, "surface.worldPosition", "c3d_scene.cameraPosition")
				fb.Assign("lit", "lit + "+refl.ReflectedDiffuse+" + "+refl.ReflectedSpecular+" + "+refl.Refracted)
			}
			fb.Assign("lit", "lit + surface.emissive")
			fb.Let("shaded", set.Fog.Apply("vec4<f32>(lit, surface.opacity)", "surface.viewDepth"))

			fb.Let("alpha", "clamp(shaded.a, 0.0, 1.0)")
			// depth-weighted coverage, bounded so half floats neither overflow nor vanish
			fb.Let("weight", "clamp(pow(min(1.0, alpha * 10.0) + 0.01, 3.0) * 1e8 * pow(1.0 - input.position.z * 0.9, 3.0), 1e-2, 3e3)")
			fb.Var("result", "TransparentOutput", "")
			fb.Assign("result.accumulation", "vec4<f32>(shaded.rgb * alpha, alpha) * weight")
			fb.Assign("result.revealage", "1.0 - alpha")
			fb.Return("result")
		})
	return w.Finish(key)
}

// Prepare builds and binds the programs of the frame's transparent nodes.
//
// Parameters:
//   - items: the transparent nodes, in any order
//   - scene: the scene flags of the frame
//
// Returns:
//   - error: a build or bind failure
func (p *ForwardTransparentPass) Prepare(items []TransparentItem, scene flags.SceneFlags) error {
	draws := make([]transparentDraw, 0, len(items))
	for _, item := range items {
		e, err := p.cache.GetOrCreate(p.Flags(item.Flags, scene))
		if err != nil {
			return err
		}
		if err := p.t.resources.Bind(e); err != nil {
			return err
		}
		draws = append(draws, transparentDraw{entry: e, node: item.NodeID, indexCount: item.IndexCount})
	}
	p.mu.Lock()
	p.draws = draws
	p.mu.Unlock()
	return nil
}

// Enabled reports whether the frame has transparent nodes.
func (p *ForwardTransparentPass) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.draws) > 0
}

// register declares the pass: it tests against the depth target without writing it
// and clears then accumulates into the accumulation and revealage targets.
func (p *ForwardTransparentPass) register(g *framegraph.FrameGraph) *framegraph.FramePass {
	t := p.t
	pass := g.CreatePass(PassForwardTransparent, func(ctx context.Context, fp *framegraph.FramePass, rg *framegraph.RunnableGraph) (framegraph.RunnablePass, error) {
		return framegraph.RunnablePassFunc(p.record), nil
	})
	pass.AddUniformBuffer(t.resources.Range(BufferScene), 0)
	pass.AddInputStorageBuffer(t.resources.Range(BufferNodes), 1)
	pass.AddInputDepthView(t.targets.Depth.ID())
	pass.AddOutputColourView(t.targets.Accumulation.ID())
	pass.AddOutputColourView(t.targets.Revealage.ID())
	pass.SetEnabled(p.Enabled)
	return pass
}

func (p *ForwardTransparentPass) record(ctx context.Context, rec backend.CommandRecorder, _ uint32) error {
	p.mu.Lock()
	draws := p.draws
	p.mu.Unlock()

	t := p.t.targets
	err := rec.BeginRenderPass(backend.RenderPassDescriptor{
		Label: PassForwardTransparent,
		Colour: []backend.ColourAttachment{
			{View: t.Accumulation.View, Load: wgpu.LoadOpClear, Store: wgpu.StoreOpStore},
			{View: t.Revealage.View, Load: wgpu.LoadOpClear, Store: wgpu.StoreOpStore, Clear: wgpu.Color{R: 1, G: 1, B: 1, A: 1}},
		},
		Depth: &backend.DepthAttachment{View: t.Depth.View, Load: wgpu.LoadOpLoad, Store: wgpu.StoreOpStore, ReadOnly: true},
	})
	if err != nil {
		return err
	}
	stages := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	for _, d := range draws {
		rec.BindRenderPipeline(d.entry.First.RenderPipeline())
		bindSets(rec, d.entry)
		rec.PushConstants(stages, 0, pushData(d.node))
		rec.Draw(d.indexCount, 1, 0, 0)
	}
	rec.EndRenderPass()
	return nil
}

// TransparentCombinePass composites the accumulated transparency over the colour
// target.
type TransparentCombinePass struct {
	t        *Technique
	fixed    FixedBindings
	cache    *pipeline.Cache
	programs *programSet
	forward  *ForwardTransparentPass
}

var _ pipeline.ProgramSource = &TransparentCombinePass{}

func newTransparentCombinePass(t *Technique, forward *ForwardTransparentPass) *TransparentCombinePass {
	p := &TransparentCombinePass{t: t, fixed: CombineFixedBindings(), forward: forward}
	p.cache = pipeline.NewCache(t.device, p, t.cacheOptions(PassTransparentCombine)...)
	p.programs = newProgramSet(p.cache, t.resources)
	return p
}

func (p *TransparentCombinePass) flags() flags.PipelineFlags {
	return flags.NewPipelineFlags(flags.WithRenderPassType(RenderPassTransparentCombine))
}

func (p *TransparentCombinePass) Variants(f flags.PipelineFlags) []pipeline.Variant {
	return firstVariant(f)
}

func (p *TransparentCombinePass) Options(flags.PipelineFlags, pipeline.Variant) []pipeline.PipelineBuilderOption {
	return append(fullscreenOptions(p.t.targets.Colour.Format),
		pipeline.WithBlendEnabled(true),
		pipeline.WithBlendState(overBlend))
}

func (p *TransparentCombinePass) Program(f flags.PipelineFlags) (*shader.Program, error) {
	key := PassTransparentCombine
	w := shader.NewWriter(shader.WithLabel(key), shader.WithWriterLogger(p.t.logger))
	ctx := modules.NewContext(w, f, shader.NewBindingCounter(0, 0), wgpu.ShaderStageFragment)
	p.fixed.Declare(ctx)
	declareFullscreen(w)
	w.ImplementEntryPoint(shader.EntryFragment, "fsMain", "",
		[]shader.Param{{Name: "@builtin(position) fragCoord", Type: "vec4<f32>"}},
		"@location(0) vec4<f32>",
		func(fb *shader.FunctionBuilder) {
			fb.Let("pixel", "vec2<i32>(fragCoord.xy)")
			fb.Let("accum", "textureLoad(c3d_accumulation, pixel, 0)")
			fb.Let("revealage", "textureLoad(c3d_revealage, pixel, 0).r")
			fb.Return("vec4<f32>(accum.rgb / max(accum.a, 1e-5), 1.0 - revealage)")
		})
	return w.Finish(key)
}

func (p *TransparentCombinePass) register(g *framegraph.FrameGraph) *framegraph.FramePass {
	t := p.t
	pass := g.CreatePass(PassTransparentCombine, func(ctx context.Context, fp *framegraph.FramePass, rg *framegraph.RunnableGraph) (framegraph.RunnablePass, error) {
		if _, err := p.programs.selectFlags(p.flags()); err != nil {
			return nil, err
		}
		return framegraph.RunnablePassFunc(p.record), nil
	})
	for _, target := range []*Target{t.targets.Accumulation, t.targets.Revealage} {
		slot, _ := p.fixed.Slot(target.Name)
		pass.AddSampledView(target.ID(), slot)
	}
	pass.AddInOutColourView(t.targets.Colour.ID())
	pass.SetEnabled(p.forward.Enabled)
	return pass
}

func (p *TransparentCombinePass) record(ctx context.Context, rec backend.CommandRecorder, passIndex uint32) error {
	e := p.programs.entry(passIndex)
	if e == nil {
		return fmt.Errorf("%s: no program at index %d", PassTransparentCombine, passIndex)
	}
	err := rec.BeginRenderPass(backend.RenderPassDescriptor{
		Label:  PassTransparentCombine,
		Colour: []backend.ColourAttachment{{View: p.t.targets.Colour.View, Load: wgpu.LoadOpLoad, Store: wgpu.StoreOpStore}},
	})
	if err != nil {
		return err
	}
	fullscreenDraw(rec, e)
	rec.EndRenderPass()
	return nil
}
