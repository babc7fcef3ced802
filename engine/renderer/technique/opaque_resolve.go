package technique

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/framegraph"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
	"github.com/cogentcore/webgpu/wgpu"
)

// OpaqueResolvePass lights the g-buffer into the colour target. It is a multi-program
// pass: one program per scene feature combination (fog, shadows, background), selected
// each frame by Select.
//
// Pixels the g-buffer does not cover are written as zero so the visibility resolve can
// add its own pixels on top; pixels at the far plane receive the background. The
// g-buffer carries no motion, so the pass also clears the velocity target to zero.
type OpaqueResolvePass struct {
	t        *Technique
	fixed    FixedBindings
	cache    *pipeline.Cache
	programs *programSet
}

var _ pipeline.ProgramSource = &OpaqueResolvePass{}

func newOpaqueResolvePass(t *Technique) *OpaqueResolvePass {
	p := &OpaqueResolvePass{t: t, fixed: DeferredFixedBindings()}
	p.cache = pipeline.NewCache(t.device, p, t.cacheOptions(PassOpaqueResolve)...)
	p.programs = newProgramSet(p.cache, t.resources)
	return p
}

// Flags returns the permutation the pass uses for a scene. GI is left to the indirect
// lighting pass.
func (p *OpaqueResolvePass) Flags(scene flags.SceneFlags) flags.PipelineFlags {
	return flags.NewPipelineFlags(
		flags.WithComponents(flags.ComponentDiffuseLighting, flags.ComponentSpecularLighting),
		flags.WithScene(scene.Without(flags.SceneGIMask)),
		flags.WithLightingModel(p.t.lightingModel),
		flags.WithBackgroundModel(p.t.background),
		flags.WithRenderPassType(RenderPassOpaqueResolve),
		flags.WithShader(p.t.shaderFlags),
	)
}

// Select makes the program of a scene the one recorded next frame, building it on
// first use.
func (p *OpaqueResolvePass) Select(scene flags.SceneFlags) (*pipeline.Entry, error) {
	return p.programs.selectFlags(p.Flags(scene))
}

// Programs returns the number of programs built so far.
func (p *OpaqueResolvePass) Programs() int { return p.programs.Len() }

// Cache returns the pass's pipeline cache.
func (p *OpaqueResolvePass) Cache() *pipeline.Cache { return p.cache }

func (p *OpaqueResolvePass) Variants(f flags.PipelineFlags) []pipeline.Variant { return firstVariant(f) }

func (p *OpaqueResolvePass) Options(flags.PipelineFlags, pipeline.Variant) []pipeline.PipelineBuilderOption {
	return fullscreenOptions(p.t.targets.Colour.Format, p.t.targets.Velocity.Format)
}

// Program generates the deferred lighting program of a permutation.
//
// Parameters:
//   - f: the permutation flags
//
// Returns:
//   - *shader.Program: a vertex+fragment program
//   - error: a generation failure
func (p *OpaqueResolvePass) Program(f flags.PipelineFlags) (*shader.Program, error) {
	key := fmt.Sprintf("%s-%s", PassOpaqueResolve, f.Hash())
	w := shader.NewWriter(
		shader.WithLabel(key),
		shader.WithPushConstantMode(p.t.mode),
		shader.WithWriterLogger(p.t.logger),
	)
	ctx := modules.NewContext(w, f, shader.NewBindingCounter(0, 0), wgpu.ShaderStageFragment)
	ctx.Logger = p.t.logger

	p.fixed.Declare(ctx)
	utils, lighting, lights := modules.NewLightingBlock(ctx, true)
	set := modules.Build(ctx, utils, lighting)
	modules.DeclareSurface(w)

	declareFullscreen(w)
	w.DeclareStruct("OpaqueOutput",
		"@location(0) colour: vec4<f32>",
		"@location(1) velocity: vec2<f32>",
	)
	w.ImplementEntryPoint(shader.EntryFragment, "fsMain", "",
		[]shader.Param{{Name: "@builtin(position) fragCoord", Type: "vec4<f32>"}},
		"OpaqueOutput",
		func(fb *shader.FunctionBuilder) {
			// velocity stays zero
			fb.Var("result", "OpaqueOutput", "")
			out := func(colour string) {
				fb.Assign("result.colour", colour)
				fb.Return("result")
			}
			gbufferSurface(fb, set.Utils)
			fb.If("depth >= 1.0", func() { out(backgroundColour(set.Background)) })
			fb.If("!covered", func() { out("vec4<f32>(0.0)") })

			fb.Let("direct", lights.ComputeCombinedDifSpec("surface"))
			fb.Let("ambient", set.Background.ComputeReflections("surface"))
			fb.Var("lit", "vec3<f32>", "direct.diffuse + direct.specular + (ambient.diffuse + ambient.specular) * surface.occlusion")
			fb.Assign("lit", "lit + surface.emissive")
			fb.Var("output", "vec4<f32>", set.Fog.Apply("vec4<f32>(lit, 1.0)", "surface.viewDepth"))

			dbg := modules.NewDebugOutput(ctx, fb, "c3d_scene.debugIndex", "output")
			dbg.RegisterVec3("Surface", "Albedo", "surface.albedo")
			dbg.RegisterVec3("Surface", "Normal", "surface.normal * 0.5 + 0.5")
			dbg.RegisterScalar("Surface", "Roughness", "surface.roughness")
			dbg.RegisterScalar("Surface", "Metalness", "surface.metalness")
			dbg.RegisterScalar("Surface", "ViewDepth", "surface.viewDepth / c3d_scene.farPlane")
			dbg.RegisterVec3("Lighting", "Diffuse", "direct.diffuse")
			dbg.RegisterVec3("Lighting", "Specular", "direct.specular")
			dbg.RegisterScalar("Lights", "ClusterOverflow", "direct.overflow")
			dbg.Close()
			out("output")
		})
	return w.Finish(key)
}

// gbufferSurface declares depth, covered and a Surface rebuilt from the g-buffer at
// fragCoord. covered is false where no deferred geometry was rasterized.
func gbufferSurface(fb *shader.FunctionBuilder, utils *modules.Utils) {
	fb.Let("pixel", "vec2<i32>(fragCoord.xy)")
	fb.Let("depth", "textureLoad(c3d_depth, pixel, 0)")
	fb.Let("albedoOcclusion", "textureLoad(c3d_gbufferAlbedo, pixel, 0)")
	fb.Let("normalRoughness", "textureLoad(c3d_gbufferNormal, pixel, 0)")
	fb.Let("metalEmissive", "textureLoad(c3d_gbufferMaterial, pixel, 0)")
	fb.Let("covered", "dot(normalRoughness.xyz, normalRoughness.xyz) > 0.0")

	fb.Let("ndc", "(fragCoord.xy / c3d_scene.renderSize * 2.0 - 1.0) * vec2<f32>(1.0, -1.0)")
	fb.Let("world", "c3d_scene.invViewProj * vec4<f32>(ndc, depth, 1.0)")
	fb.Let("worldPos", "world.xyz / world.w")

	fb.Var("surface", modules.SurfaceType, "")
	fb.Assign("surface.worldPosition", "worldPos")
	fb.Assign("surface.viewDepth", "-(c3d_scene.view * vec4<f32>(worldPos, 1.0)).z")
	fb.Assign("surface.viewDir", "normalize(c3d_scene.cameraPosition - worldPos)")
	fb.Assign("surface.fragCoord", "fragCoord.xy")
	fb.Assign("surface.albedo", "albedoOcclusion.rgb")
	fb.Assign("surface.occlusion", "albedoOcclusion.a")
	fb.Assign("surface.normal", "normalize(normalRoughness.xyz + vec3<f32>(0.0, 0.0, 1e-6))")
	fb.Assign("surface.roughness", "normalRoughness.w")
	fb.Assign("surface.metalness", "metalEmissive.r")
	fb.Assign("surface.emissive", "metalEmissive.gba")
	fb.Assign("surface.opacity", "1.0")
	fb.Assign("surface.specular", utils.ComputeF0("surface.albedo", "surface.metalness"))
	fb.Assign("surface.shininess", "max((1.0 - surface.roughness) * 256.0, 1.0)")
}

// backgroundColour returns the colour of a far-plane pixel as seen along the view ray.
func backgroundColour(b *modules.Background) string {
	dir := "normalize(worldPos - c3d_scene.cameraPosition)"
	switch b.Kind() {
	case flags.BackgroundModelSkybox:
		return "vec4<f32>(textureSampleLevel(c3d_skybox, c3d_backgroundSampler, " + dir + ", 0.0).rgb, 1.0)"
	case flags.BackgroundModelIBL:
		return "vec4<f32>(textureSampleLevel(c3d_prefiltered, c3d_backgroundSampler, " + dir + ", 0.0).rgb, 1.0)"
	}
	return "c3d_backgroundColour"
}

// register declares the pass: it reads the g-buffer and overwrites the colour and
// velocity targets.
func (p *OpaqueResolvePass) register(g *framegraph.FrameGraph) *framegraph.FramePass {
	t := p.t
	pass := g.CreatePass(PassOpaqueResolve, func(ctx context.Context, fp *framegraph.FramePass, rg *framegraph.RunnableGraph) (framegraph.RunnablePass, error) {
		if _, err := p.Select(t.Scene()); err != nil {
			return nil, err
		}
		return framegraph.RunnablePassFunc(p.record), nil
	})
	for _, target := range []*Target{t.targets.Albedo, t.targets.Normal, t.targets.Material, t.targets.Depth} {
		slot, _ := p.fixed.Slot(target.Name)
		pass.AddSampledView(target.ID(), slot)
	}
	pass.AddUniformBuffer(t.resources.Range(BufferScene), 0)
	pass.AddOutputColourView(t.targets.Colour.ID())
	pass.AddOutputColourView(t.targets.Velocity.ID())
	pass.SetPassIndex(&p.programs.index)
	return pass
}

func (p *OpaqueResolvePass) record(ctx context.Context, rec backend.CommandRecorder, passIndex uint32) error {
	e := p.programs.entry(passIndex)
	if e == nil {
		return fmt.Errorf("%s: no program at index %d", PassOpaqueResolve, passIndex)
	}
	err := rec.BeginRenderPass(backend.RenderPassDescriptor{
		Label: PassOpaqueResolve,
		Colour: []backend.ColourAttachment{
			{View: p.t.targets.Colour.View, Load: wgpu.LoadOpClear, Store: wgpu.StoreOpStore},
			{View: p.t.targets.Velocity.View, Load: wgpu.LoadOpClear, Store: wgpu.StoreOpStore},
		},
	})
	if err != nil {
		return err
	}
	fullscreenDraw(rec, e)
	rec.EndRenderPass()
	return nil
}
