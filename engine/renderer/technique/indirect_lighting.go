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

// IndirectLightingPass adds the scene's global illumination to the lit g-buffer
// pixels. It only runs while the scene has a GI technique; its programs are selected
// by GI kind.
type IndirectLightingPass struct {
	t        *Technique
	fixed    FixedBindings
	cache    *pipeline.Cache
	programs *programSet
}

var _ pipeline.ProgramSource = &IndirectLightingPass{}

func newIndirectLightingPass(t *Technique) *IndirectLightingPass {
	p := &IndirectLightingPass{t: t, fixed: DeferredFixedBindings()}
	p.cache = pipeline.NewCache(t.device, p, t.cacheOptions(PassIndirectLighting)...)
	p.programs = newProgramSet(p.cache, t.resources)
	return p
}

// Flags returns the permutation for a scene. Only the GI bits of the scene matter.
func (p *IndirectLightingPass) Flags(scene flags.SceneFlags) flags.PipelineFlags {
	return flags.NewPipelineFlags(
		flags.WithComponents(flags.ComponentDiffuseLighting, flags.ComponentSpecularLighting),
		flags.WithScene(scene&flags.SceneGIMask),
		flags.WithLightingModel(p.t.lightingModel),
		flags.WithBackgroundModel(p.t.background),
		flags.WithRenderPassType(RenderPassIndirectLighting),
	)
}

// Enabled reports whether the scene has a GI technique.
func (p *IndirectLightingPass) Enabled() bool {
	return p.t.Scene().HasAny(flags.SceneGIMask)
}

// Select builds and selects the program of a scene. Scenes without GI select nothing.
func (p *IndirectLightingPass) Select(scene flags.SceneFlags) (*pipeline.Entry, error) {
	if !scene.HasAny(flags.SceneGIMask) {
		return nil, nil
	}
	return p.programs.selectFlags(p.Flags(scene))
}

// Programs returns the number of programs built so far.
func (p *IndirectLightingPass) Programs() int { return p.programs.Len() }

func (p *IndirectLightingPass) Variants(f flags.PipelineFlags) []pipeline.Variant { return firstVariant(f) }

func (p *IndirectLightingPass) Options(flags.PipelineFlags, pipeline.Variant) []pipeline.PipelineBuilderOption {
	return append(fullscreenOptions(p.t.targets.Colour.Format),
		pipeline.WithBlendEnabled(true),
		pipeline.WithBlendState(additiveBlend))
}

// Program generates the indirect lighting program of a GI kind.
func (p *IndirectLightingPass) Program(f flags.PipelineFlags) (*shader.Program, error) {
	key := fmt.Sprintf("%s-%s", PassIndirectLighting, f.Hash())
	w := shader.NewWriter(
		shader.WithLabel(key),
		shader.WithPushConstantMode(p.t.mode),
		shader.WithWriterLogger(p.t.logger),
	)
	ctx := modules.NewContext(w, f, shader.NewBindingCounter(0, 0), wgpu.ShaderStageFragment)
	ctx.Logger = p.t.logger

	p.fixed.Declare(ctx)
	utils, lighting, _ := modules.NewLightingBlock(ctx, false)
	set := modules.Build(ctx, utils, lighting)
	if !set.GI.Enabled() {
		return nil, fmt.Errorf("%s: scene flags %s select no GI technique", key, f.Scene)
	}

	declareFullscreen(w)
	w.ImplementEntryPoint(shader.EntryFragment, "fsMain", "",
		[]shader.Param{{Name: "@builtin(position) fragCoord", Type: "vec4<f32>"}},
		"@location(0) vec4<f32>",
		func(fb *shader.FunctionBuilder) {
			gbufferSurface(fb, set.Utils)
			fb.If("depth >= 1.0 || !covered", func() { fb.Line("discard;") })
			fb.Let("indirect", set.GI.ComputeIndirect("surface"))
			fb.Return("vec4<f32>(indirect.diffuse + indirect.specular, 0.0)")
		})
	return w.Finish(key)
}

// register declares the pass: it reads the g-buffer and blends into the colour target.
func (p *IndirectLightingPass) register(g *framegraph.FrameGraph) *framegraph.FramePass {
	t := p.t
	pass := g.CreatePass(PassIndirectLighting, func(ctx context.Context, fp *framegraph.FramePass, rg *framegraph.RunnableGraph) (framegraph.RunnablePass, error) {
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
	pass.AddInOutColourView(t.targets.Colour.ID())
	pass.SetEnabled(p.Enabled)
	pass.SetPassIndex(&p.programs.index)
	return pass
}

func (p *IndirectLightingPass) record(ctx context.Context, rec backend.CommandRecorder, passIndex uint32) error {
	e := p.programs.entry(passIndex)
	if e == nil {
		return fmt.Errorf("%s: no program at index %d", PassIndirectLighting, passIndex)
	}
	err := rec.BeginRenderPass(backend.RenderPassDescriptor{
		Label: PassIndirectLighting,
		Colour: []backend.ColourAttachment{{
			View:  p.t.targets.Colour.View,
			Load:  wgpu.LoadOpLoad,
			Store: wgpu.StoreOpStore,
		}},
	})
	if err != nil {
		return err
	}
	fullscreenDraw(rec, e)
	rec.EndRenderPass()
	return nil
}
