package technique

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/framegraph"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/visibility"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoPipelineID is returned by PipelineID when the id space is exhausted.
var ErrNoPipelineID = errors.New("technique: no pipeline id left")

// ResolveItem is one permutation drawn into the visibility buffer this frame.
type ResolveItem struct {
	// Flags are the node's material and submesh flags; the technique adds the scene
	// and its own selectors.
	Flags flags.PipelineFlags
	// BillboardNodeID is the 1-based node whose geometry billboard instances share.
	// Zero for ordinary meshes.
	BillboardNodeID uint32
}

type resolveDraw struct {
	entry     *pipeline.Entry
	billboard uint32
}

// VisibilityResolvePass shades the visibility buffer, one program per pipeline id. The
// graphics back end draws a full-screen triangle per id and discards foreign pixels;
// the compute back end walks the id's bucket of the reordered pixel list.
type VisibilityResolvePass struct {
	t       *Technique
	program *visibility.ResolveProgram
	ids     *pipeline.IDAllocator
	cache   *pipeline.Cache

	mu    sync.Mutex
	draws []resolveDraw
}

var _ pipeline.ProgramSource = &VisibilityResolvePass{}

func newVisibilityResolvePass(t *Technique) *VisibilityResolvePass {
	p := &VisibilityResolvePass{
		t: t,
		program: visibility.NewResolveProgram(t.registry, t.backend,
			visibility.WithResolvePushConstantMode(t.mode),
			visibility.WithResolveLogger(t.logger)),
		ids: pipeline.NewIDAllocator(visibility.MaxPipelines, t.logger),
	}
	opts := append(t.cacheOptions(PassVisibilityResolve), pipeline.WithIDAllocator(p.ids))
	p.cache = pipeline.NewCache(t.device, p, opts...)
	return p
}

// Backend returns the back end the pass records with.
func (p *VisibilityResolvePass) Backend() visibility.Backend { return p.t.backend }

// Cache returns the pass's pipeline cache.
func (p *VisibilityResolvePass) Cache() *pipeline.Cache { return p.cache }

func (p *VisibilityResolvePass) stages() wgpu.ShaderStage {
	if p.t.backend == visibility.BackendCompute {
		return wgpu.ShaderStageCompute
	}
	return wgpu.ShaderStageFragment
}

// Flags completes a node's flags with the scene and the technique's selectors.
func (p *VisibilityResolvePass) Flags(f flags.PipelineFlags, scene flags.SceneFlags) flags.PipelineFlags {
	f.Scene = f.Scene.With(scene)
	f.Shader = f.Shader.With(p.t.shaderFlags)
	f.LightingModel = p.t.lightingModel
	f.BackgroundModel = p.t.background
	f.RenderPassType = RenderPassVisibilityResolve
	return f
}

// PipelineID returns the id the visibility phase must write for a node with flags f,
// building the node's resolve program on first use.
//
// Parameters:
//   - f: the node's flags
//   - scene: the scene flags of the frame
//
// Returns:
//   - uint32: the pipeline id, below visibility.MaxPipelines
//   - error: a build failure, or ErrNoPipelineID past the id cap
func (p *VisibilityResolvePass) PipelineID(f flags.PipelineFlags, scene flags.SceneFlags) (uint32, error) {
	e, err := p.cache.GetOrCreate(p.Flags(f, scene))
	if err != nil {
		return pipeline.NoID, err
	}
	if e.ID == pipeline.NoID {
		return pipeline.NoID, fmt.Errorf("%w: %s", ErrNoPipelineID, e.Key)
	}
	return e.ID, nil
}

func (p *VisibilityResolvePass) Program(f flags.PipelineFlags) (*shader.Program, error) {
	return p.program.Program(f)
}

func (p *VisibilityResolvePass) Variants(flags.PipelineFlags) []pipeline.Variant {
	if p.t.backend == visibility.BackendCompute {
		return []pipeline.Variant{pipeline.VariantFirst}
	}
	return []pipeline.Variant{pipeline.VariantFirst, pipeline.VariantBlend}
}

func (p *VisibilityResolvePass) Options(_ flags.PipelineFlags, v pipeline.Variant) []pipeline.PipelineBuilderOption {
	if p.t.backend == visibility.BackendCompute {
		return nil
	}
	opts := fullscreenOptions(visibility.ColourFormat, visibility.VelocityFormat)
	if v == pipeline.VariantBlend {
		// velocity is not blendable; pixels belong to one id, so it is simply written
		opts = append(opts,
			pipeline.WithBlendEnabled(true),
			pipeline.WithTargetBlendState(0, additiveBlend),
			pipeline.WithTargetBlendState(1, nil))
	}
	return opts
}

// Prepare selects the programs recorded next frame. Items sharing a permutation and
// billboard node are drawn once. Items past the id cap are skipped with a warning.
//
// Parameters:
//   - items: the permutations present in the visibility buffer
//   - scene: the scene flags of the frame
//
// Returns:
//   - error: a build or bind failure
func (p *VisibilityResolvePass) Prepare(items []ResolveItem, scene flags.SceneFlags) error {
	draws := make([]resolveDraw, 0, len(items))
	seen := make(map[resolveDraw]bool, len(items))
	for _, item := range items {
		e, err := p.cache.GetOrCreate(p.Flags(item.Flags, scene))
		if err != nil {
			return err
		}
		if e.ID == pipeline.NoID {
			p.t.logger.Warn("visibility resolve skipped",
				"key", e.Key.String(),
				"max", visibility.MaxPipelines)
			continue
		}
		if err := p.t.resources.Bind(e); err != nil {
			return err
		}
		d := resolveDraw{entry: e, billboard: item.BillboardNodeID}
		if seen[d] {
			continue
		}
		seen[d] = true
		draws = append(draws, d)
	}
	p.mu.Lock()
	p.draws = draws
	p.mu.Unlock()
	return nil
}

// Draws returns the number of programs recorded per frame.
func (p *VisibilityResolvePass) Draws() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.draws)
}

// register declares the pass. Both back ends read the visibility buffer and the
// geometry; the graphics one blends into the colour and velocity attachments, the
// compute one reads the reordered buckets and stores into the same images.
func (p *VisibilityResolvePass) register(g *framegraph.FrameGraph) *framegraph.FramePass {
	t := p.t
	pass := g.CreatePass(PassVisibilityResolve, func(ctx context.Context, fp *framegraph.FramePass, rg *framegraph.RunnableGraph) (framegraph.RunnablePass, error) {
		if t.backend == visibility.BackendCompute {
			return framegraph.RunnablePassFunc(p.recordCompute), nil
		}
		return framegraph.RunnablePassFunc(p.recordGraphics), nil
	})
	pass.AddUniformBuffer(t.resources.Range(BufferScene), visibility.BindingScene)
	pass.AddInputStorageBuffer(t.resources.Range(BufferNodes), visibility.BindingNodes)
	pass.AddSampledView(t.targets.Visibility.ID(), visibility.BindingVisibility)
	if t.backend == visibility.BackendCompute {
		pass.AddInputStorageBuffer(t.resources.Range(BufferPixels), visibility.BindingPixels)
		pass.AddInputStorageBuffer(t.resources.Range(BufferBucketCounts), visibility.BindingBucketCounts)
		pass.AddInputStorageBuffer(t.resources.Range(BufferBucketStarts), visibility.BindingBucketStarts)
		pass.AddInOutStorageView(t.targets.Colour.ID(), visibility.BindingOutColour)
		pass.AddInOutStorageView(t.targets.Velocity.ID(), visibility.BindingOutVelocity)
		return pass
	}
	pass.AddInOutColourView(t.targets.Colour.ID())
	pass.AddInOutColourView(t.targets.Velocity.ID())
	return pass
}

func (p *VisibilityResolvePass) snapshot() []resolveDraw {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draws
}

func (p *VisibilityResolvePass) recordGraphics(ctx context.Context, rec backend.CommandRecorder, _ uint32) error {
	draws := p.snapshot()
	if len(draws) == 0 {
		return nil
	}
	err := rec.BeginRenderPass(backend.RenderPassDescriptor{
		Label: PassVisibilityResolve,
		Colour: []backend.ColourAttachment{
			{View: p.t.targets.Colour.View, Load: wgpu.LoadOpLoad, Store: wgpu.StoreOpStore},
			{View: p.t.targets.Velocity.View, Load: wgpu.LoadOpLoad, Store: wgpu.StoreOpStore},
		},
	})
	if err != nil {
		return err
	}
	for i, d := range draws {
		rec.BindRenderPipeline(d.entry.Pipeline(i == 0).RenderPipeline())
		bindSets(rec, d.entry)
		rec.PushConstants(p.stages(), 0, pushData(d.entry.ID, d.billboard))
		rec.Draw(3, 1, 0, 0)
	}
	rec.EndRenderPass()
	return nil
}

func (p *VisibilityResolvePass) recordCompute(ctx context.Context, rec backend.CommandRecorder, _ uint32) error {
	draws := p.snapshot()
	if len(draws) == 0 {
		return nil
	}
	if err := rec.BeginComputePass(PassVisibilityResolve); err != nil {
		return err
	}
	size := visibility.ResolveDispatch(p.t.targets.Width, p.t.targets.Height)
	for _, d := range draws {
		rec.BindComputePipeline(d.entry.First.ComputePipeline())
		bindSets(rec, d.entry)
		rec.PushConstants(p.stages(), 0, pushData(d.entry.ID, d.billboard))
		rec.Dispatch(size[0], size[1], size[2])
	}
	rec.EndComputePass()
	return nil
}
