package technique

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/framegraph"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/visibility"
)

// Names of the buffers the reorder fills and the compute resolve reads.
const (
	BufferBucketCounts  = "c3d_bucketCounts"
	BufferBucketStarts  = "c3d_bucketStarts"
	BufferBucketCursors = "c3d_bucketCursors"
	BufferPixels        = "c3d_pixels"
)

// VisibilityReorderPass sorts the covered pixels of the visibility buffer by pipeline
// id into the compact pixel list the compute resolve walks. It runs the clear, count,
// prefix and scatter stages in one compute pass.
type VisibilityReorderPass struct {
	t      *Technique
	cache  *pipeline.Cache
	stages []*pipeline.Entry
}

var _ pipeline.ProgramSource = &VisibilityReorderPass{}

func newVisibilityReorderPass(t *Technique) *VisibilityReorderPass {
	p := &VisibilityReorderPass{t: t}
	p.cache = pipeline.NewCache(t.device, p, t.cacheOptions(PassVisibilityReorder)...)
	return p
}

// stageFlags keys one stage's program; the stage travels in the pass type.
func stageFlags(stage visibility.ReorderStage) flags.PipelineFlags {
	return flags.NewPipelineFlags(
		flags.WithPassType(flags.PassTypeID(stage)),
		flags.WithRenderPassType(RenderPassVisibilityReorder),
	)
}

func (p *VisibilityReorderPass) Program(f flags.PipelineFlags) (*shader.Program, error) {
	return visibility.NewReorderProgram(visibility.ReorderStage(f.PassType))
}

func (p *VisibilityReorderPass) Options(flags.PipelineFlags, pipeline.Variant) []pipeline.PipelineBuilderOption {
	return nil
}

func (p *VisibilityReorderPass) Variants(f flags.PipelineFlags) []pipeline.Variant { return firstVariant(f) }

// prepare builds the four stage programs and binds their sets.
func (p *VisibilityReorderPass) prepare() error {
	if len(p.stages) == len(visibility.ReorderStages) {
		return nil
	}
	p.stages = p.stages[:0]
	for _, stage := range visibility.ReorderStages {
		e, err := p.cache.GetOrCreate(stageFlags(stage))
		if err != nil {
			return err
		}
		if err := p.t.resources.Bind(e); err != nil {
			return err
		}
		p.stages = append(p.stages, e)
	}
	return nil
}

// register declares the pass: it samples the visibility buffer and rewrites every
// bucket buffer.
func (p *VisibilityReorderPass) register(g *framegraph.FrameGraph) *framegraph.FramePass {
	t := p.t
	pass := g.CreatePass(PassVisibilityReorder, func(ctx context.Context, fp *framegraph.FramePass, rg *framegraph.RunnableGraph) (framegraph.RunnablePass, error) {
		if err := p.prepare(); err != nil {
			return nil, err
		}
		return framegraph.RunnablePassFunc(p.record), nil
	})
	pass.AddSampledView(t.targets.Visibility.ID(), visibility.ReorderBindingVisibility)
	pass.AddOutputStorageBuffer(t.resources.Range(BufferBucketCounts), visibility.ReorderBindingCounts)
	pass.AddOutputStorageBuffer(t.resources.Range(BufferBucketStarts), visibility.ReorderBindingStarts)
	pass.AddOutputStorageBuffer(t.resources.Range(BufferBucketCursors), visibility.ReorderBindingCursors)
	pass.AddOutputStorageBuffer(t.resources.Range(BufferPixels), visibility.ReorderBindingPixels)
	return pass
}

func (p *VisibilityReorderPass) record(ctx context.Context, rec backend.CommandRecorder, _ uint32) error {
	if len(p.stages) != len(visibility.ReorderStages) {
		return fmt.Errorf("%s: stages not built", PassVisibilityReorder)
	}
	if err := rec.BeginComputePass(PassVisibilityReorder); err != nil {
		return err
	}
	for i, stage := range visibility.ReorderStages {
		e := p.stages[i]
		rec.BindComputePipeline(e.First.ComputePipeline())
		bindSets(rec, e)
		d := visibility.ReorderDispatch(stage, p.t.targets.Width, p.t.targets.Height)
		rec.Dispatch(d[0], d[1], d[2])
	}
	rec.EndComputePass()
	return nil
}
