package framegraph

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, pass *FramePass, graph *RunnableGraph) (RunnablePass, error) {
	return RunnablePassFunc(func(ctx context.Context, rec backend.CommandRecorder, passIndex uint32) error {
		return nil
	}), nil
}

func before(order []string, a, b string) bool {
	return slices.Index(order, a) < slices.Index(order, b)
}

func TestScheduleRespectsHazards(t *testing.T) {
	a := backend.WholeImage(1)
	b := backend.WholeImage(2)

	g := NewFrameGraph("test")
	pa := g.CreatePass("A", noop)
	pa.AddOutputColourView(a)
	pb := g.CreatePass("B", noop)
	pb.AddSampledView(a, 0).AddOutputColourView(b)
	pc := g.CreatePass("C", noop)
	pc.AddSampledView(a, 0).AddSampledView(b, 1)

	rg, err := g.Compile(context.Background())
	require.NoError(t, err)
	order := rg.Schedule()
	require.Len(t, order, 3)
	for _, e := range rg.Edges() {
		assert.True(t, before(order, e.From, e.To), "%s -> %s", e.From, e.To)
	}
	assert.True(t, before(order, "A", "B"))
	assert.True(t, before(order, "A", "C"))
	assert.True(t, before(order, "B", "C"))
}

func TestDeclarationOrderHazards(t *testing.T) {
	img := backend.WholeImage(1)
	buf := backend.WholeBuffer(7)
	g := NewFrameGraph("hazards")
	g.CreatePass("write", noop).AddOutputStorageView(img, 0)
	g.CreatePass("read", noop).AddSampledView(img, 0).AddUniformBuffer(buf, 1)
	g.CreatePass("overwrite", noop).AddOutputStorageView(img, 0)
	g.CreatePass("independent", noop).AddInputStorageBuffer(buf, 0)

	rg, err := g.Compile(context.Background())
	require.NoError(t, err)

	hazards := make(map[string]Hazard)
	for _, e := range rg.Edges() {
		hazards[e.From+">"+e.To] = e.Hazard
	}
	assert.Equal(t, HazardRAW, hazards["write>read"])
	assert.Equal(t, HazardWAW, hazards["write>overwrite"])
	assert.Equal(t, HazardWAR, hazards["read>overwrite"])
	// two readers of the same buffer are not ordered
	_, ok := hazards["read>independent"]
	assert.False(t, ok)

	assert.Equal(t, [][]string{{"write", "independent"}, {"read"}, {"overwrite"}}, rg.Levels())
}

func TestNonOverlappingRangesAreIndependent(t *testing.T) {
	mip0 := backend.ImageViewID{Image: 1, MipCount: 1, LayerCount: 1}
	mip1 := backend.ImageViewID{Image: 1, BaseMip: 1, MipCount: 1, LayerCount: 1}
	g := NewFrameGraph("mips")
	g.CreatePass("m0", noop).AddOutputStorageView(mip0, 0)
	g.CreatePass("m1", noop).AddOutputStorageView(mip1, 0)
	rg, err := g.Compile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rg.Edges())
	assert.Len(t, rg.Levels(), 1)
}

func TestLayoutConflictOrdersReaders(t *testing.T) {
	img := backend.WholeImage(3)
	g := NewFrameGraph("layouts")
	g.ImportImage(img, backend.LayoutShaderRead)
	g.CreatePass("sample", noop).AddSampledView(img, 0)
	g.CreatePass("load", noop).AddInputStorageView(img, 0)
	rg, err := g.Compile(context.Background())
	require.NoError(t, err)
	require.Len(t, rg.Edges(), 1)
	assert.Equal(t, HazardLayout, rg.Edges()[0].Hazard)
}

func TestCycleIsReported(t *testing.T) {
	g := NewFrameGraph("cycle")
	a := g.CreatePass("a", noop)
	b := g.CreatePass("b", noop)
	a.AddDependency(b)
	b.AddDependency(a)
	_, err := g.Compile(context.Background())
	assert.ErrorIs(t, err, ErrCycle)
}

func TestReadBeforeWriteValidation(t *testing.T) {
	img := backend.WholeImage(1)
	imported := backend.WholeImage(2)

	g := NewFrameGraph("validate", WithValidation(true))
	g.ImportImage(imported, backend.LayoutShaderRead)
	g.CreatePass("reader", noop).AddSampledView(img, 0).AddSampledView(imported, 1)
	g.CreatePass("writer", noop).AddOutputColourView(img)
	_, err := g.Compile(context.Background())
	require.ErrorIs(t, err, ErrReadBeforeWrite)
	assert.Contains(t, err.Error(), "reader reads image1")
	assert.NotContains(t, err.Error(), "image2")

	// without validation the same graph compiles
	g = NewFrameGraph("lenient")
	g.CreatePass("reader", noop).AddSampledView(img, 0)
	_, err = g.Compile(context.Background())
	assert.NoError(t, err)
}

func TestDeclarationsFreezeAfterCompile(t *testing.T) {
	g := NewFrameGraph("frozen")
	p := g.CreatePass("p", noop)
	_, err := g.Compile(context.Background())
	require.NoError(t, err)

	p.AddSampledView(backend.WholeImage(1), 0)
	assert.Empty(t, p.Accesses())
	g.CreatePass("late", noop)
	assert.ErrorIs(t, g.Err(), ErrCompiled)

	_, err = g.Compile(context.Background())
	assert.ErrorIs(t, err, ErrCompiled)
}

func TestFactoriesRunOnceInScheduleOrder(t *testing.T) {
	var created []string
	factory := func(name string) RunnableFactory {
		return func(ctx context.Context, pass *FramePass, graph *RunnableGraph) (RunnablePass, error) {
			created = append(created, name)
			return nil, nil
		}
	}
	g := NewFrameGraph("factories")
	consumer := g.CreatePass("consumer", factory("consumer"))
	producer := g.CreatePass("producer", factory("producer"))
	consumer.AddDependency(producer)
	rg, err := g.Compile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"producer", "consumer"}, created)

	d := backendtest.NewDevice()
	require.NoError(t, rg.Record(context.Background(), d))
	require.NoError(t, rg.Record(context.Background(), d))
	assert.Len(t, created, 2)
}

type timings struct {
	mu    sync.Mutex
	names []string
}

func (o *timings) PassRecorded(name string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
}

func TestRecordSkipsDisabledPasses(t *testing.T) {
	gbuffer := backend.WholeImage(1)
	lit := backend.WholeImage(2)
	var mu sync.Mutex
	var log []string
	var indices []uint32
	pass := func(name string) RunnableFactory {
		return func(ctx context.Context, p *FramePass, rg *RunnableGraph) (RunnablePass, error) {
			return RunnablePassFunc(func(ctx context.Context, rec backend.CommandRecorder, passIndex uint32) error {
				mu.Lock()
				log = append(log, name)
				indices = append(indices, passIndex)
				mu.Unlock()
				if err := rec.BeginComputePass(name); err != nil {
					return err
				}
				rec.Dispatch(1, 1, 1)
				rec.EndComputePass()
				return nil
			}), nil
		}
	}

	gi := false
	var program uint32 = 2
	obs := &timings{}
	g := NewFrameGraph("frame", WithPassObserver(obs))
	g.CreatePass("geometry", pass("geometry")).AddOutputColourView(gbuffer)
	g.CreatePass("indirect", pass("indirect")).
		AddSampledView(gbuffer, 0).
		AddOutputStorageView(lit, 1).
		SetEnabled(func() bool { return gi })
	g.CreatePass("resolve", pass("resolve")).
		AddSampledView(gbuffer, 0).
		AddInOutStorageView(lit, 1).
		SetPassIndex(&program)

	rg, err := g.Compile(context.Background())
	require.NoError(t, err)
	d := backendtest.NewDevice()
	require.NoError(t, rg.Record(context.Background(), d))
	assert.Equal(t, []string{"geometry", "resolve"}, log)
	assert.Equal(t, []uint32{0, 2}, indices)
	assert.ElementsMatch(t, []string{"geometry", "resolve"}, obs.names)

	subs := d.Submissions()
	require.Len(t, subs, 2)
	assert.Equal(t, "geometry", subs[0].Label)
	assert.Equal(t, "resolve", subs[1].Label)
	// the lit image was never written this frame: it transitions from undefined
	assert.Contains(t, subs[1].Ops, "barrier "+lit.String()+" Undefined->General")
	assert.Contains(t, subs[1].Ops, "barrier "+gbuffer.String()+" ColourAttachment->ShaderRead")

	gi = true
	program = 0
	log = nil
	require.NoError(t, rg.Record(context.Background(), d))
	assert.Equal(t, []string{"geometry", "indirect", "resolve"}, log)
	subs = d.Submissions()[2:]
	require.Len(t, subs, 3)
	assert.Contains(t, subs[2].Ops, "barrier "+lit.String()+" General->General")
	for _, op := range subs[2].Ops {
		assert.False(t, strings.Contains(op, "Undefined"), op)
	}
}

func TestImportedImagesAreRestored(t *testing.T) {
	target := backend.WholeImage(9)
	g := NewFrameGraph("present")
	g.ImportImage(target, backend.LayoutPresent)
	g.CreatePass("blit", noop).AddOutputColourView(target)
	rg, err := g.Compile(context.Background())
	require.NoError(t, err)

	d := backendtest.NewDevice()
	require.NoError(t, rg.Record(context.Background(), d))
	subs := d.Submissions()
	require.Len(t, subs, 2)
	assert.Equal(t, []string{"barrier " + target.String() + " Present->ColourAttachment"}, subs[0].Ops)
	assert.Equal(t, "present final", subs[1].Label)
	assert.Equal(t, []string{"barrier " + target.String() + " ColourAttachment->Present"}, subs[1].Ops)
}

func TestRecordErrorStopsSubmission(t *testing.T) {
	g := NewFrameGraph("broken")
	g.CreatePass("open", func(ctx context.Context, p *FramePass, rg *RunnableGraph) (RunnablePass, error) {
		return RunnablePassFunc(func(ctx context.Context, rec backend.CommandRecorder, passIndex uint32) error {
			// left open: Finish fails
			return rec.BeginComputePass("open")
		}), nil
	})
	rg, err := g.Compile(context.Background())
	require.NoError(t, err)
	d := backendtest.NewDevice()
	err = rg.Record(context.Background(), d)
	assert.ErrorIs(t, err, backend.ErrPassState)
	assert.Empty(t, d.Submissions())
}
