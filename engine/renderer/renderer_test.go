package renderer

import (
	"context"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/framegraph"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/technique"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, d *backendtest.Device, opts ...RendererBuilderOption) Renderer {
	t.Helper()
	registry, err := component.NewRegistry()
	require.NoError(t, err)
	base := []RendererBuilderOption{
		WithDevice(d),
		WithTechniqueOptions(technique.WithSize(32, 32)),
		WithGraphOptions(framegraph.WithValidation(true)),
	}
	r := NewRenderer(BackendTypeWGPU, registry, append(base, opts...)...)
	t.Cleanup(r.Release)
	return r
}

// geometry stands in for the passes filling the g-buffer.
func geometry(g *framegraph.FrameGraph, t *technique.Technique) error {
	targets := t.Targets()
	p := g.CreatePass("geometry", func(ctx context.Context, fp *framegraph.FramePass, rg *framegraph.RunnableGraph) (framegraph.RunnablePass, error) {
		return framegraph.RunnablePassFunc(func(ctx context.Context, rec backend.CommandRecorder, _ uint32) error {
			return nil
		}), nil
	})
	p.AddOutputDepthView(targets.Depth.ID())
	for _, target := range []*technique.Target{targets.Albedo, targets.Normal, targets.Material} {
		p.AddOutputColourView(target.ID())
	}
	return nil
}

func TestRenderFrameBeforeSetup(t *testing.T) {
	r := newTestRenderer(t, backendtest.NewDevice())
	err := r.RenderFrame(context.Background(), &technique.FrameData{})
	assert.ErrorIs(t, err, ErrNotSetup)
	assert.Nil(t, r.Technique())
}

func TestSetupOrdersRegistrarsFirst(t *testing.T) {
	r := newTestRenderer(t, backendtest.NewDevice(), WithPassRegistrar(geometry))
	require.NoError(t, r.Setup(context.Background()))

	schedule := r.Graph().Schedule()
	require.NotEmpty(t, schedule)
	assert.Equal(t, "geometry", schedule[0])
	assert.Contains(t, schedule, technique.PassOpaqueResolve)

	assert.ErrorIs(t, r.Setup(context.Background()), ErrSetup)
}

func TestSetupRegistrarFailure(t *testing.T) {
	boom := errors.New("boom")
	r := newTestRenderer(t, backendtest.NewDevice(), WithPassRegistrar(func(*framegraph.FrameGraph, *technique.Technique) error {
		return boom
	}))
	assert.ErrorIs(t, r.Setup(context.Background()), boom)
	assert.Nil(t, r.Graph())
}

func TestRenderFrameRecordsGraph(t *testing.T) {
	d := backendtest.NewDevice()
	r := newTestRenderer(t, d, WithPassRegistrar(geometry))
	require.NoError(t, r.Setup(context.Background()))

	for range 3 {
		require.NoError(t, r.RenderFrame(context.Background(), &technique.FrameData{}))
	}
	assert.Equal(t, uint64(3), r.Frames())

	var opaque int
	for _, s := range d.Submissions() {
		if s.Label == technique.PassOpaqueResolve {
			opaque++
		}
	}
	assert.Equal(t, 3, opaque)
}

func TestReleaseKeepsBorrowedDevice(t *testing.T) {
	d := backendtest.NewDevice()
	r := newTestRenderer(t, d)
	require.NoError(t, r.Setup(context.Background()))
	r.Release()
	assert.False(t, d.Released())
	assert.Nil(t, r.Technique())
	assert.ErrorIs(t, r.RenderFrame(context.Background(), &technique.FrameData{}), ErrNotSetup)
}
