package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSource generates a fullscreen triangle program with one uniform binding and, when
// the flags carry alpha blending, a blend variant.
type testSource struct {
	calls atomic.Int32
	mode  shader.PushConstantMode
	fail  error
}

func (s *testSource) Program(f flags.PipelineFlags) (*shader.Program, error) {
	s.calls.Add(1)
	if s.fail != nil {
		return nil, s.fail
	}
	w := shader.NewWriter(shader.WithPushConstantMode(s.mode))
	w.DeclareStruct("Params", "tint: vec4<f32>")
	w.DeclareBinding(shader.Binding{Group: 0, Index: 0, Name: "params", Kind: shader.BindingUniform, Type: "Params", Stages: wgpu.ShaderStageFragment})
	pc := w.DeclarePushConstants(shader.PushConstantBlock{
		TypeName: "DrawData",
		VarName:  "draw",
		Members:  []shader.PushConstantMember{{Name: "pipelineId", Type: "u32"}},
		Stages:   wgpu.ShaderStageFragment,
	})
	w.ImplementEntryPoint(shader.EntryVertex, "vsMain", "",
		[]shader.Param{{Name: "@builtin(vertex_index) index", Type: "u32"}}, "@builtin(position) vec4<f32>",
		func(fb *shader.FunctionBuilder) {
			fb.Let("uv", "vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u))")
			fb.Return("vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0)")
		})
	w.ImplementEntryPoint(shader.EntryFragment, "fsMain", "", nil, "@location(0) vec4<f32>",
		func(fb *shader.FunctionBuilder) {
			fb.Return("params.tint * f32(" + pc + ".pipelineId)")
		})
	return w.Finish(f.Hash().String())
}

func (s *testSource) Options(f flags.PipelineFlags, v Variant) []PipelineBuilderOption {
	return []PipelineBuilderOption{
		WithBlendEnabled(v == VariantBlend),
		WithCullMode(f.Culling.WGPU()),
		WithDepthWriteEnabled(v == VariantFirst),
	}
}

func (s *testSource) Variants(f flags.PipelineFlags) []Variant {
	if f.Components.Has(flags.ComponentAlphaBlending) {
		return []Variant{VariantFirst, VariantBlend}
	}
	return []Variant{VariantFirst}
}

func newTestCache(d *backendtest.Device, src *testSource, opts ...CacheBuilderOption) *Cache {
	return NewCache(d, src, append([]CacheBuilderOption{WithCompiler(shader.ReflectionCompiler{})}, opts...)...)
}

func TestGetOrCreateBuildsOnce(t *testing.T) {
	d := backendtest.NewDevice()
	src := &testSource{}
	c := newTestCache(d, src)
	f := flags.NewPipelineFlags(flags.WithComponents(flags.ComponentDiffuseLighting), flags.WithCulling(flags.CullBack))

	first, err := c.GetOrCreate(f)
	require.NoError(t, err)
	for range 3 {
		again, err := c.GetOrCreate(f)
		require.NoError(t, err)
		assert.Same(t, first, again)
	}
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 1, d.Count(backendtest.KindRenderPipeline))
	assert.Equal(t, 1, d.Count(backendtest.KindPipelineLayout))
	// both stages share one source
	assert.Equal(t, 1, d.Count(backendtest.KindShaderModule))
	assert.Equal(t, StateReady, first.State())
	assert.Nil(t, first.Blend)
	assert.Same(t, first.First, first.Pipeline(false))

	rp, ok := first.First.RenderPipeline().(*backendtest.Pipeline)
	require.True(t, ok)
	assert.Equal(t, wgpu.CullModeBack, rp.Render.Primitive.CullMode)
	assert.Equal(t, "vsMain", rp.Render.VertexEntry)
	assert.Equal(t, "fsMain", rp.Render.FragmentEntry)
	require.NotNil(t, rp.Render.DepthStencil)
	assert.True(t, rp.Render.DepthStencil.DepthWriteEnabled)

	layout, desc := first.Layout(0)
	require.NotNil(t, layout)
	require.Len(t, desc.Entries, 1)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, desc.Entries[0].Buffer.Type)
	l, _ := first.Layout(5)
	assert.Nil(t, l)

	pl, ok := first.PipelineLayout.(*backendtest.PipelineLayout)
	require.True(t, ok)
	assert.Equal(t, uint32(4), pl.PushSize)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	d := backendtest.NewDevice()
	src := &testSource{}
	c := newTestCache(d, src)
	f := flags.NewPipelineFlags(flags.WithComponents(flags.ComponentDiffuseLighting))

	entries := make([]*Entry, 16)
	var wg sync.WaitGroup
	for i := range entries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := c.GetOrCreate(f)
			assert.NoError(t, err)
			entries[i] = e
		}(i)
	}
	wg.Wait()
	for _, e := range entries {
		assert.Same(t, entries[0], e)
	}
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestBlendVariant(t *testing.T) {
	d := backendtest.NewDevice()
	c := newTestCache(d, &testSource{})
	e, err := c.GetOrCreate(flags.NewPipelineFlags(flags.WithComponents(flags.ComponentAlphaBlending)))
	require.NoError(t, err)
	require.NotNil(t, e.Blend)
	assert.Equal(t, 2, d.Count(backendtest.KindRenderPipeline))
	assert.Same(t, e.First, e.Pipeline(true))
	assert.Same(t, e.Blend, e.Pipeline(false))
	assert.False(t, e.First.State().BlendEnabled)
	assert.Nil(t, e.First.State().TargetBlend(0))
	assert.NotNil(t, e.Blend.State().TargetBlend(0))
}

func TestEmulatedPushConstantsUseGroup(t *testing.T) {
	d := backendtest.NewDevice(backend.Features{MaxBindGroups: 4})
	c := newTestCache(d, &testSource{mode: shader.PushConstantsUniform})
	e, err := c.GetOrCreate(flags.NewPipelineFlags())
	require.NoError(t, err)
	pl := e.PipelineLayout.(*backendtest.PipelineLayout)
	assert.Equal(t, uint32(0), pl.PushSize)
	layout, desc := e.Layout(shader.PushConstantGroup)
	require.NotNil(t, layout)
	assert.True(t, desc.Entries[0].Buffer.HasDynamicOffset)
	// group 1 is a gap
	l, _ := e.Layout(1)
	assert.Nil(t, l)
}

func TestBuildFailureIsFatalAndNotCached(t *testing.T) {
	d := backendtest.NewDevice()
	src := &testSource{fail: errors.New("broken module")}
	c := newTestCache(d, src)
	f := flags.NewPipelineFlags()

	_, err := c.GetOrCreate(f)
	assert.ErrorIs(t, err, ErrBuild)
	_, ok := c.Lookup(f.Hash())
	assert.False(t, ok)

	src.fail = nil
	d.FailOn(backendtest.KindRenderPipeline, errors.New("device lost"))
	_, err = c.GetOrCreate(f)
	assert.ErrorIs(t, err, ErrBuild)
	assert.Equal(t, 0, c.Len())

	d.FailOn(backendtest.KindRenderPipeline, nil)
	e, err := c.GetOrCreate(f)
	require.NoError(t, err)
	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestCompilerMismatchIsFatal(t *testing.T) {
	d := backendtest.NewDevice()
	c := NewCache(d, &testSource{}, WithCompiler(failingCompiler{}))
	_, err := c.GetOrCreate(flags.NewPipelineFlags())
	assert.ErrorIs(t, err, ErrBuild)
	assert.ErrorIs(t, err, shader.ErrBindingMismatch)
	assert.Equal(t, 0, d.Count(backendtest.KindRenderPipeline))
}

func TestDefaultCompilerFollowsDevice(t *testing.T) {
	assert.IsType(t, shader.ReflectionCompiler{}, DefaultCompiler(backend.Features{}))
	assert.Equal(t, shader.NewSPIRVCompiler(), DefaultCompiler(backend.Features{SPIRV: true}))

	// a WGSL device builds without an explicit compiler
	c := NewCache(backendtest.NewDevice(), &testSource{})
	e, err := c.GetOrCreate(flags.NewPipelineFlags())
	require.NoError(t, err)
	require.NotNil(t, e.Compiled)
	assert.Nil(t, e.Compiled.SPIRV)
}

func TestIDAllocatorSoftCap(t *testing.T) {
	ids := NewIDAllocator(2, nil)
	d := backendtest.NewDevice()
	c := newTestCache(d, &testSource{}, WithIDAllocator(ids))

	var got []uint32
	for _, comp := range []flags.ComponentFlags{flags.ComponentDiffuseLighting, flags.ComponentEmissive, flags.ComponentSheen} {
		e, err := c.GetOrCreate(flags.NewPipelineFlags(flags.WithComponents(comp)))
		require.NoError(t, err)
		got = append(got, e.ID)
	}
	assert.Equal(t, []uint32{0, 1, NoID}, got)
	assert.Equal(t, 2, ids.Len())
	assert.Equal(t, 3, c.Len())

	key, ok := ids.Key(1)
	require.True(t, ok)
	assert.Equal(t, c.Entries()[1].Key, key)
	_, ok = ids.Key(2)
	assert.False(t, ok)
}

func TestReleaseReleasesObjects(t *testing.T) {
	d := backendtest.NewDevice()
	c := newTestCache(d, &testSource{})
	e, err := c.GetOrCreate(flags.NewPipelineFlags())
	require.NoError(t, err)
	rp := e.First.RenderPipeline().(*backendtest.Pipeline)
	c.Release()
	assert.True(t, rp.IsReleased())
	assert.Equal(t, 0, c.Len())
}

type failingCompiler struct{}

func (failingCompiler) Compile(p *shader.Program) (*shader.Compiled, error) {
	return nil, shader.ErrBindingMismatch
}
