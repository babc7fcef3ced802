package visibility

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-castor/engine/model"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-4

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, want[i], got[i], epsilon, "component %d", i)
	}
}

func TestPackNodePipeline(t *testing.T) {
	v := PackNodePipeline(42, 7)
	node, pipeline := UnpackNodePipeline(v)
	assert.Equal(t, uint32(42), node)
	assert.Equal(t, uint32(7), pipeline)

	node, pipeline = UnpackNodePipeline(PackNodePipeline(MaxNodes-1, MaxPipelines-1))
	assert.Equal(t, uint32(MaxNodes-1), node)
	assert.Equal(t, uint32(MaxPipelines-1), pipeline)

	// background keeps node 0 whatever the pipeline
	node, _ = UnpackNodePipeline(PackNodePipeline(0, 3))
	assert.Zero(t, node)
}

func TestPack64OrdersByDepth(t *testing.T) {
	near := Pack64(0.25, 900)
	far := Pack64(0.75, 1)
	assert.Less(t, near, far)

	depth, id := Unpack64(near)
	assert.Equal(t, float32(0.25), depth)
	assert.Equal(t, uint32(900), id)
}

func TestPackPixel(t *testing.T) {
	x, y := UnpackPixel(PackPixel(1919, 1079))
	assert.Equal(t, uint32(1919), x)
	assert.Equal(t, uint32(1079), y)
}

var triangle = [3]mgl32.Vec4{
	{-0.5, -0.5, 0, 1},
	{0.5, -0.5, 0, 1},
	{0, 0.5, 0, 1},
}

func TestDerivativesDegenerateTriangles(t *testing.T) {
	size := mgl32.Vec2{64, 64}

	collinear := ComputeFullDerivatives(
		mgl32.Vec4{0, 0, 0, 1}, mgl32.Vec4{0.5, 0.5, 0, 1}, mgl32.Vec4{1, 1, 0, 1},
		mgl32.Vec2{0.25, 0.25}, size)
	assert.True(t, collinear.IsZero())

	behind := ComputeFullDerivatives(triangle[0], triangle[1], mgl32.Vec4{0, 0.5, 0, 0}, mgl32.Vec2{}, size)
	assert.True(t, behind.IsZero())
}

func TestDerivativesAtVertex(t *testing.T) {
	d := ComputeFullDerivatives(triangle[0], triangle[1], triangle[2], triangle[0].Vec2(), mgl32.Vec2{64, 64})
	assertVec3(t, mgl32.Vec3{1, 0, 0}, d.Lambda)

	uv := Interpolate2(d, mgl32.Vec2{0.1, 0.2}, mgl32.Vec2{0.9, 0.2}, mgl32.Vec2{0.5, 0.8})
	assert.InDelta(t, 0.1, uv.Value.X(), epsilon)
	assert.InDelta(t, 0.2, uv.Value.Y(), epsilon)
}

func TestDerivativesAtCentroid(t *testing.T) {
	var p [3]mgl32.Vec4
	for i, v := range triangle {
		p[i] = v.Mul(2)
	}
	centroid := triangle[0].Vec2().Add(triangle[1].Vec2()).Add(triangle[2].Vec2()).Mul(1.0 / 3)
	d := ComputeFullDerivatives(p[0], p[1], p[2], centroid, mgl32.Vec2{64, 64})

	third := float32(1.0 / 3)
	assertVec3(t, mgl32.Vec3{third, third, third}, d.Lambda)
	assert.InDelta(t, 6, Interpolate(d, 3, 6, 9).Value, epsilon)
}

func TestDerivativesMatchNeighbourPixels(t *testing.T) {
	size := mgl32.Vec2{128, 96}
	// distinct w values make the interpolation perspective-correct
	p0 := mgl32.Vec4{-1.5, -1.5, 0, 3}
	p1 := mgl32.Vec4{1, -1, 0, 2}
	p2 := mgl32.Vec4{0, 2, 0, 4}

	x, y := uint32(60), uint32(50)
	d := ComputeFullDerivatives(p0, p1, p2, PixelToNDC(x, y, size), size)
	require.False(t, d.IsZero())
	right := ComputeFullDerivatives(p0, p1, p2, PixelToNDC(x+1, y, size), size)
	down := ComputeFullDerivatives(p0, p1, p2, PixelToNDC(x, y+1, size), size)

	assertVec3(t, right.Lambda.Sub(d.Lambda), d.Dx)
	assertVec3(t, down.Lambda.Sub(d.Lambda), d.Dy)
	assert.InDelta(t, 1, d.Lambda[0]+d.Lambda[1]+d.Lambda[2], epsilon)
}

func TestMotionVector(t *testing.T) {
	cur := mgl32.Vec4{0.2, 0.4, 0.5, 2}
	assert.Equal(t, mgl32.Vec2{}, MotionVector(cur, cur))
	assert.Equal(t, mgl32.Vec2{}, MotionVector(cur, mgl32.Vec4{0, 0, 0, 0}))

	// previous position 0.2 to the right and 0.2 up in NDC
	prev := mgl32.Vec4{0.6, 0.8, 0.5, 2}
	mv := MotionVector(cur, prev)
	assert.InDelta(t, 0.1, mv.X(), epsilon)
	assert.InDelta(t, -0.1, mv.Y(), epsilon)
}

func TestBucketPixels(t *testing.T) {
	// 3x2 target
	texels := []uint32{
		0, PackNodePipeline(1, 2), PackNodePipeline(2, 1),
		PackNodePipeline(3, 2), 0, PackNodePipeline(1, 1),
	}
	b := BucketPixels(texels, 3)

	assert.Len(t, b.Pixels, 4)
	assert.Equal(t, uint32(2), b.Counts[1])
	assert.Equal(t, uint32(2), b.Counts[2])
	assert.Equal(t, uint32(0), b.Starts[1])
	assert.Equal(t, uint32(2), b.Starts[2])
	assert.Equal(t, []uint32{PackPixel(2, 0), PackPixel(2, 1)}, b.Bucket(1))
	assert.Equal(t, []uint32{PackPixel(1, 0), PackPixel(0, 1)}, b.Bucket(2))
	assert.Empty(t, b.Bucket(0))
	assert.Nil(t, b.Bucket(MaxPipelines))
}

func TestReconstructionDeclaresOnce(t *testing.T) {
	w := shader.NewWriter(shader.WithLabel("reconstruction"))
	rec := NewReconstruction(w)
	w.ImplementEntryPoint(shader.EntryFragment, "main", "",
		[]shader.Param{{Name: "@builtin(position) fragCoord", Type: "vec4<f32>"}},
		"@location(0) vec4<f32>",
		func(fb *shader.FunctionBuilder) {
			d := fb.Let("d", rec.ComputeFullDerivatives("vec4<f32>(0.0)", "vec4<f32>(1.0)", "vec4<f32>(2.0)", "fragCoord.xy", "vec2<f32>(64.0)"))
			uv, dx, dy := rec.Interpolate("vec2<f32>", d, "vec2<f32>(0.0)", "vec2<f32>(1.0)", "vec2<f32>(0.5)")
			fb.Let("uv", uv)
			fb.Let("uvDx", dx)
			fb.Let("uvDy", dy)
			fb.Let("n", rec.InterpolateValue("vec3<f32>", d, "vec3<f32>(0.0)", "vec3<f32>(1.0)", "vec3<f32>(0.0)"))
			fb.Return("vec4<f32>(uv, uvDx.x + uvDy.y, n.x)")
		})
	require.NoError(t, w.Err())

	assert.Equal(t, 1, w.DeclarationCount("c3d_computeFullDerivatives"))
	assert.Equal(t, 1, w.DeclarationCount("c3d_interpolateVec2"))
	assert.Equal(t, 3, w.CallCount("c3d_interpolateVec2"))
	assert.Equal(t, 1, w.CallCount("c3d_interpolateVec3"))
	assert.Zero(t, w.DeclarationCount("c3d_interpolateVec4"))

	src := w.Source()
	assert.Contains(t, src, "c3d_interpolateVec2(d.dx, ")
	assert.Contains(t, src, "c3d_interpolateVec2(d.dy, ")
	assert.Equal(t, 1, strings.Count(src, "struct "+DerivativesType+" {"))
}

func newTestRegistry(t *testing.T) *component.Registry {
	t.Helper()
	r, err := component.NewRegistry()
	require.NoError(t, err)
	return r
}

func resolveFlags(opts ...flags.PipelineFlagsOption) flags.PipelineFlags {
	base := []flags.PipelineFlagsOption{
		flags.WithComponents(flags.ComponentDiffuseLighting, flags.ComponentSpecularLighting, flags.ComponentReflection),
		flags.WithSubmesh(flags.SubmeshPositions, flags.SubmeshNormals, flags.SubmeshTexcoords0),
	}
	return flags.NewPipelineFlags(append(base, opts...)...)
}

func binding(t *testing.T, p *shader.Program, name string) shader.Binding {
	t.Helper()
	for _, b := range p.Bindings {
		if b.Name == name {
			return b
		}
	}
	require.Failf(t, "binding not declared", "%s", name)
	return shader.Binding{}
}

func hasBinding(p *shader.Program, name string) bool {
	for _, b := range p.Bindings {
		if b.Name == name {
			return true
		}
	}
	return false
}

func TestGraphicsResolveLayout(t *testing.T) {
	f := resolveFlags()
	p, err := NewResolveProgram(newTestRegistry(t), BackendGraphics).Program(f)
	require.NoError(t, err)

	require.NotNil(t, p.Vertex)
	require.NotNil(t, p.Fragment)
	assert.Nil(t, p.Compute)

	assert.Equal(t, uint32(BindingScene), binding(t, p, "c3d_scene").Index)
	assert.Equal(t, uint32(BindingVisibility), binding(t, p, "c3d_visibility").Index)
	assert.Equal(t, uint32(BindingStreams+streamCount-1), binding(t, p, "c3d_inPassMasks").Index)
	assert.False(t, hasBinding(p, "c3d_outColour"))

	// the environment map follows the fixed bindings and the lighting block
	env := binding(t, p, "c3d_envMaps")
	assert.Equal(t, uint32(0), env.Group)
	assert.Equal(t, FixedBindingCount(BackendGraphics)+modules.LightsBindingCount(f.Scene), env.Index)
	assert.False(t, hasBinding(p, "c3d_refractionEnvMaps"))
	assert.False(t, hasBinding(p, "c3d_mippedScene"))

	assert.Equal(t, uint32(component.MaterialGroup), binding(t, p, "c3d_materials").Group)

	pc := binding(t, p, PushConstantsVar)
	assert.Equal(t, uint32(shader.PushConstantGroup), pc.Group)
	assert.True(t, pc.DynamicOffset)
	require.NotNil(t, p.PushConstants)
	assert.Equal(t, 4, p.PushConstants.Offset("billboardNodeId"))

	src := p.Source
	assert.Equal(t, 1, strings.Count(src, "fn c3d_resolvePixel("))
	assert.Contains(t, src, "discard;")
	assert.Contains(t, src, "let texcoordDx = c3d_interpolateVec2(derivs.dx, uv0.xy, uv1.xy, uv2.xy);")
	assert.Contains(t, src, "c3d_computeCombinedDifSpec(")
}

func TestComputeResolveLayout(t *testing.T) {
	f := resolveFlags(flags.WithComponents(flags.ComponentDiffuseLighting, flags.ComponentAlphaTest, flags.ComponentReflection))
	p, err := NewResolveProgram(newTestRegistry(t), BackendCompute).Program(f)
	require.NoError(t, err)

	require.NotNil(t, p.Compute)
	assert.Nil(t, p.Fragment)
	assert.Equal(t, [3]uint32{ResolveWorkgroupSize, 1, 1}, p.Compute.WorkgroupSize())

	assert.Equal(t, uint32(BindingPixels), binding(t, p, "c3d_pixels").Index)
	assert.Equal(t, uint32(BindingOutColour), binding(t, p, "c3d_outColour").Index)
	assert.Equal(t, uint32(BindingOutVelocity), binding(t, p, "c3d_outVelocity").Index)
	assert.Equal(t, FixedBindingCount(BackendCompute)+modules.LightsBindingCount(f.Scene), binding(t, p, "c3d_envMaps").Index)

	src := p.Source
	assert.NotContains(t, src, "discard;")
	assert.Contains(t, src, "textureStore(c3d_outColour, vec2<i32>(pixel), resolved.colour);")
	assert.Contains(t, src, "c3d_bucketStarts[bucket] + id.x")
}

func TestResolveSharesFunctionAcrossBackends(t *testing.T) {
	r := newTestRegistry(t)
	f := resolveFlags()
	g, err := NewResolveProgram(r, BackendGraphics).Program(f)
	require.NoError(t, err)
	c, err := NewResolveProgram(r, BackendCompute).Program(f)
	require.NoError(t, err)

	for _, src := range []string{g.Source, c.Source} {
		assert.Contains(t, src, "fn c3d_resolvePixel(pixel: vec2<u32>) -> ResolveResult")
		assert.Contains(t, src, "fn c3d_computeFullDerivatives(")
		assert.Contains(t, src, "c3d_motionVector(currentClip, previousClip)")
	}
}

func TestResolveBillboardsUseGeometryNode(t *testing.T) {
	p, err := NewResolveProgram(newTestRegistry(t), BackendGraphics).Program(resolveFlags(flags.WithProgram(flags.ProgramBillboards)))
	require.NoError(t, err)
	assert.Contains(t, p.Source, "c3d_nodes["+PushConstantsVar+".billboardNodeId - 1u]")
}

func TestResolveOptionalStreams(t *testing.T) {
	f := resolveFlags(flags.WithSubmesh(flags.SubmeshColours, flags.SubmeshVelocity))
	p, err := NewResolveProgram(newTestRegistry(t), BackendGraphics).Program(f)
	require.NoError(t, err)

	assert.Contains(t, p.Source, "surface.albedo * vertexColour.rgb")
	assert.Contains(t, p.Source, "local0.xyz - c3d_inVelocity[i0].xyz")

	plain, err := NewResolveProgram(newTestRegistry(t), BackendGraphics).Program(resolveFlags())
	require.NoError(t, err)
	assert.NotContains(t, plain.Source, "vertexColour")
	// streams stay bound even when the permutation ignores them
	assert.True(t, hasBinding(plain, "c3d_inColour"))
}

func TestReorderPrograms(t *testing.T) {
	for _, stage := range ReorderStages {
		t.Run(stage.String(), func(t *testing.T) {
			p, err := NewReorderProgram(stage)
			require.NoError(t, err)
			require.NotNil(t, p.Compute)
			for _, b := range p.Bindings {
				assert.Equal(t, uint32(0), b.Group)
			}
		})
	}

	scatter, err := NewReorderProgram(ReorderScatter)
	require.NoError(t, err)
	assert.Equal(t, uint32(ReorderBindingPixels), binding(t, scatter, "c3d_pixels").Index)
	assert.Contains(t, scatter.Source, "atomicAdd(&c3d_bucketCursors[pipelineId], 1u)")
	assert.False(t, hasBinding(scatter, "c3d_bucketStarts"))

	_, err = NewReorderProgram(ReorderStage(9))
	assert.Error(t, err)
}

func TestDispatchSizes(t *testing.T) {
	assert.Equal(t, [3]uint32{MaxPipelines / 64, 1, 1}, ReorderDispatch(ReorderClear, 1920, 1080))
	assert.Equal(t, [3]uint32{240, 135, 1}, ReorderDispatch(ReorderCount, 1920, 1080))
	assert.Equal(t, [3]uint32{1, 1, 1}, ReorderDispatch(ReorderPrefix, 1920, 1080))
	assert.Equal(t, [3]uint32{2, 1, 1}, ResolveDispatch(10, 10))

	_, _, _, pixels := ReorderBufferSizes(4, 4)
	assert.Equal(t, uint64(64), pixels)
}

func TestFixedBindingsMatchSlotConstants(t *testing.T) {
	for _, b := range []Backend{BackendGraphics, BackendCompute} {
		fixed := FixedBindings(b)
		require.Len(t, fixed, int(FixedBindingCount(b)), b.String())
		assert.Equal(t, "c3d_visibility", fixed[BindingVisibility].Name)
		assert.Equal(t, model.StreamPositions.Name(), fixed[BindingStreams].Name)
	}
	compute := FixedBindings(BackendCompute)
	assert.Equal(t, "c3d_pixels", compute[BindingPixels].Name)
	assert.Equal(t, "c3d_outVelocity", compute[BindingOutVelocity].Name)
}

// clashingPlugin claims the scene uniform's slot while blending into the surface.
type clashingPlugin struct{}

func (clashingPlugin) ID() string                             { return "clash" }
func (clashingPlugin) Flags() flags.ComponentFlags            { return flags.ComponentGeometry }
func (clashingPlugin) TextureFlags() flags.TextureFlags       { return flags.TextureNone }
func (clashingPlugin) Capabilities() flags.ComponentModeFlags { return flags.ModeGeometry }
func (clashingPlugin) Members() []component.Member            { return nil }

func (clashingPlugin) CreateComponent(component.Owner) component.Component { return nil }

func (clashingPlugin) FilterComponentFlags(_ flags.ComponentModeFlags, combine flags.ComponentFlags) flags.ComponentFlags {
	return combine
}

func (p clashingPlugin) Shader() component.ShaderContribution { return p }

func (clashingPlugin) Declare(*modules.Context) {}

func (clashingPlugin) Apply(fb *shader.FunctionBuilder, _ component.ApplyInputs) {
	fb.Writer().DeclareBinding(shader.Binding{Group: 0, Index: BindingScene, Name: "c3d_clash", Kind: shader.BindingUniform, Type: "vec4<f32>"})
}

func (clashingPlugin) ApplyTexture(*shader.FunctionBuilder, component.ApplyInputs, string, string) {}

func (clashingPlugin) Finish(*shader.FunctionBuilder, component.ApplyInputs) {}

func TestResolveReportsGenerationFailure(t *testing.T) {
	r, err := component.NewRegistry(component.WithPlugins(clashingPlugin{}))
	require.NoError(t, err)
	f := resolveFlags(flags.WithComponents(flags.ComponentDiffuseLighting, flags.ComponentGeometry))

	for _, b := range []Backend{BackendGraphics, BackendCompute} {
		p, err := NewResolveProgram(r, b).Program(f)
		require.ErrorIs(t, err, shader.ErrBindingConflict, b.String())
		assert.Nil(t, p)
	}
}
