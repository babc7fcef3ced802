package modules

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixedBindings = 5

func newTestContext(opts ...flags.PipelineFlagsOption) *Context {
	w := shader.NewWriter(shader.WithLabel("modules-test"))
	f := flags.NewPipelineFlags(opts...)
	return NewContext(w, f, shader.NewBindingCounter(0, fixedBindings), wgpu.ShaderStageFragment)
}

// fragment runs body inside a fragment entry point.
func fragment(ctx *Context, body func(fb *shader.FunctionBuilder)) {
	ctx.Writer.ImplementEntryPoint(shader.EntryFragment, "main", "", nil, "@location(0) vec4<f32>",
		func(fb *shader.FunctionBuilder) {
			body(fb)
			fb.Return("vec4<f32>(1.0)")
		})
}

func bindingIndex(t *testing.T, w *shader.Writer, name string) uint32 {
	t.Helper()
	b, ok := w.Binding(name)
	require.True(t, ok, "binding %s not declared", name)
	return b.Index
}

func TestHelpersDeclaredOncePerPermutation(t *testing.T) {
	ctx := newTestContext(flags.WithComponents(flags.ComponentReflection))
	utils, model, _ := NewLightingBlock(ctx, false)
	set := Build(ctx, utils, model)

	fragment(ctx, func(fb *shader.FunctionBuilder) {
		fb.Var("surface", SurfaceType, "")
		for i := range 3 {
			fb.Let("f"+strconv.Itoa(i), utils.FresnelSchlick("0.5", "vec3<f32>(0.04)"))
		}
		set.Reflection.ComputeCombined(fb, ReflectionInputs{Surface: "surface", EnvMapIndex: "0u"})
		set.Reflection.ComputeCombined(fb, ReflectionInputs{Surface: "surface", EnvMapIndex: "1u"})
	})
	require.NoError(t, ctx.Writer.Err())

	assert.Equal(t, 1, ctx.Writer.DeclarationCount("c3d_fresnelSchlick"))
	// three direct calls plus the one inside c3d_computeReflections
	assert.Equal(t, 4, ctx.Writer.CallCount("c3d_fresnelSchlick"))
	assert.Equal(t, 1, ctx.Writer.DeclarationCount("c3d_computeReflections"))
	assert.Equal(t, 2, ctx.Writer.CallCount("c3d_computeReflections"))

	src := ctx.Writer.Source()
	assert.Equal(t, 1, strings.Count(src, "fn c3d_computeReflections("))
	assert.Contains(t, src, "let reflections = c3d_computeReflections(")
	assert.Contains(t, src, "let reflections1 = c3d_computeReflections(")
	assert.Equal(t, 1, strings.Count(src, "struct Surface {"))
}

func TestReflectionOnlyClaimsEnvironmentMap(t *testing.T) {
	ctx := newTestContext(flags.WithComponents(flags.ComponentReflection))
	utils, model, _ := NewLightingBlock(ctx, false)
	set := Build(ctx, utils, model)
	w := ctx.Writer
	require.NoError(t, w.Err())

	assert.True(t, set.Reflection.Enabled())
	assert.Equal(t, uint32(fixedBindings), bindingIndex(t, w, "c3d_envMaps"))
	assert.Equal(t, uint32(fixedBindings+1), bindingIndex(t, w, "c3d_envSampler"))
	_, ok := w.Binding("c3d_refractionEnvMaps")
	assert.False(t, ok)
	_, ok = w.Binding("c3d_mippedScene")
	assert.False(t, ok)

	envMaps := 0
	for _, b := range w.Bindings() {
		if b.Provider == shader.AnnotationArgReflection && b.Role == RoleEnvMap {
			envMaps++
		}
	}
	assert.Equal(t, 1, envMaps)

	// the colour background follows the reflection bindings
	assert.Equal(t, uint32(fixedBindings+2), bindingIndex(t, w, "c3d_backgroundColour"))
}

func TestRefractionSource(t *testing.T) {
	tests := []struct {
		name    string
		opts    []flags.PipelineFlagsOption
		present string
		absent  string
	}{
		{
			name:    "mipped scene",
			opts:    []flags.PipelineFlagsOption{flags.WithComponents(flags.ComponentRefraction), flags.WithShader(flags.ShaderMippedScene)},
			present: "c3d_mippedScene",
			absent:  "c3d_refractionEnvMaps",
		},
		{
			name:    "environment",
			opts:    []flags.PipelineFlagsOption{flags.WithComponents(flags.ComponentReflection | flags.ComponentRefraction)},
			present: "c3d_refractionEnvMaps",
			absent:  "c3d_mippedScene",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(tt.opts...)
			NewReflectionModel(ctx, NewUtils(ctx))
			w := ctx.Writer
			require.NoError(t, w.Err())

			assert.Equal(t, uint32(fixedBindings), bindingIndex(t, w, "c3d_envMaps"))
			assert.Equal(t, uint32(fixedBindings+1), bindingIndex(t, w, tt.present))
			assert.Equal(t, uint32(fixedBindings+2), bindingIndex(t, w, "c3d_envSampler"))
			_, ok := w.Binding(tt.absent)
			assert.False(t, ok)
		})
	}
}

func TestNoReflectionClaimsNothing(t *testing.T) {
	ctx := newTestContext()
	m := NewReflectionModel(ctx, NewUtils(ctx))
	assert.False(t, m.Enabled())
	assert.Equal(t, uint32(fixedBindings), ctx.Counter.Next)

	fragment(ctx, func(fb *shader.FunctionBuilder) {
		fb.Var("surface", SurfaceType, "")
		m.ComputeCombined(fb, ReflectionInputs{Surface: "surface", EnvMapIndex: "C3D_NO_ENV_MAP"})
	})
	require.NoError(t, ctx.Writer.Err())
	assert.NotContains(t, ctx.Writer.Source(), "textureSampleLevel(c3d_envMaps")
}

func TestModuleBindingCounts(t *testing.T) {
	tests := []struct {
		name   string
		opts   []flags.PipelineFlagsOption
		claims uint32
	}{
		{"colour background", nil, 1},
		{"skybox", []flags.PipelineFlagsOption{flags.WithBackgroundModel(flags.BackgroundModelSkybox)}, 2},
		{"ibl", []flags.PipelineFlagsOption{flags.WithBackgroundModel(flags.BackgroundModelIBL)}, 4},
		{"vct", []flags.PipelineFlagsOption{flags.WithScene(flags.SceneVoxelConeTracing)}, 3 + 1},
		{"lpv", []flags.PipelineFlagsOption{flags.WithScene(flags.SceneLpvGI)}, 5 + 1},
		{"layered lpv", []flags.PipelineFlagsOption{flags.WithScene(flags.SceneLayeredLpvGI, flags.SceneLpvGI)}, 5 + 1},
		{"animations", []flags.PipelineFlagsOption{flags.WithComponents(flags.ComponentTextureAnimation)}, 1 + 1},
		{"fog", []flags.PipelineFlagsOption{flags.WithScene(flags.SceneFogLinear)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(tt.opts...)
			utils, model, _ := NewLightingBlock(ctx, false)
			Build(ctx, utils, model)
			require.NoError(t, ctx.Writer.Err())
			assert.Equal(t, fixedBindings+tt.claims, ctx.Counter.Next)
		})
	}
}

func TestLightingBlockBindings(t *testing.T) {
	for _, scene := range []flags.SceneFlags{flags.SceneNone, flags.SceneShadowDirectional} {
		w := shader.NewWriter()
		ctx := NewContext(w, flags.NewPipelineFlags(flags.WithScene(scene), flags.WithLightingModel(flags.LightingModelPBR)),
			shader.NewBindingCounter(0, 1), wgpu.ShaderStageFragment)
		_, _, lights := NewLightingBlock(ctx, true)
		require.NotNil(t, lights)
		require.NoError(t, w.Err())
		assert.Equal(t, 1+LightsBindingCount(scene), ctx.Counter.Next)
	}
}

func TestClusterOverflowIsFlagged(t *testing.T) {
	ctx := newTestContext(flags.WithLightingModel(flags.LightingModelPBR))
	_, _, lights := NewLightingBlock(ctx, true)
	fragment(ctx, func(fb *shader.FunctionBuilder) {
		fb.Var("surface", SurfaceType, "")
		fb.Let("lit", lights.ComputeCombinedDifSpec("surface"))
	})
	require.NoError(t, ctx.Writer.Err())

	src := ctx.Writer.Source()
	assert.Contains(t, src, "if (entry.y > maxLights) {")
	assert.Contains(t, src, "result.overflow = 1.0;")
	assert.Contains(t, src, "let count = min(entry.y, maxLights);")
	assert.Equal(t, 1, ctx.Writer.DeclarationCount("c3d_pbrSpecular"))
	// no shadow flags, no shadow lookups
	assert.NotContains(t, src, "c3d_shadowFactor")
}

func TestGPUConfigLayouts(t *testing.T) {
	tests := []struct {
		name    string
		members []string
		size    int
	}{
		{"voxel", voxelConfigMembers, (&GPUVoxelConfig{}).Size()},
		{"lpv", lpvConfigMembers, (&GPULpvConfig{}).Size()},
		{"layered", layeredLpvConfigMembers, (&GPULayeredLpvConfig{}).Size()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := shader.NewWriter()
			w.DeclareStruct("Config", tt.members...)
			layout, err := shader.LayoutStruct(w.Source(), "Config")
			require.NoError(t, err)
			assert.Equal(t, uint64(tt.size), layout.Size)
		})
	}

	cfg := GPULayeredLpvConfig{IndirectAttenuation: 2}
	buf := cfg.Marshal()
	assert.Len(t, buf, GPULayeredLpvConfigSize)
	assert.Equal(t, float32(2), math.Float32frombits(binary.LittleEndian.Uint32(buf[60:])))
}

func TestTraceCone(t *testing.T) {
	origin := mgl32.Vec3{}
	dir := mgl32.Vec3{0, 0, 1}

	opaque := func(mgl32.Vec3, float32) (mgl32.Vec4, bool) { return mgl32.Vec4{1, 1, 1, 1}, true }
	acc, steps := TraceCone(opaque, origin, dir, 0.1, 1, 6)
	assert.Equal(t, 1, steps)
	assert.InDelta(t, 1.0, acc[3], 1e-6)

	empty := func(mgl32.Vec3, float32) (mgl32.Vec4, bool) { return mgl32.Vec4{}, true }
	_, steps = TraceCone(empty, origin, dir, 0.01, 1, 6)
	assert.Equal(t, ConeSteps, steps)

	outside := func(mgl32.Vec3, float32) (mgl32.Vec4, bool) { return mgl32.Vec4{}, false }
	_, steps = TraceCone(outside, origin, dir, 0.01, 1, 6)
	assert.Zero(t, steps)

	// wide cones reach the trace distance before the step budget
	var mips []float32
	wide := func(_ mgl32.Vec3, mip float32) (mgl32.Vec4, bool) {
		mips = append(mips, mip)
		return mgl32.Vec4{}, true
	}
	_, steps = TraceCone(wide, origin, dir, 1, 10, 3)
	assert.Less(t, steps, ConeSteps)
	for i := 1; i < len(mips); i++ {
		assert.GreaterOrEqual(t, mips[i], mips[i-1])
		assert.LessOrEqual(t, mips[i], float32(3))
	}
}

func TestFogFactor(t *testing.T) {
	assert.InDelta(t, 0.5, FogFactor(flags.FogLinear, 15, 10, 20, 0), 1e-6)
	assert.InDelta(t, 1.0, FogFactor(flags.FogLinear, 5, 10, 20, 0), 1e-6)
	assert.InDelta(t, 0.0, FogFactor(flags.FogLinear, 25, 10, 20, 0), 1e-6)
	assert.InDelta(t, math.Exp(-1), FogFactor(flags.FogExponential, 10, 0, 0, 0.1), 1e-6)
	assert.InDelta(t, math.Exp(-1), FogFactor(flags.FogSquaredExponential, 10, 0, 0, 0.1), 1e-6)
	assert.Equal(t, float32(1), FogFactor(flags.FogNone, 1000, 0, 0, 1))
}

func TestFogDisabledPassesColourThrough(t *testing.T) {
	ctx := newTestContext()
	fog := NewFog(ctx)
	assert.Equal(t, "colour", fog.Apply("colour", "depth"))
	assert.Zero(t, ctx.Writer.DeclarationCount("c3d_applyFog"))

	ctx = newTestContext(flags.WithScene(flags.SceneFogExponential))
	fog = NewFog(ctx)
	assert.Equal(t, "c3d_applyFog(colour, depth)", fog.Apply("colour", "depth"))
}

func TestDebugProbesCapped(t *testing.T) {
	var buf bytes.Buffer
	ctx := newTestContext(flags.WithShader(flags.ShaderDebugOutput))
	ctx.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	var debug *DebugOutput
	fragment(ctx, func(fb *shader.FunctionBuilder) {
		fb.Var("out", "vec4<f32>", "vec4<f32>(0.0)")
		debug = NewDebugOutput(ctx, fb, "0u", "out")
		for range MaxDebugProbes + 8 {
			debug.RegisterScalar("lighting", "value", "0.5")
		}
		debug.Close()
		debug.Close()
	})
	require.NoError(t, ctx.Writer.Err())

	probes := debug.Probes()
	require.Len(t, probes, MaxDebugProbes)
	assert.Equal(t, uint32(1), probes[0].Index)
	assert.Equal(t, uint32(MaxDebugProbes), probes[MaxDebugProbes-1].Index)
	assert.Equal(t, 1, strings.Count(buf.String(), "debug probes dropped"))
	assert.Equal(t, 1, strings.Count(ctx.Writer.Source(), "switch (0u) {"))
}

func TestDebugOutputDisabled(t *testing.T) {
	ctx := newTestContext()
	fragment(ctx, func(fb *shader.FunctionBuilder) {
		fb.Var("out", "vec4<f32>", "vec4<f32>(0.0)")
		d := NewDebugOutput(ctx, fb, "0u", "out")
		d.RegisterVec3("lighting", "diffuse", "vec3<f32>(1.0)")
		assert.Empty(t, d.Probes())
		d.Close()
	})
	assert.NotContains(t, ctx.Writer.Source(), "switch")
}
