package component

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPass struct{ index uint32 }

func (p testPass) Index() uint32 { return p.index }
func (p testPass) Name() string  { return "pass" }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	require.NoError(t, err)
	return r
}

func floatAt(buf []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
}

func TestRegistryRejectsConflicts(t *testing.T) {
	r := newTestRegistry(t)
	assert.Len(t, r.Plugins(), 16)

	p, ok := r.Plugin(IDReflection)
	require.True(t, ok)
	assert.Equal(t, flags.ComponentReflection, p.Flags())

	err := r.Register(&basePlugin{id: IDReflection})
	assert.ErrorIs(t, err, ErrDuplicatePlugin)

	err = r.Register(&basePlugin{id: "other", flags: flags.ComponentSheen})
	assert.ErrorIs(t, err, ErrFlagsClaimed)

	err = r.Register(&basePlugin{id: "geometry", flags: flags.ComponentGeometry, capabilities: flags.ModeGeometry})
	assert.NoError(t, err)
}

func TestFilterComponentFlags(t *testing.T) {
	r := newTestRegistry(t)
	requested := flags.CombineComponents(flags.ComponentDiffuseLighting, flags.ComponentSpecularLighting,
		flags.ComponentReflection, flags.ComponentAlphaTest, flags.ComponentGeometry)

	got := r.FilterComponentFlags(flags.ModeColour|flags.ModeDiffuseLighting, requested)
	// geometry has no plugin and passes through
	assert.Equal(t, flags.ComponentDiffuseLighting|flags.ComponentGeometry, got)

	// two materials differing only in an irrelevant component collapse to one key
	a := r.FilterComponentFlags(flags.ModeOpacity, flags.ComponentAlphaTest|flags.ComponentSheen)
	b := r.FilterComponentFlags(flags.ModeOpacity, flags.ComponentAlphaTest)
	assert.Equal(t,
		flags.NewPipelineFlags(flags.WithComponents(a)).Hash(),
		flags.NewPipelineFlags(flags.WithComponents(b)).Hash())
}

func TestCombineIDsAreDense(t *testing.T) {
	r := newTestRegistry(t)
	a := r.RegisterCombine(flags.ComponentDiffuseLighting)
	b := r.RegisterCombine(flags.ComponentDiffuseLighting | flags.ComponentEmissive)
	assert.Equal(t, flags.CombineID(1), a)
	assert.Equal(t, flags.CombineID(2), b)
	assert.Equal(t, a, r.RegisterCombine(flags.ComponentDiffuseLighting))

	got, ok := r.Combine(b)
	require.True(t, ok)
	assert.Equal(t, flags.ComponentDiffuseLighting|flags.ComponentEmissive, got)
	_, ok = r.Combine(0)
	assert.False(t, ok)
	_, ok = r.Combine(3)
	assert.False(t, ok)

	tex := r.RegisterTextureCombine(flags.TextureColour | flags.TextureNormal)
	assert.Equal(t, flags.CombineID(1), tex)
	gotTex, ok := r.TextureCombine(tex)
	require.True(t, ok)
	assert.Equal(t, flags.TextureColour|flags.TextureNormal, gotTex)
}

func TestCreateComponents(t *testing.T) {
	r := newTestRegistry(t)
	owner := testPass{index: 3}
	comps := r.CreateComponents(owner, flags.ComponentRefraction|flags.ComponentDiffuseLighting|flags.ComponentReflection)
	require.Len(t, comps, 3)

	assert.Equal(t, IDDiffuse, comps[0].Plugin().ID())
	assert.Equal(t, IDReflection, comps[1].Plugin().ID())
	assert.Equal(t, IDRefraction, comps[2].Plugin().ID())
	for _, c := range comps {
		assert.Equal(t, uint32(3), c.Owner().Index())
	}
	_, ok := comps[0].(*DiffuseComponent)
	assert.True(t, ok)
	assert.Equal(t, 12, comps[0].DataSize())
	assert.Equal(t, 0, comps[1].DataSize())
}

func TestMaterialLayout(t *testing.T) {
	r := newTestRegistry(t)
	layout, err := r.MaterialLayout()
	require.NoError(t, err)

	offsets := map[string]uint64{
		"passIndex":      0,
		"textureCount":   12,
		"albedo":         16,
		"specular":       32,
		"shininess":      44,
		"alphaRef":       64,
		"emissive":       80,
		"emissiveFactor": 92,
		"sheenColour":    112,
		"sheenRoughness": 124,
		"transmission":   128,
	}
	for name, want := range offsets {
		m, ok := layout.Member(name)
		require.True(t, ok, name)
		assert.Equal(t, want, m.Offset, name)
	}
	assert.Equal(t, uint64(144), layout.Size)

	again, err := r.MaterialLayout()
	require.NoError(t, err)
	assert.Equal(t, layout, again)
}

func TestComponentFill(t *testing.T) {
	r := newTestRegistry(t)
	layout, err := r.MaterialLayout()
	require.NoError(t, err)

	comps := r.CreateComponents(testPass{}, flags.ComponentDiffuseLighting|flags.ComponentOpacity)
	comps[0].(*DiffuseComponent).SetAlbedo(mgl32.Vec3{0.5, 0.25, 1})

	buf := make([]byte, layout.Size)
	for _, c := range comps {
		c.Fill(buf, layout)
	}
	assert.Equal(t, float32(0.5), floatAt(buf, 16))
	assert.Equal(t, float32(0.25), floatAt(buf, 20))
	assert.Equal(t, float32(1), floatAt(buf, 24))
	// opacity default
	assert.Equal(t, float32(1), floatAt(buf, 60))
}

func blendSource(t *testing.T, compute bool, f flags.PipelineFlags) (*shader.Writer, *modules.Context) {
	t.Helper()
	r := newTestRegistry(t)
	w := shader.NewWriter(shader.WithLabel("component-test"))
	ctx := modules.NewContext(w, f, shader.NewBindingCounter(MaterialGroup, 0), wgpu.ShaderStageFragment)
	modules.DeclareSurface(w)
	r.DeclareMaterials(ctx)
	w.ImplementEntryPoint(shader.EntryFragment, "main", "", nil, "@location(0) vec4<f32>", func(fb *shader.FunctionBuilder) {
		fb.Var("surface", modules.SurfaceType, "")
		fb.Let("material", "c3d_materials[0]")
		r.BlendSurface(fb, ApplyInputs{Surface: "surface", Material: "material", Compute: compute, Flags: f},
			nil, "dpdx(surface.texcoord)", "dpdy(surface.texcoord)")
		fb.Return("vec4<f32>(surface.albedo, surface.opacity)")
	})
	require.NoError(t, w.Err())
	return w, ctx
}

func TestBlendSurface(t *testing.T) {
	f := flags.NewPipelineFlags(
		flags.WithComponents(flags.ComponentDiffuseLighting, flags.ComponentOpacity, flags.ComponentAlphaTest, flags.ComponentSheen),
		flags.WithTextures(1, flags.TextureColour),
	)
	w, ctx := blendSource(t, false, f)

	for name, index := range map[string]uint32{
		"c3d_materials":      0,
		"c3d_textureConfigs": 1,
		"c3d_maps":           2,
		"c3d_mapSampler":     3,
		"c3d_sheenLut":       4,
		"c3d_sheenSampler":   5,
	} {
		b, ok := w.Binding(name)
		require.True(t, ok, name)
		assert.Equal(t, uint32(MaterialGroup), b.Group, name)
		assert.Equal(t, index, b.Index, name)
	}
	assert.Equal(t, uint32(6), ctx.Counter.Next)

	src := w.Source()
	assert.Contains(t, src, "surface.albedo = material.albedo;")
	assert.Contains(t, src, "textureSampleGrad(c3d_maps, c3d_mapSampler, unitUV, i32(layer)")
	assert.Contains(t, src, "discard;")
	assert.Less(t, strings.Index(src, "surface.opacity = material.opacity;"), strings.Index(src, "discard;"))
	assert.Contains(t, src, "struct Material {")

	wc, _ := blendSource(t, true, f)
	assert.NotContains(t, wc.Source(), "discard;")
}

func TestBlendSurfaceWithoutTextures(t *testing.T) {
	f := flags.NewPipelineFlags(flags.WithComponents(flags.ComponentDiffuseLighting))
	w, ctx := blendSource(t, false, f)
	_, ok := w.Binding("c3d_maps")
	assert.False(t, ok)
	assert.Equal(t, uint32(1), ctx.Counter.Next)
	assert.NotContains(t, w.Source(), "textureSampleGrad")
}

func TestReflRefrOverloads(t *testing.T) {
	r := newTestRegistry(t)
	f := flags.NewPipelineFlags(flags.WithComponents(flags.ComponentReflection, flags.ComponentRefraction))
	w := shader.NewWriter()
	ctx := modules.NewContext(w, f, shader.NewBindingCounter(0, 5), wgpu.ShaderStageFragment)
	utils, model, _ := modules.NewLightingBlock(ctx, false)
	set := modules.Build(ctx, utils, model)

	rr := r.ReflRefr()
	require.NotNil(t, rr)
	in := ApplyInputs{Surface: "surface", Material: "material", EnvMapIndex: "node.envMapIndex", Flags: f}
	w.ImplementEntryPoint(shader.EntryFragment, "main", "", nil, "@location(0) vec4<f32>", func(fb *shader.FunctionBuilder) {
		fb.Var("surface", modules.SurfaceType, "")
		a := rr.ComputeReflRefr(fb, set.Reflection, in)
		b := rr.ComputeReflRefrAt(fb, set.Reflection, in, "worldPos", "c3d_scene.cameraPosition.xyz")
		fb.Return("vec4<f32>(" + a.ReflectedSpecular + " + " + b.Refracted + ", 1.0)")
	})
	require.NoError(t, w.Err())

	assert.Equal(t, 1, w.DeclarationCount("c3d_computeReflections"))
	assert.Equal(t, 2, w.CallCount("c3d_computeReflections"))
	src := w.Source()
	assert.Contains(t, src, "var reflSurface1: Surface = surface;")
	assert.Contains(t, src, "reflSurface1.viewDir = normalize(c3d_scene.cameraPosition.xyz - worldPos);")
	assert.Contains(t, src, "material.refractionRatio")
	assert.Contains(t, src, "node.envMapIndex")
}
