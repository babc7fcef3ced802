package flags

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsOrderIndependent(t *testing.T) {
	a := Combine(
		WithComponents(ComponentDiffuseLighting),
		WithScene(SceneFogLinear),
		WithComponents(ComponentSpecularLighting, ComponentReflection),
		WithSubmesh(SubmeshPositions|SubmeshNormals),
		WithLightingModel(LightingModelPBR),
		WithScene(SceneVoxelConeTracing),
		WithCulling(CullBack),
	)
	b := Combine(
		WithCulling(CullBack),
		WithScene(SceneVoxelConeTracing|SceneFogLinear),
		WithLightingModel(LightingModelPBR),
		WithSubmesh(SubmeshNormals, SubmeshPositions),
		WithComponents(ComponentReflection|ComponentSpecularLighting|ComponentDiffuseLighting),
	)
	assert.Equal(t, a, b)
	assert.False(t, a.IsZero())
}

func TestHashDistinguishesFlagContent(t *testing.T) {
	base := []PipelineFlagsOption{
		WithComponents(ComponentDiffuseLighting | ComponentSpecularLighting),
		WithLightingModel(LightingModelPhong),
	}
	variants := map[string]PipelineFlagsOption{
		"reflection":  WithComponents(ComponentReflection),
		"fog":         WithScene(SceneFogExponential),
		"gi":          WithScene(SceneLpvGI),
		"topology":    WithTopology(wgpu.PrimitiveTopologyLineList),
		"culling":     WithCulling(CullFront),
		"background":  WithBackgroundModel(BackgroundModelSkybox),
		"render pass": WithRenderPassType(3),
		"stride":      WithVertexStride(32),
		"alpha func":  WithAlphaFunc(wgpu.CompareFunctionGreater),
		"shader":      WithShader(ShaderMippedScene),
	}
	ref := Combine(base...)
	seen := map[PipelineBaseHash]string{ref: "base"}
	for name, opt := range variants {
		h := Combine(append(append([]PipelineFlagsOption{}, base...), opt)...)
		assert.NotEqual(t, ref, h, name)
		prev, dup := seen[h]
		assert.False(t, dup, "%s collides with %s", name, prev)
		seen[h] = name
	}
}

func TestPackDecomposeRoundTrip(t *testing.T) {
	cases := []BaseHashFields{
		{},
		{Submesh: SubmeshPositions | SubmeshTexcoords0, Program: ProgramInstantiation, Components: 1, Textures: 2, PassType: 1},
		{Submesh: submeshMask, Program: programMask, Components: componentMask, Textures: textureMask, PassType: passTypeMask, FrontCulled: true},
		{Submesh: SubmeshPassMasks, Program: ProgramBillboards, Components: 77, Textures: 4000, PassType: 200, FrontCulled: true},
	}
	for _, fields := range cases {
		got := Decompose(Pack(fields, ExtraNone), ExtraNone)
		assert.Equal(t, fields, got)
	}
}

func TestPackDecomposeWithVertexStride(t *testing.T) {
	fields := BaseHashFields{
		Submesh:      SubmeshPositions,
		Program:      ProgramBillboards,
		Components:   12,
		Textures:     3,
		PassType:     2,
		VertexStride: 44,
	}
	h := Pack(fields, ExtraVertexStride)
	assert.Equal(t, fields, Decompose(h, ExtraVertexStride))

	withoutExtras := Decompose(h, ExtraNone)
	assert.Zero(t, withoutExtras.VertexStride)
	withoutExtras.VertexStride = fields.VertexStride
	assert.Equal(t, fields, withoutExtras)
}

func TestHashKeepsDecomposableLowWord(t *testing.T) {
	f := NewPipelineFlags(
		WithSubmesh(SubmeshPositions, SubmeshNormals, SubmeshTexcoords0),
		WithProgram(ProgramBillboards),
		WithComponentsID(9),
		WithTextures(5, TextureColour),
		WithPassType(1),
		WithCulling(CullFront),
		WithVertexStride(24),
	)
	h := f.Hash()
	require.Equal(t, ExtraVertexStride, f.Extras())
	assert.Equal(t, f.BaseFields(), Decompose(h, f.Extras()))
}

func TestSceneKinds(t *testing.T) {
	assert.Equal(t, FogNone, SceneNone.Fog())
	assert.Equal(t, FogLinear, SceneFogLinear.Fog())
	assert.Equal(t, FogSquaredExponential, (SceneFogLinear | SceneFogSquaredExponential).Fog())
	assert.Equal(t, GINone, SceneShadowDirectional.GI())
	assert.Equal(t, GIVoxelConeTracing, SceneVoxelConeTracing.GI())
	assert.Equal(t, GILayeredLpv, (SceneLpvGI | SceneLayeredLpvGI).GI())
}

func TestComponentFlagOperations(t *testing.T) {
	f := CombineComponents(ComponentDiffuseLighting, ComponentReflection, ComponentRefraction)
	assert.True(t, f.Has(ComponentReflection))
	assert.True(t, f.HasAny(ComponentSpecificsMask))
	assert.False(t, f.Has(ComponentSpecificsMask))
	assert.Equal(t, ComponentDiffuseLighting, f.Without(ComponentSpecificsMask))
	assert.Equal(t, ComponentReflection|ComponentRefraction, f.Filter(ComponentSpecificsMask))
	assert.Equal(t, 3, f.Count())
	assert.Equal(t, "diffuseLighting|reflection|refraction", f.String())
	assert.Equal(t, "none", ComponentNone.String())
}

func TestTexcoordSetCount(t *testing.T) {
	assert.Equal(t, 0, SubmeshPositions.TexcoordSetCount())
	assert.Equal(t, 2, (SubmeshTexcoords0 | SubmeshTexcoords2 | SubmeshNormals).TexcoordSetCount())
	assert.Equal(t, SubmeshTexcoords3, TexcoordSet(3))
}
