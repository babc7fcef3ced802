package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveLayout(t *testing.T) {
	cases := map[string]typeLayout{
		"f32":         {4, 4},
		"f16":         {2, 2},
		"vec2f":       {8, 8},
		"vec3<f32>":   {12, 16},
		"vec3u":       {12, 16},
		"vec4h":       {8, 8},
		"mat3x2<f32>": {24, 8},
		"mat2x3<f32>": {32, 16},
		"mat4x4f":     {64, 16},
		"atomic<u32>": {4, 4},
	}
	for typ, want := range cases {
		got, ok := primitiveLayout(typ)
		require.True(t, ok, typ)
		assert.Equal(t, want, got, typ)
	}
	for _, typ := range []string{"Material", "vec5f", "mat5x4f", "atomic<f32>", "texture_2d<f32>"} {
		_, ok := primitiveLayout(typ)
		assert.False(t, ok, typ)
	}
}

func TestStripComments(t *testing.T) {
	src := "a /* b /* nested */ c */ d // tail\ne/* x\ny */f"
	assert.Equal(t, "a  d \ne\nf", stripComments(src))
}

func TestBindingsMinSize(t *testing.T) {
	src := `
struct Item { v: vec3<f32>, w: u32, }
struct Items { count: u32, items: array<Item>, }
struct Planes { p: array<vec4f, 6>, }
@group(0) @binding(0) var<storage, read> items: Items;
@group(0) @binding(2) var<uniform> planes: Planes;
@group(0) @binding(1) var<storage, read_write> flat: array<u32>;
@group(1) @binding(0) var tex: texture_depth_multisampled_2d;
@group(1) @binding(1) var img: texture_storage_2d_array<rgba16float, read_write>;
`
	layouts, reflected := reflectSource(src).bindings(wgpu.ShaderStageCompute)
	require.Len(t, layouts, 2)

	g0 := layouts[0].Entries
	require.Len(t, g0, 3)
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{g0[0].Binding, g0[1].Binding, g0[2].Binding})
	// prefix padded to the element alignment plus one element
	assert.Equal(t, uint64(32), g0[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, g0[0].Buffer.Type)
	assert.Equal(t, uint64(4), g0[1].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, g0[1].Buffer.Type)
	assert.Equal(t, uint64(96), g0[2].Buffer.MinBindingSize)

	g1 := layouts[1].Entries
	assert.Equal(t, wgpu.TextureSampleTypeDepth, g1[0].Texture.SampleType)
	assert.True(t, g1[0].Texture.Multisampled)
	assert.Equal(t, wgpu.TextureViewDimension2D, g1[0].Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, g1[1].StorageTexture.Format)
	assert.Equal(t, wgpu.StorageTextureAccessReadWrite, g1[1].StorageTexture.Access)
	assert.Equal(t, wgpu.TextureViewDimension2DArray, g1[1].StorageTexture.ViewDimension)

	require.Len(t, reflected, 5)
	assert.Equal(t, "flat", reflected[1].Name)
	assert.Equal(t, BindingStorageRW, reflected[1].Kind)
}

func TestVertexLayouts(t *testing.T) {
	src := `
struct VertexIn {
    @location(0) position: vec3<f32>,
    @location(1) @interpolate(flat) id: u32,
    @location(2) uv: vec2f,
}
struct VertexOut {
    @builtin(position) position: vec4f,
    @location(0) uv: vec2f,
}
@vertex fn vs(in: VertexIn) -> VertexOut { var out: VertexOut; return out; }
`
	layouts := reflectSource(src).vertexLayouts()
	require.Len(t, layouts, 1)
	l := layouts[0]
	assert.Equal(t, uint64(24), l.ArrayStride)
	require.Len(t, l.Attributes, 3)
	assert.Equal(t, wgpu.VertexFormatUint32, l.Attributes[1].Format)
	assert.Equal(t, uint64(12), l.Attributes[1].Offset)
	assert.Equal(t, uint32(2), l.Attributes[2].ShaderLocation)
}

func TestWorkgroupSizeOfEntryPoint(t *testing.T) {
	src := `
@compute @workgroup_size(64) fn first() {}
// @workgroup_size(2, 2, 2)
@compute @workgroup_size(8, 4) fn second() {}
`
	r := reflectSource(src)
	assert.Equal(t, "first", r.entryPoint(ShaderTypeCompute))
	assert.Equal(t, [3]uint32{64, 1, 1}, r.workgroupSize("first"))
	assert.Equal(t, [3]uint32{8, 4, 1}, r.workgroupSize("second"))
	assert.Empty(t, r.entryPoint(ShaderTypeVertex))
}

func TestLayoutStructRejectsRecursion(t *testing.T) {
	_, err := LayoutStruct(`struct A { b: B, } struct B { a: A, }`, "A")
	assert.Error(t, err)
}
