package shader

import (
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var viewDimensions = map[string]wgpu.TextureViewDimension{
	"1d":         wgpu.TextureViewDimension1D,
	"2d":         wgpu.TextureViewDimension2D,
	"2d_array":   wgpu.TextureViewDimension2DArray,
	"3d":         wgpu.TextureViewDimension3D,
	"cube":       wgpu.TextureViewDimensionCube,
	"cube_array": wgpu.TextureViewDimensionCubeArray,
}

var sampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var storageAccess = map[string]wgpu.StorageTextureAccess{
	"read":       wgpu.StorageTextureAccessReadOnly,
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// texel formats a storage texture may be declared with
var texelFormats = map[string]wgpu.TextureFormat{
	"r32float":    wgpu.TextureFormatR32Float,
	"r32sint":     wgpu.TextureFormatR32Sint,
	"r32uint":     wgpu.TextureFormatR32Uint,
	"rg32float":   wgpu.TextureFormatRG32Float,
	"rg32sint":    wgpu.TextureFormatRG32Sint,
	"rg32uint":    wgpu.TextureFormatRG32Uint,
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba8snorm":  wgpu.TextureFormatRGBA8Snorm,
	"rgba8sint":   wgpu.TextureFormatRGBA8Sint,
	"rgba8uint":   wgpu.TextureFormatRGBA8Uint,
	"bgra8unorm":  wgpu.TextureFormatBGRA8Unorm,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"rgba16sint":  wgpu.TextureFormatRGBA16Sint,
	"rgba16uint":  wgpu.TextureFormatRGBA16Uint,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"rgba32sint":  wgpu.TextureFormatRGBA32Sint,
	"rgba32uint":  wgpu.TextureFormatRGBA32Uint,
}

// kindOf classifies a declaration the same way Binding.Declaration spells it.
func kindOf(addressSpace, typ string) BindingKind {
	switch {
	case addressSpace == "uniform":
		return BindingUniform
	case strings.HasPrefix(addressSpace, "storage"):
		if strings.Contains(addressSpace, "read_write") {
			return BindingStorageRW
		}
		return BindingStorage
	case typ == "sampler":
		return BindingSampler
	case typ == "sampler_comparison":
		return BindingComparisonSampler
	case strings.HasPrefix(typ, "texture_storage_"):
		return BindingStorageTexture
	case strings.HasPrefix(typ, "texture_depth_"):
		return BindingDepthTexture
	}
	return BindingSampledTexture
}

// textureView reads the view dimension from a texture type name such as
// texture_depth_multisampled_2d.
func textureView(base string) (dim wgpu.TextureViewDimension, multisampled bool) {
	name := strings.TrimPrefix(base, "texture_")
	name = strings.TrimPrefix(name, "storage_")
	name = strings.TrimPrefix(name, "depth_")
	if after, ok := strings.CutPrefix(name, "multisampled_"); ok {
		name, multisampled = after, true
	}
	return viewDimensions[name], multisampled
}

// layoutEntry builds the layout entry the backend needs for a reflected declaration.
func layoutEntry(binding uint32, visibility wgpu.ShaderStage, kind BindingKind, typ string) wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}
	base, args := typeArgs(typ)
	switch kind {
	case BindingUniform:
		e.Buffer.Type = wgpu.BufferBindingTypeUniform
	case BindingStorage:
		e.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case BindingStorageRW:
		e.Buffer.Type = wgpu.BufferBindingTypeStorage
	case BindingSampler:
		e.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case BindingComparisonSampler:
		e.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case BindingDepthTexture:
		e.Texture.SampleType = wgpu.TextureSampleTypeDepth
		e.Texture.ViewDimension, e.Texture.Multisampled = textureView(base)
	case BindingSampledTexture:
		e.Texture.SampleType = sampleTypes[args]
		e.Texture.ViewDimension, e.Texture.Multisampled = textureView(base)
	case BindingStorageTexture:
		format, access, _ := strings.Cut(args, ",")
		e.StorageTexture.Format = texelFormats[strings.TrimSpace(format)]
		e.StorageTexture.Access = storageAccess[strings.TrimSpace(access)]
		e.StorageTexture.ViewDimension, _ = textureView(base)
	}
	return e
}
