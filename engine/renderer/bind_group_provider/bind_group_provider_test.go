package bind_group_provider

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend/backendtest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T, d *backendtest.Device) (backend.BindGroupLayout, *wgpu.BindGroupLayoutDescriptor) {
	t.Helper()
	desc := &wgpu.BindGroupLayoutDescriptor{
		Label: "test layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageFragment, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: 64}},
			{Binding: 1, Visibility: wgpu.ShaderStageFragment, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: wgpu.ShaderStageFragment, Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimension2D}},
			{Binding: 3, Visibility: wgpu.ShaderStageFragment, Sampler: wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}},
		},
	}
	layout, err := d.CreateBindGroupLayout(desc)
	require.NoError(t, err)
	return layout, desc
}

func testView(t *testing.T, d *backendtest.Device) backend.ImageView {
	t.Helper()
	img, err := d.CreateImage(backend.ImageDescriptor{Label: "albedo", Width: 4, Height: 4, Format: wgpu.TextureFormatRGBA8Unorm})
	require.NoError(t, err)
	view, err := d.CreateImageView(backend.ImageViewDescriptor{Label: "albedo", Image: img, Dimension: wgpu.TextureViewDimension2D})
	require.NoError(t, err)
	return view
}

func TestInitCreatesMissingBuffers(t *testing.T) {
	d := backendtest.NewDevice()
	layout, desc := testLayout(t, d)
	sampler, err := d.CreateSampler(&wgpu.SamplerDescriptor{Label: "linear"})
	require.NoError(t, err)

	p := NewBindGroupProvider("material", WithTextureView(2, testView(t, d)), WithSampler(3, sampler))
	require.NoError(t, p.Init(d, layout, desc, map[uint32]uint64{1: 512}))

	require.NotNil(t, p.BindGroup())
	assert.Same(t, layout, p.BindGroupLayout())
	assert.Equal(t, uint64(64), p.Buffer(0).Size())
	assert.Equal(t, uint64(512), p.Buffer(1).Size())
	assert.Equal(t, 2, d.Count(backendtest.KindBuffer))

	bg := p.BindGroup().(*backendtest.BindGroup)
	require.Len(t, bg.Entries, 4)
	assert.Equal(t, backend.WholeSize, bg.Entries[0].Size)
}

func TestInitMissingTexture(t *testing.T) {
	d := backendtest.NewDevice()
	layout, desc := testLayout(t, d)

	p := NewBindGroupProvider("material")
	err := p.Init(d, layout, desc, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "texture binding 2")
	assert.Nil(t, p.BindGroup())
}

func TestBorrowedBuffersAreNotReleased(t *testing.T) {
	d := backendtest.NewDevice()
	layout, desc := testLayout(t, d)
	sampler, err := d.CreateSampler(&wgpu.SamplerDescriptor{Label: "linear"})
	require.NoError(t, err)
	shared, err := d.CreateBuffer(backend.BufferDescriptor{Label: "c3d_scene", Size: 256})
	require.NoError(t, err)

	p := NewBindGroupProvider("scene", WithBuffer(0, shared), WithTextureView(2, testView(t, d)), WithSampler(3, sampler))
	require.NoError(t, p.Init(d, layout, desc, nil))
	assert.Same(t, shared, p.Buffer(0))
	owned := p.Buffer(1)

	p.Release()
	assert.False(t, shared.(*backendtest.Buffer).IsReleased())
	assert.True(t, owned.(*backendtest.Buffer).IsReleased())
	assert.Nil(t, p.BindGroup())
	assert.Nil(t, p.Buffer(0))
}

func TestInitRebuildsSet(t *testing.T) {
	d := backendtest.NewDevice()
	layout, desc := testLayout(t, d)
	sampler, err := d.CreateSampler(&wgpu.SamplerDescriptor{Label: "linear"})
	require.NoError(t, err)

	p := NewBindGroupProvider("material", WithTextureView(2, testView(t, d)), WithSampler(3, sampler))
	require.NoError(t, p.Init(d, layout, desc, nil))
	first := p.BindGroup()

	view := testView(t, d)
	p.SetTextureView(2, view)
	require.NoError(t, p.Init(d, layout, desc, nil))
	assert.NotSame(t, first, p.BindGroup())
	assert.Same(t, view, p.TextureView(2))
	// buffers created by the first Init are kept
	assert.Equal(t, 2, d.Count(backendtest.KindBuffer))
}

func TestAttachReleasesReplacedOwnedBuffer(t *testing.T) {
	d := backendtest.NewDevice()
	layout, desc := testLayout(t, d)
	sampler, err := d.CreateSampler(&wgpu.SamplerDescriptor{Label: "linear"})
	require.NoError(t, err)

	p := NewBindGroupProvider("material", WithTextureView(2, testView(t, d)), WithSampler(3, sampler))
	require.NoError(t, p.Init(d, layout, desc, nil))
	created := p.Buffer(1)

	shared, err := d.CreateBuffer(backend.BufferDescriptor{Label: "c3d_materials", Size: 1024})
	require.NoError(t, err)
	p.SetBuffer(1, shared)
	assert.True(t, created.(*backendtest.Buffer).IsReleased())

	p.Release()
	assert.False(t, shared.(*backendtest.Buffer).IsReleased())
}
