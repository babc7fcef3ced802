package material

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/texture"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *component.Registry {
	t.Helper()
	r, err := component.NewRegistry()
	require.NoError(t, err)
	return r
}

func u32At(buf []byte, off uint64) uint32 {
	return binary.LittleEndian.Uint32(buf[off:])
}

func f32At(buf []byte, off uint64) float32 {
	return math.Float32frombits(u32At(buf, off))
}

func TestNewPassCreatesComponents(t *testing.T) {
	r := newTestRegistry(t)
	p := NewPass(r,
		WithPassName("body"),
		WithComponents(flags.ComponentDiffuseLighting, flags.ComponentReflection),
		WithTextureUnit(TextureUnit{Name: "normal", Config: texture.NewTextureConfig(flags.TextureNormal, 0)}),
	)
	assert.Equal(t, NoPassIndex, p.Index())
	assert.Equal(t, flags.LightingModelPBR, p.LightingModel())
	assert.True(t, p.ComponentFlags().Has(flags.ComponentNormals))

	ids := make([]string, 0, len(p.Components()))
	for _, c := range p.Components() {
		ids = append(ids, c.Plugin().ID())
		assert.Equal(t, p, c.Owner())
	}
	assert.Equal(t, []string{component.IDDiffuse, component.IDNormal, component.IDReflection}, ids)

	_, ok := p.Component(component.IDSheen)
	assert.False(t, ok)
}

func TestPipelineOptionsFilterByMode(t *testing.T) {
	r := newTestRegistry(t)
	a := NewPass(r, WithComponents(flags.ComponentDiffuseLighting, flags.ComponentSheen))
	b := NewPass(r, WithComponents(flags.ComponentDiffuseLighting))

	fa := flags.NewPipelineFlags(a.PipelineOptions(r, flags.ModeColour)...)
	fb := flags.NewPipelineFlags(b.PipelineOptions(r, flags.ModeColour)...)
	assert.Equal(t, fa.Hash(), fb.Hash())
	assert.Equal(t, flags.ComponentDiffuseLighting, fa.Components)

	full := flags.NewPipelineFlags(a.PipelineOptions(r, flags.ModeAll)...)
	assert.NotEqual(t, fa.Hash(), full.Hash())
	assert.True(t, full.Components.Has(flags.ComponentSheen))
}

func TestMaterialBufferMarshal(t *testing.T) {
	r := newTestRegistry(t)
	anims := texture.NewAnimationBuffer(8)
	buf := NewMaterialBuffer(r, anims)

	first := NewPass(r, WithComponents(flags.ComponentDiffuseLighting),
		WithTextureUnit(TextureUnit{Name: "albedo", Config: texture.NewTextureConfig(flags.TextureColour, 0)}),
		WithTextureUnit(TextureUnit{Name: "ao", Config: texture.NewTextureConfig(flags.TextureOcclusion, 0)}),
	)
	second := NewPass(r, WithComponents(flags.ComponentDiffuseLighting), WithLightingModel(flags.LightingModelPhong),
		WithTextureUnit(TextureUnit{Name: "scroll", Config: texture.NewTextureConfig(flags.TextureColour, 0),
			Animation: &texture.Animation{TranslateSpeed: mgl32.Vec2{1, 0}, Scale: mgl32.Vec2{1, 1}}}),
	)
	d, ok := second.Component(component.IDDiffuse)
	require.True(t, ok)
	d.(*component.DiffuseComponent).SetAlbedo(mgl32.Vec3{0.2, 0.4, 0.6})

	i0, err := buf.Add(first)
	require.NoError(t, err)
	i1, err := buf.Add(second)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), i0)
	assert.Equal(t, uint32(1), i1)
	assert.Equal(t, uint32(1), second.Index())
	assert.Equal(t, 1, anims.Len())
	assert.True(t, second.ComponentFlags().Has(flags.ComponentTextureAnimation))

	again, err := buf.Add(first)
	require.NoError(t, err)
	assert.Equal(t, i0, again)

	packed, err := buf.Marshal()
	require.NoError(t, err)
	layout, err := r.MaterialLayout()
	require.NoError(t, err)
	require.Equal(t, layout.Size, packed.Stride)
	require.Len(t, packed.Materials, int(2*packed.Stride))

	rec := packed.Materials[packed.Stride:]
	assert.Equal(t, uint32(1), u32At(rec, 0))
	assert.Equal(t, uint32(flags.LightingModelPhong), u32At(rec, 4))
	assert.Equal(t, uint32(2), u32At(rec, 8))
	assert.Equal(t, uint32(1), u32At(rec, 12))
	albedo, ok := layout.Member("albedo")
	require.True(t, ok)
	assert.Equal(t, float32(0.4), f32At(rec, albedo.Offset+4))

	require.Len(t, packed.Layers, 3)
	assert.Equal(t, "scroll", packed.Layers[2].Name)
	require.Len(t, packed.TextureConfigs, 3*texture.GPUTextureConfigSize)
	// the animated unit points at its animation record
	assert.Equal(t, uint32(0), u32At(packed.TextureConfigs, 2*texture.GPUTextureConfigSize+8))
	assert.Equal(t, texture.NoAnimation, u32At(packed.TextureConfigs, 8))
	assert.False(t, buf.Dirty())
}

func TestMaterialBufferRemoveReusesSlot(t *testing.T) {
	r := newTestRegistry(t)
	anims := texture.NewAnimationBuffer(8)
	buf := NewMaterialBuffer(r, anims, WithCapacity(2))

	a := NewPass(r, WithTextureUnit(TextureUnit{Config: texture.NewTextureConfig(flags.TextureColour, 0),
		Animation: &texture.Animation{Scale: mgl32.Vec2{1, 1}}}))
	b := NewPass(r)
	c := NewPass(r)
	_, err := buf.Add(a)
	require.NoError(t, err)
	_, err = buf.Add(b)
	require.NoError(t, err)
	_, err = buf.Add(c)
	assert.ErrorIs(t, err, ErrBufferFull)

	buf.Remove(a)
	assert.Equal(t, NoPassIndex, a.Index())
	assert.Equal(t, 0, anims.Len())
	assert.True(t, buf.Dirty())

	idx, err := buf.Add(c)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx)
	assert.Equal(t, 2, buf.Len())

	// empty configurations still back a binding
	packed, err := buf.Marshal()
	require.NoError(t, err)
	assert.Len(t, packed.TextureConfigs, texture.GPUTextureConfigSize)
}

func TestMaterialBufferConcurrentAdd(t *testing.T) {
	r := newTestRegistry(t)
	buf := NewMaterialBuffer(r, texture.NewAnimationBuffer(1))
	passes := make([]Pass, 32)
	for i := range passes {
		passes[i] = NewPass(r, WithComponents(flags.ComponentOpacity))
	}
	var wg sync.WaitGroup
	for _, p := range passes {
		wg.Add(1)
		go func(p Pass) {
			defer wg.Done()
			_, err := buf.Add(p)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	seen := make(map[uint32]bool)
	for _, p := range passes {
		assert.False(t, seen[p.Index()])
		seen[p.Index()] = true
	}
	assert.Len(t, seen, 32)
}

func TestMaterialPasses(t *testing.T) {
	r := newTestRegistry(t)
	p0 := NewPass(r, WithPassName("base"))
	p1 := NewPass(r, WithPassName("decal"))
	m := NewMaterial(WithName("wall"), WithPasses(p0))
	m.AddPass(p1)

	assert.Equal(t, "wall", m.Name())
	assert.Equal(t, 2, m.PassCount())
	assert.Equal(t, "decal", m.Pass(1).Name())
	assert.Nil(t, m.Pass(2))
}
