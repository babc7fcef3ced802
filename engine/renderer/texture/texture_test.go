package texture

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readF32(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func TestTextureAnimationLayout(t *testing.T) {
	a := GPUTextureAnimation{
		Translate: mgl32.Vec4{1, 2, 0, 0},
		Rotate:    mgl32.Vec4{3, 4, 0, 0},
		Scale:     mgl32.Vec4{5, 6, 0, 0},
		TileSet:   mgl32.Vec4{7, 8, 9, 10},
	}
	buf := a.Marshal()
	require.Len(t, buf, a.Size())
	assert.Equal(t, float32(1), readF32(buf, 0))
	assert.Equal(t, float32(3), readF32(buf, 16))
	assert.Equal(t, float32(5), readF32(buf, 32))
	assert.Equal(t, float32(10), readF32(buf, 60))
	assert.Contains(t, GPUTextureAnimationSource, "tileSet: vec4<f32>")
}

func TestIdentityAnimationLeavesCoordinates(t *testing.T) {
	uv := mgl32.Vec2{0.25, 0.75}
	assert.True(t, IdentityAnimation.Apply(uv).ApproxEqual(uv))
}

func TestAnimationEvaluate(t *testing.T) {
	a := Animation{
		TranslateSpeed: mgl32.Vec2{0.5, 0},
		RotateSpeed:    math.Pi / 2,
		TileCount:      [2]uint32{4, 2},
		TileSpeed:      3,
	}
	rec := a.Evaluate(3 * time.Second)
	assert.InDelta(t, 0.5, rec.Translate[0], 1e-6, "translation wraps")
	assert.InDelta(t, 0, rec.Rotate[0], 1e-5)
	assert.InDelta(t, -1, rec.Rotate[1], 1e-5)
	// 9 tiles elapsed, 8 tiles total: tile 1
	assert.Equal(t, mgl32.Vec4{1, 0, 4, 2}, rec.TileSet)
	assert.Equal(t, mgl32.Vec4{1, 1, 0, 0}, rec.Scale)
}

func TestTextureConfigLayout(t *testing.T) {
	c := NewTextureConfig(flags.TextureColour|flags.TextureOpacity, 1)
	buf := c.Marshal()
	require.Len(t, buf, GPUTextureConfigSize)
	assert.Equal(t, uint32(flags.TextureColour|flags.TextureOpacity), binary.LittleEndian.Uint32(buf))
	assert.Equal(t, NoAnimation, binary.LittleEndian.Uint32(buf[8:]))
}

func TestAnimationBufferReusesSlots(t *testing.T) {
	b := NewAnimationBuffer(2)
	first := b.Add(Animation{})
	second := b.Add(Animation{})
	assert.Equal(t, NoAnimation, b.Add(Animation{}), "full")

	b.Remove(first)
	b.Remove(first)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, first, b.Add(Animation{}))
	assert.NotEqual(t, first, second)
	assert.True(t, b.Dirty())
	assert.Len(t, b.Marshal(0), 2*GPUTextureAnimationSize)
	assert.False(t, b.Dirty())
}

func TestAnimationBufferConcurrentAccess(t *testing.T) {
	b := NewAnimationBuffer(64)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 8 {
				idx := b.Add(Animation{RotateSpeed: 1})
				_ = b.Marshal(time.Second)
				b.Remove(idx)
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, b.Len())
	assert.Len(t, NewAnimationBuffer(4).Marshal(0), GPUTextureAnimationSize)
}
