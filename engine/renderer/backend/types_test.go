package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageViewOverlap(t *testing.T) {
	whole := WholeImage(1)
	mip0 := ImageViewID{Image: 1, BaseMip: 0, MipCount: 1, BaseLayer: 0, LayerCount: 1}
	mip1 := ImageViewID{Image: 1, BaseMip: 1, MipCount: 1, BaseLayer: 0, LayerCount: 1}
	layer1 := ImageViewID{Image: 1, BaseMip: 0, MipCount: 1, BaseLayer: 1, LayerCount: 2}
	other := WholeImage(2)

	assert.True(t, whole.Overlaps(mip1))
	assert.True(t, mip1.Overlaps(whole))
	assert.False(t, mip0.Overlaps(mip1))
	assert.False(t, mip0.Overlaps(layer1))
	assert.True(t, layer1.Overlaps(ImageViewID{Image: 1, BaseMip: 0, MipCount: 4, BaseLayer: 2, LayerCount: 1}))
	assert.False(t, whole.Overlaps(other))
}

func TestBufferRangeOverlap(t *testing.T) {
	a := BufferRange{Buffer: 1, Offset: 0, Size: 64}
	b := BufferRange{Buffer: 1, Offset: 64, Size: 64}
	c := BufferRange{Buffer: 1, Offset: 32, Size: 64}

	assert.False(t, a.Overlaps(b))
	assert.True(t, a.Overlaps(c))
	assert.True(t, b.Overlaps(c))
	assert.True(t, WholeBuffer(1).Overlaps(b))
	assert.False(t, WholeBuffer(2).Overlaps(a))
}

func TestAccessFlags(t *testing.T) {
	assert.True(t, (AccessShaderRead | AccessShaderWrite).IsWrite())
	assert.False(t, (AccessShaderRead | AccessDepthRead | AccessUniformRead).IsWrite())
	assert.Equal(t, "ShaderRead", LayoutShaderRead.String())
}
