package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(16), AlignUp(13, 16))
	assert.Equal(t, uint64(16), AlignUp(16, 16))
	assert.Equal(t, uint64(7), AlignUp(7, 0))
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, uint32(2), CeilDiv(9, 8))
	assert.Equal(t, uint32(1), CeilDiv(8, 8))
	assert.Equal(t, uint32(0), CeilDiv(0, 8))
}

func TestHashCombineIsOrderDependent(t *testing.T) {
	assert.Equal(t, HashCombineAll(1, 2, 3), HashCombine(HashCombine(1, 2), 3))
	assert.NotEqual(t, HashCombineAll(1, 2, 3), HashCombineAll(1, 3, 2))
}

func TestPixelToNDC(t *testing.T) {
	size := mgl32.Vec2{4, 2}
	assert.Equal(t, mgl32.Vec2{-0.75, 0.5}, PixelToNDC([2]uint32{0, 0}, size))
	assert.Equal(t, mgl32.Vec2{0.75, -0.5}, PixelToNDC([2]uint32{3, 1}, size))
}

func TestPutUint32(t *testing.T) {
	buf := make([]byte, 8)
	PutUint32(buf, 4, 0x01020304)
	assert.Equal(t, []byte{0, 0, 0, 0, 4, 3, 2, 1}, buf)
}
