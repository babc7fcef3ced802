package common

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PutFloat32 writes f little-endian at buf[offset:].
func PutFloat32(buf []byte, offset int, f float32) {
	binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(f))
}

// PutUint32 writes v little-endian at buf[offset:].
func PutUint32(buf []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(buf[offset:], v)
}

// PutVec3 writes the three components of v starting at buf[offset:]. The fourth
// slot of a WGSL vec3 is not touched.
func PutVec3(buf []byte, offset int, v mgl32.Vec3) {
	for i := range 3 {
		PutFloat32(buf, offset+i*4, v[i])
	}
}

// PutVec4 writes the four components of v starting at buf[offset:].
func PutVec4(buf []byte, offset int, v mgl32.Vec4) {
	for i := range 4 {
		PutFloat32(buf, offset+i*4, v[i])
	}
}

// PutMat4 writes m in column-major order starting at buf[offset:], which matches
// both mgl32 storage and the WGSL mat4x4<f32> layout.
func PutMat4(buf []byte, offset int, m mgl32.Mat4) {
	for i := range 16 {
		PutFloat32(buf, offset+i*4, m[i])
	}
}

// PixelToNDC converts a pixel centre to normalized device coordinates with Y up.
//
// Parameters:
//   - pixel: integer pixel coordinate (x right, y down)
//   - size: render target size in pixels
//
// Returns:
//   - mgl32.Vec2: the NDC position of the pixel centre in [-1, 1]
func PixelToNDC(pixel [2]uint32, size mgl32.Vec2) mgl32.Vec2 {
	uv := mgl32.Vec2{
		(float32(pixel[0]) + 0.5) / size[0],
		(float32(pixel[1]) + 0.5) / size[1],
	}
	return mgl32.Vec2{uv[0]*2 - 1, 1 - uv[1]*2}
}

// LinearizeDepth converts a [0, 1] perspective depth value into a positive view-space distance.
//
// Parameters:
//   - depth: the non-linear depth buffer value
//   - near: the camera near plane
//   - far: the camera far plane
//
// Returns:
//   - float32: the linear view depth between near and far
func LinearizeDepth(depth, near, far float32) float32 {
	return near * far / (far - depth*(far-near))
}
