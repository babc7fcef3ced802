package camera

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUSceneUniformSource is the canonical WGSL definition of the SceneUniform struct.
// Matches GPUSceneUniform layout exactly (336 bytes).
//
//go:embed assets/scene_uniform.wgsl
var GPUSceneUniformSource string

// GPUSceneUniformSize is the byte size of the SceneUniform struct.
const GPUSceneUniformSize = 336

// GPUSceneUniform is the per-frame camera block shared by every technique pass.
// The previous view-projection feeds motion vectors; the visibility resolve re-projects
// with the current one.
type GPUSceneUniform struct {
	ViewProj       mgl32.Mat4 // offset   0
	PrevViewProj   mgl32.Mat4 // offset  64
	InvViewProj    mgl32.Mat4 // offset 128
	View           mgl32.Mat4 // offset 192
	CameraPosition mgl32.Vec3 // offset 256
	DebugIndex     uint32     // offset 268: active debug probe index, 0 disables debug output
	RenderSize     mgl32.Vec2 // offset 272
	Jitter         mgl32.Vec2 // offset 280
	NearPlane      float32    // offset 288
	FarPlane       float32    // offset 292
	FrameIndex     uint32     // offset 296
	FogDensity     float32    // offset 300
	FogColour      mgl32.Vec3 // offset 304
	FogStart       float32    // offset 316
	FogEnd         float32    // offset 320
}

// NewGPUSceneUniform builds a scene uniform from the current and previous camera matrices.
//
// Parameters:
//   - view: the current view matrix
//   - proj: the current projection matrix
//   - prevViewProj: last frame's view-projection, or the current one on the first frame
//   - size: the render target size in pixels
//   - near, far: the projection planes
//
// Returns:
//   - GPUSceneUniform: the populated uniform, with CameraPosition extracted from view
func NewGPUSceneUniform(view, proj, prevViewProj mgl32.Mat4, size mgl32.Vec2, near, far float32) GPUSceneUniform {
	viewProj := proj.Mul4(view)
	invView := view.Inv()
	return GPUSceneUniform{
		ViewProj:       viewProj,
		PrevViewProj:   prevViewProj,
		InvViewProj:    viewProj.Inv(),
		View:           view,
		CameraPosition: invView.Col(3).Vec3(),
		RenderSize:     size,
		NearPlane:      near,
		FarPlane:       far,
	}
}

// Size returns the size of the GPUSceneUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (336)
func (g *GPUSceneUniform) Size() int {
	return GPUSceneUniformSize
}

// Marshal serializes the GPUSceneUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUSceneUniform) Marshal() []byte {
	buf := make([]byte, GPUSceneUniformSize)
	common.PutMat4(buf, 0, g.ViewProj)
	common.PutMat4(buf, 64, g.PrevViewProj)
	common.PutMat4(buf, 128, g.InvViewProj)
	common.PutMat4(buf, 192, g.View)
	common.PutVec3(buf, 256, g.CameraPosition)
	common.PutUint32(buf, 268, g.DebugIndex)
	common.PutFloat32(buf, 272, g.RenderSize[0])
	common.PutFloat32(buf, 276, g.RenderSize[1])
	common.PutFloat32(buf, 280, g.Jitter[0])
	common.PutFloat32(buf, 284, g.Jitter[1])
	common.PutFloat32(buf, 288, g.NearPlane)
	common.PutFloat32(buf, 292, g.FarPlane)
	common.PutUint32(buf, 296, g.FrameIndex)
	common.PutFloat32(buf, 300, g.FogDensity)
	common.PutVec3(buf, 304, g.FogColour)
	common.PutFloat32(buf, 316, g.FogStart)
	common.PutFloat32(buf, 320, g.FogEnd)
	return buf
}
