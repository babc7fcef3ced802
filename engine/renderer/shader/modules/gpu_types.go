package modules

import (
	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	voxelConfigType = "VoxelConfig"
	lpvConfigType   = "LpvConfig"
)

var voxelConfigMembers = []string{
	"centre: vec3<f32>",
	"worldToGrid: f32",
	"voxelSize: f32",
	"maxMip: f32",
	"_pad0: f32",
	"_pad1: f32",
}

var lpvConfigMembers = []string{
	"minVolume: vec3<f32>",
	"cellSize: f32",
	"gridSize: vec3<f32>",
	"indirectAttenuation: f32",
}

var layeredLpvConfigMembers = []string{
	"cascades: array<vec4<f32>, 3>",
	"gridSize: vec3<f32>",
	"indirectAttenuation: f32",
}

// GPUVoxelConfigSize is the byte size of the VoxelConfig uniform.
const GPUVoxelConfigSize = 32

// GPUVoxelConfig places the voxel volume in the world.
type GPUVoxelConfig struct {
	Centre      mgl32.Vec3 // offset  0
	WorldToGrid float32    // offset 12: 1 / volume extent
	VoxelSize   float32    // offset 16
	MaxMip      float32    // offset 20
}

// Size returns the size of the GPUVoxelConfig struct in bytes.
func (g *GPUVoxelConfig) Size() int { return GPUVoxelConfigSize }

// Marshal serializes the config for upload.
func (g *GPUVoxelConfig) Marshal() []byte {
	buf := make([]byte, GPUVoxelConfigSize)
	common.PutVec3(buf, 0, g.Centre)
	common.PutFloat32(buf, 12, g.WorldToGrid)
	common.PutFloat32(buf, 16, g.VoxelSize)
	common.PutFloat32(buf, 20, g.MaxMip)
	return buf
}

// GPULpvConfigSize is the byte size of the single-volume LpvConfig uniform.
const GPULpvConfigSize = 32

// GPULpvConfig places a light propagation volume in the world.
type GPULpvConfig struct {
	MinVolume           mgl32.Vec3 // offset  0
	CellSize            float32    // offset 12
	GridSize            mgl32.Vec3 // offset 16
	IndirectAttenuation float32    // offset 28
}

// Size returns the size of the GPULpvConfig struct in bytes.
func (g *GPULpvConfig) Size() int { return GPULpvConfigSize }

// Marshal serializes the config for upload.
func (g *GPULpvConfig) Marshal() []byte {
	buf := make([]byte, GPULpvConfigSize)
	common.PutVec3(buf, 0, g.MinVolume)
	common.PutFloat32(buf, 12, g.CellSize)
	common.PutVec3(buf, 16, g.GridSize)
	common.PutFloat32(buf, 28, g.IndirectAttenuation)
	return buf
}

// GPULayeredLpvConfigSize is the byte size of the layered LpvConfig uniform.
const GPULayeredLpvConfigSize = 64

// GPULayeredLpvConfig places the cascades of a layered volume; each cascade is its
// minimum corner and cell size.
type GPULayeredLpvConfig struct {
	Cascades            [LpvCascades]mgl32.Vec4 // offset  0
	GridSize            mgl32.Vec3              // offset 48
	IndirectAttenuation float32                 // offset 60
}

// Size returns the size of the GPULayeredLpvConfig struct in bytes.
func (g *GPULayeredLpvConfig) Size() int { return GPULayeredLpvConfigSize }

// Marshal serializes the config for upload.
func (g *GPULayeredLpvConfig) Marshal() []byte {
	buf := make([]byte, GPULayeredLpvConfigSize)
	for i, c := range g.Cascades {
		common.PutVec4(buf, i*16, c)
	}
	common.PutVec3(buf, 48, g.GridSize)
	common.PutFloat32(buf, 60, g.IndirectAttenuation)
	return buf
}
