package light

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxGPULights bounds the lights written into the light buffer per frame. Lights past
// the budget are dropped in scene order.
const MaxGPULights = 1024

// Byte sizes of the buffer structs. Each matches the WGSL declaration embedded next to it.
const (
	GPULightSize         = 64
	GPULightHeaderSize   = 32
	GPUClusterConfigSize = 48
	GPUShadowDataSize    = 80
)

var (
	//go:embed assets/light.wgsl
	GPULightSource string
	//go:embed assets/light_header.wgsl
	GPULightHeaderSource string
	//go:embed assets/cluster_config.wgsl
	GPUClusterConfigSource string
	//go:embed assets/shadow_data.wgsl
	GPUShadowDataSource string
)

// GPULight is one entry of the light array.
type GPULight struct {
	Position    mgl32.Vec3 // offset  0
	LightType   uint32     // offset 12
	Colour      mgl32.Vec3 // offset 16
	Intensity   float32    // offset 28
	Direction   mgl32.Vec3 // offset 32
	Range       float32    // offset 44
	InnerCone   float32    // offset 48
	OuterCone   float32    // offset 52
	ShadowIndex int32      // offset 56
}

func (g *GPULight) Size() int { return GPULightSize }

func (g *GPULight) Marshal() []byte {
	buf := make([]byte, GPULightSize)
	common.PutVec3(buf, 0, g.Position)
	common.PutUint32(buf, 12, g.LightType)
	common.PutVec3(buf, 16, g.Colour)
	common.PutFloat32(buf, 28, g.Intensity)
	common.PutVec3(buf, 32, g.Direction)
	common.PutFloat32(buf, 44, g.Range)
	common.PutFloat32(buf, 48, g.InnerCone)
	common.PutFloat32(buf, 52, g.OuterCone)
	common.PutUint32(buf, 56, uint32(g.ShadowIndex))
	return buf
}

// GPULightHeader starts the light buffer. The directional lights follow it, then the
// positional lights the clusters index into.
type GPULightHeader struct {
	Ambient          mgl32.Vec3 // offset  0
	DirectionalCount uint32     // offset 12
	PositionalCount  uint32     // offset 16
}

func (h *GPULightHeader) Size() int { return GPULightHeaderSize }

func (h *GPULightHeader) Marshal() []byte {
	buf := make([]byte, GPULightHeaderSize)
	common.PutVec3(buf, 0, h.Ambient)
	common.PutUint32(buf, 12, h.DirectionalCount)
	common.PutUint32(buf, 16, h.PositionalCount)
	return buf
}

// GPUClusterConfig lets the lighting shader rebuild a cluster index from a pixel and a
// linear view depth. The depth slice is floor(log(depth) * LogScale + LogBias).
type GPUClusterConfig struct {
	Dimensions          [3]uint32  // offset  0
	MaxLightsPerCluster uint32     // offset 12
	ViewSize            mgl32.Vec2 // offset 16
	Near                float32    // offset 24
	Far                 float32    // offset 28
	LogScale            float32    // offset 32
	LogBias             float32    // offset 36
}

func (c *GPUClusterConfig) Size() int { return GPUClusterConfigSize }

func (c *GPUClusterConfig) Marshal() []byte {
	buf := make([]byte, GPUClusterConfigSize)
	for i, d := range c.Dimensions {
		common.PutUint32(buf, i*4, d)
	}
	common.PutUint32(buf, 12, c.MaxLightsPerCluster)
	common.PutFloat32(buf, 16, c.ViewSize[0])
	common.PutFloat32(buf, 20, c.ViewSize[1])
	for i, f := range []float32{c.Near, c.Far, c.LogScale, c.LogBias} {
		common.PutFloat32(buf, 24+i*4, f)
	}
	return buf
}

// GPUShadowData is the entry of the shadow data array a light's Shadow layer selects.
type GPUShadowData struct {
	LightViewProj mgl32.Mat4 // offset  0
	TexelSize     mgl32.Vec2 // offset 64
	Bias          float32    // offset 72
	NormalBias    float32    // offset 76
}

func (s *GPUShadowData) Size() int { return GPUShadowDataSize }

func (s *GPUShadowData) Marshal() []byte {
	buf := make([]byte, GPUShadowDataSize)
	common.PutMat4(buf, 0, s.LightViewProj)
	common.PutFloat32(buf, 64, s.TexelSize[0])
	common.PutFloat32(buf, 68, s.TexelSize[1])
	common.PutFloat32(buf, 72, s.Bias)
	common.PutFloat32(buf, 76, s.NormalBias)
	return buf
}

// MarshalLightBuffer lays out the enabled lights as the lights module reads them:
//
//	[GPULightHeader] [directional GPULight...] [positional GPULight...]
func MarshalLightBuffer(lights []*Light, ambient mgl32.Vec3) []byte {
	directional, positional := Partition(lights)
	header := GPULightHeader{
		Ambient:          ambient,
		DirectionalCount: uint32(len(directional)),
		PositionalCount:  uint32(len(positional)),
	}
	buf := make([]byte, 0, GPULightHeaderSize+(len(directional)+len(positional))*GPULightSize)
	buf = append(buf, header.Marshal()...)
	for _, l := range append(directional, positional...) {
		g := l.GPU()
		buf = append(buf, g.Marshal()...)
	}
	return buf
}

// MarshalShadowData packs shadow data in layer order.
func MarshalShadowData(data []GPUShadowData) []byte {
	buf := make([]byte, 0, len(data)*GPUShadowDataSize)
	for i := range data {
		buf = append(buf, data[i].Marshal()...)
	}
	return buf
}
