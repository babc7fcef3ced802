package model

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUNodeDataSource is the canonical WGSL definition of the NodeData struct.
// Matches GPUNodeData layout exactly (224 bytes).
//
//go:embed assets/node_data.wgsl
var GPUNodeDataSource string

// GPUNodeDataSize is the byte size of the NodeData struct.
const GPUNodeDataSize = 224

// Node flag bits stored in GPUNodeData.NodeFlags.
const (
	NodeFlagBillboard uint32 = 1 << 0
	NodeFlagInstanced uint32 = 1 << 1
	NodeFlagSkipped   uint32 = 1 << 2
)

// NoEnvironmentMap marks a node without a local environment map.
const NoEnvironmentMap = ^uint32(0)

// GPUNodeData is the per-node record read by every geometry and resolve pass.
// BaseVertex and BaseIndex locate the node's geometry inside the shared vertex
// streams and index buffer, which is what the visibility resolve relies on.
type GPUNodeData struct {
	Model        mgl32.Mat4 // offset   0
	PrevModel    mgl32.Mat4 // offset  64
	Normal       mgl32.Mat4 // offset 128
	MaterialID   uint32     // offset 192
	BaseVertex   uint32     // offset 196
	BaseIndex    uint32     // offset 200
	VertexStride uint32     // offset 204: shared billboard source stride, in vec4 units
	EnvMapIndex  uint32     // offset 208
	NodeFlags    uint32     // offset 212
	PipelineID   uint32     // offset 216
}

// NewGPUNodeData builds a node record, deriving the normal matrix from model.
func NewGPUNodeData(model, prevModel mgl32.Mat4, materialID, baseVertex, baseIndex uint32) GPUNodeData {
	return GPUNodeData{
		Model:       model,
		PrevModel:   prevModel,
		Normal:      model.Inv().Transpose(),
		MaterialID:  materialID,
		BaseVertex:  baseVertex,
		BaseIndex:   baseIndex,
		EnvMapIndex: NoEnvironmentMap,
	}
}

// Size returns the size of the GPUNodeData struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (224)
func (g *GPUNodeData) Size() int {
	return GPUNodeDataSize
}

// Marshal serializes the GPUNodeData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 224-byte buffer ready for GPU upload
func (g *GPUNodeData) Marshal() []byte {
	buf := make([]byte, GPUNodeDataSize)
	common.PutMat4(buf, 0, g.Model)
	common.PutMat4(buf, 64, g.PrevModel)
	common.PutMat4(buf, 128, g.Normal)
	common.PutUint32(buf, 192, g.MaterialID)
	common.PutUint32(buf, 196, g.BaseVertex)
	common.PutUint32(buf, 200, g.BaseIndex)
	common.PutUint32(buf, 204, g.VertexStride)
	common.PutUint32(buf, 208, g.EnvMapIndex)
	common.PutUint32(buf, 212, g.NodeFlags)
	common.PutUint32(buf, 216, g.PipelineID)
	return buf
}

// VertexStream identifies one raw vertex attribute stream. Every stream is stored as
// an array of 16-byte elements so it can be read from a storage buffer by index.
type VertexStream int

const (
	StreamPositions VertexStream = iota
	StreamNormals
	StreamTangents
	StreamTexcoords0
	StreamTexcoords1
	StreamTexcoords2
	StreamTexcoords3
	StreamColours
	StreamVelocity
	StreamPassMasks
)

// StreamStride is the byte stride of every raw vertex stream element.
const StreamStride = 16

var streamInfo = [...]struct {
	name     string
	wgslType string
	flag     flags.SubmeshFlags
}{
	StreamPositions:  {"c3d_inPosition", "vec4<f32>", flags.SubmeshPositions},
	StreamNormals:    {"c3d_inNormal", "vec4<f32>", flags.SubmeshNormals},
	StreamTangents:   {"c3d_inTangent", "vec4<f32>", flags.SubmeshTangents},
	StreamTexcoords0: {"c3d_inTexcoord0", "vec4<f32>", flags.SubmeshTexcoords0},
	StreamTexcoords1: {"c3d_inTexcoord1", "vec4<f32>", flags.SubmeshTexcoords1},
	StreamTexcoords2: {"c3d_inTexcoord2", "vec4<f32>", flags.SubmeshTexcoords2},
	StreamTexcoords3: {"c3d_inTexcoord3", "vec4<f32>", flags.SubmeshTexcoords3},
	StreamColours:    {"c3d_inColour", "vec4<f32>", flags.SubmeshColours},
	StreamVelocity:   {"c3d_inVelocity", "vec4<f32>", flags.SubmeshVelocity},
	StreamPassMasks:  {"c3d_inPassMasks", "vec4<u32>", flags.SubmeshPassMasks},
}

// Name returns the shader variable name of the stream.
func (s VertexStream) Name() string { return streamInfo[s].name }

// WGSLType returns the element type of the stream.
func (s VertexStream) WGSLType() string { return streamInfo[s].wgslType }

// Flag returns the submesh flag signalling the stream is present.
func (s VertexStream) Flag() flags.SubmeshFlags { return streamInfo[s].flag }

// StreamsFor returns the streams present for the given submesh flags, in stream order.
//
// Parameters:
//   - submesh: the submesh attribute flags
//
// Returns:
//   - []VertexStream: the available streams, always starting with positions
func StreamsFor(submesh flags.SubmeshFlags) []VertexStream {
	out := []VertexStream{StreamPositions}
	for s := StreamNormals; s <= StreamPassMasks; s++ {
		if submesh.Has(s.Flag()) {
			out = append(out, s)
		}
	}
	return out
}
