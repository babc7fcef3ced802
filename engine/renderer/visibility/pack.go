// Package visibility implements the resolve half of the visibility buffer path: the
// packing shared by the visibility and resolve passes, the barycentric derivative
// reconstruction, the compute-side pixel bucketing and the generated resolve programs.
//
// The visibility pass writes one rg32uint texel per pixel: r holds the node id in its
// high bits and the pipeline id in its low MaxPipelinesSize bits, g holds the primitive
// id. Node id 0 marks background.
package visibility

import "math"

const (
	// MaxPipelinesSize is the number of low bits holding the pipeline id.
	MaxPipelinesSize = 10
	// MaxPipelines is the number of distinct pipeline ids a visibility texel can carry.
	MaxPipelines = 1 << MaxPipelinesSize
	// MaxNodes bounds the node ids, node 0 included.
	MaxNodes = 1 << (32 - MaxPipelinesSize)

	pipelineMask = MaxPipelines - 1
)

// PackNodePipeline packs a node id and a pipeline id. Values out of range are
// truncated to their bit width.
//
// Parameters:
//   - nodeID: the node id, 0 for background
//   - pipelineID: the pipeline id, below MaxPipelines
//
// Returns:
//   - uint32: the packed value
func PackNodePipeline(nodeID, pipelineID uint32) uint32 {
	return nodeID<<MaxPipelinesSize | pipelineID&pipelineMask
}

// UnpackNodePipeline splits a value produced by PackNodePipeline.
func UnpackNodePipeline(v uint32) (nodeID, pipelineID uint32) {
	return v >> MaxPipelinesSize, v & pipelineMask
}

// Pack64 packs a depth and a 32 bit id for the atomic visibility variant: the depth
// bits go high so an unsigned min keeps the nearest fragment. Depths must be
// non-negative for their bit patterns to order like the values.
func Pack64(depth float32, id uint32) uint64 {
	return uint64(math.Float32bits(depth))<<32 | uint64(id)
}

// Unpack64 splits a value produced by Pack64.
func Unpack64(v uint64) (depth float32, id uint32) {
	return math.Float32frombits(uint32(v >> 32)), uint32(v)
}

// MaxPixelCoord is the largest coordinate PackPixel keeps.
const MaxPixelCoord = 1<<16 - 1

// PackPixel packs a pixel position of the compacted resolve list.
func PackPixel(x, y uint32) uint32 {
	return x&MaxPixelCoord | (y&MaxPixelCoord)<<16
}

// UnpackPixel splits a value produced by PackPixel.
func UnpackPixel(v uint32) (x, y uint32) {
	return v & MaxPixelCoord, v >> 16
}
