package visibility

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ReorderStage is one of the compute passes building the resolve's pixel buckets.
type ReorderStage int

const (
	// ReorderClear zeroes the per-pipeline counters.
	ReorderClear ReorderStage = iota
	// ReorderCount counts the covered pixels of each pipeline id.
	ReorderCount
	// ReorderPrefix turns the counts into bucket starts.
	ReorderPrefix
	// ReorderScatter writes every covered pixel into its bucket.
	ReorderScatter
)

// ReorderStages lists the stages in execution order.
var ReorderStages = []ReorderStage{ReorderClear, ReorderCount, ReorderPrefix, ReorderScatter}

var reorderStageNames = [...]string{"clear", "count", "prefix", "scatter"}

func (s ReorderStage) String() string {
	if int(s) < len(reorderStageNames) {
		return reorderStageNames[s]
	}
	return fmt.Sprintf("ReorderStage(%d)", int(s))
}

// Bindings of the reorder programs, all in group 0. A stage declares only the slots it
// touches; the slot numbers are shared so one bind group serves all four.
const (
	ReorderBindingVisibility = 0
	ReorderBindingCounts     = 1
	ReorderBindingStarts     = 2
	ReorderBindingCursors    = 3
	ReorderBindingPixels     = 4
)

// Workgroup sizes of the reorder stages.
const (
	reorderLinearSize = 64
	reorderTileSize   = 8
)

// ReorderDispatch returns the workgroup counts of a stage for a render target size.
func ReorderDispatch(stage ReorderStage, width, height uint32) [3]uint32 {
	switch stage {
	case ReorderClear:
		return [3]uint32{common.CeilDiv(MaxPipelines, reorderLinearSize), 1, 1}
	case ReorderPrefix:
		return [3]uint32{1, 1, 1}
	}
	return [3]uint32{
		common.CeilDiv(width, reorderTileSize),
		common.CeilDiv(height, reorderTileSize),
		1,
	}
}

// ResolveDispatch returns the workgroup count the compute resolve dispatches per
// pipeline. Bucket sizes live on the GPU, so every pipeline dispatches enough threads
// for the whole target and the resolve drops threads past its bucket's count.
func ResolveDispatch(width, height uint32) [3]uint32 {
	return [3]uint32{common.CeilDiv(width*height, ResolveWorkgroupSize), 1, 1}
}

// ReorderBufferSizes returns the byte sizes of the counts, starts, cursors and pixels
// buffers for a render target size.
func ReorderBufferSizes(width, height uint32) (counts, starts, cursors, pixels uint64) {
	perPipeline := uint64(MaxPipelines) * 4
	return perPipeline, perPipeline, perPipeline, uint64(width) * uint64(height) * 4
}

func reorderBinding(index uint32, name string, kind shader.BindingKind, typ string, role shader.AnnotationArg) shader.Binding {
	return shader.Binding{
		Group:    0,
		Index:    index,
		Name:     name,
		Kind:     kind,
		Type:     typ,
		Stages:   wgpu.ShaderStageCompute,
		Provider: shader.AnnotationArgVisibility,
		Role:     role,
	}
}

// NewReorderProgram generates the compute program of one reorder stage.
//
// Parameters:
//   - stage: the stage to generate
//
// Returns:
//   - *shader.Program: the compute program
//   - error: a generation failure
func NewReorderProgram(stage ReorderStage) (*shader.Program, error) {
	key := "visibility-reorder-" + stage.String()
	w := shader.NewWriter(shader.WithLabel(key))
	DeclarePacking(w)

	visibility := reorderBinding(ReorderBindingVisibility, "c3d_visibility", shader.BindingSampledTexture, "texture_2d<u32>", RoleVisibility)
	counts := reorderBinding(ReorderBindingCounts, "c3d_bucketCounts", shader.BindingStorageRW, "array<atomic<u32>>", RoleBucketCounts)
	starts := reorderBinding(ReorderBindingStarts, "c3d_bucketStarts", shader.BindingStorageRW, "array<u32>", RoleBucketStarts)
	cursors := reorderBinding(ReorderBindingCursors, "c3d_bucketCursors", shader.BindingStorageRW, "array<atomic<u32>>", RoleBucketCursors)
	pixels := reorderBinding(ReorderBindingPixels, "c3d_pixels", shader.BindingStorageRW, "array<u32>", RolePixels)

	linear := fmt.Sprintf("@workgroup_size(%d, 1, 1)", reorderLinearSize)
	tile := fmt.Sprintf("@workgroup_size(%d, %d, 1)", reorderTileSize, reorderTileSize)
	params := []shader.Param{{Name: "@builtin(global_invocation_id) id", Type: "vec3<u32>"}}

	// covered loads the texel under id and returns early for background or out of
	// bounds invocations.
	covered := func(fb *shader.FunctionBuilder) {
		fb.Let("size", "textureDimensions(c3d_visibility)")
		fb.If("id.x >= size.x || id.y >= size.y", func() { fb.Return("") })
		fb.Let("texel", "textureLoad(c3d_visibility, vec2<i32>(id.xy), 0)")
		fb.If("(texel.x >> C3D_MAX_PIPELINES_SIZE) == 0u", func() { fb.Return("") })
		fb.Let("pipelineId", "texel.x & C3D_PIPELINE_MASK")
	}

	switch stage {
	case ReorderClear:
		w.DeclareBinding(counts)
		w.DeclareBinding(cursors)
		w.ImplementEntryPoint(shader.EntryCompute, "csClear", linear, params, "", func(fb *shader.FunctionBuilder) {
			fb.If("id.x >= C3D_MAX_PIPELINES", func() { fb.Return("") })
			fb.Line("atomicStore(&c3d_bucketCounts[id.x], 0u);")
			fb.Line("atomicStore(&c3d_bucketCursors[id.x], 0u);")
		})
	case ReorderCount:
		w.DeclareBinding(visibility)
		w.DeclareBinding(counts)
		w.ImplementEntryPoint(shader.EntryCompute, "csCount", tile, params, "", func(fb *shader.FunctionBuilder) {
			covered(fb)
			fb.Line("atomicAdd(&c3d_bucketCounts[pipelineId], 1u);")
		})
	case ReorderPrefix:
		w.DeclareBinding(counts)
		w.DeclareBinding(starts)
		w.DeclareBinding(cursors)
		// a single invocation; the pipeline count is small
		w.ImplementEntryPoint(shader.EntryCompute, "csPrefix", "@workgroup_size(1, 1, 1)", params, "", func(fb *shader.FunctionBuilder) {
			fb.Var("total", "u32", "0u")
			fb.For("var i = 0u", "i < C3D_MAX_PIPELINES", "i++", func() {
				fb.Assign("c3d_bucketStarts[i]", "total")
				fb.Line("atomicStore(&c3d_bucketCursors[i], total);")
				fb.Assign("total", "total + atomicLoad(&c3d_bucketCounts[i])")
			})
		})
	case ReorderScatter:
		w.DeclareBinding(visibility)
		w.DeclareBinding(cursors)
		w.DeclareBinding(pixels)
		w.ImplementEntryPoint(shader.EntryCompute, "csScatter", tile, params, "", func(fb *shader.FunctionBuilder) {
			covered(fb)
			fb.Let("slot", "atomicAdd(&c3d_bucketCursors[pipelineId], 1u)")
			fb.Assign("c3d_pixels[slot]", "(id.x & C3D_PIXEL_MASK) | ((id.y & C3D_PIXEL_MASK) << 16u)")
		})
	default:
		return nil, fmt.Errorf("unknown reorder stage %d", int(stage))
	}
	return w.Finish(key)
}
