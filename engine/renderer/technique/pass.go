package technique

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Render pass type ids; part of every permutation key so passes never share entries.
const (
	RenderPassOpaqueResolve flags.RenderPassTypeID = iota + 1
	RenderPassIndirectLighting
	RenderPassVisibilityResolve
	RenderPassVisibilityReorder
	RenderPassForwardTransparent
	RenderPassTransparentCombine
)

// Pass names in the frame graph.
const (
	PassOpaqueResolve      = "opaque-resolve"
	PassVisibilityReorder  = "visibility-reorder"
	PassVisibilityResolve  = "visibility-resolve"
	PassIndirectLighting   = "indirect-lighting"
	PassForwardTransparent = "forward-transparent"
	PassTransparentCombine = "transparent-combine"
)

// declareFullscreen implements vsMain, a vertex stage drawing one triangle that covers
// the target; draw it with three vertices.
func declareFullscreen(w *shader.Writer) {
	w.ImplementEntryPoint(shader.EntryVertex, "vsMain", "",
		[]shader.Param{{Name: "@builtin(vertex_index) index", Type: "u32"}},
		"@builtin(position) vec4<f32>",
		func(fb *shader.FunctionBuilder) {
			fb.Let("uv", "vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u))")
			fb.Return("vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0)")
		})
}

// fullscreenOptions is the fixed-function state of a full-screen pass writing colour
// targets without depth.
func fullscreenOptions(formats ...wgpu.TextureFormat) []pipeline.PipelineBuilderOption {
	return []pipeline.PipelineBuilderOption{
		pipeline.WithTargets(formats...),
		pipeline.WithDepthFormat(wgpu.TextureFormatUndefined),
		pipeline.WithCullMode(wgpu.CullModeNone),
	}
}

// additiveBlend adds the source to the destination.
var additiveBlend = &wgpu.BlendState{
	Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
	Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
}

// pushData encodes a block of u32 push constant members.
func pushData(values ...uint32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		common.PutUint32(buf, i*4, v)
	}
	return buf
}

// firstVariant lists only the first variant.
func firstVariant(flags.PipelineFlags) []pipeline.Variant {
	return []pipeline.Variant{pipeline.VariantFirst}
}

// programSet holds the precompiled programs of a multi-program pass and the index of
// the one selected for the next frame. The graph reads the index through SetPassIndex.
type programSet struct {
	mu        sync.RWMutex
	cache     *pipeline.Cache
	resources *Resources
	entries   []*pipeline.Entry
	index     uint32
}

func newProgramSet(cache *pipeline.Cache, resources *Resources) *programSet {
	return &programSet{cache: cache, resources: resources}
}

// selectFlags builds the permutation of f if needed, binds its descriptor sets and
// makes it the selected program.
func (s *programSet) selectFlags(f flags.PipelineFlags) (*pipeline.Entry, error) {
	e, err := s.cache.GetOrCreate(f)
	if err != nil {
		return nil, err
	}
	if err := s.resources.Bind(e); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.entries, e)
	if i < 0 {
		i = len(s.entries)
		s.entries = append(s.entries, e)
	}
	s.index = uint32(i)
	return e, nil
}

// entry returns the program at a pass index, or nil before the first selection.
func (s *programSet) entry(index uint32) *pipeline.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(index) >= len(s.entries) {
		return nil
	}
	return s.entries[index]
}

// Len returns the number of programs built so far.
func (s *programSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// fullscreenDraw records one full-screen triangle with the entry's first pipeline.
func fullscreenDraw(rec backend.CommandRecorder, e *pipeline.Entry) {
	rec.BindRenderPipeline(e.First.RenderPipeline())
	bindSets(rec, e)
	rec.Draw(3, 1, 0, 0)
}
