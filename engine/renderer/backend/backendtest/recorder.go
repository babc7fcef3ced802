package backendtest

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Recorder is the recording implementation of backend.CommandRecorder.
type Recorder struct {
	label   string
	ops     []string
	render  bool
	compute bool
	err     error
}

var _ backend.CommandRecorder = &Recorder{}

func (r *Recorder) Label() string { return r.label }

func (r *Recorder) op(format string, args ...any) {
	r.ops = append(r.ops, fmt.Sprintf(format, args...))
}

func (r *Recorder) need(render, compute bool) bool {
	if (render && !r.render) || (compute && !r.compute) {
		if r.err == nil {
			r.err = fmt.Errorf("%s: %w", r.label, backend.ErrPassState)
		}
		return false
	}
	return true
}

func (r *Recorder) Barrier(images []backend.ImageBarrier, buffers []backend.BufferBarrier) {
	for _, b := range images {
		r.op("barrier %s %s->%s", b.View, b.From, b.To)
	}
	for _, b := range buffers {
		r.op("barrier %s", b.Range)
	}
}

func (r *Recorder) BeginRenderPass(desc backend.RenderPassDescriptor) error {
	if r.render || r.compute {
		r.err = fmt.Errorf("%s: %w", r.label, backend.ErrPassState)
		return r.err
	}
	r.render = true
	r.op("begin_render %s", desc.Label)
	return nil
}

func (r *Recorder) EndRenderPass() {
	if r.need(true, false) {
		r.render = false
		r.op("end_render")
	}
}

func (r *Recorder) BeginComputePass(label string) error {
	if r.render || r.compute {
		r.err = fmt.Errorf("%s: %w", r.label, backend.ErrPassState)
		return r.err
	}
	r.compute = true
	r.op("begin_compute %s", label)
	return nil
}

func (r *Recorder) EndComputePass() {
	if r.need(false, true) {
		r.compute = false
		r.op("end_compute")
	}
}

func (r *Recorder) BindRenderPipeline(p backend.RenderPipeline) {
	if r.need(true, false) {
		r.op("bind_pipeline %s", p.Label())
	}
}

func (r *Recorder) BindComputePipeline(p backend.ComputePipeline) {
	if r.need(false, true) {
		r.op("bind_pipeline %s", p.Label())
	}
}

func (r *Recorder) BindDescriptorSet(group uint32, set backend.BindGroup, dynamicOffsets ...uint32) {
	r.op("bind_set %d %s %v", group, set.Label(), dynamicOffsets)
}

func (r *Recorder) PushConstants(stages wgpu.ShaderStage, offset uint32, data []byte) {
	r.op("push_constants %d %d", offset, len(data))
}

func (r *Recorder) SetVertexBuffer(slot uint32, b backend.Buffer, offset uint64) {
	if r.need(true, false) {
		r.op("vertex_buffer %d %s", slot, b.Label())
	}
}

func (r *Recorder) SetIndexBuffer(b backend.Buffer, format wgpu.IndexFormat, offset uint64) {
	if r.need(true, false) {
		r.op("index_buffer %s", b.Label())
	}
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if r.need(true, false) {
		r.op("draw %d %d", vertexCount, instanceCount)
	}
}

func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if r.need(true, false) {
		r.op("draw_indexed %d %d", indexCount, instanceCount)
	}
}

func (r *Recorder) DrawIndexedIndirect(b backend.Buffer, offset uint64) {
	if r.need(true, false) {
		r.op("draw_indexed_indirect %s %d", b.Label(), offset)
	}
}

func (r *Recorder) Dispatch(x, y, z uint32) {
	if r.need(false, true) {
		r.op("dispatch %d %d %d", x, y, z)
	}
}

func (r *Recorder) ClearColorImage(view backend.ImageView, colour wgpu.Color) error {
	if r.render || r.compute {
		r.err = fmt.Errorf("%s: %w", r.label, backend.ErrPassState)
		return r.err
	}
	r.op("clear %s", view.Label())
	return nil
}

// Ops returns the ops recorded so far.
func (r *Recorder) Ops() []string { return r.ops }

func (r *Recorder) Finish() (backend.CommandBuffer, error) {
	if r.render || r.compute {
		return nil, fmt.Errorf("%s: %w", r.label, backend.ErrPassState)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &CommandBuffer{Handle: Handle{Name: r.label}, Ops: r.ops}, nil
}
