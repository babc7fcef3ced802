package webgpu

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// recorder is the implementation of backend.CommandRecorder. Recording errors are
// sticky and reported by Finish, so passes can record without checking every call.
type recorder struct {
	device  *device
	label   string
	encoder *wgpu.CommandEncoder
	render  *wgpu.RenderPassEncoder
	compute *wgpu.ComputePassEncoder
	layout  *pipelineLayout
	err     error
}

var _ backend.CommandRecorder = &recorder{}

func (r *recorder) Label() string { return r.label }

func (r *recorder) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", r.label, err)
	}
}

func (r *recorder) inPass() bool { return r.render != nil || r.compute != nil }

// Barrier is a no-op beyond logging: WebGPU tracks hazards and layouts itself.
func (r *recorder) Barrier(images []backend.ImageBarrier, buffers []backend.BufferBarrier) {
	if len(images)+len(buffers) == 0 {
		return
	}
	r.device.logger.Debug("barrier", "recorder", r.label, "images", len(images), "buffers", len(buffers))
}

func (r *recorder) BeginRenderPass(desc backend.RenderPassDescriptor) error {
	if r.inPass() {
		r.fail(backend.ErrPassState)
		return r.err
	}
	rp := &wgpu.RenderPassDescriptor{Label: desc.Label}
	for _, c := range desc.Colour {
		att := wgpu.RenderPassColorAttachment{
			View:       c.View.(*imageView).view,
			LoadOp:     c.Load,
			StoreOp:    c.Store,
			ClearValue: c.Clear,
		}
		if c.Resolve != nil {
			att.ResolveTarget = c.Resolve.(*imageView).view
		}
		rp.ColorAttachments = append(rp.ColorAttachments, att)
	}
	if desc.Depth != nil {
		att := &wgpu.RenderPassDepthStencilAttachment{
			View:            desc.Depth.View.(*imageView).view,
			DepthClearValue: desc.Depth.Clear,
			DepthReadOnly:   desc.Depth.ReadOnly,
		}
		if !desc.Depth.ReadOnly {
			att.DepthLoadOp = desc.Depth.Load
			att.DepthStoreOp = desc.Depth.Store
		}
		rp.DepthStencilAttachment = att
	}
	r.render = r.encoder.BeginRenderPass(rp)
	return nil
}

func (r *recorder) EndRenderPass() {
	if r.render == nil {
		r.fail(backend.ErrPassState)
		return
	}
	r.render.End()
	r.render.Release()
	r.render = nil
	r.layout = nil
}

func (r *recorder) BeginComputePass(label string) error {
	if r.inPass() {
		r.fail(backend.ErrPassState)
		return r.err
	}
	r.compute = r.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	return nil
}

func (r *recorder) EndComputePass() {
	if r.compute == nil {
		r.fail(backend.ErrPassState)
		return
	}
	r.compute.End()
	r.compute.Release()
	r.compute = nil
	r.layout = nil
}

func (r *recorder) BindRenderPipeline(p backend.RenderPipeline) {
	if r.render == nil {
		r.fail(backend.ErrPassState)
		return
	}
	rp := p.(*renderPipeline)
	r.render.SetPipeline(rp.pipeline)
	r.layout = rp.layout
}

func (r *recorder) BindComputePipeline(p backend.ComputePipeline) {
	if r.compute == nil {
		r.fail(backend.ErrPassState)
		return
	}
	cp := p.(*computePipeline)
	r.compute.SetPipeline(cp.pipeline)
	r.layout = cp.layout
}

func (r *recorder) setBindGroup(group uint32, g *wgpu.BindGroup, offsets []uint32) {
	switch {
	case r.render != nil:
		r.render.SetBindGroup(group, g, offsets)
	case r.compute != nil:
		r.compute.SetBindGroup(group, g, offsets)
	default:
		r.fail(backend.ErrPassState)
	}
}

func (r *recorder) BindDescriptorSet(group uint32, set backend.BindGroup, dynamicOffsets ...uint32) {
	r.setBindGroup(group, set.(*bindGroup).group, dynamicOffsets)
}

// PushConstants writes the block to the ring and binds it at shader.PushConstantGroup
// with the slot's dynamic offset.
func (r *recorder) PushConstants(stages wgpu.ShaderStage, offset uint32, data []byte) {
	if r.layout == nil || len(r.layout.groups) <= shader.PushConstantGroup || r.layout.groups[shader.PushConstantGroup] == nil {
		r.fail(fmt.Errorf("push constants without a pipeline declaring group %d", shader.PushConstantGroup))
		return
	}
	g, err := r.device.ring.group(r.layout.groups[shader.PushConstantGroup].(*bindGroupLayout).layout)
	if err != nil {
		r.fail(err)
		return
	}
	dyn, err := r.device.ring.push(offset, data)
	if err != nil {
		r.fail(err)
		return
	}
	r.setBindGroup(shader.PushConstantGroup, g, []uint32{dyn})
}

func (r *recorder) SetVertexBuffer(slot uint32, b backend.Buffer, offset uint64) {
	if r.render == nil {
		r.fail(backend.ErrPassState)
		return
	}
	r.render.SetVertexBuffer(slot, b.(*buffer).buffer, offset, wgpu.WholeSize)
}

func (r *recorder) SetIndexBuffer(b backend.Buffer, format wgpu.IndexFormat, offset uint64) {
	if r.render == nil {
		r.fail(backend.ErrPassState)
		return
	}
	r.render.SetIndexBuffer(b.(*buffer).buffer, format, offset, wgpu.WholeSize)
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if r.render == nil {
		r.fail(backend.ErrPassState)
		return
	}
	r.render.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if r.render == nil {
		r.fail(backend.ErrPassState)
		return
	}
	r.render.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (r *recorder) DrawIndexedIndirect(b backend.Buffer, offset uint64) {
	if r.render == nil {
		r.fail(backend.ErrPassState)
		return
	}
	r.render.DrawIndexedIndirect(b.(*buffer).buffer, offset)
}

func (r *recorder) Dispatch(x, y, z uint32) {
	if r.compute == nil {
		r.fail(backend.ErrPassState)
		return
	}
	r.compute.DispatchWorkgroups(x, y, z)
}

// ClearColorImage records an empty render pass whose load op clears the view.
func (r *recorder) ClearColorImage(view backend.ImageView, colour wgpu.Color) error {
	if err := r.BeginRenderPass(backend.RenderPassDescriptor{
		Label: "clear " + view.Label(),
		Colour: []backend.ColourAttachment{{
			View:  view,
			Load:  wgpu.LoadOpClear,
			Store: wgpu.StoreOpStore,
			Clear: colour,
		}},
	}); err != nil {
		return err
	}
	r.EndRenderPass()
	return nil
}

func (r *recorder) Finish() (backend.CommandBuffer, error) {
	defer r.encoder.Release()
	if r.inPass() {
		r.fail(backend.ErrPassState)
	}
	if r.err != nil {
		return nil, r.err
	}
	cb, err := r.encoder.Finish(&wgpu.CommandBufferDescriptor{Label: r.label})
	if err != nil {
		return nil, fmt.Errorf("failed to finish %s: %w", r.label, err)
	}
	return &commandBuffer{label: r.label, buffer: cb}, nil
}
