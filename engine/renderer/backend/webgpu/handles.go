package webgpu

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

type shaderModule struct {
	label  string
	module *wgpu.ShaderModule
}

func (s *shaderModule) Label() string { return s.label }
func (s *shaderModule) Release()      { s.module.Release() }

type bindGroupLayout struct {
	label  string
	layout *wgpu.BindGroupLayout
}

func (l *bindGroupLayout) Label() string { return l.label }
func (l *bindGroupLayout) Release()      { l.layout.Release() }

type pipelineLayout struct {
	label     string
	layout    *wgpu.PipelineLayout
	groups    []backend.BindGroupLayout
	pushSize  uint32
	ownsEmpty []*wgpu.BindGroupLayout
}

func (l *pipelineLayout) Label() string                               { return l.label }
func (l *pipelineLayout) BindGroupLayouts() []backend.BindGroupLayout { return l.groups }
func (l *pipelineLayout) PushConstantSize() uint32                    { return l.pushSize }

func (l *pipelineLayout) Release() {
	for _, e := range l.ownsEmpty {
		e.Release()
	}
	l.layout.Release()
}

type renderPipeline struct {
	label    string
	pipeline *wgpu.RenderPipeline
	layout   *pipelineLayout
}

func (p *renderPipeline) Label() string                  { return p.label }
func (p *renderPipeline) Release()                       { p.pipeline.Release() }
func (p *renderPipeline) Layout() backend.PipelineLayout { return p.layout }

type computePipeline struct {
	label    string
	pipeline *wgpu.ComputePipeline
	layout   *pipelineLayout
}

func (p *computePipeline) Label() string                  { return p.label }
func (p *computePipeline) Release()                       { p.pipeline.Release() }
func (p *computePipeline) Layout() backend.PipelineLayout { return p.layout }

type buffer struct {
	label  string
	id     backend.BufferID
	size   uint64
	buffer *wgpu.Buffer
}

func (b *buffer) Label() string        { return b.label }
func (b *buffer) Release()             { b.buffer.Release() }
func (b *buffer) ID() backend.BufferID { return b.id }
func (b *buffer) Size() uint64         { return b.size }

type image struct {
	id      backend.ImageID
	desc    backend.ImageDescriptor
	texture *wgpu.Texture
}

func (i *image) Label() string                       { return i.desc.Label }
func (i *image) Release()                            { i.texture.Release() }
func (i *image) ID() backend.ImageID                 { return i.id }
func (i *image) Descriptor() backend.ImageDescriptor { return i.desc }

type imageView struct {
	label string
	id    backend.ImageViewID
	image *image
	view  *wgpu.TextureView
}

func (v *imageView) Label() string           { return v.label }
func (v *imageView) Release()                { v.view.Release() }
func (v *imageView) ID() backend.ImageViewID { return v.id }
func (v *imageView) Image() backend.Image    { return v.image }

type sampler struct {
	label   string
	sampler *wgpu.Sampler
}

func (s *sampler) Label() string { return s.label }
func (s *sampler) Release()      { s.sampler.Release() }

type bindGroup struct {
	label string
	group *wgpu.BindGroup
}

func (g *bindGroup) Label() string { return g.label }
func (g *bindGroup) Release()      { g.group.Release() }

type commandBuffer struct {
	label  string
	buffer *wgpu.CommandBuffer
}

func (c *commandBuffer) Label() string { return c.label }

func (c *commandBuffer) Release() {
	if c.buffer != nil {
		c.buffer.Release()
		c.buffer = nil
	}
}
