package backendtest

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Handle is the labelled object behind every fake handle.
type Handle struct {
	Name     string
	released atomic.Bool
}

func (h *Handle) Label() string { return h.Name }
func (h *Handle) Release()      { h.released.Store(true) }

// IsReleased reports whether Release was called.
func (h *Handle) IsReleased() bool { return h.released.Load() }

type BindGroupLayout struct {
	Handle
	Entries []wgpu.BindGroupLayoutEntry
}

type PipelineLayout struct {
	Handle
	Groups   []backend.BindGroupLayout
	PushSize uint32
}

func (l *PipelineLayout) BindGroupLayouts() []backend.BindGroupLayout { return l.Groups }
func (l *PipelineLayout) PushConstantSize() uint32                    { return l.PushSize }

// Pipeline is a fake render or compute pipeline. Render is nil for compute pipelines.
type Pipeline struct {
	Handle
	PipelineLayout backend.PipelineLayout
	Render         *backend.RenderPipelineDescriptor
}

func (p *Pipeline) Layout() backend.PipelineLayout { return p.PipelineLayout }

type Buffer struct {
	Handle
	BufferID   backend.BufferID
	BufferSize uint64
}

func (b *Buffer) ID() backend.BufferID { return b.BufferID }
func (b *Buffer) Size() uint64         { return b.BufferSize }

type Image struct {
	ImageID  backend.ImageID
	Desc     backend.ImageDescriptor
	released atomic.Bool
}

func (i *Image) Label() string                       { return i.Desc.Label }
func (i *Image) Release()                            { i.released.Store(true) }
func (i *Image) ID() backend.ImageID                 { return i.ImageID }
func (i *Image) Descriptor() backend.ImageDescriptor { return i.Desc }

type ImageView struct {
	Handle
	ViewID backend.ImageViewID
	Img    *Image
}

func (v *ImageView) ID() backend.ImageViewID { return v.ViewID }
func (v *ImageView) Image() backend.Image    { return v.Img }

type BindGroup struct {
	Handle
	Entries []backend.BindGroupEntry
}

type CommandBuffer struct {
	Handle
	Ops []string
}
