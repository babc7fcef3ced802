// Package webgpu implements the backend interfaces on WebGPU through
// cogentcore/webgpu. The device is headless: techniques render into images they own
// and presentation is left to the embedding application.
package webgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// pushSlotSize is the stride of the emulated push constant ring. WebGPU requires
// dynamic uniform offsets aligned to 256 bytes.
const pushSlotSize = 256

// errRingExhausted is returned when more push constant blocks are recorded between two
// submits than the ring holds.
var errRingExhausted = errors.New("push constant ring exhausted")

// device is the implementation of backend.Device.
type device struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	features backend.Features
	logger   *slog.Logger
	released atomic.Bool

	nextBuffer atomic.Uint32
	nextImage  atomic.Uint32

	ring *pushRing
}

var _ backend.Device = &device{}

// NewDevice requests an adapter and a device and creates the push constant ring.
//
// Parameters:
//   - options: variadic list of DeviceBuilderOption functions
//
// Returns:
//   - backend.Device: the device
//   - error: when no adapter or device is available
func NewDevice(options ...DeviceBuilderOption) (backend.Device, error) {
	cfg := deviceConfig{
		label:         "oxy-castor device",
		ringSlots:     4096,
		maxBindGroups: 8,
		logger:        slog.Default(),
	}
	for _, opt := range options {
		opt(&cfg)
	}

	d := &device{
		instance: wgpu.CreateInstance(nil),
		logger:   cfg.logger,
	}
	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
	})
	if err != nil {
		d.instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = a

	// the technique groups plus the emulated push constant group
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = cfg.maxBindGroups

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: cfg.label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		a.Release()
		d.instance.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()
	d.features = backend.Features{
		PushConstants:       false,
		MaxPushConstantSize: pushSlotSize,
		MaxBindGroups:       cfg.maxBindGroups,
		SPIRV:               false,
	}

	ring, err := newPushRing(d, cfg.ringSlots)
	if err != nil {
		d.Release()
		return nil, err
	}
	d.ring = ring
	d.logger.Info("webgpu device created", "label", cfg.label, "pushRingSlots", cfg.ringSlots)
	return d, nil
}

func (d *device) check() error {
	if d.released.Load() {
		return backend.ErrReleased
	}
	return nil
}

func (d *device) Features() backend.Features {
	return d.features
}

func (d *device) CreateShaderModule(desc backend.ShaderModuleDescriptor) (backend.ShaderModule, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.WGSL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shader module %s: %w", desc.Label, err)
	}
	return &shaderModule{label: desc.Label, module: m}, nil
}

func (d *device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (backend.BindGroupLayout, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	l, err := d.device.CreateBindGroupLayout(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout %s: %w", desc.Label, err)
	}
	return &bindGroupLayout{label: desc.Label, layout: l}, nil
}

func (d *device) CreatePipelineLayout(desc backend.PipelineLayoutDescriptor) (backend.PipelineLayout, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	out := &pipelineLayout{label: desc.Label, groups: desc.BindGroupLayouts, pushSize: desc.PushConstantSize}
	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for g, l := range desc.BindGroupLayouts {
		if l != nil {
			layouts[g] = l.(*bindGroupLayout).layout
			continue
		}
		empty, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: desc.Label + " empty group"})
		if err != nil {
			out.Release()
			return nil, fmt.Errorf("failed to create empty bind group layout for group %d: %w", g, err)
		}
		layouts[g] = empty
		out.ownsEmpty = append(out.ownsEmpty, empty)
	}
	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		for _, e := range out.ownsEmpty {
			e.Release()
		}
		return nil, fmt.Errorf("failed to create pipeline layout %s: %w", desc.Label, err)
	}
	out.layout = pl
	return out, nil
}

func (d *device) CreateRenderPipeline(desc backend.RenderPipelineDescriptor) (backend.RenderPipeline, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	layout := desc.Layout.(*pipelineLayout)
	rd := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.layout,
		Vertex: wgpu.VertexState{
			Module:     desc.Vertex.(*shaderModule).module,
			EntryPoint: desc.VertexEntry,
			Buffers:    desc.VertexBuffers,
		},
		Primitive:    desc.Primitive,
		DepthStencil: desc.DepthStencil,
		Multisample: wgpu.MultisampleState{
			Count: max(desc.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.Fragment != nil {
		rd.Fragment = &wgpu.FragmentState{
			Module:     desc.Fragment.(*shaderModule).module,
			EntryPoint: desc.FragmentEntry,
			Targets:    desc.Targets,
		}
	}
	p, err := d.device.CreateRenderPipeline(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline %s: %w", desc.Label, err)
	}
	return &renderPipeline{label: desc.Label, pipeline: p, layout: layout}, nil
}

func (d *device) CreateComputePipeline(desc backend.ComputePipelineDescriptor) (backend.ComputePipeline, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	layout := desc.Layout.(*pipelineLayout)
	p, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     desc.Module.(*shaderModule).module,
			EntryPoint: desc.Entry,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create compute pipeline %s: %w", desc.Label, err)
	}
	return &computePipeline{label: desc.Label, pipeline: p, layout: layout}, nil
}

func (d *device) CreateBuffer(desc backend.BufferDescriptor) (backend.Buffer, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	b, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", desc.Label, err)
	}
	return &buffer{label: desc.Label, id: backend.BufferID(d.nextBuffer.Add(1)), size: desc.Size, buffer: b}, nil
}

func (d *device) CreateImage(desc backend.ImageDescriptor) (backend.Image, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	desc.Layers = max(desc.Layers, 1)
	desc.MipCount = max(desc.MipCount, 1)
	desc.SampleCount = max(desc.SampleCount, 1)
	t, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Layers,
		},
		MipLevelCount: desc.MipCount,
		SampleCount:   desc.SampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create image %s: %w", desc.Label, err)
	}
	return &image{id: backend.ImageID(d.nextImage.Add(1)), desc: desc, texture: t}, nil
}

func (d *device) CreateImageView(desc backend.ImageViewDescriptor) (backend.ImageView, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	img := desc.Image.(*image)
	mips := desc.MipCount
	if mips == 0 {
		mips = img.desc.MipCount - desc.BaseMip
	}
	layers := desc.LayerCount
	if layers == 0 {
		layers = img.desc.Layers - desc.BaseLayer
	}
	dim := desc.Dimension
	if dim == 0 {
		dim = wgpu.TextureViewDimension2D
		if layers > 1 {
			dim = wgpu.TextureViewDimension2DArray
		}
	}
	aspect := desc.Aspect
	if aspect == 0 {
		aspect = wgpu.TextureAspectAll
	}
	v, err := img.texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          img.desc.Format,
		Dimension:       dim,
		BaseMipLevel:    desc.BaseMip,
		MipLevelCount:   mips,
		BaseArrayLayer:  desc.BaseLayer,
		ArrayLayerCount: layers,
		Aspect:          aspect,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create image view %s: %w", desc.Label, err)
	}
	return &imageView{
		label: desc.Label,
		id: backend.ImageViewID{
			Image:      img.id,
			BaseMip:    desc.BaseMip,
			MipCount:   mips,
			BaseLayer:  desc.BaseLayer,
			LayerCount: layers,
		},
		image: img,
		view:  v,
	}, nil
}

func (d *device) CreateSampler(desc *wgpu.SamplerDescriptor) (backend.Sampler, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	s, err := d.device.CreateSampler(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler %s: %w", desc.Label, err)
	}
	return &sampler{label: desc.Label, sampler: s}, nil
}

func (d *device) CreateBindGroup(desc backend.BindGroupDescriptor) (backend.BindGroup, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			entry.Buffer = e.Buffer.(*buffer).buffer
			entry.Offset = e.Offset
			entry.Size = e.Size
			if entry.Size == 0 || entry.Size == backend.WholeSize {
				entry.Size = wgpu.WholeSize
			}
		case e.View != nil:
			entry.TextureView = e.View.(*imageView).view
		case e.Sampler != nil:
			entry.Sampler = e.Sampler.(*sampler).sampler
		default:
			return nil, fmt.Errorf("bind group %s: binding %d has no resource", desc.Label, e.Binding)
		}
		entries[i] = entry
	}
	g, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  desc.Layout.(*bindGroupLayout).layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %s: %w", desc.Label, err)
	}
	return &bindGroup{label: desc.Label, group: g}, nil
}

func (d *device) WriteBuffer(b backend.Buffer, offset uint64, data []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	if err := d.queue.WriteBuffer(b.(*buffer).buffer, offset, data); err != nil {
		return fmt.Errorf("failed to write buffer %s: %w", b.Label(), err)
	}
	return nil
}

func (d *device) WriteImage(img backend.Image, layer uint32, data []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	i := img.(*image)
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  i.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: layer},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  i.desc.Width * texelSize(i.desc.Format),
			RowsPerImage: i.desc.Height,
		},
		&wgpu.Extent3D{
			Width:              i.desc.Width,
			Height:             i.desc.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// texelSize returns the bytes per texel of the colour formats the renderer uploads.
func texelSize(f wgpu.TextureFormat) uint32 {
	switch f {
	case wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRG32Float, wgpu.TextureFormatRG32Uint:
		return 8
	case wgpu.TextureFormatRGBA32Float, wgpu.TextureFormatRGBA32Uint:
		return 16
	case wgpu.TextureFormatR8Unorm:
		return 1
	}
	return 4
}

func (d *device) NewCommandRecorder(label string) (backend.CommandRecorder, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder %s: %w", label, err)
	}
	return &recorder{device: d, label: label, encoder: enc}, nil
}

func (d *device) Submit(buffers ...backend.CommandBuffer) error {
	if err := d.check(); err != nil {
		return err
	}
	cbs := make([]*wgpu.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		cb := b.(*commandBuffer)
		if cb.buffer == nil {
			return fmt.Errorf("failed to submit %s: %w", cb.label, backend.ErrReleased)
		}
		cbs = append(cbs, cb.buffer)
	}
	d.queue.Submit(cbs...)
	for _, b := range buffers {
		b.Release()
	}
	// queue writes issued from now on are ordered after the submitted work
	d.ring.reset()
	return nil
}

func (d *device) Release() {
	if d.released.Swap(true) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ring != nil {
		d.ring.release()
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	d.instance.Release()
}
