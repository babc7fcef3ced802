package bind_group_provider

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// minBufferSize keeps created storage buffers from being empty.
const minBufferSize = 16

// resource is what one binding of a set points at. Exactly one of the handles is set.
type resource struct {
	buffer  backend.Buffer
	view    backend.ImageView
	sampler backend.Sampler
	// owned buffers were created by Init and are released with the provider.
	owned bool
}

type bindGroupProvider struct {
	label     string
	resources map[uint32]resource
	layout    backend.BindGroupLayout
	set       backend.BindGroup
}

// BindGroupProvider assembles one descriptor set of a pipeline entry. Resources are
// attached by binding index and borrowed. Init creates the buffers the caller left out
// and then the set itself.
type BindGroupProvider interface {
	Label() string

	// BindGroup returns the set, or nil before a successful Init.
	BindGroup() backend.BindGroup

	// BindGroupLayout returns the layout of the last Init. The layout belongs to the
	// pipeline entry and is not released here.
	BindGroupLayout() backend.BindGroupLayout

	// Buffer, TextureView and Sampler return what is attached at a binding, or nil.
	Buffer(binding uint32) backend.Buffer
	TextureView(binding uint32) backend.ImageView
	Sampler(binding uint32) backend.Sampler

	SetBuffer(binding uint32, buf backend.Buffer)
	SetTextureView(binding uint32, view backend.ImageView)
	SetSampler(binding uint32, s backend.Sampler)

	// Init creates the set against layout. Buffer bindings with nothing attached get a
	// new buffer sized from sizes, or from the entry's MinBindingSize. Calling Init
	// again rebuilds the set, which picks up views attached since.
	//
	// Parameters:
	//   - d: the device
	//   - layout: the bind group layout
	//   - descriptor: the descriptor the layout was created from
	//   - sizes: buffer sizes by binding, may be nil
	//
	// Returns:
	//   - error: a texture or sampler binding with nothing attached, or a creation failure
	Init(d backend.Device, layout backend.BindGroupLayout, descriptor *wgpu.BindGroupLayoutDescriptor, sizes map[uint32]uint64) error

	// Release releases the set and the buffers Init created. Borrowed resources are
	// detached but stay alive.
	Release()
}

var _ BindGroupProvider = &bindGroupProvider{}

func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{label: label, resources: make(map[uint32]resource)}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string                            { return p.label }
func (p *bindGroupProvider) BindGroup() backend.BindGroup             { return p.set }
func (p *bindGroupProvider) BindGroupLayout() backend.BindGroupLayout { return p.layout }

func (p *bindGroupProvider) Buffer(binding uint32) backend.Buffer { return p.resources[binding].buffer }

func (p *bindGroupProvider) TextureView(binding uint32) backend.ImageView {
	return p.resources[binding].view
}

func (p *bindGroupProvider) Sampler(binding uint32) backend.Sampler {
	return p.resources[binding].sampler
}

// attach replaces whatever the binding held. A buffer Init created for it is released.
func (p *bindGroupProvider) attach(binding uint32, r resource) {
	if old, ok := p.resources[binding]; ok && old.owned && old.buffer != r.buffer {
		old.buffer.Release()
	}
	p.resources[binding] = r
}

func (p *bindGroupProvider) SetBuffer(binding uint32, buf backend.Buffer) {
	p.attach(binding, resource{buffer: buf})
}

func (p *bindGroupProvider) SetTextureView(binding uint32, view backend.ImageView) {
	p.attach(binding, resource{view: view})
}

func (p *bindGroupProvider) SetSampler(binding uint32, s backend.Sampler) {
	p.attach(binding, resource{sampler: s})
}

func (p *bindGroupProvider) Init(d backend.Device, layout backend.BindGroupLayout, descriptor *wgpu.BindGroupLayoutDescriptor, sizes map[uint32]uint64) error {
	if p.set != nil {
		p.set.Release()
		p.set = nil
	}
	p.layout = layout

	entries := make([]backend.BindGroupEntry, 0, len(descriptor.Entries))
	for _, le := range descriptor.Entries {
		entry, err := p.entry(d, le, sizes)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	set, err := d.CreateBindGroup(backend.BindGroupDescriptor{Label: p.label, Layout: layout, Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to create bind group %s: %w", p.label, err)
	}
	p.set = set
	return nil
}

func (p *bindGroupProvider) entry(d backend.Device, le wgpu.BindGroupLayoutEntry, sizes map[uint32]uint64) (backend.BindGroupEntry, error) {
	r := p.resources[le.Binding]
	out := backend.BindGroupEntry{Binding: le.Binding}
	switch {
	case le.Texture.SampleType != wgpu.TextureSampleTypeUndefined, le.StorageTexture.Access != wgpu.StorageTextureAccessUndefined:
		if r.view == nil {
			return out, fmt.Errorf("%s: texture binding %d has no image view", p.label, le.Binding)
		}
		out.View = r.view
	case le.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
		if r.sampler == nil {
			return out, fmt.Errorf("%s: sampler binding %d has no sampler", p.label, le.Binding)
		}
		out.Sampler = r.sampler
	default:
		if r.buffer == nil {
			size, ok := sizes[le.Binding]
			if !ok {
				size = le.Buffer.MinBindingSize
			}
			buf, err := d.CreateBuffer(backend.BufferDescriptor{
				Label: fmt.Sprintf("%s buffer %d", p.label, le.Binding),
				Size:  max(size, minBufferSize),
				Usage: bufferUsage(le.Buffer.Type),
			})
			if err != nil {
				return out, fmt.Errorf("failed to create buffer for binding %d: %w", le.Binding, err)
			}
			r = resource{buffer: buf, owned: true}
			p.resources[le.Binding] = r
		}
		out.Buffer, out.Size = r.buffer, backend.WholeSize
		// dynamic offsets select one element of the buffer
		if le.Buffer.HasDynamicOffset {
			out.Size = max(le.Buffer.MinBindingSize, minBufferSize)
		}
	}
	return out, nil
}

func bufferUsage(t wgpu.BufferBindingType) wgpu.BufferUsage {
	if t == wgpu.BufferBindingTypeUniform {
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	}
	return wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
}

func (p *bindGroupProvider) Release() {
	for _, b := range slices.Sorted(maps.Keys(p.resources)) {
		if r := p.resources[b]; r.owned {
			r.buffer.Release()
		}
	}
	clear(p.resources)
	if p.set != nil {
		p.set.Release()
		p.set = nil
	}
}
