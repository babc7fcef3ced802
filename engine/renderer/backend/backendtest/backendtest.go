// Package backendtest provides a recording backend.Device for tests. It creates no GPU
// objects: every creation is counted and every recorded command is kept as a short
// text op, so tests can assert on pipeline reuse and on command order.
package backendtest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Creation kinds counted by Device.Count.
const (
	KindShaderModule    = "shader_module"
	KindBindGroupLayout = "bind_group_layout"
	KindPipelineLayout  = "pipeline_layout"
	KindRenderPipeline  = "render_pipeline"
	KindComputePipeline = "compute_pipeline"
	KindBuffer          = "buffer"
	KindImage           = "image"
	KindImageView       = "image_view"
	KindSampler         = "sampler"
	KindBindGroup       = "bind_group"
	KindRecorder        = "recorder"
)

// Submission is one submitted command buffer.
type Submission struct {
	Label string
	Ops   []string
}

// Write is one buffer or image upload.
type Write struct {
	Label  string
	Offset uint64
	Size   int
}

// Device is the recording implementation of backend.Device.
type Device struct {
	mu          sync.Mutex
	features    backend.Features
	counts      map[string]int
	failures    map[string]error
	submissions []Submission
	writes      []Write
	nextBuffer  backend.BufferID
	nextImage   backend.ImageID
	released    bool
}

var _ backend.Device = &Device{}

// NewDevice creates a recording device. Push constants are reported as native unless
// features say otherwise.
func NewDevice(features ...backend.Features) *Device {
	f := backend.Features{PushConstants: true, MaxPushConstantSize: 128, MaxBindGroups: 8}
	if len(features) > 0 {
		f = features[0]
	}
	return &Device{features: f, counts: make(map[string]int), failures: make(map[string]error)}
}

// Count returns how many objects of a kind were created.
func (d *Device) Count(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[kind]
}

// FailOn makes every later creation of kind fail with err; a nil err clears it.
func (d *Device) FailOn(kind string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, kind)
		return
	}
	d.failures[kind] = err
}

// Submissions returns the submitted command buffers in submission order.
func (d *Device) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.submissions)
}

// Ops returns the ops of every submission, flattened in submission order.
func (d *Device) Ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, s := range d.submissions {
		out = append(out, s.Ops...)
	}
	return out
}

// Writes returns the uploads in call order.
func (d *Device) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.writes)
}

// Released reports whether Release was called.
func (d *Device) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

func (d *Device) create(kind string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return backend.ErrReleased
	}
	if err := d.failures[kind]; err != nil {
		return err
	}
	d.counts[kind]++
	return nil
}

func (d *Device) Features() backend.Features { return d.features }

func (d *Device) CreateShaderModule(desc backend.ShaderModuleDescriptor) (backend.ShaderModule, error) {
	if err := d.create(KindShaderModule); err != nil {
		return nil, err
	}
	return &Handle{Name: desc.Label}, nil
}

func (d *Device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (backend.BindGroupLayout, error) {
	if err := d.create(KindBindGroupLayout); err != nil {
		return nil, err
	}
	return &BindGroupLayout{Handle: Handle{Name: desc.Label}, Entries: slices.Clone(desc.Entries)}, nil
}

func (d *Device) CreatePipelineLayout(desc backend.PipelineLayoutDescriptor) (backend.PipelineLayout, error) {
	if err := d.create(KindPipelineLayout); err != nil {
		return nil, err
	}
	return &PipelineLayout{Handle: Handle{Name: desc.Label}, Groups: desc.BindGroupLayouts, PushSize: desc.PushConstantSize}, nil
}

func (d *Device) CreateRenderPipeline(desc backend.RenderPipelineDescriptor) (backend.RenderPipeline, error) {
	if err := d.create(KindRenderPipeline); err != nil {
		return nil, err
	}
	return &Pipeline{Handle: Handle{Name: desc.Label}, PipelineLayout: desc.Layout, Render: &desc}, nil
}

func (d *Device) CreateComputePipeline(desc backend.ComputePipelineDescriptor) (backend.ComputePipeline, error) {
	if err := d.create(KindComputePipeline); err != nil {
		return nil, err
	}
	return &Pipeline{Handle: Handle{Name: desc.Label}, PipelineLayout: desc.Layout}, nil
}

func (d *Device) CreateBuffer(desc backend.BufferDescriptor) (backend.Buffer, error) {
	if err := d.create(KindBuffer); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.nextBuffer++
	id := d.nextBuffer
	d.mu.Unlock()
	return &Buffer{Handle: Handle{Name: desc.Label}, BufferID: id, BufferSize: desc.Size}, nil
}

func (d *Device) CreateImage(desc backend.ImageDescriptor) (backend.Image, error) {
	if err := d.create(KindImage); err != nil {
		return nil, err
	}
	desc.Layers = max(desc.Layers, 1)
	desc.MipCount = max(desc.MipCount, 1)
	d.mu.Lock()
	d.nextImage++
	id := d.nextImage
	d.mu.Unlock()
	return &Image{ImageID: id, Desc: desc}, nil
}

func (d *Device) CreateImageView(desc backend.ImageViewDescriptor) (backend.ImageView, error) {
	if err := d.create(KindImageView); err != nil {
		return nil, err
	}
	img := desc.Image.(*Image)
	mips := desc.MipCount
	if mips == 0 {
		mips = img.Desc.MipCount - desc.BaseMip
	}
	layers := desc.LayerCount
	if layers == 0 {
		layers = img.Desc.Layers - desc.BaseLayer
	}
	return &ImageView{
		Handle: Handle{Name: desc.Label},
		ViewID: backend.ImageViewID{
			Image: img.ImageID, BaseMip: desc.BaseMip, MipCount: mips,
			BaseLayer: desc.BaseLayer, LayerCount: layers,
		},
		Img: img,
	}, nil
}

func (d *Device) CreateSampler(desc *wgpu.SamplerDescriptor) (backend.Sampler, error) {
	if err := d.create(KindSampler); err != nil {
		return nil, err
	}
	return &Handle{Name: desc.Label}, nil
}

func (d *Device) CreateBindGroup(desc backend.BindGroupDescriptor) (backend.BindGroup, error) {
	if err := d.create(KindBindGroup); err != nil {
		return nil, err
	}
	for _, e := range desc.Entries {
		if e.Buffer == nil && e.View == nil && e.Sampler == nil {
			return nil, fmt.Errorf("bind group %s: binding %d has no resource", desc.Label, e.Binding)
		}
	}
	return &BindGroup{Handle: Handle{Name: desc.Label}, Entries: slices.Clone(desc.Entries)}, nil
}

func (d *Device) WriteBuffer(b backend.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return backend.ErrReleased
	}
	if offset+uint64(len(data)) > b.Size() {
		return fmt.Errorf("write of %d bytes at %d overflows %s", len(data), offset, b.Label())
	}
	d.writes = append(d.writes, Write{Label: b.Label(), Offset: offset, Size: len(data)})
	return nil
}

func (d *Device) WriteImage(img backend.Image, layer uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return backend.ErrReleased
	}
	d.writes = append(d.writes, Write{Label: img.Label(), Offset: uint64(layer), Size: len(data)})
	return nil
}

func (d *Device) NewCommandRecorder(label string) (backend.CommandRecorder, error) {
	if err := d.create(KindRecorder); err != nil {
		return nil, err
	}
	return &Recorder{label: label}, nil
}

func (d *Device) Submit(buffers ...backend.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return backend.ErrReleased
	}
	for _, b := range buffers {
		cb := b.(*CommandBuffer)
		d.submissions = append(d.submissions, Submission{Label: cb.Name, Ops: cb.Ops})
	}
	return nil
}

func (d *Device) Release() {
	d.mu.Lock()
	d.released = true
	d.mu.Unlock()
}
