package technique

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrMissingResource is returned when a storage image binding has no registered view.
	ErrMissingResource = errors.New("technique: no resource registered for binding")
	// ErrResourceTooSmall is returned when an upload does not fit the registered buffer.
	ErrResourceTooSmall = errors.New("technique: upload larger than buffer")
)

// minBufferSize is the size of buffers created for bindings without a registered size;
// it covers every fixed-size uniform struct the shader modules declare.
const minBufferSize = 256

// Resources maps binding names to the resources feeding them. Programs of different
// passes agree on names, so c3d_scene is the same buffer in every descriptor set and
// shared buffers are created once, on the first set that needs them.
//
// Sampled textures without a registered view are bound to a 1x1 placeholder of the
// right dimension until the owner of the texture registers it.
type Resources struct {
	mu       sync.Mutex
	device   backend.Device
	buffers  map[string]backend.Buffer
	views    map[string]backend.ImageView
	samplers map[string]backend.Sampler
	sizes    map[string]uint64
	owned    []backend.Handle
	logger   *slog.Logger
}

// NewResources creates an empty registry.
//
// Parameters:
//   - device: the device that creates missing buffers, placeholders and samplers
//   - logger: receives placeholder creation messages; nil uses slog.Default
//
// Returns:
//   - *Resources: the registry
func NewResources(device backend.Device, logger *slog.Logger) *Resources {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resources{
		device:   device,
		buffers:  make(map[string]backend.Buffer),
		views:    make(map[string]backend.ImageView),
		samplers: make(map[string]backend.Sampler),
		sizes:    make(map[string]uint64),
		logger:   logger,
	}
}

// SetBuffer registers a borrowed buffer under a binding name.
func (r *Resources) SetBuffer(name string, buf backend.Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers[name] = buf
}

// SetView registers a borrowed image view under a binding name.
func (r *Resources) SetView(name string, view backend.ImageView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[name] = view
}

// SetSampler registers a borrowed sampler under a binding name.
func (r *Resources) SetSampler(name string, s backend.Sampler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samplers[name] = s
}

// SetSize sets the byte size of the buffer created for a binding name. It has no
// effect once the buffer exists.
func (r *Resources) SetSize(name string, size uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes[name] = size
}

// Buffer returns the buffer registered or created under a name, or nil.
func (r *Resources) Buffer(name string) backend.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers[name]
}

// View returns the view registered under a name, or nil.
func (r *Resources) View(name string) backend.ImageView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[name]
}

// Names returns the names of every buffer, view and sampler, sorted.
func (r *Resources) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := slices.Collect(maps.Keys(r.buffers))
	names = append(names, slices.Collect(maps.Keys(r.views))...)
	names = append(names, slices.Collect(maps.Keys(r.samplers))...)
	slices.Sort(names)
	return slices.Compact(names)
}

// Write uploads data to the buffer of a name, creating the buffer when no set has
// needed it yet.
//
// Parameters:
//   - name: the binding name
//   - data: the bytes, written at offset 0
//
// Returns:
//   - error: wraps ErrResourceTooSmall when data does not fit, or an upload failure
func (r *Resources) Write(name string, data []byte) error {
	r.mu.Lock()
	buf, err := r.bufferLocked(name, uint64(len(data)))
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if uint64(len(data)) > buf.Size() {
		return fmt.Errorf("%w: %s holds %d bytes, got %d", ErrResourceTooSmall, name, buf.Size(), len(data))
	}
	if len(data) == 0 {
		return nil
	}
	return r.device.WriteBuffer(buf, 0, data)
}

// Ensure returns the buffer of a name, creating it with at least size bytes. The pass
// graph tracks shared buffers by id, so they must exist before passes are declared.
func (r *Resources) Ensure(name string, size uint64) (backend.Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.buffers[name]; !ok && size > r.sizes[name] {
		r.sizes[name] = size
	}
	return r.bufferLocked(name, size)
}

// Range returns the whole range of the buffer of a name. The buffer must exist.
func (r *Resources) Range(name string) backend.BufferRange {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.buffers[name]
	if !ok {
		panic(fmt.Sprintf("technique: buffer %s used before Ensure", name))
	}
	return backend.WholeBuffer(buf.ID())
}

func (r *Resources) bufferLocked(name string, need uint64) (backend.Buffer, error) {
	if buf, ok := r.buffers[name]; ok {
		return buf, nil
	}
	size := max(r.sizes[name], need, minBufferSize)
	buf, err := r.device.CreateBuffer(backend.BufferDescriptor{
		Label: name,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", name, err)
	}
	r.buffers[name] = buf
	r.owned = append(r.owned, buf)
	return buf, nil
}

func (r *Resources) viewLocked(b shader.Binding) (backend.ImageView, error) {
	if view, ok := r.views[b.Name]; ok {
		return view, nil
	}
	if b.Kind == shader.BindingStorageTexture {
		return nil, fmt.Errorf("%w: %s", ErrMissingResource, b.Name)
	}
	desc, dim := placeholder(b)
	img, err := r.device.CreateImage(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create placeholder %s: %w", b.Name, err)
	}
	view, err := r.device.CreateImageView(backend.ImageViewDescriptor{Label: desc.Label, Image: img, Dimension: dim})
	if err != nil {
		img.Release()
		return nil, fmt.Errorf("failed to create placeholder view %s: %w", b.Name, err)
	}
	r.owned = append(r.owned, view, img)
	r.views[b.Name] = view
	r.logger.Debug("placeholder bound", "binding", b.Name, "type", b.Type)
	return view, nil
}

func (r *Resources) samplerLocked(b shader.Binding) (backend.Sampler, error) {
	if s, ok := r.samplers[b.Name]; ok {
		return s, nil
	}
	desc := &wgpu.SamplerDescriptor{
		Label:         b.Name,
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
	if b.Kind == shader.BindingComparisonSampler {
		desc.Compare = wgpu.CompareFunctionLessEqual
	}
	s, err := r.device.CreateSampler(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler %s: %w", b.Name, err)
	}
	r.samplers[b.Name] = s
	r.owned = append(r.owned, s)
	return s, nil
}

// placeholder describes the 1x1 image standing in for an unregistered texture.
func placeholder(b shader.Binding) (backend.ImageDescriptor, wgpu.TextureViewDimension) {
	desc := backend.ImageDescriptor{
		Label:    b.Name + " placeholder",
		Width:    1,
		Height:   1,
		Layers:   1,
		MipCount: 1,
		Format:   wgpu.TextureFormatRGBA8Unorm,
		Usage:    wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	}
	switch {
	case b.Kind == shader.BindingDepthTexture:
		desc.Format = wgpu.TextureFormatDepth32Float
	case strings.HasSuffix(b.Type, "<u32>"):
		desc.Format = wgpu.TextureFormatR32Uint
	case strings.HasSuffix(b.Type, "<i32>"):
		desc.Format = wgpu.TextureFormatR32Sint
	}

	kind := strings.TrimPrefix(strings.TrimPrefix(b.Type, "texture_"), "depth_")
	if i := strings.IndexByte(kind, '<'); i >= 0 {
		kind = kind[:i]
	}
	switch kind {
	case "cube":
		desc.Layers = 6
		return desc, wgpu.TextureViewDimensionCube
	case "cube_array":
		desc.Layers = 6
		return desc, wgpu.TextureViewDimensionCubeArray
	case "2d_array":
		return desc, wgpu.TextureViewDimension2DArray
	case "3d":
		return desc, wgpu.TextureViewDimension3D
	}
	return desc, wgpu.TextureViewDimension2D
}

// Bind creates the descriptor sets of an entry, one per group, and stores them in
// e.Sets. Groups that already have a set are kept. The emulated push constant group
// is bound by the command recorder and gets no set here.
//
// Parameters:
//   - e: the pipeline entry
//
// Returns:
//   - error: a missing storage image or a creation failure
func (r *Resources) Bind(e *pipeline.Entry) error {
	for g := range e.Layouts {
		group := uint32(g)
		if e.Layouts[g] == nil {
			continue
		}
		if _, ok := e.Sets[group]; ok {
			continue
		}
		if group == shader.PushConstantGroup && e.Program.PushConstants != nil && e.Program.PushConstantMode == shader.PushConstantsUniform {
			continue
		}
		set, err := r.newSet(e, group)
		if err != nil {
			return err
		}
		e.Sets[group] = set
	}
	return nil
}

func (r *Resources) newSet(e *pipeline.Entry, group uint32) (bind_group_provider.BindGroupProvider, error) {
	set := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("%s set %d", e.Program.Key, group))
	r.mu.Lock()
	for _, b := range e.Program.BindingsInGroup(group) {
		switch b.Kind {
		case shader.BindingSampler, shader.BindingComparisonSampler:
			s, err := r.samplerLocked(b)
			if err != nil {
				r.mu.Unlock()
				return nil, err
			}
			set.SetSampler(b.Index, s)
		case shader.BindingSampledTexture, shader.BindingDepthTexture, shader.BindingStorageTexture:
			view, err := r.viewLocked(b)
			if err != nil {
				r.mu.Unlock()
				return nil, fmt.Errorf("failed to bind %s group %d: %w", e.Program.Key, group, err)
			}
			set.SetTextureView(b.Index, view)
		default:
			buf, err := r.bufferLocked(b.Name, 0)
			if err != nil {
				r.mu.Unlock()
				return nil, err
			}
			set.SetBuffer(b.Index, buf)
		}
	}
	r.mu.Unlock()

	layout, desc := e.Layout(group)
	if err := set.Init(r.device, layout, desc, nil); err != nil {
		set.Release()
		return nil, fmt.Errorf("failed to bind %s group %d: %w", e.Program.Key, group, err)
	}
	return set, nil
}

// Release releases every resource the registry created. Borrowed resources are left
// to their owners.
func (r *Resources) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.owned {
		h.Release()
	}
	r.owned = nil
	clear(r.buffers)
	clear(r.views)
	clear(r.samplers)
}

// bindSets binds every descriptor set of an entry in group order.
func bindSets(rec backend.CommandRecorder, e *pipeline.Entry) {
	for _, g := range slices.Sorted(maps.Keys(e.Sets)) {
		rec.BindDescriptorSet(g, e.Sets[g].BindGroup())
	}
}
