package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrBuild wraps every failure to build a cache entry.
var ErrBuild = errors.New("pipeline: build failed")

// Variant selects one of the pipelines of an entry.
type Variant int

const (
	// VariantFirst is the pipeline of the first draw into a target; it overwrites.
	VariantFirst Variant = iota
	// VariantBlend is the pipeline of later draws; it accumulates.
	VariantBlend
)

func (v Variant) String() string {
	if v == VariantBlend {
		return "blend"
	}
	return "first"
}

// State is the build state of an entry.
type State int

const (
	StateUnbuilt State = iota
	StateBuilding
	StateReady
)

// ProgramSource is implemented by technique passes. The cache asks it for the program
// and the pipeline state of a permutation the first time the key is requested.
type ProgramSource interface {
	// Program generates the shader program of a permutation.
	Program(f flags.PipelineFlags) (*shader.Program, error)
	// Options returns the fixed-function state of one variant.
	Options(f flags.PipelineFlags, v Variant) []PipelineBuilderOption
	// Variants lists the variants to build; VariantFirst must come first.
	Variants(f flags.PipelineFlags) []Variant
}

// Entry is one built permutation. Entries are never rebuilt; the pointer stays valid
// until the cache is released, so callers may key their own caches on it.
type Entry struct {
	Key   flags.PipelineBaseHash
	Flags flags.PipelineFlags
	// ID is the dense pipeline id, NoID when the cache has no allocator or it overflowed.
	ID uint32

	Program  *shader.Program
	Compiled *shader.Compiled

	// LayoutDescriptors are the per-group layout descriptors built from the program's
	// CPU-side declarations.
	LayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	// Layouts is indexed by group; groups without bindings are nil.
	Layouts        []backend.BindGroupLayout
	PipelineLayout backend.PipelineLayout

	First Pipeline
	// Blend is nil unless the source asked for VariantBlend.
	Blend Pipeline

	// Sets holds the descriptor sets the owning pass created for this entry, by group.
	Sets map[uint32]bind_group_provider.BindGroupProvider

	state   State
	modules []backend.ShaderModule
}

// State returns the build state.
func (e *Entry) State() State { return e.state }

// Pipeline returns the pipeline for a draw; the blend variant falls back to the first
// one when the entry has none.
//
// Parameters:
//   - first: whether this is the first draw into the target
//
// Returns:
//   - Pipeline: the pipeline to bind
func (e *Entry) Pipeline(first bool) Pipeline {
	if first || e.Blend == nil {
		return e.First
	}
	return e.Blend
}

// Layout returns the layout of a group and the descriptor it was created from.
func (e *Entry) Layout(group uint32) (backend.BindGroupLayout, *wgpu.BindGroupLayoutDescriptor) {
	if int(group) >= len(e.Layouts) || e.Layouts[group] == nil {
		return nil, nil
	}
	d := e.LayoutDescriptors[int(group)]
	return e.Layouts[group], &d
}

func (e *Entry) release() {
	for _, s := range e.Sets {
		s.Release()
	}
	for _, p := range []Pipeline{e.First, e.Blend} {
		if p != nil {
			p.Release()
		}
	}
	if e.PipelineLayout != nil {
		e.PipelineLayout.Release()
	}
	for _, l := range e.Layouts {
		if l != nil {
			l.Release()
		}
	}
	for _, m := range e.modules {
		m.Release()
	}
}

// Cache maps permutation keys to built pipelines for one technique pass. Each key is
// built at most once; concurrent requests for the same key wait on the first build.
type Cache struct {
	mu      sync.Mutex
	label   string
	device  backend.Device
	source  ProgramSource
	entries map[flags.PipelineBaseHash]*Entry
	order   []*Entry

	compiler shader.Compiler
	ids      *IDAllocator
	logger   *slog.Logger
}

// NewCache creates an empty cache.
//
// Parameters:
//   - device: the device that creates the pipeline objects
//   - source: the pass generating programs and state
//   - opts: variadic list of CacheBuilderOption functions
//
// Returns:
//   - *Cache: the cache
func NewCache(device backend.Device, source ProgramSource, opts ...CacheBuilderOption) *Cache {
	c := &Cache{
		label:    "pipelines",
		device:   device,
		source:   source,
		entries: make(map[flags.PipelineBaseHash]*Entry),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.compiler == nil {
		c.compiler = DefaultCompiler(device.Features())
	}
	return c
}

// DefaultCompiler picks the compiler matching what a device consumes. WGSL devices
// validate modules themselves, so their programs are only reflected; SPIR-V devices
// get a binary from naga.
//
// Parameters:
//   - f: the device features
//
// Returns:
//   - shader.Compiler: the compiler
func DefaultCompiler(f backend.Features) shader.Compiler {
	if f.SPIRV {
		return shader.NewSPIRVCompiler()
	}
	return shader.ReflectionCompiler{}
}

// GetOrCreate returns the entry of a permutation, building it on first request.
//
// Parameters:
//   - f: the permutation flags
//
// Returns:
//   - *Entry: the ready entry
//   - error: wraps ErrBuild when the program, compilation or an object creation failed
func (c *Cache) GetOrCreate(f flags.PipelineFlags) (*Entry, error) {
	return c.GetOrCreateKey(f.Hash(), f)
}

// GetOrCreateKey is GetOrCreate for a key the caller already computed.
func (c *Cache) GetOrCreateKey(key flags.PipelineBaseHash, f flags.PipelineFlags) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e, nil
	}

	e := &Entry{Key: key, Flags: f, ID: NoID, state: StateBuilding, Sets: make(map[uint32]bind_group_provider.BindGroupProvider)}
	c.entries[key] = e
	if err := c.build(e); err != nil {
		delete(c.entries, key)
		e.release()
		return nil, fmt.Errorf("%w: %s %s: %w", ErrBuild, c.label, key, err)
	}
	if c.ids != nil {
		e.ID, _ = c.ids.Allocate(key)
	}
	e.state = StateReady
	c.order = append(c.order, e)
	c.logger.Debug("pipeline built",
		"cache", c.label,
		"key", key.String(),
		"id", e.ID,
		"bindings", len(e.Program.Bindings))
	return e, nil
}

func (c *Cache) build(e *Entry) error {
	program, err := c.source.Program(e.Flags)
	if err != nil {
		return fmt.Errorf("failed to generate program: %w", err)
	}
	e.Program = program

	compiled, err := c.compiler.Compile(program)
	if err != nil {
		return err
	}
	e.Compiled = compiled

	e.LayoutDescriptors = program.Layouts()
	groups := slices.Sorted(maps.Keys(e.LayoutDescriptors))
	if len(groups) > 0 {
		e.Layouts = make([]backend.BindGroupLayout, groups[len(groups)-1]+1)
	}
	for _, g := range groups {
		desc := e.LayoutDescriptors[g]
		desc.Label = fmt.Sprintf("%s group %d", program.Key, g)
		e.LayoutDescriptors[g] = desc
		layout, err := c.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		e.Layouts[g] = layout
	}

	layoutDesc := backend.PipelineLayoutDescriptor{
		Label:            program.Key,
		BindGroupLayouts: e.Layouts,
	}
	if program.PushConstants != nil && program.PushConstantMode == shader.PushConstantsNative {
		layoutDesc.PushConstantSize = program.PushConstants.Size()
		layoutDesc.PushConstantStages = program.PushConstants.Stages
	}
	e.PipelineLayout, err = c.device.CreatePipelineLayout(layoutDesc)
	if err != nil {
		return fmt.Errorf("failed to create pipeline layout: %w", err)
	}

	modules := make(map[string]backend.ShaderModule)
	module := func(s shader.Shader) (backend.ShaderModule, error) {
		if s == nil {
			return nil, nil
		}
		if m, ok := modules[s.Source()]; ok {
			return m, nil
		}
		m, err := c.device.CreateShaderModule(backend.ShaderModuleDescriptor{
			Label: s.Key(),
			WGSL:  s.Source(),
			SPIRV: words(compiled.SPIRV),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create shader module: %w", err)
		}
		modules[s.Source()] = m
		e.modules = append(e.modules, m)
		return m, nil
	}

	for _, v := range c.source.Variants(e.Flags) {
		p, err := c.createPipeline(e, v, module)
		if err != nil {
			return err
		}
		if v == VariantBlend {
			e.Blend = p
		} else {
			e.First = p
		}
	}
	if e.First == nil {
		return errors.New("no first variant")
	}
	return nil
}

func (c *Cache) createPipeline(e *Entry, v Variant, module func(shader.Shader) (backend.ShaderModule, error)) (Pipeline, error) {
	label := e.Program.Key + " " + v.String()
	opts := c.source.Options(e.Flags, v)

	if e.Program.IsCompute() {
		p := newPipeline(label, PipelineTypeCompute, []shader.Shader{e.Program.Compute}, opts...)
		cs, err := module(e.Program.Compute)
		if err != nil {
			return nil, err
		}
		p.compute, err = c.device.CreateComputePipeline(backend.ComputePipelineDescriptor{
			Label:  label + " Compute Pipeline",
			Layout: e.PipelineLayout,
			Module: cs,
			Entry:  e.Program.Compute.EntryPoint(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create compute pipeline: %w", err)
		}
		return p, nil
	}

	if e.Program.Vertex == nil {
		return nil, errors.New("vertex shader must be set to create a render pipeline")
	}
	p := newPipeline(label, PipelineTypeRender, []shader.Shader{e.Program.Vertex, e.Program.Fragment}, opts...)
	vs, err := module(e.Program.Vertex)
	if err != nil {
		return nil, err
	}
	fs, err := module(e.Program.Fragment)
	if err != nil {
		return nil, err
	}
	p.render, err = c.device.CreateRenderPipeline(p.renderDescriptor(e.PipelineLayout, vs, fs))
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline: %w", err)
	}
	return p, nil
}

// words reinterprets a little-endian SPIR-V binary as words.
func words(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// Lookup returns a ready entry without building it.
func (c *Cache) Lookup(key flags.PipelineBaseHash) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

// Entries returns the ready entries in build order.
func (c *Cache) Entries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.order)
}

// Len returns the number of ready entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Release releases every entry. The cache is empty afterwards.
func (c *Cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.order {
		e.release()
	}
	c.order = nil
	clear(c.entries)
}
