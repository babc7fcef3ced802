// Package backend is the boundary between the renderer and a graphics API. Techniques,
// the pipeline cache and the pass graph only see the interfaces declared here; the
// wgpu sub-package implements them on WebGPU and backendtest records them for tests.
//
// Descriptors reuse the wgpu vocabulary (formats, usages, blend and primitive state)
// so the shader package's layout descriptors pass through unchanged.
package backend

import (
	"errors"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrReleased is returned when a released handle or device is used.
	ErrReleased = errors.New("backend: handle released")
	// ErrPassState is returned when a command is recorded outside the pass kind it needs.
	ErrPassState = errors.New("backend: command recorded in wrong pass state")
)

// Handle is a device object with a debug label.
type Handle interface {
	Label() string
	Release()
}

type ShaderModule interface{ Handle }

type BindGroupLayout interface{ Handle }

// PipelineLayout is the set of bind group layouts and push constant range of a pipeline.
type PipelineLayout interface {
	Handle
	BindGroupLayouts() []BindGroupLayout
	PushConstantSize() uint32
}

type RenderPipeline interface {
	Handle
	Layout() PipelineLayout
}

type ComputePipeline interface {
	Handle
	Layout() PipelineLayout
}

type Buffer interface {
	Handle
	ID() BufferID
	Size() uint64
}

type Image interface {
	Handle
	ID() ImageID
	Descriptor() ImageDescriptor
}

type ImageView interface {
	Handle
	ID() ImageViewID
	Image() Image
}

type Sampler interface{ Handle }

type BindGroup interface{ Handle }

type CommandBuffer interface{ Handle }

// ShaderModuleDescriptor carries WGSL source, plus SPIR-V when it was produced
// offline. Backends pick the form they consume.
type ShaderModuleDescriptor struct {
	Label string
	WGSL  string
	SPIRV []uint32
}

// PipelineLayoutDescriptor lists bind group layouts by group index; nil entries are
// filled with empty layouts by the backend.
type PipelineLayoutDescriptor struct {
	Label              string
	BindGroupLayouts   []BindGroupLayout
	PushConstantSize   uint32
	PushConstantStages wgpu.ShaderStage
}

type RenderPipelineDescriptor struct {
	Label         string
	Layout        PipelineLayout
	Vertex        ShaderModule
	VertexEntry   string
	VertexBuffers []wgpu.VertexBufferLayout
	// Fragment is nil for depth-only pipelines.
	Fragment      ShaderModule
	FragmentEntry string
	Targets       []wgpu.ColorTargetState
	Primitive     wgpu.PrimitiveState
	DepthStencil  *wgpu.DepthStencilState
	SampleCount   uint32
}

type ComputePipelineDescriptor struct {
	Label  string
	Layout PipelineLayout
	Module ShaderModule
	Entry  string
}

type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage wgpu.BufferUsage
}

type ImageDescriptor struct {
	Label       string
	Width       uint32
	Height      uint32
	Layers      uint32
	MipCount    uint32
	SampleCount uint32
	Format      wgpu.TextureFormat
	Usage       wgpu.TextureUsage
}

// ImageViewDescriptor selects a subresource range; zero counts select the remainder.
type ImageViewDescriptor struct {
	Label      string
	Image      Image
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
	Dimension  wgpu.TextureViewDimension
	Aspect     wgpu.TextureAspect
}

// BindGroupEntry binds one resource; exactly one of Buffer, View or Sampler is set.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	Offset  uint64
	Size    uint64
	View    ImageView
	Sampler Sampler
}

type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

type ColourAttachment struct {
	View    ImageView
	Resolve ImageView
	Load    wgpu.LoadOp
	Store   wgpu.StoreOp
	Clear   wgpu.Color
}

type DepthAttachment struct {
	View     ImageView
	Load     wgpu.LoadOp
	Store    wgpu.StoreOp
	Clear    float32
	ReadOnly bool
}

type RenderPassDescriptor struct {
	Label  string
	Colour []ColourAttachment
	Depth  *DepthAttachment
}

// Features reports optional capabilities of a device.
type Features struct {
	// PushConstants is false when push constants are emulated with a dynamically
	// offset uniform buffer in shader.PushConstantGroup.
	PushConstants       bool
	MaxPushConstantSize uint32
	MaxBindGroups       uint32
	// SPIRV is set by devices that consume SPIR-V modules rather than WGSL.
	SPIRV bool
}

// Device creates GPU objects and submits recorded work. Creation methods are safe for
// concurrent use; command recorders are not shared between goroutines.
type Device interface {
	Features() Features

	CreateShaderModule(desc ShaderModuleDescriptor) (ShaderModule, error)
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreatePipelineLayout(desc PipelineLayoutDescriptor) (PipelineLayout, error)
	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)
	CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error)
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateImage(desc ImageDescriptor) (Image, error)
	CreateImageView(desc ImageViewDescriptor) (ImageView, error)
	CreateSampler(desc *wgpu.SamplerDescriptor) (Sampler, error)
	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)

	// WriteBuffer uploads data at offset. Uploads are ordered before the next Submit.
	WriteBuffer(b Buffer, offset uint64, data []byte) error
	// WriteImage uploads tightly packed texels of one mip 0 layer.
	WriteImage(img Image, layer uint32, data []byte) error

	// NewCommandRecorder starts recording a command buffer.
	NewCommandRecorder(label string) (CommandRecorder, error)
	// Submit executes command buffers in order.
	Submit(buffers ...CommandBuffer) error

	Release()
}

// CommandRecorder records the commands of one command buffer.
type CommandRecorder interface {
	Label() string

	// Barrier records layout transitions and memory dependencies. Backends whose API
	// tracks hazards itself may only keep them for diagnostics.
	Barrier(images []ImageBarrier, buffers []BufferBarrier)

	BeginRenderPass(desc RenderPassDescriptor) error
	EndRenderPass()
	BeginComputePass(label string) error
	EndComputePass()

	BindRenderPipeline(p RenderPipeline)
	BindComputePipeline(p ComputePipeline)
	// BindDescriptorSet binds a bind group at a group index.
	BindDescriptorSet(group uint32, set BindGroup, dynamicOffsets ...uint32)
	// PushConstants sets the push constant block of the bound pipeline.
	PushConstants(stages wgpu.ShaderStage, offset uint32, data []byte)

	SetVertexBuffer(slot uint32, b Buffer, offset uint64)
	SetIndexBuffer(b Buffer, format wgpu.IndexFormat, offset uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	DrawIndexedIndirect(b Buffer, offset uint64)
	Dispatch(x, y, z uint32)

	// ClearColorImage clears a colour view outside of any pass.
	ClearColorImage(view ImageView, colour wgpu.Color) error

	// Finish ends recording. The first recording error, if any, is returned here.
	Finish() (CommandBuffer, error)
}
