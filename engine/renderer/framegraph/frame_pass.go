package framegraph

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
)

// AccessKind classifies how a pass uses a resource.
type AccessKind int

const (
	AccessSampledView AccessKind = iota
	AccessStorageView
	AccessStorageBuffer
	AccessUniformBuffer
	AccessColourAttachment
	AccessDepthAttachment
	AccessTransfer
	AccessIndirectBuffer
)

var accessKindNames = [...]string{
	"sampled", "storage-view", "storage-buffer", "uniform", "colour", "depth", "transfer", "indirect",
}

func (k AccessKind) String() string {
	if int(k) < len(accessKindNames) {
		return accessKindNames[k]
	}
	return fmt.Sprintf("AccessKind(%d)", int(k))
}

// Access is one resource use declared by a pass. Exactly one of IsImage or the buffer
// range is meaningful.
type Access struct {
	Kind    AccessKind
	IsImage bool
	View    backend.ImageViewID
	Range   backend.BufferRange
	// Layout is the image layout the pass expects; unused for buffers.
	Layout  backend.ImageLayout
	Flags   backend.AccessFlags
	Binding uint32
}

// Reads reports whether the access reads the resource.
func (a Access) Reads() bool { return a.Flags&^writeFlags != 0 }

// Writes reports whether the access writes the resource.
func (a Access) Writes() bool { return a.Flags.IsWrite() }

const writeFlags = backend.AccessShaderWrite | backend.AccessColourAttachmentWrite |
	backend.AccessDepthWrite | backend.AccessTransferWrite

func (a Access) overlaps(b Access) bool {
	if a.IsImage != b.IsImage {
		return false
	}
	if a.IsImage {
		return a.View.Overlaps(b.View)
	}
	return a.Range.Overlaps(b.Range)
}

func (a Access) resource() string {
	if a.IsImage {
		return a.View.String()
	}
	return a.Range.String()
}

// RunnablePass records the GPU work of one pass. The pass index is the value of the
// selector set with SetPassIndex, read when the frame is recorded.
type RunnablePass interface {
	Record(ctx context.Context, rec backend.CommandRecorder, passIndex uint32) error
}

// RunnablePassFunc adapts a function to RunnablePass.
type RunnablePassFunc func(ctx context.Context, rec backend.CommandRecorder, passIndex uint32) error

func (f RunnablePassFunc) Record(ctx context.Context, rec backend.CommandRecorder, passIndex uint32) error {
	return f(ctx, rec, passIndex)
}

// RunnableFactory materializes the GPU objects of a pass. It runs once, during Compile,
// after every declaration of the graph is frozen.
type RunnableFactory func(ctx context.Context, pass *FramePass, graph *RunnableGraph) (RunnablePass, error)

// IsEnabledCallback reports whether a pass runs this frame.
type IsEnabledCallback func() bool

// FramePass is one node of a FrameGraph. Declarations append to its access list until
// the graph is compiled; afterwards every declaration fails with ErrCompiled.
type FramePass struct {
	graph   *FrameGraph
	name    string
	index   int
	factory RunnableFactory

	deps      []*FramePass
	accesses  []Access
	enabled   IsEnabledCallback
	passIndex *uint32
}

// Name returns the pass name.
func (p *FramePass) Name() string { return p.name }

// Accesses returns the declared accesses in declaration order.
func (p *FramePass) Accesses() []Access { return p.accesses }

// Dependencies returns the explicit predecessors.
func (p *FramePass) Dependencies() []*FramePass { return p.deps }

// Enabled evaluates the enable predicate. Passes without one always run.
func (p *FramePass) Enabled() bool {
	return p.enabled == nil || p.enabled()
}

// PassIndex reads the program selector; passes without one use index 0.
func (p *FramePass) PassIndex() uint32 {
	if p.passIndex == nil {
		return 0
	}
	return *p.passIndex
}

func (p *FramePass) frozen() bool {
	if p.graph.isCompiled() {
		p.graph.fail(fmt.Errorf("%w: %s", ErrCompiled, p.name))
		return true
	}
	return false
}

func (p *FramePass) add(a Access) *FramePass {
	if p.frozen() {
		return p
	}
	p.accesses = append(p.accesses, a)
	return p
}

func (p *FramePass) image(kind AccessKind, view backend.ImageViewID, binding uint32, layout backend.ImageLayout, flags backend.AccessFlags) *FramePass {
	return p.add(Access{Kind: kind, IsImage: true, View: view, Binding: binding, Layout: layout, Flags: flags})
}

func (p *FramePass) buffer(kind AccessKind, r backend.BufferRange, binding uint32, flags backend.AccessFlags) *FramePass {
	return p.add(Access{Kind: kind, Range: r, Binding: binding, Flags: flags})
}

// AddDependency orders the pass after other even without a shared resource.
func (p *FramePass) AddDependency(other *FramePass) *FramePass {
	if p.frozen() {
		return p
	}
	p.deps = append(p.deps, other)
	return p
}

// SetEnabled installs the per-frame enable predicate. It may be changed at any time.
func (p *FramePass) SetEnabled(cb IsEnabledCallback) *FramePass {
	p.enabled = cb
	return p
}

// SetPassIndex installs the program selector of a multi-program pass. The pointee is
// read every frame, so the owner selects a program without touching the graph.
func (p *FramePass) SetPassIndex(index *uint32) *FramePass {
	p.passIndex = index
	return p
}

// AddSampledView declares a sampled read of an image view.
//
// Parameters:
//   - view: the view
//   - binding: the descriptor binding the view is read through
//
// Returns:
//   - *FramePass: the pass, for chaining
func (p *FramePass) AddSampledView(view backend.ImageViewID, binding uint32) *FramePass {
	return p.image(AccessSampledView, view, binding, backend.LayoutShaderRead, backend.AccessShaderRead)
}

func (p *FramePass) AddInputStorageView(view backend.ImageViewID, binding uint32) *FramePass {
	return p.image(AccessStorageView, view, binding, backend.LayoutGeneral, backend.AccessShaderRead)
}

func (p *FramePass) AddOutputStorageView(view backend.ImageViewID, binding uint32) *FramePass {
	return p.image(AccessStorageView, view, binding, backend.LayoutGeneral, backend.AccessShaderWrite)
}

func (p *FramePass) AddInOutStorageView(view backend.ImageViewID, binding uint32) *FramePass {
	return p.image(AccessStorageView, view, binding, backend.LayoutGeneral, backend.AccessShaderRead|backend.AccessShaderWrite)
}

func (p *FramePass) AddInputStorageBuffer(r backend.BufferRange, binding uint32) *FramePass {
	return p.buffer(AccessStorageBuffer, r, binding, backend.AccessShaderRead)
}

func (p *FramePass) AddOutputStorageBuffer(r backend.BufferRange, binding uint32) *FramePass {
	return p.buffer(AccessStorageBuffer, r, binding, backend.AccessShaderWrite)
}

func (p *FramePass) AddInOutStorageBuffer(r backend.BufferRange, binding uint32) *FramePass {
	return p.buffer(AccessStorageBuffer, r, binding, backend.AccessShaderRead|backend.AccessShaderWrite)
}

func (p *FramePass) AddUniformBuffer(r backend.BufferRange, binding uint32) *FramePass {
	return p.buffer(AccessUniformBuffer, r, binding, backend.AccessUniformRead)
}

// AddIndirectBuffer declares a buffer read as indirect draw or dispatch arguments.
func (p *FramePass) AddIndirectBuffer(r backend.BufferRange) *FramePass {
	return p.buffer(AccessIndirectBuffer, r, 0, backend.AccessIndirectRead)
}

// AddOutputColourView declares a colour attachment whose previous content is discarded.
func (p *FramePass) AddOutputColourView(view backend.ImageViewID) *FramePass {
	return p.image(AccessColourAttachment, view, 0, backend.LayoutColourAttachment, backend.AccessColourAttachmentWrite)
}

// AddInOutColourView declares a colour attachment that is loaded and blended into.
func (p *FramePass) AddInOutColourView(view backend.ImageViewID) *FramePass {
	return p.image(AccessColourAttachment, view, 0, backend.LayoutColourAttachment,
		backend.AccessColourAttachmentRead|backend.AccessColourAttachmentWrite)
}

func (p *FramePass) AddOutputDepthView(view backend.ImageViewID) *FramePass {
	return p.image(AccessDepthAttachment, view, 0, backend.LayoutDepthAttachment, backend.AccessDepthWrite)
}

func (p *FramePass) AddInOutDepthView(view backend.ImageViewID) *FramePass {
	return p.image(AccessDepthAttachment, view, 0, backend.LayoutDepthAttachment, backend.AccessDepthRead|backend.AccessDepthWrite)
}

// AddInputDepthView declares a depth test without writes.
func (p *FramePass) AddInputDepthView(view backend.ImageViewID) *FramePass {
	return p.image(AccessDepthAttachment, view, 0, backend.LayoutDepthReadOnly, backend.AccessDepthRead)
}

func (p *FramePass) AddTransferInput(view backend.ImageViewID) *FramePass {
	return p.image(AccessTransfer, view, 0, backend.LayoutTransferSrc, backend.AccessTransferRead)
}

func (p *FramePass) AddTransferOutput(view backend.ImageViewID) *FramePass {
	return p.image(AccessTransfer, view, 0, backend.LayoutTransferDst, backend.AccessTransferWrite)
}
