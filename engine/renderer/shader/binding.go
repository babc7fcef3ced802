package shader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrBindingConflict is returned when two declarations claim the same group and binding.
var ErrBindingConflict = errors.New("shader: binding slot already claimed")

// ErrBindingMismatch is returned when a CPU-side descriptor layout disagrees with the
// bindings the shader actually declares.
var ErrBindingMismatch = errors.New("shader: descriptor layout does not match shader declarations")

// BindingKind classifies a descriptor binding.
type BindingKind int

const (
	BindingUniform BindingKind = iota
	BindingStorage
	BindingStorageRW
	BindingSampledTexture
	BindingDepthTexture
	BindingStorageTexture
	BindingSampler
	BindingComparisonSampler
)

var bindingKindNames = [...]string{
	BindingUniform:           "uniform",
	BindingStorage:           "storage",
	BindingStorageRW:         "storage_rw",
	BindingSampledTexture:    "texture",
	BindingDepthTexture:      "depth_texture",
	BindingStorageTexture:    "storage_texture",
	BindingSampler:           "sampler",
	BindingComparisonSampler: "comparison_sampler",
}

func (k BindingKind) String() string {
	if int(k) < len(bindingKindNames) {
		return bindingKindNames[k]
	}
	return fmt.Sprintf("BindingKind(%d)", int(k))
}

// class folds the storage access modes together, which is all the IR can tell apart.
func (k BindingKind) class() BindingKind {
	if k == BindingStorageRW {
		return BindingStorage
	}
	return k
}

// addressSpace returns the var<> qualifier of buffer kinds and "" for handle kinds.
func (k BindingKind) addressSpace() string {
	switch k {
	case BindingUniform:
		return "uniform"
	case BindingStorage:
		return "storage, read"
	case BindingStorageRW:
		return "storage, read_write"
	}
	return ""
}

// annotationSpace maps a buffer kind to its @oxy:group address space argument.
func (k BindingKind) annotationSpace() (AnnotationArg, bool) {
	switch k {
	case BindingUniform:
		return annotationSpaceUniform, true
	case BindingStorage:
		return annotationSpaceRead, true
	case BindingStorageRW:
		return annotationSpaceReadWrite, true
	}
	return "", false
}

// Binding is one CPU-side descriptor declaration. The same value produces the WGSL
// declaration and the backend layout entry, so both sides cannot drift apart.
type Binding struct {
	Group  uint32
	Index  uint32
	Name   string
	Kind   BindingKind
	Type   string
	Stages wgpu.ShaderStage

	// Struct names a registered struct type; when set, Type is resolved from the struct
	// registry and the declaration is generated by the pre-processor.
	Struct AnnotationArg
	// Array wraps a registered Struct in a runtime-sized array.
	Array bool

	// Provider and Role tell techniques which resource feeds the binding.
	Provider AnnotationArg
	Role     AnnotationArg

	// DynamicOffset marks a uniform buffer bound with a per-draw offset.
	DynamicOffset bool
}

// Declaration returns the WGSL module-scope declaration of the binding.
//
// Returns:
//   - string: e.g. "@group(0) @binding(3) var<storage, read> c3d_lights: array<Light>;"
func (b Binding) Declaration() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@group(%d) @binding(%d) var", b.Group, b.Index)
	if space := b.Kind.addressSpace(); space != "" {
		fmt.Fprintf(&sb, "<%s>", space)
	}
	fmt.Fprintf(&sb, " %s: %s;", b.Name, closeTemplates(b.Type))
	return sb.String()
}

// closeTemplates separates adjacent closing brackets of nested template lists, so
// array<vec2<u32>> is written array<vec2<u32> > and cannot lex as a shift.
func closeTemplates(typ string) string {
	for strings.Contains(typ, ">>") {
		typ = strings.ReplaceAll(typ, ">>", "> >")
	}
	return typ
}

// LayoutEntry returns the backend bind group layout entry for the binding.
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the layout entry, classified the same way reflected
//     shader declarations are
func (b Binding) LayoutEntry() wgpu.BindGroupLayoutEntry {
	entry := layoutEntry(b.Index, b.Stages, b.Kind, b.Type)
	if b.DynamicOffset && b.Kind == BindingUniform {
		entry.Buffer.HasDynamicOffset = true
	}
	return entry
}

// BindingCounter hands out consecutive binding indices inside one group. Modules receive
// it by reference so the next module continues where the previous one stopped.
type BindingCounter struct {
	Group uint32
	Next  uint32
}

// NewBindingCounter starts a counter after the given number of fixed bindings.
func NewBindingCounter(group, first uint32) *BindingCounter {
	return &BindingCounter{Group: group, Next: first}
}

// Claim returns the next free index and advances the counter.
func (c *BindingCounter) Claim() uint32 {
	i := c.Next
	c.Next++
	return i
}

// PushConstantMode selects how push constant blocks are expressed.
type PushConstantMode int

const (
	// PushConstantsNative declares a var<push_constant> block.
	PushConstantsNative PushConstantMode = iota
	// PushConstantsUniform emulates the block with a dynamically offset uniform buffer in
	// PushConstantGroup, for backends without push constants.
	PushConstantsUniform
)

// PushConstantGroup is the bind group reserved for emulated push constants.
const PushConstantGroup = 2

// PushConstantMember is one scalar or vector member of a push constant block.
type PushConstantMember struct {
	Name string
	Type string
}

// PushConstantBlock describes the small per-draw constant block of a program.
type PushConstantBlock struct {
	TypeName string
	VarName  string
	Members  []PushConstantMember
	Stages   wgpu.ShaderStage
}

// Size returns the std430 size of the block in bytes.
func (p PushConstantBlock) Size() uint32 {
	var offset, maxAlign uint64 = 0, 4
	for _, m := range p.Members {
		l, ok := primitiveLayout(m.Type)
		if !ok {
			continue
		}
		offset = common.AlignUp(offset, l.align) + l.size
		maxAlign = max(maxAlign, l.align)
	}
	return uint32(common.AlignUp(offset, maxAlign))
}

// Offset returns the byte offset of the named member, or -1.
func (p PushConstantBlock) Offset(name string) int {
	var offset uint64
	for _, m := range p.Members {
		l, _ := primitiveLayout(m.Type)
		offset = common.AlignUp(offset, l.align)
		if m.Name == name {
			return int(offset)
		}
		offset += l.size
	}
	return -1
}

func (p PushConstantBlock) structSource() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s {\n", p.TypeName)
	for _, m := range p.Members {
		fmt.Fprintf(&sb, "    %s: %s,\n", m.Name, m.Type)
	}
	sb.WriteString("}")
	return sb.String()
}
