package shader

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a Shader is built for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex stage of a graphics program.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment stage of a graphics program.
	ShaderTypeFragment
)

// Stage returns the backend stage flag of the shader type.
func (t ShaderType) Stage() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	}
	return wgpu.ShaderStageNone
}

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	case ShaderTypeCompute:
		return "compute"
	}
	return fmt.Sprintf("ShaderType(%d)", int(t))
}

// Shader is one stage of a generated program: the expanded WGSL plus everything the
// backend needs to build a pipeline from it, reflected from the source itself.
type Shader interface {
	// Key returns the program key the shader was generated for.
	Key() string

	// Source returns the expanded WGSL source.
	Source() string

	// ShaderType returns the stage of the shader.
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	EntryPoint() string

	// WorkgroupSize returns the workgroup size of a compute shader, [0, 0, 0] otherwise.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// VertexLayouts returns the vertex buffer layouts of the vertex input structs in
	// declaration order. Empty for fragment and compute shaders.
	VertexLayouts() []wgpu.VertexBufferLayout

	// BindGroupLayoutDescriptors returns the layouts reflected from the source, keyed by
	// group index, with entries sorted by binding.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// Reflected returns every binding declared in the source, ordered by group and binding.
	Reflected() []ReflectedBinding

	// Declarations returns the group and provider annotations found while expanding the
	// source, in source order.
	Declarations() []Annotation
}

type shader struct {
	key          string
	shaderType   ShaderType
	source       string
	entryPoint   string
	workgroup    [3]uint32
	vertex       []wgpu.VertexBufferLayout
	layouts      map[int]wgpu.BindGroupLayoutDescriptor
	reflected    []ReflectedBinding
	declarations []Annotation
}

var _ Shader = &shader{}

// NewShader expands and reflects generated WGSL source for one stage.
//
// Parameters:
//   - key: the program key, used as module label
//   - shaderType: the stage
//   - source: WGSL source, possibly containing annotations
//   - entryPoint: the entry point name; "" picks the first entry point of the stage
//
// Returns:
//   - Shader: the reflected shader
//   - error: a pre-processing error or a missing entry point
func NewShader(key string, shaderType ShaderType, source, entryPoint string) (Shader, error) {
	pp := NewPreProcessor()
	expanded, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("pre-process %s: %w", key, err)
	}
	r := reflectSource(expanded)
	if entryPoint == "" {
		entryPoint = r.entryPoint(shaderType)
	}
	if entryPoint == "" {
		return nil, fmt.Errorf("%s: no %s entry point", key, shaderType)
	}

	s := &shader{
		key:          key,
		shaderType:   shaderType,
		source:       expanded,
		entryPoint:   entryPoint,
		declarations: pp.Declarations(),
	}
	switch shaderType {
	case ShaderTypeVertex:
		s.vertex = r.vertexLayouts()
	case ShaderTypeCompute:
		s.workgroup = r.workgroupSize(entryPoint)
	}
	s.layouts, s.reflected = r.bindings(shaderType.Stage())
	return s, nil
}

func (s *shader) Key() string                              { return s.key }
func (s *shader) Source() string                           { return s.source }
func (s *shader) ShaderType() ShaderType                   { return s.shaderType }
func (s *shader) EntryPoint() string                       { return s.entryPoint }
func (s *shader) WorkgroupSize() [3]uint32                 { return s.workgroup }
func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout { return s.vertex }
func (s *shader) Reflected() []ReflectedBinding            { return s.reflected }
func (s *shader) Declarations() []Annotation               { return s.declarations }

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.layouts
}
