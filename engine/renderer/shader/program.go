package shader

import "github.com/cogentcore/webgpu/wgpu"

// Program is one generated shader permutation: the shared WGSL source, one Shader per
// declared stage and the CPU-side descriptor declarations used to build its layouts.
type Program struct {
	Key    string
	Source string

	Vertex   Shader
	Fragment Shader
	Compute  Shader

	Bindings         []Binding
	PushConstants    *PushConstantBlock
	PushConstantMode PushConstantMode
}

// Stages returns the stages the program carries.
func (p *Program) Stages() wgpu.ShaderStage {
	var s wgpu.ShaderStage
	if p.Vertex != nil {
		s |= wgpu.ShaderStageVertex
	}
	if p.Fragment != nil {
		s |= wgpu.ShaderStageFragment
	}
	if p.Compute != nil {
		s |= wgpu.ShaderStageCompute
	}
	return s
}

// IsCompute reports whether the program is a compute program.
func (p *Program) IsCompute() bool { return p.Compute != nil }

// Shaders returns the non-nil stage shaders in pipeline order.
func (p *Program) Shaders() []Shader {
	var out []Shader
	for _, s := range []Shader{p.Vertex, p.Fragment, p.Compute} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Reflected returns the bindings the program's source actually declares, as seen by
// each stage and merged.
func (p *Program) Reflected() []ReflectedBinding {
	seen := make(map[[2]uint32]bool)
	var out []ReflectedBinding
	for _, s := range p.Shaders() {
		for _, r := range s.Reflected() {
			slot := [2]uint32{r.Group, r.Binding}
			if seen[slot] {
				continue
			}
			seen[slot] = true
			out = append(out, r)
		}
	}
	sortReflected(out)
	return out
}

// Layouts returns the bind group layout descriptors built from the CPU-side
// declarations, keyed by group.
func (p *Program) Layouts() map[int]wgpu.BindGroupLayoutDescriptor {
	return LayoutDescriptors(p.Bindings)
}

// BindingsInGroup returns the declarations of one group ordered by index.
func (p *Program) BindingsInGroup(group uint32) []Binding {
	var out []Binding
	for _, b := range p.Bindings {
		if b.Group == group {
			out = append(out, b)
		}
	}
	sortBindings(out)
	return out
}
