package shader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// ErrCompile is returned when generated source fails to parse, validate or translate.
var ErrCompile = errors.New("shader: compilation failed")

// Compiled is the backend-ready output of a program.
type Compiled struct {
	// SPIRV is the SPIR-V binary, nil when the compiler only reflects.
	SPIRV []byte
	// GLSL holds one translation per entry point when requested.
	GLSL map[string]string
	// Reflected lists the bindings the compiled module declares.
	Reflected []ReflectedBinding
}

// Compiler turns a generated program into backend modules. Every compiler verifies the
// program's CPU-side layout against what the shader really declares.
type Compiler interface {
	// Compile compiles p.
	//
	// Parameters:
	//   - p: the generated program
	//
	// Returns:
	//   - *Compiled: the compiled output
	//   - error: wraps ErrCompile or ErrBindingMismatch
	Compile(p *Program) (*Compiled, error)
}

// NagaTarget selects what NagaCompiler emits once a module validates.
type NagaTarget int

const (
	// NagaValidate stops after validation and reflection. Backends that take WGSL
	// modules need nothing more.
	NagaValidate NagaTarget = iota
	// NagaSPIRV also emits a SPIR-V binary. naga's SPIR-V writer rejects runtime-sized
	// arrays, so programs reading storage arrays fail at this step.
	NagaSPIRV
)

// NagaCompiler checks WGSL through the naga IR: parse, lower, validate, then reflect
// and optionally emit SPIR-V and GLSL.
type NagaCompiler struct {
	Target       NagaTarget
	SPIRVVersion spirv.Version
	Debug        bool
	// GLSL enables a GLSL translation per entry point when non-nil.
	GLSL *glsl.Version
}

var _ Compiler = NagaCompiler{}

// NewNagaCompiler returns a compiler that validates and reflects without emitting a
// binary.
func NewNagaCompiler() NagaCompiler {
	return NagaCompiler{Target: NagaValidate}
}

// NewSPIRVCompiler returns a compiler emitting SPIR-V 1.3.
func NewSPIRVCompiler() NagaCompiler {
	return NagaCompiler{Target: NagaSPIRV, SPIRVVersion: spirv.Version1_3}
}

// Compile implements Compiler.
func (c NagaCompiler) Compile(p *Program) (*Compiled, error) {
	ast, err := naga.Parse(p.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: parse: %v", ErrCompile, p.Key, err)
	}
	module, err := naga.LowerWithSource(ast, p.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: lower: %v", ErrCompile, p.Key, err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: validate: %v", ErrCompile, p.Key, err)
	}
	if len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, v := range verrs {
			msgs[i] = v.Message
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrCompile, p.Key, strings.Join(msgs, "; "))
	}
	out := &Compiled{Reflected: ReflectModule(module)}

	if c.Target == NagaSPIRV {
		version := c.SPIRVVersion
		if version == (spirv.Version{}) {
			version = spirv.Version1_3
		}
		out.SPIRV, err = naga.GenerateSPIRV(module, spirv.Options{Version: version, Debug: c.Debug})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: spirv: %v", ErrCompile, p.Key, err)
		}
	}

	if c.GLSL != nil {
		out.GLSL = make(map[string]string, len(module.EntryPoints))
		for _, ep := range module.EntryPoints {
			src, _, err := glsl.Compile(module, glsl.Options{LangVersion: *c.GLSL, EntryPoint: ep.Name})
			if err != nil {
				return nil, fmt.Errorf("%w: %s: glsl %s: %v", ErrCompile, p.Key, ep.Name, err)
			}
			out.GLSL[ep.Name] = src
		}
	}

	if err := ValidateLayout(p.Bindings, out.Reflected); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Key, err)
	}
	return out, nil
}

// ReflectModule lists the resource bindings of a lowered module. The IR does not keep
// the storage access mode, so storage bindings are reported with AccessKnown false.
//
// Parameters:
//   - m: the lowered module
//
// Returns:
//   - []ReflectedBinding: the bindings ordered by group and binding
func ReflectModule(m *ir.Module) []ReflectedBinding {
	var out []ReflectedBinding
	for _, g := range m.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		r := ReflectedBinding{
			Group:       g.Binding.Group,
			Binding:     g.Binding.Binding,
			Name:        g.Name,
			AccessKnown: true,
		}
		switch g.Space {
		case ir.SpaceUniform:
			r.Kind = BindingUniform
		case ir.SpaceStorage:
			r.Kind = BindingStorage
			r.AccessKnown = false
		default:
			r.Kind = handleKind(m, g.Type)
		}
		out = append(out, r)
	}
	sortReflected(out)
	return out
}

func handleKind(m *ir.Module, h ir.TypeHandle) BindingKind {
	if int(h) >= len(m.Types) {
		return BindingSampledTexture
	}
	switch t := m.Types[h].Inner.(type) {
	case ir.SamplerType:
		if t.Comparison {
			return BindingComparisonSampler
		}
		return BindingSampler
	case ir.ImageType:
		switch t.Class {
		case ir.ImageClassDepth:
			return BindingDepthTexture
		case ir.ImageClassStorage:
			return BindingStorageTexture
		}
	}
	return BindingSampledTexture
}

// ReflectionCompiler verifies layouts from the source-level reflection of each stage
// without producing a binary. Backends that consume WGSL directly use it.
type ReflectionCompiler struct{}

var _ Compiler = ReflectionCompiler{}

// Compile implements Compiler.
func (ReflectionCompiler) Compile(p *Program) (*Compiled, error) {
	if len(p.Shaders()) == 0 {
		return nil, fmt.Errorf("%w: %s: no stages", ErrCompile, p.Key)
	}
	reflected := p.Reflected()
	if err := ValidateLayout(p.Bindings, reflected); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Key, err)
	}
	return &Compiled{Reflected: reflected}, nil
}
