package shader

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrDuplicateFunction is returned when a function name is implemented twice in one writer.
var ErrDuplicateFunction = errors.New("shader: function already implemented")

// roleRegex constrains provider roles to the identifier form annotations accept.
var roleRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// EntryStage identifies the pipeline stage of an entry point.
type EntryStage int

const (
	EntryVertex EntryStage = iota
	EntryFragment
	EntryCompute
)

func (s EntryStage) attribute() string {
	switch s {
	case EntryVertex:
		return "@vertex"
	case EntryFragment:
		return "@fragment"
	}
	return "@compute"
}

func (s EntryStage) shaderType() ShaderType {
	switch s {
	case EntryVertex:
		return ShaderTypeVertex
	case EntryFragment:
		return ShaderTypeFragment
	}
	return ShaderTypeCompute
}

// Param is a function parameter or an entry point input; Name may carry attributes.
type Param struct {
	Name string
	Type string
}

// Function is a declared shader function.
type Function struct {
	Name   string
	Params []Param
	Return string
	body   string
}

func (f *Function) signature() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Name + ": " + closeTemplates(p.Type)
	}
	sig := fmt.Sprintf("fn %s(%s)", f.Name, strings.Join(params, ", "))
	if f.Return != "" {
		sig += " -> " + closeTemplates(f.Return)
	}
	return sig
}

type entryPoint struct {
	stage EntryStage
	attrs string
	fn    *Function
}

// Writer accumulates one shader permutation. Modules declare structs, constants,
// bindings and functions into it; Finish turns the result into a Program.
//
// A Writer is owned by a single generation call and is not safe for concurrent use.
// The first error is sticky: later calls become no-ops and Finish reports it.
type Writer struct {
	label  string
	mode   PushConstantMode
	logger *slog.Logger
	err    error

	includes  []AnnotationArg
	structSrc []string
	constants []string
	names     map[string]bool

	bindings []Binding
	slots    map[[2]uint32]string

	pushConstants *PushConstantBlock

	functions   []*Function
	byName      map[string]*Function
	entryPoints []entryPoint

	declared map[string]int
	calls    map[string]int
}

// WriterBuilderOption configures a Writer during construction.
type WriterBuilderOption func(*Writer)

// WithLabel sets the label used in log lines and errors.
func WithLabel(label string) WriterBuilderOption {
	return func(w *Writer) {
		w.label = label
	}
}

// WithPushConstantMode selects native or emulated push constants.
func WithPushConstantMode(mode PushConstantMode) WriterBuilderOption {
	return func(w *Writer) {
		w.mode = mode
	}
}

// WithWriterLogger sets the logger.
func WithWriterLogger(logger *slog.Logger) WriterBuilderOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// NewWriter creates an empty shader writer.
//
// Parameters:
//   - opts: variadic list of WriterBuilderOption functions
//
// Returns:
//   - *Writer: the writer
func NewWriter(opts ...WriterBuilderOption) *Writer {
	w := &Writer{
		label:    "shader",
		logger:   slog.Default(),
		names:    make(map[string]bool),
		slots:    make(map[[2]uint32]string),
		byName:   make(map[string]*Function),
		declared: make(map[string]int),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Err returns the sticky error, if any.
func (w *Writer) Err() error { return w.err }

// Mode returns the push constant mode.
func (w *Writer) Mode() PushConstantMode { return w.mode }

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = fmt.Errorf("%s: %w", w.label, err)
	}
}

// Include injects a registered struct definition once.
//
// Parameters:
//   - arg: the struct type key
func (w *Writer) Include(arg AnnotationArg) {
	if w.err != nil || slices.Contains(w.includes, arg) {
		return
	}
	if _, ok := structSources[arg]; !ok {
		w.fail(fmt.Errorf("unknown struct type %q", arg))
		return
	}
	w.includes = append(w.includes, arg)
}

// StructType returns the WGSL type name of a registered struct.
func (w *Writer) StructType(arg AnnotationArg) string {
	return structSources[arg].Type
}

// DeclareStruct declares an ad-hoc struct once. Redeclaring the same name is a no-op.
//
// Parameters:
//   - name: the struct type name
//   - members: WGSL member declarations, e.g. "colour: vec3<f32>"
func (w *Writer) DeclareStruct(name string, members ...string) {
	if w.err != nil || w.names[name] {
		return
	}
	w.names[name] = true
	decls := make([]string, len(members))
	for i, m := range members {
		decls[i] = closeTemplates(m)
	}
	w.structSrc = append(w.structSrc, fmt.Sprintf("struct %s {\n    %s,\n}", name, strings.Join(decls, ",\n    ")))
}

// DeclareConstant declares a module-scope constant once.
func (w *Writer) DeclareConstant(name, typ, value string) string {
	if w.err == nil && !w.names[name] {
		w.names[name] = true
		w.constants = append(w.constants, fmt.Sprintf("const %s: %s = %s;", name, closeTemplates(typ), value))
	}
	return name
}

// DeclareBinding declares a descriptor binding. Claiming an occupied slot is an error.
//
// Parameters:
//   - b: the binding; Type is filled in from the registry when Struct is set
//
// Returns:
//   - string: the binding's variable name
func (w *Writer) DeclareBinding(b Binding) string {
	if w.err != nil {
		return b.Name
	}
	if b.Struct != "" {
		w.Include(b.Struct)
		b.Type = structSources[b.Struct].Type
		if b.Array {
			b.Type = "array<" + b.Type + ">"
		}
	}
	if b.Role != "" && !roleRegex.MatchString(string(b.Role)) {
		w.fail(fmt.Errorf("invalid binding role %q", b.Role))
		return b.Name
	}
	slot := [2]uint32{b.Group, b.Index}
	if owner, ok := w.slots[slot]; ok {
		w.fail(fmt.Errorf("%w: group %d binding %d held by %q, requested by %q", ErrBindingConflict, b.Group, b.Index, owner, b.Name))
		return b.Name
	}
	if b.Stages == wgpu.ShaderStageNone {
		b.Stages = wgpu.ShaderStageVertex | wgpu.ShaderStageFragment | wgpu.ShaderStageCompute
	}
	w.slots[slot] = b.Name
	w.bindings = append(w.bindings, b)
	return b.Name
}

// DeclarePushConstants declares the program's push constant block. Under emulation the
// block becomes a dynamically offset uniform at PushConstantGroup binding 0.
//
// Parameters:
//   - block: the block description
//
// Returns:
//   - string: the variable through which members are read
func (w *Writer) DeclarePushConstants(block PushConstantBlock) string {
	if w.err != nil {
		return block.VarName
	}
	if w.pushConstants != nil {
		w.fail(errors.New("push constants declared twice"))
		return block.VarName
	}
	w.pushConstants = &block
	if w.mode == PushConstantsUniform {
		w.DeclareBinding(Binding{
			Group:         PushConstantGroup,
			Index:         0,
			Name:          block.VarName,
			Kind:          BindingUniform,
			Type:          block.TypeName,
			Stages:        block.Stages,
			Provider:      AnnotationArgPushConstants,
			DynamicOffset: true,
		})
	}
	return block.VarName
}

// ImplementFunction declares a function. A second implementation of the same name
// fails with ErrDuplicateFunction; modules guard against that with FunctionCell.
//
// Parameters:
//   - name: the function name
//   - params: the parameters
//   - ret: the return type, "" for none
//   - body: emits the statements
//
// Returns:
//   - *Function: the declared function
//   - error: ErrDuplicateFunction, or the writer's sticky error including one raised
//     while the body was emitted
func (w *Writer) ImplementFunction(name string, params []Param, ret string, body func(*FunctionBuilder)) (*Function, error) {
	if w.err != nil {
		return nil, w.err
	}
	if _, ok := w.byName[name]; ok {
		err := fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
		w.fail(err)
		return nil, w.err
	}
	fn := &Function{Name: name, Params: params, Return: ret}
	fb := newFunctionBuilder(w)
	if body != nil {
		body(fb)
	}
	if w.err != nil {
		return nil, w.err
	}
	fn.body = fb.String()
	w.byName[name] = fn
	w.functions = append(w.functions, fn)
	w.declared[name]++
	return fn, nil
}

// ImplementEntryPoint declares a stage entry point.
//
// Parameters:
//   - stage: the pipeline stage
//   - name: the entry point name
//   - attrs: extra attributes such as "@workgroup_size(8, 8, 1)"
//   - params: the stage inputs
//   - ret: the stage output type, "" for none
//   - body: emits the statements
func (w *Writer) ImplementEntryPoint(stage EntryStage, name, attrs string, params []Param, ret string, body func(*FunctionBuilder)) {
	if w.err != nil {
		return
	}
	if _, ok := w.byName[name]; ok {
		w.fail(fmt.Errorf("%w: %s", ErrDuplicateFunction, name))
		return
	}
	fn := &Function{Name: name, Params: params, Return: ret}
	fb := newFunctionBuilder(w)
	body(fb)
	fn.body = fb.String()
	w.byName[name] = fn
	w.declared[name]++
	w.entryPoints = append(w.entryPoints, entryPoint{stage: stage, attrs: attrs, fn: fn})
}

// Call returns a call expression and counts the call site.
//
// Parameters:
//   - fn: the callee
//   - args: argument expressions
//
// Returns:
//   - string: the call expression
func (w *Writer) Call(fn *Function, args ...string) string {
	if fn == nil {
		w.fail(errors.New("call to an undeclared function"))
		return "0"
	}
	w.calls[fn.Name]++
	return fmt.Sprintf("%s(%s)", fn.Name, strings.Join(args, ", "))
}

// Function returns a declared function by name.
func (w *Writer) Function(name string) (*Function, bool) {
	fn, ok := w.byName[name]
	return fn, ok
}

// DeclarationCount returns how many times name was implemented (0 or 1 on success).
func (w *Writer) DeclarationCount(name string) int { return w.declared[name] }

// CallCount returns how many call sites reference name.
func (w *Writer) CallCount(name string) int { return w.calls[name] }

// Bindings returns the declared bindings in declaration order.
func (w *Writer) Bindings() []Binding { return slices.Clone(w.bindings) }

// Binding returns the declared binding with the given variable name.
func (w *Writer) Binding(name string) (Binding, bool) {
	for _, b := range w.bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// Source renders the annotated WGSL module. Annotations are expanded by the
// pre-processor when the program's shaders are built.
func (w *Writer) Source() string {
	var sb strings.Builder
	for _, inc := range w.includes {
		fmt.Fprintf(&sb, "//%sinclude %s\n", annotationPrefix, inc)
	}
	for _, s := range w.structSrc {
		sb.WriteString(s)
		sb.WriteString("\n\n")
	}
	if w.pushConstants != nil {
		sb.WriteString(w.pushConstants.structSource())
		sb.WriteString("\n")
		if w.mode == PushConstantsNative {
			fmt.Fprintf(&sb, "var<push_constant> %s: %s;\n", w.pushConstants.VarName, w.pushConstants.TypeName)
		}
		sb.WriteString("\n")
	}
	for _, c := range w.constants {
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	if len(w.constants) > 0 {
		sb.WriteString("\n")
	}
	for _, b := range w.bindings {
		if b.Provider != "" {
			fmt.Fprintf(&sb, "//%sprovider %d %d %s", annotationPrefix, b.Group, b.Index, b.Provider)
			if b.Role != "" {
				fmt.Fprintf(&sb, " %s", b.Role)
			}
			sb.WriteString("\n")
		}
		if space, ok := b.Kind.annotationSpace(); ok && b.Struct != "" {
			typ := string(b.Struct)
			if b.Array {
				typ = "array<" + typ + ">"
			}
			fmt.Fprintf(&sb, "//%sgroup %d %d %s %s %s\n", annotationPrefix, b.Group, b.Index, space, b.Name, typ)
			continue
		}
		sb.WriteString(b.Declaration())
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	for _, fn := range w.functions {
		fmt.Fprintf(&sb, "%s {\n%s}\n\n", fn.signature(), fn.body)
	}
	for _, ep := range w.entryPoints {
		sb.WriteString(ep.stage.attribute())
		if ep.attrs != "" {
			sb.WriteString(" " + ep.attrs)
		}
		fmt.Fprintf(&sb, "\n%s {\n%s}\n\n", ep.fn.signature(), ep.fn.body)
	}
	return sb.String()
}

// Finish builds the program from the declared entry points.
//
// Parameters:
//   - key: the program key, used as shader label
//
// Returns:
//   - *Program: the program with one Shader per declared stage
//   - error: the sticky error, a missing entry point, or a pre-processing failure
func (w *Writer) Finish(key string) (*Program, error) {
	if w.err != nil {
		return nil, w.err
	}
	if len(w.entryPoints) == 0 {
		return nil, fmt.Errorf("%s: no entry point declared", w.label)
	}
	src := w.Source()
	p := &Program{
		Key:      key,
		Bindings: w.Bindings(),
	}
	if w.pushConstants != nil {
		pc := *w.pushConstants
		p.PushConstants = &pc
		p.PushConstantMode = w.mode
	}
	for _, ep := range w.entryPoints {
		s, err := NewShader(key, ep.stage.shaderType(), src, ep.fn.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", w.label, err)
		}
		switch ep.stage {
		case EntryVertex:
			p.Vertex = s
		case EntryFragment:
			p.Fragment = s
		case EntryCompute:
			p.Compute = s
		}
		p.Source = s.Source()
	}
	w.logger.Debug("shader program generated",
		"label", w.label,
		"key", key,
		"functions", len(w.functions),
		"bindings", len(w.bindings))
	return p, nil
}
