package shader

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	structDeclRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	resourceDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	entryRegexes = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}
)

type vertexKey struct {
	scalar string
	n      int
}

var vertexFormats = map[vertexKey]wgpu.VertexFormat{
	{"f32", 1}: wgpu.VertexFormatFloat32,
	{"f32", 2}: wgpu.VertexFormatFloat32x2,
	{"f32", 3}: wgpu.VertexFormatFloat32x3,
	{"f32", 4}: wgpu.VertexFormatFloat32x4,
	{"i32", 1}: wgpu.VertexFormatSint32,
	{"i32", 2}: wgpu.VertexFormatSint32x2,
	{"i32", 3}: wgpu.VertexFormatSint32x3,
	{"i32", 4}: wgpu.VertexFormatSint32x4,
	{"u32", 1}: wgpu.VertexFormatUint32,
	{"u32", 2}: wgpu.VertexFormatUint32x2,
	{"u32", 3}: wgpu.VertexFormatUint32x3,
	{"u32", 4}: wgpu.VertexFormatUint32x4,
	{"f16", 2}: wgpu.VertexFormatFloat16x2,
	{"f16", 4}: wgpu.VertexFormatFloat16x4,
}

type wgslField struct {
	name     string
	typ      string
	location int
	builtin  bool
}

type wgslStruct struct {
	name   string
	fields []wgslField
}

// reflection is the comment-free text of one expanded stage together with its structs.
type reflection struct {
	src     string
	structs []wgslStruct
	layouts *layoutResolver
}

func reflectSource(source string) *reflection {
	src := stripComments(source)
	structs := parseStructs(src)
	return &reflection{src: src, structs: structs, layouts: newLayoutResolver(structs)}
}

// entryPoint returns the first function carrying the stage attribute, or "".
func (r *reflection) entryPoint(t ShaderType) string {
	re, ok := entryRegexes[t]
	if !ok {
		return ""
	}
	if m := re.FindStringSubmatch(r.src); m != nil {
		return m[1]
	}
	return ""
}

// workgroupSize reads the @workgroup_size of the entry point. Omitted dimensions and
// dimensions given as expressions are 1.
func (r *reflection) workgroupSize(entryPoint string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	head := r.src
	fn := regexp.MustCompile(`\bfn\s+` + regexp.QuoteMeta(entryPoint) + `\s*\(`)
	if loc := fn.FindStringIndex(head); loc != nil {
		head = head[:loc[0]]
	}
	at := strings.LastIndex(head, "@workgroup_size")
	if at < 0 {
		return size
	}
	_, args, _ := cutAttribute(head[at+1:])
	for i, dim := range splitTopLevel(args, ',') {
		if i >= len(size) {
			break
		}
		if v, err := strconv.ParseUint(strings.TrimSpace(dim), 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

// vertexLayouts turns every struct made only of @location members into one tightly
// packed vertex buffer. Structs mixing in builtins are stage outputs. Passes pulling
// vertices from storage buffers have none.
func (r *reflection) vertexLayouts() []wgpu.VertexBufferLayout {
	var out []wgpu.VertexBufferLayout
	for _, s := range r.structs {
		if l, ok := vertexBuffer(s); ok {
			out = append(out, l)
		}
	}
	return out
}

func vertexBuffer(s wgslStruct) (wgpu.VertexBufferLayout, bool) {
	l := wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
	for _, f := range s.fields {
		if f.builtin || f.location < 0 {
			return wgpu.VertexBufferLayout{}, false
		}
		scalar, n, ok := vectorShape(f.typ)
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		format, ok := vertexFormats[vertexKey{scalar, n}]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		l.Attributes = append(l.Attributes, wgpu.VertexAttribute{
			Format:         format,
			Offset:         l.ArrayStride,
			ShaderLocation: uint32(f.location),
		})
		l.ArrayStride += uint64(n) * scalarLayouts[scalar].size
	}
	return l, len(l.Attributes) > 0
}

// bindings reflects every resource declaration. Buffer entries get the size of their
// store type as MinBindingSize when it can be computed.
func (r *reflection) bindings(visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, []ReflectedBinding) {
	layouts := make(map[int]wgpu.BindGroupLayoutDescriptor)
	var reflected []ReflectedBinding
	for _, m := range resourceDeclRegex.FindAllStringSubmatch(r.src, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		space, name, typ := strings.TrimSpace(m[3]), m[4], strings.TrimSpace(m[5])

		kind := kindOf(space, typ)
		entry := layoutEntry(uint32(binding), visibility, kind, typ)
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if l, ok := r.layouts.resolve(typ); ok {
				entry.Buffer.MinBindingSize = l.size
			}
		}
		d := layouts[group]
		d.Entries = append(d.Entries, entry)
		layouts[group] = d

		reflected = append(reflected, ReflectedBinding{
			Group:       uint32(group),
			Binding:     uint32(binding),
			Name:        name,
			Kind:        kind,
			AccessKnown: true,
		})
	}
	for _, d := range layouts {
		slices.SortFunc(d.Entries, func(a, b wgpu.BindGroupLayoutEntry) int {
			return cmp.Compare(a.Binding, b.Binding)
		})
	}
	sortReflected(reflected)
	return layouts, reflected
}

func parseStructs(src string) []wgslStruct {
	var out []wgslStruct
	for _, m := range structDeclRegex.FindAllStringSubmatch(src, -1) {
		s := wgslStruct{name: m[1]}
		for _, decl := range splitTopLevel(m[2], ',') {
			if f, ok := parseField(decl); ok {
				s.fields = append(s.fields, f)
			}
		}
		out = append(out, s)
	}
	return out
}

// parseField reads "@location(0) @interpolate(flat) name: type".
func parseField(decl string) (wgslField, bool) {
	f := wgslField{location: -1}
	rest := strings.TrimSpace(decl)
	for strings.HasPrefix(rest, "@") {
		var attr, arg string
		attr, arg, rest = cutAttribute(rest[1:])
		switch attr {
		case "builtin":
			f.builtin = true
		case "location":
			if n, err := strconv.Atoi(arg); err == nil {
				f.location = n
			}
		}
		rest = strings.TrimSpace(rest)
	}
	name, typ, ok := strings.Cut(rest, ":")
	if !ok {
		return wgslField{}, false
	}
	f.name, f.typ = strings.TrimSpace(name), strings.TrimSpace(typ)
	return f, f.name != "" && f.typ != ""
}

// cutAttribute splits "name(arg) rest" after the '@'. Attributes without arguments
// return an empty arg.
func cutAttribute(s string) (name, arg, rest string) {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if end < 0 {
		return s, "", ""
	}
	name, rest = s[:end], strings.TrimLeft(s[end:], " \t")
	if strings.HasPrefix(rest, "(") {
		if closing := strings.IndexByte(rest, ')'); closing >= 0 {
			arg, rest = strings.TrimSpace(rest[1:closing]), rest[closing+1:]
		}
	}
	return name, arg, rest
}

// splitTopLevel splits s at sep, ignoring separators nested in <> or ().
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '<' || c == '(':
			depth++
		case (c == '>' || c == ')') && depth > 0:
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// stripComments removes line comments and nested block comments in one pass. Newlines
// inside block comments are kept.
func stripComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	depth := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		var next byte
		if i+1 < len(src) {
			next = src[i+1]
		}
		switch {
		case c == '/' && next == '*':
			depth++
			i++
		case depth > 0 && c == '*' && next == '/':
			depth--
			i++
		case depth > 0:
			if c == '\n' {
				sb.WriteByte('\n')
			}
		case c == '/' && next == '/':
			for i+1 < len(src) && src[i+1] != '\n' {
				i++
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
