package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-castor/common"
)

// typeLayout is the host-shareable size and alignment of a WGSL type.
type typeLayout struct {
	size  uint64
	align uint64
}

var scalarLayouts = map[string]typeLayout{
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"bool": {4, 4},
	"f16":  {2, 2},
}

// shorthand suffixes of the predeclared aliases, as in vec3f or mat4x4h
var shorthandScalars = map[byte]string{
	'f': "f32",
	'i': "i32",
	'u': "u32",
	'h': "f16",
}

// MemberLayout is the placement of one struct member.
type MemberLayout struct {
	Name   string
	Type   string
	Offset uint64
	Size   uint64
}

// StructLayout is the host-shareable placement of a WGSL struct, as used for storage
// buffers. CPU code writing the struct must use these offsets.
type StructLayout struct {
	Name    string
	Size    uint64
	Align   uint64
	Members []MemberLayout
}

// Member returns the layout of the named member.
func (l StructLayout) Member(name string) (MemberLayout, bool) {
	for _, m := range l.Members {
		if m.Name == name {
			return m, true
		}
	}
	return MemberLayout{}, false
}

// typeArgs splits "texture_2d<f32>" into "texture_2d" and "f32". Types without template
// arguments come back unchanged with empty args.
func typeArgs(typ string) (base, args string) {
	base, args, ok := strings.Cut(typ, "<")
	if !ok {
		return typ, ""
	}
	return strings.TrimSpace(base), strings.TrimSpace(strings.TrimSuffix(args, ">"))
}

// vectorShape reports the scalar type and component count of a scalar or vector type.
// Scalars have one component.
func vectorShape(typ string) (string, int, bool) {
	if _, ok := scalarLayouts[typ]; ok {
		return typ, 1, true
	}
	base, arg := typeArgs(typ)
	if arg == "" && len(base) == 5 {
		s, ok := shorthandScalars[base[4]]
		if !ok {
			return "", 0, false
		}
		base, arg = base[:4], s
	}
	if len(base) != 4 || !strings.HasPrefix(base, "vec") || base[3] < '2' || base[3] > '4' {
		return "", 0, false
	}
	if _, ok := scalarLayouts[arg]; !ok {
		return "", 0, false
	}
	return arg, int(base[3] - '0'), true
}

func vectorLayout(scalar typeLayout, n int) typeLayout {
	if n == 1 {
		return scalar
	}
	// vec3 aligns like vec4
	lanes := n
	if n == 3 {
		lanes = 4
	}
	return typeLayout{uint64(n) * scalar.size, uint64(lanes) * scalar.size}
}

// primitiveLayout computes the layout of scalar, vector, matrix and atomic types.
func primitiveLayout(typ string) (typeLayout, bool) {
	if scalar, n, ok := vectorShape(typ); ok {
		return vectorLayout(scalarLayouts[scalar], n), true
	}
	base, arg := typeArgs(typ)
	if arg == "" && len(base) == 7 {
		if s, ok := shorthandScalars[base[6]]; ok {
			base, arg = base[:6], s
		}
	}
	switch {
	case base == "atomic" && (arg == "u32" || arg == "i32"):
		return scalarLayouts[arg], true
	case len(base) == 6 && strings.HasPrefix(base, "mat") && base[4] == 'x':
		cols, rows := int(base[3]-'0'), int(base[5]-'0')
		scalar, ok := scalarLayouts[arg]
		if !ok || cols < 2 || cols > 4 || rows < 2 || rows > 4 {
			return typeLayout{}, false
		}
		column := vectorLayout(scalar, rows)
		return typeLayout{uint64(cols) * common.AlignUp(column.size, column.align), column.align}, true
	}
	return typeLayout{}, false
}

// layoutResolver computes struct and array layouts of one source on demand and caches
// them. Structs reference each other by name in any declaration order.
type layoutResolver struct {
	structs  map[string]wgslStruct
	resolved map[string]StructLayout
	active   map[string]bool
}

func newLayoutResolver(structs []wgslStruct) *layoutResolver {
	r := &layoutResolver{
		structs:  make(map[string]wgslStruct, len(structs)),
		resolved: make(map[string]StructLayout),
		active:   make(map[string]bool),
	}
	for _, s := range structs {
		r.structs[s.name] = s
	}
	return r
}

// resolve returns the layout of any host-shareable type. A runtime-sized array counts
// as a single element, which is also the smallest buffer that can be bound to it.
func (r *layoutResolver) resolve(typ string) (typeLayout, bool) {
	typ = strings.TrimSpace(typ)
	if l, ok := primitiveLayout(typ); ok {
		return l, true
	}
	if base, args := typeArgs(typ); base == "array" {
		return r.resolveArray(args)
	}
	s, err := r.layout(typ)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{s.Size, s.Align}, true
}

func (r *layoutResolver) resolveArray(args string) (typeLayout, bool) {
	parts := splitTopLevel(args, ',')
	elem, ok := r.resolve(parts[0])
	if !ok {
		return typeLayout{}, false
	}
	stride := common.AlignUp(elem.size, elem.align)
	count := uint64(1)
	if len(parts) > 1 {
		n, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return typeLayout{}, false
		}
		count = n
	}
	return typeLayout{count * stride, elem.align}, true
}

// layout places the members of the named struct. Builtin members are not part of
// buffer memory and are skipped.
func (r *layoutResolver) layout(name string) (StructLayout, error) {
	if l, ok := r.resolved[name]; ok {
		return l, nil
	}
	s, ok := r.structs[name]
	if !ok {
		return StructLayout{}, fmt.Errorf("struct %s not declared", name)
	}
	if r.active[name] {
		return StructLayout{}, fmt.Errorf("struct %s contains itself", name)
	}
	r.active[name] = true
	defer delete(r.active, name)

	out := StructLayout{Name: name, Align: 1}
	var offset uint64
	for _, f := range s.fields {
		if f.builtin {
			continue
		}
		l, ok := r.resolve(f.typ)
		if !ok {
			return StructLayout{}, fmt.Errorf("struct %s: cannot resolve member %s of type %s", name, f.name, f.typ)
		}
		offset = common.AlignUp(offset, l.align)
		out.Members = append(out.Members, MemberLayout{Name: f.name, Type: f.typ, Offset: offset, Size: l.size})
		offset += l.size
		out.Align = max(out.Align, l.align)
	}
	out.Size = common.AlignUp(offset, out.Align)
	r.resolved[name] = out
	return out, nil
}

// LayoutStruct computes member offsets of the named struct declared in source. Struct
// members of other struct types declared in the same source are resolved.
//
// Parameters:
//   - source: WGSL source declaring the struct
//   - name: the struct type name
//
// Returns:
//   - StructLayout: the placement of every member
//   - error: when the struct is missing or a member type cannot be resolved
func LayoutStruct(source, name string) (StructLayout, error) {
	return newLayoutResolver(parseStructs(stripComments(source))).layout(name)
}
