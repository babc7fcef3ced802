// Generated WGSL carries @oxy: directives in single-line comments. They pull in the
// source of registered GPU structs, declare bindings typed by those structs, and tag
// each binding with the provider that feeds it, so techniques wire descriptor sets
// without matching variable names.
package shader

import (
	"fmt"
	"strconv"
	"strings"
)

const annotationPrefix = "@oxy:"

// AnnotationType is the directive word following the prefix.
type AnnotationType string

const (
	// annotationTypeInclude pastes the source of a registered struct once per module.
	//
	//	//@oxy:include <struct>
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup declares a binding whose type is a registered struct or
	// a runtime array of one.
	//
	//	//@oxy:group <group> <binding> <space> <name> <struct|array<struct>>
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeProvider tags the binding declared below it and emits nothing.
	//
	//	//@oxy:provider <group> <binding> <provider> [role]
	AnnotationTypeProvider AnnotationType = "provider"
)

// Annotation is one parsed directive. Args excludes the group and binding numbers.
type Annotation struct {
	Type AnnotationType
	Args []AnnotationArg
	// Line is 1-based.
	Line int
	// Group and Binding are -1 for include directives.
	Group   int
	Binding int
}

// Provider returns the provider of a provider directive.
func (a Annotation) Provider() AnnotationArg {
	if a.Type != AnnotationTypeProvider {
		return ""
	}
	return a.arg(0)
}

// Role returns the optional role of a provider directive.
func (a Annotation) Role() AnnotationArg {
	if a.Type != AnnotationTypeProvider {
		return ""
	}
	return a.arg(1)
}

func (a Annotation) arg(i int) AnnotationArg {
	if i < len(a.Args) {
		return a.Args[i]
	}
	return ""
}

// AnnotationArg is a directive argument: a struct key, an address space, a provider or
// a role.
type AnnotationArg string

// Struct keys. Each has an entry in structSources.
const (
	AnnotationArgScene            AnnotationArg = "scene"
	AnnotationArgNodeData         AnnotationArg = "node_data"
	AnnotationArgLight            AnnotationArg = "light"
	AnnotationArgLightHeader      AnnotationArg = "light_header"
	AnnotationArgClusterConfig    AnnotationArg = "cluster_config"
	AnnotationArgShadowData       AnnotationArg = "shadow_data"
	AnnotationArgTextureAnimation AnnotationArg = "texture_animation"
	AnnotationArgTextureConfig    AnnotationArg = "texture_config"
)

// Address spaces of group directives.
const (
	annotationSpaceUniform   AnnotationArg = "storage_uniform"
	annotationSpaceRead      AnnotationArg = "storage_read"
	annotationSpaceReadWrite AnnotationArg = "storage_read_write"
)

var addressSpaces = map[AnnotationArg]string{
	annotationSpaceUniform:   "var<uniform>",
	annotationSpaceRead:      "var<storage, read>",
	annotationSpaceReadWrite: "var<storage, read_write>",
}

// Providers tell a technique which of its resources feeds a binding.
const (
	// AnnotationArgTechnique marks the fixed bindings of the technique pass itself.
	AnnotationArgTechnique AnnotationArg = "technique"
	// AnnotationArgLights marks the light buffer, clusters and shadow maps.
	AnnotationArgLights AnnotationArg = "lights"
	// AnnotationArgReflection marks environment maps and the mipped scene.
	AnnotationArgReflection AnnotationArg = "reflection"
	AnnotationArgGI         AnnotationArg = "gi"
	AnnotationArgBackground AnnotationArg = "background"

	AnnotationArgTextureAnimations AnnotationArg = "texture_animations"
	AnnotationArgMaterials         AnnotationArg = "materials"
	// AnnotationArgVisibility marks the visibility buffer and raw vertex streams.
	AnnotationArgVisibility AnnotationArg = "visibility"
	// AnnotationArgPushConstants marks the emulated push constant buffer.
	AnnotationArgPushConstants AnnotationArg = "push_constants"
)

var providers = map[AnnotationArg]bool{
	AnnotationArgTechnique:         true,
	AnnotationArgLights:            true,
	AnnotationArgReflection:        true,
	AnnotationArgGI:                true,
	AnnotationArgBackground:        true,
	AnnotationArgTextureAnimations: true,
	AnnotationArgMaterials:         true,
	AnnotationArgVisibility:        true,
	AnnotationArgPushConstants:     true,
}

// annotationSyntax is the argument shape of one directive, counted after the slot.
type annotationSyntax struct {
	slot     bool
	min, max int
	check    func(args []string) error
}

var annotationSyntaxes = map[AnnotationType]annotationSyntax{
	annotationTypeInclude: {min: 1, max: 1, check: func(args []string) error {
		return checkStruct(args[0])
	}},
	AnnotationTypeBindingGroup: {slot: true, min: 3, max: 3, check: func(args []string) error {
		if _, ok := addressSpaces[AnnotationArg(args[0])]; !ok {
			return fmt.Errorf("unknown address space %q", args[0])
		}
		elem, _ := strings.CutPrefix(args[2], "array<")
		return checkStruct(strings.TrimSuffix(elem, ">"))
	}},
	AnnotationTypeProvider: {slot: true, min: 1, max: 2, check: func(args []string) error {
		if !providers[AnnotationArg(args[0])] {
			return fmt.Errorf("unknown provider %q", args[0])
		}
		if len(args) == 2 && !roleRegex.MatchString(args[1]) {
			return fmt.Errorf("invalid binding role %q", args[1])
		}
		return nil
	}},
}

func checkStruct(key string) error {
	if _, ok := structSources[AnnotationArg(key)]; !ok {
		return fmt.Errorf("unknown struct %q", key)
	}
	return nil
}

// parseAnnotation parses one source line. Lines that are not directives return nil
// without error.
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	comment, ok := strings.CutPrefix(strings.TrimSpace(line), "//")
	if !ok {
		return nil, nil
	}
	_, body, ok := strings.Cut(comment, annotationPrefix)
	if !ok {
		return nil, nil
	}
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	a := &Annotation{Type: AnnotationType(fields[0]), Line: lineNum, Group: -1, Binding: -1}
	syntax, ok := annotationSyntaxes[a.Type]
	if !ok {
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, fields[0])
	}
	args := fields[1:]
	if syntax.slot {
		if len(args) < 2 {
			return nil, fmt.Errorf("line %d: %s annotation needs a group and a binding", lineNum, a.Type)
		}
		var err error
		if a.Group, err = strconv.Atoi(args[0]); err != nil {
			return nil, fmt.Errorf("line %d: invalid group %q: %w", lineNum, args[0], err)
		}
		if a.Binding, err = strconv.Atoi(args[1]); err != nil {
			return nil, fmt.Errorf("line %d: invalid binding %q: %w", lineNum, args[1], err)
		}
		args = args[2:]
	}
	if len(args) < syntax.min || len(args) > syntax.max {
		return nil, fmt.Errorf("line %d: %s annotation takes %d to %d arguments, got %d", lineNum, a.Type, syntax.min, syntax.max, len(args))
	}
	if err := syntax.check(args); err != nil {
		return nil, fmt.Errorf("line %d: %s annotation: %w", lineNum, a.Type, err)
	}
	for _, s := range args {
		a.Args = append(a.Args, AnnotationArg(s))
	}
	return a, nil
}
