package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-castor/engine/camera"
	"github.com/Carmen-Shannon/oxy-castor/engine/light"
	"github.com/Carmen-Shannon/oxy-castor/engine/model"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/texture"
)

// structSource is the embedded WGSL of a GPU struct and the type name it declares.
type structSource struct {
	Source string
	Type   string
}

// structSources holds every struct key directives may name. It is read only.
var structSources = map[AnnotationArg]structSource{
	AnnotationArgScene:            {camera.GPUSceneUniformSource, "SceneUniform"},
	AnnotationArgNodeData:         {model.GPUNodeDataSource, "NodeData"},
	AnnotationArgLight:            {light.GPULightSource, "Light"},
	AnnotationArgLightHeader:      {light.GPULightHeaderSource, "LightHeader"},
	AnnotationArgClusterConfig:    {light.GPUClusterConfigSource, "ClusterConfig"},
	AnnotationArgShadowData:       {light.GPUShadowDataSource, "ShadowData"},
	AnnotationArgTextureAnimation: {texture.GPUTextureAnimationSource, "TextureAnimation"},
	AnnotationArgTextureConfig:    {texture.GPUTextureConfigSource, "TextureConfig"},
}

// structType resolves "key" or "array<key>" to the WGSL type.
func structType(arg AnnotationArg) string {
	if elem, ok := strings.CutPrefix(string(arg), "array<"); ok {
		return "array<" + structSources[AnnotationArg(strings.TrimSuffix(elem, ">"))].Type + ">"
	}
	return structSources[arg].Type
}

// PreProcessor expands @oxy: directives and keeps the group and provider directives of
// the last expansion as declarations.
type PreProcessor interface {
	// Process returns source with every include replaced by the struct source and every
	// group directive by its binding declaration. Provider directives are dropped from
	// the output.
	Process(source string) (string, error)

	// Declarations returns the group and provider directives of the last Process call
	// in source order.
	Declarations() []Annotation
}

type preProcessor struct {
	declarations []Annotation
}

var _ PreProcessor = &preProcessor{}

func NewPreProcessor() PreProcessor {
	return &preProcessor{}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = nil
	included := make(map[AnnotationArg]bool)

	var sb strings.Builder
	sb.Grow(len(source))
	first := true
	for i, line := range strings.Split(source, "\n") {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		var text string
		switch {
		case a == nil:
			text = line
		case a.Type == annotationTypeInclude:
			// once per module
			if included[a.Args[0]] {
				continue
			}
			included[a.Args[0]] = true
			text = strings.TrimRight(structSources[a.Args[0]].Source, "\n")
		case a.Type == AnnotationTypeBindingGroup:
			text = fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				a.Group, a.Binding, addressSpaces[a.Args[0]], a.Args[1], structType(a.Args[2]))
			p.declarations = append(p.declarations, *a)
		default:
			p.declarations = append(p.declarations, *a)
			continue
		}
		if !first {
			sb.WriteByte('\n')
		}
		first = false
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func (p *preProcessor) Declarations() []Annotation { return p.declarations }
