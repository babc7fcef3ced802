// Command shadergen generates one shader permutation of the render technique and
// prints its WGSL source, its GLSL translations or its SPIR-V size, followed by the
// bindings the program declares.
//
// Usage:
//
//	shadergen [options]
//
// Examples:
//
//	shadergen -pass visibility-resolve -components diffuseLighting,specularLighting
//	shadergen -pass opaque-resolve -scene fogLinear -format glsl
//	shadergen -pass visibility-resolve -backend compute -format glsl -o resolve.glsl
//	shadergen -pass visibility-reorder -stage scatter
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/technique"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/visibility"
	"github.com/gogpu/naga/glsl"
)

var (
	pass        = flag.String("pass", technique.PassVisibilityResolve, "technique pass: opaque-resolve, indirect-lighting, visibility-resolve, visibility-reorder, forward-transparent, transparent-combine")
	backendName = flag.String("backend", "graphics", "visibility resolve back end: graphics or compute")
	stageName   = flag.String("stage", "clear", "reorder stage: clear, count, prefix or scatter")
	components  = flag.String("components", "diffuseLighting,specularLighting", "material components, '|' or ',' separated")
	scene       = flag.String("scene", "none", "scene flags, '|' or ',' separated")
	submesh     = flag.String("submesh", "positions,normals,texcoords0", "submesh attributes, '|' or ',' separated")
	shaderSet   = flag.String("shader", "none", "shader flags, '|' or ',' separated")
	lighting    = flag.String("lighting", "pbr", "lighting model: none, phong or pbr")
	background  = flag.String("background", "colour", "background model: colour, skybox or ibl")
	uniformPC   = flag.Bool("uniform-push-constants", false, "emulate push constants with a uniform buffer")
	format      = flag.String("format", "wgsl", "output format: wgsl, glsl or spirv")
	output      = flag.String("o", "", "output file (default: stdout)")
	verbose     = flag.Bool("v", false, "log generation details")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: shadergen [options]\n\nOptions:\n")
	flag.PrintDefaults()
}

func run(logger *slog.Logger) error {
	p, err := generate(logger)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch *format {
	case "wgsl":
		if _, err := io.WriteString(out, p.Source); err != nil {
			return err
		}
	case "glsl":
		version := glsl.Version450
		compiled, err := shader.NagaCompiler{GLSL: &version}.Compile(p)
		if err != nil {
			return err
		}
		entries := make([]string, 0, len(compiled.GLSL))
		for name := range compiled.GLSL {
			entries = append(entries, name)
		}
		slices.Sort(entries)
		for _, name := range entries {
			if _, err := fmt.Fprintf(out, "// entry point %s\n%s\n", name, compiled.GLSL[name]); err != nil {
				return err
			}
		}
	case "spirv":
		compiled, err := shader.NewSPIRVCompiler().Compile(p)
		if err != nil {
			return err
		}
		if *output != "" {
			if _, err := out.Write(compiled.SPIRV); err != nil {
				return err
			}
		}
		fmt.Fprintf(os.Stderr, "%s: %d bytes of SPIR-V\n", p.Key, len(compiled.SPIRV))
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	printBindings(os.Stderr, p)
	return nil
}

// generate builds the program selected by the command line. The technique is created
// on a recording device, so no GPU is needed.
func generate(logger *slog.Logger) (*shader.Program, error) {
	if *pass == technique.PassVisibilityReorder {
		i := slices.IndexFunc(visibility.ReorderStages, func(s visibility.ReorderStage) bool { return s.String() == *stageName })
		if i < 0 {
			return nil, fmt.Errorf("unknown reorder stage %q", *stageName)
		}
		return visibility.NewReorderProgram(visibility.ReorderStages[i])
	}

	sceneFlags, err := flags.ParseSceneFlags(*scene)
	if err != nil {
		return nil, err
	}
	shaderFlags, err := flags.ParseShaderFlags(*shaderSet)
	if err != nil {
		return nil, err
	}
	lm, err := flags.ParseLightingModel(*lighting)
	if err != nil {
		return nil, err
	}
	bg, err := flags.ParseBackgroundModel(*background)
	if err != nil {
		return nil, err
	}
	b := visibility.BackendGraphics
	switch *backendName {
	case "graphics":
	case "compute":
		b = visibility.BackendCompute
	default:
		return nil, fmt.Errorf("unknown back end %q", *backendName)
	}
	mode := shader.PushConstantsNative
	if *uniformPC {
		mode = shader.PushConstantsUniform
	}

	registry, err := component.NewRegistry(component.WithRegistryLogger(logger))
	if err != nil {
		return nil, err
	}
	tech, err := technique.NewTechnique(backendtest.NewDevice(), registry,
		technique.WithTechniqueLabel("shadergen"),
		technique.WithResolveBackend(b),
		technique.WithTechniquePushConstantMode(mode),
		technique.WithLightingModel(lm),
		technique.WithBackground(bg),
		technique.WithShaderFlags(shaderFlags),
		technique.WithTechniqueLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	defer tech.Release()

	switch *pass {
	case technique.PassOpaqueResolve:
		return tech.Opaque().Program(tech.Opaque().Flags(sceneFlags))
	case technique.PassIndirectLighting:
		if !sceneFlags.HasAny(flags.SceneGIMask) {
			return nil, fmt.Errorf("%s needs a GI scene flag", *pass)
		}
		return tech.Indirect().Program(tech.Indirect().Flags(sceneFlags))
	case technique.PassTransparentCombine:
		return tech.Combine().Program(flags.NewPipelineFlags(flags.WithRenderPassType(technique.RenderPassTransparentCombine)))
	}

	f, err := materialFlags(registry, lm)
	if err != nil {
		return nil, err
	}
	switch *pass {
	case technique.PassVisibilityResolve:
		return tech.Resolve().Program(tech.Resolve().Flags(f, sceneFlags))
	case technique.PassForwardTransparent:
		return tech.Transparent().Program(tech.Transparent().Flags(f, sceneFlags))
	}
	return nil, fmt.Errorf("unknown pass %q", *pass)
}

// materialFlags composes a material pass from the component and submesh flags, the way
// a scene does for its nodes.
func materialFlags(registry *component.Registry, lm flags.LightingModelID) (flags.PipelineFlags, error) {
	c, err := flags.ParseComponentFlags(*components)
	if err != nil {
		return flags.PipelineFlags{}, err
	}
	sm, err := flags.ParseSubmeshFlags(*submesh)
	if err != nil {
		return flags.PipelineFlags{}, err
	}
	p := material.NewPass(registry,
		material.WithPassName("shadergen"),
		material.WithComponents(c),
		material.WithLightingModel(lm))
	opts := append(p.PipelineOptions(registry, flags.ModeAll), flags.WithSubmesh(sm))
	return flags.NewPipelineFlags(opts...), nil
}

func printBindings(w io.Writer, p *shader.Program) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "program\t%s\n", p.Key)
	fmt.Fprintf(tw, "group\tbinding\tname\tkind\ttype\n")
	bindings := slices.Clone(p.Bindings)
	slices.SortFunc(bindings, func(a, b shader.Binding) int {
		if a.Group != b.Group {
			return int(a.Group) - int(b.Group)
		}
		return int(a.Index) - int(b.Index)
	})
	for _, b := range bindings {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", b.Group, b.Index, b.Name, b.Kind, b.Type)
	}
	if p.PushConstants != nil {
		fmt.Fprintf(tw, "push constants\t%d bytes\t%s\n", p.PushConstants.Size(), pushConstantMode(p.PushConstantMode))
	}
	tw.Flush()
}

func pushConstantMode(m shader.PushConstantMode) string {
	if m == shader.PushConstantsUniform {
		return "uniform"
	}
	return "native"
}
