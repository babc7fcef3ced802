// Package component holds the pass component registry: pluggable material features
// that each contribute CPU-side material data and shader code.
package component

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
)

// Owner is the material pass a component belongs to.
type Owner interface {
	// Index returns the pass index inside the material buffer.
	Index() uint32
	// Name returns the pass label.
	Name() string
}

// Member is one member a plugin adds to the Material struct.
type Member struct {
	Name    string
	Type    string
	Default any
}

// Declaration returns the WGSL struct member declaration.
func (m Member) Declaration() string { return m.Name + ": " + m.Type }

// Plugin is the registered, engine-lifetime half of a material feature. It creates the
// per-pass components and tells the pipeline key which flags the feature needs.
type Plugin interface {
	// ID returns the unique plugin identifier.
	//
	// Returns:
	//   - string: the identifier, e.g. "reflection"
	ID() string

	// Flags returns the component flags the plugin owns.
	//
	// Returns:
	//   - flags.ComponentFlags: the owned bits
	Flags() flags.ComponentFlags

	// TextureFlags returns the texture channels the plugin reads.
	//
	// Returns:
	//   - flags.TextureFlags: the channels
	TextureFlags() flags.TextureFlags

	// Capabilities returns the component modes the plugin is relevant to.
	//
	// Returns:
	//   - flags.ComponentModeFlags: the modes
	Capabilities() flags.ComponentModeFlags

	// Members returns the members the plugin adds to the Material struct.
	//
	// Returns:
	//   - []Member: the members, in declaration order
	Members() []Member

	// CreateComponent allocates a default component bound to owner. It cannot fail.
	//
	// Parameters:
	//   - owner: the pass the component belongs to
	//
	// Returns:
	//   - Component: the new component
	CreateComponent(owner Owner) Component

	// FilterComponentFlags removes the plugin's flags from combine when the plugin is
	// irrelevant to mode.
	//
	// Parameters:
	//   - mode: the component modes the requesting pass evaluates
	//   - combine: the flags to filter
	//
	// Returns:
	//   - flags.ComponentFlags: the filtered flags
	FilterComponentFlags(mode flags.ComponentModeFlags, combine flags.ComponentFlags) flags.ComponentFlags

	// Shader returns the shader contribution, or nil when the plugin only carries data.
	//
	// Returns:
	//   - ShaderContribution: the contribution
	Shader() ShaderContribution
}

// Component is the per-pass instance of a plugin, holding the pass's values for the
// plugin's material members.
type Component interface {
	Plugin() Plugin
	Owner() Owner
	Flags() flags.ComponentFlags

	// DataSize returns the packed size of the component's members.
	DataSize() int

	// Fill writes the component's member values at the offsets given by layout.
	//
	// Parameters:
	//   - dst: the pass's slice of the material buffer
	//   - layout: the Material struct layout
	Fill(dst []byte, layout shader.StructLayout)
}

// ApplyInputs are the expressions a contribution reads and writes while blending into
// a surface.
type ApplyInputs struct {
	// Surface names a mutable Surface variable.
	Surface string
	// Material is a Material expression.
	Material string
	// EnvMapIndex is the node's environment map index expression.
	EnvMapIndex string
	// Compute is set when the code runs in a compute entry point, where fragment-only
	// builtins such as discard are unavailable.
	Compute bool
	Flags   flags.PipelineFlags
}

// ShaderContribution is the shader-facing half of a plugin.
type ShaderContribution interface {
	// Declare claims the plugin's own bindings from ctx's counter.
	Declare(ctx *modules.Context)

	// Apply blends the material values into the surface.
	Apply(fb *shader.FunctionBuilder, in ApplyInputs)

	// ApplyTexture blends one sampled texture unit into the surface.
	//
	// Parameters:
	//   - fb: the function body
	//   - in: the blend inputs
	//   - config: a TextureConfig expression
	//   - sample: the vec4<f32> sampled value
	ApplyTexture(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string)

	// Finish runs after every texture unit was applied.
	Finish(fb *shader.FunctionBuilder, in ApplyInputs)
}

// ReflRefrShader is implemented by contributions exposing the combined reflection and
// refraction entry points. Callers pick the overload matching the data their pass
// produced.
type ReflRefrShader interface {
	// ComputeReflRefr evaluates reflections and refractions from the surface alone.
	ComputeReflRefr(fb *shader.FunctionBuilder, refl *modules.ReflectionModel, in ApplyInputs) modules.ReflectionOutputs

	// ComputeReflRefrAt rebuilds the view direction from an explicit world position
	// before evaluating.
	ComputeReflRefrAt(fb *shader.FunctionBuilder, refl *modules.ReflectionModel, in ApplyInputs, worldPosition, cameraPosition string) modules.ReflectionOutputs

	// ComputeReflRefrScene is ComputeReflRefrAt with the pixel used to address the
	// mipped scene colour.
	ComputeReflRefrScene(fb *shader.FunctionBuilder, refl *modules.ReflectionModel, in ApplyInputs, worldPosition, cameraPosition, fragCoord string) modules.ReflectionOutputs
}
