package material

import (
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/texture"
)

// NoPassIndex is the index of a pass not yet stored in a MaterialBuffer.
const NoPassIndex = ^uint32(0)

// TextureUnit is one texture layer of a pass. The pixels are RGBA8 and every unit of
// the material buffer shares the layer size of the map array.
type TextureUnit struct {
	Name      string
	Width     uint32
	Height    uint32
	Pixels    []byte
	Config    texture.GPUTextureConfig
	Animation *texture.Animation
}

// pass is the implementation of the Pass interface.
type pass struct {
	mu            sync.RWMutex
	name          string
	index         uint32
	lightingModel flags.LightingModelID
	flags         flags.ComponentFlags
	components    []component.Component
	units         []TextureUnit
	animations    []uint32
	logger        *slog.Logger
}

// Pass is one rendering pass of a material: the components describing its surface,
// the texture units feeding them and the lighting model shading it.
//
// A pass owns its components. Its index is the slot of its record in the material
// buffer, assigned when the pass is added to one.
type Pass interface {
	component.Owner

	// LightingModel returns the lighting model shading the pass.
	LightingModel() flags.LightingModelID

	// ComponentFlags returns the components the pass was created with.
	ComponentFlags() flags.ComponentFlags

	// Components returns the components in plugin registration order.
	Components() []component.Component

	// Component returns the component created by the plugin with the given id.
	//
	// Parameters:
	//   - id: the plugin id
	//
	// Returns:
	//   - component.Component: the component
	//   - bool: whether the pass has it
	Component(id string) (component.Component, bool)

	// TextureUnits returns a copy of the texture units.
	TextureUnits() []TextureUnit

	// TextureFlags returns the union of the channels of every texture unit.
	TextureFlags() flags.TextureFlags

	// PipelineOptions returns the permutation options describing the pass for a
	// technique pass rendering the given component modes. Components irrelevant to
	// mode are filtered so that passes differing only in them share pipelines.
	//
	// Parameters:
	//   - registry: the component registry
	//   - mode: the component modes of the technique pass
	//
	// Returns:
	//   - []flags.PipelineFlagsOption: component, texture and lighting options
	PipelineOptions(registry *component.Registry, mode flags.ComponentModeFlags) []flags.PipelineFlagsOption
}

var _ Pass = &pass{}

// NewPass creates a pass whose components are created by the registry.
//
// Parameters:
//   - registry: the registry creating the components
//   - options: variadic list of PassBuilderOption functions to configure the pass
//
// Returns:
//   - Pass: a new Pass instance
func NewPass(registry *component.Registry, options ...PassBuilderOption) Pass {
	p := &pass{
		index:         NoPassIndex,
		lightingModel: flags.LightingModelPBR,
		logger:        slog.Default(),
	}
	for _, opt := range options {
		opt(p)
	}
	// a pass sampling textures has the components they feed
	p.flags |= textureComponents(p.TextureFlags())
	for _, u := range p.units {
		if u.Animation != nil {
			p.flags |= flags.ComponentTextureAnimation
		}
	}
	p.components = registry.CreateComponents(p, p.flags)
	return p
}

// textureComponents maps texture channels to the component reading them.
func textureComponents(t flags.TextureFlags) flags.ComponentFlags {
	var out flags.ComponentFlags
	if t&flags.TextureColour != 0 {
		out |= flags.ComponentDiffuseLighting
	}
	if t&flags.TextureNormal != 0 {
		out |= flags.ComponentNormals
	}
	if t&flags.TextureOpacity != 0 {
		out |= flags.ComponentOpacity
	}
	if t&flags.TextureEmissive != 0 {
		out |= flags.ComponentEmissive
	}
	if t&flags.TextureOcclusion != 0 {
		out |= flags.ComponentOcclusion
	}
	return out
}

func (p *pass) Index() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index
}

func (p *pass) setIndex(idx uint32) {
	p.mu.Lock()
	p.index = idx
	p.mu.Unlock()
}

func (p *pass) Name() string {
	return p.name
}

func (p *pass) LightingModel() flags.LightingModelID {
	return p.lightingModel
}

func (p *pass) ComponentFlags() flags.ComponentFlags {
	return p.flags
}

func (p *pass) Components() []component.Component {
	return p.components
}

func (p *pass) Component(id string) (component.Component, bool) {
	for _, c := range p.components {
		if c.Plugin().ID() == id {
			return c, true
		}
	}
	return nil, false
}

func (p *pass) TextureUnits() []TextureUnit {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]TextureUnit, len(p.units))
	copy(out, p.units)
	return out
}

func (p *pass) TextureFlags() flags.TextureFlags {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out flags.TextureFlags
	for _, u := range p.units {
		out |= u.Config.Flags
	}
	return out
}

func (p *pass) PipelineOptions(registry *component.Registry, mode flags.ComponentModeFlags) []flags.PipelineFlagsOption {
	combine := registry.FilterComponentFlags(mode, p.flags)
	textures := p.TextureFlags() & registry.TextureFlags(combine)
	opts := []flags.PipelineFlagsOption{
		flags.WithComponents(combine),
		flags.WithComponentsID(registry.RegisterCombine(combine)),
		flags.WithLightingModel(p.lightingModel),
	}
	if textures != flags.TextureNone {
		opts = append(opts, flags.WithTextures(registry.RegisterTextureCombine(textures), textures))
	}
	return opts
}
