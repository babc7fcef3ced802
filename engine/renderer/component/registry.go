package component

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
)

// MaterialGroup is the bind group holding the material buffer, the material textures
// and the bindings component contributions claim.
const MaterialGroup = 1

// MaterialType is the WGSL name of the material struct.
const MaterialType = "Material"

// Binding roles of the material group.
const (
	RoleMaterials      shader.AnnotationArg = "materials"
	RoleTextureConfigs shader.AnnotationArg = "texture_configs"
	RoleMaps           shader.AnnotationArg = "maps"
	RoleMapSampler     shader.AnnotationArg = "map_sampler"
)

var (
	// ErrDuplicatePlugin is returned when a plugin id is registered twice.
	ErrDuplicatePlugin = errors.New("component: plugin already registered")
	// ErrFlagsClaimed is returned when a plugin claims flags another plugin owns.
	ErrFlagsClaimed = errors.New("component: component flags already owned")
)

// headerMembers open every Material; MaterialBuffer writes them itself.
var headerMembers = []Member{
	{Name: "passIndex", Type: "u32", Default: uint32(0)},
	{Name: "lightingModel", Type: "u32", Default: uint32(0)},
	{Name: "textureBase", Type: "u32", Default: uint32(0)},
	{Name: "textureCount", Type: "u32", Default: uint32(0)},
}

// Registry owns the plugins of one engine instance and the dense ids of the component
// and texture combinations seen so far. Combination ids and the material layout may be
// requested from loader goroutines, so the registry is guarded by a mutex.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	byID    map[string]Plugin
	owned   flags.ComponentFlags

	combines          []flags.ComponentFlags
	combineIDs        map[flags.ComponentFlags]flags.CombineID
	textureCombines   []flags.TextureFlags
	textureCombineIDs map[flags.TextureFlags]flags.CombineID

	layout *shader.StructLayout
	logger *slog.Logger
}

// NewRegistry creates a registry holding the built-in plugins.
//
// Parameters:
//   - opts: variadic list of RegistryBuilderOption functions
//
// Returns:
//   - *Registry: the registry
//   - error: a plugin conflict raised while registering WithPlugins
func NewRegistry(opts ...RegistryBuilderOption) (*Registry, error) {
	cfg := registryConfig{defaults: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Registry{
		byID:              make(map[string]Plugin),
		combineIDs:        make(map[flags.ComponentFlags]flags.CombineID),
		textureCombineIDs: make(map[flags.TextureFlags]flags.CombineID),
		logger:            cfg.logger,
	}
	plugins := cfg.plugins
	if cfg.defaults {
		plugins = append(DefaultPlugins(), plugins...)
	}
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a plugin. Plugins are evaluated in registration order.
//
// Parameters:
//   - p: the plugin
//
// Returns:
//   - error: ErrDuplicatePlugin or ErrFlagsClaimed
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.ID())
	}
	if r.owned.HasAny(p.Flags()) {
		return fmt.Errorf("%w: %s claims %s", ErrFlagsClaimed, p.ID(), r.owned.Filter(p.Flags()))
	}
	r.plugins = append(r.plugins, p)
	r.byID[p.ID()] = p
	r.owned |= p.Flags()
	r.layout = nil
	r.logger.Debug("component plugin registered", "id", p.ID(), "flags", p.Flags().String())
	return nil
}

// Plugin returns a plugin by id.
func (r *Registry) Plugin(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// Plugins returns every plugin in registration order.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.plugins)
}

// PluginsFor returns the plugins owning at least one of the given flags.
func (r *Registry) PluginsFor(f flags.ComponentFlags) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Plugin
	for _, p := range r.plugins {
		if f.HasAny(p.Flags()) {
			out = append(out, p)
		}
	}
	return out
}

// CreateComponents creates one component per plugin owning a bit of f.
//
// Parameters:
//   - owner: the pass the components belong to
//   - f: the requested components
//
// Returns:
//   - []Component: the components in registration order
func (r *Registry) CreateComponents(owner Owner, f flags.ComponentFlags) []Component {
	plugins := r.PluginsFor(f)
	out := make([]Component, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, p.CreateComponent(owner))
	}
	return out
}

// FilterComponentFlags lets every plugin drop its flags when irrelevant to mode. Bits
// no plugin owns pass through unchanged.
//
// Parameters:
//   - mode: the component modes of the requesting pass
//   - combine: the flags to normalize
//
// Returns:
//   - flags.ComponentFlags: the normalized flags
func (r *Registry) FilterComponentFlags(mode flags.ComponentModeFlags, combine flags.ComponentFlags) flags.ComponentFlags {
	for _, p := range r.Plugins() {
		combine = p.FilterComponentFlags(mode, combine)
	}
	return combine
}

// TextureFlags returns the texture channels read by the plugins present in f.
func (r *Registry) TextureFlags(f flags.ComponentFlags) flags.TextureFlags {
	var out flags.TextureFlags
	for _, p := range r.PluginsFor(f) {
		out |= p.TextureFlags()
	}
	return out
}

// RegisterCombine returns the dense id of a component combination, assigning the next
// id on first sight. Ids start at 1.
//
// Parameters:
//   - f: the combination
//
// Returns:
//   - flags.CombineID: the id
func (r *Registry) RegisterCombine(f flags.ComponentFlags) flags.CombineID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.combineIDs[f]; ok {
		return id
	}
	r.combines = append(r.combines, f)
	id := flags.CombineID(len(r.combines))
	r.combineIDs[f] = id
	return id
}

// Combine returns the combination registered under id.
func (r *Registry) Combine(id flags.CombineID) (flags.ComponentFlags, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) > len(r.combines) {
		return 0, false
	}
	return r.combines[id-1], true
}

// RegisterTextureCombine is RegisterCombine for texture channel combinations.
func (r *Registry) RegisterTextureCombine(f flags.TextureFlags) flags.CombineID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.textureCombineIDs[f]; ok {
		return id
	}
	r.textureCombines = append(r.textureCombines, f)
	id := flags.CombineID(len(r.textureCombines))
	r.textureCombineIDs[f] = id
	return id
}

// TextureCombine returns the texture combination registered under id.
func (r *Registry) TextureCombine(id flags.CombineID) (flags.TextureFlags, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) > len(r.textureCombines) {
		return 0, false
	}
	return r.textureCombines[id-1], true
}

// WriteMaterialStruct declares the Material struct: the header followed by the
// members of every registered plugin. The struct does not depend on the permutation,
// so all passes share one material buffer.
//
// Parameters:
//   - w: the writer
func (r *Registry) WriteMaterialStruct(w *shader.Writer) {
	var members []string
	for _, m := range headerMembers {
		members = append(members, m.Declaration())
	}
	for _, p := range r.Plugins() {
		for _, m := range p.Members() {
			members = append(members, m.Declaration())
		}
	}
	w.DeclareStruct(MaterialType, members...)
}

// MaterialLayout returns the std430 placement of the Material struct. The layout is
// computed once per set of registered plugins.
//
// Returns:
//   - shader.StructLayout: the layout
//   - error: when a member type cannot be laid out
func (r *Registry) MaterialLayout() (shader.StructLayout, error) {
	r.mu.RLock()
	cached := r.layout
	r.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}
	w := shader.NewWriter(shader.WithLabel("material"), shader.WithWriterLogger(r.logger))
	r.WriteMaterialStruct(w)
	layout, err := shader.LayoutStruct(w.Source(), MaterialType)
	if err != nil {
		return shader.StructLayout{}, fmt.Errorf("failed to lay out material struct: %w", err)
	}
	r.mu.Lock()
	r.layout = &layout
	r.mu.Unlock()
	return layout, nil
}

// DeclareMaterials declares the material group: the material buffer, the texture unit
// configurations, the map array and its sampler when the permutation samples textures,
// then the bindings of every present contribution.
//
// Parameters:
//   - ctx: a module context whose counter addresses MaterialGroup
//
// Returns:
//   - string: the material buffer variable
func (r *Registry) DeclareMaterials(ctx *modules.Context) string {
	r.WriteMaterialStruct(ctx.Writer)
	name := ctx.Claim(shader.Binding{Name: "c3d_materials", Kind: shader.BindingStorage, Type: "array<" + MaterialType + ">",
		Provider: shader.AnnotationArgMaterials, Role: RoleMaterials})
	if ctx.Flags.Textures != flags.TextureNone {
		ctx.Claim(shader.Binding{Name: "c3d_textureConfigs", Kind: shader.BindingStorage, Struct: shader.AnnotationArgTextureConfig, Array: true,
			Provider: shader.AnnotationArgMaterials, Role: RoleTextureConfigs})
		ctx.Claim(shader.Binding{Name: "c3d_maps", Kind: shader.BindingSampledTexture, Type: "texture_2d_array<f32>",
			Provider: shader.AnnotationArgMaterials, Role: RoleMaps})
		ctx.Claim(shader.Binding{Name: "c3d_mapSampler", Kind: shader.BindingSampler, Type: "sampler",
			Provider: shader.AnnotationArgMaterials, Role: RoleMapSampler})
	}
	for _, p := range r.PluginsFor(ctx.Flags.Components) {
		if s := p.Shader(); s != nil {
			s.Declare(ctx)
		}
	}
	return name
}

// BlendSurface emits the material evaluation: every present contribution applies its
// values, then each texture unit of the pass is sampled with explicit gradients and
// blended, then every contribution finishes.
//
// Parameters:
//   - fb: the function body
//   - in: the blend inputs; in.Flags selects the contributions
//   - anims: the texture animation module, used to animate unit coordinates
//   - texcoordDx: the screen-space x gradient of the surface texcoord
//   - texcoordDy: the screen-space y gradient of the surface texcoord
func (r *Registry) BlendSurface(fb *shader.FunctionBuilder, in ApplyInputs, anims *modules.TextureAnimations, texcoordDx, texcoordDy string) {
	var present []ShaderContribution
	for _, p := range r.PluginsFor(in.Flags.Components) {
		if s := p.Shader(); s != nil && !slices.Contains(present, s) {
			present = append(present, s)
		}
	}
	for _, s := range present {
		s.Apply(fb, in)
	}
	if in.Flags.Textures != flags.TextureNone {
		m := in.Material
		fb.For("var unit = 0u", "unit < "+m+".textureCount", "unit++", func() {
			fb.Let("layer", m+".textureBase + unit")
			fb.Let("config", "c3d_textureConfigs[layer]")
			uv := in.Surface + ".texcoord"
			if anims != nil {
				uv = anims.Animate(uv, "config.animationIndex")
			}
			fb.Let("unitUV", uv)
			fb.Let("sampled", "textureSampleGrad(c3d_maps, c3d_mapSampler, unitUV, i32(layer), "+texcoordDx+", "+texcoordDy+")")
			for _, s := range present {
				s.ApplyTexture(fb, in, "config", "sampled")
			}
		})
	}
	for _, s := range present {
		s.Finish(fb, in)
	}
}

// ReflRefr returns the contribution exposing the reflection and refraction overloads,
// or nil when no registered plugin provides one.
func (r *Registry) ReflRefr() ReflRefrShader {
	for _, p := range r.Plugins() {
		if s, ok := p.Shader().(ReflRefrShader); ok {
			return s
		}
	}
	return nil
}
