package component

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
	"github.com/go-gl/mathgl/mgl32"
)

// Built-in plugin identifiers.
const (
	IDDiffuse          = "diffuse"
	IDSpecular         = "specular"
	IDMetalness        = "metalness"
	IDRoughness        = "roughness"
	IDNormal           = "normal"
	IDOpacity          = "opacity"
	IDAlphaTest        = "alphaTest"
	IDAlphaBlending    = "alphaBlending"
	IDOcclusion        = "occlusion"
	IDEmissive         = "emissive"
	IDReflection       = "reflection"
	IDRefraction       = "refraction"
	IDClearcoat        = "clearcoat"
	IDSheen            = "sheen"
	IDTransmission     = "transmission"
	IDTextureAnimation = "textureAnimation"
)

// Binding roles claimed by component contributions.
const (
	RoleSheenLut     shader.AnnotationArg = "sheen_lut"
	RoleSheenSampler shader.AnnotationArg = "sheen_sampler"
)

// dielectricF0 is the reflectance at normal incidence of non-metals.
const dielectricF0 = "vec3<f32>(0.04)"

// DefaultPlugins returns a fresh set of the built-in plugins in registration order.
// Diffuse precedes the specular family because the metalness finish reads the albedo.
func DefaultPlugins() []Plugin {
	refl := &ReflectionShader{}
	return []Plugin{
		newDiffusePlugin(),
		newSpecularPlugin(),
		newMetalnessPlugin(),
		newRoughnessPlugin(),
		newNormalPlugin(),
		newOpacityPlugin(),
		newAlphaTestPlugin(),
		&basePlugin{id: IDAlphaBlending, flags: flags.ComponentAlphaBlending, capabilities: flags.ModeAlphaBlending},
		newOcclusionPlugin(),
		newEmissivePlugin(),
		&basePlugin{id: IDReflection, flags: flags.ComponentReflection, capabilities: flags.ModeSpecifics, shader: refl},
		newRefractionPlugin(refl),
		newClearcoatPlugin(),
		newSheenPlugin(),
		newTransmissionPlugin(),
		&basePlugin{id: IDTextureAnimation, flags: flags.ComponentTextureAnimation,
			capabilities: flags.ModeColour | flags.ModeNormals | flags.ModeOpacity | flags.ModeDerivTex},
	}
}

// DiffuseComponent holds the base colour of a pass.
type DiffuseComponent struct{ *baseComponent }

// SetAlbedo sets the base colour.
func (c *DiffuseComponent) SetAlbedo(v mgl32.Vec3) { c.set("albedo", v) }

func newDiffusePlugin() Plugin {
	return &basePlugin{
		id:           IDDiffuse,
		flags:        flags.ComponentDiffuseLighting,
		textures:     flags.TextureColour,
		capabilities: flags.ModeColour | flags.ModeDiffuseLighting,
		members:      []Member{{Name: "albedo", Type: "vec3<f32>", Default: mgl32.Vec3{1, 1, 1}}},
		create:       func(b *baseComponent) Component { return &DiffuseComponent{b} },
		shader: &contribution{
			apply: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				fb.Assign(in.Surface+".albedo", in.Material+".albedo")
			},
			texture: func(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string) {
				ifChannel(fb, config, flags.TextureColour, func() {
					fb.Assign(in.Surface+".albedo", in.Surface+".albedo * "+sample+".rgb")
				})
			},
		},
	}
}

// SpecularComponent holds the specular colour and, for Phong, the shininess.
type SpecularComponent struct{ *baseComponent }

// SetSpecular sets the specular colour. Under PBR it scales the dielectric reflectance.
func (c *SpecularComponent) SetSpecular(v mgl32.Vec3) { c.set("specular", v) }

// SetShininess sets the Phong exponent.
func (c *SpecularComponent) SetShininess(v float32) { c.set("shininess", v) }

func newSpecularPlugin() Plugin {
	return &basePlugin{
		id:           IDSpecular,
		flags:        flags.ComponentSpecularLighting,
		textures:     flags.TextureSpecular,
		capabilities: flags.ModeSpecularLighting,
		members: []Member{
			{Name: "specular", Type: "vec3<f32>", Default: mgl32.Vec3{1, 1, 1}},
			{Name: "shininess", Type: "f32", Default: float32(50)},
		},
		create: func(b *baseComponent) Component { return &SpecularComponent{b} },
		shader: &contribution{
			apply: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				if in.Flags.LightingModel == flags.LightingModelPBR {
					fb.Assign(in.Surface+".specular", dielectricF0+" * "+in.Material+".specular")
				} else {
					fb.Assign(in.Surface+".specular", in.Material+".specular")
				}
				fb.Assign(in.Surface+".shininess", in.Material+".shininess")
			},
			texture: func(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string) {
				ifChannel(fb, config, flags.TextureSpecular, func() {
					fb.Assign(in.Surface+".specular", in.Surface+".specular * "+sample+".rgb")
				})
			},
		},
	}
}

// MetalnessComponent holds the PBR metalness.
type MetalnessComponent struct{ *baseComponent }

// SetMetalness sets the metalness in [0, 1].
func (c *MetalnessComponent) SetMetalness(v float32) { c.set("metalness", v) }

func newMetalnessPlugin() Plugin {
	return &basePlugin{
		id:           IDMetalness,
		flags:        flags.ComponentMetalness,
		textures:     flags.TextureMetalness,
		capabilities: flags.ModeSpecularLighting,
		members:      []Member{{Name: "metalness", Type: "f32", Default: float32(0)}},
		create:       func(b *baseComponent) Component { return &MetalnessComponent{b} },
		shader: &contribution{
			apply: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				fb.Assign(in.Surface+".metalness", in.Material+".metalness")
			},
			texture: func(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string) {
				ifChannel(fb, config, flags.TextureMetalness, func() {
					fb.Assign(in.Surface+".metalness", in.Surface+".metalness * "+sample+".b")
				})
			},
			finish: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				s := in.Surface
				base := dielectricF0
				if in.Flags.Components.Has(flags.ComponentSpecularLighting) {
					base = s + ".specular"
				}
				fb.Assign(s+".specular", "mix("+base+", "+s+".albedo, "+s+".metalness)")
			},
		},
	}
}

// RoughnessComponent holds the PBR roughness.
type RoughnessComponent struct{ *baseComponent }

// SetRoughness sets the perceptual roughness in [0, 1].
func (c *RoughnessComponent) SetRoughness(v float32) { c.set("roughness", v) }

func newRoughnessPlugin() Plugin {
	return &basePlugin{
		id:           IDRoughness,
		flags:        flags.ComponentRoughness,
		textures:     flags.TextureRoughness,
		capabilities: flags.ModeSpecularLighting,
		members:      []Member{{Name: "roughness", Type: "f32", Default: float32(1)}},
		create:       func(b *baseComponent) Component { return &RoughnessComponent{b} },
		shader: &contribution{
			apply: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				fb.Assign(in.Surface+".roughness", in.Material+".roughness")
			},
			texture: func(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string) {
				ifChannel(fb, config, flags.TextureRoughness, func() {
					fb.Assign(in.Surface+".roughness", in.Surface+".roughness * "+sample+".g")
				})
			},
		},
	}
}

// NormalComponent scales the normal map contribution.
type NormalComponent struct{ *baseComponent }

// SetStrength sets the normal map strength.
func (c *NormalComponent) SetStrength(v float32) { c.set("normalStrength", v) }

func newNormalPlugin() Plugin {
	return &basePlugin{
		id:           IDNormal,
		flags:        flags.ComponentNormals,
		textures:     flags.TextureNormal | flags.TextureHeight,
		capabilities: flags.ModeNormals,
		members:      []Member{{Name: "normalStrength", Type: "f32", Default: float32(1)}},
		create:       func(b *baseComponent) Component { return &NormalComponent{b} },
		shader: &contribution{
			apply: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				fb.Assign(in.Surface+".normal", "normalize("+in.Surface+".normal)")
			},
			texture: func(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string) {
				s := in.Surface
				ifChannel(fb, config, flags.TextureNormal, func() {
					fb.Let("mapN", "("+sample+".xyz * 2.0 - vec3<f32>(1.0)) * vec3<f32>("+
						config+".normalFactor, "+config+".normalFactor * "+config+".normalGMultiplier, 1.0)")
					fb.Let("helper", "select(vec3<f32>(1.0, 0.0, 0.0), vec3<f32>(0.0, 1.0, 0.0), abs("+s+".normal.x) > 0.9)")
					fb.Let("tangent", "normalize(cross("+s+".normal, helper))")
					fb.Let("bitangent", "cross("+s+".normal, tangent)")
					fb.Let("perturbed", "normalize(tangent * mapN.x + bitangent * mapN.y + "+s+".normal * mapN.z)")
					fb.Assign(s+".normal", "normalize(mix("+s+".normal, perturbed, "+in.Material+".normalStrength))")
				})
			},
		},
	}
}

// OpacityComponent holds the pass opacity.
type OpacityComponent struct{ *baseComponent }

// SetOpacity sets the opacity in [0, 1].
func (c *OpacityComponent) SetOpacity(v float32) { c.set("opacity", v) }

func newOpacityPlugin() Plugin {
	return &basePlugin{
		id:           IDOpacity,
		flags:        flags.ComponentOpacity,
		textures:     flags.TextureOpacity,
		capabilities: flags.ModeOpacity | flags.ModeAlphaBlending,
		members:      []Member{{Name: "opacity", Type: "f32", Default: float32(1)}},
		create:       func(b *baseComponent) Component { return &OpacityComponent{b} },
		shader: &contribution{
			apply: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				fb.Assign(in.Surface+".opacity", in.Material+".opacity")
			},
			texture: func(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string) {
				ifChannel(fb, config, flags.TextureOpacity, func() {
					fb.Assign(in.Surface+".opacity", in.Surface+".opacity * "+sample+".a")
				})
			},
		},
	}
}

// AlphaTestComponent holds the alpha test reference.
type AlphaTestComponent struct{ *baseComponent }

// SetReference sets the opacity below which fragments are discarded.
func (c *AlphaTestComponent) SetReference(v float32) { c.set("alphaRef", v) }

func newAlphaTestPlugin() Plugin {
	return &basePlugin{
		id:           IDAlphaTest,
		flags:        flags.ComponentAlphaTest,
		capabilities: flags.ModeOpacity,
		members:      []Member{{Name: "alphaRef", Type: "f32", Default: float32(0.5)}},
		create:       func(b *baseComponent) Component { return &AlphaTestComponent{b} },
		shader: &contribution{
			finish: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				if in.Compute {
					// coverage was already tested when the visibility buffer was rasterized
					return
				}
				fb.If(in.Surface+".opacity < "+in.Material+".alphaRef", func() { fb.Line("discard;") })
			},
		},
	}
}

// OcclusionComponent holds the ambient occlusion factor.
type OcclusionComponent struct{ *baseComponent }

// SetOcclusion sets the ambient occlusion factor.
func (c *OcclusionComponent) SetOcclusion(v float32) { c.set("occlusion", v) }

func newOcclusionPlugin() Plugin {
	return &basePlugin{
		id:           IDOcclusion,
		flags:        flags.ComponentOcclusion,
		textures:     flags.TextureOcclusion,
		capabilities: flags.ModeOcclusion,
		members:      []Member{{Name: "occlusion", Type: "f32", Default: float32(1)}},
		create:       func(b *baseComponent) Component { return &OcclusionComponent{b} },
		shader: &contribution{
			apply: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				fb.Assign(in.Surface+".occlusion", in.Material+".occlusion")
			},
			texture: func(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string) {
				ifChannel(fb, config, flags.TextureOcclusion, func() {
					fb.Assign(in.Surface+".occlusion", in.Surface+".occlusion * "+sample+".r")
				})
			},
		},
	}
}

// EmissiveComponent holds the emitted colour.
type EmissiveComponent struct{ *baseComponent }

// SetEmissive sets the emitted colour and its factor.
func (c *EmissiveComponent) SetEmissive(colour mgl32.Vec3, factor float32) {
	c.set("emissive", colour)
	c.set("emissiveFactor", factor)
}

func newEmissivePlugin() Plugin {
	return &basePlugin{
		id:           IDEmissive,
		flags:        flags.ComponentEmissive,
		textures:     flags.TextureEmissive,
		capabilities: flags.ModeColour,
		members: []Member{
			{Name: "emissive", Type: "vec3<f32>", Default: mgl32.Vec3{}},
			{Name: "emissiveFactor", Type: "f32", Default: float32(1)},
		},
		create: func(b *baseComponent) Component { return &EmissiveComponent{b} },
		shader: &contribution{
			apply: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				fb.Assign(in.Surface+".emissive", in.Material+".emissive * "+in.Material+".emissiveFactor")
			},
			texture: func(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string) {
				ifChannel(fb, config, flags.TextureEmissive, func() {
					fb.Assign(in.Surface+".emissive", in.Surface+".emissive * "+sample+".rgb")
				})
			},
		},
	}
}

// RefractionComponent holds the refraction ratio.
type RefractionComponent struct{ *baseComponent }

// SetRatio sets the ratio of indices of refraction.
func (c *RefractionComponent) SetRatio(v float32) { c.set("refractionRatio", v) }

func newRefractionPlugin(refl *ReflectionShader) Plugin {
	return &basePlugin{
		id:           IDRefraction,
		flags:        flags.ComponentRefraction,
		capabilities: flags.ModeSpecifics,
		members:      []Member{{Name: "refractionRatio", Type: "f32", Default: float32(1.0 / 1.5)}},
		create:       func(b *baseComponent) Component { return &RefractionComponent{b} },
		shader:       refl,
	}
}

// ClearcoatComponent holds the clear coat layer parameters.
type ClearcoatComponent struct{ *baseComponent }

// SetClearcoat sets the coat factor and roughness.
func (c *ClearcoatComponent) SetClearcoat(factor, roughness float32) {
	c.set("clearcoatFactor", factor)
	c.set("clearcoatRoughness", roughness)
}

func newClearcoatPlugin() Plugin {
	return &basePlugin{
		id:           IDClearcoat,
		flags:        flags.ComponentClearcoat,
		textures:     flags.TextureClearcoat,
		capabilities: flags.ModeSpecifics,
		members: []Member{
			{Name: "clearcoatFactor", Type: "f32", Default: float32(0)},
			{Name: "clearcoatRoughness", Type: "f32", Default: float32(0)},
		},
		create: func(b *baseComponent) Component { return &ClearcoatComponent{b} },
	}
}

// SheenComponent holds the sheen layer parameters.
type SheenComponent struct{ *baseComponent }

// SetSheen sets the sheen colour and roughness.
func (c *SheenComponent) SetSheen(colour mgl32.Vec3, roughness float32) {
	c.set("sheenColour", colour)
	c.set("sheenRoughness", roughness)
}

func newSheenPlugin() Plugin {
	return &basePlugin{
		id:           IDSheen,
		flags:        flags.ComponentSheen,
		textures:     flags.TextureSheen,
		capabilities: flags.ModeSpecifics,
		members: []Member{
			{Name: "sheenColour", Type: "vec3<f32>", Default: mgl32.Vec3{}},
			{Name: "sheenRoughness", Type: "f32", Default: float32(0.3)},
		},
		create: func(b *baseComponent) Component { return &SheenComponent{b} },
		shader: &contribution{
			declare: func(ctx *modules.Context) {
				ctx.Claim(shader.Binding{Name: "c3d_sheenLut", Kind: shader.BindingSampledTexture, Type: "texture_2d<f32>",
					Provider: shader.AnnotationArgMaterials, Role: RoleSheenLut})
				ctx.Claim(shader.Binding{Name: "c3d_sheenSampler", Kind: shader.BindingSampler, Type: "sampler",
					Provider: shader.AnnotationArgMaterials, Role: RoleSheenSampler})
			},
			finish: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				s, m := in.Surface, in.Material
				fb.Let("sheenNDotV", "max(dot("+s+".normal, "+s+".viewDir), 0.0)")
				fb.Let("sheenE", "textureSampleLevel(c3d_sheenLut, c3d_sheenSampler, vec2<f32>(sheenNDotV, "+m+".sheenRoughness), 0.0).r")
				fb.Let("sheenMax", "max(max("+m+".sheenColour.r, "+m+".sheenColour.g), "+m+".sheenColour.b)")
				fb.Assign(s+".albedo", s+".albedo * (1.0 - sheenMax * sheenE)")
			},
		},
	}
}

// TransmissionComponent holds the transmitted fraction of light.
type TransmissionComponent struct{ *baseComponent }

// SetTransmission sets the transmission in [0, 1].
func (c *TransmissionComponent) SetTransmission(v float32) { c.set("transmission", v) }

func newTransmissionPlugin() Plugin {
	return &basePlugin{
		id:           IDTransmission,
		flags:        flags.ComponentTransmission,
		textures:     flags.TextureTransmission,
		capabilities: flags.ModeSpecifics | flags.ModeAlphaBlending,
		members:      []Member{{Name: "transmission", Type: "f32", Default: float32(0)}},
		create:       func(b *baseComponent) Component { return &TransmissionComponent{b} },
		shader: &contribution{
			apply: func(fb *shader.FunctionBuilder, in ApplyInputs) {
				fb.Assign(in.Surface+".opacity", in.Surface+".opacity * (1.0 - "+in.Material+".transmission)")
			},
			texture: func(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string) {
				ifChannel(fb, config, flags.TextureTransmission, func() {
					fb.Assign(in.Surface+".opacity", "mix("+in.Surface+".opacity, 1.0, (1.0 - "+sample+".r) * "+in.Material+".transmission)")
				})
			},
		},
	}
}
