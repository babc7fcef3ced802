package modules

import (
	"strconv"

	"github.com/Carmen-Shannon/oxy-castor/engine/model"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
)

// Binding roles of the reflection model.
const (
	RoleEnvMap           shader.AnnotationArg = "env_map"
	RoleRefractionEnvMap shader.AnnotationArg = "refraction_env_map"
	RoleMippedScene      shader.AnnotationArg = "mipped_scene"
	RoleEnvSampler       shader.AnnotationArg = "env_sampler"
)

const (
	// EnvMapMaxLod is the highest mip level of environment maps.
	EnvMapMaxLod = 8
	// SceneMaxLod is the highest mip level of the mipped scene colour.
	SceneMaxLod = 6
	// refractionUVScale converts the refracted direction to a screen-space offset.
	refractionUVScale = 0.05
)

// ReflectionInputs are the expressions ComputeCombined reads. ClearcoatNormal,
// ClearcoatRoughness and SheenColour are only read when the permutation has the
// matching component.
type ReflectionInputs struct {
	Surface            string
	EnvMapIndex        string
	RefractionRatio    string
	ClearcoatNormal    string
	ClearcoatRoughness string
	SheenColour        string
}

// ReflectionOutputs are member expressions of the combined result.
type ReflectionOutputs struct {
	ReflectedDiffuse  string
	ReflectedSpecular string
	Refracted         string
	CoatReflected     string
	SheenReflected    string
}

// ReflectionModel computes environment reflections and refractions. Which sources it
// samples is decided at generation time: reflections sample the environment map array,
// refractions sample the mipped scene colour when the permutation has one and a
// refraction environment map array otherwise.
type ReflectionModel struct {
	ctx   *Context
	utils *Utils

	hasReflection bool
	hasRefraction bool
	hasClearcoat  bool
	hasSheen      bool
	mippedScene   bool

	combined shader.FunctionCell
	calls    int
}

// NewReflectionModel claims the environment bindings the permutation needs: the
// environment map when reflection or refraction is enabled, the refraction source only
// when refraction is enabled, then one shared sampler.
//
// Parameters:
//   - ctx: the module context
//   - utils: the shared helpers
//
// Returns:
//   - *ReflectionModel: the module
func NewReflectionModel(ctx *Context, utils *Utils) *ReflectionModel {
	DeclareSurface(ctx.Writer)
	c := ctx.Flags.Components
	m := &ReflectionModel{
		ctx:           ctx,
		utils:         utils,
		hasReflection: c.Has(flags.ComponentReflection),
		hasRefraction: c.Has(flags.ComponentRefraction),
		hasClearcoat:  c.Has(flags.ComponentClearcoat),
		hasSheen:      c.Has(flags.ComponentSheen),
		mippedScene:   ctx.Flags.Shader.Has(flags.ShaderMippedScene),
	}
	w := ctx.Writer
	w.DeclareStruct(ReflectionResultType,
		"reflectedDiffuse: vec3<f32>",
		"reflectedSpecular: vec3<f32>",
		"refracted: vec3<f32>",
		"coatReflected: vec3<f32>",
		"sheenReflected: vec3<f32>",
	)
	w.DeclareConstant("C3D_NO_ENV_MAP", "u32", uintLiteral(model.NoEnvironmentMap))
	if !m.hasReflection && !m.hasRefraction {
		return m
	}
	w.DeclareConstant("C3D_ENV_MAX_LOD", "f32", floatLiteral(EnvMapMaxLod))
	ctx.texture("c3d_envMaps", "texture_cube_array<f32>", shader.AnnotationArgReflection, RoleEnvMap)
	if m.hasRefraction {
		if m.mippedScene {
			w.DeclareConstant("C3D_SCENE_MAX_LOD", "f32", floatLiteral(SceneMaxLod))
			ctx.texture("c3d_mippedScene", "texture_2d<f32>", shader.AnnotationArgReflection, RoleMippedScene)
		} else {
			ctx.texture("c3d_refractionEnvMaps", "texture_cube_array<f32>", shader.AnnotationArgReflection, RoleRefractionEnvMap)
		}
	}
	ctx.sampler("c3d_envSampler", false, shader.AnnotationArgReflection, RoleEnvSampler)
	return m
}

// Enabled reports whether the permutation reflects or refracts at all.
func (m *ReflectionModel) Enabled() bool { return m.hasReflection || m.hasRefraction }

// ComputeCombined declares a local holding every reflection output and returns the
// expressions of its members. An environment map index of C3D_NO_ENV_MAP yields zero
// contributions.
//
// Parameters:
//   - fb: the function body to emit into
//   - in: the input expressions
//
// Returns:
//   - ReflectionOutputs: member expressions of the result
func (m *ReflectionModel) ComputeCombined(fb *shader.FunctionBuilder, in ReflectionInputs) ReflectionOutputs {
	params := []shader.Param{
		{Name: "surface", Type: SurfaceType},
		{Name: "envIndex", Type: "u32"},
		{Name: "refractionRatio", Type: "f32"},
	}
	args := []string{in.Surface, in.EnvMapIndex, or(in.RefractionRatio, "1.0")}
	if m.hasClearcoat {
		params = append(params, shader.Param{Name: "coatNormal", Type: "vec3<f32>"}, shader.Param{Name: "coatRoughness", Type: "f32"})
		args = append(args, or(in.ClearcoatNormal, in.Surface+".normal"), or(in.ClearcoatRoughness, "0.0"))
	}
	if m.hasSheen {
		params = append(params, shader.Param{Name: "sheenColour", Type: "vec3<f32>"})
		args = append(args, or(in.SheenColour, "vec3<f32>(0.0)"))
	}
	fn := m.combined.Get(m.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_computeReflections", params, ReflectionResultType, m.emitCombined)
	})
	name := "reflections"
	if m.calls > 0 {
		name += strconv.Itoa(m.calls)
	}
	m.calls++
	fb.Let(name, m.ctx.Writer.Call(fn, args...))
	return ReflectionOutputs{
		ReflectedDiffuse:  name + ".reflectedDiffuse",
		ReflectedSpecular: name + ".reflectedSpecular",
		Refracted:         name + ".refracted",
		CoatReflected:     name + ".coatReflected",
		SheenReflected:    name + ".sheenReflected",
	}
}

func (m *ReflectionModel) emitCombined(fb *shader.FunctionBuilder) {
	fb.Var("result", ReflectionResultType, "")
	if !m.Enabled() {
		fb.Return("result")
		return
	}
	fb.If("envIndex == C3D_NO_ENV_MAP", func() { fb.Return("result") })
	fb.Let("layer", "i32(envIndex)")
	fb.Let("nDotV", "max(dot(surface.normal, surface.viewDir), 0.0)")
	fb.Let("f", m.utils.FresnelSchlick("nDotV", "surface.specular"))
	if m.hasReflection {
		fb.Let("r", "reflect(-surface.viewDir, surface.normal)")
		fb.Let("kd", "(vec3<f32>(1.0) - f) * (1.0 - surface.metalness)")
		fb.Assign("result.reflectedSpecular",
			"textureSampleLevel(c3d_envMaps, c3d_envSampler, r, layer, surface.roughness * C3D_ENV_MAX_LOD).rgb * f")
		fb.Assign("result.reflectedDiffuse",
			"textureSampleLevel(c3d_envMaps, c3d_envSampler, surface.normal, layer, C3D_ENV_MAX_LOD).rgb * surface.albedo * kd")
		if m.hasClearcoat {
			fb.Let("coatR", "reflect(-surface.viewDir, coatNormal)")
			fb.Let("coatF", m.utils.FresnelSchlick("max(dot(coatNormal, surface.viewDir), 0.0)", "vec3<f32>(0.04)"))
			fb.Assign("result.coatReflected",
				"textureSampleLevel(c3d_envMaps, c3d_envSampler, coatR, layer, coatRoughness * C3D_ENV_MAX_LOD).rgb * coatF")
		}
		if m.hasSheen {
			fb.Assign("result.sheenReflected",
				"textureSampleLevel(c3d_envMaps, c3d_envSampler, surface.normal, layer, C3D_ENV_MAX_LOD).rgb * sheenColour")
		}
	}
	if m.hasRefraction {
		fb.Let("t", "refract(-surface.viewDir, surface.normal, refractionRatio)")
		if m.mippedScene {
			fb.Let("uv", "surface.fragCoord / c3d_scene.renderSize + t.xy * "+floatLiteral(refractionUVScale))
			fb.Assign("result.refracted",
				"textureSampleLevel(c3d_mippedScene, c3d_envSampler, uv, surface.roughness * C3D_SCENE_MAX_LOD).rgb * surface.albedo")
		} else {
			fb.Assign("result.refracted",
				"textureSampleLevel(c3d_refractionEnvMaps, c3d_envSampler, t, layer, surface.roughness * C3D_ENV_MAX_LOD).rgb * surface.albedo")
		}
	}
	fb.Return("result")
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
