package modules

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
)

// Binding roles of the background models.
const (
	RoleBackgroundColour  shader.AnnotationArg = "colour"
	RoleSkybox            shader.AnnotationArg = "skybox"
	RolePrefiltered       shader.AnnotationArg = "prefiltered"
	RoleIrradiance        shader.AnnotationArg = "irradiance"
	RoleBrdfLut           shader.AnnotationArg = "brdf_lut"
	RoleBackgroundSampler shader.AnnotationArg = "sampler"
)

const backgroundMaxLodConst = "C3D_BACKGROUND_MAX_LOD"

// BackgroundMaxLod is the mip count minus one of skybox and prefiltered cube maps.
const BackgroundMaxLod = 8

// Background is the scene background used for reflections and refractions when no
// local environment map applies. Colour backgrounds only tint specular reflections.
type Background struct {
	ctx   *Context
	utils *Utils
	kind  flags.BackgroundModelID

	reflections shader.FunctionCell
	refractions shader.FunctionCell
}

// NewBackground declares the bindings of the background model selected by the flags.
//
// Parameters:
//   - ctx: the module context
//   - utils: the shared helpers
//
// Returns:
//   - *Background: the module
func NewBackground(ctx *Context, utils *Utils) *Background {
	DeclareSurface(ctx.Writer)
	b := &Background{ctx: ctx, utils: utils, kind: ctx.Flags.BackgroundModel}
	ctx.Writer.DeclareConstant(backgroundMaxLodConst, "f32", floatLiteral(BackgroundMaxLod))
	switch b.kind {
	case flags.BackgroundModelColour:
		ctx.Claim(shader.Binding{Name: "c3d_backgroundColour", Kind: shader.BindingUniform, Type: "vec4<f32>",
			Provider: shader.AnnotationArgBackground, Role: RoleBackgroundColour})
	case flags.BackgroundModelSkybox:
		ctx.texture("c3d_skybox", "texture_cube<f32>", shader.AnnotationArgBackground, RoleSkybox)
		ctx.sampler("c3d_backgroundSampler", false, shader.AnnotationArgBackground, RoleBackgroundSampler)
	case flags.BackgroundModelIBL:
		ctx.texture("c3d_prefiltered", "texture_cube<f32>", shader.AnnotationArgBackground, RolePrefiltered)
		ctx.texture("c3d_irradiance", "texture_cube<f32>", shader.AnnotationArgBackground, RoleIrradiance)
		ctx.texture("c3d_brdfLut", "texture_2d<f32>", shader.AnnotationArgBackground, RoleBrdfLut)
		ctx.sampler("c3d_backgroundSampler", false, shader.AnnotationArgBackground, RoleBackgroundSampler)
	}
	return b
}

// Kind returns the background variant.
func (b *Background) Kind() flags.BackgroundModelID { return b.kind }

// ComputeReflections returns the background's diffuse and specular reflection of the
// surface as a DifSpec expression.
func (b *Background) ComputeReflections(surface string) string {
	fn := b.reflections.Get(b.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_backgroundReflections",
			[]shader.Param{{Name: "surface", Type: SurfaceType}},
			DifSpecType,
			func(fb *shader.FunctionBuilder) {
				fb.Var("result", DifSpecType, "")
				fb.Let("nDotV", "max(dot(surface.normal, surface.viewDir), 0.0)")
				fb.Let("f", b.utils.FresnelSchlick("nDotV", "surface.specular"))
				fb.Let("r", "reflect(-surface.viewDir, surface.normal)")
				switch b.kind {
				case flags.BackgroundModelColour:
					fb.Assign("result.specular", "c3d_backgroundColour.rgb * f")
				case flags.BackgroundModelSkybox:
					fb.Assign("result.specular", "textureSampleLevel(c3d_skybox, c3d_backgroundSampler, r, surface.roughness * "+backgroundMaxLodConst+").rgb * f")
				case flags.BackgroundModelIBL:
					fb.Let("irradiance", "textureSampleLevel(c3d_irradiance, c3d_backgroundSampler, surface.normal, 0.0).rgb")
					fb.Let("kd", "(vec3<f32>(1.0) - f) * (1.0 - surface.metalness)")
					fb.Assign("result.diffuse", "kd * irradiance * surface.albedo")
					fb.Let("prefiltered", "textureSampleLevel(c3d_prefiltered, c3d_backgroundSampler, r, surface.roughness * "+backgroundMaxLodConst+").rgb")
					fb.Let("brdf", "textureSampleLevel(c3d_brdfLut, c3d_backgroundSampler, vec2<f32>(nDotV, surface.roughness), 0.0).rg")
					fb.Assign("result.specular", "prefiltered * (surface.specular * brdf.x + brdf.y)")
				}
				fb.Return("result")
			})
	})
	return b.ctx.Writer.Call(fn, surface)
}

// ComputeRefractions returns the background seen through the surface.
//
// Parameters:
//   - surface: a Surface expression
//   - ratio: the refraction ratio (incident over transmitted index)
//
// Returns:
//   - string: a vec3<f32> expression
func (b *Background) ComputeRefractions(surface, ratio string) string {
	fn := b.refractions.Get(b.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_backgroundRefractions",
			[]shader.Param{{Name: "surface", Type: SurfaceType}, {Name: "ratio", Type: "f32"}},
			"vec3<f32>",
			func(fb *shader.FunctionBuilder) {
				fb.Let("t", "refract(-surface.viewDir, surface.normal, ratio)")
				switch b.kind {
				case flags.BackgroundModelColour:
					fb.Return("c3d_backgroundColour.rgb * surface.albedo")
				case flags.BackgroundModelSkybox:
					fb.Return("textureSampleLevel(c3d_skybox, c3d_backgroundSampler, t, surface.roughness * " + backgroundMaxLodConst + ").rgb * surface.albedo")
				default:
					fb.Return("textureSampleLevel(c3d_prefiltered, c3d_backgroundSampler, t, surface.roughness * " + backgroundMaxLodConst + ").rgb * surface.albedo")
				}
			})
	})
	return b.ctx.Writer.Call(fn, surface, ratio)
}
