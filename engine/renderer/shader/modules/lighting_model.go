package modules

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
)

// LightingModel evaluates the BRDF of the permutation's lighting model. The variant is
// fixed at construction; every entry point dispatches on it once, at generation time.
type LightingModel struct {
	ctx   *Context
	utils *Utils
	kind  flags.LightingModelID

	diffuse  shader.FunctionCell
	specular shader.FunctionCell
	difSpec  shader.FunctionCell
}

var brdfParams = []shader.Param{
	{Name: "surface", Type: SurfaceType},
	{Name: "lightDir", Type: "vec3<f32>"},
	{Name: "radiance", Type: "vec3<f32>"},
}

// NewLightingModel creates the lighting model selected by the context's flags.
//
// Parameters:
//   - ctx: the module context
//   - utils: the shared helpers
//
// Returns:
//   - *LightingModel: the model
func NewLightingModel(ctx *Context, utils *Utils) *LightingModel {
	DeclareSurface(ctx.Writer)
	return &LightingModel{ctx: ctx, utils: utils, kind: ctx.Flags.LightingModel}
}

// Kind returns the lighting model variant.
func (m *LightingModel) Kind() flags.LightingModelID { return m.kind }

// ComputeDiffuse returns the diffuse response to one light.
//
// Parameters:
//   - surface: a Surface expression
//   - lightDir: normalized direction from the surface towards the light
//   - radiance: incoming light colour times intensity and attenuation
//
// Returns:
//   - string: a vec3<f32> expression
func (m *LightingModel) ComputeDiffuse(surface, lightDir, radiance string) string {
	fn := m.diffuse.Get(m.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		switch m.kind {
		case flags.LightingModelPBR:
			return w.ImplementFunction("c3d_pbrDiffuse", brdfParams, "vec3<f32>", func(fb *shader.FunctionBuilder) {
				fb.Let("h", "normalize(lightDir + surface.viewDir)")
				fb.Let("f", m.utils.FresnelSchlick("max(dot(h, surface.viewDir), 0.0)", "surface.specular"))
				fb.Let("kd", "(vec3<f32>(1.0) - f) * (1.0 - surface.metalness)")
				fb.Let("nDotL", "max(dot(surface.normal, lightDir), 0.0)")
				fb.Return("kd * surface.albedo / C3D_PI * radiance * nDotL")
			})
		case flags.LightingModelPhong:
			return w.ImplementFunction("c3d_phongDiffuse", brdfParams, "vec3<f32>", func(fb *shader.FunctionBuilder) {
				fb.Return("surface.albedo * radiance * max(dot(surface.normal, lightDir), 0.0)")
			})
		}
		return w.ImplementFunction("c3d_unlitDiffuse", brdfParams, "vec3<f32>", func(fb *shader.FunctionBuilder) {
			fb.Return("surface.albedo * radiance")
		})
	})
	return m.ctx.Writer.Call(fn, surface, lightDir, radiance)
}

// ComputeSpecular returns the specular response to one light. Same parameters as
// ComputeDiffuse.
func (m *LightingModel) ComputeSpecular(surface, lightDir, radiance string) string {
	fn := m.specular.Get(m.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		switch m.kind {
		case flags.LightingModelPBR:
			return w.ImplementFunction("c3d_pbrSpecular", brdfParams, "vec3<f32>", func(fb *shader.FunctionBuilder) {
				fb.Let("h", "normalize(lightDir + surface.viewDir)")
				fb.Let("nDotL", "max(dot(surface.normal, lightDir), 0.0)")
				fb.Let("nDotV", "max(dot(surface.normal, surface.viewDir), 0.0001)")
				fb.Let("nDotH", "max(dot(surface.normal, h), 0.0)")
				fb.Let("a", "surface.roughness * surface.roughness")
				fb.Let("a2", "a * a")
				fb.Let("denom", "nDotH * nDotH * (a2 - 1.0) + 1.0")
				fb.Let("d", "a2 / (C3D_PI * denom * denom)")
				fb.Let("k", "(surface.roughness + 1.0) * (surface.roughness + 1.0) / 8.0")
				fb.Let("g", "(nDotV / (nDotV * (1.0 - k) + k)) * (nDotL / (nDotL * (1.0 - k) + k))")
				fb.Let("f", m.utils.FresnelSchlick("max(dot(h, surface.viewDir), 0.0)", "surface.specular"))
				fb.Return("d * g * f / (4.0 * nDotV * max(nDotL, 0.0001)) * radiance * nDotL")
			})
		case flags.LightingModelPhong:
			return w.ImplementFunction("c3d_phongSpecular", brdfParams, "vec3<f32>", func(fb *shader.FunctionBuilder) {
				fb.Let("r", "reflect(-lightDir, surface.normal)")
				fb.Let("s", "pow(max(dot(r, surface.viewDir), 0.0), max(surface.shininess, 1.0))")
				fb.Return("surface.specular * radiance * s * step(0.0, dot(surface.normal, lightDir))")
			})
		}
		return w.ImplementFunction("c3d_unlitSpecular", brdfParams, "vec3<f32>", func(fb *shader.FunctionBuilder) {
			fb.Return("vec3<f32>(0.0)")
		})
	})
	return m.ctx.Writer.Call(fn, surface, lightDir, radiance)
}

// ComputeDifSpec returns both responses as a DifSpec.
func (m *LightingModel) ComputeDifSpec(surface, lightDir, radiance string) string {
	fn := m.difSpec.Get(m.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_computeDifSpec", brdfParams, DifSpecType, func(fb *shader.FunctionBuilder) {
			fb.Var("result", DifSpecType, "")
			fb.Assign("result.diffuse", m.ComputeDiffuse("surface", "lightDir", "radiance"))
			fb.Assign("result.specular", m.ComputeSpecular("surface", "lightDir", "radiance"))
			fb.Return("result")
		})
	})
	return m.ctx.Writer.Call(fn, surface, lightDir, radiance)
}
