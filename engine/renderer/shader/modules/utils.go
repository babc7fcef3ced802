package modules

import "github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"

// Utils holds helper functions shared by the other modules.
type Utils struct {
	ctx *Context

	linearizeDepth shader.FunctionCell
	fresnelSchlick shader.FunctionCell
	computeF0      shader.FunctionCell
}

// NewUtils creates the helper module. It claims no bindings.
func NewUtils(ctx *Context) *Utils {
	ctx.Writer.DeclareConstant("C3D_PI", "f32", "3.14159265")
	return &Utils{ctx: ctx}
}

// LinearizeDepth converts a [0, 1] depth buffer value to positive view distance.
func (u *Utils) LinearizeDepth(depth, near, far string) string {
	fn := u.linearizeDepth.Get(u.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_linearizeDepth",
			[]shader.Param{{Name: "depth", Type: "f32"}, {Name: "near", Type: "f32"}, {Name: "far", Type: "f32"}},
			"f32",
			func(fb *shader.FunctionBuilder) {
				fb.Return("near * far / (far - depth * (far - near))")
			})
	})
	return u.ctx.Writer.Call(fn, depth, near, far)
}

// FresnelSchlick returns the Schlick approximation for a cosine and a reflectance at
// normal incidence.
func (u *Utils) FresnelSchlick(cosTheta, f0 string) string {
	fn := u.fresnelSchlick.Get(u.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_fresnelSchlick",
			[]shader.Param{{Name: "cosTheta", Type: "f32"}, {Name: "f0", Type: "vec3<f32>"}},
			"vec3<f32>",
			func(fb *shader.FunctionBuilder) {
				fb.Return("f0 + (vec3<f32>(1.0) - f0) * pow(1.0 - saturate(cosTheta), 5.0)")
			})
	})
	return u.ctx.Writer.Call(fn, cosTheta, f0)
}

// ComputeF0 derives the reflectance at normal incidence from albedo and metalness.
func (u *Utils) ComputeF0(albedo, metalness string) string {
	fn := u.computeF0.Get(u.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_computeF0",
			[]shader.Param{{Name: "albedo", Type: "vec3<f32>"}, {Name: "metalness", Type: "f32"}},
			"vec3<f32>",
			func(fb *shader.FunctionBuilder) {
				fb.Return("mix(vec3<f32>(0.04), albedo, metalness)")
			})
	})
	return u.ctx.Writer.Call(fn, albedo, metalness)
}
