package modules

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// Binding roles of the global illumination volumes.
const (
	RoleVoxelConfig shader.AnnotationArg = "voxel_config"
	RoleVoxels      shader.AnnotationArg = "voxels"
	RoleLpvConfig   shader.AnnotationArg = "lpv_config"
	RoleLpvR        shader.AnnotationArg = "lpv_r"
	RoleLpvG        shader.AnnotationArg = "lpv_g"
	RoleLpvB        shader.AnnotationArg = "lpv_b"
	RoleGISampler   shader.AnnotationArg = "gi_sampler"
)

// Voxel cone tracing constants.
const (
	// ConeSteps bounds the number of samples taken along one cone.
	ConeSteps = 16
	// MaxTraceDistance is the distance in world units after which a cone stops.
	MaxTraceDistance = 100.0
	// OpacitySaturation stops a cone once its accumulated opacity reaches it.
	OpacitySaturation = 0.95
	// DiffuseConeAperture is the tangent of the half angle of the diffuse cones.
	DiffuseConeAperture = 0.577
	// MinSpecularAperture keeps mirror-like surfaces from tracing zero-width cones.
	MinSpecularAperture = 0.01
)

// LpvCascades is the number of cascades of a layered light propagation volume.
const LpvCascades = 3

// GlobalIllumination adds indirect lighting from the technique selected by the scene
// flags. Only the selected technique's bindings and functions are declared.
type GlobalIllumination struct {
	ctx  *Context
	kind flags.GIKind

	traceCone  shader.FunctionCell
	shEvaluate shader.FunctionCell
	lpv        shader.FunctionCell
	indirect   shader.FunctionCell
}

// NewGlobalIllumination declares the bindings of the scene's GI technique, if any.
//
// Parameters:
//   - ctx: the module context
//
// Returns:
//   - *GlobalIllumination: the module
func NewGlobalIllumination(ctx *Context) *GlobalIllumination {
	DeclareSurface(ctx.Writer)
	g := &GlobalIllumination{ctx: ctx, kind: ctx.Flags.Scene.GI()}
	w := ctx.Writer
	switch g.kind {
	case flags.GIVoxelConeTracing:
		w.DeclareStruct(voxelConfigType, voxelConfigMembers...)
		w.DeclareConstant("C3D_VCT_CONE_STEPS", "u32", uintLiteral(ConeSteps))
		w.DeclareConstant("C3D_VCT_MAX_TRACE_DISTANCE", "f32", floatLiteral(MaxTraceDistance))
		w.DeclareConstant("C3D_VCT_OPACITY_SATURATION", "f32", floatLiteral(OpacitySaturation))
		ctx.Claim(shader.Binding{Name: "c3d_voxelConfig", Kind: shader.BindingUniform, Type: voxelConfigType,
			Provider: shader.AnnotationArgGI, Role: RoleVoxelConfig})
		ctx.texture("c3d_voxels", "texture_3d<f32>", shader.AnnotationArgGI, RoleVoxels)
		ctx.sampler("c3d_giSampler", false, shader.AnnotationArgGI, RoleGISampler)
	case flags.GILpv, flags.GILayeredLpv:
		if g.kind == flags.GILpv {
			w.DeclareStruct(lpvConfigType, lpvConfigMembers...)
		} else {
			w.DeclareConstant("C3D_LPV_CASCADES", "u32", uintLiteral(LpvCascades))
			w.DeclareStruct(lpvConfigType, layeredLpvConfigMembers...)
		}
		ctx.Claim(shader.Binding{Name: "c3d_lpvConfig", Kind: shader.BindingUniform, Type: lpvConfigType,
			Provider: shader.AnnotationArgGI, Role: RoleLpvConfig})
		ctx.texture("c3d_lpvR", "texture_3d<f32>", shader.AnnotationArgGI, RoleLpvR)
		ctx.texture("c3d_lpvG", "texture_3d<f32>", shader.AnnotationArgGI, RoleLpvG)
		ctx.texture("c3d_lpvB", "texture_3d<f32>", shader.AnnotationArgGI, RoleLpvB)
		ctx.sampler("c3d_giSampler", false, shader.AnnotationArgGI, RoleGISampler)
	}
	return g
}

// Kind returns the GI technique.
func (g *GlobalIllumination) Kind() flags.GIKind { return g.kind }

// Enabled reports whether any GI technique is active.
func (g *GlobalIllumination) Enabled() bool { return g.kind != flags.GINone }

// ComputeIndirect returns the indirect diffuse and specular lighting of a surface as a
// DifSpec expression. Without GI the result is zero.
func (g *GlobalIllumination) ComputeIndirect(surface string) string {
	fn := g.indirect.Get(g.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_computeIndirect",
			[]shader.Param{{Name: "surface", Type: SurfaceType}},
			DifSpecType,
			func(fb *shader.FunctionBuilder) {
				fb.Var("result", DifSpecType, "")
				switch g.kind {
				case flags.GIVoxelConeTracing:
					g.emitConeTracedIndirect(fb)
				case flags.GILpv, flags.GILayeredLpv:
					fb.Assign("result.diffuse", g.lpvIrradiance("surface.worldPosition", "surface.normal")+" * surface.albedo * surface.occlusion")
				}
				fb.Return("result")
			})
	})
	return g.ctx.Writer.Call(fn, surface)
}

func (g *GlobalIllumination) emitConeTracedIndirect(fb *shader.FunctionBuilder) {
	fb.Let("origin", "surface.worldPosition + surface.normal * c3d_voxelConfig.voxelSize")
	fb.Let("up", "select(vec3<f32>(0.0, 1.0, 0.0), vec3<f32>(1.0, 0.0, 0.0), abs(surface.normal.y) > 0.99)")
	fb.Let("tangent", "normalize(cross(up, surface.normal))")
	fb.Let("bitangent", "cross(surface.normal, tangent)")
	fb.Var("diffuse", "vec4<f32>", g.TraceCone("origin", "surface.normal", floatLiteral(DiffuseConeAperture))+" * 0.25")
	for _, dir := range []string{"tangent", "-tangent", "bitangent", "-bitangent"} {
		fb.Assign("diffuse", "diffuse + "+g.TraceCone("origin", "normalize(surface.normal + "+dir+")", floatLiteral(DiffuseConeAperture))+" * 0.1875")
	}
	fb.Let("aperture", "max(tan(surface.roughness * C3D_PI * 0.25), "+floatLiteral(MinSpecularAperture)+")")
	fb.Let("specular", g.TraceCone("origin", "reflect(-surface.viewDir, surface.normal)", "aperture"))
	fb.Assign("result.diffuse", "diffuse.rgb * surface.albedo * (1.0 - surface.metalness)")
	fb.Assign("result.specular", "specular.rgb * surface.specular")
}

// TraceCone marches one cone through the voxel volume and returns premultiplied
// radiance with accumulated opacity in w.
func (g *GlobalIllumination) TraceCone(origin, dir, aperture string) string {
	fn := g.traceCone.Get(g.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_traceCone",
			[]shader.Param{{Name: "origin", Type: "vec3<f32>"}, {Name: "dir", Type: "vec3<f32>"}, {Name: "aperture", Type: "f32"}},
			"vec4<f32>",
			func(fb *shader.FunctionBuilder) {
				fb.Var("acc", "vec4<f32>", "vec4<f32>(0.0)")
				fb.Var("dist", "f32", "c3d_voxelConfig.voxelSize")
				fb.For("var i = 0u", "i < C3D_VCT_CONE_STEPS", "i++", func() {
					fb.If("acc.a >= C3D_VCT_OPACITY_SATURATION || dist >= C3D_VCT_MAX_TRACE_DISTANCE", func() {
						fb.Line("break;")
					})
					fb.Let("diameter", "max(c3d_voxelConfig.voxelSize, 2.0 * aperture * dist)")
					fb.Let("mip", "min(log2(diameter / c3d_voxelConfig.voxelSize), c3d_voxelConfig.maxMip)")
					fb.Let("uvw", "(origin + dir * dist - c3d_voxelConfig.centre) * c3d_voxelConfig.worldToGrid + vec3<f32>(0.5)")
					fb.If("any(uvw < vec3<f32>(0.0)) || any(uvw > vec3<f32>(1.0))", func() {
						fb.Line("break;")
					})
					fb.Let("s", "textureSampleLevel(c3d_voxels, c3d_giSampler, uvw, mip)")
					fb.Assign("acc", "acc + (1.0 - acc.a) * s")
					fb.Assign("dist", "dist + diameter * 0.5")
				})
				fb.Return("acc")
			})
	})
	return g.ctx.Writer.Call(fn, origin, dir, aperture)
}

func (g *GlobalIllumination) lpvIrradiance(position, normal string) string {
	sh := g.shEvaluate.Get(g.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_shEvaluate", []shader.Param{{Name: "n", Type: "vec3<f32>"}}, "vec4<f32>",
			func(fb *shader.FunctionBuilder) {
				fb.Return("vec4<f32>(0.282095, -0.488603 * n.y, 0.488603 * n.z, -0.488603 * n.x)")
			})
	})
	fn := g.lpv.Get(g.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_lpvIrradiance",
			[]shader.Param{{Name: "position", Type: "vec3<f32>"}, {Name: "normal", Type: "vec3<f32>"}},
			"vec3<f32>",
			func(fb *shader.FunctionBuilder) {
				if g.kind == flags.GILpv {
					fb.Let("uvw", "(position - c3d_lpvConfig.minVolume) / (c3d_lpvConfig.cellSize * c3d_lpvConfig.gridSize)")
				} else {
					fb.Var("cascade", "u32", "C3D_LPV_CASCADES - 1u")
					fb.For("var c = 0u", "c < C3D_LPV_CASCADES", "c++", func() {
						fb.Let("local", "(position - c3d_lpvConfig.cascades[c].xyz) / (c3d_lpvConfig.cascades[c].w * c3d_lpvConfig.gridSize)")
						fb.If("all(local >= vec3<f32>(0.0)) && all(local <= vec3<f32>(1.0))", func() {
							fb.Assign("cascade", "c")
							fb.Line("break;")
						})
					})
					fb.Let("local", "(position - c3d_lpvConfig.cascades[cascade].xyz) / (c3d_lpvConfig.cascades[cascade].w * c3d_lpvConfig.gridSize)")
					fb.Let("uvw", "vec3<f32>(local.xy, (f32(cascade) + saturate(local.z)) / f32(C3D_LPV_CASCADES))")
				}
				fb.Let("sh", g.ctx.Writer.Call(sh, "-normal"))
				fb.Let("r", "dot(textureSampleLevel(c3d_lpvR, c3d_giSampler, uvw, 0.0), sh)")
				fb.Let("g", "dot(textureSampleLevel(c3d_lpvG, c3d_giSampler, uvw, 0.0), sh)")
				fb.Let("b", "dot(textureSampleLevel(c3d_lpvB, c3d_giSampler, uvw, 0.0), sh)")
				fb.Return("max(vec3<f32>(r, g, b), vec3<f32>(0.0)) / C3D_PI * c3d_lpvConfig.indirectAttenuation")
			})
	})
	return g.ctx.Writer.Call(fn, position, normal)
}

// ConeSample returns the premultiplied voxel radiance at a world position and mip
// level, and false once the position leaves the volume.
type ConeSample func(pos mgl32.Vec3, mip float32) (mgl32.Vec4, bool)

// TraceCone is the CPU reference of the generated cone march. It returns the
// accumulated radiance and opacity and the number of samples taken.
//
// Parameters:
//   - sample: the voxel lookup
//   - origin: the cone apex
//   - dir: the normalized cone axis
//   - aperture: tangent of the cone's half angle
//   - voxelSize: world size of one voxel at mip 0
//   - maxMip: the highest mip level of the volume
//
// Returns:
//   - mgl32.Vec4: premultiplied radiance, opacity in w
//   - int: the samples taken, at most ConeSteps
func TraceCone(sample ConeSample, origin, dir mgl32.Vec3, aperture, voxelSize, maxMip float32) (mgl32.Vec4, int) {
	var acc mgl32.Vec4
	dist := voxelSize
	steps := 0
	for range ConeSteps {
		if acc[3] >= OpacitySaturation || dist >= MaxTraceDistance {
			break
		}
		diameter := max(voxelSize, 2*aperture*dist)
		mip := min(log2(diameter/voxelSize), maxMip)
		s, ok := sample(origin.Add(dir.Mul(dist)), mip)
		if !ok {
			break
		}
		steps++
		acc = acc.Add(s.Mul(1 - acc[3]))
		dist += diameter * 0.5
	}
	return acc, steps
}
