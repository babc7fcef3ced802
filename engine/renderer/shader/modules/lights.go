package modules

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/light"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
)

// Binding roles of the lighting block.
const (
	RoleLights         shader.AnnotationArg = "lights"
	RoleClusterConfig  shader.AnnotationArg = "cluster_config"
	RoleClusterGrid    shader.AnnotationArg = "cluster_grid"
	RoleClusterIndices shader.AnnotationArg = "cluster_indices"
	RoleShadowData     shader.AnnotationArg = "shadow_data"
	RoleShadowMaps     shader.AnnotationArg = "shadow_maps"
	RoleShadowSampler  shader.AnnotationArg = "shadow_sampler"
)

// lightsBufferType wraps the header and the light array in one storage buffer, matching
// light.MarshalLightBuffer.
const lightsBufferType = "LightsBuffer"

// LightsBindingCount returns how many slots the lighting block claims for a scene.
func LightsBindingCount(scene flags.SceneFlags) uint32 {
	if scene.HasAny(flags.SceneShadowMask) {
		return 7
	}
	return 4
}

// ClusteredLights evaluates directional lights for every pixel and positional lights
// through the cluster grid. Only the first MaxLightsPerCluster lights of a cluster are
// evaluated; the result's overflow member flags clusters holding more.
type ClusteredLights struct {
	ctx     *Context
	model   *LightingModel
	shadows bool

	clusterIndex shader.FunctionCell
	attenuation  shader.FunctionCell
	shadow       shader.FunctionCell
	combined     shader.FunctionCell
}

// NewClusteredLights declares the lighting block: light buffer, cluster configuration,
// grid and index list, then the shadow maps when the scene casts shadows.
//
// Parameters:
//   - ctx: the module context
//   - model: the lighting model evaluated per light
//
// Returns:
//   - *ClusteredLights: the module
func NewClusteredLights(ctx *Context, model *LightingModel) *ClusteredLights {
	w := ctx.Writer
	w.Include(shader.AnnotationArgLightHeader)
	w.Include(shader.AnnotationArgLight)
	w.DeclareStruct(lightsBufferType,
		"header: "+w.StructType(shader.AnnotationArgLightHeader),
		"lights: array<"+w.StructType(shader.AnnotationArgLight)+">",
	)
	w.DeclareConstant("C3D_MAX_LIGHTS_PER_CLUSTER", "u32", uintLiteral(light.MaxLightsPerCluster))

	ctx.Claim(shader.Binding{Name: "c3d_lights", Kind: shader.BindingStorage, Type: lightsBufferType,
		Provider: shader.AnnotationArgLights, Role: RoleLights})
	ctx.Claim(shader.Binding{Name: "c3d_clusterConfig", Kind: shader.BindingUniform, Struct: shader.AnnotationArgClusterConfig,
		Provider: shader.AnnotationArgLights, Role: RoleClusterConfig})
	ctx.Claim(shader.Binding{Name: "c3d_clusterGrid", Kind: shader.BindingStorage, Type: "array<vec2<u32>>",
		Provider: shader.AnnotationArgLights, Role: RoleClusterGrid})
	ctx.Claim(shader.Binding{Name: "c3d_clusterIndices", Kind: shader.BindingStorage, Type: "array<u32>",
		Provider: shader.AnnotationArgLights, Role: RoleClusterIndices})

	l := &ClusteredLights{ctx: ctx, model: model, shadows: ctx.Flags.Scene.HasAny(flags.SceneShadowMask)}
	if l.shadows {
		ctx.Claim(shader.Binding{Name: "c3d_shadowData", Kind: shader.BindingStorage, Struct: shader.AnnotationArgShadowData, Array: true,
			Provider: shader.AnnotationArgLights, Role: RoleShadowData})
		ctx.texture("c3d_shadowMaps", "texture_depth_2d_array", shader.AnnotationArgLights, RoleShadowMaps)
		ctx.sampler("c3d_shadowSampler", true, shader.AnnotationArgLights, RoleShadowSampler)
	}
	return l
}

// ClusterIndex returns the flattened cluster index of a pixel, computed like
// light.ClusterGrid.Flatten(ClusterIndex3D(...)).
func (l *ClusteredLights) ClusterIndex(fragCoord, viewDepth string) string {
	fn := l.clusterIndex.Get(l.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_clusterIndex",
			[]shader.Param{{Name: "fragCoord", Type: "vec2<f32>"}, {Name: "viewDepth", Type: "f32"}},
			"u32",
			func(fb *shader.FunctionBuilder) {
				fb.Let("dims", "c3d_clusterConfig.dimensions")
				fb.Let("tile", "c3d_clusterConfig.viewSize / vec2<f32>(f32(dims.x), f32(dims.y))")
				fb.Let("xy", "min(vec2<u32>(max(fragCoord / tile, vec2<f32>(0.0))), dims.xy - vec2<u32>(1u))")
				fb.Var("z", "u32", "0u")
				fb.If("viewDepth > c3d_clusterConfig.nearPlane", func() {
					fb.Assign("z", "min(u32(max(log(viewDepth) * c3d_clusterConfig.logScale + c3d_clusterConfig.logBias, 0.0)), dims.z - 1u)")
				})
				fb.Return("xy.x + xy.y * dims.x + z * dims.x * dims.y")
			})
	})
	return l.ctx.Writer.Call(fn, fragCoord, viewDepth)
}

func (l *ClusteredLights) attenuate(lightExpr, toLight string) string {
	fn := l.attenuation.Get(l.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_attenuation",
			[]shader.Param{{Name: "light", Type: w.StructType(shader.AnnotationArgLight)}, {Name: "toLight", Type: "vec3<f32>"}},
			"f32",
			func(fb *shader.FunctionBuilder) {
				fb.Let("dist", "length(toLight)")
				fb.If("dist >= light.range", func() { fb.Return("0.0") })
				fb.Let("falloff", "saturate(1.0 - pow(dist / light.range, 4.0))")
				fb.Var("att", "f32", "falloff * falloff / (dist * dist + 1.0)")
				fb.If("light.lightType == "+uintLiteral(uint32(light.Spot)), func() {
					fb.Let("cosAngle", "dot(normalize(-toLight), light.direction)")
					fb.Assign("att", "att * smoothstep(light.outerCone, light.innerCone, cosAngle)")
				})
				fb.Return("att")
			})
	})
	return l.ctx.Writer.Call(fn, lightExpr, toLight)
}

func (l *ClusteredLights) shadowFactor(lightExpr, surface string) string {
	if !l.shadows {
		return "1.0"
	}
	fn := l.shadow.Get(l.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_shadowFactor",
			[]shader.Param{{Name: "light", Type: w.StructType(shader.AnnotationArgLight)}, {Name: "surface", Type: SurfaceType}},
			"f32",
			func(fb *shader.FunctionBuilder) {
				fb.If("light.shadowIndex < 0", func() { fb.Return("1.0") })
				fb.Let("data", "c3d_shadowData[light.shadowIndex]")
				fb.Let("biased", "surface.worldPosition + surface.normal * data.normalBias")
				fb.Let("clip", "data.lightViewProj * vec4<f32>(biased, 1.0)")
				fb.Let("ndc", "clip.xyz / clip.w")
				fb.Let("uv", "vec2<f32>(ndc.x * 0.5 + 0.5, 0.5 - ndc.y * 0.5)")
				fb.If("any(uv < vec2<f32>(0.0)) || any(uv > vec2<f32>(1.0)) || ndc.z > 1.0", func() { fb.Return("1.0") })
				fb.Return("textureSampleCompareLevel(c3d_shadowMaps, c3d_shadowSampler, uv, light.shadowIndex, ndc.z - data.bias)")
			})
	})
	return l.ctx.Writer.Call(fn, lightExpr, surface)
}

// ComputeCombinedDifSpec sums the contributions of every light affecting the surface,
// plus the ambient term.
//
// Parameters:
//   - surface: a Surface expression; fragCoord and viewDepth select the cluster
//
// Returns:
//   - string: a DifSpec expression whose overflow member is 1.0 when the cluster held
//     more lights than were evaluated
func (l *ClusteredLights) ComputeCombinedDifSpec(surface string) string {
	fn := l.combined.Get(l.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_computeCombinedDifSpec",
			[]shader.Param{{Name: "surface", Type: SurfaceType}},
			DifSpecType,
			func(fb *shader.FunctionBuilder) {
				fb.Var("result", DifSpecType, "")
				fb.Let("header", "c3d_lights.header")
				fb.For("var i = 0u", "i < header.directionalCount", "i++", func() {
					fb.Let("light", "c3d_lights.lights[i]")
					fb.Let("radiance", "light.colour * light.intensity * "+l.shadowFactor("light", "surface"))
					fb.Let("ds", l.model.ComputeDifSpec("surface", "-light.direction", "radiance"))
					fb.Assign("result.diffuse", "result.diffuse + ds.diffuse")
					fb.Assign("result.specular", "result.specular + ds.specular")
				})
				fb.Let("entry", "c3d_clusterGrid["+l.ClusterIndex("surface.fragCoord", "surface.viewDepth")+"]")
				fb.Let("maxLights", "min(c3d_clusterConfig.maxLightsPerCluster, C3D_MAX_LIGHTS_PER_CLUSTER)")
				fb.If("entry.y > maxLights", func() {
					fb.Assign("result.overflow", "1.0")
				})
				fb.Let("count", "min(entry.y, maxLights)")
				fb.For("var i = 0u", "i < count", "i++", func() {
					fb.Let("light", "c3d_lights.lights[header.directionalCount + c3d_clusterIndices[entry.x + i]]")
					fb.Let("toLight", "light.position - surface.worldPosition")
					fb.Let("att", l.attenuate("light", "toLight"))
					fb.If("att > 0.0", func() {
						fb.Let("radiance", "light.colour * light.intensity * att * "+l.shadowFactor("light", "surface"))
						fb.Let("ds", l.model.ComputeDifSpec("surface", "normalize(toLight)", "radiance"))
						fb.Assign("result.diffuse", "result.diffuse + ds.diffuse")
						fb.Assign("result.specular", "result.specular + ds.specular")
					})
				})
				fb.Assign("result.diffuse", "result.diffuse + header.ambient * surface.albedo * surface.occlusion")
				fb.Return("result")
			})
	})
	return l.ctx.Writer.Call(fn, surface)
}
