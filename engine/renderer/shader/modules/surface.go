package modules

import "github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"

// SurfaceType is the WGSL struct every lighting entry point consumes. Material components
// blend their contributions into it before lighting runs.
const SurfaceType = "Surface"

// DifSpecType holds a diffuse and specular contribution pair.
const DifSpecType = "DifSpec"

// ReflectionResultType holds the outputs of ReflectionModel.ComputeCombined.
const ReflectionResultType = "ReflectionResult"

// DeclareSurface declares the shared surface structs. Safe to call repeatedly.
func DeclareSurface(w *shader.Writer) {
	w.DeclareStruct(SurfaceType,
		"worldPosition: vec3<f32>",
		"viewDepth: f32",
		"normal: vec3<f32>",
		"roughness: f32",
		"viewDir: vec3<f32>",
		"metalness: f32",
		"albedo: vec3<f32>",
		"opacity: f32",
		"specular: vec3<f32>",
		"occlusion: f32",
		"emissive: vec3<f32>",
		"shininess: f32",
		"texcoord: vec2<f32>",
		"fragCoord: vec2<f32>",
	)
	w.DeclareStruct(DifSpecType,
		"diffuse: vec3<f32>",
		"specular: vec3<f32>",
		"overflow: f32",
	)
}

// SurfaceMembers lists the Surface member names, for components that blend into it.
var SurfaceMembers = []string{
	"worldPosition", "viewDepth", "normal", "roughness", "viewDir", "metalness", "albedo",
	"opacity", "specular", "occlusion", "emissive", "shininess", "texcoord", "fragCoord",
}
