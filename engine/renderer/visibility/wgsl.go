package visibility

import (
	"strconv"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
)

// DerivativesType is the WGSL struct returned by the generated derivative function.
const DerivativesType = "BarycentricDerivatives"

// interpolationTypes maps the attribute types the generated interpolation supports to
// their function names.
var interpolationTypes = map[string]string{
	"f32":       "c3d_interpolateF32",
	"vec2<f32>": "c3d_interpolateVec2",
	"vec3<f32>": "c3d_interpolateVec3",
	"vec4<f32>": "c3d_interpolateVec4",
}

// Reconstruction emits the shader side of ComputeFullDerivatives, Interpolate and
// MotionVector. Each function is declared on first use; a Reconstruction belongs to
// one writer.
type Reconstruction struct {
	w *shader.Writer

	full        shader.FunctionCell
	motion      shader.FunctionCell
	interpolate map[string]*shader.FunctionCell
}

// NewReconstruction declares the derivative struct into w.
func NewReconstruction(w *shader.Writer) *Reconstruction {
	w.DeclareStruct(DerivativesType,
		"lambda: vec3<f32>",
		"dx: vec3<f32>",
		"dy: vec3<f32>",
	)
	return &Reconstruction{w: w, interpolate: make(map[string]*shader.FunctionCell)}
}

// ComputeFullDerivatives returns a BarycentricDerivatives expression, computed like
// the package function of the same name.
//
// Parameters:
//   - p0, p1, p2: vec4<f32> clip-space positions
//   - ndc: the vec2<f32> pixel centre in NDC
//   - size: the vec2<f32> render size
//
// Returns:
//   - string: the call expression
func (r *Reconstruction) ComputeFullDerivatives(p0, p1, p2, ndc, size string) string {
	fn := r.full.Get(r.w, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_computeFullDerivatives",
			[]shader.Param{
				{Name: "p0", Type: "vec4<f32>"},
				{Name: "p1", Type: "vec4<f32>"},
				{Name: "p2", Type: "vec4<f32>"},
				{Name: "ndc", Type: "vec2<f32>"},
				{Name: "size", Type: "vec2<f32>"},
			},
			DerivativesType,
			func(fb *shader.FunctionBuilder) {
				fb.Var("result", DerivativesType, "")
				fb.If("p0.w == 0.0 || p1.w == 0.0 || p2.w == 0.0", func() { fb.Return("result") })
				fb.Let("invW", "1.0 / vec3<f32>(p0.w, p1.w, p2.w)")
				fb.Let("ndc0", "p0.xy * invW.x")
				fb.Let("ndc1", "p1.xy * invW.y")
				fb.Let("ndc2", "p2.xy * invW.z")
				fb.Let("det", "determinant(mat2x2<f32>(ndc2 - ndc1, ndc0 - ndc1))")
				fb.If("det == 0.0", func() { fb.Return("result") })
				fb.Let("invDet", "1.0 / det")
				fb.Var("ddx", "vec3<f32>", "vec3<f32>(ndc1.y - ndc2.y, ndc2.y - ndc0.y, ndc0.y - ndc1.y) * invDet * invW")
				fb.Var("ddy", "vec3<f32>", "vec3<f32>(ndc2.x - ndc1.x, ndc0.x - ndc2.x, ndc1.x - ndc0.x) * invDet * invW")
				fb.Var("ddxSum", "f32", "dot(ddx, vec3<f32>(1.0))")
				fb.Var("ddySum", "f32", "dot(ddy, vec3<f32>(1.0))")
				fb.Let("delta", "ndc - ndc0")
				fb.Let("interpInvW", "invW.x + delta.x * ddxSum + delta.y * ddySum")
				fb.If("interpInvW == 0.0", func() { fb.Return("result") })
				fb.Let("interpW", "1.0 / interpInvW")
				fb.Assign("result.lambda", "vec3<f32>("+
					"interpW * (invW.x + delta.x * ddx.x + delta.y * ddy.x), "+
					"interpW * (delta.x * ddx.y + delta.y * ddy.y), "+
					"interpW * (delta.x * ddx.z + delta.y * ddy.z))")
				fb.Let("sx", "2.0 / size.x")
				fb.Let("sy", "-2.0 / size.y")
				fb.Assign("ddx", "ddx * sx")
				fb.Assign("ddy", "ddy * sy")
				fb.Assign("ddxSum", "ddxSum * sx")
				fb.Assign("ddySum", "ddySum * sy")
				fb.Let("wx", "interpInvW + ddxSum")
				fb.Let("wy", "interpInvW + ddySum")
				fb.If("wx == 0.0 || wy == 0.0", func() { fb.Return("result") })
				fb.Assign("result.dx", "(result.lambda * interpInvW + ddx) / wx - result.lambda")
				fb.Assign("result.dy", "(result.lambda * interpInvW + ddy) / wy - result.lambda")
				fb.Return("result")
			})
	})
	return r.w.Call(fn, p0, p1, p2, ndc, size)
}

func (r *Reconstruction) weigh(typ, weights, a, b, c string) string {
	name, ok := interpolationTypes[typ]
	if !ok {
		name = interpolationTypes["vec4<f32>"]
		typ = "vec4<f32>"
	}
	cell := r.interpolate[typ]
	if cell == nil {
		cell = &shader.FunctionCell{}
		r.interpolate[typ] = cell
	}
	fn := cell.Get(r.w, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction(name,
			[]shader.Param{
				{Name: "weights", Type: "vec3<f32>"},
				{Name: "a", Type: typ},
				{Name: "b", Type: typ},
				{Name: "c", Type: typ},
			},
			typ,
			func(fb *shader.FunctionBuilder) {
				fb.Return("a * weights.x + b * weights.y + c * weights.z")
			})
	})
	return r.w.Call(fn, weights, a, b, c)
}

// Interpolate returns the interpolated value of a vertex attribute and its gradients.
//
// Parameters:
//   - typ: the attribute type, f32 or a vecN<f32>
//   - derivs: a BarycentricDerivatives expression
//   - a, b, c: the attribute at the three vertices
//
// Returns:
//   - value: the interpolated attribute
//   - dx: its change one pixel to the right
//   - dy: its change one pixel down
func (r *Reconstruction) Interpolate(typ, derivs, a, b, c string) (value, dx, dy string) {
	return r.weigh(typ, derivs+".lambda", a, b, c),
		r.weigh(typ, derivs+".dx", a, b, c),
		r.weigh(typ, derivs+".dy", a, b, c)
}

// InterpolateValue returns only the interpolated value.
func (r *Reconstruction) InterpolateValue(typ, derivs, a, b, c string) string {
	return r.weigh(typ, derivs+".lambda", a, b, c)
}

// MotionVector returns the vec2<f32> screen motion between two clip positions, like
// the package function of the same name.
func (r *Reconstruction) MotionVector(current, previous string) string {
	fn := r.motion.Get(r.w, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_motionVector",
			[]shader.Param{{Name: "current", Type: "vec4<f32>"}, {Name: "previous", Type: "vec4<f32>"}},
			"vec2<f32>",
			func(fb *shader.FunctionBuilder) {
				fb.If("current.w == 0.0 || previous.w == 0.0", func() { fb.Return("vec2<f32>(0.0)") })
				fb.Let("d", "(previous.xy / previous.w - current.xy / current.w) * 0.5")
				fb.Return("vec2<f32>(d.x, -d.y)")
			})
	})
	return r.w.Call(fn, current, previous)
}

func uintLiteral(v uint32) string {
	return strconv.FormatUint(uint64(v), 10) + "u"
}

// DeclarePacking declares the constants generated code unpacks visibility texels and
// pixel list entries with.
func DeclarePacking(w *shader.Writer) {
	w.DeclareConstant("C3D_MAX_PIPELINES_SIZE", "u32", uintLiteral(MaxPipelinesSize))
	w.DeclareConstant("C3D_MAX_PIPELINES", "u32", uintLiteral(MaxPipelines))
	w.DeclareConstant("C3D_PIPELINE_MASK", "u32", uintLiteral(pipelineMask))
	w.DeclareConstant("C3D_PIXEL_MASK", "u32", uintLiteral(MaxPixelCoord))
}
