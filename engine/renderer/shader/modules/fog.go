package modules

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
)

// Fog blends a colour towards the scene fog colour by view distance. It claims no
// bindings and reads its parameters from the scene uniform, c3d_scene.
type Fog struct {
	ctx  *Context
	kind flags.FogKind

	apply shader.FunctionCell
}

// NewFog creates the fog module for the scene's fog kind.
func NewFog(ctx *Context) *Fog {
	return &Fog{ctx: ctx, kind: ctx.Flags.Scene.Fog()}
}

// Kind returns the fog kind.
func (f *Fog) Kind() flags.FogKind { return f.kind }

// Apply returns the fogged colour, or colour unchanged without fog.
//
// Parameters:
//   - colour: a vec4<f32> expression
//   - viewDepth: positive view distance
//
// Returns:
//   - string: a vec4<f32> expression
func (f *Fog) Apply(colour, viewDepth string) string {
	if f.kind == flags.FogNone {
		return colour
	}
	fn := f.apply.Get(f.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_applyFog",
			[]shader.Param{{Name: "colour", Type: "vec4<f32>"}, {Name: "viewDepth", Type: "f32"}},
			"vec4<f32>",
			func(fb *shader.FunctionBuilder) {
				switch f.kind {
				case flags.FogLinear:
					fb.Let("factor", "saturate((c3d_scene.fogEnd - viewDepth) / max(c3d_scene.fogEnd - c3d_scene.fogStart, 0.0001))")
				case flags.FogExponential:
					fb.Let("factor", "exp(-c3d_scene.fogDensity * viewDepth)")
				default:
					fb.Let("d", "c3d_scene.fogDensity * viewDepth")
					fb.Let("factor", "exp(-d * d)")
				}
				fb.Return("vec4<f32>(mix(c3d_scene.fogColour, colour.rgb, factor), colour.a)")
			})
	})
	return f.ctx.Writer.Call(fn, colour, viewDepth)
}

// FogFactor is the CPU reference of the generated fog factor: 1 keeps the surface
// colour, 0 is pure fog.
func FogFactor(kind flags.FogKind, viewDepth, start, end, density float32) float32 {
	switch kind {
	case flags.FogLinear:
		return saturate((end - viewDepth) / max(end-start, 0.0001))
	case flags.FogExponential:
		return exp(-density * viewDepth)
	case flags.FogSquaredExponential:
		d := density * viewDepth
		return exp(-d * d)
	}
	return 1
}
