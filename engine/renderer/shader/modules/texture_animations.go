package modules

import (
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/texture"
)

// RoleTextureAnimations is the role of the animation record buffer.
const RoleTextureAnimations shader.AnnotationArg = "animations"

// TextureAnimations transforms texture coordinates with the per-unit animation records
// of texture.AnimationBuffer. The buffer is bound only when a component animates
// textures.
type TextureAnimations struct {
	ctx     *Context
	enabled bool

	animate shader.FunctionCell
}

// NewTextureAnimations claims the animation buffer when the permutation animates
// textures.
func NewTextureAnimations(ctx *Context) *TextureAnimations {
	t := &TextureAnimations{ctx: ctx, enabled: ctx.Flags.Components.Has(flags.ComponentTextureAnimation)}
	if t.enabled {
		ctx.Writer.DeclareConstant("C3D_NO_ANIMATION", "u32", uintLiteral(texture.NoAnimation))
		ctx.Claim(shader.Binding{Name: "c3d_textureAnimations", Kind: shader.BindingStorage,
			Struct: shader.AnnotationArgTextureAnimation, Array: true,
			Provider: shader.AnnotationArgTextureAnimations, Role: RoleTextureAnimations})
	}
	return t
}

// Enabled reports whether the buffer is bound.
func (t *TextureAnimations) Enabled() bool { return t.enabled }

// Animate returns the animated coordinates, computed like GPUTextureAnimation.Apply.
//
// Parameters:
//   - uv: a vec2<f32> expression
//   - index: the record index; C3D_NO_ANIMATION leaves uv unchanged
//
// Returns:
//   - string: a vec2<f32> expression
func (t *TextureAnimations) Animate(uv, index string) string {
	if !t.enabled {
		return uv
	}
	fn := t.animate.Get(t.ctx.Writer, func(w *shader.Writer) (*shader.Function, error) {
		return w.ImplementFunction("c3d_animateTexcoord",
			[]shader.Param{{Name: "uv", Type: "vec2<f32>"}, {Name: "index", Type: "u32"}},
			"vec2<f32>",
			func(fb *shader.FunctionBuilder) {
				fb.If("index == C3D_NO_ANIMATION", func() { fb.Return("uv") })
				fb.Let("anim", "c3d_textureAnimations[index]")
				fb.Let("tiles", "max(anim.tileSet.zw, vec2<f32>(1.0))")
				fb.Var("r", "vec2<f32>", "(uv + anim.tileSet.xy) / tiles * anim.scale.xy")
				fb.Let("c", "anim.rotate.x")
				fb.Let("s", "anim.rotate.y")
				fb.Let("centred", "r - vec2<f32>(0.5)")
				fb.Assign("r", "vec2<f32>(centred.x * c - centred.y * s, centred.x * s + centred.y * c) + vec2<f32>(0.5)")
				fb.Return("r + anim.translate.xy")
			})
	})
	return t.ctx.Writer.Call(fn, uv, index)
}
