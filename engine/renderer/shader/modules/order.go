// Package modules holds the shader feature modules composed into every generated
// program.
//
// Modules claim binding slots from a shared counter, so they must be constructed in
// one fixed order:
//
//  1. technique fixed bindings, including the lighting block (NewClusteredLights)
//  2. NewReflectionModel
//  3. NewGlobalIllumination
//  4. NewTextureAnimations
//  5. NewFog (no bindings)
//  6. NewBackground
//  7. NewDebugOutput (no bindings, opened inside the entry point)
//
// Build performs steps 2 to 6.
package modules

// Set is the feature modules of one permutation.
type Set struct {
	Utils             *Utils
	Lighting          *LightingModel
	Reflection        *ReflectionModel
	GI                *GlobalIllumination
	TextureAnimations *TextureAnimations
	Fog               *Fog
	Background        *Background
}

// NewLightingBlock creates the helpers and the lighting model, and declares the
// lighting block when the technique lights surfaces. It is called while the technique
// declares its fixed bindings.
//
// Parameters:
//   - ctx: the module context, its counter positioned at the lighting block
//   - lit: whether to declare the clustered lights
//
// Returns:
//   - *Utils: the helpers
//   - *LightingModel: the lighting model
//   - *ClusteredLights: the lights, nil when lit is false
func NewLightingBlock(ctx *Context, lit bool) (*Utils, *LightingModel, *ClusteredLights) {
	utils := NewUtils(ctx)
	model := NewLightingModel(ctx, utils)
	if !lit {
		return utils, model, nil
	}
	return utils, model, NewClusteredLights(ctx, model)
}

// Build constructs the feature modules after the technique's fixed bindings.
//
// Parameters:
//   - ctx: the module context, its counter positioned after the fixed bindings
//   - utils: the helpers from NewLightingBlock
//   - model: the lighting model from NewLightingBlock
//
// Returns:
//   - *Set: the modules
func Build(ctx *Context, utils *Utils, model *LightingModel) *Set {
	s := &Set{Utils: utils, Lighting: model}
	s.Reflection = NewReflectionModel(ctx, utils)
	s.GI = NewGlobalIllumination(ctx)
	s.TextureAnimations = NewTextureAnimations(ctx)
	s.Fog = NewFog(ctx)
	s.Background = NewBackground(ctx, utils)
	return s
}
