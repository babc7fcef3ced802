package scene

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-castor/engine/light"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/texture"
)

// SceneBuilderOption is a functional option applied to a scene during construction via NewScene.
type SceneBuilderOption func(*scene)

// WithCamera sets the initial camera of the scene.
func WithCamera(c Camera) SceneBuilderOption {
	return func(s *scene) {
		s.camera = c
	}
}

// WithSceneFlags sets the fog and global illumination flags of the scene. Shadow flags
// are derived from the lights every frame.
//
// Parameters:
//   - f: the scene flags
//
// Returns:
//   - SceneBuilderOption: a function that applies the flags to a scene
func WithSceneFlags(f flags.SceneFlags) SceneBuilderOption {
	return func(s *scene) {
		s.sceneFlags = f
	}
}

// WithMaterialBuffer makes the scene store its materials in b, for scenes sharing one
// material table.
func WithMaterialBuffer(b *material.MaterialBuffer) SceneBuilderOption {
	return func(s *scene) {
		s.materials = b
	}
}

// WithAnimationBuffer sets the texture animation buffer handed to the technique.
func WithAnimationBuffer(b *texture.AnimationBuffer) SceneBuilderOption {
	return func(s *scene) {
		s.animations = b
	}
}

// WithShadowSettings sets how the shadow data of the scene's casters is computed.
func WithShadowSettings(settings light.ShadowSettings) SceneBuilderOption {
	return func(s *scene) {
		s.shadows = settings
	}
}

func WithSceneLogger(logger *slog.Logger) SceneBuilderOption {
	return func(s *scene) {
		if logger != nil {
			s.logger = logger
		}
	}
}
