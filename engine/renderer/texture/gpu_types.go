package texture

import (
	_ "embed"
	"math"
	"time"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUTextureAnimationSource is the canonical WGSL definition of the TextureAnimation struct.
// Matches GPUTextureAnimation layout exactly (64 bytes).
//
//go:embed assets/texture_animation.wgsl
var GPUTextureAnimationSource string

// GPUTextureAnimationSize is the byte size of one texture animation record.
const GPUTextureAnimationSize = 64

// GPUTextureAnimation is the packed per-unit animation state, four vec4s:
//
//	translate  xy = uv offset
//	rotate     xy = (cos, sin) of the uv rotation
//	scale      xy = uv scale
//	tileSet    xy = current tile, zw = tile counts
type GPUTextureAnimation struct {
	Translate mgl32.Vec4
	Rotate    mgl32.Vec4
	Scale     mgl32.Vec4
	TileSet   mgl32.Vec4
}

// IdentityAnimation is the record of a unit that does not move.
var IdentityAnimation = GPUTextureAnimation{
	Rotate:  mgl32.Vec4{1, 0, 0, 0},
	Scale:   mgl32.Vec4{1, 1, 0, 0},
	TileSet: mgl32.Vec4{0, 0, 1, 1},
}

// Size returns the size of the GPUTextureAnimation struct in bytes.
func (a *GPUTextureAnimation) Size() int {
	return GPUTextureAnimationSize
}

// Marshal serializes the record into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (a *GPUTextureAnimation) Marshal() []byte {
	buf := make([]byte, GPUTextureAnimationSize)
	common.PutVec4(buf, 0, a.Translate)
	common.PutVec4(buf, 16, a.Rotate)
	common.PutVec4(buf, 32, a.Scale)
	common.PutVec4(buf, 48, a.TileSet)
	return buf
}

// Apply transforms a texture coordinate the way the shader does: tile selection, then
// scale, rotation about the unit centre and translation.
//
// Parameters:
//   - uv: the source texture coordinate
//
// Returns:
//   - mgl32.Vec2: the animated coordinate
func (a *GPUTextureAnimation) Apply(uv mgl32.Vec2) mgl32.Vec2 {
	tiles := mgl32.Vec2{max(a.TileSet[2], 1), max(a.TileSet[3], 1)}
	uv = mgl32.Vec2{(uv[0] + a.TileSet[0]) / tiles[0], (uv[1] + a.TileSet[1]) / tiles[1]}
	uv = mgl32.Vec2{uv[0] * a.Scale[0], uv[1] * a.Scale[1]}
	c, s := a.Rotate[0], a.Rotate[1]
	centred := uv.Sub(mgl32.Vec2{0.5, 0.5})
	uv = mgl32.Vec2{centred[0]*c - centred[1]*s, centred[0]*s + centred[1]*c}.Add(mgl32.Vec2{0.5, 0.5})
	return uv.Add(mgl32.Vec2{a.Translate[0], a.Translate[1]})
}

// Animation describes how a texture unit's coordinates evolve over time.
type Animation struct {
	TranslateSpeed mgl32.Vec2 // uv units per second
	RotateSpeed    float32    // radians per second
	Scale          mgl32.Vec2
	TileCount      [2]uint32
	TileSpeed      float32 // tiles per second
}

// Evaluate returns the packed record for the elapsed time.
//
// Parameters:
//   - elapsed: time since the animation started
//
// Returns:
//   - GPUTextureAnimation: the packed record
func (a Animation) Evaluate(elapsed time.Duration) GPUTextureAnimation {
	t := float32(elapsed.Seconds())
	out := IdentityAnimation
	tr := a.TranslateSpeed.Mul(t)
	out.Translate = mgl32.Vec4{fract(tr[0]), fract(tr[1]), 0, 0}
	angle := float64(a.RotateSpeed * t)
	out.Rotate = mgl32.Vec4{float32(math.Cos(angle)), float32(math.Sin(angle)), 0, 0}
	if a.Scale != (mgl32.Vec2{}) {
		out.Scale = mgl32.Vec4{a.Scale[0], a.Scale[1], 0, 0}
	}
	if a.TileCount[0] > 0 && a.TileCount[1] > 0 {
		total := a.TileCount[0] * a.TileCount[1]
		tile := uint32(a.TileSpeed*t) % total
		out.TileSet = mgl32.Vec4{
			float32(tile % a.TileCount[0]),
			float32(tile / a.TileCount[0]),
			float32(a.TileCount[0]),
			float32(a.TileCount[1]),
		}
	}
	return out
}

func fract(v float32) float32 {
	return v - float32(math.Floor(float64(v)))
}

// GPUTextureConfigSource is the canonical WGSL definition of the TextureConfig struct.
// Matches GPUTextureConfig layout exactly (32 bytes).
//
//go:embed assets/texture_config.wgsl
var GPUTextureConfigSource string

// GPUTextureConfigSize is the byte size of one texture unit configuration.
const GPUTextureConfigSize = 32

// NoAnimation marks a texture unit without animation.
const NoAnimation = ^uint32(0)

// GPUTextureConfig tells the shader which material channels a texture unit feeds.
type GPUTextureConfig struct {
	Flags             flags.TextureFlags
	TexcoordSet       uint32
	AnimationIndex    uint32
	NormalFactor      float32
	HeightFactor      float32
	NormalGMultiplier float32
}

// NewTextureConfig returns a configuration with neutral factors and no animation.
func NewTextureConfig(textureFlags flags.TextureFlags, texcoordSet uint32) GPUTextureConfig {
	return GPUTextureConfig{
		Flags:             textureFlags,
		TexcoordSet:       texcoordSet,
		AnimationIndex:    NoAnimation,
		NormalFactor:      1,
		HeightFactor:      0.1,
		NormalGMultiplier: 1,
	}
}

// Size returns the size of the GPUTextureConfig struct in bytes.
func (c *GPUTextureConfig) Size() int {
	return GPUTextureConfigSize
}

// Marshal serializes the configuration into a byte buffer suitable for GPU upload.
func (c *GPUTextureConfig) Marshal() []byte {
	buf := make([]byte, GPUTextureConfigSize)
	common.PutUint32(buf, 0, uint32(c.Flags))
	common.PutUint32(buf, 4, c.TexcoordSet)
	common.PutUint32(buf, 8, c.AnimationIndex)
	common.PutFloat32(buf, 12, c.NormalFactor)
	common.PutFloat32(buf, 16, c.HeightFactor)
	common.PutFloat32(buf, 20, c.NormalGMultiplier)
	return buf
}
