package light

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxShadowMaps is the number of layers in the shadow map array bound by the lights module.
const MaxShadowMaps = 8

// pointShadowFov is the field of view of the single layer a point light renders along
// its direction.
const pointShadowFov = 120

// ShadowSettings control the projection and biases of the shadow data written for the
// casters of a scene.
type ShadowSettings struct {
	// Resolution is the width and height in texels of one shadow map layer.
	Resolution int
	// HalfExtent is the half size in world units of a directional light's frustum.
	HalfExtent float32
	Near       float32
	// Far bounds the directional frustum. Spot and point frusta end at the light range.
	Far  float32
	Bias float32
	// NormalBiasScale multiplies the world size of one texel to give the normal offset.
	NormalBiasScale float32
}

func DefaultShadowSettings() ShadowSettings {
	return ShadowSettings{
		Resolution:      2048,
		HalfExtent:      40,
		Near:            0.1,
		Far:             200,
		Bias:            0.001,
		NormalBiasScale: 3,
	}
}

// Data computes the shadow data of every caster, indexed by shadow layer. Directional
// frusta are centred on focus, usually the camera position. The result is as long as
// the highest layer in use plus one, and unused layers are zero.
func (s ShadowSettings) Data(lights []*Light, focus mgl32.Vec3) []GPUShadowData {
	var out []GPUShadowData
	texel := 1 / float32(max(s.Resolution, 1))
	for _, l := range lights {
		if !l.CastsShadows() {
			continue
		}
		if int(l.Shadow) >= len(out) {
			out = append(out, make([]GPUShadowData, int(l.Shadow)+1-len(out))...)
		}
		d := GPUShadowData{TexelSize: mgl32.Vec2{texel, texel}, Bias: s.Bias}
		switch l.Kind {
		case Directional:
			eye := focus.Sub(l.Direction.Mul(s.Far * 0.5))
			d.LightViewProj = orthoZeroToOne(s.HalfExtent, s.Near, s.Far).Mul4(lookAt(eye, l.Direction))
			d.NormalBias = 2 * s.HalfExtent * texel * s.NormalBiasScale
		default:
			fov := float32(pointShadowFov)
			if l.Kind == Spot {
				fov = 2 * mgl32.RadToDeg(float32(math.Acos(float64(l.OuterCone))))
			}
			half := float32(math.Tan(float64(mgl32.DegToRad(fov) / 2)))
			d.LightViewProj = perspectiveZeroToOne(half, s.Near, l.Range).Mul4(lookAt(l.Position, l.Direction))
			// texel footprint at the far end of the frustum
			d.NormalBias = 2 * l.Range * half * texel * s.NormalBiasScale
		}
		out[l.Shadow] = d
	}
	return out
}

func lookAt(eye, dir mgl32.Vec3) mgl32.Mat4 {
	up := mgl32.Vec3{0, 1, 0}
	if math.Abs(float64(dir[1])) > 0.99 {
		up = mgl32.Vec3{1, 0, 0}
	}
	return mgl32.LookAtV(eye, eye.Add(dir), up)
}

// orthoZeroToOne is a symmetric orthographic projection with WebGPU's [0, 1] clip depth.
func orthoZeroToOne(half, near, far float32) mgl32.Mat4 {
	m := mgl32.Ident4()
	m[0] = 1 / half
	m[5] = 1 / half
	m[10] = -1 / (far - near)
	m[14] = -near / (far - near)
	return m
}

// perspectiveZeroToOne is a square perspective projection with WebGPU's [0, 1] clip
// depth. half is the tangent of the half field of view.
func perspectiveZeroToOne(half, near, far float32) mgl32.Mat4 {
	var m mgl32.Mat4
	m[0] = 1 / half
	m[5] = 1 / half
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = near * far / (near - far)
	return m
}
