package light

import "github.com/go-gl/mathgl/mgl32"

// Option configures a light created by New.
type Option func(*Light)

func WithPosition(p mgl32.Vec3) Option {
	return func(l *Light) { l.Position = p }
}

// WithDirection aims the light along d, see Light.Aim.
func WithDirection(d mgl32.Vec3) Option {
	return func(l *Light) { l.Aim(d) }
}

func WithColour(c mgl32.Vec3) Option {
	return func(l *Light) { l.Colour = c }
}

func WithIntensity(intensity float32) Option {
	return func(l *Light) { l.Intensity = intensity }
}

// WithRange sets the attenuation cutoff, which is also the cluster assignment radius.
func WithRange(r float32) Option {
	return func(l *Light) { l.Range = r }
}

// WithCone sets the spot half angles in degrees.
func WithCone(innerDeg, outerDeg float32) Option {
	return func(l *Light) { l.SetCone(innerDeg, outerDeg) }
}

// WithDisabled keeps the light out of the light buffer and the clusters.
func WithDisabled() Option {
	return func(l *Light) { l.Disabled = true }
}

// WithShadow gives the light a layer of the shadow map array. Layers outside
// [0, MaxShadowMaps) cast no shadow.
func WithShadow(layer int32) Option {
	return func(l *Light) { l.Shadow = layer }
}
