package light

import (
	"math"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/go-gl/mathgl/mgl32"
)

// Kind identifies a light source. The values are the lightType the lights shader module
// compares against.
type Kind uint32

const (
	// Directional lights are evaluated for every pixel outside the cluster loop.
	Directional Kind = iota
	// Point lights are bounded by their range and assigned to clusters.
	Point
	// Spot lights emit in a cone. Clusters see the sphere of their range.
	Spot
)

func (k Kind) String() string {
	switch k {
	case Directional:
		return "directional"
	case Point:
		return "point"
	case Spot:
		return "spot"
	}
	return "unknown"
}

// ShadowFlag returns the scene flag a shadow caster of this kind turns on.
func (k Kind) ShadowFlag() flags.SceneFlags {
	switch k {
	case Directional:
		return flags.SceneShadowDirectional
	case Point:
		return flags.SceneShadowPoint
	case Spot:
		return flags.SceneShadowSpot
	}
	return flags.SceneNone
}

// NoShadow is the Shadow layer of a light without a shadow map.
const NoShadow int32 = -1

// Light is a scene light source. Scenes hold lights by pointer and read them once per
// frame, so fields may be changed between frames.
type Light struct {
	Kind Kind

	// Position is ignored for directional lights.
	Position mgl32.Vec3
	// Direction is the unit vector the light points along. Ignored for point lights.
	Direction mgl32.Vec3
	Colour    mgl32.Vec3
	Intensity float32
	// Range is the attenuation cutoff of point and spot lights.
	Range float32

	// InnerCone and OuterCone hold the cosines of the spot half angles.
	InnerCone float32
	OuterCone float32

	Disabled bool

	// Shadow is the layer of the shadow map array, or NoShadow.
	Shadow int32
}

// New returns a white light of unit intensity pointing down, with a 25/35 degree cone.
func New(kind Kind, opts ...Option) *Light {
	l := &Light{
		Kind:      kind,
		Direction: mgl32.Vec3{0, -1, 0},
		Colour:    mgl32.Vec3{1, 1, 1},
		Intensity: 1,
		Range:     10,
		Shadow:    NoShadow,
	}
	l.SetCone(25, 35)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CastsShadows reports whether the light owns a layer of the shadow map array.
func (l *Light) CastsShadows() bool {
	return !l.Disabled && l.Shadow >= 0 && l.Shadow < MaxShadowMaps
}

// Aim points the light along d. A zero vector leaves the direction unchanged.
func (l *Light) Aim(d mgl32.Vec3) {
	if d.Len() > 0 {
		l.Direction = d.Normalize()
	}
}

// SetCone sets the spot half angles in degrees.
func (l *Light) SetCone(innerDeg, outerDeg float32) {
	l.InnerCone = cosDeg(innerDeg)
	l.OuterCone = cosDeg(outerDeg)
}

// Bounds returns the sphere used for cluster assignment. The range sphere of a spot
// light contains its whole cone. Directional lights have radius 0.
func (l *Light) Bounds() (mgl32.Vec3, float32) {
	if l.Kind == Directional {
		return mgl32.Vec3{}, 0
	}
	return l.Position, l.Range
}

// GPU converts the light to its buffer representation.
func (l *Light) GPU() GPULight {
	shadow := NoShadow
	if l.CastsShadows() {
		shadow = l.Shadow
	}
	return GPULight{
		Position:    l.Position,
		LightType:   uint32(l.Kind),
		Colour:      l.Colour,
		Intensity:   l.Intensity,
		Direction:   l.Direction,
		Range:       l.Range,
		InnerCone:   l.InnerCone,
		OuterCone:   l.OuterCone,
		ShadowIndex: shadow,
	}
}

// SceneFlags returns the union of the shadow flags of every enabled caster.
func SceneFlags(lights []*Light) flags.SceneFlags {
	var out flags.SceneFlags
	for _, l := range lights {
		if l.CastsShadows() {
			out = out.With(l.Kind.ShadowFlag())
		}
	}
	return out
}

// Partition splits the enabled lights into directional and positional lists, keeping
// their order, and stops at MaxGPULights. Cluster indices refer to the positional list.
func Partition(lights []*Light) (directional, positional []*Light) {
	total := 0
	for _, l := range lights {
		if l.Disabled {
			continue
		}
		if total == MaxGPULights {
			break
		}
		total++
		if l.Kind == Directional {
			directional = append(directional, l)
		} else {
			positional = append(positional, l)
		}
	}
	return directional, positional
}

func cosDeg(deg float32) float32 {
	return float32(math.Cos(float64(mgl32.DegToRad(deg))))
}
