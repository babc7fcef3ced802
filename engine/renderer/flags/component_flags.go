package flags

import (
	"math/bits"
	"strings"
)

// ComponentFlags is the set of material pass components contributing to a permutation.
// Each component kind owns one orthogonal bit; combination is bitwise OR and filtering
// is bitwise AND/NOT. Values are immutable once captured in a key.
type ComponentFlags uint64

const (
	ComponentNone             ComponentFlags = 0
	ComponentDiffuseLighting  ComponentFlags = 1 << 0
	ComponentSpecularLighting ComponentFlags = 1 << 1
	ComponentNormals          ComponentFlags = 1 << 2
	ComponentOpacity          ComponentFlags = 1 << 3
	ComponentAlphaTest        ComponentFlags = 1 << 4
	ComponentAlphaBlending    ComponentFlags = 1 << 5
	ComponentOcclusion        ComponentFlags = 1 << 6
	ComponentEmissive         ComponentFlags = 1 << 7
	ComponentReflection       ComponentFlags = 1 << 8
	ComponentRefraction       ComponentFlags = 1 << 9
	ComponentClearcoat        ComponentFlags = 1 << 10
	ComponentSheen            ComponentFlags = 1 << 11
	ComponentTransmission     ComponentFlags = 1 << 12
	ComponentTextureAnimation ComponentFlags = 1 << 13
	ComponentGeometry         ComponentFlags = 1 << 14
	ComponentMetalness        ComponentFlags = 1 << 15
	ComponentRoughness        ComponentFlags = 1 << 16

	// ComponentLightingMask groups the components that only matter to lit passes.
	ComponentLightingMask = ComponentDiffuseLighting | ComponentSpecularLighting | ComponentMetalness | ComponentRoughness
	// ComponentSpecificsMask groups the components evaluated by reflection/refraction aware passes.
	ComponentSpecificsMask = ComponentReflection | ComponentRefraction | ComponentClearcoat | ComponentSheen | ComponentTransmission
	// ComponentOpacityMask groups the components controlling coverage.
	ComponentOpacityMask = ComponentOpacity | ComponentAlphaTest | ComponentAlphaBlending
)

var componentNames = [...]string{
	"diffuseLighting", "specularLighting", "normals", "opacity", "alphaTest", "alphaBlending",
	"occlusion", "emissive", "reflection", "refraction", "clearcoat", "sheen", "transmission",
	"textureAnimation", "geometry", "metalness", "roughness",
}

// Has reports whether every bit of other is set in f.
func (f ComponentFlags) Has(other ComponentFlags) bool { return f&other == other }

// HasAny reports whether at least one bit of other is set in f.
func (f ComponentFlags) HasAny(other ComponentFlags) bool { return f&other != 0 }

// With returns f with other set.
func (f ComponentFlags) With(other ComponentFlags) ComponentFlags { return f | other }

// Without returns f with other cleared.
func (f ComponentFlags) Without(other ComponentFlags) ComponentFlags { return f &^ other }

// Filter keeps only the bits of f also present in mask.
func (f ComponentFlags) Filter(mask ComponentFlags) ComponentFlags { return f & mask }

// Count returns the number of set bits.
func (f ComponentFlags) Count() int { return bits.OnesCount64(uint64(f)) }

func (f ComponentFlags) String() string {
	return bitNames(uint64(f), componentNames[:])
}

// CombineComponents ORs every set together.
//
// Parameters:
//   - sets: the flag sets to merge
//
// Returns:
//   - ComponentFlags: the union of all sets
func CombineComponents(sets ...ComponentFlags) ComponentFlags {
	var out ComponentFlags
	for _, s := range sets {
		out |= s
	}
	return out
}

// ComponentModeFlags describes which component families a rendering pass wants evaluated.
// Plugins use it to drop flags that are irrelevant to a pass before the key is hashed.
type ComponentModeFlags uint32

const (
	ModeNone             ComponentModeFlags = 0
	ModeOpacity          ComponentModeFlags = 1 << 0
	ModeAlphaBlending    ComponentModeFlags = 1 << 1
	ModeNormals          ComponentModeFlags = 1 << 2
	ModeGeometry         ComponentModeFlags = 1 << 3
	ModeColour           ComponentModeFlags = 1 << 4
	ModeDiffuseLighting  ComponentModeFlags = 1 << 5
	ModeSpecularLighting ComponentModeFlags = 1 << 6
	ModeSpecifics        ComponentModeFlags = 1 << 7
	ModeOcclusion        ComponentModeFlags = 1 << 8
	ModeDerivTex         ComponentModeFlags = 1 << 9

	ModeAll ComponentModeFlags = 1<<10 - 1
)

// Has reports whether every bit of other is set in m.
func (m ComponentModeFlags) Has(other ComponentModeFlags) bool { return m&other == other }

// HasAny reports whether at least one bit of other is set in m.
func (m ComponentModeFlags) HasAny(other ComponentModeFlags) bool { return m&other != 0 }

// bitNames renders the set bits of v using names indexed by bit position.
func bitNames(v uint64, names []string) string {
	if v == 0 {
		return "none"
	}
	var sb strings.Builder
	for v != 0 {
		i := bits.TrailingZeros64(v)
		v &^= 1 << i
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		if i < len(names) {
			sb.WriteString(names[i])
		} else {
			sb.WriteString("bit")
			sb.WriteByte(byte('0' + i/10))
			sb.WriteByte(byte('0' + i%10))
		}
	}
	return sb.String()
}
