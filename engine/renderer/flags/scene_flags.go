package flags

// SceneFlags selects scene-wide features baked into a permutation: fog kind,
// shadow kinds and global illumination kind.
type SceneFlags uint32

const (
	SceneNone                  SceneFlags = 0
	SceneFogLinear             SceneFlags = 1 << 0
	SceneFogExponential        SceneFlags = 1 << 1
	SceneFogSquaredExponential SceneFlags = 1 << 2
	SceneShadowDirectional     SceneFlags = 1 << 3
	SceneShadowPoint           SceneFlags = 1 << 4
	SceneShadowSpot            SceneFlags = 1 << 5
	SceneVoxelConeTracing      SceneFlags = 1 << 6
	SceneLpvGI                 SceneFlags = 1 << 7
	SceneLayeredLpvGI          SceneFlags = 1 << 8

	SceneFogMask    = SceneFogLinear | SceneFogExponential | SceneFogSquaredExponential
	SceneShadowMask = SceneShadowDirectional | SceneShadowPoint | SceneShadowSpot
	SceneGIMask     = SceneVoxelConeTracing | SceneLpvGI | SceneLayeredLpvGI
)

var sceneNames = [...]string{
	"fogLinear", "fogExponential", "fogSquaredExponential", "shadowDirectional",
	"shadowPoint", "shadowSpot", "voxelConeTracing", "lpvGI", "layeredLpvGI",
}

// FogKind is the single fog equation active for a permutation.
type FogKind int

const (
	FogNone FogKind = iota
	FogLinear
	FogExponential
	FogSquaredExponential
)

// GIKind is the single global illumination technique active for a permutation.
type GIKind int

const (
	GINone GIKind = iota
	GIVoxelConeTracing
	GILpv
	GILayeredLpv
)

func (f SceneFlags) Has(other SceneFlags) bool          { return f&other == other }
func (f SceneFlags) HasAny(other SceneFlags) bool       { return f&other != 0 }
func (f SceneFlags) With(other SceneFlags) SceneFlags   { return f | other }
func (f SceneFlags) Without(other SceneFlags) SceneFlags { return f &^ other }
func (f SceneFlags) String() string                     { return bitNames(uint64(f), sceneNames[:]) }

// Fog returns the fog equation selected by f. When several fog bits are set the
// most expensive one wins, so the result never depends on how the bits were set.
func (f SceneFlags) Fog() FogKind {
	switch {
	case f.Has(SceneFogSquaredExponential):
		return FogSquaredExponential
	case f.Has(SceneFogExponential):
		return FogExponential
	case f.Has(SceneFogLinear):
		return FogLinear
	default:
		return FogNone
	}
}

// GI returns the global illumination technique selected by f, layered LPV taking
// precedence over plain LPV and both over voxel cone tracing.
func (f SceneFlags) GI() GIKind {
	switch {
	case f.Has(SceneLayeredLpvGI):
		return GILayeredLpv
	case f.Has(SceneLpvGI):
		return GILpv
	case f.Has(SceneVoxelConeTracing):
		return GIVoxelConeTracing
	default:
		return GINone
	}
}
