package flags

// ProgramFlags selects program-level variations that change vertex processing.
type ProgramFlags uint32

const (
	ProgramNone                ProgramFlags = 0
	ProgramInstantiation       ProgramFlags = 1 << 0
	ProgramBillboards          ProgramFlags = 1 << 1
	ProgramSphericalBillboards ProgramFlags = 1 << 2
	ProgramFixedSizeBillboards ProgramFlags = 1 << 3
	ProgramInvertNormals       ProgramFlags = 1 << 4
	ProgramForceTexCoords      ProgramFlags = 1 << 5
	ProgramDepthPass           ProgramFlags = 1 << 6
	ProgramPicking             ProgramFlags = 1 << 7
	ProgramHasMesh             ProgramFlags = 1 << 8
)

var programNames = [...]string{
	"instantiation", "billboards", "sphericalBillboards", "fixedSizeBillboards",
	"invertNormals", "forceTexCoords", "depthPass", "picking", "hasMesh",
}

func (f ProgramFlags) Has(other ProgramFlags) bool            { return f&other == other }
func (f ProgramFlags) HasAny(other ProgramFlags) bool         { return f&other != 0 }
func (f ProgramFlags) With(other ProgramFlags) ProgramFlags    { return f | other }
func (f ProgramFlags) Without(other ProgramFlags) ProgramFlags { return f &^ other }
func (f ProgramFlags) String() string                         { return bitNames(uint64(f), programNames[:]) }

// ShaderFlags lists the capabilities a generated stage must expose to its pass.
type ShaderFlags uint32

const (
	ShaderNone        ShaderFlags = 0
	ShaderNormal      ShaderFlags = 1 << 0
	ShaderTangent     ShaderFlags = 1 << 1
	ShaderVelocity    ShaderFlags = 1 << 2
	ShaderWorldSpace  ShaderFlags = 1 << 3
	ShaderViewSpace   ShaderFlags = 1 << 4
	ShaderOpacity     ShaderFlags = 1 << 5
	ShaderColour      ShaderFlags = 1 << 6
	ShaderTexcoords   ShaderFlags = 1 << 7
	ShaderLighting    ShaderFlags = 1 << 8
	ShaderMippedScene ShaderFlags = 1 << 9
	ShaderDebugOutput ShaderFlags = 1 << 10
	ShaderDepth       ShaderFlags = 1 << 11
)

var shaderNames = [...]string{
	"normal", "tangent", "velocity", "worldSpace", "viewSpace", "opacity", "colour",
	"texcoords", "lighting", "mippedScene", "debugOutput", "depth",
}

func (f ShaderFlags) Has(other ShaderFlags) bool           { return f&other == other }
func (f ShaderFlags) HasAny(other ShaderFlags) bool        { return f&other != 0 }
func (f ShaderFlags) With(other ShaderFlags) ShaderFlags    { return f | other }
func (f ShaderFlags) Without(other ShaderFlags) ShaderFlags { return f &^ other }
func (f ShaderFlags) String() string                       { return bitNames(uint64(f), shaderNames[:]) }

// TextureFlags names the texture maps configured on a pass.
type TextureFlags uint32

const (
	TextureNone         TextureFlags = 0
	TextureColour       TextureFlags = 1 << 0
	TextureNormal       TextureFlags = 1 << 1
	TextureSpecular     TextureFlags = 1 << 2
	TextureMetalness    TextureFlags = 1 << 3
	TextureRoughness    TextureFlags = 1 << 4
	TextureEmissive     TextureFlags = 1 << 5
	TextureOcclusion    TextureFlags = 1 << 6
	TextureOpacity      TextureFlags = 1 << 7
	TextureHeight       TextureFlags = 1 << 8
	TextureTransmission TextureFlags = 1 << 9
	TextureClearcoat    TextureFlags = 1 << 10
	TextureSheen        TextureFlags = 1 << 11
)

func (f TextureFlags) Has(other TextureFlags) bool            { return f&other == other }
func (f TextureFlags) HasAny(other TextureFlags) bool         { return f&other != 0 }
func (f TextureFlags) With(other TextureFlags) TextureFlags    { return f | other }
func (f TextureFlags) Without(other TextureFlags) TextureFlags { return f &^ other }
