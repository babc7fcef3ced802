package flags

import "math/bits"

// SubmeshFlags describes which vertex attribute streams a submesh provides.
type SubmeshFlags uint32

const (
	SubmeshNone       SubmeshFlags = 0
	SubmeshPositions  SubmeshFlags = 1 << 0
	SubmeshNormals    SubmeshFlags = 1 << 1
	SubmeshTangents   SubmeshFlags = 1 << 2
	SubmeshTexcoords0 SubmeshFlags = 1 << 3
	SubmeshTexcoords1 SubmeshFlags = 1 << 4
	SubmeshTexcoords2 SubmeshFlags = 1 << 5
	SubmeshTexcoords3 SubmeshFlags = 1 << 6
	SubmeshColours    SubmeshFlags = 1 << 7
	SubmeshVelocity   SubmeshFlags = 1 << 8
	SubmeshPassMasks  SubmeshFlags = 1 << 9

	SubmeshTexcoordsMask = SubmeshTexcoords0 | SubmeshTexcoords1 | SubmeshTexcoords2 | SubmeshTexcoords3
)

// MaxTexcoordSets is the number of texture coordinate streams a submesh may carry.
const MaxTexcoordSets = 4

var submeshNames = [...]string{
	"positions", "normals", "tangents", "texcoords0", "texcoords1", "texcoords2",
	"texcoords3", "colours", "velocity", "passMasks",
}

func (f SubmeshFlags) Has(other SubmeshFlags) bool            { return f&other == other }
func (f SubmeshFlags) HasAny(other SubmeshFlags) bool         { return f&other != 0 }
func (f SubmeshFlags) With(other SubmeshFlags) SubmeshFlags    { return f | other }
func (f SubmeshFlags) Without(other SubmeshFlags) SubmeshFlags { return f &^ other }
func (f SubmeshFlags) String() string                         { return bitNames(uint64(f), submeshNames[:]) }

// TexcoordSetCount returns how many texture coordinate streams are present.
func (f SubmeshFlags) TexcoordSetCount() int {
	return bits.OnesCount32(uint32(f & SubmeshTexcoordsMask))
}

// TexcoordSet returns the flag of the i-th texture coordinate stream.
func TexcoordSet(i int) SubmeshFlags {
	return SubmeshTexcoords0 << i
}
