package flags

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-castor/common"
)

// Bit widths of the compact low word. The fields are packed LSB first in this order.
const (
	SubmeshBits          = 16
	ProgramBits          = 12
	ComponentCombineBits = 12
	TextureCombineBits   = 12
	PassTypeBits         = 8
	FrontCulledBits      = 1

	// VertexStrideBits is the width of the optional vertex stride packed in the
	// low bits of the high word when ExtraVertexStride is requested.
	VertexStrideBits = 16
)

const (
	submeshShift     = 0
	programShift     = submeshShift + SubmeshBits
	componentShift   = programShift + ProgramBits
	textureShift     = componentShift + ComponentCombineBits
	passTypeShift    = textureShift + TextureCombineBits
	frontCulledShift = passTypeShift + PassTypeBits

	submeshMask     = 1<<SubmeshBits - 1
	programMask     = 1<<ProgramBits - 1
	componentMask   = 1<<ComponentCombineBits - 1
	textureMask     = 1<<TextureCombineBits - 1
	passTypeMask    = 1<<PassTypeBits - 1
	vertexStrideMax = 1<<VertexStrideBits - 1
)

// hashSeed starts every non-compact hash so that an all-zero flag set does not hash to zero.
const hashSeed uint64 = 0xcbf29ce484222325

// ExtraFields names the optional fields packed beside the compact low word. The
// packing is not self-describing: Decompose must be given the same extras as Pack.
type ExtraFields uint8

const (
	ExtraNone         ExtraFields = 0
	ExtraVertexStride ExtraFields = 1 << 0
)

// Has reports whether every bit of other is set in e.
func (e ExtraFields) Has(other ExtraFields) bool { return e&other == other }

// PipelineBaseHash identifies one pipeline permutation. Lo carries the compact,
// decomposable fields; Hi carries the optional extras and a hash of everything else.
// It is comparable and usable as a map key.
type PipelineBaseHash struct {
	Hi uint64
	Lo uint64
}

func (h PipelineBaseHash) String() string {
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// IsZero reports whether h is the zero hash.
func (h PipelineBaseHash) IsZero() bool { return h.Hi == 0 && h.Lo == 0 }

// BaseHashFields is the restricted component layout the visibility path round-trips
// through a compact hash.
type BaseHashFields struct {
	Submesh      SubmeshFlags
	Program      ProgramFlags
	Components   CombineID
	Textures     CombineID
	PassType     PassTypeID
	FrontCulled  bool
	VertexStride uint32
}

// Pack builds the compact hash for fields. Values wider than their named bit width
// are truncated; callers keep them in range.
//
// Parameters:
//   - fields: the decomposable fields
//   - extras: which optional fields to pack into the high word
//
// Returns:
//   - PipelineBaseHash: the packed hash
func Pack(fields BaseHashFields, extras ExtraFields) PipelineBaseHash {
	var lo uint64
	lo |= (uint64(fields.Submesh) & submeshMask) << submeshShift
	lo |= (uint64(fields.Program) & programMask) << programShift
	lo |= (uint64(fields.Components) & componentMask) << componentShift
	lo |= (uint64(fields.Textures) & textureMask) << textureShift
	lo |= (uint64(fields.PassType) & passTypeMask) << passTypeShift
	if fields.FrontCulled {
		lo |= 1 << frontCulledShift
	}
	var hi uint64
	if extras.Has(ExtraVertexStride) {
		hi = uint64(fields.VertexStride) & vertexStrideMax
	}
	return PipelineBaseHash{Hi: hi, Lo: lo}
}

// Decompose recovers the fields packed by Pack. The extras must match the ones used
// when packing, otherwise the returned extra fields are meaningless.
//
// Parameters:
//   - h: the packed hash
//   - extras: which optional fields were packed
//
// Returns:
//   - BaseHashFields: the recovered fields
func Decompose(h PipelineBaseHash, extras ExtraFields) BaseHashFields {
	fields := BaseHashFields{
		Submesh:     SubmeshFlags((h.Lo >> submeshShift) & submeshMask),
		Program:     ProgramFlags((h.Lo >> programShift) & programMask),
		Components:  CombineID((h.Lo >> componentShift) & componentMask),
		Textures:    CombineID((h.Lo >> textureShift) & textureMask),
		PassType:    PassTypeID((h.Lo >> passTypeShift) & passTypeMask),
		FrontCulled: (h.Lo>>frontCulledShift)&1 == 1,
	}
	if extras.Has(ExtraVertexStride) {
		fields.VertexStride = uint32(h.Hi & vertexStrideMax)
	}
	return fields
}

// Hash combines every field of f into a PipelineBaseHash in a fixed canonical order,
// so equal flag content always yields equal hashes.
//
// Returns:
//   - PipelineBaseHash: the permutation key
func (f PipelineFlags) Hash() PipelineBaseHash {
	extras := f.Extras()
	h := Pack(f.BaseFields(), extras)
	rest := common.HashCombineAll(hashSeed,
		uint64(f.Components),
		uint64(f.Textures),
		uint64(f.Scene),
		uint64(f.Shader),
		uint64(f.LightingModel),
		uint64(f.BackgroundModel),
		uint64(f.RenderPassType),
		uint64(f.Topology),
		uint64(f.Culling),
		uint64(f.AlphaFunc),
	)
	if extras.Has(ExtraVertexStride) {
		h.Hi |= rest << VertexStrideBits
	} else {
		h.Hi = rest
	}
	return h
}

// Combine builds flags from selectors given in any order and returns their hash.
//
// Parameters:
//   - opts: the selectors making up the permutation
//
// Returns:
//   - PipelineBaseHash: the permutation key
func Combine(opts ...PipelineFlagsOption) PipelineBaseHash {
	return NewPipelineFlags(opts...).Hash()
}
