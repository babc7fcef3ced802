package backend

import "fmt"

// ImageID identifies a device image.
type ImageID uint32

// BufferID identifies a device buffer.
type BufferID uint32

// RemainingMips and RemainingLayers select every mip or layer after the base.
const (
	RemainingMips   = ^uint32(0)
	RemainingLayers = ^uint32(0)
)

// ImageViewID identifies a subresource range of an image: the identity a pass graph
// tracks hazards on.
type ImageViewID struct {
	Image      ImageID
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

// WholeImage returns the view covering every mip and layer of an image.
func WholeImage(id ImageID) ImageViewID {
	return ImageViewID{Image: id, MipCount: RemainingMips, LayerCount: RemainingLayers}
}

func rangeEnd(base, count uint32) uint64 {
	if count == ^uint32(0) {
		return ^uint64(0)
	}
	return uint64(base) + uint64(count)
}

func rangesOverlap(aBase, aCount, bBase, bCount uint32) bool {
	return uint64(aBase) < rangeEnd(bBase, bCount) && uint64(bBase) < rangeEnd(aBase, aCount)
}

// Overlaps reports whether two views share at least one subresource.
func (v ImageViewID) Overlaps(o ImageViewID) bool {
	return v.Image == o.Image &&
		rangesOverlap(v.BaseMip, v.MipCount, o.BaseMip, o.MipCount) &&
		rangesOverlap(v.BaseLayer, v.LayerCount, o.BaseLayer, o.LayerCount)
}

func (v ImageViewID) String() string {
	return fmt.Sprintf("image%d[mip %d+%d, layer %d+%d]", v.Image, v.BaseMip, v.MipCount, v.BaseLayer, v.LayerCount)
}

// WholeSize selects the rest of a buffer after the offset.
const WholeSize = ^uint64(0)

// BufferRange identifies a byte range of a buffer.
type BufferRange struct {
	Buffer BufferID
	Offset uint64
	Size   uint64
}

// WholeBuffer returns the range covering an entire buffer.
func WholeBuffer(id BufferID) BufferRange {
	return BufferRange{Buffer: id, Size: WholeSize}
}

func (r BufferRange) end() uint64 {
	if r.Size == WholeSize {
		return WholeSize
	}
	return r.Offset + r.Size
}

// Overlaps reports whether two ranges share at least one byte.
func (r BufferRange) Overlaps(o BufferRange) bool {
	return r.Buffer == o.Buffer && r.Offset < o.end() && o.Offset < r.end()
}

func (r BufferRange) String() string {
	return fmt.Sprintf("buffer%d[%d+%d]", r.Buffer, r.Offset, r.Size)
}

// ImageLayout is the layout an image subresource must be in for an access.
type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutGeneral
	LayoutColourAttachment
	LayoutDepthAttachment
	LayoutDepthReadOnly
	LayoutShaderRead
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresent
)

var layoutNames = [...]string{
	"Undefined", "General", "ColourAttachment", "DepthAttachment", "DepthReadOnly",
	"ShaderRead", "TransferSrc", "TransferDst", "Present",
}

func (l ImageLayout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("ImageLayout(%d)", int(l))
}

// AccessFlags describe how a pass touches a resource.
type AccessFlags uint32

const (
	AccessNone                  AccessFlags = 0
	AccessShaderRead            AccessFlags = 1 << 0
	AccessShaderWrite           AccessFlags = 1 << 1
	AccessColourAttachmentRead  AccessFlags = 1 << 2
	AccessColourAttachmentWrite AccessFlags = 1 << 3
	AccessDepthRead             AccessFlags = 1 << 4
	AccessDepthWrite            AccessFlags = 1 << 5
	AccessTransferRead          AccessFlags = 1 << 6
	AccessTransferWrite         AccessFlags = 1 << 7
	AccessIndirectRead          AccessFlags = 1 << 8
	AccessVertexRead            AccessFlags = 1 << 9
	AccessUniformRead           AccessFlags = 1 << 10

	accessWriteMask = AccessShaderWrite | AccessColourAttachmentWrite | AccessDepthWrite | AccessTransferWrite
)

// IsWrite reports whether any of the accesses writes.
func (a AccessFlags) IsWrite() bool { return a&accessWriteMask != 0 }

// ImageBarrier transitions an image subresource range.
type ImageBarrier struct {
	View      ImageViewID
	From, To  ImageLayout
	SrcAccess AccessFlags
	DstAccess AccessFlags
}

// BufferBarrier makes prior accesses to a buffer range visible to later ones.
type BufferBarrier struct {
	Range     BufferRange
	SrcAccess AccessFlags
	DstAccess AccessFlags
}
