package light

import (
	"encoding/binary"
	"log/slog"
	"math"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxLightsPerCluster is the default number of light indices evaluated per cluster.
// A cluster hit by more lights keeps its true count but only this many indices are
// stored and evaluated; the overflow is a soft limit surfaced through ClusterLights.Overflow
// and the lights module's debug probe.
const MaxLightsPerCluster = 128

// DefaultClusterDimensions is the default cluster grid size (x tiles, y tiles, depth slices).
var DefaultClusterDimensions = [3]uint32{16, 9, 24}

// ClusterEntryStride is the byte size of one packed cluster grid entry (uvec2).
const ClusterEntryStride = 8

// ClusterEntry locates one cluster's light indices inside ClusterLights.Indices.
// Count is the number of lights touching the cluster and may exceed the stored span.
type ClusterEntry struct {
	Start uint32
	Count uint32
}

// PackClusterEntry packs an entry into the uvec2 layout read by the shader.
func PackClusterEntry(e ClusterEntry) [2]uint32 {
	return [2]uint32{e.Start, e.Count}
}

// UnpackClusterEntry is the inverse of PackClusterEntry.
func UnpackClusterEntry(v [2]uint32) ClusterEntry {
	return ClusterEntry{Start: v[0], Count: v[1]}
}

// ClusterLights is the result of assigning lights to the cluster grid.
type ClusterLights struct {
	Grid     []ClusterEntry
	Indices  []uint32
	Overflow bool
	// OverflowClusters counts clusters whose count exceeds the per-cluster cap.
	OverflowClusters int
}

// MarshalGrid serializes the grid as an array<vec2<u32>>.
//
// Returns:
//   - []byte: ClusterEntryStride bytes per cluster
func (c *ClusterLights) MarshalGrid() []byte {
	buf := make([]byte, len(c.Grid)*ClusterEntryStride)
	for i, e := range c.Grid {
		p := PackClusterEntry(e)
		binary.LittleEndian.PutUint32(buf[i*8:], p[0])
		binary.LittleEndian.PutUint32(buf[i*8+4:], p[1])
	}
	return buf
}

// MarshalIndices serializes the light index list as an array<u32>. An empty list still
// produces one element so the storage binding is never zero-sized.
func (c *ClusterLights) MarshalIndices() []byte {
	buf := make([]byte, max(len(c.Indices), 1)*4)
	for i, idx := range c.Indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// ClusterGrid partitions the view volume into screen tiles and exponentially spaced depth
// slices.
type ClusterGrid struct {
	dimensions          [3]uint32
	near                float32
	far                 float32
	viewSize            mgl32.Vec2
	maxLightsPerCluster uint32
	logger              *slog.Logger
}

// ClusterGridBuilderOption configures a ClusterGrid during construction.
type ClusterGridBuilderOption func(*ClusterGrid)

// WithDimensions sets the number of tiles along x and y and the number of depth slices.
func WithDimensions(x, y, z uint32) ClusterGridBuilderOption {
	return func(g *ClusterGrid) {
		g.dimensions = [3]uint32{max(x, 1), max(y, 1), max(z, 1)}
	}
}

// WithDepthRange sets the view depth range covered by the slices.
func WithDepthRange(near, far float32) ClusterGridBuilderOption {
	return func(g *ClusterGrid) {
		g.near = near
		g.far = far
	}
}

// WithViewSize sets the render target size in pixels.
func WithViewSize(width, height float32) ClusterGridBuilderOption {
	return func(g *ClusterGrid) {
		g.viewSize = mgl32.Vec2{width, height}
	}
}

// WithMaxLightsPerCluster overrides the per-cluster light cap.
func WithMaxLightsPerCluster(n uint32) ClusterGridBuilderOption {
	return func(g *ClusterGrid) {
		g.maxLightsPerCluster = n
	}
}

// WithClusterLogger sets the logger used to report cluster overflow.
func WithClusterLogger(logger *slog.Logger) ClusterGridBuilderOption {
	return func(g *ClusterGrid) {
		g.logger = logger
	}
}

// NewClusterGrid creates a cluster grid with default dimensions and the provided options.
//
// Parameters:
//   - opts: variadic list of ClusterGridBuilderOption functions
//
// Returns:
//   - *ClusterGrid: the configured grid
func NewClusterGrid(opts ...ClusterGridBuilderOption) *ClusterGrid {
	g := &ClusterGrid{
		dimensions:          DefaultClusterDimensions,
		near:                0.1,
		far:                 1000,
		viewSize:            mgl32.Vec2{1920, 1080},
		maxLightsPerCluster: MaxLightsPerCluster,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dimensions returns the grid size.
func (g *ClusterGrid) Dimensions() [3]uint32 { return g.dimensions }

// MaxLights returns the per-cluster light cap.
func (g *ClusterGrid) MaxLights() uint32 { return g.maxLightsPerCluster }

// ClusterCount returns the total number of clusters.
func (g *ClusterGrid) ClusterCount() int {
	return int(g.dimensions[0] * g.dimensions[1] * g.dimensions[2])
}

// Config returns the shader-side description of the grid.
func (g *ClusterGrid) Config() GPUClusterConfig {
	logRatio := float32(math.Log(float64(g.far / g.near)))
	slices := float32(g.dimensions[2])
	return GPUClusterConfig{
		Dimensions:          g.dimensions,
		MaxLightsPerCluster: g.maxLightsPerCluster,
		ViewSize:            g.viewSize,
		Near:                g.near,
		Far:                 g.far,
		LogScale:            slices / logRatio,
		LogBias:             -slices * float32(math.Log(float64(g.near))) / logRatio,
	}
}

// Slice returns the depth slice containing the linear view depth, clamped to the grid.
//
// Parameters:
//   - depth: positive view-space distance
//
// Returns:
//   - uint32: the slice index
func (g *ClusterGrid) Slice(depth float32) uint32 {
	if depth <= g.near {
		return 0
	}
	cfg := g.Config()
	s := float32(math.Log(float64(depth)))*cfg.LogScale + cfg.LogBias
	return min(uint32(max(s, 0)), g.dimensions[2]-1)
}

// SliceBounds returns the near and far view depth of slice k.
func (g *ClusterGrid) SliceBounds(k uint32) (float32, float32) {
	ratio := float64(g.far / g.near)
	n := float64(g.dimensions[2])
	lo := float64(g.near) * math.Pow(ratio, float64(k)/n)
	hi := float64(g.near) * math.Pow(ratio, float64(k+1)/n)
	return float32(lo), float32(hi)
}

// ClusterIndex3D returns the cluster containing a pixel at the given view depth.
//
// Parameters:
//   - screenPos: pixel position, origin top-left
//   - depth: positive view-space distance
//
// Returns:
//   - [3]uint32: the cluster coordinates
func (g *ClusterGrid) ClusterIndex3D(screenPos mgl32.Vec2, depth float32) [3]uint32 {
	tileW := g.viewSize[0] / float32(g.dimensions[0])
	tileH := g.viewSize[1] / float32(g.dimensions[1])
	x := min(uint32(max(screenPos[0]/tileW, 0)), g.dimensions[0]-1)
	y := min(uint32(max(screenPos[1]/tileH, 0)), g.dimensions[1]-1)
	return [3]uint32{x, y, g.Slice(depth)}
}

// Flatten converts cluster coordinates to the 1D grid index.
func (g *ClusterGrid) Flatten(idx [3]uint32) uint32 {
	return idx[0] + idx[1]*g.dimensions[0] + idx[2]*g.dimensions[0]*g.dimensions[1]
}

// clusterBounds returns the view-space AABB of one cluster. View space looks down -Z.
func (g *ClusterGrid) clusterBounds(x, y, z uint32, invProj mgl32.Mat4) (mgl32.Vec3, mgl32.Vec3) {
	dx := 2 / float32(g.dimensions[0])
	dy := 2 / float32(g.dimensions[1])
	// tile rows start at the top of the screen, NDC y points up
	ndcMin := mgl32.Vec2{-1 + float32(x)*dx, 1 - float32(y+1)*dy}
	ndcMax := mgl32.Vec2{ndcMin[0] + dx, ndcMin[1] + dy}
	zNear, zFar := g.SliceBounds(z)

	lo := mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	hi := lo.Mul(-1)
	for _, nx := range [2]float32{ndcMin[0], ndcMax[0]} {
		for _, ny := range [2]float32{ndcMin[1], ndcMax[1]} {
			p := invProj.Mul4x1(mgl32.Vec4{nx, ny, 0.5, 1})
			dir := p.Vec3().Mul(1 / p[3])
			dir = dir.Mul(1 / -dir[2])
			for _, d := range [2]float32{zNear, zFar} {
				c := dir.Mul(d)
				for i := range 3 {
					lo[i] = min(lo[i], c[i])
					hi[i] = max(hi[i], c[i])
				}
			}
		}
	}
	return lo, hi
}

func sphereIntersectsAABB(centre mgl32.Vec3, radius float32, lo, hi mgl32.Vec3) bool {
	var dist float32
	for i := range 3 {
		v := mgl32.Clamp(centre[i], lo[i], hi[i]) - centre[i]
		dist += v * v
	}
	return dist <= radius*radius
}

// AssignLights assigns every enabled point and spot light to the clusters its bounding
// sphere touches. Indices refer to the positional list returned by Partition.
//
// Parameters:
//   - lights: the scene lights
//   - view: the camera view matrix
//   - proj: the camera projection matrix
//
// Returns:
//   - ClusterLights: the grid entries, the flattened index list and the overflow state
func (g *ClusterGrid) AssignLights(lights []*Light, view, proj mgl32.Mat4) ClusterLights {
	_, positional := Partition(lights)
	type sphere struct {
		centre mgl32.Vec3
		radius float32
	}
	spheres := make([]sphere, len(positional))
	for i, l := range positional {
		c, r := l.Bounds()
		spheres[i] = sphere{view.Mul4x1(c.Vec4(1)).Vec3(), r}
	}

	invProj := proj.Inv()
	out := ClusterLights{Grid: make([]ClusterEntry, g.ClusterCount())}
	for z := range g.dimensions[2] {
		for y := range g.dimensions[1] {
			for x := range g.dimensions[0] {
				lo, hi := g.clusterBounds(x, y, z, invProj)
				entry := ClusterEntry{Start: uint32(len(out.Indices))}
				for i, s := range spheres {
					if !sphereIntersectsAABB(s.centre, s.radius, lo, hi) {
						continue
					}
					if entry.Count < g.maxLightsPerCluster {
						out.Indices = append(out.Indices, uint32(i))
					}
					entry.Count++
				}
				if entry.Count > g.maxLightsPerCluster {
					out.Overflow = true
					out.OverflowClusters++
				}
				out.Grid[g.Flatten([3]uint32{x, y, z})] = entry
			}
		}
	}

	if out.Overflow {
		g.logger.Warn("light cluster overflow, excess lights are not evaluated",
			"clusters", out.OverflowClusters,
			"maxLightsPerCluster", g.maxLightsPerCluster)
	}
	return out
}

// Evaluate calls fn for every light index stored for the cluster, never more than the
// grid's cap, and reports whether the cluster overflowed.
//
// Parameters:
//   - cl: the assignment result
//   - cluster: flattened cluster index
//   - fn: invoked with each light index in the positional list
//
// Returns:
//   - int: the number of lights evaluated
//   - bool: true when lights were skipped
func (g *ClusterGrid) Evaluate(cl ClusterLights, cluster uint32, fn func(lightIndex uint32)) (int, bool) {
	entry := cl.Grid[cluster]
	n := min(entry.Count, g.maxLightsPerCluster)
	end := min(entry.Start+n, uint32(len(cl.Indices)))
	evaluated := 0
	for i := entry.Start; i < end; i++ {
		fn(cl.Indices[i])
		evaluated++
	}
	return evaluated, entry.Count > g.maxLightsPerCluster
}

// ViewDepth returns the positive linear view distance of a [0, 1] depth buffer value.
func (g *ClusterGrid) ViewDepth(depth float32) float32 {
	return common.LinearizeDepth(depth, g.near, g.far)
}
