package light

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid(t *testing.T, maxLights uint32, logBuf *bytes.Buffer) *ClusterGrid {
	t.Helper()
	return NewClusterGrid(
		WithDimensions(4, 4, 8),
		WithDepthRange(0.1, 100),
		WithViewSize(1920, 1080),
		WithMaxLightsPerCluster(maxLights),
		WithClusterLogger(slog.New(slog.NewTextHandler(logBuf, nil))),
	)
}

func TestClusterSliceMatchesBounds(t *testing.T) {
	var buf bytes.Buffer
	g := testGrid(t, 8, &buf)
	for k := range uint32(8) {
		lo, hi := g.SliceBounds(k)
		mid := float32(math.Sqrt(float64(lo * hi)))
		assert.Equal(t, k, g.Slice(mid), "slice %d", k)
	}
	assert.Equal(t, uint32(0), g.Slice(0.01))
	assert.Equal(t, uint32(7), g.Slice(1e6))
}

func TestClusterFlattenIsDense(t *testing.T) {
	var buf bytes.Buffer
	g := testGrid(t, 8, &buf)
	seen := map[uint32]bool{}
	for z := range uint32(8) {
		for y := range uint32(4) {
			for x := range uint32(4) {
				idx := g.Flatten([3]uint32{x, y, z})
				require.Less(t, int(idx), g.ClusterCount())
				seen[idx] = true
			}
		}
	}
	assert.Len(t, seen, g.ClusterCount())
}

func TestClusterIndex3DClampsToGrid(t *testing.T) {
	var buf bytes.Buffer
	g := testGrid(t, 8, &buf)
	assert.Equal(t, [3]uint32{0, 0, 0}, g.ClusterIndex3D(mgl32.Vec2{-10, -10}, 0.01))
	assert.Equal(t, [3]uint32{3, 3, 7}, g.ClusterIndex3D(mgl32.Vec2{5000, 5000}, 5000))
	assert.Equal(t, [3]uint32{2, 2, g.Slice(5)}, g.ClusterIndex3D(mgl32.Vec2{960, 540}, 5))
}

func TestAssignLightsOverflowIsBounded(t *testing.T) {
	const maxLights = 8
	const extra = 5
	var logBuf bytes.Buffer
	g := testGrid(t, maxLights, &logBuf)

	lights := make([]*Light, 0, maxLights+extra)
	for range maxLights + extra {
		lights = append(lights, New(Point,
			WithPosition(mgl32.Vec3{0, 0, -5}),
			WithRange(1),
		))
	}
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1920.0/1080.0, 0.1, 100)
	cl := g.AssignLights(lights, mgl32.Ident4(), proj)

	require.True(t, cl.Overflow)
	assert.Positive(t, cl.OverflowClusters)
	assert.Contains(t, logBuf.String(), "light cluster overflow")
	assert.Equal(t, 1, bytes.Count(logBuf.Bytes(), []byte("level=WARN")))

	cluster := g.Flatten(g.ClusterIndex3D(mgl32.Vec2{960, 540}, 5))
	assert.Equal(t, uint32(maxLights+extra), cl.Grid[cluster].Count)

	var visited []uint32
	n, overflowed := g.Evaluate(cl, cluster, func(i uint32) { visited = append(visited, i) })
	assert.Equal(t, maxLights, n)
	assert.True(t, overflowed)
	assert.Len(t, visited, maxLights)
	for _, i := range visited {
		assert.Less(t, int(i), len(lights))
	}
}

func TestAssignLightsSkipsDistantClusters(t *testing.T) {
	var logBuf bytes.Buffer
	g := testGrid(t, 8, &logBuf)
	lights := []*Light{
		New(Point, WithPosition(mgl32.Vec3{0, 0, -5}), WithRange(0.5)),
		New(Directional),
		New(Spot, WithPosition(mgl32.Vec3{0, 0, -5}), WithRange(0.5), WithDisabled()),
	}
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1920.0/1080.0, 0.1, 100)
	cl := g.AssignLights(lights, mgl32.Ident4(), proj)

	assert.False(t, cl.Overflow)
	assert.Empty(t, logBuf.String())

	near := g.Flatten(g.ClusterIndex3D(mgl32.Vec2{960, 540}, 5))
	far := g.Flatten(g.ClusterIndex3D(mgl32.Vec2{0, 0}, 90))
	assert.Equal(t, uint32(1), cl.Grid[near].Count)
	assert.Equal(t, uint32(0), cl.Grid[far].Count)
	n, overflowed := g.Evaluate(cl, far, func(uint32) { t.Fatal("no light expected") })
	assert.Zero(t, n)
	assert.False(t, overflowed)
}

func TestClusterEntryPacking(t *testing.T) {
	e := ClusterEntry{Start: 1234, Count: 56}
	assert.Equal(t, e, UnpackClusterEntry(PackClusterEntry(e)))

	cl := ClusterLights{Grid: []ClusterEntry{{0, 2}, e}}
	buf := cl.MarshalGrid()
	require.Len(t, buf, 2*ClusterEntryStride)
	assert.Equal(t, uint32(1234), binary.LittleEndian.Uint32(buf[8:]))
	assert.Equal(t, uint32(56), binary.LittleEndian.Uint32(buf[12:]))
	assert.Len(t, cl.MarshalIndices(), 4)
}

func TestClusterConfigMatchesSlice(t *testing.T) {
	var buf bytes.Buffer
	g := testGrid(t, 8, &buf)
	cfg := g.Config()
	depth := float32(12)
	s := float32(math.Log(float64(depth)))*cfg.LogScale + cfg.LogBias
	assert.Equal(t, g.Slice(depth), uint32(s))
	assert.Len(t, cfg.Marshal(), cfg.Size())
}

func TestMarshalLightBufferOrdersDirectionalFirst(t *testing.T) {
	lights := []*Light{
		New(Point, WithIntensity(2)),
		New(Directional, WithIntensity(3)),
		New(Spot, WithDisabled()),
	}
	buf := MarshalLightBuffer(lights, mgl32.Vec3{0.1, 0.1, 0.1})
	require.Len(t, buf, GPULightHeaderSize+2*GPULightSize)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[12:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[16:]))

	first := buf[GPULightHeaderSize:]
	assert.Equal(t, uint32(Directional), binary.LittleEndian.Uint32(first[12:]))
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(first[28:])))
	assert.Equal(t, ^uint32(0), binary.LittleEndian.Uint32(first[56:]), "no shadow map")
}

func TestSceneFlagsFromShadowCasters(t *testing.T) {
	lights := []*Light{
		New(Directional, WithShadow(0)),
		New(Point),
		New(Spot, WithShadow(1), WithDisabled()),
		New(Point, WithShadow(MaxShadowMaps)),
	}
	assert.Equal(t, flags.SceneShadowDirectional, SceneFlags(lights))

	lights[2].Disabled = false
	assert.Equal(t, flags.SceneShadowDirectional|flags.SceneShadowSpot, SceneFlags(lights))

	lights[0].Shadow = NoShadow
	assert.False(t, lights[0].CastsShadows())
	g := lights[3].GPU()
	assert.Equal(t, NoShadow, g.ShadowIndex, "layer outside the array")
}

func TestShadowDataIndexedByLayer(t *testing.T) {
	s := DefaultShadowSettings()
	lights := []*Light{
		New(Spot, WithPosition(mgl32.Vec3{0, 5, 0}), WithRange(20), WithShadow(2)),
		New(Directional, WithDirection(mgl32.Vec3{0, -1, 0}), WithShadow(0)),
		New(Point, WithShadow(1), WithDisabled()),
	}
	data := s.Data(lights, mgl32.Vec3{})
	require.Len(t, data, 3)
	assert.Equal(t, GPUShadowData{}, data[1], "disabled caster leaves its layer empty")
	assert.InDelta(t, 1.0/2048, data[0].TexelSize[0], 1e-9)
	assert.InDelta(t, 2*40.0/2048*3, data[0].NormalBias, 1e-6)

	// the light position lands at the near end of the spot frustum axis
	below := data[2].LightViewProj.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	ndc := below.Vec3().Mul(1 / below[3])
	assert.InDelta(t, 0, ndc[0], 1e-5)
	assert.InDelta(t, 0, ndc[1], 1e-5)
	assert.True(t, ndc[2] > 0 && ndc[2] < 1)

	centre := data[0].LightViewProj.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0.5, centre[2]/centre[3], 0.01, "focus sits mid frustum")
	assert.Len(t, MarshalShadowData(data), 3*GPUShadowDataSize)
}
