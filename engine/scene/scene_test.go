package scene

import (
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-castor/engine/light"
	"github.com/Carmen-Shannon/oxy-castor/engine/model"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/technique"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIDs hands out ids per permutation hash, failing past max.
type fakeIDs struct {
	ids map[flags.PipelineBaseHash]uint32
	max uint32
}

func (f *fakeIDs) PipelineID(p flags.PipelineFlags, scene flags.SceneFlags) (uint32, error) {
	p.Scene = p.Scene.With(scene)
	if id, ok := f.ids[p.Hash()]; ok {
		return id, nil
	}
	if uint32(len(f.ids)) >= f.max {
		return pipeline.NoID, fmt.Errorf("%w: %d", technique.ErrNoPipelineID, f.max)
	}
	id := uint32(len(f.ids))
	f.ids[p.Hash()] = id
	return id, nil
}

func newFakeIDs(max uint32) *fakeIDs {
	return &fakeIDs{ids: make(map[flags.PipelineBaseHash]uint32), max: max}
}

func newTestScene(t *testing.T, opts ...SceneBuilderOption) (Scene, *component.Registry) {
	t.Helper()
	registry, err := component.NewRegistry()
	require.NoError(t, err)
	return NewScene("test", registry, opts...), registry
}

func opaqueNode(registry *component.Registry, components ...flags.ComponentFlags) Node {
	return Node{
		Model:      mgl32.Ident4(),
		Pass:       material.NewPass(registry, material.WithComponents(components...)),
		Submesh:    flags.SubmeshPositions | flags.SubmeshNormals | flags.SubmeshTexcoords0,
		IndexCount: 36,
	}
}

func TestFrameRoutesByBlending(t *testing.T) {
	s, registry := newTestScene(t)
	_, err := s.Add(opaqueNode(registry, flags.ComponentDiffuseLighting))
	require.NoError(t, err)
	glass, err := s.Add(opaqueNode(registry, flags.ComponentDiffuseLighting, flags.ComponentAlphaBlending))
	require.NoError(t, err)

	frame, err := s.Frame(FrameContext{Pipelines: newFakeIDs(8), RenderSize: mgl32.Vec2{64, 32}})
	require.NoError(t, err)

	require.Len(t, frame.Nodes, 2)
	require.Len(t, frame.Resolved, 1)
	require.Len(t, frame.Transparent, 1)
	assert.Equal(t, glass, frame.Transparent[0].NodeID)
	assert.Equal(t, uint32(36), frame.Transparent[0].IndexCount)
	assert.Equal(t, uint32(0), frame.Nodes[0].PipelineID)
	assert.Equal(t, pipeline.NoID, frame.Nodes[1].PipelineID)
	assert.False(t, frame.Resolved[0].Flags.Components.Has(flags.ComponentAlphaBlending))
	assert.NotNil(t, frame.Materials)
}

func TestFrameSharesPipelineIDs(t *testing.T) {
	s, registry := newTestScene(t)
	for range 3 {
		_, err := s.Add(opaqueNode(registry, flags.ComponentDiffuseLighting))
		require.NoError(t, err)
	}
	ids := newFakeIDs(8)
	frame, err := s.Frame(FrameContext{Pipelines: ids})
	require.NoError(t, err)

	assert.Len(t, ids.ids, 1)
	for _, n := range frame.Nodes {
		assert.Equal(t, uint32(0), n.PipelineID)
	}
}

func TestFrameSkipsNodesPastIDCap(t *testing.T) {
	s, registry := newTestScene(t)
	_, err := s.Add(opaqueNode(registry, flags.ComponentDiffuseLighting))
	require.NoError(t, err)
	_, err = s.Add(opaqueNode(registry, flags.ComponentDiffuseLighting, flags.ComponentSpecularLighting))
	require.NoError(t, err)

	frame, err := s.Frame(FrameContext{Pipelines: newFakeIDs(1)})
	require.NoError(t, err)

	assert.Len(t, frame.Resolved, 1)
	assert.Zero(t, frame.Nodes[0].NodeFlags&model.NodeFlagSkipped)
	assert.NotZero(t, frame.Nodes[1].NodeFlags&model.NodeFlagSkipped)
	assert.Equal(t, pipeline.NoID, frame.Nodes[1].PipelineID)
}

func TestFrameTracksPreviousMatrices(t *testing.T) {
	s, registry := newTestScene(t)
	id, err := s.Add(opaqueNode(registry, flags.ComponentDiffuseLighting))
	require.NoError(t, err)

	first, err := s.Frame(FrameContext{})
	require.NoError(t, err)
	assert.Equal(t, first.Scene.ViewProj, first.Scene.PrevViewProj)

	moved := mgl32.Translate3D(1, 0, 0)
	require.NoError(t, s.Move(id, moved))
	s.SetCamera(Camera{View: mgl32.Translate3D(0, 0, -5), Projection: mgl32.Ortho(-1, 1, -1, 1, 0.1, 10), Near: 0.1, Far: 10})

	second, err := s.Frame(FrameContext{})
	require.NoError(t, err)
	assert.Equal(t, first.Scene.ViewProj, second.Scene.PrevViewProj)
	assert.Equal(t, mgl32.Ident4(), second.Nodes[0].PrevModel)
	assert.Equal(t, moved, second.Nodes[0].Model)
	assert.Equal(t, uint32(1), second.Scene.FrameIndex)

	third, err := s.Frame(FrameContext{})
	require.NoError(t, err)
	assert.Equal(t, moved, third.Nodes[0].PrevModel)
	assert.Nil(t, third.Materials)
}

func TestRemove(t *testing.T) {
	s, registry := newTestScene(t)
	n := opaqueNode(registry, flags.ComponentDiffuseLighting)
	a, err := s.Add(n)
	require.NoError(t, err)
	b, err := s.Add(n)
	require.NoError(t, err)

	require.NoError(t, s.Remove(a))
	assert.Equal(t, 1, s.Count())
	assert.ErrorIs(t, s.Remove(a), ErrUnknownNode)
	assert.ErrorIs(t, s.Move(0, mgl32.Ident4()), ErrUnknownNode)

	frame, err := s.Frame(FrameContext{Pipelines: newFakeIDs(8)})
	require.NoError(t, err)
	require.Len(t, frame.Nodes, 2)
	assert.NotZero(t, frame.Nodes[a-1].NodeFlags&model.NodeFlagSkipped)
	assert.Zero(t, frame.Nodes[b-1].NodeFlags&model.NodeFlagSkipped)
	assert.Len(t, frame.Resolved, 1)
}

func TestAddWithoutPass(t *testing.T) {
	s, _ := newTestScene(t)
	_, err := s.Add(Node{Model: mgl32.Ident4()})
	assert.Error(t, err)
	assert.Zero(t, s.Count())
}

func TestAddMaterialAddsNodePerPass(t *testing.T) {
	s, registry := newTestScene(t)
	base := material.NewPass(registry, material.WithPassName("base"), material.WithComponents(flags.ComponentDiffuseLighting))
	decal := material.NewPass(registry, material.WithPassName("decal"),
		material.WithComponents(flags.ComponentDiffuseLighting, flags.ComponentAlphaBlending))
	m := material.NewMaterial(material.WithName("wall"), material.WithPasses(base, decal))

	n := opaqueNode(registry)
	n.Pass = nil
	ids, err := s.AddMaterial(n, m)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, 2, s.Count())

	frame, err := s.Frame(FrameContext{Pipelines: newFakeIDs(8), RenderSize: mgl32.Vec2{64, 32}})
	require.NoError(t, err)
	require.Len(t, frame.Nodes, 2)
	require.Len(t, frame.Resolved, 1)
	require.Len(t, frame.Transparent, 1)
	assert.Equal(t, ids[1], frame.Transparent[0].NodeID)
	assert.Equal(t, uint32(36), frame.Transparent[0].IndexCount)
}

func TestAddMaterialWithoutPasses(t *testing.T) {
	s, _ := newTestScene(t)
	_, err := s.AddMaterial(Node{Model: mgl32.Ident4()}, material.NewMaterial(material.WithName("empty")))
	assert.Error(t, err)
	_, err = s.AddMaterial(Node{Model: mgl32.Ident4()}, nil)
	assert.Error(t, err)
	assert.Zero(t, s.Count())
}

func TestFlagsAndFog(t *testing.T) {
	s, _ := newTestScene(t, WithSceneFlags(flags.SceneFogLinear))
	s.SetFog(Fog{Colour: mgl32.Vec3{0.5, 0.5, 0.5}, Start: 2, End: 20})
	s.AddLight(light.New(light.Point))
	assert.Len(t, s.Lights(), 1)
	assert.True(t, s.Flags().Has(flags.SceneFogLinear))

	frame, err := s.Frame(FrameContext{})
	require.NoError(t, err)
	assert.Equal(t, float32(20), frame.Scene.FogEnd)
	assert.Equal(t, mgl32.Vec3{0.5, 0.5, 0.5}, frame.Scene.FogColour)
	assert.Len(t, frame.Lights, 1)
	assert.Nil(t, frame.Clusters)

	s.RemoveLight(s.Lights()[0])
	assert.Empty(t, s.Lights())
}

func TestFrameAssignsClusters(t *testing.T) {
	s, _ := newTestScene(t)
	s.AddLight(light.New(light.Point))
	grid := light.NewClusterGrid(light.WithViewSize(64, 32))

	frame, err := s.Frame(FrameContext{Clusters: grid})
	require.NoError(t, err)
	require.NotNil(t, frame.Clusters)
}

func TestFrameSnapshotsLights(t *testing.T) {
	s, _ := newTestScene(t)
	sun := light.New(light.Directional, light.WithShadow(1))
	s.AddLight(sun)

	frame, err := s.Frame(FrameContext{})
	require.NoError(t, err)
	assert.True(t, s.Flags().Has(flags.SceneShadowDirectional))
	require.Len(t, frame.Shadows, 2)
	assert.NotZero(t, frame.Shadows[1].LightViewProj)

	sun.Intensity = 5
	assert.Equal(t, float32(1), frame.Lights[0].Intensity)
}

func TestBillboardNodes(t *testing.T) {
	s, registry := newTestScene(t)
	src, err := s.Add(opaqueNode(registry, flags.ComponentDiffuseLighting))
	require.NoError(t, err)
	n := opaqueNode(registry, flags.ComponentDiffuseLighting)
	n.Billboard = src
	_, err = s.Add(n)
	require.NoError(t, err)

	frame, err := s.Frame(FrameContext{Pipelines: newFakeIDs(8)})
	require.NoError(t, err)
	assert.NotZero(t, frame.Nodes[1].NodeFlags&model.NodeFlagBillboard)
	require.Len(t, frame.Resolved, 2)
	assert.Equal(t, src, frame.Resolved[1].BillboardNodeID)
}
