package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/technique"
	"github.com/Carmen-Shannon/oxy-castor/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, d *backendtest.Device, opts ...EngineBuilderOption) (Engine, *component.Registry) {
	t.Helper()
	registry, err := component.NewRegistry()
	require.NoError(t, err)
	base := []EngineBuilderOption{
		WithRegistry(registry),
		WithRendererOptions(
			renderer.WithDevice(d),
			renderer.WithTechniqueOptions(technique.WithSize(32, 32)),
		),
	}
	e, err := NewEngine(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e, registry
}

func testScene(t *testing.T, registry *component.Registry) scene.Scene {
	t.Helper()
	s := scene.NewScene("main", registry)
	_, err := s.Add(scene.Node{
		Model:      mgl32.Ident4(),
		Pass:       material.NewPass(registry, material.WithComponents(flags.ComponentDiffuseLighting)),
		Submesh:    flags.SubmeshPositions | flags.SubmeshNormals | flags.SubmeshTexcoords0,
		IndexCount: 36,
	})
	require.NoError(t, err)
	return s
}

func TestRenderFrameBeforeRun(t *testing.T) {
	e, _ := newTestEngine(t, backendtest.NewDevice())
	assert.ErrorIs(t, e.RenderFrame(context.Background()), renderer.ErrNotSetup)
}

func TestRunStopsAtFrameLimit(t *testing.T) {
	d := backendtest.NewDevice()
	e, registry := newTestEngine(t, d, WithFrameLimit(3))
	e.Scenes().Put(0, testScene(t, registry))

	var frames []FrameInfo
	e.OnFrame(func(f FrameInfo) { frames = append(frames, f) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	require.Len(t, frames, 3)
	assert.Equal(t, uint64(3), frames[2].Index)
	assert.Equal(t, 1, frames[2].Scenes)
	assert.Equal(t, uint64(3), e.Renderer().Frames())
	assert.Equal(t, 1, e.Renderer().Technique().Resolve().Draws())

	var opaque int
	for _, s := range e.Profiler().Passes() {
		if s.Name == technique.PassOpaqueResolve {
			opaque = s.Count
		}
	}
	assert.Equal(t, 3, opaque)
}

func TestRunStopsOnCancel(t *testing.T) {
	e, registry := newTestEngine(t, backendtest.NewDevice())
	e.Scenes().Put(0, testScene(t, registry))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var rendered uint64
	e.OnFrame(func(f FrameInfo) {
		rendered = f.Index
		if f.Index == 2 {
			cancel()
		}
	})
	require.NoError(t, e.Run(ctx))
	assert.Equal(t, uint64(2), rendered)
}

func TestQuit(t *testing.T) {
	e, _ := newTestEngine(t, backendtest.NewDevice())
	e.OnFrame(func(FrameInfo) { e.Quit() })
	e.Quit()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.Run(ctx))
	assert.Zero(t, e.Renderer().Frames())
}

func TestInactiveScenesAreSkipped(t *testing.T) {
	e, registry := newTestEngine(t, backendtest.NewDevice(), WithFrameLimit(1))
	hidden := testScene(t, registry)
	hidden.SetActive(false)
	e.Scenes().Put(1, hidden)

	require.NoError(t, e.Run(context.Background()))
	assert.Zero(t, e.Renderer().Frames())
	assert.Same(t, hidden, e.Scenes().Get(1))

	e.Scenes().Remove(1)
	assert.Zero(t, e.Scenes().Len())
}

func TestSceneStackOrder(t *testing.T) {
	registry, err := component.NewRegistry()
	require.NoError(t, err)
	stack := NewSceneStack()
	back, front, off := scene.NewScene("back", registry), scene.NewScene("front", registry), scene.NewScene("off", registry)
	off.SetActive(false)
	stack.Put(10, front)
	stack.Put(-1, back)
	stack.Put(3, off)

	active := stack.Active()
	require.Len(t, active, 2)
	assert.Same(t, back, active[0])
	assert.Same(t, front, active[1])
}

func TestTicksAtConfiguredRate(t *testing.T) {
	e, _ := newTestEngine(t, backendtest.NewDevice(), WithTickRate(500))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var ticks int
	e.OnTick(func(dt time.Duration) {
		assert.Positive(t, dt)
		ticks++
		if ticks == 3 {
			e.Quit()
		}
	})
	require.NoError(t, e.Run(ctx))
	assert.GreaterOrEqual(t, ticks, 3)
}

func TestSettings(t *testing.T) {
	assert.Equal(t, time.Second/60, Settings{}.tickInterval())
	assert.Equal(t, 10*time.Millisecond, Settings{TickRate: 100}.tickInterval())
	assert.Zero(t, Settings{MaxFPS: -1}.minFrameTime())
	assert.Equal(t, 20*time.Millisecond, Settings{MaxFPS: 50}.minFrameTime())

	e, _ := newTestEngine(t, backendtest.NewDevice(), WithFrameLimit(4), WithDebugIndex(2))
	e.Configure(func(s *Settings) { s.MaxFPS = 30 })
	assert.Equal(t, Settings{MaxFPS: 30, FrameLimit: 4, DebugIndex: 2}, e.Settings())
}
