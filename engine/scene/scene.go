package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-castor/engine/camera"
	"github.com/Carmen-Shannon/oxy-castor/engine/light"
	"github.com/Carmen-Shannon/oxy-castor/engine/model"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/technique"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrUnknownNode is returned when a node id does not name a node of the scene.
var ErrUnknownNode = errors.New("scene: unknown node")

// Node is one drawable submesh of the scene. Its geometry lives in the shared vertex
// streams and index buffer at BaseVertex and BaseIndex.
type Node struct {
	Model      mgl32.Mat4
	Pass       material.Pass
	Submesh    flags.SubmeshFlags
	BaseVertex uint32
	BaseIndex  uint32
	IndexCount uint32
	// Billboard is the 1-based id of the node whose geometry this billboard instance
	// shares, zero for ordinary meshes.
	Billboard uint32
}

// Camera is the view the scene is rendered from.
type Camera struct {
	View, Projection mgl32.Mat4
	Near, Far        float32
}

// Fog parameters, used when the scene flags select a fog model.
type Fog struct {
	Colour     mgl32.Vec3
	Density    float32
	Start, End float32
}

// PipelineIDs hands out the id the visibility phase writes for a node's permutation.
// The technique's visibility resolve pass implements it.
type PipelineIDs interface {
	PipelineID(f flags.PipelineFlags, scene flags.SceneFlags) (uint32, error)
}

// FrameContext is what the renderer provides to build a frame.
type FrameContext struct {
	Clusters   *light.ClusterGrid
	Pipelines  PipelineIDs
	RenderSize mgl32.Vec2
	Elapsed    time.Duration
	DebugIndex uint32
}

type node struct {
	Node
	prevModel mgl32.Mat4
	material  uint32
	flags     flags.PipelineFlags
	alive     bool
}

// Scene holds the nodes, lights and camera of one view and turns them into the data a
// technique uploads each frame. Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// SetCamera replaces the camera. The previous view-projection is kept for motion
	// vectors.
	SetCamera(c Camera)

	// SetFog sets the fog parameters.
	SetFog(f Fog)

	// SetAmbientColour sets the ambient light colour.
	SetAmbientColour(c mgl32.Vec3)

	// SetBackgroundColour sets the colour drawn where no geometry is, for the colour
	// background model.
	SetBackgroundColour(c mgl32.Vec4)

	// AddLight adds a light.
	AddLight(l *light.Light)

	// RemoveLight removes a light; unknown lights are ignored.
	RemoveLight(l *light.Light)

	// Lights returns the lights in the order they were added.
	Lights() []*light.Light

	// Add adds a node and stores its material pass in the material buffer.
	//
	// Parameters:
	//   - n: the node
	//
	// Returns:
	//   - uint32: the 1-based node id
	//   - error: a material buffer failure
	Add(n Node) (uint32, error)

	// AddMaterial adds one node per pass of a material. The nodes share n's geometry and
	// transform and draw in pass order; n.Pass is ignored.
	//
	// Parameters:
	//   - n: the node template
	//   - m: the material
	//
	// Returns:
	//   - []uint32: the node ids in pass order
	//   - error: an empty material or a material buffer failure, after which none of the
	//     material's nodes remain
	AddMaterial(n Node, m material.Material) ([]uint32, error)

	// Move sets the model matrix of a node. The next frame carries the old one as the
	// previous model matrix.
	Move(id uint32, m mgl32.Mat4) error

	// Remove removes a node. Its id is not reused.
	Remove(id uint32) error

	// Count returns the number of live nodes.
	Count() int

	// Flags returns the scene flags of the next frame.
	Flags() flags.SceneFlags

	// Frame builds the data of the next frame.
	//
	// Parameters:
	//   - ctx: the renderer's cluster grid, pipeline ids and target size
	//
	// Returns:
	//   - *technique.FrameData: the frame
	//   - error: a material marshal or pipeline build failure
	Frame(ctx FrameContext) (*technique.FrameData, error)
}

// scene implements the Scene interface.
type scene struct {
	mu sync.RWMutex

	name   string
	active bool

	registry   *component.Registry
	materials  *material.MaterialBuffer
	animations *texture.AnimationBuffer

	camera       Camera
	prevViewProj mgl32.Mat4
	hasPrev      bool
	fog          Fog
	ambient      mgl32.Vec3
	background   mgl32.Vec4
	sceneFlags   flags.SceneFlags

	lights  []*light.Light
	shadows light.ShadowSettings
	nodes   []*node
	frame   uint32

	logger *slog.Logger
}

var _ Scene = &scene{}

// NewScene creates an empty, active scene.
//
// Parameters:
//   - name: the scene's identifier
//   - registry: the component registry materials are composed with
//   - options: variadic list of SceneBuilderOption functions
//
// Returns:
//   - Scene: the scene
func NewScene(name string, registry *component.Registry, options ...SceneBuilderOption) Scene {
	s := &scene{
		name:     name,
		active:   true,
		registry: registry,
		camera: Camera{
			View:       mgl32.Ident4(),
			Projection: mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100),
			Near:       0.1,
			Far:        100,
		},
		ambient: mgl32.Vec3{0.03, 0.03, 0.03},
		shadows: light.DefaultShadowSettings(),
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.animations == nil {
		s.animations = texture.NewAnimationBuffer(technique.DefaultCapacity.TextureAnimations)
	}
	if s.materials == nil {
		s.materials = material.NewMaterialBuffer(registry, s.animations, material.WithBufferLogger(s.logger))
	}
	return s
}

func (s *scene) Name() string { return s.name }

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) SetCamera(c Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = c
}

func (s *scene) SetFog(f Fog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fog = f
}

func (s *scene) SetAmbientColour(c mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambient = c
}

func (s *scene) SetBackgroundColour(c mgl32.Vec4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = c
}

func (s *scene) AddLight(l *light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(l *light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = slices.DeleteFunc(s.lights, func(other *light.Light) bool { return other == l })
}

func (s *scene) Lights() []*light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lights)
}

func (s *scene) Add(n Node) (uint32, error) {
	if n.Pass == nil {
		return 0, fmt.Errorf("failed to add node: no material pass")
	}
	materialID, err := s.materials.Add(n.Pass)
	if err != nil {
		return 0, fmt.Errorf("failed to add node: %w", err)
	}
	opts := append(n.Pass.PipelineOptions(s.registry, flags.ModeAll), flags.WithSubmesh(n.Submesh))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, &node{
		Node:      n,
		prevModel: n.Model,
		material:  materialID,
		flags:     flags.NewPipelineFlags(opts...),
		alive:     true,
	})
	return uint32(len(s.nodes)), nil
}

func (s *scene) AddMaterial(n Node, m material.Material) ([]uint32, error) {
	if m == nil || m.PassCount() == 0 {
		return nil, fmt.Errorf("failed to add material: no passes")
	}
	ids := make([]uint32, 0, m.PassCount())
	for _, p := range m.Passes() {
		n.Pass = p
		id, err := s.Add(n)
		if err != nil {
			for _, added := range ids {
				_ = s.Remove(added)
			}
			return nil, fmt.Errorf("failed to add material %q: %w", m.Name(), err)
		}
		ids = append(ids, id)
	}
	s.logger.Debug("material added", "scene", s.name, "material", m.Name(), "nodes", len(ids))
	return ids, nil
}

func (s *scene) lookup(id uint32) (*node, error) {
	if id == 0 || int(id) > len(s.nodes) || !s.nodes[id-1].alive {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return s.nodes[id-1], nil
}

func (s *scene) Move(id uint32, m mgl32.Mat4) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.lookup(id)
	if err != nil {
		return err
	}
	n.Model = m
	return nil
}

func (s *scene) Remove(id uint32) error {
	s.mu.Lock()
	n, err := s.lookup(id)
	if err == nil {
		n.alive = false
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if !s.shared(n.Pass) {
		s.materials.Remove(n.Pass)
	}
	return nil
}

// shared reports whether a live node still uses p.
func (s *scene) shared(p material.Pass) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.nodes, func(n *node) bool { return n.alive && n.Pass == p })
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, nd := range s.nodes {
		if nd.alive {
			n++
		}
	}
	return n
}

func (s *scene) Flags() flags.SceneFlags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flagsLocked()
}

func (s *scene) flagsLocked() flags.SceneFlags {
	return s.sceneFlags.With(light.SceneFlags(s.lights))
}

func (s *scene) Frame(ctx FrameContext) (*technique.FrameData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sceneFlags := s.flagsLocked()
	c := s.camera
	viewProj := c.Projection.Mul4(c.View)
	if !s.hasPrev {
		s.prevViewProj = viewProj
		s.hasPrev = true
	}
	uniform := camera.NewGPUSceneUniform(c.View, c.Projection, s.prevViewProj, ctx.RenderSize, c.Near, c.Far)
	uniform.DebugIndex = ctx.DebugIndex
	uniform.FrameIndex = s.frame
	uniform.FogColour = s.fog.Colour
	uniform.FogDensity = s.fog.Density
	uniform.FogStart = s.fog.Start
	uniform.FogEnd = s.fog.End

	frame := &technique.FrameData{
		Scene:             uniform,
		SceneFlags:        sceneFlags,
		Lights:            snapshot(s.lights),
		Ambient:           s.ambient,
		TextureAnimations: s.animations,
		Elapsed:           ctx.Elapsed,
		BackgroundColour:  s.background,
		Nodes:             make([]model.GPUNodeData, len(s.nodes)),
	}
	frame.Shadows = s.shadows.Data(frame.Lights, uniform.CameraPosition)
	if ctx.Clusters != nil {
		clusters := ctx.Clusters.AssignLights(frame.Lights, c.View, c.Projection)
		frame.Clusters = &clusters
	}
	if s.materials.Dirty() {
		packed, err := s.materials.Marshal()
		if err != nil {
			return nil, err
		}
		frame.Materials = &packed
	}

	for i, n := range s.nodes {
		data := &frame.Nodes[i]
		if !n.alive {
			data.NodeFlags = model.NodeFlagSkipped
			data.PipelineID = pipeline.NoID
			continue
		}
		*data = model.NewGPUNodeData(n.Model, n.prevModel, n.material, n.BaseVertex, n.BaseIndex)
		if n.Billboard != 0 {
			data.NodeFlags |= model.NodeFlagBillboard
		}
		if err := s.route(frame, ctx.Pipelines, n, uint32(i+1), data, sceneFlags); err != nil {
			return nil, err
		}
		n.prevModel = n.Model
	}

	s.prevViewProj = viewProj
	s.frame++
	return frame, nil
}

// route sends a node to the forward transparent pass when its material blends, and to
// the visibility path otherwise.
func (s *scene) route(frame *technique.FrameData, ids PipelineIDs, n *node, id uint32, data *model.GPUNodeData, sceneFlags flags.SceneFlags) error {
	if n.flags.Components.Has(flags.ComponentAlphaBlending) {
		frame.Transparent = append(frame.Transparent, technique.TransparentItem{
			Flags:      n.flags,
			NodeID:     id,
			IndexCount: n.IndexCount,
		})
		data.PipelineID = pipeline.NoID
		return nil
	}
	data.PipelineID = pipeline.NoID
	if ids != nil {
		pid, err := ids.PipelineID(n.flags, sceneFlags)
		switch {
		case errors.Is(err, technique.ErrNoPipelineID):
			data.NodeFlags |= model.NodeFlagSkipped
			s.logger.Warn("node skipped", "node", id, "error", err)
			return nil
		case err != nil:
			return fmt.Errorf("failed to build node %d: %w", id, err)
		}
		data.PipelineID = pid
	}
	frame.Resolved = append(frame.Resolved, technique.ResolveItem{
		Flags:           n.flags,
		BillboardNodeID: n.Billboard,
	})
	return nil
}

// snapshot copies the lights so fields changed after Frame returns do not reach the
// frame being uploaded.
func snapshot(lights []*light.Light) []*light.Light {
	out := make([]*light.Light, len(lights))
	for i, l := range lights {
		c := *l
		out[i] = &c
	}
	return out
}
