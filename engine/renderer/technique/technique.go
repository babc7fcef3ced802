package technique

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/Carmen-Shannon/oxy-castor/engine/camera"
	"github.com/Carmen-Shannon/oxy-castor/engine/light"
	"github.com/Carmen-Shannon/oxy-castor/engine/model"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/framegraph"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/texture"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/visibility"
	"github.com/go-gl/mathgl/mgl32"
)

// Names of the shared buffers the technique uploads.
const (
	BufferScene             = "c3d_scene"
	BufferNodes             = "c3d_nodes"
	BufferIndices           = "c3d_indices"
	BufferLights            = "c3d_lights"
	BufferShadowData        = "c3d_shadowData"
	BufferClusterConfig     = "c3d_clusterConfig"
	BufferClusterGrid       = "c3d_clusterGrid"
	BufferClusterIndices    = "c3d_clusterIndices"
	BufferMaterials         = "c3d_materials"
	BufferTextureConfigs    = "c3d_textureConfigs"
	BufferTextureAnimations = "c3d_textureAnimations"
	BufferBackgroundColour  = "c3d_backgroundColour"
)

var (
	// ErrRegistered is returned when a technique is registered into a second graph.
	ErrRegistered = errors.New("technique: already registered")
	// ErrCapacity is returned when a frame holds more nodes than the technique sized for.
	ErrCapacity = errors.New("technique: frame exceeds capacity")
)

// Capacity sizes the shared buffers. Descriptor sets keep the buffers they were created
// with, so the sizes are fixed for the technique's lifetime.
type Capacity struct {
	Nodes             int
	Materials         int
	TextureUnits      int
	TextureAnimations int
}

// DefaultCapacity is the capacity of a technique created without WithCapacity.
var DefaultCapacity = Capacity{
	Nodes:             4096,
	Materials:         material.DefaultCapacity,
	TextureUnits:      4 * material.DefaultCapacity,
	TextureAnimations: 256,
}

// FrameData is everything Prepare uploads and selects for one frame. Nil or empty
// members leave the previous frame's data in place.
type FrameData struct {
	Scene      camera.GPUSceneUniform
	SceneFlags flags.SceneFlags

	Nodes []model.GPUNodeData

	Lights   []*light.Light
	Ambient  mgl32.Vec3
	Clusters *light.ClusterLights
	// Shadows is indexed by shadow layer.
	Shadows []light.GPUShadowData

	Materials         *material.Packed
	TextureAnimations *texture.AnimationBuffer
	Elapsed           time.Duration

	BackgroundColour mgl32.Vec4

	// Resolved lists the permutations written into the visibility buffer.
	Resolved []ResolveItem
	// Transparent lists the nodes drawn by the forward transparent pass.
	Transparent []TransparentItem
}

// Technique owns the render targets and shared buffers of the deferred, visibility and
// transparent paths and registers their passes into a frame graph. Depth, the g-buffer
// and the visibility buffer are filled by geometry passes outside the technique.
type Technique struct {
	label         string
	device        backend.Device
	registry      *component.Registry
	width, height uint32
	backend       visibility.Backend
	compiler      shader.Compiler
	mode          shader.PushConstantMode
	modeSet       bool
	lightingModel flags.LightingModelID
	background    flags.BackgroundModelID
	shaderFlags   flags.ShaderFlags
	capacity      Capacity
	clusters      *light.ClusterGrid
	logger        *slog.Logger

	resources  *Resources
	targets    *Targets
	scene      atomic.Uint32
	registered atomic.Bool

	opaque      *OpaqueResolvePass
	indirect    *IndirectLightingPass
	reorder     *VisibilityReorderPass
	resolve     *VisibilityResolvePass
	transparent *ForwardTransparentPass
	combine     *TransparentCombinePass
}

// NewTechnique creates the technique's targets and passes. Programs are built when the
// graph is compiled and when Prepare meets a new permutation.
//
// Parameters:
//   - device: the device every pass creates its objects on
//   - registry: the component registry providing material layout and blending
//   - opts: variadic list of TechniqueBuilderOption functions
//
// Returns:
//   - *Technique: the technique
//   - error: a target creation failure or an invalid material layout
func NewTechnique(device backend.Device, registry *component.Registry, opts ...TechniqueBuilderOption) (*Technique, error) {
	t := &Technique{
		label:         "technique",
		device:        device,
		registry:      registry,
		width:         1280,
		height:        720,
		backend:       visibility.BackendGraphics,
		lightingModel: flags.LightingModelPBR,
		background:    flags.BackgroundModelColour,
		capacity:      DefaultCapacity,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.clusters == nil {
		t.clusters = light.NewClusterGrid(
			light.WithViewSize(float32(t.width), float32(t.height)),
			light.WithClusterLogger(t.logger))
	}
	if !t.modeSet {
		t.mode = shader.PushConstantsUniform
		if device.Features().PushConstants {
			t.mode = shader.PushConstantsNative
		}
	}

	layout, err := registry.MaterialLayout()
	if err != nil {
		return nil, fmt.Errorf("failed to lay out materials: %w", err)
	}
	t.resources = NewResources(device, t.logger)
	t.targets, err = newTargets(device, t.label, t.width, t.height)
	if err != nil {
		return nil, err
	}
	t.targets.register(t.resources)
	t.sizeBuffers(layout.Size)

	t.opaque = newOpaqueResolvePass(t)
	t.indirect = newIndirectLightingPass(t)
	t.reorder = newVisibilityReorderPass(t)
	t.resolve = newVisibilityResolvePass(t)
	t.transparent = newForwardTransparentPass(t)
	t.combine = newTransparentCombinePass(t, t.transparent)

	t.logger.Debug("technique created",
		"label", t.label,
		"width", t.width,
		"height", t.height,
		"backend", t.backend.String(),
		"push_constants", t.mode)
	return t, nil
}

func (t *Technique) sizeBuffers(materialStride uint64) {
	cl := uint64(t.clusters.ClusterCount())
	counts, starts, cursors, pixels := visibility.ReorderBufferSizes(t.width, t.height)
	sizes := map[string]uint64{
		BufferScene:             camera.GPUSceneUniformSize,
		BufferNodes:             uint64(t.capacity.Nodes) * model.GPUNodeDataSize,
		BufferLights:            light.GPULightHeaderSize + light.MaxGPULights*light.GPULightSize,
		BufferShadowData:        light.MaxShadowMaps * light.GPUShadowDataSize,
		BufferClusterConfig:     light.GPUClusterConfigSize,
		BufferClusterGrid:       cl * light.ClusterEntryStride,
		BufferClusterIndices:    cl * uint64(t.clusters.MaxLights()) * 4,
		BufferMaterials:         uint64(t.capacity.Materials) * materialStride,
		BufferTextureConfigs:    uint64(t.capacity.TextureUnits) * texture.GPUTextureConfigSize,
		BufferTextureAnimations: uint64(t.capacity.TextureAnimations) * texture.GPUTextureAnimationSize,
		BufferBackgroundColour:  16,
		BufferBucketCounts:      counts,
		BufferBucketStarts:      starts,
		BufferBucketCursors:     cursors,
		BufferPixels:            pixels,
	}
	for name, size := range sizes {
		t.resources.SetSize(name, size)
	}
}

// cacheOptions are the cache options every pass shares, labelled with the pass name.
func (t *Technique) cacheOptions(pass string) []pipeline.CacheBuilderOption {
	opts := []pipeline.CacheBuilderOption{
		pipeline.WithCacheLabel(t.label + " " + pass),
		pipeline.WithCacheLogger(t.logger),
	}
	if t.compiler != nil {
		opts = append(opts, pipeline.WithCompiler(t.compiler))
	}
	return opts
}

// Scene returns the scene flags of the last prepared frame.
func (t *Technique) Scene() flags.SceneFlags { return flags.SceneFlags(t.scene.Load()) }

// SetScene sets the scene flags passes select their programs with at compile time.
func (t *Technique) SetScene(scene flags.SceneFlags) { t.scene.Store(uint32(scene)) }

func (t *Technique) Targets() *Targets                         { return t.targets }
func (t *Technique) Resources() *Resources                     { return t.resources }
func (t *Technique) Backend() visibility.Backend               { return t.backend }
func (t *Technique) PushConstantMode() shader.PushConstantMode { return t.mode }
func (t *Technique) Opaque() *OpaqueResolvePass                { return t.opaque }
func (t *Technique) Indirect() *IndirectLightingPass           { return t.indirect }
func (t *Technique) Reorder() *VisibilityReorderPass           { return t.reorder }
func (t *Technique) Resolve() *VisibilityResolvePass           { return t.resolve }
func (t *Technique) Transparent() *ForwardTransparentPass      { return t.transparent }
func (t *Technique) Combine() *TransparentCombinePass          { return t.combine }
func (t *Technique) ClusterGrid() *light.ClusterGrid           { return t.clusters }

// Size returns the render target size in pixels.
func (t *Technique) Size() (uint32, uint32) { return t.width, t.height }

// SetGeometry registers the mesh buffers the resolve and forward passes pull vertices
// from. Call it before Register; descriptor sets keep the buffers they were built with.
//
// Parameters:
//   - indices: the index buffer, u32 per index
//   - streams: one buffer per vertex stream; missing streams are bound to placeholders
func (t *Technique) SetGeometry(indices backend.Buffer, streams map[model.VertexStream]backend.Buffer) {
	t.resources.SetBuffer(BufferIndices, indices)
	for s, buf := range streams {
		t.resources.SetBuffer(s.Name(), buf)
	}
}

// Register declares the technique's imported resources and passes in g. The reorder
// pass is only registered for the compute resolve.
//
// Parameters:
//   - g: the graph, not yet compiled
//
// Returns:
//   - error: ErrRegistered on a second call, or a buffer creation failure
func (t *Technique) Register(g *framegraph.FrameGraph) error {
	if !t.registered.CompareAndSwap(false, true) {
		return ErrRegistered
	}
	shared := []string{BufferScene, BufferNodes}
	if t.backend == visibility.BackendCompute {
		shared = append(shared, BufferBucketCounts, BufferBucketStarts, BufferBucketCursors, BufferPixels)
	}
	for _, name := range shared {
		if _, err := t.resources.Ensure(name, 0); err != nil {
			return err
		}
	}

	for _, target := range []*Target{t.targets.Depth, t.targets.Albedo, t.targets.Normal, t.targets.Material, t.targets.Visibility} {
		g.ImportImage(target.ID(), backend.LayoutShaderRead)
	}
	g.ImportBuffer(t.resources.Range(BufferScene))
	g.ImportBuffer(t.resources.Range(BufferNodes))

	if t.backend == visibility.BackendCompute {
		t.reorder.register(g)
	}
	t.opaque.register(g)
	t.indirect.register(g)
	t.resolve.register(g)
	t.transparent.register(g)
	t.combine.register(g)
	return nil
}

// Prepare uploads a frame's data and selects the programs its passes record.
//
// Parameters:
//   - frame: the frame's data
//
// Returns:
//   - error: ErrCapacity, an upload failure or a program build failure
func (t *Technique) Prepare(frame *FrameData) error {
	if len(frame.Nodes) > t.capacity.Nodes {
		return fmt.Errorf("%w: %d nodes, capacity %d", ErrCapacity, len(frame.Nodes), t.capacity.Nodes)
	}
	t.SetScene(frame.SceneFlags)

	if err := t.upload(frame); err != nil {
		return fmt.Errorf("failed to prepare %s: %w", t.label, err)
	}
	scene := frame.SceneFlags
	if _, err := t.opaque.Select(scene); err != nil {
		return fmt.Errorf("failed to prepare %s: %w", t.label, err)
	}
	if _, err := t.indirect.Select(scene); err != nil {
		return fmt.Errorf("failed to prepare %s: %w", t.label, err)
	}
	if err := t.resolve.Prepare(frame.Resolved, scene); err != nil {
		return fmt.Errorf("failed to prepare %s: %w", t.label, err)
	}
	if err := t.transparent.Prepare(frame.Transparent, scene); err != nil {
		return fmt.Errorf("failed to prepare %s: %w", t.label, err)
	}
	return nil
}

func (t *Technique) upload(frame *FrameData) error {
	r := t.resources
	if err := r.Write(BufferScene, frame.Scene.Marshal()); err != nil {
		return err
	}
	if len(frame.Nodes) > 0 {
		buf := make([]byte, 0, len(frame.Nodes)*model.GPUNodeDataSize)
		for i := range frame.Nodes {
			buf = append(buf, frame.Nodes[i].Marshal()...)
		}
		if err := r.Write(BufferNodes, buf); err != nil {
			return err
		}
	}
	if err := r.Write(BufferLights, light.MarshalLightBuffer(frame.Lights, frame.Ambient)); err != nil {
		return err
	}
	if len(frame.Shadows) > 0 {
		if err := r.Write(BufferShadowData, light.MarshalShadowData(frame.Shadows)); err != nil {
			return err
		}
	}
	if frame.Clusters != nil {
		config := t.clusters.Config()
		for name, data := range map[string][]byte{
			BufferClusterConfig:  config.Marshal(),
			BufferClusterGrid:    frame.Clusters.MarshalGrid(),
			BufferClusterIndices: frame.Clusters.MarshalIndices(),
		} {
			if err := r.Write(name, data); err != nil {
				return err
			}
		}
	}
	if frame.Materials != nil {
		if err := r.Write(BufferMaterials, frame.Materials.Materials); err != nil {
			return err
		}
		if err := r.Write(BufferTextureConfigs, frame.Materials.TextureConfigs); err != nil {
			return err
		}
	}
	if frame.TextureAnimations != nil {
		if err := r.Write(BufferTextureAnimations, frame.TextureAnimations.Marshal(frame.Elapsed)); err != nil {
			return err
		}
	}
	colour := make([]byte, 16)
	common.PutVec4(colour, 0, frame.BackgroundColour)
	return r.Write(BufferBackgroundColour, colour)
}

// Release releases every pass cache, target and owned buffer.
func (t *Technique) Release() {
	for _, c := range []*pipeline.Cache{t.opaque.cache, t.indirect.cache, t.reorder.cache, t.resolve.cache, t.transparent.cache, t.combine.cache} {
		c.Release()
	}
	t.targets.Release()
	t.resources.Release()
}
