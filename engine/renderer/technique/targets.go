package technique

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/visibility"
	"github.com/cogentcore/webgpu/wgpu"
)

// Formats of the technique's render targets.
const (
	DepthFormat        = wgpu.TextureFormatDepth32Float
	AlbedoFormat       = wgpu.TextureFormatRGBA8Unorm
	NormalFormat       = wgpu.TextureFormatRGBA16Float
	MaterialFormat     = wgpu.TextureFormatRGBA8Unorm
	VisibilityFormat   = wgpu.TextureFormatRG32Uint
	AccumulationFormat = wgpu.TextureFormatRGBA16Float
	RevealageFormat    = wgpu.TextureFormatR16Float
)

// Target is one full-screen image and the view the passes use.
type Target struct {
	// Name is the binding name passes sample or store the target through.
	Name   string
	Format wgpu.TextureFormat
	Image  backend.Image
	View   backend.ImageView
}

// ID returns the subresource range the pass graph tracks for the target.
func (t *Target) ID() backend.ImageViewID { return t.View.ID() }

// Targets are the images shared by the technique's passes. Depth, the g-buffer and the
// visibility buffer are written by the geometry passes that run before the technique.
type Targets struct {
	Depth      *Target
	Albedo     *Target
	Normal     *Target
	Material   *Target
	Visibility *Target

	// Colour receives the lit result of every opaque path and the combined transparency.
	Colour   *Target
	Velocity *Target

	Accumulation *Target
	Revealage    *Target

	Width, Height uint32
}

type targetSpec struct {
	dst    **Target
	name   string
	format wgpu.TextureFormat
	usage  wgpu.TextureUsage
}

func newTargets(device backend.Device, label string, width, height uint32) (*Targets, error) {
	t := &Targets{Width: width, Height: height}
	attach := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	specs := []targetSpec{
		{&t.Depth, "c3d_depth", DepthFormat, attach},
		{&t.Albedo, "c3d_gbufferAlbedo", AlbedoFormat, attach},
		{&t.Normal, "c3d_gbufferNormal", NormalFormat, attach},
		{&t.Material, "c3d_gbufferMaterial", MaterialFormat, attach},
		{&t.Visibility, "c3d_visibility", VisibilityFormat, attach},
		{&t.Colour, "c3d_outColour", visibility.ColourFormat, attach | wgpu.TextureUsageStorageBinding | wgpu.TextureUsageCopySrc},
		{&t.Velocity, "c3d_outVelocity", visibility.VelocityFormat, attach | wgpu.TextureUsageStorageBinding},
		{&t.Accumulation, "c3d_accumulation", AccumulationFormat, attach},
		{&t.Revealage, "c3d_revealage", RevealageFormat, attach},
	}
	for _, s := range specs {
		img, err := device.CreateImage(backend.ImageDescriptor{
			Label:       fmt.Sprintf("%s %s", label, s.name),
			Width:       width,
			Height:      height,
			Layers:      1,
			MipCount:    1,
			SampleCount: 1,
			Format:      s.format,
			Usage:       s.usage,
		})
		if err != nil {
			t.Release()
			return nil, fmt.Errorf("failed to create target %s: %w", s.name, err)
		}
		view, err := device.CreateImageView(backend.ImageViewDescriptor{
			Label:     fmt.Sprintf("%s %s view", label, s.name),
			Image:     img,
			Dimension: wgpu.TextureViewDimension2D,
		})
		if err != nil {
			img.Release()
			t.Release()
			return nil, fmt.Errorf("failed to create target view %s: %w", s.name, err)
		}
		*s.dst = &Target{Name: s.name, Format: s.format, Image: img, View: view}
	}
	return t, nil
}

// All returns every target.
func (t *Targets) All() []*Target {
	return []*Target{t.Depth, t.Albedo, t.Normal, t.Material, t.Visibility, t.Colour, t.Velocity, t.Accumulation, t.Revealage}
}

// register makes every target's view available to descriptor sets by name.
func (t *Targets) register(r *Resources) {
	for _, target := range t.All() {
		r.SetView(target.Name, target.View)
	}
}

// Release releases the created targets.
func (t *Targets) Release() {
	for _, target := range t.All() {
		if target == nil {
			continue
		}
		target.View.Release()
		target.Image.Release()
	}
}
