package renderer

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend/webgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	}
	return fmt.Sprintf("RendererBackendType(%d)", int(t))
}

// newDevice opens the device of a backend type. Unknown types fall back to WebGPU.
func newDevice(t RendererBackendType, label string, forceFallbackAdapter bool, logger *slog.Logger) (backend.Device, error) {
	switch t {
	case BackendTypeWGPU:
		fallthrough
	default:
		d, err := webgpu.NewDevice(
			webgpu.WithLabel(label),
			webgpu.WithForceFallbackAdapter(forceFallbackAdapter),
			webgpu.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s device: %w", t, err)
		}
		return d, nil
	}
}
