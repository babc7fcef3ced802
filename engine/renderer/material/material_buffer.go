package material

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/component"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/texture"
)

// DefaultCapacity is the number of pass records a MaterialBuffer holds by default.
const DefaultCapacity = 4096

var (
	// ErrBufferFull is returned when every pass record is in use.
	ErrBufferFull = errors.New("material: material buffer full")
	// ErrForeignPass is returned for Pass values not created by NewPass.
	ErrForeignPass = errors.New("material: pass not created by NewPass")
)

// Packed is the GPU image of a MaterialBuffer.
type Packed struct {
	// Materials holds one Material record per pass slot, Stride bytes each.
	Materials []byte
	// TextureConfigs holds the texture unit configurations, textureBase-indexed.
	TextureConfigs []byte
	// Layers lists the texture units in map array layer order.
	Layers []TextureUnit
	// Stride is the size of one Material record.
	Stride uint64
}

// MaterialBuffer packs the passes of every loaded material into the c3d_materials
// storage buffer, laid out per the registry's Material struct. Passes are added from
// loader goroutines while the renderer marshals, so access goes through the mutex.
type MaterialBuffer struct {
	mu         sync.Mutex
	registry   *component.Registry
	animations *texture.AnimationBuffer
	slots      []*pass
	free       []uint32
	capacity   int
	dirty      bool
	logger     *slog.Logger
}

// NewMaterialBuffer creates an empty material buffer.
//
// Parameters:
//   - registry: the registry defining the Material layout
//   - animations: the buffer receiving the texture animations of added passes
//   - options: variadic list of MaterialBufferBuilderOption functions
//
// Returns:
//   - *MaterialBuffer: the buffer
func NewMaterialBuffer(registry *component.Registry, animations *texture.AnimationBuffer, options ...MaterialBufferBuilderOption) *MaterialBuffer {
	b := &MaterialBuffer{
		registry:   registry,
		animations: animations,
		capacity:   DefaultCapacity,
		dirty:      true,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Add stores a pass, assigning its index and registering its texture animations.
// Adding a pass twice returns its current index.
//
// Parameters:
//   - p: the pass
//
// Returns:
//   - uint32: the pass index
//   - error: ErrForeignPass or ErrBufferFull
func (b *MaterialBuffer) Add(p Pass) (uint32, error) {
	pp, ok := p.(*pass)
	if !ok {
		return NoPassIndex, ErrForeignPass
	}
	if idx := pp.Index(); idx != NoPassIndex {
		return idx, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var slot uint32
	if n := len(b.free); n > 0 {
		slot = b.free[n-1]
		b.free = b.free[:n-1]
		b.slots[slot] = pp
	} else {
		if len(b.slots) >= b.capacity {
			return NoPassIndex, fmt.Errorf("failed to add pass %q: %w", pp.name, ErrBufferFull)
		}
		b.slots = append(b.slots, pp)
		slot = uint32(len(b.slots) - 1)
	}

	pp.mu.Lock()
	for i := range pp.units {
		u := &pp.units[i]
		if u.Animation == nil || b.animations == nil {
			continue
		}
		idx := b.animations.Add(*u.Animation)
		if idx == texture.NoAnimation {
			b.logger.Warn("texture animation buffer full, unit left static", "pass", pp.name, "unit", u.Name)
			continue
		}
		u.Config.AnimationIndex = idx
		pp.animations = append(pp.animations, idx)
	}
	pp.index = slot
	pp.mu.Unlock()

	b.dirty = true
	b.logger.Debug("material pass added", "pass", pp.name, "index", slot, "components", pp.flags.String())
	return slot, nil
}

// Remove releases the record and the texture animations of a pass. Removing a pass
// that is not stored is a no-op.
func (b *MaterialBuffer) Remove(p Pass) {
	pp, ok := p.(*pass)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := pp.Index()
	if int(idx) >= len(b.slots) || b.slots[idx] != pp {
		return
	}
	pp.mu.Lock()
	for _, a := range pp.animations {
		b.animations.Remove(a)
	}
	pp.animations = nil
	for i := range pp.units {
		pp.units[i].Config.AnimationIndex = texture.NoAnimation
	}
	pp.index = NoPassIndex
	pp.mu.Unlock()

	b.slots[idx] = nil
	b.free = append(b.free, idx)
	b.dirty = true
}

// Len returns the number of stored passes.
func (b *MaterialBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slots) - len(b.free)
}

// MarkDirty flags the buffer for upload after component values changed.
func (b *MaterialBuffer) MarkDirty() {
	b.mu.Lock()
	b.dirty = true
	b.mu.Unlock()
}

// Dirty reports whether the buffer changed since the last Marshal.
func (b *MaterialBuffer) Dirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

// Marshal packs every stored pass. Each record starts with the header (pass index,
// lighting model, first texture layer, texture unit count) followed by the values the
// pass's components fill in. Free slots stay zeroed. Neither buffer is ever empty so
// both can back storage bindings.
//
// Returns:
//   - Packed: the buffers and the layer order of the map array
//   - error: when the Material struct cannot be laid out
func (b *MaterialBuffer) Marshal() (Packed, error) {
	layout, err := b.registry.MaterialLayout()
	if err != nil {
		return Packed{}, fmt.Errorf("failed to marshal material buffer: %w", err)
	}
	header := make(map[string]int, 4)
	for _, name := range []string{"passIndex", "lightingModel", "textureBase", "textureCount"} {
		m, ok := layout.Member(name)
		if !ok {
			return Packed{}, fmt.Errorf("failed to marshal material buffer: header member %s missing", name)
		}
		header[name] = int(m.Offset)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	stride := layout.Size
	out := Packed{
		Materials: make([]byte, uint64(max(len(b.slots), 1))*stride),
		Stride:    stride,
	}
	var textureBase uint32
	for slot, p := range b.slots {
		if p == nil {
			continue
		}
		rec := out.Materials[uint64(slot)*stride : uint64(slot+1)*stride]
		p.mu.RLock()
		common.PutUint32(rec, header["passIndex"], uint32(slot))
		common.PutUint32(rec, header["lightingModel"], uint32(p.lightingModel))
		common.PutUint32(rec, header["textureBase"], textureBase)
		common.PutUint32(rec, header["textureCount"], uint32(len(p.units)))
		for _, c := range p.components {
			c.Fill(rec, layout)
		}
		for _, u := range p.units {
			out.TextureConfigs = append(out.TextureConfigs, u.Config.Marshal()...)
			out.Layers = append(out.Layers, u)
		}
		textureBase += uint32(len(p.units))
		p.mu.RUnlock()
	}
	if len(out.TextureConfigs) == 0 {
		empty := texture.NewTextureConfig(flags.TextureNone, 0)
		out.TextureConfigs = empty.Marshal()
	}
	b.dirty = false
	return out, nil
}
