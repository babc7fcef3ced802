package webgpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// pushRing emulates push constants: every block is written to its own 256 byte slot
// of a uniform buffer and bound with a dynamic offset. Recorders of one frame record
// concurrently, so slot allocation goes through the mutex. Slots are recycled after
// each submit.
type pushRing struct {
	mu     sync.Mutex
	d      *device
	buffer *wgpu.Buffer
	slots  int
	next   int
	groups map[*wgpu.BindGroupLayout]*wgpu.BindGroup
}

func newPushRing(d *device, slots int) (*pushRing, error) {
	b, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "push constant ring",
		Size:  uint64(slots * pushSlotSize),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create push constant ring: %w", err)
	}
	return &pushRing{d: d, buffer: b, slots: slots, groups: make(map[*wgpu.BindGroupLayout]*wgpu.BindGroup)}, nil
}

// push writes one block and returns its dynamic offset.
func (r *pushRing) push(offset uint32, data []byte) (uint32, error) {
	if int(offset)+len(data) > pushSlotSize {
		return 0, fmt.Errorf("push constant block of %d bytes exceeds %d", int(offset)+len(data), pushSlotSize)
	}
	r.mu.Lock()
	if r.next >= r.slots {
		r.mu.Unlock()
		return 0, errRingExhausted
	}
	slot := r.next
	r.next++
	r.mu.Unlock()

	dyn := uint32(slot * pushSlotSize)
	if err := r.d.queue.WriteBuffer(r.buffer, uint64(dyn+offset), data); err != nil {
		return 0, fmt.Errorf("failed to write push constants: %w", err)
	}
	return dyn, nil
}

// group returns the ring bind group for a pipeline's push constant layout.
func (r *pushRing) group(layout *wgpu.BindGroupLayout) (*wgpu.BindGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[layout]; ok {
		return g, nil
	}
	g, err := r.d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "push constants",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  r.buffer,
			Offset:  0,
			Size:    pushSlotSize,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create push constant bind group: %w", err)
	}
	r.groups[layout] = g
	return g, nil
}

func (r *pushRing) reset() {
	r.mu.Lock()
	r.next = 0
	r.mu.Unlock()
}

func (r *pushRing) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.groups {
		g.Release()
	}
	r.groups = nil
	r.buffer.Release()
}
