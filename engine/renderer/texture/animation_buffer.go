package texture

import (
	"sync"
	"time"
)

// AnimationBuffer holds the texture animations of every pass in one storage buffer.
// Passes add and remove animations from loader goroutines while the renderer marshals
// the buffer, so all access goes through the mutex.
type AnimationBuffer struct {
	mu      sync.Mutex
	slots   []*Animation
	free    []uint32
	dirty   bool
	maxSize int
}

// NewAnimationBuffer creates an empty buffer holding at most capacity records.
func NewAnimationBuffer(capacity int) *AnimationBuffer {
	return &AnimationBuffer{maxSize: capacity, dirty: true}
}

// Add stores an animation and returns its index in the GPU array.
//
// Parameters:
//   - a: the animation
//
// Returns:
//   - uint32: the record index, NoAnimation if the buffer is full
func (b *AnimationBuffer) Add(a Animation) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty = true
	if n := len(b.free); n > 0 {
		idx := b.free[n-1]
		b.free = b.free[:n-1]
		b.slots[idx] = &a
		return idx
	}
	if len(b.slots) >= b.maxSize {
		return NoAnimation
	}
	b.slots = append(b.slots, &a)
	return uint32(len(b.slots) - 1)
}

// Remove releases the record at idx. Removing an unknown index is a no-op.
func (b *AnimationBuffer) Remove(idx uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(idx) >= len(b.slots) || b.slots[idx] == nil {
		return
	}
	b.slots[idx] = nil
	b.free = append(b.free, idx)
	b.dirty = true
}

// Len returns the number of live animations.
func (b *AnimationBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slots) - len(b.free)
}

// Dirty reports whether the set of animations changed since the last Marshal.
func (b *AnimationBuffer) Dirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

// Marshal evaluates every record at the elapsed time. Free slots hold the identity
// record. The result is never empty so it can back a storage binding.
//
// Parameters:
//   - elapsed: time since the renderer started
//
// Returns:
//   - []byte: GPUTextureAnimationSize bytes per slot
func (b *AnimationBuffer) Marshal(elapsed time.Duration) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty = false
	n := max(len(b.slots), 1)
	buf := make([]byte, 0, n*GPUTextureAnimationSize)
	if len(b.slots) == 0 {
		return append(buf, IdentityAnimation.Marshal()...)
	}
	for _, a := range b.slots {
		rec := IdentityAnimation
		if a != nil {
			rec = a.Evaluate(elapsed)
		}
		buf = append(buf, rec.Marshal()...)
	}
	return buf
}
