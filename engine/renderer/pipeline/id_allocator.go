package pipeline

import (
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
)

// NoID marks an entry without a dense pipeline id.
const NoID = ^uint32(0)

// IDAllocator hands out dense pipeline ids, one per permutation key, up to a soft
// maximum. Keys past the maximum get no id; the overflow is logged once.
type IDAllocator struct {
	mu     sync.Mutex
	max    uint32
	ids    map[flags.PipelineBaseHash]uint32
	keys   []flags.PipelineBaseHash
	warned bool
	logger *slog.Logger
}

// NewIDAllocator creates an allocator for at most max ids.
//
// Parameters:
//   - max: the id count; ids run from 0 to max-1
//   - logger: the logger for the overflow warning, nil for slog.Default()
//
// Returns:
//   - *IDAllocator: the allocator
func NewIDAllocator(max uint32, logger *slog.Logger) *IDAllocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &IDAllocator{max: max, ids: make(map[flags.PipelineBaseHash]uint32), logger: logger}
}

// Allocate returns the id of key, assigning the next one on first use.
//
// Parameters:
//   - key: the permutation key
//
// Returns:
//   - uint32: the id, NoID when the allocator is exhausted
//   - bool: false when the allocator is exhausted
func (a *IDAllocator) Allocate(key flags.PipelineBaseHash) (uint32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.ids[key]; ok {
		return id, true
	}
	if uint32(len(a.keys)) >= a.max {
		if !a.warned {
			a.warned = true
			a.logger.Warn("pipeline id space exhausted, permutation ignored",
				"max", a.max,
				"key", key.String())
		}
		return NoID, false
	}
	id := uint32(len(a.keys))
	a.ids[key] = id
	a.keys = append(a.keys, key)
	return id, true
}

// Key returns the key an id was assigned to.
func (a *IDAllocator) Key(id uint32) (flags.PipelineBaseHash, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id >= uint32(len(a.keys)) {
		return flags.PipelineBaseHash{}, false
	}
	return a.keys[id], true
}

// Len returns the number of assigned ids.
func (a *IDAllocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.keys)
}

// Max returns the soft maximum.
func (a *IDAllocator) Max() uint32 { return a.max }
