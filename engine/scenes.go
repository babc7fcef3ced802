package engine

import (
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/scene"
)

// SceneStack holds scenes by layer key. Lower keys render first.
type SceneStack struct {
	mu     sync.RWMutex
	layers map[int]scene.Scene
}

func NewSceneStack() *SceneStack {
	return &SceneStack{layers: make(map[int]scene.Scene)}
}

// Put places s at key, replacing the scene there.
func (s *SceneStack) Put(key int, sc scene.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[key] = sc
}

func (s *SceneStack) Remove(key int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layers, key)
}

// Get returns the scene at key, or nil.
func (s *SceneStack) Get(key int) scene.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layers[key]
}

func (s *SceneStack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layers)
}

// Active returns the active scenes in render order.
func (s *SceneStack) Active() []scene.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scene.Scene
	for _, k := range slices.Sorted(maps.Keys(s.layers)) {
		if sc := s.layers[k]; sc.Active() {
			out = append(out, sc)
		}
	}
	return out
}
