package framegraph

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
)

type imageState struct {
	view   backend.ImageViewID
	layout backend.ImageLayout
	access backend.AccessFlags
}

type bufferState struct {
	r      backend.BufferRange
	access backend.AccessFlags
}

// tracker holds the layout and last access of every subresource touched this frame.
// Later entries are newer; an access replaces the entries its view covers.
type tracker struct {
	images  []imageState
	buffers []bufferState
}

func newTracker() *tracker {
	return &tracker{}
}

func (t *tracker) reset(imported []importedImage) {
	t.images = t.images[:0]
	t.buffers = t.buffers[:0]
	for _, i := range imported {
		t.images = append(t.images, imageState{view: i.view, layout: i.layout})
	}
}

func covers(outer, inner backend.ImageViewID) bool {
	return outer.Image == inner.Image &&
		outer.BaseMip <= inner.BaseMip && end(outer.BaseMip, outer.MipCount) >= end(inner.BaseMip, inner.MipCount) &&
		outer.BaseLayer <= inner.BaseLayer && end(outer.BaseLayer, outer.LayerCount) >= end(inner.BaseLayer, inner.LayerCount)
}

func end(base, count uint32) uint64 {
	if count == ^uint32(0) {
		return ^uint64(0)
	}
	return uint64(base) + uint64(count)
}

func needsSync(prev, next backend.AccessFlags) bool {
	return prev.IsWrite() || (next.IsWrite() && prev != backend.AccessNone)
}

// image returns the barriers an access needs and records its new state. An image never
// seen this frame starts undefined, which only costs a transition.
func (t *tracker) image(a Access) []backend.ImageBarrier {
	var out []backend.ImageBarrier
	seen := false
	for _, s := range t.images {
		if !s.view.Overlaps(a.View) {
			continue
		}
		seen = true
		if s.layout != a.Layout || needsSync(s.access, a.Flags) {
			out = append(out, backend.ImageBarrier{
				View:      a.View,
				From:      s.layout,
				To:        a.Layout,
				SrcAccess: s.access,
				DstAccess: a.Flags,
			})
		}
	}
	if !seen {
		out = append(out, backend.ImageBarrier{View: a.View, From: backend.LayoutUndefined, To: a.Layout, DstAccess: a.Flags})
	}
	t.images = slices.DeleteFunc(t.images, func(s imageState) bool { return covers(a.View, s.view) })
	t.images = append(t.images, imageState{view: a.View, layout: a.Layout, access: a.Flags})
	return out
}

func (t *tracker) buffer(a Access) (backend.BufferBarrier, bool) {
	var src backend.AccessFlags
	for _, s := range t.buffers {
		if s.r.Overlaps(a.Range) {
			src |= s.access
		}
	}
	t.buffers = slices.DeleteFunc(t.buffers, func(s bufferState) bool { return s.r == a.Range })
	t.buffers = append(t.buffers, bufferState{r: a.Range, access: a.Flags})
	if !needsSync(src, a.Flags) {
		return backend.BufferBarrier{}, false
	}
	return backend.BufferBarrier{Range: a.Range, SrcAccess: src, DstAccess: a.Flags}, true
}

// restore transitions imported images back to their import layout.
func (t *tracker) restore(imported []importedImage) []backend.ImageBarrier {
	var out []backend.ImageBarrier
	for _, i := range imported {
		for _, s := range t.images {
			if s.view.Overlaps(i.view) && s.layout != i.layout {
				out = append(out, backend.ImageBarrier{
					View:      s.view,
					From:      s.layout,
					To:        i.layout,
					SrcAccess: s.access,
				})
			}
		}
	}
	return out
}
