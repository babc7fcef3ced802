package framegraph

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
	"golang.org/x/sync/errgroup"
)

// PassObserver receives the CPU recording time of every pass that ran.
type PassObserver interface {
	PassRecorded(name string, elapsed time.Duration)
}

type node struct {
	pass     *FramePass
	position int
	level    int
	preds    []*node
	runnable RunnablePass
}

// RunnableGraph is a compiled FrameGraph. It owns the live layout and access state of
// every resource the graph touches.
type RunnableGraph struct {
	graph    *FrameGraph
	schedule []*node
	levels   [][]*node
	edges    []Edge
	tracker  *tracker
}

func newRunnableGraph(g *FrameGraph, order []int, preds [][]int, edges []Edge) *RunnableGraph {
	rg := &RunnableGraph{graph: g, edges: edges, tracker: newTracker()}
	byIndex := make(map[int]*node, len(order))
	for pos, i := range order {
		n := &node{pass: g.passes[i], position: pos}
		for _, p := range preds[i] {
			pn := byIndex[p]
			n.preds = append(n.preds, pn)
			n.level = max(n.level, pn.level+1)
		}
		byIndex[i] = n
		rg.schedule = append(rg.schedule, n)
		for len(rg.levels) <= n.level {
			rg.levels = append(rg.levels, nil)
		}
		rg.levels[n.level] = append(rg.levels[n.level], n)
	}
	return rg
}

// Schedule returns the pass names in submission order.
func (rg *RunnableGraph) Schedule() []string {
	out := make([]string, len(rg.schedule))
	for i, n := range rg.schedule {
		out[i] = n.pass.name
	}
	return out
}

// Levels groups the passes by dependency depth. Passes of one level have no edge
// between them.
func (rg *RunnableGraph) Levels() [][]string {
	out := make([][]string, len(rg.levels))
	for i, l := range rg.levels {
		for _, n := range l {
			out[i] = append(out[i], n.pass.name)
		}
	}
	return out
}

// Edges returns the ordering constraints the schedule honours.
func (rg *RunnableGraph) Edges() []Edge { return slices.Clone(rg.edges) }

// Graph returns the graph the schedule was compiled from.
func (rg *RunnableGraph) Graph() *FrameGraph { return rg.graph }

type frameWork struct {
	images  []backend.ImageBarrier
	buffers []backend.BufferBarrier
	index   uint32
	cb      backend.CommandBuffer
}

// Record records and submits one frame. Disabled passes are skipped and leave the
// tracked resource state untouched. Passes of one level record concurrently into
// their own command buffers; submission follows the schedule.
//
// Parameters:
//   - ctx: cancels recording of passes not yet started
//   - device: the device recorders come from
//
// Returns:
//   - error: the first recording or submission failure
func (rg *RunnableGraph) Record(ctx context.Context, device backend.Device) error {
	g := rg.graph
	rg.tracker.reset(g.images)

	work := make([]*frameWork, len(rg.schedule))
	for i, n := range rg.schedule {
		if !n.pass.Enabled() {
			continue
		}
		w := &frameWork{index: n.pass.PassIndex()}
		for _, a := range n.pass.accesses {
			if a.IsImage {
				w.images = append(w.images, rg.tracker.image(a)...)
			} else if b, ok := rg.tracker.buffer(a); ok {
				w.buffers = append(w.buffers, b)
			}
		}
		work[i] = w
	}

	for _, level := range rg.levels {
		eg, egCtx := errgroup.WithContext(ctx)
		if g.workers > 0 {
			eg.SetLimit(g.workers)
		}
		for _, n := range level {
			w := work[n.position]
			if w == nil {
				continue
			}
			eg.Go(func() error {
				return rg.recordPass(egCtx, device, n, w)
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}

	var buffers []backend.CommandBuffer
	for _, w := range work {
		if w != nil && w.cb != nil {
			buffers = append(buffers, w.cb)
		}
	}
	if final := rg.tracker.restore(g.images); len(final) > 0 {
		rec, err := device.NewCommandRecorder(g.name + " final")
		if err != nil {
			return fmt.Errorf("failed to create recorder: %w", err)
		}
		rec.Barrier(final, nil)
		cb, err := rec.Finish()
		if err != nil {
			return fmt.Errorf("failed to finish %s final: %w", g.name, err)
		}
		buffers = append(buffers, cb)
	}
	if len(buffers) == 0 {
		return nil
	}
	if err := device.Submit(buffers...); err != nil {
		return fmt.Errorf("failed to submit %s: %w", g.name, err)
	}
	return nil
}

func (rg *RunnableGraph) recordPass(ctx context.Context, device backend.Device, n *node, w *frameWork) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	rec, err := device.NewCommandRecorder(n.pass.name)
	if err != nil {
		return fmt.Errorf("failed to create recorder for %s: %w", n.pass.name, err)
	}
	if len(w.images) > 0 || len(w.buffers) > 0 {
		rec.Barrier(w.images, w.buffers)
	}
	if n.runnable != nil {
		if err := n.runnable.Record(ctx, rec, w.index); err != nil {
			return fmt.Errorf("failed to record %s: %w", n.pass.name, err)
		}
	}
	w.cb, err = rec.Finish()
	if err != nil {
		return fmt.Errorf("failed to finish %s: %w", n.pass.name, err)
	}
	if obs := rg.graph.observer; obs != nil {
		obs.PassRecorded(n.pass.name, time.Since(start))
	}
	return nil
}
