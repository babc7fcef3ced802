// Package framegraph orders GPU passes by their declared resource accesses. Passes are
// declared once, compiled into a RunnableGraph, and recorded every frame with barriers
// computed from the tracked state of each resource.
package framegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"
)

var (
	// ErrCompiled is reported when a declaration is made after Compile.
	ErrCompiled = errors.New("framegraph: graph already compiled")
	// ErrCycle is returned by Compile when explicit dependencies form a cycle.
	ErrCycle = errors.New("framegraph: dependency cycle")
	// ErrReadBeforeWrite is returned by a validating Compile when a pass reads a resource
	// that no earlier pass writes and that was not imported.
	ErrReadBeforeWrite = errors.New("framegraph: resource read before any write")
)

// Hazard names why an edge exists.
type Hazard int

const (
	HazardExplicit Hazard = iota
	// HazardRAW orders a reader after the writer it reads from.
	HazardRAW
	// HazardWAR orders a writer after the readers of the previous content.
	HazardWAR
	// HazardWAW orders two writers.
	HazardWAW
	// HazardLayout orders two readers that need the image in different layouts.
	HazardLayout
)

var hazardNames = [...]string{"explicit", "read-after-write", "write-after-read", "write-after-write", "layout"}

func (h Hazard) String() string {
	if int(h) < len(hazardNames) {
		return hazardNames[h]
	}
	return fmt.Sprintf("Hazard(%d)", int(h))
}

// Edge is one ordering constraint of the compiled graph.
type Edge struct {
	From, To string
	Hazard   Hazard
	Resource string
}

type importedImage struct {
	view   backend.ImageViewID
	layout backend.ImageLayout
}

// FrameGraph collects passes and their resource declarations.
type FrameGraph struct {
	mu       sync.Mutex
	name     string
	passes   []*FramePass
	images   []importedImage
	buffers  []backend.BufferRange
	compiled bool
	err      error

	validate bool
	workers  int
	observer PassObserver
	logger   *slog.Logger
}

// NewFrameGraph creates an empty graph.
//
// Parameters:
//   - name: the graph name, used to label command buffers
//   - opts: variadic list of FrameGraphBuilderOption functions
//
// Returns:
//   - *FrameGraph: the graph
func NewFrameGraph(name string, opts ...FrameGraphBuilderOption) *FrameGraph {
	g := &FrameGraph{name: name, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *FrameGraph) isCompiled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.compiled
}

func (g *FrameGraph) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = errors.Join(g.err, err)
}

// Err returns every misuse recorded so far, such as declarations after Compile.
func (g *FrameGraph) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Name returns the graph name.
func (g *FrameGraph) Name() string { return g.name }

// Passes returns the passes in declaration order.
func (g *FrameGraph) Passes() []*FramePass {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.passes)
}

// CreatePass registers a pass. The factory runs once, during Compile.
//
// Parameters:
//   - name: the pass name, unique within the graph
//   - factory: creates the runnable pass
//
// Returns:
//   - *FramePass: the pass to declare accesses on
func (g *FrameGraph) CreatePass(name string, factory RunnableFactory) *FramePass {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := &FramePass{graph: g, name: name, index: len(g.passes), factory: factory}
	if g.compiled {
		g.err = errors.Join(g.err, fmt.Errorf("%w: create %s", ErrCompiled, name))
		return p
	}
	for _, other := range g.passes {
		if other.name == name {
			g.err = errors.Join(g.err, fmt.Errorf("framegraph: duplicate pass %q", name))
		}
	}
	g.passes = append(g.passes, p)
	return p
}

// ImportImage declares an image initialized outside the graph. Every frame starts with
// the view in layout and the graph returns it to that layout at the end of the frame.
func (g *FrameGraph) ImportImage(view backend.ImageViewID, layout backend.ImageLayout) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.compiled {
		g.err = errors.Join(g.err, fmt.Errorf("%w: import %s", ErrCompiled, view))
		return
	}
	g.images = append(g.images, importedImage{view: view, layout: layout})
}

// ImportBuffer declares a buffer range filled outside the graph, typically by uploads.
func (g *FrameGraph) ImportBuffer(r backend.BufferRange) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.compiled {
		g.err = errors.Join(g.err, fmt.Errorf("%w: import %s", ErrCompiled, r))
		return
	}
	g.buffers = append(g.buffers, r)
}

func (g *FrameGraph) imported(a Access) bool {
	if a.IsImage {
		return slices.ContainsFunc(g.images, func(i importedImage) bool { return i.view.Overlaps(a.View) })
	}
	return slices.ContainsFunc(g.buffers, func(r backend.BufferRange) bool { return r.Overlaps(a.Range) })
}

// Compile freezes the graph, orders its passes and runs every factory once in schedule
// order.
//
// Parameters:
//   - ctx: passed to the factories
//
// Returns:
//   - *RunnableGraph: the schedule
//   - error: an earlier misuse, ErrCycle, ErrReadBeforeWrite or a factory failure
func (g *FrameGraph) Compile(ctx context.Context) (*RunnableGraph, error) {
	g.mu.Lock()
	if g.compiled {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCompiled, g.name)
	}
	g.compiled = true
	err := g.err
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	edges, preds := g.buildEdges()
	order, err := g.sort(preds)
	if err != nil {
		return nil, err
	}
	if g.validate {
		if err := g.validateReads(order); err != nil {
			return nil, err
		}
	}

	rg := newRunnableGraph(g, order, preds, edges)
	for _, n := range rg.schedule {
		if n.pass.factory == nil {
			continue
		}
		runnable, err := n.pass.factory(ctx, n.pass, rg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pass %s: %w", n.pass.name, err)
		}
		n.runnable = runnable
	}
	g.logger.Debug("frame graph compiled",
		"graph", g.name,
		"passes", len(order),
		"edges", len(edges),
		"levels", len(rg.levels))
	return rg, nil
}

// buildEdges derives the hazard edges between passes in declaration order, then adds
// the explicit dependencies. preds[i] lists the predecessors of pass i without repeats.
func (g *FrameGraph) buildEdges() ([]Edge, [][]int) {
	preds := make([][]int, len(g.passes))
	var edges []Edge
	link := func(from, to int, h Hazard, resource string) {
		if slices.Contains(preds[to], from) {
			return
		}
		preds[to] = append(preds[to], from)
		edges = append(edges, Edge{From: g.passes[from].name, To: g.passes[to].name, Hazard: h, Resource: resource})
	}

	for j, later := range g.passes {
		for i := range j {
			earlier := g.passes[i]
			if h, res, ok := hazard(earlier.accesses, later.accesses); ok {
				link(i, j, h, res)
			}
		}
	}
	for j, p := range g.passes {
		for _, dep := range p.deps {
			link(dep.index, j, HazardExplicit, "")
		}
	}
	return edges, preds
}

// hazard returns the first hazard between the accesses of an earlier and a later pass.
func hazard(earlier, later []Access) (Hazard, string, bool) {
	for _, a := range earlier {
		for _, b := range later {
			if !a.overlaps(b) {
				continue
			}
			switch {
			case a.Writes() && b.Writes():
				return HazardWAW, b.resource(), true
			case a.Writes():
				return HazardRAW, b.resource(), true
			case b.Writes():
				return HazardWAR, b.resource(), true
			case a.IsImage && a.Layout != b.Layout:
				return HazardLayout, b.resource(), true
			}
		}
	}
	return 0, "", false
}

// sort is Kahn's algorithm picking the lowest declaration index among ready passes, so
// the schedule is stable for a given declaration order.
func (g *FrameGraph) sort(preds [][]int) ([]int, error) {
	n := len(g.passes)
	indegree := make([]int, n)
	succs := make([][]int, n)
	for to, ps := range preds {
		indegree[to] = len(ps)
		for _, from := range ps {
			succs[from] = append(succs[from], to)
		}
	}
	var ready, order []int
	for i := range n {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		slices.Sort(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, s := range succs[next] {
			indegree[s]--
			if indegree[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	if len(order) != n {
		var stuck []string
		for i := range n {
			if indegree[i] > 0 {
				stuck = append(stuck, g.passes[i].name)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrCycle, stuck)
	}
	return order, nil
}

func (g *FrameGraph) validateReads(order []int) error {
	var errs []error
	for pos, i := range order {
		p := g.passes[i]
		for _, a := range p.accesses {
			if !a.Reads() || g.imported(a) {
				continue
			}
			// attachments that are loaded are written by the same pass on first use
			if a.Writes() && (a.Kind == AccessColourAttachment || a.Kind == AccessDepthAttachment) {
				continue
			}
			written := slices.ContainsFunc(order[:pos], func(j int) bool {
				return slices.ContainsFunc(g.passes[j].accesses, func(w Access) bool {
					return w.Writes() && w.overlaps(a)
				})
			})
			if !written {
				errs = append(errs, fmt.Errorf("%w: %s reads %s", ErrReadBeforeWrite, p.name, a.resource()))
			}
		}
	}
	return errors.Join(errs...)
}
