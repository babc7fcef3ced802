package material

import "slices"

// material is the implementation of the Material interface.
type material struct {
	name   string
	passes []Pass
}

// Material defines the interface for a render material: a named, ordered list of
// passes. Each pass is rendered with its own pipeline permutation.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Passes retrieves the passes in render order.
	//
	// Returns:
	//   - []Pass: a copy of the pass list
	Passes() []Pass

	// Pass retrieves one pass.
	//
	// Parameters:
	//   - i: the pass position
	//
	// Returns:
	//   - Pass: the pass, or nil when i is out of range
	Pass(i int) Pass

	// PassCount retrieves the number of passes.
	PassCount() int

	// AddPass appends a pass.
	//
	// Parameters:
	//   - p: the pass to append
	AddPass(p Pass)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Passes() []Pass {
	return slices.Clone(m.passes)
}

func (m *material) Pass(i int) Pass {
	if i < 0 || i >= len(m.passes) {
		return nil
	}
	return m.passes[i]
}

func (m *material) PassCount() int {
	return len(m.passes)
}

func (m *material) AddPass(p Pass) {
	m.passes = append(m.passes, p)
}
