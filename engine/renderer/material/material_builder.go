package material

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithPasses is an option builder that appends passes to the material.
//
// Parameters:
//   - passes: the passes in render order
//
// Returns:
//   - MaterialBuilderOption: a function that applies the passes option to a material
func WithPasses(passes ...Pass) MaterialBuilderOption {
	return func(m *material) {
		m.passes = append(m.passes, passes...)
	}
}
