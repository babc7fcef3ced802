package shader

import "sync"

// Lazy is a once-cell: the value is computed on first Get and reused afterwards.
type Lazy[T any] struct {
	once  sync.Once
	value T
	err   error
	init  func() (T, error)
}

// NewLazy creates a cell computed by init.
func NewLazy[T any](init func() (T, error)) *Lazy[T] {
	return &Lazy[T]{init: init}
}

// Get returns the memoized value, computing it on the first call.
func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.value, l.err = l.init()
	})
	return l.value, l.err
}

// FunctionCell memoizes one shader function inside one writer: the first Get declares it,
// later calls return the same handle. A cell must not outlive its writer.
type FunctionCell struct {
	fn  *Function
	err error
	w   *Writer
}

// Get returns the function, declaring it through declare on first use.
//
// Parameters:
//   - w: the writer the function lives in
//   - declare: declares the function, called at most once
//
// Returns:
//   - *Function: the memoized handle, nil on error
func (c *FunctionCell) Get(w *Writer, declare func(*Writer) (*Function, error)) *Function {
	if c.w != nil && c.w != w {
		// a new writer means a new permutation
		c.fn, c.err = nil, nil
	}
	c.w = w
	if c.fn == nil && c.err == nil {
		c.fn, c.err = declare(w)
		if c.err != nil {
			w.fail(c.err)
		}
	}
	return c.fn
}

// Declared reports whether the cell holds a function.
func (c *FunctionCell) Declared() bool { return c.fn != nil }
