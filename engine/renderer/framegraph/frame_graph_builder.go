package framegraph

import "log/slog"

// FrameGraphBuilderOption is a functional option used to configure a FrameGraph during construction.
type FrameGraphBuilderOption func(*FrameGraph)

// WithValidation makes Compile reject reads of resources no earlier pass writes and no
// import covers.
func WithValidation(enabled bool) FrameGraphBuilderOption {
	return func(g *FrameGraph) {
		g.validate = enabled
	}
}

// WithWorkers bounds how many passes of one level record at once. Zero means no bound.
func WithWorkers(n int) FrameGraphBuilderOption {
	return func(g *FrameGraph) {
		g.workers = n
	}
}

// WithPassObserver reports per-pass recording times.
func WithPassObserver(o PassObserver) FrameGraphBuilderOption {
	return func(g *FrameGraph) {
		g.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FrameGraphBuilderOption {
	return func(g *FrameGraph) {
		g.logger = logger
	}
}
