package material

import "log/slog"

// MaterialBufferBuilderOption is a function that configures a MaterialBuffer during construction.
type MaterialBufferBuilderOption func(*MaterialBuffer)

// WithCapacity is an option builder that sets the maximum number of pass records.
//
// Parameters:
//   - n: the capacity
//
// Returns:
//   - MaterialBufferBuilderOption: a function that applies the capacity option
func WithCapacity(n int) MaterialBufferBuilderOption {
	return func(b *MaterialBuffer) {
		b.capacity = n
	}
}

// WithBufferLogger sets the logger.
func WithBufferLogger(logger *slog.Logger) MaterialBufferBuilderOption {
	return func(b *MaterialBuffer) {
		b.logger = logger
	}
}
