package pipeline

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
)

// CacheBuilderOption is a functional option used to configure a Cache during construction.
type CacheBuilderOption func(*Cache)

// WithCacheLabel sets the label used in logs and errors.
func WithCacheLabel(label string) CacheBuilderOption {
	return func(c *Cache) {
		c.label = label
	}
}

// WithCompiler replaces the naga compiler.
//
// Parameters:
//   - compiler: the compiler that validates and translates programs
//
// Returns:
//   - CacheBuilderOption: a function that sets the compiler
func WithCompiler(compiler shader.Compiler) CacheBuilderOption {
	return func(c *Cache) {
		c.compiler = compiler
	}
}

// WithIDAllocator assigns dense ids to new entries. Caches of passes sharing an id space
// share the allocator.
func WithIDAllocator(ids *IDAllocator) CacheBuilderOption {
	return func(c *Cache) {
		c.ids = ids
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *slog.Logger) CacheBuilderOption {
	return func(c *Cache) {
		c.logger = logger
	}
}
