package component

import "log/slog"

// registryConfig collects the options of NewRegistry.
type registryConfig struct {
	defaults bool
	plugins  []Plugin
	logger   *slog.Logger
}

// RegistryBuilderOption is a functional option used to configure a Registry during construction.
type RegistryBuilderOption func(*registryConfig)

// WithPlugins registers additional plugins after the built-in ones.
//
// Parameters:
//   - plugins: the plugins to register
//
// Returns:
//   - RegistryBuilderOption: a function that appends the plugins
func WithPlugins(plugins ...Plugin) RegistryBuilderOption {
	return func(c *registryConfig) {
		c.plugins = append(c.plugins, plugins...)
	}
}

// WithoutDefaultPlugins leaves the built-in plugins out.
func WithoutDefaultPlugins() RegistryBuilderOption {
	return func(c *registryConfig) {
		c.defaults = false
	}
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(logger *slog.Logger) RegistryBuilderOption {
	return func(c *registryConfig) {
		c.logger = logger
	}
}
