package webgpu

import "log/slog"

// deviceConfig collects the options of NewDevice.
type deviceConfig struct {
	label                string
	forceFallbackAdapter bool
	ringSlots            int
	maxBindGroups        uint32
	logger               *slog.Logger
}

// DeviceBuilderOption is a function that configures the device during construction.
type DeviceBuilderOption func(*deviceConfig)

// WithLabel sets the device label.
func WithLabel(label string) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.label = label
	}
}

// WithForceFallbackAdapter requests the software adapter, for machines without a GPU.
//
// Parameters:
//   - force: whether to force the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: a function that applies the fallback option
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithPushConstantSlots sets how many push constant blocks can be recorded between two
// submits.
//
// Parameters:
//   - slots: the number of 256 byte ring slots
//
// Returns:
//   - DeviceBuilderOption: a function that applies the ring size option
func WithPushConstantSlots(slots int) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.ringSlots = slots
	}
}

// WithMaxBindGroups raises the bind group limit requested from the adapter.
func WithMaxBindGroups(n uint32) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.maxBindGroups = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.logger = logger
	}
}
