package engine

import "time"

// Settings are the runtime knobs of the engine loops.
type Settings struct {
	// TickRate is the tick callback rate in Hz; <= 0 means 60.
	TickRate float64
	// MaxFPS caps the render loop; <= 0 leaves it uncapped.
	MaxFPS float64
	// FrameLimit makes Run return after that many frames; 0 runs until stopped.
	FrameLimit uint64
	// Profiling logs the profiler summary from the render loop.
	Profiling bool
	// DebugIndex selects the debug output probe written by the shaders; 0 disables it.
	DebugIndex uint32
}

func (s Settings) tickInterval() time.Duration {
	rate := s.TickRate
	if rate <= 0 {
		rate = 60
	}
	return time.Duration(float64(time.Second) / rate)
}

// minFrameTime is the shortest a frame may take under MaxFPS.
func (s Settings) minFrameTime() time.Duration {
	if s.MaxFPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / s.MaxFPS)
}
