package engine

import (
	"context"
	"fmt"
	"time"
)

// tickLoop calls the tick callback at the tick rate until ctx is done or Quit is called.
func (e *engine) tickLoop(ctx context.Context) error {
	interval := e.Settings().tickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.quit:
			return nil
		case now := <-ticker.C:
			e.mu.RLock()
			fn, next := e.onTick, e.settings.tickInterval()
			e.mu.RUnlock()
			if next != interval {
				interval = next
				ticker.Reset(interval)
			}
			if fn != nil {
				fn(now.Sub(last))
			}
			last = now
		}
	}
}

// renderLoop renders frames back to back, paced by MaxFPS. A panic in a pass ends the
// loop with an error rather than the process.
func (e *engine) renderLoop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render loop recovered from panic", "panic", r)
			err = fmt.Errorf("render loop panic: %v", r)
		}
	}()

	var info FrameInfo
	last := time.Now()
	for !e.stopped(ctx) {
		begin := time.Now()
		info.Delta, last = begin.Sub(last), begin

		n, err := e.renderFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		info.Index++
		info.Scenes = n

		e.mu.RLock()
		fn, s := e.onFrame, e.settings
		e.mu.RUnlock()
		if fn != nil {
			fn(info)
		}
		if s.Profiling {
			e.profiler.Tick()
		}
		if s.FrameLimit > 0 && info.Index >= s.FrameLimit {
			e.logger.Debug("frame limit reached", "frames", info.Index)
			return nil
		}
		if !sleep(ctx, s.minFrameTime()-time.Since(begin)) {
			return nil
		}
	}
	return nil
}

func (e *engine) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-e.quit:
		return true
	default:
		return false
	}
}

// sleep waits for d and reports false when ctx ended the wait first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
