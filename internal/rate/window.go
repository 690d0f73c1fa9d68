package rate

import (
	"sync"
	"time"
)

// Window tracks dispatch timestamps for a sliding-window rate limit.
// Timestamps are stored oldest-first; Count evicts anything that has
// aged out of the window before reporting how many remain, per spec
// §4.1's "windowed count is computed lazily."
type Window struct {
	mu         sync.Mutex
	span       time.Duration
	timestamps []time.Time
}

// NewWindow creates a Window covering the given span. A zero span
// means no rate limiting is configured; Count always returns 0 and
// Record is a no-op, so callers don't need a separate "no limit" branch.
func NewWindow(span time.Duration) *Window {
	return &Window{span: span}
}

// Count evicts timestamps older than now-span and returns how many
// remain, i.e. how many dispatches have occurred in (now-span, now].
func (win *Window) Count(now time.Time) int {
	if win.span <= 0 {
		return 0
	}
	win.mu.Lock()
	defer win.mu.Unlock()
	win.evict(now)
	return len(win.timestamps)
}

// Record appends a dispatch timestamp. Callers must have already
// confirmed admission via Count before calling Record.
func (win *Window) Record(now time.Time) {
	if win.span <= 0 {
		return
	}
	win.mu.Lock()
	defer win.mu.Unlock()
	win.timestamps = append(win.timestamps, now)
}

// evict drops every timestamp at or before now-span from the front of
// the slice. Timestamps are appended in non-decreasing order by
// construction (Reserve always records "now"), so a linear scan from
// the front suffices.
func (win *Window) evict(now time.Time) {
	cutoff := now.Add(-win.span)
	i := 0
	for i < len(win.timestamps) && !win.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		win.timestamps = win.timestamps[i:]
	}
}
