package rate

import (
	"testing"
	"time"
)

func TestWindow_CountEvicts(t *testing.T) {
	win := NewWindow(time.Second)
	base := time.Now()

	win.Record(base)
	win.Record(base.Add(200 * time.Millisecond))
	win.Record(base.Add(400 * time.Millisecond))

	if got := win.Count(base.Add(500 * time.Millisecond)); got != 3 {
		t.Fatalf("Count = %d, want 3", got)
	}

	// The first timestamp ages out after base+1s.
	if got := win.Count(base.Add(1100 * time.Millisecond)); got != 2 {
		t.Fatalf("Count after eviction = %d, want 2", got)
	}
}

func TestWindow_ZeroSpanUnbounded(t *testing.T) {
	win := NewWindow(0)
	now := time.Now()
	win.Record(now)
	win.Record(now)
	if got := win.Count(now); got != 0 {
		t.Fatalf("Count on zero-span window = %d, want 0 (no rate check)", got)
	}
}
