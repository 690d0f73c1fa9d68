package rate

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		expr      string
		wantCount int
		wantSpan  time.Duration
		wantErr   bool
	}{
		{"60/min", 60, time.Minute, false},
		{"1000/hour", 1000, time.Hour, false},
		{"10/sec", 10, time.Second, false},
		{"3/60", 3, 60 * time.Second, false},
		{"0/sec", 0, time.Second, false},
		{"bad", 0, 0, true},
		{"5/fortnight", 0, 0, true},
		{"-1/sec", 0, 0, true},
		{"5/0", 0, 0, true},
	}
	for _, tt := range tests {
		n, w, err := Parse(tt.expr)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error, got nil", tt.expr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", tt.expr, err)
		}
		if n != tt.wantCount || w != tt.wantSpan {
			t.Errorf("Parse(%q) = (%d, %v), want (%d, %v)", tt.expr, n, w, tt.wantCount, tt.wantSpan)
		}
	}
}
