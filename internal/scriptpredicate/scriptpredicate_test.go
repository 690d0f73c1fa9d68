package scriptpredicate

import (
	"testing"
	"time"

	"github.com/me/coordinate/pkg/model"
)

func TestCompileReady_EvaluatesParams(t *testing.T) {
	fn, err := CompileReady("params.ok === true")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	ready, err := fn(model.WorkUnit{Params: map[string]any{"ok": true}})
	if err != nil || !ready {
		t.Fatalf("ready = %v, err = %v, want true", ready, err)
	}

	ready, err = fn(model.WorkUnit{Params: map[string]any{"ok": false}})
	if err != nil || ready {
		t.Fatalf("ready = %v, err = %v, want false", ready, err)
	}
}

func TestCompileStale_UsesAttempt(t *testing.T) {
	fn, err := CompileStale("attempt < 3")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	stale, err := fn(model.WorkUnit{Attempt: 1})
	if err != nil || !stale {
		t.Fatalf("stale = %v, err = %v, want true", stale, err)
	}
	stale, err = fn(model.WorkUnit{Attempt: 5})
	if err != nil || stale {
		t.Fatalf("stale = %v, err = %v, want false", stale, err)
	}
}

func TestCompilePriority_UsesWaitAndDepth(t *testing.T) {
	fn, err := CompilePriority("wait_time_seconds / (queue_depth + 1)")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	p, err := fn(model.WorkUnit{}, 10*time.Second, 4)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if p != 2.0 {
		t.Fatalf("priority = %v, want 2.0", p)
	}
}

func TestCompile_RejectsSyntaxError(t *testing.T) {
	if _, err := CompileReady("params.ok ==="); err == nil {
		t.Fatal("expected compile error for invalid syntax")
	}
}

func TestCompileReady_WrongReturnTypeErrors(t *testing.T) {
	fn, err := CompileReady("1 + 1")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := fn(model.WorkUnit{}); err == nil {
		t.Fatal("expected error for non-boolean result")
	}
}
