// Package scriptpredicate lets is_ready, is_stale, and priority
// callbacks be expressed as JavaScript expression strings instead of
// Go closures, for callers wiring the coordinator from data (a config
// file, a CLI flag) rather than from code. It adapts the goja VM setup
// and RunString/.Export() evaluation idiom of
// _examples/wilke-GoWe/internal/cwlexpr/evaluator.go to this domain's
// variables (params, attempt, wait_time_seconds, queue_depth) instead
// of CWL's (inputs, self, runtime).
package scriptpredicate

import (
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/me/coordinate/internal/registry"
	"github.com/me/coordinate/pkg/model"
)

// A fresh *goja.Runtime is created per evaluation rather than shared,
// since goja.Runtime is not safe for concurrent use and the scheduler
// loop may evaluate predicates for many units back to back without
// any actual concurrency between them — the cost of a fresh VM is
// small next to a dispatch pass, and it avoids a mutex on every call.

// CompileReady parses expr once and returns a registry.ReadyFunc that
// evaluates it against each work unit. expr must be a JavaScript
// expression yielding a boolean, with `params` and `attempt` bound to
// the unit's fields.
func CompileReady(expr string) (registry.ReadyFunc, error) {
	if err := validate(expr); err != nil {
		return nil, err
	}
	return func(w model.WorkUnit) (bool, error) {
		return evalBool(expr, bindings(w, 0, 0))
	}, nil
}

// CompileStale is CompileReady's counterpart for the is_stale slot.
func CompileStale(expr string) (registry.StaleFunc, error) {
	if err := validate(expr); err != nil {
		return nil, err
	}
	return func(w model.WorkUnit) (bool, error) {
		return evalBool(expr, bindings(w, 0, 0))
	}, nil
}

// CompilePriority parses expr once and returns a registry.PriorityFunc.
// expr must yield a number; in addition to `params` and `attempt` it
// sees `wait_time_seconds` and `queue_depth`.
func CompilePriority(expr string) (registry.PriorityFunc, error) {
	if err := validate(expr); err != nil {
		return nil, err
	}
	return func(w model.WorkUnit, wait time.Duration, depth int) (float64, error) {
		return evalFloat(expr, bindings(w, wait, depth))
	}, nil
}

func validate(expr string) error {
	if expr == "" {
		return fmt.Errorf("scriptpredicate: empty expression")
	}
	vm := goja.New()
	if _, err := vm.RunString(fmt.Sprintf("(function() { return (%s); })", expr)); err != nil {
		return fmt.Errorf("scriptpredicate: %w", err)
	}
	return nil
}

func bindings(w model.WorkUnit, wait time.Duration, depth int) map[string]any {
	return map[string]any{
		"params":            w.Params,
		"attempt":           w.Attempt,
		"task":              w.Task,
		"wait_time_seconds": wait.Seconds(),
		"queue_depth":       depth,
	}
}

func newVM(vars map[string]any) (*goja.Runtime, error) {
	vm := goja.New()
	for k, v := range vars {
		if err := vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("scriptpredicate: set %s: %w", k, err)
		}
	}
	return vm, nil
}

func evalBool(expr string, vars map[string]any) (bool, error) {
	vm, err := newVM(vars)
	if err != nil {
		return false, err
	}
	val, err := vm.RunString(expr)
	if err != nil {
		return false, fmt.Errorf("scriptpredicate: %w", err)
	}
	b, ok := val.Export().(bool)
	if !ok {
		return false, fmt.Errorf("scriptpredicate: expression %q did not return a boolean", expr)
	}
	return b, nil
}

func evalFloat(expr string, vars map[string]any) (float64, error) {
	vm, err := newVM(vars)
	if err != nil {
		return 0, err
	}
	val, err := vm.RunString(expr)
	if err != nil {
		return 0, fmt.Errorf("scriptpredicate: %w", err)
	}
	switch n := val.Export().(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("scriptpredicate: expression %q did not return a number", expr)
	}
}
