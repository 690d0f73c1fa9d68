// Package admission implements the coordinator's admission evaluator:
// the pure decision function the scheduler loop applies to each
// pending unit on every tick, per spec §4.3. The order is fixed —
// readiness, then staleness, then service capacity — because each
// step can short-circuit the ones after it and the spec is explicit
// that a unit must never be counted against a service's rate window
// before it is known to be ready and non-stale.
package admission

import (
	"time"

	"github.com/me/coordinate/internal/registry"
	"github.com/me/coordinate/internal/service"
	"github.com/me/coordinate/pkg/model"
)

// Outcome is the result of evaluating one pending unit.
type Outcome int

const (
	// OutcomeUnknownTask means w.Task names no registered TaskType, or
	// its TaskType names a service that is not registered.
	OutcomeUnknownTask Outcome = iota
	// OutcomeBlockedNotReady means is_ready returned false (or errored).
	OutcomeBlockedNotReady
	// OutcomeSkip means is_stale returned false: the work is already done.
	OutcomeSkip
	// OutcomeBlockedService means the task's service is at capacity.
	OutcomeBlockedService
	// OutcomeDispatch means the unit is ready to run now.
	OutcomeDispatch
)

// Decision carries the outcome plus whatever the evaluator needed to
// compute it.
type Decision struct {
	Outcome Outcome
	Task    model.TaskType
	Service *service.Service
	Err     error
}

// Evaluate applies the readiness -> staleness -> capacity pipeline to
// w. tasks looks up w.Task; reg supplies the optional is_ready/is_stale
// predicates. now is passed in rather than read from the wall clock so
// scheduler ticks are deterministic to test.
func Evaluate(w model.WorkUnit, tasks TaskLookup, services *service.Table, reg *registry.Registry, now time.Time) Decision {
	task, ok := tasks.Lookup(w.Task)
	if !ok {
		return Decision{Outcome: OutcomeUnknownTask}
	}

	if fn := reg.Ready(); fn != nil {
		ready, err := fn(w)
		if err != nil || !ready {
			return Decision{Outcome: OutcomeBlockedNotReady, Task: task, Err: err}
		}
	}

	if fn := reg.Stale(); fn != nil {
		stale, err := fn(w)
		// A raising is_stale is treated as stale (i.e. run): staleness
		// failures are fail-open so work doesn't silently not run.
		if err == nil && !stale {
			return Decision{Outcome: OutcomeSkip, Task: task}
		}
	}

	svc, ok := services.Get(task.ServiceName)
	if !ok {
		return Decision{Outcome: OutcomeUnknownTask, Task: task}
	}
	if !svc.CanAdmit(now) {
		return Decision{Outcome: OutcomeBlockedService, Task: task, Service: svc}
	}

	return Decision{Outcome: OutcomeDispatch, Task: task, Service: svc}
}

// TaskLookup resolves a task name to its TaskType. It is satisfied by
// the coordinator's task table; kept as a narrow interface so this
// package does not need to depend on wherever that table lives.
type TaskLookup interface {
	Lookup(name string) (model.TaskType, bool)
}

// StaticTasks is the simplest TaskLookup: a fixed map, used by tests
// and by the coordinator's own read-mostly task registration table.
type StaticTasks map[string]model.TaskType

func (t StaticTasks) Lookup(name string) (model.TaskType, bool) {
	tt, ok := t[name]
	return tt, ok
}
