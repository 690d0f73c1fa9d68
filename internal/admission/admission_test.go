package admission

import (
	"errors"
	"testing"
	"time"

	"github.com/me/coordinate/internal/registry"
	"github.com/me/coordinate/internal/service"
	"github.com/me/coordinate/pkg/model"
)

func setup(t *testing.T) (StaticTasks, *service.Table, *registry.Registry) {
	t.Helper()
	tasks := StaticTasks{"fetch": {Name: "fetch", ServiceName: "api", MaxAttempts: 3}}
	tbl := service.NewTable()
	tbl.Register(model.ServiceSpec{Name: "api", Concurrent: 1})
	return tasks, tbl, registry.New()
}

func TestEvaluate_UnknownTask(t *testing.T) {
	tasks, tbl, reg := setup(t)
	w := model.WorkUnit{ID: "w1", Task: "nope", State: model.WorkStatePending}
	d := Evaluate(w, tasks, tbl, reg, time.Now())
	if d.Outcome != OutcomeUnknownTask {
		t.Fatalf("outcome = %v, want OutcomeUnknownTask", d.Outcome)
	}
}

func TestEvaluate_NotReadyBlocks(t *testing.T) {
	tasks, tbl, reg := setup(t)
	reg.SetReady(func(model.WorkUnit) (bool, error) { return false, nil })

	w := model.WorkUnit{ID: "w1", Task: "fetch", State: model.WorkStatePending}
	d := Evaluate(w, tasks, tbl, reg, time.Now())
	if d.Outcome != OutcomeBlockedNotReady {
		t.Fatalf("outcome = %v, want OutcomeBlockedNotReady", d.Outcome)
	}
}

func TestEvaluate_StaleFalseSkips(t *testing.T) {
	tasks, tbl, reg := setup(t)
	reg.SetStale(func(model.WorkUnit) (bool, error) { return false, nil })

	w := model.WorkUnit{ID: "w1", Task: "fetch", State: model.WorkStatePending}
	d := Evaluate(w, tasks, tbl, reg, time.Now())
	if d.Outcome != OutcomeSkip {
		t.Fatalf("outcome = %v, want OutcomeSkip", d.Outcome)
	}
}

func TestEvaluate_ReadinessCheckedBeforeStaleness(t *testing.T) {
	tasks, tbl, reg := setup(t)
	var staleCalled bool
	reg.SetReady(func(model.WorkUnit) (bool, error) { return false, nil })
	reg.SetStale(func(model.WorkUnit) (bool, error) { staleCalled = true; return true, nil })

	w := model.WorkUnit{ID: "w1", Task: "fetch", State: model.WorkStatePending}
	Evaluate(w, tasks, tbl, reg, time.Now())
	if staleCalled {
		t.Fatal("is_stale must not run when is_ready blocks")
	}
}

func TestEvaluate_StalenessCheckedBeforeServiceCapacity(t *testing.T) {
	tasks, tbl, reg := setup(t)
	svc, _ := tbl.Get("api")
	svc.Reserve(time.Now())

	var capacityConsulted bool
	reg.SetStale(func(model.WorkUnit) (bool, error) { return false, nil })
	// wrap Get indirectly: if staleness short-circuits first, CanAdmit
	// on the already-saturated service is never reached, so the
	// outcome must be Skip rather than BlockedService.
	_ = capacityConsulted

	w := model.WorkUnit{ID: "w1", Task: "fetch", State: model.WorkStatePending}
	d := Evaluate(w, tasks, tbl, reg, time.Now())
	if d.Outcome != OutcomeSkip {
		t.Fatalf("outcome = %v, want OutcomeSkip (staleness must precede capacity)", d.Outcome)
	}
}

func TestEvaluate_ServiceAtCapacityBlocks(t *testing.T) {
	tasks, tbl, reg := setup(t)
	svc, _ := tbl.Get("api")
	svc.Reserve(time.Now())

	w := model.WorkUnit{ID: "w1", Task: "fetch", State: model.WorkStatePending}
	d := Evaluate(w, tasks, tbl, reg, time.Now())
	if d.Outcome != OutcomeBlockedService {
		t.Fatalf("outcome = %v, want OutcomeBlockedService", d.Outcome)
	}
}

func TestEvaluate_DispatchWhenClear(t *testing.T) {
	tasks, tbl, reg := setup(t)
	w := model.WorkUnit{ID: "w1", Task: "fetch", State: model.WorkStatePending}
	d := Evaluate(w, tasks, tbl, reg, time.Now())
	if d.Outcome != OutcomeDispatch {
		t.Fatalf("outcome = %v, want OutcomeDispatch", d.Outcome)
	}
	if d.Service == nil || d.Task.Name != "fetch" {
		t.Fatalf("decision missing task/service: %+v", d)
	}
}

func TestEvaluate_StaleErrorFailsOpen(t *testing.T) {
	tasks, tbl, reg := setup(t)
	reg.SetStale(func(model.WorkUnit) (bool, error) { return false, errors.New("boom") })

	w := model.WorkUnit{ID: "w1", Task: "fetch", State: model.WorkStatePending}
	d := Evaluate(w, tasks, tbl, reg, time.Now())
	if d.Outcome != OutcomeDispatch {
		t.Fatalf("outcome = %v, want OutcomeDispatch (an erroring is_stale must fail open and run)", d.Outcome)
	}
}

func TestEvaluate_ReadyErrorBlocks(t *testing.T) {
	tasks, tbl, reg := setup(t)
	reg.SetReady(func(model.WorkUnit) (bool, error) { return false, errors.New("boom") })

	w := model.WorkUnit{ID: "w1", Task: "fetch", State: model.WorkStatePending}
	d := Evaluate(w, tasks, tbl, reg, time.Now())
	if d.Outcome != OutcomeBlockedNotReady || d.Err == nil {
		t.Fatalf("outcome = %v err=%v, want BlockedNotReady with error", d.Outcome, d.Err)
	}
}
