package store

import (
	"testing"
	"time"

	"github.com/me/coordinate/pkg/model"
)

func newPending(id string) *model.WorkUnit {
	return &model.WorkUnit{ID: id, Task: "t", State: model.WorkStatePending, CreatedAt: time.Now()}
}

func TestMemStore_InsertGet(t *testing.T) {
	s := NewMemStore()
	w := newPending("w1")
	if err := s.Insert(w); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok := s.Get("w1")
	if !ok {
		t.Fatal("Get: not found")
	}
	if got.State != model.WorkStatePending {
		t.Fatalf("state = %s, want PENDING", got.State)
	}
}

func TestMemStore_InsertRejectsNonPending(t *testing.T) {
	s := NewMemStore()
	w := newPending("w1")
	w.State = model.WorkStateRunning
	if err := s.Insert(w); err == nil {
		t.Fatal("expected error inserting non-pending unit")
	}
}

func TestMemStore_LifecycleDispatchComplete(t *testing.T) {
	s := NewMemStore()
	s.Insert(newPending("w1"))

	now := time.Now()
	active, ok := s.MoveToActive("w1", now)
	if !ok || active.State != model.WorkStateRunning || active.Attempt != 1 {
		t.Fatalf("MoveToActive = %+v, ok=%v", active, ok)
	}

	// pending snapshot should now be empty.
	if len(s.PendingSnapshot()) != 0 {
		t.Fatal("expected empty pending snapshot after dispatch")
	}

	done, ok := s.MoveToTerminal("w1", model.WorkStateCompleted, "result", "", now.Add(time.Millisecond))
	if !ok || done.State != model.WorkStateCompleted || done.Result != "result" {
		t.Fatalf("MoveToTerminal = %+v, ok=%v", done, ok)
	}

	// second terminal transition is rejected.
	if _, ok := s.MoveToTerminal("w1", model.WorkStateFailed, nil, "boom", now); ok {
		t.Fatal("expected terminal state to be immutable")
	}
}

func TestMemStore_CancelPendingImmediate(t *testing.T) {
	s := NewMemStore()
	s.Insert(newPending("w1"))

	state, ok := s.Cancel("w1", time.Now())
	if !ok || state != model.WorkStateCancelled {
		t.Fatalf("Cancel = %s, ok=%v", state, ok)
	}

	got, _ := s.Get("w1")
	if got.State != model.WorkStateCancelled {
		t.Fatalf("state after cancel = %s, want CANCELLED", got.State)
	}
}

func TestMemStore_CancelRunningRecordsIntent(t *testing.T) {
	s := NewMemStore()
	s.Insert(newPending("w1"))
	s.MoveToActive("w1", time.Now())

	state, ok := s.Cancel("w1", time.Now())
	if !ok || state != model.WorkStateRunning {
		t.Fatalf("Cancel on running unit = %s, ok=%v, want RUNNING (intent recorded, not yet terminal)", state, ok)
	}

	if !s.TakeCancelIntent("w1") {
		t.Fatal("expected cancel intent to be recorded")
	}
}

func TestMemStore_CancelTerminalNoop(t *testing.T) {
	s := NewMemStore()
	s.Insert(newPending("w1"))
	s.MoveToTerminal("w1", model.WorkStateCompleted, nil, "", time.Now())

	state, ok := s.Cancel("w1", time.Now())
	if !ok || state != model.WorkStateCompleted {
		t.Fatalf("Cancel on terminal unit = %s, ok=%v, want COMPLETED no-op", state, ok)
	}
}

func TestMemStore_ReturnToPendingForRetry(t *testing.T) {
	s := NewMemStore()
	s.Insert(newPending("w1"))
	s.MoveToActive("w1", time.Now())

	notBefore := time.Now().Add(time.Second)
	w, ok := s.ReturnToPending("w1", notBefore)
	if !ok || w.State != model.WorkStatePending || w.StartedAt != nil || !w.NotBeforeAt.Equal(notBefore) {
		t.Fatalf("ReturnToPending = %+v, ok=%v", w, ok)
	}

	if len(s.PendingSnapshot()) != 1 {
		t.Fatal("expected unit back in pending bag")
	}
}

func TestMemStore_ListFilter(t *testing.T) {
	s := NewMemStore()
	s.Insert(newPending("w1"))
	s.Insert(newPending("w2"))
	s.MoveToTerminal("w1", model.WorkStateCompleted, nil, "", time.Now())

	completed := s.List(model.ListFilter{State: model.WorkStateCompleted})
	if len(completed) != 1 || completed[0].ID != "w1" {
		t.Fatalf("List(COMPLETED) = %+v", completed)
	}
}
