package service

import (
	"testing"
	"time"

	"github.com/me/coordinate/pkg/model"
)

func TestService_ConcurrencyLimit(t *testing.T) {
	tbl := NewTable()
	svc, ok := tbl.Register(model.ServiceSpec{Name: "api", Concurrent: 2})
	if !ok {
		t.Fatal("Register failed")
	}

	now := time.Now()
	if !svc.CanAdmit(now) {
		t.Fatal("expected admit with 0 active")
	}
	svc.Reserve(now)
	svc.Reserve(now)

	if svc.CanAdmit(now) {
		t.Fatal("expected block at concurrency limit")
	}

	svc.Release()
	if !svc.CanAdmit(now) {
		t.Fatal("expected admit after release")
	}
}

func TestService_RateLimit(t *testing.T) {
	tbl := NewTable()
	svc, _ := tbl.Register(model.ServiceSpec{Name: "api", RateCount: 3, RateWindow: time.Second})

	base := time.Now()
	for i := 0; i < 3; i++ {
		if !svc.CanAdmit(base) {
			t.Fatalf("dispatch %d should be admitted", i)
		}
		svc.Reserve(base)
	}
	if svc.CanAdmit(base) {
		t.Fatal("4th dispatch within window should be blocked")
	}
	if !svc.CanAdmit(base.Add(1100 * time.Millisecond)) {
		t.Fatal("dispatch after window elapses should be admitted")
	}
}

func TestTable_RegisterDuplicateMismatch(t *testing.T) {
	tbl := NewTable()
	tbl.Register(model.ServiceSpec{Name: "api", Concurrent: 2})

	_, ok := tbl.Register(model.ServiceSpec{Name: "api", Concurrent: 5})
	if ok {
		t.Fatal("expected mismatch registration to fail")
	}

	_, ok = tbl.Register(model.ServiceSpec{Name: "api", Concurrent: 2})
	if !ok {
		t.Fatal("expected identical re-registration to succeed idempotently")
	}
}

func TestService_UnboundedConcurrency(t *testing.T) {
	tbl := NewTable()
	svc, _ := tbl.Register(model.ServiceSpec{Name: "unbounded"})
	now := time.Now()
	for i := 0; i < 1000; i++ {
		if !svc.CanAdmit(now) {
			t.Fatalf("unbounded service blocked at %d", i)
		}
		svc.Reserve(now)
	}
}
