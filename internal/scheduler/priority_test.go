package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/me/coordinate/internal/registry"
	"github.com/me/coordinate/pkg/model"
)

func TestSortPending_FIFOWithoutPriorityFunc(t *testing.T) {
	now := time.Now()
	units := []model.WorkUnit{
		{ID: "new", CreatedAt: now},
		{ID: "old", CreatedAt: now.Add(-time.Minute)},
		{ID: "mid", CreatedAt: now.Add(-30 * time.Second)},
	}
	out := sortPending(units, now, registry.New())
	if out[0].ID != "old" || out[1].ID != "mid" || out[2].ID != "new" {
		t.Fatalf("order = %v %v %v, want old mid new", out[0].ID, out[1].ID, out[2].ID)
	}
}

func TestSortPending_HigherPriorityFirst(t *testing.T) {
	reg := registry.New()
	reg.SetPriority(func(w model.WorkUnit, wait time.Duration, depth int) (float64, error) {
		if w.ID == "urgent" {
			return 1.0, nil
		}
		return 0.0, nil
	})

	now := time.Now()
	units := []model.WorkUnit{
		{ID: "normal", CreatedAt: now.Add(-time.Minute)},
		{ID: "urgent", CreatedAt: now},
	}
	out := sortPending(units, now, reg)
	if out[0].ID != "urgent" {
		t.Fatalf("first = %s, want urgent despite being newer", out[0].ID)
	}
}

func TestSortPending_TiesBrokenByAge(t *testing.T) {
	reg := registry.New()
	reg.SetPriority(func(model.WorkUnit, time.Duration, int) (float64, error) { return 0.5, nil })

	now := time.Now()
	units := []model.WorkUnit{
		{ID: "b", CreatedAt: now.Add(-time.Second)},
		{ID: "a", CreatedAt: now.Add(-time.Minute)},
	}
	out := sortPending(units, now, reg)
	if out[0].ID != "a" {
		t.Fatalf("first = %s, want oldest unit a on a priority tie", out[0].ID)
	}
}

func TestSortPending_ErroringCallbackDefaultsToNeutralMiddle(t *testing.T) {
	reg := registry.New()
	reg.SetPriority(func(w model.WorkUnit, wait time.Duration, depth int) (float64, error) {
		if w.ID == "errors" {
			return 0, errors.New("boom")
		}
		return 0.4, nil
	})

	now := time.Now()
	units := []model.WorkUnit{
		{ID: "low", CreatedAt: now.Add(-time.Minute)},
		{ID: "errors", CreatedAt: now},
	}
	out := sortPending(units, now, reg)
	if out[0].ID != "errors" {
		t.Fatalf("first = %s, want errors (defaults to 0.5, above low's 0.4)", out[0].ID)
	}
}
