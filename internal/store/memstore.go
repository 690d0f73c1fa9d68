package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/me/coordinate/pkg/model"
)

// bag identifies which of the three disjoint membership sets a work
// unit currently belongs to.
type bag int

const (
	bagPending bag = iota
	bagActive
	bagTerminal
)

// MemStore is the in-memory Store implementation. It is the only
// implementation the scheduler loop actually uses; the coordinator
// keeps no state across restarts, per spec §1. One mutex guards both
// the unit map and the bag-membership sets, in the same spirit as
// _examples/gogazub-task-service/internal/core/memstore.go's
// single-lock status map, generalized to full records and three bags.
type MemStore struct {
	mu    sync.RWMutex
	units map[string]*model.WorkUnit
	bags  map[string]bag

	lastProgress time.Time
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		units:        make(map[string]*model.WorkUnit),
		bags:         make(map[string]bag),
		lastProgress: time.Now(),
	}
}

func (s *MemStore) Insert(w *model.WorkUnit) error {
	if w.State != model.WorkStatePending {
		return fmt.Errorf("store: insert requires PENDING state, got %s", w.State)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.units[w.ID]; exists {
		return fmt.Errorf("store: id %s already exists", w.ID)
	}
	s.units[w.ID] = w
	s.bags[w.ID] = bagPending
	return nil
}

func (s *MemStore) Get(id string) (model.WorkUnit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.units[id]
	if !ok {
		return model.WorkUnit{}, false
	}
	return w.Clone(), true
}

func (s *MemStore) List(filter model.ListFilter) []model.WorkUnit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.WorkUnit, 0, len(s.units))
	for _, w := range s.units {
		if !filter.Match(w) {
			continue
		}
		out = append(out, w.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

func (s *MemStore) PendingSnapshot() []model.WorkUnit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.WorkUnit, 0)
	for id, b := range s.bags {
		if b != bagPending {
			continue
		}
		out = append(out, s.units[id].Clone())
	}
	return out
}

func (s *MemStore) MoveToActive(id string, now time.Time) (model.WorkUnit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.units[id]
	if !ok || s.bags[id] != bagPending {
		return model.WorkUnit{}, false
	}

	w.State = model.WorkStateRunning
	w.StartedAt = ptrTime(now)
	w.Attempt++
	s.bags[id] = bagActive
	return w.Clone(), true
}

func (s *MemStore) MoveToTerminal(id string, state model.WorkState, result any, errMsg string, now time.Time) (model.WorkUnit, bool) {
	if !state.IsTerminal() {
		return model.WorkUnit{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.units[id]
	if !ok {
		return model.WorkUnit{}, false
	}
	if s.bags[id] == bagTerminal {
		return w.Clone(), false
	}

	w.State = state
	w.CompletedAt = ptrTime(now)
	w.Result = result
	w.Err = errMsg
	s.bags[id] = bagTerminal
	s.lastProgress = now
	return w.Clone(), true
}

func (s *MemStore) ReturnToPending(id string, notBefore time.Time) (model.WorkUnit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.units[id]
	if !ok || s.bags[id] != bagActive {
		return model.WorkUnit{}, false
	}

	w.State = model.WorkStatePending
	w.StartedAt = nil
	w.NotBeforeAt = notBefore
	s.bags[id] = bagPending
	return w.Clone(), true
}

func (s *MemStore) Cancel(id string, now time.Time) (model.WorkState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.units[id]
	if !ok {
		return "", false
	}

	switch s.bags[id] {
	case bagPending:
		w.State = model.WorkStateCancelled
		w.CompletedAt = ptrTime(now)
		s.bags[id] = bagTerminal
		s.lastProgress = now
		return model.WorkStateCancelled, true
	case bagActive:
		w.RequestCancel()
		return model.WorkStateRunning, true
	default:
		return w.State, true
	}
}

func (s *MemStore) TakeCancelIntent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.units[id]
	if !ok {
		return false
	}
	// The unit leaves the active bag for good right after this call,
	// so there is no second read to worry about resetting the flag for.
	return w.CancelRequested()
}

func (s *MemStore) MarkPendingWarned(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.units[id]
	if !ok {
		return false
	}
	already := w.MarkedPendingWarned()
	if !already {
		w.MarkPendingWarned()
	}
	return already
}

func (s *MemStore) LastProgress() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastProgress
}

func (s *MemStore) TouchProgress(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProgress = now
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
