// Package service implements the admission arithmetic of spec §4.1: a
// per-service concurrency counter and sliding-window rate limiter.
package service

import (
	"sync"
	"time"

	"github.com/me/coordinate/internal/rate"
	"github.com/me/coordinate/pkg/model"
)

// Service pairs a declared model.ServiceSpec with its live usage
// counters. Each Service owns its own mutex, so unrelated services
// never contend with each other for admission decisions.
type Service struct {
	Spec model.ServiceSpec

	mu     sync.Mutex
	active int
	window *rate.Window
}

func newService(spec model.ServiceSpec) *Service {
	return &Service{
		Spec:   spec,
		window: rate.NewWindow(spec.RateWindow),
	}
}

// CanAdmit reports whether a new dispatch is currently allowed: the
// active count is below Concurrent (0 = unbounded) and the windowed
// dispatch count is strictly below RateCount.
func (s *Service) CanAdmit(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Spec.Concurrent > 0 && s.active >= s.Spec.Concurrent {
		return false
	}
	if s.Spec.RateWindow > 0 && s.window.Count(now) >= s.Spec.RateCount {
		return false
	}
	return true
}

// Reserve records a dispatch: increments the active count and appends
// a timestamp to the rate window. Callers must have just confirmed
// CanAdmit; Reserve does not re-check it, since the scheduler loop is
// the sole writer and already holds the invariant.
func (s *Service) Reserve(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	s.window.Record(now)
}

// Release decrements the active count when a handler terminates
// (success, failure, or cancellation). It never touches the rate
// window; historical timestamps age out on their own.
func (s *Service) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active > 0 {
		s.active--
	}
}

// ActiveCount returns the current number of RUNNING work units bound
// to this service, for introspection.
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Table maps service names to their live Service state.
type Table struct {
	mu       sync.RWMutex
	services map[string]*Service
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{services: make(map[string]*Service)}
}

// Register adds a service under spec.Name. If a service by that name
// already exists with an identical spec, Register is a no-op that
// returns the existing Service (idempotent re-registration). If it
// exists with a different spec, it returns ok=false so the caller can
// raise CONFIG_ERROR.
func (t *Table) Register(spec model.ServiceSpec) (svc *Service, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, found := t.services[spec.Name]; found {
		if existing.Spec.Equal(spec) {
			return existing, true
		}
		return existing, false
	}

	svc = newService(spec)
	t.services[spec.Name] = svc
	return svc, true
}

// Get returns the Service registered under name, if any.
func (t *Table) Get(name string) (*Service, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	svc, ok := t.services[name]
	return svc, ok
}

// List returns a snapshot of every registered service name.
func (t *Table) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.services))
	for name := range t.services {
		names = append(names, name)
	}
	return names
}
