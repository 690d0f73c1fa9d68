// Package registry holds the coordinator's single optional
// is_ready/is_stale/priority predicates and the event sinks
// (on_start, on_complete, on_failure, on_skip, on_stall_warning), per
// spec §4.6 and §9's "callback registration is exclusive" design note.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/me/coordinate/pkg/model"
)

// ReadyFunc answers "are this unit's inputs valid right now?"
type ReadyFunc func(w model.WorkUnit) (bool, error)

// StaleFunc answers "does this unit's output still need to be produced?"
type StaleFunc func(w model.WorkUnit) (bool, error)

// PriorityFunc computes a dispatch priority in [0,1]; higher dispatches
// first. waitTime is now-CreatedAt; queueDepth is the size of the
// pending snapshot being ordered.
type PriorityFunc func(w model.WorkUnit, waitTime time.Duration, queueDepth int) (float64, error)

// StartFunc, CompleteFunc, FailureFunc, SkipFunc, and StallFunc are the
// event-sink signatures of spec §6.
type StartFunc func(w model.WorkUnit)
type CompleteFunc func(w model.WorkUnit, result any, duration time.Duration)
type FailureFunc func(w model.WorkUnit, err error)
type SkipFunc func(w model.WorkUnit)
type StallFunc func(secondsSinceProgress float64, pendingCount int)

// Registry holds the exclusive predicate slots and the event-sink
// subscriber lists. Predicates are exclusive per spec §4.6 ("replacing
// an existing one is an error"); event sinks are not — nothing in the
// spec restricts a coordinator to one metrics sink and one log sink,
// so those are fan-out slices instead.
type Registry struct {
	mu sync.RWMutex

	ready    ReadyFunc
	stale    StaleFunc
	priority PriorityFunc

	onStart        []StartFunc
	onComplete     []CompleteFunc
	onFailure      []FailureFunc
	onSkip         []SkipFunc
	onStallWarning []StallFunc

	logger *slog.Logger
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{logger: slog.Default()}
}

// SetReady registers the is_ready predicate. It returns CONFIG_ERROR if
// one is already registered.
func (r *Registry) SetReady(fn ReadyFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready != nil {
		return model.NewConfigError("is_ready callback already registered")
	}
	r.ready = fn
	return nil
}

// SetStale registers the is_stale predicate. It returns CONFIG_ERROR if
// one is already registered.
func (r *Registry) SetStale(fn StaleFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stale != nil {
		return model.NewConfigError("is_stale callback already registered")
	}
	r.stale = fn
	return nil
}

// SetPriority registers the priority predicate. It returns CONFIG_ERROR
// if one is already registered.
func (r *Registry) SetPriority(fn PriorityFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.priority != nil {
		return model.NewConfigError("priority callback already registered")
	}
	r.priority = fn
	return nil
}

// Ready returns the registered is_ready predicate, or nil if none.
func (r *Registry) Ready() ReadyFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// Stale returns the registered is_stale predicate, or nil if none.
func (r *Registry) Stale() StaleFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stale
}

// Priority returns the registered priority predicate, or nil if none.
func (r *Registry) Priority() PriorityFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.priority
}

// SetLogger overrides the logger used to report a subscriber panic.
// Never call this after Start; it is not synchronized against the
// Fire* methods.
func (r *Registry) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// OnStart adds a subscriber to the on_start event.
func (r *Registry) OnStart(fn StartFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStart = append(r.onStart, fn)
}

// OnComplete adds a subscriber to the on_complete event.
func (r *Registry) OnComplete(fn CompleteFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onComplete = append(r.onComplete, fn)
}

// OnFailure adds a subscriber to the on_failure event.
func (r *Registry) OnFailure(fn FailureFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFailure = append(r.onFailure, fn)
}

// OnSkip adds a subscriber to the on_skip event.
func (r *Registry) OnSkip(fn SkipFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSkip = append(r.onSkip, fn)
}

// OnStallWarning adds a subscriber to the on_stall_warning event.
func (r *Registry) OnStallWarning(fn StallFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStallWarning = append(r.onStallWarning, fn)
}

// guardFire recovers a panicking subscriber so it cannot take down the
// caller (the single scheduler goroutine). Per spec §7, a panic or
// error from an event callback must never alter scheduling.
func guardFire(logger *slog.Logger, event string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("event subscriber panicked", "event", event, "panic", p)
		}
	}()
	fn()
}

// FireStart invokes every on_start subscriber. Per spec §7, a panic or
// error from an event callback must never alter scheduling; each
// subscriber call is individually recovered so one bad subscriber
// cannot break the others or the loop itself.
func (r *Registry) FireStart(w model.WorkUnit) {
	r.mu.RLock()
	subs := append([]StartFunc(nil), r.onStart...)
	r.mu.RUnlock()
	for _, fn := range subs {
		guardFire(r.logger, "on_start", func() { fn(w) })
	}
}

func (r *Registry) FireComplete(w model.WorkUnit, result any, d time.Duration) {
	r.mu.RLock()
	subs := append([]CompleteFunc(nil), r.onComplete...)
	r.mu.RUnlock()
	for _, fn := range subs {
		guardFire(r.logger, "on_complete", func() { fn(w, result, d) })
	}
}

func (r *Registry) FireFailure(w model.WorkUnit, err error) {
	r.mu.RLock()
	subs := append([]FailureFunc(nil), r.onFailure...)
	r.mu.RUnlock()
	for _, fn := range subs {
		guardFire(r.logger, "on_failure", func() { fn(w, err) })
	}
}

func (r *Registry) FireSkip(w model.WorkUnit) {
	r.mu.RLock()
	subs := append([]SkipFunc(nil), r.onSkip...)
	r.mu.RUnlock()
	for _, fn := range subs {
		guardFire(r.logger, "on_skip", func() { fn(w) })
	}
}

func (r *Registry) FireStallWarning(secondsSinceProgress float64, pendingCount int) {
	r.mu.RLock()
	subs := append([]StallFunc(nil), r.onStallWarning...)
	r.mu.RUnlock()
	for _, fn := range subs {
		guardFire(r.logger, "on_stall_warning", func() { fn(secondsSinceProgress, pendingCount) })
	}
}
