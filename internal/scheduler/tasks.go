package scheduler

import (
	"sync"

	"github.com/me/coordinate/internal/dispatcher"
	"github.com/me/coordinate/pkg/model"
)

// taskEntry pairs a registered TaskType with the handler that runs it.
type taskEntry struct {
	Type    model.TaskType
	Handler dispatcher.Handler
}

// taskTable is the scheduler's read-mostly task registry. It satisfies
// admission.TaskLookup directly so the evaluator needs no adapter. Its
// own mutex (rather than relying on single-goroutine ownership like the
// rest of the loop's state) is what lets DebugBlocked's introspection
// path read it concurrently with the loop goroutine's registrations.
type taskTable struct {
	mu      sync.RWMutex
	entries map[string]taskEntry
}

func newTaskTable() *taskTable {
	return &taskTable{entries: make(map[string]taskEntry)}
}

func (t *taskTable) Lookup(name string) (model.TaskType, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[name]
	return e.Type, ok
}

func (t *taskTable) handler(name string) (dispatcher.Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[name]
	return e.Handler, ok
}

// register adds tt, returning false if name is already registered with
// a materially different TaskType (spec §4.6: duplicate registration
// with identical params is idempotent, with different params is a
// config error left for the caller to report).
func (t *taskTable) register(tt model.TaskType, h dispatcher.Handler) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[tt.Name]; ok {
		return existing.Type == tt
	}
	t.entries[tt.Name] = taskEntry{Type: tt, Handler: h}
	return true
}
