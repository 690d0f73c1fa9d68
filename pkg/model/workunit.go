package model

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates an opaque work-unit identifier with well over 96 bits
// of entropy, per spec §4.2.
func NewID() string {
	return "w_" + uuid.New().String()
}

// WorkUnit is the authoritative record for a single submitted piece of
// work. The coordinator exclusively owns this record; Params is
// treated as read-only client data passed through verbatim.
type WorkUnit struct {
	ID     string
	Task   string
	Params map[string]any

	State WorkState

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Result any
	Err    string

	Attempt int

	// NotBeforeAt gates re-dispatch after a retry respin; the zero
	// value means "eligible immediately."
	NotBeforeAt time.Time

	// cancelRequested records a cancel() call that arrived while this
	// unit was RUNNING; it is consulted by the dispatcher's completion
	// handling in the scheduler loop and never read anywhere else.
	cancelRequested bool

	// warnedPending records whether the pending-timeout
	// on_stall_warning has already fired once for this unit, so
	// repeated ticks don't re-fire it.
	warnedPending bool
}

// RequestCancel marks this unit's running instance for cancellation on
// completion. It does not check the unit's state; the store is
// responsible for only calling this on RUNNING units.
func (w *WorkUnit) RequestCancel() {
	w.cancelRequested = true
}

// CancelRequested reports whether RequestCancel was called for this
// unit's current run.
func (w *WorkUnit) CancelRequested() bool {
	return w.cancelRequested
}

// MarkedPendingWarned reports whether the pending-timeout warning has
// already fired for this unit.
func (w *WorkUnit) MarkedPendingWarned() bool {
	return w.warnedPending
}

// MarkPendingWarned flags the pending-timeout warning as fired.
func (w *WorkUnit) MarkPendingWarned() {
	w.warnedPending = true
}

// Clone returns a snapshot safe to hand to a reader outside the store's
// lock (handlers and callbacks receive WorkUnit by value, never a
// pointer into the store).
func (w *WorkUnit) Clone() WorkUnit {
	cp := *w
	if w.Params != nil {
		cp.Params = make(map[string]any, len(w.Params))
		for k, v := range w.Params {
			cp.Params[k] = v
		}
	}
	if w.StartedAt != nil {
		t := *w.StartedAt
		cp.StartedAt = &t
	}
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}
