// Package store implements the coordinator's work store: the
// in-process mapping from work id to its authoritative WorkUnit
// record, plus pending/active/terminal bag membership, per spec §4.2.
package store

import (
	"time"

	"github.com/me/coordinate/pkg/model"
)

// Store is the persistence layer the scheduler loop consumes. The
// coordinator is stateless across restarts (spec §1); the only
// implementation shipped is an in-memory one, but the interface keeps
// the scheduler decoupled from that choice the way the teacher's
// Store interface decouples its loop from SQLite.
type Store interface {
	// Insert adds a freshly submitted unit. w.State must be PENDING.
	Insert(w *model.WorkUnit) error

	// Get returns a snapshot of the unit with the given id.
	Get(id string) (model.WorkUnit, bool)

	// List returns snapshots of every unit matching filter.
	List(filter model.ListFilter) []model.WorkUnit

	// PendingSnapshot returns snapshots of every currently pending
	// unit, for the scheduler loop to sort and evaluate.
	PendingSnapshot() []model.WorkUnit

	// MoveToActive transitions id from PENDING to RUNNING, setting
	// StartedAt and incrementing Attempt. It returns false if id is not
	// currently pending.
	MoveToActive(id string, now time.Time) (model.WorkUnit, bool)

	// MoveToTerminal transitions id to a terminal state (COMPLETED,
	// FAILED, or CANCELLED), setting CompletedAt, Result, and Err as
	// given. It also touches the coordinator-wide progress clock used
	// by the stall-timeout policy.
	MoveToTerminal(id string, state model.WorkState, result any, errMsg string, now time.Time) (model.WorkUnit, bool)

	// ReturnToPending moves a RUNNING unit back to PENDING for a retry
	// respin, clearing StartedAt and setting NotBeforeAt.
	ReturnToPending(id string, notBefore time.Time) (model.WorkUnit, bool)

	// Cancel implements spec §4.2's three-way branch: PENDING units
	// transition to CANCELLED immediately; RUNNING units are flagged
	// for cancellation on completion; terminal units are untouched. It
	// returns the unit's state immediately after the call.
	Cancel(id string, now time.Time) (model.WorkState, bool)

	// TakeCancelIntent reports whether id was flagged for cancellation
	// while RUNNING, for the dispatcher's completion path to consult
	// once. It does not reset the flag.
	TakeCancelIntent(id string) bool

	// MarkPendingWarned flags that the pending-timeout warning has
	// fired for id, so it fires at most once.
	MarkPendingWarned(id string) bool

	// LastProgress returns the wall time of the most recent terminal
	// transition across the whole store, or the store's creation time
	// if none has occurred yet. Backs the stall-timeout policy.
	LastProgress() time.Time

	// TouchProgress resets the progress clock to now, without any
	// terminal transition having occurred. The scheduler loop calls
	// this once at Start so a coordinator with no completions yet
	// measures stall time from when it started, not from the zero
	// value or from process creation.
	TouchProgress(now time.Time)
}
