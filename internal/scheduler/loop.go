// Package scheduler runs the coordinator's single-threaded dispatch
// loop, per spec §4.4. Every mutation the loop makes to shared state
// happens on one goroutine reached only through its mailbox channels,
// the same ownership discipline
// _examples/wilke-GoWe/internal/scheduler/loop.go uses around its
// ticker-driven Tick, generalized here to message-passing instead of
// pure polling so Submit/Cancel/completion react immediately instead
// of waiting for the next tick.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/coordinate/internal/admission"
	"github.com/me/coordinate/internal/dispatcher"
	"github.com/me/coordinate/internal/registry"
	"github.com/me/coordinate/internal/service"
	"github.com/me/coordinate/internal/store"
	"github.com/me/coordinate/pkg/model"
)

type submitRequest struct {
	unit  *model.WorkUnit
	errCh chan error
}

type cancelRequest struct {
	id       string
	resultCh chan model.WorkState
}

type registerTaskRequest struct {
	task    model.TaskType
	handler dispatcher.Handler
	errCh   chan error
}

// Loop is the coordinator's scheduler: once Start has been called it
// is the only thing that mutates the store and the task table, and the
// only thing that reserves and releases service capacity. Services and
// callbacks can still be registered on the service table and registry
// from other goroutines.
type Loop struct {
	store    store.Store
	services *service.Table
	tasks    *taskTable
	registry *registry.Registry
	config   Config
	logger   *slog.Logger

	submitCh     chan submitRequest
	cancelCh     chan cancelRequest
	registerCh   chan registerTaskRequest
	completionCh chan dispatcher.Completion
	wakeupCh     chan struct{}
	stopCh       chan context.Context
	stopOnce     sync.Once
	doneCh       chan struct{}

	inFlight map[string]inFlightEntry

	// stallWarned tracks whether on_stall_warning has already fired for
	// the current stall episode, so it fires once per crossing rather
	// than on every tick past the threshold.
	stallWarned bool

	preStartMu sync.Mutex
	started    atomic.Bool
}

type inFlightEntry struct {
	serviceName string
}

// NewLoop constructs a Loop. Call Start to run it.
func NewLoop(st store.Store, services *service.Table, reg *registry.Registry, cfg Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		store:        st,
		services:     services,
		tasks:        newTaskTable(),
		registry:     reg,
		config:       cfg,
		logger:       logger.With("component", "scheduler"),
		submitCh:     make(chan submitRequest),
		cancelCh:     make(chan cancelRequest),
		registerCh:   make(chan registerTaskRequest),
		completionCh: make(chan dispatcher.Completion, 64),
		wakeupCh:     make(chan struct{}, 1),
		stopCh:       make(chan context.Context),
		doneCh:       make(chan struct{}),
		inFlight:     make(map[string]inFlightEntry),
	}
}

// RegisterTask adds tt with its handler. Safe to call before or after
// Start. Before Start, there is no loop goroutine to hand the request
// to, so it is applied directly under a short-lived mutex; the
// happens-before edge Start's "go" launch establishes makes that write
// visible to the loop goroutine with no further synchronization. Once
// the loop is running, the registration is applied on the loop
// goroutine itself so it can never race a dispatch pass.
func (l *Loop) RegisterTask(tt model.TaskType, h dispatcher.Handler) error {
	if !l.started.Load() {
		l.preStartMu.Lock()
		defer l.preStartMu.Unlock()
		if !l.started.Load() {
			if !l.tasks.register(tt, h) {
				return model.NewConfigError("task %q already registered with different parameters", tt.Name)
			}
			return nil
		}
	}

	req := registerTaskRequest{task: tt, handler: h, errCh: make(chan error, 1)}
	select {
	case l.registerCh <- req:
		return <-req.errCh
	case <-l.doneCh:
		return model.NewShutdownError()
	}
}

// Submit enqueues w. w.State must be PENDING and w.ID must already be
// set; the caller (coordinator.Submit) is responsible for both. Safe to
// call before or after Start, per spec §4.6 ("may be called before
// start"): before Start, submitCh has no reader, so it is applied
// directly under the same preStartMu bypass RegisterTask uses.
func (l *Loop) Submit(w *model.WorkUnit) error {
	if !l.started.Load() {
		l.preStartMu.Lock()
		defer l.preStartMu.Unlock()
		if !l.started.Load() {
			return l.handleSubmit(submitRequest{unit: w})
		}
	}

	req := submitRequest{unit: w, errCh: make(chan error, 1)}
	select {
	case l.submitCh <- req:
		return <-req.errCh
	case <-l.doneCh:
		return model.NewShutdownError()
	}
}

// Cancel requests cancellation of id and returns its resulting state.
// An empty state means id is unknown.
func (l *Loop) Cancel(id string) (model.WorkState, error) {
	req := cancelRequest{id: id, resultCh: make(chan model.WorkState, 1)}
	select {
	case l.cancelCh <- req:
		return <-req.resultCh, nil
	case <-l.doneCh:
		return "", model.NewShutdownError()
	}
}

// Start runs the loop until ctx is cancelled or Stop is called. Either
// way it blocks until the loop has fully drained, honoring the "wait,
// do not interrupt" shutdown contract of spec §4.6: in-flight handlers
// keep running on their own goroutines and their completions are still
// folded in during the drain. ctx's own cancellation carries no
// drain deadline (it only means "stop dispatching new work"); pass a
// deadline through Stop to bound how long the drain waits.
func (l *Loop) Start(ctx context.Context) {
	l.preStartMu.Lock()
	l.started.Store(true)
	l.preStartMu.Unlock()

	l.logger.Info("scheduler started", "poll_interval", l.config.PollInterval)
	l.store.TouchProgress(time.Now())
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()
	defer close(l.doneCh)

	for {
		select {
		case <-ctx.Done():
			// The run context ending (e.g. a signal-derived context
			// cancelling) only means "stop accepting new dispatches";
			// it carries no graceful-shutdown deadline of its own, so
			// draining waits unbounded here unless Stop supplies one.
			l.logger.Info("scheduler stopping (context cancelled)")
			l.drain(context.Background())
			return
		case stopCtx := <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			l.drain(stopCtx)
			return
		case req := <-l.registerCh:
			req.errCh <- l.handleRegister(req)
		case req := <-l.submitCh:
			req.errCh <- l.handleSubmit(req)
			l.dispatch(ctx, time.Now())
		case req := <-l.cancelCh:
			req.resultCh <- l.handleCancel(req)
		case c := <-l.completionCh:
			l.handleCompletion(c)
			l.dispatch(ctx, time.Now())
		case <-l.wakeupCh:
			l.tick(ctx)
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// Stop signals the loop to shut down, draining in-flight handlers to
// completion bounded by ctx's deadline. It waits only until the loop
// receives the signal (or Start has returned, or ctx is done), not for
// the drain; callers wait on Done to know the drain has finished. Only the first call's
// ctx governs the drain; later calls are no-ops.
func (l *Loop) Stop(ctx context.Context) {
	l.stopOnce.Do(func() {
		select {
		case l.stopCh <- ctx:
		case <-l.doneCh:
			// The run context already ended and Start returned before
			// this Stop call arrived; nothing left to signal.
		case <-ctx.Done():
			// Stop itself must never outlive the deadline it was given.
		}
	})
}

// Done returns a channel closed once Start has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.doneCh
}

// Tasks exposes the loop's task table as an admission.TaskLookup, so
// DebugBlocked can run the same admission.Evaluate pipeline the
// dispatch loop uses, without dispatching anything itself.
func (l *Loop) Tasks() admission.TaskLookup {
	return l.tasks
}

// drain waits for every unit still marked in-flight to complete,
// without accepting new submissions. It never interrupts a running
// handler; it only stops handing out new work.
func (l *Loop) drain(ctx context.Context) {
	for len(l.inFlight) > 0 {
		select {
		case c := <-l.completionCh:
			l.handleCompletion(c)
		case <-ctx.Done():
			l.logger.Warn("shutdown deadline hit with handlers still running", "remaining", len(l.inFlight))
			return
		}
	}
}

func (l *Loop) handleRegister(req registerTaskRequest) error {
	if !l.tasks.register(req.task, req.handler) {
		return model.NewConfigError("task %q already registered with different parameters", req.task.Name)
	}
	return nil
}

func (l *Loop) handleSubmit(req submitRequest) error {
	if _, ok := l.tasks.Lookup(req.unit.Task); !ok {
		return model.NewUnknownTaskError(req.unit.Task)
	}
	return l.store.Insert(req.unit)
}

func (l *Loop) handleCancel(req cancelRequest) model.WorkState {
	state, ok := l.store.Cancel(req.id, time.Now())
	if !ok {
		return ""
	}
	return state
}

// tick runs the periodic policies (stall/pending timeouts) and then a
// dispatch pass. It is the loop's analog of the teacher's Tick, minus
// the phases message-passing already covers: submission, cancellation,
// and completion each get their own channel instead of being polled
// for.
func (l *Loop) tick(ctx context.Context) {
	now := time.Now()
	l.checkStallTimeout(now)
	l.checkPendingTimeouts(now)
	l.dispatch(ctx, now)
}

// checkStallTimeout implements spec §4.4's stall policy: while pending
// work exists and no terminal transition has occurred anywhere for
// StallWarnAfter, on_stall_warning fires once; past StallTimeout, every
// pending unit is failed with a stall error.
func (l *Loop) checkStallTimeout(now time.Time) {
	pending := l.store.PendingSnapshot()
	if len(pending) == 0 {
		l.stallWarned = false
		return
	}

	since := now.Sub(l.store.LastProgress())

	if l.config.StallWarnAfter > 0 && since >= l.config.StallWarnAfter && !l.stallWarned {
		l.stallWarned = true
		l.registry.FireStallWarning(since.Seconds(), len(pending))
	}

	if l.config.StallTimeout > 0 && since >= l.config.StallTimeout {
		stallErr := errors.New(model.ErrStallTimeout)
		for _, w := range pending {
			if failed, ok := l.store.MoveToTerminal(w.ID, model.WorkStateFailed, nil, model.ErrStallTimeout, now); ok {
				l.registry.FireFailure(failed, stallErr)
			}
		}
		l.stallWarned = false
	}
}

// checkPendingTimeouts implements spec §4.4's per-item pending policy:
// past PendingWarnAfter, on_stall_warning fires once for that item;
// past PendingTimeout, the item is failed outright with a timeout
// error.
func (l *Loop) checkPendingTimeouts(now time.Time) {
	if l.config.PendingWarnAfter <= 0 && l.config.PendingTimeout <= 0 {
		return
	}
	for _, w := range l.store.PendingSnapshot() {
		age := now.Sub(w.CreatedAt)

		if l.config.PendingTimeout > 0 && age >= l.config.PendingTimeout {
			if failed, ok := l.store.MoveToTerminal(w.ID, model.WorkStateFailed, nil, model.ErrPendingTimeout, now); ok {
				l.registry.FireFailure(failed, errors.New(model.ErrPendingTimeout))
			}
			continue
		}

		if l.config.PendingWarnAfter > 0 && age >= l.config.PendingWarnAfter {
			if l.store.MarkPendingWarned(w.ID) {
				continue // already warned once
			}
			l.registry.FireStallWarning(age.Seconds(), 1)
		}
	}
}

// dispatch evaluates every pending unit in priority order and starts
// handlers for whichever clears admission.
func (l *Loop) dispatch(ctx context.Context, now time.Time) {
	pending := l.store.PendingSnapshot()
	if len(pending) == 0 {
		return
	}
	ordered := sortPending(pending, now, l.registry)

	for _, w := range ordered {
		if now.Before(w.NotBeforeAt) {
			continue
		}

		d := admission.Evaluate(w, l.tasks, l.services, l.registry, now)
		switch d.Outcome {
		case admission.OutcomeSkip:
			if done, ok := l.store.MoveToTerminal(w.ID, model.WorkStateCompleted, nil, "", now); ok {
				l.registry.FireSkip(done)
			}
		case admission.OutcomeUnknownTask, admission.OutcomeBlockedNotReady, admission.OutcomeBlockedService:
			// The item remains pending; a task registered after submit
			// can still be picked up on a later tick. debug_blocked
			// exposes why it hasn't run.
			continue
		case admission.OutcomeDispatch:
			l.startDispatch(ctx, w, d)
		}
	}
}

func (l *Loop) startDispatch(ctx context.Context, w model.WorkUnit, d admission.Decision) {
	h, ok := l.tasks.handler(w.Task)
	if !ok {
		l.store.MoveToTerminal(w.ID, model.WorkStateFailed, nil, model.NewUnknownTaskError(w.Task).Error(), time.Now())
		return
	}

	active, ok := l.store.MoveToActive(w.ID, time.Now())
	if !ok {
		return
	}
	d.Service.Reserve(time.Now())
	l.inFlight[w.ID] = inFlightEntry{serviceName: d.Service.Spec.Name}
	l.registry.FireStart(active)

	dispatcher.Run(ctx, active, h, l.completionCh)
}

func (l *Loop) handleCompletion(c dispatcher.Completion) {
	entry, ok := l.inFlight[c.ID]
	if ok {
		delete(l.inFlight, c.ID)
		if svc, ok := l.services.Get(entry.serviceName); ok {
			svc.Release()
		}
	}

	now := time.Now()

	if l.store.TakeCancelIntent(c.ID) {
		l.store.MoveToTerminal(c.ID, model.WorkStateCancelled, nil, "cancelled", now)
		return
	}

	if c.Err == nil {
		done, ok := l.store.MoveToTerminal(c.ID, model.WorkStateCompleted, c.Result, "", now)
		if ok {
			l.registry.FireComplete(done, c.Result, c.Duration)
		}
		return
	}

	w, ok := l.store.Get(c.ID)
	if !ok {
		return
	}
	task, ok := l.tasks.Lookup(w.Task)
	if ok && task.Retryable(w.Attempt) {
		delay := retryDelay(w.Attempt, l.config.MaxRetryBackoff)
		if returned, ok := l.store.ReturnToPending(c.ID, now.Add(delay)); ok {
			l.registry.FireFailure(returned, c.Err)
		}
		return
	}

	failed, ok := l.store.MoveToTerminal(c.ID, model.WorkStateFailed, nil, c.Err.Error(), now)
	if ok {
		l.registry.FireFailure(failed, c.Err)
	}
}
