// Package coordinator exposes the public, embeddable API of the work
// coordinator: the facade an application links against instead of
// talking to the scheduler, store, and service table directly. Its
// shape — functional options, an idempotent Start, a context-aware
// Stop — is grounded on
// _examples/wilke-GoWe/internal/server/server.go's Option/New pattern
// and cmd/server/main.go's signal.NotifyContext shutdown sequence,
// generalized from an HTTP server's lifecycle to an in-process
// component's.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/coordinate/internal/admission"
	"github.com/me/coordinate/internal/dispatcher"
	"github.com/me/coordinate/internal/registry"
	"github.com/me/coordinate/internal/scheduler"
	"github.com/me/coordinate/internal/service"
	"github.com/me/coordinate/internal/store"
	"github.com/me/coordinate/pkg/model"
)

// Coordinator is the top-level object applications create, configure,
// and run. It is safe for concurrent use once Start has returned.
type Coordinator struct {
	store    store.Store
	services *service.Table
	registry *registry.Registry
	loop     *scheduler.Loop
	logger   *slog.Logger

	schedulerConfig *scheduler.Config

	mu      sync.Mutex
	started bool
	stopped bool
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithConfig overrides the scheduler's timing policy.
func WithConfig(cfg scheduler.Config) Option {
	return func(c *Coordinator) { c.schedulerConfig = &cfg }
}

// New builds a Coordinator. It does not start the scheduler loop;
// call Start for that.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store.NewMemStore(),
		services: service.NewTable(),
		registry: registry.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registry.SetLogger(c.logger)

	cfg := scheduler.DefaultConfig()
	if c.schedulerConfig != nil {
		cfg = *c.schedulerConfig
	}
	c.loop = scheduler.NewLoop(c.store, c.services, c.registry, cfg, c.logger)
	return c
}

// RegisterService declares a rate/concurrency-limited external
// service. Re-registering the same name with an identical spec is a
// no-op; re-registering with a different spec is a CONFIG_ERROR.
func (c *Coordinator) RegisterService(spec model.ServiceSpec) error {
	if _, ok := c.services.Register(spec); !ok {
		return model.NewConfigError("service %q already registered with different parameters", spec.Name)
	}
	return nil
}

// RegisterTask declares a task type and the handler that runs it. It
// is a CONFIG_ERROR if tt.ServiceName has not been registered yet.
func (c *Coordinator) RegisterTask(tt model.TaskType, h dispatcher.Handler) error {
	if _, ok := c.services.Get(tt.ServiceName); !ok {
		return model.NewConfigError("task %q names unknown service %q", tt.Name, tt.ServiceName)
	}
	return c.loop.RegisterTask(tt, h)
}

// Registry exposes the coordinator's event registry so external
// subscribers (an audit sink, a metrics exporter) can attach without
// the coordinator needing to know about them.
func (c *Coordinator) Registry() *registry.Registry { return c.registry }

// OnReady sets the coordinator-wide is_ready predicate.
func (c *Coordinator) OnReady(fn registry.ReadyFunc) error { return c.registry.SetReady(fn) }

// OnStale sets the coordinator-wide is_stale predicate.
func (c *Coordinator) OnStale(fn registry.StaleFunc) error { return c.registry.SetStale(fn) }

// OnPriority sets the coordinator-wide priority predicate.
func (c *Coordinator) OnPriority(fn registry.PriorityFunc) error { return c.registry.SetPriority(fn) }

// OnStart subscribes fn to every dispatch.
func (c *Coordinator) OnStart(fn registry.StartFunc) { c.registry.OnStart(fn) }

// OnComplete subscribes fn to every successful completion.
func (c *Coordinator) OnComplete(fn registry.CompleteFunc) { c.registry.OnComplete(fn) }

// OnFailure subscribes fn to every failed attempt, including attempts
// that are retried as well as the terminal failure.
func (c *Coordinator) OnFailure(fn registry.FailureFunc) { c.registry.OnFailure(fn) }

// OnSkip subscribes fn to every unit skipped as already-stale-free.
func (c *Coordinator) OnSkip(fn registry.SkipFunc) { c.registry.OnSkip(fn) }

// OnStallWarning subscribes fn to pending- and stall-timeout warnings.
func (c *Coordinator) OnStallWarning(fn registry.StallFunc) { c.registry.OnStallWarning(fn) }

// Submit enqueues a new unit of work for task and returns its id.
// params is opaque to the coordinator; it is only ever handed back to
// the registered predicates and handler for task.
func (c *Coordinator) Submit(task string, params map[string]any) (string, error) {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return "", model.NewShutdownError()
	}

	w := &model.WorkUnit{
		ID:        model.NewID(),
		Task:      task,
		Params:    params,
		State:     model.WorkStatePending,
		CreatedAt: time.Now(),
	}
	if err := c.loop.Submit(w); err != nil {
		return "", err
	}
	return w.ID, nil
}

// Cancel requests cancellation of id. A pending unit is cancelled
// immediately; a running one is cancelled once its handler returns.
func (c *Coordinator) Cancel(id string) (model.WorkState, error) {
	return c.loop.Cancel(id)
}

// Get returns a snapshot of the unit with the given id.
func (c *Coordinator) Get(id string) (model.WorkUnit, bool) {
	return c.store.Get(id)
}

// List returns snapshots of every unit matching filter.
func (c *Coordinator) List(filter model.ListFilter) []model.WorkUnit {
	return c.store.List(filter)
}

// BlockedUnit describes why a pending unit is not currently dispatched,
// for DebugBlocked's introspection view. Reason is one of "not_ready",
// "service_full", "unknown_task", or "retry_backoff"; Details expands
// on it (the callback error, the saturated service's name, ...).
type BlockedUnit struct {
	Unit    model.WorkUnit
	Reason  string
	Details string
}

// DebugBlocked returns every pending unit paired with why it has not
// been dispatched, per spec §4.6: produced by running the admission
// evaluator over the pending snapshot without dispatching, the same
// pipeline the scheduler loop itself runs.
func (c *Coordinator) DebugBlocked() []BlockedUnit {
	pending := c.store.PendingSnapshot()
	out := make([]BlockedUnit, 0, len(pending))
	now := time.Now()
	for _, w := range pending {
		out = append(out, c.explainBlocked(w, now))
	}
	return out
}

func (c *Coordinator) explainBlocked(w model.WorkUnit, now time.Time) BlockedUnit {
	if now.Before(w.NotBeforeAt) {
		return BlockedUnit{
			Unit:    w,
			Reason:  "retry_backoff",
			Details: fmt.Sprintf("waiting for retry backoff until %s", w.NotBeforeAt.Format(time.RFC3339)),
		}
	}

	d := admission.Evaluate(w, c.loop.Tasks(), c.services, c.registry, now)
	switch d.Outcome {
	case admission.OutcomeUnknownTask:
		return BlockedUnit{Unit: w, Reason: "unknown_task", Details: fmt.Sprintf("task %q is not registered", w.Task)}
	case admission.OutcomeBlockedNotReady:
		details := "is_ready returned false"
		if d.Err != nil {
			details = fmt.Sprintf("is_ready errored: %v", d.Err)
		}
		return BlockedUnit{Unit: w, Reason: "not_ready", Details: details}
	case admission.OutcomeBlockedService:
		return BlockedUnit{Unit: w, Reason: "service_full", Details: fmt.Sprintf("service %q is at capacity", d.Task.ServiceName)}
	default:
		// OutcomeSkip and OutcomeDispatch mean the unit would run on
		// the next dispatch pass; it only shows up here because
		// DebugBlocked is a snapshot racing the scheduler's own tick.
		return BlockedUnit{Unit: w, Reason: "not_ready", Details: "clears admission on the next tick"}
	}
}

// Start runs the scheduler loop in the background. It is idempotent:
// calling it twice is a no-op after the first call.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.loop.Start(ctx)
}

// Stop signals the scheduler to shut down and blocks until every
// in-flight handler has finished or ctx's deadline passes, whichever
// comes first. It never interrupts a running handler; per spec §4.6
// shutdown always waits.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	c.loop.Stop(ctx)
	select {
	case <-c.loop.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
