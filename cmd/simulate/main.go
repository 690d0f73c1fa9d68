// Command simulate exercises an in-process coordinator through the
// concrete scenarios used to validate the coordinator's admission and
// scheduling behavior: max-concurrency, rate limiting, readiness
// gating, staleness skipping, pipeline gating between two tasks, and
// stall-timeout failure of pending work.
// It prints a short report and exits non-zero if any scenario's
// observed behavior violates its invariant.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/coordinate/internal/coordinator"
	"github.com/me/coordinate/internal/dispatcher"
	"github.com/me/coordinate/internal/logging"
	"github.com/me/coordinate/internal/scheduler"
	"github.com/me/coordinate/pkg/model"
)

func main() {
	logger := logging.NewLogger(logging.ParseLevel("warn"), "text")
	failures := 0

	logger.Debug("starting scenarios")
	for _, sc := range []struct {
		name string
		run  func() error
	}{
		{"max-concurrent-respected", scenarioMaxConcurrent},
		{"rate-limit-throttles", scenarioRateLimit},
		{"not-ready-blocks-then-runs", scenarioNotReadyThenRuns},
		{"stale-skip-fires-on-skip", scenarioStaleSkip},
		{"pipeline-with-gating", scenarioPipelineGating},
		{"stall-timeout-fails-pending", scenarioStallTimeout},
	} {
		start := time.Now()
		err := sc.run()
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("FAIL  %-30s (%v): %v\n", sc.name, elapsed.Round(time.Millisecond), err)
			failures++
			continue
		}
		fmt.Printf("PASS  %-30s (%v)\n", sc.name, elapsed.Round(time.Millisecond))
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func newCoordinator() *coordinator.Coordinator {
	return coordinator.New(coordinator.WithConfig(scheduler.Config{
		PollInterval:    5 * time.Millisecond,
		PendingTimeout:  time.Hour,
		StallTimeout:    time.Hour,
		MaxRetryBackoff: time.Second,
	}))
}

func syncHandler(fn func(ctx context.Context, w model.WorkUnit) (any, error)) dispatcher.Handler {
	return dispatcher.Handler{Kind: dispatcher.KindSync, Sync: fn}
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func scenarioMaxConcurrent() error {
	c := newCoordinator()
	c.RegisterService(model.ServiceSpec{Name: "api", Concurrent: 2, RateCount: 1000, RateWindow: time.Minute})

	var running int32
	var maxRunning int32
	c.RegisterTask(model.TaskType{Name: "sleep", ServiceName: "api", MaxAttempts: 1}, syncHandler(
		func(ctx context.Context, w model.WorkUnit) (any, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&maxRunning)
				if n <= old || atomic.CompareAndSwapInt32(&maxRunning, old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil, nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop(context.Background())

	ids := make([]string, 6)
	for i := range ids {
		id, err := c.Submit("sleep", nil)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	if !waitFor(2*time.Second, func() bool { return allTerminal(c, ids) }) {
		return fmt.Errorf("not all units completed")
	}
	if got := atomic.LoadInt32(&maxRunning); got > 2 {
		return fmt.Errorf("observed max_running=%d, want <= 2", got)
	}
	return nil
}

func scenarioRateLimit() error {
	c := newCoordinator()
	c.RegisterService(model.ServiceSpec{Name: "api", Concurrent: 100, RateCount: 3, RateWindow: time.Second})

	var mu sync.Mutex
	var timestamps []time.Time
	c.RegisterTask(model.TaskType{Name: "noop", ServiceName: "api", MaxAttempts: 1}, syncHandler(
		func(ctx context.Context, w model.WorkUnit) (any, error) {
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
			return nil, nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop(context.Background())

	ids := make([]string, 6)
	for i := range ids {
		id, err := c.Submit("noop", nil)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	if !waitFor(3*time.Second, func() bool { return allTerminal(c, ids) }) {
		return fmt.Errorf("not all units completed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(timestamps) != 6 {
		return fmt.Errorf("got %d dispatches, want 6", len(timestamps))
	}
	if gap := timestamps[3].Sub(timestamps[0]); gap < 950*time.Millisecond {
		return fmt.Errorf("fourth dispatch arrived after only %v, want >= ~1s", gap)
	}
	return nil
}

func scenarioNotReadyThenRuns() error {
	c := newCoordinator()
	c.RegisterService(model.ServiceSpec{Name: "api", Concurrent: 1, RateCount: 1000, RateWindow: time.Minute})

	var ready atomic.Bool
	c.OnReady(func(w model.WorkUnit) (bool, error) { return ready.Load(), nil })
	c.RegisterTask(model.TaskType{Name: "gate", ServiceName: "api", MaxAttempts: 1}, syncHandler(
		func(ctx context.Context, w model.WorkUnit) (any, error) { return nil, nil }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop(context.Background())

	id, err := c.Submit("gate", nil)
	if err != nil {
		return err
	}

	time.Sleep(100 * time.Millisecond)
	unit, _ := c.Get(id)
	if unit.State != model.WorkStatePending {
		return fmt.Errorf("state = %s before readiness, want PENDING", unit.State)
	}

	ready.Store(true)
	if !waitFor(300*time.Millisecond, func() bool {
		u, _ := c.Get(id)
		return u.State == model.WorkStateCompleted
	}) {
		return fmt.Errorf("did not complete within 300ms of becoming ready")
	}
	return nil
}

func scenarioStaleSkip() error {
	c := newCoordinator()
	c.RegisterService(model.ServiceSpec{Name: "api", Concurrent: 1, RateCount: 1000, RateWindow: time.Minute})

	var handlerCalled atomic.Bool
	var skipFired atomic.Int32
	c.OnStale(func(w model.WorkUnit) (bool, error) { return false, nil })
	c.OnSkip(func(w model.WorkUnit) { skipFired.Add(1) })
	c.RegisterTask(model.TaskType{Name: "stale", ServiceName: "api", MaxAttempts: 1}, syncHandler(
		func(ctx context.Context, w model.WorkUnit) (any, error) {
			handlerCalled.Store(true)
			return nil, nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop(context.Background())

	id, err := c.Submit("stale", nil)
	if err != nil {
		return err
	}

	if !waitFor(200*time.Millisecond, func() bool {
		u, _ := c.Get(id)
		return u.State == model.WorkStateCompleted
	}) {
		return fmt.Errorf("stale item never reached COMPLETED")
	}
	if handlerCalled.Load() {
		return fmt.Errorf("handler ran for a stale item")
	}
	if skipFired.Load() != 1 {
		return fmt.Errorf("on_skip fired %d times, want 1", skipFired.Load())
	}
	return nil
}

func scenarioPipelineGating() error {
	c := newCoordinator()
	c.RegisterService(model.ServiceSpec{Name: "api", Concurrent: 2, RateCount: 1000, RateWindow: time.Minute})

	var mu sync.Mutex
	produced := map[string]bool{}
	var order []string

	c.OnReady(func(w model.WorkUnit) (bool, error) {
		if w.Task == "produce" {
			return true, nil
		}
		mu.Lock()
		defer mu.Unlock()
		return produced["key"], nil
	})
	c.RegisterTask(model.TaskType{Name: "produce", ServiceName: "api", MaxAttempts: 1}, syncHandler(
		func(ctx context.Context, w model.WorkUnit) (any, error) {
			mu.Lock()
			produced["key"] = true
			mu.Unlock()
			return nil, nil
		}))
	c.RegisterTask(model.TaskType{Name: "consume", ServiceName: "api", MaxAttempts: 1}, syncHandler(
		func(ctx context.Context, w model.WorkUnit) (any, error) { return nil, nil }))
	c.OnComplete(func(w model.WorkUnit, result any, d time.Duration) {
		mu.Lock()
		order = append(order, w.Task)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop(context.Background())

	consumeID, err := c.Submit("consume", nil)
	if err != nil {
		return err
	}
	produceID, err := c.Submit("produce", nil)
	if err != nil {
		return err
	}

	if !waitFor(500*time.Millisecond, func() bool { return allTerminal(c, []string{consumeID, produceID}) }) {
		return fmt.Errorf("pipeline did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "produce" || order[1] != "consume" {
		return fmt.Errorf("completion order = %v, want [produce consume]", order)
	}
	return nil
}

func scenarioStallTimeout() error {
	c := coordinator.New(coordinator.WithConfig(scheduler.Config{
		PollInterval: 5 * time.Millisecond,
		StallTimeout: 100 * time.Millisecond,
	}))
	c.RegisterService(model.ServiceSpec{Name: "api", Concurrent: 1, RateCount: 1000, RateWindow: time.Minute})
	c.OnReady(func(w model.WorkUnit) (bool, error) { return false, nil })
	c.RegisterTask(model.TaskType{Name: "gate", ServiceName: "api", MaxAttempts: 1}, syncHandler(
		func(ctx context.Context, w model.WorkUnit) (any, error) { return nil, nil }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop(context.Background())

	id, err := c.Submit("gate", nil)
	if err != nil {
		return err
	}

	if !waitFor(300*time.Millisecond, func() bool {
		u, _ := c.Get(id)
		return u.State == model.WorkStateFailed
	}) {
		return fmt.Errorf("item never failed on stall timeout")
	}
	u, _ := c.Get(id)
	if u.Err != model.ErrStallTimeout {
		return fmt.Errorf("err = %q, want %q", u.Err, model.ErrStallTimeout)
	}
	return nil
}

func allTerminal(c *coordinator.Coordinator, ids []string) bool {
	for _, id := range ids {
		u, ok := c.Get(id)
		if !ok {
			return false
		}
		switch u.State {
		case model.WorkStateCompleted, model.WorkStateFailed, model.WorkStateCancelled:
		default:
			return false
		}
	}
	return true
}
