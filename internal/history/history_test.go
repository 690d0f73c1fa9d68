package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/me/coordinate/internal/registry"
	"github.com/me/coordinate/pkg/model"
)

func openTestSink(t *testing.T) *SQLiteSink {
	t.Helper()
	sink, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestSQLiteSink_RecordsComplete(t *testing.T) {
	sink := openTestSink(t)
	sink.OnComplete(model.WorkUnit{ID: "w1", Task: "fetch", Attempt: 1}, "result-value", 50*time.Millisecond)

	events, err := sink.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 || events[0].WorkID != "w1" || events[0].Kind != "completed" {
		t.Fatalf("events = %+v", events)
	}
}

func TestSQLiteSink_RecordsFailureAndSkip(t *testing.T) {
	sink := openTestSink(t)
	sink.OnFailure(model.WorkUnit{ID: "w1", Task: "fetch"}, errors.New("boom"))
	sink.OnSkip(model.WorkUnit{ID: "w2", Task: "fetch"})

	events, err := sink.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// newest first
	if events[0].Kind != "skipped" || events[1].Kind != "failed" || events[1].Error != "boom" {
		t.Fatalf("events = %+v", events)
	}
}

func TestAttach_SubscribesToRegistry(t *testing.T) {
	sink := openTestSink(t)
	reg := registry.New()
	Attach(reg, sink)

	reg.FireComplete(model.WorkUnit{ID: "w1", Task: "fetch"}, "ok", time.Millisecond)

	events, err := sink.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event via registry fan-out, got %d", len(events))
	}
}

func TestRecent_DefaultLimit(t *testing.T) {
	sink := openTestSink(t)
	for i := 0; i < 3; i++ {
		sink.OnSkip(model.WorkUnit{ID: "w", Task: "fetch"})
	}
	events, err := sink.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
}
