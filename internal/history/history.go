// Package history implements an optional, write-only audit trail of
// completed work: a SQLite-backed sink that subscribes to the
// registry's event callbacks and never influences admission or
// scheduling decisions. The coordinator's authoritative state is
// in-memory and stateless across restarts (spec §1); this package
// exists purely so operators can ask "what happened" after the fact,
// grounded on the WAL-mode/migrate pattern of
// _examples/wilke-GoWe/internal/store/sqlite.go and migrations.go,
// repurposed from a CRUD store into an append-only log.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/me/coordinate/internal/registry"
	"github.com/me/coordinate/pkg/model"
)

// SQLiteSink appends one row per terminal event. It is safe for
// concurrent use: the scheduler loop and any HTTP-driven admin
// endpoints may both write to it from different goroutines.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the audit database at dbPath and runs its
// migration. Use ":memory:" in tests.
func Open(dbPath string, logger *slog.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: pragma wal: %w", err)
	}

	sink := &SQLiteSink{db: db, logger: logger.With("component", "history")}
	if err := sink.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return sink, nil
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		work_id     TEXT NOT NULL,
		task        TEXT NOT NULL,
		event       TEXT NOT NULL,
		attempt     INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		result      TEXT NOT NULL DEFAULT '',
		error       TEXT NOT NULL DEFAULT '',
		recorded_at TEXT NOT NULL
	)`)
	return err
}

// OnComplete is a registry.CompleteFunc: it records a "completed" row.
func (s *SQLiteSink) OnComplete(w model.WorkUnit, result any, d time.Duration) {
	s.insert(w, "completed", d, result, nil)
}

// OnFailure is a registry.FailureFunc: it records a "failed" row.
func (s *SQLiteSink) OnFailure(w model.WorkUnit, err error) {
	s.insert(w, "failed", 0, nil, err)
}

// OnSkip is a registry.SkipFunc: it records a "skipped" row.
func (s *SQLiteSink) OnSkip(w model.WorkUnit) {
	s.insert(w, "skipped", 0, nil, nil)
}

func (s *SQLiteSink) insert(w model.WorkUnit, event string, d time.Duration, result any, err error) {
	var resultJSON, errMsg string
	if result != nil {
		if b, marshalErr := json.Marshal(result); marshalErr == nil {
			resultJSON = string(b)
		}
	}
	if err != nil {
		errMsg = err.Error()
	}

	_, execErr := s.db.Exec(
		`INSERT INTO events (work_id, task, event, attempt, duration_ms, result, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Task, event, w.Attempt, d.Milliseconds(), resultJSON, errMsg, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if execErr != nil {
		s.logger.Error("history: insert failed", "work_id", w.ID, "event", event, "error", execErr)
	}
}

// Event is one row read back from the audit log.
type Event struct {
	WorkID     string
	Task       string
	Kind       string
	Attempt    int
	DurationMs int64
	Result     string
	Error      string
	RecordedAt time.Time
}

// Recent returns up to limit most recent events, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT work_id, task, event, attempt, duration_ms, result, error, recorded_at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var recordedAt string
		if err := rows.Scan(&e.WorkID, &e.Task, &e.Kind, &e.Attempt, &e.DurationMs, &e.Result, &e.Error, &recordedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Attach subscribes sink to every terminal event on reg. Calling this
// is the only way history ever affects the coordinator: it observes,
// it never blocks or vetoes a decision.
func Attach(reg *registry.Registry, sink *SQLiteSink) {
	reg.OnComplete(sink.OnComplete)
	reg.OnFailure(sink.OnFailure)
	reg.OnSkip(sink.OnSkip)
}
