// Package journal persists a command history to SQLite. Writes ride a
// single background goroutine so recording never blocks the command
// pipeline; a full queue drops the entry rather than stalling execution.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"aura/internal/types"
)

// Entry is one journaled command.
type Entry struct {
	CorrelationID string
	Utterance     string
	Intent        string
	Confidence    float64
	Status        string
	Method        string
	Message       string
	ErrorKind     string
	Duration      time.Duration
	CreatedAt     time.Time
}

// FromResult builds an entry from a handled command.
func FromResult(utt types.Utterance, in types.Intent, res types.HandlerResult) Entry {
	e := Entry{
		CorrelationID: res.CorrelationID,
		Utterance:     utt.Text,
		Intent:        string(in.Kind),
		Confidence:    in.Confidence,
		Status:        string(res.Status),
		Method:        string(res.Method),
		Message:       res.Message,
		Duration:      res.Timings.Total,
		CreatedAt:     time.Now().UTC(),
	}
	if res.Err != nil {
		e.ErrorKind = string(res.Err.Kind)
	}
	return e
}

const schema = `
CREATE TABLE IF NOT EXISTS commands (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	correlation_id TEXT NOT NULL,
	utterance      TEXT NOT NULL,
	intent         TEXT NOT NULL,
	confidence     REAL NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	method         TEXT NOT NULL DEFAULT '',
	message        TEXT NOT NULL DEFAULT '',
	error_kind     TEXT NOT NULL DEFAULT '',
	duration_ms    INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_commands_created ON commands(created_at DESC);
`

// Journal is the SQLite-backed command history.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger

	writes chan Entry
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Open creates or opens the journal database at path. ":memory:" works for
// tests.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// One connection: the modernc driver serializes anyway, and a single
	// conn keeps the in-memory database from evaporating between calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: logger,
		writes: make(chan Entry, 256),
		done:   make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writer()
	return j, nil
}

// writer drains the queue until Close, then flushes what is left.
func (j *Journal) writer() {
	defer j.wg.Done()
	for {
		select {
		case e := <-j.writes:
			j.insert(e)
		case <-j.done:
			for {
				select {
				case e := <-j.writes:
					j.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) insert(e Entry) {
	_, err := j.db.Exec(`INSERT INTO commands
		(correlation_id, utterance, intent, confidence, status, method, message, error_kind, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CorrelationID, e.Utterance, e.Intent, e.Confidence, e.Status,
		e.Method, e.Message, e.ErrorKind, e.Duration.Milliseconds(), e.CreatedAt)
	if err != nil {
		j.logger.Warn("journal write failed",
			zap.String("correlation_id", e.CorrelationID),
			zap.Error(err))
	}
}

// Record queues an entry. It never blocks; when the queue is full the entry
// is dropped and logged.
func (j *Journal) Record(e Entry) {
	if j == nil {
		return
	}
	select {
	case j.writes <- e:
	default:
		j.logger.Warn("journal queue full, entry dropped",
			zap.String("correlation_id", e.CorrelationID))
	}
}

// Recent returns the latest n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.db.QueryContext(ctx, `SELECT
		correlation_id, utterance, intent, confidence, status, method, message, error_kind, duration_ms, created_at
		FROM commands ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.CorrelationID, &e.Utterance, &e.Intent, &e.Confidence,
			&e.Status, &e.Method, &e.Message, &e.ErrorKind, &ms, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close flushes queued writes and closes the database. Safe to call twice.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	var err error
	j.closeOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}
