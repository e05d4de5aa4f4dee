// Package audit records every dispatched operation in an SQLite table. The
// trail is optional (AUDIT_DB) and write-only from the server's point of
// view: it never feeds the document registry back.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/docmcp/dbopen"
	"github.com/hazyhaar/docmcp/idgen"
	"github.com/hazyhaar/docmcp/kit"
)

// Schema creates the audit table. Open passes it to dbopen.
const Schema = `CREATE TABLE IF NOT EXISTS audit_log (
	entry_id    TEXT PRIMARY KEY,
	timestamp   INTEGER NOT NULL,
	operation   TEXT NOT NULL,
	transport   TEXT NOT NULL DEFAULT '',
	session_id  TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	parameters  TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_operation ON audit_log(operation, timestamp);`

const (
	batchSize     = 32
	flushInterval = time.Second
	// maxParams caps the stored argument JSON; context_data can be large.
	maxParams = 2048
)

// Entry is one audited call. Timestamp is Unix milliseconds.
type Entry struct {
	EntryID    string
	Timestamp  int64
	Operation  string
	Transport  string
	SessionID  string
	RequestID  string
	Parameters string
	Outcome    string
	Error      string
	DurationMs int64
	Status     string // "success", "rejected", "error"
}

// Logger is what Middleware writes to.
type Logger interface {
	LogAsync(e *Entry)
}

// Option configures a SQLiteLogger.
type Option func(*SQLiteLogger)

// WithIDGenerator replaces the default "aud_" + UUIDv7 generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *SQLiteLogger) { l.newID = gen }
}

// WithLogger sets the slog logger used for write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *SQLiteLogger) { l.logger = logger }
}

// SQLiteLogger batches entries and writes them from one goroutine.
type SQLiteLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	ch     chan *Entry
	done   chan struct{}
	once   sync.Once
}

// Open opens (or creates) the audit database at path and starts a logger
// on it. Close the logger, then the returned db.
func Open(path string, opts ...Option) (*SQLiteLogger, *sql.DB, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, nil, fmt.Errorf("audit: %w", err)
	}
	return NewSQLiteLogger(db, opts...), db, nil
}

// NewSQLiteLogger starts the flush goroutine. Call Init unless the schema
// was applied when opening db.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{
		db:     db,
		newID:  idgen.Prefixed("aud_", idgen.Default),
		logger: slog.Default(),
		ch:     make(chan *Entry, 256),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l
}

// Init creates the audit table.
func (l *SQLiteLogger) Init() error {
	if _, err := l.db.Exec(Schema); err != nil {
		return fmt.Errorf("audit: init: %w", err)
	}
	return nil
}

// Log writes e synchronously.
func (l *SQLiteLogger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	return dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error { return insert(ctx, tx, e) })
}

// LogAsync queues e. When the buffer is full the entry is written inline.
func (l *SQLiteLogger) LogAsync(e *Entry) {
	l.fillDefaults(e)
	select {
	case l.ch <- e:
	default:
		l.logger.Warn("audit buffer full, sync fallback", "operation", e.Operation)
		if err := l.Log(context.Background(), e); err != nil {
			l.logger.Error("audit: sync fallback failed", "error", err)
		}
	}
}

// Close flushes queued entries and stops the goroutine. LogAsync must not
// be called afterwards.
func (l *SQLiteLogger) Close() error {
	l.once.Do(func() { close(l.ch) })
	<-l.done
	return nil
}

// Filter selects entries for Query. Zero fields match everything.
type Filter struct {
	Operation string
	Status    string
	Limit     int // default 100
}

// Query returns the most recent entries first.
func (l *SQLiteLogger) Query(ctx context.Context, f Filter) ([]Entry, error) {
	q := `SELECT entry_id, timestamp, operation, transport, session_id, request_id,
		parameters, outcome, error, duration_ms, status FROM audit_log WHERE 1=1`
	var args []any
	if f.Operation != "" {
		q += " AND operation = ?"
		args = append(args, f.Operation)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " ORDER BY timestamp DESC, entry_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EntryID, &e.Timestamp, &e.Operation, &e.Transport, &e.SessionID,
			&e.RequestID, &e.Parameters, &e.Outcome, &e.Error, &e.DurationMs, &e.Status); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *SQLiteLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Transport == "" {
		e.Transport = "inproc"
	}
	if e.Status == "" {
		switch {
		case e.Error != "":
			e.Status = "error"
		case e.Outcome != "" && e.Outcome != "success":
			e.Status = "rejected"
		default:
			e.Status = "success"
		}
	}
}

func (l *SQLiteLogger) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	batch := make([]*Entry, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error {
			for _, e := range batch {
				if err := insert(ctx, tx, e); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			l.logger.Error("audit: flush failed", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-l.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func insert(ctx context.Context, tx *sql.Tx, e *Entry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO audit_log
		(entry_id, timestamp, operation, transport, session_id, request_id,
		 parameters, outcome, error, duration_ms, status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp, e.Operation, e.Transport, e.SessionID, e.RequestID,
		e.Parameters, e.Outcome, e.Error, e.DurationMs, e.Status)
	if err != nil {
		return fmt.Errorf("audit: insert %s: %w", e.EntryID, err)
	}
	return nil
}

// Middleware records one entry per call of op. Arguments are stored as
// JSON, truncated to 2 KiB.
func Middleware(l Logger, op string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			e := &Entry{
				Operation:  op,
				Transport:  kit.GetTransport(ctx),
				SessionID:  kit.GetSessionID(ctx),
				RequestID:  kit.GetRequestID(ctx),
				Outcome:    kit.Outcome(resp, err),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if req != nil {
				if b, merr := json.Marshal(req); merr == nil {
					if len(b) > maxParams {
						b = b[:maxParams]
					}
					e.Parameters = string(b)
				}
			}
			if err != nil {
				e.Error = err.Error()
			}
			l.LogAsync(e)
			return resp, err
		}
	}
}
