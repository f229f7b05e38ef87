// Package trace records session operations into a SQLite database so FIFO
// and IRQ timing can be inspected after a run.
package trace

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/OpenTraceLab/OpenTraceRIO/internal/logging"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

// DefaultBatchSize is how many events are buffered before a flush.
const DefaultBatchSize = 1000

// ErrRecorderClosed is returned by Flush after Close.
var ErrRecorderClosed = errors.New("trace: recorder closed")

const schema = `
CREATE TABLE IF NOT EXISTS transfers (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session     TEXT    NOT NULL,
	op          TEXT    NOT NULL,
	resource    TEXT,
	address     INTEGER,
	bytes       INTEGER,
	elements    INTEGER,
	start_ns    INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS transfers_session ON transfers (session, start_ns);
`

const insertTransfer = `INSERT INTO transfers
	(session, op, resource, address, bytes, elements, start_ns, duration_ns, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Recorder implements rio.Tracer. Events are buffered in memory and written
// in one transaction per batch.
type Recorder struct {
	db     *sql.DB
	ownsDB bool
	path   string
	log    *slog.Logger

	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int

	mu      sync.Mutex
	pending []rio.TraceEvent
	closed  bool
	lastErr error
}

var _ rio.Tracer = (*Recorder)(nil)

// New opens or creates the database at path. An empty path creates
// rio_trace_<xid>.sqlite3 in the working directory. The recorder is flushed
// when the program exits through atexit.
func New(path string) (*Recorder, error) {
	if path == "" {
		path = "rio_trace_" + xid.New().String() + ".sqlite3"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	r, err := newRecorder(db, path)
	if err != nil {
		db.Close()
		return nil, err
	}
	r.ownsDB = true
	r.log.Info("recording transfers", "path", path)
	fmt.Fprintf(os.Stderr, "Trace is collected in database: %s\n", path)
	return r, nil
}

// NewWithDB records into an already open database. Close does not close db.
func NewWithDB(db *sql.DB) (*Recorder, error) {
	return newRecorder(db, "")
}

func newRecorder(db *sql.DB, path string) (*Recorder, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("trace: create schema: %w", err)
	}
	r := &Recorder{
		db:   db,
		path: path,
		log:  logging.For(logging.ComponentTrace),
	}
	track(r)
	return r, nil
}

// live holds the recorders that are not closed yet. A single atexit handler
// flushes them all.
var live = struct {
	sync.Mutex
	once      sync.Once
	recorders map[*Recorder]struct{}
}{recorders: make(map[*Recorder]struct{})}

func track(r *Recorder) {
	live.once.Do(func() { atexit.Register(flushLive) })
	live.Lock()
	live.recorders[r] = struct{}{}
	live.Unlock()
}

func untrack(r *Recorder) {
	live.Lock()
	delete(live.recorders, r)
	live.Unlock()
}

func liveRecorders() []*Recorder {
	live.Lock()
	defer live.Unlock()
	out := make([]*Recorder, 0, len(live.recorders))
	for r := range live.recorders {
		out = append(out, r)
	}
	return out
}

func flushLive() {
	for _, r := range liveRecorders() {
		if err := r.Flush(); err != nil && !errors.Is(err, ErrRecorderClosed) {
			r.log.Error("flush at exit", "error", err)
		}
	}
}

// Path returns the database file, or "" for NewWithDB recorders.
func (r *Recorder) Path() string { return r.path }

func (r *Recorder) batchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return DefaultBatchSize
}

// Trace buffers ev and writes the batch once it is full. Write failures are
// logged and reported by the next Flush.
func (r *Recorder) Trace(ev rio.TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.pending = append(r.pending, ev)
	if len(r.pending) >= r.batchSize() {
		if err := r.flushLocked(); err != nil {
			r.log.Error("flush", "error", err)
			r.lastErr = err
		}
	}
}

// Flush writes all buffered events.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	err := r.flushLocked()
	if err == nil {
		err, r.lastErr = r.lastErr, nil
	}
	return err
}

func (r *Recorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("trace: begin: %w", err)
	}
	stmt, err := tx.Prepare(insertTransfer)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("trace: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range r.pending {
		var errText sql.NullString
		if ev.Err != nil {
			errText = sql.NullString{String: ev.Err.Error(), Valid: true}
		}
		_, err := stmt.Exec(
			ev.Session,
			ev.Op,
			nullable(ev.Resource),
			int64(ev.Address),
			ev.Bytes,
			ev.Elements,
			ev.Start.UnixNano(),
			ev.Duration.Nanoseconds(),
			errText,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("trace: insert %s: %w", ev.Op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("trace: commit: %w", err)
	}
	r.log.Debug("flushed", "events", len(r.pending))
	r.pending = r.pending[:0]
	return nil
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// Close flushes and releases the database when New opened it.
func (r *Recorder) Close() error {
	untrack(r)
	err := r.Flush()
	if errors.Is(err, ErrRecorderClosed) {
		return nil
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	if r.ownsDB {
		if cerr := r.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
