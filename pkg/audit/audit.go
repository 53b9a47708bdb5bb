// Package audit provides an append-only mutation audit trail for MimirKB.
//
// Every successful Create, Update, Delete, and Move can be recorded as one
// JSON line in an append-only log file. The logger consumes events from a
// notify.Registry subscription, so audit failures live entirely outside
// the mutation path: the engine never waits on the audit log, and a full
// audit buffer degrades to dropped audit records, never to failed writes.
//
// Example Usage:
//
//	logger, err := audit.NewLogger(audit.Config{LogPath: "./audit.jsonl"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer logger.Close()
//
//	registry := notify.NewRegistry()
//	events, cancel := registry.Subscribe()
//	defer cancel()
//	go logger.Consume(events)
//
//	// ...wire registry into kb.Config.Sink...
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/orneryd/mimirkb/pkg/notify"
)

// Record is one audit trail entry, serialized as a JSON line.
type Record struct {
	// EventID ties the record back to the notification event.
	EventID string `json:"event_id"`

	// Time is when the mutation was recorded.
	Time time.Time `json:"time"`

	// Kind is the mutation type: created, updated, deleted, moved.
	Kind string `json:"kind"`

	// Path is the entry path mutated (destination path for moves).
	Path string `json:"path"`

	// OldPath is the vacated path, set for moves only.
	OldPath string `json:"old_path,omitempty"`
}

// Config configures the audit logger.
type Config struct {
	// LogPath is the audit log file. Parent directories are created.
	// Ignored when a writer is supplied via NewLoggerWithWriter.
	LogPath string
}

// Logger appends mutation records to an audit log.
//
// Log entries are append-only; the logger never rewrites or truncates the
// file. Safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
}

// NewLogger opens (or creates) the audit log file in append mode.
func NewLogger(config Config) (*Logger, error) {
	if config.LogPath == "" {
		return nil, fmt.Errorf("audit log path required")
	}
	if err := os.MkdirAll(filepath.Dir(config.LogPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	f, err := os.OpenFile(config.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{w: f, closer: f}, nil
}

// NewLoggerWithWriter creates a logger over an arbitrary writer. Used in
// tests and when the caller manages the log destination.
func NewLoggerWithWriter(w io.Writer) *Logger {
	return &Logger{w: w}
}

// Log appends one record.
func (l *Logger) Log(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("audit logger closed")
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}
	if _, err := l.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	return nil
}

// Consume drains a notification subscription into the audit log until the
// channel closes. Run it in its own goroutine. Write failures are counted
// and reported by the return value but do not stop consumption.
func (l *Logger) Consume(events <-chan notify.Event) (dropped int) {
	for ev := range events {
		rec := Record{
			EventID: ev.ID,
			Time:    ev.At,
			Kind:    string(ev.Kind),
			Path:    ev.Path,
			OldPath: ev.OldPath,
		}
		if err := l.Log(rec); err != nil {
			dropped++
		}
	}
	return dropped
}

// Close closes the underlying file, if the logger owns one.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Query filters audit records on read-back.
type Query struct {
	// Since/Until bound the record time, inclusive. Zero means unbounded.
	Since time.Time
	Until time.Time

	// Kinds restricts to the given mutation kinds. Empty means all.
	Kinds []string

	// Path restricts to records touching this entry path (Path or OldPath).
	Path string
}

// Reader reads an audit log back for inspection.
type Reader struct {
	path string
}

// NewReader creates a reader over the given audit log file.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Query scans the log and returns every record matching q, oldest first.
// Unparseable lines are skipped; an audit log damaged in the middle still
// yields everything readable around the damage.
func (r *Reader) Query(q Query) ([]Record, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var out []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if !q.Since.IsZero() && rec.Time.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && rec.Time.After(q.Until) {
			continue
		}
		if len(q.Kinds) > 0 && !containsKind(q.Kinds, rec.Kind) {
			continue
		}
		if q.Path != "" && rec.Path != q.Path && rec.OldPath != q.Path {
			continue
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("scanning audit log: %w", err)
	}
	return out, nil
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
