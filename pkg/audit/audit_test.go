package audit

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mimirkb/pkg/notify"
)

func TestLoggerLog(t *testing.T) {
	t.Run("appends one JSON line per record", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLoggerWithWriter(&buf)

		require.NoError(t, l.Log(Record{EventID: "e1", Kind: "created", Path: "a"}))
		require.NoError(t, l.Log(Record{EventID: "e2", Kind: "deleted", Path: "a"}))

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.Len(t, lines, 2)

		var rec Record
		require.NoError(t, json.Unmarshal(lines[0], &rec))
		assert.Equal(t, "e1", rec.EventID)
		assert.Equal(t, "created", rec.Kind)
		assert.False(t, rec.Time.IsZero(), "missing timestamp is stamped")
	})

	t.Run("rejects writes after close", func(t *testing.T) {
		l := NewLoggerWithWriter(&bytes.Buffer{})
		require.NoError(t, l.Close())
		assert.Error(t, l.Log(Record{Kind: "created", Path: "a"}))
	})
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "audit.jsonl")

	l, err := NewLogger(Config{LogPath: path})
	require.NoError(t, err, "parent directories are created")
	require.NoError(t, l.Log(Record{EventID: "e1", Kind: "created", Path: "a"}))
	require.NoError(t, l.Close())

	// Reopening appends rather than truncating.
	l, err = NewLogger(Config{LogPath: path})
	require.NoError(t, err)
	require.NoError(t, l.Log(Record{EventID: "e2", Kind: "updated", Path: "a"}))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, bytes.Split(bytes.TrimSpace(data), []byte("\n")), 2)
}

func TestNewLoggerRequiresPath(t *testing.T) {
	_, err := NewLogger(Config{})
	assert.Error(t, err)
}

func TestConsume(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	registry := notify.NewRegistry()
	events, cancel := registry.Subscribe()

	done := make(chan int, 1)
	go func() { done <- l.Consume(events) }()

	registry.Notify(notify.NewEvent(notify.EventCreated, "a"))
	moved := notify.NewEvent(notify.EventMoved, "b/new")
	moved.OldPath = "b/old"
	registry.Notify(moved)

	cancel() // closes the subscription, Consume returns
	dropped := <-done
	assert.Zero(t, dropped)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var rec Record
	require.NoError(t, json.Unmarshal(lines[1], &rec))
	assert.Equal(t, "moved", rec.Kind)
	assert.Equal(t, "b/new", rec.Path)
	assert.Equal(t, "b/old", rec.OldPath)
	assert.Equal(t, moved.ID, rec.EventID)
}

func TestReaderQuery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	l, err := NewLogger(Config{LogPath: path})
	require.NoError(t, err)
	require.NoError(t, l.Log(Record{EventID: "e1", Time: base, Kind: "created", Path: "a"}))
	require.NoError(t, l.Log(Record{EventID: "e2", Time: base.Add(time.Hour), Kind: "updated", Path: "a"}))
	require.NoError(t, l.Log(Record{EventID: "e3", Time: base.Add(2 * time.Hour), Kind: "moved", Path: "b/new", OldPath: "b/old"}))
	require.NoError(t, l.Close())

	// Damage the middle of the log.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := NewReader(path)

	t.Run("unfiltered returns everything parseable", func(t *testing.T) {
		recs, err := r.Query(Query{})
		require.NoError(t, err)
		assert.Len(t, recs, 3)
	})

	t.Run("by kind", func(t *testing.T) {
		recs, err := r.Query(Query{Kinds: []string{"created", "moved"}})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "e1", recs[0].EventID)
		assert.Equal(t, "e3", recs[1].EventID)
	})

	t.Run("by time window", func(t *testing.T) {
		recs, err := r.Query(Query{Since: base.Add(30 * time.Minute), Until: base.Add(90 * time.Minute)})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "e2", recs[0].EventID)
	})

	t.Run("by path matches old path too", func(t *testing.T) {
		recs, err := r.Query(Query{Path: "b/old"})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "e3", recs[0].EventID)
	})

	t.Run("missing log file", func(t *testing.T) {
		_, err := NewReader(filepath.Join(dir, "absent.jsonl")).Query(Query{})
		assert.Error(t, err)
	})
}
