// Package kb implements the MimirKB entry graph engine.
//
// The engine manages a collection of knowledge entries — small structured
// documents keyed by hierarchical path — connected into a graph by typed
// relations. It orchestrates the entry store, the link synchronizer, and
// the store-wide reference rewriter so that the graph's referential
// integrity survives mutations without a database engine underneath:
// storage is one document per entry, and there is no multi-file
// transaction.
//
// Consistency model:
//   - Primary mutations are strict: NotFound, Conflict, ValidationError,
//     and Malformed on the operation's own target abort before any write.
//   - Side effects are best-effort: mirror maintenance for symmetric
//     relation kinds and store-wide reference rewriting tolerate per-entry
//     failures, which are reported as Warnings on an otherwise successful
//     result. Availability over consistency, repaired later by
//     RepairMirrors.
//   - Concurrent mutators race last-writer-wins. The engine adds no
//     locking or optimistic concurrency between callers; this is an
//     accepted limitation, not a bug.
//
// Example Usage:
//
//	k, err := kb.Open("./knowledge", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer k.Close()
//
//	res, err := k.Create(ctx, "databases/pooling", &entry.Entry{
//		Priority: entry.PriorityHigh,
//		Problem:  "Connection exhaustion under load",
//		Solution: "Use a pooler in transaction mode",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, w := range res.Warnings {
//		log.Printf("degraded: %s", w)
//	}
//
//	tree, err := k.ReadWithDepth(ctx, "databases/pooling", 3)
package kb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/orneryd/mimirkb/pkg/entry"
	"github.com/orneryd/mimirkb/pkg/metrics"
	"github.com/orneryd/mimirkb/pkg/notify"
	"github.com/orneryd/mimirkb/pkg/store"
)

// Config holds engine configuration.
//
// Zero values are usable; DefaultConfig fills in the documented defaults.
type Config struct {
	// MaxTraversalDepth caps ReadWithDepth regardless of what the caller
	// asks for. Guards against runaway expansion on dense graphs.
	MaxTraversalDepth int `yaml:"max_traversal_depth"`

	// MoveRetryLimit bounds collision-resolution attempts during Move.
	MoveRetryLimit int `yaml:"move_retry_limit"`

	// Sink receives an event after every successful mutation.
	// Defaults to notify.NopSink.
	Sink notify.Sink `yaml:"-"`

	// Metrics receives operation counts and durations.
	// Defaults to metrics.Noop.
	Metrics metrics.Collector `yaml:"-"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxTraversalDepth: 10,
		MoveRetryLimit:    5,
	}
}

// KB is the entry graph engine.
//
// All methods are safe for concurrent use. The mutex guards lifecycle
// (open/closed) only; it deliberately does not serialize mutations against
// each other — see the package comment for the concurrency model.
type KB struct {
	store   store.Store
	sink    notify.Sink
	metrics metrics.Collector
	config  *Config

	mu     sync.RWMutex
	closed bool
}

// Open opens a knowledge base backed by a file store rooted at dir.
//
// Each entry is one JSON document under dir; the directory tree is the
// database. Pass nil config for defaults.
func Open(dir string, config *Config) (*KB, error) {
	st, err := store.NewFileStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return New(st, config), nil
}

// New creates an engine over an explicit store. Used directly in tests
// (with store.MemoryStore) and when the caller manages the store backend
// itself (e.g. store.BadgerStore).
func New(st store.Store, config *Config) *KB {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.MaxTraversalDepth <= 0 {
		cfg.MaxTraversalDepth = 10
	}
	if cfg.MoveRetryLimit <= 0 {
		cfg.MoveRetryLimit = 5
	}
	if cfg.Sink == nil {
		cfg.Sink = notify.NopSink{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	return &KB{
		store:   st,
		sink:    cfg.Sink,
		metrics: cfg.Metrics,
		config:  &cfg,
	}
}

// Store exposes the backing store. Collaborators (importers, exporters)
// use it for raw access; engine invariants only hold for paths they do not
// touch concurrently.
func (k *KB) Store() store.Store {
	return k.store
}

// Close closes the engine and its backing store.
func (k *KB) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.store.Close()
}

// guard returns ErrClosed once Close has been called.
func (k *KB) guard() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return ErrClosed
	}
	return nil
}

// Get reads a single entry without expanding relations.
func (k *KB) Get(ctx context.Context, path string) (*entry.Entry, error) {
	if err := k.guard(); err != nil {
		return nil, err
	}
	p, err := store.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	e, err := k.store.Read(p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, err
	}
	return e, nil
}

// Exists reports whether an entry is stored at path.
func (k *KB) Exists(path string) bool {
	if err := k.guard(); err != nil {
		return false
	}
	p, err := store.NormalizePath(path)
	if err != nil {
		return false
	}
	return k.store.Exists(p)
}

// List returns every entry path in the store. Order is unspecified.
func (k *KB) List(ctx context.Context) ([]string, error) {
	if err := k.guard(); err != nil {
		return nil, err
	}
	return k.store.ListAll()
}

// Stats summarizes the store.
type Stats struct {
	Entries       int            `json:"entries"`
	Relations     int            `json:"relations"`
	RelationKinds map[string]int `json:"relation_kinds,omitempty"`
}

// Stats scans the store and returns entry and relation counts. Unreadable
// entries are skipped; a stats pass never fails on a single bad document.
func (k *KB) Stats(ctx context.Context) (*Stats, error) {
	if err := k.guard(); err != nil {
		return nil, err
	}
	paths, err := k.store.ListAll()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Entries: len(paths), RelationKinds: make(map[string]int)}
	for _, p := range paths {
		e, err := k.store.Read(p)
		if err != nil {
			continue
		}
		stats.Relations += len(e.RelatedTo)
		for _, rel := range e.RelatedTo {
			stats.RelationKinds[string(rel.Kind)]++
		}
	}
	k.metrics.SetEntryCount(int64(stats.Entries))
	return stats, nil
}

// notifyMutation emits a fire-and-forget event. The sink contract
// guarantees it never blocks or errors; slow consumers are the sink's
// problem, not the mutation's.
func (k *KB) notifyMutation(kind notify.EventKind, path, oldPath string) {
	ev := notify.NewEvent(kind, path)
	ev.OldPath = oldPath
	k.sink.Notify(ev)
}
