// Package store provides entry storage implementations for MimirKB.
//
// The store is a keyed document store: one entry per path, where the path
// is simultaneously the entry's primary key and (for the file-backed
// implementation) its location on disk. The package defines the Store
// interface and three implementations:
//
//   - FileStore: one JSON document per entry under a root directory. This
//     is the primary backend; the directory tree IS the database.
//   - MemoryStore: in-memory storage for tests and ephemeral use.
//   - BadgerStore: persistent single-database alternative backed by
//     BadgerDB, with optional at-rest encryption.
//
// All implementations are thread-safe at the single-call granularity. There
// is deliberately no caching and no cross-call transaction: every Read hits
// the backing store, and two operations against the same path observe a
// consistent view only as of their own read. Multi-entry consistency is the
// engine's (best-effort) job, not the store's.
//
// Example Usage:
//
//	st, err := store.NewFileStore("./knowledge")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	e := &entry.Entry{
//		Priority: entry.PriorityHigh,
//		Problem:  "...",
//		Solution: "...",
//	}
//	if err := st.Write("databases/pooling", e); err != nil {
//		log.Fatal(err)
//	}
//
//	paths, _ := st.ListAll()
//	fmt.Printf("%d entries\n", len(paths))
package store

import (
	"errors"
	"strings"

	"github.com/orneryd/mimirkb/pkg/entry"
)

// Errors returned by Store implementations.
var (
	// ErrNotFound means no entry exists at the requested path.
	ErrNotFound = errors.New("entry not found")

	// ErrMalformed means stored bytes exist at the path but do not decode
	// into a valid Entry.
	ErrMalformed = errors.New("malformed entry document")

	// ErrInvalidPath means the path is empty, escapes the store root, or
	// contains forbidden elements.
	ErrInvalidPath = errors.New("invalid entry path")

	// ErrStoreClosed means the store has been closed.
	ErrStoreClosed = errors.New("store closed")
)

// ReservedFileName is the store-level control file skipped by ListAll.
// Store configuration is a collaborator concern; the engine only promises
// never to treat the control file as an entry.
const ReservedFileName = "mimirkb.yaml"

// Store is keyed get/put/delete/exists over one entry document per path.
//
// Implementations MUST be safe for concurrent use and MUST NOT cache entry
// content across calls. Write overwrites atomically at whatever single-file
// granularity the backing medium provides; there is no multi-path
// transaction.
type Store interface {
	// Exists reports whether an entry is stored at path.
	Exists(path string) bool

	// Read returns the entry at path. Returns ErrNotFound if absent and
	// ErrMalformed (wrapped with detail) if the stored bytes do not decode.
	Read(path string) (*entry.Entry, error)

	// Write stores the entry at path, creating any missing parent
	// containers and overwriting an existing entry. The entry's Path field
	// is set to the normalized path.
	Write(path string, e *entry.Entry) error

	// Delete removes the entry at path. Returns ErrNotFound if absent.
	Delete(path string) error

	// ListAll returns the paths of every stored entry. Order is
	// unspecified; callers must not depend on it.
	ListAll() ([]string, error)

	// Close releases backing resources. Calls after Close return
	// ErrStoreClosed.
	Close() error
}

// NormalizePath canonicalizes an entry path: forward slashes only,
// lowercased, no leading/trailing slashes, no empty or dot segments.
//
// Paths are case-normalized so that the key is stable across
// case-insensitive filesystems. Returns ErrInvalidPath for empty paths and
// for anything that would escape the store root.
func NormalizePath(path string) (string, error) {
	p := strings.ReplaceAll(path, "\\", "/")
	p = strings.ToLower(strings.TrimSpace(p))
	p = strings.Trim(p, "/")
	if p == "" {
		return "", ErrInvalidPath
	}

	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		seg = strings.TrimSpace(seg)
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidPath
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return "", ErrInvalidPath
	}
	return strings.Join(out, "/"), nil
}
