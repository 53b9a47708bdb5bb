package store

import (
	"sync"

	"github.com/orneryd/mimirkb/pkg/entry"
)

// MemoryStore is a thread-safe in-memory Store implementation.
//
// Use Cases:
//   - Unit testing (no disk I/O, fast cleanup)
//   - Ephemeral knowledge stores that never need to survive a restart
//   - Development and prototyping
//
// Entries are deep-copied on the way in and out so callers cannot mutate
// stored state behind the store's back.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry.Entry
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry.Entry)}
}

// Exists reports whether an entry is stored at path.
func (s *MemoryStore) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	p, err := NormalizePath(path)
	if err != nil {
		return false
	}
	_, ok := s.entries[p]
	return ok
}

// Read returns a copy of the entry at path.
func (s *MemoryStore) Read(path string) (*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	p, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	e, ok := s.entries[p]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

// Write stores a copy of the entry at path, overwriting any existing one.
func (s *MemoryStore) Write(path string, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}
	e.Path = p
	stored := e.Clone()
	s.entries[p] = stored
	return nil
}

// Delete removes the entry at path.
func (s *MemoryStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}
	if _, ok := s.entries[p]; !ok {
		return ErrNotFound
	}
	delete(s.entries, p)
	return nil
}

// ListAll returns every stored path in unspecified order.
func (s *MemoryStore) ListAll() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	return paths, nil
}

// Close marks the store closed and drops all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}
