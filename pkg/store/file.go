package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/orneryd/mimirkb/pkg/entry"
)

// entryExt is the on-disk file extension for entry documents.
const entryExt = ".json"

// FileStore stores one JSON document per entry under a root directory.
//
// The entry path maps directly onto the filesystem: the entry at
// "databases/pooling" lives at <root>/databases/pooling.json. Parent
// directories are created on demand by Write; Delete prunes directories
// that become empty so moves do not leave husks behind.
//
// Writes go through a temp file + rename, which is as atomic as the
// underlying filesystem makes a single-file replace. There is no
// multi-file transaction and no write-ahead log; the engine layers its
// best-effort consistency policy on top.
//
// Files whose name matches ReservedFileName, and dotfiles, are invisible
// to ListAll.
type FileStore struct {
	root   string
	mu     sync.RWMutex
	closed bool
}

// NewFileStore opens (or creates) a file-backed store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store root directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store root: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving store root: %w", err)
	}
	return &FileStore{root: abs}, nil
}

// filePath maps a normalized entry path to its on-disk location.
func (s *FileStore) filePath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path)+entryExt)
}

// Exists reports whether an entry document is present at path.
func (s *FileStore) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	p, err := NormalizePath(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(s.filePath(p))
	return err == nil && !info.IsDir()
}

// Read loads and decodes the entry at path.
func (s *FileStore) Read(path string) (*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	p, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.filePath(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}

	var e entry.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, p, err)
	}
	e.Path = p
	return &e, nil
}

// Write encodes and stores the entry at path, creating parent directories
// as needed. The write replaces any existing document via temp file +
// rename.
func (s *FileStore) Write(path string, e *entry.Entry) error {
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
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", p, err)
	}

	target := s.filePath(p)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent directories for %s: %w", p, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".entry-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", p, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w", p, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", p, err)
	}
	return nil
}

// Delete removes the entry document at path and prunes empty parent
// directories up to the store root.
func (s *FileStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	target := s.filePath(p)
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting %s: %w", p, err)
	}

	// Prune now-empty directories. Stop at the first non-empty one.
	for dir := filepath.Dir(target); dir != s.root; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

// ListAll walks the store root and returns every entry path. The reserved
// control file and dotfiles are skipped, as are non-entry files.
func (s *FileStore) ListAll() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: skip it, the scan is best-effort.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if name == ReservedFileName || strings.HasPrefix(name, ".") {
			return nil
		}
		if !strings.HasSuffix(name, entryExt) {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), entryExt)
		paths = append(paths, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning store: %w", err)
	}
	return paths, nil
}

// Root returns the absolute store root directory.
func (s *FileStore) Root() string {
	return s.root
}

// Close marks the store closed. FileStore holds no open handles between
// calls, so this only flips the flag.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
