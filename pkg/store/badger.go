package store

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/crypto/pbkdf2"

	"github.com/orneryd/mimirkb/pkg/entry"
)

// Key prefix for entry documents inside BadgerDB. Single byte for
// efficiency; leaves room for future index keyspaces.
const prefixEntry = byte(0x01)

// keyIterations is the pbkdf2 round count for passphrase-derived keys.
const keyIterations = 100_000

// BadgerStore is a persistent Store implementation backed by BadgerDB.
//
// It keeps the same contract as FileStore — keyed entry documents, no
// caching, no multi-entry transaction — but stores everything in a single
// BadgerDB database instead of a directory tree. Useful when the knowledge
// store should travel as one database directory, or when at-rest
// encryption is required (BadgerDB encrypts transparently with a derived
// key; the file-per-entry layout cannot).
//
// Example:
//
//	st, err := store.NewBadgerStore(store.BadgerOptions{
//		DataDir:    "./kb-data",
//		Passphrase: os.Getenv("MIMIRKB_ENCRYPTION_PASSPHRASE"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// BadgerOptions configures the BadgerDB-backed store.
type BadgerOptions struct {
	// DataDir is the directory for the BadgerDB database files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB without persistence. Useful for testing.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more durable.
	SyncWrites bool

	// Passphrase, when non-empty, enables at-rest encryption with an
	// AES-256 key derived from the passphrase via pbkdf2.
	Passphrase string
}

// NewBadgerStore opens (or creates) a BadgerDB-backed store.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if opts.DataDir == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger store requires a data directory")
	}

	badgerOpts := badger.DefaultOptions(opts.DataDir).
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	if opts.Passphrase != "" {
		key := DeriveKey(opts.Passphrase)
		badgerOpts = badgerOpts.WithEncryptionKey(key)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// DeriveKey derives a 32-byte AES-256 key from a passphrase using pbkdf2.
//
// The salt is fixed: the key must be reproducible from the passphrase
// alone on every open, and the threat model is offline disk theft, not
// passphrase-database cracking.
func DeriveKey(passphrase string) []byte {
	salt := []byte("mimirkb.store.v1")
	return pbkdf2.Key([]byte(passphrase), salt, keyIterations, 32, sha256.New)
}

func entryKey(path string) []byte {
	return append([]byte{prefixEntry}, []byte(path)...)
}

// Exists reports whether an entry is stored at path.
func (s *BadgerStore) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	p, err := NormalizePath(path)
	if err != nil {
		return false
	}
	err = s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(entryKey(p))
		return err
	})
	return err == nil
}

// Read returns the entry at path.
func (s *BadgerStore) Read(path string) (*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	p, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}

	var e entry.Entry
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(p))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrMalformed, p, err)
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Path = p
	return &e, nil
}

// Write stores the entry at path, overwriting any existing document.
func (s *BadgerStore) Write(path string, e *entry.Entry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	e.Path = p
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", p, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(p), data)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return nil
}

// Delete removes the entry at path.
func (s *BadgerStore) Delete(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(entryKey(p)); err != nil {
			return err
		}
		return txn.Delete(entryKey(p))
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting %s: %w", p, err)
	}
	return nil
}

// ListAll iterates the entry keyspace and returns every stored path.
func (s *BadgerStore) ListAll() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var paths []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte{prefixEntry}
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			path := string(key[1:])
			if strings.HasSuffix(path, ReservedFileName) {
				continue
			}
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning store: %w", err)
	}
	return paths, nil
}

// Close closes the underlying BadgerDB database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
