package store

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orneryd/mimirkb/pkg/entry"
)

// CachedStore wraps another Store with an in-memory LRU read cache.
//
// The engine's reference rewriter and traversal both re-read the same
// documents repeatedly; for the file backend every one of those reads is a
// decode from disk. The cache keeps recently read entries decoded, bounded
// by maxSize with LRU eviction and an optional TTL so externally modified
// files are picked up eventually.
//
// Writes and deletes go straight through to the backing store and
// invalidate the cached copy, so a caller always reads its own writes.
// Entries are cloned on the way in and out; cache hits are as isolated as
// backing-store reads.
//
// Example:
//
//	fs, _ := store.NewFileStore("./knowledge")
//	st := store.NewCachedStore(fs, 256, time.Minute)
type CachedStore struct {
	backing Store

	mu      sync.RWMutex
	maxSize int
	ttl     time.Duration
	list    *list.List
	items   map[string]*list.Element

	hits   uint64
	misses uint64
}

// lruEntry is one cached document plus its LRU bookkeeping.
type lruEntry struct {
	path      string
	entry     *entry.Entry
	expiresAt time.Time
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size"`
}

// NewCachedStore wraps backing with an LRU read cache.
//
// maxSize bounds the number of cached entries; values below 1 fall back to
// 256. ttl of 0 disables expiration and leaves only LRU eviction.
func NewCachedStore(backing Store, maxSize int, ttl time.Duration) *CachedStore {
	if maxSize < 1 {
		maxSize = 256
	}
	return &CachedStore{
		backing: backing,
		maxSize: maxSize,
		ttl:     ttl,
		list:    list.New(),
		items:   make(map[string]*list.Element, maxSize),
	}
}

func (c *CachedStore) Exists(path string) bool {
	p, err := NormalizePath(path)
	if err != nil {
		return false
	}
	c.mu.RLock()
	_, ok := c.items[p]
	c.mu.RUnlock()
	if ok {
		return true
	}
	return c.backing.Exists(p)
}

// Read returns the cached entry when present and fresh, falling back to
// the backing store and populating the cache on the way out.
func (c *CachedStore) Read(path string) (*entry.Entry, error) {
	p, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}

	if e, ok := c.lookup(p); ok {
		atomic.AddUint64(&c.hits, 1)
		return e, nil
	}
	atomic.AddUint64(&c.misses, 1)

	e, err := c.backing.Read(p)
	if err != nil {
		return nil, err
	}
	c.put(p, e)
	return e, nil
}

func (c *CachedStore) Write(path string, e *entry.Entry) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}
	if err := c.backing.Write(p, e); err != nil {
		return err
	}
	c.invalidate(p)
	return nil
}

func (c *CachedStore) Delete(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}
	if err := c.backing.Delete(p); err != nil {
		return err
	}
	c.invalidate(p)
	return nil
}

// ListAll is a pass-through: path listings are cheap relative to decodes
// and must never go stale.
func (c *CachedStore) ListAll() ([]string, error) {
	return c.backing.ListAll()
}

func (c *CachedStore) Close() error {
	c.Purge()
	return c.backing.Close()
}

// Stats returns a snapshot of the cache counters.
func (c *CachedStore) Stats() CacheStats {
	c.mu.RLock()
	size := c.list.Len()
	c.mu.RUnlock()
	return CacheStats{
		Hits:    atomic.LoadUint64(&c.hits),
		Misses:  atomic.LoadUint64(&c.misses),
		Size:    size,
		MaxSize: c.maxSize,
	}
}

// Purge drops every cached entry. Counters are kept.
func (c *CachedStore) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.Init()
	c.items = make(map[string]*list.Element, c.maxSize)
}

// lookup returns a clone of the cached entry at p, refreshing its LRU
// position. Expired entries are dropped and reported as misses.
func (c *CachedStore) lookup(p string) (*entry.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[p]
	if !ok {
		return nil, false
	}
	ce := elem.Value.(*lruEntry)
	if c.ttl > 0 && time.Now().After(ce.expiresAt) {
		c.removeLocked(elem)
		return nil, false
	}
	c.list.MoveToFront(elem)
	return ce.entry.Clone(), true
}

func (c *CachedStore) put(p string, e *entry.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[p]; ok {
		ce := elem.Value.(*lruEntry)
		ce.entry = e.Clone()
		if c.ttl > 0 {
			ce.expiresAt = time.Now().Add(c.ttl)
		}
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		if oldest := c.list.Back(); oldest != nil {
			c.removeLocked(oldest)
		}
	}

	ce := &lruEntry{path: p, entry: e.Clone()}
	if c.ttl > 0 {
		ce.expiresAt = time.Now().Add(c.ttl)
	}
	c.items[p] = c.list.PushFront(ce)
}

func (c *CachedStore) invalidate(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[p]; ok {
		c.removeLocked(elem)
	}
}

func (c *CachedStore) removeLocked(elem *list.Element) {
	ce := elem.Value.(*lruEntry)
	delete(c.items, ce.path)
	c.list.Remove(elem)
}
