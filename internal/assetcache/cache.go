// Package assetcache provides a content-addressed in-memory cache for
// downloaded assets and transcription results. Entries are pinned by
// reference count while a job uses them, deduplicated per key with
// single-flight, and evicted least-recently-used once unpinned.
package assetcache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNilFetch is returned when GetOrFetch is called without a fetch function.
var ErrNilFetch = errors.New("assetcache: fetch function is nil")

// FetchFunc obtains the payload for a key on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Entry is one cached artifact. The payload is immutable once stored;
// a changed source always produces a new key.
type Entry struct {
	// Key is the content fingerprint of the source.
	Key string
	// Payload is the cached bytes.
	Payload []byte

	lastAccess time.Time
	refs       int
	elem       *list.Element
}

// Size returns the payload size in bytes.
func (e *Entry) Size() int64 {
	return int64(len(e.Payload))
}

// Fingerprint computes a stable cache key from a source locator and any
// transformation parameters.
func Fingerprint(source string, params ...string) string {
	h := sha256.New()
	h.Write([]byte(source))
	if len(params) > 0 {
		h.Write([]byte("|" + strings.Join(params, "|")))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is a bounded LRU store keyed by content fingerprint.
// Concurrent callers of the same uncached key share one underlying fetch.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	lru      *list.List // front = most recently used
	total    int64
	maxBytes int64
	group    singleflight.Group
	logger   *slog.Logger
}

// New creates a Cache bounded to maxBytes of payload.
// maxBytes <= 0 disables eviction.
func New(maxBytes int64, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries:  make(map[string]*Entry),
		lru:      list.New(),
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// GetOrFetch returns the cached entry for key, fetching it if absent.
// The returned entry is pinned for the caller; Release must be called when
// the caller is done with the payload. A burst of concurrent calls on a cold
// key triggers exactly one fetch. Fetch failures store nothing and propagate.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) (*Entry, error) {
	if fetch == nil {
		return nil, ErrNilFetch
	}

	if e := c.pin(key); e != nil {
		return e, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under single-flight: an earlier flight may have stored it.
		if e := c.pinlessLookup(key); e != nil {
			return e, nil
		}

		payload, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return c.insert(key, payload), nil
	})
	if err != nil {
		return nil, err
	}

	e := v.(*Entry)
	// Pin for this caller. The entry may already have been evicted if an
	// unpinned sibling flight result aged out, so fall back to re-inserting.
	if pinned := c.pin(e.Key); pinned != nil {
		return pinned, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(e)
	e.refs++
	return e, nil
}

// Release unpins an entry obtained from GetOrFetch.
func (c *Cache) Release(e *Entry) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[e.Key]; ok && cur == e && cur.refs > 0 {
		cur.refs--
	}
	c.evictLocked()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TotalBytes returns the sum of cached payload sizes.
func (c *Cache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// pin returns the entry for key with its ref count incremented, or nil on miss.
func (c *Cache) pin(key string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	e.refs++
	c.touch(e)
	return e
}

// pinlessLookup returns the entry for key without pinning (single-flight path;
// the caller pins after the flight resolves).
func (c *Cache) pinlessLookup(key string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

// insert stores a fetched payload and returns its entry (unpinned).
func (c *Cache) insert(key string, payload []byte) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &Entry{Key: key, Payload: payload}
	c.store(e)
	c.evictLocked()
	return e
}

// store places an entry into the map and LRU list. Caller holds the lock.
func (c *Cache) store(e *Entry) {
	if old, ok := c.entries[e.Key]; ok {
		c.total -= old.Size()
		c.lru.Remove(old.elem)
	}
	e.lastAccess = time.Now()
	e.elem = c.lru.PushFront(e)
	c.entries[e.Key] = e
	c.total += e.Size()
}

// touch marks an entry as most recently used. Caller holds the lock.
func (c *Cache) touch(e *Entry) {
	e.lastAccess = time.Now()
	c.lru.MoveToFront(e.elem)
}

// evictLocked removes least-recently-used unpinned entries until the cache
// fits its byte budget. If every entry is pinned the newest insertion is
// allowed to exceed the budget rather than failing the request.
func (c *Cache) evictLocked() {
	if c.maxBytes <= 0 {
		return
	}
	for c.total > c.maxBytes {
		victim := c.oldestEvictable()
		if victim == nil {
			return
		}
		c.lru.Remove(victim.elem)
		delete(c.entries, victim.Key)
		c.total -= victim.Size()
		c.logger.Debug("cache entry evicted",
			slog.String("key", victim.Key),
			slog.Int64("size", victim.Size()),
		)
	}
}

// oldestEvictable returns the least-recently-used entry with no pins.
// Caller holds the lock.
func (c *Cache) oldestEvictable() *Entry {
	for elem := c.lru.Back(); elem != nil; elem = elem.Prev() {
		e := elem.Value.(*Entry)
		if e.refs == 0 {
			return e
		}
	}
	return nil
}
