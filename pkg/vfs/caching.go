package vfs

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// CacheStats exposes the caching provider's counters. Hits, misses and
// evictions are monotonic; the current-* values track live state.
type CacheStats struct {
	Hits             uint64
	Misses           uint64
	Evictions        uint64
	CurrentEntries   int64
	CurrentSizeBytes int64
}

// CachingProvider decorates a FileProvider with a TTL plus byte-bounded LRU
// cache for remote reads. Local reads, existence checks and listings always
// pass through so callers never observe stale directory state.
type CachingProvider struct {
	inner FileProvider

	ttl           time.Duration
	maxSizeBytes  int64 // per entry
	maxTotalBytes int64

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	curCount  atomic.Int64
	curBytes  atomic.Int64

	now func() time.Time
}

type cacheEntry struct {
	path       string
	content    []byte
	expiresAt  time.Time
	lastAccess time.Time
}

// NewCachingProvider decorates inner. maxSizeBytes bounds a single entry;
// maxTotalBytes bounds the cache.
func NewCachingProvider(inner FileProvider, ttl time.Duration, maxSizeBytes, maxTotalBytes int64) *CachingProvider {
	return &CachingProvider{
		inner:         inner,
		ttl:           ttl,
		maxSizeBytes:  maxSizeBytes,
		maxTotalBytes: maxTotalBytes,
		entries:       map[string]*list.Element{},
		lru:           list.New(),
		now:           time.Now,
	}
}

// ReadFile implements FileProvider.
func (c *CachingProvider) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if !IsRemotePath(path) {
		return c.inner.ReadFile(ctx, path)
	}

	c.mu.Lock()
	if el, ok := c.entries[path]; ok {
		entry := el.Value.(*cacheEntry)
		if c.now().Before(entry.expiresAt) {
			entry.lastAccess = c.now()
			c.lru.MoveToFront(el)
			content := entry.content
			c.mu.Unlock()
			c.hits.Add(1)
			return content, nil
		}
		c.removeLocked(el)
	}
	c.mu.Unlock()
	c.misses.Add(1)

	content, err := c.inner.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}

	size := int64(len(content))
	if size <= c.maxSizeBytes {
		c.mu.Lock()
		// The entry may have been inserted by a concurrent reader.
		if el, ok := c.entries[path]; ok {
			c.removeLocked(el)
		}
		for c.curBytes.Load()+size > c.maxTotalBytes && c.lru.Len() > 0 {
			c.removeLocked(c.lru.Back())
			c.evictions.Add(1)
		}
		el := c.lru.PushFront(&cacheEntry{
			path:       path,
			content:    content,
			expiresAt:  c.now().Add(c.ttl),
			lastAccess: c.now(),
		})
		c.entries[path] = el
		c.curCount.Add(1)
		c.curBytes.Add(size)
		c.mu.Unlock()
	}

	return content, nil
}

// removeLocked drops an entry; the cache mutex must be held.
func (c *CachingProvider) removeLocked(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.lru.Remove(el)
	delete(c.entries, entry.path)
	c.curCount.Add(-1)
	c.curBytes.Add(-int64(len(entry.content)))
}

// FileExists implements FileProvider; never cached.
func (c *CachingProvider) FileExists(ctx context.Context, path string) (bool, error) {
	return c.inner.FileExists(ctx, path)
}

// ListFiles implements FileProvider; never cached.
func (c *CachingProvider) ListFiles(ctx context.Context, dir, pattern string) ([]string, error) {
	return c.inner.ListFiles(ctx, dir, pattern)
}

// Stats returns a snapshot of the counters.
func (c *CachingProvider) Stats() CacheStats {
	return CacheStats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		Evictions:        c.evictions.Load(),
		CurrentEntries:   c.curCount.Load(),
		CurrentSizeBytes: c.curBytes.Load(),
	}
}
