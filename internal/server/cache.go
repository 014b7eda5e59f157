package server

import (
	"sync"
	"sync/atomic"
	"time"
)

// ResponseCache is a concurrent-safe LRU cache of rendered responses keyed by
// request URI, with TTL expiration.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]*cachedResponse
	order      []string // front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type cachedResponse struct {
	contentType string
	body        []byte
	storedAt    time.Time
}

// CacheStats reports cache usage.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewResponseCache creates a cache holding at most maxEntries responses for ttl.
func NewResponseCache(maxEntries int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries:    make(map[string]*cachedResponse),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get returns a cached response, or ok=false on miss or expiry.
func (c *ResponseCache) Get(key string) (contentType string, body []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found {
		c.misses.Add(1)
		return "", nil, false
	}
	if time.Since(e.storedAt) > c.ttl {
		delete(c.entries, key)
		c.remove(key)
		c.misses.Add(1)
		return "", nil, false
	}

	c.remove(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return e.contentType, e.body, true
}

// Put stores a response, evicting the least recently used entry when full.
func (c *ResponseCache) Put(key, contentType string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.entries[key]; found {
		c.remove(key)
	}
	for len(c.order) > 0 && len(c.entries) >= c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &cachedResponse{contentType: contentType, body: body, storedAt: time.Now()}
	c.order = append(c.order, key)
}

// Purge drops every entry. Counters are kept.
func (c *ResponseCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cachedResponse)
	c.order = nil
}

// Stats returns cache usage counters.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    rate,
	}
}

func (c *ResponseCache) remove(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
