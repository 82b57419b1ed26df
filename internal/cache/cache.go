// Package cache provides the process-wide response cache: an in-memory
// keyed store with a fixed time-to-live, holding either structured JSON
// payloads or binary blobs. Nothing survives a restart.
package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long an entry stays servable, measured from write time
// regardless of reads.
const DefaultTTL = time.Hour

// Clock supplies the current time. Injected so tests can drive expiry
// deterministically.
type Clock func() time.Time

// Cache is a mutex-guarded TTL map. One instance is shared per process,
// constructed at the composition root and passed by reference.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*item
	ttl   time.Duration
	now   Clock
}

type item struct {
	payload   json.RawMessage
	blob      []byte
	createdAt time.Time
}

// New creates a cache with the given TTL and clock. A zero ttl means
// DefaultTTL; a nil clock means time.Now.
func New(ttl time.Duration, now Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		items: make(map[string]*item),
		ttl:   ttl,
		now:   now,
	}
}

// Get returns the JSON payload stored under key, if present and unexpired.
// Expired entries are evicted on read.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	it, ok := c.lookup(key)
	if !ok || it.payload == nil {
		return nil, false
	}
	return it.payload, true
}

// Put stores a JSON payload under key, stamping it with the current time.
func (c *Cache) Put(key string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &item{payload: payload, createdAt: c.now()}
}

// GetBlob returns the binary blob stored under key, if present and unexpired.
func (c *Cache) GetBlob(key string) ([]byte, bool) {
	it, ok := c.lookup(key)
	if !ok || it.blob == nil {
		return nil, false
	}
	return it.blob, true
}

// PutBlob stores a binary blob under key.
func (c *Cache) PutBlob(key string, blob []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &item{blob: blob, createdAt: c.now()}
}

// Delete removes an entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*item)
}

// lookup fetches an entry and applies the read-time expiry check, lazily
// evicting expired entries.
func (c *Cache) lookup(key string) (*item, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(it.createdAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a fresh Put may have replaced it.
		if cur, still := c.items[key]; still && cur == it {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return it, true
}

// ChatKey derives the cache key for a chat reply from the session identity
// and the message text.
func ChatKey(sessionID, message string) string {
	return "chat:" + sessionID + ":" + message
}

// DocumentKey derives the cache key for a generated document.
func DocumentKey(estimateID string) string {
	return "pdf:" + estimateID
}

// dynamicKeywords mark messages that solicit fresh pricing data; replies to
// those must never be served from cache.
var dynamicKeywords = []string{"cost", "estimate", "price", "timeline"}

// Cacheable reports whether a chat message's reply may be cached. Messages
// referencing cost, estimate, price, or timeline bypass the cache
// unconditionally.
func Cacheable(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range dynamicKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}
