package tiles

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

// Cache is a concurrency-safe LRU cache of tile bodies with TTL expiry.
// Expiry is checked against an injected clock on read.
type Cache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	clock   clockwork.Clock
}

type cacheEntry struct {
	data        []byte
	contentType string
	storedAt    time.Time
}

// NewCache creates a tile cache holding at most maxEntries tiles for ttl each.
func NewCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxEntries <= 0 {
		maxEntries = 1
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, cacheEntry](maxEntries)
	return &Cache{entries: entries, ttl: ttl, clock: clock}
}

func cacheKey(layer string, z, x, y int) string {
	return fmt.Sprintf("%s/%d/%d/%d", layer, z, x, y)
}

// Get returns a cached tile and its content type. Expired entries are
// dropped and reported as misses.
func (c *Cache) Get(layer string, z, x, y int) ([]byte, string, bool) {
	key := cacheKey(layer, z, x, y)

	e, ok := c.entries.Get(key)
	if !ok {
		return nil, "", false
	}
	if c.clock.Since(e.storedAt) > c.ttl {
		c.entries.Remove(key)
		return nil, "", false
	}
	return e.data, e.contentType, true
}

// Put stores a tile, evicting the least recently used entry when full.
func (c *Cache) Put(layer string, z, x, y int, data []byte, contentType string) {
	c.entries.Add(cacheKey(layer, z, x, y), cacheEntry{
		data:        data,
		contentType: contentType,
		storedAt:    c.clock.Now(),
	})
}

// Len returns the number of cached tiles, expired ones included until read.
func (c *Cache) Len() int {
	return c.entries.Len()
}
