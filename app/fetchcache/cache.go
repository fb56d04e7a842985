package fetchcache

import (
	"sync"
	"time"
)

// Cache is a bounded-lifetime in-memory response cache keyed by URL.
// The clock is injectable so tests can control expiry deterministically.
type Cache struct {
	ttl     time.Duration
	clock   func() time.Time
	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	data     []byte
	storedAt time.Time
}

func New(ttl time.Duration) *Cache {
	return NewWithClock(ttl, time.Now)
}

func NewWithClock(ttl time.Duration, clock func() time.Time) *Cache {
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry),
	}
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.data, true
}

func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{data: data, storedAt: c.clock()}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
