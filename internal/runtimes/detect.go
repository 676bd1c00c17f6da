package runtimes

import (
	"sync"
	"time"
)

// detectCache remembers per-session probe outcomes for a short TTL so the
// registration engine can re-check runtime presence without spamming the
// session with probe keystrokes.
type detectCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]detectEntry
}

type detectEntry struct {
	present bool
	at      time.Time
}

func newDetectCache(ttl time.Duration) *detectCache {
	return &detectCache{
		ttl:     ttl,
		entries: make(map[string]detectEntry),
	}
}

// get returns the cached result and whether it is still fresh.
func (c *detectCache) get(session string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[session]
	if !ok || time.Since(e.at) > c.ttl {
		return false, false
	}
	return e.present, true
}

func (c *detectCache) put(session string, present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[session] = detectEntry{present: present, at: time.Now()}
}

func (c *detectCache) invalidate(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, session)
}
