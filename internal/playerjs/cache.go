// Package playerjs turns ciphered track descriptors into fetchable URLs by
// extracting and running the signature routines embedded in the provider's
// player script. Live captures rarely need this (live URLs ship in the
// clear), but members-only and just-ended broadcasts do.
package playerjs

import "sync"

// Cache stores fetched player scripts keyed by player ID. Scripts change a
// few times a month; one process lifetime never needs an eviction policy.
type Cache interface {
	Get(playerID string) (string, bool)
	Set(playerID, body string)
}

type memoryCache struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryCache() Cache {
	return &memoryCache{items: make(map[string]string)}
}

func (c *memoryCache) Get(playerID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.items[playerID]
	return body, ok
}

func (c *memoryCache) Set(playerID, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[playerID] = body
}
