package notifications

// dedupCache remembers the most recent event IDs so redelivered events
// are dropped before dispatch. Eviction is FIFO: once the cache is full,
// remembering a new ID forgets the oldest one. Pairing a map with a
// queue keeps both the lookup and the eviction O(1).
type dedupCache struct {
	capacity int
	seen     map[string]struct{}
	order    []string
}

func newDedupCache(capacity int) *dedupCache {
	return &dedupCache{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Remember records the ID and reports whether it was new. Known IDs
// return false and leave the cache untouched.
func (c *dedupCache) Remember(id string) bool {
	if _, ok := c.seen[id]; ok {
		return false
	}
	c.seen[id] = struct{}{}
	c.order = append(c.order, id)
	if len(c.seen) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
	return true
}

// Has reports whether the ID is currently in the cache.
func (c *dedupCache) Has(id string) bool {
	_, ok := c.seen[id]
	return ok
}

func (c *dedupCache) Len() int {
	return len(c.seen)
}
