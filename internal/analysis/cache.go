package analysis

import (
	"sync"

	"github.com/david/sbir-scout/internal/models"
)

// Cache holds the most recent enrichment per opportunity key. Entries never
// expire; they are replaced on re-analysis after a clear. The coarse lock is
// only contended on Clear since writes are keyed and non-overlapping across
// distinct opportunities.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.EnrichedOpportunity
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]models.EnrichedOpportunity)}
}

func (c *Cache) Get(key string) (models.EnrichedOpportunity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	enriched, ok := c.entries[key]
	return enriched, ok
}

func (c *Cache) Set(key string, enriched models.EnrichedOpportunity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = enriched
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.EnrichedOpportunity)
}
