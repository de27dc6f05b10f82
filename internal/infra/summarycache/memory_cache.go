package summarycache

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/meal-insight/internal/domain/meal"
)

type cachedSummary struct {
	payload   meal.NutrientSummary
	expiresAt time.Time
}

// MemoryCache is an in-memory SummaryCache for tests/dev.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cachedSummary
}

// NewMemoryCache constructs a cache backed by process memory.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cachedSummary)}
}

// Get implements meal.SummaryCache.
func (c *MemoryCache) Get(_ context.Context, key string) (meal.NutrientSummary, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return meal.NutrientSummary{}, false, nil
	}
	if hasExpired(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return meal.NutrientSummary{}, false, nil
	}
	return entry.payload, true, nil
}

// Set implements meal.SummaryCache.
func (c *MemoryCache) Set(_ context.Context, key string, summary meal.NutrientSummary, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.entries[key] = cachedSummary{payload: summary, expiresAt: exp}
	return nil
}

func hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(time.Now())
}

var _ meal.SummaryCache = (*MemoryCache)(nil)
