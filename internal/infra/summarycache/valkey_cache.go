// Package summarycache caches computed dashboard rollups.
package summarycache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/meal-insight/internal/domain/meal"
)

// ValkeyCache stores summaries in a Valkey-compatible database.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache constructs a cache backed by Valkey.
func NewValkeyCache(client valkey.Client, prefix string) *ValkeyCache {
	if prefix == "" {
		prefix = "meal"
	}
	return &ValkeyCache{client: client, prefix: prefix}
}

// Get implements meal.SummaryCache.
func (c *ValkeyCache) Get(ctx context.Context, key string) (meal.NutrientSummary, bool, error) {
	cmd := c.client.B().Get().Key(c.cacheKey(key)).Build()
	payload, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return meal.NutrientSummary{}, false, nil
		}
		return meal.NutrientSummary{}, false, err
	}
	var summary meal.NutrientSummary
	if err := json.Unmarshal([]byte(payload), &summary); err != nil {
		return meal.NutrientSummary{}, false, err
	}
	return summary, true, nil
}

// Set implements meal.SummaryCache.
func (c *ValkeyCache) Set(ctx context.Context, key string, summary meal.NutrientSummary, ttl time.Duration) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	builder := c.client.B().Set().Key(c.cacheKey(key)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return c.client.Do(ctx, cmd).Error()
}

func (c *ValkeyCache) cacheKey(key string) string {
	return c.prefix + ":" + key
}

var _ meal.SummaryCache = (*ValkeyCache)(nil)
