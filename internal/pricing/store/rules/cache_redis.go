package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"surety/internal/pricing/models"
)

// activeRulesKey holds the JSON-encoded active rule set.
const activeRulesKey = "pricing:rules:active"

// RedisCache caches the active rule set in Redis so every pricing instance
// shares one copy.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context) ([]models.PricingRule, bool, error) {
	data, err := c.client.Get(ctx, activeRulesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached rules: %w", err)
	}
	var rules []models.PricingRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, false, fmt.Errorf("decode cached rules: %w", err)
	}
	return rules, true, nil
}

func (c *RedisCache) Set(ctx context.Context, rules []models.PricingRule, ttl time.Duration) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return c.client.Set(ctx, activeRulesKey, data, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, activeRulesKey).Err()
}
