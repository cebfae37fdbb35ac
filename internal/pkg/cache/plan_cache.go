package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/DocuChat/app/models"
)

// PlanCache stores plans as JSON. Every failure is treated as a miss.
type PlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPlanCache(client *redis.Client, ttl time.Duration) *PlanCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PlanCache{client: client, ttl: ttl}
}

func (c *PlanCache) Get(ctx context.Context, key string) (*models.Plan, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[PlanCache] get %s: %v", key, err)
		}
		return nil, false
	}

	var plan models.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		log.Printf("[PlanCache] dropping undecodable entry %s: %v", key, err)
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return &plan, true
}

func (c *PlanCache) Set(ctx context.Context, key string, plan *models.Plan) {
	raw, err := json.Marshal(plan)
	if err != nil {
		log.Printf("[PlanCache] encode %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Printf("[PlanCache] set %s: %v", key, err)
	}
}

func (c *PlanCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[PlanCache] delete %v: %v", keys, err)
	}
}
