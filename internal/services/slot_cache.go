package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const slotCacheTTL = 30 * time.Second

// SlotCache is a short-lived redis cache for free-slot listings. A nil
// client disables caching and every call degrades to a direct read.
type SlotCache struct {
	client *redis.Client
}

func NewSlotCache(client *redis.Client) *SlotCache {
	return &SlotCache{client: client}
}

func slotCacheKey(counsellorID int64, day string) string {
	return fmt.Sprintf("freeslots:%d:%s", counsellorID, day)
}

func (c *SlotCache) Get(ctx context.Context, counsellorID int64, day string) ([]string, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, slotCacheKey(counsellorID, day)).Bytes()
	if err != nil {
		return nil, false
	}
	var slots []string
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

func (c *SlotCache) Set(ctx context.Context, counsellorID int64, day string, slots []string) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	c.client.Set(ctx, slotCacheKey(counsellorID, day), raw, slotCacheTTL)
}

func (c *SlotCache) InvalidateDay(ctx context.Context, counsellorID int64, day string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, slotCacheKey(counsellorID, day))
}

func (c *SlotCache) InvalidateAll(ctx context.Context, counsellorID int64) {
	if c == nil || c.client == nil {
		return
	}
	keys := make([]string, 0, len(weekDays))
	for day := range weekDays {
		keys = append(keys, slotCacheKey(counsellorID, day))
	}
	c.client.Del(ctx, keys...)
}
