package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheEntry stores what GetProgress needs independent of the duration the
// caller supplies: the percentage is recomputed per request from the summed
// watched seconds.
type cacheEntry struct {
	LastPosition   float64 `json:"last_position"`
	WatchedSeconds float64 `json:"watched_seconds"`
}

// Cache is an optional Redis read-through cache in front of Repository.Get.
// A nil *Cache is a safe no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(url string, ttl time.Duration) (*Cache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Cache{client: redis.NewClient(opt), ttl: ttl}, nil
}

func cacheKey(userID, videoID string) string {
	return fmt.Sprintf("progress:%s:%s", userID, videoID)
}

func (c *Cache) get(ctx context.Context, userID, videoID string) (cacheEntry, bool, error) {
	if c == nil {
		return cacheEntry{}, false, nil
	}
	val, err := c.client.Get(ctx, cacheKey(userID, videoID)).Result()
	if err != nil {
		if err == redis.Nil {
			return cacheEntry{}, false, nil
		}
		return cacheEntry{}, false, err
	}
	var entry cacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return cacheEntry{}, false, err
	}
	return entry, true, nil
}

func (c *Cache) set(ctx context.Context, userID, videoID string, entry cacheEntry) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(userID, videoID), b, c.ttl).Err()
}

func (c *Cache) invalidate(ctx context.Context, userID, videoID string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(userID, videoID)).Err()
}
