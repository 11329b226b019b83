package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"recession-pulse/internal/domain"

	"github.com/redis/go-redis/v9"
)

const DefaultTrendTTL = 15 * time.Minute

// TrendCache holds the merged readings-with-trends view for a reading date
// so dashboard reads do not recompute trends on every request.
type TrendCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewTrendCache(client redis.Cmdable, ttl time.Duration) *TrendCache {
	if ttl <= 0 {
		ttl = DefaultTrendTTL
	}
	return &TrendCache{client: client, ttl: ttl}
}

func trendKey(date time.Time) string {
	return "trends:" + domain.DateOf(date).Format("2006-01-02")
}

// Get reports a miss as (nil, false, nil).
func (c *TrendCache) Get(ctx context.Context, date time.Time) ([]domain.IndicatorWithTrend, bool, error) {
	data, err := c.client.Get(ctx, trendKey(date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var out []domain.IndicatorWithTrend
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (c *TrendCache) Set(ctx context.Context, date time.Time, items []domain.IndicatorWithTrend) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, trendKey(date), data, c.ttl).Err()
}

// Invalidate drops the view for date, e.g. after new readings are ingested.
func (c *TrendCache) Invalidate(ctx context.Context, date time.Time) error {
	return c.client.Del(ctx, trendKey(date)).Err()
}
