package cache

import (
	"context"
	"time"

	"recession-pulse/internal/domain"

	"github.com/redis/go-redis/v9"
)

const DefaultDedupTTL = 36 * time.Hour

// DailyDedup guards the one-message-per-recipient-per-day rule with SETNX.
// The TTL only has to outlive the calendar day the key names.
type DailyDedup struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewDailyDedup(client redis.Cmdable, ttl time.Duration) *DailyDedup {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &DailyDedup{client: client, ttl: ttl}
}

// ClaimDaily returns true for the first caller of a key and false after.
func (d *DailyDedup) ClaimDaily(ctx context.Context, key domain.DedupKey) (bool, error) {
	return d.client.SetNX(ctx, key.String(), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
}

// ReleaseDaily drops a claim whose message never made it into the queue.
func (d *DailyDedup) ReleaseDaily(ctx context.Context, key domain.DedupKey) error {
	return d.client.Del(ctx, key.String()).Err()
}
