package cache

import (
	"context"
	"testing"
	"time"

	"recession-pulse/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestInitRedisConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := InitRedis(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	client, err = InitRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("unexpected error for url form: %v", err)
	}
	client.Close()
}

func TestInitRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := InitRedis(context.Background(), addr); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestDailyDedupClaimsOncePerDay(t *testing.T) {
	mr, client := newTestRedis(t)
	dedup := NewDailyDedup(client, time.Hour)
	ctx := context.Background()

	key := domain.DedupKey{Recipient: "+1555", Channel: domain.ChannelSMS, MessageType: domain.MessageRecessionAlert, Date: time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC)}
	ok, err := dedup.ClaimDaily(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected first claim to win, got %v %v", ok, err)
	}
	later := key
	later.Date = key.Date.Add(10 * time.Hour)
	if ok, _ := dedup.ClaimDaily(ctx, later); ok {
		t.Fatal("expected second claim on the same day to lose")
	}

	nextDay := key
	nextDay.Date = key.Date.AddDate(0, 0, 1)
	if ok, _ := dedup.ClaimDaily(ctx, nextDay); !ok {
		t.Fatal("expected claim on the next day to win")
	}

	if ttl := mr.TTL(key.String()); ttl != time.Hour {
		t.Fatalf("expected ttl of 1h, got %s", ttl)
	}
}

func TestDailyDedupRelease(t *testing.T) {
	_, client := newTestRedis(t)
	dedup := NewDailyDedup(client, 0)
	ctx := context.Background()
	key := domain.DedupKey{Recipient: "a@example.com", Channel: domain.ChannelEmail, MessageType: domain.MessageWelcome, Date: time.Now()}

	dedup.ClaimDaily(ctx, key)
	if err := dedup.ReleaseDaily(ctx, key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := dedup.ClaimDaily(ctx, key); !ok {
		t.Fatal("expected released key to be claimable")
	}
}

func TestTrendCacheRoundTripAndMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewTrendCache(client, time.Minute)
	ctx := context.Background()
	day := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	if _, ok, err := c.Get(ctx, day); ok || err != nil {
		t.Fatalf("expected clean miss, got %v %v", ok, err)
	}

	v := 0.43
	tr := domain.NoSignalTrend("sahm")
	items := []domain.IndicatorWithTrend{{
		IndicatorReading: domain.IndicatorReading{Slug: "sahm", Name: "Sahm Rule", NumericValue: &v, Status: domain.StatusWatch, ReadingDate: day},
		Trend:            &tr,
	}}
	if err := c.Set(ctx, day, items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok, err := c.Get(ctx, day)
	if err != nil || !ok || len(got) != 1 || got[0].Slug != "sahm" || got[0].Trend == nil {
		t.Fatalf("unexpected cached value %+v %v %v", got, ok, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, day); ok {
		t.Fatal("expected entry to expire")
	}

	c.Set(ctx, day, items)
	if err := c.Invalidate(ctx, day); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, day); ok {
		t.Fatal("expected invalidated entry to miss")
	}
}
