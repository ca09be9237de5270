package cache

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/ports"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisDistanceCacheRoundTrip(t *testing.T) {
	_, client := newRedis(t)
	c := NewRedisDistanceCache(client, "test:")
	ctx := context.Background()

	err := c.PutMany(ctx, "HUB", map[string]ports.DistanceResult{
		"A": {DistanceMiles: 0.62, DurationSeconds: 300},
		"B": {DistanceMiles: 1.24, DurationSeconds: 600},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := c.GetMany(ctx, "HUB", []string{"A", "B", "C", "A", " "})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(got), got)
	}
	if got["B"].DistanceMiles != 1.24 || got["B"].DurationSeconds != 600 {
		t.Fatalf("B = %+v", got["B"])
	}
	if _, ok := got["C"]; ok {
		t.Fatal("C should be a miss")
	}
}

func TestRedisDistanceCacheExpires(t *testing.T) {
	mr, client := newRedis(t)
	c := NewRedisDistanceCache(client, "")
	c.TTL = time.Minute
	ctx := context.Background()

	if err := c.PutMany(ctx, "HUB", map[string]ports.DistanceResult{"A": {DistanceMiles: 1}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	got, err := c.GetMany(ctx, "HUB", []string{"A"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected expired entry, got %+v", got)
	}
}

func TestRedisGeocodeCacheRoundTrip(t *testing.T) {
	_, client := newRedis(t)
	c := NewRedisGeocodeCache(client, "test:")
	ctx := context.Background()

	want := domain.Coordinates{Lon: -112.07, Lat: 33.45}
	if err := c.PutMany(ctx, map[string]domain.Coordinates{"1 Hub St": want}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := c.GetMany(ctx, []string{"1 Hub St", "nowhere"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["1 Hub St"] != want || len(got) != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestRedisCacheRejectsEmptyOrigin(t *testing.T) {
	_, client := newRedis(t)
	c := NewRedisDistanceCache(client, "")
	if _, err := c.GetMany(context.Background(), "", []string{"A"}); err == nil {
		t.Fatal("expected error for empty origin")
	}
}
