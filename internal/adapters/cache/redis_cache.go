package cache

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/platform/obs"
	"delivery-batch-service/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 7 * 24 * time.Hour

// RedisDistanceCache keeps distance results under "<prefix>dist-mi:<origin>|<destination>".
type RedisDistanceCache struct {
	Client redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

func NewRedisDistanceCache(client redis.UniversalClient, prefix string) *RedisDistanceCache {
	return &RedisDistanceCache{Client: client, Prefix: prefix, TTL: defaultCacheTTL}
}

func (c *RedisDistanceCache) key(origin, destination string) string {
	return c.Prefix + "dist-mi:" + origin + "|" + destination
}

func (c *RedisDistanceCache) GetMany(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.redis.GetMany")(&err)

	if c.Client == nil {
		return nil, errors.New("distance cache: redis client is nil")
	}
	if origin == "" {
		return nil, errors.New("get distance cache: origin must not be empty")
	}

	dests := uniqueKeys(destinations)
	if len(dests) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	keys := make([]string, len(dests))
	for i, d := range dests {
		keys[i] = c.key(origin, d)
	}

	vals, err := c.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get distance cache: mget: %w", err)
	}

	out := make(map[string]ports.DistanceResult, len(dests))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var r ports.DistanceResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("get distance cache: decode %q: %w", keys[i], err)
		}
		out[dests[i]] = r
	}
	return out, nil
}

func (c *RedisDistanceCache) PutMany(
	ctx context.Context,
	origin string,
	results map[string]ports.DistanceResult,
) (err error) {
	defer obs.Time(ctx, "distance.redis.PutMany")(&err)

	if c.Client == nil {
		return errors.New("distance cache: redis client is nil")
	}
	if origin == "" {
		return errors.New("put distance cache: origin must not be empty")
	}
	if len(results) == 0 {
		return nil
	}

	pipe := c.Client.Pipeline()
	for dest, r := range results {
		if dest == "" {
			return errors.New("put distance cache: empty destination key")
		}
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("put distance cache: encode: %w", err)
		}
		pipe.Set(ctx, c.key(origin, dest), b, c.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put distance cache: exec: %w", err)
	}
	return nil
}

// RedisGeocodeCache keeps coordinates under "<prefix>geo:<address>".
type RedisGeocodeCache struct {
	Client redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

func NewRedisGeocodeCache(client redis.UniversalClient, prefix string) *RedisGeocodeCache {
	return &RedisGeocodeCache{Client: client, Prefix: prefix, TTL: defaultCacheTTL}
}

func (c *RedisGeocodeCache) key(address string) string {
	return c.Prefix + "geo:" + address
}

func (c *RedisGeocodeCache) GetMany(ctx context.Context, addresses []string) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.redis.GetMany")(&err)

	if c.Client == nil {
		return nil, errors.New("geocode cache: redis client is nil")
	}

	addrs := uniqueKeys(addresses)
	if len(addrs) == 0 {
		return map[string]domain.Coordinates{}, nil
	}

	keys := make([]string, len(addrs))
	for i, a := range addrs {
		keys[i] = c.key(a)
	}

	vals, err := c.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: mget: %w", err)
	}

	out := make(map[string]domain.Coordinates, len(addrs))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var coord domain.Coordinates
		if err := json.Unmarshal([]byte(raw), &coord); err != nil {
			return nil, fmt.Errorf("get geocode cache: decode %q: %w", keys[i], err)
		}
		out[addrs[i]] = coord
	}
	return out, nil
}

func (c *RedisGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) (err error) {
	defer obs.Time(ctx, "geocode.redis.PutMany")(&err)

	if c.Client == nil {
		return errors.New("geocode cache: redis client is nil")
	}
	if len(results) == 0 {
		return nil
	}

	pipe := c.Client.Pipeline()
	for addr, coord := range results {
		if addr == "" {
			return errors.New("put geocode cache: empty address key")
		}
		b, err := json.Marshal(coord)
		if err != nil {
			return fmt.Errorf("put geocode cache: encode: %w", err)
		}
		pipe.Set(ctx, c.key(addr), b, c.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put geocode cache: exec: %w", err)
	}
	return nil
}
