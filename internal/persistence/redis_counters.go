package persistence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterPrefix = "ratelimit:"

// RedisCounterStore implements the rate-limit counter abstraction on a
// shared Redis instance, so counters stay consistent across replicas.
// INCR is atomic server-side, which gives the no-lost-updates guarantee.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore wraps an existing client.
func NewRedisCounterStore(r *Redis) *RedisCounterStore {
	return &RedisCounterStore{client: r.Client}
}

// Incr bumps the window counter for key. The first increment of a window
// anchors it by setting the TTL; the key expiring is the window reset.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	redisKey := counterPrefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	if count == 1 {
		if err := s.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return count, time.Now().Add(window), nil
	}

	ttl, err := s.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// Key lost its TTL (e.g. expire raced a crash); re-anchor the window
		// rather than letting the counter live forever.
		if err := s.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		ttl = window
	}
	return count, time.Now().Add(ttl), nil
}
