package limiter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "taler:tan:"

// redisCmds is the part of *redis.Client the limiter uses.
type redisCmds interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis shares retransmission state between processes. Entries expire with
// the retransmission window.
type Redis struct {
	client redisCmds
	now    func() time.Time
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func newRedisWithCmds(c redisCmds, now func() time.Time) *Redis {
	return &Redis{client: c, now: now}
}

// Allow implements Limiter.
func (l *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	raw, err := l.client.Get(ctx, redisPrefix+key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return true, 0, nil
	case err != nil:
		return false, 0, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, 0, err
	}
	if wait := time.UnixMilli(ms).Sub(l.now()); wait > 0 {
		return false, wait, nil
	}
	return true, 0, nil
}

// Record implements Limiter.
func (l *Redis) Record(ctx context.Context, key string, earliest time.Time) error {
	ttl := earliest.Sub(l.now())
	if ttl <= 0 {
		return l.client.Del(ctx, redisPrefix+key).Err()
	}
	return l.client.Set(ctx, redisPrefix+key, strconv.FormatInt(earliest.UnixMilli(), 10), ttl).Err()
}

// Reset implements Limiter.
func (l *Redis) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, redisPrefix+key).Err()
}
