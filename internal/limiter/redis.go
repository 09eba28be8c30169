package limiter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldCount = "count"
	fieldLast  = "last" // unix milliseconds
)

// Redis stores counters as one hash per key; the hash expires together with the lockout.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	policy Policy
	now    func() time.Time
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(rdb redis.UniversalClient, prefix string, policy Policy, now func() time.Time) *Redis {
	if now == nil {
		now = time.Now
	}
	if prefix == "" {
		prefix = "login_attempts:"
	}
	return &Redis{rdb: rdb, prefix: prefix, policy: policy, now: now}
}

func (l *Redis) key(k string) string { return l.prefix + k }

// Allow implements Limiter.
func (l *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	vals, err := l.rdb.HGetAll(ctx, l.key(key)).Result()
	if err != nil {
		return false, 0, err
	}
	if len(vals) == 0 {
		return true, 0, nil
	}
	count, err := strconv.Atoi(vals[fieldCount])
	if err != nil {
		return false, 0, errors.New("limiter: corrupt counter")
	}
	lastMs, err := strconv.ParseInt(vals[fieldLast], 10, 64)
	if err != nil {
		return false, 0, errors.New("limiter: corrupt timestamp")
	}

	allowed, retry, reset := l.policy.decide(count, time.UnixMilli(lastMs), l.now())
	if reset {
		if err := l.Success(ctx, key); err != nil {
			return false, 0, err
		}
	}
	return allowed, retry, nil
}

// Failure implements Limiter.
func (l *Redis) Failure(ctx context.Context, key string) (int, error) {
	k := l.key(key)
	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, k, fieldCount, 1)
		p.HSet(ctx, k, fieldLast, l.now().UnixMilli())
		p.PExpire(ctx, k, l.policy.Lockout)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

// Success implements Limiter.
func (l *Redis) Success(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.key(key)).Err()
}
