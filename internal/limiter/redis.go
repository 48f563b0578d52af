package limiter

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps failure counters and blocks as expiring keys, so several
// server instances share one lockout state.
type Redis struct {
	client *redis.Client
	policy Policy
	prefix string
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(client *redis.Client, p Policy) *Redis {
	return &Redis{client: client, policy: p, prefix: "login:"}
}

func (l *Redis) keys(email string, ipHash []byte) (fails, block string) {
	base := l.prefix + email + ":" + hex.EncodeToString(ipHash)
	return base + ":fails", base + ":block"
}

// Allow reports whether a block key is currently set.
func (l *Redis) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	_, block := l.keys(email, ipHash)
	ttl, err := l.client.PTTL(ctx, block).Result()
	if err != nil {
		return false, 0, err
	}
	// -2: no key, -1: key without expiry (never written by us)
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success drops both counters.
func (l *Redis) Success(ctx context.Context, email string, ipHash []byte) error {
	fails, block := l.keys(email, ipHash)
	return l.client.Del(ctx, fails, block).Err()
}

// Failure increments the windowed counter and sets a block key at MaxFails.
func (l *Redis) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	fails, block := l.keys(email, ipHash)
	n, err := l.client.Incr(ctx, fails).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.client.PExpire(ctx, fails, l.policy.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if int(n) < l.policy.MaxFails {
		return false, 0, nil
	}
	if err := l.client.Set(ctx, block, "1", l.policy.BlockFor).Err(); err != nil {
		return false, 0, err
	}
	if err := l.client.Del(ctx, fails).Err(); err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}
