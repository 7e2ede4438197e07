package payments

import (
	"context"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

// RedisTokenCache keeps the provider access token in Redis so that every
// server instance reuses one token instead of requesting its own.
type RedisTokenCache struct {
	redis radix.Client
	key   string
}

func NewRedisTokenCache(redis radix.Client, key string) *RedisTokenCache {
	if key == "" {
		key = "mpesa:oauth:token"
	}
	return &RedisTokenCache{redis: redis, key: key}
}

func (c *RedisTokenCache) Get(ctx context.Context) (string, time.Duration, error) {
	if c.redis == nil {
		return "", 0, nil
	}
	var (
		raw  string
		pttl int64
	)
	if err := c.redis.Do(radix.Pipeline(
		radix.Cmd(&raw, "GET", c.key),
		radix.Cmd(&pttl, "PTTL", c.key),
	)); err != nil {
		return "", 0, err
	}
	// -2: missing, -1: no expiry (not written by us)
	if raw == "" || pttl <= 0 {
		return "", 0, nil
	}
	return raw, time.Duration(pttl) * time.Millisecond, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, token string, ttl time.Duration) error {
	if c.redis == nil || token == "" {
		return nil
	}
	ms := ttl.Milliseconds()
	if ms <= 0 {
		return nil
	}
	return c.redis.Do(radix.FlatCmd(nil, "PSETEX", c.key, ms, token))
}
