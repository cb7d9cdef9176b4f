// Package cache is a small key/value cache over redis.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the cache surface callers depend on.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
}

type Redis struct {
	Rdb    *redis.Client
	Prefix string
}

func New(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Redis{Rdb: rdb, Prefix: "propmap:"}
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.Rdb.Ping(ctx).Err()
}

// Get reports a miss as ok=false with a nil error.
func (c *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.Rdb.Get(ctx, c.Prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *Redis) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.Rdb.Set(ctx, c.Prefix+key, val, ttl).Err()
}

func (c *Redis) SetNX(ctx context.Context, key, val string, ttl time.Duration) (bool, error) {
	return c.Rdb.SetNX(ctx, c.Prefix+key, val, ttl).Result()
}

func (c *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.Rdb.TTL(ctx, c.Prefix+key).Result()
}

func (c *Redis) Close() error {
	return c.Rdb.Close()
}
