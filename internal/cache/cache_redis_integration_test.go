package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRedis_getSet(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New(addr, os.Getenv("TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := "test:" + uuid.NewString()
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, key, "v1", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := c.Get(ctx, key)
	if err != nil || !ok || v != "v1" {
		t.Fatalf("expected hit v1, got %q ok=%v err=%v", v, ok, err)
	}
	if set, err := c.SetNX(ctx, key, "v2", time.Minute); err != nil || set {
		t.Fatalf("expected SetNX to keep the existing value, got set=%v err=%v", set, err)
	}
	if ttl, err := c.TTL(ctx, key); err != nil || ttl <= 0 {
		t.Fatalf("expected a positive ttl, got %v err=%v", ttl, err)
	}
}
