package dispatch

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClaimer claims dedup keys with SET NX so that dispatchers running in
// different processes agree on who creates a record.
type RedisClaimer struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewRedisClaimer(addr, password string, ttl time.Duration) *RedisClaimer {
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisClaimer{Client: rc, Prefix: "notif:dedup:", TTL: ttl}
}

func (c *RedisClaimer) Claim(ctx context.Context, key string) (bool, error) {
	return c.Client.SetNX(ctx, c.Prefix+key, 1, c.TTL).Result()
}

func (c *RedisClaimer) Release(ctx context.Context, key string) error {
	return c.Client.Del(ctx, c.Prefix+key).Err()
}

func (c *RedisClaimer) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisClaimer) Close() error { return c.Client.Close() }
