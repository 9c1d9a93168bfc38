package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantverse/papertrade/internal/domain"
	"github.com/quantverse/papertrade/internal/port"
)

var _ port.Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client: rdb,
		ttl:    ttl,
	}
}

func key(sessionID string) string { return "acct:" + sessionID }

func (c *RedisCache) SetAccount(ctx context.Context, sessionID string, snap *domain.AccountSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(sessionID), b, c.ttl).Err()
}

func (c *RedisCache) GetAccount(ctx context.Context, sessionID string) (*domain.AccountSnapshot, error) {
	b, err := c.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.AccountSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, key(sessionID)).Err()
}
