package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultBaseTTL = 15 * time.Minute
	maxJitter      = 5 * time.Minute
)

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: defaultBaseTTL,
	}
}

type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, username string) ([]domain.CartLine, error) {
	data, err := r.client.Get(ctx, cacheKey(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart lines failed: %w", err)
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}

	return lines, nil
}

func (r *RedisCache) Set(ctx context.Context, username string, lines []domain.CartLine) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart lines failed: %w", err)
	}

	// jitter spreads expiry of carts written in the same burst
	ttl := r.baseTTL + time.Duration(rand.Int63n(int64(maxJitter)))
	if err := r.client.Set(ctx, cacheKey(username), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, username string) error {
	if err := r.client.Del(ctx, cacheKey(username)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable; used by the health endpoint.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func cacheKey(username string) string {
	return fmt.Sprintf("cart:%s", username)
}
