package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
)

// CartCache keeps a read-through copy of a user's cart lines.
type CartCache interface {
	Get(ctx context.Context, username string) ([]domain.CartLine, error)
	Set(ctx context.Context, username string, lines []domain.CartLine) error
	Delete(ctx context.Context, username string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache is used when no Redis address is configured. Every Get misses.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]domain.CartLine, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Set(context.Context, string, []domain.CartLine) error { return nil }

func (NopCache) Delete(context.Context, string) error { return nil }
