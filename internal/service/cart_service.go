package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_cart/shopping-cart/internal/cache"
	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/fjod/go_cart/shopping-cart/internal/repository"
	"github.com/fjod/go_cart/shopping-cart/pkg/logger"
	"github.com/fjod/go_cart/shopping-cart/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Validator confirms the user and product named by an add-to-cart request.
type Validator interface {
	ValidateUser(ctx context.Context, username, credential string) error
	ValidateProduct(ctx context.Context, productName, credential string) (domain.ValidatedProduct, error)
}

// Publisher hands a checkout order to the order pipeline.
type Publisher interface {
	Publish(ctx context.Context, order domain.CheckoutOrder) error
}

type CartService struct {
	repo      repository.CartLineRepository
	cache     cache.CartCache
	validator Validator
	publisher Publisher
	metrics   *metrics.ServerMetrics
	log       *zap.Logger
	sfg       singleflight.Group // Prevents cache stampede
	gens      writeGenerations
}

// listTimeout bounds a shared cart read once it no longer follows any single
// caller's context.
const listTimeout = 10 * time.Second

type Option func(*CartService)

func WithMetrics(m *metrics.ServerMetrics) Option {
	return func(s *CartService) {
		s.metrics = m
	}
}

func NewCartService(repo repository.CartLineRepository, cache cache.CartCache, validator Validator, publisher Publisher, log *zap.Logger, opts ...Option) *CartService {
	s := &CartService{
		repo:      repo,
		cache:     cache,
		validator: validator,
		publisher: publisher,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddToCart validates the user and the product, then merges the request into
// the user's cart. Nothing is written when validation fails.
func (s *CartService) AddToCart(ctx context.Context, credential string, req domain.AddToCartRequest) (*domain.CartLine, error) {
	if req.Username == "" || req.ProductName == "" || req.Quantity < 1 {
		return nil, fmt.Errorf("%w: username, product name and a positive quantity are required", domain.ErrInvalidRequest)
	}
	if credential == "" {
		return nil, domain.ErrAuthMissing
	}

	if err := s.validator.ValidateUser(ctx, req.Username, credential); err != nil {
		return nil, err
	}
	product, err := s.validator.ValidateProduct(ctx, req.ProductName, credential)
	if err != nil {
		return nil, err
	}

	line, merged, err := s.mergeAndSave(ctx, req, product)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(req.Username)

	msg := "Added new cart item"
	if merged {
		msg = "Updated existing cart item"
	}
	logger.FromContext(ctx, s.log).Info(msg,
		zap.String("id", line.ID),
		zap.String("username", line.Username),
		zap.String("product", line.ProductName),
		zap.Int("quantity", line.Quantity),
		zap.String("price", line.Price.String()))

	return line, nil
}

// ListCart returns the user's lines in insertion order; empty when the user
// has none. Concurrent reads of one cart share a single storage query; a
// snapshot read before a write finished is never left in the cache.
func (s *CartService) ListCart(ctx context.Context, username string) ([]domain.CartLine, error) {
	gen := s.gens.current(username)
	key := username + "\x00" + strconv.FormatUint(gen, 10)

	ch := s.sfg.DoChan(key, func() (interface{}, error) {
		// shared by every joined caller, so it must outlive the first one
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listTimeout)
		defer cancel()
		log := logger.FromContext(readCtx, s.log)

		lines, err := s.cache.Get(readCtx, username)
		if err == nil {
			return lines, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn("cache get error", zap.String("username", username), zap.Error(err))
		}

		lines, err = s.repo.FindByUsername(readCtx, username)
		if err != nil {
			return nil, fmt.Errorf("load cart of %s: %w", username, err)
		}

		if err := s.cache.Set(readCtx, username, lines); err != nil {
			log.Warn("cache set error", zap.String("username", username), zap.Error(err))
		}
		// a write landed while we were reading: its invalidation may have run
		// before our Set, so drop what we just cached
		if s.gens.current(username) != gen {
			if err := s.cache.Delete(readCtx, username); err != nil {
				log.Warn("cache invalidate error", zap.String("username", username), zap.Error(err))
			}
		}

		return lines, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.CartLine), nil
	}
}

// RemoveLine deletes a line by id. Removing an absent line is not an error.
func (s *CartService) RemoveLine(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("remove cart line %s: %w", id, err)
	}
	if deleted != nil {
		s.invalidateCache(deleted.Username)
	}
	return nil
}

// RemoveAllForUser empties the user's cart in its own unit of work.
func (s *CartService) RemoveAllForUser(ctx context.Context, username string) error {
	deleted, err := s.repo.DeleteByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("remove cart of %s: %w", username, err)
	}
	s.invalidateCache(username)

	logger.FromContext(ctx, s.log).Info("removed cart items",
		zap.String("username", username),
		zap.Int64("deleted", deleted))
	return nil
}

// invalidateCache must run after the write reached storage.
func (s *CartService) invalidateCache(username string) {
	s.gens.bump(username)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, username); err != nil {
		s.log.Warn("cache invalidate error", zap.String("username", username), zap.Error(err))
	}
}
