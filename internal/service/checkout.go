package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/fjod/go_cart/shopping-cart/pkg/logger"
	"go.uber.org/zap"
)

// Checkout prices the user's cart and publishes it as an order event. Lines
// stay in the cart. When publishing fails the built order is still returned
// together with an error matching domain.ErrPublishFailed.
func (s *CartService) Checkout(ctx context.Context, username string) (*domain.CheckoutOrder, error) {
	log := logger.FromContext(ctx, s.log)

	// storage, not cache: the order must price what is actually stored
	lines, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load cart of %s: %w", username, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w for user: %s", domain.ErrEmptyCart, username)
	}

	order := domain.NewCheckoutOrder(username, lines)

	errPublish := s.publisher.Publish(ctx, order)
	s.metrics.ObservePublish(errPublish)
	if errPublish != nil {
		log.Error("failed to publish checkout order",
			zap.String("username", username),
			zap.String("checkout_id", order.CheckoutID.String()),
			zap.Error(errPublish))
		return &order, fmt.Errorf("%w: %w", domain.ErrPublishFailed, errPublish)
	}

	log.Info("checkout order published",
		zap.String("username", username),
		zap.String("checkout_id", order.CheckoutID.String()),
		zap.Int("items", len(order.Items)),
		zap.String("total_price", order.TotalPrice.String()))
	return &order, nil
}
