package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
)

// MergeOrCreate computes the line that results from adding req to the cart.
// existing is the user's current line for the product, if any. The returned
// quantity is the one the stored line must still hold for the write to apply
// (zero for a new line).
func MergeOrCreate(existing *domain.CartLine, req domain.AddToCartRequest, product domain.ValidatedProduct) (domain.CartLine, int, error) {
	if existing == nil {
		if req.Quantity > product.StockQuantity {
			return domain.CartLine{}, 0, &domain.OutOfStockError{Product: req.ProductName, Remaining: product.StockQuantity}
		}
		return domain.CartLine{
			Username:    req.Username,
			ProductName: req.ProductName,
			Quantity:    req.Quantity,
			Price:       product.Price,
		}, 0, nil
	}

	merged := existing.Quantity + req.Quantity
	if merged > product.StockQuantity {
		return domain.CartLine{}, 0, &domain.OutOfStockError{Product: req.ProductName, Remaining: product.StockQuantity - existing.Quantity}
	}

	line := *existing
	line.Quantity = merged
	line.Price = product.Price
	return line, existing.Quantity, nil
}

// mergeAndSave loads the user's lines, merges req and persists the result.
func (s *CartService) mergeAndSave(ctx context.Context, req domain.AddToCartRequest, product domain.ValidatedProduct) (*domain.CartLine, bool, error) {
	lines, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, false, fmt.Errorf("load cart of %s: %w", req.Username, err)
	}

	existing := domain.FindLine(lines, req.ProductName)
	line, expected, err := MergeOrCreate(existing, req, product)
	if err != nil {
		return nil, false, err
	}

	if err := s.repo.Save(ctx, &line, expected); err != nil {
		return nil, false, fmt.Errorf("save cart line: %w", err)
	}
	return &line, existing != nil, nil
}
