package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuthMissing        = errors.New("authorization token is missing or invalid")
	ErrUserNotFound       = errors.New("user not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrOutOfStock         = errors.New("product out of stock")
	ErrEmptyCart          = errors.New("no items in cart to checkout")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrPublishFailed      = errors.New("failed to publish checkout order")
	ErrInvalidRequest     = errors.New("invalid request")
)

// OutOfStockError reports how many more units of Product fit in the cart.
type OutOfStockError struct {
	Product   string
	Remaining int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("Only %d more items can be added to cart for product: %s", e.Remaining, e.Product)
}

func (e *OutOfStockError) Is(target error) bool {
	return target == ErrOutOfStock
}

// UnavailableError is returned by a collaborator's fallback: open breaker,
// transport failure, non-2xx answer (404 included) or empty body. It matches
// NotFound as well as ErrServiceUnavailable, so callers checking only for
// NotFound keep working.
type UnavailableError struct {
	Service  string
	NotFound error
	Cause    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable, please try again later", e.Service)
}

func (e *UnavailableError) Is(target error) bool {
	return target == e.NotFound || target == ErrServiceUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}
