package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrConcurrentUpdate is returned when the line changed between read and
	// write: a duplicate (username, product) insert or a stale quantity.
	ErrConcurrentUpdate = errors.New("cart line was modified concurrently")
)

// unitOfWorkTimeout bounds operations that run detached from the caller.
const unitOfWorkTimeout = 10 * time.Second

// CartLineRepository defines the interface for cart line storage.
// Consumers define this interface, not the storage implementations.
type CartLineRepository interface {
	// FindByUsername returns the user's lines in insertion order.
	FindByUsername(ctx context.Context, username string) ([]domain.CartLine, error)
	// Save inserts the line when it has no ID (assigning one), otherwise it
	// updates quantity and price only if the stored quantity still equals
	// expectedQuantity.
	Save(ctx context.Context, line *domain.CartLine, expectedQuantity int) error
	// DeleteByID removes a line and returns it, or nil if it did not exist.
	DeleteByID(ctx context.Context, id string) (*domain.CartLine, error)
	// DeleteByUsername removes every line of the user in its own unit of
	// work, independent of the caller's transaction and cancellation.
	DeleteByUsername(ctx context.Context, username string) (int64, error)
	Close(ctx context.Context) error
}

// independentContext drops everything from ctx except the trace span, so the
// work cannot join an enclosing session or be cancelled with the request.
func independentContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))
	return context.WithTimeout(detached, unitOfWorkTimeout)
}

// Ping checks that the backing store answers. Backends without a cheap
// liveness probe are reported healthy.
func Ping(ctx context.Context, repo CartLineRepository) error {
	p, ok := repo.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}
