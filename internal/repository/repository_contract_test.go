package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract exercises behaviour every CartLineRepository backend
// must share.
func runRepositoryContract(t *testing.T, setup func(t *testing.T) (CartLineRepository, func())) {
	t.Run("FindByUsername_Empty", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()

		lines, err := repo.FindByUsername(context.Background(), "nobody")
		require.NoError(t, err)
		assert.NotNil(t, lines)
		assert.Empty(t, lines)
	})

	t.Run("Save_InsertAssignsID", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()
		ctx := context.Background()

		line := &domain.CartLine{Username: "alice", ProductName: "Widget", Quantity: 2, Price: decimal.RequireFromString("10.50")}
		require.NoError(t, repo.Save(ctx, line, 0))
		assert.NotEmpty(t, line.ID)
		assert.False(t, line.CreatedAt.IsZero())

		lines, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, line.ID, lines[0].ID)
		assert.Equal(t, "Widget", lines[0].ProductName)
		assert.Equal(t, 2, lines[0].Quantity)
		assert.True(t, lines[0].Price.Equal(decimal.RequireFromString("10.5")), "price was %s", lines[0].Price)
	})

	t.Run("Save_KeepsSubmittedCase", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()
		ctx := context.Background()

		require.NoError(t, repo.Save(ctx, &domain.CartLine{Username: "alice", ProductName: "wIdGeT", Quantity: 1, Price: decimal.NewFromInt(1)}, 0))

		lines, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, "wIdGeT", lines[0].ProductName)
	})

	t.Run("FindByUsername_InsertionOrder", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()
		ctx := context.Background()

		for _, name := range []string{"C", "A", "B"} {
			require.NoError(t, repo.Save(ctx, &domain.CartLine{Username: "alice", ProductName: name, Quantity: 1, Price: decimal.NewFromInt(1)}, 0))
		}
		require.NoError(t, repo.Save(ctx, &domain.CartLine{Username: "bob", ProductName: "A", Quantity: 1, Price: decimal.NewFromInt(1)}, 0))

		lines, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, lines, 3)
		assert.Equal(t, "C", lines[0].ProductName)
		assert.Equal(t, "A", lines[1].ProductName)
		assert.Equal(t, "B", lines[2].ProductName)
	})

	t.Run("Save_DuplicateProductIgnoringCase", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()
		ctx := context.Background()

		require.NoError(t, repo.Save(ctx, &domain.CartLine{Username: "alice", ProductName: "Widget", Quantity: 1, Price: decimal.NewFromInt(1)}, 0))
		err := repo.Save(ctx, &domain.CartLine{Username: "alice", ProductName: "WIDGET", Quantity: 1, Price: decimal.NewFromInt(1)}, 0)
		assert.ErrorIs(t, err, ErrConcurrentUpdate)

		// same product for another user is fine
		require.NoError(t, repo.Save(ctx, &domain.CartLine{Username: "bob", ProductName: "widget", Quantity: 1, Price: decimal.NewFromInt(1)}, 0))
	})

	t.Run("Save_UpdateCompareAndSet", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()
		ctx := context.Background()

		line := &domain.CartLine{Username: "alice", ProductName: "Widget", Quantity: 2, Price: decimal.NewFromInt(10)}
		require.NoError(t, repo.Save(ctx, line, 0))

		first := *line
		first.Quantity = 5
		first.Price = decimal.NewFromInt(12)
		require.NoError(t, repo.Save(ctx, &first, 2))

		// second writer read quantity 2 as well and lost the race
		second := *line
		second.Quantity = 4
		err := repo.Save(ctx, &second, 2)
		assert.ErrorIs(t, err, ErrConcurrentUpdate)

		lines, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, 5, lines[0].Quantity)
		assert.True(t, lines[0].Price.Equal(decimal.NewFromInt(12)))
	})

	t.Run("Save_ConcurrentInsertsKeepOneLine", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()
		ctx := context.Background()

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.Save(ctx, &domain.CartLine{Username: "alice", ProductName: "Widget", Quantity: 1, Price: decimal.NewFromInt(1)}, 0)
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, ErrConcurrentUpdate), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)

		lines, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, lines, 1)
	})

	t.Run("DeleteByID", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()
		ctx := context.Background()

		keep := &domain.CartLine{Username: "alice", ProductName: "A", Quantity: 1, Price: decimal.NewFromInt(1)}
		drop := &domain.CartLine{Username: "alice", ProductName: "B", Quantity: 3, Price: decimal.NewFromInt(2)}
		require.NoError(t, repo.Save(ctx, keep, 0))
		require.NoError(t, repo.Save(ctx, drop, 0))

		deleted, err := repo.DeleteByID(ctx, drop.ID)
		require.NoError(t, err)
		require.NotNil(t, deleted)
		assert.Equal(t, "alice", deleted.Username)
		assert.Equal(t, "B", deleted.ProductName)

		lines, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, keep.ID, lines[0].ID)
	})

	t.Run("DeleteByID_AbsentIsNotAnError", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()
		ctx := context.Background()

		line := &domain.CartLine{Username: "alice", ProductName: "A", Quantity: 1, Price: decimal.NewFromInt(1)}
		require.NoError(t, repo.Save(ctx, line, 0))
		_, err := repo.DeleteByID(ctx, line.ID)
		require.NoError(t, err)

		deleted, err := repo.DeleteByID(ctx, line.ID)
		require.NoError(t, err)
		assert.Nil(t, deleted)

		deleted, err = repo.DeleteByID(ctx, "not-an-id")
		require.NoError(t, err)
		assert.Nil(t, deleted)
	})

	t.Run("DeleteByUsername", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()
		ctx := context.Background()

		for _, name := range []string{"A", "B"} {
			require.NoError(t, repo.Save(ctx, &domain.CartLine{Username: "alice", ProductName: name, Quantity: 1, Price: decimal.NewFromInt(1)}, 0))
		}
		require.NoError(t, repo.Save(ctx, &domain.CartLine{Username: "bob", ProductName: "A", Quantity: 1, Price: decimal.NewFromInt(1)}, 0))

		deleted, err := repo.DeleteByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		lines, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, lines)

		lines, err = repo.FindByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Len(t, lines, 1)
	})

	t.Run("DeleteByUsername_IgnoresCallerCancellation", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()

		require.NoError(t, repo.Save(context.Background(), &domain.CartLine{Username: "alice", ProductName: "A", Quantity: 1, Price: decimal.NewFromInt(1)}, 0))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		deleted, err := repo.DeleteByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})

	t.Run("FindByUsername_CancelledContext", func(t *testing.T) {
		repo, cleanup := setup(t)
		defer cleanup()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := repo.FindByUsername(ctx, "alice")
		assert.Error(t, err)
	})
}
