package service

import (
	"testing"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeOrCreate(t *testing.T) {
	product := domain.ValidatedProduct{Name: "Widget", Price: decimal.RequireFromString("4.20"), StockQuantity: 10}
	existing := &domain.CartLine{ID: "7", Username: "alice", ProductName: "Widget", Quantity: 4, Price: decimal.NewFromInt(4)}

	tests := []struct {
		name         string
		existing     *domain.CartLine
		qty          int
		wantQty      int
		wantExpected int
		wantRemain   int
		wantErr      bool
	}{
		{name: "new line", qty: 3, wantQty: 3},
		{name: "new line at stock", qty: 10, wantQty: 10},
		{name: "new line over stock", qty: 11, wantErr: true, wantRemain: 10},
		{name: "merge", existing: existing, qty: 6, wantQty: 10, wantExpected: 4},
		{name: "merge over stock", existing: existing, qty: 7, wantErr: true, wantRemain: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, expected, err := MergeOrCreate(tt.existing, domain.AddToCartRequest{Username: "alice", ProductName: "widget", Quantity: tt.qty}, product)
			if tt.wantErr {
				var oos *domain.OutOfStockError
				require.ErrorAs(t, err, &oos)
				assert.Equal(t, tt.wantRemain, oos.Remaining)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQty, line.Quantity)
			assert.Equal(t, tt.wantExpected, expected)
			assert.True(t, line.Price.Equal(product.Price))
			assert.LessOrEqual(t, line.Quantity, product.StockQuantity)
		})
	}
}

func TestMergeOrCreate_KeepsExistingIdentity(t *testing.T) {
	existing := &domain.CartLine{ID: "7", Username: "alice", ProductName: "Widget", Quantity: 1}
	product := domain.ValidatedProduct{Price: decimal.NewFromInt(1), StockQuantity: 5}

	line, _, err := MergeOrCreate(existing, domain.AddToCartRequest{Username: "alice", ProductName: "WIDGET", Quantity: 1}, product)
	require.NoError(t, err)
	assert.Equal(t, "7", line.ID)
	assert.Equal(t, "Widget", line.ProductName)
	assert.Equal(t, 1, existing.Quantity, "input line is not mutated")
}
