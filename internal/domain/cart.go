package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product a user intends to buy. At most one line exists per
// (Username, ProductName) pair, product names compared case-insensitively.
type CartLine struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Matches reports whether the line holds productName, ignoring case. It
// compares product keys so lookups agree with the storage uniqueness index.
func (l CartLine) Matches(productName string) bool {
	return ProductKey(l.ProductName) == ProductKey(productName)
}

// ProductKey is the normalized product name used to enforce line uniqueness.
// The submitted product name itself is stored verbatim.
func ProductKey(productName string) string {
	return strings.ToLower(productName)
}

// ValidatedProduct is the catalog answer for a single request.
type ValidatedProduct struct {
	Name          string
	Price         decimal.Decimal
	StockQuantity int
}

type AddToCartRequest struct {
	Username    string
	ProductName string
	Quantity    int
}

// FindLine returns the line for productName, or nil.
func FindLine(lines []CartLine, productName string) *CartLine {
	for i := range lines {
		if lines[i].Matches(productName) {
			return &lines[i]
		}
	}
	return nil
}
