package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// Subtotal is Quantity × Price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CheckoutOrder is the priced snapshot of a user's cart at checkout time.
type CheckoutOrder struct {
	CheckoutID uuid.UUID
	Username   string
	Items      []OrderItem
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
}

// NewCheckoutOrder builds an order from lines, keeping their order.
func NewCheckoutOrder(username string, lines []CartLine) CheckoutOrder {
	order := CheckoutOrder{
		CheckoutID: uuid.New(),
		Username:   username,
		Items:      make([]OrderItem, 0, len(lines)),
		TotalPrice: decimal.Zero,
		CreatedAt:  time.Now().UTC(),
	}

	for _, line := range lines {
		item := OrderItem{
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			Price:       line.Price,
		}
		order.Items = append(order.Items, item)
		order.TotalPrice = order.TotalPrice.Add(item.Subtotal())
	}

	return order
}
