package http

import (
	"time"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
)

type AddToCartRequestDTO struct {
	Username    string `json:"username" validate:"required,max=255"`
	ProductName string `json:"productName" validate:"required,max=255"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
}

type CartLineDTO struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CartItemDTO struct {
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

type CheckoutResponseDTO struct {
	CheckoutID string        `json:"checkoutId"`
	Username   string        `json:"username"`
	CartItems  []CartItemDTO `json:"cartItems"`
	TotalPrice float64       `json:"totalPrice"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func convertLine(line domain.CartLine) CartLineDTO {
	return CartLineDTO{
		ID:          line.ID,
		Username:    line.Username,
		ProductName: line.ProductName,
		Quantity:    line.Quantity,
		Price:       line.Price.InexactFloat64(),
		CreatedAt:   line.CreatedAt,
		UpdatedAt:   line.UpdatedAt,
	}
}

func convertLines(lines []domain.CartLine) []CartLineDTO {
	out := make([]CartLineDTO, 0, len(lines))
	for _, line := range lines {
		out = append(out, convertLine(line))
	}
	return out
}

func convertOrder(order *domain.CheckoutOrder) CheckoutResponseDTO {
	items := make([]CartItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, CartItemDTO{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price.InexactFloat64(),
		})
	}
	return CheckoutResponseDTO{
		CheckoutID: order.CheckoutID.String(),
		Username:   order.Username,
		CartItems:  items,
		TotalPrice: order.TotalPrice.InexactFloat64(),
	}
}
