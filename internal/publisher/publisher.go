package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic      = "order-topic"
	checkoutEventType = "cart-checkout"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type cartItemEvent struct {
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// checkoutEvent is the wire form consumed by the order service.
type checkoutEvent struct {
	Username   string          `json:"username"`
	CartItems  []cartItemEvent `json:"cartItems"`
	TotalPrice float64         `json:"totalPrice"`
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same user, same partition
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// NewWithWriter is used by tests and by callers that tune their own writer.
func NewWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish writes order to the topic keyed by username.
func (p *KafkaPublisher) Publish(ctx context.Context, order domain.CheckoutOrder) error {
	payload, err := json.Marshal(toEvent(order))
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.Username),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(checkoutEventType)},
			{Key: "checkout_id", Value: []byte(order.CheckoutID.String())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write checkout event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toEvent(order domain.CheckoutOrder) checkoutEvent {
	items := make([]cartItemEvent, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, cartItemEvent{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price.InexactFloat64(),
		})
	}
	return checkoutEvent{
		Username:   order.Username,
		CartItems:  items,
		TotalPrice: order.TotalPrice.InexactFloat64(),
	}
}
