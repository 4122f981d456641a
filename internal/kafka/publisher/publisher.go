// Package publisher turns order status events into Kafka messages.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/kafka/producer"
	"github.com/example/pos-gateway/internal/models"
)

// ErrProducerNotInitialised is returned by a nil publisher.
var ErrProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// Sender is the part of producer.Producer the publisher needs.
type Sender interface {
	Send(ctx context.Context, msg producer.Message) error
}

// OrderStatusPublisher writes order status events keyed by vendor and order
// id, so all events of one order land on the same partition.
type OrderStatusPublisher struct {
	sender Sender
	topic  string
	logger zerolog.Logger
}

// NewOrderStatusPublisher returns nil when sender is nil.
func NewOrderStatusPublisher(sender Sender, topic string, logger zerolog.Logger) *OrderStatusPublisher {
	if sender == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &OrderStatusPublisher{
		sender: sender,
		topic:  topic,
		logger: logger.With().Str("component", "order_status_publisher").Logger(),
	}
}

// PublishOrderStatus sends event and waits for the broker.
func (p *OrderStatusPublisher) PublishOrderStatus(ctx context.Context, event models.OrderStatusEvent) error {
	if p == nil || p.sender == nil {
		return ErrProducerNotInitialised
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal order status event: %w", err)
	}
	msg := producer.Message{
		Topic: p.topic,
		Key:   event.Vendor + ":" + event.OrderID,
		Headers: map[string]string{
			"content-type": "application/json",
			"vendor":       event.Vendor,
			"source":       event.Source,
		},
		Value:     payload,
		Timestamp: event.Timestamp,
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("kafka publisher: publish order status event: %w", err)
	}
	p.logger.Debug().Str("order_id", event.OrderID).Str("status", event.Status).Msg("order status event published")
	return nil
}
