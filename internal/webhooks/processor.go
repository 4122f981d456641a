// Package webhooks verifies vendor webhook deliveries and turns them into
// stored order status changes.
package webhooks

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/pos"
)

// ErrInvalidSignature is returned for deliveries that fail verification.
var ErrInvalidSignature = errors.New("webhooks: invalid signature")

// StatusStore persists order statuses. Upsert returns the replaced status.
type StatusStore interface {
	Upsert(ctx context.Context, status models.OrderStatus) (string, error)
}

// EventPublisher announces status changes.
type EventPublisher interface {
	PublishOrderStatus(ctx context.Context, event models.OrderStatusEvent) error
}

// AdapterSource returns an adapter for vendor, used to read orders named in
// a delivery. accountIDs are the merchant or location ids the delivery names;
// the returned restaurant id is empty when no tenant owns any of them.
type AdapterSource func(ctx context.Context, vendor string, accountIDs ...string) (pos.Adapter, string, error)

// Result summarises one delivery.
type Result struct {
	Processed        int    `json:"processed"`
	Ignored          int    `json:"ignored"`
	VerificationCode string `json:"verificationCode,omitempty"`
}

// Option customises a Processor.
type Option func(*Processor)

// WithPublisher publishes every status change.
func WithPublisher(publisher EventPublisher) Option {
	return func(p *Processor) {
		if publisher == nil {
			return
		}
		if v := reflect.ValueOf(publisher); v.Kind() == reflect.Pointer && v.IsNil() {
			return
		}
		p.publisher = publisher
	}
}

// WithLogger sets the processor logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) {
		if !reflect.ValueOf(logger).IsZero() {
			p.logger = logger
		}
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// Processor applies status changes derived from webhook events.
type Processor struct {
	store     StatusStore
	publisher EventPublisher
	adapters  AdapterSource
	logger    zerolog.Logger
	now       func() time.Time
}

// NewProcessor builds a Processor.
func NewProcessor(store StatusStore, adapters AdapterSource, opts ...Option) *Processor {
	p := &Processor{
		store:    store,
		adapters: adapters,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = p.logger.With().Str("component", "webhooks").Logger()
	return p
}

// Change is one status transition to apply.
type Change struct {
	Vendor       string
	RestaurantID string
	OrderID      string
	TableID      int
	Status       string
	Source       string
}

// Apply stores c and publishes an event when the status actually changed.
func (p *Processor) Apply(ctx context.Context, c Change) error {
	now := p.now().UTC()
	previous, err := p.store.Upsert(ctx, models.OrderStatus{
		RestaurantID: c.RestaurantID,
		Vendor:       c.Vendor,
		OrderID:      c.OrderID,
		TableID:      c.TableID,
		Status:       c.Status,
		UpdatedAt:    now,
	})
	if err != nil {
		return err
	}
	p.logger.Info().
		Str("vendor", c.Vendor).
		Str("order_id", c.OrderID).
		Int("table_id", c.TableID).
		Str("status", c.Status).
		Str("previous_status", previous).
		Msg("order status stored")

	if previous == c.Status || p.publisher == nil {
		return nil
	}
	event := models.OrderStatusEvent{
		EventID:        uuid.NewString(),
		RestaurantID:   c.RestaurantID,
		Vendor:         c.Vendor,
		OrderID:        c.OrderID,
		TableID:        c.TableID,
		Status:         c.Status,
		PreviousStatus: previous,
		Source:         c.Source,
		Timestamp:      now,
	}
	if err := p.publisher.PublishOrderStatus(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("order_id", c.OrderID).Msg("order status event not published")
	}
	return nil
}

// tableFor resolves the table of an order, zero when it cannot.
func (p *Processor) tableFor(ctx context.Context, adapter pos.Adapter, orderID string) int {
	if adapter == nil {
		return 0
	}
	table, err := adapter.TableIDFromOrder(ctx, orderID)
	if err != nil {
		p.logger.Debug().Err(err).Str("order_id", orderID).Msg("no table for order")
		return 0
	}
	return table
}

func (p *Processor) adapter(ctx context.Context, vendor string, accountIDs ...string) (pos.Adapter, string) {
	if p.adapters == nil {
		return nil, ""
	}
	adapter, restaurantID, err := p.adapters(ctx, vendor, accountIDs...)
	if err != nil {
		p.logger.Warn().Err(err).Str("vendor", vendor).Strs("accounts", accountIDs).Msg("webhook adapter unavailable")
		return nil, ""
	}
	return adapter, restaurantID
}
