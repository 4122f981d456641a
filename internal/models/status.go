package models

import (
	"strings"
	"time"
)

// Order status values kept by the gateway.
const (
	OrderStatusOpen      = "open"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// Sources of status changes.
const (
	StatusSourceSquareWebhook = "square_webhook"
	StatusSourceCloverWebhook = "clover_webhook"
	StatusSourceSettlement    = "settlement"
)

// OrderStatus is the stored status of one vendor order.
type OrderStatus struct {
	RestaurantID string    `json:"restaurant_id,omitempty"`
	Vendor       string    `json:"vendor"`
	OrderID      string    `json:"order_id"`
	TableID      int       `json:"table_id,omitempty"`
	Status       string    `json:"status"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OrderStatusEvent is published whenever a stored status changes.
type OrderStatusEvent struct {
	EventID        string    `json:"event_id"`
	RestaurantID   string    `json:"restaurant_id,omitempty"`
	Vendor         string    `json:"vendor"`
	OrderID        string    `json:"order_id"`
	TableID        int       `json:"table_id,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
}

// MapPaymentStatus converts a vendor payment status into an order status.
func MapPaymentStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "COMPLETED":
		return OrderStatusPaid
	case "FAILED", "CANCELED", "CANCELLED":
		return OrderStatusCancelled
	default:
		return OrderStatusOpen
	}
}

// MapOrderState converts a vendor order state into an order status.
func MapOrderState(state string) string {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "COMPLETED":
		return OrderStatusPaid
	case "CANCELED", "CANCELLED":
		return OrderStatusCancelled
	default:
		return OrderStatusOpen
	}
}
