package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/pos"
)

// SquareSignatureHeader carries the delivery signature.
const SquareSignatureHeader = "x-square-hmacsha256-signature"

// Square event types handled.
const (
	SquareOrderCreated   = "order.created"
	SquareOrderUpdated   = "order.updated"
	SquarePaymentUpdated = "payment.updated"
)

type squareOrderState struct {
	OrderID    string `json:"order_id"`
	State      string `json:"state"`
	LocationID string `json:"location_id"`
}

type squareEvent struct {
	MerchantID string `json:"merchant_id"`
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	Data       struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Object struct {
			OrderCreated *squareOrderState `json:"order_created"`
			OrderUpdated *squareOrderState `json:"order_updated"`
			Payment      *struct {
				ID         string `json:"id"`
				OrderID    string `json:"order_id"`
				LocationID string `json:"location_id"`
				Status     string `json:"status"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

// SquareSignature computes the base64 HMAC-SHA256 of notificationURL+body.
func SquareSignature(key, notificationURL string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SquareHandler processes Square webhook deliveries.
type SquareHandler struct {
	proc            *Processor
	signatureKey    string
	notificationURL string
}

// NewSquareHandler verifies deliveries with signatureKey over the public
// notificationURL. An empty key rejects every delivery.
func NewSquareHandler(proc *Processor, signatureKey, notificationURL string) *SquareHandler {
	return &SquareHandler{proc: proc, signatureKey: signatureKey, notificationURL: notificationURL}
}

// Verify checks signature against body.
func (h *SquareHandler) Verify(signature string, body []byte) error {
	if h.signatureKey == "" || signature == "" {
		return ErrInvalidSignature
	}
	expected := SquareSignature(h.signatureKey, h.notificationURL, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Handle verifies and applies one delivery. Only ErrInvalidSignature should
// be reported to Square as a failure; other errors are logged by the caller
// and acknowledged.
func (h *SquareHandler) Handle(ctx context.Context, signature string, body []byte) (*Result, error) {
	if err := h.Verify(signature, body); err != nil {
		h.proc.logger.Warn().Msg("square webhook signature rejected")
		return nil, err
	}
	var event squareEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return &Result{}, fmt.Errorf("decode square event: %w", err)
	}

	var orderID, locationID, status string
	switch event.Type {
	case SquareOrderCreated, SquareOrderUpdated:
		state := event.Data.Object.OrderCreated
		if state == nil {
			state = event.Data.Object.OrderUpdated
		}
		if state == nil {
			return &Result{Ignored: 1}, nil
		}
		orderID = firstNonEmpty(state.OrderID, event.Data.ID)
		locationID = state.LocationID
		status = models.MapOrderState(state.State)
	case SquarePaymentUpdated:
		payment := event.Data.Object.Payment
		if payment == nil || payment.OrderID == "" {
			return &Result{Ignored: 1}, nil
		}
		orderID = payment.OrderID
		locationID = payment.LocationID
		status = models.MapPaymentStatus(payment.Status)
	default:
		h.proc.logger.Debug().Str("type", event.Type).Msg("square webhook ignored")
		return &Result{Ignored: 1}, nil
	}
	if orderID == "" {
		return &Result{Ignored: 1}, nil
	}

	adapter, restaurantID := h.proc.adapter(ctx, pos.VendorSquare, locationID, event.MerchantID)
	table := h.proc.tableFor(ctx, adapter, orderID)
	if table == 0 {
		h.proc.logger.Info().
			Str("order_id", orderID).
			Str("merchant_id", event.MerchantID).
			Str("location_id", locationID).
			Msg("square order has no table, skipped")
		return &Result{Ignored: 1}, nil
	}
	err := h.proc.Apply(ctx, Change{
		Vendor:       pos.VendorSquare,
		RestaurantID: restaurantID,
		OrderID:      orderID,
		TableID:      table,
		Status:       status,
		Source:       models.StatusSourceSquareWebhook,
	})
	if err != nil {
		return &Result{}, err
	}
	return &Result{Processed: 1}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
