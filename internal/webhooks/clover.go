package webhooks

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/pos"
)

// CloverAuthHeader carries the shared auth code.
const CloverAuthHeader = "X-Clover-Auth"

type cloverEvent struct {
	ObjectID string `json:"objectId"`
	Type     string `json:"type"`
	Ts       int64  `json:"ts"`
}

type cloverDelivery struct {
	VerificationCode string                   `json:"verificationCode"`
	AppID            string                   `json:"appId"`
	Merchants        map[string][]cloverEvent `json:"merchants"`
}

// CloverHandler processes Clover webhook deliveries.
type CloverHandler struct {
	proc     *Processor
	authCode string
}

// NewCloverHandler checks deliveries against authCode. An empty code rejects
// every event delivery.
func NewCloverHandler(proc *Processor, authCode string) *CloverHandler {
	return &CloverHandler{proc: proc, authCode: authCode}
}

// Handle applies one delivery. A verification handshake is echoed back
// without authentication; event deliveries need a matching auth header.
func (h *CloverHandler) Handle(ctx context.Context, authHeader string, body []byte) (*Result, error) {
	var delivery cloverDelivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		return &Result{}, fmt.Errorf("decode clover delivery: %w", err)
	}
	if delivery.VerificationCode != "" && len(delivery.Merchants) == 0 {
		h.proc.logger.Info().Msg("clover webhook verification handshake")
		return &Result{VerificationCode: delivery.VerificationCode}, nil
	}
	if h.authCode == "" || subtle.ConstantTimeCompare([]byte(h.authCode), []byte(authHeader)) != 1 {
		h.proc.logger.Warn().Msg("clover webhook auth rejected")
		return nil, ErrInvalidSignature
	}

	result := &Result{}
	var errs []error
	for merchantID, events := range delivery.Merchants {
		var (
			adapter      pos.Adapter
			restaurantID string
			resolved     bool
		)
		for _, ev := range events {
			kind, id, ok := strings.Cut(ev.ObjectID, ":")
			if !ok || id == "" || kind != "O" {
				// Payment ("P:") and other objects are acknowledged only.
				result.Ignored++
				continue
			}
			if !resolved {
				adapter, restaurantID = h.proc.adapter(ctx, pos.VendorClover, merchantID)
				resolved = true
			}
			status, table, ok := h.orderStatus(ctx, adapter, id, ev.Type)
			if !ok {
				h.proc.logger.Info().Str("merchant_id", merchantID).Str("order_id", id).Msg("clover order unresolved, skipped")
				result.Ignored++
				continue
			}
			err := h.proc.Apply(ctx, Change{
				Vendor:       pos.VendorClover,
				RestaurantID: restaurantID,
				OrderID:      id,
				TableID:      table,
				Status:       status,
				Source:       models.StatusSourceCloverWebhook,
			})
			if err != nil {
				h.proc.logger.Error().Err(err).Str("merchant_id", merchantID).Str("order_id", id).Msg("clover order status not stored")
				errs = append(errs, err)
				continue
			}
			result.Processed++
		}
	}
	if len(errs) > 0 {
		return result, fmt.Errorf("clover webhook: %d events failed: %w", len(errs), errs[0])
	}
	return result, nil
}

// orderStatus reads the current state of orderID. ok is false when the order
// cannot be read or has no table, so no status is written for it.
func (h *CloverHandler) orderStatus(ctx context.Context, adapter pos.Adapter, orderID, eventType string) (status string, table int, ok bool) {
	if strings.EqualFold(eventType, "DELETE") {
		return models.OrderStatusCancelled, 0, true
	}
	if adapter == nil {
		return "", 0, false
	}
	order, err := adapter.RetrieveOrder(ctx, orderID)
	if err != nil {
		h.proc.logger.Warn().Err(err).Str("order_id", orderID).Msg("clover order not readable")
		return "", 0, false
	}
	table = h.proc.tableFor(ctx, adapter, orderID)
	if table == 0 {
		return "", 0, false
	}
	return models.MapOrderState(order.State), table, true
}
