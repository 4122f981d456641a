package service

import (
	"context"
	"strings"

	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/pos"
)

// Ledger holds externally captured payments per order.
type Ledger interface {
	Record(ctx context.Context, entry models.LedgerEntry) error
	Totals(ctx context.Context, restaurantID, orderID string) (base, tip int64, err error)
}

// Settlement asks for an external payment to be recorded on a vendor order.
// A nil Amount selects aggregate mode.
type Settlement struct {
	OrderID   string
	Amount    *int64
	TipAmount int64
	Currency  string
	Source    string
}

// SettlementResult reports what was recorded with the vendor.
type SettlementResult struct {
	Mode       string       `json:"mode"`
	OrderID    string       `json:"order_id"`
	Amount     int64        `json:"amount"`
	TipAmount  int64        `json:"tip_amount"`
	OrderTotal int64        `json:"order_total"`
	Payment    *pos.Payment `json:"payment"`
}

// SettleExternalPayment records an external payment on the vendor order once
// the base amount equals the vendor's order total exactly. In single mode the
// base amount is req.Amount; in aggregate mode it is the ledger sum for the
// order. A mismatch returns KindAmountMismatch carrying base_sum and
// order_total and creates nothing.
func (s *POSService) SettleExternalPayment(ctx context.Context, ledger Ledger, req Settlement) (*SettlementResult, error) {
	if s.restaurantID == "" {
		return nil, pos.Newf(pos.KindMissingRestaurantContext, "restaurant context is required for external payments")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, pos.Validation("order id is required")
	}

	mode := models.SettlementModeAggregate
	var base, tip int64
	if req.Amount != nil {
		mode = models.SettlementModeSingle
		base, tip = *req.Amount, req.TipAmount
		if base < 0 || tip < 0 {
			return nil, pos.Validation("amounts must not be negative")
		}
	} else {
		if ledger == nil {
			return nil, pos.Newf(pos.KindUnsupportedOperation, "no payment ledger is configured")
		}
		var err error
		base, tip, err = ledger.Totals(ctx, s.restaurantID, orderID)
		if err != nil {
			return nil, pos.Wrap(pos.KindVendor, err, "read payment ledger")
		}
	}

	order, err := s.adapter.RetrieveOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if base != order.Total {
		return nil, pos.Newf(pos.KindAmountMismatch, "sum of base amounts %d does not match order total %d", base, order.Total).
			WithMeta("base_sum", base).
			WithMeta("order_total", order.Total).
			WithMeta("mode", mode)
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = models.LedgerSourceStripe
	}
	currency := req.Currency
	if currency == "" {
		currency = order.Currency
	}
	payment, err := s.adapter.CreateExternalPayment(ctx, pos.ExternalPaymentRequest{
		OrderID:    orderID,
		Amount:     base,
		TipAmount:  tip,
		Currency:   currency,
		Source:     source,
		LocationID: order.LocationID,
	})
	if err != nil {
		return nil, err
	}
	return &SettlementResult{
		Mode:       mode,
		OrderID:    orderID,
		Amount:     base,
		TipAmount:  tip,
		OrderTotal: order.Total,
		Payment:    payment,
	}, nil
}
