package square

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/vendors/rest"
)

// ProcessPayment charges a card nonce or stored card through the Payments API.
func (a *Adapter) ProcessPayment(ctx context.Context, req pos.PaymentRequest) (*pos.Payment, error) {
	if err := pos.ValidatePayment(req); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(firstNonEmpty(req.Currency, a.cfg.CurrencyOrDefault()))

	body := map[string]any{
		"idempotency_key": pos.NewIdempotencyKey(),
		"source_id":       req.SourceID,
		"amount_money":    money{Amount: req.Amount, Currency: currency},
		"autocomplete":    req.AutocompleteOrDefault(),
		"location_id":     firstNonEmpty(req.LocationID, a.cfg.LocationID),
	}
	if req.CustomerID != "" {
		body["customer_id"] = req.CustomerID
	}
	if req.OrderID != "" {
		body["order_id"] = req.OrderID
	}
	if req.ReferenceID != "" {
		body["reference_id"] = req.ReferenceID
	}
	if req.Note != "" {
		body["note"] = req.Note
	}
	if req.TipAmount > 0 {
		body["tip_money"] = money{Amount: req.TipAmount, Currency: currency}
	}
	if req.AppFeeAmount != nil {
		body["app_fee_money"] = money{Amount: *req.AppFeeAmount, Currency: currency}
	}

	p, err := a.createPayment(ctx, body, "process payment")
	if err != nil {
		a.logger.Info().Err(err).Str("operation", "process_payment").Str("order_id", req.OrderID).Msg("square payment failed")
		return nil, err
	}
	return p, nil
}

// CreateExternalPayment records a payment taken by another processor so the
// Square order ledger shows it as paid.
func (a *Adapter) CreateExternalPayment(ctx context.Context, req pos.ExternalPaymentRequest) (*pos.Payment, error) {
	if err := pos.ValidateExternalPayment(req); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(firstNonEmpty(req.Currency, a.cfg.CurrencyOrDefault()))
	source := firstNonEmpty(req.Source, "external")

	body := map[string]any{
		"idempotency_key": pos.NewIdempotencyKey(),
		"source_id":       "EXTERNAL",
		"order_id":        req.OrderID,
		"location_id":     firstNonEmpty(req.LocationID, a.cfg.LocationID),
		"amount_money":    money{Amount: req.Amount, Currency: currency},
		"autocomplete":    true,
		"external_details": map[string]string{
			"type":   "OTHER",
			"source": source,
		},
		"note": "External payment via " + source,
	}
	if req.TipAmount > 0 {
		body["tip_money"] = money{Amount: req.TipAmount, Currency: currency}
	}

	p, err := a.createPayment(ctx, body, "external payment")
	if err != nil {
		a.logger.Info().Err(err).Str("operation", "external_payment").Str("order_id", req.OrderID).Msg("square external payment failed")
		return nil, err
	}
	a.logger.Debug().Str("order_id", req.OrderID).Str("payment_id", p.ID).Msg("square external payment recorded")
	return p, nil
}

func (a *Adapter) createPayment(ctx context.Context, body map[string]any, operation string) (*pos.Payment, error) {
	var resp paymentResponse
	if _, err := a.client.Do(ctx, rest.Request{Method: http.MethodPost, Path: "/v2/payments", JSON: body}, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(operation); err != nil {
		return nil, err
	}
	if resp.Payment == nil {
		return nil, pos.Newf(pos.KindVendor, "square: %s: empty payment in response", operation)
	}
	return toPayment(resp.Payment), nil
}
