package models

import "github.com/example/pos-gateway/internal/pos"

// External payment modes.
const (
	SettlementModeSingle    = "single"
	SettlementModeAggregate = "aggregate"
)

// TenantContext identifies the restaurant a request acts for. Either field
// is enough; RestaurantID wins when both are set.
type TenantContext struct {
	RestaurantID string `json:"restaurant_id,omitempty" query:"restaurant_id"`
	TableToken   string `json:"table_token,omitempty" query:"table_token"`
}

// HasTenant reports whether any tenant identifier is present.
func (t TenantContext) HasTenant() bool {
	return t.RestaurantID != "" || t.TableToken != ""
}

// CreateOrderRequest is the body of POST /api/orders.
type CreateOrderRequest struct {
	TenantContext
	pos.CreateOrderRequest
}

// SearchOrdersRequest is the body of POST /api/orders/search.
// ReturnEntries defaults to true when omitted.
type SearchOrdersRequest struct {
	TenantContext
	pos.SearchOrdersRequest
	ReturnEntries *bool `json:"return_entries,omitempty"`
}

// AddItemRequest is the body of POST /api/orders/:id/items.
type AddItemRequest struct {
	TenantContext
	Item pos.LineItem `json:"item"`
}

// PaymentRequest is the body of POST /api/payments.
type PaymentRequest struct {
	TenantContext
	pos.PaymentRequest
}

// ExternalPaymentRequest is the body of POST /api/payments/external. A set
// Amount selects single mode; otherwise the ledger is aggregated.
type ExternalPaymentRequest struct {
	TenantContext
	OrderID   string `json:"order_id"`
	Amount    *int64 `json:"amount,omitempty"`
	TipAmount int64  `json:"tip_amount,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Source    string `json:"source,omitempty"`
}

// StripeIntentRequest is the body of POST /api/payments/stripe/intents.
type StripeIntentRequest struct {
	TenantContext
	OrderID    string `json:"order_id"`
	BaseAmount int64  `json:"base_amount"`
	TipAmount  int64  `json:"tip_amount,omitempty"`
	Currency   string `json:"currency,omitempty"`
}

// StripeConfirmRequest is the body of POST /api/payments/stripe/confirm.
type StripeConfirmRequest struct {
	TenantContext
	PaymentIntentID string `json:"payment_intent_id"`
}

// InventoryCountsRequest is the body of POST /api/inventory/counts/batch-retrieve.
type InventoryCountsRequest struct {
	TenantContext
	pos.InventoryQuery
}

// InventoryChangesRequest is the body of POST /api/inventory/changes/batch-create.
type InventoryChangesRequest struct {
	TenantContext
	pos.InventoryChangeBatch
}
