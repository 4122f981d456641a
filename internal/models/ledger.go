package models

import "time"

// Ledger sources.
const (
	LedgerSourceStripe = "stripe"
	LedgerSourceManual = "manual"
)

// LedgerEntry is one externally captured payment toward a vendor order.
// Amounts are in the smallest currency unit.
type LedgerEntry struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	OrderID      string    `json:"order_id"`
	PaymentRef   string    `json:"payment_ref"`
	BaseAmount   int64     `json:"base_amount"`
	TipAmount    int64     `json:"tip_amount"`
	Currency     string    `json:"currency"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}

// Total returns base plus tip.
func (e LedgerEntry) Total() int64 { return e.BaseAmount + e.TipAmount }
