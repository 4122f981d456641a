package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/pos-gateway/internal/models"
)

func prepareEntry(e models.LedgerEntry) (models.LedgerEntry, error) {
	if strings.TrimSpace(e.RestaurantID) == "" || strings.TrimSpace(e.OrderID) == "" {
		return e, fmt.Errorf("ledger entry needs restaurant and order ids")
	}
	if e.BaseAmount < 0 || e.TipAmount < 0 {
		return e, fmt.Errorf("ledger amounts must not be negative")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.PaymentRef == "" {
		e.PaymentRef = e.ID
	}
	if e.Source == "" {
		e.Source = models.LedgerSourceManual
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e, nil
}

// Ledger records externally captured payments in Postgres.
type Ledger struct {
	db DB
}

// NewLedger wraps db.
func NewLedger(db DB) *Ledger {
	return &Ledger{db: db}
}

// Record inserts entry. Recording the same source payment twice is a no-op.
func (l *Ledger) Record(ctx context.Context, entry models.LedgerEntry) error {
	entry, err := prepareEntry(entry)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(ctx, `INSERT INTO payment_ledger
		(id, restaurant_id, order_id, payment_ref, base_amount, tip_amount, currency, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source, payment_ref) DO NOTHING`,
		entry.ID, entry.RestaurantID, entry.OrderID, entry.PaymentRef, entry.BaseAmount,
		entry.TipAmount, entry.Currency, entry.Source, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

// Totals sums base and tip amounts recorded for an order.
func (l *Ledger) Totals(ctx context.Context, restaurantID, orderID string) (int64, int64, error) {
	var base, tip int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(SUM(base_amount), 0), COALESCE(SUM(tip_amount), 0)
		FROM payment_ledger WHERE restaurant_id = $1 AND order_id = $2`, restaurantID, orderID).
		Scan(&base, &tip)
	if err != nil {
		return 0, 0, fmt.Errorf("sum ledger for %s: %w", orderID, err)
	}
	return base, tip, nil
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []models.LedgerEntry
	refs    map[string]bool
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{refs: make(map[string]bool)}
}

// Record mirrors Ledger.Record.
func (m *MemoryLedger) Record(_ context.Context, entry models.LedgerEntry) error {
	entry, err := prepareEntry(entry)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entry.Source + "|" + entry.PaymentRef
	if m.refs[key] {
		return nil
	}
	m.refs[key] = true
	m.entries = append(m.entries, entry)
	return nil
}

// Totals mirrors Ledger.Totals.
func (m *MemoryLedger) Totals(_ context.Context, restaurantID, orderID string) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var base, tip int64
	for _, e := range m.entries {
		if e.RestaurantID == restaurantID && e.OrderID == orderID {
			base += e.BaseAmount
			tip += e.TipAmount
		}
	}
	return base, tip, nil
}
