package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/pos-gateway/internal/models"
)

// ErrStatusNotFound is returned when no status is stored for an order.
var ErrStatusNotFound = errors.New("store: order status not found")

// OrderStatuses keeps the open/paid/cancelled status of vendor orders.
type OrderStatuses struct {
	db DB
}

// NewOrderStatuses wraps db.
func NewOrderStatuses(db DB) *OrderStatuses {
	return &OrderStatuses{db: db}
}

// Upsert stores s and returns the status it replaced, empty for a new order.
// A zero TableID keeps the stored table.
func (o *OrderStatuses) Upsert(ctx context.Context, s models.OrderStatus) (string, error) {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	var previous *string
	err := o.db.QueryRow(ctx, `WITH prev AS (
			SELECT status FROM order_statuses WHERE vendor = $1 AND order_id = $2
		)
		INSERT INTO order_statuses (vendor, order_id, restaurant_id, table_id, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (vendor, order_id) DO UPDATE SET
			status = EXCLUDED.status,
			restaurant_id = COALESCE(NULLIF(EXCLUDED.restaurant_id, ''), order_statuses.restaurant_id),
			table_id = COALESCE(NULLIF(EXCLUDED.table_id, 0), order_statuses.table_id),
			updated_at = EXCLUDED.updated_at
		RETURNING (SELECT status FROM prev)`,
		s.Vendor, s.OrderID, s.RestaurantID, s.TableID, s.Status, s.UpdatedAt).Scan(&previous)
	if err != nil {
		return "", fmt.Errorf("upsert order status %s: %w", s.OrderID, err)
	}
	if previous == nil {
		return "", nil
	}
	return *previous, nil
}

// Get returns the stored status of an order.
func (o *OrderStatuses) Get(ctx context.Context, vendor, orderID string) (*models.OrderStatus, error) {
	s := models.OrderStatus{Vendor: vendor, OrderID: orderID}
	err := o.db.QueryRow(ctx, `SELECT restaurant_id, table_id, status, updated_at
		FROM order_statuses WHERE vendor = $1 AND order_id = $2`, vendor, orderID).
		Scan(&s.RestaurantID, &s.TableID, &s.Status, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order status %s: %w", orderID, err)
	}
	return &s, nil
}

// MemoryOrderStatuses is an in-process OrderStatuses.
type MemoryOrderStatuses struct {
	mu       sync.RWMutex
	statuses map[string]models.OrderStatus
}

// NewMemoryOrderStatuses returns an empty store.
func NewMemoryOrderStatuses() *MemoryOrderStatuses {
	return &MemoryOrderStatuses{statuses: make(map[string]models.OrderStatus)}
}

// Upsert mirrors OrderStatuses.Upsert.
func (m *MemoryOrderStatuses) Upsert(_ context.Context, s models.OrderStatus) (string, error) {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	key := s.Vendor + "|" + s.OrderID
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.statuses[key]
	if ok {
		if s.TableID == 0 {
			s.TableID = prev.TableID
		}
		if s.RestaurantID == "" {
			s.RestaurantID = prev.RestaurantID
		}
	}
	m.statuses[key] = s
	return prev.Status, nil
}

// Get mirrors OrderStatuses.Get.
func (m *MemoryOrderStatuses) Get(_ context.Context, vendor, orderID string) (*models.OrderStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[vendor+"|"+orderID]
	if !ok {
		return nil, ErrStatusNotFound
	}
	return &s, nil
}
