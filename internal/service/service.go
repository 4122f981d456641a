// Package service is the single entry point HTTP views and the CLI use to
// reach a POS vendor.
package service

import (
	"context"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/vendors"
)

// POSService owns one adapter and forwards every operation to it.
type POSService struct {
	adapter      pos.Adapter
	restaurantID string
}

// New wraps adapter.
func New(adapter pos.Adapter) *POSService {
	return &POSService{adapter: adapter}
}

// ForSelector builds the adapter for sel through factory. In tenant mode the
// resolved restaurant id is kept on the service.
func ForSelector(ctx context.Context, factory *vendors.Factory, sel vendors.Selector) (*POSService, error) {
	adapter, t, err := factory.Resolve(ctx, sel)
	if err != nil {
		return nil, err
	}
	svc := New(adapter)
	if t != nil {
		svc.restaurantID = t.RestaurantID
	}
	return svc, nil
}

// Adapter returns the wrapped adapter.
func (s *POSService) Adapter() pos.Adapter { return s.adapter }

// Vendor returns the adapter name.
func (s *POSService) Vendor() string { return s.adapter.Name() }

// RestaurantID is empty outside tenant mode.
func (s *POSService) RestaurantID() string { return s.restaurantID }

func (s *POSService) Authenticate(ctx context.Context) bool {
	return s.adapter.Authenticate(ctx)
}

func (s *POSService) CreateOrder(ctx context.Context, req pos.CreateOrderRequest) (*pos.Order, error) {
	return s.adapter.CreateOrder(ctx, req)
}

func (s *POSService) RetrieveOrder(ctx context.Context, orderID string) (*pos.Order, error) {
	return s.adapter.RetrieveOrder(ctx, orderID)
}

func (s *POSService) SearchOrders(ctx context.Context, req pos.SearchOrdersRequest) (*pos.SearchResult, error) {
	return s.adapter.SearchOrders(ctx, req)
}

func (s *POSService) AddItemToOrder(ctx context.Context, orderID string, item pos.LineItem) (*pos.Order, error) {
	return s.adapter.AddItemToOrder(ctx, orderID, item)
}

func (s *POSService) ProcessPayment(ctx context.Context, req pos.PaymentRequest) (*pos.Payment, error) {
	return s.adapter.ProcessPayment(ctx, req)
}

func (s *POSService) GetAllOrders(ctx context.Context) ([]pos.Order, error) {
	return s.adapter.GetAllOrders(ctx)
}

func (s *POSService) ListLocations(ctx context.Context) ([]pos.Location, error) {
	return s.adapter.ListLocations(ctx)
}

func (s *POSService) GetCatalog(ctx context.Context) ([]pos.CatalogObject, error) {
	return s.adapter.GetCatalog(ctx)
}

func (s *POSService) GetInventory(ctx context.Context, query pos.InventoryQuery) (*pos.InventoryPage, error) {
	return s.adapter.GetInventory(ctx, query)
}

func (s *POSService) BatchRetrieveInventoryCounts(ctx context.Context, query pos.InventoryQuery) (*pos.InventoryPage, error) {
	return s.adapter.BatchRetrieveInventoryCounts(ctx, query)
}

func (s *POSService) BatchCreateInventoryChanges(ctx context.Context, batch pos.InventoryChangeBatch) ([]pos.InventoryCount, error) {
	return s.adapter.BatchCreateInventoryChanges(ctx, batch)
}

func (s *POSService) CreateExternalPayment(ctx context.Context, req pos.ExternalPaymentRequest) (*pos.Payment, error) {
	return s.adapter.CreateExternalPayment(ctx, req)
}

func (s *POSService) TableIDFromOrder(ctx context.Context, orderID string) (int, error) {
	return s.adapter.TableIDFromOrder(ctx, orderID)
}
