package mock

import (
	"strings"
	"sync"

	"github.com/example/pos-gateway/internal/pos"
)

// Store holds the state of one mock merchant.
type Store struct {
	mu          sync.RWMutex
	orders      map[string]pos.Order
	payments    map[string]pos.Payment
	idempotency map[string]string
	catalog     []pos.CatalogObject
	inventory   map[string]pos.InventoryCount
}

// NewStore returns a store seeded with a small catalog.
func NewStore() *Store {
	return &Store{
		orders:      make(map[string]pos.Order),
		payments:    make(map[string]pos.Payment),
		idempotency: make(map[string]string),
		inventory:   make(map[string]pos.InventoryCount),
		catalog: []pos.CatalogObject{
			{ID: "cat-mains", Type: "CATEGORY", Name: "Mains"},
			{
				ID: "item-burger", Type: "ITEM", Name: "Burger", CategoryID: "cat-mains",
				Variations: []pos.CatalogVariation{{ID: "var-burger", Name: "Regular", Price: pos.Money{Amount: 1299, Currency: pos.DefaultCurrency}}},
			},
			{
				ID: "item-fries", Type: "ITEM", Name: "Fries", CategoryID: "cat-mains",
				Variations: []pos.CatalogVariation{{ID: "var-fries", Name: "Regular", Price: pos.Money{Amount: 399, Currency: pos.DefaultCurrency}}},
			},
		},
	}
}

// Payments returns the payments recorded against orderID.
func (s *Store) Payments(orderID string) []pos.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pos.Payment
	for _, p := range s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out
}

var (
	sharedMu     sync.Mutex
	sharedStores = make(map[string]*Store)
)

// SharedStore returns the process wide store for the credentials in cfg, so
// adapters built per request see the same orders. Different tokens or
// locations never share a store.
func SharedStore(cfg pos.AdapterConfig) *Store {
	key := strings.TrimSpace(cfg.AccessToken) + "|" + strings.TrimSpace(cfg.LocationID)
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if s, ok := sharedStores[key]; ok {
		return s
	}
	s := NewStore()
	sharedStores[key] = s
	return s
}
