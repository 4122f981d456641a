package pos

import "context"

// Adapter is the contract every POS vendor integration satisfies. Each
// operation returns either a value or an error that converts to *Error via
// AsError; implementations never panic on vendor failures.
type Adapter interface {
	// Name returns the vendor identifier, e.g. "square".
	Name() string
	// Authenticate reports whether the configured credentials work. It never
	// returns an error; any failure yields false.
	Authenticate(ctx context.Context) bool

	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	RetrieveOrder(ctx context.Context, orderID string) (*Order, error)
	SearchOrders(ctx context.Context, req SearchOrdersRequest) (*SearchResult, error)
	AddItemToOrder(ctx context.Context, orderID string, item LineItem) (*Order, error)
	ProcessPayment(ctx context.Context, req PaymentRequest) (*Payment, error)
	GetAllOrders(ctx context.Context) ([]Order, error)
	ListLocations(ctx context.Context) ([]Location, error)
	GetCatalog(ctx context.Context) ([]CatalogObject, error)

	GetInventory(ctx context.Context, query InventoryQuery) (*InventoryPage, error)
	BatchRetrieveInventoryCounts(ctx context.Context, query InventoryQuery) (*InventoryPage, error)
	BatchCreateInventoryChanges(ctx context.Context, batch InventoryChangeBatch) ([]InventoryCount, error)

	CreateExternalPayment(ctx context.Context, req ExternalPaymentRequest) (*Payment, error)
	TableIDFromOrder(ctx context.Context, orderID string) (int, error)
}
