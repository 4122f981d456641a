package pos

import (
	"strings"
	"time"
)

// Vendor identifiers understood by the factory.
const (
	VendorSquare = "square"
	VendorClover = "clover"
	VendorNCR    = "ncr"
	VendorMock   = "mock"
)

// Environment values accepted in AdapterConfig.
const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

// DefaultCurrency is used whenever neither the caller nor the config sets one.
const DefaultCurrency = "GBP"

// AdapterConfig carries everything needed to construct one adapter. It is
// copied into the adapter at construction and never mutated afterwards.
type AdapterConfig struct {
	Vendor         string
	AccessToken    string
	LocationID     string
	MerchantID     string
	OrganizationID string
	SecretKey      string
	Environment    string
	BaseURL        string
	Currency       string
	HTTPTimeout    time.Duration
}

// Sandbox reports whether the config targets a vendor sandbox. Anything other
// than an explicit production value is treated as sandbox.
func (c AdapterConfig) Sandbox() bool {
	return !strings.EqualFold(strings.TrimSpace(c.Environment), EnvironmentProduction)
}

// CurrencyOrDefault returns the configured currency or DefaultCurrency.
func (c AdapterConfig) CurrencyOrDefault() string {
	if cur := strings.TrimSpace(c.Currency); cur != "" {
		return strings.ToUpper(cur)
	}
	return DefaultCurrency
}

// Validate fails when a credential the vendor requires is missing.
func (c AdapterConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.AccessToken) == "" {
		missing = append(missing, "access token")
	}
	switch strings.ToLower(strings.TrimSpace(c.Vendor)) {
	case VendorSquare:
		if strings.TrimSpace(c.LocationID) == "" {
			missing = append(missing, "location id")
		}
	case VendorClover:
		if strings.TrimSpace(c.MerchantID) == "" {
			missing = append(missing, "merchant id")
		}
	case VendorNCR:
		if strings.TrimSpace(c.OrganizationID) == "" {
			missing = append(missing, "organization id")
		}
		if strings.TrimSpace(c.SecretKey) == "" {
			missing = append(missing, "secret key")
		}
	}
	if len(missing) > 0 {
		return Validation("%s adapter config incomplete: missing %s", c.Vendor, strings.Join(missing, ", "))
	}
	return nil
}

// Money is an amount in the smallest currency unit.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// LineItem is one order line. UnitPrice is in the smallest currency unit.
type LineItem struct {
	UID             string `json:"uid,omitempty"`
	Name            string `json:"name,omitempty"`
	Quantity        int    `json:"quantity"`
	UnitPrice       int64  `json:"unit_price,omitempty"`
	CatalogObjectID string `json:"catalog_object_id,omitempty"`
	Note            string `json:"note,omitempty"`
	Total           int64  `json:"total,omitempty"`
}

// Subtotal is quantity times unit price.
func (li LineItem) Subtotal() int64 {
	return int64(li.Quantity) * li.UnitPrice
}

// Order is the vendor neutral order representation.
type Order struct {
	ID          string            `json:"id"`
	LocationID  string            `json:"location_id,omitempty"`
	State       string            `json:"state,omitempty"`
	Version     int64             `json:"version,omitempty"`
	ReferenceID string            `json:"reference_id,omitempty"`
	CustomerID  string            `json:"customer_id,omitempty"`
	SourceName  string            `json:"source_name,omitempty"`
	Note        string            `json:"note,omitempty"`
	LineItems   []LineItem        `json:"line_items"`
	Total       int64             `json:"total"`
	TaxTotal    int64             `json:"tax_total,omitempty"`
	TipTotal    int64             `json:"tip_total,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at,omitempty"`
	UpdatedAt   string            `json:"updated_at,omitempty"`
	ClosedAt    string            `json:"closed_at,omitempty"`
	Raw         map[string]any    `json:"raw,omitempty"`
}

// OrderEntry is the lightweight search result form of an order.
type OrderEntry struct {
	OrderID    string `json:"order_id"`
	LocationID string `json:"location_id,omitempty"`
	Version    int64  `json:"version,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
	ClosedAt   string `json:"closed_at,omitempty"`
}

// SearchResult holds either Orders or Entries depending on the request.
type SearchResult struct {
	Orders  []Order      `json:"orders,omitempty"`
	Entries []OrderEntry `json:"order_entries,omitempty"`
	Cursor  string       `json:"cursor,omitempty"`
}

// Len returns the number of results regardless of form.
func (r *SearchResult) Len() int {
	if r == nil {
		return 0
	}
	if len(r.Entries) > 0 {
		return len(r.Entries)
	}
	return len(r.Orders)
}

// Payment is a payment recorded against the vendor.
type Payment struct {
	ID          string         `json:"id"`
	OrderID     string         `json:"order_id,omitempty"`
	LocationID  string         `json:"location_id,omitempty"`
	Status      string         `json:"status,omitempty"`
	SourceType  string         `json:"source_type,omitempty"`
	ReferenceID string         `json:"reference_id,omitempty"`
	Note        string         `json:"note,omitempty"`
	Amount      Money          `json:"amount"`
	Tip         Money          `json:"tip,omitempty"`
	AppFee      *Money         `json:"app_fee,omitempty"`
	ReceiptURL  string         `json:"receipt_url,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// Location is a vendor location or merchant.
type Location struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	Status   string         `json:"status,omitempty"`
	Currency string         `json:"currency,omitempty"`
	Timezone string         `json:"timezone,omitempty"`
	Address  map[string]any `json:"address,omitempty"`
}

// CatalogVariation is a sellable variation of a catalog item.
type CatalogVariation struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Price Money  `json:"price"`
}

// CatalogObject is an item or category from the vendor catalog.
type CatalogObject struct {
	ID          string             `json:"id"`
	Type        string             `json:"type"`
	Name        string             `json:"name,omitempty"`
	Description string             `json:"description,omitempty"`
	CategoryID  string             `json:"category_id,omitempty"`
	Variations  []CatalogVariation `json:"variations,omitempty"`
}

// InventoryCount is the stock level of a catalog object at a location.
type InventoryCount struct {
	CatalogObjectID   string `json:"catalog_object_id"`
	CatalogObjectType string `json:"catalog_object_type,omitempty"`
	LocationID        string `json:"location_id"`
	State             string `json:"state"`
	Quantity          string `json:"quantity"`
	CalculatedAt      string `json:"calculated_at,omitempty"`
}

// Inventory change types.
const (
	InventoryChangePhysicalCount = "PHYSICAL_COUNT"
	InventoryChangeAdjustment    = "ADJUSTMENT"
)

// InventoryChange is one stock movement. FromState/ToState only apply to
// adjustments; State only applies to physical counts.
type InventoryChange struct {
	Type            string `json:"type"`
	ID              string `json:"id,omitempty"`
	CatalogObjectID string `json:"catalog_object_id"`
	LocationID      string `json:"location_id"`
	Quantity        string `json:"quantity"`
	State           string `json:"state,omitempty"`
	FromState       string `json:"from_state,omitempty"`
	ToState         string `json:"to_state,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

// InventoryPage is one page of inventory counts.
type InventoryPage struct {
	Counts []InventoryCount `json:"counts"`
	Cursor string           `json:"cursor,omitempty"`
}
