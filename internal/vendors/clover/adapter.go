// Package clover implements the POS adapter for the Clover v3 REST API.
package clover

import (
	"context"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/vendors"
	"github.com/example/pos-gateway/internal/vendors/rest"
)

const (
	sandboxBaseURL    = "https://sandbox.dev.clover.com/v3"
	productionBaseURL = "https://api.clover.com/v3"

	allOrdersLimit = 100
	catalogLimit   = 1000
)

func init() {
	vendors.Register(pos.VendorClover, "Clover merchant Orders and Payments APIs", func(cfg pos.AdapterConfig, logger zerolog.Logger) (pos.Adapter, error) {
		return New(cfg, logger)
	})
}

// Option customises the Clover adapter.
type Option func(*options)

type options struct {
	restOpts []rest.Option
}

// WithHTTPClient overrides the HTTP client used to talk to Clover.
func WithHTTPClient(client rest.HTTPClient) Option {
	return func(o *options) {
		o.restOpts = append(o.restOpts, rest.WithHTTPClient(client))
	}
}

// Adapter implements pos.Adapter for Clover.
type Adapter struct {
	cfg    pos.AdapterConfig
	client *rest.Client
	logger zerolog.Logger
}

var _ pos.Adapter = (*Adapter)(nil)

// New constructs a Clover adapter. cfg must carry an API token and a merchant
// id.
func New(cfg pos.AdapterConfig, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	cfg.Vendor = pos.VendorClover
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	baseURL := productionBaseURL
	if cfg.Sandbox() {
		baseURL = sandboxBaseURL
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		baseURL = cfg.BaseURL
	}

	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	merchantBase := strings.TrimRight(baseURL, "/") + "/merchants/" + url.PathEscape(cfg.MerchantID)
	restOpts := append([]rest.Option{
		rest.WithBaseURL(merchantBase),
		rest.WithTimeout(cfg.HTTPTimeout),
		rest.WithBearerToken(cfg.AccessToken),
	}, o.restOpts...)

	return &Adapter{
		cfg:    cfg,
		client: rest.New("clover", restOpts...),
		logger: logger.With().Str("component", "clover_adapter").Logger(),
	}, nil
}

// Name implements pos.Adapter.
func (a *Adapter) Name() string { return pos.VendorClover }

// Authenticate fetches the merchant record as a credential check.
func (a *Adapter) Authenticate(ctx context.Context) bool {
	if _, err := a.client.Do(ctx, rest.Request{}, nil); err != nil {
		a.logger.Warn().Err(err).Msg("clover authentication failed")
		return false
	}
	return true
}

// CreateOrder posts the order shell, then one line item per unit, then
// re-reads the order. A failing line item aborts with the order left in
// place.
func (a *Adapter) CreateOrder(ctx context.Context, req pos.CreateOrderRequest) (*pos.Order, error) {
	req, err := pos.ValidateCreateOrder(req)
	if err != nil {
		return nil, err
	}

	source := req.SourceName
	if source == "" {
		source = pos.TableSourceName(req.TableNumber)
	}
	note := strings.TrimSpace(req.Note)
	if source != "" && !strings.Contains(strings.ToLower(note), strings.ToLower(source)) {
		note = strings.TrimSpace(note + " " + source)
	}

	body := map[string]any{
		"state":    "open",
		"note":     note,
		"currency": a.cfg.CurrencyOrDefault(),
	}
	if source != "" {
		body["title"] = source
	}
	if req.CustomerID != "" {
		body["customers"] = []ref{{ID: req.CustomerID}}
	}

	var created order
	headers := map[string]string{"Idempotency-Key": pos.IdempotencyKeyOr(req.IdempotencyKey)}
	if _, err := a.client.Do(ctx, rest.Request{Method: http.MethodPost, Path: "/orders", JSON: body, Headers: headers}, &created); err != nil {
		a.logger.Info().Err(err).Str("operation", "create_order").Msg("clover order creation failed")
		return nil, err
	}
	if created.ID == "" {
		return nil, pos.Newf(pos.KindVendor, "clover: create order: empty order id in response")
	}

	for _, item := range req.LineItems {
		if err := a.postLineItem(ctx, created.ID, item); err != nil {
			a.logger.Info().Err(err).Str("order_id", created.ID).Msg("clover line item failed after order creation")
			return nil, err
		}
	}
	return a.RetrieveOrder(ctx, created.ID)
}

func (a *Adapter) postLineItem(ctx context.Context, orderID string, item pos.LineItem) error {
	li := lineItem{Name: item.Name, Price: item.UnitPrice, Note: item.Note}
	if item.CatalogObjectID != "" {
		li.Item = &ref{ID: item.CatalogObjectID}
	}
	path := "/orders/" + url.PathEscape(orderID) + "/line_items"
	for i := 0; i < item.Quantity; i++ {
		if _, err := a.client.Do(ctx, rest.Request{Method: http.MethodPost, Path: path, JSON: li}, nil); err != nil {
			return err
		}
	}
	return nil
}

// RetrieveOrder implements pos.Adapter.
func (a *Adapter) RetrieveOrder(ctx context.Context, orderID string) (*pos.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pos.Validation("order id is required")
	}
	var o order
	query := url.Values{"expand": {"lineItems,customers"}}
	if _, err := a.client.Do(ctx, rest.Request{Path: "/orders/" + url.PathEscape(orderID), Query: query}, &o); err != nil {
		return nil, err
	}
	out := o.toPos(a.cfg.MerchantID)
	return &out, nil
}

// SearchOrders lists orders with server side state and customer filters.
// Source names are matched client side against the order note, case
// insensitively. The cursor is the offset of the next page.
func (a *Adapter) SearchOrders(ctx context.Context, req pos.SearchOrdersRequest) (*pos.SearchResult, error) {
	req = req.WithDefaults()
	closedAfter, err := parseBound("closed_at_start", req.ClosedAtStart)
	if err != nil {
		return nil, err
	}
	closedBefore, err := parseBound("closed_at_end", req.ClosedAtEnd)
	if err != nil {
		return nil, err
	}
	offset := 0
	if req.Cursor != "" {
		n, err := strconv.Atoi(req.Cursor)
		if err != nil || n < 0 {
			return nil, pos.Validation("invalid cursor %q", req.Cursor)
		}
		offset = n
	}

	query := url.Values{
		"limit":  {strconv.Itoa(req.Limit)},
		"offset": {strconv.Itoa(offset)},
		"expand": {"lineItems"},
	}
	for _, id := range req.CustomerIDs {
		query.Add("filter", "customer.id="+id)
	}
	if onlyOpen(req.States) {
		query.Add("filter", "state=open")
	}
	sortField := "createdTime"
	if req.SortField == pos.SortClosedAt || req.SortField == pos.SortUpdatedAt {
		sortField = "modifiedTime"
	}
	query.Set("orderBy", sortField+" "+strings.ToUpper(req.SortOrder))

	var list orderList
	if _, err := a.client.Do(ctx, rest.Request{Path: "/orders", Query: query}, &list); err != nil {
		return nil, err
	}

	result := &pos.SearchResult{}
	if len(list.Elements) == req.Limit {
		result.Cursor = strconv.Itoa(offset + req.Limit)
	}
	for _, o := range list.Elements {
		converted := o.toPos(a.cfg.MerchantID)
		if !matchesSearch(converted, req, closedAfter, closedBefore) {
			continue
		}
		if req.ReturnEntries {
			result.Entries = append(result.Entries, pos.OrderEntry{
				OrderID:    converted.ID,
				LocationID: converted.LocationID,
				UpdatedAt:  converted.UpdatedAt,
				ClosedAt:   converted.ClosedAt,
			})
			continue
		}
		result.Orders = append(result.Orders, converted)
	}
	return result, nil
}

// onlyOpen reports whether states asks for open orders alone. Completed
// orders can still be "open" on Clover with a PAID payment state, so only an
// open-only search is narrowed server side.
func onlyOpen(states []string) bool {
	if len(states) == 0 {
		return false
	}
	for _, s := range states {
		if s != pos.StateOpen {
			return false
		}
	}
	return true
}

func parseBound(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, pos.Validation("%s must be an RFC3339 timestamp, got %q", name, value)
	}
	return t, nil
}

func matchesSearch(o pos.Order, req pos.SearchOrdersRequest, closedAfter, closedBefore time.Time) bool {
	if len(req.States) > 0 {
		found := false
		for _, s := range req.States {
			if s == o.State {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(req.SourceNames) > 0 {
		note := strings.ToLower(o.Note)
		found := false
		for _, name := range req.SourceNames {
			if name != "" && strings.Contains(note, strings.ToLower(name)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !closedAfter.IsZero() || !closedBefore.IsZero() {
		closed, err := time.Parse(time.RFC3339, o.ClosedAt)
		if err != nil {
			return false
		}
		if !closedAfter.IsZero() && closed.Before(closedAfter) {
			return false
		}
		if !closedBefore.IsZero() && closed.After(closedBefore) {
			return false
		}
	}
	return true
}

// AddItemToOrder posts the item and re-reads the order. Clover has no order
// version, so there is no conflict detection.
func (a *Adapter) AddItemToOrder(ctx context.Context, orderID string, item pos.LineItem) (*pos.Order, error) {
	item, err := pos.ValidateLineItem(item)
	if err != nil {
		return nil, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pos.Validation("order id is required")
	}
	if err := a.postLineItem(ctx, orderID, item); err != nil {
		return nil, err
	}
	return a.RetrieveOrder(ctx, orderID)
}

// ProcessPayment records a payment on an order. Clover requires the order id.
func (a *Adapter) ProcessPayment(ctx context.Context, req pos.PaymentRequest) (*pos.Payment, error) {
	if err := pos.ValidatePayment(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, pos.Validation("clover payments require an order id")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = a.cfg.CurrencyOrDefault()
	}
	reference := req.ReferenceID
	if reference == "" {
		reference = pos.NewIdempotencyKey()
	}
	body := map[string]any{
		"amount":                req.Amount,
		"currency":              currency,
		"external_reference_id": reference,
		"source":                req.SourceID,
	}
	if req.TipAmount > 0 {
		body["tipAmount"] = req.TipAmount
	}

	var p payment
	path := "/orders/" + url.PathEscape(req.OrderID) + "/payments"
	headers := map[string]string{"Idempotency-Key": pos.NewIdempotencyKey()}
	if _, err := a.client.Do(ctx, rest.Request{Method: http.MethodPost, Path: path, JSON: body, Headers: headers}, &p); err != nil {
		a.logger.Info().Err(err).Str("order_id", req.OrderID).Msg("clover payment failed")
		return nil, err
	}
	return p.toPos(req.OrderID, currency), nil
}

// GetAllOrders returns the most recent orders, up to a fixed limit.
func (a *Adapter) GetAllOrders(ctx context.Context) ([]pos.Order, error) {
	var list orderList
	query := url.Values{"limit": {strconv.Itoa(allOrdersLimit)}, "expand": {"lineItems"}}
	if _, err := a.client.Do(ctx, rest.Request{Path: "/orders", Query: query}, &list); err != nil {
		return nil, err
	}
	out := make([]pos.Order, 0, len(list.Elements))
	for _, o := range list.Elements {
		out = append(out, o.toPos(a.cfg.MerchantID))
	}
	return out, nil
}

// ListLocations returns the merchant itself as the only location.
func (a *Adapter) ListLocations(ctx context.Context) ([]pos.Location, error) {
	var m merchant
	if _, err := a.client.Do(ctx, rest.Request{}, &m); err != nil {
		return nil, err
	}
	return []pos.Location{{
		ID:       m.ID,
		Name:     m.Name,
		Status:   "ACTIVE",
		Currency: a.cfg.CurrencyOrDefault(),
		Address:  m.Address,
	}}, nil
}

// GetCatalog lists inventory items with their categories. Each item becomes
// an ITEM object with a single variation carrying its price.
func (a *Adapter) GetCatalog(ctx context.Context) ([]pos.CatalogObject, error) {
	var list itemList
	query := url.Values{"expand": {"categories"}, "limit": {strconv.Itoa(catalogLimit)}}
	if _, err := a.client.Do(ctx, rest.Request{Path: "/items", Query: query}, &list); err != nil {
		return nil, err
	}
	currency := a.cfg.CurrencyOrDefault()
	out := make([]pos.CatalogObject, 0, len(list.Elements))
	for _, it := range list.Elements {
		if it.Hidden {
			continue
		}
		obj := pos.CatalogObject{
			ID:   it.ID,
			Type: "ITEM",
			Name: it.Name,
			Variations: []pos.CatalogVariation{{
				ID:    it.ID,
				Name:  it.Name,
				Price: pos.Money{Amount: it.Price, Currency: currency},
			}},
		}
		if len(it.Categories.Elements) > 0 {
			obj.CategoryID = it.Categories.Elements[0].ID
		}
		out = append(out, obj)
	}
	return out, nil
}

// GetInventory is not available through this adapter.
func (a *Adapter) GetInventory(context.Context, pos.InventoryQuery) (*pos.InventoryPage, error) {
	return nil, pos.Unsupported(pos.VendorClover, "inventory")
}

// BatchRetrieveInventoryCounts is not available through this adapter.
func (a *Adapter) BatchRetrieveInventoryCounts(context.Context, pos.InventoryQuery) (*pos.InventoryPage, error) {
	return nil, pos.Unsupported(pos.VendorClover, "inventory")
}

// BatchCreateInventoryChanges is not available through this adapter.
func (a *Adapter) BatchCreateInventoryChanges(context.Context, pos.InventoryChangeBatch) ([]pos.InventoryCount, error) {
	return nil, pos.Unsupported(pos.VendorClover, "inventory")
}

// CreateExternalPayment is not available through this adapter.
func (a *Adapter) CreateExternalPayment(context.Context, pos.ExternalPaymentRequest) (*pos.Payment, error) {
	return nil, pos.Unsupported(pos.VendorClover, "external payments")
}

// TableIDFromOrder reads the table from the order title or note.
func (a *Adapter) TableIDFromOrder(ctx context.Context, orderID string) (int, error) {
	o, err := a.RetrieveOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if n, err := pos.TableIDFromFields(nil, o.SourceName, ""); err == nil {
		return n, nil
	}
	return pos.TableIDFromFields(nil, "", o.Note)
}
