// Package ncr implements the POS adapter for the NCR Voyix order service.
package ncr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/vendors"
	"github.com/example/pos-gateway/internal/vendors/rest"
)

const (
	sandboxBaseURL    = "https://gateway-staging.ncrcloud.com/order/3"
	productionBaseURL = "https://api.ncr.com/order/3"

	revenueCenter = "default"
	origin        = "IN_STORE"
	sourceSystem  = "pos-gateway"

	allOrdersPageSize = 100
	allOrdersMaxPages = 10
)

func init() {
	vendors.Register(pos.VendorNCR, "NCR Voyix order service (orders only)", func(cfg pos.AdapterConfig, logger zerolog.Logger) (pos.Adapter, error) {
		return New(cfg, logger)
	})
}

// Option customises the NCR adapter.
type Option func(*options)

type options struct {
	restOpts []rest.Option
	now      func() time.Time
}

// WithHTTPClient overrides the HTTP client used to talk to NCR.
func WithHTTPClient(client rest.HTTPClient) Option {
	return func(o *options) {
		o.restOpts = append(o.restOpts, rest.WithHTTPClient(client))
	}
}

// WithClock overrides the clock used for the signed Date header and order
// references.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Adapter implements pos.Adapter for NCR.
type Adapter struct {
	cfg    pos.AdapterConfig
	client *rest.Client
	now    func() time.Time
	logger zerolog.Logger
}

var _ pos.Adapter = (*Adapter)(nil)

// New constructs an NCR adapter. AccessToken is the shared access key and
// SecretKey the HMAC secret.
func New(cfg pos.AdapterConfig, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	cfg.Vendor = pos.VendorNCR
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	o := &options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	baseURL := productionBaseURL
	if cfg.Sandbox() {
		baseURL = sandboxBaseURL
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		baseURL = cfg.BaseURL
	}
	restOpts := append([]rest.Option{
		rest.WithBaseURL(baseURL),
		rest.WithTimeout(cfg.HTTPTimeout),
		rest.WithRequestHook(signer(cfg.AccessToken, cfg.SecretKey, cfg.OrganizationID, o.now)),
	}, o.restOpts...)

	return &Adapter{
		cfg:    cfg,
		client: rest.New("ncr", restOpts...),
		now:    o.now,
		logger: logger.With().Str("component", "ncr_adapter").Logger(),
	}, nil
}

// Name implements pos.Adapter.
func (a *Adapter) Name() string { return pos.VendorNCR }

// Authenticate runs a one-row order search as a credential check.
func (a *Adapter) Authenticate(ctx context.Context) bool {
	query := url.Values{"pageNumber": {"0"}, "pageSize": {"1"}}
	if _, err := a.client.Do(ctx, rest.Request{Method: http.MethodPost, Path: "/orders/find", Query: query, JSON: map[string]any{}}, nil); err != nil {
		a.logger.Warn().Err(err).Msg("ncr authentication failed")
		return false
	}
	return true
}

func (a *Adapter) orderReference() string {
	return fmt.Sprintf("order-%s-%s", a.now().UTC().Format("20060102150405"), uuid.NewString()[:8])
}

// CreateOrder implements pos.Adapter.
func (a *Adapter) CreateOrder(ctx context.Context, req pos.CreateOrderRequest) (*pos.Order, error) {
	req, err := pos.ValidateCreateOrder(req)
	if err != nil {
		return nil, err
	}

	refs := []referenceID{{Type: refOrderRef, Value: firstNonEmpty(req.ReferenceID, a.orderReference())}}
	table := strings.TrimSpace(req.TableNumber)
	if table == "" {
		table, _ = tableFromSourceName(req.SourceName)
	}
	if table != "" {
		refs = append([]referenceID{{Type: refTableNumber, Value: table}}, refs...)
	}

	items := make([]orderItem, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		items = append(items, toOrderItem(li))
	}
	body := map[string]any{
		"locationId":      firstNonEmpty(req.LocationID, a.cfg.LocationID),
		"revenueCenterId": revenueCenter,
		"status":          "OPEN",
		"origin":          origin,
		"currency":        a.cfg.CurrencyOrDefault(),
		"orderSource": map[string]string{
			"systemName":      sourceSystem,
			"applicationName": firstNonEmpty(req.SourceName, sourceSystem),
		},
		"additionalReferenceIds": refs,
		"orderItems":             items,
	}
	if req.Note != "" {
		body["comments"] = req.Note
	}
	if req.CustomerID != "" {
		body["customer"] = customer{ID: req.CustomerID}
	}

	headers := map[string]string{"Idempotency-Key": pos.IdempotencyKeyOr(req.IdempotencyKey)}
	order, err := a.doOrder(ctx, rest.Request{Method: http.MethodPost, Path: "/orders", JSON: body, Headers: headers})
	if err != nil {
		a.logger.Info().Err(err).Str("operation", "create_order").Msg("ncr order creation failed")
		return nil, err
	}
	a.logger.Debug().Str("order_id", order.ID).Msg("ncr order created")
	return order, nil
}

func (a *Adapter) doOrder(ctx context.Context, req rest.Request) (*pos.Order, error) {
	resp, err := a.client.Do(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	o, err := a.parseOrder(resp.Body)
	if err != nil {
		return nil, err
	}
	if o.ID == "" {
		return nil, pos.Newf(pos.KindVendor, "ncr: empty order in response")
	}
	return &o, nil
}

func (a *Adapter) parseOrder(data []byte) (pos.Order, error) {
	var o order
	if err := json.Unmarshal(data, &o); err != nil {
		return pos.Order{}, pos.Wrap(pos.KindVendor, err, "ncr: decode order")
	}
	var raw map[string]any
	_ = json.Unmarshal(data, &raw)
	return o.toPos(raw, a.cfg.CurrencyOrDefault()), nil
}

// RetrieveOrder implements pos.Adapter.
func (a *Adapter) RetrieveOrder(ctx context.Context, orderID string) (*pos.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pos.Validation("order id is required")
	}
	return a.doOrder(ctx, rest.Request{Path: "/orders/" + url.PathEscape(orderID)})
}

// SearchOrders posts a find query. Source names of the form "Table N" become
// TABLE_NUMBER reference filters; the cursor is the next page number.
func (a *Adapter) SearchOrders(ctx context.Context, req pos.SearchOrdersRequest) (*pos.SearchResult, error) {
	req = req.WithDefaults()
	page := 0
	if req.Cursor != "" {
		n, err := strconv.Atoi(req.Cursor)
		if err != nil || n < 0 {
			return nil, pos.Validation("invalid cursor %q", req.Cursor)
		}
		page = n
	}

	body := map[string]any{
		"sortField": sortField(req.SortField),
		"sortOrder": req.SortOrder,
	}
	locations := req.LocationIDs
	if len(locations) == 0 && a.cfg.LocationID != "" {
		locations = []string{a.cfg.LocationID}
	}
	if len(locations) > 0 {
		body["locationIds"] = locations
	}
	if len(req.States) > 0 {
		statuses := make([]string, 0, len(req.States))
		for _, s := range req.States {
			statuses = append(statuses, ncrStatus(s))
		}
		body["statuses"] = statuses
	}
	if len(req.CustomerIDs) > 0 {
		body["customerIds"] = req.CustomerIDs
	}
	var refs []referenceID
	for _, name := range req.SourceNames {
		if table, ok := tableFromSourceName(name); ok {
			refs = append(refs, referenceID{Type: refTableNumber, Value: table})
		}
	}
	if len(refs) > 0 {
		body["additionalReferenceIds"] = refs
	}
	if req.ClosedAtStart != "" {
		body["dateClosedStart"] = req.ClosedAtStart
	}
	if req.ClosedAtEnd != "" {
		body["dateClosedEnd"] = req.ClosedAtEnd
	}

	found, err := a.find(ctx, body, page, req.Limit)
	if err != nil {
		return nil, err
	}
	result := &pos.SearchResult{}
	if !found.LastPage && len(found.PageContent) > 0 {
		result.Cursor = strconv.Itoa(page + 1)
	}
	for _, raw := range found.PageContent {
		o, err := a.parseOrder(raw)
		if err != nil {
			return nil, err
		}
		if req.ReturnEntries {
			result.Entries = append(result.Entries, pos.OrderEntry{
				OrderID:    o.ID,
				LocationID: o.LocationID,
				UpdatedAt:  o.UpdatedAt,
				ClosedAt:   o.ClosedAt,
			})
			continue
		}
		result.Orders = append(result.Orders, o)
	}
	return result, nil
}

func sortField(field string) string {
	switch field {
	case pos.SortClosedAt:
		return "dateClosed"
	case pos.SortUpdatedAt:
		return "dateUpdated"
	default:
		return "dateCreated"
	}
}

func (a *Adapter) find(ctx context.Context, body map[string]any, page, size int) (*findResponse, error) {
	query := url.Values{"pageNumber": {strconv.Itoa(page)}, "pageSize": {strconv.Itoa(size)}}
	var resp findResponse
	if _, err := a.client.Do(ctx, rest.Request{Method: http.MethodPost, Path: "/orders/find", Query: query, JSON: body}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddItemToOrder patches the order with its existing items plus item.
func (a *Adapter) AddItemToOrder(ctx context.Context, orderID string, item pos.LineItem) (*pos.Order, error) {
	item, err := pos.ValidateLineItem(item)
	if err != nil {
		return nil, err
	}
	current, err := a.RetrieveOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if pos.IsTerminalState(current.State) {
		return nil, pos.Validation("order %s is %s", current.ID, strings.ToLower(current.State))
	}
	items := make([]orderItem, 0, len(current.LineItems)+1)
	for _, li := range current.LineItems {
		oi := toOrderItem(li)
		oi.LineID = li.UID
		items = append(items, oi)
	}
	items = append(items, toOrderItem(item))

	path := "/orders/" + url.PathEscape(current.ID)
	return a.doOrder(ctx, rest.Request{Method: http.MethodPatch, Path: path, JSON: map[string]any{"orderItems": items}})
}

// GetAllOrders pages through find results up to a fixed page limit.
func (a *Adapter) GetAllOrders(ctx context.Context) ([]pos.Order, error) {
	body := map[string]any{"sortField": "dateCreated", "sortOrder": pos.SortDesc}
	if a.cfg.LocationID != "" {
		body["locationIds"] = []string{a.cfg.LocationID}
	}
	var out []pos.Order
	for page := 0; page < allOrdersMaxPages; page++ {
		found, err := a.find(ctx, body, page, allOrdersPageSize)
		if err != nil {
			return nil, err
		}
		for _, raw := range found.PageContent {
			o, err := a.parseOrder(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
		if found.LastPage || len(found.PageContent) == 0 {
			break
		}
	}
	return out, nil
}

// ListLocations returns the configured organization as the only location.
func (a *Adapter) ListLocations(context.Context) ([]pos.Location, error) {
	return []pos.Location{{
		ID:       a.cfg.OrganizationID,
		Name:     a.cfg.OrganizationID,
		Status:   "ACTIVE",
		Currency: a.cfg.CurrencyOrDefault(),
	}}, nil
}

// ProcessPayment is not available through this adapter.
func (a *Adapter) ProcessPayment(context.Context, pos.PaymentRequest) (*pos.Payment, error) {
	return nil, pos.Unsupported(pos.VendorNCR, "payments")
}

// GetCatalog is not available through this adapter.
func (a *Adapter) GetCatalog(context.Context) ([]pos.CatalogObject, error) {
	return nil, pos.Unsupported(pos.VendorNCR, "catalog")
}

// GetInventory is not available through this adapter.
func (a *Adapter) GetInventory(context.Context, pos.InventoryQuery) (*pos.InventoryPage, error) {
	return nil, pos.Unsupported(pos.VendorNCR, "inventory")
}

// BatchRetrieveInventoryCounts is not available through this adapter.
func (a *Adapter) BatchRetrieveInventoryCounts(context.Context, pos.InventoryQuery) (*pos.InventoryPage, error) {
	return nil, pos.Unsupported(pos.VendorNCR, "inventory")
}

// BatchCreateInventoryChanges is not available through this adapter.
func (a *Adapter) BatchCreateInventoryChanges(context.Context, pos.InventoryChangeBatch) ([]pos.InventoryCount, error) {
	return nil, pos.Unsupported(pos.VendorNCR, "inventory")
}

// CreateExternalPayment is not available through this adapter.
func (a *Adapter) CreateExternalPayment(context.Context, pos.ExternalPaymentRequest) (*pos.Payment, error) {
	return nil, pos.Unsupported(pos.VendorNCR, "external payments")
}

// TableIDFromOrder reads the TABLE_NUMBER reference of the order.
func (a *Adapter) TableIDFromOrder(ctx context.Context, orderID string) (int, error) {
	o, err := a.RetrieveOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return pos.TableIDFromFields(o.Metadata, o.ReferenceID, o.SourceName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
