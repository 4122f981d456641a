// Package square implements the POS adapter for the Square v2 REST API.
package square

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/vendors"
	"github.com/example/pos-gateway/internal/vendors/rest"
)

const (
	sandboxBaseURL    = "https://connect.squareupsandbox.com"
	productionBaseURL = "https://connect.squareup.com"
	apiVersion        = "2024-06-04"

	allOrdersPageSize = 500
	maxAllOrdersPages = 10
)

func init() {
	vendors.Register(pos.VendorSquare, "Square Orders, Payments, Catalog and Inventory APIs", func(cfg pos.AdapterConfig, logger zerolog.Logger) (pos.Adapter, error) {
		return New(cfg, logger)
	})
}

// Option customises the Square adapter.
type Option func(*options)

type options struct {
	restOpts []rest.Option
}

// WithHTTPClient overrides the HTTP client used to talk to Square.
func WithHTTPClient(client rest.HTTPClient) Option {
	return func(o *options) {
		o.restOpts = append(o.restOpts, rest.WithHTTPClient(client))
	}
}

// Adapter implements pos.Adapter for Square.
type Adapter struct {
	cfg    pos.AdapterConfig
	client *rest.Client
	logger zerolog.Logger
}

var _ pos.Adapter = (*Adapter)(nil)

// New constructs a Square adapter. cfg must carry an access token and a
// location id.
func New(cfg pos.AdapterConfig, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	cfg.Vendor = pos.VendorSquare
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
	restOpts := append([]rest.Option{
		rest.WithBaseURL(baseURL),
		rest.WithTimeout(cfg.HTTPTimeout),
		rest.WithBearerToken(cfg.AccessToken),
		rest.WithHeader("Square-Version", apiVersion),
		rest.WithErrorParser(parseErrors),
	}, o.restOpts...)

	return &Adapter{
		cfg:    cfg,
		client: rest.New("square", restOpts...),
		logger: logger.With().Str("component", "square_adapter").Logger(),
	}, nil
}

// Name implements pos.Adapter.
func (a *Adapter) Name() string { return pos.VendorSquare }

// Authenticate lists locations as a credential check.
func (a *Adapter) Authenticate(ctx context.Context) bool {
	var resp locationsResponse
	if _, err := a.client.Do(ctx, rest.Request{Path: "/v2/locations"}, &resp); err != nil {
		a.logger.Warn().Err(err).Msg("square authentication failed")
		return false
	}
	return resp.err("authenticate") == nil
}

// CreateOrder implements pos.Adapter.
func (a *Adapter) CreateOrder(ctx context.Context, req pos.CreateOrderRequest) (*pos.Order, error) {
	req, err := pos.ValidateCreateOrder(req)
	if err != nil {
		return nil, err
	}
	currency := a.cfg.CurrencyOrDefault()

	wire := order{
		LocationID:  firstNonEmpty(req.LocationID, a.cfg.LocationID),
		CustomerID:  req.CustomerID,
		ReferenceID: req.ReferenceID,
		Metadata:    req.Metadata,
	}
	for _, item := range req.LineItems {
		wire.LineItems = append(wire.LineItems, toWireLineItem(item, currency))
	}
	source := req.SourceName
	if table := strings.TrimSpace(req.TableNumber); table != "" {
		if wire.Metadata == nil {
			wire.Metadata = map[string]string{}
		}
		wire.Metadata["table_id"] = table
		if source == "" {
			source = pos.TableSourceName(table)
		}
	}
	if source != "" {
		wire.Source = &orderSource{Name: source}
	}

	body := map[string]any{
		"idempotency_key": pos.IdempotencyKeyOr(req.IdempotencyKey),
		"order":           wire,
	}
	out, err := a.doOrder(ctx, http.MethodPost, "/v2/orders", body, "create order")
	if err != nil {
		a.logger.Info().Err(err).Str("operation", "create_order").Msg("square order creation failed")
		return nil, err
	}
	a.logger.Debug().Str("order_id", out.ID).Msg("square order created")
	return out, nil
}

// RetrieveOrder implements pos.Adapter.
func (a *Adapter) RetrieveOrder(ctx context.Context, orderID string) (*pos.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pos.Validation("order id is required")
	}
	return a.doOrder(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(orderID), nil, "retrieve order")
}

// AddItemToOrder appends item using the current order version. A version
// conflict surfaces as a vendor error; the update is not retried.
func (a *Adapter) AddItemToOrder(ctx context.Context, orderID string, item pos.LineItem) (*pos.Order, error) {
	item, err := pos.ValidateLineItem(item)
	if err != nil {
		return nil, err
	}
	current, err := a.RetrieveOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"order": order{
			LocationID: firstNonEmpty(current.LocationID, a.cfg.LocationID),
			Version:    current.Version,
			LineItems:  []lineItem{toWireLineItem(item, firstNonEmpty(current.Currency, a.cfg.CurrencyOrDefault()))},
		},
		"idempotency_key": pos.NewIdempotencyKey(),
	}
	out, err := a.doOrder(ctx, http.MethodPut, "/v2/orders/"+url.PathEscape(current.ID), body, "update order")
	if err != nil {
		a.logger.Info().Err(err).Str("order_id", current.ID).Int64("version", current.Version).Msg("square order update failed")
		return nil, err
	}
	return out, nil
}

func (a *Adapter) doOrder(ctx context.Context, method, path string, body any, operation string) (*pos.Order, error) {
	var raw struct {
		errorEnvelope
		Order json.RawMessage `json:"order"`
	}
	if _, err := a.client.Do(ctx, rest.Request{Method: method, Path: path, JSON: body}, &raw); err != nil {
		return nil, err
	}
	if err := raw.err(operation); err != nil {
		return nil, err
	}
	if len(raw.Order) == 0 {
		return nil, pos.Newf(pos.KindVendor, "square: %s: empty order in response", operation)
	}
	return ParseOrder(raw.Order)
}

// ParseOrder decodes a Square order object, such as the one carried in an
// order webhook.
func ParseOrder(raw json.RawMessage) (*pos.Order, error) {
	var o order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, pos.Wrap(pos.KindVendor, err, "square: decode order")
	}
	return toOrder(&o, raw), nil
}

// SearchOrders implements pos.Adapter.
func (a *Adapter) SearchOrders(ctx context.Context, req pos.SearchOrdersRequest) (*pos.SearchResult, error) {
	req = req.WithDefaults()
	if len(req.LocationIDs) == 0 {
		req.LocationIDs = []string{a.cfg.LocationID}
	}

	// Square entries carry no timestamps, so entries sorted by time are
	// projected from full orders.
	timedEntries := req.ReturnEntries && (req.SortField == pos.SortClosedAt || req.SortField == pos.SortUpdatedAt)

	filter := map[string]any{}
	if req.ClosedAtStart != "" || req.ClosedAtEnd != "" {
		closed := map[string]string{}
		if req.ClosedAtStart != "" {
			closed["start_at"] = req.ClosedAtStart
		}
		if req.ClosedAtEnd != "" {
			closed["end_at"] = req.ClosedAtEnd
		}
		filter["date_time_filter"] = map[string]any{"closed_at": closed}
	}
	if len(req.States) > 0 {
		filter["state_filter"] = map[string]any{"states": req.States}
	}
	if len(req.CustomerIDs) > 0 {
		filter["customer_filter"] = map[string]any{"customer_ids": req.CustomerIDs}
	}
	if len(req.SourceNames) > 0 {
		filter["source_filter"] = map[string]any{"source_names": req.SourceNames}
	}

	body := map[string]any{
		"location_ids": req.LocationIDs,
		"query": map[string]any{
			"filter": filter,
			"sort":   map[string]string{"sort_field": req.SortField, "sort_order": req.SortOrder},
		},
		"limit":          req.Limit,
		"return_entries": req.ReturnEntries && !timedEntries,
	}
	if req.Cursor != "" {
		body["cursor"] = req.Cursor
	}

	var resp searchResponse
	if _, err := a.client.Do(ctx, rest.Request{Method: http.MethodPost, Path: "/v2/orders/search", JSON: body}, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("search orders"); err != nil {
		return nil, err
	}

	result := &pos.SearchResult{Cursor: resp.Cursor}
	if req.ReturnEntries && !timedEntries {
		result.Entries = make([]pos.OrderEntry, 0, len(resp.OrderEntries))
		for _, e := range resp.OrderEntries {
			result.Entries = append(result.Entries, pos.OrderEntry{OrderID: e.OrderID, LocationID: e.LocationID, Version: e.Version})
		}
		return result, nil
	}
	if timedEntries {
		result.Entries = make([]pos.OrderEntry, 0, len(resp.Orders))
	} else {
		result.Orders = make([]pos.Order, 0, len(resp.Orders))
	}
	for _, raw := range resp.Orders {
		o, err := ParseOrder(raw)
		if err != nil {
			return nil, err
		}
		if timedEntries {
			result.Entries = append(result.Entries, pos.OrderEntry{
				OrderID:    o.ID,
				LocationID: o.LocationID,
				Version:    o.Version,
				UpdatedAt:  o.UpdatedAt,
				ClosedAt:   o.ClosedAt,
			})
			continue
		}
		result.Orders = append(result.Orders, *o)
	}
	return result, nil
}

// GetAllOrders pages through every order at the configured location, newest
// first, up to a fixed page cap.
func (a *Adapter) GetAllOrders(ctx context.Context) ([]pos.Order, error) {
	var (
		all    []pos.Order
		cursor string
	)
	for page := 0; page < maxAllOrdersPages; page++ {
		res, err := a.SearchOrders(ctx, pos.SearchOrdersRequest{
			Limit:  allOrdersPageSize,
			Cursor: cursor,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, res.Orders...)
		if res.Cursor == "" {
			return all, nil
		}
		cursor = res.Cursor
	}
	a.logger.Warn().Int("orders", len(all)).Msg("square order listing truncated at page cap")
	return all, nil
}

// ListLocations implements pos.Adapter.
func (a *Adapter) ListLocations(ctx context.Context) ([]pos.Location, error) {
	var resp locationsResponse
	if _, err := a.client.Do(ctx, rest.Request{Path: "/v2/locations"}, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("list locations"); err != nil {
		return nil, err
	}
	out := make([]pos.Location, 0, len(resp.Locations))
	for _, l := range resp.Locations {
		out = append(out, pos.Location{
			ID:       l.ID,
			Name:     l.Name,
			Status:   l.Status,
			Currency: l.Currency,
			Timezone: l.Timezone,
			Address:  l.Address,
		})
	}
	return out, nil
}

// TableIDFromOrder implements pos.Adapter.
func (a *Adapter) TableIDFromOrder(ctx context.Context, orderID string) (int, error) {
	o, err := a.RetrieveOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return pos.TableIDFromFields(o.Metadata, o.ReferenceID, o.SourceName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
