// Package mock provides an in-memory POS adapter for development and tests.
package mock

import (
	"context"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/vendors"
)

func init() {
	vendors.Register(pos.VendorMock, "In-memory POS for development and tests", func(cfg pos.AdapterConfig, logger zerolog.Logger) (pos.Adapter, error) {
		return New(cfg, logger, WithStore(SharedStore(cfg))), nil
	})
}

// Scenario enumerates supported behaviours for the mock adapter.
type Scenario string

const (
	ScenarioSuccess     Scenario = "success"
	ScenarioNotFound    Scenario = "not_found"
	ScenarioVendorError Scenario = "vendor_error"
	ScenarioAuthError   Scenario = "auth_error"
)

// Option customises the mock adapter at construction time.
type Option func(*Adapter)

// WithScenario overrides the default scenario.
func WithScenario(s Scenario) Option {
	return func(a *Adapter) {
		if s != "" {
			a.scenario = s
		}
	}
}

// WithStore shares state between adapter instances.
func WithStore(store *Store) Option {
	return func(a *Adapter) {
		if store != nil {
			a.store = store
		}
	}
}

// WithClock swaps out the clock for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// Adapter implements pos.Adapter against an in-memory Store.
type Adapter struct {
	cfg      pos.AdapterConfig
	logger   zerolog.Logger
	store    *Store
	scenario Scenario
	now      func() time.Time
}

var _ pos.Adapter = (*Adapter)(nil)

// New constructs a mock adapter.
func New(cfg pos.AdapterConfig, logger zerolog.Logger, opts ...Option) *Adapter {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	a := &Adapter{
		cfg:      cfg,
		logger:   logger,
		scenario: ScenarioSuccess,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.store == nil {
		a.store = NewStore()
	}
	return a
}

// Store returns the backing store.
func (a *Adapter) Store() *Store { return a.store }

// Name implements pos.Adapter.
func (a *Adapter) Name() string { return pos.VendorMock }

// Authenticate implements pos.Adapter.
func (a *Adapter) Authenticate(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return a.scenario != ScenarioAuthError && strings.TrimSpace(a.cfg.AccessToken) != ""
}

func (a *Adapter) check(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return pos.Wrap(pos.KindVendor, err, "mock: request cancelled")
	}
	switch a.scenario {
	case ScenarioNotFound:
		return pos.NotFound("mock: %s: resource not found", operation)
	case ScenarioVendorError:
		return &pos.Error{Kind: pos.KindVendor, Detail: "mock: " + operation + " failed", Errors: []string{"simulated vendor failure"}, Status: 500}
	case ScenarioAuthError:
		return &pos.Error{Kind: pos.KindAuthentication, Detail: "mock: unauthorized", Status: 401}
	}
	return nil
}

func (a *Adapter) timestamp() string {
	return a.now().UTC().Format(time.RFC3339)
}

func (a *Adapter) locationID() string {
	if id := strings.TrimSpace(a.cfg.LocationID); id != "" {
		return id
	}
	return "MOCK-LOCATION"
}

// CreateOrder implements pos.Adapter. Replaying an idempotency key returns the
// order created by the first call.
func (a *Adapter) CreateOrder(ctx context.Context, req pos.CreateOrderRequest) (*pos.Order, error) {
	req, err := pos.ValidateCreateOrder(req)
	if err != nil {
		return nil, err
	}
	if err := a.check(ctx, "create order"); err != nil {
		return nil, err
	}

	key := pos.IdempotencyKeyOr(req.IdempotencyKey)
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	if id, ok := a.store.idempotency[key]; ok {
		existing := cloneOrder(a.store.orders[id])
		return &existing, nil
	}

	now := a.timestamp()
	order := pos.Order{
		ID:          "mock-" + uuid.NewString(),
		LocationID:  firstNonEmpty(req.LocationID, a.locationID()),
		State:       pos.StateOpen,
		Version:     1,
		ReferenceID: req.ReferenceID,
		CustomerID:  req.CustomerID,
		SourceName:  req.SourceName,
		Note:        req.Note,
		Currency:    a.cfg.CurrencyOrDefault(),
		Metadata:    copyMetadata(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if table := strings.TrimSpace(req.TableNumber); table != "" {
		if order.Metadata == nil {
			order.Metadata = map[string]string{}
		}
		order.Metadata["table_id"] = table
		if order.SourceName == "" {
			order.SourceName = pos.TableSourceName(table)
		}
	}
	for _, item := range req.LineItems {
		item.UID = uuid.NewString()
		order.LineItems = append(order.LineItems, item)
	}
	recompute(&order)

	a.store.orders[order.ID] = order
	a.store.idempotency[key] = order.ID
	a.logger.Debug().Str("order_id", order.ID).Int64("total", order.Total).Msg("mock order created")

	out := cloneOrder(order)
	return &out, nil
}

// RetrieveOrder implements pos.Adapter.
func (a *Adapter) RetrieveOrder(ctx context.Context, orderID string) (*pos.Order, error) {
	if err := a.check(ctx, "retrieve order"); err != nil {
		return nil, err
	}
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	order, ok := a.store.orders[strings.TrimSpace(orderID)]
	if !ok {
		return nil, pos.NotFound("order %s not found", orderID)
	}
	out := cloneOrder(order)
	return &out, nil
}

// SearchOrders implements pos.Adapter. The cursor is the offset of the next page.
func (a *Adapter) SearchOrders(ctx context.Context, req pos.SearchOrdersRequest) (*pos.SearchResult, error) {
	if err := a.check(ctx, "search orders"); err != nil {
		return nil, err
	}
	req = req.WithDefaults()

	offset := 0
	if req.Cursor != "" {
		n, err := strconv.Atoi(req.Cursor)
		if err != nil || n < 0 {
			return nil, pos.Validation("invalid cursor %q", req.Cursor)
		}
		offset = n
	}

	a.store.mu.RLock()
	matched := make([]pos.Order, 0, len(a.store.orders))
	for _, order := range a.store.orders {
		if matches(order, req) {
			matched = append(matched, cloneOrder(order))
		}
	}
	a.store.mu.RUnlock()

	sortOrders(matched, req.SortField, req.SortOrder)

	result := &pos.SearchResult{}
	if offset >= len(matched) {
		return result, nil
	}
	end := offset + req.Limit
	if end < len(matched) {
		result.Cursor = strconv.Itoa(end)
	} else {
		end = len(matched)
	}
	page := matched[offset:end]
	if req.ReturnEntries {
		for _, o := range page {
			result.Entries = append(result.Entries, pos.OrderEntry{
				OrderID:    o.ID,
				LocationID: o.LocationID,
				Version:    o.Version,
				UpdatedAt:  o.UpdatedAt,
				ClosedAt:   o.ClosedAt,
			})
		}
		return result, nil
	}
	result.Orders = page
	return result, nil
}

// AddItemToOrder implements pos.Adapter.
func (a *Adapter) AddItemToOrder(ctx context.Context, orderID string, item pos.LineItem) (*pos.Order, error) {
	item, err := pos.ValidateLineItem(item)
	if err != nil {
		return nil, err
	}
	if err := a.check(ctx, "add item"); err != nil {
		return nil, err
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	order, ok := a.store.orders[strings.TrimSpace(orderID)]
	if !ok {
		return nil, pos.NotFound("order %s not found", orderID)
	}
	if pos.IsTerminalState(order.State) {
		return nil, &pos.Error{Kind: pos.KindVendor, Detail: "mock: order is closed", Errors: []string{"cannot update a " + order.State + " order"}, Status: 400}
	}
	item.UID = uuid.NewString()
	order.LineItems = append(order.LineItems, item)
	order.Version++
	order.UpdatedAt = a.timestamp()
	recompute(&order)
	a.store.orders[order.ID] = order
	out := cloneOrder(order)
	return &out, nil
}

// ProcessPayment implements pos.Adapter. An autocompleted payment covering the
// order total completes the order.
func (a *Adapter) ProcessPayment(ctx context.Context, req pos.PaymentRequest) (*pos.Payment, error) {
	if err := pos.ValidatePayment(req); err != nil {
		return nil, err
	}
	if err := a.check(ctx, "process payment"); err != nil {
		return nil, err
	}
	currency := firstNonEmpty(strings.ToUpper(req.Currency), a.cfg.CurrencyOrDefault())
	status := "APPROVED"
	if req.AutocompleteOrDefault() {
		status = "COMPLETED"
	}
	payment := pos.Payment{
		ID:          "mock-pay-" + uuid.NewString(),
		OrderID:     req.OrderID,
		LocationID:  firstNonEmpty(req.LocationID, a.locationID()),
		Status:      status,
		SourceType:  "CARD",
		ReferenceID: req.ReferenceID,
		Note:        req.Note,
		Amount:      pos.Money{Amount: req.Amount, Currency: currency},
		Tip:         pos.Money{Amount: req.TipAmount, Currency: currency},
		CreatedAt:   a.timestamp(),
	}
	if req.AppFeeAmount != nil {
		payment.AppFee = &pos.Money{Amount: *req.AppFeeAmount, Currency: currency}
	}

	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	if req.OrderID != "" {
		order, ok := a.store.orders[req.OrderID]
		if !ok {
			return nil, pos.NotFound("order %s not found", req.OrderID)
		}
		if status == "COMPLETED" {
			a.settle(&order, req.Amount)
		}
	}
	a.store.payments[payment.ID] = payment
	return &payment, nil
}

func (a *Adapter) settle(order *pos.Order, amount int64) {
	var paid int64
	for _, p := range a.store.payments {
		if p.OrderID == order.ID {
			paid += p.Amount.Amount
		}
	}
	if paid+amount >= order.Total {
		order.State = pos.StateCompleted
		order.ClosedAt = a.timestamp()
		order.UpdatedAt = order.ClosedAt
		order.Version++
		a.store.orders[order.ID] = *order
	}
}

// GetAllOrders implements pos.Adapter.
func (a *Adapter) GetAllOrders(ctx context.Context) ([]pos.Order, error) {
	if err := a.check(ctx, "get all orders"); err != nil {
		return nil, err
	}
	a.store.mu.RLock()
	out := make([]pos.Order, 0, len(a.store.orders))
	for _, o := range a.store.orders {
		out = append(out, cloneOrder(o))
	}
	a.store.mu.RUnlock()
	sortOrders(out, pos.SortCreatedAt, pos.SortDesc)
	return out, nil
}

// ListLocations implements pos.Adapter.
func (a *Adapter) ListLocations(ctx context.Context) ([]pos.Location, error) {
	if err := a.check(ctx, "list locations"); err != nil {
		return nil, err
	}
	return []pos.Location{{
		ID:       a.locationID(),
		Name:     "Mock Restaurant",
		Status:   "ACTIVE",
		Currency: a.cfg.CurrencyOrDefault(),
		Timezone: "Europe/London",
	}}, nil
}

// GetCatalog implements pos.Adapter.
func (a *Adapter) GetCatalog(ctx context.Context) ([]pos.CatalogObject, error) {
	if err := a.check(ctx, "get catalog"); err != nil {
		return nil, err
	}
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	out := make([]pos.CatalogObject, len(a.store.catalog))
	copy(out, a.store.catalog)
	return out, nil
}

// GetInventory implements pos.Adapter.
func (a *Adapter) GetInventory(ctx context.Context, query pos.InventoryQuery) (*pos.InventoryPage, error) {
	if len(query.CatalogObjectIDs) != 1 {
		return nil, pos.Validation("exactly one catalog object id is required")
	}
	return a.BatchRetrieveInventoryCounts(ctx, query)
}

// BatchRetrieveInventoryCounts implements pos.Adapter.
func (a *Adapter) BatchRetrieveInventoryCounts(ctx context.Context, query pos.InventoryQuery) (*pos.InventoryPage, error) {
	if err := a.check(ctx, "inventory counts"); err != nil {
		return nil, err
	}
	wantObj := toSet(query.CatalogObjectIDs)
	wantLoc := toSet(query.LocationIDs)

	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	page := &pos.InventoryPage{Counts: []pos.InventoryCount{}}
	for _, c := range a.store.inventory {
		if len(wantObj) > 0 && !wantObj[c.CatalogObjectID] {
			continue
		}
		if len(wantLoc) > 0 && !wantLoc[c.LocationID] {
			continue
		}
		page.Counts = append(page.Counts, c)
	}
	sort.Slice(page.Counts, func(i, j int) bool {
		return page.Counts[i].CatalogObjectID+page.Counts[i].LocationID < page.Counts[j].CatalogObjectID+page.Counts[j].LocationID
	})
	return page, nil
}

// BatchCreateInventoryChanges implements pos.Adapter.
func (a *Adapter) BatchCreateInventoryChanges(ctx context.Context, batch pos.InventoryChangeBatch) ([]pos.InventoryCount, error) {
	if len(batch.Changes) == 0 {
		return nil, pos.Validation("at least one inventory change is required")
	}
	if err := a.check(ctx, "inventory changes"); err != nil {
		return nil, err
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	touched := make(map[string]bool)
	for i, change := range batch.Changes {
		qty, err := strconv.ParseFloat(strings.TrimSpace(change.Quantity), 64)
		if err != nil {
			return nil, pos.Validation("change %d: invalid quantity %q", i, change.Quantity)
		}
		loc := firstNonEmpty(change.LocationID, a.locationID())
		key := change.CatalogObjectID + "|" + loc
		current := a.store.inventory[key]
		current.CatalogObjectID = change.CatalogObjectID
		current.LocationID = loc
		current.State = "IN_STOCK"
		have, _ := strconv.ParseFloat(current.Quantity, 64)

		switch strings.ToUpper(change.Type) {
		case pos.InventoryChangePhysicalCount:
			have = qty
		case pos.InventoryChangeAdjustment:
			if strings.EqualFold(change.ToState, "IN_STOCK") {
				have += qty
			}
			if strings.EqualFold(change.FromState, "IN_STOCK") {
				have -= qty
			}
		default:
			return nil, pos.Validation("change %d: unknown type %q", i, change.Type)
		}
		current.Quantity = strconv.FormatFloat(have, 'f', -1, 64)
		current.CalculatedAt = a.timestamp()
		a.store.inventory[key] = current
		touched[key] = true
	}

	out := make([]pos.InventoryCount, 0, len(touched))
	for key := range touched {
		out = append(out, a.store.inventory[key])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CatalogObjectID < out[j].CatalogObjectID })
	return out, nil
}

// CreateExternalPayment implements pos.Adapter.
func (a *Adapter) CreateExternalPayment(ctx context.Context, req pos.ExternalPaymentRequest) (*pos.Payment, error) {
	if err := pos.ValidateExternalPayment(req); err != nil {
		return nil, err
	}
	if err := a.check(ctx, "external payment"); err != nil {
		return nil, err
	}
	currency := firstNonEmpty(strings.ToUpper(req.Currency), a.cfg.CurrencyOrDefault())

	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	order, ok := a.store.orders[req.OrderID]
	if !ok {
		return nil, pos.NotFound("order %s not found", req.OrderID)
	}
	payment := pos.Payment{
		ID:         "mock-ext-" + uuid.NewString(),
		OrderID:    req.OrderID,
		LocationID: order.LocationID,
		Status:     "COMPLETED",
		SourceType: "EXTERNAL",
		Note:       firstNonEmpty(req.Source, "External payment"),
		Amount:     pos.Money{Amount: req.Amount, Currency: currency},
		Tip:        pos.Money{Amount: req.TipAmount, Currency: currency},
		CreatedAt:  a.timestamp(),
	}
	a.settle(&order, req.Amount)
	a.store.payments[payment.ID] = payment
	return &payment, nil
}

// TableIDFromOrder implements pos.Adapter.
func (a *Adapter) TableIDFromOrder(ctx context.Context, orderID string) (int, error) {
	order, err := a.RetrieveOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return pos.TableIDFromFields(order.Metadata, order.ReferenceID, order.SourceName)
}

func matches(o pos.Order, req pos.SearchOrdersRequest) bool {
	if len(req.LocationIDs) > 0 && !contains(req.LocationIDs, o.LocationID, false) {
		return false
	}
	if len(req.States) > 0 && !contains(req.States, o.State, true) {
		return false
	}
	if len(req.CustomerIDs) > 0 && !contains(req.CustomerIDs, o.CustomerID, false) {
		return false
	}
	if len(req.SourceNames) > 0 && !contains(req.SourceNames, o.SourceName, true) {
		return false
	}
	if req.ClosedAtStart != "" || req.ClosedAtEnd != "" {
		closed, err := time.Parse(time.RFC3339, o.ClosedAt)
		if err != nil {
			return false
		}
		if start, err := time.Parse(time.RFC3339, req.ClosedAtStart); err == nil && closed.Before(start) {
			return false
		}
		if end, err := time.Parse(time.RFC3339, req.ClosedAtEnd); err == nil && closed.After(end) {
			return false
		}
	}
	return true
}

func sortOrders(orders []pos.Order, field, order string) {
	key := func(o pos.Order) string {
		switch field {
		case pos.SortClosedAt:
			return o.ClosedAt
		case pos.SortUpdatedAt:
			return o.UpdatedAt
		default:
			return o.CreatedAt
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		ki, kj := key(orders[i]), key(orders[j])
		if ki == kj {
			ki, kj = orders[i].ID, orders[j].ID
		}
		if order == pos.SortAsc {
			return ki < kj
		}
		return ki > kj
	})
}

func recompute(o *pos.Order) {
	var total int64
	for i := range o.LineItems {
		o.LineItems[i].Total = o.LineItems[i].Subtotal()
		total += o.LineItems[i].Total
	}
	o.Total = total
}

func contains(list []string, value string, fold bool) bool {
	for _, v := range list {
		if v == value || (fold && strings.EqualFold(v, value)) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out[v] = true
		}
	}
	return out
}

func copyMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func cloneOrder(o pos.Order) pos.Order {
	o.LineItems = append([]pos.LineItem(nil), o.LineItems...)
	o.Metadata = copyMetadata(o.Metadata)
	return o
}
