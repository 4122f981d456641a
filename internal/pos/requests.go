package pos

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Order states shared by the vendors that expose them.
const (
	StateOpen      = "OPEN"
	StateCompleted = "COMPLETED"
	StateCanceled  = "CANCELED"
)

// Sort fields and orders for SearchOrders.
const (
	SortCreatedAt = "CREATED_AT"
	SortUpdatedAt = "UPDATED_AT"
	SortClosedAt  = "CLOSED_AT"

	SortDesc = "DESC"
	SortAsc  = "ASC"
)

// Search limits.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 1000
)

// CreateOrderRequest describes a new order.
type CreateOrderRequest struct {
	LineItems      []LineItem        `json:"line_items"`
	LocationID     string            `json:"location_id,omitempty"`
	CustomerID     string            `json:"customer_id,omitempty"`
	ReferenceID    string            `json:"reference_id,omitempty"`
	SourceName     string            `json:"source_name,omitempty"`
	TableNumber    string            `json:"table_number,omitempty"`
	Note           string            `json:"note,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// SearchOrdersRequest filters and pages through orders.
type SearchOrdersRequest struct {
	LocationIDs   []string `json:"location_ids,omitempty"`
	ClosedAtStart string   `json:"closed_at_start,omitempty"`
	ClosedAtEnd   string   `json:"closed_at_end,omitempty"`
	States        []string `json:"states,omitempty"`
	CustomerIDs   []string `json:"customer_ids,omitempty"`
	SourceNames   []string `json:"source_names,omitempty"`
	SortField     string   `json:"sort_field,omitempty"`
	SortOrder     string   `json:"sort_order,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	Cursor        string   `json:"cursor,omitempty"`
	ReturnEntries bool     `json:"return_entries"`
}

// PaymentRequest charges a payment source. Amounts are in the smallest
// currency unit. Each call uses a fresh idempotency key.
type PaymentRequest struct {
	SourceID     string `json:"source_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
	CustomerID   string `json:"customer_id,omitempty"`
	LocationID   string `json:"location_id,omitempty"`
	ReferenceID  string `json:"reference_id,omitempty"`
	Note         string `json:"note,omitempty"`
	AppFeeAmount *int64 `json:"app_fee_amount,omitempty"`
	TipAmount    int64  `json:"tip_amount,omitempty"`
	Autocomplete *bool  `json:"autocomplete,omitempty"`
}

// AutocompleteOrDefault returns the autocomplete flag, true when unset.
func (r PaymentRequest) AutocompleteOrDefault() bool {
	if r.Autocomplete == nil {
		return true
	}
	return *r.Autocomplete
}

// InventoryQuery selects inventory counts.
type InventoryQuery struct {
	CatalogObjectIDs []string `json:"catalog_object_ids,omitempty"`
	LocationIDs      []string `json:"location_ids,omitempty"`
	Cursor           string   `json:"cursor,omitempty"`
}

// InventoryChangeBatch submits stock movements in one call.
type InventoryChangeBatch struct {
	Changes              []InventoryChange `json:"changes"`
	IgnoreUnchangedCount bool              `json:"ignore_unchanged_counts"`
	IdempotencyKey       string            `json:"idempotency_key,omitempty"`
}

// ExternalPaymentRequest records a payment taken outside the POS against an
// existing order.
type ExternalPaymentRequest struct {
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
	TipAmount  int64  `json:"tip_amount,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Source     string `json:"source,omitempty"`
	LocationID string `json:"location_id,omitempty"`
}

// NewIdempotencyKey returns a random UUID v4 string.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// IdempotencyKeyOr returns key when set, otherwise a fresh one.
func IdempotencyKeyOr(key string) string {
	if k := strings.TrimSpace(key); k != "" {
		return k
	}
	return NewIdempotencyKey()
}

// ValidateCreateOrder checks a create request and returns a copy with
// quantities defaulted to 1.
func ValidateCreateOrder(req CreateOrderRequest) (CreateOrderRequest, error) {
	if len(req.LineItems) == 0 {
		return req, Validation("line items are required")
	}
	items := make([]LineItem, len(req.LineItems))
	for i, item := range req.LineItems {
		if item.Quantity < 0 {
			return req, Validation("line item %d: quantity must not be negative", i)
		}
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if strings.TrimSpace(item.Name) == "" && strings.TrimSpace(item.CatalogObjectID) == "" {
			return req, Validation("line item %d: name or catalog object id is required", i)
		}
		if item.UnitPrice < 0 {
			return req, Validation("line item %d: unit price must not be negative", i)
		}
		items[i] = item
	}
	req.LineItems = items
	return req, nil
}

// ValidateLineItem applies the same rules as ValidateCreateOrder to one item.
func ValidateLineItem(item LineItem) (LineItem, error) {
	req, err := ValidateCreateOrder(CreateOrderRequest{LineItems: []LineItem{item}})
	if err != nil {
		return item, err
	}
	return req.LineItems[0], nil
}

// ValidatePayment requires a source and a positive amount.
func ValidatePayment(req PaymentRequest) error {
	var problems []string
	if strings.TrimSpace(req.SourceID) == "" {
		problems = append(problems, "source id is required")
	}
	if req.Amount <= 0 {
		problems = append(problems, "amount must be positive")
	}
	if req.TipAmount < 0 {
		problems = append(problems, "tip must not be negative")
	}
	if req.AppFeeAmount != nil && *req.AppFeeAmount < 0 {
		problems = append(problems, "app fee must not be negative")
	}
	if len(problems) > 0 {
		return &Error{Kind: KindValidation, Detail: "invalid payment request", Errors: problems}
	}
	return nil
}

// ValidateExternalPayment requires an order and a positive amount.
func ValidateExternalPayment(req ExternalPaymentRequest) error {
	if strings.TrimSpace(req.OrderID) == "" {
		return Validation("order id is required")
	}
	if req.Amount <= 0 {
		return Validation("amount must be positive")
	}
	if req.TipAmount < 0 {
		return Validation("tip must not be negative")
	}
	return nil
}

// IsTerminalState reports whether state is COMPLETED or CANCELED.
func IsTerminalState(state string) bool {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case StateCompleted, StateCanceled:
		return true
	default:
		return false
	}
}

// DefaultSortField returns CLOSED_AT when every state is terminal and
// CREATED_AT otherwise, including when no states are given.
func DefaultSortField(states []string) string {
	if len(states) == 0 {
		return SortCreatedAt
	}
	for _, s := range states {
		if !IsTerminalState(s) {
			return SortCreatedAt
		}
	}
	return SortClosedAt
}

// WithDefaults fills sort field, order and limit.
func (r SearchOrdersRequest) WithDefaults() SearchOrdersRequest {
	if strings.TrimSpace(r.SortField) == "" {
		r.SortField = DefaultSortField(r.States)
	}
	r.SortField = strings.ToUpper(strings.TrimSpace(r.SortField))
	switch strings.ToUpper(strings.TrimSpace(r.SortOrder)) {
	case SortAsc:
		r.SortOrder = SortAsc
	default:
		r.SortOrder = SortDesc
	}
	switch {
	case r.Limit <= 0:
		r.Limit = DefaultSearchLimit
	case r.Limit > MaxSearchLimit:
		r.Limit = MaxSearchLimit
	}
	states := make([]string, 0, len(r.States))
	for _, s := range r.States {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			states = append(states, s)
		}
	}
	r.States = states
	return r
}

var (
	tableReferencePattern = regexp.MustCompile(`(?i)^table[_\-\s]?(\d+)$`)
	tableSourcePattern    = regexp.MustCompile(`(?i)^table\s+(\d+)$`)
)

// TableIDFromFields resolves a table number from, in order, a table_id
// metadata value, a reference id of the form table_<n>, and a source name of
// the form "Table <n>".
func TableIDFromFields(metadata map[string]string, referenceID, sourceName string) (int, error) {
	if raw, ok := metadata["table_id"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			return n, nil
		}
	}
	if m := tableReferencePattern.FindStringSubmatch(strings.TrimSpace(referenceID)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, nil
		}
	}
	if m := tableSourcePattern.FindStringSubmatch(strings.TrimSpace(sourceName)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, nil
		}
	}
	return 0, NotFound("no table reference on order")
}

// TableSourceName returns the source name used to tag orders for a table.
func TableSourceName(table string) string {
	table = strings.TrimSpace(table)
	if table == "" {
		return ""
	}
	return fmt.Sprintf("Table %s", table)
}
