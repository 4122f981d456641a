package square

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/example/pos-gateway/internal/pos"
)

type money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

func (m *money) toPos() pos.Money {
	if m == nil {
		return pos.Money{}
	}
	return pos.Money{Amount: m.Amount, Currency: m.Currency}
}

type apiError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Field    string `json:"field"`
}

func (e apiError) String() string {
	parts := make([]string, 0, 2)
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	msg := strings.Join(parts, ": ")
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	return msg
}

type errorEnvelope struct {
	Errors []apiError `json:"errors,omitempty"`
}

func (e errorEnvelope) err(operation string) error {
	if len(e.Errors) == 0 {
		return nil
	}
	messages := make([]string, len(e.Errors))
	for i, apiErr := range e.Errors {
		messages[i] = apiErr.String()
	}
	return &pos.Error{Kind: pos.KindVendor, Detail: "square: " + operation, Errors: messages}
}

func parseErrors(body []byte) []string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	out := make([]string, 0, len(env.Errors))
	for _, e := range env.Errors {
		out = append(out, e.String())
	}
	return out
}

type lineItem struct {
	UID             string `json:"uid,omitempty"`
	Name            string `json:"name,omitempty"`
	Quantity        string `json:"quantity"`
	CatalogObjectID string `json:"catalog_object_id,omitempty"`
	Note            string `json:"note,omitempty"`
	BasePriceMoney  *money `json:"base_price_money,omitempty"`
	TotalMoney      *money `json:"total_money,omitempty"`
}

type orderSource struct {
	Name string `json:"name,omitempty"`
}

type order struct {
	ID            string            `json:"id,omitempty"`
	LocationID    string            `json:"location_id"`
	ReferenceID   string            `json:"reference_id,omitempty"`
	CustomerID    string            `json:"customer_id,omitempty"`
	Source        *orderSource      `json:"source,omitempty"`
	LineItems     []lineItem        `json:"line_items,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	State         string            `json:"state,omitempty"`
	Version       int64             `json:"version,omitempty"`
	TotalMoney    *money            `json:"total_money,omitempty"`
	TotalTaxMoney *money            `json:"total_tax_money,omitempty"`
	TotalTipMoney *money            `json:"total_tip_money,omitempty"`
	CreatedAt     string            `json:"created_at,omitempty"`
	UpdatedAt     string            `json:"updated_at,omitempty"`
	ClosedAt      string            `json:"closed_at,omitempty"`
}

type orderEntry struct {
	OrderID    string `json:"order_id"`
	LocationID string `json:"location_id"`
	Version    int64  `json:"version"`
}

type searchResponse struct {
	errorEnvelope
	Orders       []json.RawMessage `json:"orders"`
	OrderEntries []orderEntry      `json:"order_entries"`
	Cursor       string            `json:"cursor"`
}

func toWireLineItem(item pos.LineItem, currency string) lineItem {
	out := lineItem{
		Name:            item.Name,
		Quantity:        strconv.Itoa(item.Quantity),
		CatalogObjectID: item.CatalogObjectID,
		Note:            item.Note,
	}
	if item.CatalogObjectID == "" || item.UnitPrice > 0 {
		out.BasePriceMoney = &money{Amount: item.UnitPrice, Currency: currency}
	}
	return out
}

func parseQuantity(q string) int {
	q = strings.TrimSpace(q)
	if n, err := strconv.Atoi(q); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(q, 64); err == nil {
		return int(f)
	}
	return 0
}

// toOrder converts the wire order, keeping the raw payload for callers that
// need vendor specific fields.
func toOrder(o *order, raw json.RawMessage) *pos.Order {
	if o == nil {
		return nil
	}
	out := &pos.Order{
		ID:          o.ID,
		LocationID:  o.LocationID,
		State:       o.State,
		Version:     o.Version,
		ReferenceID: o.ReferenceID,
		CustomerID:  o.CustomerID,
		Metadata:    o.Metadata,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		ClosedAt:    o.ClosedAt,
		LineItems:   make([]pos.LineItem, 0, len(o.LineItems)),
	}
	if o.Source != nil {
		out.SourceName = o.Source.Name
	}
	for _, li := range o.LineItems {
		item := pos.LineItem{
			UID:             li.UID,
			Name:            li.Name,
			Quantity:        parseQuantity(li.Quantity),
			CatalogObjectID: li.CatalogObjectID,
			Note:            li.Note,
		}
		if li.BasePriceMoney != nil {
			item.UnitPrice = li.BasePriceMoney.Amount
		}
		if li.TotalMoney != nil {
			item.Total = li.TotalMoney.Amount
		} else {
			item.Total = item.Subtotal()
		}
		out.LineItems = append(out.LineItems, item)
	}
	if o.TotalMoney != nil {
		out.Total = o.TotalMoney.Amount
		out.Currency = o.TotalMoney.Currency
	}
	if o.TotalTaxMoney != nil {
		out.TaxTotal = o.TotalTaxMoney.Amount
	}
	if o.TotalTipMoney != nil {
		out.TipTotal = o.TotalTipMoney.Amount
	}
	if len(raw) > 0 {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil {
			out.Raw = m
		}
	}
	return out
}

type payment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	OrderID     string `json:"order_id"`
	LocationID  string `json:"location_id"`
	SourceType  string `json:"source_type"`
	ReferenceID string `json:"reference_id"`
	Note        string `json:"note"`
	ReceiptURL  string `json:"receipt_url"`
	CreatedAt   string `json:"created_at"`
	AmountMoney *money `json:"amount_money"`
	TipMoney    *money `json:"tip_money"`
	AppFeeMoney *money `json:"app_fee_money"`
}

type paymentResponse struct {
	errorEnvelope
	Payment *payment `json:"payment"`
}

func toPayment(p *payment) *pos.Payment {
	if p == nil {
		return nil
	}
	out := &pos.Payment{
		ID:          p.ID,
		OrderID:     p.OrderID,
		LocationID:  p.LocationID,
		Status:      p.Status,
		SourceType:  p.SourceType,
		ReferenceID: p.ReferenceID,
		Note:        p.Note,
		ReceiptURL:  p.ReceiptURL,
		CreatedAt:   p.CreatedAt,
		Amount:      p.AmountMoney.toPos(),
		Tip:         p.TipMoney.toPos(),
	}
	if p.AppFeeMoney != nil {
		fee := p.AppFeeMoney.toPos()
		out.AppFee = &fee
	}
	return out
}

type location struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Status   string         `json:"status"`
	Currency string         `json:"currency"`
	Timezone string         `json:"timezone"`
	Address  map[string]any `json:"address"`
}

type locationsResponse struct {
	errorEnvelope
	Locations []location `json:"locations"`
}

type catalogVariation struct {
	ID                string `json:"id"`
	ItemVariationData struct {
		Name       string `json:"name"`
		PriceMoney *money `json:"price_money"`
	} `json:"item_variation_data"`
}

type catalogObject struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	ItemData *struct {
		Name        string             `json:"name"`
		Description string             `json:"description"`
		CategoryID  string             `json:"category_id"`
		Variations  []catalogVariation `json:"variations"`
	} `json:"item_data,omitempty"`
	CategoryData *struct {
		Name string `json:"name"`
	} `json:"category_data,omitempty"`
}

type catalogListResponse struct {
	errorEnvelope
	Objects []catalogObject `json:"objects"`
	Cursor  string          `json:"cursor"`
}

func toCatalogObject(o catalogObject) pos.CatalogObject {
	out := pos.CatalogObject{ID: o.ID, Type: o.Type}
	switch {
	case o.ItemData != nil:
		out.Name = o.ItemData.Name
		out.Description = o.ItemData.Description
		out.CategoryID = o.ItemData.CategoryID
		for _, v := range o.ItemData.Variations {
			out.Variations = append(out.Variations, pos.CatalogVariation{
				ID:    v.ID,
				Name:  v.ItemVariationData.Name,
				Price: v.ItemVariationData.PriceMoney.toPos(),
			})
		}
	case o.CategoryData != nil:
		out.Name = o.CategoryData.Name
	}
	return out
}

type inventoryCount struct {
	CatalogObjectID   string `json:"catalog_object_id"`
	CatalogObjectType string `json:"catalog_object_type"`
	State             string `json:"state"`
	LocationID        string `json:"location_id"`
	Quantity          string `json:"quantity"`
	CalculatedAt      string `json:"calculated_at"`
}

func (c inventoryCount) toPos() pos.InventoryCount {
	return pos.InventoryCount{
		CatalogObjectID:   c.CatalogObjectID,
		CatalogObjectType: c.CatalogObjectType,
		LocationID:        c.LocationID,
		State:             c.State,
		Quantity:          c.Quantity,
		CalculatedAt:      c.CalculatedAt,
	}
}

type inventoryResponse struct {
	errorEnvelope
	Counts []inventoryCount `json:"counts"`
	Cursor string           `json:"cursor"`
}

func toCounts(in []inventoryCount) []pos.InventoryCount {
	out := make([]pos.InventoryCount, 0, len(in))
	for _, c := range in {
		out = append(out, c.toPos())
	}
	return out
}

type physicalCount struct {
	ID              string `json:"id,omitempty"`
	CatalogObjectID string `json:"catalog_object_id"`
	State           string `json:"state"`
	LocationID      string `json:"location_id"`
	Quantity        string `json:"quantity"`
	OccurredAt      string `json:"occurred_at"`
}

type adjustment struct {
	ID              string `json:"id,omitempty"`
	CatalogObjectID string `json:"catalog_object_id"`
	FromState       string `json:"from_state"`
	ToState         string `json:"to_state"`
	LocationID      string `json:"location_id"`
	Quantity        string `json:"quantity"`
	OccurredAt      string `json:"occurred_at"`
}

type inventoryChange struct {
	Type          string         `json:"type"`
	PhysicalCount *physicalCount `json:"physical_count,omitempty"`
	Adjustment    *adjustment    `json:"adjustment,omitempty"`
}
