package ncr

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/example/pos-gateway/internal/pos"
)

const (
	refTableNumber = "TABLE_NUMBER"
	refOrderRef    = "ORDER_REF"
)

type referenceID struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type orderItem struct {
	LineID      string  `json:"lineId,omitempty"`
	ItemID      string  `json:"itemId,omitempty"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

type order struct {
	ID                     string        `json:"id"`
	LocationID             string        `json:"locationId"`
	Status                 string        `json:"status"`
	Comments               string        `json:"comments"`
	Currency               string        `json:"currency"`
	TotalAmount            float64       `json:"totalAmount"`
	TaxAmount              float64       `json:"taxAmount"`
	DateCreated            string        `json:"dateCreated"`
	DateUpdated            string        `json:"dateUpdated"`
	DateClosed             string        `json:"dateClosed"`
	Customer               *customer     `json:"customer,omitempty"`
	AdditionalReferenceIDs []referenceID `json:"additionalReferenceIds"`
	OrderItems             []orderItem   `json:"orderItems"`
}

type customer struct {
	ID string `json:"id"`
}

type findResponse struct {
	PageNumber  int               `json:"pageNumber"`
	LastPage    bool              `json:"lastPage"`
	PageContent []json.RawMessage `json:"pageContent"`
}

// minor converts a decimal major-unit amount to minor units.
func minor(v float64) int64 {
	return int64(math.Round(v * 100))
}

func major(v int64) float64 {
	return float64(v) / 100
}

func state(status string) string {
	switch strings.ToUpper(status) {
	case "CLOSED", "COMPLETED", "PAID", "FINALIZED":
		return pos.StateCompleted
	case "CANCELED", "CANCELLED", "VOIDED":
		return pos.StateCanceled
	default:
		return pos.StateOpen
	}
}

func ncrStatus(s string) string {
	switch s {
	case pos.StateCompleted:
		return "CLOSED"
	case pos.StateCanceled:
		return "CANCELED"
	default:
		return "OPEN"
	}
}

func (o order) reference(kind string) string {
	for _, r := range o.AdditionalReferenceIDs {
		if strings.EqualFold(r.Type, kind) {
			return r.Value
		}
	}
	return ""
}

func (o order) toPos(raw map[string]any, currency string) pos.Order {
	out := pos.Order{
		ID:          o.ID,
		LocationID:  o.LocationID,
		State:       state(o.Status),
		ReferenceID: o.reference(refOrderRef),
		Note:        o.Comments,
		Currency:    currency,
		TaxTotal:    minor(o.TaxAmount),
		CreatedAt:   o.DateCreated,
		UpdatedAt:   o.DateUpdated,
		ClosedAt:    o.DateClosed,
		LineItems:   make([]pos.LineItem, 0, len(o.OrderItems)),
		Raw:         raw,
	}
	if o.Currency != "" {
		out.Currency = o.Currency
	}
	if o.Customer != nil {
		out.CustomerID = o.Customer.ID
	}
	if table := o.reference(refTableNumber); table != "" {
		out.Metadata = map[string]string{"table_id": table}
		out.SourceName = pos.TableSourceName(table)
	}

	var sum int64
	for _, it := range o.OrderItems {
		li := pos.LineItem{
			UID:             it.LineID,
			Name:            it.Description,
			Quantity:        it.Quantity,
			UnitPrice:       minor(it.UnitPrice),
			CatalogObjectID: it.ItemID,
			Note:            it.Notes,
		}
		li.Total = li.Subtotal()
		sum += li.Total
		out.LineItems = append(out.LineItems, li)
	}
	out.Total = minor(o.TotalAmount)
	if out.Total == 0 {
		out.Total = sum
	}
	return out
}

func toOrderItem(li pos.LineItem) orderItem {
	return orderItem{
		ItemID:      li.CatalogObjectID,
		Description: li.Name,
		Quantity:    li.Quantity,
		UnitPrice:   major(li.UnitPrice),
		Notes:       li.Note,
	}
}

// tableFromSourceName extracts the table number from a "Table N" source name.
func tableFromSourceName(name string) (string, bool) {
	n, err := pos.TableIDFromFields(nil, "", name)
	if err != nil {
		return "", false
	}
	return strconv.Itoa(n), true
}
