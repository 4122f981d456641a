package clover

import (
	"strings"
	"time"

	"github.com/example/pos-gateway/internal/pos"
)

type ref struct {
	ID string `json:"id"`
}

type lineItem struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Price int64  `json:"price"`
	Note  string `json:"note,omitempty"`
	Item  *ref   `json:"item,omitempty"`
}

type order struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	PaymentState string `json:"paymentState"`
	Title        string `json:"title"`
	Note         string `json:"note"`
	Total        int64  `json:"total"`
	Currency     string `json:"currency"`
	CreatedTime  int64  `json:"createdTime"`
	ModifiedTime int64  `json:"modifiedTime"`
	LineItems    struct {
		Elements []lineItem `json:"elements"`
	} `json:"lineItems"`
	Customers struct {
		Elements []ref `json:"elements"`
	} `json:"customers"`
}

type orderList struct {
	Elements []order `json:"elements"`
}

func millis(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// state maps Clover's lowercase order states onto the shared vocabulary.
func state(o order) string {
	switch {
	case strings.EqualFold(o.PaymentState, "PAID"), strings.EqualFold(o.State, "locked"):
		return pos.StateCompleted
	case strings.EqualFold(o.PaymentState, "REFUNDED"), strings.EqualFold(o.State, "deleted"):
		return pos.StateCanceled
	default:
		return pos.StateOpen
	}
}

func (o order) toPos(merchantID string) pos.Order {
	out := pos.Order{
		ID:         o.ID,
		LocationID: merchantID,
		State:      state(o),
		Note:       o.Note,
		SourceName: o.Title,
		Total:      o.Total,
		Currency:   o.Currency,
		CreatedAt:  millis(o.CreatedTime),
		UpdatedAt:  millis(o.ModifiedTime),
		LineItems:  make([]pos.LineItem, 0, len(o.LineItems.Elements)),
	}
	if out.State == pos.StateCompleted {
		out.ClosedAt = out.UpdatedAt
	}
	if len(o.Customers.Elements) > 0 {
		out.CustomerID = o.Customers.Elements[0].ID
	}

	// Clover stores one line item per unit; fold identical lines back into
	// quantities.
	index := map[string]int{}
	for _, li := range o.LineItems.Elements {
		catalogID := ""
		if li.Item != nil {
			catalogID = li.Item.ID
		}
		key := catalogID + "|" + li.Name + "|" + li.Note
		if i, ok := index[key]; ok && li.Price == out.LineItems[i].UnitPrice {
			out.LineItems[i].Quantity++
			out.LineItems[i].Total += li.Price
			continue
		}
		index[key] = len(out.LineItems)
		out.LineItems = append(out.LineItems, pos.LineItem{
			UID:             li.ID,
			Name:            li.Name,
			Quantity:        1,
			UnitPrice:       li.Price,
			CatalogObjectID: catalogID,
			Note:            li.Note,
			Total:           li.Price,
		})
	}
	if out.Total == 0 {
		for _, li := range out.LineItems {
			out.Total += li.Total
		}
	}
	return out
}

type payment struct {
	ID                  string `json:"id"`
	Amount              int64  `json:"amount"`
	TipAmount           int64  `json:"tipAmount"`
	Result              string `json:"result"`
	ExternalReferenceID string `json:"externalReferenceId"`
	CreatedTime         int64  `json:"createdTime"`
	Order               *ref   `json:"order"`
}

func (p payment) toPos(orderID, currency string) *pos.Payment {
	status := "COMPLETED"
	if p.Result != "" && !strings.EqualFold(p.Result, "SUCCESS") {
		status = strings.ToUpper(p.Result)
	}
	if p.Order != nil && p.Order.ID != "" {
		orderID = p.Order.ID
	}
	return &pos.Payment{
		ID:          p.ID,
		OrderID:     orderID,
		Status:      status,
		ReferenceID: p.ExternalReferenceID,
		Amount:      pos.Money{Amount: p.Amount, Currency: currency},
		Tip:         pos.Money{Amount: p.TipAmount, Currency: currency},
		CreatedAt:   millis(p.CreatedTime),
	}
}

type merchant struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Address map[string]any `json:"address"`
}

type item struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Hidden     bool   `json:"hidden"`
	Categories struct {
		Elements []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"elements"`
	} `json:"categories"`
}

type itemList struct {
	Elements []item `json:"elements"`
}
