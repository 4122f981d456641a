package clover_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/vendors/clover"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) *clover.Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	a, err := clover.New(pos.AdapterConfig{
		AccessToken: "cl-token",
		MerchantID:  "M1",
		BaseURL:     server.URL,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return a
}

func TestNewRequiresMerchant(t *testing.T) {
	_, err := clover.New(pos.AdapterConfig{AccessToken: "x"}, zerolog.Nop())
	if !errors.Is(err, pos.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateOrderPostsOneLineItemPerUnit(t *testing.T) {
	var lineItems atomic.Int32
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer cl-token" {
			t.Errorf("missing bearer token")
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/merchants/M1/orders":
			var body map[string]any
			data, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(data, &body); err != nil {
				t.Errorf("decode: %v", err)
			}
			if body["state"] != "open" || body["title"] != "Table 7" {
				t.Errorf("unexpected order body %v", body)
			}
			if !strings.Contains(body["note"].(string), "Table 7") {
				t.Errorf("expected source name in note, got %v", body["note"])
			}
			_, _ = io.WriteString(w, `{"id":"O1"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/merchants/M1/orders/O1/line_items":
			lineItems.Add(1)
			_, _ = io.WriteString(w, `{"id":"LI"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/merchants/M1/orders/O1":
			_, _ = io.WriteString(w, `{"id":"O1","state":"open","title":"Table 7","note":"Table 7","total":700,
				"createdTime":1714550400000,
				"lineItems":{"elements":[
					{"id":"a","name":"Tea","price":350},
					{"id":"b","name":"Tea","price":350}]}}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	order, err := a.CreateOrder(context.Background(), pos.CreateOrderRequest{
		LineItems:   []pos.LineItem{{Name: "Tea", Quantity: 2, UnitPrice: 350}},
		TableNumber: "7",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if lineItems.Load() != 2 {
		t.Fatalf("expected two line item posts, got %d", lineItems.Load())
	}
	if order.ID != "O1" || order.State != pos.StateOpen || order.Total != 700 || order.LocationID != "M1" {
		t.Fatalf("unexpected order %#v", order)
	}
	if len(order.LineItems) != 1 || order.LineItems[0].Quantity != 2 {
		t.Fatalf("expected folded line items, got %#v", order.LineItems)
	}
	if order.CreatedAt != "2024-05-01T08:00:00Z" {
		t.Fatalf("unexpected created at %q", order.CreatedAt)
	}
}

func TestCreateOrderLineItemFailure(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/line_items") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"invalid price"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"O1"}`)
	})
	_, err := a.CreateOrder(context.Background(), pos.CreateOrderRequest{LineItems: []pos.LineItem{{Name: "Tea"}}})
	if pos.KindOf(err) != pos.KindVendor {
		t.Fatalf("expected vendor error, got %v", err)
	}
}

func TestSearchOrdersFiltersSourceNamesClientSide(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "2" || q.Get("offset") != "0" {
			t.Errorf("unexpected paging %v", q)
		}
		_, _ = io.WriteString(w, `{"elements":[
			{"id":"A","state":"open","note":"table 3 window"},
			{"id":"B","state":"open","note":"Table 9"}]}`)
	})
	res, err := a.SearchOrders(context.Background(), pos.SearchOrdersRequest{
		SourceNames: []string{"Table 3"},
		Limit:       2,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Orders) != 1 || res.Orders[0].ID != "A" {
		t.Fatalf("unexpected orders %#v", res.Orders)
	}
	if res.Cursor != "2" {
		t.Fatalf("expected next offset cursor, got %q", res.Cursor)
	}
}

func TestSearchOrdersRejectsBadCursor(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request")
	})
	if _, err := a.SearchOrders(context.Background(), pos.SearchOrdersRequest{Cursor: "abc"}); !errors.Is(err, pos.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchOrdersCompletedIncludesPaidOpenOrders(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		for _, f := range r.URL.Query()["filter"] {
			if strings.HasPrefix(f, "state=") {
				t.Errorf("completed search must not filter state server side, got %q", f)
			}
		}
		_, _ = io.WriteString(w, `{"elements":[
			{"id":"A","state":"open","paymentState":"PAID"},
			{"id":"B","state":"locked"},
			{"id":"C","state":"open"}]}`)
	})
	res, err := a.SearchOrders(context.Background(), pos.SearchOrdersRequest{States: []string{pos.StateCompleted}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Orders) != 2 || res.Orders[0].ID != "A" || res.Orders[1].ID != "B" {
		t.Fatalf("expected paid and locked orders, got %#v", res.Orders)
	}
}

func TestSearchOrdersOpenFiltersServerSide(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		filters := r.URL.Query()["filter"]
		if len(filters) != 1 || filters[0] != "state=open" {
			t.Errorf("expected state=open filter, got %v", filters)
		}
		_, _ = io.WriteString(w, `{"elements":[
			{"id":"A","state":"open","paymentState":"PAID"},
			{"id":"C","state":"open"}]}`)
	})
	res, err := a.SearchOrders(context.Background(), pos.SearchOrdersRequest{States: []string{pos.StateOpen}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Orders) != 1 || res.Orders[0].ID != "C" {
		t.Fatalf("expected only the unpaid open order, got %#v", res.Orders)
	}
}

func TestSearchOrdersRejectsBadClosedAt(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request")
	})
	for _, req := range []pos.SearchOrdersRequest{
		{ClosedAtStart: "yesterday"},
		{ClosedAtEnd: "2024-13-01"},
	} {
		if _, err := a.SearchOrders(context.Background(), req); !errors.Is(err, pos.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestProcessPaymentRequiresOrder(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request")
	})
	_, err := a.ProcessPayment(context.Background(), pos.PaymentRequest{SourceID: "card", Amount: 100})
	if !errors.Is(err, pos.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessPayment(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merchants/M1/orders/O1/payments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		if body["currency"] != "GBP" || body["amount"] != float64(700) {
			t.Errorf("unexpected payment body %v", body)
		}
		if body["external_reference_id"] == "" {
			t.Errorf("expected generated reference")
		}
		_, _ = io.WriteString(w, `{"id":"P1","amount":700,"result":"SUCCESS"}`)
	})
	p, err := a.ProcessPayment(context.Background(), pos.PaymentRequest{SourceID: "card", Amount: 700, OrderID: "O1"})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if p.ID != "P1" || p.Status != "COMPLETED" || p.OrderID != "O1" || p.Amount.Currency != "GBP" {
		t.Fatalf("unexpected payment %#v", p)
	}
}

func TestListLocationsReturnsMerchant(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merchants/M1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"id":"M1","name":"Cafe"}`)
	})
	locs, err := a.ListLocations(context.Background())
	if err != nil {
		t.Fatalf("locations: %v", err)
	}
	if len(locs) != 1 || locs[0].ID != "M1" || locs[0].Name != "Cafe" {
		t.Fatalf("unexpected locations %#v", locs)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request")
	})
	ctx := context.Background()
	if _, err := a.GetInventory(ctx, pos.InventoryQuery{}); !errors.Is(err, pos.ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if _, err := a.CreateExternalPayment(ctx, pos.ExternalPaymentRequest{OrderID: "O1", Amount: 1}); !errors.Is(err, pos.ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestTableIDFromOrderUsesTitle(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"O1","state":"locked","title":"Table 12","paymentState":"PAID"}`)
	})
	n, err := a.TableIDFromOrder(context.Background(), "O1")
	if err != nil || n != 12 {
		t.Fatalf("expected table 12, got %d %v", n, err)
	}
}

func TestGetCatalogSkipsHiddenItems(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"elements":[
			{"id":"I1","name":"Tea","price":350,"categories":{"elements":[{"id":"C1","name":"Drinks"}]}},
			{"id":"I2","name":"Secret","price":1,"hidden":true}]}`)
	})
	objs, err := a.GetCatalog(context.Background())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(objs) != 1 || objs[0].CategoryID != "C1" || objs[0].Variations[0].Price.Amount != 350 {
		t.Fatalf("unexpected catalog %#v", objs)
	}
}
