package pos_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/example/pos-gateway/internal/pos"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := pos.NotFound("order %s", "abc")
	if !errors.Is(err, pos.ErrNotFound) {
		t.Fatalf("expected not found kind, got %v", err)
	}
	if errors.Is(err, pos.ErrVendor) {
		t.Fatalf("did not expect vendor kind")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, pos.ErrNotFound) {
		t.Fatalf("expected kind to survive wrapping")
	}
}

func TestAsErrorClassifiesUnknownErrors(t *testing.T) {
	if pos.AsError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	pe := pos.AsError(errors.New("boom"))
	if pe.Kind != pos.KindVendor {
		t.Fatalf("expected vendor kind, got %s", pe.Kind)
	}
	if pe.Message() != "boom" {
		t.Fatalf("unexpected message %q", pe.Message())
	}
	if pos.KindOf(pos.Unsupported("ncr", "inventory")) != pos.KindUnsupportedOperation {
		t.Fatalf("expected unsupported operation kind")
	}
}

func TestAdapterConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     pos.AdapterConfig
		wantErr string
	}{
		{name: "square ok", cfg: pos.AdapterConfig{Vendor: "square", AccessToken: "t", LocationID: "L1"}},
		{name: "square missing location", cfg: pos.AdapterConfig{Vendor: "square", AccessToken: "t"}, wantErr: "location id"},
		{name: "clover missing merchant", cfg: pos.AdapterConfig{Vendor: "clover", AccessToken: "t"}, wantErr: "merchant id"},
		{name: "ncr missing secret", cfg: pos.AdapterConfig{Vendor: "ncr", AccessToken: "t", OrganizationID: "org"}, wantErr: "secret key"},
		{name: "missing token", cfg: pos.AdapterConfig{Vendor: "square", LocationID: "L1"}, wantErr: "access token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, pos.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected %q in %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestValidateCreateOrder(t *testing.T) {
	if _, err := pos.ValidateCreateOrder(pos.CreateOrderRequest{}); !errors.Is(err, pos.ErrValidation) {
		t.Fatalf("expected validation error for empty line items, got %v", err)
	}

	req, err := pos.ValidateCreateOrder(pos.CreateOrderRequest{
		LineItems: []pos.LineItem{{Name: "Burger", UnitPrice: 1299}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.LineItems[0].Quantity != 1 {
		t.Fatalf("expected quantity to default to 1, got %d", req.LineItems[0].Quantity)
	}

	if _, err := pos.ValidateCreateOrder(pos.CreateOrderRequest{
		LineItems: []pos.LineItem{{Quantity: 1}},
	}); !errors.Is(err, pos.ErrValidation) {
		t.Fatalf("expected validation error for unnamed item, got %v", err)
	}
}

func TestValidatePayment(t *testing.T) {
	err := pos.ValidatePayment(pos.PaymentRequest{})
	if !errors.Is(err, pos.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := len(pos.AsError(err).Errors); got != 2 {
		t.Fatalf("expected 2 problems, got %d", got)
	}
	if err := pos.ValidatePayment(pos.PaymentRequest{SourceID: "cnon:card", Amount: 100}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !(pos.PaymentRequest{}).AutocompleteOrDefault() {
		t.Fatalf("expected autocomplete to default to true")
	}
}

func TestDefaultSortField(t *testing.T) {
	cases := []struct {
		states []string
		want   string
	}{
		{nil, pos.SortCreatedAt},
		{[]string{"COMPLETED"}, pos.SortClosedAt},
		{[]string{"completed", "CANCELED"}, pos.SortClosedAt},
		{[]string{"OPEN"}, pos.SortCreatedAt},
		{[]string{"COMPLETED", "OPEN"}, pos.SortCreatedAt},
	}
	for _, tc := range cases {
		if got := pos.DefaultSortField(tc.states); got != tc.want {
			t.Fatalf("DefaultSortField(%v) = %s, want %s", tc.states, got, tc.want)
		}
	}
}

func TestSearchWithDefaults(t *testing.T) {
	req := pos.SearchOrdersRequest{States: []string{" completed "}}.WithDefaults()
	if req.SortField != pos.SortClosedAt || req.SortOrder != pos.SortDesc {
		t.Fatalf("unexpected sort %s %s", req.SortField, req.SortOrder)
	}
	if req.Limit != pos.DefaultSearchLimit {
		t.Fatalf("expected default limit, got %d", req.Limit)
	}
	if req.States[0] != "COMPLETED" {
		t.Fatalf("expected normalized state, got %q", req.States[0])
	}

	capped := pos.SearchOrdersRequest{Limit: 5000, SortOrder: "asc"}.WithDefaults()
	if capped.Limit != pos.MaxSearchLimit || capped.SortOrder != pos.SortAsc {
		t.Fatalf("unexpected limit/order %d %s", capped.Limit, capped.SortOrder)
	}
}

func TestIdempotencyKeyOr(t *testing.T) {
	if got := pos.IdempotencyKeyOr("abc"); got != "abc" {
		t.Fatalf("expected supplied key to pass through, got %q", got)
	}
	a, b := pos.IdempotencyKeyOr(""), pos.IdempotencyKeyOr("")
	if a == "" || a == b {
		t.Fatalf("expected fresh unique keys, got %q and %q", a, b)
	}
}

func TestTableIDFromFields(t *testing.T) {
	cases := []struct {
		name     string
		meta     map[string]string
		ref      string
		source   string
		want     int
		notFound bool
	}{
		{name: "metadata wins", meta: map[string]string{"table_id": "7"}, ref: "table_3", want: 7},
		{name: "reference", ref: "table_12", want: 12},
		{name: "source name", source: "Table 4", want: 4},
		{name: "nothing", ref: "order-1", source: "Web", notFound: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := pos.TableIDFromFields(tc.meta, tc.ref, tc.source)
			if tc.notFound {
				if !errors.Is(err, pos.ErrNotFound) {
					t.Fatalf("expected not found, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}
