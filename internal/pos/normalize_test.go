package pos_test

import (
	"errors"
	"testing"

	"github.com/example/pos-gateway/internal/pos"
)

type mapperValue struct{ id string }

func (m mapperValue) ToMap() map[string]any { return map[string]any{"id": m.id} }

type sliceIterator struct {
	items []any
	pos   int
}

func (s *sliceIterator) Next() (any, bool) {
	if s.pos >= len(s.items) {
		return nil, false
	}
	item := s.items[s.pos]
	s.pos++
	return item, true
}

func TestNormalizeMapper(t *testing.T) {
	got, ok := pos.Normalize(mapperValue{id: "o1"}).(map[string]any)
	if !ok || got["id"] != "o1" {
		t.Fatalf("unexpected mapper normalization: %#v", got)
	}
}

func TestNormalizeIterator(t *testing.T) {
	it := &sliceIterator{items: []any{"a", mapperValue{id: "b"}}}
	got, ok := pos.Normalize(it).([]any)
	if !ok || len(got) != 2 {
		t.Fatalf("expected drained iterator, got %#v", got)
	}
	if m, ok := got[1].(map[string]any); !ok || m["id"] != "b" {
		t.Fatalf("expected nested mapper normalized, got %#v", got[1])
	}
}

func TestNormalizeStructViaJSON(t *testing.T) {
	order := &pos.Order{ID: "o1", Total: 2598, LineItems: []pos.LineItem{{Name: "Burger", Quantity: 2, UnitPrice: 1299}}}
	got, ok := pos.Normalize(order).(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", pos.Normalize(order))
	}
	if got["id"] != "o1" || got["total"] != float64(2598) {
		t.Fatalf("unexpected order map %#v", got)
	}
	items, ok := got["line_items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("unexpected line items %#v", got["line_items"])
	}
}

func TestNormalizeSlicesAndScalars(t *testing.T) {
	got, ok := pos.Normalize([]string{"a", "b"}).([]any)
	if !ok || len(got) != 2 || got[0] != "a" {
		t.Fatalf("unexpected slice normalization %#v", got)
	}
	if pos.Normalize(42) != 42 {
		t.Fatalf("expected ints to pass through")
	}
	var nilOrder *pos.Order
	if pos.Normalize(nilOrder) != nil {
		t.Fatalf("expected nil pointer to normalize to nil")
	}
	if pos.Normalize(make(chan int)) == nil {
		t.Fatalf("expected fallback string for channels")
	}
}

type (
	quantity uint16
	ratio    float32
	cents    int64
)

func TestNormalizeNamedNumbers(t *testing.T) {
	if got, ok := pos.Normalize(quantity(3)).(uint64); !ok || got != 3 {
		t.Fatalf("expected uint64 3, got %#v", pos.Normalize(quantity(3)))
	}
	if got, ok := pos.Normalize(ratio(0.5)).(float64); !ok || got != 0.5 {
		t.Fatalf("expected float64 0.5, got %#v", pos.Normalize(ratio(0.5)))
	}
	if got, ok := pos.Normalize(cents(-250)).(int64); !ok || got != -250 {
		t.Fatalf("expected int64 -250, got %#v", pos.Normalize(cents(-250)))
	}
	got, ok := pos.Normalize(map[string]quantity{"a": 1}).(map[string]any)
	if !ok || got["a"] != uint64(1) {
		t.Fatalf("expected nested named uint to stay numeric, got %#v", got)
	}
}

func TestNewEnvelopeExclusive(t *testing.T) {
	ok := pos.NewEnvelope(map[string]any{"id": "o1"}, nil)
	if !ok.Success || ok.Error != nil || ok.Data == nil {
		t.Fatalf("unexpected success envelope %#v", ok)
	}

	mismatch := pos.Newf(pos.KindAmountMismatch, "amounts differ").
		WithMeta("base_sum", int64(2000)).
		WithMeta("order_total", int64(2598))
	failed := pos.NewEnvelope(nil, mismatch)
	if failed.Success || failed.Data != nil || failed.Error == nil {
		t.Fatalf("unexpected failure envelope %#v", failed)
	}
	if failed.Error.Kind != pos.KindAmountMismatch {
		t.Fatalf("unexpected kind %s", failed.Error.Kind)
	}
	if failed.Error.Meta["base_sum"] != int64(2000) || failed.Error.Meta["order_total"] != int64(2598) {
		t.Fatalf("expected both amounts in meta, got %#v", failed.Error.Meta)
	}

	plain := pos.NewEnvelope(nil, errors.New("socket closed"))
	if plain.Error.Kind != pos.KindVendor {
		t.Fatalf("expected unknown errors to surface as vendor, got %s", plain.Error.Kind)
	}
}
