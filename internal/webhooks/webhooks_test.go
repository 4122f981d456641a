package webhooks_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/store"
	"github.com/example/pos-gateway/internal/vendors/mock"
	"github.com/example/pos-gateway/internal/webhooks"
)

const notificationURL = "https://gateway.example.com/webhooks/square"

type recordingPublisher struct {
	events []models.OrderStatusEvent
}

func (r *recordingPublisher) PublishOrderStatus(_ context.Context, e models.OrderStatusEvent) error {
	r.events = append(r.events, e)
	return nil
}

type fixture struct {
	adapter   *mock.Adapter
	statuses  *store.MemoryOrderStatuses
	publisher *recordingPublisher
	proc      *webhooks.Processor

	// owners maps an account id to the restaurant that owns it.
	owners   map[string]string
	accounts [][]string
}

func newFixture() *fixture {
	f := &fixture{
		adapter:   mock.New(pos.AdapterConfig{Vendor: pos.VendorMock, AccessToken: "hook", LocationID: "L1"}, zerolog.Nop(), mock.WithStore(mock.NewStore())),
		statuses:  store.NewMemoryOrderStatuses(),
		publisher: &recordingPublisher{},
		owners:    map[string]string{},
	}
	source := func(_ context.Context, _ string, accountIDs ...string) (pos.Adapter, string, error) {
		f.accounts = append(f.accounts, accountIDs)
		for _, id := range accountIDs {
			if owner, ok := f.owners[id]; ok {
				return f.adapter, owner, nil
			}
		}
		return f.adapter, "", nil
	}
	f.proc = webhooks.NewProcessor(f.statuses, source, webhooks.WithPublisher(f.publisher), webhooks.WithLogger(zerolog.Nop()))
	return f
}

func (f *fixture) order(t *testing.T, table string) *pos.Order {
	t.Helper()
	o, err := f.adapter.CreateOrder(context.Background(), pos.CreateOrderRequest{
		LineItems:   []pos.LineItem{{Name: "Burger", Quantity: 1, UnitPrice: 1299}},
		TableNumber: table,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestSquareRejectsBadSignature(t *testing.T) {
	f := newFixture()
	h := webhooks.NewSquareHandler(f.proc, "sig-key", notificationURL)
	body := []byte(`{"type":"order.updated"}`)
	if _, err := h.Handle(context.Background(), "bogus", body); !errors.Is(err, webhooks.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	unkeyed := webhooks.NewSquareHandler(f.proc, "", notificationURL)
	if _, err := unkeyed.Handle(context.Background(), webhooks.SquareSignature("", notificationURL, body), body); !errors.Is(err, webhooks.ErrInvalidSignature) {
		t.Fatalf("expected missing key to reject, got %v", err)
	}
}

func TestSquareOrderUpdatedStoresAndPublishes(t *testing.T) {
	f := newFixture()
	o := f.order(t, "5")
	h := webhooks.NewSquareHandler(f.proc, "sig-key", notificationURL)
	body := []byte(fmt.Sprintf(`{"type":"order.updated","event_id":"e1","data":{"type":"order","id":"%s",
		"object":{"order_updated":{"order_id":"%s","state":"COMPLETED","location_id":"L1"}}}}`, o.ID, o.ID))

	res, err := h.Handle(context.Background(), webhooks.SquareSignature("sig-key", notificationURL, body), body)
	if err != nil || res.Processed != 1 {
		t.Fatalf("unexpected result %#v %v", res, err)
	}
	got, err := f.statuses.Get(context.Background(), pos.VendorSquare, o.ID)
	if err != nil || got.Status != models.OrderStatusPaid || got.TableID != 5 {
		t.Fatalf("unexpected stored status %#v %v", got, err)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Status != models.OrderStatusPaid {
		t.Fatalf("expected one published event, got %#v", f.publisher.events)
	}

	// Replaying the same state stores again but publishes nothing new.
	if _, err := h.Handle(context.Background(), webhooks.SquareSignature("sig-key", notificationURL, body), body); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("expected no event for unchanged status")
	}
}

func TestSquarePaymentUpdated(t *testing.T) {
	f := newFixture()
	o := f.order(t, "2")
	h := webhooks.NewSquareHandler(f.proc, "k", notificationURL)
	body := []byte(fmt.Sprintf(`{"type":"payment.updated","data":{"type":"payment","id":"p1",
		"object":{"payment":{"id":"p1","order_id":"%s","status":"FAILED"}}}}`, o.ID))
	if _, err := h.Handle(context.Background(), webhooks.SquareSignature("k", notificationURL, body), body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ := f.statuses.Get(context.Background(), pos.VendorSquare, o.ID)
	if got == nil || got.Status != models.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %#v", got)
	}
}

func TestSquareIgnoresOtherEvents(t *testing.T) {
	f := newFixture()
	h := webhooks.NewSquareHandler(f.proc, "k", notificationURL)
	body := []byte(`{"type":"customer.created","data":{}}`)
	res, err := h.Handle(context.Background(), webhooks.SquareSignature("k", notificationURL, body), body)
	if err != nil || res.Ignored != 1 {
		t.Fatalf("expected ignored event, got %#v %v", res, err)
	}
}

func TestCloverVerificationHandshake(t *testing.T) {
	f := newFixture()
	h := webhooks.NewCloverHandler(f.proc, "auth")
	res, err := h.Handle(context.Background(), "", []byte(`{"verificationCode":"abc-123"}`))
	if err != nil || res.VerificationCode != "abc-123" {
		t.Fatalf("expected echo, got %#v %v", res, err)
	}
}

func TestCloverEvents(t *testing.T) {
	f := newFixture()
	o := f.order(t, "8")
	h := webhooks.NewCloverHandler(f.proc, "auth")
	body := []byte(fmt.Sprintf(`{"appId":"app","merchants":{"M1":[
		{"objectId":"O:%s","type":"UPDATE","ts":1},
		{"objectId":"P:pay1","type":"CREATE","ts":2}]}}`, o.ID))

	if _, err := h.Handle(context.Background(), "wrong", body); !errors.Is(err, webhooks.ErrInvalidSignature) {
		t.Fatalf("expected auth rejection, got %v", err)
	}
	res, err := h.Handle(context.Background(), "auth", body)
	if err != nil || res.Processed != 1 || res.Ignored != 1 {
		t.Fatalf("unexpected result %#v %v", res, err)
	}
	got, _ := f.statuses.Get(context.Background(), pos.VendorClover, o.ID)
	if got == nil || got.Status != models.OrderStatusOpen || got.TableID != 8 {
		t.Fatalf("unexpected status %#v", got)
	}
}

func TestCloverDeleteCancels(t *testing.T) {
	f := newFixture()
	h := webhooks.NewCloverHandler(f.proc, "auth")
	body := []byte(`{"merchants":{"M1":[{"objectId":"O:gone","type":"DELETE"}]}}`)
	if _, err := h.Handle(context.Background(), "auth", body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ := f.statuses.Get(context.Background(), pos.VendorClover, "gone")
	if got == nil || got.Status != models.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %#v", got)
	}
}

func TestSquareSkipsOrderWithoutTable(t *testing.T) {
	f := newFixture()
	o := f.order(t, "")
	h := webhooks.NewSquareHandler(f.proc, "k", notificationURL)
	body := []byte(fmt.Sprintf(`{"type":"order.updated","data":{"type":"order","id":"%s",
		"object":{"order_updated":{"order_id":"%s","state":"COMPLETED"}}}}`, o.ID, o.ID))
	res, err := h.Handle(context.Background(), webhooks.SquareSignature("k", notificationURL, body), body)
	if err != nil || res.Ignored != 1 || res.Processed != 0 {
		t.Fatalf("expected ignored event, got %#v %v", res, err)
	}
	if _, err := f.statuses.Get(context.Background(), pos.VendorSquare, o.ID); !errors.Is(err, store.ErrStatusNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("expected no events, got %#v", f.publisher.events)
	}
}

func TestSquareResolvesRestaurantFromPayload(t *testing.T) {
	f := newFixture()
	f.owners["L-77"] = "r-77"
	o := f.order(t, "3")
	h := webhooks.NewSquareHandler(f.proc, "k", notificationURL)
	body := []byte(fmt.Sprintf(`{"merchant_id":"MERCH","type":"order.updated","data":{"type":"order","id":"%s",
		"object":{"order_updated":{"order_id":"%s","state":"OPEN","location_id":"L-77"}}}}`, o.ID, o.ID))
	if _, err := h.Handle(context.Background(), webhooks.SquareSignature("k", notificationURL, body), body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.accounts) != 1 || len(f.accounts[0]) != 2 || f.accounts[0][0] != "L-77" || f.accounts[0][1] != "MERCH" {
		t.Fatalf("expected location then merchant lookup, got %v", f.accounts)
	}
	got, err := f.statuses.Get(context.Background(), pos.VendorSquare, o.ID)
	if err != nil || got.RestaurantID != "r-77" || got.TableID != 3 {
		t.Fatalf("unexpected stored status %#v %v", got, err)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].RestaurantID != "r-77" {
		t.Fatalf("expected event for r-77, got %#v", f.publisher.events)
	}
}

func TestCloverResolvesRestaurantPerMerchant(t *testing.T) {
	f := newFixture()
	f.owners["M1"] = "r-1"
	o := f.order(t, "4")
	h := webhooks.NewCloverHandler(f.proc, "auth")
	body := []byte(fmt.Sprintf(`{"merchants":{"M1":[{"objectId":"O:%s","type":"UPDATE"}]}}`, o.ID))
	if _, err := h.Handle(context.Background(), "auth", body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, err := f.statuses.Get(context.Background(), pos.VendorClover, o.ID)
	if err != nil || got.RestaurantID != "r-1" {
		t.Fatalf("expected restaurant from merchant id, got %#v %v", got, err)
	}
}

func TestCloverUnreadableOrderKeepsStoredStatus(t *testing.T) {
	ctx := context.Background()
	statuses := store.NewMemoryOrderStatuses()
	if _, err := statuses.Upsert(ctx, models.OrderStatus{Vendor: pos.VendorClover, OrderID: "o-1", TableID: 6, Status: models.OrderStatusPaid}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	publisher := &recordingPublisher{}
	down := func(context.Context, string, ...string) (pos.Adapter, string, error) {
		return nil, "", errors.New("down")
	}
	proc := webhooks.NewProcessor(statuses, down, webhooks.WithPublisher(publisher))
	h := webhooks.NewCloverHandler(proc, "auth")

	body := []byte(`{"merchants":{"M1":[{"objectId":"O:o-1","type":"UPDATE"}]}}`)
	res, err := h.Handle(ctx, "auth", body)
	if err != nil || res.Processed != 0 || res.Ignored != 1 {
		t.Fatalf("expected ignored event, got %#v %v", res, err)
	}
	got, err := statuses.Get(ctx, pos.VendorClover, "o-1")
	if err != nil || got.Status != models.OrderStatusPaid {
		t.Fatalf("paid order changed: %#v %v", got, err)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("expected no events, got %#v", publisher.events)
	}
}

func TestCloverMissingOrderIsIgnored(t *testing.T) {
	f := newFixture()
	h := webhooks.NewCloverHandler(f.proc, "auth")
	body := []byte(`{"merchants":{"M1":[{"objectId":"O:unknown","type":"UPDATE"}]}}`)
	res, err := h.Handle(context.Background(), "auth", body)
	if err != nil || res.Ignored != 1 {
		t.Fatalf("expected ignored event, got %#v %v", res, err)
	}
	if _, err := f.statuses.Get(context.Background(), pos.VendorClover, "unknown"); !errors.Is(err, store.ErrStatusNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}
