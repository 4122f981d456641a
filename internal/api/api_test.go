package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/api"
	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/payments/stripe"
	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/store"
	"github.com/example/pos-gateway/internal/tenant"
	"github.com/example/pos-gateway/internal/vendors"
	_ "github.com/example/pos-gateway/internal/vendors/mock"
	"github.com/example/pos-gateway/internal/webhooks"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Meta    map[string]any `json:"meta"`
	} `json:"error"`
}

type fakeStripe struct {
	intent *stripe.PaymentIntent
	last   stripe.IntentRequest
}

func (f *fakeStripe) CreatePaymentIntent(_ context.Context, req stripe.IntentRequest) (*stripe.PaymentIntent, error) {
	f.last = req
	return &stripe.PaymentIntent{ID: "pi_new", Amount: req.BaseAmount + req.TipAmount, Currency: req.Currency, Status: "requires_payment_method"}, nil
}

func (f *fakeStripe) RetrievePaymentIntent(_ context.Context, id string) (*stripe.PaymentIntent, error) {
	if f.intent == nil || f.intent.ID != id {
		return nil, pos.NotFound("no such payment intent: %s", id)
	}
	return f.intent, nil
}

type fixture struct {
	app      *fiber.App
	ledger   *store.MemoryLedger
	statuses *store.MemoryOrderStatuses
	stripe   *fakeStripe
}

// newFixture serves the mock vendor in single-tenant mode and restaurant
// "r-1" (table token "tbl-1") in tenant mode. Tokens are unique per test so
// mock stores are not shared between tests.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	tenants, err := tenant.NewFileStore(tenant.Tenant{
		RestaurantID: "r-1",
		Vendor:       pos.VendorMock,
		AccessToken:  "tenant-" + t.Name(),
		LocationID:   "L-1",
		TableTokens:  []string{"tbl-1"},
	})
	if err != nil {
		t.Fatalf("tenants: %v", err)
	}
	factory := vendors.NewFactory(
		vendors.WithDefaultVendor(pos.VendorMock),
		vendors.WithEnvironmentConfig(pos.AdapterConfig{Vendor: pos.VendorMock, AccessToken: "env-" + t.Name(), LocationID: "L-env"}),
		vendors.WithTenantStore(tenants),
	)
	f := &fixture{ledger: store.NewMemoryLedger(), statuses: store.NewMemoryOrderStatuses(), stripe: &fakeStripe{}}
	proc := webhooks.NewProcessor(f.statuses, func(ctx context.Context, vendor string, _ ...string) (pos.Adapter, string, error) {
		adapter, err := factory.Adapter(ctx, vendors.Selector{Vendor: vendor})
		return adapter, "", err
	})
	srv := api.New(api.Deps{
		Factory:       factory,
		Ledger:        f.ledger,
		Stripe:        f.stripe,
		SquareWebhook: webhooks.NewSquareHandler(proc, "sig-key", "https://example.test/webhooks/square"),
		CloverWebhook: webhooks.NewCloverHandler(proc, "clover-code"),
		Statuses:      f.statuses,
		StatusUpdates: proc,
	}, api.WithLogger(zerolog.Nop()))
	f.app = srv.App()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	}
	return resp.StatusCode, env
}

func (f *fixture) createOrder(t *testing.T, extra map[string]any) pos.Order {
	t.Helper()
	body := map[string]any{
		"line_items": []map[string]any{{"name": "Burger", "quantity": 2, "unit_price": 1299}},
	}
	for k, v := range extra {
		body[k] = v
	}
	status, env := f.do(t, http.MethodPost, "/api/orders", body)
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("create order: status %d %+v", status, env.Error)
	}
	var order pos.Order
	if err := json.Unmarshal(env.Data, &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	return order
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{pos.Validation("bad"), http.StatusBadRequest},
		{pos.Newf(pos.KindMissingRestaurantContext, "x"), http.StatusBadRequest},
		{pos.Unsupported("ncr", "catalog"), http.StatusBadRequest},
		{pos.Newf(pos.KindUnsupportedVendor, "x"), http.StatusBadRequest},
		{pos.Newf(pos.KindAuthentication, "x"), http.StatusUnauthorized},
		{pos.NotFound("x"), http.StatusNotFound},
		{pos.Newf(pos.KindAmountMismatch, "x"), http.StatusConflict},
		{pos.Vendor("x"), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
		{fiber.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		if got := api.StatusFor(tc.err); got != tc.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestCreateAndRetrieveOrder(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, nil)
	if order.Total != 2598 {
		t.Fatalf("expected total 2598, got %d", order.Total)
	}
	status, env := f.do(t, http.MethodGet, "/api/orders/"+order.ID, nil)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("retrieve: status %d %+v", status, env.Error)
	}
}

func TestRetrieveMissingOrder(t *testing.T) {
	f := newFixture(t)
	status, env := f.do(t, http.MethodGet, "/api/orders/nope", nil)
	if status != http.StatusNotFound || env.Success || env.Error == nil || env.Error.Kind != string(pos.KindNotFound) {
		t.Fatalf("unexpected response %d %+v", status, env.Error)
	}
}

func TestTenantOrdersAreIsolated(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]any{"table_token": "tbl-1"})
	status, _ := f.do(t, http.MethodGet, "/api/orders/"+order.ID+"?restaurant_id=r-1", nil)
	if status != http.StatusOK {
		t.Fatalf("expected tenant retrieve to succeed, got %d", status)
	}
	status, _ = f.do(t, http.MethodGet, "/api/orders/"+order.ID, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected env adapter not to see tenant order, got %d", status)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	status, env := f.do(t, http.MethodPost, "/api/orders", map[string]any{"line_items": []any{}})
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Kind != string(pos.KindValidation) {
		t.Fatalf("unexpected response %d %+v", status, env.Error)
	}
}

func TestExternalPaymentRequiresTenant(t *testing.T) {
	f := newFixture(t)
	status, env := f.do(t, http.MethodPost, "/api/payments/external", map[string]any{"order_id": "x", "amount": 100})
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Kind != string(pos.KindMissingRestaurantContext) {
		t.Fatalf("unexpected response %d %+v", status, env.Error)
	}
}

func TestStripeConfirmThenAggregateSettlement(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]any{"restaurant_id": "r-1"})

	status, env := f.do(t, http.MethodPost, "/api/payments/external", map[string]any{"restaurant_id": "r-1", "order_id": order.ID})
	if status != http.StatusConflict || env.Error == nil || env.Error.Kind != string(pos.KindAmountMismatch) {
		t.Fatalf("expected mismatch before any ledger entry, got %d %+v", status, env.Error)
	}

	f.stripe.intent = &stripe.PaymentIntent{
		ID:       "pi_1",
		Amount:   2798,
		Currency: "gbp",
		Status:   stripe.StatusSucceeded,
		Metadata: map[string]string{
			stripe.MetaOrderID:      order.ID,
			stripe.MetaRestaurantID: "r-1",
			stripe.MetaBaseAmount:   "2598",
			stripe.MetaTipAmount:    "200",
		},
	}
	for i := 0; i < 2; i++ {
		status, env = f.do(t, http.MethodPost, "/api/payments/stripe/confirm", map[string]any{"restaurant_id": "r-1", "payment_intent_id": "pi_1"})
		if status != http.StatusOK || !env.Success {
			t.Fatalf("confirm: status %d %+v", status, env.Error)
		}
	}
	base, tip, err := f.ledger.Totals(context.Background(), "r-1", order.ID)
	if err != nil || base != 2598 || tip != 200 {
		t.Fatalf("expected one ledger entry, got base %d tip %d err %v", base, tip, err)
	}

	status, env = f.do(t, http.MethodPost, "/api/payments/external", map[string]any{"table_token": "tbl-1", "order_id": order.ID})
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("settle: status %d %+v", status, env.Error)
	}
	var res struct {
		Mode   string `json:"mode"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil || res.Mode != "aggregate" || res.Amount != 2598 {
		t.Fatalf("unexpected settlement %s", env.Data)
	}

	status, env = f.do(t, http.MethodGet, "/api/orders/"+order.ID+"/status?restaurant_id=r-1", nil)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("order status: %d %+v", status, env.Error)
	}
	var stored models.OrderStatus
	if err := json.Unmarshal(env.Data, &stored); err != nil || stored.Status != models.OrderStatusPaid || stored.RestaurantID != "r-1" {
		t.Fatalf("expected settled order to be paid, got %s", env.Data)
	}
}

func TestOrderStatusNotFound(t *testing.T) {
	f := newFixture(t)
	status, env := f.do(t, http.MethodGet, "/api/orders/nope/status", nil)
	if status != http.StatusNotFound || env.Error == nil || env.Error.Kind != string(pos.KindNotFound) {
		t.Fatalf("unexpected response %d %+v", status, env.Error)
	}
}

func TestOrderStatusHiddenFromOtherTenants(t *testing.T) {
	f := newFixture(t)
	_, err := f.statuses.Upsert(context.Background(), models.OrderStatus{
		RestaurantID: "r-other", Vendor: pos.VendorMock, OrderID: "o-9", Status: models.OrderStatusOpen,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if status, _ := f.do(t, http.MethodGet, "/api/orders/o-9/status?restaurant_id=r-1", nil); status != http.StatusNotFound {
		t.Fatalf("expected tenant r-1 not to see r-other status, got %d", status)
	}
	if status, _ := f.do(t, http.MethodGet, "/api/orders/o-9/status", nil); status != http.StatusOK {
		t.Fatalf("expected environment caller to see the status, got %d", status)
	}
}

func TestStripeConfirmRequiresRestaurantMetadata(t *testing.T) {
	f := newFixture(t)
	f.stripe.intent = &stripe.PaymentIntent{
		ID:       "pi_3",
		Amount:   1000,
		Status:   stripe.StatusSucceeded,
		Metadata: map[string]string{stripe.MetaOrderID: "o"},
	}
	status, env := f.do(t, http.MethodPost, "/api/payments/stripe/confirm", map[string]any{"restaurant_id": "r-1", "payment_intent_id": "pi_3"})
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Kind != string(pos.KindValidation) {
		t.Fatalf("unexpected response %d %+v", status, env.Error)
	}
	if base, _, _ := f.ledger.Totals(context.Background(), "r-1", "o"); base != 0 {
		t.Fatalf("expected nothing recorded, got base %d", base)
	}
}

func TestStripeConfirmRejectsInconsistentSplit(t *testing.T) {
	f := newFixture(t)
	f.stripe.intent = &stripe.PaymentIntent{
		ID:     "pi_4",
		Amount: 1000,
		Status: stripe.StatusSucceeded,
		Metadata: map[string]string{
			stripe.MetaOrderID:      "o",
			stripe.MetaRestaurantID: "r-1",
			stripe.MetaBaseAmount:   "1000",
			stripe.MetaTipAmount:    "100",
		},
	}
	status, env := f.do(t, http.MethodPost, "/api/payments/stripe/confirm", map[string]any{"restaurant_id": "r-1", "payment_intent_id": "pi_4"})
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Kind != string(pos.KindValidation) {
		t.Fatalf("unexpected response %d %+v", status, env.Error)
	}
}

func TestStripeConfirmRejectsOtherRestaurant(t *testing.T) {
	f := newFixture(t)
	f.stripe.intent = &stripe.PaymentIntent{
		ID:       "pi_2",
		Status:   stripe.StatusSucceeded,
		Metadata: map[string]string{stripe.MetaOrderID: "o", stripe.MetaRestaurantID: "r-other"},
	}
	status, _ := f.do(t, http.MethodPost, "/api/payments/stripe/confirm", map[string]any{"restaurant_id": "r-1", "payment_intent_id": "pi_2"})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestCreateIntentUsesTenant(t *testing.T) {
	f := newFixture(t)
	status, env := f.do(t, http.MethodPost, "/api/payments/stripe/intents", map[string]any{
		"table_token": "tbl-1", "order_id": "o-1", "base_amount": 1000, "tip_amount": 150,
	})
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("create intent: status %d %+v", status, env.Error)
	}
	if f.stripe.last.RestaurantID != "r-1" || f.stripe.last.Currency != "GBP" || f.stripe.last.TipAmount != 150 {
		t.Fatalf("unexpected intent request %+v", f.stripe.last)
	}
}

func TestSquareWebhookSignature(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, http.MethodPost, "/webhooks/square", map[string]any{"type": "order.updated"}, webhooks.SquareSignatureHeader, "wrong")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestCloverWebhookHandshake(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clover", bytes.NewBufferString(`{"verificationCode":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body["verificationCode"] != "abc" {
		t.Fatalf("unexpected handshake %d %v", resp.StatusCode, body)
	}
}

func TestHealthAndAdapters(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthy, got %d", resp.StatusCode)
	}
	status, env := f.do(t, http.MethodGet, "/api/pos/adapters", nil)
	if status != http.StatusOK || !bytes.Contains(env.Data, []byte(`"default":"mock"`)) {
		t.Fatalf("unexpected adapters %d %s", status, env.Data)
	}
}

func TestOrderTable(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]any{"table_number": "7"})
	status, env := f.do(t, http.MethodGet, "/api/orders/"+order.ID+"/table", nil)
	if status != http.StatusOK || !bytes.Contains(env.Data, []byte(`"table_id":7`)) {
		t.Fatalf("unexpected table %d %s %+v", status, env.Data, env.Error)
	}
}
