package stripe_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/payments/stripe"
	"github.com/example/pos-gateway/internal/pos"
)

func newClient(t *testing.T, handler http.HandlerFunc) *stripe.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := stripe.New(stripe.Config{SecretKey: "sk_test_1", BaseURL: server.URL}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := stripe.New(stripe.Config{}, zerolog.Nop()); !errors.Is(err, pos.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "sk_test_1" {
			t.Errorf("expected basic auth with secret key")
		}
		if r.Header.Get("Idempotency-Key") != "idem-1" {
			t.Errorf("expected idempotency key passthrough")
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("amount") != "2898" || r.PostForm.Get("currency") != "gbp" {
			t.Errorf("unexpected amount/currency %v", r.PostForm)
		}
		if r.PostForm.Get("metadata[order_id]") != "o1" || r.PostForm.Get("metadata[base_amount]") != "2598" {
			t.Errorf("unexpected metadata %v", r.PostForm)
		}
		_, _ = io.WriteString(w, `{"id":"pi_1","amount":2898,"currency":"gbp","status":"requires_payment_method","client_secret":"pi_1_secret",
			"metadata":{"order_id":"o1","base_amount":"2598","tip_amount":"300"}}`)
	})
	pi, err := c.CreatePaymentIntent(context.Background(), stripe.IntentRequest{
		OrderID:        "o1",
		BaseAmount:     2598,
		TipAmount:      300,
		IdempotencyKey: "idem-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if pi.ClientSecret != "pi_1_secret" || pi.Succeeded() || pi.BaseAmount() != 2598 || pi.TipAmount() != 300 {
		t.Fatalf("unexpected intent %#v", pi)
	}
}

func TestCreatePaymentIntentValidation(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request")
	})
	_, err := c.CreatePaymentIntent(context.Background(), stripe.IntentRequest{TipAmount: -1})
	pe := pos.AsError(err)
	if pe.Kind != pos.KindValidation || len(pe.Errors) != 3 {
		t.Fatalf("expected three validation errors, got %#v", pe)
	}
}

func TestRetrievePaymentIntentError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents/pi_missing" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent","param":"intent"}}`)
	})
	_, err := c.RetrievePaymentIntent(context.Background(), "pi_missing")
	pe := pos.AsError(err)
	if pe.Kind != pos.KindVendor || len(pe.Errors) != 1 || pe.Errors[0] != "resource_missing: No such payment_intent (intent)" {
		t.Fatalf("unexpected error %#v", pe)
	}
}

func TestBaseAmountFallback(t *testing.T) {
	pi := &stripe.PaymentIntent{Amount: 1000, Metadata: map[string]string{"tip_amount": "200"}}
	if pi.BaseAmount() != 800 {
		t.Fatalf("expected base 800, got %d", pi.BaseAmount())
	}
}
