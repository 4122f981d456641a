// Package stripe is a minimal Stripe PaymentIntents client.
package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/vendors/rest"
)

const (
	defaultBaseURL = "https://api.stripe.com"

	// StatusSucceeded is the PaymentIntent status of a captured payment.
	StatusSucceeded = "succeeded"
)

// Metadata keys written on every intent.
const (
	MetaOrderID      = "order_id"
	MetaRestaurantID = "restaurant_id"
	MetaBaseAmount   = "base_amount"
	MetaTipAmount    = "tip_amount"
)

// Config holds the API credentials.
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Option customises a Client.
type Option func(*[]rest.Option)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client rest.HTTPClient) Option {
	return func(opts *[]rest.Option) {
		*opts = append(*opts, rest.WithHTTPClient(client))
	}
}

// Client talks to the Stripe API with a secret key.
type Client struct {
	client *rest.Client
	logger zerolog.Logger
}

// New validates cfg and builds a Client.
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, pos.Validation("stripe secret key is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	baseURL := cfg.BaseURL
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	restOpts := []rest.Option{
		rest.WithBaseURL(baseURL),
		rest.WithTimeout(cfg.Timeout),
		rest.WithBasicAuth(cfg.SecretKey, ""),
		rest.WithErrorParser(parseErrors),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&restOpts)
		}
	}
	return &Client{
		client: rest.New("stripe", restOpts...),
		logger: logger.With().Str("component", "stripe_client").Logger(),
	}, nil
}

// PaymentIntent is the subset of the Stripe object the gateway reads.
type PaymentIntent struct {
	ID           string            `json:"id"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	ClientSecret string            `json:"client_secret,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Created      int64             `json:"created,omitempty"`
}

// Succeeded reports whether the intent has been captured.
func (pi *PaymentIntent) Succeeded() bool { return pi.Status == StatusSucceeded }

// BaseAmount reads the base amount from metadata, falling back to the full
// amount less the tip.
func (pi *PaymentIntent) BaseAmount() int64 {
	if v, err := strconv.ParseInt(pi.Metadata[MetaBaseAmount], 10, 64); err == nil {
		return v
	}
	return pi.Amount - pi.TipAmount()
}

// TipAmount reads the tip from metadata.
func (pi *PaymentIntent) TipAmount() int64 {
	v, _ := strconv.ParseInt(pi.Metadata[MetaTipAmount], 10, 64)
	return v
}

// IntentRequest describes a new intent. The charged amount is base plus tip.
type IntentRequest struct {
	OrderID        string
	RestaurantID   string
	BaseAmount     int64
	TipAmount      int64
	Currency       string
	IdempotencyKey string
}

// CreatePaymentIntent creates an intent with automatic payment methods.
func (c *Client) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error) {
	var errs []string
	if strings.TrimSpace(req.OrderID) == "" {
		errs = append(errs, "order id is required")
	}
	if req.BaseAmount <= 0 {
		errs = append(errs, "base amount must be positive")
	}
	if req.TipAmount < 0 {
		errs = append(errs, "tip amount must not be negative")
	}
	if len(errs) > 0 {
		e := pos.Validation("invalid payment intent request")
		e.Errors = errs
		return nil, e
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = strings.ToLower(pos.DefaultCurrency)
	}

	form := url.Values{
		"amount":                             {strconv.FormatInt(req.BaseAmount+req.TipAmount, 10)},
		"currency":                           {currency},
		"automatic_payment_methods[enabled]": {"true"},
		"metadata[" + MetaOrderID + "]":      {req.OrderID},
		"metadata[" + MetaBaseAmount + "]":   {strconv.FormatInt(req.BaseAmount, 10)},
		"metadata[" + MetaTipAmount + "]":    {strconv.FormatInt(req.TipAmount, 10)},
	}
	if req.RestaurantID != "" {
		form.Set("metadata["+MetaRestaurantID+"]", req.RestaurantID)
	}

	var pi PaymentIntent
	headers := map[string]string{"Idempotency-Key": pos.IdempotencyKeyOr(req.IdempotencyKey)}
	if _, err := c.client.Do(ctx, rest.Request{Method: http.MethodPost, Path: "/v1/payment_intents", Form: form, Headers: headers}, &pi); err != nil {
		c.logger.Info().Err(err).Str("order_id", req.OrderID).Msg("stripe payment intent creation failed")
		return nil, err
	}
	c.logger.Debug().Str("payment_intent", pi.ID).Str("order_id", req.OrderID).Msg("stripe payment intent created")
	return &pi, nil
}

// RetrievePaymentIntent fetches an intent by id.
func (c *Client) RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pos.Validation("payment intent id is required")
	}
	var pi PaymentIntent
	if _, err := c.client.Do(ctx, rest.Request{Path: "/v1/payment_intents/" + url.PathEscape(id)}, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Param   string `json:"param"`
	} `json:"error"`
}

func parseErrors(body []byte) []string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error.Message == "" {
		return nil
	}
	msg := eb.Error.Message
	if eb.Error.Code != "" {
		msg = eb.Error.Code + ": " + msg
	}
	if eb.Error.Param != "" {
		msg += " (" + eb.Error.Param + ")"
	}
	return []string{msg}
}
