// Package api exposes the POS gateway over HTTP.
package api

import (
	"context"
	"reflect"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/payments/stripe"
	"github.com/example/pos-gateway/internal/service"
	"github.com/example/pos-gateway/internal/vendors"
	"github.com/example/pos-gateway/internal/webhooks"
)

// PaymentIntents is the subset of the Stripe client used by checkout.
type PaymentIntents interface {
	CreatePaymentIntent(ctx context.Context, req stripe.IntentRequest) (*stripe.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// OrderStatuses reads the stored status of vendor orders.
type OrderStatuses interface {
	Get(ctx context.Context, vendor, orderID string) (*models.OrderStatus, error)
}

// Readiness reports whether an optional dependency can serve traffic.
type Readiness interface {
	IsReady() bool
}

// Deps are the components behind the routes. Factory is required; nil
// optional parts disable the routes that need them.
type Deps struct {
	Factory       *vendors.Factory
	Ledger        service.Ledger
	Stripe        PaymentIntents
	SquareWebhook *webhooks.SquareHandler
	CloverWebhook *webhooks.CloverHandler
	Statuses      OrderStatuses
	StatusUpdates *webhooks.Processor
	Events        Readiness
	Currency      string
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		if !reflect.ValueOf(logger).IsZero() {
			s.logger = logger.With().Str("component", "api").Logger()
		}
	}
}

// WithRateLimit caps requests per client IP per minute. Zero disables it.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.rateLimit = perMinute
	}
}

// Server serves the gateway routes.
type Server struct {
	app       *fiber.App
	deps      Deps
	logger    zerolog.Logger
	rateLimit int
}

// New builds the fiber app and registers every route.
func New(deps Deps, opts ...Option) *Server {
	s := &Server{deps: deps, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.deps.Currency == "" {
		s.deps.Currency = "GBP"
	}
	if isNil(s.deps.Ledger) {
		s.deps.Ledger = nil
	}
	if isNil(s.deps.Stripe) {
		s.deps.Stripe = nil
	}
	if isNil(s.deps.Events) {
		s.deps.Events = nil
	}
	if isNil(s.deps.Statuses) {
		s.deps.Statuses = nil
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "pos-gateway",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.logRequests)
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("http server listening")
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.health)

	api := s.app.Group("/api")
	if s.rateLimit > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        s.rateLimit,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"success": false, "error": fiber.Map{"message": "rate limit exceeded"}})
			},
		}))
	}

	api.Get("/pos/adapters", s.adapters)

	api.Post("/orders", s.createOrder)
	api.Get("/orders", s.allOrders)
	api.Post("/orders/search", s.searchOrders)
	api.Get("/orders/:id", s.retrieveOrder)
	api.Post("/orders/:id/items", s.addItem)
	api.Get("/orders/:id/table", s.orderTable)
	api.Get("/orders/:id/status", s.orderStatus)

	api.Post("/payments", s.processPayment)
	api.Post("/payments/external", s.externalPayment)
	api.Post("/payments/stripe/intents", s.createIntent)
	api.Post("/payments/stripe/confirm", s.confirmIntent)

	api.Get("/locations", s.locations)
	api.Get("/catalog", s.catalog)
	api.Get("/inventory/:catalogObjectId", s.inventory)
	api.Post("/inventory/counts/batch-retrieve", s.inventoryCounts)
	api.Post("/inventory/changes/batch-create", s.inventoryChanges)

	hooks := s.app.Group("/webhooks")
	hooks.Post("/square", s.squareWebhook)
	hooks.Post("/clover", s.cloverWebhook)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
		Dur("duration", time.Since(start)).
		Msg("request served")
	return err
}

func (s *Server) health(c *fiber.Ctx) error {
	svc, err := service.ForSelector(c.UserContext(), s.deps.Factory, vendors.Selector{})
	if err != nil {
		return err
	}
	body := fiber.Map{
		"status":        "ok",
		"vendor":        svc.Vendor(),
		"authenticated": svc.Authenticate(c.UserContext()),
	}
	if s.deps.Events != nil {
		body["events"] = s.deps.Events.IsReady()
	}
	status := fiber.StatusOK
	if !body["authenticated"].(bool) {
		body["status"] = "degraded"
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(body)
}

func (s *Server) adapters(c *fiber.Ctx) error {
	return ok(c, fiber.Map{
		"default":  s.deps.Factory.DefaultVendor(),
		"adapters": vendors.Available(),
	})
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
