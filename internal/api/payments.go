package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/payments/stripe"
	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/service"
	"github.com/example/pos-gateway/internal/webhooks"
)

func (s *Server) processPayment(c *fiber.Ctx) error {
	var req models.PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	svc, err := s.service(c, req.RestaurantID, req.TableToken, false)
	if err != nil {
		return err
	}
	payment, err := svc.ProcessPayment(c.UserContext(), req.PaymentRequest)
	if err != nil {
		return err
	}
	return created(c, payment)
}

func (s *Server) externalPayment(c *fiber.Ctx) error {
	var req models.ExternalPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	svc, err := s.service(c, req.RestaurantID, req.TableToken, true)
	if err != nil {
		return err
	}
	res, err := svc.SettleExternalPayment(c.UserContext(), s.deps.Ledger, service.Settlement{
		OrderID:   req.OrderID,
		Amount:    req.Amount,
		TipAmount: req.TipAmount,
		Currency:  req.Currency,
		Source:    req.Source,
	})
	if err != nil {
		return err
	}
	s.markPaid(c, svc, res.OrderID)
	return created(c, res)
}

// markPaid stores the paid status of a settled order. Failures are logged;
// the vendor payment already exists.
func (s *Server) markPaid(c *fiber.Ctx, svc *service.POSService, orderID string) {
	if s.deps.StatusUpdates == nil {
		return
	}
	ctx := c.UserContext()
	table, err := svc.TableIDFromOrder(ctx, orderID)
	if err != nil {
		s.logger.Debug().Err(err).Str("order_id", orderID).Msg("settled order has no table")
	}
	err = s.deps.StatusUpdates.Apply(ctx, webhooks.Change{
		Vendor:       svc.Vendor(),
		RestaurantID: svc.RestaurantID(),
		OrderID:      orderID,
		TableID:      table,
		Status:       models.OrderStatusPaid,
		Source:       models.StatusSourceSettlement,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("settled order status not stored")
	}
}

func (s *Server) createIntent(c *fiber.Ctx) error {
	if s.deps.Stripe == nil {
		return pos.Newf(pos.KindUnsupportedOperation, "stripe is not configured")
	}
	var req models.StripeIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	svc, err := s.service(c, req.RestaurantID, req.TableToken, true)
	if err != nil {
		return err
	}
	currency := req.Currency
	if currency == "" {
		currency = s.deps.Currency
	}
	intent, err := s.deps.Stripe.CreatePaymentIntent(c.UserContext(), stripe.IntentRequest{
		OrderID:      req.OrderID,
		RestaurantID: svc.RestaurantID(),
		BaseAmount:   req.BaseAmount,
		TipAmount:    req.TipAmount,
		Currency:     currency,
	})
	if err != nil {
		return err
	}
	return created(c, intent)
}

// confirmIntent records a succeeded intent in the ledger. Replays of the same
// intent are ignored by the ledger.
func (s *Server) confirmIntent(c *fiber.Ctx) error {
	if s.deps.Stripe == nil {
		return pos.Newf(pos.KindUnsupportedOperation, "stripe is not configured")
	}
	if s.deps.Ledger == nil {
		return pos.Newf(pos.KindUnsupportedOperation, "payment ledger is not configured")
	}
	var req models.StripeConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		return pos.Validation("payment_intent_id is required")
	}
	svc, err := s.service(c, req.RestaurantID, req.TableToken, true)
	if err != nil {
		return err
	}
	intent, err := s.deps.Stripe.RetrievePaymentIntent(c.UserContext(), req.PaymentIntentID)
	if err != nil {
		return err
	}
	switch owner := intent.Metadata[stripe.MetaRestaurantID]; {
	case owner == "":
		return pos.Validation("payment intent %s carries no restaurant id", intent.ID)
	case owner != svc.RestaurantID():
		return pos.NotFound("payment intent %s not found for this restaurant", intent.ID)
	}
	body := fiber.Map{"payment_intent": intent, "recorded": false}
	if !intent.Succeeded() {
		return ok(c, body)
	}
	if intent.Metadata[stripe.MetaOrderID] == "" {
		return pos.Validation("payment intent %s carries no order id", intent.ID)
	}

	entry := models.LedgerEntry{
		ID:           uuid.NewString(),
		RestaurantID: svc.RestaurantID(),
		OrderID:      intent.Metadata[stripe.MetaOrderID],
		PaymentRef:   intent.ID,
		BaseAmount:   intent.BaseAmount(),
		TipAmount:    intent.TipAmount(),
		Currency:     strings.ToUpper(intent.Currency),
		Source:       models.LedgerSourceStripe,
		CreatedAt:    time.Now().UTC(),
	}
	if entry.Total() != intent.Amount {
		return pos.Validation("payment intent %s splits %d into base %d and tip %d", intent.ID, intent.Amount, entry.BaseAmount, entry.TipAmount)
	}
	if err := s.deps.Ledger.Record(c.UserContext(), entry); err != nil {
		return err
	}
	s.logger.Info().
		Str("restaurant_id", entry.RestaurantID).
		Str("order_id", entry.OrderID).
		Str("payment_ref", entry.PaymentRef).
		Int64("base_amount", entry.BaseAmount).
		Msg("stripe payment recorded")
	body["recorded"] = true
	body["entry"] = entry
	return ok(c, body)
}
