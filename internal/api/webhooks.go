package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pos-gateway/internal/webhooks"
)

func (s *Server) squareWebhook(c *fiber.Ctx) error {
	if s.deps.SquareWebhook == nil {
		return fiber.ErrNotFound
	}
	res, err := s.deps.SquareWebhook.Handle(c.UserContext(), c.Get(webhooks.SquareSignatureHeader), c.Body())
	return s.acknowledge(c, "square", res, err)
}

func (s *Server) cloverWebhook(c *fiber.Ctx) error {
	if s.deps.CloverWebhook == nil {
		return fiber.ErrNotFound
	}
	res, err := s.deps.CloverWebhook.Handle(c.UserContext(), c.Get(webhooks.CloverAuthHeader), c.Body())
	return s.acknowledge(c, "clover", res, err)
}

// acknowledge answers 401 for rejected deliveries and 200 otherwise so the
// vendor does not retry events that failed downstream.
func (s *Server) acknowledge(c *fiber.Ctx, vendor string, res *webhooks.Result, err error) error {
	if errors.Is(err, webhooks.ErrInvalidSignature) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": fiber.Map{"message": "invalid signature"}})
	}
	if err != nil {
		s.logger.Error().Err(err).Str("vendor", vendor).Msg("webhook processing failed")
	}
	if res == nil {
		res = &webhooks.Result{}
	}
	if res.VerificationCode != "" {
		return c.JSON(fiber.Map{"verificationCode": res.VerificationCode})
	}
	return c.JSON(fiber.Map{"success": true, "processed": res.Processed, "ignored": res.Ignored})
}
