package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/service"
	"github.com/example/pos-gateway/internal/vendors"
)

// StatusFor maps an error to its HTTP status. Errors outside the pos
// taxonomy are internal failures.
func StatusFor(err error) int {
	var pe *pos.Error
	if !errors.As(err, &pe) {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe.Code
		}
		return fiber.StatusInternalServerError
	}
	switch pe.Kind {
	case pos.KindValidation, pos.KindMissingRestaurantContext,
		pos.KindUnsupportedVendor, pos.KindUnsupportedOperation:
		return fiber.StatusBadRequest
	case pos.KindAuthentication:
		return fiber.StatusUnauthorized
	case pos.KindNotFound:
		return fiber.StatusNotFound
	case pos.KindAmountMismatch:
		return fiber.StatusConflict
	default:
		return fiber.StatusBadGateway
	}
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(pos.NewEnvelope(data, nil))
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(pos.NewEnvelope(data, nil))
}

// handleError renders every error returned by a handler as an envelope.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	env := pos.NewEnvelope(nil, err)
	var pe *pos.Error
	if !errors.As(err, &pe) {
		env.Error.Kind = ""
		if status == fiber.StatusInternalServerError {
			env.Error.Message = "internal error"
		}
	}
	evt := s.logger.Warn()
	if status >= fiber.StatusInternalServerError {
		evt = s.logger.Error()
	}
	evt.Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Msg("request failed")
	return c.Status(status).JSON(env)
}

func badRequest(err error) error {
	return pos.Wrap(pos.KindValidation, err, "invalid request body")
}

// service resolves the adapter for the request's tenant context.
func (s *Server) service(c *fiber.Ctx, restaurantID, tableToken string, requireTenant bool) (*service.POSService, error) {
	return service.ForSelector(c.UserContext(), s.deps.Factory, vendors.Selector{
		RestaurantID:  restaurantID,
		TableToken:    tableToken,
		RequireTenant: requireTenant,
	})
}
