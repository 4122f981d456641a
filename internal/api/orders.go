package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/store"
)

func tenantQuery(c *fiber.Ctx) (models.TenantContext, error) {
	var tc models.TenantContext
	if err := c.QueryParser(&tc); err != nil {
		return tc, badRequest(err)
	}
	return tc, nil
}

func (s *Server) createOrder(c *fiber.Ctx) error {
	var req models.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	svc, err := s.service(c, req.RestaurantID, req.TableToken, false)
	if err != nil {
		return err
	}
	order, err := svc.CreateOrder(c.UserContext(), req.CreateOrderRequest)
	if err != nil {
		return err
	}
	return created(c, order)
}

func (s *Server) retrieveOrder(c *fiber.Ctx) error {
	tc, err := tenantQuery(c)
	if err != nil {
		return err
	}
	svc, err := s.service(c, tc.RestaurantID, tc.TableToken, false)
	if err != nil {
		return err
	}
	order, err := svc.RetrieveOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, order)
}

func (s *Server) searchOrders(c *fiber.Ctx) error {
	var req models.SearchOrdersRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	req.SearchOrdersRequest.ReturnEntries = req.ReturnEntries == nil || *req.ReturnEntries
	svc, err := s.service(c, req.RestaurantID, req.TableToken, false)
	if err != nil {
		return err
	}
	res, err := svc.SearchOrders(c.UserContext(), req.SearchOrdersRequest)
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (s *Server) addItem(c *fiber.Ctx) error {
	var req models.AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	svc, err := s.service(c, req.RestaurantID, req.TableToken, false)
	if err != nil {
		return err
	}
	order, err := svc.AddItemToOrder(c.UserContext(), c.Params("id"), req.Item)
	if err != nil {
		return err
	}
	return ok(c, order)
}

func (s *Server) allOrders(c *fiber.Ctx) error {
	tc, err := tenantQuery(c)
	if err != nil {
		return err
	}
	svc, err := s.service(c, tc.RestaurantID, tc.TableToken, false)
	if err != nil {
		return err
	}
	orders, err := svc.GetAllOrders(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, orders)
}

func (s *Server) orderTable(c *fiber.Ctx) error {
	tc, err := tenantQuery(c)
	if err != nil {
		return err
	}
	svc, err := s.service(c, tc.RestaurantID, tc.TableToken, false)
	if err != nil {
		return err
	}
	orderID := c.Params("id")
	table, err := svc.TableIDFromOrder(c.UserContext(), orderID)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"order_id": orderID, "table_id": table})
}

// orderStatus returns the status last stored for an order by webhooks or
// settlement. Tenant callers only see their own orders.
func (s *Server) orderStatus(c *fiber.Ctx) error {
	if s.deps.Statuses == nil {
		return pos.Newf(pos.KindUnsupportedOperation, "order status store is not configured")
	}
	tc, err := tenantQuery(c)
	if err != nil {
		return err
	}
	svc, err := s.service(c, tc.RestaurantID, tc.TableToken, false)
	if err != nil {
		return err
	}
	orderID := c.Params("id")
	status, err := s.deps.Statuses.Get(c.UserContext(), svc.Vendor(), orderID)
	if errors.Is(err, store.ErrStatusNotFound) {
		return pos.NotFound("no status stored for order %s", orderID)
	}
	if err != nil {
		return err
	}
	if tc.HasTenant() && status.RestaurantID != svc.RestaurantID() {
		return pos.NotFound("no status stored for order %s", orderID)
	}
	return ok(c, status)
}

func (s *Server) locations(c *fiber.Ctx) error {
	tc, err := tenantQuery(c)
	if err != nil {
		return err
	}
	svc, err := s.service(c, tc.RestaurantID, tc.TableToken, false)
	if err != nil {
		return err
	}
	locs, err := svc.ListLocations(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, locs)
}

func (s *Server) catalog(c *fiber.Ctx) error {
	tc, err := tenantQuery(c)
	if err != nil {
		return err
	}
	svc, err := s.service(c, tc.RestaurantID, tc.TableToken, false)
	if err != nil {
		return err
	}
	objects, err := svc.GetCatalog(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, objects)
}

func (s *Server) inventory(c *fiber.Ctx) error {
	tc, err := tenantQuery(c)
	if err != nil {
		return err
	}
	svc, err := s.service(c, tc.RestaurantID, tc.TableToken, false)
	if err != nil {
		return err
	}
	query := pos.InventoryQuery{
		CatalogObjectIDs: []string{c.Params("catalogObjectId")},
		Cursor:           c.Query("cursor"),
	}
	if loc := strings.TrimSpace(c.Query("location_ids")); loc != "" {
		query.LocationIDs = strings.Split(loc, ",")
	}
	page, err := svc.GetInventory(c.UserContext(), query)
	if err != nil {
		return err
	}
	return ok(c, page)
}

func (s *Server) inventoryCounts(c *fiber.Ctx) error {
	var req models.InventoryCountsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	svc, err := s.service(c, req.RestaurantID, req.TableToken, false)
	if err != nil {
		return err
	}
	page, err := svc.BatchRetrieveInventoryCounts(c.UserContext(), req.InventoryQuery)
	if err != nil {
		return err
	}
	return ok(c, page)
}

func (s *Server) inventoryChanges(c *fiber.Ctx) error {
	var req models.InventoryChangesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	svc, err := s.service(c, req.RestaurantID, req.TableToken, false)
	if err != nil {
		return err
	}
	counts, err := svc.BatchCreateInventoryChanges(c.UserContext(), req.InventoryChangeBatch)
	if err != nil {
		return err
	}
	return ok(c, counts)
}
