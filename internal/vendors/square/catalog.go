package square

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/vendors/rest"
)

// CatalogIterator walks the catalog one object at a time, fetching pages
// lazily. It satisfies pos.Iterator.
type CatalogIterator struct {
	ctx     context.Context
	adapter *Adapter
	buf     []pos.CatalogObject
	cursor  string
	started bool
	err     error
}

// Catalog returns an iterator over ITEM and CATEGORY objects.
func (a *Adapter) Catalog(ctx context.Context) *CatalogIterator {
	return &CatalogIterator{ctx: ctx, adapter: a}
}

// Next returns the next catalog object. It returns false when the catalog is
// exhausted or a page fetch failed; check Err afterwards.
func (it *CatalogIterator) Next() (any, bool) {
	for len(it.buf) == 0 {
		if it.err != nil || (it.started && it.cursor == "") {
			return nil, false
		}
		it.fetch()
	}
	obj := it.buf[0]
	it.buf = it.buf[1:]
	return obj, true
}

// Err returns the first page fetch error.
func (it *CatalogIterator) Err() error { return it.err }

func (it *CatalogIterator) fetch() {
	query := url.Values{"types": {"ITEM,CATEGORY"}}
	if it.cursor != "" {
		query.Set("cursor", it.cursor)
	}
	var resp catalogListResponse
	_, err := it.adapter.client.Do(it.ctx, rest.Request{Path: "/v2/catalog/list", Query: query}, &resp)
	if err == nil {
		err = resp.err("list catalog")
	}
	it.started = true
	if err != nil {
		it.err = err
		return
	}
	for _, o := range resp.Objects {
		it.buf = append(it.buf, toCatalogObject(o))
	}
	it.cursor = resp.Cursor
}

// GetCatalog drains Catalog into a slice.
func (a *Adapter) GetCatalog(ctx context.Context) ([]pos.CatalogObject, error) {
	it := a.Catalog(ctx)
	out := []pos.CatalogObject{}
	for {
		obj, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, obj.(pos.CatalogObject))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetInventory returns the counts of one catalog object.
func (a *Adapter) GetInventory(ctx context.Context, query pos.InventoryQuery) (*pos.InventoryPage, error) {
	if len(query.CatalogObjectIDs) != 1 || strings.TrimSpace(query.CatalogObjectIDs[0]) == "" {
		return nil, pos.Validation("exactly one catalog object id is required")
	}
	params := url.Values{}
	if len(query.LocationIDs) > 0 {
		params.Set("location_ids", strings.Join(query.LocationIDs, ","))
	}
	if query.Cursor != "" {
		params.Set("cursor", query.Cursor)
	}
	var resp inventoryResponse
	path := "/v2/inventory/" + url.PathEscape(strings.TrimSpace(query.CatalogObjectIDs[0]))
	if _, err := a.client.Do(ctx, rest.Request{Path: path, Query: params}, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("get inventory"); err != nil {
		return nil, err
	}
	return &pos.InventoryPage{Counts: toCounts(resp.Counts), Cursor: resp.Cursor}, nil
}

// BatchRetrieveInventoryCounts implements pos.Adapter.
func (a *Adapter) BatchRetrieveInventoryCounts(ctx context.Context, query pos.InventoryQuery) (*pos.InventoryPage, error) {
	body := map[string]any{}
	if len(query.CatalogObjectIDs) > 0 {
		body["catalog_object_ids"] = query.CatalogObjectIDs
	}
	if len(query.LocationIDs) > 0 {
		body["location_ids"] = query.LocationIDs
	}
	if query.Cursor != "" {
		body["cursor"] = query.Cursor
	}
	var resp inventoryResponse
	if _, err := a.client.Do(ctx, rest.Request{Method: http.MethodPost, Path: "/v2/inventory/counts/batch-retrieve", JSON: body}, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("batch retrieve inventory"); err != nil {
		return nil, err
	}
	return &pos.InventoryPage{Counts: toCounts(resp.Counts), Cursor: resp.Cursor}, nil
}

// BatchCreateInventoryChanges implements pos.Adapter.
func (a *Adapter) BatchCreateInventoryChanges(ctx context.Context, batch pos.InventoryChangeBatch) ([]pos.InventoryCount, error) {
	if len(batch.Changes) == 0 {
		return nil, pos.Validation("at least one inventory change is required")
	}
	changes := make([]inventoryChange, 0, len(batch.Changes))
	for i, c := range batch.Changes {
		loc := firstNonEmpty(c.LocationID, a.cfg.LocationID)
		if strings.TrimSpace(c.CatalogObjectID) == "" || strings.TrimSpace(c.Quantity) == "" || strings.TrimSpace(c.OccurredAt) == "" {
			return nil, pos.Validation("change %d: catalog object id, quantity and occurred_at are required", i)
		}
		switch strings.ToUpper(c.Type) {
		case pos.InventoryChangePhysicalCount:
			changes = append(changes, inventoryChange{
				Type: pos.InventoryChangePhysicalCount,
				PhysicalCount: &physicalCount{
					ID:              c.ID,
					CatalogObjectID: c.CatalogObjectID,
					State:           firstNonEmpty(c.State, "IN_STOCK"),
					LocationID:      loc,
					Quantity:        c.Quantity,
					OccurredAt:      c.OccurredAt,
				},
			})
		case pos.InventoryChangeAdjustment:
			if c.FromState == "" || c.ToState == "" {
				return nil, pos.Validation("change %d: adjustments need from_state and to_state", i)
			}
			changes = append(changes, inventoryChange{
				Type: pos.InventoryChangeAdjustment,
				Adjustment: &adjustment{
					ID:              c.ID,
					CatalogObjectID: c.CatalogObjectID,
					FromState:       c.FromState,
					ToState:         c.ToState,
					LocationID:      loc,
					Quantity:        c.Quantity,
					OccurredAt:      c.OccurredAt,
				},
			})
		default:
			return nil, pos.Validation("change %d: unsupported type %q", i, c.Type)
		}
	}

	body := map[string]any{
		"idempotency_key":         pos.IdempotencyKeyOr(batch.IdempotencyKey),
		"changes":                 changes,
		"ignore_unchanged_counts": batch.IgnoreUnchangedCount,
	}
	var resp inventoryResponse
	if _, err := a.client.Do(ctx, rest.Request{Method: http.MethodPost, Path: "/v2/inventory/changes/batch-create", JSON: body}, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("batch create inventory changes"); err != nil {
		return nil, err
	}
	return toCounts(resp.Counts), nil
}
