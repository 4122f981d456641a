package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/example/pos-gateway/internal/tenant"
)

const tenantColumns = `r.restaurant_id, r.name, r.pos_type, r.access_token, r.location_id,
	r.merchant_id, r.organization_id, r.secret_key, r.environment, r.currency, r.disabled`

// Tenants reads restaurant credentials from Postgres.
type Tenants struct {
	db DB
}

var _ tenant.Store = (*Tenants)(nil)

// NewTenants wraps db.
func NewTenants(db DB) *Tenants {
	return &Tenants{db: db}
}

// ByRestaurantID implements tenant.Store.
func (s *Tenants) ByRestaurantID(ctx context.Context, restaurantID string) (*tenant.Tenant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM restaurants r WHERE r.restaurant_id = $1`, restaurantID)
	return scanTenant(row)
}

// ByTableToken implements tenant.Store.
func (s *Tenants) ByTableToken(ctx context.Context, token string) (*tenant.Tenant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tenantColumns+`
		FROM restaurants r JOIN table_tokens t ON t.restaurant_id = r.restaurant_id
		WHERE t.token = $1`, token)
	return scanTenant(row)
}

// ByAccount implements tenant.Store.
func (s *Tenants) ByAccount(ctx context.Context, vendor, accountID string) (*tenant.Tenant, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, tenant.ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM restaurants r
		WHERE lower(r.pos_type) = lower($1) AND (r.merchant_id = $2 OR r.location_id = $2)
		ORDER BY r.restaurant_id LIMIT 1`, strings.TrimSpace(vendor), strings.TrimSpace(accountID))
	return scanTenant(row)
}

// Upsert writes t and replaces its table tokens in one transaction.
func (s *Tenants) Upsert(ctx context.Context, t tenant.Tenant) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO restaurants
			(restaurant_id, name, pos_type, access_token, location_id, merchant_id, organization_id, secret_key, environment, currency, disabled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (restaurant_id) DO UPDATE SET
				name = EXCLUDED.name, pos_type = EXCLUDED.pos_type, access_token = EXCLUDED.access_token,
				location_id = EXCLUDED.location_id, merchant_id = EXCLUDED.merchant_id,
				organization_id = EXCLUDED.organization_id, secret_key = EXCLUDED.secret_key,
				environment = EXCLUDED.environment, currency = EXCLUDED.currency, disabled = EXCLUDED.disabled`,
			t.RestaurantID, t.Name, t.Vendor, t.AccessToken, t.LocationID, t.MerchantID,
			t.OrganizationID, t.SecretKey, t.Environment, t.Currency, t.Disabled)
		if err != nil {
			return fmt.Errorf("upsert restaurant %s: %w", t.RestaurantID, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM table_tokens WHERE restaurant_id = $1`, t.RestaurantID); err != nil {
			return fmt.Errorf("clear table tokens: %w", err)
		}
		for _, token := range t.TableTokens {
			if _, err := tx.Exec(ctx, `INSERT INTO table_tokens (token, restaurant_id) VALUES ($1, $2)`, token, t.RestaurantID); err != nil {
				return fmt.Errorf("insert table token: %w", err)
			}
		}
		return nil
	})
}

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(&t.RestaurantID, &t.Name, &t.Vendor, &t.AccessToken, &t.LocationID,
		&t.MerchantID, &t.OrganizationID, &t.SecretKey, &t.Environment, &t.Currency, &t.Disabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan restaurant: %w", err)
	}
	return &t, nil
}
