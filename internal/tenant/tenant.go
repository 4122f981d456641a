// Package tenant resolves per-restaurant POS credentials.
package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/example/pos-gateway/internal/pos"
)

// ErrNotFound is returned when no restaurant matches the lookup.
var ErrNotFound = errors.New("tenant: restaurant not found")

// Tenant is one restaurant and the POS credentials it owns.
type Tenant struct {
	RestaurantID   string   `toml:"restaurant_id" json:"restaurant_id"`
	Name           string   `toml:"name" json:"name"`
	Vendor         string   `toml:"pos_type" json:"pos_type"`
	AccessToken    string   `toml:"access_token" json:"access_token"`
	LocationID     string   `toml:"location_id" json:"location_id"`
	MerchantID     string   `toml:"merchant_id" json:"merchant_id"`
	OrganizationID string   `toml:"organization_id" json:"organization_id"`
	SecretKey      string   `toml:"secret_key" json:"secret_key"`
	Environment    string   `toml:"environment" json:"environment"`
	Currency       string   `toml:"currency" json:"currency"`
	TableTokens    []string `toml:"table_tokens" json:"table_tokens"`
	Disabled       bool     `toml:"disabled" json:"disabled"`
}

// AdapterConfig builds the adapter config for this tenant. Only transport
// settings are taken from defaults; credentials always come from the tenant.
func (t Tenant) AdapterConfig(defaults pos.AdapterConfig) pos.AdapterConfig {
	cfg := pos.AdapterConfig{
		Vendor:         strings.ToLower(strings.TrimSpace(t.Vendor)),
		AccessToken:    t.AccessToken,
		LocationID:     t.LocationID,
		MerchantID:     t.MerchantID,
		OrganizationID: t.OrganizationID,
		SecretKey:      t.SecretKey,
		Environment:    defaults.Environment,
		BaseURL:        defaults.BaseURL,
		Currency:       defaults.Currency,
		HTTPTimeout:    defaults.HTTPTimeout,
	}
	if env := strings.TrimSpace(t.Environment); env != "" {
		cfg.Environment = env
	}
	if cur := strings.TrimSpace(t.Currency); cur != "" {
		cfg.Currency = cur
	}
	return cfg
}

// Store looks up restaurants by id, by the token printed on a table, or by
// the vendor account (merchant or location id) named in webhook deliveries.
type Store interface {
	ByRestaurantID(ctx context.Context, restaurantID string) (*Tenant, error)
	ByTableToken(ctx context.Context, token string) (*Tenant, error)
	ByAccount(ctx context.Context, vendor, accountID string) (*Tenant, error)
}

// OwnsAccount reports whether t is the vendor tenant whose merchant or
// location id is accountID.
func (t Tenant) OwnsAccount(vendor, accountID string) bool {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" || !strings.EqualFold(strings.TrimSpace(t.Vendor), strings.TrimSpace(vendor)) {
		return false
	}
	return t.MerchantID == accountID || t.LocationID == accountID
}
