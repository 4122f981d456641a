package vendors

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/tenant"
)

// Selector says which adapter a caller wants. RestaurantID or TableToken
// selects tenant mode; otherwise Vendor (or the factory default) is built from
// the environment config.
type Selector struct {
	Vendor        string
	RestaurantID  string
	TableToken    string
	RequireTenant bool
}

// HasTenant reports whether the selector carries restaurant context.
func (s Selector) HasTenant() bool {
	return strings.TrimSpace(s.RestaurantID) != "" || strings.TrimSpace(s.TableToken) != ""
}

// FactoryOption customises a Factory.
type FactoryOption func(*Factory)

// WithDefaultVendor sets the vendor used when the selector names none.
func WithDefaultVendor(vendor string) FactoryOption {
	return func(f *Factory) {
		f.defaultVendor = normalize(vendor, f.defaultVendor)
	}
}

// WithEnvironmentConfig registers the single-tenant config for cfg.Vendor.
func WithEnvironmentConfig(cfg pos.AdapterConfig) FactoryOption {
	return func(f *Factory) {
		vendor := normalize(cfg.Vendor, "")
		if vendor == "" {
			return
		}
		cfg.Vendor = vendor
		f.environment[vendor] = cfg
	}
}

// WithTenantStore enables restaurant scoped adapters.
func WithTenantStore(store tenant.Store) FactoryOption {
	return func(f *Factory) {
		f.tenants = store
	}
}

// WithFactoryLogger sets the logger handed to adapters.
func WithFactoryLogger(logger zerolog.Logger) FactoryOption {
	return func(f *Factory) {
		if !reflect.ValueOf(logger).IsZero() {
			f.logger = logger
		}
	}
}

// Factory builds adapters per request.
type Factory struct {
	defaultVendor string
	environment   map[string]pos.AdapterConfig
	tenants       tenant.Store
	logger        zerolog.Logger
}

// NewFactory constructs a Factory. The default vendor is square.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		defaultVendor: pos.VendorSquare,
		environment:   make(map[string]pos.AdapterConfig),
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// DefaultVendor returns the vendor used for selectors without one.
func (f *Factory) DefaultVendor() string { return f.defaultVendor }

// Adapter resolves sel into a ready adapter. Tenant mode never falls back to
// environment credentials.
func (f *Factory) Adapter(ctx context.Context, sel Selector) (pos.Adapter, error) {
	adapter, _, err := f.Resolve(ctx, sel)
	return adapter, err
}

// Resolve is Adapter that also returns the tenant record in tenant mode. The
// tenant is nil in environment mode.
func (f *Factory) Resolve(ctx context.Context, sel Selector) (pos.Adapter, *tenant.Tenant, error) {
	if sel.HasTenant() {
		t, err := f.resolveTenant(ctx, sel)
		if err != nil {
			return nil, nil, err
		}
		vendor := normalize(t.Vendor, f.defaultVendor)
		cfg := tenantDefaults(f.environment[vendor])
		t.Vendor = vendor
		adapter, err := New(t.AdapterConfig(cfg), f.logger.With().Str("restaurant_id", t.RestaurantID).Logger())
		if err != nil {
			f.logger.Warn().
				Err(err).
				Str("restaurant_id", t.RestaurantID).
				Str("vendor", vendor).
				Msg("tenant adapter init failed")
			return nil, nil, err
		}
		f.logger.Debug().
			Str("restaurant_id", t.RestaurantID).
			Str("vendor", vendor).
			Msg("using restaurant specific adapter")
		return adapter, t, nil
	}

	if sel.RequireTenant {
		return nil, nil, pos.Newf(pos.KindMissingRestaurantContext, "restaurant context is required: provide restaurant_id or table_token")
	}

	vendor := normalize(sel.Vendor, f.defaultVendor)
	cfg, ok := f.environment[vendor]
	if !ok {
		cfg = pos.AdapterConfig{Vendor: vendor}
	}
	adapter, err := New(cfg, f.logger)
	if err != nil {
		return nil, nil, err
	}
	return adapter, nil, nil
}

// ForAccount resolves the adapter for a vendor account named in a webhook
// delivery. The first accountID (merchant or location id) owned by a tenant
// selects that tenant's adapter. When no tenant owns any of them the
// environment adapter for vendor is returned with a nil tenant.
func (f *Factory) ForAccount(ctx context.Context, vendor string, accountIDs ...string) (pos.Adapter, *tenant.Tenant, error) {
	vendor = normalize(vendor, f.defaultVendor)
	if f.tenants != nil {
		for _, id := range accountIDs {
			if strings.TrimSpace(id) == "" {
				continue
			}
			t, err := f.tenants.ByAccount(ctx, vendor, id)
			if errors.Is(err, tenant.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, nil, pos.Wrap(pos.KindVendor, err, "restaurant lookup failed")
			}
			return f.Resolve(ctx, Selector{RestaurantID: t.RestaurantID, RequireTenant: true})
		}
	}
	return f.Resolve(ctx, Selector{Vendor: vendor})
}

func (f *Factory) resolveTenant(ctx context.Context, sel Selector) (*tenant.Tenant, error) {
	if f.tenants == nil {
		return nil, pos.Newf(pos.KindMissingRestaurantContext, "restaurant lookup is not configured")
	}

	var (
		t   *tenant.Tenant
		err error
	)
	if id := strings.TrimSpace(sel.RestaurantID); id != "" {
		t, err = f.tenants.ByRestaurantID(ctx, id)
	} else {
		t, err = f.tenants.ByTableToken(ctx, strings.TrimSpace(sel.TableToken))
	}
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		return nil, pos.NotFound("restaurant not found")
	case err != nil:
		return nil, pos.Wrap(pos.KindVendor, err, "restaurant lookup failed")
	case t.Disabled:
		return nil, pos.NotFound("restaurant %s is not active", t.RestaurantID)
	}
	return t, nil
}

// tenantDefaults strips credentials from an environment config so only the
// transport settings can reach a tenant adapter.
func tenantDefaults(cfg pos.AdapterConfig) pos.AdapterConfig {
	return pos.AdapterConfig{
		Environment: cfg.Environment,
		BaseURL:     cfg.BaseURL,
		Currency:    cfg.Currency,
		HTTPTimeout: cfg.HTTPTimeout,
	}
}
