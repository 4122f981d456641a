// Package bootstrap wires the gateway components from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/config"
	"github.com/example/pos-gateway/internal/kafka/producer"
	"github.com/example/pos-gateway/internal/kafka/publisher"
	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/payments/stripe"
	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/service"
	"github.com/example/pos-gateway/internal/store"
	"github.com/example/pos-gateway/internal/tenant"
	"github.com/example/pos-gateway/internal/vendors"
	"github.com/example/pos-gateway/internal/webhooks"

	// Vendor adapters register themselves.
	_ "github.com/example/pos-gateway/internal/vendors/clover"
	_ "github.com/example/pos-gateway/internal/vendors/mock"
	_ "github.com/example/pos-gateway/internal/vendors/ncr"
	_ "github.com/example/pos-gateway/internal/vendors/square"
)

// Statuses is the order status store used by webhooks and views.
type Statuses interface {
	webhooks.StatusStore
	Get(ctx context.Context, vendor, orderID string) (*models.OrderStatus, error)
}

// App holds the wired components. Optional parts are nil when not
// configured.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Factory   *vendors.Factory
	Tenants   tenant.Store
	// Registrar writes tenants; nil unless tenants live in Postgres.
	Registrar *tenant.Registrar
	Statuses  Statuses
	Ledger    service.Ledger
	Stripe    *stripe.Client
	Producer  *producer.Producer
	Publisher *publisher.OrderStatusPublisher
	Webhooks  *webhooks.Processor

	closers []func() error
}

// New builds an App from cfg. On error every component opened so far is
// closed.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	var db store.DB
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
		if err := store.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		db = pool
	}

	if app.Tenants, err = app.tenantStore(db); err != nil {
		return nil, err
	}

	if db != nil {
		app.Statuses = store.NewOrderStatuses(db)
		app.Ledger = store.NewLedger(db)
	} else {
		logger.Warn().Msg("DATABASE_URL not set; order statuses and payment ledger are kept in memory")
		app.Statuses = store.NewMemoryOrderStatuses()
		app.Ledger = store.NewMemoryLedger()
	}

	if cfg.Stripe.SecretKey != "" {
		app.Stripe, err = stripe.New(stripe.Config{
			SecretKey: cfg.Stripe.SecretKey,
			BaseURL:   cfg.Stripe.APIURL,
			Timeout:   cfg.POS.HTTPTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Kafka.Enabled() {
		prod, err := producer.New(cfg.Kafka.Brokers, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, prod.Close)
		app.Producer = prod
		app.Publisher = publisher.NewOrderStatusPublisher(prod, cfg.Kafka.OrderStatusTopic, logger)
	}

	app.Factory = NewFactory(cfg, app.Tenants, logger)

	opts := []webhooks.Option{webhooks.WithLogger(logger)}
	if app.Publisher != nil {
		opts = append(opts, webhooks.WithPublisher(app.Publisher))
	}
	app.Webhooks = webhooks.NewProcessor(app.Statuses, func(ctx context.Context, vendor string, accountIDs ...string) (pos.Adapter, string, error) {
		adapter, owner, err := app.Factory.ForAccount(ctx, vendor, accountIDs...)
		if err != nil || owner == nil {
			return adapter, "", err
		}
		return adapter, owner.RestaurantID, nil
	}, opts...)

	return app, nil
}

// NewFactory registers the environment config of every known vendor.
func NewFactory(cfg *config.Config, tenants tenant.Store, logger zerolog.Logger) *vendors.Factory {
	opts := []vendors.FactoryOption{
		vendors.WithDefaultVendor(cfg.POS.Vendor),
		vendors.WithFactoryLogger(logger),
	}
	for _, info := range vendors.Available() {
		opts = append(opts, vendors.WithEnvironmentConfig(cfg.AdapterConfig(info.Name)))
	}
	if tenants != nil {
		opts = append(opts, vendors.WithTenantStore(tenants))
	}
	return vendors.NewFactory(opts...)
}

// tenantStore layers the configured source, the badger cache and token
// decryption. It returns nil when no source is configured.
func (a *App) tenantStore(db store.DB) (tenant.Store, error) {
	cfg := a.Config.Tenants

	var (
		source tenant.Store
		writer tenant.Writer
	)
	switch {
	case cfg.File != "":
		fs, err := tenant.LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		a.Logger.Info().Str("file", cfg.File).Int("restaurants", fs.Len()).Msg("tenant file loaded")
		source = fs
	case db != nil:
		pg := store.NewTenants(db)
		source, writer = pg, pg
	default:
		a.Logger.Info().Msg("no tenant source configured; single-tenant mode only")
		return nil, nil
	}

	cached, err := tenant.NewCachedStore(source,
		tenant.WithCacheDir(cfg.CacheDir),
		tenant.WithCacheTTL(cfg.CacheTTL),
		tenant.WithCacheLogger(a.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("tenant cache: %w", err)
	}
	a.closers = append(a.closers, cached.Close)

	var out tenant.Store = cached
	regOpts := []tenant.RegistrarOption{tenant.WithCache(cached)}
	if cfg.EncryptionKey != "" {
		dec, err := tenant.NewDecryptingStore(cached, cfg.EncryptionKey, a.Logger)
		if err != nil {
			return nil, err
		}
		out = dec
		regOpts = append(regOpts, tenant.WithEncryption(dec))
	}
	if writer != nil {
		a.Registrar = tenant.NewRegistrar(writer, regOpts...)
	}
	return out, nil
}

// Close releases every opened component in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
