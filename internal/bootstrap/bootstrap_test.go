package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/bootstrap"
	"github.com/example/pos-gateway/internal/config"
	"github.com/example/pos-gateway/internal/models"
	"github.com/example/pos-gateway/internal/pos"
	"github.com/example/pos-gateway/internal/tenant"
	"github.com/example/pos-gateway/internal/vendors"
)

func baseConfig() *config.Config {
	return &config.Config{
		POS: config.POSConfig{Vendor: pos.VendorMock, DefaultCurrency: "GBP", HTTPTimeout: time.Second},
	}
}

func TestNewWithoutOptionalComponents(t *testing.T) {
	app, err := bootstrap.New(context.Background(), baseConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer app.Close()

	if app.Tenants != nil || app.Stripe != nil || app.Producer != nil || app.Publisher != nil {
		t.Fatalf("expected optional components to stay nil: %+v", app)
	}
	if _, err := app.Statuses.Upsert(context.Background(), models.OrderStatus{Vendor: "mock", OrderID: "o", Status: models.OrderStatusOpen}); err != nil {
		t.Fatalf("memory statuses: %v", err)
	}
	adapter, err := app.Factory.Adapter(context.Background(), vendors.Selector{})
	if err != nil || adapter.Name() != pos.VendorMock || !adapter.Authenticate(context.Background()) {
		t.Fatalf("unexpected default adapter %v %v", adapter, err)
	}
	if _, err := app.Factory.Adapter(context.Background(), vendors.Selector{RestaurantID: "r1"}); err == nil {
		t.Fatalf("expected tenant lookup to fail without a tenant source")
	}
}

func TestNewDecryptsTenantTokens(t *testing.T) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	source, err := tenant.NewFileStore()
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	crypt, err := tenant.NewDecryptingStore(source, key.Encode(), zerolog.Nop())
	if err != nil {
		t.Fatalf("decrypting store: %v", err)
	}
	sealed, err := crypt.Encrypt("plain-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tenants.toml")
	doc := "[[restaurants]]\nrestaurant_id = \"r1\"\npos_type = \"mock\"\naccess_token = \"" + sealed + "\"\nlocation_id = \"L1\"\ntable_tokens = [\"tbl-9\"]\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write tenants: %v", err)
	}

	cfg := baseConfig()
	cfg.Tenants = config.TenantConfig{File: path, CacheTTL: time.Minute, EncryptionKey: key.Encode()}
	app, err := bootstrap.New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer app.Close()

	_, resolved, err := app.Factory.Resolve(context.Background(), vendors.Selector{TableToken: "tbl-9"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved == nil || resolved.RestaurantID != "r1" || resolved.AccessToken != "plain-token" {
		t.Fatalf("unexpected tenant %+v", resolved)
	}
}

func TestNewRejectsMissingTenantFile(t *testing.T) {
	cfg := baseConfig()
	cfg.Tenants.File = filepath.Join(t.TempDir(), "missing.toml")
	if _, err := bootstrap.New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected an error for a missing tenant file")
	}
}
