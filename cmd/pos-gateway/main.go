package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/api"
	"github.com/example/pos-gateway/internal/bootstrap"
	"github.com/example/pos-gateway/internal/config"
	"github.com/example/pos-gateway/internal/logger"
	"github.com/example/pos-gateway/internal/webhooks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise gateway")
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close gateway components")
		}
	}()

	deps := api.Deps{
		Factory:       app.Factory,
		Ledger:        app.Ledger,
		SquareWebhook: webhooks.NewSquareHandler(app.Webhooks, cfg.Square.WebhookSignatureKey, cfg.Square.WebhookNotificationURL),
		CloverWebhook: webhooks.NewCloverHandler(app.Webhooks, cfg.Clover.WebhookAuthCode),
		Statuses:      app.Statuses,
		StatusUpdates: app.Webhooks,
		Currency:      cfg.POS.DefaultCurrency,
	}
	if app.Stripe != nil {
		deps.Stripe = app.Stripe
	}
	if app.Producer != nil {
		deps.Events = app.Producer
	}
	srv := api.New(deps,
		api.WithLogger(log),
		api.WithRateLimit(cfg.App.RateLimitPerMinute),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(fmt.Sprintf(":%d", cfg.App.Port))
	}()

	log.Info().
		Int("port", cfg.App.Port).
		Str("default_vendor", app.Factory.DefaultVendor()).
		Bool("tenants", app.Tenants != nil).
		Bool("events", app.Publisher != nil).
		Msg("pos gateway started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server terminated with error")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("pos gateway init failed")
}
