package main

import (
	"context"
	"os"

	"github.com/example/pos-gateway/internal/bootstrap"
	"github.com/example/pos-gateway/internal/cli"
	"github.com/example/pos-gateway/internal/config"
	"github.com/example/pos-gateway/internal/logger"
)

func main() {
	root := cli.NewRootCommand(open)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// open loads the gateway configuration and wires the adapter factory and
// tenant stores. Logs go to stderr at warn level unless LOG_LEVEL says
// otherwise.
func open(ctx context.Context) (*cli.Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if _, set := os.LookupEnv("LOG_LEVEL"); !set {
		cfg.App.LogLevel = "warn"
	}
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}
	cfg.Kafka.Brokers = nil
	app, err := bootstrap.New(ctx, cfg, log.With().Str("component", "posctl").Logger())
	if err != nil {
		return nil, err
	}
	return &cli.Session{Factory: app.Factory, Tenants: app.Registrar, Close: app.Close}, nil
}
