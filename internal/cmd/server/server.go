// Package server wires configuration, storage, services, and the HTTP API
// into a runnable process.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	apihttp "github.com/renteasy/renteasy/internal/api/http"
	"github.com/renteasy/renteasy/internal/app"
	"github.com/renteasy/renteasy/internal/auth"
	"github.com/renteasy/renteasy/internal/platform/config"
	"github.com/renteasy/renteasy/internal/platform/metrics"
	"github.com/renteasy/renteasy/internal/platform/otel"
	"github.com/renteasy/renteasy/internal/signing"
	"github.com/renteasy/renteasy/internal/signing/memory"
	"github.com/renteasy/renteasy/internal/storage/sqlite"
)

const serviceName = "renteasy-server"

// Config holds server process configuration. Values load from the optional
// YAML file first, then environment variables override.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `env:"RENTEASY_ADDR" yaml:"addr"`
	// DBPath is the SQLite database file path.
	DBPath string `env:"RENTEASY_DB_PATH" yaml:"db_path"`
	// BaseURL is the public origin used for shareable invite links.
	BaseURL string `env:"RENTEASY_BASE_URL" yaml:"base_url"`
	// ProviderDelay is how long the development signing provider waits before
	// completing an order.
	ProviderDelay time.Duration `env:"RENTEASY_PROVIDER_DELAY" yaml:"provider_delay"`

	// ConfigFile is the YAML config path, settable only by flag.
	ConfigFile string `env:"-" yaml:"-"`
}

// ParseConfig reads flags, the optional config file, and the environment.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		Addr:          ":8080",
		DBPath:        "renteasy.db",
		BaseURL:       "http://localhost:8080",
		ProviderDelay: 6 * time.Second,
	}
	fs.StringVar(&cfg.ConfigFile, "config", "", "path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := config.LoadFile(cfg.ConfigFile, &cfg); err != nil {
		return Config{}, err
	}
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := otel.Setup(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	verifier, err := auth.NewVerifierFromEnv(nil)
	if err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	contracts, err := app.NewContractService(store, logger, m)
	if err != nil {
		return fmt.Errorf("create contract service: %w", err)
	}
	invites, err := app.NewInviteService(store, logger, m, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("create invite service: %w", err)
	}
	signer, err := signing.NewCoordinator(signing.CoordinatorConfig{
		Provider: memory.NewProvider(cfg.ProviderDelay),
		Store:    store,
		Logger:   logger,
		Metrics:  m,
	})
	if err != nil {
		return fmt.Errorf("create signing coordinator: %w", err)
	}

	api, err := apihttp.NewServer(apihttp.Config{
		Contracts: contracts,
		Invites:   invites,
		Signer:    signer,
		Verifier:  verifier,
		Logger:    logger,
		Gatherer:  registry,
	})
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
