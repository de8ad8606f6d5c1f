// Command fiscaldesk launches the PER/DCOMP consultation service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegraph/conc"

	"github.com/leadfisco/fiscaldesk/internal/domain"
	"github.com/leadfisco/fiscaldesk/internal/infra/config"
	"github.com/leadfisco/fiscaldesk/internal/infra/persistence/migrations"
	"github.com/leadfisco/fiscaldesk/internal/infra/persistence/postgres"
	httpserver "github.com/leadfisco/fiscaldesk/internal/infra/server/http"
	"github.com/leadfisco/fiscaldesk/internal/observability"
	"github.com/leadfisco/fiscaldesk/internal/persist"
	"github.com/leadfisco/fiscaldesk/internal/provider/infosimples"
	"github.com/leadfisco/fiscaldesk/internal/service"
	"github.com/leadfisco/fiscaldesk/internal/snapshot"
	"github.com/leadfisco/fiscaldesk/internal/tabular"
	"github.com/leadfisco/fiscaldesk/internal/telemetry"
)

const (
	defaultConfigPath        = "config/app.yaml"
	serviceLoggerPrefix      = "fiscaldesk "
	shutdownTimeout          = 30 * time.Second
	apiServerShutdownTimeout = 5 * time.Second
	lifecycleShutdownTimeout = 10 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
	apiReadHeaderTimeout     = 5 * time.Second
)

func main() {
	cfgPathFlag := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := newServiceLogger()
	observability.SetLogger(observability.NewStdLogger(logger))

	configPath := resolveConfigPath(cfgPathFlag)
	appCfg, loadedFromFile, err := config.LoadOrDefault(ctx, configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if !loadedFromFile {
		logger.Printf("configuration file not found, using defaults")
	}
	logger.Printf("configuration initialised: env=%s", appCfg.Environment)

	telemetryProvider, err := initTelemetry(ctx, logger, appCfg.Environment, appCfg.Telemetry)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}
	observability.SetMetrics(observability.NewPersistMetrics())

	if appCfg.Database.RunMigrations {
		if err := migrations.Apply(ctx, appCfg.Database.DSN, appCfg.Database.MigrationsDir, logger); err != nil {
			logger.Fatalf("apply migrations: %v", err)
		}
	}

	pool, err := newDatabasePool(ctx, appCfg.Database)
	if err != nil {
		logger.Fatalf("initialise database pool: %v", err)
	}

	store, err := initStore(ctx, pool, appCfg)
	if err != nil {
		logger.Fatalf("initialise sheet store: %v", err)
	}

	orchestrator := persist.New(store, persist.Config{
		FactsTable:    appCfg.Persist.FactsTable,
		SnapshotTable: appCfg.Persist.SnapshotTable,
		ShardLimit:    appCfg.Persist.ShardLimit,
	})

	provider := infosimples.New(infosimples.Config{
		BaseURL:       appCfg.Provider.BaseURL,
		Token:         appCfg.Provider.Token,
		Timeout:       appCfg.Provider.Timeout,
		MaxTries:      appCfg.Provider.MaxTries,
		RetryInterval: appCfg.Provider.RetryInterval,
	})
	refresher := service.NewRefresh(provider, orchestrator)

	events := httpserver.NewEventsHub()
	observability.SetAuditSink(events)

	var lifecycle conc.WaitGroup

	apiServer := buildAPIServer(appCfg.APIServer, refresher, orchestrator, events)
	startAPIServer(&lifecycle, logger, apiServer)
	logger.Printf("API listening on %s", apiServer.Addr)

	logger.Print("fiscaldesk started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, gracefulShutdownConfig{
		server:     apiServer,
		mainCancel: cancel,
		lifecycle:  &lifecycle,
		events:     events,
		pool:       pool,
		telemetry:  telemetryProvider,
	})

	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

func parseFlags() string {
	cfgPath := flag.String("config", "", fmt.Sprintf("Path to application configuration file (default: %s)", defaultConfigPath))
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newServiceLogger() *log.Logger {
	return log.New(os.Stdout, serviceLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func initTelemetry(ctx context.Context, logger *log.Logger, env config.Environment, cfg config.TelemetryConfig) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.DefaultConfig()
	if cfg.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	if cfg.ServiceName != "" {
		telemetryCfg.ServiceName = cfg.ServiceName
	}
	telemetryCfg.Environment = string(env)
	telemetryCfg.OTLPInsecure = cfg.OTLPInsecure
	telemetryCfg.EnableMetrics = cfg.EnableMetrics

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}

	if telemetryCfg.Enabled {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s", telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	} else {
		logger.Printf("telemetry disabled")
	}
	return provider, nil
}

func newDatabasePool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	return pool, nil
}

// initStore registers the backing tables and wraps the sheet store with the
// rate limiter and retry layer.
func initStore(ctx context.Context, pool *pgxpool.Pool, cfg config.AppConfig) (tabular.Store, error) {
	sheets := postgres.NewSheetStore(pool)
	if err := sheets.EnsureTable(ctx, cfg.Persist.FactsTable, domain.FactColumns); err != nil {
		return nil, fmt.Errorf("ensure facts table: %w", err)
	}
	if err := sheets.EnsureTable(ctx, cfg.Persist.SnapshotTable, snapshot.Columns); err != nil {
		return nil, fmt.Errorf("ensure snapshot table: %w", err)
	}
	return tabular.NewResilientStore(sheets, tabular.ResilientConfig{
		RequestsPerSecond: cfg.Store.RequestsPerSecond,
		Burst:             cfg.Store.Burst,
		MaxTries:          cfg.Store.MaxTries,
		InitialInterval:   cfg.Store.InitialInterval,
		MaxInterval:       cfg.Store.MaxInterval,
	}), nil
}

func buildAPIServer(cfg config.APIServerConfig, refresher httpserver.Refresher, loader httpserver.SnapshotLoader, events *httpserver.EventsHub) *http.Server {
	handler := httpserver.NewHandler(refresher, loader, events)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: apiReadHeaderTimeout,
	}
}

func startAPIServer(lifecycle *conc.WaitGroup, logger *log.Logger, server *http.Server) {
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("api server: %v", err)
		}
	})
}

type gracefulShutdownConfig struct {
	server     *http.Server
	mainCancel context.CancelFunc
	lifecycle  *conc.WaitGroup
	events     *httpserver.EventsHub
	pool       *pgxpool.Pool
	telemetry  *telemetry.Provider
}

func performGracefulShutdown(ctx context.Context, logger *log.Logger, cfg gracefulShutdownConfig) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}

	if cfg.server != nil {
		shutdownStep("stopping api server", apiServerShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.server.Shutdown(stepCtx)
		})
	}

	if cfg.events != nil {
		observability.SetAuditSink(nil)
		cfg.events.Close()
	}

	logger.Print("shutdown: cancelling main context")
	if cfg.mainCancel != nil {
		cfg.mainCancel()
	}

	if cfg.lifecycle != nil {
		shutdownStep("waiting for lifecycle goroutines", lifecycleShutdownTimeout, func(stepCtx context.Context) error {
			done := make(chan struct{})
			go func() {
				cfg.lifecycle.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stepCtx.Done():
				return fmt.Errorf("timeout waiting for goroutines: %w", stepCtx.Err())
			}
		})
	}

	if cfg.pool != nil {
		cfg.pool.Close()
		logger.Print("shutdown: database pool closed")
	}

	if cfg.telemetry != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.telemetry.Shutdown(stepCtx)
		})
	}
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}
