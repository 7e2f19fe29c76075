package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haasonsaas/whiteboard/internal/canvas"
	"github.com/haasonsaas/whiteboard/internal/config"
	"github.com/haasonsaas/whiteboard/internal/observability"
	"github.com/haasonsaas/whiteboard/internal/storage"
	"github.com/haasonsaas/whiteboard/internal/web"
)

const shutdownTimeout = 15 * time.Second

// =============================================================================
// Serve Command Handler
// =============================================================================

// runServe wires the store, manager and HTTP handler, then serves until a
// shutdown signal arrives.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	slog.SetDefault(logger)

	logger.Info("starting whiteboard server",
		"version", version,
		"commit", commit,
		"config", resolveConfigPath(configPath),
		"database_driver", cfg.Database.Driver,
		"database_url", observability.RedactURL(cfg.Database.URL),
	)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Database.Driver, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	traceCfg := observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		SampleRate:     cfg.Tracing.SampleRate,
		Insecure:       cfg.Tracing.Insecure,
	}
	if cfg.Tracing.Enabled {
		traceCfg.Endpoint = cfg.Tracing.Endpoint
	}
	tracer, err := observability.NewTracer(traceCfg)
	if err != nil {
		logger.Warn("tracing export disabled", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown tracing", "error", err)
		}
	}()

	manager := canvas.NewManager(store, logger)
	manager.SetMetrics(canvas.NewMetrics())
	if cfg.Store.SerializeWrites {
		manager.SetLocker(canvas.NewLocalLocker(cfg.Store.LockTimeout))
	}

	handler, err := web.NewHandler(&web.Config{
		BasePath:    cfg.Server.BasePath,
		Manager:     manager,
		CORSOrigins: cfg.Server.CORSOrigins,
		Tracer:      tracer,
		HTTPMetrics: observability.NewHTTPMetrics(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize web handler: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("whiteboard server started",
		"http_addr", server.Addr,
		"base_path", cfg.Server.BasePath,
		"serialize_writes", cfg.Store.SerializeWrites,
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	logger.Info("shutting down whiteboard server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	logger.Info("whiteboard server stopped gracefully")
	return nil
}

// openStore opens the session store selected by database.driver.
func openStore(ctx context.Context, cfg *config.Config) (canvas.Store, error) {
	pool := storage.DefaultPoolConfig()
	if cfg.Database.MaxConnections > 0 {
		pool.MaxOpenConns = cfg.Database.MaxConnections
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		return canvas.NewMemoryStore(), nil
	case config.DriverPostgres:
		store, err := canvas.NewCockroachStoreFromDSN(cfg.Database.URL, pool)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		store, err := canvas.NewSQLiteStore(cfg.Database.URL, pool)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverRedis:
		store, err := canvas.NewRedisStore(ctx, canvas.RedisConfig{URL: cfg.Database.URL})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
