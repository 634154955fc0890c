package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"dashboard/internal/amqp"
	"dashboard/internal/cache"
	"dashboard/internal/cli"
	"dashboard/internal/config"
	"dashboard/internal/dashboard"
	apphttp "dashboard/internal/http"
	"dashboard/internal/log"
	"dashboard/internal/metrics"
	"dashboard/internal/sources"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	m := metrics.New()

	var (
		reader    sources.RowReader
		locations = cfg.Sources()
		closers   []func() error
	)
	switch cfg.DataBackend {
	case config.BackendSQLite:
		store := cli.InitSnapshotStore(logger, cfg.SQLiteDBPath)
		closers = append(closers, store.Close)
		reader, locations = store, cli.SnapshotLocations(cfg)
	default:
		r, err := cli.NewRowReader(ctx, cfg, cfg.DataBackend, logger)
		if err != nil {
			logger.Error("Failed to initialize data backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
			os.Exit(1)
		}
		reader = r
	}
	logger.Info("Data backend initialized", log.FieldBackend, cfg.DataBackend)

	loader := sources.NewCached(sources.NewLoader(reader, locations, logger, m), cfg.CacheSize, cfg.CacheTTL, logger, m)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(loader.Cache())
	cacheManager.StartCleanup(cfg.CacheTTL)

	opts := apphttp.Options{
		Addr:           ":" + cfg.Port,
		RequestTimeout: cfg.RequestTimeout,
		RateLimitRPM:   cfg.RateLimitRPM,
		Service:        dashboard.NewService(loader, logger, m),
		Loader:         loader,
		Invalidator:    loader,
		Metrics:        m,
		Logger:         logger,
	}

	// Refresh requests still drop the cache when the broker is unreachable.
	if cfg.AMQPURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		client, err := amqp.NewClient(dialCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		cancel()
		if err != nil {
			logger.Warn("AMQP unavailable, refresh messages disabled", log.FieldError, err)
		} else {
			opts.Publisher = client
			closers = append(closers, client.Close)
		}
	}

	srv, err := apphttp.NewServer(opts)
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("Close failed", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting dashboard server",
		"port", cfg.Port, log.FieldBackend, cfg.DataBackend, log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
