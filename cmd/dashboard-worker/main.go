package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"dashboard/internal/amqp"
	"dashboard/internal/cli"
	"dashboard/internal/log"
	"dashboard/internal/metrics"
	"dashboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting dashboard-worker", "upstream", cfg.SnapshotUpstream, log.FieldOperation, log.OpStartup)

	store := cli.InitSnapshotStore(logger, cfg.SQLiteDBPath)
	defer store.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	upstream, err := cli.NewRowReader(ctx, cfg, cfg.SnapshotUpstream, logger)
	if err != nil {
		logger.Error("Failed to initialize upstream reader", log.FieldError, err, log.FieldBackend, cfg.SnapshotUpstream)
		os.Exit(1)
	}

	refresher := worker.NewRefreshWorker(upstream, store, cfg.Sources(), logger, metrics.New())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresher.Run(gctx, cfg.RefreshInterval)
	})

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		g.Go(func() error {
			return client.ConsumeRefresh(gctx, refresher.HandleRefreshMessage)
		})
	} else {
		logger.Info("AMQP disabled, refreshing on schedule only")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
