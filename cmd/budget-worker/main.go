package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(applog.New(applog.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker, os.Stdout)
	logger.Info("Starting budget-worker")

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Budget worker cannot start", fmt.Errorf("AMQP_URL is required"))
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend does not share data with other processes; alerts only see this worker's state")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	rt, err := cli.Bootstrap(ctx, cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to close backend", "error", err)
		}
	}()

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP consumer", err)
	}
	defer consumer.Close()

	alerts := worker.NewBudgetAlertWorker(rt.Budgets, rt.Location, cfg.AlertThreshold(), rt.Currency, rt.Language)

	logger.Info("Budget alert worker configured",
		"queue", cfg.AMQPQueue,
		"threshold_percent", cfg.BudgetAlertThreshold)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeTransactionEvents(gctx, alerts.HandleTransactionEvent)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Budget-worker stopped", "error", err)
		os.Exit(1)
	}
	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	logger.Info("Budget-worker shutdown complete")
}
