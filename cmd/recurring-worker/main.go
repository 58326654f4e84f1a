package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/services"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(applog.New(applog.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentRecurring, os.Stdout)
	logger.Info("Starting recurring-worker")

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
	if rt.Backend.Publisher == nil {
		logger.Info("AMQP disabled - generated transactions will not be announced")
	}

	interval := cfg.RecurringInterval
	logger.Info("Recurring processor configured",
		"interval", interval,
		"backend", cfg.DataBackend,
		"timezone", rt.Location.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runProcessor(gctx, logger, rt.Processor, interval)
	})
	g.Go(func() error {
		return cache.NewJanitor(logger.WithComponent(applog.ComponentCache).Logger, rt.Ledger.CategoryCache()).Run(gctx, interval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Recurring-worker stopped", "error", err)
		os.Exit(1)
	}
	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	logger.Info("Recurring-worker shutdown complete")
}

// runProcessor books everything due at startup and then once per interval.
// A failed run is logged and retried on the next tick.
func runProcessor(ctx context.Context, logger *applog.Logger, processor *services.RecurringProcessor, interval time.Duration) error {
	logger.Info("Running initial recurring processing")
	processOnce(ctx, logger, processor)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			processOnce(ctx, logger, processor)
			logger.Debug("Next recurring check scheduled",
				"next_check", now.Add(interval).Format("15:04:05"))
		}
	}
}

func processOnce(ctx context.Context, logger *applog.Logger, processor *services.RecurringProcessor) {
	start := time.Now()
	created, err := processor.ProcessDue(ctx)
	fields := applog.NewFields().
		WithOperation(applog.OpMaterialize).
		WithDuration(time.Since(start))
	fields[applog.FieldCount] = len(created)
	if err != nil {
		logger.Error("Recurring processing failed", fields.WithError(err).ToSlice()...)
		return
	}
	logger.Info("Recurring processing complete", fields.ToSlice()...)
}
