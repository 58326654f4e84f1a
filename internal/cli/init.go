// Package cli provides the initialization shared by cmd/fintrack,
// cmd/recurring-worker and cmd/budget-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"

	"github.com/joho/godotenv"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig reads the environment and validates the result.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg, writing to out, and
// installs it as the slog default. An unparsable level falls back to info.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Component = component
	lc.Format = cfg.LogFormat
	if out != nil {
		lc.Output = out
	}
	if level, err := cfg.SlogLevel(); err == nil {
		lc.Level = level
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// Runtime is everything a command needs once configuration is loaded.
type Runtime struct {
	Config    *config.Config
	Logger    *applog.Logger
	Backend   *backend.BackendResult
	Location  *time.Location
	Currency  currency.Unit
	Language  language.Tag
	Clock     core.Clock
	Ledger    *services.LedgerService
	Budgets   *services.BudgetService
	Processor *services.RecurringProcessor
}

// Bootstrap creates the backend selected by cfg and the services on top of it.
// Close must be called to release the store and the AMQP connection.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*Runtime, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	unit, err := cfg.CurrencyUnit()
	if err != nil {
		return nil, err
	}
	tag, err := cfg.LanguageTag()
	if err != nil {
		return nil, err
	}

	result, err := InitBackend(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	clock := core.SystemClock{Location: loc}
	return &Runtime{
		Config:    cfg,
		Logger:    logger,
		Backend:   result,
		Location:  loc,
		Currency:  unit,
		Language:  tag,
		Clock:     clock,
		Ledger:    services.NewLedgerService(result.Store, result.Publisher, clock, cfg.Policy()),
		Budgets:   services.NewBudgetService(result.Store, clock),
		Processor: services.NewRecurringProcessor(result.Store, result.Publisher, clock),
	}, nil
}

// Close releases the backend.
func (r *Runtime) Close() error {
	if r == nil || r.Backend == nil || r.Backend.Cleanup == nil {
		return nil
	}
	return r.Backend.Cleanup()
}

// InitBackend creates the configured store and, when AMQP is enabled, the
// event publisher.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
	result, err := factory.CreateBackend(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", bc.Type)
		return nil, err
	}
	logger.Info("Backend initialized",
		"backend", bc.Type,
		"events", result.Publisher != nil)
	return result, nil
}

// Fatal logs err and exits the process.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled on SIGINT or SIGTERM, after which
// cleanup runs. done is closed once cleanup has finished or timeout elapsed.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func() error) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if cleanup == nil {
				return
			}
			if err := cleanup(); err != nil {
				logger.Warn("Cleanup failed", "error", err)
			}
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
