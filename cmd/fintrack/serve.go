package main

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(a *app) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve categories, transactions, subscriptions and budgets over HTTP.
With --process-every the server also books due subscriptions in the
background, replacing a separate recurring worker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := a.rt
			logger := rt.Logger
			if logger == nil {
				logger = applog.New(applog.Config{Component: applog.ComponentHTTP, Output: cmd.ErrOrStderr()})
			}
			if addr == "" {
				addr = ":8080"
				if rt.Config != nil {
					addr = rt.Config.HTTPAddr
				}
			}
			deps := apphttp.Deps{
				Ledger:    rt.Ledger,
				Budgets:   rt.Budgets,
				Processor: rt.Processor,
				Clock:     rt.Clock,
				Location:  rt.Location,
				Logger:    logger.WithComponent(applog.ComponentHTTP),
			}
			if rt.Config != nil {
				deps.WriteRequestsPerMinute = rt.Config.HTTPWriteRateLimit
			}
			if rt.Backend != nil {
				store := rt.Backend.Store
				deps.Ready = func(ctx context.Context) error {
					_, err := store.Categories(ctx, core.CategoryFilter{})
					return err
				}
			}
			srv := apphttp.NewServer(addr, deps)

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(srv.ListenAndServe)
			g.Go(func() error {
				<-gctx.Done()
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				logger.Info("Shutting down HTTP server")
				return srv.Shutdown(ctx)
			})
			if interval > 0 {
				g.Go(func() error {
					return cache.NewJanitor(logger.WithComponent(applog.ComponentCache).Logger, rt.Ledger.CategoryCache()).Run(gctx, interval)
				})
				g.Go(func() error {
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for {
						if created, err := rt.Processor.ProcessDue(gctx); err != nil {
							logger.Error("Background processing failed", applog.FieldError, err, applog.FieldCount, len(created))
						} else if len(created) > 0 {
							logger.Info("Booked due subscriptions", applog.FieldCount, len(created))
						}
						select {
						case <-gctx.Done():
							return nil
						case <-ticker.C:
						}
					}
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR or :8080)")
	cmd.Flags().DurationVar(&interval, "process-every", 0, "book due subscriptions at this interval (0 disables)")
	return cmd
}
