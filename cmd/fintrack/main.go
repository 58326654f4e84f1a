package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"

	"github.com/spf13/cobra"
)

// app holds what every subcommand shares. rt is created lazily by the root
// command unless a caller installed one beforehand; only a runtime created
// here is closed on exit.
type app struct {
	rt    *cli.Runtime
	owned bool
	out   io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "fintrack",
		Short: "Personal finance tracker",
		Long: `fintrack records income and expenses, books recurring subscriptions
and compares monthly spending against per-category budgets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.out == nil {
				a.out = cmd.OutOrStdout()
			}
			if a.rt != nil {
				return nil
			}
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			logger := cli.SetupLogger(cfg, applog.ComponentCLI, os.Stderr)
			rt, err := cli.Bootstrap(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			a.rt = rt
			a.owned = true
			return nil
		},
	}

	root.AddCommand(categoryCmd(a))
	root.AddCommand(transactionCmd(a))
	root.AddCommand(subscriptionCmd(a))
	root.AddCommand(budgetCmd(a))
	root.AddCommand(processCmd(a))
	root.AddCommand(serveCmd(a))
	return root
}

func main() {
	cli.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if a.owned {
		if cerr := a.rt.Close(); cerr != nil {
			fmt.Fprintln(os.Stderr, "Warning: close backend:", cerr)
		}
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
