package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func processCmd(a *app) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Book every subscription that is due",
		Long: `Book one transaction for each active subscription whose next due
date has passed, then move its schedule forward. Running it twice books
nothing new.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := a.rt.Clock.Now()
			when, err := parseDate(asOf, a.rt.Location, now)
			if err != nil {
				return err
			}
			if asOf == "" {
				when = now
			}

			created, err := a.rt.Processor.ProcessDueAt(cmd.Context(), when)
			for _, t := range created {
				fmt.Fprintf(a.out, "Booked %q %s on %s\n", t.Name, a.money(t.Amount), t.Date.Format(time.DateOnly))
			}
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Fprintln(a.out, "Nothing due.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "process as of YYYY-MM-DD instead of now")
	return cmd
}
