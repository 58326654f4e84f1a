package main

import (
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"

	"github.com/spf13/cobra"
)

func subscriptionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sub",
		Aliases: []string{"subscription", "subscriptions"},
		Short:   "Manage recurring subscriptions",
		Long: `Subscriptions are templates that book a transaction every day, week,
month or year. Due occurrences are booked by 'fintrack process' or by the
recurring-worker.`,
	}

	cmd.AddCommand(addSubscriptionCmd(a))
	cmd.AddCommand(listSubscriptionsCmd(a))
	cmd.AddCommand(toggleSubscriptionCmd(a))
	cmd.AddCommand(deleteSubscriptionCmd(a))
	cmd.AddCommand(upcomingCmd(a))

	return cmd
}

func addSubscriptionCmd(a *app) *cobra.Command {
	var frequency, start, kind, category, notes string

	cmd := &cobra.Command{
		Use:   "add <name> <amount>",
		Short: "Add a recurring subscription",
		Long: `Add a subscription. The first occurrence is one period after the
start date, which defaults to today.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			freq, err := core.ParseFrequency(frequency)
			if err != nil {
				return err
			}
			k, err := core.ParseKind(kind)
			if err != nil {
				return err
			}
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			startDate, err := parseDate(start, a.rt.Location, a.rt.Clock.Now())
			if err != nil {
				return err
			}
			catID, err := optionalID(category)
			if err != nil {
				return err
			}

			sub, err := a.rt.Ledger.CreateSubscription(cmd.Context(), services.SubscriptionInput{
				Name:       args[0],
				Amount:     amount,
				Frequency:  freq,
				StartDate:  startDate,
				Kind:       k,
				Notes:      notes,
				CategoryID: catID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created %s subscription %q of %s, next due %s (%s)\n",
				sub.Frequency, sub.Name, a.money(sub.Amount), sub.NextDue.Format(time.DateOnly), sub.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&frequency, "frequency", "f", string(core.Monthly), "daily, weekly, monthly or yearly")
	cmd.Flags().StringVarP(&start, "start", "s", "", "start date as YYYY-MM-DD")
	cmd.Flags().StringVarP(&kind, "kind", "k", string(core.Expense), "transaction kind (income, expense)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category id")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func listSubscriptionsCmd(a *app) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs, err := a.rt.Ledger.ListSubscriptions(cmd.Context(), core.SubscriptionFilter{ActiveOnly: activeOnly})
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				fmt.Fprintln(a.out, "No subscriptions found.")
				return nil
			}

			now := a.rt.Clock.Now()
			w := newTable(a.out)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tNAME\tAMOUNT\tFREQUENCY\tNEXT DUE\tIN DAYS\tSTATUS")
			for _, s := range subs {
				status := "active"
				if !s.Active {
					status = "paused"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					s.ID, s.Name, a.money(core.SignedAmount(s.Amount, s.Kind)), s.Frequency,
					s.NextDue.Format(time.DateOnly), core.DaysUntilDue(&s, now), status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "hide paused subscriptions")
	return cmd
}

func toggleSubscriptionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Pause or resume a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			sub, err := a.rt.Ledger.ToggleSubscription(cmd.Context(), id)
			if err != nil {
				return err
			}
			if sub.Active {
				fmt.Fprintf(a.out, "Resumed %q, next due %s\n", sub.Name, sub.NextDue.Format(time.DateOnly))
			} else {
				fmt.Fprintf(a.out, "Paused %q\n", sub.Name)
			}
			return nil
		},
	}
}

func deleteSubscriptionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a subscription",
		Long:  `Delete a subscription. Transactions it already booked are kept.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.rt.Ledger.DeleteSubscription(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted subscription %s\n", id)
			return nil
		},
	}
}

func upcomingCmd(a *app) *cobra.Command {
	var days, per int

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "Show upcoming subscription charges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 || per < 1 {
				return fmt.Errorf("--days and --per must be positive")
			}
			occ, err := a.rt.Ledger.UpcomingSubscriptions(cmd.Context(), days, per)
			if err != nil {
				return err
			}
			if len(occ) == 0 {
				fmt.Fprintf(a.out, "Nothing due in the next %d days.\n", days)
				return nil
			}

			w := newTable(a.out)
			defer w.Flush()
			fmt.Fprintln(w, "DATE\tNAME\tAMOUNT")
			for _, o := range occ {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					o.Date.Format(time.DateOnly), o.Name, a.money(core.SignedAmount(o.Amount, o.Kind)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "look-ahead window in days")
	cmd.Flags().IntVar(&per, "per", 3, "maximum occurrences per subscription")
	return cmd
}
