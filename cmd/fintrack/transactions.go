package main

import (
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"

	"github.com/spf13/cobra"
)

func transactionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transaction", "transactions"},
		Short:   "Record and browse income and expenses",
	}

	cmd.AddCommand(addTransactionCmd(a))
	cmd.AddCommand(listTransactionsCmd(a))
	cmd.AddCommand(deleteTransactionCmd(a))
	cmd.AddCommand(recategorizeCmd(a))

	return cmd
}

func addTransactionCmd(a *app) *cobra.Command {
	var kind, date, category, notes string

	cmd := &cobra.Command{
		Use:   "add <name> <amount>",
		Short: "Record a transaction",
		Long: `Record an income or expense. Amounts are positive and accept either
a dot or a comma as decimal separator. The date defaults to today.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := core.ParseKind(kind)
			if err != nil {
				return err
			}
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			day, err := parseDate(date, a.rt.Location, a.rt.Clock.Now())
			if err != nil {
				return err
			}
			catID, err := optionalID(category)
			if err != nil {
				return err
			}

			t, err := a.rt.Ledger.CreateTransaction(cmd.Context(), core.Transaction{
				Name:       args[0],
				Date:       day,
				Amount:     amount,
				Kind:       k,
				Notes:      notes,
				CategoryID: catID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Recorded %s %q of %s on %s (%s)\n",
				t.Kind, t.Name, a.money(t.Amount), t.Date.Format(time.DateOnly), t.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(core.Expense), "transaction kind (income, expense)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "date as YYYY-MM-DD")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category id")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func listTransactionsCmd(a *app) *cobra.Command {
	var month, kind, category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the transactions of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := parseMonth(month, a.rt.Location, a.rt.Clock.Now())
			if err != nil {
				return err
			}
			f := core.ForMonth(m)
			if kind != "" {
				if f.Kind, err = core.ParseKind(kind); err != nil {
					return err
				}
			}
			if f.CategoryID, err = optionalID(category); err != nil {
				return err
			}

			txs, err := a.rt.Ledger.ListTransactions(cmd.Context(), f)
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				fmt.Fprintf(a.out, "No transactions in %s.\n", m)
				return nil
			}

			w := newTable(a.out)
			fmt.Fprintln(w, "ID\tDATE\tKIND\tNAME\tAMOUNT\tCATEGORY")
			for _, t := range txs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Date.Format(time.DateOnly), t.Kind, t.Name,
					a.money(core.SignedAmount(t.Amount, t.Kind)), shortID(t.CategoryID))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "\nIncome %s, expenses %s\n",
				a.money(core.EarnedForMonth(m, txs)), a.money(core.SpentForMonth(m, txs)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "month as YYYY-MM (default current)")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only list this kind")
	cmd.Flags().StringVarP(&category, "category", "c", "", "only list this category id")
	return cmd
}

func deleteTransactionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.rt.Ledger.DeleteTransaction(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted transaction %s\n", id)
			return nil
		},
	}
}

func recategorizeCmd(a *app) *cobra.Command {
	var (
		category      string
		clearCategory bool
	)

	cmd := &cobra.Command{
		Use:   "recategorize <id>",
		Short: "Move a transaction to another category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if clearCategory == (category != "") {
				return errors.New("pass exactly one of --category or --clear")
			}
			catID, err := optionalID(category)
			if err != nil {
				return err
			}

			t, err := a.rt.Ledger.Recategorize(cmd.Context(), id, catID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Transaction %q now in category %s\n", t.Name, shortID(t.CategoryID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "new category id")
	cmd.Flags().BoolVar(&clearCategory, "clear", false, "remove the category")
	return cmd
}
