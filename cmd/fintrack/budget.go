package main

import (
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/services"

	"github.com/spf13/cobra"
)

func budgetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Plan and review monthly budgets",
	}

	cmd.AddCommand(setBudgetCmd(a))
	cmd.AddCommand(showBudgetCmd(a))
	cmd.AddCommand(deleteBudgetCmd(a))

	return cmd
}

func setBudgetCmd(a *app) *cobra.Command {
	var allocations []string

	cmd := &cobra.Command{
		Use:   "set <YYYY-MM> <total>",
		Short: "Set a month's budget and its category allocations",
		Long: `Set the total budget of a month. The --alloc flags replace every
allocation previously stored for that month. Allocating more than the total
is allowed and reported as a warning.`,
		Example: `  fintrack budget set 2024-03 1000 --alloc <food-id>=300 --alloc <rent-id>=600`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := core.ParseMonth(args[0], a.rt.Location)
			if err != nil {
				return err
			}
			total, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			inputs := make([]services.AllocationInput, 0, len(allocations))
			for _, raw := range allocations {
				id, amount, err := parseAllocation(raw)
				if err != nil {
					return err
				}
				inputs = append(inputs, services.AllocationInput{CategoryID: id, Allocated: amount})
			}

			res, err := a.rt.Budgets.SaveBudget(cmd.Context(), month, total, inputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved budget for %s: %s across %d categories\n",
				month, a.money(res.Budget.Total), len(res.Budget.Allocations))
			if res.OverAllocated {
				fmt.Fprintf(a.out, "Warning: allocations exceed the total by %s\n", a.money(res.RemainingToAllocate.Neg()))
			} else {
				fmt.Fprintf(a.out, "Left to allocate: %s\n", a.money(res.RemainingToAllocate))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&allocations, "alloc", "a", nil, "allocation as <category-id>=<amount> (repeatable)")
	return cmd
}

func showBudgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [YYYY-MM]",
		Short: "Compare allocated, spent and remaining for a month",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			}
			month, err := parseMonth(raw, a.rt.Location, a.rt.Clock.Now())
			if err != nil {
				return err
			}
			ov, err := a.rt.Budgets.Overview(cmd.Context(), month)
			if err != nil {
				return err
			}
			return a.printOverview(ov)
		},
	}
}

func (a *app) printOverview(ov core.MonthOverview) error {
	if !ov.HasBudget {
		fmt.Fprintf(a.out, "No budget set for %s. Spent %s, earned %s.\n",
			ov.Month, a.money(ov.Spent), a.money(ov.Earned))
	} else {
		fmt.Fprintf(a.out, "Budget %s: %s, spent %s, remaining %s\n",
			ov.Month, a.money(ov.Total), a.money(ov.Spent), a.money(ov.Remaining))
		if ov.OverAllocated {
			fmt.Fprintf(a.out, "Over-allocated by %s\n", a.money(ov.RemainingToAllocate.Neg()))
		}
		if ov.OverBudget {
			fmt.Fprintln(a.out, "Over budget!")
		}
	}
	if len(ov.Categories) == 0 {
		return nil
	}

	fmt.Fprintln(a.out)
	w := newTable(a.out)
	fmt.Fprintln(w, "CATEGORY\tALLOCATED\tSPENT\tREMAINING\tUSED")
	for _, row := range ov.Categories {
		used := row.UsagePercent.Round(1).String() + "%"
		if !row.Budgeted {
			used = "unbudgeted"
		} else if row.OverBudget {
			used += " !"
		}
		name := row.Name
		if name == "" {
			name = row.CategoryID.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			name, a.money(row.Allocated), a.money(row.Spent), a.money(row.Remaining), used)
	}
	return w.Flush()
}

func deleteBudgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <YYYY-MM>",
		Short: "Delete a month's budget and allocations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := core.ParseMonth(args[0], a.rt.Location)
			if err != nil {
				return err
			}
			if err := a.rt.Budgets.DeleteBudget(cmd.Context(), month); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted budget for %s\n", month)
			return nil
		},
	}
}
