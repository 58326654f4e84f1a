package main

import (
	"fmt"

	"fintrack/internal/core"

	"github.com/spf13/cobra"
)

func categoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"categories", "cat"},
		Short:   "Manage income and expense categories",
	}

	cmd.AddCommand(addCategoryCmd(a))
	cmd.AddCommand(listCategoriesCmd(a))
	cmd.AddCommand(deleteCategoryCmd(a))

	return cmd
}

func addCategoryCmd(a *app) *cobra.Command {
	var kind, icon, color string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Long:  `Create a category. Names are unique per kind, ignoring case.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := core.ParseKind(kind)
			if err != nil {
				return err
			}
			c, err := a.rt.Ledger.CreateCategory(cmd.Context(), core.Category{
				Name:  args[0],
				Kind:  k,
				Icon:  icon,
				Color: color,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created %s category %q (%s)\n", c.Kind, c.Name, c.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(core.Expense), "category kind (income, expense)")
	cmd.Flags().StringVar(&icon, "icon", "", "display icon")
	cmd.Flags().StringVar(&color, "color", "", "display color")
	return cmd
}

func listCategoriesCmd(a *app) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var k core.Kind
			if kind != "" {
				parsed, err := core.ParseKind(kind)
				if err != nil {
					return err
				}
				k = parsed
			}

			cats, err := a.rt.Ledger.ListCategories(cmd.Context(), k)
			if err != nil {
				return err
			}
			if len(cats) == 0 {
				fmt.Fprintln(a.out, "No categories found. Use 'fintrack category add' to create one.")
				return nil
			}

			w := newTable(a.out)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tKIND\tNAME\tICON")
			for _, c := range cats {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Kind, c.Name, c.Icon)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only list this kind")
	return cmd
}

func deleteCategoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Long: `Delete a category together with its transactions and budget
allocations. Subscriptions using it are kept without a category.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.rt.Ledger.DeleteCategory(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted category %s\n", id)
			return nil
		},
	}
}
