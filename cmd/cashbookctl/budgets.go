package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"cashbook/internal/core"

	"github.com/spf13/cobra"
)

func budgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Manage monthly category budgets",
	}
	cmd.AddCommand(budgetsStatusCmd())
	cmd.AddCommand(budgetsAddCmd())
	return cmd
}

func budgetsStatusCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show spending against every budget of a month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := requireOwner()
			if err != nil {
				return err
			}
			m := core.DateOf(time.Now()).MonthStart()
			if month != "" {
				if m, err = core.ParseMonth(month); err != nil {
					return err
				}
			}

			app, cleanup, err := openCashbook(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			evals, err := app.EvaluateBudgets(cmd.Context(), owner, m)
			if err != nil {
				return err
			}
			if len(evals) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No budgets for %s.\n", m.MonthKey())
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tSPENT\tLIMIT\tPCT\tSTATUS")
			for _, ev := range evals {
				status := string(ev.Status)
				if ev.Approximate {
					status += " (approx)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\t%s\n",
					ev.Budget.ID, ev.Budget.CategoryID, ev.Spent, ev.Limit, ev.Pct, status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to evaluate (YYYY-MM, default current)")
	return cmd
}

func budgetsAddCmd() *cobra.Command {
	var category, month, limit, currency string

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Create a budget for one category and month",
		Example: "  cashbookctl budgets add --owner u1 --category food --month 2025-06 --limit 500 --currency USD",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := requireOwner()
			if err != nil {
				return err
			}
			m, err := core.ParseMonth(month)
			if err != nil {
				return err
			}
			amount, err := core.ParseAmount(limit)
			if err != nil {
				return err
			}
			cur, err := core.ParseCurrency(currency)
			if err != nil {
				return err
			}

			app, cleanup, err := openCashbook(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			b, err := app.CreateBudget(cmd.Context(), core.Budget{
				OwnerID:    owner,
				CategoryID: category,
				Month:      m,
				Limit:      amount,
				Currency:   cur,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created budget %s: %s %s for %s\n",
				b.ID, b.Limit.StringFixed(core.Scale), b.Currency, b.Month.MonthKey())
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().StringVar(&month, "month", "", "month (YYYY-MM)")
	cmd.Flags().StringVar(&limit, "limit", "", "spending limit")
	cmd.Flags().StringVar(&currency, "currency", "", "budget currency")
	for _, f := range []string{"category", "month", "limit", "currency"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
