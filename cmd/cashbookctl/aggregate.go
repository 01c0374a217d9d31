package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/ledger"

	"github.com/spf13/cobra"
)

func aggregateCmd() *cobra.Command {
	var window, month, start, end, group, currency string

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Print income, expense and net totals",
		Long: `Totals the owner's transactions inside a window, grouped by currency or by
expense category. With --currency every row is converted first; rows without
a conversion path keep their own currency and the report is marked approximate.`,
		Example: `  cashbookctl aggregate --owner u1 --window month --month 2025-06
  cashbookctl aggregate --owner u1 --group category --currency SSP`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := requireOwner()
			if err != nil {
				return err
			}
			w, err := ledger.ParseWindow(window, month, start, end, core.DateOf(time.Now()))
			if err != nil {
				return err
			}
			by, err := ledger.ParseGroupBy(group)
			if err != nil {
				return err
			}
			var target core.CurrencyCode
			if currency != "" {
				if target, err = core.ParseCurrency(currency); err != nil {
					return err
				}
			}

			app, cleanup, err := openCashbook(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := app.Aggregate(cmd.Context(), owner, w, by, target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Window: %s\n\n", report.Window)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "GROUP\tCURRENCY\tINCOME\tEXPENSE\tNET\tCOUNT\t")
			for _, row := range report.Rows() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t\n",
					row.Label, row.Key.Currency,
					row.Income.StringFixed(core.Scale),
					row.Expense.StringFixed(core.Scale),
					row.Net.StringFixed(core.Scale),
					row.Count)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if report.Approximate {
				fmt.Fprintf(out, "\n%d row(s) could not be converted; totals are approximate.\n", report.Unconverted)
			}
			if report.Skipped > 0 {
				fmt.Fprintf(out, "%d malformed row(s) skipped.\n", report.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&window, "window", "lifetime", "lifetime, month or range")
	cmd.Flags().StringVar(&month, "month", "", "month for --window month (YYYY-MM, default current)")
	cmd.Flags().StringVar(&start, "start", "", "first day for --window range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day for --window range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&group, "group", "currency", "currency or category")
	cmd.Flags().StringVar(&currency, "currency", "", "convert every row into this currency")
	return cmd
}
