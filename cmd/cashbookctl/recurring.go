package main

import (
	"errors"
	"fmt"
	"time"

	"cashbook/internal/core"

	"github.com/spf13/cobra"
)

func recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Apply recurring rules",
	}
	cmd.AddCommand(recurringApplyCmd())
	cmd.AddCommand(recurringProcessCmd())
	return cmd
}

func parseDateFlag(s string) (core.Date, error) {
	if s == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(s)
}

func recurringApplyCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "apply RULE_ID",
		Short: "Post one occurrence of a rule and advance it",
		Long: `Posts the rule's next occurrence if it is due on --date (default today) and
moves the rule to its following run date. Only one occurrence is posted even
when several were missed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := requireOwner()
			if err != nil {
				return err
			}
			ref, err := parseDateFlag(date)
			if err != nil {
				return err
			}

			app, cleanup, err := openCashbook(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tx, rule, err := app.ApplyRecurring(cmd.Context(), owner, args[0], ref)
			var partial *core.PartialApplyError
			switch {
			case errors.Is(err, core.ErrNotDue):
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %s is not due on %s.\n", args[0], ref)
				return nil
			case errors.As(err, &partial):
				return fmt.Errorf("transaction %s was posted but the rule was not advanced; fix the rule's next run date by hand: %w",
					partial.Transaction.ID, err)
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Posted %s %s %s on %s (transaction %s). Next run: %s\n",
				tx.Kind, tx.Amount.StringFixed(core.Scale), tx.Currency, tx.Date, tx.ID, rule.NextRunDate)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "reference date (YYYY-MM-DD, default today)")
	return cmd
}

func recurringProcessCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Apply every due rule of every owner once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := parseDateFlag(date)
			if err != nil {
				return err
			}

			app, cleanup, err := openCashbook(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := app.ProcessDue(cmd.Context(), ref)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checked %d rule(s): %d posted, %d failed, %d partial.\n",
				summary.Checked, summary.Posted, summary.Failed, summary.Partial)
			if summary.Failed > 0 || summary.Partial > 0 {
				return fmt.Errorf("%d rule(s) need attention", summary.Failed+summary.Partial)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "reference date (YYYY-MM-DD, default today)")
	return cmd
}
