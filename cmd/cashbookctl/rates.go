package main

import (
	"fmt"
	"text/tabwriter"

	"cashbook/internal/core"
	gsheet "cashbook/internal/sheets/google"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func ratesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Manage the owner's exchange rates",
	}
	cmd.AddCommand(ratesListCmd())
	cmd.AddCommand(ratesSetCmd())
	cmd.AddCommand(ratesImportSheetCmd())
	return cmd
}

func ratesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored rates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := requireOwner()
			if err != nil {
				return err
			}
			app, cleanup, err := openCashbook(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			rates, err := app.ListRates(cmd.Context(), owner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rate source: %s\n\n", app.Rates().Source())
			if len(rates) == 0 {
				fmt.Fprintln(out, "No stored rates.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "BASE\tTARGET\tRATE")
			for _, r := range rates {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Base, r.Target, r.Rate.String())
			}
			return tw.Flush()
		},
	}
}

func ratesSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set BASE TARGET RATE",
		Short:   "Store how many TARGET units one BASE unit is worth",
		Example: "  cashbookctl rates set USD SSP 6000 --owner u1",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := requireOwner()
			if err != nil {
				return err
			}
			r, err := parseRate(owner, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			app, cleanup, err := openCashbook(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.UpsertRate(cmd.Context(), r); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "1 %s = %s %s\n", r.Base, r.Rate.String(), r.Target)
			return nil
		},
	}
}

func parseRate(owner, base, target, rate string) (core.FxRate, error) {
	b, err := core.ParseCurrency(base)
	if err != nil {
		return core.FxRate{}, err
	}
	t, err := core.ParseCurrency(target)
	if err != nil {
		return core.FxRate{}, err
	}
	// Rates keep full precision; ParseAmount would round them.
	v, err := decimal.NewFromString(rate)
	if err != nil {
		return core.FxRate{}, fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	return core.FxRate{OwnerID: owner, Base: b, Target: t, Rate: v}, nil
}

func ratesImportSheetCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import-sheet",
		Short: "Copy rates from the shared Google Sheet into the store",
		Long: `Reads the rate table of the spreadsheet configured by GOOGLE_SPREADSHEET_ID
and the Google credential variables, and upserts every row for the owner.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := requireOwner()
			if err != nil {
				return err
			}
			reader, err := gsheet.NewFromEnv(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to open spreadsheet: %w", err)
			}
			rates, err := reader.ReadRates(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if dryRun {
				for _, r := range rates {
					fmt.Fprintf(cmd.OutOrStdout(), "would set 1 %s = %s %s\n", r.Base, r.Rate.String(), r.Target)
				}
				return nil
			}

			app, cleanup, err := openCashbook(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, r := range rates {
				if err := app.UpsertRate(cmd.Context(), r); err != nil {
					return fmt.Errorf("store %s/%s: %w", r.Base, r.Target, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rate(s).\n", len(rates))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the rates without storing them")
	return cmd
}
