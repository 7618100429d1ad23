package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/settled-dev/settled/internal/coverage"
	"github.com/settled-dev/settled/internal/model"
	"github.com/settled-dev/settled/internal/store"
)

func newCoverageCommand() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Print per-account reconciliation coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng, err := parseFlagRange(from, to)
			if err != nil {
				return err
			}
			return runCoverage(cmd, rng)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "range end (YYYY-MM-DD)")

	return cmd
}

func runCoverage(cmd *cobra.Command, rng model.DateRange) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	accounts, err := rt.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}
	lines, err := rt.store.ListLines(ctx, store.ListFilter{Range: rng})
	if err != nil {
		return fmt.Errorf("listing lines: %w", err)
	}

	rows := coverage.Compute(accounts, lines, rng, rt.cfg.Policy())
	fmt.Printf("%-12s %-24s %6s %8s %8s %8s %10s %12s\n",
		"ACCOUNT", "NAME", "LINES", "MATCHED", "PARTIAL", "MISSING", "RECONCILED", "NET DIFF")
	for _, row := range rows {
		fmt.Printf("%-12s %-24s %6d %8d %8d %8d %9.1f%% %12s\n",
			row.BankAccountID, row.BankAccountName, row.TotalLines, row.MatchedLines,
			row.PartialLines, row.MissingRecordLines, row.ReconciledPercentage,
			row.NetDifference.StringFixed(2))
	}
	return nil
}

func parseFlagRange(from, to string) (model.DateRange, error) {
	var out model.DateRange
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return out, fmt.Errorf("parsing --from: %w", err)
		}
		out.From = t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return out, fmt.Errorf("parsing --to: %w", err)
		}
		out.To = t
	}
	return out, nil
}
