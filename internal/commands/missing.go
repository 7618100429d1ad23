package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/settled-dev/settled/internal/coverage"
	"github.com/settled-dev/settled/internal/model"
	"github.com/settled-dev/settled/internal/provider"
)

func newMissingCommand() *cobra.Command {
	var from, to string
	var recordType string
	var search string

	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List settled ledger records absent from the bank feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng, err := parseFlagRange(from, to)
			if err != nil {
				return err
			}
			return runMissing(cmd, rng, model.RecordType(recordType), search)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "range end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&recordType, "type", "", "filter by record type")
	cmd.Flags().StringVar(&search, "search", "", "free-text filter across reference/counterparty/description")

	return cmd
}

func runMissing(cmd *cobra.Command, rng model.DateRange, typeFilter model.RecordType, search string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	records, err := rt.provider.ListSettledRecords(ctx, provider.Filter{Range: rng})
	if err != nil {
		return fmt.Errorf("listing settled records: %w", err)
	}
	matches, err := rt.store.ListMatches(ctx, rng)
	if err != nil {
		return fmt.Errorf("listing matches: %w", err)
	}

	rows := coverage.MissingFromBank(records, matches, rng, typeFilter, search)
	if len(rows) == 0 {
		fmt.Println("No settled records missing from the bank feed.")
		return nil
	}

	fmt.Printf("%-20s %-18s %12s %-12s %-20s %5s\n",
		"RECORD", "TYPE", "AMOUNT", "DATE", "COUNTERPARTY", "DAYS")
	for _, row := range rows {
		fmt.Printf("%-20s %-18s %12s %-12s %-20s %5d\n",
			row.Record.ID, row.Record.Type, row.Record.Amount.StringFixed(2),
			row.Record.Date.Format("2006-01-02"), row.Record.Counterparty,
			row.DaysOutstanding)
	}
	return nil
}
