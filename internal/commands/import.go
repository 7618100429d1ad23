package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/settled-dev/settled/internal/importer"
	"github.com/settled-dev/settled/internal/model"
	"github.com/settled-dev/settled/internal/store"
)

func newImportCommand() *cobra.Command {
	var accountID string
	var format string
	var actor string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a bank feed export into an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], accountID, format, actor)
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "bank account ID (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&format, "format", "generic", "feed export format")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user recorded in the import audit fields")

	return cmd
}

func runImport(cmd *cobra.Command, path, accountID, format, actor string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	parser := importer.DefaultRegistry().Get(format)
	if parser == nil {
		return fmt.Errorf("unknown feed format %q", format)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening feed export: %w", err)
	}
	defer f.Close()

	rows, err := parser.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	// Register the account on first import so a fresh database works.
	if _, err := rt.store.GetAccount(ctx, accountID); errors.Is(err, store.ErrNotFound) {
		currency := ""
		if len(rows) > 0 {
			currency = rows[0].Currency
		}
		if err := rt.store.PutAccount(ctx, model.BankAccount{
			ID:         accountID,
			Name:       accountID,
			Currency:   currency,
			FeedStatus: model.FeedManual,
		}); err != nil {
			return fmt.Errorf("registering account: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("loading account: %w", err)
	}

	stored, skipped, err := importer.Ingest(ctx, rt.store, accountID, actor, filepath.Base(path), rows)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d line(s), skipped %d duplicate(s)\n", stored, skipped)
	return nil
}
