package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/settled-dev/settled/internal/model"
	"github.com/settled-dev/settled/internal/store"
)

// Ingest stores parsed rows as unmatched feed lines for the account, skipping
// rows that duplicate an already-stored line on (date, amount, reference).
// Returns how many lines were stored and how many were skipped.
func Ingest(ctx context.Context, st store.Store, accountID, actor, source string, rows []Row) (stored, skipped int, err error) {
	acct, err := st.GetAccount(ctx, accountID)
	if err != nil {
		return 0, 0, fmt.Errorf("loading account %s: %w", accountID, err)
	}

	existing, err := st.ListLines(ctx, store.ListFilter{AccountID: accountID})
	if err != nil {
		return 0, 0, fmt.Errorf("listing existing lines: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, line := range existing {
		seen[dupKey(line.TransactionDate, line.Amount.StringFixed(2), line.Reference)] = true
	}

	now := time.Now().UTC()
	for _, row := range rows {
		key := dupKey(row.TransactionDate, row.Amount.StringFixed(2), row.Reference)
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		currency := row.Currency
		if currency == "" {
			currency = acct.Currency
		}
		line := &model.BankFeedLine{
			ID:              uuid.NewString(),
			BankAccountID:   accountID,
			Currency:        currency,
			TransactionDate: row.TransactionDate,
			ValueDate:       row.ValueDate,
			Amount:          row.Amount,
			Description:     row.Description,
			Reference:       row.Reference,
			RunningBalance:  row.RunningBalance,
			Status:          model.StatusUnmatched,
			ImportedAt:      now,
			ImportedBy:      actor,
			ImportSource:    source,
		}
		if err := st.PutLine(ctx, line); err != nil {
			return stored, skipped, fmt.Errorf("storing line: %w", err)
		}
		stored++
	}

	acct.LastImportAt = &now
	if err := st.PutAccount(ctx, acct); err != nil {
		return stored, skipped, fmt.Errorf("updating account import time: %w", err)
	}
	return stored, skipped, nil
}

func dupKey(date time.Time, amount, reference string) string {
	return date.Format("2006-01-02") + "|" + amount + "|" + reference
}
