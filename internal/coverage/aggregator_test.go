package coverage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settled-dev/settled/internal/model"
	"github.com/settled-dev/settled/internal/status"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func matchedLine(id, account, amount string, date time.Time) *model.BankFeedLine {
	l := &model.BankFeedLine{
		ID:              id,
		BankAccountID:   account,
		TransactionDate: date,
		Amount:          dec(amount),
	}
	l.Matches = []model.BankMatch{{
		ID:            "m-" + id,
		LineID:        id,
		RecordID:      "rec-" + id,
		RecordType:    model.RecordReceipt,
		MatchedAmount: l.AbsAmount(),
	}}
	return l
}

func unmatchedLine(id, account, amount string, date time.Time) *model.BankFeedLine {
	return &model.BankFeedLine{
		ID:              id,
		BankAccountID:   account,
		TransactionDate: date,
		Amount:          dec(amount),
	}
}

func TestCompute_ReconciledPercentage(t *testing.T) {
	// 10 lines, 7 fully matched: 70%.
	accounts := []model.BankAccount{{ID: "acct-1", Name: "Operating", Currency: "THB"}}
	var lines []*model.BankFeedLine
	for i := 0; i < 7; i++ {
		lines = append(lines, matchedLine(string(rune('a'+i)), "acct-1", "100.00", day(2025, 3, 1+i)))
	}
	for i := 7; i < 10; i++ {
		lines = append(lines, unmatchedLine(string(rune('a'+i)), "acct-1", "100.00", day(2025, 3, 1+i)))
	}

	rows := Compute(accounts, lines, model.DateRange{}, status.DefaultPolicy())
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].TotalLines)
	assert.Equal(t, 7, rows[0].MatchedLines)
	assert.Equal(t, 3, rows[0].UnmatchedLines)
	assert.Equal(t, 70.0, rows[0].ReconciledPercentage)
}

func TestCompute_Idempotent(t *testing.T) {
	accounts := []model.BankAccount{{ID: "acct-1"}}
	lines := []*model.BankFeedLine{
		matchedLine("a", "acct-1", "100.00", day(2025, 3, 1)),
		unmatchedLine("b", "acct-1", "-50.00", day(2025, 3, 2)),
	}

	first := Compute(accounts, lines, model.DateRange{}, status.DefaultPolicy())
	second := Compute(accounts, lines, model.DateRange{}, status.DefaultPolicy())
	assert.Equal(t, first, second)
}

func TestCompute_EmptyAccountReadsFullyReconciled(t *testing.T) {
	accounts := []model.BankAccount{{ID: "acct-1"}, {ID: "acct-2"}}
	lines := []*model.BankFeedLine{matchedLine("a", "acct-1", "100.00", day(2025, 3, 1))}

	rows := Compute(accounts, lines, model.DateRange{}, status.DefaultPolicy())
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[1].TotalLines)
	assert.Equal(t, 100.0, rows[1].ReconciledPercentage)
	assert.True(t, rows[1].NetDifference.IsZero())
}

func TestCompute_NetDifference(t *testing.T) {
	accounts := []model.BankAccount{{ID: "acct-1"}}
	lines := []*model.BankFeedLine{
		// Fully matched inflow contributes zero.
		matchedLine("a", "acct-1", "1000.00", day(2025, 3, 1)),
		// Unexplained inflow pushes the difference positive.
		unmatchedLine("b", "acct-1", "250.00", day(2025, 3, 2)),
		// Unexplained outflow pulls it back down.
		unmatchedLine("c", "acct-1", "-100.00", day(2025, 3, 3)),
	}
	// Partially matched outflow: only the unexplained 200 counts.
	partial := unmatchedLine("d", "acct-1", "-500.00", day(2025, 3, 4))
	partial.Matches = []model.BankMatch{{ID: "m-d", MatchedAmount: dec("300.00")}}
	lines = append(lines, partial)

	rows := Compute(accounts, lines, model.DateRange{}, status.DefaultPolicy())
	require.Len(t, rows, 1)
	assert.True(t, rows[0].NetDifference.Equal(dec("-50.00")),
		"got %s", rows[0].NetDifference)
}

func TestCompute_RangeFilterAndOrdering(t *testing.T) {
	accounts := []model.BankAccount{{ID: "acct-2"}, {ID: "acct-1"}}
	lines := []*model.BankFeedLine{
		matchedLine("in", "acct-1", "100.00", day(2025, 3, 15)),
		matchedLine("before", "acct-1", "100.00", day(2025, 2, 1)),
		matchedLine("after", "acct-1", "100.00", day(2025, 4, 20)),
	}

	rng := model.DateRange{From: day(2025, 3, 1), To: day(2025, 3, 31)}
	rows := Compute(accounts, lines, rng, status.DefaultPolicy())
	require.Len(t, rows, 2)
	assert.Equal(t, "acct-1", rows[0].BankAccountID)
	assert.Equal(t, "acct-2", rows[1].BankAccountID)
	assert.Equal(t, 1, rows[0].TotalLines)
}

func TestCompute_MissingRecordLines(t *testing.T) {
	accounts := []model.BankAccount{{ID: "acct-1"}}
	stale := unmatchedLine("old", "acct-1", "100.00", day(2025, 3, 1))
	fresh := unmatchedLine("new", "acct-1", "100.00", day(2025, 3, 28))
	lines := []*model.BankFeedLine{stale, fresh}

	rng := model.DateRange{To: day(2025, 3, 31)}
	rows := Compute(accounts, lines, rng, status.DefaultPolicy())
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].MissingRecordLines)
}

func TestCompute_OpenEndedRangeStillLabels(t *testing.T) {
	// With no To date, ages are measured against the current time.
	accounts := []model.BankAccount{{ID: "acct-1"}}
	stale := unmatchedLine("old", "acct-1", "100.00", time.Now().UTC().AddDate(0, 0, -30))
	fresh := unmatchedLine("new", "acct-1", "100.00", time.Now().UTC())

	rows := Compute(accounts, []*model.BankFeedLine{stale, fresh}, model.DateRange{}, status.DefaultPolicy())
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].MissingRecordLines)
}

func TestCompute_IgnoredCountsSeparately(t *testing.T) {
	accounts := []model.BankAccount{{ID: "acct-1"}}
	now := day(2025, 3, 5)
	ignored := unmatchedLine("ign", "acct-1", "42.00", day(2025, 3, 1))
	ignored.IgnoredAt = &now
	lines := []*model.BankFeedLine{ignored}

	rows := Compute(accounts, lines, model.DateRange{}, status.DefaultPolicy())
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].IgnoredLines)
	assert.Equal(t, 0, rows[0].UnmatchedLines)
	assert.Equal(t, 0.0, rows[0].ReconciledPercentage)
}
