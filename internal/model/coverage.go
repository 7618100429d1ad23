package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankAccountCoverage holds reconciliation health metrics for one account
// over a date range. Derived on demand; never stored.
type BankAccountCoverage struct {
	BankAccountID   string
	BankAccountName string
	CompanyName     string
	Currency        string
	FeedStatus      FeedStatus
	LastImportAt    *time.Time

	TotalLines         int
	MatchedLines       int
	PartialLines       int
	UnmatchedLines     int
	IgnoredLines       int
	MissingRecordLines int
	MatchCount         int

	// ReconciledPercentage is matched lines over total lines in range, times
	// 100. Defined as 100 when there is nothing to reconcile.
	ReconciledPercentage float64

	// NetDifference is the signed sum of line amounts in range minus the
	// signed amount reconciled against ledger records. Positive means the
	// bank shows more inflow than the ledger explains.
	NetDifference decimal.Decimal

	// Warning flags an account whose coverage could not be fully computed.
	Warning string
}

// MissingRecordRow is one row of the missing-from-bank report: a record the
// ledger believes settled that no bank match references inside the window.
type MissingRecordRow struct {
	Record          SystemRecord
	DaysOutstanding int
}
