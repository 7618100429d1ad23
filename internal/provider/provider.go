// Package provider defines the read-only query surface over the ledger's
// system records. The ledger is the source of truth for a record's
// outstanding balance; this engine never mutates records through it.
package provider

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

// ErrUnavailable signals that the ledger query surface could not be reached.
// Suggestion reads degrade to an empty list with a surfaced warning; they do
// not fail line listing.
var ErrUnavailable = errors.New("system record provider unavailable")

// ErrRecordNotFound signals an unknown system record ID.
var ErrRecordNotFound = errors.New("system record not found")

// Filter narrows a record query. Zero values leave that dimension open.
type Filter struct {
	Type      model.RecordType
	Currency  string
	Range     model.DateRange
	CompanyID string
	ProjectID string
}

// SystemRecordProvider is the ledger's query surface.
type SystemRecordProvider interface {
	// ListUnmatchedRecords returns records with a positive outstanding
	// balance matching the filter. Returned amounts are the outstanding
	// balances, not the original record totals.
	ListUnmatchedRecords(ctx context.Context, f Filter) ([]model.SystemRecord, error)

	// ListSettledRecords returns records the ledger marks as paid/settled
	// within the filter range, for the missing-from-bank report.
	ListSettledRecords(ctx context.Context, f Filter) ([]model.SystemRecord, error)

	// RemainingAmount returns the record's current outstanding balance.
	// Other consumers besides this engine may also hold claims against it.
	RemainingAmount(ctx context.Context, recordID string) (decimal.Decimal, error)
}
