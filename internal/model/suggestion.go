package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reason tags a scoring signal that fired for a suggestion.
type Reason string

const (
	ReasonExactAmount       Reason = "exact_amount"
	ReasonCloseAmount       Reason = "close_amount"
	ReasonDateProximity     Reason = "date_proximity"
	ReasonReferenceMatch    Reason = "reference_match"
	ReasonCounterpartyMatch Reason = "counterparty_match"
)

// SuggestedMatch is an ephemeral scored candidate match for one line. Never
// persisted; regenerated on demand from the current candidate pool.
type SuggestedMatch struct {
	RecordID     string
	RecordType   RecordType
	Reference    string
	Counterparty string
	Description  string
	Amount       decimal.Decimal
	Date         time.Time
	Score        float64 // 0..100
	Reasons      []Reason
}
