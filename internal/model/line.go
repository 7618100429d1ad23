package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineStatus is the derived lifecycle state of a bank feed line. It is always
// recomputed from the line's matches and ignored flag; nothing else writes it.
type LineStatus string

const (
	StatusUnmatched        LineStatus = "unmatched"
	StatusPartiallyMatched LineStatus = "partially_matched"
	StatusMatched          LineStatus = "matched"
	StatusIgnored          LineStatus = "ignored"
)

// RecordType tags which ledger table a system record lives in.
type RecordType string

const (
	RecordReceipt           RecordType = "receipt"
	RecordExpense           RecordType = "expense"
	RecordTransfer          RecordType = "transfer"
	RecordOwnerContribution RecordType = "owner_contribution"
)

// MatchMethod records how a match was created.
type MatchMethod string

const (
	MethodManual    MatchMethod = "manual"
	MethodSuggested MatchMethod = "suggested"
	MethodQuick     MatchMethod = "quick"
)

// BankFeedLine is one imported bank transaction. Immutable once imported
// except for status, matches, the ignore audit fields, notes and the cached
// confidence score. Lines are never deleted, only transitioned.
type BankFeedLine struct {
	ID              string
	BankAccountID   string
	Currency        string
	TransactionDate time.Time
	ValueDate       time.Time
	Amount          decimal.Decimal // signed; positive = inflow
	Description     string
	Reference       string
	RunningBalance  *decimal.Decimal
	Status          LineStatus
	Matches         []BankMatch

	// ConfidenceScore caches the best suggestion score from the most recent
	// rescoring pass. Advisory only; never an input to status derivation.
	ConfidenceScore float64

	ImportedAt   time.Time
	ImportedBy   string
	ImportSource string

	IgnoredAt    *time.Time
	IgnoredBy    string
	IgnoreReason string

	Notes       string
	Attachments []string
}

// BankMatch asserts that part of a line's amount corresponds to one system
// record. Owned exclusively by its line; hard-deleted on removal.
type BankMatch struct {
	ID            string
	LineID        string
	RecordID      string
	RecordType    RecordType
	MatchedAmount decimal.Decimal // > 0, bounded by the line's remaining amount
	MatchedBy     string
	MatchedAt     time.Time
	Method        MatchMethod
}

// AbsAmount returns the unsigned line amount.
func (l *BankFeedLine) AbsAmount() decimal.Decimal {
	return l.Amount.Abs()
}

// MatchedTotal sums the matched amounts of all current matches.
func (l *BankFeedLine) MatchedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, m := range l.Matches {
		total = total.Add(m.MatchedAmount)
	}
	return total
}

// Remaining returns the unmatched portion of the line's amount.
func (l *BankFeedLine) Remaining() decimal.Decimal {
	return l.AbsAmount().Sub(l.MatchedTotal())
}

// Ignored reports whether the line is currently ignored.
func (l *BankFeedLine) Ignored() bool {
	return l.IgnoredAt != nil
}

// Clone returns a deep copy of the line and its matches.
func (l *BankFeedLine) Clone() *BankFeedLine {
	out := *l
	if l.RunningBalance != nil {
		rb := *l.RunningBalance
		out.RunningBalance = &rb
	}
	if l.IgnoredAt != nil {
		at := *l.IgnoredAt
		out.IgnoredAt = &at
	}
	if l.Matches != nil {
		out.Matches = make([]BankMatch, len(l.Matches))
		copy(out.Matches, l.Matches)
	}
	if l.Attachments != nil {
		out.Attachments = make([]string, len(l.Attachments))
		copy(out.Attachments, l.Attachments)
	}
	return &out
}

// DateRange is an inclusive date interval.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range. A zero From or To leaves
// that side unbounded.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}
