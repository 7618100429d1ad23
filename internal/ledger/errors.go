package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports a malformed mutation request, e.g. a non-positive
// matched amount.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// OverMatchError reports a matched amount that would exceed the line's
// remaining unmatched amount. Manual creates are rejected rather than
// clamped; only suggestion acceptance clamps.
type OverMatchError struct {
	LineID    string
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *OverMatchError) Error() string {
	if e.Remaining.IsZero() {
		return fmt.Sprintf("line %s is already fully matched", e.LineID)
	}
	return fmt.Sprintf("amount %s exceeds remaining %s on line %s",
		e.Requested.StringFixed(2), e.Remaining.StringFixed(2), e.LineID)
}

// NotFoundError reports an unknown line, match, or record ID.
type NotFoundError struct {
	Kind string // "line", "match", or "record"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

// AlreadyIgnoredError reports a mutation attempted on an ignored line.
type AlreadyIgnoredError struct {
	LineID string
}

func (e *AlreadyIgnoredError) Error() string { return fmt.Sprintf("line %s is ignored", e.LineID) }

// HasMatchesError reports an ignore attempted on a line that still has
// matches.
type HasMatchesError struct {
	LineID  string
	Matches int
}

func (e *HasMatchesError) Error() string {
	return fmt.Sprintf("line %s has %d match(es); remove them before ignoring", e.LineID, e.Matches)
}

// NoConfidentMatchError reports a quick-match attempt with no suggestion at
// or above the auto-accept threshold.
type NoConfidentMatchError struct {
	LineID    string
	BestScore float64
	Threshold float64
}

func (e *NoConfidentMatchError) Error() string {
	return fmt.Sprintf("no suggestion for line %s scored %.0f or above (best %.1f)",
		e.LineID, e.Threshold, e.BestScore)
}
