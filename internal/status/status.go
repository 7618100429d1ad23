// Package status derives a bank feed line's lifecycle state from its current
// facts. The derivation is pure: identical matches and ignore flag always
// yield the identical status, regardless of the transition history.
package status

import (
	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

// Derive computes the status from a matched total, the line's absolute
// amount, and the ignored flag. Overshoot (matchedTotal > lineAbs) is a
// defect upstream; Derive still reports it as matched so the defect is
// visible rather than masked.
func Derive(matchedTotal, lineAbs decimal.Decimal, ignored bool) model.LineStatus {
	if matchedTotal.IsZero() {
		if ignored {
			return model.StatusIgnored
		}
		return model.StatusUnmatched
	}
	if matchedTotal.LessThan(lineAbs) {
		return model.StatusPartiallyMatched
	}
	return model.StatusMatched
}

// ForLine derives the status from the line's own matches and ignore flag.
func ForLine(l *model.BankFeedLine) model.LineStatus {
	return Derive(l.MatchedTotal(), l.AbsAmount(), l.Ignored())
}

// Label is a policy classification layered on top of the stored statuses.
// Labels are computed on demand and never persisted.
type Label string

const (
	LabelNone          Label = ""
	LabelMissingRecord Label = "missing_record"
	LabelNeedsReview   Label = "needs_review"
)

// Policy holds the thresholds the classification uses.
type Policy struct {
	// MissingRecordAgeDays is how old an unmatched line must be, with no
	// plausible suggestion, before it is presumed missing from the ledger.
	MissingRecordAgeDays int

	// NeedsReviewScore is the minimum best-suggestion score that marks a
	// line as worth a human look.
	NeedsReviewScore float64

	// AutoAcceptScore mirrors the quick-match threshold; at or above it the
	// line is expected to clear on its own and is not flagged for review.
	AutoAcceptScore float64
}

// DefaultPolicy returns the classification thresholds used in production.
func DefaultPolicy() Policy {
	return Policy{
		MissingRecordAgeDays: 14,
		NeedsReviewScore:     40,
		AutoAcceptScore:      90,
	}
}

// Classify labels a line from its age and best available suggestion score.
// Pure; callers (coverage aggregation, periodic jobs) invoke it on demand.
func Classify(line *model.BankFeedLine, ageDays int, bestSuggestionScore float64, p Policy) Label {
	st := ForLine(line)
	if st == model.StatusMatched || st == model.StatusIgnored {
		return LabelNone
	}
	if bestSuggestionScore >= p.NeedsReviewScore && bestSuggestionScore < p.AutoAcceptScore {
		return LabelNeedsReview
	}
	if st == model.StatusUnmatched && ageDays > p.MissingRecordAgeDays && bestSuggestionScore < p.NeedsReviewScore {
		return LabelMissingRecord
	}
	return LabelNone
}
