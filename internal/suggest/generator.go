// Package suggest produces ranked candidate matches for unmatched bank feed
// lines. Generation is a pure function of (line, candidate pool, config):
// no side effects, and the same inputs always yield the same ordered output.
package suggest

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

// Generate scores every eligible candidate against the line and returns
// suggestions sorted by descending score, ties broken by record ID ascending,
// capped at cfg.MaxSuggestions.
//
// Candidates are eligible when their currency matches the line, their
// outstanding amount is positive, and their date falls within the configured
// window around the line's transaction date.
func Generate(line *model.BankFeedLine, candidates []model.SystemRecord, cfg Config) []model.SuggestedMatch {
	var out []model.SuggestedMatch
	for _, rec := range candidates {
		if rec.Currency != line.Currency {
			continue
		}
		if !rec.Amount.IsPositive() {
			continue
		}
		days := dayDistance(line.TransactionDate, rec.Date)
		if days > cfg.DateWindowDays {
			continue
		}

		score, reasons := scoreCandidate(line, rec, days, cfg)
		if score <= 0 {
			continue
		}
		out = append(out, model.SuggestedMatch{
			RecordID:     rec.ID,
			RecordType:   rec.Type,
			Reference:    rec.Reference,
			Counterparty: rec.Counterparty,
			Description:  rec.Description,
			Amount:       rec.Amount,
			Date:         rec.Date,
			Score:        score,
			Reasons:      reasons,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].RecordID < out[j].RecordID
	})
	if cfg.MaxSuggestions > 0 && len(out) > cfg.MaxSuggestions {
		out = out[:cfg.MaxSuggestions]
	}
	return out
}

// Best returns the highest-scoring suggestion's score, or 0 when there are
// no suggestions.
func Best(suggestions []model.SuggestedMatch) float64 {
	if len(suggestions) == 0 {
		return 0
	}
	return suggestions[0].Score
}

func scoreCandidate(line *model.BankFeedLine, rec model.SystemRecord, days int, cfg Config) (float64, []model.Reason) {
	var score float64
	var reasons []model.Reason

	lineAbs := line.AbsAmount()
	diff := rec.Amount.Sub(lineAbs).Abs()

	switch {
	case diff.LessThan(cfg.AmountEpsilon):
		score += cfg.Weights.ExactAmount
		reasons = append(reasons, model.ReasonExactAmount)
	case withinRelative(diff, lineAbs, cfg.CloseTolerance):
		score += cfg.Weights.CloseAmount
		reasons = append(reasons, model.ReasonCloseAmount)
	}

	if cfg.DateWindowDays > 0 {
		decay := 1 - float64(days)/float64(cfg.DateWindowDays)
		if decay > 0 {
			score += cfg.Weights.DateProximity * decay
		}
		if days <= cfg.DateReasonDays {
			reasons = append(reasons, model.ReasonDateProximity)
		}
	}

	if tokensOverlap(line.Reference+" "+line.Description, rec.Reference) {
		score += cfg.Weights.ReferenceMatch
		reasons = append(reasons, model.ReasonReferenceMatch)
	}

	if tokensOverlap(line.Description, rec.Counterparty) {
		score += cfg.Weights.CounterpartyMatch
		reasons = append(reasons, model.ReasonCounterpartyMatch)
	}

	if score > 100 {
		score = 100
	}
	return score, reasons
}

func withinRelative(diff, base decimal.Decimal, tolerance float64) bool {
	if base.IsZero() {
		return false
	}
	ratio, _ := diff.Div(base).Float64()
	return ratio <= tolerance
}

func dayDistance(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

// tokensOverlap reports whether the two strings share at least one token of
// three or more characters, case-insensitively. Tokens split on anything that
// is not a letter or digit.
func tokensOverlap(a, b string) bool {
	ta := tokenize(a)
	if len(ta) == 0 {
		return false
	}
	for tok := range tokenize(b) {
		if ta[tok] {
			return true
		}
	}
	return false
}

func tokenize(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			out[f] = true
		}
	}
	return out
}
