package status

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/settled-dev/settled/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name    string
		matched string
		abs     string
		ignored bool
		want    model.LineStatus
	}{
		{"no matches", "0", "1500.00", false, model.StatusUnmatched},
		{"partial", "500.00", "1500.00", false, model.StatusPartiallyMatched},
		{"full", "1500.00", "1500.00", false, model.StatusMatched},
		{"overshoot still reads matched", "1600.00", "1500.00", false, model.StatusMatched},
		{"ignored with no matches", "0", "1500.00", true, model.StatusIgnored},
		{"ignored flag loses to matches", "500.00", "1500.00", true, model.StatusPartiallyMatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(dec(tt.matched), dec(tt.abs), tt.ignored)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForLine_PureOverHistory(t *testing.T) {
	// Two lines with identical facts arrived at by different histories must
	// derive the same status.
	a := &model.BankFeedLine{Amount: dec("-800.00")}
	a.Matches = []model.BankMatch{
		{ID: "m1", MatchedAmount: dec("500.00")},
		{ID: "m2", MatchedAmount: dec("300.00")},
	}

	b := &model.BankFeedLine{Amount: dec("-800.00")}
	b.Matches = []model.BankMatch{
		{ID: "m9", MatchedAmount: dec("300.00")},
		{ID: "m8", MatchedAmount: dec("500.00")},
	}

	assert.Equal(t, ForLine(a), ForLine(b))
	assert.Equal(t, model.StatusMatched, ForLine(a))
}

func TestClassify(t *testing.T) {
	p := DefaultPolicy()
	line := func(matched string) *model.BankFeedLine {
		l := &model.BankFeedLine{Amount: dec("1000.00"), TransactionDate: time.Now()}
		if matched != "0" {
			l.Matches = []model.BankMatch{{ID: "m", MatchedAmount: dec(matched)}}
		}
		return l
	}

	tests := []struct {
		name    string
		line    *model.BankFeedLine
		ageDays int
		best    float64
		want    Label
	}{
		{"fresh unmatched, no signal", line("0"), 2, 0, LabelNone},
		{"old unmatched, no plausible suggestion", line("0"), 20, 10, LabelMissingRecord},
		{"old unmatched, decent suggestion", line("0"), 20, 55, LabelNeedsReview},
		{"partial with reviewable suggestion", line("400.00"), 5, 60, LabelNeedsReview},
		{"score above auto-accept clears itself", line("0"), 5, 95, LabelNone},
		{"fully matched never labeled", line("1000.00"), 40, 0, LabelNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.line, tt.ageDays, tt.best, p))
		})
	}
}

func TestClassify_IgnoredNeverLabeled(t *testing.T) {
	now := time.Now()
	l := &model.BankFeedLine{Amount: dec("1000.00"), IgnoredAt: &now}
	assert.Equal(t, LabelNone, Classify(l, 60, 0, DefaultPolicy()))
}
