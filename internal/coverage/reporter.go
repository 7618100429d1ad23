package coverage

import (
	"sort"
	"strings"

	"github.com/settled-dev/settled/internal/model"
)

// MissingFromBank returns the settled ledger records that no bank match
// references inside the window: money the books believe moved but that never
// showed up in the bank feed (or showed up outside the window).
//
// typeFilter narrows by record type when non-empty. search is a
// case-insensitive free-text filter across reference, counterparty, and
// description.
func MissingFromBank(records []model.SystemRecord, matches []model.BankMatch, r model.DateRange, typeFilter model.RecordType, search string) []model.MissingRecordRow {
	matched := make(map[matchKey]bool, len(matches))
	for _, m := range matches {
		matched[matchKey{m.RecordType, m.RecordID}] = true
	}

	needle := strings.ToLower(strings.TrimSpace(search))

	var out []model.MissingRecordRow
	for _, rec := range records {
		if !r.Contains(rec.Date) {
			continue
		}
		if typeFilter != "" && rec.Type != typeFilter {
			continue
		}
		if matched[matchKey{rec.Type, rec.ID}] {
			continue
		}
		if needle != "" && !recordContains(rec, needle) {
			continue
		}
		out = append(out, model.MissingRecordRow{
			Record:          rec,
			DaysOutstanding: daysBetween(rec, r),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Record.Date.Equal(out[j].Record.Date) {
			return out[i].Record.Date.Before(out[j].Record.Date)
		}
		return out[i].Record.ID < out[j].Record.ID
	})
	return out
}

type matchKey struct {
	recordType model.RecordType
	recordID   string
}

func recordContains(rec model.SystemRecord, needle string) bool {
	for _, field := range []string{rec.Reference, rec.Counterparty, rec.Description} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func daysBetween(rec model.SystemRecord, r model.DateRange) int {
	if r.To.IsZero() {
		return 0
	}
	days := int(r.To.Sub(rec.Date).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
