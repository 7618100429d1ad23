package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/ledger"
	"github.com/settled-dev/settled/internal/model"
	"github.com/settled-dev/settled/internal/provider"
	"github.com/settled-dev/settled/internal/store"
)

type createMatchRequest struct {
	RecordID   string          `json:"record_id"`
	RecordType string          `json:"record_type"`
	Amount     decimal.Decimal `json:"amount"`
	Actor      string          `json:"actor"`
}

type actorRequest struct {
	Actor string `json:"actor"`
}

type ignoreRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type suggestionResponse struct {
	RecordID     string          `json:"record_id"`
	RecordType   string          `json:"record_type"`
	Reference    string          `json:"reference,omitempty"`
	Counterparty string          `json:"counterparty,omitempty"`
	Description  string          `json:"description,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Date         string          `json:"date"`
	Score        float64         `json:"score"`
	Reasons      []model.Reason  `json:"reasons"`
}

type suggestionsResponse struct {
	Suggestions []suggestionResponse `json:"suggestions"`
	Warning     string               `json:"warning,omitempty"`
}

func toSuggestionsResponse(suggestions []model.SuggestedMatch, warning string) suggestionsResponse {
	out := suggestionsResponse{
		Suggestions: make([]suggestionResponse, 0, len(suggestions)),
		Warning:     warning,
	}
	for _, sug := range suggestions {
		out.Suggestions = append(out.Suggestions, suggestionResponse{
			RecordID:     sug.RecordID,
			RecordType:   string(sug.RecordType),
			Reference:    sug.Reference,
			Counterparty: sug.Counterparty,
			Description:  sug.Description,
			Amount:       sug.Amount,
			Date:         sug.Date.Format("2006-01-02"),
			Score:        sug.Score,
			Reasons:      sug.Reasons,
		})
	}
	return out
}

type matchResponse struct {
	ID            string          `json:"id"`
	RecordID      string          `json:"record_id"`
	RecordType    string          `json:"record_type"`
	MatchedAmount decimal.Decimal `json:"matched_amount"`
	MatchedBy     string          `json:"matched_by"`
	MatchedAt     time.Time       `json:"matched_at"`
	Method        string          `json:"method"`
}

type lineResponse struct {
	ID              string           `json:"id"`
	BankAccountID   string           `json:"bank_account_id"`
	Currency        string           `json:"currency"`
	TransactionDate string           `json:"transaction_date"`
	ValueDate       string           `json:"value_date"`
	Amount          decimal.Decimal  `json:"amount"`
	Description     string           `json:"description"`
	Reference       string           `json:"reference"`
	RunningBalance  *decimal.Decimal `json:"running_balance,omitempty"`
	Status          string           `json:"status"`
	Matches         []matchResponse  `json:"matches"`
	MatchedTotal    decimal.Decimal  `json:"matched_total"`
	Remaining       decimal.Decimal  `json:"remaining"`
	ConfidenceScore float64          `json:"confidence_score"`
	IgnoredAt       *time.Time       `json:"ignored_at,omitempty"`
	IgnoredBy       string           `json:"ignored_by,omitempty"`
	IgnoreReason    string           `json:"ignore_reason,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

func toLineResponse(line *model.BankFeedLine) lineResponse {
	matches := make([]matchResponse, 0, len(line.Matches))
	for _, m := range line.Matches {
		matches = append(matches, matchResponse{
			ID:            m.ID,
			RecordID:      m.RecordID,
			RecordType:    string(m.RecordType),
			MatchedAmount: m.MatchedAmount,
			MatchedBy:     m.MatchedBy,
			MatchedAt:     m.MatchedAt,
			Method:        string(m.Method),
		})
	}
	return lineResponse{
		ID:              line.ID,
		BankAccountID:   line.BankAccountID,
		Currency:        line.Currency,
		TransactionDate: line.TransactionDate.Format("2006-01-02"),
		ValueDate:       line.ValueDate.Format("2006-01-02"),
		Amount:          line.Amount,
		Description:     line.Description,
		Reference:       line.Reference,
		RunningBalance:  line.RunningBalance,
		Status:          string(line.Status),
		Matches:         matches,
		MatchedTotal:    line.MatchedTotal(),
		Remaining:       line.Remaining(),
		ConfidenceScore: line.ConfidenceScore,
		IgnoredAt:       line.IgnoredAt,
		IgnoredBy:       line.IgnoredBy,
		IgnoreReason:    line.IgnoreReason,
		Notes:           line.Notes,
	}
}

type coverageResponse struct {
	BankAccountID        string          `json:"bank_account_id"`
	BankAccountName      string          `json:"bank_account_name"`
	CompanyName          string          `json:"company_name,omitempty"`
	Currency             string          `json:"currency"`
	FeedStatus           string          `json:"feed_status"`
	LastImportAt         *time.Time      `json:"last_import_at,omitempty"`
	TotalLines           int             `json:"total_lines"`
	MatchedLines         int             `json:"matched_lines"`
	PartialLines         int             `json:"partial_lines"`
	UnmatchedLines       int             `json:"unmatched_lines"`
	IgnoredLines         int             `json:"ignored_lines"`
	MissingRecordLines   int             `json:"missing_record_lines"`
	MatchCount           int             `json:"match_count"`
	ReconciledPercentage float64         `json:"reconciled_percentage"`
	NetDifference        decimal.Decimal `json:"net_difference"`
	Warning              string          `json:"warning,omitempty"`
}

func toCoverageResponse(rows []model.BankAccountCoverage) []coverageResponse {
	out := make([]coverageResponse, 0, len(rows))
	for _, c := range rows {
		out = append(out, coverageResponse{
			BankAccountID:        c.BankAccountID,
			BankAccountName:      c.BankAccountName,
			CompanyName:          c.CompanyName,
			Currency:             c.Currency,
			FeedStatus:           string(c.FeedStatus),
			LastImportAt:         c.LastImportAt,
			TotalLines:           c.TotalLines,
			MatchedLines:         c.MatchedLines,
			PartialLines:         c.PartialLines,
			UnmatchedLines:       c.UnmatchedLines,
			IgnoredLines:         c.IgnoredLines,
			MissingRecordLines:   c.MissingRecordLines,
			MatchCount:           c.MatchCount,
			ReconciledPercentage: c.ReconciledPercentage,
			NetDifference:        c.NetDifference,
			Warning:              c.Warning,
		})
	}
	return out
}

type missingRowResponse struct {
	RecordID        string          `json:"record_id"`
	RecordType      string          `json:"record_type"`
	Amount          decimal.Decimal `json:"amount"`
	Date            string          `json:"date"`
	Reference       string          `json:"reference,omitempty"`
	Counterparty    string          `json:"counterparty,omitempty"`
	Description     string          `json:"description,omitempty"`
	DaysOutstanding int             `json:"days_outstanding"`
}

func toMissingResponse(rows []model.MissingRecordRow) []missingRowResponse {
	out := make([]missingRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, missingRowResponse{
			RecordID:        row.Record.ID,
			RecordType:      string(row.Record.Type),
			Amount:          row.Record.Amount,
			Date:            row.Record.Date.Format("2006-01-02"),
			Reference:       row.Record.Reference,
			Counterparty:    row.Record.Counterparty,
			Description:     row.Record.Description,
			DaysOutstanding: row.DaysOutstanding,
		})
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps the ledger error taxonomy onto HTTP statuses so callers
// can distinguish "already fully matched", "amount exceeds remaining", and
// "record not found".
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *ledger.ValidationError
		overMatch  *ledger.OverMatchError
		notFound   *ledger.NotFoundError
		ignored    *ledger.AlreadyIgnoredError
		hasMatches *ledger.HasMatchesError
		noMatch    *ledger.NoConfidentMatchError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation"})
	case errors.As(err, &overMatch):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "over_match"})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	case errors.As(err, &ignored):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_ignored"})
	case errors.As(err, &hasMatches):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "has_matches"})
	case errors.As(err, &noMatch):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "no_confident_match"})
	case errors.Is(err, provider.ErrUnavailable):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Code: "provider_unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: "internal"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
