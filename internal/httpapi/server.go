// Package httpapi exposes the reconciliation engine to UI and reporting
// layers over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/settled-dev/settled/internal/coverage"
	"github.com/settled-dev/settled/internal/ledger"
	"github.com/settled-dev/settled/internal/model"
	"github.com/settled-dev/settled/internal/provider"
	"github.com/settled-dev/settled/internal/status"
	"github.com/settled-dev/settled/internal/store"
)

// Server routes engine operations.
type Server struct {
	ledger   *ledger.Service
	store    store.Store
	provider provider.SystemRecordProvider
	policy   status.Policy
}

// New creates a Server.
func New(svc *ledger.Service, st store.Store, prov provider.SystemRecordProvider, policy status.Policy) *Server {
	return &Server{ledger: svc, store: st, provider: prov, policy: policy}
}

// Routes returns the chi router for the engine API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/lines", s.handleListLines)
	r.Get("/lines/{lineID}/suggestions", s.handleSuggestions)
	r.Post("/lines/{lineID}/matches", s.handleCreateMatch)
	r.Post("/lines/{lineID}/quick-match", s.handleQuickMatch)
	r.Post("/lines/{lineID}/ignore", s.handleIgnore)
	r.Post("/lines/{lineID}/unignore", s.handleUnignore)
	r.Delete("/matches/{matchID}", s.handleRemoveMatch)
	r.Get("/coverage", s.handleCoverage)
	r.Get("/missing-from-bank", s.handleMissingFromBank)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListLines(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, &ledger.ValidationError{Msg: err.Error()})
		return
	}
	lines, err := s.ledger.ListLines(r.Context(), store.ListFilter{
		AccountID: r.URL.Query().Get("account_id"),
		Range:     rng,
		Status:    model.LineStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]lineResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, toLineResponse(line))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.ledger.Suggestions(r.Context(), chi.URLParam(r, "lineID"))
	if errors.Is(err, provider.ErrUnavailable) {
		// Degrade: an unreachable ledger must not fail the read path.
		writeJSON(w, http.StatusOK, toSuggestionsResponse(nil,
			"system record provider unavailable; suggestions omitted"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSuggestionsResponse(suggestions, ""))
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ledger.ValidationError{Msg: "invalid request body"})
		return
	}
	line, err := s.ledger.CreateMatch(r.Context(), ledger.CreateMatchParams{
		LineID:     chi.URLParam(r, "lineID"),
		RecordID:   req.RecordID,
		RecordType: model.RecordType(req.RecordType),
		Amount:     req.Amount,
		Actor:      req.Actor,
		Method:     model.MethodManual,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLineResponse(line))
}

func (s *Server) handleQuickMatch(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ledger.ValidationError{Msg: "invalid request body"})
		return
	}
	line, err := s.ledger.QuickMatch(r.Context(), chi.URLParam(r, "lineID"), req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLineResponse(line))
}

func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
	var req ignoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ledger.ValidationError{Msg: "invalid request body"})
		return
	}
	line, err := s.ledger.Ignore(r.Context(), chi.URLParam(r, "lineID"), req.Actor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLineResponse(line))
}

func (s *Server) handleUnignore(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ledger.ValidationError{Msg: "invalid request body"})
		return
	}
	line, err := s.ledger.Unignore(r.Context(), chi.URLParam(r, "lineID"), req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLineResponse(line))
}

// handleRemoveMatch takes the actor from the actor query parameter rather
// than a JSON body: DELETE requests carry no body.
func (s *Server) handleRemoveMatch(w http.ResponseWriter, r *http.Request) {
	line, err := s.ledger.RemoveMatch(r.Context(), chi.URLParam(r, "matchID"), r.URL.Query().Get("actor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLineResponse(line))
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, &ledger.ValidationError{Msg: err.Error()})
		return
	}
	rows, err := s.coverage(r.Context(), rng, r.URL.Query().Get("company_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCoverageResponse(rows))
}

func (s *Server) coverage(ctx context.Context, rng model.DateRange, companyID string) ([]model.BankAccountCoverage, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if companyID != "" {
		filtered := accounts[:0]
		for _, acct := range accounts {
			if acct.CompanyID == companyID {
				filtered = append(filtered, acct)
			}
		}
		accounts = filtered
	}

	out := make([]model.BankAccountCoverage, 0, len(accounts))
	for _, acct := range accounts {
		lines, err := s.store.ListLines(ctx, store.ListFilter{AccountID: acct.ID, Range: rng})
		if err != nil {
			// Flag the account rather than dropping it from the report.
			out = append(out, model.BankAccountCoverage{
				BankAccountID:   acct.ID,
				BankAccountName: acct.Name,
				CompanyName:     acct.CompanyName,
				Currency:        acct.Currency,
				FeedStatus:      acct.FeedStatus,
				Warning:         "coverage unavailable: " + err.Error(),
			})
			continue
		}
		out = append(out, coverage.Compute([]model.BankAccount{acct}, lines, rng, s.policy)...)
	}
	return out, nil
}

func (s *Server) handleMissingFromBank(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, &ledger.ValidationError{Msg: err.Error()})
		return
	}
	records, err := s.provider.ListSettledRecords(r.Context(), provider.Filter{
		Range:     rng,
		CompanyID: r.URL.Query().Get("company_id"),
		ProjectID: r.URL.Query().Get("project_id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	matches, err := s.store.ListMatches(r.Context(), rng)
	if err != nil {
		writeError(w, err)
		return
	}
	rows := coverage.MissingFromBank(records, matches, rng,
		model.RecordType(r.URL.Query().Get("type")), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, toMissingResponse(rows))
}

func parseRange(r *http.Request) (model.DateRange, error) {
	var out model.DateRange
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return out, errors.New("invalid from date, want YYYY-MM-DD")
		}
		out.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return out, errors.New("invalid to date, want YYYY-MM-DD")
		}
		out.To = t
	}
	return out, nil
}
