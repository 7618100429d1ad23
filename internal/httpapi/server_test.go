package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settled-dev/settled/internal/ledger"
	"github.com/settled-dev/settled/internal/model"
	"github.com/settled-dev/settled/internal/provider"
	"github.com/settled-dev/settled/internal/status"
	"github.com/settled-dev/settled/internal/store"
	"github.com/settled-dev/settled/internal/suggest"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store    *store.Memory
	provider *provider.Memory
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	prov := provider.NewMemory()
	svc := ledger.New(st, prov, suggest.Default())
	srv := httptest.NewServer(New(svc, st, prov, status.DefaultPolicy()).Routes())
	t.Cleanup(srv.Close)
	return &fixture{store: st, provider: prov, server: srv}
}

func (f *fixture) addLine(t *testing.T, id, account, amount string, date time.Time) {
	t.Helper()
	err := f.store.PutLine(context.Background(), &model.BankFeedLine{
		ID:              id,
		BankAccountID:   account,
		Currency:        "THB",
		TransactionDate: date,
		ValueDate:       date,
		Amount:          dec(amount),
		Status:          model.StatusUnmatched,
		ImportedAt:      date,
	})
	require.NoError(t, err)
}

func (f *fixture) addReferencedLine(t *testing.T, id, account, amount string, date time.Time, reference string) {
	t.Helper()
	err := f.store.PutLine(context.Background(), &model.BankFeedLine{
		ID:              id,
		BankAccountID:   account,
		Currency:        "THB",
		TransactionDate: date,
		ValueDate:       date,
		Amount:          dec(amount),
		Reference:       reference,
		Description:     "TRANSFER " + reference,
		Status:          model.StatusUnmatched,
		ImportedAt:      date,
	})
	require.NoError(t, err)
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestListLines(t *testing.T) {
	f := newFixture(t)
	f.addLine(t, "line-1", "acct-1", "1500.00", day(2025, 3, 10))
	f.addLine(t, "line-2", "acct-2", "-800.00", day(2025, 3, 12))

	resp, body := f.do(t, http.MethodGet, "/lines?account_id=acct-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lines []map[string]any
	require.NoError(t, json.Unmarshal(body, &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, "line-1", lines[0]["id"])
	assert.Equal(t, "unmatched", lines[0]["status"])
	assert.Equal(t, "2025-03-10", lines[0]["transaction_date"])
}

func TestListLines_BadRange(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/lines?from=March+10", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "validation")
}

func TestCreateMatch_Flow(t *testing.T) {
	f := newFixture(t)
	f.addLine(t, "line-1", "acct-1", "-800.00", day(2025, 3, 10))
	f.provider.Add(model.SystemRecord{
		ID: "exp-1", Type: model.RecordExpense, Amount: dec("800.00"),
		Date: day(2025, 3, 9), Currency: "THB",
	})

	resp, body := f.do(t, http.MethodPost, "/lines/line-1/matches", map[string]any{
		"record_id":   "exp-1",
		"record_type": "expense",
		"amount":      "500.00",
		"actor":       "somchai",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var line map[string]any
	require.NoError(t, json.Unmarshal(body, &line))
	assert.Equal(t, "partially_matched", line["status"])
	assert.Equal(t, "500.00", line["matched_total"])
	assert.Equal(t, "300.00", line["remaining"])

	// Removing the match resets the line.
	matches := line["matches"].([]any)
	matchID := matches[0].(map[string]any)["id"].(string)
	resp, body = f.do(t, http.MethodDelete, "/matches/"+matchID+"?actor=somchai", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &line))
	assert.Equal(t, "unmatched", line["status"])
}

func TestCreateMatch_ErrorMapping(t *testing.T) {
	f := newFixture(t)
	f.addLine(t, "line-1", "acct-1", "1500.00", day(2025, 3, 10))
	f.provider.Add(model.SystemRecord{
		ID: "rcpt-1", Type: model.RecordReceipt, Amount: dec("1600.00"),
		Date: day(2025, 3, 10), Currency: "THB",
	})

	tests := []struct {
		name     string
		path     string
		req      map[string]any
		wantCode int
		wantErr  string
	}{
		{
			"over match", "/lines/line-1/matches",
			map[string]any{"record_id": "rcpt-1", "record_type": "receipt", "amount": "1600.00", "actor": "a"},
			http.StatusConflict, "over_match",
		},
		{
			"unknown line", "/lines/ghost/matches",
			map[string]any{"record_id": "rcpt-1", "record_type": "receipt", "amount": "10.00", "actor": "a"},
			http.StatusNotFound, "not_found",
		},
		{
			"unknown record", "/lines/line-1/matches",
			map[string]any{"record_id": "ghost", "record_type": "receipt", "amount": "10.00", "actor": "a"},
			http.StatusNotFound, "not_found",
		},
		{
			"non-positive amount", "/lines/line-1/matches",
			map[string]any{"record_id": "rcpt-1", "record_type": "receipt", "amount": "0", "actor": "a"},
			http.StatusBadRequest, "validation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, tt.path, tt.req)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Contains(t, string(body), tt.wantErr)
		})
	}
}

func TestQuickMatch(t *testing.T) {
	f := newFixture(t)
	f.addReferencedLine(t, "line-1", "acct-1", "1500.00", day(2025, 3, 10), "INV-42")
	f.addLine(t, "line-2", "acct-1", "999.00", day(2025, 3, 10))
	f.provider.Add(model.SystemRecord{
		ID: "rcpt-1", Type: model.RecordReceipt, Amount: dec("1500.00"),
		Date: day(2025, 3, 10), Reference: "INV-42", Currency: "THB",
	})

	resp, body := f.do(t, http.MethodPost, "/lines/line-1/quick-match", map[string]any{"actor": "somchai"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var line map[string]any
	require.NoError(t, json.Unmarshal(body, &line))
	assert.Equal(t, "matched", line["status"])

	resp, body = f.do(t, http.MethodPost, "/lines/line-2/quick-match", map[string]any{"actor": "somchai"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "no_confident_match")
}

func TestIgnoreLifecycle(t *testing.T) {
	f := newFixture(t)
	f.addLine(t, "line-1", "acct-1", "42.00", day(2025, 3, 10))

	resp, body := f.do(t, http.MethodPost, "/lines/line-1/ignore",
		map[string]any{"actor": "somchai", "reason": "bank fee"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var line map[string]any
	require.NoError(t, json.Unmarshal(body, &line))
	assert.Equal(t, "ignored", line["status"])
	assert.Equal(t, "bank fee", line["ignore_reason"])

	resp, body = f.do(t, http.MethodPost, "/lines/line-1/ignore",
		map[string]any{"actor": "somchai", "reason": "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "already_ignored")

	resp, body = f.do(t, http.MethodPost, "/lines/line-1/unignore", map[string]any{"actor": "somchai"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &line))
	assert.Equal(t, "unmatched", line["status"])
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t)
	f.addReferencedLine(t, "line-1", "acct-1", "1500.00", day(2025, 3, 10), "INV-42")
	f.provider.Add(model.SystemRecord{
		ID: "rcpt-1", Type: model.RecordReceipt, Amount: dec("1500.00"),
		Date: day(2025, 3, 10), Reference: "INV-42", Currency: "THB",
	})

	resp, body := f.do(t, http.MethodGet, "/lines/line-1/suggestions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	suggestions := got["suggestions"].([]any)
	require.Len(t, suggestions, 1)
	top := suggestions[0].(map[string]any)
	assert.Equal(t, "rcpt-1", top["record_id"])
	assert.GreaterOrEqual(t, top["score"].(float64), 90.0)
}

// unavailable always fails; the suggestion read must degrade, not error.
type unavailable struct{}

func (unavailable) ListUnmatchedRecords(context.Context, provider.Filter) ([]model.SystemRecord, error) {
	return nil, provider.ErrUnavailable
}

func (unavailable) ListSettledRecords(context.Context, provider.Filter) ([]model.SystemRecord, error) {
	return nil, provider.ErrUnavailable
}

func (unavailable) RemainingAmount(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("unreachable")
}

func TestSuggestions_DegradeWhenProviderDown(t *testing.T) {
	st := store.NewMemory()
	svc := ledger.New(st, unavailable{}, suggest.Default())
	srv := httptest.NewServer(New(svc, st, unavailable{}, status.DefaultPolicy()).Routes())
	t.Cleanup(srv.Close)

	require.NoError(t, st.PutLine(context.Background(), &model.BankFeedLine{
		ID: "line-1", BankAccountID: "acct-1", Currency: "THB",
		TransactionDate: day(2025, 3, 10), Amount: dec("100.00"),
		Status: model.StatusUnmatched,
	}))

	resp, err := http.Get(srv.URL + "/lines/line-1/suggestions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Empty(t, got["suggestions"])
	assert.NotEmpty(t, got["warning"])

	// The missing-from-bank report has no degrade path; it surfaces 502.
	resp, err = http.Get(srv.URL + "/missing-from-bank")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestCoverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.PutAccount(ctx, model.BankAccount{
		ID: "acct-1", Name: "Operating", Currency: "THB", CompanyID: "co-1",
	}))
	require.NoError(t, f.store.PutAccount(ctx, model.BankAccount{
		ID: "acct-2", Name: "Savings", Currency: "THB", CompanyID: "co-2",
	}))
	f.addLine(t, "line-1", "acct-1", "1500.00", day(2025, 3, 10))

	resp, body := f.do(t, http.MethodGet, "/coverage?company_id=co-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "acct-1", rows[0]["bank_account_id"])
	assert.Equal(t, float64(1), rows[0]["total_lines"])
	assert.Equal(t, float64(0), rows[0]["reconciled_percentage"])
}

func TestMissingFromBank(t *testing.T) {
	f := newFixture(t)
	f.provider.Add(model.SystemRecord{
		ID: "exp-1", Type: model.RecordExpense, Amount: dec("800.00"),
		Date: day(2025, 3, 12), Counterparty: "Office Rent Co", Currency: "THB",
	})
	f.provider.MarkSettled("exp-1")

	resp, body := f.do(t, http.MethodGet, "/missing-from-bank?to=2025-03-31", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "exp-1", rows[0]["record_id"])
	assert.Equal(t, float64(19), rows[0]["days_outstanding"])
}
