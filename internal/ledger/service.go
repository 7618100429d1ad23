// Package ledger validates and persists match creation and removal against
// per-line amount invariants, and owns the match/ignore lifecycle.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
	"github.com/settled-dev/settled/internal/provider"
	"github.com/settled-dev/settled/internal/status"
	"github.com/settled-dev/settled/internal/store"
	"github.com/settled-dev/settled/internal/suggest"
)

// Auditor receives a record of every successful mutation.
type Auditor interface {
	Mutation(action, actor, lineID, matchID, details string)
}

// Service is the match ledger. All mutations on a given line are serialized
// through a per-line mutex, and the amount invariant is re-validated inside
// that scope immediately before committing.
type Service struct {
	store    store.Store
	provider provider.SystemRecordProvider
	cfg      suggest.Config
	auditor  Auditor
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithAuditor attaches a mutation audit sink.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(st store.Store, prov provider.SystemRecordProvider, cfg suggest.Config, opts ...Option) *Service {
	s := &Service{
		store:    st,
		provider: prov,
		cfg:      cfg,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockLine acquires the exclusive per-line scope and returns its release.
func (s *Service) lockLine(lineID string) func() {
	s.mu.Lock()
	m, ok := s.locks[lineID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[lineID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (s *Service) audit(action, actor, lineID, matchID, details string) {
	if s.auditor != nil {
		s.auditor.Mutation(action, actor, lineID, matchID, details)
	}
}

// CreateMatchParams describes one match creation.
type CreateMatchParams struct {
	LineID     string
	RecordID   string
	RecordType model.RecordType
	Amount     decimal.Decimal
	Actor      string
	Method     model.MatchMethod
}

// CreateMatch appends a match to the line, recomputes its status, and returns
// the updated line.
func (s *Service) CreateMatch(ctx context.Context, p CreateMatchParams) (*model.BankFeedLine, error) {
	return s.createMatch(ctx, p, false)
}

func (s *Service) createMatch(ctx context.Context, p CreateMatchParams, clamp bool) (*model.BankFeedLine, error) {
	if !p.Amount.IsPositive() {
		return nil, &ValidationError{Msg: fmt.Sprintf("matched amount must be positive, got %s", p.Amount)}
	}
	if p.Method == "" {
		p.Method = model.MethodManual
	}

	unlock := s.lockLine(p.LineID)
	defer unlock()

	line, err := s.store.GetLine(ctx, p.LineID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Kind: "line", ID: p.LineID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading line: %w", err)
	}
	if line.Ignored() {
		return nil, &AlreadyIgnoredError{LineID: line.ID}
	}

	if _, err := s.provider.RemainingAmount(ctx, p.RecordID); err != nil {
		if errors.Is(err, provider.ErrRecordNotFound) {
			return nil, &NotFoundError{Kind: "record", ID: p.RecordID}
		}
		return nil, fmt.Errorf("checking record %s: %w", p.RecordID, err)
	}

	// Invariant check under the line lock: two racing creates cannot both
	// pass a stale remaining-amount read.
	remaining := line.Remaining()
	amount := p.Amount
	if clamp && amount.GreaterThan(remaining) {
		amount = remaining
	}
	if amount.GreaterThan(remaining) {
		return nil, &OverMatchError{LineID: line.ID, Requested: amount, Remaining: remaining}
	}
	if !amount.IsPositive() {
		return nil, &OverMatchError{LineID: line.ID, Requested: amount, Remaining: remaining}
	}

	match := model.BankMatch{
		ID:            uuid.NewString(),
		LineID:        line.ID,
		RecordID:      p.RecordID,
		RecordType:    p.RecordType,
		MatchedAmount: amount,
		MatchedBy:     p.Actor,
		MatchedAt:     s.now().UTC(),
		Method:        p.Method,
	}
	line.Matches = append(line.Matches, match)
	line.Status = status.ForLine(line)

	if err := s.store.UpdateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("committing match: %w", err)
	}
	s.audit("create_match", p.Actor, line.ID, match.ID,
		fmt.Sprintf("%s %s %s", p.RecordType, p.RecordID, amount.StringFixed(2)))
	return line, nil
}

// RemoveMatch deletes a match and recomputes the line's status. Always
// permitted: bookkeeping mistakes must stay correctable.
func (s *Service) RemoveMatch(ctx context.Context, matchID, actor string) (*model.BankFeedLine, error) {
	lineID, err := s.store.LineIDForMatch(ctx, matchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Kind: "match", ID: matchID}
	}
	if err != nil {
		return nil, fmt.Errorf("resolving match: %w", err)
	}

	unlock := s.lockLine(lineID)
	defer unlock()

	line, err := s.store.GetLine(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("loading line: %w", err)
	}

	kept := line.Matches[:0]
	found := false
	for _, m := range line.Matches {
		if m.ID == matchID {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	if !found {
		// Removed concurrently between the resolve and the lock.
		return nil, &NotFoundError{Kind: "match", ID: matchID}
	}
	line.Matches = kept
	line.Status = status.ForLine(line)

	if err := s.store.UpdateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("committing removal: %w", err)
	}
	s.audit("remove_match", actor, line.ID, matchID, "")
	return line, nil
}

// AcceptSuggestion creates a match from a suggestion, clamping the matched
// amount to the line's remaining amount.
func (s *Service) AcceptSuggestion(ctx context.Context, lineID string, sug model.SuggestedMatch, actor string) (*model.BankFeedLine, error) {
	return s.createMatch(ctx, CreateMatchParams{
		LineID:     lineID,
		RecordID:   sug.RecordID,
		RecordType: sug.RecordType,
		Amount:     sug.Amount,
		Actor:      actor,
		Method:     model.MethodSuggested,
	}, true)
}

// QuickMatch accepts the single highest-scoring suggestion when its score
// clears the auto-accept threshold; otherwise it mutates nothing.
func (s *Service) QuickMatch(ctx context.Context, lineID, actor string) (*model.BankFeedLine, error) {
	suggestions, err := s.Suggestions(ctx, lineID)
	if err != nil {
		return nil, err
	}
	best := suggest.Best(suggestions)
	if best < s.cfg.AutoAcceptScore {
		return nil, &NoConfidentMatchError{LineID: lineID, BestScore: best, Threshold: s.cfg.AutoAcceptScore}
	}

	line, err := s.createMatch(ctx, CreateMatchParams{
		LineID:     lineID,
		RecordID:   suggestions[0].RecordID,
		RecordType: suggestions[0].RecordType,
		Amount:     suggestions[0].Amount,
		Actor:      actor,
		Method:     model.MethodQuick,
	}, true)
	if err != nil {
		return nil, err
	}
	return line, nil
}

// Ignore marks a line as deliberately unreconciled. Only permitted while the
// line has zero matches.
func (s *Service) Ignore(ctx context.Context, lineID, actor, reason string) (*model.BankFeedLine, error) {
	unlock := s.lockLine(lineID)
	defer unlock()

	line, err := s.store.GetLine(ctx, lineID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Kind: "line", ID: lineID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading line: %w", err)
	}
	if line.Ignored() {
		return nil, &AlreadyIgnoredError{LineID: line.ID}
	}
	if len(line.Matches) > 0 {
		return nil, &HasMatchesError{LineID: line.ID, Matches: len(line.Matches)}
	}

	at := s.now().UTC()
	line.IgnoredAt = &at
	line.IgnoredBy = actor
	line.IgnoreReason = reason
	line.Status = status.ForLine(line)

	if err := s.store.UpdateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("committing ignore: %w", err)
	}
	s.audit("ignore", actor, line.ID, "", reason)
	return line, nil
}

// Unignore clears the ignore audit fields; the status recomputes to whatever
// the matches-only derivation yields.
func (s *Service) Unignore(ctx context.Context, lineID, actor string) (*model.BankFeedLine, error) {
	unlock := s.lockLine(lineID)
	defer unlock()

	line, err := s.store.GetLine(ctx, lineID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Kind: "line", ID: lineID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading line: %w", err)
	}

	line.IgnoredAt = nil
	line.IgnoredBy = ""
	line.IgnoreReason = ""
	line.Status = status.ForLine(line)

	if err := s.store.UpdateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("committing unignore: %w", err)
	}
	s.audit("unignore", actor, line.ID, "", "")
	return line, nil
}

// Suggestions generates ranked candidate matches for one line from the
// ledger's current unmatched records. Read-only; safe to call concurrently
// with mutations on other lines.
func (s *Service) Suggestions(ctx context.Context, lineID string) ([]model.SuggestedMatch, error) {
	line, err := s.store.GetLine(ctx, lineID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Kind: "line", ID: lineID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading line: %w", err)
	}
	if line.Ignored() || !line.Remaining().IsPositive() {
		return nil, nil
	}

	window := time.Duration(s.cfg.DateWindowDays) * 24 * time.Hour
	candidates, err := s.provider.ListUnmatchedRecords(ctx, provider.Filter{
		Currency: line.Currency,
		Range: model.DateRange{
			From: line.TransactionDate.Add(-window),
			To:   line.TransactionDate.Add(window),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("listing candidate records: %w", err)
	}
	return suggest.Generate(line, candidates, s.cfg), nil
}

// ListLines exposes the line listing to UI and reporting layers.
func (s *Service) ListLines(ctx context.Context, f store.ListFilter) ([]*model.BankFeedLine, error) {
	return s.store.ListLines(ctx, f)
}

// Rescore walks an account's open lines, regenerates suggestions, and caches
// each line's best score for classification. Lines are processed and
// committed independently, so cancellation mid-batch leaves every processed
// line valid.
func (s *Service) Rescore(ctx context.Context, accountID string, r model.DateRange) (int, error) {
	lines, err := s.store.ListLines(ctx, store.ListFilter{AccountID: accountID, Range: r})
	if err != nil {
		return 0, fmt.Errorf("listing lines: %w", err)
	}

	done := 0
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if line.Ignored() || !line.Remaining().IsPositive() {
			continue
		}

		suggestions, err := s.Suggestions(ctx, line.ID)
		if err != nil {
			return done, err
		}
		best := suggest.Best(suggestions)

		unlock := s.lockLine(line.ID)
		current, err := s.store.GetLine(ctx, line.ID)
		if err == nil {
			current.ConfidenceScore = best
			err = s.store.UpdateLine(ctx, current)
		}
		unlock()
		if err != nil {
			return done, fmt.Errorf("caching score for line %s: %w", line.ID, err)
		}
		done++
	}
	return done, nil
}
