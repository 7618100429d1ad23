package store

import (
	"context"
	"sort"
	"sync"

	"github.com/settled-dev/settled/internal/model"
)

// Memory is an in-process Store backed by maps. Aggregates are deep-copied on
// the way in and out so callers can never mutate stored state directly.
type Memory struct {
	mu        sync.RWMutex
	lines     map[string]*model.BankFeedLine
	matchLine map[string]string // match ID -> line ID
	accounts  map[string]model.BankAccount
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		lines:     make(map[string]*model.BankFeedLine),
		matchLine: make(map[string]string),
		accounts:  make(map[string]model.BankAccount),
	}
}

// PutLine implements Store.
func (m *Memory) PutLine(_ context.Context, line *model.BankFeedLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLine(line)
	return nil
}

// GetLine implements Store.
func (m *Memory) GetLine(_ context.Context, id string) (*model.BankFeedLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	line, ok := m.lines[id]
	if !ok {
		return nil, ErrNotFound
	}
	return line.Clone(), nil
}

// UpdateLine implements Store.
func (m *Memory) UpdateLine(_ context.Context, line *model.BankFeedLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.lines[line.ID]
	if !ok {
		return ErrNotFound
	}
	for _, match := range old.Matches {
		delete(m.matchLine, match.ID)
	}
	m.setLine(line)
	return nil
}

func (m *Memory) setLine(line *model.BankFeedLine) {
	clone := line.Clone()
	m.lines[clone.ID] = clone
	for _, match := range clone.Matches {
		m.matchLine[match.ID] = clone.ID
	}
}

// ListLines implements Store.
func (m *Memory) ListLines(_ context.Context, f ListFilter) ([]*model.BankFeedLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.BankFeedLine
	for _, line := range m.lines {
		if f.AccountID != "" && line.BankAccountID != f.AccountID {
			continue
		}
		if f.Status != "" && line.Status != f.Status {
			continue
		}
		if !f.Range.Contains(line.TransactionDate) {
			continue
		}
		out = append(out, line.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// LineIDForMatch implements Store.
func (m *Memory) LineIDForMatch(_ context.Context, matchID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lineID, ok := m.matchLine[matchID]
	if !ok {
		return "", ErrNotFound
	}
	return lineID, nil
}

// ListMatches implements Store.
func (m *Memory) ListMatches(_ context.Context, r model.DateRange) ([]model.BankMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.BankMatch
	for _, line := range m.lines {
		if !r.Contains(line.TransactionDate) {
			continue
		}
		out = append(out, line.Matches...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutAccount implements Store.
func (m *Memory) PutAccount(_ context.Context, acct model.BankAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acct.ID] = acct
	return nil
}

// GetAccount implements Store.
func (m *Memory) GetAccount(_ context.Context, id string) (model.BankAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.accounts[id]
	if !ok {
		return model.BankAccount{}, ErrNotFound
	}
	return acct, nil
}

// ListAccounts implements Store.
func (m *Memory) ListAccounts(_ context.Context) ([]model.BankAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.BankAccount, 0, len(m.accounts))
	for _, acct := range m.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
