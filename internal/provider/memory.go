package provider

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

// Memory is an in-process SystemRecordProvider backed by maps. Used by tests
// and by deployments that load a ledger snapshot from file at startup.
type Memory struct {
	mu      sync.RWMutex
	records map[string]model.SystemRecord
	settled map[string]bool
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]model.SystemRecord),
		settled: make(map[string]bool),
	}
}

// Add registers or replaces a record. The record's Amount is treated as its
// outstanding balance.
func (m *Memory) Add(rec model.SystemRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
}

// MarkSettled flags a record as paid/settled on the ledger side.
func (m *Memory) MarkSettled(recordID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled[recordID] = true
}

// ListUnmatchedRecords implements SystemRecordProvider.
func (m *Memory) ListUnmatchedRecords(_ context.Context, f Filter) ([]model.SystemRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.SystemRecord
	for _, rec := range m.records {
		if !rec.Amount.IsPositive() {
			continue
		}
		if !matches(rec, f) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListSettledRecords implements SystemRecordProvider.
func (m *Memory) ListSettledRecords(_ context.Context, f Filter) ([]model.SystemRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.SystemRecord
	for id, rec := range m.records {
		if !m.settled[id] {
			continue
		}
		if !matches(rec, f) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// RemainingAmount implements SystemRecordProvider.
func (m *Memory) RemainingAmount(_ context.Context, recordID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[recordID]
	if !ok {
		return decimal.Zero, ErrRecordNotFound
	}
	return rec.Amount, nil
}

func matches(rec model.SystemRecord, f Filter) bool {
	if f.Type != "" && rec.Type != f.Type {
		return false
	}
	if f.Currency != "" && rec.Currency != f.Currency {
		return false
	}
	if f.CompanyID != "" && rec.CompanyID != f.CompanyID {
		return false
	}
	if f.ProjectID != "" && rec.ProjectID != f.ProjectID {
		return false
	}
	return f.Range.Contains(rec.Date)
}
