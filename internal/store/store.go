// Package store persists bank feed lines, their matches, and the bank
// account registry. A line and its matches form one aggregate: they are read
// and written together.
package store

import (
	"context"
	"errors"

	"github.com/settled-dev/settled/internal/model"
)

// ErrNotFound is returned for unknown line, match, or account IDs.
var ErrNotFound = errors.New("not found")

// ListFilter narrows a line listing. Zero values leave that dimension open.
type ListFilter struct {
	AccountID string
	Range     model.DateRange
	Status    model.LineStatus
}

// Store is the persistence surface for the reconciliation engine.
type Store interface {
	// PutLine inserts a new line aggregate.
	PutLine(ctx context.Context, line *model.BankFeedLine) error

	// GetLine returns the line aggregate, or ErrNotFound.
	GetLine(ctx context.Context, id string) (*model.BankFeedLine, error)

	// UpdateLine replaces the line's mutable fields and its full match set
	// in one atomic write.
	UpdateLine(ctx context.Context, line *model.BankFeedLine) error

	// ListLines returns matching lines ordered by transaction date then ID.
	ListLines(ctx context.Context, f ListFilter) ([]*model.BankFeedLine, error)

	// LineIDForMatch resolves a match ID to its owning line.
	LineIDForMatch(ctx context.Context, matchID string) (string, error)

	// ListMatches returns all matches whose owning line's transaction date
	// falls in the range.
	ListMatches(ctx context.Context, r model.DateRange) ([]model.BankMatch, error)

	// PutAccount inserts or replaces a bank account.
	PutAccount(ctx context.Context, acct model.BankAccount) error

	// GetAccount returns an account, or ErrNotFound.
	GetAccount(ctx context.Context, id string) (model.BankAccount, error)

	// ListAccounts returns all accounts ordered by ID.
	ListAccounts(ctx context.Context) ([]model.BankAccount, error)
}
