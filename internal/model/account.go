package model

import "time"

// FeedStatus is the health of an account's bank feed, as reported by the
// feed-import collaborator.
type FeedStatus string

const (
	FeedActive FeedStatus = "active"
	FeedBroken FeedStatus = "broken"
	FeedManual FeedStatus = "manual"
)

// BankAccount is one reconcilable bank account.
type BankAccount struct {
	ID           string
	Name         string
	CompanyID    string
	CompanyName  string
	Currency     string
	FeedStatus   FeedStatus
	LastImportAt *time.Time
}
