package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SystemRecord is a read-only view of a ledger-side entity (receipt, expense,
// transfer, owner contribution). The ledger owns these; this engine only reads
// outstanding balances and writes match references against them.
type SystemRecord struct {
	ID           string
	Type         RecordType
	Amount       decimal.Decimal // unsigned outstanding amount
	Date         time.Time
	Reference    string
	Counterparty string
	Description  string
	ProjectID    string
	CompanyID    string
	Currency     string
}
