package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one parsed feed line before it becomes a stored BankFeedLine. The
// caller fills in IDs, account, and import audit fields.
type Row struct {
	TransactionDate time.Time
	ValueDate       time.Time
	Amount          decimal.Decimal // signed; positive = inflow
	Currency        string
	Description     string
	Reference       string
	RunningBalance  *decimal.Decimal
}

// GenericParser parses the normalized CSV export format:
// date,value_date,amount,currency,description,reference,balance.
type GenericParser struct{}

const (
	genericDateFormat = "2006-01-02"
	genericNumFields  = 7
	colDate           = 0
	colValueDate      = 1
	colAmount         = 2
	colCurrency       = 3
	colDesc           = 4
	colRef            = 5
	colBalance        = 6
)

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Parse reads the normalized CSV and returns rows.
func (p *GenericParser) Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = genericNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading feed CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var rows []Row
	for i, rec := range records[1:] {
		row, err := parseGenericRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseGenericRow(rec []string) (Row, error) {
	date, err := time.Parse(genericDateFormat, rec[colDate])
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", rec[colDate], err)
	}

	valueDate := date
	if rec[colValueDate] != "" {
		valueDate, err = time.Parse(genericDateFormat, rec[colValueDate])
		if err != nil {
			return Row{}, fmt.Errorf("parsing value date %q: %w", rec[colValueDate], err)
		}
	}

	amount, err := decimal.NewFromString(rec[colAmount])
	if err != nil {
		return Row{}, fmt.Errorf("parsing amount %q: %w", rec[colAmount], err)
	}

	var balance *decimal.Decimal
	if rec[colBalance] != "" {
		b, err := decimal.NewFromString(rec[colBalance])
		if err != nil {
			return Row{}, fmt.Errorf("parsing balance %q: %w", rec[colBalance], err)
		}
		balance = &b
	}

	return Row{
		TransactionDate: date,
		ValueDate:       valueDate,
		Amount:          amount,
		Currency:        rec[colCurrency],
		Description:     rec[colDesc],
		Reference:       rec[colRef],
		RunningBalance:  balance,
	}, nil
}
