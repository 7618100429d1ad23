package provider

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

// RecordsHeader is the CSV header for a ledger record snapshot.
const RecordsHeader = "id,type,amount,date,reference,counterparty,description,company_id,project_id,currency,settled"

const (
	recNumFields   = 11
	recDateFormat  = "2006-01-02"
	recColID       = 0
	recColType     = 1
	recColAmount   = 2
	recColDate     = 3
	recColRef      = 4
	recColCparty   = 5
	recColDesc     = 6
	recColCompany  = 7
	recColProject  = 8
	recColCurrency = 9
	recColSettled  = 10
)

// ReadRecordsCSV loads a ledger record snapshot into a memory provider. Rows
// with settled=true are marked settled for the missing-from-bank report.
func ReadRecordsCSV(r io.Reader) (*Memory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = recNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading records CSV: %w", err)
	}

	m := NewMemory()
	if len(records) <= 1 {
		return m, nil
	}

	for i, rec := range records[1:] {
		sr, settled, err := unmarshalRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		m.Add(sr)
		if settled {
			m.MarkSettled(sr.ID)
		}
	}
	return m, nil
}

func unmarshalRecord(rec []string) (model.SystemRecord, bool, error) {
	amount, err := decimal.NewFromString(rec[recColAmount])
	if err != nil {
		return model.SystemRecord{}, false, fmt.Errorf("parsing amount %q: %w", rec[recColAmount], err)
	}

	date, err := time.Parse(recDateFormat, rec[recColDate])
	if err != nil {
		return model.SystemRecord{}, false, fmt.Errorf("parsing date %q: %w", rec[recColDate], err)
	}

	return model.SystemRecord{
		ID:           rec[recColID],
		Type:         model.RecordType(rec[recColType]),
		Amount:       amount,
		Date:         date,
		Reference:    rec[recColRef],
		Counterparty: rec[recColCparty],
		Description:  rec[recColDesc],
		CompanyID:    rec[recColCompany],
		ProjectID:    rec[recColProject],
		Currency:     rec[recColCurrency],
	}, rec[recColSettled] == "true", nil
}
