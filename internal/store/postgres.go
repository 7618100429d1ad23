package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against url and pings it.
func Connect(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

// Migrate applies the embedded schema. Idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

const lineColumns = `id, bank_account_id, currency, transaction_date, value_date, amount,
	description, reference, running_balance, status, confidence_score,
	imported_at, imported_by, import_source, ignored_at, ignored_by,
	ignore_reason, notes, attachments`

// PutLine implements Store.
func (p *Postgres) PutLine(ctx context.Context, line *model.BankFeedLine) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO lines (`+lineColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, line.ID, line.BankAccountID, line.Currency, line.TransactionDate, line.ValueDate,
		line.Amount, line.Description, line.Reference, nullDecimal(line.RunningBalance),
		line.Status, line.ConfidenceScore, line.ImportedAt, line.ImportedBy,
		line.ImportSource, line.IgnoredAt, line.IgnoredBy, line.IgnoreReason,
		line.Notes, textArray(line.Attachments))
	if err != nil {
		return fmt.Errorf("inserting line: %w", err)
	}
	return nil
}

// GetLine implements Store.
func (p *Postgres) GetLine(ctx context.Context, id string) (*model.BankFeedLine, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+lineColumns+` FROM lines WHERE id = $1`, id)
	line, err := scanLine(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading line: %w", err)
	}
	if err := p.loadMatches(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateLine implements Store. The mutable fields and the full match set are
// replaced in a single transaction.
func (p *Postgres) UpdateLine(ctx context.Context, line *model.BankFeedLine) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE lines SET status=$2, confidence_score=$3, ignored_at=$4,
			ignored_by=$5, ignore_reason=$6, notes=$7, attachments=$8
		WHERE id=$1
	`, line.ID, line.Status, line.ConfidenceScore, line.IgnoredAt,
		line.IgnoredBy, line.IgnoreReason, line.Notes, textArray(line.Attachments))
	if err != nil {
		return fmt.Errorf("updating line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrNotFound
		return err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM line_matches WHERE line_id=$1`, line.ID); err != nil {
		return fmt.Errorf("clearing matches: %w", err)
	}
	for _, m := range line.Matches {
		if _, err = tx.Exec(ctx, `
			INSERT INTO line_matches (id, line_id, record_id, record_type, matched_amount, matched_by, matched_at, method)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, m.ID, m.LineID, m.RecordID, m.RecordType, m.MatchedAmount, m.MatchedBy, m.MatchedAt, m.Method); err != nil {
			return fmt.Errorf("inserting match: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}
	return nil
}

// ListLines implements Store.
func (p *Postgres) ListLines(ctx context.Context, f ListFilter) ([]*model.BankFeedLine, error) {
	query := `SELECT ` + lineColumns + ` FROM lines WHERE 1=1`
	var args []any
	if f.AccountID != "" {
		args = append(args, f.AccountID)
		query += fmt.Sprintf(" AND bank_account_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.Range.From.IsZero() {
		args = append(args, f.Range.From)
		query += fmt.Sprintf(" AND transaction_date >= $%d", len(args))
	}
	if !f.Range.To.IsZero() {
		args = append(args, f.Range.To)
		query += fmt.Sprintf(" AND transaction_date <= $%d", len(args))
	}
	query += " ORDER BY transaction_date, id"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing lines: %w", err)
	}
	defer rows.Close()

	var out []*model.BankFeedLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing lines: %w", err)
	}
	for _, line := range out {
		if err := p.loadMatches(ctx, line); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LineIDForMatch implements Store.
func (p *Postgres) LineIDForMatch(ctx context.Context, matchID string) (string, error) {
	var lineID string
	err := p.pool.QueryRow(ctx, `SELECT line_id FROM line_matches WHERE id = $1`, matchID).Scan(&lineID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving match: %w", err)
	}
	return lineID, nil
}

// ListMatches implements Store.
func (p *Postgres) ListMatches(ctx context.Context, r model.DateRange) ([]model.BankMatch, error) {
	query := `
		SELECT m.id, m.line_id, m.record_id, m.record_type, m.matched_amount, m.matched_by, m.matched_at, m.method
		FROM line_matches m JOIN lines l ON l.id = m.line_id
		WHERE 1=1`
	var args []any
	if !r.From.IsZero() {
		args = append(args, r.From)
		query += fmt.Sprintf(" AND l.transaction_date >= $%d", len(args))
	}
	if !r.To.IsZero() {
		args = append(args, r.To)
		query += fmt.Sprintf(" AND l.transaction_date <= $%d", len(args))
	}
	query += " ORDER BY m.id"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	var out []model.BankMatch
	for rows.Next() {
		var m model.BankMatch
		if err := rows.Scan(&m.ID, &m.LineID, &m.RecordID, &m.RecordType,
			&m.MatchedAmount, &m.MatchedBy, &m.MatchedAt, &m.Method); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PutAccount implements Store.
func (p *Postgres) PutAccount(ctx context.Context, acct model.BankAccount) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO accounts (id, name, company_id, company_name, currency, feed_status, last_import_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, company_id=EXCLUDED.company_id,
			company_name=EXCLUDED.company_name, currency=EXCLUDED.currency,
			feed_status=EXCLUDED.feed_status, last_import_at=EXCLUDED.last_import_at
	`, acct.ID, acct.Name, acct.CompanyID, acct.CompanyName, acct.Currency, acct.FeedStatus, acct.LastImportAt)
	if err != nil {
		return fmt.Errorf("upserting account: %w", err)
	}
	return nil
}

// GetAccount implements Store.
func (p *Postgres) GetAccount(ctx context.Context, id string) (model.BankAccount, error) {
	var acct model.BankAccount
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, company_id, company_name, currency, feed_status, last_import_at
		FROM accounts WHERE id = $1
	`, id).Scan(&acct.ID, &acct.Name, &acct.CompanyID, &acct.CompanyName,
		&acct.Currency, &acct.FeedStatus, &acct.LastImportAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BankAccount{}, ErrNotFound
	}
	if err != nil {
		return model.BankAccount{}, fmt.Errorf("reading account: %w", err)
	}
	return acct, nil
}

// ListAccounts implements Store.
func (p *Postgres) ListAccounts(ctx context.Context) ([]model.BankAccount, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, company_id, company_name, currency, feed_status, last_import_at
		FROM accounts ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var out []model.BankAccount
	for rows.Next() {
		var acct model.BankAccount
		if err := rows.Scan(&acct.ID, &acct.Name, &acct.CompanyID, &acct.CompanyName,
			&acct.Currency, &acct.FeedStatus, &acct.LastImportAt); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (p *Postgres) loadMatches(ctx context.Context, line *model.BankFeedLine) error {
	rows, err := p.pool.Query(ctx, `
		SELECT id, line_id, record_id, record_type, matched_amount, matched_by, matched_at, method
		FROM line_matches WHERE line_id = $1 ORDER BY matched_at, id
	`, line.ID)
	if err != nil {
		return fmt.Errorf("loading matches: %w", err)
	}
	defer rows.Close()

	line.Matches = nil
	for rows.Next() {
		var m model.BankMatch
		if err := rows.Scan(&m.ID, &m.LineID, &m.RecordID, &m.RecordType,
			&m.MatchedAmount, &m.MatchedBy, &m.MatchedAt, &m.Method); err != nil {
			return fmt.Errorf("scanning match: %w", err)
		}
		line.Matches = append(line.Matches, m)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(row rowScanner) (*model.BankFeedLine, error) {
	var line model.BankFeedLine
	var running decimal.NullDecimal
	err := row.Scan(&line.ID, &line.BankAccountID, &line.Currency,
		&line.TransactionDate, &line.ValueDate, &line.Amount,
		&line.Description, &line.Reference, &running, &line.Status,
		&line.ConfidenceScore, &line.ImportedAt, &line.ImportedBy,
		&line.ImportSource, &line.IgnoredAt, &line.IgnoredBy,
		&line.IgnoreReason, &line.Notes, &line.Attachments)
	if err != nil {
		return nil, err
	}
	if running.Valid {
		line.RunningBalance = &running.Decimal
	}
	return &line, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// textArray coalesces a nil slice to an empty one: pgx encodes nil as SQL
// NULL, which the NOT NULL attachments column rejects.
func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
