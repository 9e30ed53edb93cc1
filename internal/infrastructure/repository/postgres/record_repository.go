package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

const schemaLockKey int64 = 2026101901

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS aaer_records (
	identifier TEXT NOT NULL,
	url TEXT NOT NULL,
	company_name TEXT NOT NULL,
	ticker TEXT NOT NULL DEFAULT '',
	itmo_section TEXT NOT NULL DEFAULT '',
	contains_harm_flag BOOLEAN NOT NULL DEFAULT FALSE,
	year_start INTEGER,
	month_start INTEGER,
	year_end INTEGER,
	month_end INTEGER,
	scraped_flag BOOLEAN NOT NULL DEFAULT TRUE,
	processed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (identifier, url)
);

CREATE INDEX IF NOT EXISTS idx_aaer_records_processed_at ON aaer_records(processed_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert fully replaces the row stored under the record key.
func (r *RecordRepository) Upsert(ctx context.Context, record domain.ExtractionRecord) error {
	if record.Identifier == "" || record.URL == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert record", errors.New("identifier and url are required"))
	}
	processedAt := record.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO aaer_records (
	identifier, url, company_name, ticker, itmo_section, contains_harm_flag,
	year_start, month_start, year_end, month_end, scraped_flag, processed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (identifier, url) DO UPDATE SET
	company_name = EXCLUDED.company_name,
	ticker = EXCLUDED.ticker,
	itmo_section = EXCLUDED.itmo_section,
	contains_harm_flag = EXCLUDED.contains_harm_flag,
	year_start = EXCLUDED.year_start,
	month_start = EXCLUDED.month_start,
	year_end = EXCLUDED.year_end,
	month_end = EXCLUDED.month_end,
	scraped_flag = EXCLUDED.scraped_flag,
	processed_at = EXCLUDED.processed_at
`,
		record.Identifier, record.URL, record.CompanyName, record.Ticker, record.ITMOSection, record.ContainsHarm,
		nullInt(record.YearStart), nullInt(record.MonthStart), nullInt(record.YearEnd), nullInt(record.MonthEnd),
		record.Scraped, processedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (r *RecordRepository) Get(ctx context.Context, key domain.RecordKey) (*domain.ExtractionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT identifier, url, company_name, ticker, itmo_section, contains_harm_flag,
	year_start, month_start, year_end, month_end, scraped_flag, processed_at
FROM aaer_records
WHERE identifier = $1 AND url = $2
`, key.Identifier, key.URL)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("identifier=%s url=%s", key.Identifier, key.URL))
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &record, nil
}

func (r *RecordRepository) List(ctx context.Context) ([]domain.ExtractionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT identifier, url, company_name, ticker, itmo_section, contains_harm_flag,
	year_start, month_start, year_end, month_end, scraped_flag, processed_at
FROM aaer_records
ORDER BY processed_at DESC, identifier, url
`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ExtractionRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (domain.ExtractionRecord, error) {
	var record domain.ExtractionRecord
	var yearStart, monthStart, yearEnd, monthEnd sql.NullInt64
	err := row.Scan(
		&record.Identifier,
		&record.URL,
		&record.CompanyName,
		&record.Ticker,
		&record.ITMOSection,
		&record.ContainsHarm,
		&yearStart,
		&monthStart,
		&yearEnd,
		&monthEnd,
		&record.Scraped,
		&record.ProcessedAt,
	)
	if err != nil {
		return domain.ExtractionRecord{}, err
	}
	record.YearStart = intFromNull(yearStart)
	record.MonthStart = intFromNull(monthStart)
	record.YearEnd = intFromNull(yearEnd)
	record.MonthEnd = intFromNull(monthEnd)
	return record, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
