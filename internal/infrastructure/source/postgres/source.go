package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SourceRepository reads the upstream AAER table. The table is expected to
// carry a monotonically increasing id, the document url, the respondents line
// and a boolean scraped flag.
type SourceRepository struct {
	db    *sql.DB
	table string
}

func NewSourceRepository(db *sql.DB, table string) (*SourceRepository, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "source table", fmt.Errorf("invalid table name %q", table))
	}
	return &SourceRepository{db: db, table: table}, nil
}

// ListPending returns unscraped rows, newest first.
func (r *SourceRepository) ListPending(ctx context.Context) ([]domain.SourceDocument, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id::text, url, COALESCE(respondents, '')
FROM %s
WHERE scraped = FALSE
ORDER BY id DESC
`, r.table))
	if err != nil {
		return nil, fmt.Errorf("list pending documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SourceDocument, 0)
	for rows.Next() {
		var doc domain.SourceDocument
		if err := rows.Scan(&doc.ID, &doc.URL, &doc.Respondents); err != nil {
			return nil, fmt.Errorf("scan source document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source documents: %w", err)
	}
	return out, nil
}

func (r *SourceRepository) GetByURL(ctx context.Context, url string) (*domain.SourceDocument, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT id::text, url, COALESCE(respondents, '')
FROM %s
WHERE url = $1
ORDER BY id DESC
LIMIT 1
`, r.table), url)

	var doc domain.SourceDocument
	if err := row.Scan(&doc.ID, &doc.URL, &doc.Respondents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get source document", fmt.Errorf("url=%s", url))
		}
		return nil, fmt.Errorf("get source document: %w", err)
	}
	return &doc, nil
}

func (r *SourceRepository) MarkScraped(ctx context.Context, url string) error {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET scraped = TRUE WHERE url = $1`, r.table), url)
	if err != nil {
		return fmt.Errorf("mark scraped: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark scraped rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "mark scraped", fmt.Errorf("url=%s", url))
	}
	return nil
}
