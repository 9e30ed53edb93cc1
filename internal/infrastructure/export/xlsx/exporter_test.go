package xlsx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

type listerFake struct {
	records []domain.ExtractionRecord
	err     error
}

func (l listerFake) List(context.Context) ([]domain.ExtractionRecord, error) {
	return l.records, l.err
}

func TestExportWritesOneRowPerRecord(t *testing.T) {
	withPeriod := domain.ExtractionRecord{
		Identifier:   "0001234",
		Ticker:       "ACM",
		CompanyName:  "ACME CORP",
		URL:          "https://example.test/a.pdf",
		ContainsHarm: true,
		ITMOSection:  "In the Matter of ACME CORP.",
		ProcessedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	withPeriod.SetPeriod(domain.FraudPeriod{YearStart: 2015, MonthStart: 1, YearEnd: 2016, MonthEnd: 3})
	withoutPeriod := domain.ExtractionRecord{Identifier: "0005678", CompanyName: "WIDGET INC", URL: "b"}

	exporter := NewExporter(listerFake{records: []domain.ExtractionRecord{withPeriod, withoutPeriod}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	data, err := exporter.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "CIK" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "0001234" || rows[1][5] != "2015-01" || rows[1][6] != "2016-03" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}

	start, err := f.GetCellValue(sheetName, "F3")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if start != "" {
		t.Fatalf("expected empty period for unset record, got %q", start)
	}
}

func TestExportPropagatesListError(t *testing.T) {
	exporter := NewExporter(listerFake{err: errors.New("down")}, nil)
	if _, err := exporter.Export(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	if got := truncate(strings.Repeat("é", 5), 3); got != "ééé" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("truncate() = %q", got)
	}
}
