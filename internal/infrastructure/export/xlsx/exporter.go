package xlsx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

const (
	sheetName = "Records"
	// Excel rejects cells longer than this.
	maxCellChars = 32767
)

type RecordLister interface {
	List(ctx context.Context) ([]domain.ExtractionRecord, error)
}

// Exporter renders persisted extraction records as an XLSX workbook.
type Exporter struct {
	records RecordLister
	logger  *slog.Logger
}

func NewExporter(records RecordLister, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{records: records, logger: logger}
}

func (e *Exporter) Export(ctx context.Context) ([]byte, error) {
	start := time.Now()

	recs, err := e.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{
		"CIK",
		"Ticker",
		"Company",
		"URL",
		"Significant Harm",
		"Fraud Start",
		"Fraud End",
		"Processed At",
		"In The Matter Of",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		write(1, r.Identifier)
		write(2, r.Ticker)
		write(3, r.CompanyName)
		write(4, r.URL)
		write(5, r.ContainsHarm)
		if period, ok := r.Period(); ok {
			write(6, fmt.Sprintf("%04d-%02d", period.YearStart, period.MonthStart))
			write(7, fmt.Sprintf("%04d-%02d", period.YearEnd, period.MonthEnd))
		}
		if !r.ProcessedAt.IsZero() {
			write(8, r.ProcessedAt.UTC().Format(time.RFC3339))
		}
		write(9, truncate(r.ITMOSection, maxCellChars))
	}

	_ = f.SetColWidth(sheetName, "A", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "C", 32)
	_ = f.SetColWidth(sheetName, "D", "D", 60)
	_ = f.SetColWidth(sheetName, "E", "G", 14)
	_ = f.SetColWidth(sheetName, "H", "H", 22)
	_ = f.SetColWidth(sheetName, "I", "I", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("export_xlsx_completed",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
