// Package export renders batch extraction outcomes as an XLSX workbook.
package export

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-extractor/internal/entity"
)

const SheetName = "Extractions"

// Row is one file of a batch run. Result is nil when the file failed.
type Row struct {
	Path   string
	Result *entity.ExtractionResult
	Err    error
}

var headers = []string{
	"File Path",
	"Status",
	"Method",
	"Confidence",
	"Language",
	"Characters",
	"Duration (ms)",
	"Preview / Error",
}

// ReportXLSX returns a workbook with one row per batch entry.
func ReportXLSX(rows []Row, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	failed := 0
	for i, r := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		write(1, r.Path)
		if r.Err != nil || r.Result == nil {
			failed++
			write(2, "FAILED")
			msg := "no result"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			write(8, truncate(msg, 140))
			continue
		}
		write(2, "COMPLETED")
		write(3, r.Result.Method)
		write(4, r.Result.Confidence)
		write(5, string(r.Result.Language))
		write(6, utf8.RuneCountInString(r.Result.Text))
		write(7, r.Result.ProcessingDurationMs)
		write(8, truncate(r.Result.Text, 140))
	}

	_ = f.SetColWidth(SheetName, "A", "A", 60) // path
	_ = f.SetColWidth(SheetName, "B", "E", 14)
	_ = f.SetColWidth(SheetName, "F", "G", 12)
	_ = f.SetColWidth(SheetName, "H", "H", 80) // preview

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
