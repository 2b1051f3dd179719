package extract

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

// SpreadsheetExtractor renders every sheet of a workbook as tab-delimited rows.
type SpreadsheetExtractor struct {
	cfg    Config
	logger *slog.Logger
}

func NewSpreadsheetExtractor(cfg Config, logger *slog.Logger) *SpreadsheetExtractor {
	return &SpreadsheetExtractor{cfg: cfg.withDefaults(), logger: orDefault(logger)}
}

func (x *SpreadsheetExtractor) Extract(ctx context.Context, in Input, rep progress.Reporter) (*Output, error) {
	rep = progress.OrNop(rep)
	rep.Report(5, "opening workbook")
	wb, err := excelize.OpenReader(io.NewSectionReader(in.File, 0, in.File.Size()), excelize.Options{
		UnzipSizeLimit:    x.cfg.MaxFileBytes,
		UnzipXMLSizeLimit: x.cfg.MaxPartBytes,
	})
	if err != nil {
		return scanFallback(in, err, x.cfg, x.logger, rep)
	}
	defer func() {
		if cerr := wb.Close(); cerr != nil {
			x.logger.Warn("failed to close workbook", "error", cerr)
		}
	}()

	sheets := wb.GetSheetList()
	var (
		b        strings.Builder
		rowCount int
	)
	for i, name := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := wb.GetRows(name)
		if err != nil {
			x.logger.Warn("skipping unreadable sheet", "sheet", name, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("=== Sheet: " + name + " ===")
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			b.WriteString("\n")
			b.WriteString(line)
			rowCount++
		}
		rep.Report(10+85*(i+1)/len(sheets), "read sheet "+name)
	}
	return &Output{
		Text:       b.String(),
		Method:     constants.MethodSpreadsheet,
		Confidence: ConfidenceSpreadsheet,
		Metadata: map[string]any{
			"sheetCount": len(sheets),
			"sheetNames": sheets,
			"rowCount":   rowCount,
		},
	}, nil
}
