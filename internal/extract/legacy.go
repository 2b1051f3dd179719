package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/richardlehane/mscfb"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

// minLegacyLetters is the least a legacy scan must recover to count as extracted text.
const minLegacyLetters = 20

const legacyRecommendation = "Convert the file to the modern format (%s) or to PDF for reliable extraction."

// LegacyDocumentExtractor makes a best-effort pass over Word 97-2003 files: it locates
// the WordDocument stream in the compound file and scans it for readable runs.
type LegacyDocumentExtractor struct {
	cfg    Config
	logger *slog.Logger
}

func NewLegacyDocumentExtractor(cfg Config, logger *slog.Logger) *LegacyDocumentExtractor {
	return &LegacyDocumentExtractor{cfg: cfg.withDefaults(), logger: orDefault(logger)}
}

func (x *LegacyDocumentExtractor) Extract(_ context.Context, in Input, rep progress.Reporter) (*Output, error) {
	rep = progress.OrNop(rep)
	rep.Report(10, "reading legacy document")

	source := "WordDocument"
	data, err := wordDocumentStream(in.File, x.cfg.MaxFileBytes)
	if err != nil {
		x.logger.Debug("no compound file stream, scanning whole file", "file", in.File.Name(), "error", err)
		source = "file"
		if data, err = readAll(in.File, x.cfg.MaxFileBytes); err != nil {
			return nil, err
		}
	}

	rep.Report(50, "scanning legacy document text")
	text, enc := bestScan(data)
	if letterCount(text) < minLegacyLetters {
		return explanatoryOutput(constants.FormatLegacyDocument), nil
	}
	return &Output{
		Text:       scrubNamespaces(text),
		Method:     constants.MethodLegacyDocScan,
		Confidence: ConfidenceLegacyScan,
		Metadata: map[string]any{
			"legacy":         true,
			"source":         source,
			"encoding":       enc,
			"recommendation": fmt.Sprintf(legacyRecommendation, ".docx"),
		},
	}, nil
}

// wordDocumentStream returns the WordDocument stream of a compound file.
func wordDocumentStream(f File, limit int64) ([]byte, error) {
	doc, err := mscfb.New(io.NewSectionReader(f, 0, f.Size()))
	if err != nil {
		return nil, err
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		if limit > 0 && entry.Size > limit {
			return nil, fmt.Errorf("WordDocument stream is %d bytes, limit is %d", entry.Size, limit)
		}
		return io.ReadAll(entry)
	}
	return nil, fmt.Errorf("WordDocument stream not found")
}

// LegacyExplainer answers legacy binary formats that are not parsed at all with a fixed,
// explanatory result.
type LegacyExplainer struct {
	format constants.Format
}

func NewLegacyExplainer(format constants.Format) *LegacyExplainer {
	return &LegacyExplainer{format: format}
}

func (x *LegacyExplainer) Extract(_ context.Context, _ Input, rep progress.Reporter) (*Output, error) {
	progress.OrNop(rep).Report(90, "legacy format detected")
	return explanatoryOutput(x.format), nil
}

var legacyNames = map[constants.Format]struct{ name, modern string }{
	constants.FormatLegacyDocument:    {"Word 97-2003 document (.doc)", ".docx"},
	constants.FormatLegacySlideDeck:   {"PowerPoint 97-2003 presentation (.ppt)", ".pptx"},
	constants.FormatLegacySpreadsheet: {"Excel 97-2003 workbook (.xls)", ".xlsx"},
}

// explanatoryOutput is deterministic for a given format.
func explanatoryOutput(format constants.Format) *Output {
	info, ok := legacyNames[format]
	if !ok {
		info.name, info.modern = "legacy file", "a modern format"
	}
	rec := fmt.Sprintf(legacyRecommendation, info.modern)
	return &Output{
		Text:       fmt.Sprintf("This file is a %s, a legacy binary format whose text cannot be extracted reliably. %s", info.name, rec),
		Method:     constants.MethodLegacyUnsupported,
		Confidence: ConfidenceExplanatory,
		Metadata: map[string]any{
			"legacy":         true,
			"explanatory":    true,
			"recommendation": rec,
		},
	}
}
