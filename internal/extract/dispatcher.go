package extract

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
)

// Deps are the collaborators shared by the extractors.
type Deps struct {
	Engine     ocr.Engine
	Runner     ocr.Runner
	Rasterizer Rasterizer
	OpenPDF    PDFOpener
}

// Dispatcher maps a format onto its extractor. Extractors are built once and are safe
// for concurrent use.
type Dispatcher struct {
	plain       *PlainTextExtractor
	spreadsheet *SpreadsheetExtractor
	document    *DocumentExtractor
	legacyDoc   *LegacyDocumentExtractor
	slides      *SlideDeckExtractor
	legacyPPT   *LegacyExplainer
	legacyXLS   *LegacyExplainer
	pdf         *PDFExtractor
	image       *ImageExtractor
}

func NewDispatcher(cfg Config, deps Deps, logger *slog.Logger) *Dispatcher {
	logger = orDefault(logger).With("component", "extract")
	if deps.Runner == nil {
		deps.Runner = ocr.ExecRunner{}
	}
	return &Dispatcher{
		plain:       NewPlainTextExtractor(cfg),
		spreadsheet: NewSpreadsheetExtractor(cfg, logger),
		document:    NewDocumentExtractor(cfg, deps.Engine, logger),
		legacyDoc:   NewLegacyDocumentExtractor(cfg, logger),
		slides:      NewSlideDeckExtractor(cfg, deps.Engine, logger),
		legacyPPT:   NewLegacyExplainer(constants.FormatLegacySlideDeck),
		legacyXLS:   NewLegacyExplainer(constants.FormatLegacySpreadsheet),
		pdf:         NewPDFExtractor(cfg, deps.Engine, deps.Rasterizer, deps.OpenPDF, deps.Runner, logger),
		image:       NewImageExtractor(cfg, deps.Engine, deps.Runner, logger),
	}
}

// For returns the extractor for format. It does no I/O.
func (d *Dispatcher) For(format constants.Format) (Extractor, error) {
	switch format {
	case constants.FormatPlainText:
		return d.plain, nil
	case constants.FormatSpreadsheet:
		return d.spreadsheet, nil
	case constants.FormatDocument:
		return d.document, nil
	case constants.FormatLegacyDocument:
		return d.legacyDoc, nil
	case constants.FormatSlideDeck:
		return d.slides, nil
	case constants.FormatLegacySlideDeck:
		return d.legacyPPT, nil
	case constants.FormatLegacySpreadsheet:
		return d.legacyXLS, nil
	case constants.FormatPDF:
		return d.pdf, nil
	case constants.FormatImage:
		return d.image, nil
	case constants.FormatUnsupported:
		return nil, common.ErrUnsupportedFormat
	}
	return nil, fmt.Errorf("%w: format %d", common.ErrUnsupportedFormat, int(format))
}
