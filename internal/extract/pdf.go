package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

const imagesHeader = "=== Text extracted from images ==="

// Reasons recorded in the ocrReason metadata field.
const (
	reasonForced       = "forced"
	reasonDisabled     = "disabled"
	reasonInsufficient = "insufficient-text"
	reasonSparse       = "sparse-text"
	reasonImages       = "embedded-images"
	reasonNone         = "text-layer-sufficient"
)

// PDFExtractor reads the text layer of a PDF and, when that layer is missing, thin or
// accompanied by images, OCRs the rasterized pages one at a time.
type PDFExtractor struct {
	cfg    Config
	engine ocr.Engine
	raster Rasterizer
	open   PDFOpener
	runner ocr.Runner
	logger *slog.Logger
}

// NewPDFExtractor wires the extractor. A nil opener uses OpenPDF; a nil runner uses
// ocr.ExecRunner.
func NewPDFExtractor(cfg Config, engine ocr.Engine, raster Rasterizer, open PDFOpener, runner ocr.Runner, logger *slog.Logger) *PDFExtractor {
	if open == nil {
		open = OpenPDF
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	return &PDFExtractor{
		cfg:    cfg.withDefaults(),
		engine: engine,
		raster: raster,
		open:   open,
		runner: runner,
		logger: orDefault(logger),
	}
}

// spooler materializes the PDF on disk at most once.
type spooler struct {
	f       File
	tmpDir  string
	path    string
	cleanup func()
}

func (s *spooler) get() (string, error) {
	if s.path != "" {
		return s.path, nil
	}
	path, cleanup, err := spool(s.f, s.tmpDir, "dx-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("spool pdf: %w", err)
	}
	s.path, s.cleanup = path, cleanup
	return path, nil
}

func (s *spooler) release() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func (x *PDFExtractor) Extract(ctx context.Context, in Input, rep progress.Reporter) (*Output, error) {
	rep = progress.OrNop(rep)
	log := x.logger.With("file", in.File.Name())
	sp := &spooler{f: in.File, tmpDir: x.cfg.TempDir}
	defer sp.release()

	rep.Report(5, "analyzing PDF structure")
	doc, source, err := x.openDocument(ctx, in.File, sp, log)
	if err != nil {
		return nil, err
	}

	pageCount := doc.NumPages()
	textRep := progress.Scale(rep, 5, 30)
	var (
		pageTexts []string
		hasImages bool
		pageErrs  int
	)
	for n := 1; n <= pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := doc.PageText(n)
		if err != nil {
			log.Debug("no text layer on page", "page", n, "error", err)
			pageErrs++
		}
		if t = strings.TrimSpace(t); t != "" {
			pageTexts = append(pageTexts, t)
		}
		if doc.PageHasImages(n) {
			hasImages = true
		}
		textRep.Report(100*n/pageCount, "reading text layer")
	}
	standard := strings.Join(pageTexts, "\n\n")
	standardLen := utf8.RuneCountInString(standard)

	reason, needOCR := x.needsOCR(in.Options, standardLen, pageCount, hasImages)
	log.Debug("pdf text layer analyzed",
		"pages", pageCount, "chars", standardLen, "has_images", hasImages, "ocr", needOCR, "reason", reason)

	subMethods := []string{source}
	var (
		ocrSections []string
		ocrWeights  []weighted
		processed   int
		skipped     int
		truncated   bool
	)
	if needOCR && (x.engine == nil || x.raster == nil) {
		log.Warn("pdf needs OCR but no engine is configured", "reason", reason)
		needOCR = false
	}
	if needOCR {
		subMethods = append(subMethods, "ocr")
		path, err := sp.get()
		if err != nil {
			return nil, err
		}
		limit := pageCount
		if x.cfg.MaxPages > 0 && limit > x.cfg.MaxPages {
			limit, truncated = x.cfg.MaxPages, true
			log.Info("capping OCR page count", "pages", pageCount, "max_pages", x.cfg.MaxPages)
		}
		for n := 1; n <= limit; n++ {
			sub := progress.Scale(rep, 30+65*(n-1)/limit, 30+65*n/limit)
			sub.Report(0, "rendering page "+strconv.Itoa(n))
			img, err := x.raster.Rasterize(ctx, path, n, x.cfg.DPI)
			if err != nil {
				return nil, err
			}
			res, err := x.engine.Recognize(ctx, img, ocr.Options{Languages: in.Options.Languages}, sub)
			if errors.Is(err, common.ErrInvalidImage) {
				log.Warn("skipping page the engine cannot read", "page", n, "error", err)
				skipped++
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", n, err)
			}
			processed++
			if t := strings.TrimSpace(res.Text); t != "" {
				ocrSections = append(ocrSections, "--- Page "+strconv.Itoa(n)+" ---\n"+t)
				ocrWeights = append(ocrWeights, weighted{n: utf8.RuneCountInString(t), conf: res.Confidence})
			}
		}
	}
	ocrText := strings.Join(ocrSections, "\n\n")

	var (
		text   string
		method string
		conf   float64
	)
	switch {
	case standard != "" && ocrText != "":
		text = standard + "\n\n" + imagesHeader + "\n" + ocrText
		method = constants.MethodPDFTextOCR
		conf = blend(append([]weighted{{n: standardLen, conf: ConfidencePDFText}}, ocrWeights...)...)
	case ocrText != "":
		text = imagesHeader + "\n" + ocrText
		method = constants.MethodPDFOCR
		conf = blend(ocrWeights...)
	case standard != "":
		text = standard
		method = constants.MethodPDFText
		conf = ConfidencePDFText
	case needOCR:
		method = constants.MethodPDFOCR
	default:
		method = constants.MethodPDFText
	}
	rep.Report(95, "PDF text assembled")

	return &Output{
		Text:       text,
		Method:     method,
		Confidence: conf,
		Metadata: map[string]any{
			"pageCount":          pageCount,
			"standardTextLength": standardLen,
			"ocrTextLength":      utf8.RuneCountInString(ocrText),
			"imagesProcessed":    processed,
			"imagesSkipped":      skipped,
			"hasImages":          hasImages,
			"ocrReason":          reason,
			"textSource":         source,
			"pagesTruncated":     truncated,
			"pagesWithoutText":   pageErrs,
			"subMethods":         subMethods,
		},
	}, nil
}

// openDocument tries the in-process parser first and pdftotext second.
func (x *PDFExtractor) openDocument(ctx context.Context, f File, sp *spooler, log *slog.Logger) (PDFDocument, string, error) {
	doc, err := x.open(f)
	if err == nil {
		return doc, "pdf-parser", nil
	}
	log.Warn("pdf parser failed, trying pdftotext", "error", err)
	path, spErr := sp.get()
	if spErr != nil {
		return nil, "", spErr
	}
	pages, ptErr := pdftotextPages(ctx, x.runner, log, x.cfg.Pdftotext, path)
	if ptErr != nil || len(pages) == 0 {
		if ptErr == nil {
			ptErr = fmt.Errorf("no pages")
		}
		return nil, "", fmt.Errorf("%w: %s: parser: %v; pdftotext: %v", common.ErrCorruptContainer, f.Name(), err, ptErr)
	}
	return pages, "pdftotext", nil
}

func (x *PDFExtractor) needsOCR(opts Options, chars, pages int, hasImages bool) (string, bool) {
	switch {
	case opts.DisableOCR:
		return reasonDisabled, false
	case opts.ForceOCR:
		return reasonForced, true
	case chars < x.cfg.MinTextChars:
		return reasonInsufficient, true
	case pages > 0 && x.cfg.SparseCharsPerPage > 0 && float64(chars)/float64(pages) < x.cfg.SparseCharsPerPage:
		return reasonSparse, true
	case hasImages:
		return reasonImages, true
	}
	return reasonNone, false
}
