package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

const documentPart = "word/document.xml"

// DocumentExtractor reads word-processing containers (.docx).
type DocumentExtractor struct {
	cfg    Config
	images imageOCR
	logger *slog.Logger
}

func NewDocumentExtractor(cfg Config, engine ocr.Engine, logger *slog.Logger) *DocumentExtractor {
	logger = orDefault(logger)
	return &DocumentExtractor{cfg: cfg.withDefaults(), images: imageOCR{engine: engine, logger: logger}, logger: logger}
}

func (x *DocumentExtractor) Extract(ctx context.Context, in Input, rep progress.Reporter) (*Output, error) {
	rep = progress.OrNop(rep)
	rep.Report(5, "opening document container")
	c, err := openContainer(in.File, x.cfg.MaxPartBytes)
	if err != nil {
		return scanFallback(in, err, x.cfg, x.logger, rep)
	}
	data, err := c.read(documentPart)
	if err != nil {
		return scanFallback(in, err, x.cfg, x.logger, rep)
	}
	root, err := parseXML(data)
	if err != nil {
		return scanPartFallback(data, err, x.logger, rep)
	}

	rep.Report(25, "extracting paragraphs")
	v := newTextVisitor()
	v.visit(root)
	body := v.text()

	rels, err := c.relsFor(documentPart)
	if err != nil {
		x.logger.Warn("ignoring unreadable document relationships", "error", err)
	}
	parts := c.imageParts(rels, v.imageRefs)
	rep.Report(40, "recognizing embedded images")
	batch, err := x.images.recognize(ctx, c, parts, in.Options, progress.Scale(rep, 40, 95))
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(body)
	imagesText := scrubNamespaces(batch.text())
	if strings.TrimSpace(imagesText) != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[Images in this document contain:]\n")
		b.WriteString(imagesText)
	}

	method := constants.MethodDocumentXML
	conf := ConfidenceStructured
	if batch.processed > 0 {
		method = constants.MethodDocumentXMLOCR
		conf = blend(weighted{n: len(body), conf: ConfidenceStructured}, weighted{n: batch.chars, conf: batch.confidence})
	}
	rep.Report(95, "document text assembled")
	return &Output{
		Text:       b.String(),
		Method:     method,
		Confidence: conf,
		Metadata: map[string]any{
			"paragraphCount":  len(v.paragraphs),
			"textRuns":        v.runs,
			"imagesFound":     len(parts),
			"imagesProcessed": batch.processed,
			"imagesSkipped":   batch.skipped,
		},
	}, nil
}
