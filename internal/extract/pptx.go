package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

// SlideDeckExtractor reads presentation containers (.pptx) slide by slide.
type SlideDeckExtractor struct {
	cfg    Config
	images imageOCR
	logger *slog.Logger
}

func NewSlideDeckExtractor(cfg Config, engine ocr.Engine, logger *slog.Logger) *SlideDeckExtractor {
	logger = orDefault(logger)
	return &SlideDeckExtractor{cfg: cfg.withDefaults(), images: imageOCR{engine: engine, logger: logger}, logger: logger}
}

func (x *SlideDeckExtractor) Extract(ctx context.Context, in Input, rep progress.Reporter) (*Output, error) {
	rep = progress.OrNop(rep)
	rep.Report(2, "opening presentation container")
	c, err := openContainer(in.File, x.cfg.MaxPartBytes)
	if err != nil {
		return scanFallback(in, err, x.cfg, x.logger, rep)
	}
	slides := c.slideParts()
	if len(slides) == 0 {
		return scanFallback(in, fmt.Errorf("%w: no slides found", common.ErrCorruptContainer), x.cfg, x.logger, rep)
	}

	var (
		b           strings.Builder
		imageConf   []weighted
		textChars   int
		processed   int
		skipped     int
		recovered   int
		emptySlides int
		totalRuns   int
	)
	n := len(slides)
	for i, part := range slides {
		lo, hi := 5+90*i/n, 5+90*(i+1)/n
		rep.Report(lo, fmt.Sprintf("reading slide %d of %d", i+1, n))

		data, err := c.read(part)
		if err != nil {
			x.logger.Warn("skipping unreadable slide", "slide", i+1, "error", err)
			recovered++
			continue
		}
		var slideText, imagesText string
		root, err := parseXML(data)
		if err != nil {
			x.logger.Warn("slide xml is malformed, scanning raw bytes", "slide", i+1, "error", err)
			slideText = scrubNamespaces(scanText(data))
			recovered++
		} else {
			v := newTextVisitor()
			v.visit(root)
			slideText = v.text()
			totalRuns += v.runs

			rels, err := c.relsFor(part)
			if err != nil {
				x.logger.Warn("ignoring unreadable slide relationships", "slide", i+1, "error", err)
			}
			batch, err := x.images.recognize(ctx, c, c.imageParts(rels, v.imageRefs), in.Options,
				progress.Scale(rep, lo, hi))
			if err != nil {
				return nil, fmt.Errorf("slide %d: %w", i+1, err)
			}
			processed += batch.processed
			skipped += batch.skipped
			imagesText = scrubNamespaces(batch.text())
			if batch.chars > 0 {
				imageConf = append(imageConf, weighted{n: batch.chars, conf: batch.confidence})
			}
		}

		if strings.TrimSpace(slideText) == "" && strings.TrimSpace(imagesText) == "" {
			emptySlides++
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Slide %d ---\n", i+1)
		if slideText != "" {
			b.WriteString(slideText)
			textChars += len(slideText)
		}
		if strings.TrimSpace(imagesText) != "" {
			if slideText != "" {
				b.WriteString("\n")
			}
			b.WriteString("[Images in this slide contain:]\n")
			b.WriteString(imagesText)
		}
	}

	method := constants.MethodSlideDeckXML
	conf := ConfidenceStructured
	if processed > 0 {
		method = constants.MethodSlideDeckXMLOCR
		conf = blend(append(imageConf, weighted{n: textChars, conf: ConfidenceStructured})...)
	}
	if recovered > 0 {
		conf = min(conf, ConfidenceLegacyScan)
	}
	rep.Report(95, "presentation text assembled")
	return &Output{
		Text:       b.String(),
		Method:     method,
		Confidence: conf,
		Metadata: map[string]any{
			"slideCount":      n,
			"emptySlides":     emptySlides,
			"textRuns":        totalRuns,
			"imagesProcessed": processed,
			"imagesSkipped":   skipped,
			"slidesRecovered": recovered,
		},
	}, nil
}
