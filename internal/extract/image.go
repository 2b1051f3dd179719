package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

// lowConfidenceWord marks words worth a second look.
const lowConfidenceWord = 0.6

// ImageExtractor OCRs standalone raster images. HEIC/HEIF photos are converted to PNG
// first. Images have no text layer, so the requested method does not change anything.
type ImageExtractor struct {
	cfg    Config
	engine ocr.Engine
	runner ocr.Runner
	logger *slog.Logger
}

func NewImageExtractor(cfg Config, engine ocr.Engine, runner ocr.Runner, logger *slog.Logger) *ImageExtractor {
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	return &ImageExtractor{cfg: cfg.withDefaults(), engine: engine, runner: runner, logger: orDefault(logger)}
}

func (x *ImageExtractor) Extract(ctx context.Context, in Input, rep progress.Reporter) (*Output, error) {
	rep = progress.OrNop(rep)
	if x.engine == nil {
		return nil, fmt.Errorf("%w: no OCR engine configured", common.ErrEngineInit)
	}
	data, err := readAll(in.File, x.cfg.MaxFileBytes)
	if err != nil {
		return nil, err
	}
	converted := false
	if ocr.IsHEIC(data) {
		rep.Report(2, "converting HEIC image")
		if data, err = ocr.ConvertHEIC(ctx, x.runner, x.logger, x.cfg.HeicConverter, x.cfg.TempDir, data); err != nil {
			return nil, err
		}
		converted = true
	}

	res, err := x.engine.Recognize(ctx, data, ocr.Options{Languages: in.Options.Languages}, progress.Scale(rep, 5, 95))
	if err != nil {
		return nil, err
	}
	low := 0
	for _, w := range res.Words {
		if w.Confidence < lowConfidenceWord {
			low++
		}
	}
	x.logger.Debug("image recognized",
		"file", in.File.Name(), "words", len(res.Words), "confidence", res.Confidence, "duration_ms", res.Duration.Milliseconds())
	return &Output{
		Text:       res.Text,
		Method:     constants.MethodImageOCR,
		Confidence: res.Confidence,
		Metadata: map[string]any{
			"imagesProcessed":    1,
			"wordCount":          len(res.Words),
			"lowConfidenceWords": low,
			"width":              res.Width,
			"height":             res.Height,
			"convertedFromHeic":  converted,
		},
	}, nil
}
