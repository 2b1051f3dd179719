//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

// GosseractEngine runs tesseract in-process through gosseract. A client is not safe for
// concurrent use, so calls are serialized.
type GosseractEngine struct {
	mu     sync.Mutex
	cfg    Config
	client *gosseract.Client
	logger *slog.Logger
}

// NewGosseractEngine creates an in-process engine. Close releases the tesseract handle.
func NewGosseractEngine(cfg Config, logger *slog.Logger) *GosseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	client := gosseract.NewClient()
	if cfg.TessdataDir != "" {
		client.TessdataPrefix = cfg.TessdataDir
	}
	return &GosseractEngine{cfg: cfg, client: client, logger: logger}
}

func (e *GosseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}

func (e *GosseractEngine) Recognize(ctx context.Context, img []byte, opts Options, rep progress.Reporter) (*Result, error) {
	rep = progress.OrNop(rep)
	start := time.Now()
	rep.Report(stageInit, "initializing OCR engine")

	info, err := Inspect(img, e.cfg.MaxPixels)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	langs := opts.Languages
	if len(langs) == 0 {
		langs = e.cfg.Languages
	}
	rep.Report(stageModels, "loading language models: "+LanguageArg(langs))
	if err := e.client.SetLanguage(langs...); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEngineInit, err)
	}
	if e.cfg.PSM > 0 {
		if err := e.client.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrEngineInit, err)
		}
	}
	if err := e.client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidImage, err)
	}

	rep.Report(stageRecognize, "recognizing text")
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, classifyGosseract(err)
	}

	rep.Report(stageAssemble, "assembling recognized words")
	res := &Result{Width: info.Width, Height: info.Height}
	var (
		b   strings.Builder
		sum float64
	)
	prevBlock, prevLine := -1, -1
	for _, bx := range boxes {
		word := strings.TrimSpace(bx.Word)
		if word == "" {
			continue
		}
		switch {
		case prevBlock == -1:
		case bx.BlockNum != prevBlock:
			b.WriteString("\n\n")
		case bx.LineNum != prevLine:
			b.WriteString("\n")
		default:
			b.WriteString(" ")
		}
		b.WriteString(word)
		prevBlock, prevLine = bx.BlockNum, bx.LineNum

		conf := bx.Confidence / 100
		res.Words = append(res.Words, Word{
			Text:       word,
			Confidence: conf,
			Box: Box{
				X: bx.Box.Min.X, Y: bx.Box.Min.Y,
				W: bx.Box.Dx(), H: bx.Box.Dy(),
			},
		})
		sum += conf
	}
	res.Text = b.String()
	if len(res.Words) > 0 {
		res.Confidence = sum / float64(len(res.Words))
	}
	res.Duration = time.Since(start)
	rep.Report(stageDone, "recognition complete")
	return res, nil
}

func classifyGosseract(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "memory"):
		return fmt.Errorf("%w: %v", common.ErrResourceExhausted, err)
	case strings.Contains(msg, "init"), strings.Contains(msg, "language"):
		return fmt.Errorf("%w: %v", common.ErrEngineInit, err)
	}
	return fmt.Errorf("%w: %v", common.ErrOCREngineFailure, err)
}
