package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

// TesseractEngine runs the tesseract CLI in TSV mode, which yields text, word boxes and
// per-word confidence in a single pass.
type TesseractEngine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// NewTesseractEngine creates an engine; a nil runner uses ExecRunner.
func NewTesseractEngine(cfg Config, runner Runner, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &TesseractEngine{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

func (e *TesseractEngine) Recognize(ctx context.Context, img []byte, opts Options, rep progress.Reporter) (*Result, error) {
	rep = progress.OrNop(rep)
	start := time.Now()
	rep.Report(stageInit, "initializing OCR engine")

	info, err := Inspect(img, e.cfg.MaxPixels)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "dx-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("%w: temp dir: %v", common.ErrEngineInit, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", rmErr)
		}
	}()
	in := filepath.Join(tmpDir, "image"+info.Extension())
	if err := os.WriteFile(in, img, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write image: %v", common.ErrResourceExhausted, err)
	}

	langs := opts.Languages
	if len(langs) == 0 {
		langs = e.cfg.Languages
	}
	rep.Report(stageModels, "loading language models: "+LanguageArg(langs))

	args := []string{in, "stdout", "-l", LanguageArg(langs)}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	runCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	rep.Report(stageRecognize, "recognizing text")
	out, errb, err := e.runner.Run(runCtx, e.cfg.Tesseract, e.logger, args...)
	if err != nil {
		return nil, classifyTesseract(err, errb)
	}

	rep.Report(stageAssemble, "assembling recognized words")
	res := parseTSV(string(out))
	if res.Width == 0 {
		res.Width, res.Height = info.Width, info.Height
	}
	res.Duration = time.Since(start)
	rep.Report(stageDone, "recognition complete")

	e.logger.Debug("ocr complete",
		"format", info.Format,
		"words", len(res.Words),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// classifyTesseract maps a failed tesseract run onto the OCR error taxonomy.
func classifyTesseract(err error, stderr []byte) error {
	msg := strings.ToLower(string(stderr))
	detail := Truncate(strings.TrimSpace(string(stderr)), 512)
	if detail == "" {
		detail = err.Error()
	}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: tesseract binary not found: %v", common.ErrEngineInit, err)
	case strings.Contains(msg, "failed loading language"),
		strings.Contains(msg, "error opening data file"),
		strings.Contains(msg, "could not initialize tesseract"):
		return fmt.Errorf("%w: %s", common.ErrEngineInit, detail)
	case strings.Contains(msg, "out of memory"),
		strings.Contains(msg, "bad_alloc"),
		strings.Contains(msg, "too large"),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", common.ErrResourceExhausted, detail)
	case strings.Contains(msg, "cannot be read"),
		strings.Contains(msg, "unsupported image"),
		strings.Contains(msg, "pixreadstream"),
		strings.Contains(msg, "image file") && strings.Contains(msg, "read"):
		return fmt.Errorf("%w: %s", common.ErrInvalidImage, detail)
	case errors.As(err, &exitErr) && !exitErr.Exited():
		// killed by a signal, most often the OOM killer
		return fmt.Errorf("%w: %s", common.ErrResourceExhausted, detail)
	}
	return fmt.Errorf("%w: tesseract: %s", common.ErrOCREngineFailure, detail)
}
