package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
)

// Rasterizer renders a single PDF page to a PNG image.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, page, dpi int) ([]byte, error)
}

// PdftoppmRasterizer renders pages with poppler's pdftoppm, one page per call.
type PdftoppmRasterizer struct {
	Bin     string
	TempDir string
	Runner  ocr.Runner
	Logger  *slog.Logger
}

func NewPdftoppmRasterizer(bin, tempDir string, runner ocr.Runner, logger *slog.Logger) *PdftoppmRasterizer {
	if bin == "" {
		bin = "pdftoppm"
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	return &PdftoppmRasterizer{Bin: bin, TempDir: tempDir, Runner: runner, Logger: orDefault(logger)}
}

func (p *PdftoppmRasterizer) Rasterize(ctx context.Context, pdfPath string, page, dpi int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp(p.TempDir, "dx-pp-*")
	if err != nil {
		return nil, fmt.Errorf("%w: temp dir: %v", common.ErrResourceExhausted, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			p.Logger.Warn("failed to remove temp dir", "path", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	n := strconv.Itoa(page)
	// pdftoppm -r 300 -f N -l N -png -singlefile <in.pdf> <tmp/page>
	_, errb, err := p.Runner.Run(ctx, p.Bin, p.Logger,
		"-r", strconv.Itoa(dpi), "-f", n, "-l", n, "-png", "-singlefile", pdfPath, prefix)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s not found", common.ErrEngineInit, p.Bin)
		}
		return nil, fmt.Errorf("%w: render page %d: %v: %s", common.ErrOCREngineFailure, page, err, ocr.Truncate(string(errb), 512))
	}
	img, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("%w: page %d rendered no image: %v", common.ErrOCREngineFailure, page, err)
	}
	return img, nil
}
