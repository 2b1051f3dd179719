package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
)

// ConvertHEIC converts a HEIC/HEIF buffer to PNG using the chosen converter.
// converter: "heif-convert" | "magick" | "sips"
func ConvertHEIC(ctx context.Context, r Runner, logger *slog.Logger, converter, tmpRoot string, data []byte) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tmpDir, err := os.MkdirTemp(tmpRoot, "dx-heic-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "image.heic")
	out := filepath.Join(tmpDir, "image.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	var errb []byte
	switch filepath.Base(converter) {
	case "heif-convert":
		_, errb, err = r.Run(ctx, converter, logger, in, out)
	case "magick", "convert":
		_, errb, err = r.Run(ctx, converter, logger, in, out)
	case "sips":
		_, errb, err = r.Run(ctx, converter, logger, "-s", "format", "png", in, "--out", out)
	default:
		return nil, fmt.Errorf("%w: HEIC not supported, set HEIC_CONVERTER_BIN to one of: heif-convert | magick | sips",
			common.ErrInvalidImage)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s failed: %v: %s", common.ErrInvalidImage, converter, err, Truncate(string(errb), 512))
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: HEIC conversion produced no output: %v", common.ErrInvalidImage, err)
	}
	return png, nil
}
