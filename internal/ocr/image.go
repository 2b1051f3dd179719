package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
)

// ImageInfo describes an image buffer before it reaches the engine.
type ImageInfo struct {
	Format string
	Width  int // 0 when the header could not be decoded locally
	Height int
}

// Inspect validates an image buffer. Empty or unrecognizable buffers fail with
// ErrInvalidImage and images above maxPixels fail with ErrResourceExhausted.
func Inspect(data []byte, maxPixels int64) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, fmt.Errorf("%w: empty buffer", common.ErrInvalidImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return ImageInfo{}, fmt.Errorf("%w: %s has no pixels", common.ErrInvalidImage, format)
		}
		if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
			return ImageInfo{}, fmt.Errorf("%w: %dx%d exceeds %d pixels",
				common.ErrResourceExhausted, cfg.Width, cfg.Height, maxPixels)
		}
		return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
	}
	if f := sniff(data); f != "" {
		return ImageInfo{Format: f}, nil
	}
	return ImageInfo{}, fmt.Errorf("%w: unrecognized image data", common.ErrInvalidImage)
}

// sniff recognizes raster formats tesseract reads but the standard decoders do not.
func sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return "tiff"
	case bytes.HasPrefix(data, []byte("BM")) && len(data) > 26:
		return "bmp"
	case len(data) > 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	case IsHEIC(data):
		return "heic"
	}
	return ""
}

// IsHEIC reports whether data starts with an ISO-BMFF ftyp box of a HEIF brand.
func IsHEIC(data []byte) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heim", "heis", "hevc", "hevx", "mif1", "msf1":
		return true
	}
	return false
}

// Extension returns the file extension for an inspected format.
func (i ImageInfo) Extension() string {
	switch i.Format {
	case "jpeg":
		return ".jpg"
	case "":
		return ".img"
	}
	return "." + i.Format
}
