// Package ocr recognizes text in raster images. The default Engine shells out to the
// tesseract CLI; an in-process gosseract engine is available with the "ocr" build tag.
package ocr

import (
	"context"
	"strings"
	"time"

	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

// Engine recognizes text in a single image buffer.
type Engine interface {
	Recognize(ctx context.Context, img []byte, opts Options, rep progress.Reporter) (*Result, error)
}

// Options are per-call overrides. Zero values fall back to the engine Config.
type Options struct {
	Languages []string
}

// Box is a word bounding box in image pixels.
type Box struct {
	X, Y, W, H int
}

// Word is a single recognized word.
type Word struct {
	Text       string
	Confidence float64 // 0..1
	Box        Box
}

// Result is the outcome of recognizing one image.
type Result struct {
	Text       string
	Confidence float64 // mean word confidence, 0..1
	Words      []Word
	Width      int
	Height     int
	Duration   time.Duration
}

// Config configures the OCR engines.
type Config struct {
	Tesseract   string   // binary name or absolute path; if empty -> "tesseract"
	Languages   []string // default heb+eng
	TessdataDir string
	PSM         int // page segmentation mode, 0 = engine default
	OEM         int // 1 = LSTM; leave 0 to use default
	MaxPixels   int64
	Timeout     time.Duration // per image, 0 = none
	TempDir     string
}

func (c Config) withDefaults() Config {
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"heb", "eng"}
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = 60_000_000
	}
	return c
}

// LanguageArg joins languages the way tesseract expects them ("heb+eng").
func LanguageArg(langs []string) string {
	var parts []string
	for _, l := range langs {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "+")
}

// Progress stages shared by engines.
const (
	stageInit      = 0
	stageModels    = 10
	stageRecognize = 20
	stageAssemble  = 90
	stageDone      = 100
)
