// Package extract turns an uploaded file into text. Each supported format family has one
// Extractor; the Dispatcher picks it from the closed constants.Format set.
package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

// Options are per-job switches derived from the requested method.
type Options struct {
	ForceOCR   bool
	DisableOCR bool
	Languages  []string
}

// OptionsFor maps a requested method ("auto", "ocr", "text") onto extractor options.
func OptionsFor(requested string, languages []string) Options {
	o := Options{Languages: languages}
	switch requested {
	case constants.RequestOCR:
		o.ForceOCR = true
	case constants.RequestText:
		o.DisableOCR = true
	}
	return o
}

// Input is everything an extractor may look at.
type Input struct {
	File     File
	MIMEType string
	Format   constants.Format
	Options  Options
}

// Output is the raw extraction before post-processing and language detection.
type Output struct {
	Text       string
	Method     string
	Confidence float64
	Metadata   map[string]any
}

// Extractor extracts text from one format family. Implementations report progress in
// the 0..100 range and never touch the network.
type Extractor interface {
	Extract(ctx context.Context, in Input, rep progress.Reporter) (*Output, error)
}

// Confidence constants for non-OCR strategies.
const (
	ConfidenceLossless    = 1.0
	ConfidenceStructured  = 0.96
	ConfidenceSpreadsheet = 0.95
	ConfidencePDFText     = 0.95
	ConfidenceLegacyScan  = 0.6
	ConfidenceByteScan    = 0.3
	ConfidenceExplanatory = 0.05
)

// Config tunes the extractors.
type Config struct {
	MinTextChars       int     // below this a PDF text layer needs OCR
	SparseCharsPerPage float64 // below this average a PDF text layer needs OCR
	MaxPages           int     // OCR page cap, 0 = no limit
	DPI                int
	TempDir            string
	HeicConverter      string
	Pdftotext          string // text-layer fallback when the PDF parser gives up
	MaxFileBytes       int64 // files read fully into memory are capped at this size
	MaxPartBytes       int64 // uncompressed size cap for one container part
}

func (c Config) withDefaults() Config {
	if c.MinTextChars <= 0 {
		c.MinTextChars = 100
	}
	if c.SparseCharsPerPage < 0 {
		c.SparseCharsPerPage = 0
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.HeicConverter == "" {
		c.HeicConverter = "magick"
	}
	if c.Pdftotext == "" {
		c.Pdftotext = "pdftotext"
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = 256 << 20
	}
	if c.MaxPartBytes <= 0 {
		c.MaxPartBytes = 64 << 20
	}
	return c
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// weighted is a text source with its length and confidence.
type weighted struct {
	n    int
	conf float64
}

// blend returns the length-weighted confidence of several text sources.
func blend(parts ...weighted) float64 {
	var total, sum float64
	for _, p := range parts {
		if p.n <= 0 {
			continue
		}
		total += float64(p.n)
		sum += float64(p.n) * p.conf
	}
	if total == 0 {
		return 0
	}
	return clamp01(sum / total)
}
