//go:build !ocr

package ocr

import "log/slog"

// NewDefaultEngine returns the engine this binary was built with: the tesseract CLI.
// The returned close func is never nil.
func NewDefaultEngine(cfg Config, runner Runner, logger *slog.Logger) (Engine, func() error) {
	return NewTesseractEngine(cfg, runner, logger), func() error { return nil }
}
