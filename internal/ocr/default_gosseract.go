//go:build ocr

package ocr

import "log/slog"

// NewDefaultEngine returns the engine this binary was built with: in-process gosseract.
// The returned close func is never nil.
func NewDefaultEngine(cfg Config, _ Runner, logger *slog.Logger) (Engine, func() error) {
	e := NewGosseractEngine(cfg, logger)
	return e, e.Close
}
