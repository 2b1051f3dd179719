package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/joseph-ayodele/doc-extractor/internal/cache"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
)

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(common.LogConfig{Level: slog.LevelInfo, Format: "json"}, &buf).Info("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("json output = %q", buf.String())
	}
	buf.Reset()
	NewLogger(common.LogConfig{Level: slog.LevelWarn, Format: "text"}, &buf).Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
}

func TestConfigMapping(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.Extraction.SparseCharsPerPage = 12
	cfg.OCR.DPI = 200
	cfg.Cache.Coalesce = true

	if got := ExtractConfig(cfg); got.SparseCharsPerPage != 12 || got.DPI != 200 {
		t.Fatalf("ExtractConfig = %+v", got)
	}
	if got := PipelineConfig(cfg); !got.Coalesce || got.ProgressBuffer != cfg.Jobs.ProgressBuffer {
		t.Fatalf("PipelineConfig = %+v", got)
	}
	if got := OCRConfig(cfg); got.Tesseract != cfg.OCR.TesseractBin {
		t.Fatalf("OCRConfig = %+v", got)
	}
	if got := DatabaseConfig(cfg); got.DSN != cfg.Database.DSN || got.MaxConns != cfg.Database.MaxConns {
		t.Fatalf("DatabaseConfig = %+v", got)
	}
}

func TestNewCacheSelectsBackend(t *testing.T) {
	ctx := context.Background()
	cfg := common.LoadConfig()
	cfg.Cache.RedisAddr = ""

	c, closeFn, err := NewCache(ctx, cfg, slog.Default())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if _, ok := c.(*cache.MemoryCache); !ok {
		t.Fatalf("cache = %T, want *cache.MemoryCache", c)
	}
	_ = closeFn()

	mr := miniredis.RunT(t)
	cfg.Cache.RedisAddr = mr.Addr()
	c, closeFn, err = NewCache(ctx, cfg, slog.Default())
	if err != nil {
		t.Fatalf("NewCache(redis): %v", err)
	}
	defer func() { _ = closeFn() }()
	if _, ok := c.(*cache.RedisCache); !ok {
		t.Fatalf("cache = %T, want *cache.RedisCache", c)
	}
}
