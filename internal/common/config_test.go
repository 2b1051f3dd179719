package common

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("OCR_LANGUAGES", "heb+eng,ara")
	t.Setenv("PDF_SPARSE_CHARS_PER_PAGE", "12.5")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("CACHE_COALESCE", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OCR_DPI", "not-a-number")

	cfg := LoadConfig()
	if got := len(cfg.OCR.Languages); got != 3 {
		t.Fatalf("languages = %v, want 3 entries", cfg.OCR.Languages)
	}
	if cfg.Extraction.SparseCharsPerPage != 12.5 {
		t.Fatalf("sparse threshold = %v, want 12.5", cfg.Extraction.SparseCharsPerPage)
	}
	if cfg.Cache.TTL != 90*time.Second || !cfg.Cache.Coalesce {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if cfg.Log.Level != slog.LevelDebug {
		t.Fatalf("log level = %v, want debug", cfg.Log.Level)
	}
	if cfg.OCR.DPI != 300 {
		t.Fatalf("dpi = %d, want default 300 on parse error", cfg.OCR.DPI)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"asynq without redis": func(c *Config) { c.Jobs.QueueBackend = "asynq"; c.Cache.RedisAddr = "" },
		"unknown backend":     func(c *Config) { c.Jobs.QueueBackend = "kafka" },
		"zero ttl":            func(c *Config) { c.Cache.TTL = 0 },
		"dpi":                 func(c *Config) { c.OCR.DPI = 10 },
		"no languages":        func(c *Config) { c.OCR.Languages = nil },
	}
	for name, mutate := range cases {
		cfg := LoadConfig()
		mutate(cfg)
		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: Validate() = %v, want ErrInvalidInput", name, err)
		}
	}
}
