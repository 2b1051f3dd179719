// Package app turns a common.Config into the wired components both binaries share.
package app

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/doc-extractor/internal/cache"
	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/extract"
	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
	"github.com/joseph-ayodele/doc-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/doc-extractor/internal/repository"
)

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func NewLogger(cfg common.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// DatabaseConfig maps the environment onto connection settings.
func DatabaseConfig(cfg *common.Config) repo.Config {
	return repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}
}

// OCRConfig maps the environment onto engine settings.
func OCRConfig(cfg *common.Config) ocr.Config {
	return ocr.Config{
		Tesseract:   cfg.OCR.TesseractBin,
		Languages:   cfg.OCR.Languages,
		TessdataDir: cfg.OCR.TessdataDir,
		PSM:         cfg.OCR.PSM,
		MaxPixels:   cfg.OCR.MaxPixels,
		Timeout:     cfg.OCR.Timeout,
		TempDir:     cfg.Extraction.TempDir,
	}
}

// ExtractConfig maps the environment onto extractor settings.
func ExtractConfig(cfg *common.Config) extract.Config {
	return extract.Config{
		MinTextChars:       cfg.Extraction.MinTextChars,
		SparseCharsPerPage: cfg.Extraction.SparseCharsPerPage,
		MaxPages:           cfg.Extraction.MaxPages,
		DPI:                cfg.OCR.DPI,
		TempDir:            cfg.Extraction.TempDir,
		HeicConverter:      cfg.OCR.HeicConverter,
		Pdftotext:          cfg.OCR.PdftotextBin,
	}
}

// PipelineConfig maps the environment onto orchestrator settings.
func PipelineConfig(cfg *common.Config) pipeline.Config {
	return pipeline.Config{
		Languages:      cfg.OCR.Languages,
		ProgressBuffer: cfg.Jobs.ProgressBuffer,
		JobTimeout:     cfg.Jobs.Timeout,
		Coalesce:       cfg.Cache.Coalesce,
		TempDir:        cfg.Extraction.TempDir,
	}
}

// NewDispatcher wires the OCR engine, rasterizer and extractors. The returned close
// func releases the engine and is never nil.
func NewDispatcher(cfg *common.Config, logger *slog.Logger) (*extract.Dispatcher, func() error) {
	runner := ocr.ExecRunner{}
	engine, closeEngine := ocr.NewDefaultEngine(OCRConfig(cfg), runner, logger.With("component", "ocr"))
	raster := extract.NewPdftoppmRasterizer(cfg.OCR.PdftoppmBin, cfg.Extraction.TempDir, runner, logger)
	d := extract.NewDispatcher(ExtractConfig(cfg), extract.Deps{
		Engine:     engine,
		Runner:     runner,
		Rasterizer: raster,
	}, logger)
	return d, closeEngine
}

// NewCache returns a redis cache when REDIS_ADDR is set, otherwise an in-memory one.
// The returned close func is never nil.
func NewCache(ctx context.Context, cfg *common.Config, logger *slog.Logger) (cache.Cache, func() error, error) {
	if cfg.Cache.RedisAddr == "" {
		logger.Info("using in-memory result cache", "ttl", cfg.Cache.TTL)
		return cache.NewMemoryCache(cfg.Cache.TTL, nil), func() error { return nil }, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	logger.Info("using redis result cache", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	return cache.NewRedisCache(client, cfg.Cache.TTL, nil, logger), client.Close, nil
}
