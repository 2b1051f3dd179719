package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	OCR        OCRConfig
	Extraction ExtractionConfig
	Cache      CacheConfig
	Jobs       JobsConfig
	Log        LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string
	MaxUploadBytes int
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TesseractBin  string
	PdftoppmBin   string
	PdftotextBin  string
	HeicConverter string
	TessdataDir   string
	Languages     []string
	PSM           int
	DPI           int
	MaxPixels     int64
	Timeout       time.Duration
}

// ExtractionConfig tunes the format extractors.
type ExtractionConfig struct {
	MinTextChars       int
	SparseCharsPerPage float64
	MaxPages           int
	TempDir            string
}

// CacheConfig selects and tunes the result cache.
type CacheConfig struct {
	TTL           time.Duration
	Coalesce      bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// JobsConfig controls background job execution.
type JobsConfig struct {
	QueueBackend   string
	Timeout        time.Duration
	MaxConcurrent  int
	ProgressBuffer int
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  slog.Level
	Format string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:extraction.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:       getEnv("GRPC_ADDR", ":8080"),
			MaxUploadBytes: getEnvAsInt("GRPC_MAX_UPLOAD_BYTES", 64<<20),
		},
		OCR: OCRConfig{
			TesseractBin:  getEnv("TESSERACT_BIN", "tesseract"),
			PdftoppmBin:   getEnv("PDFTOPPM_BIN", "pdftoppm"),
			PdftotextBin:  getEnv("PDFTOTEXT_BIN", "pdftotext"),
			HeicConverter: getEnv("HEIC_CONVERTER_BIN", "magick"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			Languages:     getEnvAsList("OCR_LANGUAGES", []string{"heb", "eng"}),
			PSM:           getEnvAsInt("OCR_PSM", 3),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPixels:     getEnvAsInt64("OCR_MAX_PIXELS", 60_000_000),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 2*time.Minute),
		},
		Extraction: ExtractionConfig{
			MinTextChars:       getEnvAsInt("PDF_MIN_TEXT_CHARS", 100),
			SparseCharsPerPage: getEnvAsFloat64("PDF_SPARSE_CHARS_PER_PAGE", 50),
			MaxPages:           getEnvAsInt("PDF_MAX_PAGES", 200),
			TempDir:            getEnv("EXTRACT_TEMP_DIR", ""),
		},
		Cache: CacheConfig{
			TTL:           getEnvAsDuration("CACHE_TTL", 10*time.Minute),
			Coalesce:      getEnvAsBool("CACHE_COALESCE", false),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Jobs: JobsConfig{
			QueueBackend:   getEnv("QUEUE_BACKEND", "local"),
			Timeout:        getEnvAsDuration("JOB_TIMEOUT", 30*time.Minute),
			MaxConcurrent:  getEnvAsInt("JOB_MAX_CONCURRENT", 0),
			ProgressBuffer: getEnvAsInt("PROGRESS_BUFFER", 64),
		},
		Log: LogConfig{
			Level:  getEnvAsLogLevel("LOG_LEVEL", slog.LevelInfo),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '+' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsLogLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if len(c.OCR.Languages) == 0 {
		return NewAppError("CONFIG_ERROR", "OCR_LANGUAGES must name at least one language", ErrInvalidInput)
	}
	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("OCR_DPI out of range: %d", c.OCR.DPI), ErrInvalidInput)
	}
	if c.Extraction.SparseCharsPerPage < 0 || c.Extraction.MinTextChars < 0 {
		return NewAppError("CONFIG_ERROR", "PDF sparse-text thresholds must be non-negative", ErrInvalidInput)
	}
	if c.Cache.TTL <= 0 {
		return NewAppError("CONFIG_ERROR", "CACHE_TTL must be positive", ErrInvalidInput)
	}
	switch c.Jobs.QueueBackend {
	case "local":
	case "asynq":
		if c.Cache.RedisAddr == "" {
			return NewAppError("CONFIG_ERROR", "QUEUE_BACKEND=asynq requires REDIS_ADDR", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown QUEUE_BACKEND %q", c.Jobs.QueueBackend), ErrInvalidInput)
	}
	if c.Jobs.ProgressBuffer <= 0 {
		return NewAppError("CONFIG_ERROR", "PROGRESS_BUFFER must be positive", ErrInvalidInput)
	}
	return nil
}
