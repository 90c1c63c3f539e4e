package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const defaultConfigPath = "/etc/judikatura/config.json"

// Config matches the JSON schema used by both the crawler and the server.
type Config struct {
	DataDir      string   `json:"data_dir"`
	DatabasePath string   `json:"database_path"`
	Keywords     []string `json:"keywords"`
	Sources      []string `json:"sources"`

	MaxResultsPerSource int `json:"max_results_per_source"`
	DownloadWorkers     int `json:"download_workers"`
	OCRWorkers          int `json:"ocr_workers"`

	MaxRetries        int `json:"max_retries"`
	RetryDelaySeconds int `json:"retry_delay_seconds"`
	RequestTimeoutSec int `json:"request_timeout_seconds"`

	// MinDocumentBytes is the smallest payload accepted as a real document
	// when the Content-Type header does not identify a PDF.
	MinDocumentBytes int `json:"min_document_bytes"`
	// MinTextLength is the trimmed-text threshold above which a PDF is
	// considered machine-readable and OCR is skipped.
	MinTextLength int `json:"min_text_length"`

	OCRLanguage string `json:"ocr_language"`
	OCRDPI      int    `json:"ocr_dpi"`

	ExportMaxAgeDays int `json:"export_max_age_days"`

	BindAddr string `json:"bind_addr"`
}

func DefaultPath() string {
	if path := os.Getenv("JUDIKATURA_CONFIG_FILE"); path != "" {
		return path
	}
	return defaultConfigPath
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxResultsPerSource == 0 {
		c.MaxResultsPerSource = 50
	}
	if c.DownloadWorkers == 0 {
		c.DownloadWorkers = 6
	}
	if c.OCRWorkers == 0 {
		c.OCRWorkers = 2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelaySeconds == 0 {
		c.RetryDelaySeconds = 2
	}
	if c.RequestTimeoutSec == 0 {
		c.RequestTimeoutSec = 30
	}
	if c.MinDocumentBytes == 0 {
		c.MinDocumentBytes = 1000
	}
	if c.MinTextLength == 0 {
		c.MinTextLength = 100
	}
	if c.OCRLanguage == "" {
		c.OCRLanguage = "ces"
	}
	if c.OCRDPI == 0 {
		c.OCRDPI = 300
	}
	if c.ExportMaxAgeDays == 0 {
		c.ExportMaxAgeDays = 7
	}
	if c.BindAddr == "" {
		c.BindAddr = ":8080"
	}
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config data_dir is required")
	}
	if len(c.Keywords) == 0 {
		return errors.New("config keywords is required")
	}
	if len(c.Sources) == 0 {
		return errors.New("config sources is required")
	}
	if c.DownloadWorkers < 1 {
		return errors.New("config download_workers must be positive")
	}
	if c.OCRWorkers < 1 {
		return errors.New("config ocr_workers must be positive")
	}
	if c.MaxRetries < 1 {
		return errors.New("config max_retries must be positive")
	}
	return nil
}

func (c *Config) DBPath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.DataDir, "decisions.db")
}

func (c *Config) PDFDir() string {
	return filepath.Join(c.DataDir, "pdf")
}

func (c *Config) OCRDir() string {
	return filepath.Join(c.DataDir, "pdf_ocr")
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c *Config) ExportMaxAge() time.Duration {
	return time.Duration(c.ExportMaxAgeDays) * 24 * time.Hour
}
