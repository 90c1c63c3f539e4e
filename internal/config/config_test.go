package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"data_dir": "/tmp/judikatura",
		"keywords": ["územní plán"],
		"sources": ["nss"]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DownloadWorkers != 6 {
		t.Errorf("DownloadWorkers = %d, want 6", cfg.DownloadWorkers)
	}
	if cfg.OCRWorkers != 2 {
		t.Errorf("OCRWorkers = %d, want 2", cfg.OCRWorkers)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.RetryDelay() != 2*time.Second {
		t.Errorf("RetryDelay = %v, want 2s", cfg.RetryDelay())
	}
	if cfg.MinDocumentBytes != 1000 {
		t.Errorf("MinDocumentBytes = %d, want 1000", cfg.MinDocumentBytes)
	}
	if cfg.MinTextLength != 100 {
		t.Errorf("MinTextLength = %d, want 100", cfg.MinTextLength)
	}
	if cfg.OCRLanguage != "ces" {
		t.Errorf("OCRLanguage = %q, want ces", cfg.OCRLanguage)
	}
	if cfg.OCRDPI != 300 {
		t.Errorf("OCRDPI = %d, want 300", cfg.OCRDPI)
	}
	if cfg.ExportMaxAge() != 7*24*time.Hour {
		t.Errorf("ExportMaxAge = %v, want 168h", cfg.ExportMaxAge())
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	cases := map[string]string{
		"no data_dir": `{"keywords": ["a"], "sources": ["nss"]}`,
		"no keywords": `{"data_dir": "/tmp/x", "sources": ["nss"]}`,
		"no sources":  `{"data_dir": "/tmp/x", "keywords": ["a"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	if _, err := Load(writeConfig(t, "{not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDBPathDefaultsUnderDataDir(t *testing.T) {
	cfg := Config{DataDir: "/var/lib/judikatura"}
	if got := cfg.DBPath(); got != filepath.Join("/var/lib/judikatura", "decisions.db") {
		t.Fatalf("DBPath = %q", got)
	}
	cfg.DatabasePath = "/srv/other.db"
	if got := cfg.DBPath(); got != "/srv/other.db" {
		t.Fatalf("DBPath override = %q", got)
	}
}

func TestDefaultPathEnvOverride(t *testing.T) {
	t.Setenv("JUDIKATURA_CONFIG_FILE", "/custom/config.json")
	if got := DefaultPath(); got != "/custom/config.json" {
		t.Fatalf("DefaultPath = %q", got)
	}
}
