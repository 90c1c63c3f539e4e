package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/judikatura/crawler/internal/config"
	"github.com/judikatura/crawler/internal/logging"
	"github.com/judikatura/crawler/internal/pipeline"
	"github.com/judikatura/crawler/internal/store"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config JSON")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	keywords := flag.String("keywords", "", "Comma-separated keywords (overrides config)")
	limit := flag.Int("limit", 0, "Max results per source (overrides config)")
	sources := flag.String("sources", "", "Comma-separated source codes (overrides config)")
	metadataOnly := flag.Bool("metadata-only", false, "Index search results without downloading documents")
	skipOCR := flag.Bool("skip-ocr", false, "Index downloaded documents without text extraction")
	flag.Parse()

	logger := logging.BuildLogger(*logLevel)

	if err := crawl(logger, *configPath, *keywords, *sources, *limit, *metadataOnly, *skipOCR); err != nil {
		logger.Error("crawl failed", "error", err)
		os.Exit(1)
	}
}

func crawl(logger *slog.Logger, configPath, keywordList, sourceList string, limit int, metadataOnly, skipOCR bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if keywordList != "" {
		cfg.Keywords = splitCSV(keywordList)
	}
	if sourceList != "" {
		cfg.Sources = splitCSV(sourceList)
	}
	if limit > 0 {
		cfg.MaxResultsPerSource = limit
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.Open(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runner := pipeline.New(cfg, st, logger)
	stats, err := runner.Run(ctx, pipeline.Options{
		Keywords:       cfg.Keywords,
		PerSourceLimit: cfg.MaxResultsPerSource,
		MetadataOnly:   metadataOnly,
		SkipOCR:        skipOCR,
	}, nil)
	if err != nil {
		return err
	}

	fmt.Println(stats)
	if stats.Found > 0 && stats.Indexed == 0 {
		return fmt.Errorf("no decisions indexed (%d errors)", stats.Errors)
	}
	return nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
