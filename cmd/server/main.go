package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/judikatura/crawler/internal/config"
	"github.com/judikatura/crawler/internal/job"
	"github.com/judikatura/crawler/internal/logging"
	"github.com/judikatura/crawler/internal/pipeline"
	"github.com/judikatura/crawler/internal/store"
	"github.com/judikatura/crawler/internal/web"
)

const jobRetention = 24 * time.Hour

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config JSON")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	addr := flag.String("addr", "", "HTTP bind address (overrides config)")
	flag.Parse()

	logger := logging.BuildLogger(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.BindAddr = *addr
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath(), logger)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	registry := job.NewRegistry()
	server := &web.Server{
		Store:           st,
		Registry:        registry,
		Runner:          pipeline.New(cfg, st, logger),
		Logger:          logger,
		DefaultKeywords: cfg.Keywords,
		DefaultLimit:    cfg.MaxResultsPerSource,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := registry.Cleanup(jobRetention); removed > 0 {
					logger.Debug("cleaned up finished jobs", "removed", removed)
				}
			}
		}
	}()

	if err := server.ListenAndServe(ctx, cfg.BindAddr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
