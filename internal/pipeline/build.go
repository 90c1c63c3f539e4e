package pipeline

import (
	"log/slog"
	"net/http"

	"github.com/judikatura/crawler/internal/artifact"
	"github.com/judikatura/crawler/internal/config"
	"github.com/judikatura/crawler/internal/coordinator"
	"github.com/judikatura/crawler/internal/download"
	"github.com/judikatura/crawler/internal/logging"
	"github.com/judikatura/crawler/internal/ocr"
	"github.com/judikatura/crawler/internal/store"
)

// New assembles a Runner from configuration, sharing one HTTP client
// across the source adapters and the download manager.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Runner {
	client := &http.Client{Timeout: cfg.RequestTimeout()}

	return &Runner{
		Coordinator: &coordinator.Coordinator{
			Adapters: Adapters(cfg, client, logging.For(logger, "search")),
			Logger:   logging.For(logger, "search"),
		},
		Downloads: &download.Manager{
			Artifacts:  artifact.NewStore(cfg.PDFDir()),
			Client:     client,
			Logger:     logging.For(logger, "download"),
			Workers:    cfg.DownloadWorkers,
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryDelay(),
			MinBytes:   cfg.MinDocumentBytes,
		},
		Processor: &ocr.Processor{
			Searchable:    artifact.NewStore(cfg.OCRDir()),
			Extractor:     ocr.NewExtractor("pdftotext"),
			Renderer:      ocr.NewRenderer("pdftoppm", cfg.OCRDPI),
			Recognizer:    ocr.NewRecognizer("tesseract", cfg.OCRLanguage, cfg.OCRDPI),
			Assembler:     ocr.PDFAssembler{},
			Logger:        logging.For(logger, "ocr"),
			Workers:       cfg.OCRWorkers,
			MinTextLength: cfg.MinTextLength,
		},
		Store:  st,
		Logger: logger,
	}
}
