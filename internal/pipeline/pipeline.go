// Package pipeline sequences a full crawl: search, download, text
// processing, indexing. Both the CLI and the background job runner in the
// web server drive the same Runner.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/judikatura/crawler/internal/coordinator"
	"github.com/judikatura/crawler/internal/download"
	"github.com/judikatura/crawler/internal/job"
	"github.com/judikatura/crawler/internal/model"
	"github.com/judikatura/crawler/internal/ocr"
	"github.com/judikatura/crawler/internal/store"
)

type Runner struct {
	Coordinator *coordinator.Coordinator
	Downloads   *download.Manager
	Processor   *ocr.Processor
	Store       *store.Store
	Logger      *slog.Logger
}

type Options struct {
	Keywords       []string
	PerSourceLimit int
	// MetadataOnly indexes search results without fetching documents.
	MetadataOnly bool
	// SkipOCR indexes downloaded documents without producing text.
	SkipOCR bool
}

// Run executes the crawl stages in order and indexes whatever survives.
// A record that loses its document or its text along the way is still
// indexed with the metadata it has; only stage-level failures count as
// errors. Run reports per-stage counts through tracker as it goes.
func (r *Runner) Run(ctx context.Context, opts Options, tracker job.Tracker) (*model.RunStats, error) {
	if r.Coordinator == nil || r.Downloads == nil || r.Processor == nil || r.Store == nil {
		return nil, errors.New("pipeline runner missing dependencies")
	}
	if tracker == nil {
		tracker = job.NopTracker{}
	}

	stats := model.NewRunStats()
	defer func() { stats.EndTime = time.Now() }()

	tracker.Advance(0, 0, "searching sources")
	found, failedSources := r.Coordinator.SearchAll(ctx, opts.Keywords, opts.PerSourceLimit)
	stats.Found = len(found)
	stats.Errors += failedSources

	if len(found) == 0 {
		if r.Logger != nil {
			r.Logger.Warn("no decisions found", "keywords", opts.Keywords)
		}
		return stats, nil
	}

	toIndex := found
	if opts.MetadataOnly {
		// No download stage runs, so the records are collected here.
		for _, d := range found {
			tracker.RecordResult(d)
		}
	} else {
		tracker.Advance(0, len(found), "downloading documents")
		downloaded, dlFailed := r.Downloads.DownloadAll(ctx, found, tracker)
		stats.Downloaded = len(downloaded)
		stats.Errors += dlFailed

		toIndex = downloaded
		if !opts.SkipOCR {
			tracker.Advance(0, len(downloaded), "extracting text")
			processed, procFailed := r.Processor.ProcessAll(ctx, downloaded, tracker)
			stats.Processed = len(processed)
			stats.Errors += procFailed

			// A document whose text could not be produced is still worth
			// indexing: its metadata remains searchable by title.
			toIndex = append(processed, leftBehind(downloaded, processed)...)
		}
	}

	tracker.Advance(0, len(toIndex), "indexing")
	indexed := r.Store.UpsertMany(ctx, toIndex)
	stats.Indexed = indexed
	stats.Errors += len(toIndex) - indexed

	if r.Logger != nil {
		r.Logger.Info("pipeline run finished",
			"found", stats.Found,
			"downloaded", stats.Downloaded,
			"processed", stats.Processed,
			"indexed", stats.Indexed,
			"errors", stats.Errors)
	}
	return stats, nil
}

// leftBehind returns the downloaded records that produced no searchable
// text, tagged so their state is visible in the index.
func leftBehind(downloaded, processed []model.Decision) []model.Decision {
	have := make(map[string]struct{}, len(processed))
	for _, d := range processed {
		have[d.ECLI] = struct{}{}
	}
	var out []model.Decision
	for _, d := range downloaded {
		if _, ok := have[d.ECLI]; ok {
			continue
		}
		d.SetMeta("text_outcome", "unavailable")
		out = append(out, d)
	}
	return out
}
