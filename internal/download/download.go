// Package download fetches decision binaries with bounded concurrency,
// linear retry backoff and idempotent skip when the artifact is already
// on disk.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/judikatura/crawler/internal/artifact"
	"github.com/judikatura/crawler/internal/job"
	"github.com/judikatura/crawler/internal/model"
)

const artifactExt = ".pdf"

type Manager struct {
	Artifacts *artifact.Store
	Client    *http.Client
	Logger    *slog.Logger

	Workers    int
	MaxRetries int
	BaseDelay  time.Duration
	// MinBytes accepts a payload as a real document even when the
	// Content-Type header does not say PDF. Error pages served with a
	// wrong content type are tiny; real decisions are not.
	MinBytes int
}

// DownloadAll fetches the artifact for every record with a URL. Only
// records that end up with a local artifact are returned, in completion
// order. The second return value counts failed downloads.
func (m *Manager) DownloadAll(ctx context.Context, decisions []model.Decision, tracker job.Tracker) ([]model.Decision, int) {
	if tracker == nil {
		tracker = job.NopTracker{}
	}

	var mu sync.Mutex
	var downloaded []model.Decision
	failed := 0
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers())

	for _, d := range decisions {
		if tracker.IsCancellationRequested() {
			break
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			rec, err := m.downloadOne(gctx, d)

			mu.Lock()
			defer mu.Unlock()
			done++
			tracker.Advance(done, len(decisions), d.ECLI)
			if err != nil {
				failed++
				if m.Logger != nil {
					m.Logger.Warn("download failed", "ecli", d.ECLI, "error", err)
				}
				return nil
			}
			downloaded = append(downloaded, rec)
			tracker.RecordResult(rec)
			return nil
		})
	}
	_ = g.Wait()

	if m.Logger != nil {
		m.Logger.Info("download phase done", "attempted", len(decisions), "downloaded", len(downloaded), "failed", failed)
	}
	return downloaded, failed
}

func (m *Manager) downloadOne(ctx context.Context, d model.Decision) (model.Decision, error) {
	if d.URL == "" {
		return model.Decision{}, fmt.Errorf("decision %s has no source URL", d.ECLI)
	}

	// Re-runs skip the network entirely when the artifact exists.
	if m.Artifacts.Exists(d.ECLI, artifactExt) {
		d.PDFPath = m.Artifacts.Path(d.ECLI, artifactExt)
		if m.Logger != nil {
			m.Logger.Debug("artifact already present", "ecli", d.ECLI)
		}
		return d, nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxRetries(); attempt++ {
		if attempt > 1 {
			// Linear, not exponential: spread load on the source without
			// stalling the whole batch.
			select {
			case <-ctx.Done():
				return model.Decision{}, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * m.baseDelay()):
			}
			if m.Logger != nil {
				m.Logger.Debug("retrying download", "ecli", d.ECLI, "attempt", attempt, "error", lastErr)
			}
		}

		content, err := m.fetch(ctx, d.URL)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return model.Decision{}, lastErr
			}
			continue
		}

		path, err := m.Artifacts.Write(d.ECLI, artifactExt, content)
		if err != nil {
			return model.Decision{}, fmt.Errorf("store artifact: %w", err)
		}
		d.PDFPath = path
		return d, nil
	}
	return model.Decision{}, fmt.Errorf("all %d attempts failed: %w", m.maxRetries(), lastErr)
}

func (m *Manager) fetch(ctx context.Context, srcURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch document: status %s", resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read document body: %w", err)
	}

	// Some sources serve PDFs with useless content types and error pages
	// with correct ones, so either signal is enough to accept.
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "pdf") && len(content) < m.minBytes() {
		return nil, fmt.Errorf("response is not a document (content-type %q, %d bytes)", contentType, len(content))
	}
	return content, nil
}

func (m *Manager) workers() int {
	if m.Workers > 0 {
		return m.Workers
	}
	return 6
}

func (m *Manager) maxRetries() int {
	if m.MaxRetries > 0 {
		return m.MaxRetries
	}
	return 3
}

func (m *Manager) baseDelay() time.Duration {
	if m.BaseDelay > 0 {
		return m.BaseDelay
	}
	return 2 * time.Second
}

func (m *Manager) minBytes() int {
	if m.MinBytes > 0 {
		return m.MinBytes
	}
	return 1000
}
