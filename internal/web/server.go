// Package web exposes the decision index and the crawl job registry over
// a JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/judikatura/crawler/internal/job"
	"github.com/judikatura/crawler/internal/model"
	"github.com/judikatura/crawler/internal/pipeline"
	"github.com/judikatura/crawler/internal/store"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

type Server struct {
	Store    *store.Store
	Registry *job.Registry
	Runner   *pipeline.Runner
	Logger   *slog.Logger

	// Defaults for job requests that leave fields empty.
	DefaultKeywords []string
	DefaultLimit    int
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/decisions/{ecli}", s.handleDecision)

	r.Post("/api/jobs/search", s.handleStartSearch)
	r.Get("/api/jobs", s.handleListJobs)
	r.Get("/api/jobs/{id}", s.handleGetJob)
	r.Post("/api/jobs/{id}/cancel", s.handleCancelJob)

	return r
}

// ListenAndServe runs the API until ctx is cancelled, then drains
// connections for up to 10 seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.Store.Stats(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Store.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := clampInt(r.URL.Query().Get("limit"), defaultSearchLimit, maxSearchLimit)

	var (
		decisions []model.Decision
		err       error
	)
	if query == "" {
		decisions, err = s.Store.Recent(r.Context(), limit)
	} else {
		decisions, err = s.Store.SearchFullText(r.Context(), query, limit)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(decisions),
		"results": decisionViews(decisions),
	})
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	ecli := chi.URLParam(r, "ecli")
	d, err := s.Store.GetByECLI(r.Context(), ecli)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "decision not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, decisionView(d, true))
}

type searchJobRequest struct {
	Keywords     []string `json:"keywords"`
	Limit        int      `json:"limit"`
	MetadataOnly bool     `json:"metadata_only"`
	SkipOCR      bool     `json:"skip_ocr"`
}

func (s *Server) handleStartSearch(w http.ResponseWriter, r *http.Request) {
	var req searchJobRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}
	if len(req.Keywords) == 0 {
		req.Keywords = s.DefaultKeywords
	}
	if req.Limit <= 0 {
		req.Limit = s.DefaultLimit
	}
	if len(req.Keywords) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "keywords required"})
		return
	}

	j := s.Registry.Create("search", strings.Join(req.Keywords, ", "))
	go s.runSearchJob(j, req)

	writeJSON(w, http.StatusAccepted, j.Snapshot(false))
}

// runSearchJob drives one pipeline run on behalf of a job. The request
// context is long gone by the time the work runs, so the job gets its own.
func (s *Server) runSearchJob(j *job.Job, req searchJobRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats, err := s.Runner.Run(ctx, pipeline.Options{
		Keywords:       req.Keywords,
		PerSourceLimit: req.Limit,
		MetadataOnly:   req.MetadataOnly,
		SkipOCR:        req.SkipOCR,
	}, j)
	if err != nil {
		s.Logger.Error("search job failed", "job", j.ID(), "error", err)
		j.Fail(err.Error())
		return
	}

	s.Logger.Info("search job finished", "job", j.ID(), "stats", stats)
	j.Complete()
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.Registry.List()
	snapshots := make([]job.Snapshot, 0, len(jobs))
	for _, j := range jobs {
		snapshots = append(snapshots, j.Snapshot(false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": snapshots})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.Registry.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, j.Snapshot(true))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Registry.Cancel(id) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "job not running"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

// decisionSummary is the wire shape of one indexed decision. Full text is
// heavy and only included on the detail endpoint.
type decisionSummary struct {
	ECLI     string            `json:"ecli"`
	Title    string            `json:"title"`
	Date     string            `json:"date,omitempty"`
	URL      string            `json:"url,omitempty"`
	Keywords []string          `json:"keywords,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	FullText string            `json:"full_text,omitempty"`
}

func decisionView(d model.Decision, includeText bool) decisionSummary {
	view := decisionSummary{
		ECLI:     d.ECLI,
		Title:    d.Title,
		URL:      d.URL,
		Keywords: d.Keywords,
		Metadata: d.Metadata,
	}
	if !d.Date.IsZero() {
		view.Date = d.Date.Format("2006-01-02")
	}
	if includeText {
		view.FullText = d.FullText
	}
	return view
}

func decisionViews(decisions []model.Decision) []decisionSummary {
	out := make([]decisionSummary, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, decisionView(d, false))
	}
	return out
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// client went away mid-write; nothing useful left to do
		_ = err
	}
}
