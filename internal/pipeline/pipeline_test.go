package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/judikatura/crawler/internal/artifact"
	"github.com/judikatura/crawler/internal/coordinator"
	"github.com/judikatura/crawler/internal/download"
	"github.com/judikatura/crawler/internal/model"
	"github.com/judikatura/crawler/internal/ocr"
	"github.com/judikatura/crawler/internal/source"
	"github.com/judikatura/crawler/internal/store"
)

type fixedSource struct {
	name      string
	decisions []model.Decision
}

func (f *fixedSource) Name() string { return f.name }

func (f *fixedSource) Search(context.Context, []string, int) ([]model.Decision, error) {
	return f.decisions, nil
}

// grepExtractor returns embedded text per configured identifier substring.
type grepExtractor struct {
	texts map[string]string
}

func (g *grepExtractor) ExtractText(_ context.Context, path string) (string, error) {
	for key, text := range g.texts {
		if strings.Contains(path, key) {
			return text, nil
		}
	}
	return "", errors.New("no embedded text")
}

type failingRenderer struct{}

func (failingRenderer) RenderPages(context.Context, string, string) ([]string, error) {
	return nil, errors.New("renderer not available")
}

type noRecognizer struct{}

func (noRecognizer) RecognizePage(context.Context, string) (string, string, error) {
	return "", "", errors.New("recognizer not available")
}

type noAssembler struct{}

func (noAssembler) Merge([]string, string) error             { return errors.New("no assembler") }
func (noAssembler) FirstPageFallback([]string, string) error { return errors.New("no assembler") }

func testRunner(t *testing.T, adapters []source.Adapter, server *httptest.Server, texts map[string]string) (*Runner, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "decisions.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	r := &Runner{
		Coordinator: &coordinator.Coordinator{Adapters: adapters},
		Downloads: &download.Manager{
			Artifacts: artifact.NewStore(t.TempDir()),
			Client:    server.Client(),
			Workers:   2,
			BaseDelay: time.Millisecond,
			MinBytes:  4,
		},
		Processor: &ocr.Processor{
			Searchable:    artifact.NewStore(t.TempDir()),
			Extractor:     &grepExtractor{texts: texts},
			Renderer:      failingRenderer{},
			Recognizer:    noRecognizer{},
			Assembler:     noAssembler{},
			Workers:       2,
			MinTextLength: 10,
		},
		Store: st,
	}
	return r, st
}

func TestRunRequiresDependencies(t *testing.T) {
	r := &Runner{}
	if _, err := r.Run(context.Background(), Options{}, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestRunEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 decision body"))
	}))
	defer server.Close()

	adapters := []source.Adapter{
		&fixedSource{name: "nss", decisions: []model.Decision{
			{ECLI: "CZ:NSS:1", Title: "První", URL: server.URL + "/1.pdf"},
			{ECLI: "CZ:NSS:2", Title: "Druhý", URL: server.URL + "/2.pdf"},
		}},
		&fixedSource{name: "ns", decisions: []model.Decision{
			{ECLI: "CZ:NSS:1", Title: "Duplikát", URL: server.URL + "/dup.pdf"},
		}},
	}
	r, st := testRunner(t, adapters, server, map[string]string{
		"CZ_NSS_1": "Dlouhý text prvního rozsudku o územním plánu.",
		"CZ_NSS_2": "Dlouhý text druhého rozsudku.",
	})

	stats, err := r.Run(context.Background(), Options{Keywords: []string{"plán"}, PerSourceLimit: 10}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Found != 2 {
		t.Errorf("Found = %d, want 2 (duplicate merged)", stats.Found)
	}
	if stats.Downloaded != 2 || stats.Processed != 2 || stats.Indexed != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d", stats.Errors)
	}

	got, err := st.GetByECLI(context.Background(), "CZ:NSS:1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "První" {
		t.Errorf("dedup kept %q, want first-seen record", got.Title)
	}
	if !strings.Contains(got.FullText, "územním plánu") {
		t.Errorf("FullText = %q", got.FullText)
	}
}

func TestRunMetadataOnlySkipsNetwork(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	adapters := []source.Adapter{&fixedSource{name: "nss", decisions: []model.Decision{
		{ECLI: "CZ:NSS:1", Title: "Jen metadata", URL: server.URL + "/1.pdf"},
	}}}
	r, st := testRunner(t, adapters, server, nil)

	stats, err := r.Run(context.Background(), Options{Keywords: []string{"plán"}, MetadataOnly: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Indexed != 1 || stats.Downloaded != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if requests.Load() != 0 {
		t.Fatal("metadata-only run must not touch the document server")
	}
	if _, err := st.GetByECLI(context.Background(), "CZ:NSS:1"); err != nil {
		t.Fatal(err)
	}
}

func TestRunIndexesDocumentsWithoutText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF scan"))
	}))
	defer server.Close()

	adapters := []source.Adapter{&fixedSource{name: "nss", decisions: []model.Decision{
		{ECLI: "CZ:NSS:1", Title: "S textem", URL: server.URL + "/1.pdf"},
		{ECLI: "CZ:NSS:2", Title: "Sken bez OCR", URL: server.URL + "/2.pdf"},
	}}}
	// Only the first document has embedded text; the second hits the
	// broken recognition path and fails processing.
	r, st := testRunner(t, adapters, server, map[string]string{
		"CZ_NSS_1": "Dlouhý strojově čitelný text.",
	})

	stats, err := r.Run(context.Background(), Options{Keywords: []string{"plán"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 1 {
		t.Errorf("Processed = %d, want 1", stats.Processed)
	}
	if stats.Indexed != 2 {
		t.Fatalf("Indexed = %d, want 2 (textless document still recorded)", stats.Indexed)
	}

	textless, err := st.GetByECLI(context.Background(), "CZ:NSS:2")
	if err != nil {
		t.Fatal(err)
	}
	if textless.FullText != "" {
		t.Errorf("FullText = %q", textless.FullText)
	}
	if textless.Metadata["text_outcome"] != "unavailable" {
		t.Errorf("text_outcome = %q", textless.Metadata["text_outcome"])
	}
}

func TestRunNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	r, _ := testRunner(t, []source.Adapter{&fixedSource{name: "nss"}}, server, nil)
	stats, err := r.Run(context.Background(), Options{Keywords: []string{"plán"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Found != 0 || stats.Indexed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}
