// Package ocr decides, per document, between trusting embedded text and
// running optical recognition, then synthesizes a searchable artifact.
// Recognition runs in external processes (pdftoppm, tesseract), so one
// document's crash can never corrupt another's state.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/judikatura/crawler/internal/artifact"
	"github.com/judikatura/crawler/internal/job"
	"github.com/judikatura/crawler/internal/model"
)

// TextExtractor pulls embedded text out of a PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// PageRenderer rasterizes a PDF into per-page images.
type PageRenderer interface {
	RenderPages(ctx context.Context, pdfPath string, dir string) ([]string, error)
}

// PageRecognizer OCRs one page image, returning the text and the path of a
// searchable single-page PDF.
type PageRecognizer interface {
	RecognizePage(ctx context.Context, imagePath string) (string, string, error)
}

// Assembler reassembles per-page artifacts into a single document.
type Assembler interface {
	Merge(pagePDFs []string, outFile string) error
	FirstPageFallback(pageImages []string, outFile string) error
}

// pageBoundary separates per-page text in the concatenated full text.
const pageBoundary = "\n\n--- NOVÁ STRÁNKA ---\n\n"

const artifactExt = ".pdf"

// Outcome tags how a document's searchable artifact was produced, so
// callers can tell a degraded single-page fallback from a full success.
type Outcome int

const (
	// OutcomeReused: a searchable artifact from an earlier run was reused.
	OutcomeReused Outcome = iota
	// OutcomeCopied: the original already had machine-readable text and
	// was copied verbatim; recognition never ran.
	OutcomeCopied
	// OutcomeReconstructed: full per-page recognition and reassembly.
	OutcomeReconstructed
	// OutcomeDegraded: reassembly failed and only a first-page artifact
	// could be produced.
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReused:
		return "reused"
	case OutcomeCopied:
		return "copied"
	case OutcomeReconstructed:
		return "reconstructed"
	case OutcomeDegraded:
		return "degraded-single-page"
	default:
		return "unknown"
	}
}

type Processor struct {
	Searchable *artifact.Store
	Extractor  TextExtractor
	Renderer   PageRenderer
	Recognizer PageRecognizer
	Assembler  Assembler
	Logger     *slog.Logger

	Workers int
	// MinTextLength is the trimmed-length threshold above which embedded
	// text is trusted and recognition is skipped.
	MinTextLength int

	mu               sync.Mutex
	recognitionCalls int
}

// RecognitionCalls reports how many documents went through the recognition
// path. Exposed for observability; tests use it to prove text-bearing
// documents never pay for OCR.
func (p *Processor) RecognitionCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recognitionCalls
}

// ProcessAll produces a searchable artifact for every downloaded record.
// Only records that end up with one are returned, in completion order;
// the second return value counts documents that failed entirely.
func (p *Processor) ProcessAll(ctx context.Context, decisions []model.Decision, tracker job.Tracker) ([]model.Decision, int) {
	if tracker == nil {
		tracker = job.NopTracker{}
	}

	var mu sync.Mutex
	var processed []model.Decision
	failed := 0
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for _, d := range decisions {
		if tracker.IsCancellationRequested() {
			break
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			rec, outcome, err := p.processOne(gctx, d)

			mu.Lock()
			defer mu.Unlock()
			done++
			tracker.Advance(done, len(decisions), d.ECLI)
			if err != nil {
				failed++
				if p.Logger != nil {
					p.Logger.Warn("text processing failed", "ecli", d.ECLI, "error", err)
				}
				return nil
			}
			if p.Logger != nil {
				p.Logger.Debug("text processing done", "ecli", d.ECLI, "outcome", outcome, "chars", len(rec.FullText))
			}
			processed = append(processed, rec)
			return nil
		})
	}
	_ = g.Wait()

	if p.Logger != nil {
		p.Logger.Info("text phase done", "attempted", len(decisions), "processed", len(processed), "failed", failed)
	}
	return processed, failed
}

// processOne applies the three-step decision: reuse an existing searchable
// artifact, trust embedded text, or render + recognize + reassemble.
func (p *Processor) processOne(ctx context.Context, d model.Decision) (model.Decision, Outcome, error) {
	if d.PDFPath == "" {
		return model.Decision{}, 0, fmt.Errorf("decision %s has no local artifact", d.ECLI)
	}

	// Step 1: idempotent re-run.
	if p.Searchable.Exists(d.ECLI, artifactExt) {
		d.OCRPDFPath = p.Searchable.Path(d.ECLI, artifactExt)
		text, err := p.Extractor.ExtractText(ctx, d.OCRPDFPath)
		if err == nil {
			d.FullText = strings.TrimSpace(text)
		}
		d.SetMeta("text_outcome", OutcomeReused.String())
		return d, OutcomeReused, nil
	}

	// Step 2: trust embedded text when there is enough of it.
	text, err := p.Extractor.ExtractText(ctx, d.PDFPath)
	if err == nil && len(strings.TrimSpace(text)) > p.minTextLength() {
		path, err := p.Searchable.CopyFrom(d.ECLI, artifactExt, d.PDFPath)
		if err != nil {
			return model.Decision{}, 0, fmt.Errorf("copy searchable artifact: %w", err)
		}
		d.OCRPDFPath = path
		d.FullText = strings.TrimSpace(text)
		d.SetMeta("text_outcome", OutcomeCopied.String())
		return d, OutcomeCopied, nil
	}

	// Step 3: the document is a scan.
	return p.recognize(ctx, d)
}

func (p *Processor) recognize(ctx context.Context, d model.Decision) (model.Decision, Outcome, error) {
	p.mu.Lock()
	p.recognitionCalls++
	p.mu.Unlock()

	workDir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return model.Decision{}, 0, fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	pages, err := p.Renderer.RenderPages(ctx, d.PDFPath, workDir)
	if err != nil {
		return model.Decision{}, 0, fmt.Errorf("render pages: %w", err)
	}

	var texts []string
	var pagePDFs []string
	for i, page := range pages {
		text, pagePDF, err := p.Recognizer.RecognizePage(ctx, page)
		if err != nil {
			return model.Decision{}, 0, fmt.Errorf("recognize page %d: %w", i+1, err)
		}
		texts = append(texts, text)
		pagePDFs = append(pagePDFs, pagePDF)
	}
	fullText := strings.TrimSpace(strings.Join(texts, pageBoundary))

	outcome := OutcomeReconstructed
	merged := filepath.Join(workDir, "searchable.pdf")
	if err := p.Assembler.Merge(pagePDFs, merged); err != nil {
		// Reassembly failed; fall back to a first-page-only artifact so
		// the document is not lost, tagged as degraded.
		if p.Logger != nil {
			p.Logger.Warn("artifact reassembly failed", "ecli", d.ECLI, "error", err)
		}
		if fbErr := p.Assembler.FirstPageFallback(pages, merged); fbErr != nil {
			return model.Decision{}, 0, fmt.Errorf("reassemble artifact: %w", err)
		}
		outcome = OutcomeDegraded
	}

	path, err := p.Searchable.CopyFrom(d.ECLI, artifactExt, merged)
	if err != nil {
		return model.Decision{}, 0, fmt.Errorf("store searchable artifact: %w", err)
	}
	d.OCRPDFPath = path
	d.FullText = fullText
	d.SetMeta("text_outcome", outcome.String())
	return d, outcome, nil
}

func (p *Processor) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return 2
}

func (p *Processor) minTextLength() int {
	if p.MinTextLength > 0 {
		return p.MinTextLength
	}
	return 100
}
