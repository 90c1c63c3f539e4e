package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Extractor pulls embedded text out of a PDF via pdftotext.
type Extractor struct {
	Binary string
}

func NewExtractor(binary string) *Extractor {
	if binary == "" {
		binary = "pdftotext"
	}
	return &Extractor{Binary: binary}
}

func (e *Extractor) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Binary, "-enc", "UTF-8", pdfPath, "-")
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Renderer rasterizes PDF pages to PNG images via pdftoppm.
type Renderer struct {
	Binary string
	DPI    int
}

func NewRenderer(binary string, dpi int) *Renderer {
	if binary == "" {
		binary = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &Renderer{Binary: binary, DPI: dpi}
}

// RenderPages writes one PNG per page into dir and returns the image paths
// in page order.
func (r *Renderer) RenderPages(ctx context.Context, pdfPath string, dir string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, r.Binary, "-png", "-r", strconv.Itoa(r.DPI), pdfPath, prefix)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", pdfPath)
	}
	// pdftoppm zero-pads page numbers within a run, so a lexical sort
	// yields page order.
	sort.Strings(pages)
	return pages, nil
}

// Recognizer runs tesseract on one rendered page, producing the page text
// and a single-page searchable PDF with the recognized text overlaid
// invisibly on the scan image.
type Recognizer struct {
	Binary   string
	Language string
	DPI      int
}

func NewRecognizer(binary string, language string, dpi int) *Recognizer {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "ces"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &Recognizer{Binary: binary, Language: language, DPI: dpi}
}

// RecognizePage returns the page's recognized text and the path of the
// searchable single-page PDF tesseract wrote next to it.
func (r *Recognizer) RecognizePage(ctx context.Context, imagePath string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	outBase := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))
	cmd := exec.CommandContext(ctx, r.Binary, imagePath, outBase,
		"-l", r.Language, "--dpi", strconv.Itoa(r.DPI), "txt", "pdf")
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", "", fmt.Errorf("read recognized text: %w", err)
	}
	return string(text), outBase + ".pdf", nil
}
