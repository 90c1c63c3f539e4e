package ocr

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFAssembler reassembles per-page output into one PDF with pdfcpu.
type PDFAssembler struct{}

func (PDFAssembler) Merge(pagePDFs []string, outFile string) error {
	if len(pagePDFs) == 0 {
		return fmt.Errorf("no pages to merge")
	}
	if err := api.MergeCreateFile(pagePDFs, outFile, false, nil); err != nil {
		return fmt.Errorf("merge %d pages: %w", len(pagePDFs), err)
	}
	return nil
}

// FirstPageFallback builds a PDF from the first rendered page image alone.
func (PDFAssembler) FirstPageFallback(pageImages []string, outFile string) error {
	if len(pageImages) == 0 {
		return fmt.Errorf("no page images")
	}
	if err := api.ImportImagesFile(pageImages[:1], outFile, nil, nil); err != nil {
		return fmt.Errorf("import first page: %w", err)
	}
	return nil
}
