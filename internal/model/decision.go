package model

import (
	"fmt"
	"time"
)

// Decision is one acquired court decision. Adapters create it with
// identification and provenance fields only; the download and OCR stages
// fill in PDFPath, OCRPDFPath and FullText as the record moves downstream.
type Decision struct {
	// ECLI is the stable unique identifier used for dedup and upsert.
	// Sources without a canonical ECLI get a deterministic synthetic one
	// built from the source code and case number.
	ECLI string

	Title string
	Date  time.Time // zero when the source did not expose a date
	URL   string

	// PDFPath points at the originally fetched binary.
	PDFPath string
	// OCRPDFPath points at the artifact guaranteed to contain extractable
	// text, either a verbatim copy of the original or an OCR reconstruction.
	OCRPDFPath string
	FullText   string

	// Keywords records which search terms produced this record.
	Keywords []string
	// Metadata carries source-specific fields (case number, judge, court).
	// It is additive and never overrides the core fields above.
	Metadata map[string]string
}

func (d Decision) String() string {
	return fmt.Sprintf("Decision(%s, %s)", d.ECLI, d.Title)
}

// SetMeta stores a metadata key, allocating the map on first use so
// adapters can build records with struct literals.
func (d *Decision) SetMeta(key, value string) {
	if d.Metadata == nil {
		d.Metadata = make(map[string]string)
	}
	d.Metadata[key] = value
}

// RunStats accumulates per-stage counters for one crawler run. Partial
// success is the expected steady state, so every stage reports attempted
// and succeeded counts instead of a single pass/fail.
type RunStats struct {
	StartTime time.Time
	EndTime   time.Time

	Found      int
	Downloaded int
	Processed  int
	Indexed    int
	Errors     int
}

func NewRunStats() *RunStats {
	return &RunStats{StartTime: time.Now()}
}

func (s *RunStats) Duration() time.Duration {
	if !s.EndTime.IsZero() {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

func (s *RunStats) String() string {
	return fmt.Sprintf("found=%d downloaded=%d processed=%d indexed=%d errors=%d duration=%s",
		s.Found, s.Downloaded, s.Processed, s.Indexed, s.Errors, s.Duration().Round(time.Millisecond))
}
