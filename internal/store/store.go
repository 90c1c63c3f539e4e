package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/judikatura/crawler/internal/model"
)

// ErrNotFound is returned by GetByECLI when no decision has the identifier.
var ErrNotFound = errors.New("decision not found")

// Store is the relational archive of decisions with its synchronized
// full-text index. Upserts are keyed by ECLI and replace all fields; the
// FTS index follows via triggers, so index and table cannot diverge even
// under concurrent writers to different identifiers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers; readers wait on busy_timeout.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes a decision, replacing every field of an existing record
// with the same ECLI and refreshing updated_at.
func (s *Store) Upsert(ctx context.Context, d model.Decision) error {
	if d.ECLI == "" {
		return errors.New("decision ECLI is required")
	}

	meta, err := encodeMetadata(d.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", d.ECLI, err)
	}
	kws, err := encodeKeywords(d.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords for %s: %w", d.ECLI, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (ecli, title, date, url, pdf_path, ocr_pdf_path, full_text, keywords, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ecli) DO UPDATE SET
			title = excluded.title,
			date = excluded.date,
			url = excluded.url,
			pdf_path = excluded.pdf_path,
			ocr_pdf_path = excluded.ocr_pdf_path,
			full_text = excluded.full_text,
			keywords = excluded.keywords,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP`,
		d.ECLI, d.Title, encodeDate(d.Date), d.URL, d.PDFPath, d.OCRPDFPath,
		d.FullText, kws, meta)
	if err != nil {
		return fmt.Errorf("upsert decision %s: %w", d.ECLI, err)
	}
	return nil
}

// UpsertMany writes decisions one by one and returns the success count.
// A failed record is logged and skipped, never aborting its siblings.
func (s *Store) UpsertMany(ctx context.Context, decisions []model.Decision) int {
	saved := 0
	for _, d := range decisions {
		if err := s.Upsert(ctx, d); err != nil {
			if s.logger != nil {
				s.logger.Warn("upsert failed", "ecli", d.ECLI, "error", err)
			}
			continue
		}
		saved++
	}
	return saved
}

func (s *Store) GetByECLI(ctx context.Context, ecli string) (model.Decision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ecli, title, date, url, pdf_path, ocr_pdf_path, full_text, keywords, metadata
		FROM decisions WHERE ecli = ?`, ecli)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Decision{}, ErrNotFound
	}
	if err != nil {
		return model.Decision{}, fmt.Errorf("get decision %s: %w", ecli, err)
	}
	return d, nil
}

// SearchFullText runs a ranked FTS query over title and extracted text.
// Ties in rank break on ECLI so the order is deterministic for a given
// index state.
func (s *Store) SearchFullText(ctx context.Context, query string, limit int) ([]model.Decision, error) {
	query = sanitizeQuery(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.ecli, d.title, d.date, d.url, d.pdf_path, d.ocr_pdf_path, d.full_text, d.keywords, d.metadata
		FROM decisions_fts f
		JOIN decisions d ON d.id = f.rowid
		WHERE decisions_fts MATCH ?
		ORDER BY f.rank, d.ecli
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// Recent returns the newest decisions by issue date.
func (s *Store) Recent(ctx context.Context, limit int) ([]model.Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ecli, title, date, url, pdf_path, ocr_pdf_path, full_text, keywords, metadata
		FROM decisions ORDER BY date DESC, ecli LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// Stats summarizes archive contents.
type Stats struct {
	Total          int `json:"total"`
	WithText       int `json:"with_text"`
	WithSearchable int `json:"with_searchable_artifact"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(CASE WHEN full_text IS NOT NULL AND full_text != '' THEN 1 END),
			COUNT(CASE WHEN ocr_pdf_path IS NOT NULL AND ocr_pdf_path != '' THEN 1 END)
		FROM decisions`)
	if err := row.Scan(&st.Total, &st.WithText, &st.WithSearchable); err != nil {
		return Stats{}, fmt.Errorf("stats query: %w", err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (model.Decision, error) {
	var d model.Decision
	var date, url, pdfPath, ocrPath, fullText, keywords, meta sql.NullString
	if err := row.Scan(&d.ECLI, &d.Title, &date, &url, &pdfPath, &ocrPath, &fullText, &keywords, &meta); err != nil {
		return model.Decision{}, err
	}
	d.Date = decodeDate(date.String)
	d.URL = url.String
	d.PDFPath = pdfPath.String
	d.OCRPDFPath = ocrPath.String
	d.FullText = fullText.String
	if keywords.String != "" {
		_ = json.Unmarshal([]byte(keywords.String), &d.Keywords)
	}
	if meta.String != "" {
		_ = json.Unmarshal([]byte(meta.String), &d.Metadata)
	}
	return d, nil
}

// Keywords are stored as a JSON array so phrases containing commas
// survive the round trip intact.
func encodeKeywords(keywords []string) (string, error) {
	if len(keywords) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeMetadata(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func decodeDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// sanitizeQuery turns free-form input into an FTS5 MATCH expression. Each
// term is quoted so FTS operators in user input cannot change the query
// shape. A query the user wraps in double quotes is passed through as a
// single phrase.
func sanitizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}

	phrase := false
	if strings.HasPrefix(q, `"`) && strings.HasSuffix(q, `"`) && len(q) > 1 {
		phrase = true
		q = strings.Trim(q, `"`)
	}

	var b strings.Builder
	for _, r := range q {
		switch {
		case isQueryRune(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	q = strings.TrimSpace(b.String())
	if q == "" {
		return ""
	}

	if phrase {
		return `"` + q + `"`
	}

	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	return strings.Join(terms, " ")
}

func isQueryRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '-', r == '_', r == '.':
		return true
	case r > 127:
		// Czech decisions are full of diacritics; keep all non-ASCII letters.
		return true
	}
	return false
}
