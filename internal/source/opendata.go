package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/judikatura/crawler/internal/model"
)

// Column headers in the NSS open-data export.
const (
	colCaseNumber   = "Spisová značka"
	colCaseType     = "Typ věci"
	colParticipants = "Účastnící řízení s anonymizovanými fyzickými osobami"
	colDecisionDate = "Datum rozhodnutí"
	colJudge        = "Soudce"
	colProceeding   = "Typ řízení"
	colDecisionType = "Typ rozhodnutí"
)

const searchDetailURL = "https://vyhledavac.nssoud.cz/?spisova_znacka="

// OpenDataAdapter searches the Supreme Administrative Court's published
// XLSX open-data export. The export is cached on disk and re-downloaded
// once it is older than MaxCacheAge, so repeated runs stay cheap.
type OpenDataAdapter struct {
	ExportURL   string
	CacheDir    string
	MaxCacheAge time.Duration
	Client      *http.Client
	Logger      *slog.Logger
}

func (a *OpenDataAdapter) Name() string { return "nss" }

func (a *OpenDataAdapter) Search(ctx context.Context, keywords []string, maxResults int) ([]model.Decision, error) {
	path, err := a.ensureExport(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: nss export: %v", ErrSourceUnavailable, err)
	}
	return a.filterExport(path, keywords, maxResults)
}

// ensureExport returns the path of a sufficiently fresh local copy of the
// export, downloading it when missing or stale.
func (a *OpenDataAdapter) ensureExport(ctx context.Context) (string, error) {
	dest := filepath.Join(a.CacheDir, "nss_otevrena_data.xlsx")

	if info, err := os.Stat(dest); err == nil {
		age := time.Since(info.ModTime())
		if a.MaxCacheAge <= 0 || age < a.MaxCacheAge {
			if a.Logger != nil {
				a.Logger.Debug("using cached export", "path", dest, "age", age.Round(time.Minute))
			}
			return dest, nil
		}
	}

	if a.Logger != nil {
		a.Logger.Info("downloading open-data export", "url", a.ExportURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.ExportURL, nil)
	if err != nil {
		return "", fmt.Errorf("build export request: %w", err)
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download export: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download export: status %s", resp.Status)
	}

	if err := os.MkdirAll(a.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(a.CacheDir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("create temp export: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write export: %w", err)
	}
	_ = tmp.Close()
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename export: %w", err)
	}
	return dest, nil
}

// filterExport streams the sheet and keeps rows where any keyword word
// matches the concatenation of case type and participants.
func (a *OpenDataAdapter) filterExport(path string, keywords []string, maxResults int) ([]model.Decision, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("export has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("iterate export rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, fmt.Errorf("export is empty")
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read export header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		if name != "" {
			cols[name] = i
		}
	}
	if _, ok := cols[colCaseNumber]; !ok {
		return nil, fmt.Errorf("export missing column %q", colCaseNumber)
	}

	words := SplitKeywordWords(keywords)
	var decisions []model.Decision

	for rows.Next() {
		if len(decisions) >= maxResults {
			break
		}
		cells, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read export row: %w", err)
		}

		caseNumber := cellAt(cells, cols, colCaseNumber)
		if caseNumber == "" {
			continue
		}
		caseType := cellAt(cells, cols, colCaseType)
		participants := cellAt(cells, cols, colParticipants)

		if !MatchAnyWord(caseType+" "+participants, words) {
			continue
		}

		title := caseType
		if title == "" {
			title = "Bez názvu"
		}

		d := model.Decision{
			ECLI:     SynthesizeECLI("NSS", caseNumber),
			Title:    title,
			Date:     parseExportDate(cellAt(cells, cols, colDecisionDate)),
			URL:      searchDetailURL + url.QueryEscape(caseNumber),
			Keywords: keywords,
		}
		d.SetMeta("source", "nssoud.cz open data")
		d.SetMeta("court", "NSS")
		d.SetMeta("case_number", caseNumber)
		if v := cellAt(cells, cols, colJudge); v != "" {
			d.SetMeta("judge", v)
		}
		if v := cellAt(cells, cols, colProceeding); v != "" {
			d.SetMeta("proceeding_type", v)
		}
		if v := cellAt(cells, cols, colDecisionType); v != "" {
			d.SetMeta("decision_type", v)
		}

		decisions = append(decisions, d)
	}

	if a.Logger != nil {
		a.Logger.Info("filtered export", "matches", len(decisions), "keywords", keywords)
	}
	return decisions, nil
}

func cellAt(cells []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

func parseExportDate(raw string) time.Time {
	for _, layout := range []string{"2006-01-02", "02.01.2006", "1/2/06 15:04", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
