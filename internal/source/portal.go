package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/judikatura/crawler/internal/model"
)

// Browser renders a page the way a real browser would and returns the
// resulting HTML. The decision portals build their result lists with
// JavaScript, so a plain GET sees an empty shell.
type Browser interface {
	FetchRendered(ctx context.Context, pageURL string) (string, error)
}

// PortalAdapter searches a browser-rendered court decision portal and
// scrapes the result list out of the rendered DOM.
type PortalAdapter struct {
	BaseURL   string
	CourtCode string
	Browser   Browser
	Logger    *slog.Logger
}

func (a *PortalAdapter) Name() string { return strings.ToLower(a.CourtCode) }

func (a *PortalAdapter) Search(ctx context.Context, keywords []string, maxResults int) ([]model.Decision, error) {
	query := strings.Join(keywords, " ")
	searchURL := fmt.Sprintf("%s/search?q=%s&court=%s",
		strings.TrimSuffix(a.BaseURL, "/"), url.QueryEscape(query), url.QueryEscape(a.CourtCode))

	html, err := a.Browser.FetchRendered(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: portal %s: %v", ErrSourceUnavailable, a.CourtCode, err)
	}

	decisions, err := a.parseResults(html, keywords, maxResults)
	if err != nil {
		return nil, fmt.Errorf("parse portal results: %w", err)
	}
	if a.Logger != nil {
		a.Logger.Info("portal search done", "court", a.CourtCode, "results", len(decisions))
	}
	return decisions, nil
}

func (a *PortalAdapter) parseResults(html string, keywords []string, maxResults int) ([]model.Decision, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var decisions []model.Decision
	doc.Find(".search-result-item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if len(decisions) >= maxResults {
			return false
		}

		link := item.Find("h3 a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}

		ecli := strings.TrimSpace(item.Find(".ecli").First().Text())
		caseNumber := strings.TrimSpace(item.Find(".case-number").First().Text())
		if ecli == "" {
			if caseNumber == "" {
				// Nothing stable to key on; a record we cannot dedup or
				// re-run idempotently is worse than a dropped one.
				return true
			}
			ecli = SynthesizeECLI(a.CourtCode, caseNumber)
		}

		d := model.Decision{
			ECLI:     ecli,
			Title:    title,
			Date:     parsePortalDate(item.Find(".decision-date").First().Text()),
			URL:      a.absoluteURL(href),
			Keywords: keywords,
		}
		d.SetMeta("source", a.BaseURL)
		d.SetMeta("court", a.CourtCode)
		if caseNumber != "" {
			d.SetMeta("case_number", caseNumber)
		}

		decisions = append(decisions, d)
		return true
	})

	return decisions, nil
}

func (a *PortalAdapter) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(a.BaseURL, "/") + "/" + strings.TrimPrefix(href, "/")
}

func parsePortalDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2. 1. 2006", "02.01.2006", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
