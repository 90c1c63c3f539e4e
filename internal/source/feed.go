package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/judikatura/crawler/internal/model"
)

// FeedAdapter reads a court's RSS feed of recent decisions and filters
// items client-side, since feeds cannot be queried by keyword.
type FeedAdapter struct {
	FeedURL    string
	SourceCode string
	Parser     *gofeed.Parser
	Logger     *slog.Logger
}

func (a *FeedAdapter) Name() string { return strings.ToLower(a.SourceCode) + "-rss" }

func (a *FeedAdapter) Search(ctx context.Context, keywords []string, maxResults int) ([]model.Decision, error) {
	parser := a.Parser
	if parser == nil {
		parser = gofeed.NewParser()
	}

	feed, err := parser.ParseURLWithContext(a.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: %v", ErrSourceUnavailable, a.FeedURL, err)
	}

	words := SplitKeywordWords(keywords)
	var decisions []model.Decision

	for _, item := range feed.Items {
		if len(decisions) >= maxResults {
			break
		}
		if item.Link == "" || item.Title == "" {
			continue
		}
		if len(words) > 0 && !MatchAnyWord(item.Title, words) {
			continue
		}

		slug := itemSlug(item.Link)
		if slug == "" {
			continue
		}

		d := model.Decision{
			ECLI:     SynthesizeECLI(a.SourceCode+":RSS", slug),
			Title:    item.Title,
			URL:      item.Link,
			Keywords: keywords,
		}
		if item.PublishedParsed != nil {
			d.Date = *item.PublishedParsed
		}
		d.SetMeta("source", "RSS feed")
		d.SetMeta("court", a.SourceCode)

		decisions = append(decisions, d)
	}

	if a.Logger != nil {
		a.Logger.Info("feed search done", "feed", a.FeedURL, "results", len(decisions))
	}
	return decisions, nil
}

// itemSlug extracts the last non-empty path segment of an item link. It is
// the feed's only stable per-item reference, so the synthetic identifier is
// built from it rather than from publication time.
func itemSlug(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}
