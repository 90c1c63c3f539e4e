package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Rozhodnutí KSBR</title>
    <item>
      <title>Rozsudek o územním plánu obce</title>
      <link>https://www.ksbr.justice.cz/rozhodnuti/10-a-5-2024/</link>
      <pubDate>Mon, 15 Jan 2024 10:00:00 +0100</pubDate>
    </item>
    <item>
      <title>Usnesení o náhradě nákladů</title>
      <link>https://www.ksbr.justice.cz/rozhodnuti/11-c-2-2024/</link>
    </item>
    <item>
      <title>Bez odkazu</title>
    </item>
  </channel>
</rss>`

func feedTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFeedSearchFiltersByTitle(t *testing.T) {
	server := feedTestServer(t)
	adapter := &FeedAdapter{FeedURL: server.URL, SourceCode: "KSBR"}

	decisions, err := adapter.Search(context.Background(), []string{"územní plán"}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(decisions))
	}

	d := decisions[0]
	if d.ECLI != "CZ:KSBR:RSS:10-a-5-2024" {
		t.Errorf("ECLI = %q", d.ECLI)
	}
	if d.Date.IsZero() {
		t.Error("published date not carried over")
	}
	if d.Metadata["court"] != "KSBR" {
		t.Errorf("court = %q", d.Metadata["court"])
	}
}

func TestFeedSearchDeterministicIdentifiers(t *testing.T) {
	server := feedTestServer(t)
	adapter := &FeedAdapter{FeedURL: server.URL, SourceCode: "KSBR"}

	first, err := adapter.Search(context.Background(), []string{"územní"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	second, err := adapter.Search(context.Background(), []string{"územní"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].ECLI != second[0].ECLI {
		t.Fatalf("identifiers differ across runs: %q vs %q", first[0].ECLI, second[0].ECLI)
	}
}

func TestFeedSearchNoKeywordsReturnsEverythingLinked(t *testing.T) {
	server := feedTestServer(t)
	adapter := &FeedAdapter{FeedURL: server.URL, SourceCode: "KSBR"}

	decisions, err := adapter.Search(context.Background(), nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	// The linkless item is dropped; with no keywords nothing is filtered.
	if len(decisions) != 2 {
		t.Fatalf("got %d decisions, want 2", len(decisions))
	}
}

func TestFeedSearchUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := &FeedAdapter{FeedURL: server.URL, SourceCode: "KSBR"}
	if _, err := adapter.Search(context.Background(), nil, 10); err == nil {
		t.Fatal("expected error for unreachable feed")
	}
}
