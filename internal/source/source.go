// Package source contains one adapter per external legal-information
// source. Adapters only know how to obtain raw candidate records; merging
// and dedup happen in the coordinator.
package source

import (
	"context"
	"errors"
	"strings"

	"github.com/judikatura/crawler/internal/model"
)

// ErrSourceUnavailable marks a whole source as unreachable after the
// adapter's own retries. The coordinator isolates it per source.
var ErrSourceUnavailable = errors.New("source unavailable")

// Adapter queries one external source for candidate decisions.
type Adapter interface {
	Name() string
	Search(ctx context.Context, keywords []string, maxResults int) ([]model.Decision, error)
}

// SplitKeywordWords breaks multi-word keyword phrases into their individual
// words for the permissive bulk-export matching policy.
func SplitKeywordWords(keywords []string) []string {
	var words []string
	for _, kw := range keywords {
		for _, w := range strings.Fields(kw) {
			words = append(words, strings.ToLower(w))
		}
	}
	return words
}

// MatchAnyWord reports whether any word from any keyword appears as a
// case-insensitive substring of text. Recall over precision: downstream
// full-text search narrows results later.
func MatchAnyWord(text string, keywordWords []string) bool {
	text = strings.ToLower(text)
	for _, w := range keywordWords {
		if w != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// SynthesizeECLI builds a deterministic fallback identifier from the
// source code and a stable reference such as a case number. Repeated runs
// over the same source data must produce the same identifier, so wall-clock
// components are never used.
func SynthesizeECLI(sourceCode string, reference string) string {
	reference = strings.TrimSpace(reference)
	reference = strings.ReplaceAll(reference, " ", "-")
	return "CZ:" + sourceCode + ":" + reference
}
