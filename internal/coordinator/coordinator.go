// Package coordinator fans a keyword search out to every configured source
// adapter and reconciles the answers into one deduplicated candidate list.
package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/judikatura/crawler/internal/model"
	"github.com/judikatura/crawler/internal/source"
)

type Coordinator struct {
	Adapters []source.Adapter
	Logger   *slog.Logger
}

// SearchAll queries every adapter and merges the results first-seen-wins by
// identifier. Adapters run concurrently, but results are collected into a
// slice indexed by adapter position and merged in that order, so dedup
// precedence always follows configuration order no matter which source
// answers first. A failing adapter is logged and counted without aborting
// its siblings; the failed-source count is returned alongside the records.
func (c *Coordinator) SearchAll(ctx context.Context, keywords []string, perSourceLimit int) ([]model.Decision, int) {
	type result struct {
		decisions []model.Decision
		err       error
	}
	results := make([]result, len(c.Adapters))

	var wg sync.WaitGroup
	for i, adapter := range c.Adapters {
		wg.Add(1)
		go func(idx int, a source.Adapter) {
			defer wg.Done()
			if c.Logger != nil {
				c.Logger.Info("searching source", "source", a.Name(), "keywords", keywords)
			}
			decisions, err := a.Search(ctx, keywords, perSourceLimit)
			results[idx] = result{decisions: decisions, err: err}
		}(i, adapter)
	}
	wg.Wait()

	failed := 0
	seen := make(map[string]struct{})
	var merged []model.Decision

	for i, r := range results {
		if r.err != nil {
			failed++
			if c.Logger != nil {
				c.Logger.Error("source failed", "source", c.Adapters[i].Name(), "error", r.err)
			}
			continue
		}
		for _, d := range r.decisions {
			if d.ECLI == "" {
				continue
			}
			if _, dup := seen[d.ECLI]; dup {
				continue
			}
			seen[d.ECLI] = struct{}{}
			merged = append(merged, d)
		}
	}

	if c.Logger != nil {
		c.Logger.Info("search merged", "unique", len(merged), "failed_sources", failed)
	}
	return merged, failed
}
