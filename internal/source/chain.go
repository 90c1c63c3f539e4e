package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/judikatura/crawler/internal/model"
)

// Chain tries strategies for one logical source in order and stops at the
// first one returning at least one record. Results from different
// strategies are never merged within a single call: mixing record shapes
// of different fidelity inside one source would confuse downstream dedup.
type Chain struct {
	SourceName string
	Strategies []Adapter
	Logger     *slog.Logger
}

func (c *Chain) Name() string { return c.SourceName }

func (c *Chain) Search(ctx context.Context, keywords []string, maxResults int) ([]model.Decision, error) {
	var lastErr error
	failed := 0

	for _, strategy := range c.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decisions, err := strategy.Search(ctx, keywords, maxResults)
		if err != nil {
			failed++
			lastErr = err
			if c.Logger != nil {
				c.Logger.Warn("search strategy failed", "source", c.SourceName, "strategy", strategy.Name(), "error", err)
			}
			continue
		}
		if len(decisions) > 0 {
			if c.Logger != nil {
				c.Logger.Info("search strategy succeeded", "source", c.SourceName, "strategy", strategy.Name(), "results", len(decisions))
			}
			return decisions, nil
		}
	}

	// All strategies errored: the source as a whole is unreachable. Some
	// strategies succeeding with zero results is a legitimate empty answer.
	if failed == len(c.Strategies) && lastErr != nil {
		return nil, fmt.Errorf("%w: all %d strategies for %s failed: %v",
			ErrSourceUnavailable, len(c.Strategies), c.SourceName, lastErr)
	}
	return nil, nil
}
