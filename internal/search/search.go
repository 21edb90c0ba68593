// Package search provides web search for workflow actions.
//
// A Provider answers free-text queries from the implementer pipeline. Two
// providers ship: the DuckDuckGo Instant Answer API (no credentials) and
// GitHub repository search (optional token). The factory selects one by
// the configured provider tag.
package search

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/triad/internal/config"
	"github.com/fyrsmithlabs/triad/internal/logging"
)

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Results holds the ordered hits for one query.
type Results struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Provider answers search queries.
type Provider interface {
	Search(ctx context.Context, query string) (*Results, error)
}

// NewProvider creates the provider selected by cfg.Provider. An unknown
// tag is a configuration error.
func NewProvider(ctx context.Context, cfg config.SearchConfig, log *logging.Logger) (Provider, error) {
	switch cfg.Provider {
	case "duckduckgo":
		return newDuckDuckGo(defaultDuckDuckGoURL, cfg.MaxResults, cfg.Timeout.Duration(), log), nil
	case "github":
		return newGitHub(ctx, cfg.GitHubToken, cfg.MaxResults, log), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}
