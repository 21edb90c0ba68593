package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/triad/internal/config"
	"github.com/fyrsmithlabs/triad/internal/logging"
)

// githubProvider searches GitHub repositories. Without a token, requests
// are unauthenticated and subject to much lower rate limits.
type githubProvider struct {
	client     *github.Client
	maxResults int
	log        *logging.Logger
}

func newGitHub(ctx context.Context, token config.Secret, maxResults int, log *logging.Logger) *githubProvider {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	client := github.NewClient(nil)
	if token.IsSet() {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Value()})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	}

	return &githubProvider{
		client:     client,
		maxResults: maxResults,
		log:        log.Named("search"),
	}
}

func (g *githubProvider) Search(ctx context.Context, query string) (*Results, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}

	opts := &github.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: github.ListOptions{
			PerPage: g.maxResults,
		},
	}

	res, _, err := g.client.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("github search failed: %w", err)
	}

	results := &Results{Query: query}
	for _, repo := range res.Repositories {
		if len(results.Results) >= g.maxResults {
			break
		}
		results.Results = append(results.Results, Result{
			Title:   repo.GetFullName(),
			URL:     repo.GetHTMLURL(),
			Snippet: repo.GetDescription(),
		})
	}

	g.log.Debug(ctx, "search completed",
		zap.String("query", query),
		zap.Int("results", len(results.Results)))
	return results, nil
}

var _ Provider = (*githubProvider)(nil)
